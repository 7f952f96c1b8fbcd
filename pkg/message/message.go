package message

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind is the purchase flow a message describes.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindRenewal  Kind = "renewal"
	KindUpgrade  Kind = "upgrade"
)

// Config holds the company contact used in messages.
type Config struct {
	CompanyName    string `env:"COMPANY_NAME" envDefault:"Marketplace"`
	WhatsAppNumber string `env:"COMPANY_WHATSAPP" envDefault:""`
	Locale         string `env:"MESSAGE_LOCALE" envDefault:"es-419"`
	CurrencySymbol string `env:"CURRENCY_SYMBOL" envDefault:"$"`
}

// Context is what a purchase message is built from.
type Context struct {
	Kind        Kind
	ProfileID   string
	ProfileName string
	ItemName    string
	Days        int
	Amount      int64
	InvoiceID   string
}

// Message is the payload handed to an external channel.
type Message struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Composer renders purchase and renewal messages. It never sends anything.
type Composer struct {
	cfg     Config
	printer *message.Printer
	title   cases.Caser
}

// NewComposer creates a Composer. An unknown locale falls back to Latin American Spanish.
func NewComposer(cfg Config) *Composer {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.MustParse("es-419")
	}
	return &Composer{
		cfg:     cfg,
		printer: message.NewPrinter(tag),
		title:   cases.Title(tag),
	}
}

// Compose builds the message for c.
func (m *Composer) Compose(c Context) Message {
	name := m.title.String(strings.ToLower(c.ItemName))
	amount := m.FormatAmount(c.Amount)

	var b strings.Builder
	b.WriteString(m.printer.Sprintf("Hola %s, ", m.cfg.CompanyName))
	switch c.Kind {
	case KindRenewal:
		b.WriteString(m.printer.Sprintf("quiero renovar el plan %s por %d días", name, c.Days))
	case KindUpgrade:
		b.WriteString(m.printer.Sprintf("quiero comprar el upgrade %s", name))
	default:
		b.WriteString(m.printer.Sprintf("quiero adquirir el plan %s por %d días", name, c.Days))
	}
	if c.ProfileName != "" {
		b.WriteString(m.printer.Sprintf(" para el perfil %s", c.ProfileName))
	}
	b.WriteString(".")
	if c.Amount > 0 {
		b.WriteString(m.printer.Sprintf(" Valor: %s.", amount))
	}
	if c.InvoiceID != "" {
		b.WriteString(m.printer.Sprintf(" Factura: %s.", c.InvoiceID))
	}

	msg := Message{Text: b.String()}
	if phone := digits(m.cfg.WhatsAppNumber); phone != "" {
		msg.Link = "https://wa.me/" + phone + "?text=" + url.QueryEscape(msg.Text)
	}
	return msg
}

// FormatAmount renders amount with the locale's digit grouping and the currency symbol.
func (m *Composer) FormatAmount(amount int64) string {
	return m.cfg.CurrencySymbol + m.printer.Sprintf("%d", amount)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
