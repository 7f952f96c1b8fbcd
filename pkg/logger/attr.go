package logger

import "log/slog"

// Error returns an "error" attribute, or an empty one for a nil err.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

func ProfileID(id string) slog.Attr {
	return slog.String("profile_id", id)
}

func InvoiceID(id string) slog.Attr {
	return slog.String("invoice_id", id)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
