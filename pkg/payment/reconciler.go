package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

// Invoices is the part of the invoice lifecycle reconciliation drives.
type Invoices interface {
	Get(ctx context.Context, id string) (*invoice.Invoice, error)
	MarkPaid(ctx context.Context, id string, paymentData map[string]any) (*invoice.Invoice, bool, error)
	Cancel(ctx context.Context, id, reason string) (*invoice.Invoice, error)
	PaidUnapplied(ctx context.Context) ([]invoice.Invoice, error)
	MarkApplied(ctx context.Context, id string) error
}

// Redeemer counts coupon usage.
type Redeemer interface {
	Redeem(ctx context.Context, code string) error
}

// Result reports the outcome of a confirm or cancel call.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	InvoiceID string `json:"invoiceId"`
	ProfileID string `json:"profileId,omitempty"`
}

// RetryReport summarizes a RetryUnapplied run.
type RetryReport struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

// Reconciler applies paid invoices to profiles.
type Reconciler struct {
	invoices Invoices
	profiles profile.Store
	catalog  catalog.Reader
	coupons  Redeemer
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the reconciler logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler creates a Reconciler. Panics if a dependency is nil.
func NewReconciler(invoices Invoices, profiles profile.Store, cat catalog.Reader, coupons Redeemer, opts ...Option) *Reconciler {
	switch {
	case invoices == nil:
		panic("payment: Invoices is required")
	case profiles == nil:
		panic("payment: profile Store is required")
	case cat == nil:
		panic("payment: catalog Reader is required")
	case coupons == nil:
		panic("payment: Redeemer is required")
	}
	r := &Reconciler{
		invoices: invoices,
		profiles: profiles,
		catalog:  cat,
		coupons:  coupons,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfirmPayment marks the invoice paid, counts its coupon once and applies it
// to the profile. Repeated calls for a paid invoice only retry the apply step.
func (r *Reconciler) ConfirmPayment(ctx context.Context, invoiceID string, paymentData map[string]any) (Result, error) {
	res := Result{InvoiceID: invoiceID}

	inv, transitioned, err := r.invoices.MarkPaid(ctx, invoiceID, paymentData)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	res.ProfileID = inv.ProfileID

	if transitioned && inv.Coupon != nil {
		if err := r.coupons.Redeem(ctx, inv.Coupon.Code); err != nil {
			// the payment is already captured; usage accounting must not undo it
			r.logger.WarnContext(ctx, "coupon redeem failed",
				logger.InvoiceID(inv.ID),
				slog.String("coupon_code", inv.Coupon.Code),
				logger.Error(err),
			)
		}
	}

	if inv.AppliedAt != nil {
		res.Success = true
		res.Message = "invoice already applied"
		return res, nil
	}

	if err := r.ApplyInvoice(ctx, inv); err != nil {
		r.logger.ErrorContext(ctx, "paid invoice not applied",
			logger.InvoiceID(inv.ID),
			logger.ProfileID(inv.ProfileID),
			logger.Error(err),
		)
		res.Message = err.Error()
		return res, err
	}

	res.Success = true
	res.Message = "payment confirmed"
	return res, nil
}

// CancelPayment cancels a pending invoice and reactivates the profile with
// whatever plan it already holds.
func (r *Reconciler) CancelPayment(ctx context.Context, invoiceID, reason string) (Result, error) {
	res := Result{InvoiceID: invoiceID}

	inv, err := r.invoices.Cancel(ctx, invoiceID, reason)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	res.ProfileID = inv.ProfileID

	p, err := r.profiles.Get(ctx, inv.ProfileID)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}
	p.IsActive = true
	p.UpdatedAt = r.now().UTC()
	if err := r.profiles.Save(ctx, p); err != nil {
		res.Message = "save profile failed"
		return res, errors.Join(errors.New("save profile"), err)
	}

	r.logger.InfoContext(ctx, "payment cancelled",
		logger.InvoiceID(inv.ID),
		logger.ProfileID(p.ID),
	)
	res.Success = true
	res.Message = "payment cancelled"
	return res, nil
}

// ApplyInvoice writes the items of a paid invoice to its profile and marks the
// invoice applied. Applying the same invoice twice changes nothing.
func (r *Reconciler) ApplyInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Status != invoice.StatusPaid {
		return fmt.Errorf("%w: invoice %s is %s", ErrInvoiceNotPaid, inv.ID, inv.Status)
	}

	p, err := r.profiles.Get(ctx, inv.ProfileID)
	if err != nil {
		return err
	}

	if !p.HasPayment(inv.ID) {
		now := r.now().UTC()
		if err := r.applyItems(ctx, p, inv, now); err != nil {
			return err
		}
		p.IsActive = true
		p.Visible = true
		p.RecordPayment(inv.ID)
		p.UpdatedAt = now
		if err := r.profiles.Save(ctx, p); err != nil {
			return errors.Join(errors.New("save profile"), err)
		}
		r.logger.InfoContext(ctx, "invoice applied",
			logger.InvoiceID(inv.ID),
			logger.ProfileID(p.ID),
		)
	}

	if err := r.invoices.MarkApplied(ctx, inv.ID); err != nil {
		return errors.Join(errors.New("mark invoice applied"), err)
	}
	return nil
}

func (r *Reconciler) applyItems(ctx context.Context, p *profile.Profile, inv *invoice.Invoice, now time.Time) error {
	if item, ok := inv.PlanItem(); ok {
		plan, err := r.catalog.Plan(ctx, item.Code)
		if err != nil {
			return err
		}
		if item.Renewal && p.Plan != nil && p.Plan.PlanCode == plan.Code {
			if err := p.RenewPlan(item.Days, now, inv.OrderID); err != nil {
				return err
			}
		} else {
			p.AssignPlan(plan, item.Days, now, inv.OrderID)
		}
		p.GrantIncluded(plan, now)
	}

	for _, item := range inv.UpgradeItems() {
		def, err := r.catalog.Upgrade(ctx, item.Code)
		if err != nil {
			return err
		}
		outcome, err := p.GrantUpgrade(def, now, inv.OrderID)
		if errors.Is(err, profile.ErrUpgradeAlreadyActive) {
			r.logger.WarnContext(ctx, "upgrade already active at payment time, skipped",
				logger.InvoiceID(inv.ID),
				slog.String("upgrade_code", def.Code),
			)
			continue
		}
		if err != nil {
			return err
		}
		r.logger.DebugContext(ctx, "upgrade granted",
			slog.String("upgrade_code", def.Code),
			slog.String("outcome", string(outcome)),
		)
	}
	return nil
}

// RetryUnapplied applies every paid invoice that has not reached its profile.
func (r *Reconciler) RetryUnapplied(ctx context.Context) (RetryReport, error) {
	var report RetryReport
	pending, err := r.invoices.PaidUnapplied(ctx)
	if err != nil {
		return report, err
	}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.ApplyInvoice(ctx, &pending[i]); err != nil {
			report.Failed++
			r.logger.ErrorContext(ctx, "retry apply failed",
				logger.InvoiceID(pending[i].ID),
				logger.Error(err),
			)
			continue
		}
		report.Applied++
	}
	return report, nil
}
