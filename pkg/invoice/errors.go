package invoice

import "github.com/jackira01/scort-web-site-sub002/pkg/errs"

var (
	ErrInvoiceNotFound  = errs.NotFound("invoice_not_found", "invoice not found")
	ErrNoItems          = errs.Validation("no_items", "invoice has no items")
	ErrCannotCancelPaid = errs.BusinessRule("cannot_cancel_paid", "cannot cancel a paid invoice")
	ErrInvalidStatus    = errs.BusinessRule("invalid_status_transition", "invoice is not in the expected status")
)
