package payment

import "github.com/jackira01/scort-web-site-sub002/pkg/errs"

var ErrInvoiceNotPaid = errs.BusinessRule("invoice_not_paid", "invoice is not paid")
