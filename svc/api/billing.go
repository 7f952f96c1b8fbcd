package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
)

var ErrInvalidLimit = errs.Validation("invalid_limit", "limit must be a positive integer")

type couponValidateRequest struct {
	Code        string `json:"code" validate:"required"`
	PlanCode    string `json:"planCode"`
	UpgradeCode string `json:"upgradeCode"`
}

type couponApplyRequest struct {
	Code          string `json:"code" validate:"required"`
	OriginalPrice int64  `json:"originalPrice" validate:"gte=0"`
	PlanCode      string `json:"planCode"`
	VariantDays   int    `json:"variantDays" validate:"gte=0"`
	UpgradeCode   string `json:"upgradeCode"`
}

type confirmRequest struct {
	PaymentData map[string]any `json:"paymentData"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponValidateRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.deps.Coupons.Validate(r.Context(), req.Code, coupon.Target{
		PlanCode:    req.PlanCode,
		UpgradeCode: req.UpgradeCode,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, v)
}

func (s *Server) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponApplyRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Coupons.Apply(r.Context(), coupon.ApplyRequest{
		Code:          req.Code,
		OriginalPrice: req.OriginalPrice,
		PlanCode:      req.PlanCode,
		VariantDays:   req.VariantDays,
		UpgradeCode:   req.UpgradeCode,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, res)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.deps.Invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, inv)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := invoice.Filter{
		ProfileID: q.Get("profileId"),
		UserID:    q.Get("userId"),
		Status:    invoice.Status(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, r, ErrInvalidLimit)
			return
		}
		f.Limit = n
	}
	list, err := s.deps.Invoices.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, Envelope{Data: list, Meta: map[string]any{"count": len(list)}})
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Payments.ConfirmPayment(r.Context(), chi.URLParam(r, "invoiceID"), req.PaymentData)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, res)
}

func (s *Server) cancelPayment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Payments.CancelPayment(r.Context(), chi.URLParam(r, "invoiceID"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, res)
}

func (s *Server) retryPayments(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Payments.RetryUnapplied(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, report)
}
