package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
)

type planRequest struct {
	PlanCode    string `json:"planCode" validate:"required"`
	VariantDays int    `json:"variantDays" validate:"gte=0"`
	CouponCode  string `json:"couponCode"`
	OrderID     string `json:"orderId"`
}

type renewRequest struct {
	VariantDays int    `json:"variantDays" validate:"gte=0"`
	CouponCode  string `json:"couponCode"`
	OrderID     string `json:"orderId"`
}

type upgradeRequest struct {
	UpgradeCode string `json:"upgradeCode" validate:"required"`
	CouponCode  string `json:"couponCode"`
	OrderID     string `json:"orderId"`
}

func (s *Server) assignDefaultPlan(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Entitlements.AssignDefaultPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, out)
}

func (s *Server) purchasePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	out, err := s.deps.Entitlements.PurchasePlan(r.Context(), entitlement.PlanPurchase{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		PlanCode:    req.PlanCode,
		VariantDays: req.VariantDays,
		CouponCode:  req.CouponCode,
		OrderID:     req.OrderID,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, out)
}

func (s *Server) renewPlan(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	out, err := s.deps.Entitlements.RenewPlan(r.Context(), entitlement.PlanRenewal{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		VariantDays: req.VariantDays,
		CouponCode:  req.CouponCode,
		OrderID:     req.OrderID,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, out)
}

func (s *Server) upgradePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	out, err := s.deps.Entitlements.UpgradePlan(r.Context(), entitlement.PlanChange{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		PlanCode:    req.PlanCode,
		VariantDays: req.VariantDays,
		CouponCode:  req.CouponCode,
		OrderID:     req.OrderID,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, out)
}

func (s *Server) purchaseUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	out, err := s.deps.Entitlements.PurchaseUpgrade(r.Context(), entitlement.UpgradePurchase{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		UpgradeCode: req.UpgradeCode,
		CouponCode:  req.CouponCode,
		OrderID:     req.OrderID,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, out)
}

// validatePlan always answers 200 when the check ran; a refused purchase is
// reported in the body.
func (s *Server) validatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	check, err := s.deps.Entitlements.ValidatePurchase(r.Context(), entitlement.PlanPurchase{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		PlanCode:    req.PlanCode,
		VariantDays: req.VariantDays,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, check)
}

func (s *Server) validateUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := s.bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c := callerFrom(r)
	check, err := s.deps.Entitlements.ValidateUpgrade(r.Context(), entitlement.UpgradePurchase{
		ProfileID:   chi.URLParam(r, "id"),
		UserID:      c.userID,
		UpgradeCode: req.UpgradeCode,
		Admin:       c.admin,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, check)
}
