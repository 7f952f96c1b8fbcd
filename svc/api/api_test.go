package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	"github.com/jackira01/scort-web-site-sub002/pkg/message"
	"github.com/jackira01/scort-web-site-sub002/pkg/payment"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
	"github.com/jackira01/scort-web-site-sub002/pkg/sweep"
	"github.com/jackira01/scort-web-site-sub002/svc/api"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type env struct {
	handler  http.Handler
	profiles *profile.MemoryStore
}

type brokenPayments struct{}

func (brokenPayments) ConfirmPayment(context.Context, string, map[string]any) (payment.Result, error) {
	return payment.Result{}, errors.New("connection reset")
}

func (brokenPayments) CancelPayment(context.Context, string, string) (payment.Result, error) {
	return payment.Result{}, errors.New("connection reset")
}

func (brokenPayments) RetryUnapplied(context.Context) (payment.RetryReport, error) {
	return payment.RetryReport{}, errors.New("connection reset")
}

func newEnv(t *testing.T, payments api.Payments) *env {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)

	cat := catalog.NewService(catalog.NewMemoryStore(nil, nil), catalog.WithLogger(log))
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	_, err = cat.Import(ctx, seed)
	require.NoError(t, err)

	coupons := coupon.NewEngine(coupon.NewMemoryStore(coupon.Coupon{
		Code:            "VEINTE",
		Type:            coupon.TypePercentage,
		Value:           20,
		MaxUses:         coupon.Unlimited,
		ValidUntil:      now.Add(24 * time.Hour),
		ApplicablePlans: []string{"ORO", "DIAMANTE"},
		IsActive:        true,
	}), cat, coupon.WithClock(clock))
	invoices := invoice.NewService(invoice.NewMemoryStore(), cat, coupons, invoice.WithClock(clock), invoice.WithLogger(log))
	profiles := profile.NewMemoryStore()
	reconciler := payment.NewReconciler(invoices, profiles, cat, coupons, payment.WithClock(clock), payment.WithLogger(log))

	engine := entitlement.NewEngine(entitlement.Dependencies{
		Profiles: profiles,
		Catalog:  cat,
		Invoices: invoices,
		Payments: reconciler,
		Users:    entitlement.NewMemoryDirectory(entitlement.Account{ID: "u1", Type: entitlement.AccountCommon}),
		Settings: settings.New(settings.NewMemorySource(nil)),
		Composer: message.NewComposer(message.Config{CompanyName: "Acme", Locale: "es-419", CurrencySymbol: "$"}),
	}, entitlement.WithClock(clock), entitlement.WithLogger(log))

	reg := prometheus.NewRegistry()
	sweeper := sweep.New(profiles,
		sweep.WithClock(clock),
		sweep.WithLogger(log),
		sweep.WithMetrics(sweep.NewMetrics(reg)),
	)

	if payments == nil {
		payments = reconciler
	}
	srv := api.New(api.Dependencies{
		Entitlements: engine,
		Coupons:      coupons,
		Invoices:     invoices,
		Payments:     payments,
		Cleanup:      sweeper,
		Profiles:     profiles,
		Catalog:      cat,
	}, api.WithLogger(log), api.WithClock(clock), api.WithGatherer(reg))

	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, profiles.Save(ctx, &profile.Profile{
			ID: id, UserID: "u1", Name: "Luna " + id, IsActive: true, CreatedAt: now,
		}))
	}
	return &env{handler: srv.Handler(), profiles: profiles}
}

type response struct {
	Data  json.RawMessage  `json:"data"`
	Meta  map[string]any   `json:"meta"`
	Error *api.ErrorDetail `json:"error"`
}

func (e *env) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	return e.send(t, method, path, body, map[string]string{api.HeaderUserID: "u1"})
}

func (e *env) doAdmin(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	return e.send(t, method, path, body, map[string]string{api.HeaderAdmin: "true"})
}

func (e *env) send(t *testing.T, method, path string, body any, headers map[string]string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestPurchaseAndConfirm(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, resp := e.do(t, http.MethodPost, "/profiles/p1/plan/purchase", map[string]any{
		"planCode":    "ORO",
		"variantDays": 30,
		"couponCode":  "VEINTE",
	})
	require.Equal(t, http.StatusOK, code, resp.Error)

	var out struct {
		Applied bool `json:"applied"`
		Invoice struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount int64  `json:"totalAmount"`
		} `json:"invoice"`
		Message struct {
			Text string `json:"text"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.False(t, out.Applied)
	assert.Equal(t, "pending", out.Invoice.Status)
	assert.Equal(t, int64(96000), out.Invoice.TotalAmount)
	assert.NotEmpty(t, out.Message.Text)

	confirm := map[string]any{"paymentData": map[string]any{"method": "transfer"}}
	code, resp = e.do(t, http.MethodPost, "/payments/"+out.Invoice.ID+"/confirm", confirm)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "admin_required", resp.Error.Code)

	code, resp = e.doAdmin(t, http.MethodPost, "/payments/"+out.Invoice.ID+"/confirm", confirm)
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = e.do(t, http.MethodGet, "/invoices/"+out.Invoice.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var inv struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &inv))
	assert.Equal(t, "paid", inv.Status)

	p, err := e.profiles.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, p.Plan)
	assert.Equal(t, "ORO", p.Plan.PlanCode)
	assert.True(t, p.Visible)

	code, resp = e.do(t, http.MethodGet, "/invoices?profileId=p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, resp.Meta["count"])
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "missing plan code",
			method: http.MethodPost,
			path:   "/profiles/p1/plan/purchase",
			body:   map[string]any{"variantDays": 30},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown field",
			method: http.MethodPost,
			path:   "/profiles/p1/plan/purchase",
			body:   map[string]any{"planCode": "ORO", "bogus": 1},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "unknown plan",
			method: http.MethodPost,
			path:   "/profiles/p1/plan/purchase",
			body:   map[string]any{"planCode": "PLATINO"},
			status: http.StatusNotFound,
			code:   "plan_not_found",
		},
		{
			name:   "unknown profile",
			method: http.MethodPost,
			path:   "/profiles/ghost/plan/default",
			status: http.StatusNotFound,
			code:   "profile_not_found",
		},
		{
			name:   "upgrade without plan",
			method: http.MethodPost,
			path:   "/profiles/p2/upgrades",
			body:   map[string]any{"upgradeCode": "DESTACADO"},
			status: http.StatusConflict,
			code:   "no_active_plan",
		},
		{
			name:   "unknown invoice",
			method: http.MethodGet,
			path:   "/invoices/nope",
			status: http.StatusNotFound,
			code:   "invoice_not_found",
		},
		{
			name:   "bad limit",
			method: http.MethodGet,
			path:   "/invoices?limit=-1",
			status: http.StatusBadRequest,
			code:   "invalid_limit",
		},
		{
			name:   "retry needs admin",
			method: http.MethodPost,
			path:   "/payments/retry",
			status: http.StatusForbidden,
			code:   "admin_required",
		},
		{
			name:   "cleanup needs admin",
			method: http.MethodPost,
			path:   "/cleanup/run",
			status: http.StatusForbidden,
			code:   "admin_required",
		},
		{
			name:   "zero days on unknown plan",
			method: http.MethodPost,
			path:   "/profiles/p1/plan/purchase",
			body:   map[string]any{"planCode": "PLATINO", "variantDays": 0},
			status: http.StatusNotFound,
			code:   "plan_not_found",
		},
		{
			name:   "bad surface",
			method: http.MethodGet,
			path:   "/listings/frontpage",
			status: http.StatusBadRequest,
			code:   "invalid_surface",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestOwnership(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, resp := e.send(t, http.MethodPost, "/profiles/p1/plan/purchase",
		map[string]any{"planCode": "ORO", "variantDays": 7},
		map[string]string{api.HeaderUserID: "u9"})
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_owner", resp.Error.Code)
}

func TestValidationDetails(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, resp := e.do(t, http.MethodPost, "/coupons/apply", map[string]any{"originalPrice": -5})
	require.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, []string{"is required"}, resp.Error.Details["code"])
	assert.Equal(t, []string{"must be at least 0"}, resp.Error.Details["originalPrice"])
}

func TestValidateEndpoints(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, resp := e.do(t, http.MethodPost, "/profiles/p1/validate/upgrade", map[string]any{"upgradeCode": "IMPULSO"})
	require.Equal(t, http.StatusOK, code)
	var check entitlement.Check
	require.NoError(t, json.Unmarshal(resp.Data, &check))
	assert.False(t, check.Allowed)
	assert.Equal(t, "no_active_plan", check.Code)

	code, resp = e.do(t, http.MethodPost, "/profiles/p1/validate/plan", map[string]any{"planCode": "AMATISTA"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &check))
	assert.True(t, check.Allowed)
}

func TestCoupons(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, resp := e.do(t, http.MethodPost, "/coupons/apply", map[string]any{
		"code":          "veinte",
		"originalPrice": 50000,
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	var res coupon.Result
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.Success)
	assert.Equal(t, int64(10000), res.Discount)
	assert.Equal(t, int64(40000), res.FinalPrice)

	code, resp = e.do(t, http.MethodPost, "/coupons/validate", map[string]any{"code": "NADA"})
	require.Equal(t, http.StatusOK, code)
	var v coupon.Validation
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	assert.False(t, v.Valid)
}

func TestCleanupAndListing(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	code, _ := e.do(t, http.MethodPost, "/profiles/p1/plan/default", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := e.doAdmin(t, http.MethodPost, "/cleanup/run", nil)
	require.Equal(t, http.StatusOK, code)
	var report sweep.Report
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Zero(t, report.Hidden)

	code, resp = e.do(t, http.MethodGet, "/cleanup/status", nil)
	require.Equal(t, http.StatusOK, code)
	var st sweep.Status
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.EqualValues(t, 1, st.Runs)

	code, _ = e.do(t, http.MethodGet, "/cleanup/stats", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = e.do(t, http.MethodGet, "/listings/home", nil)
	require.Equal(t, http.StatusOK, code)
	var entries []struct {
		ProfileID string `json:"profileId"`
		PlanCode  string `json:"planCode"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].ProfileID)
	assert.Equal(t, "AMATISTA", entries[0].PlanCode)

	code, resp = e.do(t, http.MethodGet, "/listings/sponsored", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, resp.Meta["total"])
}

func TestInternalErrorsAreMasked(t *testing.T) {
	t.Parallel()
	e := newEnv(t, brokenPayments{})

	code, resp := e.doAdmin(t, http.MethodPost, "/payments/retry", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "internal_error", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "connection reset")
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")

	_, _ = e.doAdmin(t, http.MethodPost, "/cleanup/run", nil)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entitlements_sweep_runs_total")
}
