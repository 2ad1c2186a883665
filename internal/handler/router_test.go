package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/config"
	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/handler"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/cache"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/memstore"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Stub gateways ---

type stubCustomers struct {
	elig *domain.Eligibility
	err  error
}

func (s *stubCustomers) GetEligibility(_ context.Context, _, _ string) (*domain.Eligibility, error) {
	return s.elig, s.err
}

type stubCredits struct {
	has bool
}

func (s *stubCredits) HasActiveCreditCard(_ context.Context, _ string) (bool, error) {
	return s.has, nil
}

func testRouter(t *testing.T, authSvc *service.AuthService) (http.Handler, *memstore.AccountStore) {
	t.Helper()

	cfg := &config.Config{
		EligibilityCacheTTL: time.Minute,
		CreditCardCacheTTL:  time.Minute,
		NumberRetryBudget:   3,
		OpIDsCap:            200,
		Policy: config.PolicyDefaults{
			SavingsFreeOps:  5,
			SavingsFee:      decimal.RequireFromString("1.50"),
			CheckingFreeOps: 10,
			CheckingFee:     decimal.RequireFromString("0.90"),
		},
		RequireCcForVip:  true,
		RequireCcForPyme: true,
	}

	store := memstore.NewAccountStore()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	customers := &stubCustomers{elig: &domain.Eligibility{
		CustomerID: "cust-1",
		Type:       domain.CustomerTypePersonal,
		Profile:    domain.CustomerProfileStandard,
	}}

	accountSvc := service.NewAccountService(
		store, customers, &stubCredits{},
		cache.New[domain.Eligibility](time.Minute),
		cache.New[bool](time.Minute),
		cfg, metrics, logger,
	)
	balanceSvc := service.NewBalanceService(store, cfg.OpIDsCap, metrics, logger)

	return handler.NewRouter(accountSvc, balanceSvc, authSvc, metrics, logger), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestOperationalEndpoints(t *testing.T) {
	router, _ := testRouter(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestCreateAccount_Created(t *testing.T) {
	router, _ := testRouter(t, nil)

	limit := 5
	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", domain.AccountRequest{
		HolderDocument:       "12345678",
		HolderDocumentType:   "DNI",
		AccountType:          "SAVINGS",
		MonthlyMovementLimit: &limit,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var acc domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatal(err)
	}
	if len(acc.AccountNumber) != 11 {
		t.Errorf("expected 11-digit account number, got %q", acc.AccountNumber)
	}
}

func TestCreateAccount_RuleViolationIs422(t *testing.T) {
	router, _ := testRouter(t, nil)

	// Savings must not carry a maintenance fee.
	limit := 5
	fee := decimal.RequireFromString("1.00")
	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", domain.AccountRequest{
		HolderDocument:       "12345678",
		HolderDocumentType:   "DNI",
		AccountType:          "SAVINGS",
		MonthlyMovementLimit: &limit,
		MaintenanceFee:       &fee,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAccount_MalformedBodyIs400(t *testing.T) {
	router, _ := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetAccount_NotFoundIs404(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/accounts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	router, _ := testRouter(t, nil)

	limit := 5
	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", domain.AccountRequest{
		HolderDocument:       "12345678",
		HolderDocumentType:   "DNI",
		AccountType:          "SAVINGS",
		MonthlyMovementLimit: &limit,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var acc domain.Account
	json.Unmarshal(rec.Body.Bytes(), &acc)

	// Read back.
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+acc.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	// By document.
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/by-document/12345678", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by-document: expected 200, got %d", rec.Code)
	}

	// Limits.
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/limits", acc.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("limits: expected 200, got %d", rec.Code)
	}
	var limits domain.AccountLimitsResponse
	json.Unmarshal(rec.Body.Bytes(), &limits)
	if limits.FreeTransactionsLimit == nil || *limits.FreeTransactionsLimit != 5 {
		t.Errorf("expected free limit 5, got %v", limits.FreeTransactionsLimit)
	}

	// Balance operation.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/balance-operations", acc.ID), domain.BalanceOperationRequest{
		Amount:      decimal.RequireFromString("75"),
		OperationID: "op-http-1",
		Type:        "DEPOSIT",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("balance op: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var opResp domain.BalanceOperationResponse
	json.Unmarshal(rec.Body.Bytes(), &opResp)
	if !opResp.Applied || opResp.NewBalance.String() != "75" {
		t.Errorf("unexpected balance op response: %+v", opResp)
	}

	// Delete.
	rec = doJSON(t, router, http.MethodDelete, "/v1/accounts/"+acc.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+acc.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestServiceMetricsEndpoint(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/metrics/service", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot domain.ServiceMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("invalid snapshot payload: %v", err)
	}
}

func TestAuthProtectedRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	authSvc := service.NewAuthService("admin", string(hash), "test-key", 15*time.Minute, zap.NewNop())
	router, _ := testRouter(t, authSvc)

	// No token → 401.
	rec := doJSON(t, router, http.MethodGet, "/v1/accounts", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Bad credentials → 401.
	rec = doJSON(t, router, http.MethodPost, "/auth/login", domain.LoginRequest{Username: "admin", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", rec.Code)
	}

	// Login → token.
	rec = doJSON(t, router, http.MethodPost, "/auth/login", domain.LoginRequest{Username: "admin", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d: %s", rec.Code, rec.Body.String())
	}
	var login domain.LoginResponse
	json.Unmarshal(rec.Body.Bytes(), &login)

	// Token grants access.
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authed := httptest.NewRecorder()
	router.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", authed.Code)
	}
}
