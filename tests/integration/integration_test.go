package integration_test

import (
	"bytes"
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
	"github.com/DianaPortal/NTT-AccountService/internal/infra/client"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/memstore"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/resilience"
	"github.com/DianaPortal/NTT-AccountService/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TestIntegration_FullFlow spins up mock external services and exercises
// account creation plus balance operations through the real router and
// gateways.
func TestIntegration_FullFlow(t *testing.T) {
	// --- Mock Customers API ---
	customersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/eligibility" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("documentNumber") == "99999999" {
			http.NotFound(w, r)
			return
		}
		elig := domain.Eligibility{
			CustomerID: "cust-int-1",
			Type:       domain.CustomerTypePersonal,
			Profile:    domain.CustomerProfileVIP,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(elig)
	}))
	defer customersServer.Close()

	// --- Mock Credits API: the VIP customer holds an active card ---
	creditsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		products := []map[string]string{
			{"id": "card-1", "type": "CREDIT_CARD", "status": "ACTIVE"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(products)
	}))
	defer creditsServer.Close()

	// --- Wiring ---
	cfg := &config.Config{
		HTTPTimeout:         5 * time.Second,
		MaxRetries:          1,
		InitialBackoff:      10 * time.Millisecond,
		MaxConcurrency:      10,
		EligibilityCacheTTL: time.Minute,
		CreditCardCacheTTL:  time.Minute,
		NumberRetryBudget:   3,
		OpIDsCap:            200,
		Policy: config.PolicyDefaults{
			SavingsFreeOps:  2,
			SavingsFee:      decimal.RequireFromString("1.50"),
			CheckingFreeOps: 10,
			CheckingFee:     decimal.RequireFromString("0.90"),
		},
		RequireCcForVip:  true,
		RequireCcForPyme: true,
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	customersClient := client.NewCustomersClient(httpClient, customersServer.URL, resilience.NewCircuitBreaker("customers"), resilienceCfg, metrics)
	creditsClient := client.NewCreditsClient(httpClient, creditsServer.URL, resilience.NewCircuitBreaker("credits"), resilienceCfg, metrics)

	store := memstore.NewAccountStore()
	accountSvc := service.NewAccountService(
		store, customersClient, creditsClient,
		cache.New[domain.Eligibility](time.Minute),
		cache.New[bool](time.Minute),
		cfg, metrics, logger,
	)
	balanceSvc := service.NewBalanceService(store, cfg.OpIDsCap, metrics, logger)

	router := handler.NewRouter(accountSvc, balanceSvc, nil, metrics, logger)
	server := httptest.NewServer(router)
	defer server.Close()

	// --- Create a VIP savings account (gate passes: active card) ---
	limit := 5
	createBody, _ := json.Marshal(domain.AccountRequest{
		HolderDocument:       "12345678",
		HolderDocumentType:   "DNI",
		AccountType:          "SAVINGS",
		MonthlyMovementLimit: &limit,
	})
	resp, err := http.Post(server.URL+"/v1/accounts", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var acc domain.Account
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		t.Fatal(err)
	}
	if len(acc.AccountNumber) != 11 || len(acc.InterbankNumber) != 20 {
		t.Errorf("unexpected generated numbers: %q / %q", acc.AccountNumber, acc.InterbankNumber)
	}

	// --- Deposits beyond the free allowance report a commission ---
	var lastOp domain.BalanceOperationResponse
	for i := 0; i < 3; i++ {
		opBody, _ := json.Marshal(domain.BalanceOperationRequest{
			Amount:      decimal.RequireFromString("100"),
			OperationID: fmt.Sprintf("int-op-%d", i),
			Type:        "DEPOSIT",
		})
		opResp, err := http.Post(
			fmt.Sprintf("%s/v1/accounts/%s/balance-operations", server.URL, acc.ID),
			"application/json", bytes.NewReader(opBody),
		)
		if err != nil {
			t.Fatal(err)
		}
		if opResp.StatusCode != http.StatusOK {
			t.Fatalf("op %d: expected 200, got %d", i, opResp.StatusCode)
		}
		if err := json.NewDecoder(opResp.Body).Decode(&lastOp); err != nil {
			t.Fatal(err)
		}
		opResp.Body.Close()
	}
	if lastOp.NewBalance.String() != "300" {
		t.Errorf("expected balance 300, got %s", lastOp.NewBalance.String())
	}
	if lastOp.CommissionApplied.String() != "1.5" {
		t.Errorf("expected commission 1.5 on the third op, got %s", lastOp.CommissionApplied.String())
	}

	// --- Unknown holder document is a business rejection ---
	unknownBody, _ := json.Marshal(domain.AccountRequest{
		HolderDocument:       "99999999",
		HolderDocumentType:   "DNI",
		AccountType:          "SAVINGS",
		MonthlyMovementLimit: &limit,
	})
	unknownResp, err := http.Post(server.URL+"/v1/accounts", "application/json", bytes.NewReader(unknownBody))
	if err != nil {
		t.Fatal(err)
	}
	defer unknownResp.Body.Close()
	if unknownResp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown customer, got %d", unknownResp.StatusCode)
	}
}
