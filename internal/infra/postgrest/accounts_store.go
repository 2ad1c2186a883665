// Package postgrest persists accounts through a PostgREST endpoint
// (Supabase-compatible). The accounts table carries unique indexes on
// account_number and interbank_number.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgrest")

// AccountStore implements port.AccountStore over PostgREST.
type AccountStore struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	serviceKey string
	logger     *zap.Logger
}

func NewAccountStore(httpClient *http.Client, baseURL, apiKey, serviceKey string, logger *zap.Logger) *AccountStore {
	return &AccountStore{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		serviceKey: serviceKey,
		logger:     logger,
	}
}

// accountRow maps the accounts table columns to the domain aggregate.
type accountRow struct {
	ID                    string           `json:"id"`
	AccountNumber         string           `json:"account_number"`
	InterbankNumber       string           `json:"interbank_number"`
	HolderDocument        string           `json:"holder_document"`
	HolderDocumentType    string           `json:"holder_document_type,omitempty"`
	AuthorizedSigners     []string         `json:"authorized_signers,omitempty"`
	AccountType           string           `json:"account_type"`
	Active                bool             `json:"active"`
	Balance               decimal.Decimal  `json:"balance"`
	InterestRate          *decimal.Decimal `json:"interest_rate,omitempty"`
	MonthlyMovementLimit  *int             `json:"monthly_movement_limit,omitempty"`
	MaintenanceFee        *decimal.Decimal `json:"maintenance_fee,omitempty"`
	AllowedDayOfMonth     *int             `json:"allowed_day_of_month,omitempty"`
	FreeTransactionsLimit *int             `json:"free_transactions_limit,omitempty"`
	CommissionFee         *decimal.Decimal `json:"commission_fee,omitempty"`
	CreationDate          *time.Time       `json:"creation_date,omitempty"`
	LinkedCardID          *string          `json:"linked_card_id,omitempty"`
	OpIDs                 []string         `json:"op_ids,omitempty"`
	OpsYearMonth          *string          `json:"ops_year_month,omitempty"`
	OpsCount              *int             `json:"ops_count,omitempty"`
}

func toRow(acc *domain.Account) accountRow {
	row := accountRow{
		ID:                    acc.ID,
		AccountNumber:         acc.AccountNumber,
		InterbankNumber:       acc.InterbankNumber,
		HolderDocument:        acc.HolderDocument,
		HolderDocumentType:    acc.HolderDocumentType,
		AuthorizedSigners:     acc.AuthorizedSigners,
		AccountType:           acc.AccountType,
		Active:                acc.Active,
		Balance:               acc.Balance,
		InterestRate:          acc.InterestRate,
		MonthlyMovementLimit:  acc.MonthlyMovementLimit,
		MaintenanceFee:        acc.MaintenanceFee,
		AllowedDayOfMonth:     acc.AllowedDayOfMonth,
		FreeTransactionsLimit: acc.FreeTransactionsLimit,
		CommissionFee:         acc.CommissionFee,
		CreationDate:          acc.CreationDate,
		OpIDs:                 acc.OpIDs,
	}
	if acc.LinkedCard != nil {
		row.LinkedCardID = &acc.LinkedCard.ID
	}
	if acc.OpsCounter != nil {
		ym := acc.OpsCounter.YearMonth
		count := acc.OpsCounter.Count
		row.OpsYearMonth = &ym
		row.OpsCount = &count
	}
	return row
}

func fromRow(row accountRow) domain.Account {
	acc := domain.Account{
		ID:                    row.ID,
		AccountNumber:         row.AccountNumber,
		InterbankNumber:       row.InterbankNumber,
		HolderDocument:        row.HolderDocument,
		HolderDocumentType:    row.HolderDocumentType,
		AuthorizedSigners:     row.AuthorizedSigners,
		AccountType:           row.AccountType,
		Active:                row.Active,
		Balance:               row.Balance,
		InterestRate:          row.InterestRate,
		MonthlyMovementLimit:  row.MonthlyMovementLimit,
		MaintenanceFee:        row.MaintenanceFee,
		AllowedDayOfMonth:     row.AllowedDayOfMonth,
		FreeTransactionsLimit: row.FreeTransactionsLimit,
		CommissionFee:         row.CommissionFee,
		CreationDate:          row.CreationDate,
		OpIDs:                 row.OpIDs,
	}
	if row.LinkedCardID != nil {
		acc.LinkedCard = &domain.LinkedCard{ID: *row.LinkedCardID}
	}
	if row.OpsYearMonth != nil {
		count := 0
		if row.OpsCount != nil {
			count = *row.OpsCount
		}
		acc.OpsCounter = &domain.OpsCounter{YearMonth: *row.OpsYearMonth, Count: count}
	}
	return acc
}

// doRequest executes an authenticated request against PostgREST.
func (s *AccountStore) doRequest(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(raw)
	}

	reqURL := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		s.logger.Error("postgrest: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.serviceKey))
	req.Header.Set("Content-Type", "application/json")
	// merge-duplicates makes POST with on_conflict behave as an upsert.
	req.Header.Set("Prefer", "return=representation,resolution=merge-duplicates")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("postgrest: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("postgrest: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
	}

	return raw, resp.StatusCode, nil
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountStore.FindByID")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	path := fmt.Sprintf("accounts?id=eq.%s&limit=1", url.QueryEscape(id))
	body, status, err := s.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("status %d", status)}
	}

	var rows []accountRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("decode accounts: %w", err)}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}

	acc := fromRow(rows[0])
	return &acc, nil
}

func (s *AccountStore) FindAll(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountStore.FindAll")
	defer span.End()

	body, status, err := s.doRequest(ctx, http.MethodGet, "accounts?order=creation_date.desc", nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("status %d", status)}
	}

	return decodeRows(body)
}

func (s *AccountStore) FindByHolderDocument(ctx context.Context, document string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountStore.FindByHolderDocument")
	defer span.End()
	span.SetAttributes(attribute.String("account.holder_document", document))

	path := fmt.Sprintf("accounts?holder_document=eq.%s", url.QueryEscape(document))
	body, status, err := s.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("status %d", status)}
	}

	return decodeRows(body)
}

// Save upserts the account row. Unique-index violations on the generated
// numbers surface as ErrConflict so callers can regenerate and retry.
func (s *AccountStore) Save(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountStore.Save")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", acc.ID))

	path := "accounts?on_conflict=id"
	body, status, err := s.doRequest(ctx, http.MethodPost, path, []accountRow{toRow(acc)})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	if status == http.StatusConflict || strings.Contains(string(body), "23505") {
		return nil, &domain.ErrConflict{Message: "account number already in use"}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("status %d: %s", status, string(body))}
	}

	var rows []accountRow
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		// representation missing; echo back the input
		saved := *acc
		return &saved, nil
	}
	saved := fromRow(rows[0])
	return &saved, nil
}

func (s *AccountStore) DeleteByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "AccountStore.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	path := fmt.Sprintf("accounts?id=eq.%s", url.QueryEscape(id))
	body, status, err := s.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if status < 200 || status >= 300 {
		return &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("status %d", status)}
	}
	if len(body) == 0 || string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return nil
}

func decodeRows(body []byte) ([]domain.Account, error) {
	var rows []accountRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("decode accounts: %w", err)}
	}
	out := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}
