package service

import (
	"context"
	"strings"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BalanceService applies idempotent balance operations against an account:
// deposit, withdrawal, transfer in/out and commission.
//
// Each call is one load → mutate → save cycle against a fresh snapshot. The
// opIds ledger makes resubmission of the same operationId a no-op, but two
// different operationIds racing on the same account are not serialized here;
// that ordering gap belongs to the persistence layer.
type BalanceService struct {
	store    port.AccountStore
	opIDsCap int
	metrics  *observability.Metrics
	logger   *zap.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewBalanceService creates the balance-operation engine. opIDsCap bounds
// the idempotency ledger (oldest entries evicted first).
func NewBalanceService(store port.AccountStore, opIDsCap int, metrics *observability.Metrics, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		store:    store,
		opIDsCap: opIDsCap,
		metrics:  metrics,
		logger:   logger,
		Now:      time.Now,
	}
}

// Apply runs one balance operation through the state machine: idempotency
// check, FIXED_TERM day gate, sufficient-funds check, monthly counter
// roll-over, commission determination, mutation, persist.
func (s *BalanceService) Apply(ctx context.Context, accountID string, req *domain.BalanceOperationRequest) (*domain.BalanceOperationResponse, error) {
	ctx, span := tracer.Start(ctx, "BalanceService.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("operation.type", req.Type),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("balance_operation", time.Since(start)) }()

	// Preconditions, checked before any storage read.
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "debe ser > 0"}
	}
	if strings.TrimSpace(req.OperationID) == "" {
		return nil, &domain.ErrValidation{Field: "operation_id", Message: "es obligatorio"}
	}
	opType, ok := domain.ParseOperationType(req.Type)
	if !ok {
		return nil, &domain.ErrValidation{Field: "type", Message: "tipo de operación no soportado"}
	}

	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// 1. Idempotency: an already-seen operationId returns the current state
	// unchanged, with no further checks and no write.
	if containsOpID(acc.OpIDs, req.OperationID) {
		s.metrics.IncrBalanceOperation(string(opType), "idempotent")
		return &domain.BalanceOperationResponse{
			Applied:           false,
			NewBalance:        acc.Balance,
			CommissionApplied: decimal.Zero,
			Message:           "Idempotente",
		}, nil
	}

	// 2. FIXED_TERM accounts only accept debits on their allowed day.
	if err := s.checkFixedTermDay(acc, opType); err != nil {
		s.metrics.IncrBalanceOperation(string(opType), "rejected")
		return nil, err
	}

	// 3. Debits may not drive the balance negative.
	delta := opType.Delta(req.Amount)
	if opType.IsDebit() && acc.Balance.Add(delta).IsNegative() {
		s.metrics.IncrBalanceOperation(string(opType), "rejected")
		return nil, &domain.ErrBusinessRule{Reason: "Saldo insuficiente"}
	}

	// 4. Monthly counter roll-over.
	ymNow := yearMonth(s.Now())
	counter := acc.OpsCounter
	if counter == nil || counter.YearMonth != ymNow {
		counter = &domain.OpsCounter{YearMonth: ymNow, Count: 0}
	}

	// 5. Commission: reported once the free allowance is exceeded, never
	// debited here.
	counts := opType.CountsForPolicy()
	nextCount := counter.Count
	if counts {
		nextCount++
	}
	free := 0
	if acc.FreeTransactionsLimit != nil {
		free = *acc.FreeTransactionsLimit
	}
	commission := decimal.Zero
	if counts && nextCount > free && acc.CommissionFee != nil {
		commission = *acc.CommissionFee
	}

	// 6. Apply the mutation and record the operation id.
	acc.Balance = acc.Balance.Add(delta)
	counter.Count = nextCount
	acc.OpsCounter = counter
	acc.OpIDs = appendBounded(acc.OpIDs, req.OperationID, s.opIDsCap)

	saved, err := s.store.Save(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrBalanceOperation(string(opType), "applied")
	s.logger.Info("balance operation applied",
		zap.String("account_id", accountID),
		zap.String("operation_id", req.OperationID),
		zap.String("type", string(opType)),
		zap.String("new_balance", saved.Balance.String()),
	)

	return &domain.BalanceOperationResponse{
		Applied:           true,
		NewBalance:        saved.Balance,
		CommissionApplied: commission,
		Message:           "OK",
	}, nil
}

func (s *BalanceService) checkFixedTermDay(acc *domain.Account, opType domain.OperationType) error {
	accType, _ := domain.ParseAccountType(acc.AccountType)
	if accType != domain.AccountTypeFixedTerm || !opType.IsDebit() {
		return nil
	}
	today := s.Now().Day()
	if acc.AllowedDayOfMonth == nil || *acc.AllowedDayOfMonth != today {
		return &domain.ErrBusinessRule{Reason: "Día no permitido para débito en FIXED_TERM"}
	}
	return nil
}

func containsOpID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// appendBounded appends id and keeps only the newest cap entries, evicting
// from the front. The trim is a single copy of the retained window rather
// than a per-element shift.
func appendBounded(ids []string, id string, limit int) []string {
	ids = append(ids, id)
	if limit > 0 && len(ids) > limit {
		trimmed := make([]string, limit)
		copy(trimmed, ids[len(ids)-limit:])
		return trimmed
	}
	return ids
}
