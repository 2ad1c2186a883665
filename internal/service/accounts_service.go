// Package service provides the business logic layer (use cases):
// account lifecycle, cross-account rules, commission policy and the
// balance-operation engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/config"
	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/numgen"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/accounts")

const (
	accountNumberLen   = 11
	interbankNumberLen = 20

	eligibilityCachePrefix = "eligibility::"
	creditCardCachePrefix  = "credits::hasActiveCard::"
)

// AccountService orchestrates the account lifecycle: creation with
// eligibility/rule/benefit checks, update with merge semantics, deletion,
// and the read operations.
type AccountService struct {
	store     port.AccountStore
	customers port.EligibilityGateway
	credits   port.CreditCardGateway

	eligCache port.Cache[domain.Eligibility]
	cardCache port.Cache[bool]

	cfg     *config.Config
	metrics *observability.Metrics
	logger  *zap.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewAccountService creates the lifecycle service with all dependencies injected.
func NewAccountService(
	store port.AccountStore,
	customers port.EligibilityGateway,
	credits port.CreditCardGateway,
	eligCache port.Cache[domain.Eligibility],
	cardCache port.Cache[bool],
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		store:     store,
		customers: customers,
		credits:   credits,
		eligCache: eligCache,
		cardCache: cardCache,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		Now:       time.Now,
	}
}

// ============================================================
// Reads
// ============================================================

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.ListAccounts")
	defer span.End()

	return s.store.FindAll(ctx)
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	return s.store.FindByID(ctx, id)
}

// GetAccountsByHolderDocument is used by the transactions service to resolve
// a customer's products.
func (s *AccountService) GetAccountsByHolderDocument(ctx context.Context, holderDocument string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetAccountsByHolderDocument")
	defer span.End()

	accounts, err := s.store.FindByHolderDocument(ctx, holderDocument)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, &domain.ErrNotFound{Resource: "accounts for document", ID: holderDocument}
	}
	return accounts, nil
}

// GetAccountLimits reports the commission policy of an account and the
// operations consumed in the current month. A stored counter from a past
// month reads as zero.
func (s *AccountService) GetAccountLimits(ctx context.Context, id string) (*domain.AccountLimitsResponse, error) {
	ctx, span := tracer.Start(ctx, "AccountService.GetAccountLimits")
	defer span.End()

	acc, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	used := 0
	if acc.OpsCounter != nil && acc.OpsCounter.YearMonth == yearMonth(s.Now()) {
		used = acc.OpsCounter.Count
	}

	return &domain.AccountLimitsResponse{
		FreeTransactionsLimit:     acc.FreeTransactionsLimit,
		CommissionFee:             acc.CommissionFee,
		UsedTransactionsThisMonth: used,
	}, nil
}

// ============================================================
// Creation
// ============================================================

// CreateAccount runs the full creation pipeline: structural validation,
// eligibility lookup, legacy cross-account rules, VIP/PYME benefit gates,
// policy defaults, number generation and persistence with bounded retry on
// number collisions.
func (s *AccountService) CreateAccount(ctx context.Context, req *domain.AccountRequest) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.CreateAccount")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_account", time.Since(start)) }()

	if err := ValidateAccountRequest(req); err != nil {
		return nil, err
	}
	accType, _ := domain.ParseAccountType(req.AccountType)
	span.SetAttributes(attribute.String("account.type", string(accType)))

	// Eligibility and the holder's existing accounts are independent
	// lookups; fetch them concurrently.
	var (
		elig     *domain.Eligibility
		existing []domain.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.getEligibility(gctx, req.HolderDocumentType, req.HolderDocument)
		if err != nil {
			var nf *domain.ErrNotFound
			if errors.As(err, &nf) {
				return &domain.ErrBusinessRule{Reason: "No existe cliente activo para el documento."}
			}
			return err
		}
		elig = e
		return nil
	})
	g.Go(func() error {
		accs, err := s.store.FindByHolderDocument(gctx, req.HolderDocument)
		if err != nil {
			return err
		}
		existing = accs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ValidateLegacyRules(existing, accType, elig.Type); err != nil {
		return nil, err
	}
	if err := s.checkBenefitGates(ctx, accType, elig); err != nil {
		return nil, err
	}

	acc := s.buildAccount(req, accType, elig)
	saved, err := s.saveWithFreshNumbers(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", saved.ID),
		zap.String("account_type", saved.AccountType),
		zap.String("holder_document", saved.HolderDocument),
	)
	return saved, nil
}

// checkBenefitGates enforces the credit-card requirements for VIP savings
// and PYME checking. When a gate's flag is off, the Credits service is not
// called at all.
func (s *AccountService) checkBenefitGates(ctx context.Context, accType domain.AccountType, elig *domain.Eligibility) error {
	isVipSavings := elig.Type == domain.CustomerTypePersonal &&
		elig.Profile == domain.CustomerProfileVIP &&
		accType == domain.AccountTypeSavings

	isPymeChecking := elig.Type == domain.CustomerTypeBusiness &&
		elig.Profile == domain.CustomerProfilePyme &&
		accType == domain.AccountTypeChecking

	switch {
	case isVipSavings && s.cfg.RequireCcForVip:
		has, err := s.hasActiveCreditCard(ctx, elig.CustomerID)
		if err != nil {
			return err
		}
		if !has {
			return &domain.ErrBusinessRule{Reason: "Ahorro VIP requiere tener Tarjeta de Crédito activa."}
		}
	case isPymeChecking && s.cfg.RequireCcForPyme:
		has, err := s.hasActiveCreditCard(ctx, elig.CustomerID)
		if err != nil {
			return err
		}
		if !has {
			return &domain.ErrBusinessRule{Reason: "Cuenta Corriente PYME requiere Tarjeta de Crédito activa."}
		}
	}
	return nil
}

// buildAccount maps the validated request into a fresh entity and fills the
// system-managed fields.
func (s *AccountService) buildAccount(req *domain.AccountRequest, accType domain.AccountType, elig *domain.Eligibility) *domain.Account {
	now := s.Now()
	creation := now

	acc := &domain.Account{
		ID:                 uuid.NewString(),
		HolderDocument:     req.HolderDocument,
		HolderDocumentType: req.HolderDocumentType,
		AuthorizedSigners:  NormalizeSigners(req.AuthorizedSigners),
		AccountType:        string(accType),
		Active:             true,
		Balance:            decimal.Zero,
		InterestRate:       req.InterestRate,

		MonthlyMovementLimit: req.MonthlyMovementLimit,
		MaintenanceFee:       req.MaintenanceFee,
		AllowedDayOfMonth:    req.AllowedDayOfMonth,

		FreeTransactionsLimit: req.FreeTransactionsLimit,
		CommissionFee:         req.CommissionFee,

		CreationDate: &creation,
		OpIDs:        []string{},
		OpsCounter:   &domain.OpsCounter{YearMonth: yearMonth(now), Count: 0},
	}

	if req.Active != nil {
		acc.Active = *req.Active
	}
	if req.Balance != nil {
		acc.Balance = *req.Balance
	}
	if req.LinkedCard != nil {
		acc.LinkedCard = &domain.LinkedCard{ID: req.LinkedCard.ID}
	}

	// PYME benefit: checking accounts opened by PYME customers carry no
	// maintenance fee, regardless of what the caller supplied.
	if elig.Type == domain.CustomerTypeBusiness &&
		elig.Profile == domain.CustomerProfilePyme &&
		accType == domain.AccountTypeChecking {
		zero := decimal.Zero
		acc.MaintenanceFee = &zero
	}

	ApplyPolicyDefaults(acc, accType, s.cfg.Policy)
	return acc
}

// saveWithFreshNumbers persists a new account, regenerating both numbers and
// retrying on unique-index collisions until the budget runs out. An explicit
// bounded loop: each attempt is a full new write, not a compare-and-swap.
func (s *AccountService) saveWithFreshNumbers(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	acc.AccountNumber = numgen.Numeric(accountNumberLen)
	acc.InterbankNumber = numgen.Numeric(interbankNumberLen)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.NumberRetryBudget; attempt++ {
		saved, err := s.store.Save(ctx, acc)
		if err == nil {
			return saved, nil
		}
		lastErr = err

		var conflict *domain.ErrConflict
		if !errors.As(err, &conflict) {
			return nil, err
		}

		s.metrics.IncrNumberCollision()
		s.logger.Warn("account number collision, regenerating",
			zap.String("account_number", acc.AccountNumber),
			zap.Int("attempt", attempt+1),
		)
		acc.AccountNumber = numgen.Numeric(accountNumberLen)
		acc.InterbankNumber = numgen.Numeric(interbankNumberLen)
	}
	return nil, lastErr
}

// ============================================================
// Update / delete
// ============================================================

// UpdateAccount validates the request, merges the present fields into the
// stored entity and persists. accountNumber, interbankNumber and
// creationDate stay immutable.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req *domain.AccountRequest) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountService.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	if err := ValidateAccountRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	accountNumber := existing.AccountNumber
	interbankNumber := existing.InterbankNumber
	creationDate := existing.CreationDate

	mergeAccountRequest(existing, req)

	existing.AccountNumber = accountNumber
	existing.InterbankNumber = interbankNumber
	existing.CreationDate = creationDate

	return s.store.Save(ctx, existing)
}

func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "AccountService.DeleteAccount")
	defer span.End()

	if _, err := s.store.FindByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteByID(ctx, id)
}

// mergeAccountRequest copies only the present fields of the request into the
// entity. Signers, when present, fully replace the stored set after
// normalization. A present linkedCard creates the holder if absent and
// overwrites its id.
func mergeAccountRequest(target *domain.Account, req *domain.AccountRequest) {
	if req.HolderDocument != "" {
		target.HolderDocument = req.HolderDocument
	}
	if req.HolderDocumentType != "" {
		target.HolderDocumentType = req.HolderDocumentType
	}
	if req.AccountType != "" {
		if t, ok := domain.ParseAccountType(req.AccountType); ok {
			target.AccountType = string(t)
		}
	}
	if req.Active != nil {
		target.Active = *req.Active
	}
	if req.Balance != nil {
		target.Balance = *req.Balance
	}
	if req.InterestRate != nil {
		target.InterestRate = req.InterestRate
	}
	if req.MonthlyMovementLimit != nil {
		target.MonthlyMovementLimit = req.MonthlyMovementLimit
	}
	if req.MaintenanceFee != nil {
		target.MaintenanceFee = req.MaintenanceFee
	}
	if req.AllowedDayOfMonth != nil {
		target.AllowedDayOfMonth = req.AllowedDayOfMonth
	}
	if req.FreeTransactionsLimit != nil {
		target.FreeTransactionsLimit = req.FreeTransactionsLimit
	}
	if req.CommissionFee != nil {
		target.CommissionFee = req.CommissionFee
	}
	if req.AuthorizedSigners != nil {
		target.AuthorizedSigners = NormalizeSigners(req.AuthorizedSigners)
	}
	if req.LinkedCard != nil {
		if target.LinkedCard == nil {
			target.LinkedCard = &domain.LinkedCard{}
		}
		target.LinkedCard.ID = req.LinkedCard.ID
	}
}

// ============================================================
// Cached gateway lookups
// ============================================================

func (s *AccountService) getEligibility(ctx context.Context, documentType, documentNumber string) (*domain.Eligibility, error) {
	key := fmt.Sprintf("%s%s:%s", eligibilityCachePrefix, documentType, documentNumber)
	if cached, ok := s.eligCache.Get(key); ok {
		s.metrics.IncrCacheHit("eligibility")
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("eligibility")

	elig, err := s.customers.GetEligibility(ctx, documentType, documentNumber)
	if err != nil {
		return nil, err
	}
	s.eligCache.Set(key, *elig, s.cfg.EligibilityCacheTTL)
	return elig, nil
}

func (s *AccountService) hasActiveCreditCard(ctx context.Context, customerID string) (bool, error) {
	key := creditCardCachePrefix + customerID
	if cached, ok := s.cardCache.Get(key); ok {
		s.metrics.IncrCacheHit("credit_card")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("credit_card")

	has, err := s.credits.HasActiveCreditCard(ctx, customerID)
	if err != nil {
		return false, err
	}
	s.cardCache.Set(key, has, s.cfg.CreditCardCacheTTL)
	return has, nil
}

// yearMonth formats a time as the calendar-month key stored in OpsCounter.
func yearMonth(t time.Time) string {
	return t.Format("2006-01")
}
