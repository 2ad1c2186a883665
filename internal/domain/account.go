package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Account aggregate
// ============================================================

// AccountType classifies an account. It is fixed at creation and decides
// which type-specific fields are legal.
type AccountType string

const (
	AccountTypeSavings   AccountType = "SAVINGS"
	AccountTypeChecking  AccountType = "CHECKING"
	AccountTypeFixedTerm AccountType = "FIXED_TERM"
)

// ParseAccountType maps a stored string to an AccountType. Unknown values
// yield ok=false instead of an error: persisted documents may carry values
// written by older versions and reads must not fail on them.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(s))) {
	case AccountTypeSavings:
		return AccountTypeSavings, true
	case AccountTypeChecking:
		return AccountTypeChecking, true
	case AccountTypeFixedTerm:
		return AccountTypeFixedTerm, true
	}
	return "", false
}

// DocumentType classifies the holder's identity document.
type DocumentType string

const (
	DocumentTypeDNI      DocumentType = "DNI"
	DocumentTypeCE       DocumentType = "CE"
	DocumentTypeRUC      DocumentType = "RUC"
	DocumentTypePassport DocumentType = "PASSPORT"
)

// ParseDocumentType behaves like ParseAccountType: lenient on unknowns.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(s))) {
	case DocumentTypeDNI:
		return DocumentTypeDNI, true
	case DocumentTypeCE:
		return DocumentTypeCE, true
	case DocumentTypeRUC:
		return DocumentTypeRUC, true
	case DocumentTypePassport:
		return DocumentTypePassport, true
	}
	return "", false
}

// OpsCounter tracks how many policy-counted operations ran in a calendar
// month. The counter resets implicitly whenever YearMonth differs from the
// current month.
type OpsCounter struct {
	YearMonth string `json:"year_month"`
	Count     int    `json:"count"`
}

// LinkedCard references an external card entity by id only. No cascading.
type LinkedCard struct {
	ID string `json:"id"`
}

// Account is the persisted aggregate root.
//
// accountNumber and interbankNumber are globally unique; the store enforces
// that with unique indexes and signals violations as ErrConflict.
type Account struct {
	ID              string `json:"id"`
	AccountNumber   string `json:"account_number"`   // 11 digits
	InterbankNumber string `json:"interbank_number"` // 20 digits

	HolderDocument     string   `json:"holder_document"`
	HolderDocumentType string   `json:"holder_document_type"`
	AuthorizedSigners  []string `json:"authorized_signers,omitempty"`

	AccountType string `json:"account_type"` // SAVINGS | CHECKING | FIXED_TERM
	Active      bool   `json:"active"`

	Balance      decimal.Decimal  `json:"balance"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`

	// Type-specific fields. Exactly one group is populated, matching AccountType.
	MonthlyMovementLimit *int             `json:"monthly_movement_limit,omitempty"` // SAVINGS, CHECKING
	MaintenanceFee       *decimal.Decimal `json:"maintenance_fee,omitempty"`        // CHECKING
	AllowedDayOfMonth    *int             `json:"allowed_day_of_month,omitempty"`   // FIXED_TERM, 1..28

	// Per-account commission policy. Defaulted from config at creation when
	// absent or negative.
	FreeTransactionsLimit *int             `json:"free_transactions_limit,omitempty"`
	CommissionFee         *decimal.Decimal `json:"commission_fee,omitempty"`

	CreationDate *time.Time  `json:"creation_date,omitempty"`
	LinkedCard   *LinkedCard `json:"linked_card,omitempty"`

	// Idempotency ledger for balance operations, bounded FIFO.
	OpIDs      []string    `json:"op_ids,omitempty"`
	OpsCounter *OpsCounter `json:"ops_counter,omitempty"`
}

// ============================================================
// Requests / responses
// ============================================================

// AccountRequest is the creation/update payload. All fields are optional at
// the wire level; the validator decides what is required for which type.
// On update, absent fields leave the stored value untouched.
type AccountRequest struct {
	HolderDocument     string   `json:"holder_document"`
	HolderDocumentType string   `json:"holder_document_type"`
	AuthorizedSigners  []string `json:"authorized_signers,omitempty"`

	AccountType string `json:"account_type"`
	Active      *bool  `json:"active,omitempty"`

	Balance      *decimal.Decimal `json:"balance,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`

	MonthlyMovementLimit *int             `json:"monthly_movement_limit,omitempty"`
	MaintenanceFee       *decimal.Decimal `json:"maintenance_fee,omitempty"`
	AllowedDayOfMonth    *int             `json:"allowed_day_of_month,omitempty"`

	FreeTransactionsLimit *int             `json:"free_transactions_limit,omitempty"`
	CommissionFee         *decimal.Decimal `json:"commission_fee,omitempty"`

	LinkedCard *LinkedCard `json:"linked_card,omitempty"`
}

// AccountLimitsResponse reports the per-account commission policy and how
// much of the free allowance the current month has consumed.
type AccountLimitsResponse struct {
	FreeTransactionsLimit     *int             `json:"free_transactions_limit"`
	CommissionFee             *decimal.Decimal `json:"commission_fee"`
	UsedTransactionsThisMonth int              `json:"used_transactions_this_month"`
}

// ============================================================
// Balance operations
// ============================================================

// OperationType classifies a balance operation.
type OperationType string

const (
	OperationDeposit     OperationType = "DEPOSIT"
	OperationWithdrawal  OperationType = "WITHDRAWAL"
	OperationTransferIn  OperationType = "TRANSFER_IN"
	OperationTransferOut OperationType = "TRANSFER_OUT"
	OperationCommission  OperationType = "COMMISSION"
)

// ParseOperationType is lenient like ParseAccountType.
func ParseOperationType(s string) (OperationType, bool) {
	switch OperationType(strings.ToUpper(strings.TrimSpace(s))) {
	case OperationDeposit:
		return OperationDeposit, true
	case OperationWithdrawal:
		return OperationWithdrawal, true
	case OperationTransferIn:
		return OperationTransferIn, true
	case OperationTransferOut:
		return OperationTransferOut, true
	case OperationCommission:
		return OperationCommission, true
	}
	return "", false
}

// IsDebit reports whether the operation reduces the balance.
func (t OperationType) IsDebit() bool {
	return t == OperationWithdrawal || t == OperationTransferOut
}

// CountsForPolicy reports whether the operation consumes the monthly free
// allowance. COMMISSION never does.
func (t OperationType) CountsForPolicy() bool {
	switch t {
	case OperationDeposit, OperationWithdrawal, OperationTransferIn, OperationTransferOut:
		return true
	}
	return false
}

// Delta returns the signed balance change for the given amount.
func (t OperationType) Delta(amount decimal.Decimal) decimal.Decimal {
	switch t {
	case OperationDeposit, OperationTransferIn:
		return amount
	case OperationWithdrawal, OperationTransferOut:
		return amount.Neg()
	}
	return decimal.Zero
}

// BalanceOperationRequest is the payload of a balance mutation. OperationID
// is the caller-supplied idempotency key.
type BalanceOperationRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	OperationID string          `json:"operation_id"`
	Type        string          `json:"type"`
}

// BalanceOperationResponse reports the outcome of a balance mutation.
// CommissionApplied is reported, not debited: only the operation delta moves
// the balance.
type BalanceOperationResponse struct {
	Applied           bool            `json:"applied"`
	NewBalance        decimal.Decimal `json:"new_balance"`
	CommissionApplied decimal.Decimal `json:"commission_applied"`
	Message           string          `json:"message"`
}

// ============================================================
// Eligibility (external customer registry)
// ============================================================

const (
	CustomerTypePersonal = "PERSONAL"
	CustomerTypeBusiness = "BUSINESS"

	CustomerProfileStandard = "STANDARD"
	CustomerProfileVIP      = "VIP"
	CustomerProfilePyme     = "PYME"
)

// Eligibility is the resolved customer classification returned by the
// Customers service for a holder document.
type Eligibility struct {
	CustomerID string `json:"customer_id"`
	Type       string `json:"type"`    // PERSONAL | BUSINESS
	Profile    string `json:"profile"` // STANDARD | VIP | PYME
}

// ============================================================
// Auth
// ============================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	TokenType string `json:"token_type"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// ServiceMetrics is the snapshot served by GET /v1/metrics/service.
type ServiceMetrics struct {
	TotalRequests     int64   `json:"total_requests"`
	ErrorRate         float64 `json:"error_rate"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	NumberCollisions  int64   `json:"number_collisions"`
	BalanceOperations int64   `json:"balance_operations"`
	Period            string  `json:"period"`
}
