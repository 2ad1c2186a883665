// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
)

// AccountStore is the keyed entity store for the Account aggregate.
// Save is an upsert; it must return *domain.ErrConflict when the unique
// indexes on account_number / interbank_number are violated.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindAll(ctx context.Context) ([]domain.Account, error)
	FindByHolderDocument(ctx context.Context, holderDocument string) ([]domain.Account, error)
	Save(ctx context.Context, acc *domain.Account) (*domain.Account, error)
	DeleteByID(ctx context.Context, id string) error
}

// EligibilityGateway resolves a holder document to its customer
// classification in the Customers service. Returns *domain.ErrNotFound when
// no active customer exists for the document.
type EligibilityGateway interface {
	GetEligibility(ctx context.Context, documentType, documentNumber string) (*domain.Eligibility, error)
}

// CreditCardGateway checks credit products in the Credits service.
type CreditCardGateway interface {
	HasActiveCreditCard(ctx context.Context, customerID string) (bool, error)
}

// Cache provides generic caching with a TTL per entry.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
	Delete(key string)
}
