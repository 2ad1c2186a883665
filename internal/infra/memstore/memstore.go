// Package memstore provides an in-memory AccountStore used in development
// mode and in tests. It enforces the same uniqueness guarantees as the
// PostgREST-backed store.
package memstore

import (
	"context"
	"sync"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
)

// AccountStore keeps accounts in a map guarded by a mutex. Account and
// interbank numbers are unique across all stored accounts.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	copied := cloneAccount(acc)
	return &copied, nil
}

func (s *AccountStore) FindAll(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, cloneAccount(acc))
	}
	return out, nil
}

func (s *AccountStore) FindByHolderDocument(ctx context.Context, document string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Account
	for _, acc := range s.accounts {
		if acc.HolderDocument == document {
			out = append(out, cloneAccount(acc))
		}
	}
	return out, nil
}

// Save upserts the account. It returns ErrConflict when another account
// already holds the same account number or interbank number.
func (s *AccountStore) Save(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.accounts {
		if id == acc.ID {
			continue
		}
		if existing.AccountNumber == acc.AccountNumber {
			return nil, &domain.ErrConflict{Message: "account number already in use"}
		}
		if existing.InterbankNumber == acc.InterbankNumber {
			return nil, &domain.ErrConflict{Message: "interbank number already in use"}
		}
	}

	s.accounts[acc.ID] = cloneAccount(*acc)
	saved := cloneAccount(*acc)
	return &saved, nil
}

func (s *AccountStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	delete(s.accounts, id)
	return nil
}

// cloneAccount deep-copies the slices so callers cannot mutate stored state.
func cloneAccount(acc domain.Account) domain.Account {
	if acc.AuthorizedSigners != nil {
		signers := make([]string, len(acc.AuthorizedSigners))
		copy(signers, acc.AuthorizedSigners)
		acc.AuthorizedSigners = signers
	}
	if acc.OpIDs != nil {
		ops := make([]string, len(acc.OpIDs))
		copy(ops, acc.OpIDs)
		acc.OpIDs = ops
	}
	if acc.OpsCounter != nil {
		counter := *acc.OpsCounter
		acc.OpsCounter = &counter
	}
	if acc.LinkedCard != nil {
		card := *acc.LinkedCard
		acc.LinkedCard = &card
	}
	return acc
}
