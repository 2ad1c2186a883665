package service

import (
	"github.com/DianaPortal/NTT-AccountService/internal/domain"
)

// ValidateLegacyRules enforces the cross-account constraints evaluated at
// creation time, over the holder's already-existing accounts:
//
//   - BUSINESS customers may not open SAVINGS or FIXED_TERM; CHECKING is
//     unrestricted, duplicates included.
//   - PERSONAL customers may hold at most one SAVINGS and at most one
//     CHECKING account; FIXED_TERM is unrestricted.
//
// Pure evaluation over the supplied list; the caller fetches it, which lets
// the lifecycle service load it concurrently with the eligibility lookup.
func ValidateLegacyRules(existing []domain.Account, requested domain.AccountType, customerType string) error {
	if customerType == domain.CustomerTypeBusiness {
		if requested == domain.AccountTypeSavings || requested == domain.AccountTypeFixedTerm {
			return &domain.ErrBusinessRule{Reason: "Cliente BUSINESS no puede abrir SAVINGS ni FIXED_TERM."}
		}
		return nil
	}

	var hasSavings, hasChecking bool
	for _, acc := range existing {
		switch t, _ := domain.ParseAccountType(acc.AccountType); t {
		case domain.AccountTypeSavings:
			hasSavings = true
		case domain.AccountTypeChecking:
			hasChecking = true
		}
	}

	if requested == domain.AccountTypeSavings && hasSavings {
		return &domain.ErrBusinessRule{Reason: "Cliente PERSONAL ya tiene una cuenta de tipo SAVINGS."}
	}
	if requested == domain.AccountTypeChecking && hasChecking {
		return &domain.ErrBusinessRule{Reason: "Cliente PERSONAL ya tiene una cuenta de tipo CHECKING."}
	}
	return nil
}
