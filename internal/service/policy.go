package service

import (
	"github.com/DianaPortal/NTT-AccountService/internal/config"
	"github.com/DianaPortal/NTT-AccountService/internal/domain"
)

// ApplyPolicyDefaults fills freeTransactionsLimit and commissionFee from the
// configured per-type defaults, but only when the current value is absent or
// negative. An explicitly supplied valid value is never overridden.
func ApplyPolicyDefaults(acc *domain.Account, accType domain.AccountType, policy config.PolicyDefaults) {
	if acc.FreeTransactionsLimit == nil || *acc.FreeTransactionsLimit < 0 {
		var freeOps int
		switch accType {
		case domain.AccountTypeSavings:
			freeOps = policy.SavingsFreeOps
		case domain.AccountTypeChecking:
			freeOps = policy.CheckingFreeOps
		case domain.AccountTypeFixedTerm:
			freeOps = policy.FixedFreeOps
		}
		acc.FreeTransactionsLimit = &freeOps
	}

	if acc.CommissionFee == nil || acc.CommissionFee.IsNegative() {
		fee := policy.FixedFee
		switch accType {
		case domain.AccountTypeSavings:
			fee = policy.SavingsFee
		case domain.AccountTypeChecking:
			fee = policy.CheckingFee
		}
		acc.CommissionFee = &fee
	}
}
