package service

import (
	"regexp"
	"strings"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
)

var holderDocumentPattern = regexp.MustCompile(`^\d{8,11}$`)

// ValidateAccountRequest runs the structural validation of a creation/update
// request. Rules run in order; the first failure wins. It never touches
// storage or other services.
func ValidateAccountRequest(req *domain.AccountRequest) error {
	if req == nil {
		return &domain.ErrBusinessRule{Reason: "la solicitud de cuenta no puede ser nula"}
	}

	doc := strings.TrimSpace(req.HolderDocument)
	if doc == "" {
		return &domain.ErrBusinessRule{Reason: "holderDocument es obligatorio"}
	}
	if !holderDocumentPattern.MatchString(doc) {
		return &domain.ErrBusinessRule{Reason: "El documento debe tener entre 8 y 11 dígitos"}
	}
	if strings.TrimSpace(req.HolderDocumentType) == "" {
		return &domain.ErrBusinessRule{Reason: "holderDocumentType es obligatorio"}
	}
	if strings.TrimSpace(req.AccountType) == "" {
		return &domain.ErrBusinessRule{Reason: "accountType es obligatorio"}
	}

	accType, ok := domain.ParseAccountType(req.AccountType)
	if !ok {
		return &domain.ErrBusinessRule{Reason: "Tipo de cuenta no soportado"}
	}

	if req.Balance != nil && req.Balance.IsNegative() {
		return &domain.ErrBusinessRule{Reason: "El balance inicial no puede ser negativo"}
	}

	switch accType {
	case domain.AccountTypeSavings:
		return validateSavings(req)
	case domain.AccountTypeChecking:
		return validateChecking(req)
	case domain.AccountTypeFixedTerm:
		return validateFixedTerm(req)
	}
	return nil
}

func validateSavings(req *domain.AccountRequest) error {
	if req.MonthlyMovementLimit == nil {
		return &domain.ErrBusinessRule{Reason: "monthlyMovementLimit es obligatorio para cuentas de ahorro"}
	}
	if req.MaintenanceFee != nil {
		return &domain.ErrBusinessRule{Reason: "maintenanceFee no debe estar presente en cuentas de ahorro"}
	}
	if req.AllowedDayOfMonth != nil {
		return &domain.ErrBusinessRule{Reason: "allowedDayOfMonth no debe estar presente en cuentas de ahorro"}
	}
	return nil
}

func validateChecking(req *domain.AccountRequest) error {
	if req.MonthlyMovementLimit == nil {
		return &domain.ErrBusinessRule{Reason: "monthlyMovementLimit es obligatorio para cuentas corrientes"}
	}
	if req.MaintenanceFee == nil {
		return &domain.ErrBusinessRule{Reason: "maintenanceFee es obligatorio para cuentas corrientes"}
	}
	if req.AllowedDayOfMonth != nil {
		return &domain.ErrBusinessRule{Reason: "allowedDayOfMonth no debe estar presente en cuentas corrientes"}
	}
	return nil
}

func validateFixedTerm(req *domain.AccountRequest) error {
	if req.AllowedDayOfMonth == nil {
		return &domain.ErrBusinessRule{Reason: "allowedDayOfMonth es obligatorio para cuentas a plazo fijo"}
	}
	if *req.AllowedDayOfMonth < 1 || *req.AllowedDayOfMonth > 28 {
		return &domain.ErrBusinessRule{Reason: "allowedDayOfMonth debe estar entre 1 y 28"}
	}
	if req.MonthlyMovementLimit != nil {
		return &domain.ErrBusinessRule{Reason: "monthlyMovementLimit no debe estar presente en cuentas a plazo fijo"}
	}
	if req.MaintenanceFee != nil {
		return &domain.ErrBusinessRule{Reason: "maintenanceFee no debe estar presente en cuentas a plazo fijo"}
	}
	return nil
}

// NormalizeSigners trims each signer document, strips non-digits, drops
// entries outside the 8-11 digit range and de-duplicates while preserving
// first-seen order.
func NormalizeSigners(signers []string) []string {
	if signers == nil {
		return nil
	}
	out := make([]string, 0, len(signers))
	seen := make(map[string]bool, len(signers))
	for _, s := range signers {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, strings.TrimSpace(s))
		if !holderDocumentPattern.MatchString(digits) {
			continue
		}
		if seen[digits] {
			continue
		}
		seen[digits] = true
		out = append(out, digits)
	}
	return out
}
