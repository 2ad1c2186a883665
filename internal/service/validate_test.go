package service_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/service"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return &d
}

func TestValidateAccountRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *domain.AccountRequest
		wantErr string
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: "la solicitud de cuenta no puede ser nula",
		},
		{
			name:    "missing document",
			req:     &domain.AccountRequest{HolderDocumentType: "DNI", AccountType: "SAVINGS"},
			wantErr: "holderDocument es obligatorio",
		},
		{
			name:    "document too short",
			req:     &domain.AccountRequest{HolderDocument: "1234567", HolderDocumentType: "DNI", AccountType: "SAVINGS"},
			wantErr: "El documento debe tener entre 8 y 11 dígitos",
		},
		{
			name:    "document with letters",
			req:     &domain.AccountRequest{HolderDocument: "12345678A", HolderDocumentType: "DNI", AccountType: "SAVINGS"},
			wantErr: "El documento debe tener entre 8 y 11 dígitos",
		},
		{
			name:    "missing document type",
			req:     &domain.AccountRequest{HolderDocument: "12345678", AccountType: "SAVINGS"},
			wantErr: "holderDocumentType es obligatorio",
		},
		{
			name:    "missing account type",
			req:     &domain.AccountRequest{HolderDocument: "12345678", HolderDocumentType: "DNI"},
			wantErr: "accountType es obligatorio",
		},
		{
			name:    "unknown account type",
			req:     &domain.AccountRequest{HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "PREMIUM"},
			wantErr: "Tipo de cuenta no soportado",
		},
		{
			name: "negative initial balance",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "SAVINGS",
				Balance: decPtr("-10"), MonthlyMovementLimit: intPtr(5),
			},
			wantErr: "El balance inicial no puede ser negativo",
		},
		{
			name: "savings without movement limit",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "SAVINGS",
			},
			wantErr: "monthlyMovementLimit es obligatorio para cuentas de ahorro",
		},
		{
			name: "savings with maintenance fee",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "SAVINGS",
				MonthlyMovementLimit: intPtr(5), MaintenanceFee: decPtr("1.00"),
			},
			wantErr: "maintenanceFee no debe estar presente en cuentas de ahorro",
		},
		{
			name: "savings with allowed day",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "SAVINGS",
				MonthlyMovementLimit: intPtr(5), AllowedDayOfMonth: intPtr(10),
			},
			wantErr: "allowedDayOfMonth no debe estar presente en cuentas de ahorro",
		},
		{
			name: "valid savings",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "SAVINGS",
				MonthlyMovementLimit: intPtr(5),
			},
		},
		{
			name: "checking without maintenance fee",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "CHECKING",
				MonthlyMovementLimit: intPtr(10),
			},
			wantErr: "maintenanceFee es obligatorio para cuentas corrientes",
		},
		{
			name: "valid checking",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "CHECKING",
				MonthlyMovementLimit: intPtr(10), MaintenanceFee: decPtr("2.50"),
			},
		},
		{
			name: "fixed term without allowed day",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "FIXED_TERM",
			},
			wantErr: "allowedDayOfMonth es obligatorio para cuentas a plazo fijo",
		},
		{
			name: "fixed term day out of range",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "FIXED_TERM",
				AllowedDayOfMonth: intPtr(29),
			},
			wantErr: "allowedDayOfMonth debe estar entre 1 y 28",
		},
		{
			name: "fixed term with movement limit",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "FIXED_TERM",
				AllowedDayOfMonth: intPtr(15), MonthlyMovementLimit: intPtr(5),
			},
			wantErr: "monthlyMovementLimit no debe estar presente en cuentas a plazo fijo",
		},
		{
			name: "valid fixed term",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "FIXED_TERM",
				AllowedDayOfMonth: intPtr(15),
			},
		},
		{
			name: "lowercase account type accepted",
			req: &domain.AccountRequest{
				HolderDocument: "12345678", HolderDocumentType: "DNI", AccountType: "savings",
				MonthlyMovementLimit: intPtr(5),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateAccountRequest(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			var rule *domain.ErrBusinessRule
			if !errors.As(err, &rule) {
				t.Fatalf("expected ErrBusinessRule, got %T", err)
			}
			if rule.Reason != tt.wantErr {
				t.Errorf("expected %q, got %q", tt.wantErr, rule.Reason)
			}
		})
	}
}

func TestNormalizeSigners(t *testing.T) {
	got := service.NormalizeSigners([]string{
		" 12345678 ",
		"87.654.321",
		"12345678",  // duplicate of the first
		"123",       // too short after stripping
		"abcdefgh",  // no digits at all
		"999999999", // 9 digits, valid
	})
	want := []string{"12345678", "87654321", "999999999"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalizeSigners_Nil(t *testing.T) {
	if got := service.NormalizeSigners(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
