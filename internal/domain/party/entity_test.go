package party

import (
	"errors"
	"testing"
)

func TestValidateVATNumber(t *testing.T) {
	cases := []struct {
		name string
		vat  string
		ok   bool
	}{
		{"valid", "300000000000003", true},
		{"valid with digits", "310122393500003", true},
		{"too short", "30000000000003", false},
		{"too long", "3000000000000003", false},
		{"wrong first digit", "200000000000003", false},
		{"wrong last digit", "300000000000002", false},
		{"non digit", "30000000000000x", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVATNumber(tc.vat)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidVATNumber) {
				t.Errorf("expected ErrInvalidVATNumber, got %v", err)
			}
		})
	}
}

func TestNewParty(t *testing.T) {
	p, err := NewParty("شركة الاختبار", Company, "300000000000003", "1010101010")
	if err != nil {
		t.Fatalf("NewParty: %v", err)
	}
	if p.ID == "" {
		t.Error("party has no ID")
	}

	// buyers without VAT registration are allowed
	if _, err := NewParty("Walk-in customer", Individual, "", ""); err != nil {
		t.Errorf("unregistered party: %v", err)
	}

	if _, err := NewParty("", Company, "300000000000003", ""); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewParty("x", Type("government"), "", ""); err == nil {
		t.Error("expected error for invalid type")
	}
	if _, err := NewParty("x", Company, "12345", ""); !errors.Is(err, ErrInvalidVATNumber) {
		t.Errorf("expected ErrInvalidVATNumber, got %v", err)
	}
}
