package party

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type distinguishes individual and company parties
type Type string

const (
	Individual Type = "individual"
	Company    Type = "company"
)

var (
	// ErrInvalidVATNumber is returned when the VAT registration number is not
	// a valid 15-digit Saudi number
	ErrInvalidVATNumber = errors.New("VAT number must be 15 digits starting and ending with 3")
)

// Party is a seller or buyer on an invoice
type Party struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       Type      `json:"type"`
	VATNumber  string    `json:"vat_number"`
	CRNumber   string    `json:"cr_number"`
	Street     string    `json:"street"`
	District   string    `json:"district"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewParty creates a party, validating the identifiers the tax authority
// cares about. Buyers without VAT registration may pass an empty VAT number.
func NewParty(name string, partyType Type, vatNumber, crNumber string) (*Party, error) {
	if name == "" {
		return nil, errors.New("party name is required")
	}
	if partyType != Individual && partyType != Company {
		return nil, fmt.Errorf("invalid party type %q", partyType)
	}
	if vatNumber != "" {
		if err := ValidateVATNumber(vatNumber); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	return &Party{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      partyType,
		VATNumber: vatNumber,
		CRNumber:  crNumber,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetAddress sets the postal address fields
func (p *Party) SetAddress(street, district, city, postalCode string) {
	p.Street = street
	p.District = district
	p.City = city
	p.PostalCode = postalCode
	p.UpdatedAt = time.Now()
}

// SetContact sets the contact fields
func (p *Party) SetContact(phone, email string) {
	p.Phone = phone
	p.Email = email
	p.UpdatedAt = time.Now()
}

// ValidateVATNumber checks the Saudi VAT registration number format:
// 15 digits, first and last digit 3.
func ValidateVATNumber(vat string) error {
	if len(vat) != 15 {
		return ErrInvalidVATNumber
	}
	for _, r := range vat {
		if r < '0' || r > '9' {
			return ErrInvalidVATNumber
		}
	}
	if vat[0] != '3' || vat[14] != '3' {
		return ErrInvalidVATNumber
	}
	return nil
}
