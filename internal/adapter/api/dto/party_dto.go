package dto

import (
	"time"

	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
)

// PartyRequest is the create/update payload for a seller or buyer
type PartyRequest struct {
	Name       string     `json:"name" binding:"required"`
	Type       party.Type `json:"type" binding:"required"`
	VATNumber  string     `json:"vat_number"`
	CRNumber   string     `json:"cr_number"`
	Street     string     `json:"street"`
	District   string     `json:"district"`
	City       string     `json:"city"`
	PostalCode string     `json:"postal_code"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
}

// PartyResponse is the party representation returned by the API
type PartyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       party.Type `json:"type"`
	VATNumber  string     `json:"vat_number"`
	CRNumber   string     `json:"cr_number"`
	Street     string     `json:"street"`
	District   string     `json:"district"`
	City       string     `json:"city"`
	PostalCode string     `json:"postal_code"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PartyListResponse is the paginated party list
type PartyListResponse struct {
	Items []PartyResponse `json:"items"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// ToPartyResponse converts a domain party to its DTO
func ToPartyResponse(p *party.Party) PartyResponse {
	return PartyResponse{
		ID:         p.ID,
		Name:       p.Name,
		Type:       p.Type,
		VATNumber:  p.VATNumber,
		CRNumber:   p.CRNumber,
		Street:     p.Street,
		District:   p.District,
		City:       p.City,
		PostalCode: p.PostalCode,
		Phone:      p.Phone,
		Email:      p.Email,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
