package dto

import (
	"time"

	"github.com/sahlsoft/erp-fatoora/internal/domain/certificate"
)

// CertificateUploadRequest uploads CSID credential material. Data is the
// Base64 of either a PEM bundle (certificate plus private key) or a
// PKCS#12 container, which is converted to PEM on upload.
type CertificateUploadRequest struct {
	Name           string    `json:"name" binding:"required"`
	Data           string    `json:"data" binding:"required"`
	Password       string    `json:"password"`
	ExpirationDate time.Time `json:"expiration_date" binding:"required"`
}

// CertificateRenewRequest updates the expiration date after re-enrollment
// with the tax authority
type CertificateRenewRequest struct {
	ExpirationDate time.Time `json:"expiration_date" binding:"required"`
}

// CertificateResponse is the credential representation returned by the API.
// The key material never leaves the server.
type CertificateResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ExpirationDate time.Time `json:"expiration_date"`
	IsActive       bool      `json:"is_active"`
	IsExpired      bool      `json:"is_expired"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CertificateListResponse is the paginated credential list
type CertificateListResponse struct {
	Items []CertificateResponse `json:"items"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// ToCertificateResponse converts a domain certificate to its DTO
func ToCertificateResponse(c *certificate.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:             c.ID,
		Name:           c.Name,
		ExpirationDate: c.ExpirationDate,
		IsActive:       c.IsActive,
		IsExpired:      c.IsExpired(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
