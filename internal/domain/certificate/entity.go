package certificate

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Certificate is a stored CSID signing credential: PEM material holding the
// X.509 certificate chain and the secp256k1 private key
type Certificate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PEMData        []byte    `json:"-"`
	Password       string    `json:"-"`
	ExpirationDate time.Time `json:"expiration_date"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCertificate creates a CSID credential record
func NewCertificate(name string, expirationDate time.Time) (*Certificate, error) {
	if name == "" {
		return nil, errors.New("certificate name is required")
	}
	if expirationDate.Before(time.Now()) {
		return nil, errors.New("certificate expiration date has already passed")
	}

	now := time.Now()
	return &Certificate{
		ID:             uuid.New().String(),
		Name:           name,
		ExpirationDate: expirationDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// StorePEM stores the PEM-encoded credential material
func (c *Certificate) StorePEM(data []byte, password string) error {
	if len(data) == 0 {
		return errors.New("certificate data must not be empty")
	}
	c.PEMData = data
	c.Password = password
	c.UpdatedAt = time.Now()
	return nil
}

// Activate marks the credential as the one used for signing
func (c *Certificate) Activate() {
	c.IsActive = true
	c.UpdatedAt = time.Now()
}

// Deactivate retires the credential
func (c *Certificate) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}

// IsExpired reports whether the credential validity window has passed
func (c *Certificate) IsExpired() bool {
	return time.Now().After(c.ExpirationDate)
}

// RenewExpiration updates the expiration date after re-enrollment
func (c *Certificate) RenewExpiration(newExpiration time.Time) error {
	if newExpiration.Before(time.Now()) {
		return errors.New("new expiration date must be in the future")
	}
	c.ExpirationDate = newExpiration
	c.UpdatedAt = time.Now()
	return nil
}
