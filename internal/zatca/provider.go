package zatca

import (
	"context"
	"fmt"
	"sync"

	"github.com/sahlsoft/erp-fatoora/internal/domain/certificate"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
)

// CertifierSource builds certifiers from the active stored credential. The
// certifier is cached per credential record so the PEM material is parsed
// once, and a credential swap takes effect on the next certification.
type CertifierSource struct {
	certs  certificate.Repository
	logger logger.Logger

	mu       sync.Mutex
	cached   *Certifier
	cachedID string
}

// NewCertifierSource creates a certifier source over the credential store
func NewCertifierSource(certs certificate.Repository, log logger.Logger) *CertifierSource {
	return &CertifierSource{certs: certs, logger: log}
}

// Certifier returns a certifier backed by the currently active credential
func (s *CertifierSource) Certifier(ctx context.Context) (*Certifier, error) {
	record, err := s.certs.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cachedID == record.ID {
		return s.cached, nil
	}

	// the PEM bundle holds both the certificate and the private key
	cred, err := csid.Load(record.PEMData, record.PEMData)
	if err != nil {
		return nil, fmt.Errorf("load credential %s: %w", record.Name, err)
	}
	certifier, err := NewCertifier(cred, s.logger)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", record.Name, err)
	}

	s.cached = certifier
	s.cachedID = record.ID
	if s.logger != nil {
		s.logger.Info("signing credential loaded", "certificate", record.Name)
	}
	return certifier, nil
}

// Invalidate drops the cached certifier, forcing a reload on next use
func (s *CertifierSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.cachedID = ""
}
