// Package csid loads and holds the ZATCA signing credential: the ECDSA
// secp256k1 private key and the X.509 compliance/production certificate
// issued during CSID enrollment. The credential is loaded once at process
// start and shared read-only by every signing call.
package csid

import (
	"bytes"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrKeyMismatch is returned when the private key does not match the certificate
	ErrKeyMismatch = errors.New("csid: private key does not match certificate public key")
	// ErrCertificateExpired is returned when the certificate validity window has passed
	ErrCertificateExpired = errors.New("csid: certificate expired")
	// ErrCertificateNotYetValid is returned when the certificate is not valid yet
	ErrCertificateNotYetValid = errors.New("csid: certificate not yet valid")
)

// Credential is the signing credential held for the process lifetime
type Credential struct {
	PrivateKey  *secp256k1.PrivateKey
	Certificate *Certificate
}

// Load parses a PEM-encoded certificate and private key pair and validates
// that they belong together. The key may be SEC1 ("EC PRIVATE KEY") or
// PKCS#8 ("PRIVATE KEY"); the curve must be secp256k1 as ZATCA mandates.
func Load(certPEM, keyPEM []byte) (*Credential, error) {
	certDER, err := firstPEMBlock(certPEM, "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	cert, err := ParseCertificate(certDER)
	if err != nil {
		return nil, err
	}

	keyDER, keyType, err := firstKeyBlock(keyPEM)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(keyDER, keyType)
	if err != nil {
		return nil, err
	}

	cred := &Credential{PrivateKey: key, Certificate: cert}
	if err := cred.Validate(time.Now()); err != nil {
		return nil, err
	}
	return cred, nil
}

// Validate checks the certificate validity window and that the private key
// matches the certificate. Signing must fail closed on any of these.
func (c *Credential) Validate(now time.Time) error {
	if c.PrivateKey == nil || c.Certificate == nil {
		return errors.New("csid: incomplete credential")
	}
	if now.After(c.Certificate.NotAfter) {
		return ErrCertificateExpired
	}
	if now.Before(c.Certificate.NotBefore) {
		return ErrCertificateNotYetValid
	}
	derived := c.PrivateKey.PubKey().SerializeCompressed()
	actual := c.Certificate.PublicKey.SerializeCompressed()
	if !bytes.Equal(derived, actual) {
		return ErrKeyMismatch
	}
	return nil
}

func firstPEMBlock(data []byte, blockType string) ([]byte, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("csid: no %s PEM block found", blockType)
		}
		if block.Type == blockType {
			return block.Bytes, nil
		}
	}
}

func firstKeyBlock(data []byte) ([]byte, string, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, "", errors.New("csid: no private key PEM block found")
		}
		switch block.Type {
		case "EC PRIVATE KEY", "PRIVATE KEY":
			return block.Bytes, block.Type, nil
		}
	}
}
