package csid

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type ecPrivateKeyASN struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type pkcs8ASN struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ParsePrivateKey parses a DER-encoded secp256k1 private key. keyType is the
// PEM block type: "EC PRIVATE KEY" (SEC1) or "PRIVATE KEY" (PKCS#8).
func ParsePrivateKey(der []byte, keyType string) (*secp256k1.PrivateKey, error) {
	switch keyType {
	case "EC PRIVATE KEY":
		return parseSEC1(der, nil)
	case "PRIVATE KEY":
		var p8 pkcs8ASN
		if _, err := asn1.Unmarshal(der, &p8); err != nil {
			return nil, fmt.Errorf("csid: malformed PKCS#8 structure: %w", err)
		}
		if !p8.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
			return nil, fmt.Errorf("csid: private key algorithm is not ECDSA")
		}
		var curve asn1.ObjectIdentifier
		if _, err := asn1.Unmarshal(p8.Algorithm.Parameters.FullBytes, &curve); err != nil {
			return nil, fmt.Errorf("csid: malformed curve parameters: %w", err)
		}
		return parseSEC1(p8.PrivateKey, curve)
	default:
		return nil, fmt.Errorf("csid: unsupported key block type %q", keyType)
	}
}

func parseSEC1(der []byte, outerCurve asn1.ObjectIdentifier) (*secp256k1.PrivateKey, error) {
	var ec ecPrivateKeyASN
	if _, err := asn1.Unmarshal(der, &ec); err != nil {
		return nil, fmt.Errorf("csid: malformed EC private key: %w", err)
	}
	curve := ec.NamedCurveOID
	if curve == nil {
		curve = outerCurve
	}
	if curve == nil {
		return nil, fmt.Errorf("csid: EC private key carries no curve identifier")
	}
	if !curve.Equal(oidCurveSecp256k1) {
		return nil, fmt.Errorf("csid: private key curve %v is not secp256k1", curve)
	}
	if len(ec.PrivateKey) == 0 || len(ec.PrivateKey) > 32 {
		return nil, fmt.Errorf("csid: invalid private key scalar length %d", len(ec.PrivateKey))
	}
	// left-pad to 32 bytes; DER integers may drop leading zeros
	scalar := make([]byte, 32)
	copy(scalar[32-len(ec.PrivateKey):], ec.PrivateKey)
	priv := secp256k1.PrivKeyFromBytes(scalar)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("csid: private key scalar is zero")
	}
	return priv, nil
}
