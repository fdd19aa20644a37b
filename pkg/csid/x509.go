package csid

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// The standard library's crypto/x509 rejects certificates on curves it does
// not implement, and secp256k1 is one of them. CSID certificates are parsed
// here at the ASN.1 level instead, extracting only the fields the signing
// pipeline and the compliant QR need.

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// Certificate is the subset of an X.509 CSID certificate used for signing
type Certificate struct {
	Raw            []byte
	SerialNumber   *big.Int
	Issuer         string
	NotBefore      time.Time
	NotAfter       time.Time
	PublicKey      *secp256k1.PublicKey
	PublicKeyDER   []byte
	SignatureValue []byte
}

type certificateASN struct {
	TBSCertificate     tbsCertificateASN
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

type tbsCertificateASN struct {
	Raw                asn1.RawContent
	Version            int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validityASN
	Subject            asn1.RawValue
	PublicKey          publicKeyInfoASN
	UniqueID           asn1.BitString  `asn1:"optional,tag:1"`
	SubjectUniqueID    asn1.BitString  `asn1:"optional,tag:2"`
	Extensions         []asn1.RawValue `asn1:"optional,explicit,tag:3"`
}

type validityASN struct {
	NotBefore, NotAfter time.Time
}

type publicKeyInfoASN struct {
	Raw       asn1.RawContent
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// ParseCertificate parses a DER-encoded secp256k1 X.509 certificate
func ParseCertificate(der []byte) (*Certificate, error) {
	var cert certificateASN
	rest, err := asn1.Unmarshal(der, &cert)
	if err != nil {
		return nil, fmt.Errorf("csid: malformed certificate: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("csid: trailing data after certificate")
	}

	tbs := &cert.TBSCertificate
	if !tbs.PublicKey.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("csid: certificate public key is not ECDSA")
	}
	var curve asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(tbs.PublicKey.Algorithm.Parameters.FullBytes, &curve); err != nil {
		return nil, fmt.Errorf("csid: malformed curve parameters: %w", err)
	}
	if !curve.Equal(oidCurveSecp256k1) {
		return nil, fmt.Errorf("csid: certificate curve %v is not secp256k1", curve)
	}

	pub, err := secp256k1.ParsePubKey(tbs.PublicKey.PublicKey.RightAlign())
	if err != nil {
		return nil, fmt.Errorf("csid: invalid public key point: %w", err)
	}

	var issuerRDN pkix.RDNSequence
	if _, err := asn1.Unmarshal(tbs.Issuer.FullBytes, &issuerRDN); err != nil {
		return nil, fmt.Errorf("csid: malformed issuer name: %w", err)
	}

	raw := make([]byte, len(der))
	copy(raw, der)

	return &Certificate{
		Raw:            raw,
		SerialNumber:   tbs.SerialNumber,
		Issuer:         issuerRDN.String(),
		NotBefore:      tbs.Validity.NotBefore,
		NotAfter:       tbs.Validity.NotAfter,
		PublicKey:      pub,
		PublicKeyDER:   append([]byte(nil), tbs.PublicKey.Raw...),
		SignatureValue: cert.SignatureValue.RightAlign(),
	}, nil
}

// MarshalPublicKeyDER encodes a secp256k1 public key as a DER
// SubjectPublicKeyInfo structure, the form ZATCA expects in QR tag 8.
func MarshalPublicKeyDER(pub *secp256k1.PublicKey) ([]byte, error) {
	curveDER, err := asn1.Marshal(oidCurveSecp256k1)
	if err != nil {
		return nil, err
	}
	point := pub.SerializeUncompressed()
	spki := struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: curveDER},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	}
	return asn1.Marshal(spki)
}
