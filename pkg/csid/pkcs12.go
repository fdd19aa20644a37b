package csid

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// ContainerToPEM converts an uploaded PKCS#12 credential container into PEM
// blocks for storage. Containers produced by commercial CAs hold standard
// key types; secp256k1 CSID material is expected to arrive as PEM directly,
// so a container whose key cannot be understood is rejected rather than
// stored half-parsed.
func ContainerToPEM(pfxData []byte, password string) ([]byte, error) {
	privateKey, certificate, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("csid: decode PKCS#12 container: %w", err)
	}

	var out []byte

	if certificate != nil {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: certificate.Raw,
		})...)
	}
	for _, cert := range caCerts {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})...)
	}

	if privateKey != nil {
		pkDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("csid: re-encode container key: %w", err)
		}
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: pkDER,
		})...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("csid: PKCS#12 container held no usable material")
	}
	return out, nil
}
