// Package qr builds the Base64 TLV payloads embedded in the invoice QR
// code: the 5-field basic payload for draft invoices and the 9-field
// compliant payload for certified ones.
package qr

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/sahlsoft/erp-fatoora/internal/zatca/tlv"
	"github.com/shopspring/decimal"
)

// ZATCA QR tag assignments
const (
	TagSellerName    byte = 1
	TagVATNumber     byte = 2
	TagTimestamp     byte = 3
	TagInvoiceTotal  byte = 4
	TagVATTotal      byte = 5
	TagInvoiceHash   byte = 6
	TagSignature     byte = 7
	TagPublicKey     byte = 8
	TagCertSignature byte = 9
)

// TimestampLayout is ISO 8601 with seconds precision, as ZATCA requires
const TimestampLayout = "2006-01-02T15:04:05Z"

// BasicInput carries the 5 mandatory QR fields
type BasicInput struct {
	SellerName string
	VATNumber  string
	Timestamp  time.Time
	Total      decimal.Decimal
	VATTotal   decimal.Decimal
}

// CompliantInput extends the basic fields with the post-signing material
type CompliantInput struct {
	BasicInput
	InvoiceHash   string // Base64 SHA-256 of the canonical invoice XML
	Signature     string // Base64 ECDSA signature
	PublicKeyDER  []byte // SubjectPublicKeyInfo DER
	CertSignature []byte // signature on the CSID certificate by its issuer
}

// BuildBasic assembles the 5-field TLV payload and Base64-encodes it.
// Deterministic: identical input yields byte-identical output.
func BuildBasic(in BasicInput) (string, error) {
	fields, err := basicFields(in)
	if err != nil {
		return "", err
	}
	return encode(fields)
}

// BuildCompliant assembles the 9-field TLV payload for a certified invoice
func BuildCompliant(in CompliantInput) (string, error) {
	if in.InvoiceHash == "" {
		return "", errors.New("qr: invoice hash is required")
	}
	if in.Signature == "" {
		return "", errors.New("qr: signature is required")
	}
	if len(in.PublicKeyDER) == 0 {
		return "", errors.New("qr: public key is required")
	}
	if len(in.CertSignature) == 0 {
		return "", errors.New("qr: certificate signature is required")
	}

	fields, err := basicFields(in.BasicInput)
	if err != nil {
		return "", err
	}
	fields = append(fields,
		tlv.Field{Tag: TagInvoiceHash, Value: in.InvoiceHash},
		tlv.Field{Tag: TagSignature, Value: in.Signature},
		tlv.Field{Tag: TagPublicKey, Value: string(in.PublicKeyDER)},
		tlv.Field{Tag: TagCertSignature, Value: string(in.CertSignature)},
	)
	return encode(fields)
}

func basicFields(in BasicInput) ([]tlv.Field, error) {
	if in.SellerName == "" {
		return nil, errors.New("qr: seller name is required")
	}
	if in.VATNumber == "" {
		return nil, errors.New("qr: seller VAT number is required")
	}
	if in.Timestamp.IsZero() {
		return nil, errors.New("qr: timestamp is required")
	}
	return []tlv.Field{
		{Tag: TagSellerName, Value: in.SellerName},
		{Tag: TagVATNumber, Value: in.VATNumber},
		{Tag: TagTimestamp, Value: in.Timestamp.UTC().Format(TimestampLayout)},
		{Tag: TagInvoiceTotal, Value: in.Total.StringFixed(2)},
		{Tag: TagVATTotal, Value: in.VATTotal.StringFixed(2)},
	}, nil
}

func encode(fields []tlv.Field) (string, error) {
	raw, err := tlv.EncodeSequence(fields)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
