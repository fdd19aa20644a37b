package zatca

import (
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/tlv"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
	"github.com/shopspring/decimal"
)

func testCredential(t *testing.T) *csid.Credential {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubDER, err := csid.MarshalPublicKeyDER(priv.PubKey())
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	now := time.Now().UTC()
	return &csid.Credential{
		PrivateKey: priv,
		Certificate: &csid.Certificate{
			Raw:            []byte("test-certificate-body"),
			SerialNumber:   big.NewInt(2475382888776),
			Issuer:         "CN=TSZEINVOICE-SubCA-1,DC=extgazt,DC=gov,DC=local",
			NotBefore:      now.Add(-time.Hour),
			NotAfter:       now.Add(24 * time.Hour),
			PublicKey:      priv.PubKey(),
			PublicKeyDER:   pubDER,
			SignatureValue: []byte{0x30, 0x45, 0x02, 0x21, 0x00},
		},
	}
}

func testParties(t *testing.T) (*party.Party, *party.Party) {
	t.Helper()
	seller, err := party.NewParty("شركة الاختبار", party.Company, "300000000000003", "1010101010")
	if err != nil {
		t.Fatalf("seller: %v", err)
	}
	seller.SetAddress("King Fahd Road", "Al Olaya", "Riyadh", "12211")
	buyer, err := party.NewParty("مؤسسة المشتري", party.Company, "310000000000003", "2020202020")
	if err != nil {
		t.Fatalf("buyer: %v", err)
	}
	buyer.SetAddress("Prince Sultan Road", "Al Salamah", "Jeddah", "23525")
	return seller, buyer
}

func testInvoice(t *testing.T, seller, buyer *party.Party) *invoice.Invoice {
	t.Helper()
	issue := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	inv, err := invoice.NewInvoice("INV-0001", seller.ID, buyer.ID, issue, issue)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	line, err := invoice.NewLineItem("Consulting services",
		decimal.NewFromInt(2),      // quantity
		decimal.NewFromInt(100),    // unit price
		decimal.NewFromInt(10),     // discount %
		decimal.Zero,               // margin %
		decimal.NewFromInt(15))     // VAT %
	if err != nil {
		t.Fatalf("NewLineItem: %v", err)
	}
	if err := inv.AddLine(line); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	inv.Counter = 1
	inv.PreviousHash = base64.StdEncoding.EncodeToString(make([]byte, 32))
	return inv
}

func newTestCertifier(t *testing.T) *Certifier {
	t.Helper()
	c, err := NewCertifier(testCredential(t), nil)
	if err != nil {
		t.Fatalf("NewCertifier: %v", err)
	}
	return c
}

func TestCertifyProducesCompleteArtifacts(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t, seller, buyer)

	result, err := newTestCertifier(t).Certify(inv, seller, buyer)
	if err != nil {
		t.Fatalf("Certify: %v", err)
	}

	if result.SignedXML == "" {
		t.Fatal("signed XML is empty")
	}
	for _, marker := range []string{
		"<ext:UBLExtensions>",
		"<ds:SignatureValue>",
		"<xades:SigningTime>2024-01-01T10:00:00Z</xades:SigningTime>",
		"<cbc:ID>QR</cbc:ID>",
		"<cbc:ProfileID>reporting:1.0</cbc:ProfileID>",
	} {
		if !strings.Contains(result.SignedXML, marker) {
			t.Errorf("signed XML missing %s", marker)
		}
	}

	hash, err := base64.StdEncoding.DecodeString(result.InvoiceHash)
	if err != nil || len(hash) != 32 {
		t.Fatalf("invoice hash is not a base64 SHA-256 digest: %v", err)
	}

	// the QR payload decodes to all 9 tags in ascending order
	raw, err := base64.StdEncoding.DecodeString(result.QRCode)
	if err != nil {
		t.Fatalf("QR is not valid base64: %v", err)
	}
	fields, err := tlv.Decode(raw)
	if err != nil {
		t.Fatalf("QR TLV decode: %v", err)
	}
	if len(fields) != 9 {
		t.Fatalf("QR has %d fields, want 9", len(fields))
	}
	for i, f := range fields {
		if f.Tag != byte(i+1) {
			t.Fatalf("QR tag at position %d is %d, want %d", i, f.Tag, i+1)
		}
	}
	if fields[0].Value != seller.Name {
		t.Errorf("QR seller name %q, want %q", fields[0].Value, seller.Name)
	}
	if fields[1].Value != seller.VATNumber {
		t.Errorf("QR VAT number %q, want %q", fields[1].Value, seller.VATNumber)
	}
	if fields[2].Value != "2024-01-01T10:00:00Z" {
		t.Errorf("QR timestamp %q", fields[2].Value)
	}
	if fields[3].Value != "207.00" {
		t.Errorf("QR total %q, want 207.00", fields[3].Value)
	}
	if fields[4].Value != "27.00" {
		t.Errorf("QR VAT total %q, want 27.00", fields[4].Value)
	}
	if fields[5].Value != result.InvoiceHash {
		t.Error("QR invoice hash differs from pipeline hash")
	}
}

func TestCertifyIsDeterministic(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t, seller, buyer)
	certifier := newTestCertifier(t)

	first, err := certifier.Certify(inv, seller, buyer)
	if err != nil {
		t.Fatalf("first Certify: %v", err)
	}
	second, err := certifier.Certify(inv, seller, buyer)
	if err != nil {
		t.Fatalf("second Certify: %v", err)
	}

	if first.SignedXML != second.SignedXML {
		t.Error("signed XML differs between runs")
	}
	if first.InvoiceHash != second.InvoiceHash {
		t.Error("invoice hash differs between runs")
	}
	if first.QRCode != second.QRCode {
		t.Error("QR code differs between runs")
	}
}

func TestCertifyRejectsInvalidInput(t *testing.T) {
	seller, buyer := testParties(t)
	certifier := newTestCertifier(t)

	t.Run("no line items", func(t *testing.T) {
		issue := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		empty, err := invoice.NewInvoice("INV-0002", seller.ID, buyer.ID, issue, issue)
		if err != nil {
			t.Fatalf("NewInvoice: %v", err)
		}
		_, err = certifier.Certify(empty, seller, buyer)
		if !errors.Is(err, invoice.ErrNoLineItems) {
			t.Fatalf("expected ErrNoLineItems, got %v", err)
		}
		var stage *StageError
		if !errors.As(err, &stage) || stage.Stage != StageValidation {
			t.Fatalf("expected validation stage error, got %v", err)
		}
	})

	t.Run("tampered totals", func(t *testing.T) {
		inv := testInvoice(t, seller, buyer)
		inv.Total = inv.Total.Add(decimal.NewFromInt(1))
		if _, err := certifier.Certify(inv, seller, buyer); !errors.Is(err, invoice.ErrTotalsMismatch) {
			t.Fatalf("expected ErrTotalsMismatch, got %v", err)
		}
	})

	t.Run("seller without VAT registration", func(t *testing.T) {
		inv := testInvoice(t, seller, buyer)
		unregistered := *seller
		unregistered.VATNumber = ""
		if _, err := certifier.Certify(inv, &unregistered, buyer); err == nil {
			t.Fatal("expected error for seller without VAT number")
		}
	})

	t.Run("missing buyer", func(t *testing.T) {
		inv := testInvoice(t, seller, buyer)
		if _, err := certifier.Certify(inv, seller, nil); err == nil {
			t.Fatal("expected error for missing buyer")
		}
	})
}

// BasicQR is a pure function over invoice and seller data: it must work
// without any signing credential loaded, since drafts need their preview QR
// before a certificate is ever configured.
func TestBasicQRNeedsNoCredential(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t, seller, buyer)

	encoded, err := BasicQR(inv, seller)
	if err != nil {
		t.Fatalf("BasicQR: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("basic QR is not valid base64: %v", err)
	}
	fields, err := tlv.Decode(raw)
	if err != nil {
		t.Fatalf("basic QR TLV decode: %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("basic QR has %d fields, want 5", len(fields))
	}
	if fields[0].Value != seller.Name {
		t.Errorf("QR seller name %q, want %q", fields[0].Value, seller.Name)
	}
	if fields[3].Value != "207.00" {
		t.Errorf("QR total %q, want 207.00", fields[3].Value)
	}

	if _, err := BasicQR(inv, nil); err == nil {
		t.Error("expected error for missing seller")
	}
	if _, err := BasicQR(nil, seller); err == nil {
		t.Error("expected error for missing invoice")
	}
}
