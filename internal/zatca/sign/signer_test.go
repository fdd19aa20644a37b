package sign

import (
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
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
	serial, ok := new(big.Int).SetString("379112742831380471835263969587287663520528387077", 10)
	if !ok {
		t.Fatal("parse serial number")
	}
	return &csid.Credential{
		PrivateKey: priv,
		Certificate: &csid.Certificate{
			Raw:            []byte("test-certificate-body"),
			SerialNumber:   serial,
			Issuer:         "CN=TSZEINVOICE-SubCA-1,DC=extgazt,DC=gov,DC=local",
			NotBefore:      now.Add(-time.Hour),
			NotAfter:       now.Add(24 * time.Hour),
			PublicKey:      priv.PubKey(),
			PublicKeyDER:   pubDER,
			SignatureValue: []byte{0x30, 0x45, 0x02, 0x21},
		},
	}
}

func unsignedDoc(t *testing.T) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns:cac", "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2")
	root.CreateAttr("xmlns:cbc", "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2")
	root.CreateAttr("xmlns:ext", "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2")
	id := root.CreateElement("cbc:ID")
	id.SetText("INV-0001")
	root.CreateElement("cac:AccountingSupplierParty")
	root.CreateElement("cac:AccountingCustomerParty")
	return doc
}

func TestNewSignerRequiresCredential(t *testing.T) {
	if _, err := NewSigner(nil); err != ErrNoCredential {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestNewSignerRejectsExpiredCertificate(t *testing.T) {
	cred := testCredential(t)
	cred.Certificate.NotAfter = time.Now().Add(-time.Hour)
	if _, err := NewSigner(cred); err == nil {
		t.Fatal("expected error for expired certificate")
	}
}

func TestSignVerifiesAgainstCertificateKey(t *testing.T) {
	cred := testCredential(t)
	signer, err := NewSigner(cred)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	canonical := []byte(`<Invoice><cbc:ID>INV-0001</cbc:ID></Invoice>`)
	block, err := signer.Sign(canonical, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sigDER, err := base64.StdEncoding.DecodeString(block.SignatureValue)
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	sig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		t.Fatalf("signature is not valid DER: %v", err)
	}
	digest := ComputeInvoiceHash(canonical)
	if !sig.Verify(digest.Raw(), cred.Certificate.PublicKey) {
		t.Fatal("signature does not verify against the certificate public key")
	}
	if block.InvoiceDigest != digest.Base64() {
		t.Fatalf("invoice digest mismatch: got %q want %q", block.InvoiceDigest, digest.Base64())
	}
}

func TestSignIsDeterministic(t *testing.T) {
	cred := testCredential(t)
	signer, err := NewSigner(cred)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	canonical := []byte(`<Invoice><cbc:ID>INV-0001</cbc:ID></Invoice>`)
	signingTime := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := signer.Sign(canonical, signingTime)
	if err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	second, err := signer.Sign(canonical, signingTime)
	if err != nil {
		t.Fatalf("second Sign: %v", err)
	}

	if first.InvoiceDigest != second.InvoiceDigest {
		t.Error("invoice digest differs between runs")
	}
	if first.SignatureValue != second.SignatureValue {
		t.Error("signature value differs between runs")
	}
	if first.SignedPropertiesDigest != second.SignedPropertiesDigest {
		t.Error("signed properties digest differs between runs")
	}
}

func TestSignRejectsEmptyInput(t *testing.T) {
	signer, err := NewSigner(testCredential(t))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if _, err := signer.Sign(nil, time.Now()); err == nil {
		t.Fatal("expected error for empty canonical bytes")
	}
}

func TestBuildSignedDocumentStructure(t *testing.T) {
	cred := testCredential(t)
	signer, err := NewSigner(cred)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	unsigned := unsignedDoc(t)
	unsignedBefore, err := unsigned.WriteToString()
	if err != nil {
		t.Fatalf("serialize unsigned: %v", err)
	}

	block, err := signer.Sign([]byte(unsignedBefore), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	signed, err := signer.BuildSignedDocument(unsigned, block, "QVFJREJBVT0=")
	if err != nil {
		t.Fatalf("BuildSignedDocument: %v", err)
	}
	root := signed.Root()

	children := root.ChildElements()
	if len(children) == 0 {
		t.Fatal("signed document root has no children")
	}
	if children[0].Tag != "UBLExtensions" {
		t.Fatalf("first child is %q, want UBLExtensions", children[0].Tag)
	}

	// QR reference and cac:Signature sit immediately before the supplier party
	var order []string
	for _, el := range children {
		order = append(order, el.Tag)
	}
	qrIdx, sigIdx, supIdx := -1, -1, -1
	for i, tag := range order {
		switch tag {
		case "AdditionalDocumentReference":
			qrIdx = i
		case "Signature":
			sigIdx = i
		case "AccountingSupplierParty":
			supIdx = i
		}
	}
	if qrIdx < 0 || sigIdx != qrIdx+1 || supIdx != sigIdx+1 {
		t.Fatalf("unexpected element order: %v", order)
	}

	if sv := signed.FindElement("//ds:SignatureValue"); sv == nil || sv.Text() != block.SignatureValue {
		t.Error("ds:SignatureValue missing or mismatched")
	}
	if cert := signed.FindElement("//ds:X509Certificate"); cert == nil || cert.Text() != block.CertificateBase64 {
		t.Error("ds:X509Certificate missing or mismatched")
	}
	if st := signed.FindElement("//xades:SigningTime"); st == nil || st.Text() != "2024-01-01T10:00:00Z" {
		t.Error("xades:SigningTime missing or mismatched")
	}
	if qr := signed.FindElement("//cbc:EmbeddedDocumentBinaryObject"); qr == nil || qr.Text() != "QVFJREJBVT0=" {
		t.Error("QR attachment missing or mismatched")
	}

	// the input document is never mutated
	unsignedAfter, err := unsigned.WriteToString()
	if err != nil {
		t.Fatalf("serialize unsigned after: %v", err)
	}
	if unsignedBefore != unsignedAfter {
		t.Error("BuildSignedDocument mutated its input document")
	}
}
