// Package sign implements the ZATCA digital signature engine: ECDSA
// secp256k1 over the invoice hash, assembly of the XAdES enveloped
// signature block, and splicing of that block into the invoice document.
package sign

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/c14n"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
)

// XMLDSIG / XAdES algorithm and namespace identifiers
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"
	NamespaceSig   = "urn:oasis:names:specification:ubl:schema:xsd:CommonSignatureComponents-2"
	NamespaceSAC   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureAggregateComponents-2"
	NamespaceSBC   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureBasicComponents-2"

	AlgC14N11      = "http://www.w3.org/2006/12/xml-c14n11"
	AlgXPath       = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	AlgECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgSHA256      = "http://www.w3.org/2001/04/xmlenc#sha256"

	signatureID          = "urn:oasis:names:specification:ubl:signature:Invoice"
	signatureInfoID      = "urn:oasis:names:specification:ubl:signature:1"
	signatureMethodXAdES = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
	extensionURI         = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
)

// ErrNoCredential is returned when the signer is constructed without a credential
var ErrNoCredential = errors.New("sign: signing credential is required")

// SignatureBlock is the output of a signing operation: everything needed to
// assemble the signed document and the compliant QR.
type SignatureBlock struct {
	InvoiceDigest          string // Base64 SHA-256 of the canonical invoice
	SignatureValue         string // Base64 DER-encoded ECDSA signature
	SignedPropertiesDigest string
	SigningTime            time.Time
	CertificateBase64      string
}

// Signer signs canonical invoice bytes with the CSID credential. The
// credential is injected at construction and never reloaded.
type Signer struct {
	cred *csid.Credential
}

// NewSigner creates a signer. The credential is validated up front so a
// misconfigured process fails at startup, not on the first invoice.
func NewSigner(cred *csid.Credential) (*Signer, error) {
	if cred == nil {
		return nil, ErrNoCredential
	}
	if err := cred.Validate(time.Now()); err != nil {
		return nil, err
	}
	return &Signer{cred: cred}, nil
}

// Credential exposes the injected credential for QR assembly
func (s *Signer) Credential() *csid.Credential {
	return s.cred
}

// Sign signs the canonical invoice bytes. The credential is re-validated on
// every call so an expired certificate fails closed instead of producing a
// signature that the authority would reject. signingTime must come from the
// invoice data so retries reproduce identical output.
func (s *Signer) Sign(canonical []byte, signingTime time.Time) (*SignatureBlock, error) {
	if len(canonical) == 0 {
		return nil, errors.New("sign: canonical bytes are empty")
	}
	if err := s.cred.Validate(time.Now()); err != nil {
		return nil, err
	}

	digest := ComputeInvoiceHash(canonical)
	sig := ecdsa.Sign(s.cred.PrivateKey, digest.Raw())
	sigDER := sig.Serialize()

	// sanity: the signature must verify against the certificate key
	if !sig.Verify(digest.Raw(), s.cred.Certificate.PublicKey) {
		return nil, errors.New("sign: produced signature failed verification")
	}

	block := &SignatureBlock{
		InvoiceDigest:     digest.Base64(),
		SignatureValue:    base64.StdEncoding.EncodeToString(sigDER),
		SigningTime:       signingTime.UTC().Truncate(time.Second),
		CertificateBase64: base64.StdEncoding.EncodeToString(s.cred.Certificate.Raw),
	}

	props := s.buildSignedProperties(block)
	propsCanonical, err := c14n.CanonicalizeExclusive(props, "")
	if err != nil {
		return nil, fmt.Errorf("sign: canonicalize signed properties: %w", err)
	}
	block.SignedPropertiesDigest = hexDigestBase64(propsCanonical)

	return block, nil
}

// BuildSignedDocument returns a new document: the unsigned invoice with the
// XAdES UBLExtensions block inserted as the first child, plus the QR
// document reference and the cac:Signature element. The input document is
// not mutated; the to-be-hashed and final representations never alias.
func (s *Signer) BuildSignedDocument(unsigned *etree.Document, block *SignatureBlock, qrBase64 string) (*etree.Document, error) {
	if unsigned == nil || unsigned.Root() == nil {
		return nil, errors.New("sign: unsigned document has no root")
	}
	if block == nil {
		return nil, errors.New("sign: signature block is required")
	}

	doc := unsigned.Copy()
	root := doc.Root()

	extensions := s.buildUBLExtensions(block)
	root.InsertChildAt(0, extensions)

	// the QR reference and cac:Signature go immediately before the supplier
	// party, matching the schema's element order
	supplierIdx := childIndex(root, "AccountingSupplierParty")
	if supplierIdx < 0 {
		return nil, errors.New("sign: document has no AccountingSupplierParty")
	}

	qrRef := etree.NewElement("cac:AdditionalDocumentReference")
	textChild(qrRef, "cbc:ID", "QR")
	attachment := qrRef.CreateElement("cac:Attachment")
	embedded := textChild(attachment, "cbc:EmbeddedDocumentBinaryObject", qrBase64)
	embedded.CreateAttr("mimeCode", "text/plain")
	root.InsertChildAt(supplierIdx, qrRef)

	sigRef := etree.NewElement("cac:Signature")
	textChild(sigRef, "cbc:ID", signatureID)
	textChild(sigRef, "cbc:SignatureMethod", signatureMethodXAdES)
	root.InsertChildAt(supplierIdx+1, sigRef)

	return doc, nil
}

// buildUBLExtensions assembles the full enveloped-signature extension block
func (s *Signer) buildUBLExtensions(block *SignatureBlock) *etree.Element {
	extensions := etree.NewElement("ext:UBLExtensions")
	extension := extensions.CreateElement("ext:UBLExtension")
	textChild(extension, "ext:ExtensionURI", extensionURI)
	content := extension.CreateElement("ext:ExtensionContent")

	docSigs := content.CreateElement("sig:UBLDocumentSignatures")
	docSigs.CreateAttr("xmlns:sig", NamespaceSig)
	docSigs.CreateAttr("xmlns:sac", NamespaceSAC)
	docSigs.CreateAttr("xmlns:sbc", NamespaceSBC)

	info := docSigs.CreateElement("sac:SignatureInformation")
	textChild(info, "cbc:ID", signatureInfoID)
	textChild(info, "sbc:ReferencedSignatureID", signatureID)

	signature := info.CreateElement("ds:Signature")
	signature.CreateAttr("xmlns:ds", NamespaceDS)
	signature.CreateAttr("Id", "signature")

	signature.AddChild(s.buildSignedInfo(block))
	textChild(signature, "ds:SignatureValue", block.SignatureValue)

	keyInfo := signature.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	textChild(x509Data, "ds:X509Certificate", block.CertificateBase64)

	object := signature.CreateElement("ds:Object")
	qualifying := etree.NewElement("xades:QualifyingProperties")
	qualifying.CreateAttr("xmlns:xades", NamespaceXAdES)
	qualifying.CreateAttr("Target", "signature")
	qualifying.AddChild(s.buildSignedProperties(block))
	object.AddChild(qualifying)

	return extensions
}

// buildSignedInfo carries the canonicalization and digest method
// identifiers plus both references: the invoice data and the XAdES
// signed properties.
func (s *Signer) buildSignedInfo(block *SignatureBlock) *etree.Element {
	signedInfo := etree.NewElement("ds:SignedInfo")

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", AlgC14N11)
	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", AlgECDSASHA256)

	invoiceRef := signedInfo.CreateElement("ds:Reference")
	invoiceRef.CreateAttr("Id", "invoiceSignedData")
	invoiceRef.CreateAttr("URI", "")
	transforms := invoiceRef.CreateElement("ds:Transforms")
	for _, xpath := range []string{
		"not(//ancestor-or-self::ext:UBLExtensions)",
		"not(//ancestor-or-self::cac:Signature)",
		"not(//ancestor-or-self::cac:AdditionalDocumentReference[cbc:ID='QR'])",
	} {
		transform := transforms.CreateElement("ds:Transform")
		transform.CreateAttr("Algorithm", AlgXPath)
		textChild(transform, "ds:XPath", xpath)
	}
	c14nTransform := transforms.CreateElement("ds:Transform")
	c14nTransform.CreateAttr("Algorithm", AlgC14N11)
	digestMethod := invoiceRef.CreateElement("ds:DigestMethod")
	digestMethod.CreateAttr("Algorithm", AlgSHA256)
	textChild(invoiceRef, "ds:DigestValue", block.InvoiceDigest)

	propsRef := signedInfo.CreateElement("ds:Reference")
	propsRef.CreateAttr("Type", "http://www.w3.org/2000/09/xmldsig#SignatureProperties")
	propsRef.CreateAttr("URI", "#xadesSignedProperties")
	propsDigestMethod := propsRef.CreateElement("ds:DigestMethod")
	propsDigestMethod.CreateAttr("Algorithm", AlgSHA256)
	textChild(propsRef, "ds:DigestValue", block.SignedPropertiesDigest)

	return signedInfo
}

// buildSignedProperties assembles the XAdES SignedProperties fragment:
// signing time, certificate digest, issuer and serial.
func (s *Signer) buildSignedProperties(block *SignatureBlock) *etree.Element {
	props := etree.NewElement("xades:SignedProperties")
	props.CreateAttr("xmlns:xades", NamespaceXAdES)
	props.CreateAttr("Id", "xadesSignedProperties")

	sigProps := props.CreateElement("xades:SignedSignatureProperties")
	textChild(sigProps, "xades:SigningTime", block.SigningTime.Format("2006-01-02T15:04:05Z"))

	signingCert := sigProps.CreateElement("xades:SigningCertificate")
	cert := signingCert.CreateElement("xades:Cert")

	certDigest := cert.CreateElement("xades:CertDigest")
	method := certDigest.CreateElement("ds:DigestMethod")
	method.CreateAttr("xmlns:ds", NamespaceDS)
	method.CreateAttr("Algorithm", AlgSHA256)
	value := textChild(certDigest, "ds:DigestValue", s.certificateDigest())
	value.CreateAttr("xmlns:ds", NamespaceDS)

	issuerSerial := cert.CreateElement("xades:IssuerSerial")
	issuerName := textChild(issuerSerial, "ds:X509IssuerName", s.cred.Certificate.Issuer)
	issuerName.CreateAttr("xmlns:ds", NamespaceDS)
	serial := textChild(issuerSerial, "ds:X509SerialNumber", s.cred.Certificate.SerialNumber.String())
	serial.CreateAttr("xmlns:ds", NamespaceDS)

	return props
}

// certificateDigest computes the XAdES CertDigest the way ZATCA's reference
// SDK does: Base64 over the lowercase hex of the SHA-256 of the Base64
// certificate body, not over the raw digest bytes.
func (s *Signer) certificateDigest() string {
	certB64 := base64.StdEncoding.EncodeToString(s.cred.Certificate.Raw)
	return hexDigestBase64([]byte(certB64))
}

// hexDigestBase64 is the SDK's digest-of-text convention shared by the
// certificate digest and the signed properties digest
func hexDigestBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString([]byte(ComputeInvoiceHash(data).Hex()))
}

func childIndex(parent *etree.Element, tag string) int {
	for i, child := range parent.Child {
		if el, ok := child.(*etree.Element); ok && el.Tag == tag {
			return i
		}
	}
	return -1
}

func textChild(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}
