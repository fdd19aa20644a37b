// Package zatca orchestrates the e-invoice certification pipeline: canonical
// XML construction, canonicalization, hashing, XAdES signing and compliant
// QR assembly, in the order ZATCA Phase 2 mandates.
package zatca

import (
	"errors"
	"fmt"
	"time"

	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/c14n"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/qr"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/sign"
	"github.com/sahlsoft/erp-fatoora/internal/zatca/ubl"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
)

// Stage identifies which pipeline stage failed, so callers can surface
// validation failures differently from crypto failures.
type Stage string

const (
	StageValidation       Stage = "validation"
	StageXMLBuild         Stage = "xml_build"
	StageCanonicalization Stage = "canonicalization"
	StageSigning          Stage = "signing"
	StageQREncoding       Stage = "qr_encoding"
)

// StageError wraps a pipeline failure with the stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("zatca %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Result is the certified artifact set the caller persists
type Result struct {
	SignedXML   string
	InvoiceHash string // Base64 SHA-256 of the canonical invoice XML
	QRCode      string // Base64 9-field TLV payload
	CertifiedAt time.Time
}

// Certifier runs the certification pipeline. It holds the signing
// credential for the process lifetime and is safe for concurrent use across
// invoices; concurrent attempts on the same invoice are serialized by the
// repository's optimistic status check, not here.
type Certifier struct {
	signer *sign.Signer
	logger logger.Logger
}

// NewCertifier creates a certifier around the loaded CSID credential
func NewCertifier(cred *csid.Credential, log logger.Logger) (*Certifier, error) {
	signer, err := sign.NewSigner(cred)
	if err != nil {
		return nil, err
	}
	return &Certifier{signer: signer, logger: log}, nil
}

// BasicQR builds the 5-field preview QR used while the invoice is not yet
// certified. It is a pure data transformation over the invoice and seller,
// so it needs no signing credential.
func BasicQR(inv *invoice.Invoice, seller *party.Party) (string, error) {
	if inv == nil {
		return "", stageErr(StageValidation, errors.New("invoice is required"))
	}
	if seller == nil {
		return "", stageErr(StageValidation, errors.New("seller is required"))
	}
	encoded, err := qr.BuildBasic(qr.BasicInput{
		SellerName: seller.Name,
		VATNumber:  seller.VATNumber,
		Timestamp:  inv.IssueInstant(),
		Total:      inv.Total,
		VATTotal:   inv.VATTotal,
	})
	if err != nil {
		return "", stageErr(StageQREncoding, err)
	}
	return encoded, nil
}

// Certify runs the full pipeline over a validated invoice. The pipeline is
// deterministic: the same invoice data yields byte-identical XML, hash and
// QR on every run, so a retry after a transient persist failure is safe.
// The invoice status is not touched here; the caller advances it only after
// the artifacts are durably stored.
func (c *Certifier) Certify(inv *invoice.Invoice, seller, buyer *party.Party) (*Result, error) {
	if err := inv.ValidateForCertification(); err != nil {
		return nil, stageErr(StageValidation, err)
	}
	if seller == nil || seller.VATNumber == "" {
		return nil, stageErr(StageValidation, errors.New("seller with VAT registration is required"))
	}
	if err := party.ValidateVATNumber(seller.VATNumber); err != nil {
		return nil, stageErr(StageValidation, err)
	}
	if buyer == nil {
		return nil, stageErr(StageValidation, errors.New("buyer is required"))
	}

	unsigned, err := ubl.BuildInvoiceXML(inv, seller, buyer)
	if err != nil {
		return nil, stageErr(StageXMLBuild, err)
	}

	canonical, err := c14n.Canonicalize(unsigned)
	if err != nil {
		return nil, stageErr(StageCanonicalization, err)
	}

	signingTime := inv.IssueInstant()
	block, err := c.signer.Sign(canonical, signingTime)
	if err != nil {
		return nil, stageErr(StageSigning, err)
	}

	cred := c.signer.Credential()
	qrCode, err := qr.BuildCompliant(qr.CompliantInput{
		BasicInput: qr.BasicInput{
			SellerName: seller.Name,
			VATNumber:  seller.VATNumber,
			Timestamp:  signingTime,
			Total:      inv.Total,
			VATTotal:   inv.VATTotal,
		},
		InvoiceHash:   block.InvoiceDigest,
		Signature:     block.SignatureValue,
		PublicKeyDER:  cred.Certificate.PublicKeyDER,
		CertSignature: cred.Certificate.SignatureValue,
	})
	if err != nil {
		return nil, stageErr(StageQREncoding, err)
	}

	signedDoc, err := c.signer.BuildSignedDocument(unsigned, block, qrCode)
	if err != nil {
		return nil, stageErr(StageSigning, err)
	}
	signedXML, err := signedDoc.WriteToString()
	if err != nil {
		return nil, stageErr(StageSigning, err)
	}

	if c.logger != nil {
		c.logger.Info("invoice certified",
			"invoice", inv.Number,
			"hash", block.InvoiceDigest)
	}

	return &Result{
		SignedXML:   signedXML,
		InvoiceHash: block.InvoiceDigest,
		QRCode:      qrCode,
		CertifiedAt: signingTime,
	}, nil
}
