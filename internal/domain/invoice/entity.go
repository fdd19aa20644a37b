package invoice

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusCertified Status = "certified"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Invoice type codes per UBL/ZATCA
const (
	TypeCodeStandard   = "388" // tax invoice
	TypeCodeCreditNote = "381"
	TypeCodeDebitNote  = "383"

	// InvoiceTypeCode name attribute: tax invoice vs simplified
	SubtypeTax        = "0100000"
	SubtypeSimplified = "0200000"
)

var (
	// ErrNoLineItems is returned when certification is attempted without lines
	ErrNoLineItems = errors.New("invoice has no line items")
	// ErrTotalsMismatch is returned when stored totals disagree with the line sum
	ErrTotalsMismatch = errors.New("invoice totals inconsistent with line items")
	// ErrCertifiedImmutable is returned on any attempt to change certified artifacts
	ErrCertifiedImmutable = errors.New("certified invoice artifacts are immutable")
	// ErrInvalidTransition is returned for a lifecycle transition the state machine forbids
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Invoice is the invoice aggregate. Monetary fields are decimals at full
// precision; rounding to 2 decimals happens only when amounts are
// serialized (XML, QR, API responses).
type Invoice struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	UUID        string     `json:"uuid"`
	Status      Status     `json:"status"`
	TypeCode    string     `json:"type_code"`
	SubtypeCode string     `json:"subtype_code"`
	Currency    string     `json:"currency"`
	IssueDate   time.Time  `json:"issue_date"`
	SupplyDate  time.Time  `json:"supply_date"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	SellerID string `json:"seller_id"`
	BuyerID  string `json:"buyer_id"`

	// Counter is the ZATCA invoice counter value (ICV); PreviousHash is the
	// hash of the previously certified invoice (PIH).
	Counter      int64  `json:"counter"`
	PreviousHash string `json:"previous_hash"`

	Lines []LineItem `json:"lines"`

	Subtotal decimal.Decimal `json:"subtotal"`
	VATTotal decimal.Decimal `json:"vat_total"`
	Total    decimal.Decimal `json:"total"`

	Notes string `json:"notes,omitempty"`
	Terms string `json:"terms,omitempty"`

	// Certification artifacts, immutable once set
	QRCode      string     `json:"qr_code,omitempty"`
	InvoiceHash string     `json:"invoice_hash,omitempty"`
	SignedXML   string     `json:"-"`
	CertifiedAt *time.Time `json:"certified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvoice creates a draft invoice
func NewInvoice(number, sellerID, buyerID string, issueDate, supplyDate time.Time) (*Invoice, error) {
	if number == "" {
		return nil, errors.New("invoice number is required")
	}
	if sellerID == "" {
		return nil, errors.New("seller is required")
	}
	if buyerID == "" {
		return nil, errors.New("buyer is required")
	}
	if issueDate.IsZero() {
		return nil, errors.New("issue date is required")
	}
	if supplyDate.IsZero() {
		supplyDate = issueDate
	}

	now := time.Now()
	return &Invoice{
		ID:          uuid.New().String(),
		Number:      number,
		UUID:        uuid.New().String(),
		Status:      StatusDraft,
		TypeCode:    TypeCodeStandard,
		SubtypeCode: SubtypeTax,
		Currency:    "SAR",
		IssueDate:   issueDate,
		SupplyDate:  supplyDate,
		SellerID:    sellerID,
		BuyerID:     buyerID,
		Counter:     1,
		Subtotal:    decimal.Zero,
		VATTotal:    decimal.Zero,
		Total:       decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AddLine appends a line item and recomputes totals
func (i *Invoice) AddLine(line LineItem) error {
	if i.Status == StatusCertified {
		return ErrCertifiedImmutable
	}
	i.Lines = append(i.Lines, line)
	i.RecomputeTotals()
	return nil
}

// RecomputeTotals derives the invoice totals from the line items. Line
// amounts are the source of truth; stored totals only cache the sum.
func (i *Invoice) RecomputeTotals() {
	subtotal := decimal.Zero
	vat := decimal.Zero
	for _, line := range i.Lines {
		subtotal = subtotal.Add(line.LineTotal)
		vat = vat.Add(line.VATAmount)
	}
	i.Subtotal = subtotal
	i.VATTotal = vat
	i.Total = subtotal.Add(vat)
	i.UpdatedAt = time.Now()
}

// ValidateForCertification checks the preconditions of the signing pipeline:
// at least one line item, and totals consistent with the line sum at
// currency precision.
func (i *Invoice) ValidateForCertification() error {
	if len(i.Lines) == 0 {
		return ErrNoLineItems
	}
	subtotal := decimal.Zero
	vat := decimal.Zero
	for _, line := range i.Lines {
		subtotal = subtotal.Add(line.LineTotal)
		vat = vat.Add(line.VATAmount)
	}
	if !subtotal.Round(2).Equal(i.Subtotal.Round(2)) ||
		!vat.Round(2).Equal(i.VATTotal.Round(2)) ||
		!subtotal.Add(vat).Round(2).Equal(i.Total.Round(2)) {
		return ErrTotalsMismatch
	}
	return nil
}

// CanTransition reports whether the lifecycle permits moving to the target status
func (i *Invoice) CanTransition(to Status) bool {
	switch i.Status {
	case StatusDraft:
		return to == StatusIssued || to == StatusCertified || to == StatusCancelled
	case StatusIssued:
		return to == StatusCertified || to == StatusPaid || to == StatusCancelled
	case StatusCertified:
		return to == StatusPaid || to == StatusCancelled
	default:
		return false
	}
}

// Transition moves the invoice to the target business status. The certified
// transition must go through MarkCertified so the artifacts are set
// atomically with the status.
func (i *Invoice) Transition(to Status) error {
	if to == StatusCertified {
		return fmt.Errorf("%w: certification requires the signing pipeline", ErrInvalidTransition)
	}
	if !i.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, to)
	}
	i.Status = to
	i.UpdatedAt = time.Now()
	return nil
}

// MarkCertified records the signing pipeline output and advances the status.
// Re-applying identical artifacts is a no-op, which makes retries after a
// failed persist safe; differing artifacts on an already certified invoice
// are rejected.
func (i *Invoice) MarkCertified(qrCode, invoiceHash, signedXML string, at time.Time) error {
	if i.Status == StatusCertified {
		if i.QRCode == qrCode && i.InvoiceHash == invoiceHash && i.SignedXML == signedXML {
			return nil
		}
		return ErrCertifiedImmutable
	}
	if !i.CanTransition(StatusCertified) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, StatusCertified)
	}
	i.Status = StatusCertified
	i.QRCode = qrCode
	i.InvoiceHash = invoiceHash
	i.SignedXML = signedXML
	i.CertifiedAt = &at
	i.UpdatedAt = time.Now()
	return nil
}

// IsCertified reports whether the invoice carries certified artifacts
func (i *Invoice) IsCertified() bool {
	return i.Status == StatusCertified || (i.Status == StatusPaid || i.Status == StatusCancelled) && i.SignedXML != ""
}

// IssueInstant combines IssueDate's date and time into the invoice issue
// instant used for the QR timestamp and the XAdES signing time.
func (i *Invoice) IssueInstant() time.Time {
	return i.IssueDate.UTC()
}

// AmountString formats a monetary amount the way every serialized surface
// expects it: fixed-point, exactly 2 fractional digits, no separators.
func AmountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
