package dto

import (
	"time"

	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
)

// InvoiceLineRequest is a single line of the invoice create payload.
// Amounts travel as strings so no precision is lost in JSON numbers.
type InvoiceLineRequest struct {
	Description  string `json:"description" binding:"required"`
	Quantity     string `json:"quantity" binding:"required"`
	UnitPrice    string `json:"unit_price" binding:"required"`
	DiscountRate string `json:"discount_rate"`
	MarginRate   string `json:"margin_rate"`
	VATRate      string `json:"vat_rate" binding:"required"`
}

// InvoiceRequest is the invoice create payload
type InvoiceRequest struct {
	Number     string               `json:"number" binding:"required"`
	SellerID   string               `json:"seller_id" binding:"required"`
	BuyerID    string               `json:"buyer_id" binding:"required"`
	IssueDate  time.Time            `json:"issue_date" binding:"required"`
	SupplyDate time.Time            `json:"supply_date"`
	DueDate    *time.Time           `json:"due_date"`
	Notes      string               `json:"notes"`
	Terms      string               `json:"terms"`
	Lines      []InvoiceLineRequest `json:"lines" binding:"required,min=1"`
}

// StatusUpdateRequest moves an invoice to a new lifecycle status
type StatusUpdateRequest struct {
	Status invoice.Status `json:"status" binding:"required"`
}

// InvoiceLineResponse is a single line of the invoice representation
type InvoiceLineResponse struct {
	Description  string `json:"description"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	DiscountRate string `json:"discount_rate"`
	MarginRate   string `json:"margin_rate"`
	VATRate      string `json:"vat_rate"`
	NetUnitPrice string `json:"net_unit_price"`
	VATAmount    string `json:"vat_amount"`
	LineTotal    string `json:"line_total"`
	TotalWithVAT string `json:"total_with_vat"`
}

// InvoiceResponse is the invoice representation returned by the API
type InvoiceResponse struct {
	ID           string                `json:"id"`
	Number       string                `json:"number"`
	UUID         string                `json:"uuid"`
	Status       invoice.Status        `json:"status"`
	TypeCode     string                `json:"type_code"`
	Currency     string                `json:"currency"`
	IssueDate    time.Time             `json:"issue_date"`
	SupplyDate   time.Time             `json:"supply_date"`
	DueDate      *time.Time            `json:"due_date,omitempty"`
	SellerID     string                `json:"seller_id"`
	BuyerID      string                `json:"buyer_id"`
	Counter      int64                 `json:"counter"`
	PreviousHash string                `json:"previous_hash,omitempty"`
	Lines        []InvoiceLineResponse `json:"lines"`
	Subtotal     string                `json:"subtotal"`
	VATTotal     string                `json:"vat_total"`
	Total        string                `json:"total"`
	Notes        string                `json:"notes,omitempty"`
	QRCode       string                `json:"qr_code,omitempty"`
	InvoiceHash  string                `json:"invoice_hash,omitempty"`
	CertifiedAt  *time.Time            `json:"certified_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// InvoiceListResponse is the paginated invoice list
type InvoiceListResponse struct {
	Items      []InvoiceResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	TotalPages int               `json:"total_pages"`
}

// CertificationResponse carries the artifacts produced by certification
type CertificationResponse struct {
	ID          string         `json:"id"`
	Status      invoice.Status `json:"status"`
	Counter     int64          `json:"counter"`
	InvoiceHash string         `json:"invoice_hash"`
	QRCode      string         `json:"qr_code"`
	CertifiedAt time.Time      `json:"certified_at"`
}

// ToInvoiceResponse converts a domain invoice to its DTO
func ToInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	lines := make([]InvoiceLineResponse, len(inv.Lines))
	for i, line := range inv.Lines {
		lines[i] = InvoiceLineResponse{
			Description:  line.Description,
			Quantity:     line.Quantity.String(),
			UnitPrice:    invoice.AmountString(line.UnitPrice),
			DiscountRate: line.DiscountRate.String(),
			MarginRate:   line.MarginRate.String(),
			VATRate:      line.VATRate.String(),
			NetUnitPrice: invoice.AmountString(line.NetUnitPrice),
			VATAmount:    invoice.AmountString(line.VATAmount),
			LineTotal:    invoice.AmountString(line.LineTotal),
			TotalWithVAT: invoice.AmountString(line.TotalWithVAT),
		}
	}

	return &InvoiceResponse{
		ID:           inv.ID,
		Number:       inv.Number,
		UUID:         inv.UUID,
		Status:       inv.Status,
		TypeCode:     inv.TypeCode,
		Currency:     inv.Currency,
		IssueDate:    inv.IssueDate,
		SupplyDate:   inv.SupplyDate,
		DueDate:      inv.DueDate,
		SellerID:     inv.SellerID,
		BuyerID:      inv.BuyerID,
		Counter:      inv.Counter,
		PreviousHash: inv.PreviousHash,
		Lines:        lines,
		Subtotal:     invoice.AmountString(inv.Subtotal),
		VATTotal:     invoice.AmountString(inv.VATTotal),
		Total:        invoice.AmountString(inv.Total),
		Notes:        inv.Notes,
		QRCode:       inv.QRCode,
		InvoiceHash:  inv.InvoiceHash,
		CertifiedAt:  inv.CertifiedAt,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}
}
