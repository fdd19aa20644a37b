package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/dto"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/repository"
	invoicedomain "github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
	partydomain "github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/sahlsoft/erp-fatoora/internal/zatca"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// InvoiceController handles invoice requests
type InvoiceController struct {
	invoiceRepo invoicedomain.Repository
	partyRepo   partydomain.Repository
	certifiers  *zatca.CertifierSource
	logger      logger.Logger
}

// NewInvoiceController creates a new InvoiceController instance
func NewInvoiceController(invoiceRepo invoicedomain.Repository, partyRepo partydomain.Repository, certifiers *zatca.CertifierSource, logger logger.Logger) *InvoiceController {
	return &InvoiceController{
		invoiceRepo: invoiceRepo,
		partyRepo:   partyRepo,
		certifiers:  certifiers,
		logger:      logger,
	}
}

// Create creates a new draft invoice
// @Summary Create invoice
// @Description Creates a new draft invoice with its line items
// @Tags invoices
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param invoice body dto.InvoiceRequest true "Invoice data"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /invoices [post]
func (c *InvoiceController) Create(ctx *gin.Context) {
	var req dto.InvoiceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	seller, err := c.partyRepo.FindByID(ctx, req.SellerID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "seller not found", err.Error()))
		return
	}
	if _, err := c.partyRepo.FindByID(ctx, req.BuyerID); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "buyer not found", err.Error()))
		return
	}

	inv, err := invoicedomain.NewInvoice(req.Number, req.SellerID, req.BuyerID, req.IssueDate, req.SupplyDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid invoice", err.Error()))
		return
	}
	inv.DueDate = req.DueDate
	inv.Notes = req.Notes
	inv.Terms = req.Terms

	for i, lr := range req.Lines {
		line, err := buildLine(lr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest,
				fmt.Sprintf("invalid line %d", i+1), err.Error()))
			return
		}
		if err := inv.AddLine(line); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid line item", err.Error()))
			return
		}
	}

	if err := c.invoiceRepo.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrInvoiceDuplicateKey) {
			ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "invoice number already exists", err.Error()))
			return
		}
		c.logger.Error("failed to create invoice", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to create invoice", err.Error()))
		return
	}

	// drafts carry the 5-field preview QR in the response
	resp := dto.ToInvoiceResponse(inv)
	if payload, err := zatca.BasicQR(inv, seller); err == nil {
		resp.QRCode = payload
	}
	ctx.JSON(http.StatusCreated, resp)
}

// FindByID returns an invoice by its ID
// @Summary Get invoice
// @Description Returns an invoice with its line items
// @Tags invoices
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /invoices/{id} [get]
func (c *InvoiceController) FindByID(ctx *gin.Context) {
	inv, ok := c.loadInvoice(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// List returns a paginated invoice list
// @Summary List invoices
// @Description Lists invoices, optionally filtered by status
// @Tags invoices
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.InvoiceListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /invoices [get]
func (c *InvoiceController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)
	status := invoicedomain.Status(ctx.Query("status"))

	invoices, err := c.invoiceRepo.List(ctx, status, pagination.PageSize, (pagination.Page-1)*pagination.PageSize)
	if err != nil {
		c.logger.Error("failed to list invoices", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to list invoices", err.Error()))
		return
	}
	total, err := c.invoiceRepo.Count(ctx, status)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to count invoices", err.Error()))
		return
	}

	items := make([]dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = *dto.ToInvoiceResponse(inv)
	}
	totalPages := (total + pagination.PageSize - 1) / pagination.PageSize

	ctx.JSON(http.StatusOK, dto.InvoiceListResponse{
		Items:      items,
		Total:      total,
		Page:       pagination.Page,
		Size:       pagination.PageSize,
		TotalPages: totalPages,
	})
}

// UpdateStatus moves an invoice through its lifecycle
// @Summary Update invoice status
// @Description Applies a lifecycle transition (issue, pay, cancel)
// @Tags invoices
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Invoice ID"
// @Param status body dto.StatusUpdateRequest true "Target status"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /invoices/{id}/status [patch]
func (c *InvoiceController) UpdateStatus(ctx *gin.Context) {
	var req dto.StatusUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	inv, ok := c.loadInvoice(ctx)
	if !ok {
		return
	}

	if err := inv.Transition(req.Status); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "transition not allowed", err.Error()))
		return
	}
	if err := c.invoiceRepo.UpdateStatus(ctx, inv.ID, inv.Status); err != nil {
		c.logger.Error("failed to update invoice status", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to update status", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// Certify runs the signing pipeline on an invoice
// @Summary Certify invoice
// @Description Builds, canonicalizes, hashes and signs the invoice XML, assembles the compliant QR and stores the artifacts
// @Tags invoices
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.CertificationResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /invoices/{id}/certify [post]
func (c *InvoiceController) Certify(ctx *gin.Context) {
	inv, ok := c.loadInvoice(ctx)
	if !ok {
		return
	}

	// certify is idempotent: a certified invoice returns its artifacts
	if inv.Status == invoicedomain.StatusCertified {
		ctx.JSON(http.StatusOK, certificationResponse(inv))
		return
	}

	seller, err := c.partyRepo.FindByID(ctx, inv.SellerID)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "seller not found", err.Error()))
		return
	}
	buyer, err := c.partyRepo.FindByID(ctx, inv.BuyerID)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "buyer not found", err.Error()))
		return
	}

	certifier, err := c.certifiers.Certifier(ctx)
	if err != nil {
		c.logger.Error("no usable signing credential", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "signing credential unavailable", err.Error()))
		return
	}

	counter, previousHash, err := c.invoiceRepo.NextCounter(ctx)
	if err != nil {
		c.logger.Error("failed to advance invoice counter", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to advance invoice counter", err.Error()))
		return
	}
	inv.Counter = counter
	inv.PreviousHash = previousHash

	result, err := certifier.Certify(inv, seller, buyer)
	if err != nil {
		var stage *zatca.StageError
		if errors.As(err, &stage) && stage.Stage == zatca.StageValidation {
			ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "invoice not certifiable", err.Error()))
			return
		}
		c.logger.Error("certification pipeline failed", "invoice", inv.Number, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "certification failed", err.Error()))
		return
	}

	if err := inv.MarkCertified(result.QRCode, result.InvoiceHash, result.SignedXML, result.CertifiedAt); err != nil {
		ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "invoice state changed", err.Error()))
		return
	}
	if err := c.invoiceRepo.SaveCertification(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrInvoiceConflict) {
			ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "invoice was certified concurrently", err.Error()))
			return
		}
		c.logger.Error("failed to persist certification", "invoice", inv.Number, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to persist certification", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, certificationResponse(inv))
}

// DownloadXML serves the signed invoice XML
// @Summary Download signed XML
// @Description Returns the signed UBL document of a certified invoice
// @Tags invoices
// @Produce application/xml
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Invoice ID"
// @Success 200 {string} string "signed XML"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /invoices/{id}/xml [get]
func (c *InvoiceController) DownloadXML(ctx *gin.Context) {
	inv, ok := c.loadInvoice(ctx)
	if !ok {
		return
	}
	if !inv.IsCertified() {
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "invoice is not certified", ""))
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xml"`, inv.Number))
	ctx.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(inv.SignedXML))
}

// QRImage serves the invoice QR as a PNG. Certified invoices get the
// compliant 9-field payload; draft and issued ones get the basic payload.
// @Summary Invoice QR image
// @Description Renders the invoice TLV QR payload as a PNG
// @Tags invoices
// @Produce image/png
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Invoice ID"
// @Param size query int false "Image size in pixels"
// @Success 200 {string} string "PNG image"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /invoices/{id}/qr.png [get]
func (c *InvoiceController) QRImage(ctx *gin.Context) {
	inv, ok := c.loadInvoice(ctx)
	if !ok {
		return
	}

	payload := inv.QRCode
	if payload == "" {
		seller, err := c.partyRepo.FindByID(ctx, inv.SellerID)
		if err != nil {
			ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "seller not found", err.Error()))
			return
		}
		payload, err = zatca.BasicQR(inv, seller)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to build QR payload", err.Error()))
			return
		}
	}

	size, _ := strconv.Atoi(ctx.DefaultQuery("size", "256"))
	if size < 64 || size > 1024 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		c.logger.Error("failed to render QR image", "invoice", inv.Number, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to render QR image", err.Error()))
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

func (c *InvoiceController) loadInvoice(ctx *gin.Context) (*invoicedomain.Invoice, bool) {
	inv, err := c.invoiceRepo.FindByID(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "invoice not found", ""))
		} else {
			c.logger.Error("failed to load invoice", "error", err)
			ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to load invoice", err.Error()))
		}
		return nil, false
	}
	return inv, true
}

func certificationResponse(inv *invoicedomain.Invoice) dto.CertificationResponse {
	resp := dto.CertificationResponse{
		ID:          inv.ID,
		Status:      inv.Status,
		Counter:     inv.Counter,
		InvoiceHash: inv.InvoiceHash,
		QRCode:      inv.QRCode,
	}
	if inv.CertifiedAt != nil {
		resp.CertifiedAt = *inv.CertifiedAt
	}
	return resp
}

func buildLine(lr dto.InvoiceLineRequest) (invoicedomain.LineItem, error) {
	qty, err := decimal.NewFromString(lr.Quantity)
	if err != nil {
		return invoicedomain.LineItem{}, fmt.Errorf("invalid quantity: %w", err)
	}
	price, err := decimal.NewFromString(lr.UnitPrice)
	if err != nil {
		return invoicedomain.LineItem{}, fmt.Errorf("invalid unit price: %w", err)
	}
	discount := decimal.Zero
	if lr.DiscountRate != "" {
		if discount, err = decimal.NewFromString(lr.DiscountRate); err != nil {
			return invoicedomain.LineItem{}, fmt.Errorf("invalid discount rate: %w", err)
		}
	}
	margin := decimal.Zero
	if lr.MarginRate != "" {
		if margin, err = decimal.NewFromString(lr.MarginRate); err != nil {
			return invoicedomain.LineItem{}, fmt.Errorf("invalid margin rate: %w", err)
		}
	}
	vat, err := decimal.NewFromString(lr.VATRate)
	if err != nil {
		return invoicedomain.LineItem{}, fmt.Errorf("invalid VAT rate: %w", err)
	}
	return invoicedomain.NewLineItem(lr.Description, qty, price, discount, margin, vat)
}
