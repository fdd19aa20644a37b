package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/dto"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/repository"
	partydomain "github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
)

// PartyController handles seller/buyer requests
type PartyController struct {
	partyRepo partydomain.Repository
	logger    logger.Logger
}

// NewPartyController creates a new PartyController instance
func NewPartyController(partyRepo partydomain.Repository, logger logger.Logger) *PartyController {
	return &PartyController{
		partyRepo: partyRepo,
		logger:    logger,
	}
}

// Create creates a new party
// @Summary Create party
// @Description Creates a seller or buyer
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param party body dto.PartyRequest true "Party data"
// @Success 201 {object} dto.PartyResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /parties [post]
func (c *PartyController) Create(ctx *gin.Context) {
	var req dto.PartyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	p, err := partydomain.NewParty(req.Name, req.Type, req.VATNumber, req.CRNumber)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid party data", err.Error()))
		return
	}
	p.SetAddress(req.Street, req.District, req.City, req.PostalCode)
	p.SetContact(req.Phone, req.Email)

	if err := c.partyRepo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrPartyDuplicateKey) {
			ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "VAT number already registered", ""))
			return
		}
		c.logger.Error("failed to create party", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to create party", err.Error()))
		return
	}

	ctx.JSON(http.StatusCreated, dto.ToPartyResponse(p))
}

// FindByID returns a party by its ID
// @Summary Get party
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Party ID"
// @Success 200 {object} dto.PartyResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /parties/{id} [get]
func (c *PartyController) FindByID(ctx *gin.Context) {
	p, err := c.partyRepo.FindByID(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPartyNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "party not found", ""))
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to load party", err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, dto.ToPartyResponse(p))
}

// List returns a paginated party list
// @Summary List parties
// @Tags parties
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.PartyListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /parties [get]
func (c *PartyController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)

	parties, err := c.partyRepo.List(ctx, pagination.PageSize, (pagination.Page-1)*pagination.PageSize)
	if err != nil {
		c.logger.Error("failed to list parties", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to list parties", err.Error()))
		return
	}

	items := make([]dto.PartyResponse, len(parties))
	for i, p := range parties {
		items[i] = dto.ToPartyResponse(p)
	}
	ctx.JSON(http.StatusOK, dto.PartyListResponse{
		Items: items,
		Page:  pagination.Page,
		Size:  pagination.PageSize,
	})
}

// Update updates a party
// @Summary Update party
// @Tags parties
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Party ID"
// @Param party body dto.PartyRequest true "Party data"
// @Success 200 {object} dto.PartyResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /parties/{id} [put]
func (c *PartyController) Update(ctx *gin.Context) {
	var req dto.PartyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	p, err := c.partyRepo.FindByID(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPartyNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "party not found", ""))
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to load party", err.Error()))
		return
	}

	if req.VATNumber != "" {
		if err := partydomain.ValidateVATNumber(req.VATNumber); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid VAT number", err.Error()))
			return
		}
	}
	p.Name = req.Name
	p.Type = req.Type
	p.VATNumber = req.VATNumber
	p.CRNumber = req.CRNumber
	p.SetAddress(req.Street, req.District, req.City, req.PostalCode)
	p.SetContact(req.Phone, req.Email)

	if err := c.partyRepo.Update(ctx, p); err != nil {
		c.logger.Error("failed to update party", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to update party", err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, dto.ToPartyResponse(p))
}
