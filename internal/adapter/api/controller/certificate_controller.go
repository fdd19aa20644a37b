package controller

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/dto"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/repository"
	certdomain "github.com/sahlsoft/erp-fatoora/internal/domain/certificate"
	"github.com/sahlsoft/erp-fatoora/internal/zatca"
	"github.com/sahlsoft/erp-fatoora/pkg/csid"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
)

// CertificateController handles CSID credential requests
type CertificateController struct {
	certRepo   certdomain.Repository
	certifiers *zatca.CertifierSource
	logger     logger.Logger
}

// NewCertificateController creates a new CertificateController instance
func NewCertificateController(certRepo certdomain.Repository, certifiers *zatca.CertifierSource, logger logger.Logger) *CertificateController {
	return &CertificateController{
		certRepo:   certRepo,
		certifiers: certifiers,
		logger:     logger,
	}
}

// Upload stores a new CSID credential
// @Summary Upload certificate
// @Description Stores a CSID credential (PEM bundle or PKCS#12 container) after validating that it parses and the key matches the certificate
// @Tags certificates
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param certificate body dto.CertificateUploadRequest true "Credential data"
// @Success 201 {object} dto.CertificateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /certificates [post]
func (c *CertificateController) Upload(ctx *gin.Context) {
	var req dto.CertificateUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "credential data is not valid base64", err.Error()))
		return
	}

	// PKCS#12 containers are converted to PEM before storage
	pemData := data
	if !bytes.Contains(data, []byte("-----BEGIN")) {
		pemData, err = csid.ContainerToPEM(data, req.Password)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "failed to read PKCS#12 container", err.Error()))
			return
		}
	}

	// reject material that would fail at signing time
	if _, err := csid.Load(pemData, pemData); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "credential is not usable for signing", err.Error()))
		return
	}

	cert, err := certdomain.NewCertificate(req.Name, req.ExpirationDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid certificate data", err.Error()))
		return
	}
	if err := cert.StorePEM(pemData, req.Password); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid certificate data", err.Error()))
		return
	}

	if err := c.certRepo.Create(ctx, cert); err != nil {
		c.logger.Error("failed to store certificate", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to store certificate", err.Error()))
		return
	}

	ctx.JSON(http.StatusCreated, dto.ToCertificateResponse(cert))
}

// List returns the stored credentials
// @Summary List certificates
// @Tags certificates
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.CertificateListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /certificates [get]
func (c *CertificateController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)

	certs, err := c.certRepo.List(ctx, pagination.PageSize, (pagination.Page-1)*pagination.PageSize)
	if err != nil {
		c.logger.Error("failed to list certificates", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to list certificates", err.Error()))
		return
	}

	items := make([]dto.CertificateResponse, len(certs))
	for i, cert := range certs {
		items[i] = dto.ToCertificateResponse(cert)
	}
	ctx.JSON(http.StatusOK, dto.CertificateListResponse{
		Items: items,
		Page:  pagination.Page,
		Size:  pagination.PageSize,
	})
}

// Activate makes a credential the one used for signing
// @Summary Activate certificate
// @Description Activates a credential and deactivates the others
// @Tags certificates
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Certificate ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /certificates/{id}/activate [post]
func (c *CertificateController) Activate(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.certRepo.Activate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCertificateNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "certificate not found", ""))
			return
		}
		c.logger.Error("failed to activate certificate", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to activate certificate", err.Error()))
		return
	}
	c.certifiers.Invalidate()
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse("certificate activated", nil))
}

// Renew updates a credential's expiration date after re-enrollment
// @Summary Renew certificate
// @Description Updates the expiration date of a stored credential
// @Tags certificates
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Certificate ID"
// @Param renewal body dto.CertificateRenewRequest true "New expiration date"
// @Success 200 {object} dto.CertificateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /certificates/{id}/renew [patch]
func (c *CertificateController) Renew(ctx *gin.Context) {
	var req dto.CertificateRenewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	cert, err := c.certRepo.FindByID(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrCertificateNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "certificate not found", ""))
			return
		}
		c.logger.Error("failed to load certificate", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to load certificate", err.Error()))
		return
	}

	if err := cert.RenewExpiration(req.ExpirationDate); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid expiration date", err.Error()))
		return
	}

	if err := c.certRepo.Update(ctx, cert); err != nil {
		c.logger.Error("failed to update certificate", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to update certificate", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToCertificateResponse(cert))
}

// Deactivate retires a credential
// @Summary Deactivate certificate
// @Tags certificates
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Certificate ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /certificates/{id}/deactivate [post]
func (c *CertificateController) Deactivate(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.certRepo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCertificateNotFound) {
			ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "certificate not found", ""))
			return
		}
		c.logger.Error("failed to deactivate certificate", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to deactivate certificate", err.Error()))
		return
	}
	c.certifiers.Invalidate()
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse("certificate deactivated", nil))
}
