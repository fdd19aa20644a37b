package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/dto"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/repository"
	userdomain "github.com/sahlsoft/erp-fatoora/internal/domain/user"
	"github.com/sahlsoft/erp-fatoora/pkg/jwt"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
)

// AuthController handles authentication requests
type AuthController struct {
	userRepo userdomain.Repository
	logger   logger.Logger
}

// NewAuthController creates a new AuthController instance
func NewAuthController(userRepo userdomain.Repository, logger logger.Logger) *AuthController {
	return &AuthController{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Login authenticates a user and returns a JWT
// @Summary Login
// @Description Authenticates with email and password, returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	u, err := c.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(http.StatusUnauthorized, "invalid credentials", ""))
			return
		}
		c.logger.Error("failed to load user", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "login failed", err.Error()))
		return
	}

	if !u.IsActive() || !u.CheckPassword(req.Password) {
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(http.StatusUnauthorized, "invalid credentials", ""))
		return
	}

	token, err := jwt.GenerateToken(u.ID, u.Email, 24*time.Hour)
	if err != nil {
		c.logger.Error("failed to generate token", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "login failed", err.Error()))
		return
	}

	if err := c.userRepo.UpdateLastLogin(ctx, u.ID); err != nil {
		c.logger.Warn("failed to record last login", "user", u.ID, "error", err)
	}

	ctx.JSON(http.StatusOK, dto.LoginResponse{
		Token: token,
		User: dto.UserResponse{
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Status: string(u.Status),
		},
	})
}

// Register creates a new operator account
// @Summary Register user
// @Description Creates a new active user
// @Tags auth
// @Accept json
// @Produce json
// @Param user body dto.RegisterRequest true "User data"
// @Success 201 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body", err.Error()))
		return
	}

	u, err := userdomain.NewUser(req.Name, req.Email, req.Password)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid user data", err.Error()))
		return
	}

	if err := c.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserDuplicateKey) {
			ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "email already registered", ""))
			return
		}
		c.logger.Error("failed to create user", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "failed to create user", err.Error()))
		return
	}

	ctx.JSON(http.StatusCreated, dto.UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Status: string(u.Status),
	})
}
