package route

import (
	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/controller"
)

// RegisterAuthRoutes registers the authentication routes
func RegisterAuthRoutes(r *gin.RouterGroup, authController *controller.AuthController) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", authController.Login)
		auth.POST("/register", authController.Register)
	}
}
