package route

import (
	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/controller"
	"github.com/sahlsoft/erp-fatoora/pkg/middleware"
)

// RegisterCertificateRoutes registers the CSID credential routes
func RegisterCertificateRoutes(r *gin.RouterGroup, certificateController *controller.CertificateController) {
	certificates := r.Group("/certificates")
	certificates.Use(middleware.AuthMiddleware())
	{
		certificates.POST("", certificateController.Upload)
		certificates.GET("", certificateController.List)
		certificates.PATCH("/:id/renew", certificateController.Renew)
		certificates.POST("/:id/activate", certificateController.Activate)
		certificates.POST("/:id/deactivate", certificateController.Deactivate)
	}
}
