package route

import (
	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/controller"
	"github.com/sahlsoft/erp-fatoora/pkg/middleware"
)

// RegisterInvoiceRoutes registers the invoice routes
func RegisterInvoiceRoutes(r *gin.RouterGroup, invoiceController *controller.InvoiceController) {
	invoices := r.Group("/invoices")
	invoices.Use(middleware.AuthMiddleware())
	{
		invoices.POST("", invoiceController.Create)
		invoices.GET("", invoiceController.List)
		invoices.GET("/:id", invoiceController.FindByID)
		invoices.PATCH("/:id/status", invoiceController.UpdateStatus)
		invoices.POST("/:id/certify", invoiceController.Certify)
		invoices.GET("/:id/xml", invoiceController.DownloadXML)
		invoices.GET("/:id/qr.png", invoiceController.QRImage)
	}
}
