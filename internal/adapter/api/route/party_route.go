package route

import (
	"github.com/gin-gonic/gin"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/controller"
	"github.com/sahlsoft/erp-fatoora/pkg/middleware"
)

// RegisterPartyRoutes registers the party routes
func RegisterPartyRoutes(r *gin.RouterGroup, partyController *controller.PartyController) {
	parties := r.Group("/parties")
	parties.Use(middleware.AuthMiddleware())
	{
		parties.POST("", partyController.Create)
		parties.GET("", partyController.List)
		parties.GET("/:id", partyController.FindByID)
		parties.PUT("/:id", partyController.Update)
	}
}
