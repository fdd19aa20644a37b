package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/controller"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/api/route"
	"github.com/sahlsoft/erp-fatoora/internal/adapter/repository"
	"github.com/sahlsoft/erp-fatoora/internal/infrastructure/database"
	"github.com/sahlsoft/erp-fatoora/internal/zatca"
	"github.com/sahlsoft/erp-fatoora/pkg/logger"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// App holds the application and its dependencies
type App struct {
	router *gin.Engine
	db     *pgxpool.Pool
	logger logger.Logger

	authController        *controller.AuthController
	partyController       *controller.PartyController
	invoiceController     *controller.InvoiceController
	certificateController *controller.CertificateController
}

// NewApp assembles the application: database, repositories, the
// certification pipeline and the HTTP layer
func NewApp() (*App, error) {
	log := logger.NewLogger()
	if os.Getenv("APP_ENV") == "development" {
		log = logger.NewDevelopmentLogger()
	}

	db, err := database.NewPostgresDB()
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	partyRepo := repository.NewPartyRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	certRepo := repository.NewCertificateRepository(db)

	certifiers := zatca.NewCertifierSource(certRepo, log)

	app := &App{
		router:                gin.Default(),
		db:                    db,
		logger:                log,
		authController:        controller.NewAuthController(userRepo, log),
		partyController:       controller.NewPartyController(partyRepo, log),
		invoiceController:     controller.NewInvoiceController(invoiceRepo, partyRepo, certifiers, log),
		certificateController: controller.NewCertificateController(certRepo, certifiers, log),
	}
	app.setupRoutes()
	return app, nil
}

func (a *App) setupRoutes() {
	a.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
	}))

	a.router.GET("/health", func(c *gin.Context) {
		if err := a.db.Ping(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := a.router.Group("/api/v1")
	route.RegisterAuthRoutes(api, a.authController)
	route.RegisterPartyRoutes(api, a.partyController)
	route.RegisterInvoiceRoutes(api, a.invoiceController)
	route.RegisterCertificateRoutes(api, a.certificateController)
}

// Start runs the HTTP server
func (a *App) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	a.logger.Info("starting server", "port", port)
	return a.router.Run(":" + port)
}

// Close releases the application resources
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
