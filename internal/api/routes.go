package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"buchhaltung/internal/config"
)

// NewRouter creates the gin engine with CORS for the UI origins and all routes.
func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")

	api.GET("/health", h.Health)

	api.POST("/statements/import", h.ImportStatement)

	documents := api.Group("/documents")
	documents.POST("/parse", h.ParseDocument)
	documents.POST("/import", h.ImportDocument)

	tx := api.Group("/transactions")
	tx.GET("/:id/matches", h.Matches)
	tx.POST("/:id/link", h.Link)

	api.POST("/reconciliation/auto-link", h.AutoLink)

	wizard := api.Group("/wizard")
	{
		wizard.POST("", h.StartWizard)
		wizard.GET("/:id", h.GetWizard)
		wizard.POST("/:id/confirm", h.ConfirmWizard)
		wizard.POST("/:id/cancel", h.CancelWizard)
	}
}
