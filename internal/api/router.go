// Package api serves the JSON review surface: scan lifecycle, duplicate
// groups, unique listings, and cache maintenance.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidsift/internal/config"
	"vidsift/internal/logging"
)

// NewRouter assembles the gin engine.
func NewRouter(logger *logging.Logger, cfg *config.Config, scanHandler *ScanHandler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.SetTrustedProxies(nil)
	setupMiddleware(r, logger, cfg.Server.AllowedOrigins)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "env": cfg.Environment})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/scan", scanHandler.StartScan)
		v1.GET("/scan/status", scanHandler.ScanStatus)
		v1.DELETE("/scan", scanHandler.CancelScan)
		v1.GET("/groups", scanHandler.Groups)
		v1.GET("/unique", scanHandler.Unique)
		v1.GET("/report", scanHandler.Report)
		v1.DELETE("/cache", scanHandler.PurgeCache)
	}

	return r
}
