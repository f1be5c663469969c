// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pharmacheck/inventory/backend-go/internal/api/handlers"
	"github.com/pharmacheck/inventory/backend-go/internal/api/middleware"
	"github.com/pharmacheck/inventory/backend-go/internal/metrics"
	"github.com/pharmacheck/inventory/backend-go/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	InventoryService *service.InventoryService
}

// Options carries the HTTP-level settings of the router.
type Options struct {
	AllowedOrigins []string
	UploadDir      string
	MaxUploadMB    int64

	// Metrics instruments every request when set; MetricsPath exposes Gatherer.
	Metrics     *metrics.Metrics
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

func NewRouter(services *Services, opts Options) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if opts.Metrics != nil {
		router.Use(opts.Metrics.GinMiddleware())
	}
	if opts.MaxUploadMB > 0 {
		router.MaxMultipartMemory = opts.MaxUploadMB << 20
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(opts.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api/v1")

	if services != nil && services.InventoryService != nil {
		inventoryHandler := handlers.NewInventoryHandler(services.InventoryService, opts.UploadDir)
		inventoryGroup := apiGroup.Group("/inventory")
		{
			inventoryGroup.GET("", inventoryHandler.List)
			inventoryGroup.GET("/search", inventoryHandler.Search)
			inventoryGroup.GET("/autocomplete", inventoryHandler.Autocomplete)
			inventoryGroup.GET("/low-stock", inventoryHandler.LowStock)
			inventoryGroup.GET("/summary", inventoryHandler.Summary)
			inventoryGroup.GET("/item", inventoryHandler.Item)
			inventoryGroup.PATCH("/info", inventoryHandler.UpdateInfo)
			inventoryGroup.POST("/upload", inventoryHandler.Upload)
			inventoryGroup.POST("/needs/import", inventoryHandler.ImportNeeds)
			inventoryGroup.GET("/recent-searches", inventoryHandler.RecentSearches)
			inventoryGroup.POST("/recent-searches", inventoryHandler.AddRecentSearch)

			runsGroup := inventoryGroup.Group("/runs")
			{
				runsGroup.GET("", inventoryHandler.Runs)
				runsGroup.GET("/:id", inventoryHandler.Run)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
