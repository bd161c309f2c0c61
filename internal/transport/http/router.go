package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"vn.io.arda/rolesync/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
// auth guards the admin API, typically mw.JWTAuth followed by mw.RequireRole.
func NewRouter(h *Handler, auth ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(mw.Metrics())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
	}))

	// Health & metrics (no auth required)
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Admin API (requires authentication)
	admin := e.Group("", auth...)

	admin.GET("/mappings", h.ListMappings)
	admin.PUT("/mappings", h.ReplaceMappings)
	admin.GET("/mappings/unmapped", h.ListUnmapped)
	admin.POST("/mappings/unmapped/refresh", h.RefreshUnmapped)
	admin.POST("/users/:id/sync", h.SyncUser)

	return e
}
