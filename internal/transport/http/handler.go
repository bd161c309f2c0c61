package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/application"
	"vn.io.arda/rolesync/internal/domain"
	"vn.io.arda/rolesync/internal/messages"
)

// MappingService is the application surface used by the admin API.
// Implemented by application.Service.
type MappingService interface {
	Mappings(ctx context.Context) ([]domain.Mapping, error)
	UpdateMappings(ctx context.Context, mappings []domain.Mapping) ([]domain.Mapping, error)
	UnmappedRoles(ctx context.Context) ([]string, error)
	RefreshUnmapped(ctx context.Context) ([]string, error)
	SyncUser(ctx context.Context, user domain.User, currentRoles []string) (domain.Delta, error)
}

// Handler holds all HTTP handler methods.
type Handler struct {
	svc MappingService
}

// NewHandler creates a new Handler.
func NewHandler(svc MappingService) *Handler {
	return &Handler{svc: svc}
}

// --- REST Handlers ---

// ListMappings GET /mappings
func (h *Handler) ListMappings(c echo.Context) error {
	mappings, err := h.svc.Mappings(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("load mappings failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{"data": mappings})
}

// ReplaceMappings PUT /mappings
func (h *Handler) ReplaceMappings(c echo.Context) error {
	var req struct {
		Mappings *[]domain.Mapping `json:"mappings"`
	}
	if err := c.Bind(&req); err != nil || req.Mappings == nil {
		return echo.NewHTTPError(http.StatusBadRequest, messages.MappingsBody)
	}

	saved, err := h.svc.UpdateMappings(c.Request().Context(), *req.Mappings)
	if err != nil {
		var verr *application.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"message": messages.ValidationFailed,
				"errors":  verr.Errors,
			})
		}
		log.Error().Err(err).Msg("update mappings failed")
		return echo.ErrInternalServerError
	}

	log.Info().
		Str("by", userFrom(c)).
		Int("mappings", len(saved)).
		Msg("mappings replaced via admin API")
	return c.JSON(http.StatusOK, map[string]any{"data": saved})
}

// ListUnmapped GET /mappings/unmapped
func (h *Handler) ListUnmapped(c echo.Context) error {
	roles, err := h.svc.UnmappedRoles(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("load unmapped roles failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{"data": roles})
}

// RefreshUnmapped POST /mappings/unmapped/refresh
func (h *Handler) RefreshUnmapped(c echo.Context) error {
	roles, err := h.svc.RefreshUnmapped(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("refresh unmapped roles failed")
		return echo.NewHTTPError(http.StatusBadGateway, "could not refresh unmapped roles")
	}
	return c.JSON(http.StatusOK, map[string]any{"data": roles})
}

// SyncUser POST /users/:id/sync
func (h *Handler) SyncUser(c echo.Context) error {
	var req struct {
		Username string    `json:"username"`
		Roles    *[]string `json:"roles"`
	}
	if err := c.Bind(&req); err != nil || req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	var current []string
	if req.Roles != nil {
		current = append([]string{}, *req.Roles...)
	}

	user := domain.User{ID: c.Param("id"), Username: req.Username}
	delta, err := h.svc.SyncUser(c.Request().Context(), user, current)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		log.Error().Err(err).Str("user_id", user.ID).Msg("manual sync failed")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"data": delta})
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// --- Helpers ---

func userFrom(c echo.Context) string {
	if name, ok := c.Get("username").(string); ok && name != "" {
		return name
	}
	id, _ := c.Get("userID").(string)
	return id
}
