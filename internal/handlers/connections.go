package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shoptalk/shoptalk/internal/auth"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/platform"
)

// ConnectionsHandler manages the merchant's platform account connections.
type ConnectionsHandler struct {
	service *connection.Service
	logger  *slog.Logger
}

type createConnectionRequest struct {
	Platform      string `json:"platform" validate:"required,oneof=whatsapp instagram facebook"`
	AccountID     string `json:"account_id" validate:"required"`
	AccountHandle string `json:"account_handle"`
	DisplayName   string `json:"display_name"`
	AccessToken   string `json:"access_token" validate:"required"`
}

type disableConnectionRequest struct {
	Disabled bool `json:"disabled"`
}

// NewConnectionsHandler creates a ConnectionsHandler.
func NewConnectionsHandler(log *slog.Logger, service *connection.Service) *ConnectionsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "connections")),
	}
}

func (h *ConnectionsHandler) Register(e *echo.Echo) {
	group := e.Group("/connections")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.PUT("/:id/disabled", h.SetDisabled)
	group.DELETE("/:id", h.Delete)
}

func (h *ConnectionsHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("list connections failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list connections failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *ConnectionsHandler) Create(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var req createConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, ok := platform.Parse(req.Platform)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown platform")
	}

	conn, err := h.service.Create(c.Request().Context(), connection.CreateParams{
		UserID:        userID,
		Platform:      p,
		AccountID:     req.AccountID,
		AccountHandle: req.AccountHandle,
		DisplayName:   req.DisplayName,
		AccessToken:   req.AccessToken,
	})
	if err != nil {
		h.logger.Error("create connection failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, conn)
}

func (h *ConnectionsHandler) SetDisabled(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var req disableConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetDisabled(c.Request().Context(), userID, c.Param("id"), req.Disabled); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "connection not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConnectionsHandler) Delete(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "connection not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
