package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shoptalk/shoptalk/internal/auth"
	"github.com/shoptalk/shoptalk/internal/customer"
)

// CustomersHandler exposes the merchant's customer directory.
type CustomersHandler struct {
	service *customer.Service
	logger  *slog.Logger
}

type customerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active vip inactive"`
}

// NewCustomersHandler creates a CustomersHandler.
func NewCustomersHandler(log *slog.Logger, service *customer.Service) *CustomersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CustomersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "customers")),
	}
}

func (h *CustomersHandler) Register(e *echo.Echo) {
	group := e.Group("/customers")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.UpdateStatus)
}

func (h *CustomersHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("list customers failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list customers failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *CustomersHandler) Get(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	cust, err := h.service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cust)
}

func (h *CustomersHandler) UpdateStatus(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var req customerStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.UpdateStatus(c.Request().Context(), userID, c.Param("id"), req.Status); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
