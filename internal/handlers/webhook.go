package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shoptalk/shoptalk/internal/platform"
)

// maxWebhookBody caps webhook request bodies at 2 MiB.
const maxWebhookBody = 2 << 20

// inboundProcessor is the slice of the inbound pipeline the handler needs.
type inboundProcessor interface {
	Process(ctx context.Context, messages []platform.InboundMessage) int
}

// WebhookHandler receives Meta webhook deliveries for all connected
// platforms. GET handles subscription verification; POST handles message
// deliveries.
type WebhookHandler struct {
	registry    *platform.Registry
	processor   inboundProcessor
	verifyToken string
	logger      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(log *slog.Logger, registry *platform.Registry, processor inboundProcessor, verifyToken string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		registry:    registry,
		processor:   processor,
		verifyToken: verifyToken,
		logger:      log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	group := e.Group("/webhooks")
	group.GET("/:platform", h.Verify)
	group.POST("/:platform", h.Receive)
}

// Verify answers the Meta subscription handshake: echo hub.challenge when the
// verify token matches, 403 otherwise.
func (h *WebhookHandler) Verify(c echo.Context) error {
	p, ok := platform.Parse(c.Param("platform"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown platform")
	}

	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.Warn("webhook verification rejected",
			slog.String("platform", p.String()),
			slog.String("mode", mode),
		)
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	h.logger.Info("webhook verified", slog.String("platform", p.String()))
	return c.String(http.StatusOK, challenge)
}

// Receive normalizes and processes a webhook delivery. Individual bad events
// are skipped inside the pipeline; the delivery as a whole is always acked
// with 200 so the platform does not retry the batch. Only a body that is not
// JSON at all fails the request.
func (h *WebhookHandler) Receive(c echo.Context) error {
	p, ok := platform.Parse(c.Param("platform"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown platform")
	}
	normalizer, ok := h.registry.GetNormalizer(p)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "platform does not receive webhooks")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "read body failed")
	}
	if len(body) > maxWebhookBody {
		// A 5xx would make the platform redeliver the same oversized body
		// forever; ack it and drop.
		h.logger.Error("webhook payload over size limit, dropped",
			slog.String("platform", p.String()),
		)
		return c.JSON(http.StatusOK, map[string]string{"status": "dropped"})
	}
	if !json.Valid(body) {
		return echo.NewHTTPError(http.StatusInternalServerError, "malformed payload")
	}

	messages, err := normalizer.Normalize(body)
	if err != nil {
		h.logger.Error("webhook normalization failed",
			slog.String("platform", p.String()),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "malformed payload")
	}

	processed := h.processor.Process(c.Request().Context(), messages)
	h.logger.Info("webhook processed",
		slog.String("platform", p.String()),
		slog.Int("events", len(messages)),
		slog.Int("recorded", processed),
	)
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
