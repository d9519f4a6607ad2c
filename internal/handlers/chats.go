package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shoptalk/shoptalk/internal/auth"
	"github.com/shoptalk/shoptalk/internal/chat"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/customer"
	"github.com/shoptalk/shoptalk/internal/platform"
)

// ChatsHandler exposes the merchant inbox: chat listing, message history,
// read state, and manual replies.
type ChatsHandler struct {
	chats       *chat.Service
	customers   *customer.Service
	connections *connection.Service
	sender      platform.Sender
	logger      *slog.Logger
}

type replyRequest struct {
	Content string `json:"content" validate:"required,max=4096"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed"`
}

type chatWithCustomer struct {
	chat.Chat
	Customer customer.Customer `json:"customer"`
}

// NewChatsHandler creates a ChatsHandler.
func NewChatsHandler(log *slog.Logger, chats *chat.Service, customers *customer.Service, connections *connection.Service, sender platform.Sender) *ChatsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatsHandler{
		chats:       chats,
		customers:   customers,
		connections: connections,
		sender:      sender,
		logger:      log.With(slog.String("handler", "chats")),
	}
}

func (h *ChatsHandler) Register(e *echo.Echo) {
	group := e.Group("/chats")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.GET("/:id/messages", h.Messages)
	group.POST("/:id/messages", h.Reply)
	group.POST("/:id/read", h.MarkRead)
	group.PATCH("/:id", h.UpdateStatus)
}

func (h *ChatsHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	chats, err := h.chats.List(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("list chats failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list chats failed")
	}

	items := make([]chatWithCustomer, 0, len(chats))
	for _, thread := range chats {
		cust, err := h.customers.Get(c.Request().Context(), userID, thread.CustomerID)
		if err != nil && !errors.Is(err, customer.ErrNotFound) {
			h.logger.Error("load chat customer failed",
				slog.String("chat_id", thread.ID),
				slog.Any("error", err),
			)
			return echo.NewHTTPError(http.StatusInternalServerError, "list chats failed")
		}
		items = append(items, chatWithCustomer{Chat: thread, Customer: cust})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *ChatsHandler) Get(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	thread, err := h.chats.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return chatError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

func (h *ChatsHandler) Messages(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	thread, err := h.chats.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return chatError(err)
	}
	messages, err := h.chats.Messages(c.Request().Context(), thread.ID)
	if err != nil {
		h.logger.Error("list messages failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list messages failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": messages})
}

// Reply sends a merchant-authored message through the chat's platform and
// records it. The message is persisted only after the platform accepted it.
func (h *ChatsHandler) Reply(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var req replyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	thread, err := h.chats.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return chatError(err)
	}
	cust, err := h.customers.Get(ctx, userID, thread.CustomerID)
	if err != nil {
		h.logger.Error("load reply customer failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reply failed")
	}
	conn, err := h.connections.ForPlatform(ctx, userID, thread.Platform)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return echo.NewHTTPError(http.StatusConflict, "no enabled connection for this platform")
		}
		h.logger.Error("load reply connection failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reply failed")
	}

	result, err := h.sender.Send(ctx, platform.SendRequest{
		Platform:    thread.Platform,
		AccountID:   conn.AccountID,
		AccessToken: conn.AccessToken,
		RecipientID: cust.ExternalID,
		Text:        req.Content,
	})
	if err != nil {
		h.logger.Error("reply send failed",
			slog.String("chat_id", thread.ID),
			slog.String("platform", thread.Platform.String()),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusBadGateway, "platform send failed")
	}

	msg, _, err := h.chats.Append(ctx, chat.AppendParams{
		ChatID:            thread.ID,
		SenderType:        chat.SenderBusiness,
		Content:           req.Content,
		ExternalMessageID: result.MessageID,
		IsRead:            true,
	})
	if err != nil {
		h.logger.Error("reply persist failed",
			slog.String("chat_id", thread.ID),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "reply sent but not recorded")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatsHandler) MarkRead(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.chats.MarkRead(c.Request().Context(), userID, c.Param("id")); err != nil {
		return chatError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatsHandler) UpdateStatus(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.chats.UpdateStatus(c.Request().Context(), userID, c.Param("id"), req.Status); err != nil {
		return chatError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func chatError(err error) error {
	if errors.Is(err, chat.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
