package autoreply

import (
	"context"
	"log/slog"

	"github.com/shoptalk/shoptalk/internal/chat"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/platform"
)

// appender is the slice of the chat service the trigger needs.
type appender interface {
	Append(ctx context.Context, params chat.AppendParams) (chat.Message, bool, error)
}

// Trigger answers fresh customer messages with a canned reply. A send failure
// is logged and swallowed: auto-reply is best effort and must never fail the
// webhook delivery that caused it.
type Trigger struct {
	enabled bool
	rules   *Rules
	sender  platform.Sender
	chats   appender
	logger  *slog.Logger
}

// NewTrigger creates an auto-reply trigger.
func NewTrigger(enabled bool, rules *Rules, sender platform.Sender, chats appender, log *slog.Logger) *Trigger {
	if log == nil {
		log = slog.Default()
	}
	return &Trigger{
		enabled: enabled,
		rules:   rules,
		sender:  sender,
		chats:   chats,
		logger:  log.With(slog.String("service", "autoreply")),
	}
}

// Respond sends the canned reply for text through the connection and records
// it in the chat. The reply message is persisted only after the platform
// accepted it, so the history never shows replies that were not delivered.
func (t *Trigger) Respond(ctx context.Context, conn connection.Connection, chatID, recipientID, text string) {
	if !t.enabled || t.sender == nil {
		return
	}
	reply, ruleName := t.rules.Reply(text)

	result, err := t.sender.Send(ctx, platform.SendRequest{
		Platform:    conn.Platform,
		AccountID:   conn.AccountID,
		AccessToken: conn.AccessToken,
		RecipientID: recipientID,
		Text:        reply,
	})
	if err != nil {
		t.logger.Error("auto-reply send failed",
			slog.String("chat_id", chatID),
			slog.String("platform", conn.Platform.String()),
			slog.String("rule", ruleName),
			slog.Any("error", err),
		)
		return
	}

	if _, _, err := t.chats.Append(ctx, chat.AppendParams{
		ChatID:            chatID,
		SenderType:        chat.SenderAuto,
		Content:           reply,
		ExternalMessageID: result.MessageID,
		IsRead:            true,
	}); err != nil {
		t.logger.Error("auto-reply persist failed",
			slog.String("chat_id", chatID),
			slog.Any("error", err),
		)
		return
	}
	t.logger.Info("auto-reply sent",
		slog.String("chat_id", chatID),
		slog.String("rule", ruleName),
		slog.String("message_id", result.MessageID),
	)
}
