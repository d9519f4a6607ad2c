// Package sandbox provides a Sender that fabricates deliveries instead of
// calling platform APIs. Used for local development and test environments.
package sandbox

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shoptalk/shoptalk/internal/platform"
)

// Sender logs outbound messages and returns synthetic message ids without
// touching any external API.
type Sender struct {
	logger *slog.Logger
}

// NewSender creates a sandbox sender.
func NewSender(log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{logger: log.With(slog.String("component", "sandbox_sender"))}
}

// Send fabricates a delivery and returns a "sandbox-" prefixed message id.
func (s *Sender) Send(_ context.Context, req platform.SendRequest) (platform.SendResult, error) {
	id := "sandbox-" + uuid.NewString()
	s.logger.Info("sandbox send",
		slog.String("platform", req.Platform.String()),
		slog.String("account_id", req.AccountID),
		slog.String("recipient_id", req.RecipientID),
		slog.String("message_id", id),
	)
	return platform.SendResult{MessageID: id}, nil
}
