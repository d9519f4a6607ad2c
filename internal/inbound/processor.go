// Package inbound runs the reconciliation pipeline for normalized webhook
// messages: resolve the owning connection, resolve the customer identity,
// reconcile the chat thread, append the message, and fire the auto-reply.
package inbound

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shoptalk/shoptalk/internal/chat"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/customer"
	"github.com/shoptalk/shoptalk/internal/platform"
)

type connectionResolver interface {
	Resolve(ctx context.Context, p platform.Platform, accountID, accountHandle string) (connection.Connection, error)
}

type customerResolver interface {
	Resolve(ctx context.Context, params customer.ResolveParams) (customer.Customer, error)
}

type chatReconciler interface {
	Reconcile(ctx context.Context, userID string, p platform.Platform, customerID string) (chat.Chat, error)
	Append(ctx context.Context, params chat.AppendParams) (chat.Message, bool, error)
}

type responder interface {
	Respond(ctx context.Context, conn connection.Connection, chatID, recipientID, text string)
}

// Processor reconciles normalized inbound messages into chats.
type Processor struct {
	connections connectionResolver
	customers   customerResolver
	chats       chatReconciler
	autoreply   responder
	logger      *slog.Logger
}

// NewProcessor creates an inbound processor. The responder may be nil when
// auto-reply is disabled.
func NewProcessor(connections connectionResolver, customers customerResolver, chats chatReconciler, autoreply responder, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		connections: connections,
		customers:   customers,
		chats:       chats,
		autoreply:   autoreply,
		logger:      log.With(slog.String("service", "inbound")),
	}
}

// Process runs the pipeline for each message and returns how many were newly
// recorded. A failure in one message aborts that message only; the rest of
// the batch still runs. Messages for unmapped accounts are logged and
// dropped, never failed, so stray webhook subscriptions cannot poison
// delivery.
func (p *Processor) Process(ctx context.Context, messages []platform.InboundMessage) int {
	processed := 0
	for _, msg := range messages {
		if p.processOne(ctx, msg) {
			processed++
		}
	}
	return processed
}

func (p *Processor) processOne(ctx context.Context, msg platform.InboundMessage) bool {
	log := p.logger.With(
		slog.String("platform", msg.Platform.String()),
		slog.String("account_id", msg.AccountID),
		slog.String("external_message_id", msg.MessageID),
	)

	conn, err := p.connections.Resolve(ctx, msg.Platform, msg.AccountID, msg.AccountHandle)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			log.Warn("message for unmapped account dropped")
			return false
		}
		log.Error("resolve connection failed", slog.Any("error", err))
		return false
	}

	cust, err := p.customers.Resolve(ctx, customer.ResolveParams{
		UserID:      conn.UserID,
		Platform:    msg.Platform,
		ExternalID:  msg.SenderID,
		DisplayName: msg.SenderName,
	})
	if err != nil {
		log.Error("resolve customer failed", slog.Any("error", err))
		return false
	}

	thread, err := p.chats.Reconcile(ctx, conn.UserID, msg.Platform, cust.ID)
	if err != nil {
		log.Error("reconcile chat failed", slog.Any("error", err))
		return false
	}

	_, inserted, err := p.chats.Append(ctx, chat.AppendParams{
		ChatID:            thread.ID,
		SenderType:        chat.SenderCustomer,
		Content:           msg.Text,
		MessageType:       string(msg.MessageType),
		ExternalMessageID: msg.MessageID,
		Timestamp:         msg.Timestamp,
	})
	if err != nil {
		log.Error("append message failed", slog.Any("error", err))
		return false
	}
	if !inserted {
		// Webhook redelivery. Already recorded, already answered.
		log.Debug("duplicate message ignored", slog.String("chat_id", thread.ID))
		return false
	}

	if p.autoreply != nil {
		p.autoreply.Respond(ctx, conn, thread.ID, msg.SenderID, msg.Text)
	}
	return true
}
