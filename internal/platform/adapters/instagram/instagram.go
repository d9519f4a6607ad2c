// Package instagram adapts Instagram Messaging webhook payloads and outbound
// sends to the platform abstraction.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shoptalk/shoptalk/internal/platform"
	"github.com/shoptalk/shoptalk/internal/platform/graph"
)

// Type is the platform identifier for this adapter.
const Type = platform.Instagram

// Payload is the webhook body for object "instagram".
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    *Party   `json:"sender"`
	Recipient *Party   `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message"`
}

type Party struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	IsEcho      bool         `json:"is_echo"`
}

type Attachment struct {
	Type string `json:"type"`
}

// Adapter normalizes inbound Instagram webhooks and sends outbound messages
// through the Graph API.
type Adapter struct {
	client *graph.Client
	logger *slog.Logger
}

// NewAdapter creates an Instagram adapter.
func NewAdapter(log *slog.Logger, client *graph.Client) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		client: client,
		logger: log.With(slog.String("adapter", "instagram")),
	}
}

func (a *Adapter) Type() platform.Platform {
	return Type
}

func (a *Adapter) Descriptor() platform.Descriptor {
	return platform.Descriptor{Type: Type, DisplayName: "Instagram"}
}

// Normalize extracts messages from entry[].messaging[]. Events without a
// message, sender, or recipient (delivery receipts, reactions, echoes) are
// skipped. The receiving account is identified by recipient.id, with
// recipient.username carried as a handle alias for connection lookup.
func (a *Adapter) Normalize(payload []byte) ([]platform.InboundMessage, error) {
	var body Payload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parse instagram payload: %w", err)
	}

	var result []platform.InboundMessage
	for _, entry := range body.Entry {
		for _, event := range entry.Messaging {
			if event.Message == nil || event.Sender == nil || event.Recipient == nil {
				continue
			}
			if event.Message.IsEcho {
				continue
			}
			text, msgType := messageContent(event.Message)
			if text == "" {
				a.logger.Debug("skip instagram message without content",
					slog.String("message_id", event.Message.MID))
				continue
			}
			result = append(result, platform.InboundMessage{
				Platform:      Type,
				AccountID:     strings.TrimSpace(event.Recipient.ID),
				AccountHandle: strings.TrimSpace(event.Recipient.Username),
				SenderID:      strings.TrimSpace(event.Sender.ID),
				SenderName:    strings.TrimSpace(event.Sender.Username),
				MessageID:     strings.TrimSpace(event.Message.MID),
				Text:          text,
				MessageType:   msgType,
				Timestamp:     fromEpochMillis(event.Timestamp),
			})
		}
	}
	return result, nil
}

type sendBody struct {
	Recipient recipient `json:"recipient"`
	Message   sendText  `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendText struct {
	Text string `json:"text"`
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// Send posts a text message to /{account_id}/messages.
func (a *Adapter) Send(ctx context.Context, req platform.SendRequest) (platform.SendResult, error) {
	if a.client == nil {
		return platform.SendResult{}, fmt.Errorf("graph client not configured")
	}
	body := sendBody{
		Recipient: recipient{ID: strings.TrimSpace(req.RecipientID)},
		Message:   sendText{Text: req.Text},
	}
	var resp sendResponse
	path := fmt.Sprintf("%s/messages", strings.TrimSpace(req.AccountID))
	if err := a.client.Post(ctx, path, req.AccessToken, body, &resp); err != nil {
		return platform.SendResult{}, err
	}
	if resp.MessageID == "" {
		return platform.SendResult{}, fmt.Errorf("instagram send: response has no message id")
	}
	return platform.SendResult{MessageID: resp.MessageID}, nil
}

func messageContent(msg *Message) (string, platform.MessageType) {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return text, platform.MessageTypeText
	}
	if len(msg.Attachments) > 0 {
		kind := strings.TrimSpace(msg.Attachments[0].Type)
		if kind == "" {
			kind = "attachment"
		}
		return "[" + capitalize(kind) + "]", platform.MessageTypeMedia
	}
	return "", platform.MessageTypeOther
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fromEpochMillis(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
