// Package whatsapp adapts WhatsApp Business Cloud API webhook payloads and
// outbound sends to the platform abstraction.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shoptalk/shoptalk/internal/platform"
	"github.com/shoptalk/shoptalk/internal/platform/graph"
)

// Type is the platform identifier for this adapter.
const Type = platform.WhatsApp

// Payload is the webhook body for object "whatsapp_business_account".
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text"`
	Image     *Media    `json:"image"`
	Document  *Document `json:"document"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// Adapter normalizes inbound WhatsApp webhooks and sends outbound messages
// through the Cloud API.
type Adapter struct {
	client *graph.Client
	logger *slog.Logger
}

// NewAdapter creates a WhatsApp adapter.
func NewAdapter(log *slog.Logger, client *graph.Client) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		client: client,
		logger: log.With(slog.String("adapter", "whatsapp")),
	}
}

func (a *Adapter) Type() platform.Platform {
	return Type
}

func (a *Adapter) Descriptor() platform.Descriptor {
	return platform.Descriptor{Type: Type, DisplayName: "WhatsApp"}
}

// Normalize extracts messages from entry[].changes[].value.messages[],
// pairing each with its contacts[] entry by wa_id for the display name.
// Events for fields other than "messages" and malformed messages are skipped.
func (a *Adapter) Normalize(payload []byte) ([]platform.InboundMessage, error) {
	var body Payload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parse whatsapp payload: %w", err)
	}

	var result []platform.InboundMessage
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				sender := strings.TrimSpace(msg.From)
				if sender == "" {
					a.logger.Debug("skip whatsapp message without sender", slog.String("message_id", msg.ID))
					continue
				}
				text, msgType := classifyContent(msg)
				if text == "" {
					a.logger.Debug("skip whatsapp message without content",
						slog.String("message_id", msg.ID),
						slog.String("type", msg.Type),
					)
					continue
				}
				result = append(result, platform.InboundMessage{
					Platform:    Type,
					AccountID:   strings.TrimSpace(change.Value.Metadata.PhoneNumberID),
					SenderID:    sender,
					SenderName:  names[sender],
					MessageID:   strings.TrimSpace(msg.ID),
					Text:        text,
					MessageType: msgType,
					Timestamp:   parseEpochSeconds(msg.Timestamp),
				})
			}
		}
	}
	return result, nil
}

type sendBody struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts a text message to /{phone_number_id}/messages.
func (a *Adapter) Send(ctx context.Context, req platform.SendRequest) (platform.SendResult, error) {
	if a.client == nil {
		return platform.SendResult{}, fmt.Errorf("graph client not configured")
	}
	body := sendBody{
		MessagingProduct: "whatsapp",
		To:               strings.TrimSpace(req.RecipientID),
		Type:             "text",
		Text:             sendText{Body: req.Text},
	}
	var resp sendResponse
	path := fmt.Sprintf("%s/messages", strings.TrimSpace(req.AccountID))
	if err := a.client.Post(ctx, path, req.AccessToken, body, &resp); err != nil {
		return platform.SendResult{}, err
	}
	if len(resp.Messages) == 0 {
		return platform.SendResult{}, fmt.Errorf("whatsapp send: response has no message id")
	}
	return platform.SendResult{MessageID: resp.Messages[0].ID}, nil
}

// classifyContent maps a message to a content string and type:
// text body as-is, "[Image] caption" for images, "[Document] filename" for
// documents, and "[type]" for anything else.
func classifyContent(msg Message) (string, platform.MessageType) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return "", platform.MessageTypeText
		}
		return strings.TrimSpace(msg.Text.Body), platform.MessageTypeText
	case "image":
		content := "[Image]"
		if msg.Image != nil && strings.TrimSpace(msg.Image.Caption) != "" {
			content += " " + strings.TrimSpace(msg.Image.Caption)
		}
		return content, platform.MessageTypeMedia
	case "document":
		content := "[Document]"
		if msg.Document != nil && strings.TrimSpace(msg.Document.Filename) != "" {
			content += " " + strings.TrimSpace(msg.Document.Filename)
		}
		return content, platform.MessageTypeMedia
	default:
		if strings.TrimSpace(msg.Type) == "" {
			return "", platform.MessageTypeOther
		}
		return "[" + msg.Type + "]", platform.MessageTypeOther
	}
}

func contactNames(contacts []Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		id := strings.TrimSpace(contact.WaID)
		if id == "" {
			continue
		}
		names[id] = strings.TrimSpace(contact.Profile.Name)
	}
	return names
}

func parseEpochSeconds(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
