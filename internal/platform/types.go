// Package platform provides a unified abstraction for social-commerce
// messaging platforms. It defines types, interfaces, and a registry for
// platform adapters such as WhatsApp, Instagram, and Facebook Messenger.
package platform

import (
	"strings"
	"time"
)

// Platform identifies a messaging platform (e.g., "whatsapp", "instagram").
type Platform string

const (
	WhatsApp  Platform = "whatsapp"
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	Direct    Platform = "direct"
)

// String returns the platform as a plain string.
func (p Platform) String() string {
	return string(p)
}

// Parse validates and normalizes a raw platform string.
func Parse(raw string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(raw))) {
	case WhatsApp:
		return WhatsApp, true
	case Instagram:
		return Instagram, true
	case Facebook:
		return Facebook, true
	case Direct:
		return Direct, true
	default:
		return "", false
	}
}

// MessageType classifies normalized message content.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
	MessageTypeOther MessageType = "other"
)

// InboundMessage is one normalized message extracted from a webhook delivery.
type InboundMessage struct {
	Platform Platform

	// AccountID is the platform account that received the message: the
	// WhatsApp phone-number id, the Instagram account id, or the Facebook
	// page id. AccountHandle carries the Instagram username when the
	// payload identifies the recipient by handle instead of id.
	AccountID     string
	AccountHandle string

	SenderID   string
	SenderName string

	// MessageID is the platform-native message id, used as the
	// idempotency key for appends. Empty when the platform omitted one.
	MessageID string

	Text        string
	MessageType MessageType

	// Timestamp is the platform event time; zero when absent, in which
	// case the reconciler falls back to server time.
	Timestamp time.Time
}

// SendRequest is the input for delivering one outbound text message.
type SendRequest struct {
	Platform    Platform
	AccountID   string
	AccessToken string
	RecipientID string
	Text        string
}

// SendResult carries the platform-assigned id of a delivered message.
type SendResult struct {
	MessageID string
}
