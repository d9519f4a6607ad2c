package facebook

import (
	"testing"
	"time"

	"github.com/shoptalk/shoptalk/internal/platform"
)

func TestNormalizeTextMessage(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"object": "page",
		"entry": [{
			"id": "110000000000001",
			"time": 1700000002000,
			"messaging": [{
				"sender": {"id": "24000000000000001", "name": "Grace Hopper"},
				"recipient": {"id": "110000000000001"},
				"timestamp": 1700000002000,
				"message": {"mid": "fb-mid-1", "text": "what colors do you have?"}
			}]
		}]
	}`)

	adapter := NewAdapter(nil, nil)
	messages, err := adapter.Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if msg.Platform != platform.Facebook {
		t.Errorf("platform = %q, want facebook", msg.Platform)
	}
	if msg.AccountID != "110000000000001" {
		t.Errorf("account id = %q, want recipient.id (page id)", msg.AccountID)
	}
	if msg.SenderID != "24000000000000001" {
		t.Errorf("sender id = %q", msg.SenderID)
	}
	if msg.SenderName != "Grace Hopper" {
		t.Errorf("sender name = %q", msg.SenderName)
	}
	if msg.Text != "what colors do you have?" {
		t.Errorf("text = %q", msg.Text)
	}
	want := time.UnixMilli(1700000002000).UTC()
	if !msg.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, want)
	}
}

func TestNormalizeSkipsDeliveryEvents(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"object": "page",
		"entry": [{
			"messaging": [
				{"sender": {"id": "1"}, "recipient": {"id": "2"}},
				{"sender": {"id": "1"}, "recipient": {"id": "2"}, "message": {"mid": "m1", "text": "hello"}}
			]
		}]
	}`)

	adapter := NewAdapter(nil, nil)
	messages, err := adapter.Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Text != "hello" {
		t.Errorf("text = %q", messages[0].Text)
	}
}

func TestNormalizeMalformedBody(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(nil, nil)
	if _, err := adapter.Normalize([]byte("[]")); err == nil {
		t.Fatal("expected error for non-object body")
	}
}
