package platform

import (
	"context"
	"testing"
)

type stubAdapter struct {
	platform Platform
}

func (a *stubAdapter) Type() Platform { return a.platform }
func (a *stubAdapter) Descriptor() Descriptor {
	return Descriptor{Type: a.platform, DisplayName: string(a.platform)}
}

type stubSenderAdapter struct {
	stubAdapter
	sent []SendRequest
}

func (a *stubSenderAdapter) Send(_ context.Context, req SendRequest) (SendResult, error) {
	a.sent = append(a.sent, req)
	return SendResult{MessageID: "stub-1"}, nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&stubAdapter{platform: WhatsApp}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(&stubAdapter{platform: WhatsApp}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestGetNormalizerRequiresCapability(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(&stubAdapter{platform: Facebook})
	if _, ok := r.GetNormalizer(Facebook); ok {
		t.Error("adapter without Normalize must not be returned as a Normalizer")
	}
	if _, ok := r.GetNormalizer(Instagram); ok {
		t.Error("unknown platform must not resolve")
	}
}

func TestRegistrySenderDispatchesByPlatform(t *testing.T) {
	t.Parallel()

	adapter := &stubSenderAdapter{stubAdapter: stubAdapter{platform: Instagram}}
	r := NewRegistry()
	r.MustRegister(adapter)

	sender := NewRegistrySender(r)
	result, err := sender.Send(context.Background(), SendRequest{Platform: Instagram, RecipientID: "42", Text: "hi"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if result.MessageID != "stub-1" {
		t.Errorf("message id = %q", result.MessageID)
	}
	if len(adapter.sent) != 1 {
		t.Fatalf("adapter sends = %d, want 1", len(adapter.sent))
	}

	if _, err := sender.Send(context.Background(), SendRequest{Platform: WhatsApp}); err == nil {
		t.Error("expected error for unregistered platform")
	}
}
