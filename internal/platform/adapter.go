package platform

import "context"

// Adapter is the base interface every platform adapter must implement.
type Adapter interface {
	Type() Platform
	Descriptor() Descriptor
}

// Descriptor holds read-only metadata for a registered platform.
type Descriptor struct {
	Type        Platform
	DisplayName string
}

// Normalizer converts a raw webhook request body into normalized messages.
// Malformed events within the payload are skipped, not surfaced; only an
// unparseable body returns an error.
type Normalizer interface {
	Normalize(payload []byte) ([]InboundMessage, error)
}

// Sender delivers an outbound message through the platform API.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
