package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostDecodesResponse(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v18.0/12345/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id": "mid.1"}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v18.0", 5*time.Second)
	var out struct {
		MessageID string `json:"message_id"`
	}
	err := client.Post(context.Background(), "12345/messages", "token123", map[string]string{"text": "hi"}, &out)
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if out.MessageID != "mid.1" {
		t.Errorf("message id = %q", out.MessageID)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestPostRetriesOn5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"message_id": "mid.2"}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v18.0", 5*time.Second)
	var out struct {
		MessageID string `json:"message_id"`
	}
	err := client.Post(context.Background(), "12345/messages", "t", nil, &out)
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", got)
	}
	if out.MessageID != "mid.2" {
		t.Errorf("message id = %q", out.MessageID)
	}
}

// Once the platform has answered 2xx the message is delivered; a garbled
// response body must not trigger a second send.
func TestPostDoesNotRetryAfterAcceptedResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v18.0", 5*time.Second)
	var out struct {
		MessageID string `json:"message_id"`
	}
	err := client.Post(context.Background(), "12345/messages", "t", nil, &out)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry after an accepted response)", got)
	}
}

func TestPostDoesNotRetryOn4xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad token", "code": 190}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v18.0", 5*time.Second)
	err := client.Post(context.Background(), "12345/messages", "t", nil, nil)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", got)
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Code != 190 || apiErr.Message != "bad token" {
		t.Errorf("api error = %+v", apiErr)
	}
}
