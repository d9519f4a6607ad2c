package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shoptalk/shoptalk/internal/chat"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/customer"
	"github.com/shoptalk/shoptalk/internal/platform"
)

type fakeConnections struct {
	conn connection.Connection
	err  error
}

func (f *fakeConnections) Resolve(context.Context, platform.Platform, string, string) (connection.Connection, error) {
	return f.conn, f.err
}

type fakeCustomers struct {
	cust customer.Customer
	err  error
}

func (f *fakeCustomers) Resolve(context.Context, customer.ResolveParams) (customer.Customer, error) {
	return f.cust, f.err
}

type fakeChats struct {
	thread      chat.Chat
	inserted    bool
	appendErr   error
	appendCalls []chat.AppendParams
}

func (f *fakeChats) Reconcile(context.Context, string, platform.Platform, string) (chat.Chat, error) {
	return f.thread, nil
}

func (f *fakeChats) Append(_ context.Context, params chat.AppendParams) (chat.Message, bool, error) {
	f.appendCalls = append(f.appendCalls, params)
	return chat.Message{ID: uuid.NewString(), ChatID: params.ChatID}, f.inserted, f.appendErr
}

type fakeResponder struct {
	calls int
	text  string
}

func (f *fakeResponder) Respond(_ context.Context, _ connection.Connection, _, _, text string) {
	f.calls++
	f.text = text
}

func inboundFixture() platform.InboundMessage {
	return platform.InboundMessage{
		Platform:   platform.WhatsApp,
		AccountID:  "106540352242922",
		SenderID:   "15551234567",
		SenderName: "Ada",
		MessageID:  "wamid.1",
		Text:       "hello",
	}
}

func TestProcessRecordsAndReplies(t *testing.T) {
	t.Parallel()

	chats := &fakeChats{thread: chat.Chat{ID: uuid.NewString()}, inserted: true}
	reply := &fakeResponder{}
	p := NewProcessor(
		&fakeConnections{conn: connection.Connection{ID: uuid.NewString(), UserID: uuid.NewString()}},
		&fakeCustomers{cust: customer.Customer{ID: uuid.NewString()}},
		chats, reply, nil,
	)

	processed := p.Process(context.Background(), []platform.InboundMessage{inboundFixture()})
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if len(chats.appendCalls) != 1 {
		t.Fatalf("append calls = %d, want 1", len(chats.appendCalls))
	}
	if chats.appendCalls[0].SenderType != chat.SenderCustomer {
		t.Errorf("sender type = %q, want customer", chats.appendCalls[0].SenderType)
	}
	if reply.calls != 1 {
		t.Errorf("responder calls = %d, want 1", reply.calls)
	}
	if reply.text != "hello" {
		t.Errorf("responder got text %q", reply.text)
	}
}

func TestProcessDropsUnmappedAccount(t *testing.T) {
	t.Parallel()

	chats := &fakeChats{}
	reply := &fakeResponder{}
	p := NewProcessor(
		&fakeConnections{err: connection.ErrNotFound},
		&fakeCustomers{}, chats, reply, nil,
	)

	processed := p.Process(context.Background(), []platform.InboundMessage{inboundFixture()})
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
	if len(chats.appendCalls) != 0 {
		t.Errorf("append must not run for an unmapped account")
	}
	if reply.calls != 0 {
		t.Errorf("responder must not run for an unmapped account")
	}
}

func TestProcessDuplicateSkipsAutoReply(t *testing.T) {
	t.Parallel()

	chats := &fakeChats{thread: chat.Chat{ID: uuid.NewString()}, inserted: false}
	reply := &fakeResponder{}
	p := NewProcessor(
		&fakeConnections{conn: connection.Connection{UserID: uuid.NewString()}},
		&fakeCustomers{cust: customer.Customer{ID: uuid.NewString()}},
		chats, reply, nil,
	)

	processed := p.Process(context.Background(), []platform.InboundMessage{inboundFixture()})
	if processed != 0 {
		t.Fatalf("processed = %d, want 0 for a redelivery", processed)
	}
	if reply.calls != 0 {
		t.Errorf("responder must not run for a duplicate message")
	}
}

func TestProcessContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	chats := &fakeChats{thread: chat.Chat{ID: uuid.NewString()}, inserted: true}
	p := NewProcessor(
		&fakeConnections{conn: connection.Connection{UserID: uuid.NewString()}},
		&fakeCustomers{err: errors.New("db down")},
		chats, nil, nil,
	)

	batch := []platform.InboundMessage{inboundFixture(), inboundFixture()}
	processed := p.Process(context.Background(), batch)
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
	// Both events ran through the pipeline despite the first failing.
	if len(chats.appendCalls) != 0 {
		t.Errorf("append must not run when customer resolution fails")
	}
}
