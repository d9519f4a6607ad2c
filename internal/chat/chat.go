// Package chat reconciles conversations and their message history. A chat is
// the single thread between a merchant and one customer on one platform;
// appends are idempotent on the platform message id so webhook redeliveries
// never duplicate history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shoptalk/shoptalk/internal/db"
	"github.com/shoptalk/shoptalk/internal/platform"
)

// ErrNotFound is returned when no chat or message matches the lookup.
var ErrNotFound = errors.New("chat not found")

// SenderType tells who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderBusiness SenderType = "business"
	SenderAuto     SenderType = "auto"
)

// Chat is one conversation thread.
type Chat struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	CustomerID  string            `json:"customer_id"`
	Platform    platform.Platform `json:"platform"`
	LastMessage string            `json:"last_message,omitempty"`
	UnreadCount int               `json:"unread_count"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Message is one entry in a chat's history.
type Message struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chat_id"`
	SenderType        SenderType `json:"sender_type"`
	Content           string     `json:"content"`
	MessageType       string     `json:"message_type"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	IsRead            bool       `json:"is_read"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AppendParams holds the fields for appending one message to a chat.
type AppendParams struct {
	ChatID     string
	SenderType SenderType
	Content    string

	// MessageType is "text", "media", or "other"; empty defaults to text.
	MessageType string

	// ExternalMessageID is the platform-native id. When set, the append is
	// idempotent: a second append with the same id is a no-op.
	ExternalMessageID string

	// IsRead is true for outbound messages, which need no attention.
	IsRead bool

	// Timestamp overrides created_at with the platform event time. Zero
	// falls back to server time.
	Timestamp time.Time
}

// Service persists chats and messages.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates a chat service.
func NewService(dbtx db.DBTX, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     dbtx,
		logger: log.With(slog.String("service", "chat")),
	}
}

const chatColumns = `id, user_id, customer_id, platform, last_message, unread_count, status, created_at, updated_at`
const messageColumns = `id, chat_id, sender_type, content, message_type, external_message_id, is_read, created_at`

// Reconcile finds or creates the chat for (user, platform, customer) in a
// single upsert, so concurrent deliveries cannot create duplicate threads.
func (s *Service) Reconcile(ctx context.Context, userID string, p platform.Platform, customerID string) (Chat, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return Chat{}, err
	}
	custUUID, err := db.ParseUUID(customerID)
	if err != nil {
		return Chat{}, err
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO chats (user_id, customer_id, platform)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, platform, customer_id) DO UPDATE
		 SET updated_at = now()
		 RETURNING `+chatColumns,
		userUUID, custUUID, p.String())
	c, err := scanChat(row)
	if err != nil {
		return Chat{}, fmt.Errorf("reconcile chat: %w", err)
	}
	return c, nil
}

// Append writes one message to a chat and refreshes the chat summary. It
// reports inserted=false when an identical external message id already exists
// in the chat; duplicates leave the summary untouched. Only unread customer
// messages bump the unread counter.
func (s *Service) Append(ctx context.Context, params AppendParams) (Message, bool, error) {
	chatUUID, err := db.ParseUUID(params.ChatID)
	if err != nil {
		return Message{}, false, err
	}
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return Message{}, false, fmt.Errorf("content is required")
	}
	messageType := strings.TrimSpace(params.MessageType)
	if messageType == "" {
		messageType = "text"
	}
	createdAt := params.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_type, content, message_type, external_message_id, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (chat_id, external_message_id) WHERE external_message_id IS NOT NULL DO NOTHING
		 RETURNING `+messageColumns,
		chatUUID, string(params.SenderType), content, messageType,
		db.ToPgText(params.ExternalMessageID), params.IsRead, createdAt)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: the webhook was redelivered. Return the stored row.
		existing, lookupErr := s.byExternalID(ctx, chatUUID, params.ExternalMessageID)
		if lookupErr != nil {
			return Message{}, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("append message: %w", err)
	}

	if err := s.touchSummary(ctx, chatUUID, content, params.SenderType == SenderCustomer && !params.IsRead); err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

func (s *Service) byExternalID(ctx context.Context, chatUUID pgtype.UUID, externalID string) (Message, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 AND external_message_id = $2`,
		chatUUID, strings.TrimSpace(externalID))
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("lookup message: %w", err)
	}
	return msg, nil
}

func (s *Service) touchSummary(ctx context.Context, chatUUID pgtype.UUID, lastMessage string, incrementUnread bool) error {
	increment := 0
	if incrementUnread {
		increment = 1
	}
	_, err := s.db.Exec(ctx,
		`UPDATE chats
		 SET last_message = $2, unread_count = unread_count + $3, updated_at = now()
		 WHERE id = $1`,
		chatUUID, lastMessage, increment)
	if err != nil {
		return fmt.Errorf("update chat summary: %w", err)
	}
	return nil
}

// Get returns one chat owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Chat, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return Chat{}, err
	}
	chatUUID, err := db.ParseUUID(id)
	if err != nil {
		return Chat{}, err
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = $1 AND user_id = $2`,
		chatUUID, userUUID)
	c, err := scanChat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	return c, err
}

// List returns the user's chats, most recently active first.
func (s *Service) List(ctx context.Context, userID string) ([]Chat, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE user_id = $1 ORDER BY updated_at DESC`,
		userUUID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var items []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Messages returns a chat's history in chronological order. The caller must
// have resolved the chat through Get first, which enforces ownership.
func (s *Service) Messages(ctx context.Context, chatID string) ([]Message, error) {
	chatUUID, err := db.ParseUUID(chatID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`,
		chatUUID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

// MarkRead clears the unread counter and marks all customer messages read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	chatUUID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE chats SET unread_count = 0, updated_at = now() WHERE id = $1 AND user_id = $2`,
		chatUUID, userUUID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = s.db.Exec(ctx,
		`UPDATE messages SET is_read = true WHERE chat_id = $1 AND NOT is_read`,
		chatUUID)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// UpdateStatus sets a chat's status, e.g. "active" or "completed".
func (s *Service) UpdateStatus(ctx context.Context, userID, id, status string) error {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	chatUUID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("status is required")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE chats SET status = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		chatUUID, userUUID, status)
	if err != nil {
		return fmt.Errorf("update chat status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChat(row pgx.Row) (Chat, error) {
	var (
		id, userID, customerID pgtype.UUID
		rawPlatform            string
		lastMessage            pgtype.Text
		unreadCount            int32
		status                 string
		createdAt, updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&id, &userID, &customerID, &rawPlatform, &lastMessage,
		&unreadCount, &status, &createdAt, &updatedAt)
	if err != nil {
		return Chat{}, err
	}
	return Chat{
		ID:          db.UUIDToString(id),
		UserID:      db.UUIDToString(userID),
		CustomerID:  db.UUIDToString(customerID),
		Platform:    platform.Platform(rawPlatform),
		LastMessage: db.TextToString(lastMessage),
		UnreadCount: int(unreadCount),
		Status:      status,
		CreatedAt:   createdAt.Time,
		UpdatedAt:   updatedAt.Time,
	}, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		id, chatID           pgtype.UUID
		senderType, content  string
		messageType          string
		externalID           pgtype.Text
		isRead               bool
		createdAt            pgtype.Timestamptz
	)
	err := row.Scan(&id, &chatID, &senderType, &content, &messageType,
		&externalID, &isRead, &createdAt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:                db.UUIDToString(id),
		ChatID:            db.UUIDToString(chatID),
		SenderType:        SenderType(senderType),
		Content:           content,
		MessageType:       messageType,
		ExternalMessageID: db.TextToString(externalID),
		IsRead:            isRead,
		CreatedAt:         createdAt.Time,
	}, nil
}
