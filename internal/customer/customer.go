// Package customer manages the people who message a merchant's connected
// accounts. Each customer is keyed by (user, platform, external id), so the
// same person messaging on two platforms is two customer records.
package customer

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

// ErrNotFound is returned when no customer matches the lookup.
var ErrNotFound = errors.New("customer not found")

// Customer is one platform identity that has contacted a merchant.
type Customer struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Platform    platform.Platform `json:"platform"`
	ExternalID  string            `json:"external_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ResolveParams identifies the sender of an inbound message.
type ResolveParams struct {
	UserID      string
	Platform    platform.Platform
	ExternalID  string
	DisplayName string
}

// Service persists customers.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates a customer service.
func NewService(dbtx db.DBTX, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     dbtx,
		logger: log.With(slog.String("service", "customer")),
	}
}

const customerColumns = `id, user_id, platform, external_id, display_name, email, phone, status, created_at, updated_at`

// Resolve finds or creates the customer for an inbound message in a single
// upsert, so concurrent webhook deliveries for the same sender cannot race
// into duplicate rows. A non-empty display name refreshes a stale one, but an
// empty payload name never erases a stored name.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (Customer, error) {
	userUUID, err := db.ParseUUID(params.UserID)
	if err != nil {
		return Customer{}, err
	}
	externalID := strings.TrimSpace(params.ExternalID)
	if externalID == "" {
		return Customer{}, fmt.Errorf("external id is required")
	}
	displayName := strings.TrimSpace(params.DisplayName)
	phone := ""
	if params.Platform == platform.WhatsApp {
		phone = "+" + strings.TrimPrefix(externalID, "+")
	}

	// $4 is the raw payload name: on conflict it refreshes the stored name
	// only when present. The synthesized fallback seeds new rows only, so a
	// delivery without contact info never erases a real name.
	row := s.db.QueryRow(ctx,
		`INSERT INTO customers (user_id, platform, external_id, display_name, phone)
		 VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), $5), $6)
		 ON CONFLICT (user_id, platform, external_id) DO UPDATE
		 SET display_name = COALESCE(NULLIF($4, ''), customers.display_name),
		     updated_at = now()
		 RETURNING `+customerColumns,
		userUUID, params.Platform.String(), externalID,
		displayName, fallbackName(params.Platform, externalID), db.ToPgText(phone))
	cust, err := scanCustomer(row)
	if err != nil {
		return Customer{}, fmt.Errorf("resolve customer: %w", err)
	}
	return cust, nil
}

// Get returns one customer owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Customer, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return Customer{}, err
	}
	custUUID, err := db.ParseUUID(id)
	if err != nil {
		return Customer{}, err
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND user_id = $2`,
		custUUID, userUUID)
	cust, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return cust, err
}

// List returns the user's customers, most recently active first.
func (s *Service) List(ctx context.Context, userID string) ([]Customer, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = $1 ORDER BY updated_at DESC`,
		userUUID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var items []Customer
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cust)
	}
	return items, rows.Err()
}

// UpdateStatus marks a customer e.g. "active", "vip", or "inactive".
func (s *Service) UpdateStatus(ctx context.Context, userID, id, status string) error {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	custUUID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("status is required")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE customers SET status = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		custUUID, userUUID, status)
	if err != nil {
		return fmt.Errorf("update customer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// fallbackName synthesizes a display name when the platform payload carries
// none: "@handle"-less Instagram ids and raw page-scoped ids read poorly in
// the inbox otherwise.
func fallbackName(p platform.Platform, externalID string) string {
	switch p {
	case platform.WhatsApp:
		return "+" + strings.TrimPrefix(externalID, "+")
	case platform.Instagram:
		return "Instagram user " + tail(externalID, 6)
	case platform.Facebook:
		return "Messenger user " + tail(externalID, 6)
	default:
		return "Customer " + tail(externalID, 6)
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		id, userID              pgtype.UUID
		rawPlatform, externalID string
		displayName             pgtype.Text
		email, phone            pgtype.Text
		status                  string
		createdAt, updatedAt    pgtype.Timestamptz
	)
	err := row.Scan(&id, &userID, &rawPlatform, &externalID, &displayName,
		&email, &phone, &status, &createdAt, &updatedAt)
	if err != nil {
		return Customer{}, err
	}
	return Customer{
		ID:          db.UUIDToString(id),
		UserID:      db.UUIDToString(userID),
		Platform:    platform.Platform(rawPlatform),
		ExternalID:  externalID,
		DisplayName: db.TextToString(displayName),
		Email:       db.TextToString(email),
		Phone:       db.TextToString(phone),
		Status:      status,
		CreatedAt:   createdAt.Time,
		UpdatedAt:   updatedAt.Time,
	}, nil
}
