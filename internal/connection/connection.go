// Package connection manages platform account connections: which WhatsApp
// number, Instagram account, or Facebook page belongs to which merchant, and
// the access token used to reply on it.
package connection

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

// ErrNotFound is returned when no connection matches the lookup.
var ErrNotFound = errors.New("connection not found")

// Connection binds a platform account to a merchant.
type Connection struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Platform      platform.Platform `json:"platform"`
	AccountID     string            `json:"account_id"`
	AccountHandle string            `json:"account_handle,omitempty"`
	DisplayName   string            `json:"display_name,omitempty"`
	AccessToken   string            `json:"-"`
	Disabled      bool              `json:"disabled"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CreateParams holds the fields for registering a new connection.
type CreateParams struct {
	UserID        string
	Platform      platform.Platform
	AccountID     string
	AccountHandle string
	DisplayName   string
	AccessToken   string
}

// Service persists and resolves connections.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates a connection service.
func NewService(dbtx db.DBTX, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     dbtx,
		logger: log.With(slog.String("service", "connection")),
	}
}

const connectionColumns = `id, user_id, platform, account_id, account_handle, display_name, access_token, disabled, created_at, updated_at`

// Resolve finds the enabled connection that owns an inbound message. The
// platform account id is the canonical key; the handle is a fallback for
// payloads that identify the account by username.
func (s *Service) Resolve(ctx context.Context, p platform.Platform, accountID, accountHandle string) (Connection, error) {
	accountID = strings.TrimSpace(accountID)
	accountHandle = strings.TrimSpace(accountHandle)

	if accountID != "" {
		conn, err := s.scanOne(ctx,
			`SELECT `+connectionColumns+` FROM connections WHERE platform = $1 AND account_id = $2 AND NOT disabled`,
			p.String(), accountID)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Connection{}, err
		}
	}
	if accountHandle != "" {
		return s.scanOne(ctx,
			`SELECT `+connectionColumns+` FROM connections WHERE platform = $1 AND account_handle = $2 AND NOT disabled`,
			p.String(), accountHandle)
	}
	return Connection{}, ErrNotFound
}

// ForPlatform returns the user's enabled connection on a platform, used to
// pick the sending account for outbound replies. The most recently registered
// one wins when several exist.
func (s *Service) ForPlatform(ctx context.Context, userID string, p platform.Platform) (Connection, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return Connection{}, err
	}
	return s.scanOne(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE user_id = $1 AND platform = $2 AND NOT disabled
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userUUID, p.String())
}

// Get returns one connection owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Connection, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return Connection{}, err
	}
	connUUID, err := db.ParseUUID(id)
	if err != nil {
		return Connection{}, err
	}
	return s.scanOne(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1 AND user_id = $2`,
		connUUID, userUUID)
}

// List returns all connections owned by the user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Connection, error) {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE user_id = $1 ORDER BY created_at DESC`,
		userUUID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var items []Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, conn)
	}
	return items, rows.Err()
}

// Create registers a platform account for a merchant. The (platform,
// account_id) pair is globally unique; a duplicate registration fails.
func (s *Service) Create(ctx context.Context, params CreateParams) (Connection, error) {
	userUUID, err := db.ParseUUID(params.UserID)
	if err != nil {
		return Connection{}, err
	}
	accountID := strings.TrimSpace(params.AccountID)
	if accountID == "" {
		return Connection{}, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(params.AccessToken) == "" {
		return Connection{}, fmt.Errorf("access token is required")
	}
	conn, err := s.scanOne(ctx,
		`INSERT INTO connections (user_id, platform, account_id, account_handle, display_name, access_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+connectionColumns,
		userUUID, params.Platform.String(), accountID,
		db.ToPgText(params.AccountHandle), db.ToPgText(params.DisplayName),
		strings.TrimSpace(params.AccessToken))
	if err != nil {
		return Connection{}, err
	}
	s.logger.Info("connection created",
		slog.String("connection_id", conn.ID),
		slog.String("platform", conn.Platform.String()),
		slog.String("account_id", conn.AccountID),
	)
	return conn, nil
}

// SetDisabled toggles a connection without deleting its history.
func (s *Service) SetDisabled(ctx context.Context, userID, id string, disabled bool) error {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	connUUID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE connections SET disabled = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		connUUID, userUUID, disabled)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a connection owned by the user.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	userUUID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	connUUID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM connections WHERE id = $1 AND user_id = $2`,
		connUUID, userUUID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) scanOne(ctx context.Context, sql string, args ...any) (Connection, error) {
	conn, err := scanConnection(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	return conn, err
}

func scanConnection(row pgx.Row) (Connection, error) {
	var (
		id, userID             pgtype.UUID
		rawPlatform, accountID string
		accountHandle          pgtype.Text
		displayName            pgtype.Text
		accessToken            string
		disabled               bool
		createdAt, updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&id, &userID, &rawPlatform, &accountID, &accountHandle,
		&displayName, &accessToken, &disabled, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Connection{}, err
		}
		return Connection{}, fmt.Errorf("scan connection: %w", err)
	}
	return Connection{
		ID:            db.UUIDToString(id),
		UserID:        db.UUIDToString(userID),
		Platform:      platform.Platform(rawPlatform),
		AccountID:     accountID,
		AccountHandle: db.TextToString(accountHandle),
		DisplayName:   db.TextToString(displayName),
		AccessToken:   accessToken,
		Disabled:      disabled,
		CreatedAt:     createdAt.Time,
		UpdatedAt:     updatedAt.Time,
	}, nil
}
