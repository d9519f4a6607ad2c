// Package accounts manages merchant user accounts and password auth.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/shoptalk/shoptalk/internal/db"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrInvalidCredentials is returned for a bad username/password pair. The
// handler maps it to 401 without leaking which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is a merchant account.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service persists users and verifies credentials.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates an accounts service.
func NewService(dbtx db.DBTX, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     dbtx,
		logger: log.With(slog.String("service", "accounts")),
	}
}

const userColumns = `id, username, password_hash, display_name, role, is_active, created_at, updated_at`

// Authenticate verifies a username/password pair and returns the user.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active`,
		username)
	user, hash, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns one user.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	userUUID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, err
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userUUID)
	user, _, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Create registers a user with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, username, password, displayName, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters")
	}
	if role == "" {
		role = "merchant"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, display_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		username, string(hash), db.ToPgText(displayName), role)
	user, _, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)
	return user, nil
}

// EnsureAdmin seeds the configured admin account on startup if no user with
// that username exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username)
	if _, _, err := scanUser(row); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if _, err := s.Create(ctx, username, password, "Administrator", "admin"); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin user seeded", slog.String("username", username))
	return nil
}

func scanUser(row pgx.Row) (User, string, error) {
	var (
		id                   pgtype.UUID
		username, hash       string
		displayName          pgtype.Text
		role                 string
		isActive             bool
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &username, &hash, &displayName, &role, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return User{}, "", err
	}
	return User{
		ID:          db.UUIDToString(id),
		Username:    username,
		DisplayName: db.TextToString(displayName),
		Role:        role,
		IsActive:    isActive,
		CreatedAt:   createdAt.Time,
		UpdatedAt:   updatedAt.Time,
	}, hash, nil
}
