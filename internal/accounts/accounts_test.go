package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("fakeRow: column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *pgtype.UUID:
			*d = v.(pgtype.UUID)
		case *pgtype.Text:
			*d = v.(pgtype.Text)
		case *pgtype.Timestamptz:
			*d = v.(pgtype.Timestamptz)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		default:
			return errors.New("fakeRow: unsupported dest type")
		}
	}
	return nil
}

type fakeDBTX struct {
	row fakeRow
}

func (f *fakeDBTX) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDBTX: Query not stubbed")
}

func (f *fakeDBTX) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func userRow(t *testing.T, username, password string) fakeRow {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	return fakeRow{values: []any{
		pgtype.UUID{Bytes: uuid.New(), Valid: true},
		username,
		string(hash),
		pgtype.Text{String: "Shop Owner", Valid: true},
		"merchant",
		true,
		now,
		now,
	}}
}

func TestAuthenticateSuccess(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeDBTX{row: userRow(t, "amina", "s3cret-pass")}, nil)
	user, err := svc.Authenticate(context.Background(), "amina", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if user.Username != "amina" {
		t.Errorf("username = %q", user.Username)
	}
	if user.Role != "merchant" {
		t.Errorf("role = %q", user.Role)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeDBTX{row: userRow(t, "amina", "s3cret-pass")}, nil)
	_, err := svc.Authenticate(context.Background(), "amina", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeDBTX{row: fakeRow{err: pgx.ErrNoRows}}, nil)
	_, err := svc.Authenticate(context.Background(), "nobody", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeDBTX{}, nil)
	if _, err := svc.Authenticate(context.Background(), "", "pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(context.Background(), "user", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}
