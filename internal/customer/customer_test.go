package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shoptalk/shoptalk/internal/platform"
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
		default:
			return errors.New("fakeRow: unsupported dest type")
		}
	}
	return nil
}

type queryCall struct {
	sql  string
	args []any
}

type fakeDBTX struct {
	row     fakeRow
	queries []queryCall
}

func (f *fakeDBTX) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDBTX: Query not stubbed")
}

func (f *fakeDBTX) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, queryCall{sql: sql, args: args})
	return f.row
}

func customerRow(t *testing.T, name string) fakeRow {
	t.Helper()
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	return fakeRow{values: []any{
		pgtype.UUID{Bytes: uuid.New(), Valid: true},
		pgtype.UUID{Bytes: uuid.New(), Valid: true},
		"whatsapp",
		"15551234567",
		pgtype.Text{String: name, Valid: name != ""},
		pgtype.Text{},
		pgtype.Text{String: "+15551234567", Valid: true},
		"active",
		now,
		now,
	}}
}

func TestResolvePassesRawNameForConflictUpdate(t *testing.T) {
	t.Parallel()

	dbtx := &fakeDBTX{row: customerRow(t, "Jane")}
	svc := NewService(dbtx, nil)

	_, err := svc.Resolve(context.Background(), ResolveParams{
		UserID:      uuid.NewString(),
		Platform:    platform.WhatsApp,
		ExternalID:  "15551234567",
		DisplayName: "Jane",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(dbtx.queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(dbtx.queries))
	}
	if got := dbtx.queries[0].args[3]; got != "Jane" {
		t.Errorf("payload name arg = %v, want the raw name", got)
	}
}

// A delivery without contact info must not be able to erase a stored name:
// the conflict-update parameter stays empty so NULLIF keeps the existing row
// value, and the synthesized fallback is only the insert seed.
func TestResolveEmptyNameDoesNotReachConflictUpdate(t *testing.T) {
	t.Parallel()

	dbtx := &fakeDBTX{row: customerRow(t, "Jane")}
	svc := NewService(dbtx, nil)

	cust, err := svc.Resolve(context.Background(), ResolveParams{
		UserID:     uuid.NewString(),
		Platform:   platform.WhatsApp,
		ExternalID: "15551234567",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got := dbtx.queries[0].args[3]; got != "" {
		t.Errorf("payload name arg = %v, want empty so the stored name survives", got)
	}
	if got := dbtx.queries[0].args[4]; got != "+15551234567" {
		t.Errorf("fallback name arg = %v, want the synthesized whatsapp name", got)
	}
	if cust.DisplayName != "Jane" {
		t.Errorf("display name = %q", cust.DisplayName)
	}
}

func TestResolveRequiresExternalID(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeDBTX{}, nil)
	_, err := svc.Resolve(context.Background(), ResolveParams{
		UserID:   uuid.NewString(),
		Platform: platform.WhatsApp,
	})
	if err == nil {
		t.Fatal("expected error for missing external id")
	}
}

func TestFallbackNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		platform   platform.Platform
		externalID string
		want       string
	}{
		{platform.WhatsApp, "15551234567", "+15551234567"},
		{platform.Instagram, "5120000000000001", "Instagram user 000001"},
		{platform.Facebook, "24000000000000001", "Messenger user 000001"},
		{platform.Direct, "abc", "Customer abc"},
	}
	for _, tc := range cases {
		if got := fallbackName(tc.platform, tc.externalID); got != tc.want {
			t.Errorf("fallbackName(%s, %s) = %q, want %q", tc.platform, tc.externalID, got, tc.want)
		}
	}
}
