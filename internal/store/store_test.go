package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "doxa_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedObservations(t *testing.T, db *DB, n int) []uuid.UUID {
	t.Helper()
	obs := make([]domain.Observation, n)
	ids := make([]uuid.UUID, n)
	for i := range obs {
		obs[i] = domain.Observation{
			ID:          uuid.New(),
			CapturedAt:  time.Now().UTC(),
			Content:     fmt.Sprintf("raw observation %d", i),
			ContentType: domain.ContentTypeInputText,
			Source:      "test",
		}
		ids[i] = obs[i].ID
	}
	if err := NewObservationStore(db).RecordObservations(context.Background(), obs); err != nil {
		t.Fatalf("seed observations: %v", err)
	}
	return ids
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if got := db.schemaVersion(); got != schemaVersionMax {
		t.Errorf("schema version = %d, want %d", got, schemaVersionMax)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = ?"

	sq := &DB{dialect: DialectSQLite}
	if got := sq.rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %s", got)
	}

	pg := &DB{dialect: DialectPostgres}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got := pg.rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	sq := &DB{dialect: DialectSQLite}
	if got := sq.placeholders(3, 1); got != "?, ?, ?" {
		t.Errorf("sqlite placeholders = %q", got)
	}

	pg := &DB{dialect: DialectPostgres}
	if got := pg.placeholders(3, 2); got != "$2, $3, $4" {
		t.Errorf("postgres placeholders = %q", got)
	}
}

func TestSanitizeMatch(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantAny string
	}{
		{"fix auth bug", `"fix" "auth" "bug"`, `"fix" OR "auth" OR "bug"`},
		{`uses "vim" daily`, `"uses" "vim" "daily"`, `"uses" OR "vim" OR "daily"`},
		{"  spaced   out  ", `"spaced" "out"`, `"spaced" OR "out"`},
		{`"" "`, "", ""},
	}
	for _, tc := range cases {
		if got := sanitizeMatch(tc.in); got != tc.want {
			t.Errorf("sanitizeMatch(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if got := sanitizeMatchAny(tc.in); got != tc.wantAny {
			t.Errorf("sanitizeMatchAny(%q) = %q, want %q", tc.in, got, tc.wantAny)
		}
	}
}
