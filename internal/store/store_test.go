package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"filmlog/internal/store"
	"filmlog/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("expected path %s, got %s", cfg.DatabasePath(), st.Path())
	}
	if _, err := st.EnsureProfile(context.Background(), "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	profile, err := reopened.GetProfile(context.Background(), "alice")
	if err != nil || profile == nil {
		t.Fatalf("expected profile to survive reopen, got %v %v", profile, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
