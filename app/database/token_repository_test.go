package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "nested", "state.db"))

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
	if dirty {
		t.Error("Expected clean schema")
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(openTestDB(t, filepath.Join(t.TempDir(), "state.db")))

	token, err := repo.LoadToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("Expected no token on a fresh store, got '%s'", token)
	}

	if err := repo.SaveToken(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveToken(ctx, "second"); err != nil {
		t.Fatal(err)
	}

	token, err = repo.LoadToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if token != "second" {
		t.Errorf("Expected latest token 'second', got '%s'", token)
	}

	var rows int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM client_state`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("Expected exactly one persisted row, got %d", rows)
	}

	if err := repo.ClearToken(ctx); err != nil {
		t.Fatal(err)
	}
	token, err = repo.LoadToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("Expected token to be cleared, got '%s'", token)
	}
}

func TestTokenSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewTokenRepository(first).SaveToken(ctx, "persisted"); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := openTestDB(t, path)
	token, err := NewTokenRepository(second).LoadToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if token != "persisted" {
		t.Errorf("Expected 'persisted' after reopen, got '%s'", token)
	}
}

func TestSaveEmptyTokenClears(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(openTestDB(t, filepath.Join(t.TempDir(), "state.db")))

	if err := repo.SaveToken(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveToken(ctx, ""); err != nil {
		t.Fatal(err)
	}
	token, _ := repo.LoadToken(ctx)
	if token != "" {
		t.Errorf("Expected empty save to clear the token, got '%s'", token)
	}
}
