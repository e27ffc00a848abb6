package session_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"efakture/internal/core"
	"efakture/internal/session"
	"efakture/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if _, err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE bff_sessions`); err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	store := session.NewPostgresStore(pool, time.Hour)
	pib := "123456789"
	sess, err := store.Create(ctx, "tok-1", core.User{ID: 7, Role: core.RoleCompany, PIB: &pib})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BackendToken != "tok-1" || got.User.PIB == nil || *got.User.PIB != pib {
		t.Errorf("unexpected session %+v", got)
	}

	if err := store.UpdateUser(ctx, sess.ID, core.User{ID: 7, Role: core.RoleCompany, Verified: true}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got, _ := store.Get(ctx, sess.ID); !got.User.Verified {
		t.Error("expected verified profile")
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_Purge(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `
		INSERT INTO bff_sessions (id, backend_token, user_profile, expires_at)
		VALUES ('old', 't', '{}', now() - interval '1 minute')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := session.NewPostgresStore(pool, time.Hour)
	if _, err := store.Get(ctx, "old"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired session must not load, got %v", err)
	}
	n, err := store.Purge(ctx)
	if err != nil || n != 1 {
		t.Errorf("Purge: want 1, got %d (%v)", n, err)
	}
}
