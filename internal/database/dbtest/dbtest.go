// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"faulty-asset-tracker/internal/database"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Open returns an in-memory SQLite database with the production schema and
// seed data applied. It is closed when the test finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{Driver: "sqlite", DSN: dsn, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(ctx, db, "sqlite", zerolog.Nop()); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	if err := database.Seed(ctx, db); err != nil {
		t.Fatalf("dbtest: seed: %v", err)
	}
	return db
}
