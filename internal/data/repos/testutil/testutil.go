// Package testutil opens a throwaway tenant database for repository and
// service integration tests. Tests skip unless LS_TEST_POSTGRES_DSN points at
// a database that may be migrated and written to.
package testutil

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// DB opens the test database and migrates the full model set. The handle is
// shared across tests in a package run.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set LS_TEST_POSTGRES_DSN to run database-backed tests")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := tenant.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// Tx begins a transaction that is rolled back when the test ends, so tests
// never see each other's rows.
func Tx(t *testing.T, db *gorm.DB) dbctx.Context {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() { tx.Rollback() })
	return dbctx.Context{Ctx: context.Background(), Tx: tx}
}

// Logger returns a no-op friendly logger for constructing repos in tests.
func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}
