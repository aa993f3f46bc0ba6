// Package dbtest opens throwaway databases for repository tests.
package dbtest

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
)

// EnvTestDSN points repository tests at a real Postgres instead of sqlite.
const EnvTestDSN = "POS_TEST_DB_DSN"

// Open returns a migrated database private to the test. Without POS_TEST_DB_DSN
// it is an in-memory sqlite database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	var dialector gorm.Dialector
	if dsn := os.Getenv(EnvTestDSN); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on")
	}

	conn, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if conn.Dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Models lists every table the POS owns, parents first.
func Models() []any {
	return []any{
		&models.Product{},
		&models.ProductUnit{},
		&models.Transaction{},
		&models.TransactionItem{},
		&models.StockMovement{},
	}
}
