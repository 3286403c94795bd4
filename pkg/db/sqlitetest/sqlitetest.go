// Package sqlitetest opens isolated in-memory databases carrying the full
// shopfloor schema for package tests.
package sqlitetest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

// Open returns a fresh database. Every call gets its own shared-cache name so
// tests never see each other's rows.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:shopfloor_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// A single connection keeps the in-memory database alive and serialises
	// writers the way sqlite expects.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	for _, stmt := range models.PartialIndexes() {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create index: %v", err)
		}
	}
	return conn
}
