package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FS exposes the migration sources so goose can discover them by version.
//
//go:embed *.go
var FS embed.FS

var (
	mu      sync.RWMutex
	dialect = "postgres"
)

// SetDialect selects the GORM dialector used inside Go migrations.
// Accepts "postgres" or "sqlite".
func SetDialect(name string) {
	mu.Lock()
	defer mu.Unlock()
	dialect = name
}

func currentDialect() string {
	mu.RLock()
	defer mu.RUnlock()
	return dialect
}

func openGorm(db *sql.DB) (*gorm.DB, error) {
	var d gorm.Dialector
	switch currentDialect() {
	case "postgres":
		d = postgres.New(postgres.Config{Conn: db, PreferSimpleProtocol: true})
	case "sqlite":
		d = &sqlite.Dialector{Conn: db}
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", currentDialect())
	}
	return gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
