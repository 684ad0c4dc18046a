package database

import (
	"context"
	"fmt"
	"time"

	"faulty-asset-tracker/internal/database/migrations"
	"faulty-asset-tracker/internal/models"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Options struct {
	Driver string // "postgres" | "sqlite"
	DSN    string
	Log    zerolog.Logger
}

// Open connects to the configured database. Duplicate-key errors are
// translated to gorm.ErrDuplicatedKey for every dialect.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres", "":
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == "sqlite" {
		// One connection keeps in-memory databases alive and serialises writers.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	opts.Log.Debug().Str("driver", opts.Driver).Msg("database connected")
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, db *gorm.DB, driver string, log zerolog.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	gooseDialect := "postgres"
	if driver == "sqlite" {
		gooseDialect = "sqlite3"
		migrations.SetDialect("sqlite")
	} else {
		migrations.SetDialect("postgres")
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// Seed inserts baseline lookup data such as the default roles.
func Seed(ctx context.Context, db *gorm.DB) error {
	for _, name := range models.DefaultRoles {
		role := models.Role{Name: name}
		if err := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return fmt.Errorf("database: seed role %s: %w", name, err)
		}
	}
	return nil
}

type gooseLogger struct {
	log zerolog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Info().Str("component", "goose").Msgf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Fatal().Str("component", "goose").Msgf(format, v...)
}
