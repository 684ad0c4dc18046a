package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
)

func init() {
	goose.AddMigrationNoTxContext(upInit, downInit)
}

// Schema snapshot for version 1. Later model changes get their own migration.

type FaultyAsset struct {
	ID               uint       `gorm:"primaryKey"`
	Category         string     `gorm:"size:100;not null"`
	AssetName        string     `gorm:"size:200;not null"`
	TicketID         string     `gorm:"size:100;not null"`
	SerialNo         string     `gorm:"size:100;not null;uniqueIndex"`
	AssetTag         string     `gorm:"size:100;not null;uniqueIndex"`
	Branch           string     `gorm:"size:100;not null;index"`
	DateReceived     time.Time  `gorm:"not null"`
	ReceivedBy       string     `gorm:"size:100;not null"`
	Vendor           string     `gorm:"size:100;not null"`
	FaultReported    string     `gorm:"size:1000;not null"`
	VendorPickupDate *time.Time
	RepairCost       *float64 `gorm:"type:numeric(18,2)"`
	Status           string   `gorm:"size:50;not null;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AuditLog struct {
	ID         uint   `gorm:"primaryKey"`
	AssetID    uint   `gorm:"index:idx_audit_logs_asset_ts,priority:1;not null"`
	Kind       string `gorm:"size:20;not null"`
	Action     string `gorm:"size:255;not null"`
	User       string `gorm:"size:100;not null"`
	UserID     *uint
	Timestamp  time.Time `gorm:"index:idx_audit_logs_asset_ts,priority:2;not null"`
	BeforeData datatypes.JSON
	AfterData  datatypes.JSON
}

type Role struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:50;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null;uniqueIndex"`
	Email        string `gorm:"size:100;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	Roles        []Role `gorm:"many2many:user_roles"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func upInit(ctx context.Context, db *sql.DB) error {
	gormDB, err := openGorm(db)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&FaultyAsset{},
		&AuditLog{},
		&Role{},
		&User{},
	)
}

func downInit(ctx context.Context, db *sql.DB) error {
	gormDB, err := openGorm(db)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		"user_roles",
		&User{},
		&Role{},
		&AuditLog{},
		&FaultyAsset{},
	)
}
