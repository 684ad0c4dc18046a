package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditLog is append-only. Rows are written in the same transaction as the
// asset change they describe and are never updated or removed.
type AuditLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// No foreign key: the asset may be deleted while its history stays.
	AssetID uint `gorm:"index:idx_audit_logs_asset_ts,priority:1;not null" json:"assetId"`

	Kind   AuditAction `gorm:"size:20;not null" json:"kind"`
	Action string      `gorm:"size:255;not null" json:"action"`

	// Principal name at the time of the change, "system" when unknown.
	User   string `gorm:"size:100;not null" json:"user"`
	UserID *uint  `json:"userId"`

	Timestamp time.Time `gorm:"index:idx_audit_logs_asset_ts,priority:2;not null" json:"timestamp"`

	BeforeData datatypes.JSON `json:"beforeData,omitempty"`
	AfterData  datatypes.JSON `json:"afterData,omitempty"`
}
