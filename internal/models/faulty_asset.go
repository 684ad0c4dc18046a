package models

import "time"

// FaultyAsset - a physical asset logged for repair.
// AssetTag and SerialNo are business keys and unique across all rows.
type FaultyAsset struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Category         string     `gorm:"size:100;not null" json:"category"`
	AssetName        string     `gorm:"size:200;not null" json:"assetName"`
	TicketID         string     `gorm:"size:100;not null" json:"ticketId"`
	SerialNo         string     `gorm:"size:100;not null;uniqueIndex" json:"serialNo"`
	AssetTag         string     `gorm:"size:100;not null;uniqueIndex" json:"assetTag"`
	Branch           string     `gorm:"size:100;not null;index" json:"branch"`
	DateReceived     time.Time  `gorm:"not null" json:"dateReceived"`
	ReceivedBy       string     `gorm:"size:100;not null" json:"receivedBy"`
	Vendor           string     `gorm:"size:100;not null" json:"vendor"`
	FaultReported    string     `gorm:"size:1000;not null" json:"faultReported"`
	VendorPickupDate *time.Time `json:"vendorPickupDate"`
	RepairCost       *float64   `gorm:"type:numeric(18,2)" json:"repairCost"`
	Status           string     `gorm:"size:50;not null;index" json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}
