package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// Location is a physical store or warehouse that can hold stock.
type Location struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name          string            `gorm:"column:name;not null"`
	Latitude      *float64          `gorm:"column:latitude"`
	Longitude     *float64          `gorm:"column:longitude"`
	Active        bool              `gorm:"column:active;not null"`
	POSProvider   enums.POSProvider `gorm:"column:pos_provider;type:varchar(32);not null"`
	POSLocationID *string           `gorm:"column:pos_location_id"`
	LastSyncAt    *time.Time        `gorm:"column:last_sync_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Location) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.POSProvider == "" {
		l.POSProvider = enums.POSProviderNone
	}
	return nil
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ExternalID returns the POS-side identifier, or "" when the location is not linked.
func (l Location) ExternalID() string {
	if l.POSLocationID == nil {
		return ""
	}
	return *l.POSLocationID
}
