package models

import "time"

// BookingEventMap correlates a source booking with the CRM event created
// for it. One row per booking. Presence of a row means a CRM event was
// created and is believed to still exist; the row is removed the moment
// the event is deleted on cancellation.
type BookingEventMap struct {
	BookingID   uint      `gorm:"primaryKey;autoIncrement:false" json:"booking_id"`
	EventID     string    `gorm:"size:64;not null;index" json:"event_id"`
	BookingHash string    `gorm:"type:char(64);not null;default:''" json:"booking_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName keeps the original mapping table name
func (BookingEventMap) TableName() string {
	return "booking_event_map"
}
