package repository

import (
	"github.com/meridianmedia/bookingsync/app/models"
)

// MappingRepository defines the interface for booking-to-event mapping operations
type MappingRepository interface {
	// Get returns the mapping for a booking, or nil when none exists
	Get(bookingID uint) (*models.BookingEventMap, error)
	// Upsert atomically inserts or updates the mapping for a booking
	Upsert(bookingID uint, eventID, bookingHash string) error
	// Delete removes the mapping for a booking; deleting a missing row is not an error
	Delete(bookingID uint) error
	// ListRecent returns up to limit booking ids, most recently updated first
	ListRecent(limit int) ([]uint, error)
}

// SettingRepository defines the interface for single-key setting access
type SettingRepository interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}
