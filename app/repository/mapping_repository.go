package repository

import (
	"errors"
	"time"

	"github.com/meridianmedia/bookingsync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mappingRepository implements the MappingRepository interface
type mappingRepository struct {
	db *gorm.DB
}

// NewMappingRepository creates a new mapping repository instance
func NewMappingRepository(db *gorm.DB) MappingRepository {
	return &mappingRepository{db: db}
}

// Get retrieves the mapping for a booking, returning nil when absent
func (r *mappingRepository) Get(bookingID uint) (*models.BookingEventMap, error) {
	var rec models.BookingEventMap
	err := r.db.Where("booking_id = ?", bookingID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Upsert atomically inserts or updates the mapping for a booking.
// The primary key on booking_id plus ON CONFLICT keeps concurrent calls
// from ever creating a second row for the same booking.
func (r *mappingRepository) Upsert(bookingID uint, eventID, bookingHash string) error {
	rec := models.BookingEventMap{
		BookingID:   bookingID,
		EventID:     eventID,
		BookingHash: bookingHash,
		UpdatedAt:   time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_id", "booking_hash", "updated_at"}),
	}).Create(&rec).Error
}

// Delete removes the mapping for a booking
func (r *mappingRepository) Delete(bookingID uint) error {
	return r.db.Where("booking_id = ?", bookingID).Delete(&models.BookingEventMap{}).Error
}

// ListRecent returns up to limit booking ids ordered by last update,
// newest first. The limit is clamped so a single recheck pass stays bounded.
func (r *mappingRepository) ListRecent(limit int) ([]uint, error) {
	if limit < models.MinRecheckLimit {
		limit = models.MinRecheckLimit
	}
	if limit > models.MaxRecheckLimit {
		limit = models.MaxRecheckLimit
	}

	var ids []uint
	err := r.db.Model(&models.BookingEventMap{}).
		Order("updated_at DESC").
		Limit(limit).
		Pluck("booking_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
