package sync

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/app/repository"
	"github.com/meridianmedia/bookingsync/internal/pkg/booking"
	"github.com/meridianmedia/bookingsync/internal/pkg/lock"
	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
)

// Lock operation classes. Each entry operation locks (class, booking id),
// so a created hook racing a poller tick on the same booking serializes
// while different bookings proceed in parallel.
const (
	opCreate = "create"
	opUpdate = "update"
	opCancel = "cancel"
)

// CRM is the subset of remote operations the engine drives
type CRM interface {
	FindOrCreateContact(ctx context.Context, p *booking.Payload) (string, error)
	CreateEvent(ctx context.Context, contactID, name, start, end, description string) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
	CreateNote(ctx context.Context, contactID, text string) error
}

// BookingReader reads one booking through a schema map
type BookingReader interface {
	Read(id uint, m schema.Map) (*booking.Payload, error)
}

// SchemaProvider supplies the cached schema map, rediscovering on demand
type SchemaProvider interface {
	Get(forced bool) schema.Map
}

// Engine orchestrates created/updated/cancelled transitions. It holds no
// state of its own: the mapping store is the durable truth it reconciles
// against, and the fingerprint plus mapping presence make replays after
// partial failure safe.
type Engine struct {
	crm      CRM
	reader   BookingReader
	schemas  SchemaProvider
	mappings repository.MappingRepository
	locker   lock.Locker
	settings func() *models.SyncSettings
}

// NewEngine creates a reconciliation engine. settings is called per
// operation so runtime setting changes apply immediately; nil falls back
// to the global sync settings.
func NewEngine(crm CRM, reader BookingReader, schemas SchemaProvider,
	mappings repository.MappingRepository, locker lock.Locker,
	settings func() *models.SyncSettings) *Engine {
	if settings == nil {
		settings = models.GetSyncSettings
	}
	return &Engine{
		crm:      crm,
		reader:   reader,
		schemas:  schemas,
		mappings: mappings,
		locker:   locker,
		settings: settings,
	}
}

// OnBookingCreated syncs a newly created booking into the CRM
func (e *Engine) OnBookingCreated(ctx context.Context, id uint) {
	release, ok := e.locker.TryLock(ctx, opCreate, id)
	if !ok {
		log.Infof("[Sync] CREATE booking %d skipped, lock held by another trigger", id)
		return
	}
	defer release()

	s := e.settings()
	if s == nil || s.GetAPIKey() == "" {
		log.Infof("[Sync] No CRM API key configured, skipping booking %d", id)
		return
	}

	p := e.readBooking(id)
	if p == nil {
		return
	}
	if !p.HasEmail() {
		log.Infof("[Sync] Booking %d has no customer email, skipping", p.BookingID)
		return
	}
	if s.IsCancelledStatus(p.Status) {
		// Never create an event for an already-cancelled booking.
		log.Infof("[Sync] Booking %d is already cancelled (status=%s), skipping create", p.BookingID, p.Status)
		return
	}
	if s.IsDebugEnabled() {
		log.Infof("[Sync] CREATE booking %d payload=%+v", p.BookingID, p)
	}

	fp := booking.Fingerprint(p)
	rec, err := e.mappings.Get(p.BookingID)
	if err != nil {
		log.Errorf("[Sync] Mapping lookup failed for booking %d: %v", p.BookingID, err)
		return
	}
	if rec != nil {
		if rec.BookingHash == fp {
			log.Debugf("[Sync] Booking %d already synced, fingerprint unchanged", p.BookingID)
			return
		}
		// A created signal arriving after the booking already changed is
		// treated as an update. The payload in hand is current; only the
		// update lock is still needed.
		log.Infof("[Sync] Booking %d already mapped with different fingerprint, promoting to update", p.BookingID)
		releaseUpdate, ok := e.locker.TryLock(ctx, opUpdate, p.BookingID)
		if !ok {
			log.Infof("[Sync] UPDATE booking %d skipped, lock held by another trigger", p.BookingID)
			return
		}
		defer releaseUpdate()
		e.resync(ctx, s, p)
		return
	}

	e.createEvent(ctx, s, p, fp)
}

// createEvent drives contact upsert, event creation, mapping write and
// the optional note for a booking with no current mapping.
func (e *Engine) createEvent(ctx context.Context, s *models.SyncSettings, p *booking.Payload, fp string) {
	contactID, err := e.crm.FindOrCreateContact(ctx, p)
	if err != nil {
		// No mapping exists yet, so aborting here is safe to retry on
		// the next trigger cycle.
		log.Errorf("[Sync] Contact upsert failed for booking %d: %v", p.BookingID, err)
		return
	}

	title := renderTitle(s.GetEventTitleTemplate(), p)
	start, end := eventWindow(p)
	summary := buildSummary(p)

	eventID, err := e.crm.CreateEvent(ctx, contactID, title, start, end, summary)
	if err != nil {
		log.Errorf("[Sync] CreateEvent failed for booking %d: %v", p.BookingID, err)
		return
	}

	if err := e.mappings.Upsert(p.BookingID, eventID, fp); err != nil {
		log.Errorf("[Sync] Mapping upsert failed for booking %d event %s: %v", p.BookingID, eventID, err)
	}
	log.Infof("[Sync] Booking %d synced to event %s", p.BookingID, eventID)

	if s.IsAddNoteEnabled() {
		if err := e.crm.CreateNote(ctx, contactID, summary); err != nil {
			// The event exists; a failed note does not roll it back.
			log.Errorf("[Sync] CreateNote failed for booking %d: %v", p.BookingID, err)
		}
	}
}

// OnBookingUpdated resyncs a changed booking by replacing its CRM event
func (e *Engine) OnBookingUpdated(ctx context.Context, id uint) {
	release, ok := e.locker.TryLock(ctx, opUpdate, id)
	if !ok {
		log.Infof("[Sync] UPDATE booking %d skipped, lock held by another trigger", id)
		return
	}
	defer release()

	s := e.settings()
	if s == nil || s.GetAPIKey() == "" {
		log.Infof("[Sync] No CRM API key configured, skipping booking %d", id)
		return
	}

	p := e.readBooking(id)
	if p == nil {
		return
	}
	if !p.HasEmail() {
		log.Infof("[Sync] Booking %d has no customer email, skipping", p.BookingID)
		return
	}
	if s.IsCancelledStatus(p.Status) {
		log.Infof("[Sync] Booking %d updated to cancelled status (%s), routing to cancel", p.BookingID, p.Status)
		e.OnBookingCancelled(ctx, p.BookingID)
		return
	}
	if s.IsDebugEnabled() {
		log.Infof("[Sync] UPDATE booking %d payload=%+v", p.BookingID, p)
	}

	e.resync(ctx, s, p)
}

// resync replaces the CRM event for a booking whose source state changed.
// Callers hold the update lock and have already screened the payload for
// email presence and cancelled status.
func (e *Engine) resync(ctx context.Context, s *models.SyncSettings, p *booking.Payload) {
	contactID, err := e.crm.FindOrCreateContact(ctx, p)
	if err != nil {
		log.Errorf("[Sync] Contact upsert failed for booking %d: %v", p.BookingID, err)
		return
	}

	fp := booking.Fingerprint(p)
	rec, err := e.mappings.Get(p.BookingID)
	if err != nil {
		log.Errorf("[Sync] Mapping lookup failed for booking %d: %v", p.BookingID, err)
		return
	}
	if rec != nil && rec.EventID != "" {
		// Best-effort: a stray duplicate event is preferable to a missing
		// one, since the create below always happens.
		if err := e.crm.DeleteEvent(ctx, rec.EventID); err != nil {
			log.Errorf("[Sync] Deleting old event %s for booking %d failed, proceeding: %v", rec.EventID, p.BookingID, err)
		}
	}

	title := renderTitle(s.GetEventTitleTemplate(), p)
	start, end := eventWindow(p)
	summary := buildSummary(p)

	eventID, err := e.crm.CreateEvent(ctx, contactID, title, start, end, summary)
	if err != nil {
		// The old mapping may now point at a deleted event; the next
		// recheck pass sees the fingerprint mismatch and retries.
		log.Errorf("[Sync] Recreate event failed for booking %d: %v", p.BookingID, err)
		return
	}

	if err := e.mappings.Upsert(p.BookingID, eventID, fp); err != nil {
		log.Errorf("[Sync] Mapping upsert failed for booking %d event %s: %v", p.BookingID, eventID, err)
	}
	log.Infof("[Sync] Booking %d resynced to event %s", p.BookingID, eventID)
}

// OnBookingCancelled deletes the CRM event of a cancelled booking
func (e *Engine) OnBookingCancelled(ctx context.Context, id uint) {
	release, ok := e.locker.TryLock(ctx, opCancel, id)
	if !ok {
		log.Infof("[Sync] CANCEL booking %d skipped, lock held by another trigger", id)
		return
	}
	defer release()

	s := e.settings()
	if s == nil || s.GetAPIKey() == "" {
		log.Infof("[Sync] No CRM API key configured, skipping booking %d", id)
		return
	}
	if !s.IsDeleteOnCancelEnabled() {
		log.Debugf("[Sync] Delete-on-cancel disabled, skipping booking %d", id)
		return
	}

	rec, err := e.mappings.Get(id)
	if err != nil {
		log.Errorf("[Sync] Mapping lookup failed for booking %d: %v", id, err)
		return
	}
	if rec == nil {
		// Already reconciled or never synced; nothing to delete.
		log.Debugf("[Sync] CANCEL booking %d has no mapping, nothing to do", id)
		return
	}

	if err := e.crm.DeleteEvent(ctx, rec.EventID); err != nil {
		// Mapping stays so a future pass retries the delete.
		log.Errorf("[Sync] DeleteEvent failed for booking %d event %s: %v", id, rec.EventID, err)
		return
	}

	if err := e.mappings.Delete(id); err != nil {
		log.Errorf("[Sync] Mapping delete failed for booking %d: %v", id, err)
		return
	}
	log.Infof("[Sync] Booking %d cancelled, event %s deleted", id, rec.EventID)
}

// Recheck re-reads a mapped booking and routes it to the cancel or update
// path when its source state diverged from the last-synced state. Used by
// the poller's recheck pass and the admin safety check.
func (e *Engine) Recheck(ctx context.Context, id uint) {
	rec, err := e.mappings.Get(id)
	if err != nil {
		log.Errorf("[Sync] Mapping lookup failed for booking %d: %v", id, err)
		return
	}
	if rec == nil {
		return
	}

	p := e.readBooking(id)
	if p == nil {
		return
	}

	s := e.settings()
	if s != nil && s.IsCancelledStatus(p.Status) {
		e.OnBookingCancelled(ctx, id)
		return
	}
	if booking.Fingerprint(p) != rec.BookingHash {
		e.OnBookingUpdated(ctx, id)
		return
	}
	log.Debugf("[Sync] Booking %d unchanged", id)
}

// readBooking reads a booking with schema-drift tolerance: a not-found
// result triggers exactly one forced rediscovery and retry; a second miss
// is terminal for this invocation and retried only by the next trigger.
func (e *Engine) readBooking(id uint) *booking.Payload {
	m := e.schemas.Get(false)
	p, err := e.reader.Read(id, m)
	if err == nil {
		return p
	}
	if errors.Is(err, booking.ErrNotFound) {
		log.Infof("[Sync] Booking %d not found with cached schema, rediscovering", id)
		m = e.schemas.Get(true)
		p, err = e.reader.Read(id, m)
		if err == nil {
			return p
		}
	}
	log.Infof("[Sync] Booking %d could not be read: %v", id, err)
	return nil
}
