package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/app/repository"
	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
)

// DefaultInterval is the poll cadence when none is configured
const DefaultInterval = time.Minute

// Syncer is the reconciliation surface the poller drives
type Syncer interface {
	OnBookingCreated(ctx context.Context, id uint)
	Recheck(ctx context.Context, id uint)
}

// IDLister enumerates booking ids above a watermark
type IDLister interface {
	ListIDsAbove(m schema.Map, watermark uint, limit int) ([]uint, error)
}

// SchemaProvider supplies the cached schema map
type SchemaProvider interface {
	Get(forced bool) schema.Map
}

// Manager runs the periodic poll loop: a watermark scan that catches
// bookings created without a hook firing, followed by a recheck pass over
// recently synced bookings to catch silent edits and cancellations.
type Manager struct {
	syncer   Syncer
	lister   IDLister
	schemas  SchemaProvider
	mappings repository.MappingRepository
	kv       repository.SettingRepository
	settings func() *models.SyncSettings
	interval time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a poll manager. settings is called per cycle so
// runtime setting changes apply immediately; nil falls back to the global
// sync settings.
func NewManager(syncer Syncer, lister IDLister, schemas SchemaProvider,
	mappings repository.MappingRepository, kv repository.SettingRepository,
	settings func() *models.SyncSettings, interval time.Duration) *Manager {
	if settings == nil {
		settings = models.GetSyncSettings
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		syncer:   syncer,
		lister:   lister,
		schemas:  schemas,
		mappings: mappings,
		kv:       kv,
		settings: settings,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background poll loop
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate the stop channel so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[Poller] Starting poll loop with interval %s", m.interval)

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.worker()
}

// Stop stops the poll loop and waits for an in-flight cycle to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Poller] Stopping poll loop...")

	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.stopCh)
	m.wg.Wait()
	m.running = false

	log.Info("[Poller] Stopped")
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ticker.C:
			m.RunOnce(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// RunOnce executes one poll cycle. Exposed for the admin recheck endpoint.
func (m *Manager) RunOnce(ctx context.Context) {
	s := m.settings()
	if s == nil || s.GetAPIKey() == "" {
		log.Debug("[Poller] No CRM API key configured, skipping cycle")
		return
	}

	m.pollNew(ctx, s)
	m.recheckRecent(ctx, s)
}

// pollNew scans for booking ids above the stored watermark and feeds them
// through the created path. The watermark advances per processed id
// regardless of sync outcome; per-booking recovery is the recheck pass's
// job, not the scanner's.
func (m *Manager) pollNew(ctx context.Context, s *models.SyncSettings) {
	watermark := m.readWatermark()

	ids, err := m.lister.ListIDsAbove(m.schemas.Get(false), watermark, s.GetPollBatchLimit())
	if err != nil {
		log.Errorf("[Poller] Watermark scan failed above %d: %v", watermark, err)
		return
	}
	if len(ids) == 0 {
		return
	}

	log.Infof("[Poller] Found %d new booking(s) above watermark %d", len(ids), watermark)
	for _, id := range ids {
		m.syncer.OnBookingCreated(ctx, id)
		if err := m.kv.SetValue(models.SettingLastProcessedID, strconv.FormatUint(uint64(id), 10)); err != nil {
			log.Errorf("[Poller] Failed to advance watermark to %d: %v", id, err)
			return
		}
	}
}

// recheckRecent reconciles the most recently synced bookings against
// their current source state.
func (m *Manager) recheckRecent(ctx context.Context, s *models.SyncSettings) {
	ids, err := m.mappings.ListRecent(s.GetRecheckLimit())
	if err != nil {
		log.Errorf("[Poller] Listing mapped bookings failed: %v", err)
		return
	}
	for _, id := range ids {
		m.syncer.Recheck(ctx, id)
	}
}

func (m *Manager) readWatermark() uint {
	raw, err := m.kv.GetValue(models.SettingLastProcessedID)
	if err != nil {
		log.Errorf("[Poller] Reading watermark failed, starting from 0: %v", err)
		return 0
	}
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Errorf("[Poller] Watermark %q is not a number, starting from 0", raw)
		return 0
	}
	return uint(n)
}
