package poller

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
)

type fakeSyncer struct {
	mu       sync.Mutex
	created  []uint
	rechecks []uint
}

func (s *fakeSyncer) OnBookingCreated(_ context.Context, id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, id)
}

func (s *fakeSyncer) Recheck(_ context.Context, id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rechecks = append(s.rechecks, id)
}

type fakeLister struct {
	ids       []uint
	lastLimit int
	lastAbove uint
}

func (l *fakeLister) ListIDsAbove(_ schema.Map, watermark uint, limit int) ([]uint, error) {
	l.lastAbove = watermark
	l.lastLimit = limit
	var out []uint
	for _, id := range l.ids {
		if id > watermark && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeSchemas struct{}

func (fakeSchemas) Get(bool) schema.Map { return schema.Map{BookingTable: "wp_bookings"} }

type fakeMappings struct {
	recent []uint
}

func (m *fakeMappings) Get(uint) (*models.BookingEventMap, error) { return nil, nil }
func (m *fakeMappings) Upsert(uint, string, string) error         { return nil }
func (m *fakeMappings) Delete(uint) error                         { return nil }
func (m *fakeMappings) ListRecent(limit int) ([]uint, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{values: map[string]string{}} }

func (kv *fakeKV) GetValue(key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.values[key], nil
}

func (kv *fakeKV) SetValue(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func testSettings() *models.SyncSettings {
	s := models.DefaultSyncSettings()
	s.APIKey = "test-key"
	return s
}

func newTestManager(syncer *fakeSyncer, lister *fakeLister, mappings *fakeMappings, kv *fakeKV, s *models.SyncSettings) *Manager {
	return NewManager(syncer, lister, fakeSchemas{}, mappings, kv,
		func() *models.SyncSettings { return s }, time.Hour)
}

func TestRunOnceAdvancesWatermark(t *testing.T) {
	syncer := &fakeSyncer{}
	lister := &fakeLister{ids: []uint{41, 42, 43}}
	kv := newFakeKV()
	kv.values[models.SettingLastProcessedID] = "41"

	m := newTestManager(syncer, lister, &fakeMappings{}, kv, testSettings())
	m.RunOnce(context.Background())

	if lister.lastAbove != 41 {
		t.Fatalf("scan started above %d, want 41", lister.lastAbove)
	}
	if len(syncer.created) != 2 || syncer.created[0] != 42 || syncer.created[1] != 43 {
		t.Fatalf("created = %v", syncer.created)
	}
	if got := kv.values[models.SettingLastProcessedID]; got != "43" {
		t.Fatalf("watermark = %q, want 43", got)
	}
}

func TestRunOnceIsIdempotentWhenNothingNew(t *testing.T) {
	syncer := &fakeSyncer{}
	lister := &fakeLister{ids: []uint{1, 2}}
	kv := newFakeKV()

	m := newTestManager(syncer, lister, &fakeMappings{}, kv, testSettings())
	m.RunOnce(context.Background())
	m.RunOnce(context.Background())

	if len(syncer.created) != 2 {
		t.Fatalf("bookings must be scanned once, created = %v", syncer.created)
	}
}

func TestRunOnceRespectsBatchLimit(t *testing.T) {
	syncer := &fakeSyncer{}
	lister := &fakeLister{ids: []uint{1, 2, 3, 4, 5}}
	kv := newFakeKV()
	s := testSettings()
	s.PollBatchLimit = 2

	m := newTestManager(syncer, lister, &fakeMappings{}, kv, s)
	m.RunOnce(context.Background())

	if lister.lastLimit != 2 {
		t.Fatalf("limit passed to scan = %d, want 2", lister.lastLimit)
	}
	if len(syncer.created) != 2 {
		t.Fatalf("created = %v", syncer.created)
	}
	// The next cycle picks up where the batch stopped.
	m.RunOnce(context.Background())
	if len(syncer.created) != 4 || syncer.created[2] != 3 {
		t.Fatalf("second batch wrong: %v", syncer.created)
	}
}

func TestRunOnceRechecksMappedBookings(t *testing.T) {
	syncer := &fakeSyncer{}
	kv := newFakeKV()
	mappings := &fakeMappings{recent: []uint{7, 8, 9}}
	s := testSettings()
	s.RecheckLimit = 2

	m := newTestManager(syncer, &fakeLister{}, mappings, kv, s)
	m.RunOnce(context.Background())

	if len(syncer.rechecks) != 2 {
		t.Fatalf("rechecks = %v", syncer.rechecks)
	}
}

func TestRunOnceSkipsWithoutAPIKey(t *testing.T) {
	syncer := &fakeSyncer{}
	lister := &fakeLister{ids: []uint{1}}
	s := testSettings()
	s.APIKey = ""

	m := newTestManager(syncer, lister, &fakeMappings{recent: []uint{1}}, newFakeKV(), s)
	m.RunOnce(context.Background())

	if len(syncer.created) != 0 || len(syncer.rechecks) != 0 {
		t.Fatal("no work expected without an API key")
	}
}

func TestRunOnceToleratesGarbageWatermark(t *testing.T) {
	syncer := &fakeSyncer{}
	lister := &fakeLister{ids: []uint{1}}
	kv := newFakeKV()
	kv.values[models.SettingLastProcessedID] = "not-a-number"

	m := newTestManager(syncer, lister, &fakeMappings{}, kv, testSettings())
	m.RunOnce(context.Background())

	if len(syncer.created) != 1 {
		t.Fatalf("created = %v", syncer.created)
	}
	if got := kv.values[models.SettingLastProcessedID]; got != strconv.Itoa(1) {
		t.Fatalf("watermark = %q", got)
	}
}

func TestStartStop(t *testing.T) {
	m := newTestManager(&fakeSyncer{}, &fakeLister{}, &fakeMappings{}, newFakeKV(), testSettings())

	m.Start()
	m.Start() // second start is a no-op
	m.Stop()
	m.Stop() // second stop is a no-op

	// Restart works after a full stop.
	m.Start()
	m.Stop()
}
