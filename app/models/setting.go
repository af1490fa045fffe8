package models

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents one persisted sync setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys recognized by the sync core. The schema map cache and the
// poll watermark live in the same table but are machine-owned and read
// through the repository, not through SyncSettings.
const (
	SettingAPIKey             = "lacrm_api_key"
	SettingEventTitleTemplate = "event_title_template"
	SettingAddNote            = "add_note"
	SettingDeleteOnCancel     = "delete_on_cancel"
	SettingDebug              = "debug"
	SettingCancelledStatuses  = "cancelled_statuses"
	SettingPollBatchLimit     = "poll_batch_limit"
	SettingRecheckLimit       = "recheck_limit"
	SettingSchemaMap          = "schema_map"
	SettingLastProcessedID    = "last_processed_id"
)

const (
	DefaultEventTitleTemplate = "{service} booking"
	DefaultCancelledStatuses  = "3,cancelled,canceled,rejected"
	DefaultPollBatchLimit     = 50
	DefaultRecheckLimit       = 500

	MinPollBatchLimit = 1
	MaxPollBatchLimit = 500
	MinRecheckLimit   = 1
	MaxRecheckLimit   = 2000
)

// SyncSettings is the operator-owned sync configuration loaded into memory
type SyncSettings struct {
	APIKey             string `json:"lacrm_api_key"`
	EventTitleTemplate string `json:"event_title_template" validate:"required,max=255"`
	AddNote            bool   `json:"add_note"`
	DeleteOnCancel     bool   `json:"delete_on_cancel"`
	Debug              bool   `json:"debug"`
	CancelledStatuses  string `json:"cancelled_statuses" validate:"required"`
	PollBatchLimit     int    `json:"poll_batch_limit" validate:"min=1,max=500"`
	RecheckLimit       int    `json:"recheck_limit" validate:"min=1,max=2000"`
	mu                 sync.RWMutex
}

// Global settings instance
var (
	syncSettings *SyncSettings
	settingsMu   sync.RWMutex
)

// GetSyncSettings returns the current sync settings
func GetSyncSettings() *SyncSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return syncSettings
}

// DefaultSyncSettings returns the settings applied on a fresh install
func DefaultSyncSettings() *SyncSettings {
	return &SyncSettings{
		APIKey:             "",
		EventTitleTemplate: DefaultEventTitleTemplate,
		AddNote:            true,
		DeleteOnCancel:     true,
		Debug:              false,
		CancelledStatuses:  DefaultCancelledStatuses,
		PollBatchLimit:     DefaultPollBatchLimit,
		RecheckLimit:       DefaultRecheckLimit,
	}
}

// LoadSyncSettings loads settings from the database into memory, seeding
// missing keys with defaults so operators have rows to edit.
func LoadSyncSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	loaded := DefaultSyncSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	present := make(map[string]struct{}, len(settings))
	for _, setting := range settings {
		present[setting.Key] = struct{}{}
		switch setting.Key {
		case SettingAPIKey:
			loaded.APIKey = strings.TrimSpace(setting.Value)
		case SettingEventTitleTemplate:
			if setting.Value != "" {
				loaded.EventTitleTemplate = setting.Value
			}
		case SettingAddNote:
			loaded.AddNote = parseBoolSetting(setting.Value, true)
		case SettingDeleteOnCancel:
			loaded.DeleteOnCancel = parseBoolSetting(setting.Value, true)
		case SettingDebug:
			loaded.Debug = parseBoolSetting(setting.Value, false)
		case SettingCancelledStatuses:
			if strings.TrimSpace(setting.Value) != "" {
				loaded.CancelledStatuses = setting.Value
			}
		case SettingPollBatchLimit:
			loaded.PollBatchLimit = clampIntSetting(setting.Value, DefaultPollBatchLimit, MinPollBatchLimit, MaxPollBatchLimit)
		case SettingRecheckLimit:
			loaded.RecheckLimit = clampIntSetting(setting.Value, DefaultRecheckLimit, MinRecheckLimit, MaxRecheckLimit)
		}
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}

	if err := seedMissingSettings(db, present); err != nil {
		return err
	}

	syncSettings = loaded
	return nil
}

// seedMissingSettings creates default rows for keys that do not exist yet
func seedMissingSettings(db *gorm.DB, present map[string]struct{}) error {
	defaults := []Setting{
		{Key: SettingAPIKey, Value: "", Type: "string"},
		{Key: SettingEventTitleTemplate, Value: DefaultEventTitleTemplate, Type: "string"},
		{Key: SettingAddNote, Value: "true", Type: "boolean"},
		{Key: SettingDeleteOnCancel, Value: "true", Type: "boolean"},
		{Key: SettingDebug, Value: "false", Type: "boolean"},
		{Key: SettingCancelledStatuses, Value: DefaultCancelledStatuses, Type: "string"},
		{Key: SettingPollBatchLimit, Value: strconv.Itoa(DefaultPollBatchLimit), Type: "integer"},
		{Key: SettingRecheckLimit, Value: strconv.Itoa(DefaultRecheckLimit), Type: "integer"},
	}

	for _, def := range defaults {
		if _, ok := present[def.Key]; ok {
			continue
		}
		setting := def
		if err := db.Create(&setting).Error; err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", def.Key, err)
		}
	}
	return nil
}

func parseBoolSetting(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func clampIntSetting(value string, def, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// Validate validates the settings
func (s *SyncSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// GetAPIKey returns the configured CRM API key
func (s *SyncSettings) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// GetEventTitleTemplate returns the event title template
func (s *SyncSettings) GetEventTitleTemplate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EventTitleTemplate
}

// IsAddNoteEnabled returns whether a booking summary note is attached
func (s *SyncSettings) IsAddNoteEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AddNote
}

// IsDeleteOnCancelEnabled returns whether events are deleted on cancellation
func (s *SyncSettings) IsDeleteOnCancelEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DeleteOnCancel
}

// IsDebugEnabled returns whether verbose payload logging is enabled
func (s *SyncSettings) IsDebugEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Debug
}

// GetPollBatchLimit returns the clamped watermark scan batch size
func (s *SyncSettings) GetPollBatchLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PollBatchLimit
}

// GetRecheckLimit returns the clamped mapped-booking recheck batch size
func (s *SyncSettings) GetRecheckLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RecheckLimit
}

// IsCancelledStatus reports whether a raw source status value is in the
// configured cancelled set. The set is comma-separated and may mix
// numeric codes and string tokens; matching is case-insensitive on the
// trimmed value.
func (s *SyncSettings) IsCancelledStatus(status string) bool {
	s.mu.RLock()
	raw := s.CancelledStatuses
	s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(status))
	if needle == "" {
		return false
	}
	for _, token := range strings.Split(raw, ",") {
		if strings.ToLower(strings.TrimSpace(token)) == needle {
			return true
		}
	}
	return false
}
