package schema

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/internal/pkg/source"
)

// Map holds the resolved source table names. Empty string means the role
// was not discovered; callers must tolerate partial maps.
type Map struct {
	BookingTable  string `json:"booking_table"`
	CustomerTable string `json:"customer_table"`
	ServiceTable  string `json:"service_table"`
}

// IsEmpty reports whether no role was discovered at all
func (m Map) IsEmpty() bool {
	return m.BookingTable == "" && m.CustomerTable == "" && m.ServiceTable == ""
}

// Discover classifies the plugin's tables by column-name scoring. Roles
// are filled in fixed priority order (booking, customer, service); a
// table claims only the first unclaimed role it qualifies for, and a
// claimed role is never reassigned. Discovery never fails: an unreadable
// table is skipped and an empty map is a valid result.
func Discover(src source.Source) Map {
	var m Map

	tables, err := src.ListTablesMatching(TablePattern)
	if err != nil {
		log.Errorf("[Schema] Listing tables failed: %v", err)
		return m
	}
	if len(tables) == 0 {
		log.Infof("[Schema] No tables matching %s", TablePattern)
		return m
	}

	for _, table := range tables {
		cols, err := src.ListColumns(table)
		if err != nil {
			log.Errorf("[Schema] Listing columns of %s failed: %v", table, err)
			continue
		}
		if len(cols) == 0 {
			continue
		}

		colset := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			colset[c] = struct{}{}
		}

		switch {
		case m.BookingTable == "" && scoreColumns(colset, BookingRules) >= BookingScoreThreshold:
			m.BookingTable = table
		case m.CustomerTable == "" && scoreColumns(colset, CustomerRules) > CustomerScoreThreshold:
			m.CustomerTable = table
		case m.ServiceTable == "" && scoreColumns(colset, ServiceRules) > ServiceScoreThreshold:
			m.ServiceTable = table
		}
	}

	log.Infof("[Schema] Discovered tables: booking=%q customer=%q service=%q",
		m.BookingTable, m.CustomerTable, m.ServiceTable)
	return m
}

// KV is the single-key settings surface the cache persists through
type KV interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Cache persists the discovered map in configuration so reads don't
// rescan the schema. Rediscovery rewrites the cached value wholesale; a
// concurrent rediscovery is benign (worst case a redundant scan).
type Cache struct {
	src source.Source
	kv  KV
}

// NewCache creates a schema cache over a source and a settings store
func NewCache(src source.Source, kv KV) *Cache {
	return &Cache{src: src, kv: kv}
}

// Get returns the cached map, discovering and caching on miss. With
// forced set the cache is bypassed and rewritten.
func (c *Cache) Get(forced bool) Map {
	if !forced {
		raw, err := c.kv.GetValue(models.SettingSchemaMap)
		if err != nil {
			log.Errorf("[Schema] Reading cached map failed: %v", err)
		} else if strings.TrimSpace(raw) != "" {
			var m Map
			if err := json.Unmarshal([]byte(raw), &m); err == nil && m.BookingTable != "" {
				return m
			}
		}
	}

	m := Discover(c.src)

	data, err := json.Marshal(m)
	if err == nil {
		if err := c.kv.SetValue(models.SettingSchemaMap, string(data)); err != nil {
			log.Errorf("[Schema] Caching map failed: %v", err)
		}
	}
	return m
}
