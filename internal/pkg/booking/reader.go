package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
	"github.com/meridianmedia/bookingsync/internal/pkg/source"
)

// ErrNotFound means the booking table, its primary-key column, or the row
// itself could not be resolved. Callers treat this as "retry discovery
// once, then give up", never as a hard failure.
var ErrNotFound = errors.New("booking not found")

// PrimaryKeyCandidates are tried in order against the booking table's
// column set; the order prefers the newest schema convention.
var PrimaryKeyCandidates = []string{
	"bookingpress_appointment_booking_id",
	"id",
	"booking_id",
	"appointment_id",
}

// appointmentIDCandidates map an appointment id back to the booking PK
// when a trigger hands us the appointment id instead of the booking id.
var appointmentIDCandidates = []string{
	"bookingpress_appointment_id",
	"appointment_id",
}

// Per-field ordered candidate column lists. The plugin renamed nearly
// every column between releases; later entries are the legacy spellings.
var fieldCandidates = map[string][]string{
	"first_name":    {"bookingpress_customer_firstname", "customer_first_name"},
	"last_name":     {"bookingpress_customer_lastname", "customer_last_name"},
	"email":         {"bookingpress_customer_email", "customer_email"},
	"phone":         {"bookingpress_customer_phone", "customer_phone"},
	"customer_note": {"bookingpress_customer_note", "customer_note"},
	"service":       {"bookingpress_service_name", "service_name"},
	"date":          {"bookingpress_appointment_date", "appointment_date"},
	"time":          {"bookingpress_appointment_time", "appointment_time"},
	"status":        {"bookingpress_appointment_status", "appointment_status"},
	"internal_note": {"bookingpress_appointment_internal_note", "appointment_internal_note"},
	"country":       {"bookingpress_customer_country", "customer_country", "country"},

	"appointment_id": {"bookingpress_appointment_id", "appointment_id"},
	"customer_id":    {"bookingpress_customer_id", "customer_id"},
	"entry_id":       {"bookingpress_entry_id", "entry_id"},
}

// metaTablePattern locates the auxiliary key-value meta table
const metaTablePattern = "%bookingpress_appointment_meta%"

// Reader fetches and normalizes one booking from the discovered schema
type Reader struct {
	src source.Source
}

// NewReader creates a booking reader over a tabular data source
func NewReader(src source.Source) *Reader {
	return &Reader{src: src}
}

// Read fetches booking id through the given schema map and normalizes it
// into a Payload. Returns ErrNotFound when the table, the primary-key
// column, or the row cannot be resolved.
func (r *Reader) Read(id uint, m schema.Map) (*Payload, error) {
	if m.BookingTable == "" {
		return nil, fmt.Errorf("no booking table in schema map: %w", ErrNotFound)
	}

	cols, err := r.src.ListColumns(m.BookingTable)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", m.BookingTable, err)
	}
	colset := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colset[c] = struct{}{}
	}

	pk := pickColumn(colset, PrimaryKeyCandidates)
	if pk == "" {
		log.Debugf("[Booking] No primary id column on %s, cols=%s", m.BookingTable, strings.Join(cols, ","))
		return nil, fmt.Errorf("no primary id column on %s: %w", m.BookingTable, ErrNotFound)
	}

	row, err := r.src.QueryRowByID(m.BookingTable, pk, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		// The trigger may have handed us an appointment id; map it back
		// to the booking PK before declaring a miss.
		row, err = r.resolveByAppointmentID(m.BookingTable, pk, colset, id)
		if err != nil {
			return nil, err
		}
	}
	if row == nil {
		return nil, fmt.Errorf("no row in %s for %s=%d: %w", m.BookingTable, pk, id, ErrNotFound)
	}

	p := &Payload{
		CustomerFirstName: pickField(row, colset, "first_name"),
		CustomerLastName:  pickField(row, colset, "last_name"),
		CustomerEmail:     pickField(row, colset, "email"),
		CustomerPhone:     pickField(row, colset, "phone"),
		CustomerNote:      pickField(row, colset, "customer_note"),
		ServiceName:       pickField(row, colset, "service"),
		AppointmentDate:   pickField(row, colset, "date"),
		AppointmentTime:   pickField(row, colset, "time"),
		Status:            pickField(row, colset, "status"),
		InternalNote:      pickField(row, colset, "internal_note"),
		Country:           pickField(row, colset, "country"),

		BookingID:     parseID(row[pk], id),
		AppointmentID: parseID(pickField(row, colset, "appointment_id"), 0),
		CustomerID:    parseID(pickField(row, colset, "customer_id"), 0),
		EntryID:       parseID(pickField(row, colset, "entry_id"), 0),
	}

	r.hydrateAddress(p)
	return p, nil
}

// ListIDsAbove returns up to limit booking ids above the watermark,
// ascending, for the poller's new-booking scan.
func (r *Reader) ListIDsAbove(m schema.Map, watermark uint, limit int) ([]uint, error) {
	if m.BookingTable == "" {
		return nil, fmt.Errorf("no booking table in schema map: %w", ErrNotFound)
	}
	cols, err := r.src.ListColumns(m.BookingTable)
	if err != nil {
		return nil, err
	}
	colset := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colset[c] = struct{}{}
	}
	pk := pickColumn(colset, PrimaryKeyCandidates)
	if pk == "" {
		return nil, fmt.Errorf("no primary id column on %s: %w", m.BookingTable, ErrNotFound)
	}
	return r.src.QueryIDsGreaterThan(m.BookingTable, pk, watermark, limit)
}

func (r *Reader) resolveByAppointmentID(table, pk string, colset map[string]struct{}, id uint) (source.Row, error) {
	for _, col := range appointmentIDCandidates {
		if col == pk {
			continue
		}
		if _, ok := colset[col]; !ok {
			continue
		}
		raw, err := r.src.QueryValue(table, pk, source.Cond{Column: col, Value: id})
		if err != nil {
			return nil, err
		}
		bookingID := parseID(raw, 0)
		if bookingID == 0 {
			continue
		}
		log.Debugf("[Booking] Resolved %s=%d to booking id %d via %s", col, id, bookingID, col)
		return r.src.QueryRowByID(table, pk, bookingID)
	}
	return nil, nil
}

// hydrateAddress fills missing address fields from the appointment meta
// table's form-fields blob. Best-effort: any miss leaves the payload as-is.
func (r *Reader) hydrateAddress(p *Payload) {
	if p.EntryID == 0 {
		log.Debugf("[Booking] Address hydrate: no entry id on booking %d", p.BookingID)
		return
	}

	tables, err := r.src.ListTablesMatching(metaTablePattern)
	if err != nil || len(tables) == 0 {
		log.Debugf("[Booking] Address hydrate: meta table not found (err=%v)", err)
		return
	}

	blob, err := r.src.QueryValue(tables[0], "bookingpress_appointment_meta_value",
		source.Cond{Column: "bookingpress_entry_id", Value: p.EntryID},
		source.Cond{Column: "bookingpress_appointment_meta_key", Value: MetaFormFieldsKey},
	)
	if err != nil || strings.TrimSpace(blob) == "" {
		log.Debugf("[Booking] Address hydrate: no form fields for entry %d (err=%v)", p.EntryID, err)
		return
	}

	address1, postcode := ExtractAddress(blob)
	if address1 != "" && strings.TrimSpace(p.Address1) == "" {
		p.Address1 = address1
	}
	if postcode != "" && strings.TrimSpace(p.Postcode) == "" {
		p.Postcode = postcode
	}
}

func pickColumn(colset map[string]struct{}, candidates []string) string {
	for _, c := range candidates {
		if _, ok := colset[c]; ok {
			return c
		}
	}
	return ""
}

func pickField(row source.Row, colset map[string]struct{}, field string) string {
	for _, c := range fieldCandidates[field] {
		if _, ok := colset[c]; !ok {
			continue
		}
		if v, ok := row[c]; ok && v != "" {
			return v
		}
	}
	return ""
}

func parseID(raw string, def uint) uint {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return def
	}
	return uint(n)
}
