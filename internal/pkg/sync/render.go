package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridianmedia/bookingsync/internal/pkg/booking"
)

const (
	eventTimeLayout = "2006-01-02 15:04:05"
	// Bookings carry a start time but no duration column; events get a
	// fixed one-hour window.
	defaultEventDuration = time.Hour
)

// startLayouts are the date+time combinations seen in booking tables
var startLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
	"2006-01-02 3:04 PM",
}

// renderTitle expands the event title template. Unknown tokens pass
// through untouched.
func renderTitle(template string, p *booking.Payload) string {
	r := strings.NewReplacer(
		"{service}", p.ServiceName,
		"{date}", p.AppointmentDate,
		"{time}", p.AppointmentTime,
		"{name}", p.CustomerName(),
		"{email}", p.CustomerEmail,
	)
	return strings.TrimSpace(r.Replace(template))
}

// buildSummary renders the human-readable event description and note body
func buildSummary(p *booking.Payload) string {
	var b strings.Builder
	appendLine := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	appendLine("Service", p.ServiceName)
	appendLine("Date", p.AppointmentDate)
	appendLine("Time", p.AppointmentTime)
	appendLine("Customer", p.CustomerName())
	appendLine("Email", p.CustomerEmail)
	appendLine("Phone", p.CustomerPhone)
	appendLine("Customer note", p.CustomerNote)

	b.WriteString("Source: BookingPress Pro")
	return b.String()
}

// eventWindow derives the event start and end timestamps from the
// booking's date and time strings. When the combination does not parse,
// the raw strings are passed through unchanged so the event still lands
// on the CRM side for a human to fix.
func eventWindow(p *booking.Payload) (start, end string) {
	raw := strings.TrimSpace(strings.TrimSpace(p.AppointmentDate) + " " + strings.TrimSpace(p.AppointmentTime))
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(eventTimeLayout), t.Add(defaultEventDuration).Format(eventTimeLayout)
		}
	}
	return raw, raw
}
