package sync

import (
	"strings"
	"testing"

	"github.com/meridianmedia/bookingsync/internal/pkg/booking"
)

func TestRenderTitle(t *testing.T) {
	p := &booking.Payload{
		ServiceName:       "Haircut",
		AppointmentDate:   "2024-05-01",
		AppointmentTime:   "10:00",
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "a@b.com",
	}

	tests := []struct {
		template string
		want     string
	}{
		{"{service} booking", "Haircut booking"},
		{"{name} / {service} on {date} at {time}", "Ada Lovelace / Haircut on 2024-05-01 at 10:00"},
		{"{email}", "a@b.com"},
		{"{unknown} stays", "{unknown} stays"},
	}
	for _, tt := range tests {
		if got := renderTitle(tt.template, p); got != tt.want {
			t.Fatalf("renderTitle(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestBuildSummary(t *testing.T) {
	p := &booking.Payload{
		ServiceName:       "Haircut",
		AppointmentDate:   "2024-05-01",
		AppointmentTime:   "10:00",
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "a@b.com",
		CustomerNote:      "please be gentle",
	}

	summary := buildSummary(p)

	for _, line := range []string{
		"Service: Haircut",
		"Date: 2024-05-01",
		"Time: 10:00",
		"Customer: Ada Lovelace",
		"Email: a@b.com",
		"Customer note: please be gentle",
	} {
		if !strings.Contains(summary, line) {
			t.Fatalf("summary missing %q:\n%s", line, summary)
		}
	}
	if !strings.HasSuffix(summary, "Source: BookingPress Pro") {
		t.Fatalf("summary must end with the source footer:\n%s", summary)
	}
	if strings.Contains(summary, "Phone:") {
		t.Fatal("empty fields must be omitted")
	}
}

func TestEventWindow(t *testing.T) {
	tests := []struct {
		date, tm  string
		wantStart string
		wantEnd   string
	}{
		{"2024-05-01", "10:00", "2024-05-01 10:00:00", "2024-05-01 11:00:00"},
		{"2024-05-01", "10:00:30", "2024-05-01 10:00:30", "2024-05-01 11:00:30"},
		{"2024-05-01", "02:30 PM", "2024-05-01 14:30:00", "2024-05-01 15:30:00"},
		// Unparseable values pass through so the event is still created.
		{"next tuesday", "morning", "next tuesday morning", "next tuesday morning"},
	}
	for _, tt := range tests {
		start, end := eventWindow(&booking.Payload{AppointmentDate: tt.date, AppointmentTime: tt.tm})
		if start != tt.wantStart || end != tt.wantEnd {
			t.Fatalf("eventWindow(%q, %q) = %q..%q, want %q..%q", tt.date, tt.tm, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}
