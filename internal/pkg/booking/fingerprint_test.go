package booking

import "testing"

func basePayload() *Payload {
	return &Payload{
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "a@b.com",
		CustomerPhone:     "0123456789",
		CustomerNote:      "please be on time",
		ServiceName:       "Haircut",
		AppointmentDate:   "2024-05-01",
		AppointmentTime:   "10:00",
		Status:            "1",
		InternalNote:      "regular",
		Address1:          "1 Main St",
		Postcode:          "SW1A 1AA",
		BookingID:         42,
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	p := basePayload()
	if Fingerprint(p) != Fingerprint(basePayload()) {
		t.Fatal("identical payloads must fingerprint identically")
	}
	if len(Fingerprint(p)) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", Fingerprint(p))
	}
}

func TestFingerprintIgnoresNonTrackedFields(t *testing.T) {
	base := Fingerprint(basePayload())

	p := basePayload()
	p.CustomerPhone = "999"
	p.Address1 = "elsewhere"
	p.Postcode = "EC1A 1BB"
	p.City = "London"
	p.Country = "UK"
	p.CustomerFirstName = "Augusta"
	p.CustomerLastName = "King"
	p.BookingID = 7
	p.EntryID = 99

	if Fingerprint(p) != base {
		t.Fatal("fields outside the tracked set must not affect the fingerprint")
	}
}

func TestFingerprintSensitiveToTrackedFields(t *testing.T) {
	base := Fingerprint(basePayload())

	mutations := map[string]func(*Payload){
		"email":         func(p *Payload) { p.CustomerEmail = "x@y.com" },
		"service":       func(p *Payload) { p.ServiceName = "Shave" },
		"date":          func(p *Payload) { p.AppointmentDate = "2024-05-02" },
		"time":          func(p *Payload) { p.AppointmentTime = "11:00" },
		"status":        func(p *Payload) { p.Status = "3" },
		"customer note": func(p *Payload) { p.CustomerNote = "changed" },
		"internal note": func(p *Payload) { p.InternalNote = "changed" },
	}

	for name, mutate := range mutations {
		p := basePayload()
		mutate(p)
		if Fingerprint(p) == base {
			t.Fatalf("changing %s must change the fingerprint", name)
		}
	}
}

func TestFingerprintFieldShiftDoesNotCollide(t *testing.T) {
	// The delimiter must keep adjacent fields from bleeding into each other.
	p1 := basePayload()
	p1.ServiceName = "AB"
	p1.AppointmentDate = "C"
	p2 := basePayload()
	p2.ServiceName = "A"
	p2.AppointmentDate = "BC"

	if Fingerprint(p1) == Fingerprint(p2) {
		t.Fatal("field boundary shift must not collide")
	}
}
