package booking

import "strings"

// Payload is the normalized view of one source booking, reconstructed on
// every read. Email is the soft identity used for CRM contact matching;
// without it no CRM action is taken.
type Payload struct {
	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string
	CustomerPhone     string
	CustomerNote      string
	ServiceName       string
	AppointmentDate   string
	AppointmentTime   string
	Status            string
	InternalNote      string

	// Address fields, hydrated best-effort from meta storage
	Address1 string
	Address2 string
	City     string
	State    string
	Postcode string
	Country  string

	// Internal linkage ids used only for secondary lookups
	BookingID     uint
	AppointmentID uint
	CustomerID    uint
	EntryID       uint
}

// CustomerName returns the customer's full display name
func (p *Payload) CustomerName() string {
	return strings.TrimSpace(strings.TrimSpace(p.CustomerFirstName) + " " + strings.TrimSpace(p.CustomerLastName))
}

// HasEmail reports whether the payload carries the email required for any
// CRM action. Absence is a terminal skip, not an error.
func (p *Payload) HasEmail() bool {
	return strings.TrimSpace(p.CustomerEmail) != ""
}
