package schema

// The scheduling plugin renamed nearly every column between releases, so
// tables are classified by scoring sets of candidate column names instead
// of matching a fixed schema. Newest naming convention first, legacy names
// last. Kept as data so new spellings are a one-line addition.

// TablePattern matches the plugin's table naming convention
const TablePattern = "%bookingpress%"

// ScoreRule awards Weight once per candidate column present on a table
type ScoreRule struct {
	Columns []string
	Weight  int
}

// BookingRules identify the appointment bookings table
var BookingRules = []ScoreRule{
	{Columns: []string{"bookingpress_appointment_date", "appointment_date"}, Weight: 2},
	{Columns: []string{"bookingpress_appointment_time", "appointment_time"}, Weight: 2},
	{Columns: []string{"bookingpress_customer_email", "customer_email"}, Weight: 2},
	{Columns: []string{"bookingpress_appointment_booking_id", "bookingpress_entry_id", "bookingpress_customer_id", "id"}, Weight: 1},
}

// CustomerRules identify the standalone customers table of older variants
var CustomerRules = []ScoreRule{
	{Columns: []string{"bookingpress_user_email", "bookingpress_customer_email", "email"}, Weight: 3},
}

// ServiceRules identify the standalone services table of older variants
var ServiceRules = []ScoreRule{
	{Columns: []string{"bookingpress_service_name", "service_name", "name", "title"}, Weight: 2},
}

// Score thresholds a table must clear to claim a role
const (
	BookingScoreThreshold  = 4 // >=
	CustomerScoreThreshold = 4 // >
	ServiceScoreThreshold  = 2 // >
)

func scoreColumns(colset map[string]struct{}, rules []ScoreRule) int {
	score := 0
	for _, rule := range rules {
		for _, col := range rule.Columns {
			if _, ok := colset[col]; ok {
				score += rule.Weight
			}
		}
	}
	return score
}
