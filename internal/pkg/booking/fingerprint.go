package booking

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintDelimiter separates fields in the hashed concatenation. The
// unit separator cannot appear in the source values (they come out of
// form inputs and MySQL text columns), so no escaping is needed.
const fingerprintDelimiter = "\x1f"

// Fingerprint computes the content hash used for change detection. It
// covers exactly the sync-relevant fields, in fixed order: email, service,
// date, time, status, customer note, internal note. Phone and address do
// not participate; changing only those never triggers a resync.
func Fingerprint(p *Payload) string {
	fields := []string{
		p.CustomerEmail,
		p.ServiceName,
		p.AppointmentDate,
		p.AppointmentTime,
		p.Status,
		p.CustomerNote,
		p.InternalNote,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, fingerprintDelimiter)))
	return hex.EncodeToString(sum[:])
}
