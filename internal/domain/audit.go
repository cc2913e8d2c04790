package domain

import "time"

// AuditRecord is one append-only entry in the position change history.
// Records are written once per detected change event and never mutated.
type AuditRecord struct {
	Timestamp time.Time `json:"ts"`
	Iteration uint64    `json:"iteration"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}
