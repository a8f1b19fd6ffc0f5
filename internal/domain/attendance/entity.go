package attendance

import (
	"time"
)

// RecordType is the direction of an attendance event.
type RecordType string

const (
	RecordTypeEntry RecordType = "ENTRY"
	RecordTypeExit  RecordType = "EXIT"
)

// Record is an immutable attendance event captured by a device or the POS.
type Record struct {
	ID        string
	PersonID  string
	Type      RecordType
	CreatedAt time.Time
}

// IsEntry reports whether the record opens a session.
func (r Record) IsEntry() bool {
	return r.Type == RecordTypeEntry
}
