package attendance

import "errors"

// Attendance domain errors
var (
	ErrInvalidRecordType = errors.New("attendance record type must be ENTRY or EXIT")
)

// ParseRecordType validates a raw record type.
func ParseRecordType(raw string) (RecordType, error) {
	switch RecordType(raw) {
	case RecordTypeEntry, RecordTypeExit:
		return RecordType(raw), nil
	}
	return "", ErrInvalidRecordType
}
