package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines read access to attendance events.
// All methods include businessID parameter to prevent cross-business data access.
type AttendanceRepository interface {
	// ListByRange returns every record of the business with createdAt in [from, to),
	// ordered by person then time.
	ListByRange(ctx context.Context, businessID string, from, to time.Time) ([]Record, error)
}
