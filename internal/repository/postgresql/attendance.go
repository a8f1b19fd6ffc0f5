package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

// ListByRange implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByRange(ctx context.Context, businessID string, from, to time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, person_id, type, created_at
		FROM attendance_records
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY person_id, created_at, id
	`

	rows, err := q.Query(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		var rawType string
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rawType, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		rec.Type, err = attendance.ParseRecordType(rawType)
		if err != nil {
			return nil, fmt.Errorf("attendance record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}

	return records, nil
}
