package employee

import "context"

// EmployeeRepository reads the employee directory of a business.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, businessID string) (Person, error)
	// GetActiveByBusinessID returns active employees ordered by full name.
	GetActiveByBusinessID(ctx context.Context, businessID string) ([]Person, error)
}
