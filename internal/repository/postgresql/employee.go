package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const selectPersonQuery = `
	SELECT p.id, p.business_id, p.user_id, p.full_name,
		   p.post_id, COALESCE(po.name, ''), p.category_id, COALESCE(pc.name, '')
	FROM persons p
	LEFT JOIN posts po ON po.id = p.post_id
	LEFT JOIN person_categories pc ON pc.id = p.category_id
`

func scanPerson(row pgx.Row) (employee.Person, error) {
	var p employee.Person
	err := row.Scan(&p.ID, &p.BusinessID, &p.UserID, &p.FullName, &p.PostID, &p.PostName, &p.CategoryID, &p.CategoryName)
	return p, err
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string, businessID string) (employee.Person, error) {
	q := GetQuerier(ctx, e.db)

	query := selectPersonQuery + ` WHERE p.id = $1 AND p.business_id = $2 AND p.deleted_at IS NULL`

	p, err := scanPerson(q.QueryRow(ctx, query, id, businessID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return employee.Person{}, employee.ErrEmployeeNotFound
		}
		return employee.Person{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	return p, nil
}

// GetActiveByBusinessID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetActiveByBusinessID(ctx context.Context, businessID string) ([]employee.Person, error) {
	q := GetQuerier(ctx, e.db)

	query := selectPersonQuery + `
		WHERE p.business_id = $1 AND p.is_active = TRUE AND p.deleted_at IS NULL
		ORDER BY p.full_name, p.id
	`

	rows, err := q.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var persons []employee.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return persons, nil
}
