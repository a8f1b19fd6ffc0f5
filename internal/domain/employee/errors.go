package employee

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrNoActiveEmployee = errors.New("business has no active employees")
)
