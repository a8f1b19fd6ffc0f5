package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/jwt"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var conflictErr *payroll.RuleConflictError
	if errors.As(err, &conflictErr) {
		writeError(w, http.StatusBadRequest, "RULE_CONFLICT", conflictErr.Error(), conflictErr.Details())
		return
	}

	var currencyErr *payroll.UnknownCurrencyError
	if errors.As(err, &currencyErr) {
		writeError(w, http.StatusBadRequest, "UNKNOWN_CURRENCY", currencyErr.Error(), map[string]string{
			"codes": strings.Join(currencyErr.Codes, ","),
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, payroll.ErrMissingBusinessClaim):
		Unauthorized(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrReportNotFound):
		NotFound(w, "Salary report not found")
	case errors.Is(err, payroll.ErrLineItemNotFound):
		NotFound(w, "Salary line item not found")
	case errors.Is(err, payroll.ErrReportLocked):
		Conflict(w, "Another salary operation is running for this business")
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrUnsupportedExportFormat):
		BadRequest(w, "Export format must be xlsx or pdf", nil)
	case errors.Is(err, payroll.ErrRuleConflict):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrUnknownCurrency):
		BadRequest(w, err.Error(), nil)

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
