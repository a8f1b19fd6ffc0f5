package payroll

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRuleConflict            = errors.New("conflicting salary rules")
	ErrUnknownCurrency         = errors.New("currency missing from exchange rate table")
	ErrReportNotFound          = errors.New("salary report not found")
	ErrLineItemNotFound        = errors.New("salary line item not found")
	ErrReportLocked            = errors.New("another salary operation is running for this business")
	ErrInvalidPeriod           = errors.New("invalid salary report period")
	ErrWorkingHoursNotFound    = errors.New("business working hours not configured")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrMissingBusinessClaim    = errors.New("business_id claim is missing or invalid")
)

// RuleConflictError names the post/category (and weekday when known) whose rules overlap.
type RuleConflictError struct {
	PostID     string
	CategoryID string
	// Weekday is nil when two unrestricted rules collide.
	Weekday *time.Weekday
}

func (e *RuleConflictError) Error() string {
	if e.Weekday == nil {
		return fmt.Sprintf("more than one salary rule applies to post %s and category %s", e.PostID, e.CategoryID)
	}
	return fmt.Sprintf("more than one salary rule applies to post %s and category %s on %s", e.PostID, e.CategoryID, e.Weekday.String())
}

func (e *RuleConflictError) Is(target error) bool {
	return target == ErrRuleConflict
}

// Details returns the conflict as response details.
func (e *RuleConflictError) Details() map[string]string {
	details := map[string]string{
		"post_id":     e.PostID,
		"category_id": e.CategoryID,
	}
	if e.Weekday != nil {
		details["weekday"] = e.Weekday.String()
	}
	return details
}

// UnknownCurrencyError lists the currencies absent from the rate table.
type UnknownCurrencyError struct {
	Codes []string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("no exchange rate for %v", e.Codes)
}

func (e *UnknownCurrencyError) Is(target error) bool {
	return target == ErrUnknownCurrency
}
