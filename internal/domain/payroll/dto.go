package payroll

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== REPORT GENERATION DTOs ==========

type GenerateSalaryReportRequest struct {
	Name         string `json:"name" validate:"max=255"`
	StartsAt     string `json:"starts_at" validate:"required"`
	EndsAt       string `json:"ends_at" validate:"required"`
	CodeCurrency string `json:"code_currency" validate:"required,len=3"`
}

// Validate checks the request and returns the parsed report parameters. Plain dates are
// interpreted in loc; an end date without time covers the whole day.
func (r *GenerateSalaryReportRequest) Validate(loc *time.Location) (ReportParams, error) {
	r.CodeCurrency = money.NormalizeCode(r.CodeCurrency)
	errs := validator.Struct(r)

	var params ReportParams
	startsAt, okStart := validator.ParseDateOrDateTime(r.StartsAt, loc)
	if r.StartsAt != "" && !okStart {
		errs = append(errs, validator.ValidationError{Field: "starts_at", Message: "must be YYYY-MM-DD or RFC3339"})
	}
	endsAt, okEnd := validator.ParseDateOrDateTime(r.EndsAt, loc)
	if r.EndsAt != "" && !okEnd {
		errs = append(errs, validator.ValidationError{Field: "ends_at", Message: "must be YYYY-MM-DD or RFC3339"})
	}
	if okEnd {
		if _, isDate := validator.IsValidDate(r.EndsAt); isDate {
			endsAt = endsAt.AddDate(0, 0, 1)
		}
	}
	if okStart && okEnd && !endsAt.After(startsAt) {
		errs = append(errs, validator.ValidationError{Field: "ends_at", Message: "must be after starts_at"})
	}
	if r.CodeCurrency != "" && !validator.IsValidCurrencyCode(r.CodeCurrency) {
		errs = append(errs, validator.ValidationError{Field: "code_currency", Message: "must be an ISO 4217 code"})
	}

	if len(errs) > 0 {
		return params, errs
	}

	params = ReportParams{
		Name:         strings.TrimSpace(r.Name),
		StartsAt:     startsAt,
		EndsAt:       endsAt,
		CodeCurrency: r.CodeCurrency,
	}
	if params.Name == "" {
		params.Name = "Payroll " + startsAt.Format("2006-01-02") + " - " + endsAt.Add(-time.Second).Format("2006-01-02")
	}
	return params, nil
}

// ========== LINE ITEM DTOs ==========

type UpdateSalaryLineItemRequest struct {
	ReportID     string           `json:"-"`
	ID           string           `json:"-"`
	BaseAmount   *decimal.Decimal `json:"base_amount,omitempty"`
	SpecialHours *decimal.Decimal `json:"special_hours,omitempty"`
	PlusAmount   *decimal.Decimal `json:"plus_amount,omitempty"`
	Tips         *decimal.Decimal `json:"tips,omitempty"`
	Observations *[]string        `json:"observations,omitempty"`
}

func (r *UpdateSalaryLineItemRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.BaseAmount == nil && r.SpecialHours == nil && r.PlusAmount == nil && r.Tips == nil && r.Observations == nil {
		errs = append(errs, validator.ValidationError{Field: "request", Message: "at least one field must be provided"})
	}
	if r.BaseAmount != nil && r.BaseAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "base_amount", Message: "must be non-negative"})
	}
	if r.SpecialHours != nil && r.SpecialHours.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "special_hours", Message: "must be non-negative"})
	}
	if r.Tips != nil && r.Tips.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "tips", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Apply copies the provided fields onto item.
func (r *UpdateSalaryLineItemRequest) Apply(item *SalaryLineItem) {
	if r.BaseAmount != nil {
		item.BaseAmount = *r.BaseAmount
	}
	if r.SpecialHours != nil {
		item.SpecialHours = *r.SpecialHours
	}
	if r.PlusAmount != nil {
		item.PlusAmount = *r.PlusAmount
	}
	if r.Tips != nil {
		item.Tips = *r.Tips
	}
	if r.Observations != nil {
		item.Observations = *r.Observations
	}
}

// ValidateRule checks a salary rule record at the data-fetch boundary.
func ValidateRule(rule SalaryRule) error {
	errs := validator.Struct(rule)

	if !rule.IsFixedSalary && rule.Reference == "" {
		errs = append(errs, validator.ValidationError{Field: "reference", Message: "is required when salary is not fixed"})
	}
	if rule.IncludeTips && rule.ModeTips == "" {
		errs = append(errs, validator.ValidationError{Field: "mode_tips", Message: "is required when tips are included"})
	}
	if rule.RestrictionsByDays && len(rule.RestrictedDays) == 0 {
		errs = append(errs, validator.ValidationError{Field: "restricted_days", Message: "at least one day is required"})
	}
	for field, v := range map[string]decimal.Decimal{
		"amount_fixed_salary":         rule.AmountFixedSalary,
		"reference_percent":           rule.ReferencePercent,
		"amount_tip":                  rule.AmountTip,
		"amount_special_hours":        rule.AmountSpecialHours,
		"percent_amount_to_increment": rule.PercentAmountToIncrement,
		"percent_amount_to_decrement": rule.PercentAmountToDecrement,
	} {
		if v.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field, Message: "must be non-negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== RESPONSE DTOs ==========

type SalaryLineItemResponse struct {
	ID           string          `json:"id"`
	PersonID     string          `json:"person_id"`
	PersonName   string          `json:"person_name"`
	PostID       string          `json:"post_id"`
	CategoryID   string          `json:"category_id"`
	RuleIDs      []string        `json:"rule_ids"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	SpecialHours decimal.Decimal `json:"special_hours"`
	PlusAmount   decimal.Decimal `json:"plus_amount"`
	Tips         decimal.Decimal `json:"tips"`
	TotalToPay   decimal.Decimal `json:"total_to_pay"`
	Observations []string        `json:"observations"`
	Breakdown    *LineBreakdown  `json:"breakdown,omitempty"`
}

type SalaryReportResponse struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	StartsAt     string                   `json:"starts_at"`
	EndsAt       string                   `json:"ends_at"`
	CodeCurrency string                   `json:"code_currency"`
	Status       string                   `json:"status"`
	TotalToPay   decimal.Decimal          `json:"total_to_pay"`
	TotalTips    decimal.Decimal          `json:"total_tips"`
	TotalSales   decimal.Decimal          `json:"total_sales"`
	TotalIncomes decimal.Decimal          `json:"total_incomes"`
	Items        []SalaryLineItemResponse `json:"items,omitempty"`
	CreatedAt    string                   `json:"created_at"`
}

type SalaryReportFilter struct {
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	SortOrder string     `json:"sort_order"`
}

// Normalize applies paging defaults.
func (f *SalaryReportFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
}

type ListSalaryReportResponse struct {
	Data       []SalaryReportResponse `json:"data"`
	TotalCount int64                  `json:"total_count"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
}

// ExportFormat enum
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ExportFile - rendered report ready to be streamed
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
