package payroll

import (
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// WorkingHours - business opening configuration used to frame a working day
type WorkingHours struct {
	EnforceOpenClose bool
	StartHour        int
	EndHour          int
	Timezone         string
}

// Location resolves the business timezone, falling back to UTC.
func (w WorkingHours) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Reference enum
type Reference string

const (
	ReferenceTotalSales   Reference = "totalSales"
	ReferenceSalesInPos   Reference = "salesInPos"
	ReferenceManageOrders Reference = "manageOrders"
	ReferenceServeOrders  Reference = "serveOrders"
)

// Counting enum
type Counting string

const (
	CountingCycles Counting = "cycles"
	CountingDays   Counting = "days"
	CountingUnique Counting = "unique"
)

// TipMode enum
type TipMode string

const (
	TipModeEquivalent TipMode = "equivalent"
	TipModePercent    TipMode = "percent"
	TipModeFixed      TipMode = "fixed"
)

// SalaryRule - compensation policy scoped to (business, post, category)
type SalaryRule struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	PostID     string `json:"post_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required"`

	IsFixedSalary     bool            `json:"is_fixed_salary"`
	AmountFixedSalary decimal.Decimal `json:"amount_fixed_salary"`
	ReferencePercent  decimal.Decimal `json:"reference_percent"`
	Reference         Reference       `json:"reference" validate:"omitempty,oneof=totalSales salesInPos manageOrders serveOrders"`
	Counting          Counting        `json:"counting" validate:"required,oneof=cycles days unique"`

	IncludeTips bool            `json:"include_tips"`
	ModeTips    TipMode         `json:"mode_tips" validate:"omitempty,oneof=equivalent percent fixed"`
	AmountTip   decimal.Decimal `json:"amount_tip"`

	IncludeRechargeInSpecialHours bool            `json:"include_recharge_in_special_hours"`
	SpecialHours                  []int           `json:"special_hours" validate:"dive,min=0,max=23"`
	AmountSpecialHours            decimal.Decimal `json:"amount_special_hours"`

	PercentAmountToIncrement decimal.Decimal `json:"percent_amount_to_increment"`
	PercentAmountToDecrement decimal.Decimal `json:"percent_amount_to_decrement"`

	RestrictionsByDays bool  `json:"restrictions_by_days"`
	RestrictedDays     []int `json:"restricted_days" validate:"dive,min=0,max=6"`
}

// AppliesOn reports whether a day-restricted rule covers the weekday.
func (r SalaryRule) AppliesOn(day time.Weekday) bool {
	for _, d := range r.RestrictedDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// IsSpecialHour reports whether hour is one of the surcharge hours.
func (r SalaryRule) IsSpecialHour(hour int) bool {
	for _, h := range r.SpecialHours {
		if h == hour {
			return true
		}
	}
	return false
}

// CycleTotals - per-cycle aggregates computed by the POS when the cycle closes
type CycleTotals struct {
	TotalSales   []money.Amount
	TotalIncomes []money.Amount
	TotalTips    []money.Amount
}

// EconomicCycle - a bounded operating session sales and tips are aggregated against
type EconomicCycle struct {
	ID       string
	StartsAt time.Time
	// EndsAt is nil while the cycle is still open.
	EndsAt *time.Time
	Totals CycleTotals
}

// OrderStatus enum
type OrderStatus string

const (
	OrderStatusBilled OrderStatus = "BILLED"
)

// ProductionTicket - kitchen/bar ticket of an order
type ProductionTicket struct {
	ID           string
	PreparedByID *string
}

// Order - billed sale of an economic cycle
type Order struct {
	ID                string
	EconomicCycleID   string
	Status            OrderStatus
	HouseCosted       bool
	SalesByID         *string
	ManagedByID       *string
	Prices            []money.Amount
	ProductionTickets []ProductionTicket
}

// Attributable reports whether the order takes part in revenue attribution.
func (o Order) Attributable() bool {
	return o.Status == OrderStatusBilled && !o.HouseCosted
}

// ReportParams - requested report bounds
type ReportParams struct {
	Name         string
	StartsAt     time.Time
	EndsAt       time.Time
	CodeCurrency string
}

// Snapshot - every input of one report generation, fetched once up front
type Snapshot struct {
	BusinessID   string
	WorkingHours WorkingHours
	Employees    []employee.Person
	Attendance   []attendance.Record
	Orders       []Order
	Cycles       []EconomicCycle
	Rules        []SalaryRule
	// SkippedRules failed validation and take no part in resolution.
	SkippedRules []SkippedRule
	// Rates maps currency code to its rate into the reporting currency.
	Rates map[string]decimal.Decimal
}

// SkippedRule is a stored salary rule left out of a generation.
type SkippedRule struct {
	Rule   SalaryRule
	Reason string
}

// SliceKind enum
type SliceKind string

const (
	SliceKindCycle  SliceKind = "cycle"
	SliceKindDay    SliceKind = "day"
	SliceKindUnique SliceKind = "unique"
)

// SliceResult - computed pay for one slice of one employee
type SliceResult struct {
	Kind             SliceKind      `json:"kind"`
	StartsAt         time.Time      `json:"starts_at"`
	EndsAt           time.Time      `json:"ends_at"`
	RuleID           string         `json:"rule_id"`
	EconomicCycleIDs []string       `json:"economic_cycle_ids"`
	Entries          int            `json:"entries"`
	Exits            int            `json:"exits"`
	HoursWorked      int            `json:"hours_worked"`
	SalesInPos       []money.Amount `json:"sales_in_pos"`
	ManageOrders     []money.Amount `json:"manage_orders"`
	ServeOrders      []money.Amount `json:"serve_orders"`
	TotalSales       []money.Amount `json:"total_sales"`
	TipPool          []money.Amount `json:"tip_pool"`

	ReferenceAmount decimal.Decimal `json:"reference_amount"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	SpecialHours    decimal.Decimal `json:"special_hours"`
	PlusAmount      decimal.Decimal `json:"plus_amount"`
	Tips            decimal.Decimal `json:"tips"`
	RealToPay       decimal.Decimal `json:"real_to_pay"`
}

// LineBreakdown - opaque per-slice payload persisted with each line item
type LineBreakdown struct {
	Slices               []SliceResult  `json:"slices"`
	Entries              int            `json:"entries"`
	Exits                int            `json:"exits"`
	HoursWorked          int            `json:"hours_worked"`
	EconomicCyclesWorked []string       `json:"economic_cycles_worked,omitempty"`
	DaysWorked           []string       `json:"days_worked,omitempty"`
	SalesInPos           []money.Amount `json:"sales_in_pos"`
	ManageOrders         []money.Amount `json:"manage_orders"`
	ServeOrders          []money.Amount `json:"serve_orders"`
	TotalSales           []money.Amount `json:"total_sales"`
}

// SalaryLineItem - one row per employee per report
type SalaryLineItem struct {
	ID           string
	ReportID     string
	PersonID     string
	PersonName   string
	PostID       string
	CategoryID   string
	RuleIDs      []string
	BaseAmount   decimal.Decimal
	SpecialHours decimal.Decimal
	PlusAmount   decimal.Decimal
	Tips         decimal.Decimal
	TotalToPay   decimal.Decimal
	Observations []string
	Breakdown    LineBreakdown
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReportStatus enum
type ReportStatus string

const (
	ReportStatusCreated ReportStatus = "CREATED"
)

// SalaryReport - engine output, persisted verbatim
type SalaryReport struct {
	ID           string
	BusinessID   string
	Name         string
	StartsAt     time.Time
	EndsAt       time.Time
	CodeCurrency string
	Status       ReportStatus
	Items        []SalaryLineItem
	TotalToPay   decimal.Decimal
	TotalTips    decimal.Decimal
	TotalSales   decimal.Decimal
	TotalIncomes decimal.Decimal
	CreatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
