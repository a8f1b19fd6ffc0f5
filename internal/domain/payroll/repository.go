package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PayrollRepository defines data access methods for salary computation inputs and reports.
// All methods include businessID parameter to prevent cross-business data access attacks.
type PayrollRepository interface {
	// Inputs
	GetWorkingHours(ctx context.Context, businessID string) (WorkingHours, error)
	ListSalaryRules(ctx context.Context, businessID string) ([]SalaryRule, error)
	// ListEconomicCycles returns cycles whose start falls in [from, to), with their aggregates.
	ListEconomicCycles(ctx context.Context, businessID string, from, to time.Time) ([]EconomicCycle, error)
	// ListBilledOrders returns billed, non house-costed orders of the given cycles.
	ListBilledOrders(ctx context.Context, businessID string, cycleIDs []string) ([]Order, error)
	GetExchangeRates(ctx context.Context, businessID string, reportingCurrency string) (map[string]decimal.Decimal, error)

	// Reports
	CreateReport(ctx context.Context, report SalaryReport) (SalaryReport, error)
	GetReportByID(ctx context.Context, id string, businessID string) (SalaryReport, error)
	ListReports(ctx context.Context, businessID string, filter SalaryReportFilter) ([]SalaryReport, int64, error)
	UpdateLineItem(ctx context.Context, item SalaryLineItem) error
	UpdateReportTotals(ctx context.Context, report SalaryReport) error
}
