package payroll

import "context"

// PayrollService generates and maintains salary reports for the business in the JWT claims.
type PayrollService interface {
	GenerateReport(ctx context.Context, req GenerateSalaryReportRequest) (SalaryReportResponse, error)
	GetReport(ctx context.Context, id string) (SalaryReportResponse, error)
	ListReports(ctx context.Context, filter SalaryReportFilter) (ListSalaryReportResponse, error)
	UpdateLineItem(ctx context.Context, req UpdateSalaryLineItemRequest) (SalaryReportResponse, error)
	ExportReport(ctx context.Context, id string, format ExportFormat) (ExportFile, error)
}
