package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/database"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/export"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/lock"
	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type PayrollServiceImpl struct {
	transactor     database.Transactor
	payrollRepo    payroll.PayrollRepository
	employeeRepo   employee.EmployeeRepository
	attendanceRepo attendance.AttendanceRepository
	engine         *Engine
	locker         *lock.Locker
	logger         *slog.Logger
}

func NewPayrollService(
	transactor database.Transactor,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	attendanceRepo attendance.AttendanceRepository,
	engine *Engine,
	locker *lock.Locker,
	logger *slog.Logger,
) payroll.PayrollService {
	return &PayrollServiceImpl{
		transactor:     transactor,
		payrollRepo:    payrollRepo,
		employeeRepo:   employeeRepo,
		attendanceRepo: attendanceRepo,
		engine:         engine,
		locker:         locker,
		logger:         logger,
	}
}

func getClaimsFromContext(ctx context.Context) (businessID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	businessID, ok := claims["business_id"].(string)
	if !ok || businessID == "" {
		return "", "", payroll.ErrMissingBusinessClaim
	}
	userID, _ = claims["user_id"].(string)

	return businessID, userID, nil
}

// obtainLock serializes report writes of one business.
func (s *PayrollServiceImpl) obtainLock(ctx context.Context, businessID string) (*lock.Lock, error) {
	lk, err := s.locker.Obtain(ctx, businessID)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, payroll.ErrReportLocked
	}
	return lk, err
}

func (s *PayrollServiceImpl) release(lk *lock.Lock, businessID string) {
	// The request context may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lk.Release(ctx); err != nil {
		s.logger.Warn("failed to release payroll lock", "business_id", businessID, "error", err)
	}
}

// GenerateReport computes and persists a new salary report.
func (s *PayrollServiceImpl) GenerateReport(ctx context.Context, req payroll.GenerateSalaryReportRequest) (payroll.SalaryReportResponse, error) {
	businessID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	hours, err := s.payrollRepo.GetWorkingHours(ctx, businessID)
	if err != nil {
		if !errors.Is(err, payroll.ErrWorkingHoursNotFound) {
			return payroll.SalaryReportResponse{}, fmt.Errorf("failed to get working hours: %w", err)
		}
		s.logger.Warn("working hours not configured, using calendar days", "business_id", businessID)
		hours = payroll.WorkingHours{}
	}

	params, err := req.Validate(hours.Location())
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	lk, err := s.obtainLock(ctx, businessID)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}
	defer s.release(lk, businessID)

	started := time.Now()
	snap, err := s.loadSnapshot(ctx, businessID, hours, params)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	report, err := s.engine.Generate(ctx, snap, params)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}
	if userID != "" {
		report.CreatedBy = &userID
	}

	var created payroll.SalaryReport
	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, err = s.payrollRepo.CreateReport(txCtx, report)
		return err
	})
	if err != nil {
		return payroll.SalaryReportResponse{}, fmt.Errorf("failed to save salary report: %w", err)
	}

	s.logger.Info("salary report generated",
		"business_id", businessID,
		"report_id", created.ID,
		"items", len(created.Items),
		"duration", time.Since(started),
	)
	return toReportResponse(created, true), nil
}

// loadSnapshot reads every input once. Rules are checked before attendance is read.
func (s *PayrollServiceImpl) loadSnapshot(ctx context.Context, businessID string, hours payroll.WorkingHours, params payroll.ReportParams) (payroll.Snapshot, error) {
	snap := payroll.Snapshot{BusinessID: businessID, WorkingHours: hours}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		employees, err := s.employeeRepo.GetActiveByBusinessID(gctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to get active employees: %w", err)
		}
		snap.Employees = employees
		return nil
	})
	g.Go(func() error {
		rules, err := s.payrollRepo.ListSalaryRules(gctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to get salary rules: %w", err)
		}
		for _, r := range rules {
			if err := payroll.ValidateRule(r); err != nil {
				s.logger.Warn("skipping invalid salary rule", "business_id", businessID, "rule_id", r.ID, "error", err)
				snap.SkippedRules = append(snap.SkippedRules, payroll.SkippedRule{Rule: r, Reason: err.Error()})
				continue
			}
			snap.Rules = append(snap.Rules, r)
		}
		return nil
	})
	g.Go(func() error {
		rates, err := s.payrollRepo.GetExchangeRates(gctx, businessID, params.CodeCurrency)
		if err != nil {
			return fmt.Errorf("failed to get exchange rates: %w", err)
		}
		snap.Rates = rates
		return nil
	})
	g.Go(func() error {
		cycles, err := s.payrollRepo.ListEconomicCycles(gctx, businessID, params.StartsAt, params.EndsAt)
		if err != nil {
			return fmt.Errorf("failed to get economic cycles: %w", err)
		}
		snap.Cycles = cycles
		return nil
	})
	if err := g.Wait(); err != nil {
		return payroll.Snapshot{}, err
	}

	if err := CheckRules(snap.Employees, snap.Rules); err != nil {
		return payroll.Snapshot{}, err
	}

	cycleIDs := make([]string, 0, len(snap.Cycles))
	for _, c := range snap.Cycles {
		cycleIDs = append(cycleIDs, c.ID)
	}

	// Entries shortly before the period still count for its first cycles, and sessions
	// opened on the last day close after it.
	from := params.StartsAt.Add(-s.engine.Options().CycleTolerance)
	to := params.EndsAt.Add(24 * time.Hour)

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(cycleIDs) == 0 {
			return nil
		}
		orders, err := s.payrollRepo.ListBilledOrders(gctx, businessID, cycleIDs)
		if err != nil {
			return fmt.Errorf("failed to get orders: %w", err)
		}
		snap.Orders = orders
		return nil
	})
	g.Go(func() error {
		records, err := s.attendanceRepo.ListByRange(gctx, businessID, from, to)
		if err != nil {
			return fmt.Errorf("failed to get attendance: %w", err)
		}
		snap.Attendance = records
		return nil
	})
	if err := g.Wait(); err != nil {
		return payroll.Snapshot{}, err
	}

	return snap, nil
}

func (s *PayrollServiceImpl) GetReport(ctx context.Context, id string) (payroll.SalaryReportResponse, error) {
	businessID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	report, err := s.payrollRepo.GetReportByID(ctx, id, businessID)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}
	return toReportResponse(report, true), nil
}

func (s *PayrollServiceImpl) ListReports(ctx context.Context, filter payroll.SalaryReportFilter) (payroll.ListSalaryReportResponse, error) {
	businessID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ListSalaryReportResponse{}, err
	}
	filter.Normalize()

	reports, total, err := s.payrollRepo.ListReports(ctx, businessID, filter)
	if err != nil {
		return payroll.ListSalaryReportResponse{}, fmt.Errorf("failed to list salary reports: %w", err)
	}

	data := make([]payroll.SalaryReportResponse, 0, len(reports))
	for _, r := range reports {
		data = append(data, toReportResponse(r, false))
	}
	return payroll.ListSalaryReportResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// UpdateLineItem applies a manual correction and recomputes the line and report totals.
func (s *PayrollServiceImpl) UpdateLineItem(ctx context.Context, req payroll.UpdateSalaryLineItemRequest) (payroll.SalaryReportResponse, error) {
	businessID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	lk, err := s.obtainLock(ctx, businessID)
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}
	defer s.release(lk, businessID)

	var updated payroll.SalaryReport
	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		report, err := s.payrollRepo.GetReportByID(txCtx, req.ReportID, businessID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range report.Items {
			if report.Items[i].ID == req.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return payroll.ErrLineItemNotFound
		}

		now := time.Now()
		item := &report.Items[idx]
		req.Apply(item)
		RecomputeLine(item, s.engine.Options().AmountDecimals)
		item.UpdatedAt = now
		if err := s.payrollRepo.UpdateLineItem(txCtx, *item); err != nil {
			return fmt.Errorf("failed to update line item: %w", err)
		}

		RecomputeTotals(&report)
		report.UpdatedAt = now
		if err := s.payrollRepo.UpdateReportTotals(txCtx, report); err != nil {
			return fmt.Errorf("failed to update report totals: %w", err)
		}
		updated = report
		return nil
	})
	if err != nil {
		return payroll.SalaryReportResponse{}, err
	}

	s.logger.Info("salary line item updated", "business_id", businessID, "report_id", req.ReportID, "item_id", req.ID)
	return toReportResponse(updated, true), nil
}

// ExportReport renders a stored report as a spreadsheet or PDF.
func (s *PayrollServiceImpl) ExportReport(ctx context.Context, id string, format payroll.ExportFormat) (payroll.ExportFile, error) {
	businessID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ExportFile{}, err
	}
	if format != payroll.ExportFormatXLSX && format != payroll.ExportFormatPDF {
		return payroll.ExportFile{}, payroll.ErrUnsupportedExportFormat
	}

	report, err := s.payrollRepo.GetReportByID(ctx, id, businessID)
	if err != nil {
		return payroll.ExportFile{}, err
	}

	table := reportTable(report)
	name := fmt.Sprintf("payroll-%s-%s.%s",
		report.StartsAt.Format("20060102"), report.EndsAt.Add(-time.Second).Format("20060102"), format)

	switch format {
	case payroll.ExportFormatXLSX:
		content, err := export.XLSX(table)
		if err != nil {
			return payroll.ExportFile{}, err
		}
		return payroll.ExportFile{
			FileName:    name,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     content,
		}, nil
	default:
		content, err := export.PDF(table)
		if err != nil {
			return payroll.ExportFile{}, err
		}
		return payroll.ExportFile{FileName: name, ContentType: "application/pdf", Content: content}, nil
	}
}

func reportTable(report payroll.SalaryReport) export.Table {
	t := export.Table{
		Title: report.Name,
		Subtitle: []string{
			fmt.Sprintf("Period: %s - %s", report.StartsAt.Format("2006-01-02"), report.EndsAt.Add(-time.Second).Format("2006-01-02")),
			fmt.Sprintf("Currency: %s", report.CodeCurrency),
		},
		Headers: []string{"Employee", "Base", "Special hours", "Plus", "Tips", "Total", "Observations"},
	}

	base, special, plus := decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range report.Items {
		base = base.Add(item.BaseAmount)
		special = special.Add(item.SpecialHours)
		plus = plus.Add(item.PlusAmount)
		t.Rows = append(t.Rows, []any{
			item.PersonName, item.BaseAmount, item.SpecialHours, item.PlusAmount, item.Tips, item.TotalToPay,
			strings.Join(item.Observations, "; "),
		})
	}
	t.Footer = []any{"Total", base, special, plus, report.TotalTips, report.TotalToPay, ""}
	return t
}

func toReportResponse(report payroll.SalaryReport, withItems bool) payroll.SalaryReportResponse {
	resp := payroll.SalaryReportResponse{
		ID:           report.ID,
		Name:         report.Name,
		StartsAt:     report.StartsAt.Format(time.RFC3339),
		EndsAt:       report.EndsAt.Format(time.RFC3339),
		CodeCurrency: report.CodeCurrency,
		Status:       string(report.Status),
		TotalToPay:   report.TotalToPay,
		TotalTips:    report.TotalTips,
		TotalSales:   report.TotalSales,
		TotalIncomes: report.TotalIncomes,
		CreatedAt:    report.CreatedAt.Format(time.RFC3339),
	}
	if !withItems {
		return resp
	}

	resp.Items = make([]payroll.SalaryLineItemResponse, 0, len(report.Items))
	for _, item := range report.Items {
		breakdown := item.Breakdown
		resp.Items = append(resp.Items, payroll.SalaryLineItemResponse{
			ID:           item.ID,
			PersonID:     item.PersonID,
			PersonName:   item.PersonName,
			PostID:       item.PostID,
			CategoryID:   item.CategoryID,
			RuleIDs:      item.RuleIDs,
			BaseAmount:   item.BaseAmount,
			SpecialHours: item.SpecialHours,
			PlusAmount:   item.PlusAmount,
			Tips:         item.Tips,
			TotalToPay:   item.TotalToPay,
			Observations: item.Observations,
			Breakdown:    &breakdown,
		})
	}
	return resp
}
