package payroll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/lock"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/validator"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves a snapshot and keeps reports in memory.
type fakeStore struct {
	mu              sync.Mutex
	snap            payroll.Snapshot
	hoursMissing    bool
	reports         map[string]payroll.SalaryReport
	attendanceCalls int
}

func newFakeStore(snap payroll.Snapshot) *fakeStore {
	return &fakeStore{snap: snap, reports: make(map[string]payroll.SalaryReport)}
}

func (f *fakeStore) GetWorkingHours(ctx context.Context, businessID string) (payroll.WorkingHours, error) {
	if f.hoursMissing {
		return payroll.WorkingHours{}, payroll.ErrWorkingHoursNotFound
	}
	return f.snap.WorkingHours, nil
}

func (f *fakeStore) ListSalaryRules(ctx context.Context, businessID string) ([]payroll.SalaryRule, error) {
	return f.snap.Rules, nil
}

func (f *fakeStore) ListEconomicCycles(ctx context.Context, businessID string, from, to time.Time) ([]payroll.EconomicCycle, error) {
	return f.snap.Cycles, nil
}

func (f *fakeStore) ListBilledOrders(ctx context.Context, businessID string, cycleIDs []string) ([]payroll.Order, error) {
	return f.snap.Orders, nil
}

func (f *fakeStore) GetExchangeRates(ctx context.Context, businessID string, reportingCurrency string) (map[string]decimal.Decimal, error) {
	return f.snap.Rates, nil
}

func (f *fakeStore) CreateReport(ctx context.Context, report payroll.SalaryReport) (payroll.SalaryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = cloneReport(report)
	return report, nil
}

func (f *fakeStore) GetReportByID(ctx context.Context, id string, businessID string) (payroll.SalaryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok || r.BusinessID != businessID {
		return payroll.SalaryReport{}, payroll.ErrReportNotFound
	}
	return cloneReport(r), nil
}

func (f *fakeStore) ListReports(ctx context.Context, businessID string, filter payroll.SalaryReportFilter) ([]payroll.SalaryReport, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.SalaryReport
	for _, r := range f.reports {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) UpdateLineItem(ctx context.Context, item payroll.SalaryLineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reports[item.ReportID]
	for i := range r.Items {
		if r.Items[i].ID == item.ID {
			r.Items[i] = item
			return nil
		}
	}
	return payroll.ErrLineItemNotFound
}

func (f *fakeStore) UpdateReportTotals(ctx context.Context, report payroll.SalaryReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reports[report.ID]
	r.TotalToPay = report.TotalToPay
	r.TotalTips = report.TotalTips
	f.reports[report.ID] = r
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string, businessID string) (employee.Person, error) {
	for _, p := range f.snap.Employees {
		if p.ID == id {
			return p, nil
		}
	}
	return employee.Person{}, employee.ErrEmployeeNotFound
}

func (f *fakeStore) GetActiveByBusinessID(ctx context.Context, businessID string) ([]employee.Person, error) {
	return f.snap.Employees, nil
}

func (f *fakeStore) ListByRange(ctx context.Context, businessID string, from, to time.Time) ([]attendance.Record, error) {
	f.mu.Lock()
	f.attendanceCalls++
	f.mu.Unlock()
	return f.snap.Attendance, nil
}

func cloneReport(r payroll.SalaryReport) payroll.SalaryReport {
	r.Items = append([]payroll.SalaryLineItem(nil), r.Items...)
	return r
}

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(t *testing.T, store *fakeStore) (payroll.PayrollService, *lock.Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := lock.NewLocker(rdb, "payroll", time.Minute)
	engine := NewEngine(Options{AmountDecimals: 2}, logger)
	return NewPayrollService(passthroughTransactor{}, store, store, store, engine, locker, logger), locker
}

func claimsContext(t *testing.T, claims map[string]interface{}) context.Context {
	t.Helper()
	auth := jwtauth.New("HS256", []byte("test-secret"), nil)
	token, _, err := auth.Encode(claims)
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), token, nil)
}

func businessContext(t *testing.T) context.Context {
	return claimsContext(t, map[string]interface{}{"business_id": "b1", "user_id": "manager-1"})
}

func weekRequest() payroll.GenerateSalaryReportRequest {
	return payroll.GenerateSalaryReportRequest{StartsAt: "2024-03-04", EndsAt: "2024-03-05", CodeCurrency: "usd"}
}

// ===== GENERATE REPORT TESTS =====

func TestPayrollService_GenerateReport_Success(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	store := newFakeStore(snap)
	svc, _ := newTestService(t, store)

	// Act
	resp, err := svc.GenerateReport(businessContext(t), weekRequest())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Payroll 2024-03-04 - 2024-03-05", resp.Name)
	assert.Equal(t, "USD", resp.CodeCurrency)
	assert.Equal(t, "CREATED", resp.Status)
	require.Len(t, resp.Items, 4)
	assertDecimal(t, "851", resp.TotalToPay)
	assertDecimal(t, "1610", resp.TotalSales)

	stored, ok := store.reports[resp.ID]
	require.True(t, ok)
	require.NotNil(t, stored.CreatedBy)
	assert.Equal(t, "manager-1", *stored.CreatedBy)
	assert.Equal(t, "b1", stored.BusinessID)
	assert.Equal(t, 1, store.attendanceCalls)
}

func TestPayrollService_GenerateReport_MissingWorkingHours(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	store := newFakeStore(snap)
	store.hoursMissing = true
	svc, _ := newTestService(t, store)

	resp, err := svc.GenerateReport(businessContext(t), weekRequest())

	require.NoError(t, err)
	assertDecimal(t, "851", resp.TotalToPay)
}

func TestPayrollService_GenerateReport_RuleConflictSkipsAttendance(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	snap.Rules = append(snap.Rules, payroll.SalaryRule{
		ID: "dup", PostID: "bartender", CategoryID: "staff", Counting: payroll.CountingDays,
		IsFixedSalary: true, AmountFixedSalary: dec("1"),
	})
	store := newFakeStore(snap)
	svc, _ := newTestService(t, store)

	_, err := svc.GenerateReport(businessContext(t), weekRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrRuleConflict))
	assert.Equal(t, 0, store.attendanceCalls)
	assert.Empty(t, store.reports)
}

func TestPayrollService_GenerateReport_InvalidRuleSkipped(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	// Without a counting mode the rule is malformed and dropped before resolution.
	snap.Rules = append(snap.Rules, payroll.SalaryRule{ID: "broken", PostID: "bartender", CategoryID: "staff"})
	svc, _ := newTestService(t, newFakeStore(snap))

	// Act
	resp, err := svc.GenerateReport(businessContext(t), weekRequest())

	// Assert
	require.NoError(t, err)
	assertDecimal(t, "851", resp.TotalToPay)
	for _, item := range resp.Items {
		if item.PersonName == "Alice" {
			require.NotEmpty(t, item.Observations)
			assert.Contains(t, item.Observations[0], "salary rule broken is invalid and was skipped")
			continue
		}
		for _, o := range item.Observations {
			assert.NotContains(t, o, "broken")
		}
	}
}

func TestPayrollService_GenerateReport_Locked(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, locker := newTestService(t, newFakeStore(snap))
	held, err := locker.Obtain(context.Background(), "b1")
	require.NoError(t, err)
	defer held.Release(context.Background())

	_, err = svc.GenerateReport(businessContext(t), weekRequest())

	assert.ErrorIs(t, err, payroll.ErrReportLocked)
}

func TestPayrollService_GenerateReport_ValidationError(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, _ := newTestService(t, newFakeStore(snap))

	_, err := svc.GenerateReport(businessContext(t), payroll.GenerateSalaryReportRequest{
		StartsAt: "2024-03-05", EndsAt: "2024-03-01", CodeCurrency: "US",
	})

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	m := verrs.ToMap()
	assert.Contains(t, m, "ends_at")
	assert.Contains(t, m, "code_currency")
}

func TestPayrollService_MissingBusinessClaim(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, _ := newTestService(t, newFakeStore(snap))
	ctx := claimsContext(t, map[string]interface{}{"user_id": "manager-1"})

	_, err := svc.GenerateReport(ctx, weekRequest())
	assert.ErrorIs(t, err, payroll.ErrMissingBusinessClaim)

	_, err = svc.GetReport(context.Background(), "r1")
	assert.Error(t, err)
}

// ===== LINE ITEM TESTS =====

func TestPayrollService_UpdateLineItem_RecomputesTotals(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	store := newFakeStore(snap)
	svc, _ := newTestService(t, store)
	ctx := businessContext(t)
	generated, err := svc.GenerateReport(ctx, weekRequest())
	require.NoError(t, err)
	bob := generated.Items[1]
	require.Equal(t, "Bob", bob.PersonName)

	tips := dec("150")
	notes := []string{"tips corrected by manager"}
	resp, err := svc.UpdateLineItem(ctx, payroll.UpdateSalaryLineItemRequest{
		ReportID: generated.ID, ID: bob.ID, Tips: &tips, Observations: &notes,
	})

	require.NoError(t, err)
	assertDecimal(t, "190", resp.Items[1].TotalToPay)
	assert.Equal(t, notes, resp.Items[1].Observations)
	assertDecimal(t, "901", resp.TotalToPay)
	assertDecimal(t, "350", resp.TotalTips)

	stored := store.reports[generated.ID]
	assertDecimal(t, "901", stored.TotalToPay)
	assertDecimal(t, "190", stored.Items[1].TotalToPay)
}

func TestPayrollService_UpdateLineItem_NotFound(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, _ := newTestService(t, newFakeStore(snap))
	ctx := businessContext(t)
	generated, err := svc.GenerateReport(ctx, weekRequest())
	require.NoError(t, err)
	base := dec("10")

	_, err = svc.UpdateLineItem(ctx, payroll.UpdateSalaryLineItemRequest{ReportID: generated.ID, ID: "missing", BaseAmount: &base})
	assert.ErrorIs(t, err, payroll.ErrLineItemNotFound)

	_, err = svc.UpdateLineItem(ctx, payroll.UpdateSalaryLineItemRequest{ReportID: "missing", ID: "x", BaseAmount: &base})
	assert.ErrorIs(t, err, payroll.ErrReportNotFound)

	_, err = svc.UpdateLineItem(ctx, payroll.UpdateSalaryLineItemRequest{ReportID: generated.ID, ID: "x"})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

// ===== READ / EXPORT TESTS =====

func TestPayrollService_GetAndListReports(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, _ := newTestService(t, newFakeStore(snap))
	ctx := businessContext(t)
	generated, err := svc.GenerateReport(ctx, weekRequest())
	require.NoError(t, err)

	got, err := svc.GetReport(ctx, generated.ID)
	require.NoError(t, err)
	assert.Equal(t, generated.ID, got.ID)
	assert.Len(t, got.Items, 4)

	other := claimsContext(t, map[string]interface{}{"business_id": "b2"})
	_, err = svc.GetReport(other, generated.ID)
	assert.ErrorIs(t, err, payroll.ErrReportNotFound)

	list, err := svc.ListReports(ctx, payroll.SalaryReportFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)
	require.Len(t, list.Data, 1)
	assert.Empty(t, list.Data[0].Items)
}

func TestPayrollService_ExportReport(t *testing.T) {
	snap, _ := restaurantSnapshot(t)
	svc, _ := newTestService(t, newFakeStore(snap))
	ctx := businessContext(t)
	generated, err := svc.GenerateReport(ctx, weekRequest())
	require.NoError(t, err)

	xlsx, err := svc.ExportReport(ctx, generated.ID, payroll.ExportFormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "payroll-20240304-20240305.xlsx", xlsx.FileName)
	assert.NotEmpty(t, xlsx.Content)

	pdf, err := svc.ExportReport(ctx, generated.ID, payroll.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)

	_, err = svc.ExportReport(ctx, generated.ID, "csv")
	assert.ErrorIs(t, err, payroll.ErrUnsupportedExportFormat)
}
