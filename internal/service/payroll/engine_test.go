package payroll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return NewEngine(Options{AmountDecimals: 2, Workers: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func person(id, name, user, post string) employee.Person {
	p := employee.Person{ID: id, BusinessID: "b1", FullName: name, PostID: post, CategoryID: "staff"}
	if user != "" {
		p.UserID = strPtr(user)
	}
	return p
}

func entry(t *testing.T, personID, value string) attendance.Record {
	return attendance.Record{PersonID: personID, Type: attendance.RecordTypeEntry, CreatedAt: at(t, value)}
}

func exit(t *testing.T, personID, value string) attendance.Record {
	return attendance.Record{PersonID: personID, Type: attendance.RecordTypeExit, CreatedAt: at(t, value)}
}

func usd(value string) []money.Amount {
	return []money.Amount{money.NewAmount(dec(value), "USD")}
}

// restaurantSnapshot covers Monday 2024-03-04 and Tuesday 2024-03-05.
//
//	alice: days, fixed 500, equivalent tips
//	bob, carol: cycles, 10% of their POS sales, equivalent tips
//	dan: no rule
func restaurantSnapshot(t *testing.T) (payroll.Snapshot, payroll.ReportParams) {
	c1End := at(t, "2024-03-04T22:00:00Z")
	c2End := at(t, "2024-03-05T22:00:00Z")
	cycles := []payroll.EconomicCycle{
		{
			ID: "c1", StartsAt: at(t, "2024-03-04T10:00:00Z"), EndsAt: &c1End,
			Totals: payroll.CycleTotals{TotalSales: usd("1000"), TotalTips: usd("300")},
		},
		{
			ID: "c2", StartsAt: at(t, "2024-03-05T10:00:00Z"), EndsAt: &c2End,
			Totals: payroll.CycleTotals{
				TotalSales: []money.Amount{money.NewAmount(dec("500"), "USD"), money.NewAmount(dec("100"), "EUR")},
			},
		},
	}

	houseCosted := order("o3", "c1", "999", soldBy("u2"))
	houseCosted.HouseCosted = true
	eurSale := order("o4", "c2", "0", soldBy("u3"))
	eurSale.Prices = []money.Amount{money.NewAmount(dec("100"), "EUR")}

	snap := payroll.Snapshot{
		BusinessID: "b1",
		Employees: []employee.Person{
			person("p4", "Dan", "u4", "dishwasher"),
			person("p3", "Carol", "u3", "waiter"),
			person("p1", "Alice", "u1", "bartender"),
			person("p2", "Bob", "u2", "waiter"),
		},
		Attendance: []attendance.Record{
			entry(t, "p1", "2024-03-04T09:00:00Z"), exit(t, "p1", "2024-03-04T17:00:00Z"),
			entry(t, "p2", "2024-03-04T08:30:00Z"), exit(t, "p2", "2024-03-04T18:00:00Z"),
			entry(t, "p3", "2024-03-04T12:00:00Z"), exit(t, "p3", "2024-03-04T20:00:00Z"),
			entry(t, "p3", "2024-03-05T11:00:00Z"), exit(t, "p3", "2024-03-05T19:00:00Z"),
			entry(t, "p4", "2024-03-04T10:00:00Z"), exit(t, "p4", "2024-03-04T14:00:00Z"),
		},
		Orders: []payroll.Order{
			order("o1", "c1", "400", soldBy("u2"), preparedByUser("u2")),
			order("o2", "c1", "200", managedBy("u3")),
			houseCosted,
			eurSale,
		},
		Cycles: cycles,
		Rules: []payroll.SalaryRule{
			{
				ID: "r-bar", PostID: "bartender", CategoryID: "staff", Counting: payroll.CountingDays,
				IsFixedSalary: true, AmountFixedSalary: dec("500"),
				IncludeTips: true, ModeTips: payroll.TipModeEquivalent,
			},
			{
				ID: "r-wait", PostID: "waiter", CategoryID: "staff", Counting: payroll.CountingCycles,
				Reference: payroll.ReferenceSalesInPos, ReferencePercent: dec("10"),
				IncludeTips: true, ModeTips: payroll.TipModeEquivalent,
			},
		},
		Rates: map[string]decimal.Decimal{"EUR": dec("1.1")},
	}
	params := payroll.ReportParams{
		Name:         "March week",
		StartsAt:     at(t, "2024-03-04T00:00:00Z"),
		EndsAt:       at(t, "2024-03-06T00:00:00Z"),
		CodeCurrency: "USD",
	}
	return snap, params
}

// ===== GENERATE TESTS =====

func TestEngine_Generate_RestaurantWeek(t *testing.T) {
	snap, params := restaurantSnapshot(t)

	report, err := testEngine().Generate(context.Background(), snap, params)

	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, payroll.ReportStatusCreated, report.Status)
	assert.Equal(t, "USD", report.CodeCurrency)
	require.Len(t, report.Items, 4)

	names := []string{report.Items[0].PersonName, report.Items[1].PersonName, report.Items[2].PersonName, report.Items[3].PersonName}
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dan"}, names)

	alice, bob, carol, dan := report.Items[0], report.Items[1], report.Items[2], report.Items[3]

	// 500 fixed plus a third of the 300 tip pool of c1.
	assertDecimal(t, "500", alice.BaseAmount)
	assertDecimal(t, "100", alice.Tips)
	assertDecimal(t, "600", alice.TotalToPay)
	assert.Equal(t, []string{"r-bar"}, alice.RuleIDs)
	assert.Equal(t, []string{"2024-03-04"}, alice.Breakdown.DaysWorked)

	// 10% of 400 sold (sold and prepared counts once), plus tips.
	assertDecimal(t, "40", bob.BaseAmount)
	assertDecimal(t, "100", bob.Tips)
	assertDecimal(t, "140", bob.TotalToPay)
	require.Len(t, bob.Breakdown.SalesInPos, 1)
	assertDecimal(t, "400", bob.Breakdown.SalesInPos[0].Amount)
	assert.Empty(t, bob.Breakdown.ServeOrders)

	// c1 has no sales of carol; c2 has 100 EUR = 110 USD.
	assertDecimal(t, "11", carol.BaseAmount)
	assertDecimal(t, "100", carol.Tips)
	assertDecimal(t, "111", carol.TotalToPay)
	assert.Equal(t, []string{"c1", "c2"}, carol.Breakdown.EconomicCyclesWorked)
	require.Len(t, carol.Breakdown.Slices, 2)
	assert.Equal(t, payroll.SliceKindCycle, carol.Breakdown.Slices[0].Kind)

	assert.True(t, dan.TotalToPay.IsZero())
	require.NotEmpty(t, dan.Observations)
	assert.Contains(t, dan.Observations[0], "no salary rule found")

	assertDecimal(t, "851", report.TotalToPay)
	assertDecimal(t, "300", report.TotalTips)
	assertDecimal(t, "1610", report.TotalSales)
	for _, item := range report.Items {
		assert.Equal(t, report.ID, item.ReportID)
		assert.NotEmpty(t, item.ID)
	}
}

func TestEngine_Generate_LineTotalsMatchComponents(t *testing.T) {
	snap, params := restaurantSnapshot(t)

	report, err := testEngine().Generate(context.Background(), snap, params)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range report.Items {
		want := item.BaseAmount.Add(item.SpecialHours).Add(item.PlusAmount).Add(item.Tips).Round(2)
		assert.True(t, want.Equal(item.TotalToPay), "%s: want %s, got %s", item.PersonName, want, item.TotalToPay)
		sum = sum.Add(item.TotalToPay)
	}
	assert.True(t, sum.Equal(report.TotalToPay))
}

func TestEngine_Generate_RuleConflictFailsFirst(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	snap.Rules = append(snap.Rules, payroll.SalaryRule{
		ID: "r-wait-2", PostID: "waiter", CategoryID: "staff", Counting: payroll.CountingDays,
		IsFixedSalary: true, AmountFixedSalary: dec("1"),
	})
	// Records that would otherwise be observed as unpaired.
	snap.Attendance = append(snap.Attendance, exit(t, "p2", "2024-03-04T23:00:00Z"))

	report, err := testEngine().Generate(context.Background(), snap, params)

	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrRuleConflict))
	var conflict *payroll.RuleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "waiter", conflict.PostID)
	assert.Empty(t, report.ID)
	assert.Nil(t, report.Items)
}

func TestEngine_Generate_UniqueRuleFiresOnce(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	snap.Rules = append(snap.Rules, payroll.SalaryRule{
		ID: "r-dish", PostID: "dishwasher", CategoryID: "staff", Counting: payroll.CountingUnique,
		IsFixedSalary: true, AmountFixedSalary: dec("1000"),
	})

	report, err := testEngine().Generate(context.Background(), snap, params)

	require.NoError(t, err)
	dan := report.Items[3]
	assertDecimal(t, "1000", dan.TotalToPay)
	require.Len(t, dan.Breakdown.Slices, 1)
	assert.Equal(t, payroll.SliceKindUnique, dan.Breakdown.Slices[0].Kind)
	assert.Equal(t, 1, dan.Breakdown.Entries)
	assert.Equal(t, 4, dan.Breakdown.HoursWorked)
}

func TestEngine_Generate_NoAttendanceObserved(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	snap.Attendance = nil

	report, err := testEngine().Generate(context.Background(), snap, params)

	require.NoError(t, err)
	alice := report.Items[0]
	assert.True(t, alice.TotalToPay.IsZero())
	assert.Contains(t, alice.Observations, "no attendance in period")
	assertDecimal(t, "1610", report.TotalSales)
}

func TestEngine_Generate_UnknownCurrencyPolicies(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	snap.Rates = nil

	report, err := testEngine().Generate(context.Background(), snap, params)
	require.NoError(t, err)
	carol := report.Items[2]
	assertDecimal(t, "0", carol.BaseAmount)
	assert.NotEmpty(t, carol.Observations)
	assertDecimal(t, "1500", report.TotalSales)

	strict := NewEngine(Options{AmountDecimals: 2, UnknownCurrency: UnknownCurrencyFail}, nil)
	_, err = strict.Generate(context.Background(), snap, params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrUnknownCurrency))
}

func TestEngine_Generate_Cancelled(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := testEngine().Generate(ctx, snap, params)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, report.ID)
}

func TestEngine_Generate_InvalidPeriod(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	params.EndsAt = params.StartsAt.Add(-time.Hour)

	_, err := testEngine().Generate(context.Background(), snap, params)

	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
}

func TestEngine_Generate_SkippedRuleObservedOnMatchingLines(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	snap.Rules = snap.Rules[1:]
	snap.SkippedRules = []payroll.SkippedRule{{
		Rule:   payroll.SalaryRule{ID: "r-bar", PostID: "bartender", CategoryID: "staff"},
		Reason: "counting is required",
	}}

	// Act
	report, err := testEngine().Generate(context.Background(), snap, params)

	// Assert
	require.NoError(t, err)
	alice := report.Items[0]
	assert.True(t, alice.TotalToPay.IsZero())
	require.NotEmpty(t, alice.Observations)
	assert.Equal(t, "salary rule r-bar is invalid and was skipped: counting is required", alice.Observations[0])
	assert.Contains(t, alice.Observations, "no salary rule found for post bartender and category staff")
}

// ===== SLICE BOUNDARY TESTS =====

func singleEmployeeSnapshot(t *testing.T, hours payroll.WorkingHours, rule payroll.SalaryRule, records ...attendance.Record) (payroll.Snapshot, payroll.ReportParams) {
	rule.ID, rule.PostID, rule.CategoryID = "r1", "cook", "staff"
	snap := payroll.Snapshot{
		BusinessID:   "b1",
		WorkingHours: hours,
		Employees:    []employee.Person{person("p1", "Eve", "u1", "cook")},
		Attendance:   records,
		Rules:        []payroll.SalaryRule{rule},
	}
	params := payroll.ReportParams{
		Name:         "Edges",
		StartsAt:     at(t, "2024-03-04T00:00:00Z"),
		EndsAt:       at(t, "2024-03-06T00:00:00Z"),
		CodeCurrency: "USD",
	}
	return snap, params
}

func TestEngine_Generate_DaysRulePaysEntryBeforeOpening(t *testing.T) {
	hours := payroll.WorkingHours{EnforceOpenClose: true, StartHour: 9, EndHour: 17}
	rule := payroll.SalaryRule{Counting: payroll.CountingDays, IsFixedSalary: true, AmountFixedSalary: dec("500")}
	snap, params := singleEmployeeSnapshot(t, hours, rule,
		entry(t, "p1", "2024-03-04T08:45:00Z"), exit(t, "p1", "2024-03-04T17:00:00Z"))

	// Act
	report, err := testEngine().Generate(context.Background(), snap, params)

	// Assert
	require.NoError(t, err)
	eve := report.Items[0]
	assertDecimal(t, "500", eve.TotalToPay)
	require.Len(t, eve.Breakdown.Slices, 1)
	assert.Equal(t, at(t, "2024-03-04T09:00:00Z"), eve.Breakdown.Slices[0].StartsAt)
}

func TestEngine_Generate_DaysRuleCountsCycleOpenedBeforeHours(t *testing.T) {
	hours := payroll.WorkingHours{EnforceOpenClose: true, StartHour: 9, EndHour: 17}
	rule := payroll.SalaryRule{Counting: payroll.CountingDays, Reference: payroll.ReferenceTotalSales, ReferencePercent: dec("10")}
	snap, params := singleEmployeeSnapshot(t, hours, rule,
		entry(t, "p1", "2024-03-04T10:00:00Z"), exit(t, "p1", "2024-03-04T16:00:00Z"))
	end := at(t, "2024-03-04T16:00:00Z")
	snap.Cycles = []payroll.EconomicCycle{{
		ID: "early", StartsAt: at(t, "2024-03-04T07:00:00Z"), EndsAt: &end,
		Totals: payroll.CycleTotals{TotalSales: usd("1000")},
	}}

	// Act
	report, err := testEngine().Generate(context.Background(), snap, params)

	// Assert
	require.NoError(t, err)
	assertDecimal(t, "100", report.Items[0].TotalToPay)
}

func TestEngine_Generate_DaysRuleObservesAttendanceOutsideHours(t *testing.T) {
	hours := payroll.WorkingHours{EnforceOpenClose: true, StartHour: 18, EndHour: 2}
	rule := payroll.SalaryRule{Counting: payroll.CountingDays, IsFixedSalary: true, AmountFixedSalary: dec("500")}
	snap, params := singleEmployeeSnapshot(t, hours, rule,
		entry(t, "p1", "2024-03-04T01:00:00Z"), exit(t, "p1", "2024-03-04T03:00:00Z"))

	// Act
	report, err := testEngine().Generate(context.Background(), snap, params)

	// Assert
	require.NoError(t, err)
	eve := report.Items[0]
	assert.True(t, eve.TotalToPay.IsZero())
	assert.Contains(t, eve.Observations, "attendance at 2024-03-04T01:00:00Z is outside working hours")
}

func TestEngine_Generate_CycleRuleIgnoresEntryLongAfterOpening(t *testing.T) {
	rule := payroll.SalaryRule{Counting: payroll.CountingCycles, IsFixedSalary: true, AmountFixedSalary: dec("500")}
	snap, params := singleEmployeeSnapshot(t, payroll.WorkingHours{}, rule,
		entry(t, "p1", "2024-03-04T16:00:00Z"), exit(t, "p1", "2024-03-04T22:00:00Z"))
	end := at(t, "2024-03-04T23:00:00Z")
	snap.Cycles = []payroll.EconomicCycle{{ID: "c1", StartsAt: at(t, "2024-03-04T08:00:00Z"), EndsAt: &end}}

	// Act
	report, err := testEngine().Generate(context.Background(), snap, params)

	// Assert
	require.NoError(t, err)
	eve := report.Items[0]
	assert.True(t, eve.TotalToPay.IsZero())
	assert.Empty(t, eve.Breakdown.Slices)
	assert.Contains(t, eve.Observations, "no salary rule applies to the days worked")
}

// ===== AGGREGATION TESTS =====

func TestRecomputeTotals_AfterLineEdit(t *testing.T) {
	snap, params := restaurantSnapshot(t)
	report, err := testEngine().Generate(context.Background(), snap, params)
	require.NoError(t, err)

	bob := &report.Items[1]
	bob.Tips = dec("150")
	RecomputeLine(bob, 2)
	RecomputeTotals(&report)

	assertDecimal(t, "190", bob.TotalToPay)
	assertDecimal(t, "901", report.TotalToPay)
	assertDecimal(t, "350", report.TotalTips)
}
