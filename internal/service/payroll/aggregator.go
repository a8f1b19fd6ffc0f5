package payroll

import (
	"sort"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// BuildLine folds the slice results of one employee into a line item.
func BuildLine(person employee.Person, results []payroll.SliceResult, observations []string) payroll.SalaryLineItem {
	item := payroll.SalaryLineItem{
		PersonID:     person.ID,
		PersonName:   person.FullName,
		PostID:       person.PostID,
		CategoryID:   person.CategoryID,
		RuleIDs:      []string{},
		BaseAmount:   decimal.Zero,
		SpecialHours: decimal.Zero,
		PlusAmount:   decimal.Zero,
		Tips:         decimal.Zero,
		TotalToPay:   decimal.Zero,
		Observations: dedupe(observations),
	}

	sales, manage, serve, total := money.NewBag(), money.NewBag(), money.NewBag(), money.NewBag()
	ruleSeen := make(map[string]bool)
	cycleSeen := make(map[string]bool)
	daySeen := make(map[string]bool)
	b := payroll.LineBreakdown{Slices: results}

	for _, r := range results {
		item.BaseAmount = item.BaseAmount.Add(r.BaseAmount)
		item.SpecialHours = item.SpecialHours.Add(r.SpecialHours)
		item.PlusAmount = item.PlusAmount.Add(r.PlusAmount)
		item.Tips = item.Tips.Add(r.Tips)
		item.TotalToPay = item.TotalToPay.Add(r.RealToPay)

		if !ruleSeen[r.RuleID] {
			ruleSeen[r.RuleID] = true
			item.RuleIDs = append(item.RuleIDs, r.RuleID)
		}

		// The unique slice overlaps every other slice.
		if r.Kind == payroll.SliceKindUnique && len(results) > 1 {
			continue
		}
		sales.AddAmounts(r.SalesInPos...)
		manage.AddAmounts(r.ManageOrders...)
		serve.AddAmounts(r.ServeOrders...)
		total.AddAmounts(r.TotalSales...)
		b.Entries += r.Entries
		b.Exits += r.Exits
		b.HoursWorked += r.HoursWorked
		if r.Entries == 0 {
			continue
		}
		for _, id := range r.EconomicCycleIDs {
			if !cycleSeen[id] {
				cycleSeen[id] = true
				b.EconomicCyclesWorked = append(b.EconomicCyclesWorked, id)
			}
		}
		if r.Kind != payroll.SliceKindUnique {
			daySeen[r.StartsAt.Format("2006-01-02")] = true
		}
	}

	for day := range daySeen {
		b.DaysWorked = append(b.DaysWorked, day)
	}
	sort.Strings(b.DaysWorked)
	b.SalesInPos = sales.List()
	b.ManageOrders = manage.List()
	b.ServeOrders = serve.List()
	b.TotalSales = total.List()
	item.Breakdown = b
	return item
}

// RecomputeLine derives the amount to pay from the editable components.
func RecomputeLine(item *payroll.SalaryLineItem, places int32) {
	item.TotalToPay = item.BaseAmount.
		Add(item.SpecialHours).
		Add(item.PlusAmount).
		Add(item.Tips).
		Round(places)
}

// RecomputeTotals resums the report totals over every line item.
func RecomputeTotals(report *payroll.SalaryReport) {
	report.TotalToPay = decimal.Zero
	report.TotalTips = decimal.Zero
	for _, item := range report.Items {
		report.TotalToPay = report.TotalToPay.Add(item.TotalToPay)
		report.TotalTips = report.TotalTips.Add(item.Tips)
	}
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
