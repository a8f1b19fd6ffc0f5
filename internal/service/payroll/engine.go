package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/attendance"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/employee"
	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Engine computes salary reports from a snapshot. It performs no I/O.
type Engine struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Options returns the effective engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// generation holds the inputs shared by every employee of one run.
type generation struct {
	params        payroll.ReportParams
	loc           *time.Location
	book          *RuleBook
	skipped       []payroll.SkippedRule
	normalizer    *Normalizer
	days          []Slice
	cycles        []Slice
	unique        Slice
	ordersByCycle map[string][]payroll.Order
}

type plannedSlice struct {
	slice    Slice
	rule     payroll.SalaryRule
	sessions []Session
	worked   []payroll.EconomicCycle
}

type employeePlan struct {
	person       employee.Person
	slices       []plannedSlice
	observations []string
}

// Generate builds a report for params. Rules are checked before any attendance is read;
// a conflict or a cancelled context yields an error and no report.
func (e *Engine) Generate(ctx context.Context, snap payroll.Snapshot, params payroll.ReportParams) (payroll.SalaryReport, error) {
	if !params.EndsAt.After(params.StartsAt) {
		return payroll.SalaryReport{}, payroll.ErrInvalidPeriod
	}

	book := NewRuleBook(snap.Rules)
	if err := book.Check(employeePairs(snap.Employees)); err != nil {
		return payroll.SalaryReport{}, err
	}

	gen := &generation{
		params:        params,
		loc:           snap.WorkingHours.Location(),
		book:          book,
		skipped:       snap.SkippedRules,
		normalizer:    NewNormalizer(params.CodeCurrency, snap.Rates, e.opts.UnknownCurrency),
		ordersByCycle: GroupOrdersByCycle(snap.Orders),
	}
	gen.days = SlicePeriod(snap.WorkingHours, params.StartsAt, params.EndsAt, snap.Cycles)
	gen.cycles = CycleSlices(gen.days, params.EndsAt)
	gen.unique = UniqueSlice(snap.WorkingHours, params.StartsAt, params.EndsAt, snap.Cycles)

	employees := make([]employee.Person, len(snap.Employees))
	copy(employees, snap.Employees)
	sort.SliceStable(employees, func(i, j int) bool {
		if employees[i].FullName != employees[j].FullName {
			return employees[i].FullName < employees[j].FullName
		}
		return employees[i].ID < employees[j].ID
	})

	records := make(map[string][]attendance.Record)
	for _, r := range snap.Attendance {
		records[r.PersonID] = append(records[r.PersonID], r)
	}

	plans := make([]employeePlan, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, person := range employees {
		i, person := i, person
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plans[i] = e.plan(gen, person, records[person.ID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return payroll.SalaryReport{}, err
	}

	eligible := countEligible(plans)

	items := make([]payroll.SalaryLineItem, len(plans))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range plans {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := e.compute(gen, plans[i], eligible)
			if err != nil {
				return fmt.Errorf("failed to compute salary of employee %s: %w", plans[i].person.ID, err)
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return payroll.SalaryReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return payroll.SalaryReport{}, err
	}

	return e.assemble(snap, gen, items)
}

// CheckRules fails when any employee's post and category resolve ambiguously.
func CheckRules(employees []employee.Person, rules []payroll.SalaryRule) error {
	return NewRuleBook(rules).Check(employeePairs(employees))
}

func employeePairs(employees []employee.Person) [][2]string {
	pairs := make([][2]string, 0, len(employees))
	for _, p := range employees {
		pairs = append(pairs, [2]string{p.PostID, p.CategoryID})
	}
	return pairs
}

func (e *Engine) plan(gen *generation, person employee.Person, records []attendance.Record) employeePlan {
	p := employeePlan{person: person}
	for _, sr := range gen.skipped {
		if sr.Rule.PostID == person.PostID && sr.Rule.CategoryID == person.CategoryID {
			p.observations = append(p.observations,
				fmt.Sprintf("salary rule %s is invalid and was skipped: %s", sr.Rule.ID, sr.Reason))
		}
	}
	if len(gen.book.Candidates(person.PostID, person.CategoryID)) == 0 {
		p.observations = append(p.observations,
			fmt.Sprintf("no salary rule found for post %s and category %s", person.PostID, person.CategoryID))
		return p
	}

	set := Sessionize(records)
	p.observations = append(p.observations, set.Observations...)

	p.slices = append(p.slices, e.planSlices(gen, person, gen.cycles, payroll.CountingCycles, set.Sessions, &p)...)
	p.slices = append(p.slices, e.planSlices(gen, person, gen.days, payroll.CountingDays, set.Sessions, &p)...)

	// Unique rules fire once per period whenever they apply on any day of it.
	weekdays := []time.Weekday{gen.unique.Weekday}
	for _, d := range gen.days {
		weekdays = append(weekdays, d.Weekday)
	}
	inPeriod := AssignSessions(set.Sessions, []Slice{gen.unique}, 0)[0]
	fired := make(map[string]bool)
	for _, day := range weekdays {
		res := gen.book.Resolve(person.PostID, person.CategoryID, day)
		if !res.Found || res.Rule.Counting != payroll.CountingUnique || fired[res.Rule.ID] {
			continue
		}
		fired[res.Rule.ID] = true
		p.slices = append(p.slices, plannedSlice{
			slice:    gen.unique,
			rule:     res.Rule,
			sessions: inPeriod,
			worked:   WorkedCycles(gen.unique, inPeriod, e.opts.CycleTolerance),
		})
	}

	if len(p.slices) == 0 {
		if len(set.Sessions) == 0 {
			p.observations = append(p.observations, "no attendance in period")
		} else {
			p.observations = append(p.observations, "no salary rule applies to the days worked")
		}
	}
	return p
}

// planSlices keeps the slices with attendance whose resolved rule counts in mode.
func (e *Engine) planSlices(gen *generation, person employee.Person, slices []Slice, mode payroll.Counting, sessions []Session, p *employeePlan) []plannedSlice {
	tolerance := time.Duration(0)
	if mode == payroll.CountingCycles {
		tolerance = e.opts.CycleTolerance
	}

	var out []plannedSlice
	assigned := AssignSessions(sessions, slices, tolerance)
	if mode == payroll.CountingDays && countsIn(gen.book.Candidates(person.PostID, person.CategoryID), mode) {
		for _, s := range unassigned(sessions, assigned, gen.unique) {
			p.observations = append(p.observations,
				fmt.Sprintf("attendance at %s is outside working hours", s.Entry.In(gen.loc).Format(time.RFC3339)))
		}
	}
	for i, sl := range slices {
		if len(assigned[i]) == 0 {
			continue
		}
		res := gen.book.Resolve(person.PostID, person.CategoryID, sl.Weekday)
		if !res.Found {
			if mode == payroll.CountingDays {
				p.observations = append(p.observations,
					fmt.Sprintf("no salary rule applies on %s", sl.StartsAt.Format("2006-01-02")))
			}
			continue
		}
		if res.Rule.Counting != mode {
			continue
		}
		out = append(out, plannedSlice{
			slice:    sl,
			rule:     res.Rule,
			sessions: assigned[i],
			worked:   WorkedCycles(sl, assigned[i], tolerance),
		})
	}
	return out
}

func countsIn(rules []payroll.SalaryRule, mode payroll.Counting) bool {
	for _, r := range rules {
		if r.Counting == mode {
			return true
		}
	}
	return false
}

// unassigned returns the sessions inside the period that no slice took.
func unassigned(sessions []Session, assigned [][]Session, period Slice) []Session {
	taken := make(map[time.Time]bool)
	for _, group := range assigned {
		for _, s := range group {
			taken[s.Entry] = true
		}
	}

	var out []Session
	for _, s := range sessions {
		if !taken[s.Entry] && period.Contains(s.Entry, 0) {
			out = append(out, s)
		}
	}
	return out
}

// countEligible counts, per cycle, the employees sharing its tips equivalently.
func countEligible(plans []employeePlan) map[string]int {
	members := make(map[string]map[string]bool)
	for _, p := range plans {
		for _, ps := range p.slices {
			if !sharesTipsEquivalently(ps.rule) {
				continue
			}
			for _, c := range ps.worked {
				if members[c.ID] == nil {
					members[c.ID] = make(map[string]bool)
				}
				members[c.ID][p.person.ID] = true
			}
		}
	}

	counts := make(map[string]int, len(members))
	for id, m := range members {
		counts[id] = len(m)
	}
	return counts
}

func (e *Engine) compute(gen *generation, p employeePlan, eligible map[string]int) (payroll.SalaryLineItem, error) {
	observations := append([]string(nil), p.observations...)
	results := make([]payroll.SliceResult, 0, len(p.slices))

	var userID string
	if p.person.HasUser() {
		userID = *p.person.UserID
	}

	for _, ps := range p.slices {
		rule := ps.rule
		attr := AttributeRevenue(gen.ordersByCycle, userID, ps.slice.Cycles)
		observations = append(observations, attr.Observations...)

		totalSales := money.NewBag()
		for _, c := range ps.slice.Cycles {
			totalSales.AddAmounts(c.Totals.TotalSales...)
		}

		fig := SliceFigures{ReferenceAmount: decimal.Zero}
		if !rule.IsFixedSalary {
			ref := totalSales
			if rule.Reference != payroll.ReferenceTotalSales {
				ref = attr.Bag(rule.Reference)
				if userID == "" {
					observations = append(observations,
						fmt.Sprintf("employee has no POS user, %s counts as zero", rule.Reference))
				}
			}
			amount, missing, err := gen.normalizer.NormalizeBag(ref)
			if err != nil {
				return payroll.SalaryLineItem{}, err
			}
			if len(missing) > 0 {
				observations = append(observations, missingCurrencyObservation(string(rule.Reference), missing))
			}
			fig.ReferenceAmount = amount
		}

		tipPool := money.NewBag()
		if rule.IncludeTips && rule.ModeTips != payroll.TipModeFixed {
			for _, c := range ps.worked {
				tipPool.AddAmounts(c.Totals.TotalTips...)
				pool, missing, err := gen.normalizer.Normalize(c.Totals.TotalTips)
				if err != nil {
					return payroll.SalaryLineItem{}, err
				}
				if len(missing) > 0 {
					observations = append(observations, missingCurrencyObservation("tips of cycle "+c.ID, missing))
				}
				fig.TipPools = append(fig.TipPools, TipPool{CycleID: c.ID, Pool: pool.Amount, Eligible: eligible[c.ID]})
			}
		}

		for _, s := range ps.sessions {
			fig.HoursOfDay = append(fig.HoursOfDay, s.HoursOfDay(gen.loc)...)
		}

		switch {
		case e.opts.IncrementFromDecrement && rule.PercentAmountToIncrement.IsPositive() && !rule.PercentAmountToDecrement.IsPositive():
			observations = append(observations, "increment percentage ignored, increments are read from the decrement field")
		case rule.PercentAmountToIncrement.IsPositive() && rule.PercentAmountToDecrement.IsPositive():
			observations = append(observations, "decrement takes precedence over increment")
		}

		comp := Calculate(rule, fig, e.opts)

		workedIDs := make([]string, 0, len(ps.worked))
		for _, c := range ps.worked {
			workedIDs = append(workedIDs, c.ID)
		}
		results = append(results, payroll.SliceResult{
			Kind:             ps.slice.Kind,
			StartsAt:         ps.slice.StartsAt,
			EndsAt:           ps.slice.EndsAt,
			RuleID:           rule.ID,
			EconomicCycleIDs: workedIDs,
			Entries:          len(ps.sessions),
			Exits:            countExits(ps.sessions),
			HoursWorked:      sumHours(ps.sessions),
			SalesInPos:       attr.SalesInPos.List(),
			ManageOrders:     attr.ManageOrders.List(),
			ServeOrders:      attr.ServeOrders.List(),
			TotalSales:       totalSales.List(),
			TipPool:          tipPool.List(),
			ReferenceAmount:  fig.ReferenceAmount,
			BaseAmount:       comp.BaseAmount,
			SpecialHours:     comp.SpecialHours,
			PlusAmount:       comp.PlusAmount,
			Tips:             comp.Tips,
			RealToPay:        comp.RealToPay,
		})
	}

	return BuildLine(p.person, results, observations), nil
}

func (e *Engine) assemble(snap payroll.Snapshot, gen *generation, items []payroll.SalaryLineItem) (payroll.SalaryReport, error) {
	now := e.now()
	report := payroll.SalaryReport{
		ID:           uuid.Must(uuid.NewV7()).String(),
		BusinessID:   snap.BusinessID,
		Name:         gen.params.Name,
		StartsAt:     gen.params.StartsAt,
		EndsAt:       gen.params.EndsAt,
		CodeCurrency: gen.normalizer.Reporting(),
		Status:       payroll.ReportStatusCreated,
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range report.Items {
		report.Items[i].ID = uuid.Must(uuid.NewV7()).String()
		report.Items[i].ReportID = report.ID
		report.Items[i].CreatedAt = now
		report.Items[i].UpdatedAt = now
	}
	RecomputeTotals(&report)

	var sales, incomes []money.Amount
	for _, c := range gen.unique.Cycles {
		sales = append(sales, c.Totals.TotalSales...)
		incomes = append(incomes, c.Totals.TotalIncomes...)
	}
	totalSales, missing, err := gen.normalizer.Normalize(sales)
	if err != nil {
		return payroll.SalaryReport{}, err
	}
	if len(missing) > 0 {
		e.logger.Warn("sales dropped from report totals", "business_id", snap.BusinessID, "currencies", missing)
	}
	totalIncomes, missing, err := gen.normalizer.Normalize(incomes)
	if err != nil {
		return payroll.SalaryReport{}, err
	}
	if len(missing) > 0 {
		e.logger.Warn("incomes dropped from report totals", "business_id", snap.BusinessID, "currencies", missing)
	}
	report.TotalSales = totalSales.Amount
	report.TotalIncomes = totalIncomes.Amount

	e.logger.Info("salary report computed",
		"business_id", snap.BusinessID,
		"report_id", report.ID,
		"employees", len(items),
		"day_slices", len(gen.days),
		"cycle_slices", len(gen.cycles),
	)
	return report, nil
}
