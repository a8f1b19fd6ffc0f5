package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/database"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

// ========== INPUTS ==========

func (r *payrollRepository) GetWorkingHours(ctx context.Context, businessID string) (payroll.WorkingHours, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT enforce_open_close, start_hour, end_hour, timezone
		FROM business_working_hours
		WHERE business_id = $1
	`

	var h payroll.WorkingHours
	err := q.QueryRow(ctx, query, businessID).Scan(&h.EnforceOpenClose, &h.StartHour, &h.EndHour, &h.Timezone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.WorkingHours{}, payroll.ErrWorkingHoursNotFound
		}
		return payroll.WorkingHours{}, fmt.Errorf("failed to get working hours: %w", err)
	}

	return h, nil
}

func (r *payrollRepository) ListSalaryRules(ctx context.Context, businessID string) ([]payroll.SalaryRule, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, business_id, name, post_id, category_id,
			   is_fixed_salary, amount_fixed_salary, reference_percent, reference, counting,
			   include_tips, mode_tips, amount_tip,
			   include_recharge_in_special_hours, special_hours, amount_special_hours,
			   percent_amount_to_increment, percent_amount_to_decrement,
			   restrictions_by_days, restricted_days
		FROM salary_rules
		WHERE business_id = $1 AND deleted_at IS NULL
		ORDER BY post_id, category_id, id
	`

	rows, err := q.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary rules: %w", err)
	}
	defer rows.Close()

	var rules []payroll.SalaryRule
	for rows.Next() {
		var rule payroll.SalaryRule
		var reference, counting, modeTips string
		if err := rows.Scan(
			&rule.ID, &rule.BusinessID, &rule.Name, &rule.PostID, &rule.CategoryID,
			&rule.IsFixedSalary, &rule.AmountFixedSalary, &rule.ReferencePercent, &reference, &counting,
			&rule.IncludeTips, &modeTips, &rule.AmountTip,
			&rule.IncludeRechargeInSpecialHours, &rule.SpecialHours, &rule.AmountSpecialHours,
			&rule.PercentAmountToIncrement, &rule.PercentAmountToDecrement,
			&rule.RestrictionsByDays, &rule.RestrictedDays,
		); err != nil {
			return nil, fmt.Errorf("failed to scan salary rule: %w", err)
		}
		rule.Reference = payroll.Reference(reference)
		rule.Counting = payroll.Counting(counting)
		rule.ModeTips = payroll.TipMode(modeTips)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary rules: %w", err)
	}

	return rules, nil
}

func (r *payrollRepository) ListEconomicCycles(ctx context.Context, businessID string, from, to time.Time) ([]payroll.EconomicCycle, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, starts_at, ends_at, total_sales, total_incomes, total_tips
		FROM economic_cycles
		WHERE business_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`

	rows, err := q.Query(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list economic cycles: %w", err)
	}
	defer rows.Close()

	var cycles []payroll.EconomicCycle
	for rows.Next() {
		var c payroll.EconomicCycle
		var salesBytes, incomesBytes, tipsBytes []byte
		if err := rows.Scan(&c.ID, &c.StartsAt, &c.EndsAt, &salesBytes, &incomesBytes, &tipsBytes); err != nil {
			return nil, fmt.Errorf("failed to scan economic cycle: %w", err)
		}
		if c.Totals.TotalSales, err = decodeAmounts(salesBytes); err != nil {
			return nil, fmt.Errorf("failed to decode total sales of economic cycle %s: %w", c.ID, err)
		}
		if c.Totals.TotalIncomes, err = decodeAmounts(incomesBytes); err != nil {
			return nil, fmt.Errorf("failed to decode total incomes of economic cycle %s: %w", c.ID, err)
		}
		if c.Totals.TotalTips, err = decodeAmounts(tipsBytes); err != nil {
			return nil, fmt.Errorf("failed to decode total tips of economic cycle %s: %w", c.ID, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate economic cycles: %w", err)
	}

	return cycles, nil
}

type ticketRow struct {
	ID           string  `json:"id"`
	PreparedByID *string `json:"prepared_by_id"`
}

func (r *payrollRepository) ListBilledOrders(ctx context.Context, businessID string, cycleIDs []string) ([]payroll.Order, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT o.id, o.economic_cycle_id, o.status, o.house_costed, o.sales_by_id, o.managed_by_id, o.prices,
			   COALESCE(
				   json_agg(json_build_object('id', t.id, 'prepared_by_id', t.prepared_by_id))
					   FILTER (WHERE t.id IS NOT NULL),
				   '[]'
			   ) AS tickets
		FROM orders o
		LEFT JOIN production_tickets t ON t.order_id = o.id
		WHERE o.business_id = $1
		  AND o.economic_cycle_id = ANY($2::uuid[])
		  AND o.status = $3
		  AND o.house_costed = FALSE
		GROUP BY o.id
		ORDER BY o.economic_cycle_id, o.id
	`

	rows, err := q.Query(ctx, query, businessID, cycleIDs, string(payroll.OrderStatusBilled))
	if err != nil {
		return nil, fmt.Errorf("failed to list billed orders: %w", err)
	}
	defer rows.Close()

	var orders []payroll.Order
	for rows.Next() {
		var o payroll.Order
		var status string
		var pricesBytes, ticketsBytes []byte
		if err := rows.Scan(
			&o.ID, &o.EconomicCycleID, &status, &o.HouseCosted, &o.SalesByID, &o.ManagedByID, &pricesBytes, &ticketsBytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = payroll.OrderStatus(status)
		if o.Prices, err = decodeAmounts(pricesBytes); err != nil {
			return nil, fmt.Errorf("failed to decode prices of order %s: %w", o.ID, err)
		}

		var tickets []ticketRow
		if err := json.Unmarshal(ticketsBytes, &tickets); err != nil {
			return nil, fmt.Errorf("failed to decode production tickets of order %s: %w", o.ID, err)
		}
		for _, t := range tickets {
			o.ProductionTickets = append(o.ProductionTickets, payroll.ProductionTicket{ID: t.ID, PreparedByID: t.PreparedByID})
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

func (r *payrollRepository) GetExchangeRates(ctx context.Context, businessID string, reportingCurrency string) (map[string]decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT code_currency, rate
		FROM exchange_rates
		WHERE business_id = $1 AND reporting_currency = $2
	`

	rows, err := q.Query(ctx, query, businessID, reportingCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]decimal.Decimal)
	for rows.Next() {
		var code string
		var rate decimal.Decimal
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates[money.NormalizeCode(code)] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchange rates: %w", err)
	}

	return rates, nil
}

// decodeAmounts reads a JSONB amount list. A NULL column decodes as empty.
func decodeAmounts(raw []byte) ([]money.Amount, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var amounts []money.Amount
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, err
	}
	for i := range amounts {
		amounts[i].CodeCurrency = money.NormalizeCode(amounts[i].CodeCurrency)
	}
	return amounts, nil
}

// ========== REPORTS ==========

const insertLineItemQuery = `
	INSERT INTO salary_line_items (
		id, report_id, person_id, person_name, post_id, category_id, rule_ids,
		base_amount, special_hours, plus_amount, tips, total_to_pay,
		observations, breakdown, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

// CreateReport inserts the report and its line items. Run it inside a transaction.
func (r *payrollRepository) CreateReport(ctx context.Context, report payroll.SalaryReport) (payroll.SalaryReport, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_reports (
			id, business_id, name, starts_at, ends_at, code_currency, status,
			total_to_pay, total_tips, total_sales, total_incomes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := q.Exec(ctx, query,
		report.ID, report.BusinessID, report.Name, report.StartsAt, report.EndsAt, report.CodeCurrency, string(report.Status),
		report.TotalToPay, report.TotalTips, report.TotalSales, report.TotalIncomes, report.CreatedBy,
		report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return payroll.SalaryReport{}, fmt.Errorf("failed to create salary report: %w", err)
	}

	if len(report.Items) == 0 {
		return report, nil
	}

	batch := &pgx.Batch{}
	for _, item := range report.Items {
		breakdown, err := json.Marshal(item.Breakdown)
		if err != nil {
			return payroll.SalaryReport{}, fmt.Errorf("failed to encode breakdown of %s: %w", item.PersonID, err)
		}
		batch.Queue(insertLineItemQuery,
			item.ID, report.ID, item.PersonID, item.PersonName, item.PostID, item.CategoryID, nonNil(item.RuleIDs),
			item.BaseAmount, item.SpecialHours, item.PlusAmount, item.Tips, item.TotalToPay,
			nonNil(item.Observations), breakdown, item.CreatedAt, item.UpdatedAt,
		)
	}

	br := q.SendBatch(ctx, batch)
	for range report.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return payroll.SalaryReport{}, fmt.Errorf("failed to create salary line item: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return payroll.SalaryReport{}, fmt.Errorf("failed to create salary line items: %w", err)
	}

	return report, nil
}

const selectReportColumns = `
	id, business_id, name, starts_at, ends_at, code_currency, status,
	total_to_pay, total_tips, total_sales, total_incomes, created_by, created_at, updated_at
`

func scanReport(row pgx.Row) (payroll.SalaryReport, error) {
	var rep payroll.SalaryReport
	var status string
	err := row.Scan(
		&rep.ID, &rep.BusinessID, &rep.Name, &rep.StartsAt, &rep.EndsAt, &rep.CodeCurrency, &status,
		&rep.TotalToPay, &rep.TotalTips, &rep.TotalSales, &rep.TotalIncomes, &rep.CreatedBy, &rep.CreatedAt, &rep.UpdatedAt,
	)
	rep.Status = payroll.ReportStatus(status)
	return rep, err
}

func (r *payrollRepository) GetReportByID(ctx context.Context, id string, businessID string) (payroll.SalaryReport, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + selectReportColumns + ` FROM salary_reports WHERE id = $1 AND business_id = $2`

	rep, err := scanReport(q.QueryRow(ctx, query, id, businessID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.SalaryReport{}, payroll.ErrReportNotFound
		}
		return payroll.SalaryReport{}, fmt.Errorf("failed to get salary report: %w", err)
	}

	itemsQuery := `
		SELECT id, report_id, person_id, person_name, post_id, category_id, rule_ids,
			   base_amount, special_hours, plus_amount, tips, total_to_pay,
			   observations, breakdown, created_at, updated_at
		FROM salary_line_items
		WHERE report_id = $1
		ORDER BY person_name, person_id
	`

	rows, err := q.Query(ctx, itemsQuery, rep.ID)
	if err != nil {
		return payroll.SalaryReport{}, fmt.Errorf("failed to get salary line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item payroll.SalaryLineItem
		var breakdownBytes []byte
		if err := rows.Scan(
			&item.ID, &item.ReportID, &item.PersonID, &item.PersonName, &item.PostID, &item.CategoryID, &item.RuleIDs,
			&item.BaseAmount, &item.SpecialHours, &item.PlusAmount, &item.Tips, &item.TotalToPay,
			&item.Observations, &breakdownBytes, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return payroll.SalaryReport{}, fmt.Errorf("failed to scan salary line item: %w", err)
		}
		if len(breakdownBytes) > 0 {
			if err := json.Unmarshal(breakdownBytes, &item.Breakdown); err != nil {
				return payroll.SalaryReport{}, fmt.Errorf("failed to decode breakdown of salary line item %s: %w", item.ID, err)
			}
		}
		rep.Items = append(rep.Items, item)
	}
	if err := rows.Err(); err != nil {
		return payroll.SalaryReport{}, fmt.Errorf("failed to iterate salary line items: %w", err)
	}

	return rep, nil
}

func (r *payrollRepository) ListReports(ctx context.Context, businessID string, filter payroll.SalaryReportFilter) ([]payroll.SalaryReport, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `FROM salary_reports WHERE business_id = $1`
	args := []interface{}{businessID}
	argIdx := 2

	if filter.From != nil {
		baseQuery += fmt.Sprintf(" AND starts_at >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		baseQuery += fmt.Sprintf(" AND starts_at < $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count salary reports: %w", err)
	}

	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY starts_at %s, created_at %s LIMIT $%d OFFSET $%d`,
		selectReportColumns, baseQuery, sortOrder, sortOrder, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list salary reports: %w", err)
	}
	defer rows.Close()

	var reports []payroll.SalaryReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan salary report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate salary reports: %w", err)
	}

	return reports, totalCount, nil
}

func (r *payrollRepository) UpdateLineItem(ctx context.Context, item payroll.SalaryLineItem) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_line_items
		SET base_amount = $3, special_hours = $4, plus_amount = $5, tips = $6, total_to_pay = $7,
			observations = $8, updated_at = $9
		WHERE id = $1 AND report_id = $2
	`

	tag, err := q.Exec(ctx, query,
		item.ID, item.ReportID, item.BaseAmount, item.SpecialHours, item.PlusAmount, item.Tips, item.TotalToPay,
		nonNil(item.Observations), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update salary line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrLineItemNotFound
	}

	return nil
}

func (r *payrollRepository) UpdateReportTotals(ctx context.Context, report payroll.SalaryReport) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_reports
		SET total_to_pay = $3, total_tips = $4, updated_at = $5
		WHERE id = $1 AND business_id = $2
	`

	tag, err := q.Exec(ctx, query, report.ID, report.BusinessID, report.TotalToPay, report.TotalTips, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update salary report totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrReportNotFound
	}

	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
