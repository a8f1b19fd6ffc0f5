package payroll

import (
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Options tunes the engine. Unset tolerance, policy and workers fall back to
// DefaultOptions; negative decimals too.
type Options struct {
	// AmountDecimals is the precision of base amounts and the amount to pay.
	AmountDecimals int32
	// CycleTolerance is how far from a cycle opening, before or after, an entry still
	// counts for it.
	CycleTolerance         time.Duration
	UnknownCurrency        UnknownCurrencyPolicy
	IncrementFromDecrement bool
	Workers                int
}

func DefaultOptions() Options {
	return Options{
		AmountDecimals:  2,
		CycleTolerance:  140 * time.Minute,
		UnknownCurrency: UnknownCurrencyDrop,
		Workers:         8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AmountDecimals < 0 {
		o.AmountDecimals = d.AmountDecimals
	}
	if o.CycleTolerance <= 0 {
		o.CycleTolerance = d.CycleTolerance
	}
	if o.UnknownCurrency == "" {
		o.UnknownCurrency = d.UnknownCurrency
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// TipPool is the normalized tip total of one worked cycle and how many employees share it.
type TipPool struct {
	CycleID  string
	Pool     decimal.Decimal
	Eligible int
}

// SliceFigures are the normalized inputs of one slice computation.
type SliceFigures struct {
	ReferenceAmount decimal.Decimal
	// HoursOfDay are the hours touched by the slice sessions.
	HoursOfDay []int
	TipPools   []TipPool
}

// Compensation is the pay of one slice.
type Compensation struct {
	BaseAmount   decimal.Decimal
	SpecialHours decimal.Decimal
	PlusAmount   decimal.Decimal
	Tips         decimal.Decimal
	RealToPay    decimal.Decimal
}

// Calculate applies a salary rule to the figures of one slice.
func Calculate(rule payroll.SalaryRule, fig SliceFigures, opts Options) Compensation {
	places := opts.AmountDecimals

	var toPay decimal.Decimal
	if rule.IsFixedSalary {
		toPay = rule.AmountFixedSalary
	} else {
		toPay = fig.ReferenceAmount.Mul(rule.ReferencePercent).Div(hundred)
	}
	c := Compensation{BaseAmount: toPay.Truncate(places)}
	toPay = c.BaseAmount

	if rule.IncludeRechargeInSpecialHours {
		for _, h := range fig.HoursOfDay {
			if rule.IsSpecialHour(h) {
				c.SpecialHours = rule.AmountSpecialHours
				toPay = toPay.Add(c.SpecialHours)
				break
			}
		}
	}

	increment := rule.PercentAmountToIncrement
	if opts.IncrementFromDecrement {
		increment = rule.PercentAmountToDecrement
	}
	switch {
	case rule.PercentAmountToDecrement.IsPositive():
		c.PlusAmount = toPay.Mul(rule.PercentAmountToDecrement).Div(hundred).Neg().Round(places)
	case increment.IsPositive():
		c.PlusAmount = toPay.Mul(increment).Div(hundred).Round(places)
	}
	toPay = toPay.Add(c.PlusAmount)

	if rule.IncludeTips {
		c.Tips = tips(rule, fig.TipPools).Round(places)
		toPay = toPay.Add(c.Tips)
	}

	c.RealToPay = toPay.Round(places)
	return c
}

func tips(rule payroll.SalaryRule, pools []TipPool) decimal.Decimal {
	total := decimal.Zero
	switch rule.ModeTips {
	case payroll.TipModeEquivalent:
		for _, p := range pools {
			if p.Eligible > 0 {
				total = total.Add(p.Pool.Div(decimal.NewFromInt(int64(p.Eligible))))
			}
		}
	case payroll.TipModePercent:
		for _, p := range pools {
			total = total.Add(p.Pool)
		}
		total = total.Mul(rule.AmountTip).Div(hundred)
	case payroll.TipModeFixed:
		total = rule.AmountTip
	}
	return total
}

// sharesTipsEquivalently reports whether a rule takes part in the equivalent split.
func sharesTipsEquivalently(rule payroll.SalaryRule) bool {
	return rule.IncludeTips && rule.ModeTips == payroll.TipModeEquivalent
}
