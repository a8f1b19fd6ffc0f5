package payroll

import (
	"fmt"
	"sort"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// UnknownCurrencyPolicy decides what happens to amounts with no exchange rate.
type UnknownCurrencyPolicy string

const (
	UnknownCurrencyDrop UnknownCurrencyPolicy = "drop"
	UnknownCurrencyFail UnknownCurrencyPolicy = "fail"
)

// conversionPlaces is the precision of converted amounts.
const conversionPlaces = 2

// Normalizer converts multi-currency amounts into the reporting currency.
type Normalizer struct {
	reporting string
	rates     map[string]decimal.Decimal
	policy    UnknownCurrencyPolicy
}

// NewNormalizer builds a Normalizer. Rate keys are normalized; non-positive rates count
// as missing.
func NewNormalizer(reporting string, rates map[string]decimal.Decimal, policy UnknownCurrencyPolicy) *Normalizer {
	n := &Normalizer{
		reporting: money.NormalizeCode(reporting),
		rates:     make(map[string]decimal.Decimal, len(rates)),
		policy:    policy,
	}
	for code, rate := range rates {
		if rate.IsPositive() {
			n.rates[money.NormalizeCode(code)] = rate
		}
	}
	return n
}

// Normalize sums amounts in the reporting currency. Codes without a rate are returned
// as missing, or fail the call under the fail policy.
func (n *Normalizer) Normalize(amounts []money.Amount) (money.Amount, []string, error) {
	bag := money.NewBag()
	bag.AddAmounts(amounts...)
	total, missing, err := n.NormalizeBag(bag)
	if err != nil {
		return money.Amount{}, missing, err
	}
	return money.Amount{Amount: total, CodeCurrency: n.reporting}, missing, nil
}

// NormalizeBag is Normalize over an already grouped bag.
func (n *Normalizer) NormalizeBag(bag money.Bag) (decimal.Decimal, []string, error) {
	total := decimal.Zero
	var missing []string
	for _, a := range bag.List() {
		if a.CodeCurrency == n.reporting {
			total = total.Add(a.Amount)
			continue
		}
		rate, ok := n.rates[a.CodeCurrency]
		if !ok {
			if !a.Amount.IsZero() {
				missing = append(missing, a.CodeCurrency)
			}
			continue
		}
		total = total.Add(a.Amount.Mul(rate).Round(conversionPlaces))
	}

	if len(missing) > 0 && n.policy == UnknownCurrencyFail {
		return decimal.Zero, missing, &payroll.UnknownCurrencyError{Codes: missing}
	}
	return total, missing, nil
}

// Reporting returns the reporting currency code.
func (n *Normalizer) Reporting() string {
	return n.reporting
}

func missingCurrencyObservation(what string, codes []string) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s: no exchange rate for %v, amounts dropped", what, sorted)
}
