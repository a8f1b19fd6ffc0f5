package money

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency-tagged monetary value.
type Amount struct {
	Amount       decimal.Decimal `json:"amount"`
	CodeCurrency string          `json:"code_currency"`
}

// NewAmount builds an Amount with a normalized currency code.
func NewAmount(amount decimal.Decimal, code string) Amount {
	return Amount{Amount: amount, CodeCurrency: NormalizeCode(code)}
}

// NormalizeCode upper-cases and trims an ISO currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Bag accumulates amounts keyed by currency code.
type Bag map[string]decimal.Decimal

// NewBag returns an empty Bag.
func NewBag() Bag {
	return make(Bag)
}

// Add sums amount into the bucket of the given currency.
func (b Bag) Add(code string, amount decimal.Decimal) {
	code = NormalizeCode(code)
	b[code] = b[code].Add(amount)
}

// AddAmounts adds every entry of amounts.
func (b Bag) AddAmounts(amounts ...Amount) {
	for _, a := range amounts {
		b.Add(a.CodeCurrency, a.Amount)
	}
}

// List returns the bag as amounts ordered by currency code.
func (b Bag) List() []Amount {
	codes := make([]string, 0, len(b))
	for code := range b {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]Amount, 0, len(codes))
	for _, code := range codes {
		out = append(out, Amount{Amount: b[code], CodeCurrency: code})
	}
	return out
}
