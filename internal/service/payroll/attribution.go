package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
)

// Attribution is the revenue one employee is credited with, per currency.
type Attribution struct {
	SalesInPos   money.Bag
	ManageOrders money.Bag
	ServeOrders  money.Bag
	Observations []string
}

func newAttribution() Attribution {
	return Attribution{
		SalesInPos:   money.NewBag(),
		ManageOrders: money.NewBag(),
		ServeOrders:  money.NewBag(),
	}
}

// Bag returns the bucket a reference reads from. totalSales is not attributed per
// employee and yields nil.
func (a Attribution) Bag(ref payroll.Reference) money.Bag {
	switch ref {
	case payroll.ReferenceSalesInPos:
		return a.SalesInPos
	case payroll.ReferenceManageOrders:
		return a.ManageOrders
	case payroll.ReferenceServeOrders:
		return a.ServeOrders
	}
	return nil
}

// GroupOrdersByCycle indexes attributable orders by economic cycle.
func GroupOrdersByCycle(orders []payroll.Order) map[string][]payroll.Order {
	out := make(map[string][]payroll.Order)
	for _, o := range orders {
		if !o.Attributable() {
			continue
		}
		out[o.EconomicCycleID] = append(out[o.EconomicCycleID], o)
	}
	return out
}

// AttributeRevenue credits each order of the given cycles to exactly one bucket of the
// user: seller first, then manager, then preparer of any production ticket.
func AttributeRevenue(ordersByCycle map[string][]payroll.Order, userID string, cycles []payroll.EconomicCycle) Attribution {
	attr := newAttribution()
	if userID == "" {
		return attr
	}

	for _, c := range cycles {
		for _, o := range ordersByCycle[c.ID] {
			var bucket money.Bag
			switch {
			case matches(o.SalesByID, userID):
				bucket = attr.SalesInPos
			case matches(o.ManagedByID, userID):
				bucket = attr.ManageOrders
			case preparedBy(o, userID):
				bucket = attr.ServeOrders
			default:
				continue
			}

			if len(o.Prices) == 0 {
				attr.Observations = append(attr.Observations, fmt.Sprintf("order %s has no price data", o.ID))
				continue
			}
			for _, p := range o.Prices {
				if money.NormalizeCode(p.CodeCurrency) == "" {
					attr.Observations = append(attr.Observations, fmt.Sprintf("order %s has a price without currency", o.ID))
					continue
				}
				bucket.Add(p.CodeCurrency, p.Amount)
			}
		}
	}
	return attr
}

func matches(id *string, userID string) bool {
	return id != nil && *id == userID
}

func preparedBy(o payroll.Order, userID string) bool {
	for _, t := range o.ProductionTickets {
		if matches(t.PreparedByID, userID) {
			return true
		}
	}
	return false
}
