package payroll

import (
	"testing"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func order(id, cycleID string, amount string, opts ...func(*payroll.Order)) payroll.Order {
	o := payroll.Order{
		ID:              id,
		EconomicCycleID: cycleID,
		Status:          payroll.OrderStatusBilled,
		Prices:          []money.Amount{money.NewAmount(dec(amount), "USD")},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func soldBy(user string) func(*payroll.Order) {
	return func(o *payroll.Order) { o.SalesByID = strPtr(user) }
}

func managedBy(user string) func(*payroll.Order) {
	return func(o *payroll.Order) { o.ManagedByID = strPtr(user) }
}

func preparedByUser(user string) func(*payroll.Order) {
	return func(o *payroll.Order) {
		o.ProductionTickets = append(o.ProductionTickets, payroll.ProductionTicket{ID: "t-" + o.ID, PreparedByID: strPtr(user)})
	}
}

func TestAttributeRevenue_Precedence(t *testing.T) {
	orders := []payroll.Order{
		order("o1", "c1", "100", soldBy("u1"), preparedByUser("u1")),
		order("o2", "c1", "40", soldBy("u2"), managedBy("u1")),
		order("o3", "c1", "15", soldBy("u2"), preparedByUser("u1")),
		order("o4", "c2", "999", soldBy("u1")),
	}
	cycles := []payroll.EconomicCycle{{ID: "c1"}}

	attr := AttributeRevenue(GroupOrdersByCycle(orders), "u1", cycles)

	// o1 is sold and prepared by u1 and is only counted once, as a sale.
	assertDecimal(t, "100", attr.SalesInPos["USD"])
	assertDecimal(t, "40", attr.ManageOrders["USD"])
	assertDecimal(t, "15", attr.ServeOrders["USD"])
	assert.Empty(t, attr.Observations)
}

func TestAttributeRevenue_SkipsNonAttributableOrders(t *testing.T) {
	houseCosted := order("o1", "c1", "100", soldBy("u1"))
	houseCosted.HouseCosted = true
	open := order("o2", "c1", "50", soldBy("u1"))
	open.Status = "OPEN"
	orders := []payroll.Order{houseCosted, open, order("o3", "c1", "10", soldBy("u1"))}

	attr := AttributeRevenue(GroupOrdersByCycle(orders), "u1", []payroll.EconomicCycle{{ID: "c1"}})

	assertDecimal(t, "10", attr.SalesInPos["USD"])
}

func TestAttributeRevenue_MissingPricesObserved(t *testing.T) {
	noPrices := order("o1", "c1", "0", soldBy("u1"))
	noPrices.Prices = nil
	orders := []payroll.Order{noPrices, order("o2", "c1", "0", soldBy("u9"))}

	attr := AttributeRevenue(GroupOrdersByCycle(orders), "u1", []payroll.EconomicCycle{{ID: "c1"}})

	require.Len(t, attr.Observations, 1)
	assert.Contains(t, attr.Observations[0], "o1")
	assert.Empty(t, attr.SalesInPos)
}

func TestAttributeRevenue_NoUser(t *testing.T) {
	orders := []payroll.Order{order("o1", "c1", "100", soldBy("u1"))}

	attr := AttributeRevenue(GroupOrdersByCycle(orders), "", []payroll.EconomicCycle{{ID: "c1"}})

	assert.Empty(t, attr.SalesInPos)
	assert.Nil(t, attr.Bag(payroll.ReferenceTotalSales))
}
