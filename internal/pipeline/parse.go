package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pccmo/internal"
	"pccmo/internal/util"
)

// ParseMessage turns a chat message into order items. It returns nil when the
// message is not an order or no product code can be found. It is pure and
// safe for concurrent use.
func ParseMessage(text string) []internal.OrderItem {
	if !IsConcreteOrderMessage(text) {
		return nil
	}

	items := ParseItems(text)
	if len(items) == 0 {
		return nil
	}

	orderDate := ParseDate(text)
	factoryID := ParseFactory(text)
	supervisor := ParseSupervisor(text)
	totalCement := ParseCementQuantity(text)

	out := make([]internal.OrderItem, 0, len(items))
	for i, item := range items {
		order := internal.OrderItem{
			OrderDate:       orderDate,
			FactoryID:       factoryID,
			ProductCode:     util.StringPtr(item.Code),
			ProductQuantity: item.Quantity,
			ProductUnit:     item.Unit,
			Supervisor:      supervisor,
			RawMessage:      text,
		}
		if item.Detail != "" {
			order.ProductDetail = util.StringPtr(item.Detail)
		}
		// The message total belongs to the first item only so sums stay correct.
		if i == 0 {
			order.CementQuantity = totalCement
		} else {
			order.CementQuantity = decimal.NullDecimal{}
		}
		if len(items) > 1 {
			order.Notes = util.StringPtr(fmt.Sprintf("รายการที่ %d/%d", i+1, len(items)))
		}
		out = append(out, order)
	}
	return out
}
