package engine

import (
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// NetValue reduces an order and its refunds to the single cash amount the
// business expects to receive: order amount minus approved or completed
// refunds. Refunds in any other state are ignored. Decimal arithmetic is
// exact, so summation order cannot change the result.
func NetValue(order model.Order, refunds []model.Refund) decimal.Decimal {
	net := order.Amount
	for _, r := range refunds {
		if r.OrderID != order.ID {
			continue
		}
		if r.CountsTowardNet() {
			net = net.Sub(r.Amount)
		}
	}
	return net
}

// refundsByOrder indexes refunds by their order reference.
func refundsByOrder(refunds []model.Refund) map[string][]model.Refund {
	idx := make(map[string][]model.Refund, len(refunds))
	for _, r := range refunds {
		idx[r.OrderID] = append(idx[r.OrderID], r)
	}
	return idx
}
