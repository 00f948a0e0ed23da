package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/settled-dev/settled/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNetValue_NoRefunds(t *testing.T) {
	order := model.Order{ID: "ORD-1", Amount: dec("100.00")}
	net := NetValue(order, nil)
	assert.True(t, net.Equal(dec("100.00")), "net %s", net)
}

func TestNetValue_ApprovedAndCompletedRefunds(t *testing.T) {
	order := model.Order{ID: "ORD-1", Amount: dec("50.00")}
	refunds := []model.Refund{
		{ID: "REF-1", OrderID: "ORD-1", Amount: dec("10.00"), Status: model.RefundApproved},
		{ID: "REF-2", OrderID: "ORD-1", Amount: dec("5.50"), Status: model.RefundCompleted},
	}
	net := NetValue(order, refunds)
	assert.True(t, net.Equal(dec("34.50")), "net %s", net)
}

func TestNetValue_IgnoresPendingAndRejected(t *testing.T) {
	order := model.Order{ID: "ORD-1", Amount: dec("50.00")}
	refunds := []model.Refund{
		{ID: "REF-1", OrderID: "ORD-1", Amount: dec("10.00"), Status: model.RefundPending},
		{ID: "REF-2", OrderID: "ORD-1", Amount: dec("20.00"), Status: model.RefundRejected},
	}
	net := NetValue(order, refunds)
	assert.True(t, net.Equal(dec("50.00")), "net %s", net)
}

func TestNetValue_IgnoresOtherOrdersRefunds(t *testing.T) {
	order := model.Order{ID: "ORD-1", Amount: dec("50.00")}
	refunds := []model.Refund{
		{ID: "REF-1", OrderID: "ORD-2", Amount: dec("10.00"), Status: model.RefundApproved},
	}
	net := NetValue(order, refunds)
	assert.True(t, net.Equal(dec("50.00")), "net %s", net)
}

func TestNetValue_SummationOrderIndependent(t *testing.T) {
	order := model.Order{ID: "ORD-1", Amount: dec("1000.00")}
	refunds := []model.Refund{
		{ID: "REF-1", OrderID: "ORD-1", Amount: dec("0.10"), Status: model.RefundApproved},
		{ID: "REF-2", OrderID: "ORD-1", Amount: dec("333.33"), Status: model.RefundApproved},
		{ID: "REF-3", OrderID: "ORD-1", Amount: dec("0.01"), Status: model.RefundCompleted},
	}
	forward := NetValue(order, refunds)

	reversed := []model.Refund{refunds[2], refunds[1], refunds[0]}
	backward := NetValue(order, reversed)

	assert.True(t, forward.Equal(backward))
	assert.True(t, forward.Equal(dec("666.56")), "net %s", forward)
}

func TestNetValue_RefundExceedsOrder(t *testing.T) {
	// Over-refunded orders go negative rather than clamping; the matcher
	// surfaces the variance downstream.
	order := model.Order{ID: "ORD-1", Amount: dec("20.00")}
	refunds := []model.Refund{
		{ID: "REF-1", OrderID: "ORD-1", Amount: dec("25.00"), Status: model.RefundApproved},
	}
	net := NetValue(order, refunds)
	assert.True(t, net.Equal(dec("-5.00")), "net %s", net)
}
