package trader

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// prepareOrder turns the final proposal into an order with a fresh id. HOLD proposals
// produce a NO_ACTION record. Quantity is floor(capital * fraction / price) and the stop
// and target prices sit on the loss and profit side of the current price for the action.
func (t *Team) prepareOrder(in TradeInput, p models.TradeProposal) models.ExecutionRecord {
	order := models.ExecutionRecord{
		OrderID:   t.newOrderID(),
		Ticker:    in.Ticker,
		Side:      p.Action,
		OrderType: p.OrderType,
		Status:    models.StatusPending,
		CreatedAt: t.now(),
	}
	if p.Action == models.SignalHold {
		order.Status = models.StatusNoAction
		return order
	}

	price := finiteDecimal(in.CurrentPrice)
	value := finiteDecimal(in.AvailableCapital).Mul(finiteDecimal(p.QuantityFraction))
	order.CurrentPrice = price
	order.EstimatedValue = value.Round(2)
	if price.IsPositive() {
		order.Quantity = value.Div(price).Floor()
	}

	stop := finiteDecimal(p.StopLossPct).Div(hundred)
	target := finiteDecimal(p.TakeProfitPct).Div(hundred)
	if p.Action == models.SignalBuy {
		order.StopLossPrice = price.Mul(one.Sub(stop)).Round(2)
		order.TakeProfitPrice = price.Mul(one.Add(target)).Round(2)
	} else {
		order.StopLossPrice = price.Mul(one.Add(stop)).Round(2)
		order.TakeProfitPrice = price.Mul(one.Sub(target)).Round(2)
	}
	return order
}

// finiteDecimal maps NaN and infinities to zero; decimal.NewFromFloat panics on them.
func finiteDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// execute fills the order at its recorded price. No broker is contacted.
func (t *Team) execute(order models.ExecutionRecord) models.ExecutionRecord {
	now := t.now()
	order.Status = models.StatusExecuted
	order.ExecutedAt = &now
	order.FillPrice = order.CurrentPrice
	order.FilledQuantity = order.Quantity
	t.log.WithFields(map[string]any{
		"order_id": order.OrderID,
		"side":     order.Side,
		"quantity": order.Quantity.String(),
		"price":    order.FillPrice.StringFixed(2),
	}).Info("order executed")
	return order
}

func autoApprovalReason(logic *routing.ConditionalLogic, score models.FeedbackScore) string {
	if !logic.RequireHumanApproval {
		return "Human approval not required"
	}
	return fmt.Sprintf("Score %.2f >= %.2f", score.Overall, logic.AutoApproveThreshold)
}
