package usecase

import (
	"github.com/vitos/perp_sim/internal/domain"
)

const (
	// FeeRate is charged on the size of every open and close.
	FeeRate = 0.0006
	// liquidationBuffer is the fraction of margin consumed at liquidation.
	liquidationBuffer = 0.9
)

// ClosedPosition is emitted when a price update closes a position.
type ClosedPosition struct {
	Position domain.Position `json:"position"`
	Reason   string          `json:"reason"`
	Price    float64         `json:"price"`
	PnL      float64         `json:"pnl"`
}

// AlertTrigger is emitted once per alert when its condition is met.
type AlertTrigger struct {
	Alert domain.PriceAlert `json:"alert"`
	Price float64           `json:"price"`
}

func LiquidationPrice(direction domain.Direction, entryPrice float64, leverage int) float64 {
	if leverage < 1 {
		leverage = 1
	}
	if direction == domain.DirectionShort {
		return entryPrice * (1 + liquidationBuffer/float64(leverage))
	}
	return entryPrice * (1 - liquidationBuffer/float64(leverage))
}

func TradeFee(size float64) float64 {
	return size * FeeRate
}

// PnL returns the unrealized profit and its leveraged percentage at price.
func PnL(p domain.Position, price float64) (pnl, pct float64) {
	diff := price - p.EntryPrice
	if p.Direction == domain.DirectionShort {
		diff = p.EntryPrice - price
	}
	pnl = diff * p.Size
	if p.EntryPrice != 0 {
		pct = diff / p.EntryPrice * 100 * float64(p.Leverage)
	}
	return pnl, pct
}

type PositionEvaluator struct {
	EnforceLiquidation bool
}

func NewPositionEvaluator(enforceLiquidation bool) *PositionEvaluator {
	return &PositionEvaluator{EnforceLiquidation: enforceLiquidation}
}

// CloseReason reports which exit, if any, price triggers for p. Stop loss is
// checked first, then take profit, then liquidation.
func (e *PositionEvaluator) CloseReason(p domain.Position, price float64) string {
	long := p.Direction == domain.DirectionLong

	if p.StopLoss != nil {
		sl := *p.StopLoss
		if (long && price <= sl) || (!long && price >= sl) {
			return domain.ReasonStopLoss
		}
	}
	if p.TakeProfit != nil {
		tp := *p.TakeProfit
		if (long && price >= tp) || (!long && price <= tp) {
			return domain.ReasonTakeProfit
		}
	}
	if e.EnforceLiquidation && p.LiquidationPrice > 0 {
		if (long && price <= p.LiquidationPrice) || (!long && price >= p.LiquidationPrice) {
			return domain.ReasonLiquidated
		}
	}
	return ""
}

// EvaluatePositions marks every open position to price. Positions hitting
// an exit are returned in closed and left out of open, unmodified.
func (e *PositionEvaluator) EvaluatePositions(price float64, positions []domain.Position) (open []domain.Position, closed []ClosedPosition) {
	open = make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		pnl, pct := PnL(p, price)

		if reason := e.CloseReason(p, price); reason != "" {
			closed = append(closed, ClosedPosition{
				Position: p.Clone(),
				Reason:   reason,
				Price:    price,
				PnL:      pnl,
			})
			continue
		}

		next := p.Clone()
		next.MarkPrice = price
		next.PnL = pnl
		next.PnLPercentage = pct
		open = append(open, next)
	}
	return open, closed
}

// EvaluateAlerts deactivates every active alert whose condition price meets.
func (e *PositionEvaluator) EvaluateAlerts(price float64, alerts []domain.PriceAlert) (updated []domain.PriceAlert, triggered []AlertTrigger) {
	updated = make([]domain.PriceAlert, len(alerts))
	copy(updated, alerts)

	for i := range updated {
		a := &updated[i]
		if !a.IsActive {
			continue
		}
		hit := (a.Condition == domain.ConditionAbove && price >= a.Price) ||
			(a.Condition == domain.ConditionBelow && price <= a.Price)
		if !hit {
			continue
		}
		a.IsActive = false
		triggered = append(triggered, AlertTrigger{Alert: *a, Price: price})
	}
	return updated, triggered
}
