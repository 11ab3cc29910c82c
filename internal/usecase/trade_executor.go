package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/perp_sim/internal/domain"
)

// MaxLeverage caps OpenRequest.Leverage.
const MaxLeverage = 100

// OpenRequest is a market order against the simulated price.
type OpenRequest struct {
	Direction  domain.Direction `json:"direction"`
	Amount     float64          `json:"amount"`
	Leverage   int              `json:"leverage"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
}

func (r OpenRequest) Validate() error {
	if !r.Direction.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDirection, r.Direction)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", domain.ErrInvalidAmount)
	}
	if r.Leverage < 1 || r.Leverage > MaxLeverage {
		return fmt.Errorf("%w: leverage must be between 1 and %d", domain.ErrInvalidLeverage, MaxLeverage)
	}
	if r.StopLoss != nil && *r.StopLoss <= 0 {
		return fmt.Errorf("%w: stop loss must be positive", domain.ErrInvalidPrice)
	}
	if r.TakeProfit != nil && *r.TakeProfit <= 0 {
		return fmt.Errorf("%w: take profit must be positive", domain.ErrInvalidPrice)
	}
	return nil
}

// TradeExecutor turns orders into positions and trade-history records.
type TradeExecutor struct {
	timeNow func() time.Time
}

func NewTradeExecutor(timeNow func() time.Time) *TradeExecutor {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &TradeExecutor{timeNow: timeNow}
}

// Open fills req at price and returns the new position and its open record.
func (e *TradeExecutor) Open(pair string, price float64, req OpenRequest) (domain.Position, domain.TradeHistory, error) {
	if err := req.Validate(); err != nil {
		return domain.Position{}, domain.TradeHistory{}, err
	}
	if price <= 0 {
		return domain.Position{}, domain.TradeHistory{}, fmt.Errorf("%w: no market price", domain.ErrInvalidPrice)
	}

	now := e.timeNow().UnixMilli()
	pos := domain.Position{
		ID:               "pos-" + uuid.NewString(),
		Pair:             pair,
		Direction:        req.Direction,
		EntryPrice:       price,
		MarkPrice:        price,
		Leverage:         req.Leverage,
		Size:             req.Amount,
		Margin:           req.Amount / float64(req.Leverage),
		LiquidationPrice: LiquidationPrice(req.Direction, price, req.Leverage),
		StopLoss:         copyFloat(req.StopLoss),
		TakeProfit:       copyFloat(req.TakeProfit),
		Timestamp:        now,
	}

	record := domain.TradeHistory{
		ID:        "trade-" + uuid.NewString(),
		Pair:      pair,
		Direction: req.Direction,
		Price:     price,
		Size:      req.Amount,
		Fee:       TradeFee(req.Amount),
		Timestamp: now,
		Action:    domain.TradeActionOpen,
	}
	return pos, record, nil
}

// Close builds the close record for p at price. The record's direction is
// the opposite of the position's.
func (e *TradeExecutor) Close(p domain.Position, price, pnl float64) domain.TradeHistory {
	return domain.TradeHistory{
		ID:        "trade-" + uuid.NewString(),
		Pair:      p.Pair,
		Direction: p.Direction.Opposite(),
		Price:     price,
		Size:      p.Size,
		Fee:       TradeFee(p.Size),
		Timestamp: e.timeNow().UnixMilli(),
		Action:    domain.TradeActionClose,
		PnL:       &pnl,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func newAlertID() string {
	return "alert-" + uuid.NewString()
}
