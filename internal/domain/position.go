package domain

import "time"

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

const (
	ReasonStopLoss   = "Stop loss triggered"
	ReasonTakeProfit = "Take profit triggered"
	ReasonLiquidated = "Liquidation triggered"
	ReasonUserClose  = "Closed by user"
)

// Position represents an open leveraged exposure.
type Position struct {
	ID               string    `json:"id"`
	Pair             string    `json:"pair"`
	Direction        Direction `json:"direction"`
	EntryPrice       float64   `json:"entry_price"`
	MarkPrice        float64   `json:"mark_price"`
	Leverage         int       `json:"leverage"`
	Size             float64   `json:"size"`
	Margin           float64   `json:"margin"`
	LiquidationPrice float64   `json:"liquidation_price"`
	StopLoss         *float64  `json:"stop_loss"`
	TakeProfit       *float64  `json:"take_profit"`
	PnL              float64   `json:"pnl"`
	PnLPercentage    float64   `json:"pnl_percentage"`
	Timestamp        int64     `json:"timestamp"`
}

// Clone copies the position including its optional thresholds.
func (p Position) Clone() Position {
	out := p
	if p.StopLoss != nil {
		v := *p.StopLoss
		out.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		out.TakeProfit = &v
	}
	return out
}

type TradeAction string

const (
	TradeActionOpen  TradeAction = "open"
	TradeActionClose TradeAction = "close"
)

// TradeHistory is an append-only log entry. PnL is only set on close records.
type TradeHistory struct {
	ID        string      `json:"id"`
	Pair      string      `json:"pair"`
	Direction Direction   `json:"direction"`
	Price     float64     `json:"price"`
	Size      float64     `json:"size"`
	Fee       float64     `json:"fee"`
	Timestamp int64       `json:"timestamp"`
	Action    TradeAction `json:"action"`
	PnL       *float64    `json:"pnl,omitempty"`
}

func (t TradeHistory) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}
