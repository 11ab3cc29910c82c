package domain

import "time"

type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Step returns the candle spacing. Unknown timeframes fall back to one hour.
func (tf Timeframe) Step() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// StepMs is Step in epoch milliseconds.
func (tf Timeframe) StepMs() int64 {
	return tf.Step().Milliseconds()
}

func ParseTimeframe(s string) Timeframe {
	switch tf := Timeframe(s); tf {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return tf
	}
	return Timeframe1h
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type OrderBookEntry struct {
	Price float64 `json:"price"`
	Total float64 `json:"total"`
}

// OrderBook holds bids sorted descending and asks sorted ascending.
type OrderBook struct {
	Pair string           `json:"pair"`
	Bids []OrderBookEntry `json:"bids"`
	Asks []OrderBookEntry `json:"asks"`
}

func (b OrderBook) BestBid() (OrderBookEntry, bool) {
	if len(b.Bids) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Bids[0], true
}

func (b OrderBook) BestAsk() (OrderBookEntry, bool) {
	if len(b.Asks) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Asks[0], true
}

// Clone returns a deep copy of the book.
func (b OrderBook) Clone() OrderBook {
	out := OrderBook{Pair: b.Pair}
	out.Bids = append([]OrderBookEntry(nil), b.Bids...)
	out.Asks = append([]OrderBookEntry(nil), b.Asks...)
	return out
}
