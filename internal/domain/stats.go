package domain

// TradingStats summarizes a session's trade history and open exposure.
type TradingStats struct {
	OpenTrades    int     `json:"open_trades"`
	CloseTrades   int     `json:"close_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"` // percent of closes with pnl > 0
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalFees     float64 `json:"total_fees"`
	Volume        float64 `json:"volume"`
	OpenPositions int     `json:"open_positions"`
}
