package usecase

import "github.com/vitos/perp_sim/internal/domain"

// ComputeStats aggregates a trade log and the open positions.
func ComputeStats(history []domain.TradeHistory, positions []domain.Position) domain.TradingStats {
	var st domain.TradingStats
	for _, t := range history {
		st.TotalFees += t.Fee
		st.Volume += t.Size * t.Price

		switch t.Action {
		case domain.TradeActionOpen:
			st.OpenTrades++
		case domain.TradeActionClose:
			st.CloseTrades++
			if t.PnL == nil {
				continue
			}
			st.RealizedPnL += *t.PnL
			if *t.PnL > 0 {
				st.Wins++
			} else {
				st.Losses++
			}
		}
	}
	if st.CloseTrades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.CloseTrades) * 100
	}

	st.OpenPositions = len(positions)
	for _, p := range positions {
		st.UnrealizedPnL += p.PnL
	}
	return st
}
