package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/perp_sim/internal/domain"
	"github.com/vitos/perp_sim/internal/usecase"
)

func TestComputeStats(t *testing.T) {
	history := []domain.TradeHistory{
		{Action: domain.TradeActionOpen, Price: 100, Size: 1, Fee: 0.0006},
		{Action: domain.TradeActionClose, Price: 110, Size: 1, Fee: 0.0006, PnL: ptr(10)},
		{Action: domain.TradeActionOpen, Price: 100, Size: 2, Fee: 0.0012},
		{Action: domain.TradeActionClose, Price: 95, Size: 2, Fee: 0.0012, PnL: ptr(-10)},
		{Action: domain.TradeActionOpen, Price: 50, Size: 1, Fee: 0.0006},
	}
	positions := []domain.Position{{PnL: 2.5}}

	st := usecase.ComputeStats(history, positions)

	assert.Equal(t, 3, st.OpenTrades)
	assert.Equal(t, 2, st.CloseTrades)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 50.0, st.WinRate, 1e-9)
	assert.InDelta(t, 0.0, st.RealizedPnL, 1e-9)
	assert.InDelta(t, 2.5, st.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.0042, st.TotalFees, 1e-12)
	assert.InDelta(t, 100+110+200+190+50, st.Volume, 1e-9)
	assert.Equal(t, 1, st.OpenPositions)
}

func TestComputeStats_Empty(t *testing.T) {
	st := usecase.ComputeStats(nil, nil)
	assert.Equal(t, domain.TradingStats{}, st)
}
