package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/perp_sim/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWalletBlob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LoadWalletBlob(ctx)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	require.NoError(t, store.SaveWalletBlob(ctx, []byte(`{"address":"0x1"}`)))
	require.NoError(t, store.SaveWalletBlob(ctx, []byte(`{"address":"0x2"}`)))

	blob, err := store.LoadWalletBlob(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0x2"}`, string(blob))

	require.NoError(t, store.DeleteWallet(ctx))
	_, err = store.LoadWalletBlob(ctx)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestFaucetClaim(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	last, err := store.GetLastFaucetClaim(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.UnixMilli(1_760_000_123_456)
	require.NoError(t, store.SetLastFaucetClaim(ctx, at))

	last, err = store.GetLastFaucetClaim(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(last))
}

func TestPositions_ReplaceAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sl := 95.5
	positions := []domain.Position{
		{ID: "pos-b", Pair: "SUIUSDT", Direction: domain.DirectionLong, EntryPrice: 100, MarkPrice: 101, Leverage: 5,
			Size: 2, Margin: 0.4, LiquidationPrice: 82, StopLoss: &sl, PnL: 2, PnLPercentage: 5, Timestamp: 1},
		{ID: "pos-a", Pair: "BTCUSDT", Direction: domain.DirectionShort, EntryPrice: 60000, MarkPrice: 60000, Leverage: 10,
			Size: 0.1, Margin: 0.01, LiquidationPrice: 65400, Timestamp: 2},
	}
	require.NoError(t, store.ReplacePositions(ctx, positions))

	got, err := store.ListPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, positions, got, "order and nullable thresholds survive a round trip")

	require.NoError(t, store.ReplacePositions(ctx, positions[1:]))
	got, err = store.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pos-a", got[0].ID)

	require.NoError(t, store.ReplacePositions(ctx, nil))
	got, err = store.ListPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrades_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		trade := domain.TradeHistory{
			ID:        "trade-" + string(rune('a'+i)),
			Pair:      "SUIUSDT",
			Direction: domain.DirectionLong,
			Price:     100 + float64(i),
			Size:      1,
			Fee:       0.0006,
			Timestamp: int64(i),
			Action:    domain.TradeActionOpen,
		}
		if i%2 == 1 {
			pnl := float64(i)
			trade.Action = domain.TradeActionClose
			trade.Direction = domain.DirectionShort
			trade.PnL = &pnl
		}
		require.NoError(t, store.AppendTrade(ctx, trade))
	}

	all, err := store.ListTrades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "trade-a", all[0].ID)
	assert.Equal(t, "trade-e", all[4].ID)
	assert.Nil(t, all[0].PnL)
	require.NotNil(t, all[1].PnL)
	assert.Equal(t, 1.0, *all[1].PnL)
	assert.Equal(t, domain.TradeActionClose, all[1].Action)

	latest, err := store.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "trade-d", latest[0].ID)
	assert.Equal(t, "trade-e", latest[1].ID)

	assert.Error(t, store.AppendTrade(ctx, all[0]), "trade ids are unique")
}

func TestAlerts_ReplaceAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	alerts := []domain.PriceAlert{
		{ID: "alert-2", Pair: "SUI/USDT", Price: 130, Condition: domain.ConditionAbove, IsActive: true, CreatedAt: created},
		{ID: "alert-1", Pair: "SUI/USDT", Price: 120, Condition: domain.ConditionBelow, IsActive: false, CreatedAt: created.Add(time.Minute)},
	}
	require.NoError(t, store.ReplaceAlerts(ctx, alerts))

	got, err := store.ListAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range alerts {
		assert.Equal(t, alerts[i].ID, got[i].ID)
		assert.Equal(t, alerts[i].Condition, got[i].Condition)
		assert.Equal(t, alerts[i].IsActive, got[i].IsActive)
		assert.Equal(t, alerts[i].Price, got[i].Price)
		assert.True(t, alerts[i].CreatedAt.Equal(got[i].CreatedAt))
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sim.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveWalletBlob(ctx, []byte(`{}`)))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	blob, err := store.LoadWalletBlob(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(blob))
}
