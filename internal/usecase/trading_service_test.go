package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/perp_sim/internal/domain"
	"go.uber.org/zap"
)

func newTestTrading(t *testing.T, connect bool) (*TradingService, *memRepository) {
	t.Helper()
	ctx := context.Background()

	repo := &memRepository{}
	wallet := newTestWallet(repo)
	if connect {
		_, err := wallet.Connect(ctx, domain.WalletSui)
		require.NoError(t, err)
	}

	engine := NewEngine(EngineOptions{RebuildEvery: 3}, nil)
	svc := NewTradingService(engine, repo, wallet, zap.NewNop(), TradingConfig{Seed: 11})
	_, err := svc.LoadPair(ctx, "sui-usdt", "1h")
	require.NoError(t, err)
	return svc, repo
}

func longOrder(amount float64) OpenRequest {
	return OpenRequest{Direction: domain.DirectionLong, Amount: amount, Leverage: 5}
}

func TestLoadPair(t *testing.T) {
	svc, _ := newTestTrading(t, false)

	m, err := svc.LoadPair(context.Background(), "BTC/USDT", "15m")
	require.NoError(t, err)
	assert.Equal(t, "btc-usdt", m.Pair.ID)
	assert.Equal(t, domain.Timeframe15m, m.Timeframe)
	assert.Len(t, m.Candles, DefaultCandleCount)
	assert.Equal(t, m.Price(), svc.CurrentPrice())

	_, err = svc.LoadPair(context.Background(), "doge-usdt", "1h")
	assert.ErrorIs(t, err, domain.ErrUnknownPair)
	assert.Equal(t, "btc-usdt", svc.Market().Pair.ID, "failed load keeps the current market")
}

func TestOpenPosition_RequiresConnectedWallet(t *testing.T) {
	svc, _ := newTestTrading(t, false)

	_, err := svc.OpenPosition(context.Background(), longOrder(1))
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)
	assert.Empty(t, svc.Positions())
}

func TestOpenPosition_InvalidAmountLeavesStateUntouched(t *testing.T) {
	svc, repo := newTestTrading(t, true)

	// SUI/USDT has a minimum order size of 0.01.
	for _, amount := range []float64{0, -1, 0.005} {
		_, err := svc.OpenPosition(context.Background(), longOrder(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	assert.Empty(t, svc.Positions())
	assert.Empty(t, svc.History())
	assert.Empty(t, repo.trades)
}

func TestOpenPosition_PersistFailureLeavesStateUntouched(t *testing.T) {
	svc, repo := newTestTrading(t, true)
	repo.failWrites = assert.AnError

	_, err := svc.OpenPosition(context.Background(), longOrder(1))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, svc.Positions())
	assert.Empty(t, svc.History())
}

func TestOpenAndClosePosition(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestTrading(t, true)
	price := svc.CurrentPrice()

	pos, err := svc.OpenPosition(ctx, longOrder(3))
	require.NoError(t, err)
	assert.Equal(t, price, pos.EntryPrice)
	assert.Equal(t, "SUIUSDT", pos.Pair)
	assert.InDelta(t, price*0.82, pos.LiquidationPrice, 1e-9)

	require.Len(t, svc.Positions(), 1)
	require.Len(t, repo.positions, 1)
	history := svc.History()
	require.Len(t, history, 1)
	assert.InDelta(t, 3*FeeRate, history[0].Fee, 1e-12)

	record, err := svc.ClosePosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeActionClose, record.Action)
	assert.Equal(t, domain.DirectionShort, record.Direction)
	assert.Equal(t, price, record.Price)
	require.NotNil(t, record.PnL)
	assert.InDelta(t, 0, *record.PnL, 1e-9)

	assert.Empty(t, svc.Positions())
	assert.Empty(t, repo.positions)
	assert.Len(t, svc.History(), 2)
	assert.Len(t, repo.trades, 2)

	_, err = svc.ClosePosition(ctx, pos.ID)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	st := svc.Stats()
	assert.Equal(t, 1, st.OpenTrades)
	assert.Equal(t, 1, st.CloseTrades)
	assert.InDelta(t, 6*FeeRate, st.TotalFees, 1e-12)
}

func TestUpdateRiskLimits_TriggersOnNextTick(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestTrading(t, true)

	pos, err := svc.OpenPosition(ctx, longOrder(1))
	require.NoError(t, err)

	_, err = svc.UpdateRiskLimits(ctx, pos.ID, fp(-1), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, err = svc.UpdateRiskLimits(ctx, "missing", nil, nil)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	updated, err := svc.UpdateRiskLimits(ctx, pos.ID, fp(1e9), fp(2e9))
	require.NoError(t, err)
	require.NotNil(t, updated.StopLoss)
	assert.Equal(t, 1e9, *updated.StopLoss)
	require.NotNil(t, repo.positions[0].StopLoss)

	events, err := svc.Advance(ctx)
	require.NoError(t, err)
	require.Len(t, events.Closed, 1)
	assert.Equal(t, domain.ReasonStopLoss, events.Closed[0].Reason)

	assert.Empty(t, svc.Positions())
	assert.Empty(t, repo.positions)
	assert.Len(t, svc.History(), 2)
	assert.Len(t, repo.trades, 2)
}

func TestAdvance_MarksOpenPositions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestTrading(t, true)

	pos, err := svc.OpenPosition(ctx, longOrder(2))
	require.NoError(t, err)

	events, err := svc.Advance(ctx)
	require.NoError(t, err)

	positions := svc.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, events.Price, positions[0].MarkPrice)
	assert.InDelta(t, (events.Price-pos.EntryPrice)*2, positions[0].PnL, 1e-9)
	assert.Equal(t, events.Price, svc.CurrentPrice())
}

func TestAdvance_PanicKeepsState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestTrading(t, true)
	_, err := svc.OpenPosition(ctx, longOrder(1))
	require.NoError(t, err)

	before := svc.Snapshot()
	svc.tick = func(SessionState, uint64) (SessionState, TickEvents, error) {
		panic("generator exploded")
	}

	_, err = svc.Advance(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator exploded")
	assert.Equal(t, before, svc.Snapshot())

	// the service still works afterwards
	svc.tick = svc.engine.Tick
	_, err = svc.Advance(ctx)
	assert.NoError(t, err)
}

func TestAdvance_ErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestTrading(t, false)
	before := svc.Snapshot()

	svc.tick = func(s SessionState, _ uint64) (SessionState, TickEvents, error) {
		s.Market.Candles = nil
		return s, TickEvents{}, assert.AnError
	}

	_, err := svc.Advance(ctx)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, svc.Snapshot())
}

func TestAdvance_PublishesToSubscribers(t *testing.T) {
	svc, _ := newTestTrading(t, false)

	ch, unsubscribe := svc.Subscribe()
	events, err := svc.Advance(context.Background())
	require.NoError(t, err)

	got := <-ch
	assert.Equal(t, events.Price, got.Price)
	assert.Equal(t, events.Candle, got.Candle)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	_, err = svc.Advance(context.Background())
	assert.NoError(t, err)
}

func TestAdvance_SlowSubscriberDoesNotBlock(t *testing.T) {
	svc, _ := newTestTrading(t, false)
	_, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		_, err := svc.Advance(context.Background())
		require.NoError(t, err)
	}
}

func TestAlerts_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestTrading(t, false)

	_, err := svc.AddAlert(ctx, "", 0, domain.ConditionAbove)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, err = svc.AddAlert(ctx, "", 1, "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	alert, err := svc.AddAlert(ctx, "", 1e9, domain.ConditionAbove)
	require.NoError(t, err)
	assert.Equal(t, "SUI/USDT", alert.Pair)
	assert.True(t, alert.IsActive)
	require.Len(t, repo.alerts, 1)

	events, err := svc.Advance(ctx)
	require.NoError(t, err)
	assert.Empty(t, events.Alerts)

	disarmed, err := svc.ToggleAlert(ctx, alert.ID, false)
	require.NoError(t, err)
	assert.False(t, disarmed.IsActive)
	assert.False(t, repo.alerts[0].IsActive)

	_, err = svc.ToggleAlert(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)

	require.NoError(t, svc.DeleteAlert(ctx, alert.ID))
	assert.Empty(t, svc.Alerts())
	assert.Empty(t, repo.alerts)
	assert.ErrorIs(t, svc.DeleteAlert(ctx, alert.ID), domain.ErrAlertNotFound)
}

func TestAlerts_FireOnceOnTick(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestTrading(t, false)

	// Parked on another pair so it is only evaluated after switching markets.
	alert, err := svc.AddAlert(ctx, "BTC/USDT", 0.0001, domain.ConditionAbove)
	require.NoError(t, err)
	assert.True(t, alert.IsActive)

	events, err := svc.Advance(ctx)
	require.NoError(t, err)
	assert.Empty(t, events.Alerts)

	_, err = svc.LoadPair(ctx, "btc-usdt", "1h")
	require.NoError(t, err)

	events, err = svc.Advance(ctx)
	require.NoError(t, err)
	require.Len(t, events.Alerts, 1)
	assert.Equal(t, alert.ID, events.Alerts[0].Alert.ID)
	assert.False(t, svc.Alerts()[0].IsActive)
	assert.False(t, repo.alerts[0].IsActive)

	events, err = svc.Advance(ctx)
	require.NoError(t, err)
	assert.Empty(t, events.Alerts, "alerts fire once")
}

func TestAlerts_ConditionAlreadyMetFiresOnArm(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestTrading(t, false)

	alert, err := svc.AddAlert(ctx, "", 0.0001, domain.ConditionAbove)
	require.NoError(t, err)
	assert.False(t, alert.IsActive, "price is already above the threshold")
	require.Len(t, repo.alerts, 1)
	assert.False(t, repo.alerts[0].IsActive)

	events, err := svc.Advance(ctx)
	require.NoError(t, err)
	assert.Empty(t, events.Alerts)

	rearmed, err := svc.ToggleAlert(ctx, alert.ID, true)
	require.NoError(t, err)
	assert.False(t, rearmed.IsActive, "re-arming a met alert fires it again")

	below, err := svc.AddAlert(ctx, "", 0.0001, domain.ConditionBelow)
	require.NoError(t, err)
	assert.True(t, below.IsActive)

	other, err := svc.AddAlert(ctx, "ETH/USDT", 0.0001, domain.ConditionAbove)
	require.NoError(t, err)
	assert.True(t, other.IsActive, "alerts for other pairs wait for their market")
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	sl := 90.0
	repo := &memRepository{
		positions: []domain.Position{{ID: "pos-1", Pair: "SUIUSDT", Direction: domain.DirectionLong, EntryPrice: 100, Leverage: 2, Size: 1, StopLoss: &sl}},
		alerts:    []domain.PriceAlert{{ID: "alert-1", Pair: "SUI/USDT", Price: 150, Condition: domain.ConditionAbove, IsActive: true}},
		trades:    []domain.TradeHistory{{ID: "trade-1", Action: domain.TradeActionOpen, Size: 1, Price: 100, Fee: 0.0006}},
	}

	svc := NewTradingService(NewEngine(EngineOptions{}, nil), repo, nil, zap.NewNop(), TradingConfig{Seed: 1})
	require.NoError(t, svc.Restore(ctx))

	assert.Equal(t, repo.positions, svc.Positions())
	assert.Equal(t, repo.alerts, svc.Alerts())
	assert.Equal(t, repo.trades, svc.History())
}

func TestQueries_ReturnCopies(t *testing.T) {
	svc, _ := newTestTrading(t, false)

	candles := svc.Candles()
	candles[0].Close = -1
	assert.NotEqual(t, -1.0, svc.Candles()[0].Close)

	book := svc.OrderBook()
	book.Bids[0].Price = -1
	assert.NotEqual(t, -1.0, svc.OrderBook().Bids[0].Price)

	assert.Len(t, svc.Pairs(), len(domain.DefaultPairs()))
}

func fp(v float64) *float64 { return &v }
