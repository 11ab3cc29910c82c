package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vitos/perp_sim/internal/domain"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

type TradingConfig struct {
	Pairs       []domain.TradingPair
	CandleCount int
	Seed        uint64
}

// TradingService hosts one trading session. Every mutation, including a
// tick, runs under mu, so a tick's generate/book/evaluate steps never
// interleave with user actions.
type TradingService struct {
	engine  *Engine
	repo    domain.SessionRepository
	wallet  *WalletService
	logger  *zap.Logger
	timeNow func() time.Time
	tick    func(SessionState, uint64) (SessionState, TickEvents, error)

	pairs       []domain.TradingPair
	candleCount int

	mu    sync.Mutex
	seeds *rand.Rand
	state SessionState

	subMu   sync.Mutex
	subs    map[int]chan TickEvents
	nextSub int
}

func NewTradingService(engine *Engine, repo domain.SessionRepository, wallet *WalletService, logger *zap.Logger, cfg TradingConfig) *TradingService {
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = domain.DefaultPairs()
	}
	if cfg.CandleCount <= 0 {
		cfg.CandleCount = DefaultCandleCount
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &TradingService{
		engine:      engine,
		repo:        repo,
		wallet:      wallet,
		logger:      logger,
		timeNow:     time.Now,
		tick:        engine.Tick,
		pairs:       cfg.Pairs,
		candleCount: cfg.CandleCount,
		seeds:       NewRand(seed),
		subs:        make(map[int]chan TickEvents),
	}
}

// Restore reloads positions, alerts and trade history from the repository.
func (s *TradingService) Restore(ctx context.Context) error {
	positions, err := s.repo.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	alerts, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	history, err := s.repo.ListTrades(ctx, 0)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	s.mu.Lock()
	s.state.Positions = positions
	s.state.Alerts = alerts
	s.state.History = history
	s.mu.Unlock()

	s.logger.Info("Restored session",
		zap.Int("positions", len(positions)),
		zap.Int("alerts", len(alerts)),
		zap.Int("trades", len(history)))
	return nil
}

func (s *TradingService) Pairs() []domain.TradingPair {
	return append([]domain.TradingPair(nil), s.pairs...)
}

// LoadPair regenerates the candle series and order book for a pair and
// timeframe.
func (s *TradingService) LoadPair(ctx context.Context, pairKey, timeframe string) (MarketState, error) {
	pair, err := domain.FindPair(s.pairs, pairKey)
	if err != nil {
		return MarketState{}, fmt.Errorf("%w: %q", err, pairKey)
	}
	tf := domain.ParseTimeframe(timeframe)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Market = s.engine.LoadMarket(pair, tf, s.candleCount, s.seeds.Uint64(), s.timeNow().UnixMilli())
	s.logger.Info("Loaded market",
		zap.String("pair", pair.Name),
		zap.String("timeframe", string(tf)),
		zap.Float64("price", s.state.Market.Price()))
	return s.snapshotMarket(), nil
}

// Advance runs one tick. On any failure, including a panic inside the
// engine, the previous state is kept.
func (s *TradingService) Advance(ctx context.Context) (events TickEvents, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
			s.logger.Error("Tick failed, state unchanged", zap.Any("panic", r))
		}
	}()

	next, events, err := s.tick(s.state, s.seeds.Uint64())
	if err != nil {
		return TickEvents{}, err
	}
	alertsChanged := len(events.Alerts) > 0
	s.state = next

	s.persistTick(ctx, events, alertsChanged)

	for _, c := range events.Closed {
		s.logger.Info("Position closed",
			zap.String("id", c.Position.ID),
			zap.String("reason", c.Reason),
			zap.Float64("price", c.Price),
			zap.Float64("pnl", c.PnL))
	}
	for _, a := range events.Alerts {
		s.logger.Info("Price alert triggered",
			zap.String("id", a.Alert.ID),
			zap.String("pair", a.Alert.Pair),
			zap.String("condition", string(a.Alert.Condition)),
			zap.Float64("threshold", a.Alert.Price),
			zap.Float64("price", a.Price))
	}

	s.publish(events)
	return events, nil
}

// persistTick mirrors a tick to the repository. The mirror is best effort;
// failures are logged and the in-memory session stays authoritative.
func (s *TradingService) persistTick(ctx context.Context, events TickEvents, alertsChanged bool) {
	if err := s.repo.ReplacePositions(ctx, s.state.Positions); err != nil {
		s.logger.Error("Failed to persist positions", zap.Error(err))
	}
	for _, t := range events.Trades {
		if err := s.repo.AppendTrade(ctx, t); err != nil {
			s.logger.Error("Failed to persist trade", zap.String("id", t.ID), zap.Error(err))
		}
	}
	if alertsChanged {
		if err := s.repo.ReplaceAlerts(ctx, s.state.Alerts); err != nil {
			s.logger.Error("Failed to persist alerts", zap.Error(err))
		}
	}
}

// Run advances the market every interval until ctx is done.
func (s *TradingService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Advance(ctx); err != nil {
				s.logger.Error("Error processing tick", zap.Error(err))
			}
		}
	}
}

// OpenPosition executes a market order at the current price.
func (s *TradingService) OpenPosition(ctx context.Context, req OpenRequest) (domain.Position, error) {
	if s.wallet != nil && !s.wallet.Connected() {
		return domain.Position{}, domain.ErrWalletNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.state.Market
	if len(m.Candles) == 0 {
		return domain.Position{}, domain.ErrMarketNotLoaded
	}

	if req.Amount > 0 && req.Amount < m.Pair.MinOrderSize {
		return domain.Position{}, fmt.Errorf("%w: minimum order size for %s is %g", domain.ErrInvalidAmount, m.Pair.Name, m.Pair.MinOrderSize)
	}

	pos, record, err := s.engine.Executor().Open(m.Pair.Symbol(), m.Price(), req)
	if err != nil {
		return domain.Position{}, err
	}

	positions := append(clonePositions(s.state.Positions), pos)
	if err := s.repo.ReplacePositions(ctx, positions); err != nil {
		return domain.Position{}, fmt.Errorf("persist positions: %w", err)
	}
	if err := s.repo.AppendTrade(ctx, record); err != nil {
		return domain.Position{}, fmt.Errorf("persist trade: %w", err)
	}

	s.state.Positions = positions
	s.state.History = append(s.state.History, record)
	s.logger.Info("Trade executed",
		zap.String("id", pos.ID),
		zap.String("direction", string(pos.Direction)),
		zap.Float64("size", pos.Size),
		zap.Int("leverage", pos.Leverage),
		zap.Float64("entry", pos.EntryPrice))
	return pos.Clone(), nil
}

// ClosePosition closes a position at the current price on user request.
func (s *TradingService) ClosePosition(ctx context.Context, id string) (domain.TradeHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPosition(id)
	if idx < 0 {
		return domain.TradeHistory{}, fmt.Errorf("%w: %s", domain.ErrPositionNotFound, id)
	}
	pos := s.state.Positions[idx]

	price := pos.MarkPrice
	if s.state.Market.Matches(pos.Pair) && s.state.Market.Price() > 0 {
		price = s.state.Market.Price()
	}
	pnl, _ := PnL(pos, price)
	record := s.engine.Executor().Close(pos, price, pnl)

	positions := make([]domain.Position, 0, len(s.state.Positions)-1)
	for i, p := range s.state.Positions {
		if i != idx {
			positions = append(positions, p.Clone())
		}
	}
	if err := s.repo.ReplacePositions(ctx, positions); err != nil {
		return domain.TradeHistory{}, fmt.Errorf("persist positions: %w", err)
	}
	if err := s.repo.AppendTrade(ctx, record); err != nil {
		return domain.TradeHistory{}, fmt.Errorf("persist trade: %w", err)
	}

	s.state.Positions = positions
	s.state.History = append(s.state.History, record)
	s.logger.Info("Position closed",
		zap.String("id", id),
		zap.String("reason", domain.ReasonUserClose),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl))
	return record, nil
}

// UpdateRiskLimits replaces a position's stop loss and take profit. A nil
// value clears the threshold.
func (s *TradingService) UpdateRiskLimits(ctx context.Context, id string, stopLoss, takeProfit *float64) (domain.Position, error) {
	if stopLoss != nil && *stopLoss <= 0 {
		return domain.Position{}, fmt.Errorf("%w: stop loss must be positive", domain.ErrInvalidPrice)
	}
	if takeProfit != nil && *takeProfit <= 0 {
		return domain.Position{}, fmt.Errorf("%w: take profit must be positive", domain.ErrInvalidPrice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPosition(id)
	if idx < 0 {
		return domain.Position{}, fmt.Errorf("%w: %s", domain.ErrPositionNotFound, id)
	}

	positions := clonePositions(s.state.Positions)
	positions[idx].StopLoss = copyFloat(stopLoss)
	positions[idx].TakeProfit = copyFloat(takeProfit)
	if err := s.repo.ReplacePositions(ctx, positions); err != nil {
		return domain.Position{}, fmt.Errorf("persist positions: %w", err)
	}
	s.state.Positions = positions
	return positions[idx].Clone(), nil
}

// AddAlert registers a one-shot price alert. An empty pair means the
// currently loaded market.
func (s *TradingService) AddAlert(ctx context.Context, pair string, price float64, condition domain.AlertCondition) (domain.PriceAlert, error) {
	if price <= 0 {
		return domain.PriceAlert{}, fmt.Errorf("%w: alert price must be positive", domain.ErrInvalidPrice)
	}
	if !condition.Valid() {
		return domain.PriceAlert{}, fmt.Errorf("%w: %q", domain.ErrInvalidCondition, condition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pair == "" {
		pair = s.state.Market.Pair.Name
	}
	alert := domain.PriceAlert{
		ID:        newAlertID(),
		Pair:      pair,
		Price:     price,
		Condition: condition,
		IsActive:  true,
		CreatedAt: s.timeNow(),
	}
	alert = s.checkAlert(alert)

	alerts := append(append([]domain.PriceAlert(nil), s.state.Alerts...), alert)
	if err := s.repo.ReplaceAlerts(ctx, alerts); err != nil {
		return domain.PriceAlert{}, fmt.Errorf("persist alerts: %w", err)
	}
	s.state.Alerts = alerts
	return alert, nil
}

func (s *TradingService) DeleteAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := make([]domain.PriceAlert, 0, len(s.state.Alerts))
	found := false
	for _, a := range s.state.Alerts {
		if a.ID == id {
			found = true
			continue
		}
		alerts = append(alerts, a)
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if err := s.repo.ReplaceAlerts(ctx, alerts); err != nil {
		return fmt.Errorf("persist alerts: %w", err)
	}
	s.state.Alerts = alerts
	return nil
}

// ToggleAlert re-arms or disarms an alert.
func (s *TradingService) ToggleAlert(ctx context.Context, id string, active bool) (domain.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := append([]domain.PriceAlert(nil), s.state.Alerts...)
	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		alerts[i].IsActive = active
		alerts[i] = s.checkAlert(alerts[i])
		if err := s.repo.ReplaceAlerts(ctx, alerts); err != nil {
			return domain.PriceAlert{}, fmt.Errorf("persist alerts: %w", err)
		}
		s.state.Alerts = alerts
		return alerts[i], nil
	}
	return domain.PriceAlert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
}

// Snapshot returns a deep copy of the whole session.
func (s *TradingService) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *TradingService) Market() MarketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotMarket()
}

func (s *TradingService) CurrentPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Market.Price()
}

func (s *TradingService) Candles() []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Candle(nil), s.state.Market.Candles...)
}

func (s *TradingService) OrderBook() domain.OrderBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Market.Book.Clone()
}

func (s *TradingService) Positions() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePositions(s.state.Positions)
}

func (s *TradingService) Alerts() []domain.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PriceAlert(nil), s.state.Alerts...)
}

func (s *TradingService) History() []domain.TradeHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TradeHistory(nil), s.state.History...)
}

func (s *TradingService) Stats() domain.TradingStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeStats(s.state.History, s.state.Positions)
}

// Subscribe registers a listener for tick events. Slow listeners miss
// events instead of stalling the tick. Call the returned func to stop.
func (s *TradingService) Subscribe() (<-chan TickEvents, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan TickEvents, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *TradingService) publish(events TickEvents) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- events:
		default:
			s.logger.Debug("Dropping tick for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

func (s *TradingService) snapshotMarket() MarketState {
	m := s.state.Market
	m.Candles = append([]domain.Candle(nil), m.Candles...)
	m.Book = m.Book.Clone()
	return m
}

// checkAlert fires a newly armed alert right away when the current price
// already meets its condition. Caller holds mu.
func (s *TradingService) checkAlert(a domain.PriceAlert) domain.PriceAlert {
	m := s.state.Market
	price := m.Price()
	if price <= 0 || (a.Pair != "" && !m.Matches(a.Pair)) {
		return a
	}
	updated, triggered := s.engine.Evaluator().EvaluateAlerts(price, []domain.PriceAlert{a})
	for _, t := range triggered {
		s.logger.Info("Price alert triggered",
			zap.String("id", t.Alert.ID),
			zap.String("pair", t.Alert.Pair),
			zap.String("condition", string(t.Alert.Condition)),
			zap.Float64("threshold", t.Alert.Price),
			zap.Float64("price", t.Price))
	}
	return updated[0]
}

func (s *TradingService) findPosition(id string) int {
	for i, p := range s.state.Positions {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func clonePositions(in []domain.Position) []domain.Position {
	out := make([]domain.Position, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
