package usecase

import (
	"strings"

	"github.com/vitos/perp_sim/internal/domain"
)

// MarketState is the synthetic market for one pair and timeframe.
type MarketState struct {
	Pair      domain.TradingPair `json:"pair"`
	Timeframe domain.Timeframe   `json:"timeframe"`
	Candles   []domain.Candle    `json:"candles"`
	Trend     TrendState         `json:"trend"`
	Book      domain.OrderBook   `json:"book"`
	Ticks     int                `json:"ticks"`
}

// Price is the close of the newest candle, or 0 when nothing is loaded.
func (m MarketState) Price() float64 {
	if len(m.Candles) == 0 {
		return 0
	}
	return m.Candles[len(m.Candles)-1].Close
}

// Matches reports whether key names this market's pair.
func (m MarketState) Matches(key string) bool {
	p := m.Pair
	return strings.EqualFold(key, p.Symbol()) || strings.EqualFold(key, p.Name) || strings.EqualFold(key, p.ID)
}

// SessionState is everything one trading session owns.
type SessionState struct {
	Market    MarketState           `json:"market"`
	Positions []domain.Position     `json:"positions"`
	Alerts    []domain.PriceAlert   `json:"alerts"`
	History   []domain.TradeHistory `json:"history"`
}

// Clone returns a copy that shares no mutable memory with s.
func (s SessionState) Clone() SessionState {
	out := s
	out.Market.Candles = append([]domain.Candle(nil), s.Market.Candles...)
	out.Market.Book = s.Market.Book.Clone()
	out.Positions = make([]domain.Position, len(s.Positions))
	for i, p := range s.Positions {
		out.Positions[i] = p.Clone()
	}
	out.Alerts = append([]domain.PriceAlert(nil), s.Alerts...)
	out.History = append([]domain.TradeHistory(nil), s.History...)
	return out
}

// TickEvents describes what one tick changed.
type TickEvents struct {
	Pair      string                `json:"pair"`
	Candle    domain.Candle         `json:"candle"`
	Price     float64               `json:"price"`
	Book      domain.OrderBook      `json:"book"`
	Positions []domain.Position     `json:"positions"`
	Closed    []ClosedPosition      `json:"closed,omitempty"`
	Alerts    []AlertTrigger        `json:"alerts,omitempty"`
	Trades    []domain.TradeHistory `json:"trades,omitempty"`
}

type EngineOptions struct {
	BookDepth          int
	RebuildEvery       int
	EnforceLiquidation bool
	StartPrices        map[string]float64
}

// Engine wires the generator, book synthesizer, and evaluator into one
// deterministic step.
type Engine struct {
	books        *BookSynthesizer
	evaluator    *PositionEvaluator
	executor     *TradeExecutor
	rebuildEvery int
	startPrices  map[string]float64
}

func NewEngine(opts EngineOptions, executor *TradeExecutor) *Engine {
	if opts.RebuildEvery < 1 {
		opts.RebuildEvery = 1
	}
	if executor == nil {
		executor = NewTradeExecutor(nil)
	}
	return &Engine{
		books:        NewBookSynthesizer(opts.BookDepth),
		evaluator:    NewPositionEvaluator(opts.EnforceLiquidation),
		executor:     executor,
		rebuildEvery: opts.RebuildEvery,
		startPrices:  opts.StartPrices,
	}
}

func (e *Engine) Evaluator() *PositionEvaluator { return e.evaluator }

func (e *Engine) Executor() *TradeExecutor { return e.executor }

func (e *Engine) generatorFor(pair domain.TradingPair) *PriceGenerator {
	for _, key := range []string{pair.ID, pair.Name, pair.Symbol()} {
		if p, ok := e.startPrices[key]; ok {
			return NewPriceGenerator(p)
		}
	}
	return NewPriceGenerator(DefaultStartPrice)
}

// LoadMarket generates a fresh series and book for pair.
func (e *Engine) LoadMarket(pair domain.TradingPair, tf domain.Timeframe, count int, seed uint64, nowMs int64) MarketState {
	rng := NewRand(seed)
	candles, trend := e.generatorFor(pair).GenerateSeries(rng, count, tf, nowMs)

	m := MarketState{Pair: pair, Timeframe: tf, Candles: candles, Trend: trend}
	if price := m.Price(); price > 0 {
		m.Book = e.books.Synthesize(rng, pair, price)
	}
	return m
}

// Tick advances state by one candle. It does not modify its input; the
// returned state is new. Positions and alerts for other pairs are carried
// over untouched.
func (e *Engine) Tick(state SessionState, seed uint64) (SessionState, TickEvents, error) {
	if len(state.Market.Candles) == 0 {
		return state, TickEvents{}, domain.ErrMarketNotLoaded
	}

	rng := NewRand(seed)
	next := state.Clone()
	m := &next.Market

	m.Candles, m.Trend = e.generatorFor(m.Pair).Extend(rng, m.Candles, m.Trend, m.Timeframe)
	m.Ticks++
	price := m.Price()

	if m.Ticks%e.rebuildEvery == 0 {
		m.Book = e.books.Synthesize(rng, m.Pair, price)
	} else {
		m.Book = e.books.Jitter(rng, m.Pair, m.Book, price)
	}

	var mine []domain.Position
	for _, p := range next.Positions {
		if m.Matches(p.Pair) {
			mine = append(mine, p)
		}
	}
	open, closed := e.evaluator.EvaluatePositions(price, mine)

	marked := make(map[string]domain.Position, len(open))
	for _, p := range open {
		marked[p.ID] = p
	}
	kept := next.Positions[:0]
	for _, p := range next.Positions {
		if !m.Matches(p.Pair) {
			kept = append(kept, p)
		} else if u, ok := marked[p.ID]; ok {
			kept = append(kept, u)
		}
	}
	next.Positions = kept

	events := TickEvents{
		Pair:      m.Pair.Symbol(),
		Candle:    m.Candles[len(m.Candles)-1],
		Price:     price,
		Book:      m.Book.Clone(),
		Positions: append([]domain.Position(nil), open...),
		Closed:    closed,
	}

	for _, c := range closed {
		record := e.executor.Close(c.Position, c.Price, c.PnL)
		next.History = append(next.History, record)
		events.Trades = append(events.Trades, record)
	}

	var alertIdx []int
	var candidates []domain.PriceAlert
	for i, a := range next.Alerts {
		if a.Pair == "" || m.Matches(a.Pair) {
			alertIdx = append(alertIdx, i)
			candidates = append(candidates, a)
		}
	}
	updated, triggered := e.evaluator.EvaluateAlerts(price, candidates)
	for j, i := range alertIdx {
		next.Alerts[i] = updated[j]
	}
	events.Alerts = triggered

	return next, events, nil
}
