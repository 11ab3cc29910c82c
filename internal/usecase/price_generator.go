package usecase

import (
	"math"

	"github.com/vitos/perp_sim/internal/domain"
)

const (
	DefaultStartPrice  = 128.2
	DefaultCandleCount = 100

	maxTrendStrength  = 0.02
	minTrendDuration  = 5
	trendDurationSpan = 15 // duration drawn from [5, 20)
	stepNoise         = 0.01
	wickNoise         = 0.005
	minVolume         = 50.0
	volumeSpan        = 100.0
)

// TrendState is the persistent bias of the random walk.
type TrendState struct {
	Direction int     `json:"direction"` // +1 or -1
	Strength  float64 `json:"strength"`  // [0, 0.02)
	Remaining int     `json:"remaining"` // steps until redraw
}

// PriceGenerator produces synthetic OHLCV series with a trending random walk.
type PriceGenerator struct {
	StartPrice float64
}

func NewPriceGenerator(startPrice float64) *PriceGenerator {
	if startPrice <= 0 {
		startPrice = DefaultStartPrice
	}
	return &PriceGenerator{StartPrice: startPrice}
}

// GenerateSeries builds count candles ending one step before nowMs.
func (g *PriceGenerator) GenerateSeries(rng Rand, count int, tf domain.Timeframe, nowMs int64) ([]domain.Candle, TrendState) {
	if count <= 0 {
		return nil, TrendState{}
	}

	step := tf.StepMs()
	series := make([]domain.Candle, 0, count)
	trend := TrendState{}
	lastClose := g.StartPrice

	for i := 0; i < count; i++ {
		var c domain.Candle
		c, trend = g.next(rng, lastClose, trend)
		c.Time = nowMs - int64(count-i)*step
		series = append(series, c)
		lastClose = c.Close
	}
	return series, trend
}

// Step derives the candle that follows prev.
func (g *PriceGenerator) Step(rng Rand, prev domain.Candle, trend TrendState, tf domain.Timeframe) (domain.Candle, TrendState) {
	c, trend := g.next(rng, prev.Close, trend)
	c.Time = prev.Time + tf.StepMs()
	return c, trend
}

// Extend appends one candle and drops the oldest. The input slice is not
// modified.
func (g *PriceGenerator) Extend(rng Rand, series []domain.Candle, trend TrendState, tf domain.Timeframe) ([]domain.Candle, TrendState) {
	if len(series) == 0 {
		return series, trend
	}
	c, trend := g.Step(rng, series[len(series)-1], trend, tf)

	out := make([]domain.Candle, 0, len(series))
	out = append(out, series[1:]...)
	out = append(out, c)
	return out, trend
}

func (g *PriceGenerator) next(rng Rand, open float64, trend TrendState) (domain.Candle, TrendState) {
	if trend.Remaining <= 0 {
		trend.Direction = 1
		if rng.Float64() < 0.5 {
			trend.Direction = -1
		}
		trend.Strength = rng.Float64() * maxTrendStrength
		trend.Remaining = minTrendDuration + rng.IntN(trendDurationSpan)
	}
	trend.Remaining--

	change := uniform(rng, -stepNoise, stepNoise) + float64(trend.Direction)*trend.Strength
	closePrice := open * (1 + change)

	return domain.Candle{
		Open:   open,
		High:   math.Max(open, closePrice) * (1 + rng.Float64()*wickNoise),
		Low:    math.Min(open, closePrice) * (1 - rng.Float64()*wickNoise),
		Close:  closePrice,
		Volume: minVolume + rng.Float64()*volumeSpan,
	}, trend
}
