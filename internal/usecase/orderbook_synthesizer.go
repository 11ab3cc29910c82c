package usecase

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vitos/perp_sim/internal/domain"
)

const (
	DefaultBookDepth = 12
	MinBookDepth     = 10
	MaxBookDepth     = 12
	DefaultPrecision = 2
	maxBookPrecision = 12

	minOffsetPct   = 0.001
	maxOffsetPct   = 0.05
	minLevelTotal  = 1.0
	levelTotalSpan = 10.0
	jitterPrice    = 0.001 // ±0.05%
	jitterTotal    = 0.05  // ±2.5%
	totalPrecision = 2
)

// BookSynthesizer derives a two-sided depth ladder from a reference price.
type BookSynthesizer struct {
	Depth int
}

func NewBookSynthesizer(depth int) *BookSynthesizer {
	switch {
	case depth == 0:
		depth = DefaultBookDepth
	case depth < MinBookDepth:
		depth = MinBookDepth
	case depth > MaxBookDepth:
		depth = MaxBookDepth
	}
	return &BookSynthesizer{Depth: depth}
}

// Synthesize builds a fresh book around referencePrice. Prices are snapped
// to the pair's precision, or a finer one when referencePrice is too small
// to fit the bid ladder at that precision.
func (s *BookSynthesizer) Synthesize(rng Rand, pair domain.TradingPair, referencePrice float64) domain.OrderBook {
	bids := make([]domain.OrderBookEntry, 0, s.Depth)
	asks := make([]domain.OrderBookEntry, 0, s.Depth)

	for i := 0; i < s.Depth; i++ {
		offset := uniform(rng, minOffsetPct, maxOffsetPct) * float64(i+1)
		bids = append(bids, domain.OrderBookEntry{
			Price: referencePrice * (1 - offset/100),
			Total: uniform(rng, minLevelTotal, minLevelTotal+levelTotalSpan),
		})
	}
	for i := 0; i < s.Depth; i++ {
		offset := uniform(rng, minOffsetPct, maxOffsetPct) * float64(i+1)
		asks = append(asks, domain.OrderBookEntry{
			Price: referencePrice * (1 + offset/100),
			Total: uniform(rng, minLevelTotal, minLevelTotal+levelTotalSpan),
		})
	}

	precision := bookPrecision(pair, referencePrice, s.Depth)
	return domain.OrderBook{
		Pair: pair.Symbol(),
		Bids: normalizeBids(bids, referencePrice, precision),
		Asks: normalizeAsks(asks, referencePrice, precision),
	}
}

// Jitter perturbs every level of book and re-establishes ordering and the
// no-cross invariant against referencePrice. An empty book is rebuilt.
func (s *BookSynthesizer) Jitter(rng Rand, pair domain.TradingPair, book domain.OrderBook, referencePrice float64) domain.OrderBook {
	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return s.Synthesize(rng, pair, referencePrice)
	}

	perturb := func(levels []domain.OrderBookEntry) []domain.OrderBookEntry {
		out := make([]domain.OrderBookEntry, len(levels))
		for i, l := range levels {
			out[i] = domain.OrderBookEntry{
				Price: l.Price * (1 + (rng.Float64()-0.5)*jitterPrice),
				Total: l.Total * (1 + (rng.Float64()-0.5)*jitterTotal),
			}
		}
		return out
	}

	precision := bookPrecision(pair, referencePrice, s.Depth)
	return domain.OrderBook{
		Pair: pair.Symbol(),
		Bids: normalizeBids(perturb(book.Bids), referencePrice, precision),
		Asks: normalizeAsks(perturb(book.Asks), referencePrice, precision),
	}
}

func pairPrecision(pair domain.TradingPair) int32 {
	if pair.Precision <= 0 {
		return DefaultPrecision
	}
	return int32(pair.Precision)
}

// bookPrecision refines the pair precision until depth bid ticks fit below
// referencePrice.
func bookPrecision(pair domain.TradingPair, referencePrice float64, depth int) int32 {
	p := pairPrecision(pair)
	ref := decimal.NewFromFloat(referencePrice)
	for p < maxBookPrecision && !ref.GreaterThan(decimal.New(int64(depth+1), -p)) {
		p++
	}
	return p
}

// normalizeBids sorts descending and keeps every level at least one tick
// below its neighbour nearer the reference.
func normalizeBids(levels []domain.OrderBookEntry, ref float64, precision int32) []domain.OrderBookEntry {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })

	tick := decimal.New(1, -precision)
	limit := decimal.NewFromFloat(ref)
	out := make([]domain.OrderBookEntry, 0, len(levels))
	for _, l := range levels {
		p := decimal.NewFromFloat(l.Price).RoundFloor(precision)
		if p.GreaterThanOrEqual(limit) {
			p = limit.Sub(tick).RoundFloor(precision)
		}
		if !p.IsPositive() {
			continue
		}
		limit = p
		out = append(out, domain.OrderBookEntry{Price: p.InexactFloat64(), Total: roundTotal(l.Total)})
	}
	return out
}

// normalizeAsks sorts ascending and keeps every level at least one tick
// above its neighbour nearer the reference.
func normalizeAsks(levels []domain.OrderBookEntry, ref float64, precision int32) []domain.OrderBookEntry {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	tick := decimal.New(1, -precision)
	limit := decimal.NewFromFloat(ref)
	out := make([]domain.OrderBookEntry, 0, len(levels))
	for _, l := range levels {
		p := decimal.NewFromFloat(l.Price).RoundCeil(precision)
		if p.LessThanOrEqual(limit) {
			p = limit.Add(tick).RoundCeil(precision)
		}
		limit = p
		out = append(out, domain.OrderBookEntry{Price: p.InexactFloat64(), Total: roundTotal(l.Total)})
	}
	return out
}

func roundTotal(total float64) float64 {
	if total < 0 {
		return 0
	}
	return decimal.NewFromFloat(total).Round(totalPrecision).InexactFloat64()
}
