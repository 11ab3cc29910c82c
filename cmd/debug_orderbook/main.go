package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/perp_sim/internal/domain"
	"github.com/vitos/perp_sim/internal/usecase"
)

func main() {
	pairID := flag.String("pair", "sui-usdt", "trading pair id")
	price := flag.Float64("price", usecase.DefaultStartPrice, "reference price")
	depth := flag.Int("depth", usecase.DefaultBookDepth, "levels per side (10-12)")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	jitters := flag.Int("jitter", 0, "number of jitter passes to apply")
	flag.Parse()

	pair, err := domain.FindPair(domain.DefaultPairs(), *pairID)
	if err != nil {
		fmt.Printf("Unknown pair %q\n", *pairID)
		os.Exit(1)
	}

	rng := usecase.NewRand(*seed)
	synth := usecase.NewBookSynthesizer(*depth)
	ob := synth.Synthesize(rng, pair, *price)
	for i := 0; i < *jitters; i++ {
		ob = synth.Jitter(rng, pair, ob, *price)
	}

	fmt.Printf("Order Book for %s around %.*f: %d Bids, %d Asks\n", pair.Name, pair.Precision, *price, len(ob.Bids), len(ob.Asks))
	for i := len(ob.Asks) - 1; i >= 0; i-- {
		fmt.Printf("  ask %.*f  %8.2f\n", pair.Precision, ob.Asks[i].Price, ob.Asks[i].Total)
	}
	fmt.Printf("  ---- %.*f ----\n", pair.Precision, *price)
	for _, b := range ob.Bids {
		fmt.Printf("  bid %.*f  %8.2f\n", pair.Precision, b.Price, b.Total)
	}

	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if okBid && okAsk {
		fmt.Printf("\nBest Bid: %.*f  Best Ask: %.*f  Spread: %.*f\n",
			pair.Precision, bid.Price, pair.Precision, ask.Price, pair.Precision, ask.Price-bid.Price)
	}
}
