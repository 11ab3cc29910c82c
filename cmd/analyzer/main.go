package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/vitos/perp_sim/internal/domain"
	"github.com/vitos/perp_sim/internal/infrastructure/storage"
	"github.com/vitos/perp_sim/internal/usecase"
)

func main() {
	dbPath := flag.String("db", "sim.db", "path to the sqlite session store")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	trades, err := store.ListTrades(ctx, 0)
	if err != nil {
		fmt.Printf("Error reading trades: %v\n", err)
		os.Exit(1)
	}
	positions, err := store.ListPositions(ctx)
	if err != nil {
		fmt.Printf("Error reading positions: %v\n", err)
		os.Exit(1)
	}

	if len(trades) == 0 {
		fmt.Println("No trades found.")
		return
	}

	// Per pair breakdown
	byPair := make(map[string][]domain.TradeHistory)
	for _, t := range trades {
		byPair[t.Pair] = append(byPair[t.Pair], t)
	}
	pairs := make([]string, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)

	fmt.Printf("%-12s %6s %6s %8s %12s %10s\n", "PAIR", "OPENS", "CLOSES", "WIN%", "REALIZED", "FEES")
	for _, p := range pairs {
		st := usecase.ComputeStats(byPair[p], nil)
		fmt.Printf("%-12s %6d %6d %7.1f%% %12.4f %10.6f\n", p, st.OpenTrades, st.CloseTrades, st.WinRate, st.RealizedPnL, st.TotalFees)
	}

	total := usecase.ComputeStats(trades, positions)
	fmt.Printf("\nTotal: %d closes, win rate %.1f%%, realized %.4f, unrealized %.4f, fees %.6f, volume %.2f\n",
		total.CloseTrades, total.WinRate, total.RealizedPnL, total.UnrealizedPnL, total.TotalFees, total.Volume)
}
