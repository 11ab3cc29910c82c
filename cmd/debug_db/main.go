package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/perp_sim/internal/domain"
	"github.com/vitos/perp_sim/internal/infrastructure/storage"
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

	blob, err := store.LoadWalletBlob(ctx)
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		fmt.Println("Wallet: none stored")
	case err != nil:
		fmt.Printf("Failed to load wallet: %v\n", err)
	default:
		var w domain.Wallet
		if err := json.Unmarshal(blob, &w); err != nil {
			fmt.Printf("Wallet: malformed blob (%v): %s\n", err, blob)
		} else {
			fmt.Printf("Wallet: %s (%s) connected=%v\n", w.Address, w.Type, w.Connected)
			for _, t := range domain.AllTokens {
				if v := w.Balance[t]; v != 0 {
					fmt.Printf("  %-7s %.4f\n", t, v)
				}
			}
		}
	}

	positions, err := store.ListPositions(ctx)
	if err != nil {
		fmt.Printf("Failed to list positions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFound %d open positions:\n", len(positions))
	for _, p := range positions {
		fmt.Printf("- %s %s %s x%d size=%.4f entry=%.4f mark=%.4f liq=%.4f pnl=%.4f (%.2f%%)\n",
			p.ID, p.Pair, p.Direction, p.Leverage, p.Size, p.EntryPrice, p.MarkPrice, p.LiquidationPrice, p.PnL, p.PnLPercentage)
		if p.StopLoss != nil {
			fmt.Printf("  SL %.4f\n", *p.StopLoss)
		}
		if p.TakeProfit != nil {
			fmt.Printf("  TP %.4f\n", *p.TakeProfit)
		}
	}

	alerts, err := store.ListAlerts(ctx)
	if err != nil {
		fmt.Printf("Failed to list alerts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFound %d alerts:\n", len(alerts))
	for _, a := range alerts {
		fmt.Printf("- %s %s %s %.4f active=%v\n", a.ID, a.Pair, a.Condition, a.Price, a.IsActive)
	}

	trades, err := store.ListTrades(ctx, 20)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nLast %d trades:\n", len(trades))
	for _, t := range trades {
		line := fmt.Sprintf("- %s %-5s %s %s size=%.4f @ %.4f fee=%.6f", t.Time().Format("2006-01-02 15:04:05"), t.Action, t.Pair, t.Direction, t.Size, t.Price, t.Fee)
		if t.PnL != nil {
			line += fmt.Sprintf(" pnl=%.4f", *t.PnL)
		}
		fmt.Println(line)
	}
}
