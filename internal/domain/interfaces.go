package domain

import (
	"context"
	"time"
)

// WalletRepository persists the raw wallet blob. The blob is returned as
// stored so callers can decide what to do with malformed content.
type WalletRepository interface {
	LoadWalletBlob(ctx context.Context) ([]byte, error)
	SaveWalletBlob(ctx context.Context, blob []byte) error
	DeleteWallet(ctx context.Context) error

	GetLastFaucetClaim(ctx context.Context) (time.Time, error)
	SetLastFaucetClaim(ctx context.Context, at time.Time) error
}

// SessionRepository mirrors the trading session for reload persistence.
// Last writer wins.
type SessionRepository interface {
	ReplacePositions(ctx context.Context, positions []Position) error
	ListPositions(ctx context.Context) ([]Position, error)

	AppendTrade(ctx context.Context, trade TradeHistory) error
	ListTrades(ctx context.Context, limit int) ([]TradeHistory, error)

	ReplaceAlerts(ctx context.Context, alerts []PriceAlert) error
	ListAlerts(ctx context.Context) ([]PriceAlert, error)
}
