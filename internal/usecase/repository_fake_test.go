package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/perp_sim/internal/domain"
)

// memRepository is an in-memory stand-in for the sqlite store.
type memRepository struct {
	mu sync.Mutex

	positions []domain.Position
	trades    []domain.TradeHistory
	alerts    []domain.PriceAlert

	wallet    []byte
	lastClaim time.Time

	failWrites error
	failClaims error
}

func (r *memRepository) LoadWalletBlob(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wallet == nil {
		return nil, domain.ErrWalletNotFound
	}
	return append([]byte(nil), r.wallet...), nil
}

func (r *memRepository) SaveWalletBlob(ctx context.Context, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.wallet = append([]byte(nil), blob...)
	return nil
}

func (r *memRepository) DeleteWallet(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallet = nil
	return nil
}

func (r *memRepository) GetLastFaucetClaim(ctx context.Context) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastClaim, nil
}

func (r *memRepository) SetLastFaucetClaim(ctx context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failClaims != nil {
		return r.failClaims
	}
	r.lastClaim = at
	return nil
}

func (r *memRepository) ReplacePositions(ctx context.Context, positions []domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.positions = clonePositions(positions)
	return nil
}

func (r *memRepository) ListPositions(ctx context.Context) ([]domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePositions(r.positions), nil
}

func (r *memRepository) AppendTrade(ctx context.Context, trade domain.TradeHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.trades = append(r.trades, trade)
	return nil
}

func (r *memRepository) ListTrades(ctx context.Context, limit int) ([]domain.TradeHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.trades
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]domain.TradeHistory(nil), out...), nil
}

func (r *memRepository) ReplaceAlerts(ctx context.Context, alerts []domain.PriceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.alerts = append([]domain.PriceAlert(nil), alerts...)
	return nil
}

func (r *memRepository) ListAlerts(ctx context.Context) ([]domain.PriceAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PriceAlert(nil), r.alerts...), nil
}
