package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitos/perp_sim/internal/domain"
	"go.uber.org/zap"
)

const (
	FaucetAmount   = 10.0
	FaucetCooldown = 24 * time.Hour

	minConnectBalance  = 1000.0
	connectBalanceSpan = 9000.0
	addressHexDigits   = 40
)

// WalletService manages the single mock wallet and mirrors it to the
// repository after every mutation.
type WalletService struct {
	repo    domain.WalletRepository
	logger  *zap.Logger
	rng     Rand
	timeNow func() time.Time

	mu     sync.Mutex
	wallet *domain.Wallet
}

func NewWalletService(repo domain.WalletRepository, rng Rand, logger *zap.Logger) *WalletService {
	return &WalletService{
		repo:    repo,
		logger:  logger,
		rng:     rng,
		timeNow: time.Now,
	}
}

// Load restores the persisted wallet. A malformed blob is discarded and the
// session starts disconnected.
func (s *WalletService) Load(ctx context.Context) error {
	blob, err := s.repo.LoadWalletBlob(ctx)
	if errors.Is(err, domain.ErrWalletNotFound) {
		s.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	var w domain.Wallet
	if err := json.Unmarshal(blob, &w); err != nil {
		s.logger.Warn("Discarding malformed stored wallet", zap.Error(err))
		if delErr := s.repo.DeleteWallet(ctx); delErr != nil {
			s.logger.Error("Failed to delete malformed wallet", zap.Error(delErr))
		}
		s.set(nil)
		return nil
	}
	if w.Balance == nil {
		w.Balance = make(map[domain.Token]float64)
	}
	s.set(&w)
	s.logger.Info("Restored wallet", zap.String("address", w.Address), zap.Bool("connected", w.Connected))
	return nil
}

func (s *WalletService) set(w *domain.Wallet) {
	s.mu.Lock()
	s.wallet = w
	s.mu.Unlock()
}

// Wallet returns a copy of the current wallet.
func (s *WalletService) Wallet() (domain.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallet == nil {
		return domain.Wallet{}, false
	}
	return s.wallet.Clone(), true
}

func (s *WalletService) Connected() bool {
	w, ok := s.Wallet()
	return ok && w.Connected
}

func (s *WalletService) Connect(ctx context.Context, walletType domain.WalletType) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch walletType {
	case domain.WalletSui, domain.WalletStashed, domain.WalletOther:
	default:
		walletType = domain.WalletOther
	}

	w := domain.Wallet{
		Address:   s.randomAddress(),
		Balance:   make(map[domain.Token]float64, len(domain.AllTokens)),
		Connected: true,
		Type:      walletType,
	}
	for _, t := range domain.AllTokens {
		w.Balance[t] = 0
	}
	w.Balance[domain.TokenUSDC] = minConnectBalance + s.rng.Float64()*connectBalanceSpan

	if err := s.persist(ctx, w); err != nil {
		return domain.Wallet{}, err
	}
	s.wallet = &w
	s.logger.Info("Wallet connected", zap.String("address", w.Address), zap.String("type", string(w.Type)))
	return w.Clone(), nil
}

func (s *WalletService) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteWallet(ctx); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	s.wallet = nil
	s.logger.Info("Wallet disconnected")
	return nil
}

// Withdraw debits amount of token. Nothing changes on failure.
func (s *WalletService) Withdraw(ctx context.Context, token domain.Token, amount float64) (domain.Wallet, error) {
	if !token.Valid() {
		return domain.Wallet{}, fmt.Errorf("%w: %q", domain.ErrInvalidToken, token)
	}
	if amount <= 0 {
		return domain.Wallet{}, fmt.Errorf("%w: please enter a valid withdrawal amount", domain.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil || !s.wallet.Connected {
		return domain.Wallet{}, domain.ErrWalletNotConnected
	}
	if s.wallet.Balance[token] < amount {
		return domain.Wallet{}, fmt.Errorf("%w: have %.4f %s", domain.ErrInsufficientBalance, s.wallet.Balance[token], token)
	}

	next := s.wallet.Clone()
	next.Balance[token] -= amount
	if next.Balance[token] < 0 {
		next.Balance[token] = 0
	}
	if err := s.persist(ctx, next); err != nil {
		return domain.Wallet{}, err
	}
	s.wallet = &next
	s.logger.Info("Withdrawal", zap.String("token", string(token)), zap.Float64("amount", amount))
	return next.Clone(), nil
}

// FaucetRemaining is the time left before the next faucet claim.
func (s *WalletService) FaucetRemaining(ctx context.Context) (time.Duration, error) {
	last, err := s.repo.GetLastFaucetClaim(ctx)
	if err != nil {
		return 0, fmt.Errorf("get last faucet claim: %w", err)
	}
	return faucetRemaining(last, s.timeNow()), nil
}

func faucetRemaining(last, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	remaining := FaucetCooldown - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClaimFaucet credits FaucetAmount TUSDC once per FaucetCooldown.
func (s *WalletService) ClaimFaucet(ctx context.Context) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil || !s.wallet.Connected {
		return domain.Wallet{}, domain.ErrWalletNotConnected
	}

	last, err := s.repo.GetLastFaucetClaim(ctx)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("get last faucet claim: %w", err)
	}
	now := s.timeNow()
	if remaining := faucetRemaining(last, now); remaining > 0 {
		return domain.Wallet{}, fmt.Errorf("%w: %s remaining", domain.ErrFaucetCooldown, remaining.Truncate(time.Second))
	}

	// Cooldown first; rolled back below if the credit cannot be saved.
	if err := s.repo.SetLastFaucetClaim(ctx, now); err != nil {
		return domain.Wallet{}, fmt.Errorf("record faucet claim: %w", err)
	}
	next := s.wallet.Clone()
	next.Balance[domain.TokenTUSDC] += FaucetAmount
	if err := s.persist(ctx, next); err != nil {
		if rbErr := s.repo.SetLastFaucetClaim(ctx, last); rbErr != nil {
			s.logger.Error("Failed to restore faucet claim time", zap.Error(rbErr))
		}
		return domain.Wallet{}, err
	}
	s.wallet = &next
	s.logger.Info("Faucet claimed", zap.Float64("amount", FaucetAmount))
	return next.Clone(), nil
}

func (s *WalletService) persist(ctx context.Context, w domain.Wallet) error {
	blob, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	if err := s.repo.SaveWalletBlob(ctx, blob); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

func (s *WalletService) randomAddress() string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.WriteString("0x")
	for i := 0; i < addressHexDigits; i++ {
		b.WriteByte(hex[s.rng.IntN(16)])
	}
	return b.String()
}
