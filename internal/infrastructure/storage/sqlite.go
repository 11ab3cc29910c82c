package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/perp_sim/internal/domain"
)

const (
	walletKey      = "nexus_wallet"
	faucetClaimKey = "last_token_claim"
)

// SQLiteStore is the local persistence adapter for the wallet blob and the
// trading session. It implements domain.WalletRepository and
// domain.SessionRepository.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite from reporting "database is locked".
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			seq INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			mark_price REAL NOT NULL,
			leverage INTEGER NOT NULL,
			size REAL NOT NULL,
			margin REAL NOT NULL,
			liquidation_price REAL NOT NULL,
			stop_loss REAL,
			take_profit REAL,
			pnl REAL NOT NULL DEFAULT 0,
			pnl_percentage REAL NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trade_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			price REAL NOT NULL,
			size REAL NOT NULL,
			fee REAL NOT NULL,
			timestamp INTEGER NOT NULL,
			action TEXT NOT NULL,
			pnl REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_pair ON trade_history(pair);`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			seq INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			price REAL NOT NULL,
			condition TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// WalletRepository Implementation

func (s *SQLiteStore) LoadWalletBlob(ctx context.Context) ([]byte, error) {
	blob, err := s.getKV(ctx, walletKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	return blob, err
}

func (s *SQLiteStore) SaveWalletBlob(ctx context.Context, blob []byte) error {
	return s.putKV(ctx, walletKey, blob)
}

func (s *SQLiteStore) DeleteWallet(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", walletKey)
	return err
}

func (s *SQLiteStore) GetLastFaucetClaim(ctx context.Context) (time.Time, error) {
	raw, err := s.getKV(ctx, faucetClaimKey)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse faucet claim time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (s *SQLiteStore) SetLastFaucetClaim(ctx context.Context, at time.Time) error {
	return s.putKV(ctx, faucetClaimKey, []byte(strconv.FormatInt(at.UnixMilli(), 10)))
}

func (s *SQLiteStore) getKV(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	return value, err
}

func (s *SQLiteStore) putKV(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now())
	return err
}

// SessionRepository Implementation

func (s *SQLiteStore) ReplacePositions(ctx context.Context, positions []domain.Position) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM positions"); err != nil {
			return err
		}
		query := `INSERT INTO positions (seq, id, pair, direction, entry_price, mark_price, leverage, size, margin, liquidation_price, stop_loss, take_profit, pnl, pnl_percentage, timestamp)
				  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		for i, p := range positions {
			_, err := tx.ExecContext(ctx, query,
				i, p.ID, p.Pair, p.Direction, p.EntryPrice, p.MarkPrice, p.Leverage, p.Size, p.Margin,
				p.LiquidationPrice, nullFloat(p.StopLoss), nullFloat(p.TakeProfit), p.PnL, p.PnLPercentage, p.Timestamp)
			if err != nil {
				return fmt.Errorf("insert position %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	query := `SELECT id, pair, direction, entry_price, mark_price, leverage, size, margin, liquidation_price, stop_loss, take_profit, pnl, pnl_percentage, timestamp
			  FROM positions ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		var p domain.Position
		var sl, tp sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Pair, &p.Direction, &p.EntryPrice, &p.MarkPrice, &p.Leverage, &p.Size, &p.Margin,
			&p.LiquidationPrice, &sl, &tp, &p.PnL, &p.PnLPercentage, &p.Timestamp); err != nil {
			return nil, err
		}
		p.StopLoss = floatPtr(sl)
		p.TakeProfit = floatPtr(tp)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) AppendTrade(ctx context.Context, t domain.TradeHistory) error {
	query := `INSERT INTO trade_history (id, pair, direction, price, size, fee, timestamp, action, pnl)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Pair, t.Direction, t.Price, t.Size, t.Fee, t.Timestamp, t.Action, nullFloat(t.PnL))
	return err
}

// ListTrades returns the newest limit trades in chronological order. A
// non-positive limit returns everything.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeHistory, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT id, pair, direction, price, size, fee, timestamp, action, pnl
			  FROM trade_history ORDER BY seq DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []domain.TradeHistory{}
	for rows.Next() {
		var t domain.TradeHistory
		var pnl sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.Pair, &t.Direction, &t.Price, &t.Size, &t.Fee, &t.Timestamp, &t.Action, &pnl); err != nil {
			return nil, err
		}
		t.PnL = floatPtr(pnl)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

func (s *SQLiteStore) ReplaceAlerts(ctx context.Context, alerts []domain.PriceAlert) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM price_alerts"); err != nil {
			return err
		}
		query := `INSERT INTO price_alerts (seq, id, pair, price, condition, is_active, created_at)
				  VALUES (?, ?, ?, ?, ?, ?, ?)`
		for i, a := range alerts {
			if _, err := tx.ExecContext(ctx, query, i, a.ID, a.Pair, a.Price, a.Condition, a.IsActive, a.CreatedAt); err != nil {
				return fmt.Errorf("insert alert %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListAlerts(ctx context.Context) ([]domain.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pair, price, condition, is_active, created_at FROM price_alerts ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []domain.PriceAlert{}
	for rows.Next() {
		var a domain.PriceAlert
		if err := rows.Scan(&a.ID, &a.Pair, &a.Price, &a.Condition, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
