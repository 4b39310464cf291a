package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// ErrBacktestExists is returned when saving a backtest whose ID is already stored.
var ErrBacktestExists = errors.New("backtest already exists")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const createBacktestsTable = `
	CREATE TABLE IF NOT EXISTS backtests (
		id         UUID PRIMARY KEY,
		exchange   TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		tf         TEXT NOT NULL,
		mts_from   BIGINT NOT NULL,
		mts_to     BIGINT NOT NULL,
		strategy   JSONB,
		results    JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// BacktestStore persists client-submitted backtests.
type BacktestStore struct {
	db     DB
	logger *slog.Logger
}

// NewBacktestStore creates a store backed by db.
func NewBacktestStore(db DB, logger *slog.Logger) *BacktestStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BacktestStore{db: db, logger: logger}
}

// Migrate creates the backtests table if it does not exist.
func (s *BacktestStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createBacktestsTable); err != nil {
		return fmt.Errorf("create backtests table: %w", err)
	}
	return nil
}

// Save stores bt, assigning an ID and creation time when unset, and returns
// the stored record.
func (s *BacktestStore) Save(ctx context.Context, bt model.Backtest) (model.Backtest, error) {
	if bt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return model.Backtest{}, fmt.Errorf("generate backtest id: %w", err)
		}
		bt.ID = id
	}
	if bt.CreatedAt.IsZero() {
		bt.CreatedAt = time.Now().UTC()
	}

	ct, err := s.db.Exec(ctx, `
		INSERT INTO backtests (id, exchange, symbol, tf, mts_from, mts_to, strategy, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, bt.ID, bt.Exchange, bt.Symbol, bt.TF, bt.From, bt.To, nullJSON(bt.Strategy), nullJSON(bt.Results), bt.CreatedAt)
	if err != nil {
		return model.Backtest{}, fmt.Errorf("insert backtest: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return model.Backtest{}, fmt.Errorf("insert backtest %s: %w", bt.ID, ErrBacktestExists)
	}

	s.logger.Debug("stored backtest", "id", bt.ID, "symbol", bt.Symbol, "tf", bt.TF)
	return bt, nil
}

// List returns stored backtests, newest first.
func (s *BacktestStore) List(ctx context.Context, limit int) ([]model.Backtest, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, exchange, symbol, tf, mts_from, mts_to, strategy, results, created_at
		FROM backtests
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query backtests: %w", err)
	}

	backtests, err := pgx.CollectRows(rows, scanBacktest)
	if err != nil {
		return nil, fmt.Errorf("scan backtests: %w", err)
	}
	return backtests, nil
}

func scanBacktest(row pgx.CollectableRow) (model.Backtest, error) {
	var bt model.Backtest
	var strategy, results []byte
	err := row.Scan(&bt.ID, &bt.Exchange, &bt.Symbol, &bt.TF, &bt.From, &bt.To, &strategy, &results, &bt.CreatedAt)
	if err != nil {
		return model.Backtest{}, err
	}
	bt.Strategy = strategy
	bt.Results = results
	return bt, nil
}

// nullJSON maps an empty document to SQL NULL.
func nullJSON(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}
