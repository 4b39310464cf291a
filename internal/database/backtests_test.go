package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// fakeDB records Exec calls and returns a fixed command tag.
type fakeDB struct {
	tag      string
	execErr  error
	queryErr error

	sql  []string
	args [][]any
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return nil, f.queryErr
}

func TestBacktestStore_Migrate(t *testing.T) {
	db := &fakeDB{tag: "CREATE TABLE"}
	store := NewBacktestStore(db, nil)

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS backtests") {
		t.Errorf("unexpected migration sql: %v", db.sql)
	}
}

func TestBacktestStore_SaveAssignsIDAndTime(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	store := NewBacktestStore(db, nil)

	bt := model.Backtest{
		Exchange: model.ExchangeBitfinex,
		Symbol:   "tBTCUSD",
		TF:       "1m",
		From:     1700000000000,
		To:       1700003600000,
		Results:  json.RawMessage(`{"pnl":12.5}`),
	}

	saved, err := store.Save(context.Background(), bt)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID == uuid.Nil {
		t.Error("Save should assign an ID")
	}
	if saved.ID.Version() != 7 {
		t.Errorf("ID version = %d, want 7", saved.ID.Version())
	}
	if saved.CreatedAt.IsZero() {
		t.Error("Save should set CreatedAt")
	}

	args := db.args[0]
	if len(args) != 9 {
		t.Fatalf("insert args = %d, want 9", len(args))
	}
	if args[6] != nil {
		t.Errorf("empty strategy should be stored as NULL, got %v", args[6])
	}
	if args[7] != `{"pnl":12.5}` {
		t.Errorf("results arg = %v, want %q", args[7], `{"pnl":12.5}`)
	}
}

func TestBacktestStore_SaveKeepsProvidedID(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	store := NewBacktestStore(db, nil)

	id := uuid.New()
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	saved, err := store.Save(context.Background(), model.Backtest{ID: id, CreatedAt: created})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID != id {
		t.Errorf("ID = %s, want %s", saved.ID, id)
	}
	if !saved.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", saved.CreatedAt, created)
	}
}

func TestBacktestStore_SaveConflict(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 0"}
	store := NewBacktestStore(db, nil)

	_, err := store.Save(context.Background(), model.Backtest{ID: uuid.New()})
	if !errors.Is(err, ErrBacktestExists) {
		t.Errorf("Save conflict = %v, want ErrBacktestExists", err)
	}
}

func TestBacktestStore_Errors(t *testing.T) {
	dbErr := errors.New("connection reset")
	db := &fakeDB{execErr: dbErr, queryErr: dbErr}
	store := NewBacktestStore(db, nil)
	ctx := context.Background()

	if _, err := store.Save(ctx, model.Backtest{}); !errors.Is(err, dbErr) {
		t.Errorf("Save error = %v, want wrapped %v", err, dbErr)
	}
	if _, err := store.List(ctx, 10); !errors.Is(err, dbErr) {
		t.Errorf("List error = %v, want wrapped %v", err, dbErr)
	}
	if err := store.Migrate(ctx); !errors.Is(err, dbErr) {
		t.Errorf("Migrate error = %v, want wrapped %v", err, dbErr)
	}
}

func TestBacktestStore_ListDefaultLimit(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("stop")}
	store := NewBacktestStore(db, nil)

	store.List(context.Background(), 0)

	if got := db.args[0][0]; got != DefaultListLimit {
		t.Errorf("limit arg = %v, want %d", got, DefaultListLimit)
	}
}

// TestBacktestStore_Postgres runs against a real database when
// BFX_HF_TEST_DATABASE_URL is set.
func TestBacktestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("BFX_HF_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BFX_HF_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	store := NewBacktestStore(pool, nil)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	saved, err := store.Save(ctx, model.Backtest{
		Exchange: model.ExchangeBitfinex,
		Symbol:   "tBTCUSD",
		TF:       "1h",
		From:     1,
		To:       2,
		Strategy: json.RawMessage(`{"id":"ema_cross"}`),
		Results:  json.RawMessage(`{"trades":3}`),
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	defer pool.Exec(ctx, "DELETE FROM backtests WHERE id = $1", saved.ID)

	list, err := store.List(ctx, 1000)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	var found bool
	for _, bt := range list {
		if bt.ID == saved.ID {
			found = true
			if bt.Symbol != "tBTCUSD" {
				t.Errorf("Symbol = %q, want tBTCUSD", bt.Symbol)
			}
			var results map[string]int
			if err := json.Unmarshal(bt.Results, &results); err != nil || results["trades"] != 3 {
				t.Errorf("Results = %s, want {\"trades\":3}", bt.Results)
			}
		}
	}
	if !found {
		t.Errorf("saved backtest %s not listed", saved.ID)
	}
}
