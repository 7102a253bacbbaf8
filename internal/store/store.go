package store

import (
	"context"
	"errors"
	"time"

	"tradesim/types"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

// Run is the header of one stored backtest.
type Run struct {
	ID        uuid.UUID
	Symbol    string
	CreatedAt time.Time
	NumTrades int
}

// RunStore persists the trades of finished backtests.
type RunStore interface {
	SaveRun(ctx context.Context, runID uuid.UUID, symbol string, trades []types.Trade) error
	LoadTrades(ctx context.Context, runID uuid.UUID) ([]types.Trade, error)
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}
