package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

const tradeColumns = `
	trade_id, agent_id, instrument_id,
	entry_price_a, entry_price_b, entry_price, exit_price,
	size, opened_at_ms, closed_at_ms, pnl, pnl_pct, exit_reason
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.AgentID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_log (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.AgentID, t.InstrumentID,
		t.EntryPriceA, t.EntryPriceB, t.EntryPrice, t.ExitPrice,
		t.Size, t.OpenedAtMs, t.ClosedAtMs, t.PnL, t.PnLPct, t.ExitReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trade_log (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.AgentID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.AgentID, t.InstrumentID,
			t.EntryPriceA, t.EntryPriceB, t.EntryPrice, t.ExitPrice,
			t.Size, t.OpenedAtMs, t.ClosedAtMs, t.PnL, t.PnLPct, t.ExitReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByAgentID retrieves all trades for an agent, ordered by closed_at ASC.
func (s *TradeLogStore) GetByAgentID(ctx context.Context, agentID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trade_log
		WHERE agent_id = $1
		ORDER BY closed_at_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("get trades by agent id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByTimeRange retrieves trades for an agent closed within [start, end] (inclusive).
func (s *TradeLogStore) GetByTimeRange(ctx context.Context, agentID string, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trade_log
		WHERE agent_id = $1 AND closed_at_ms >= $2 AND closed_at_ms <= $3
		ORDER BY closed_at_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, agentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.TradeID, &t.AgentID, &t.InstrumentID,
			&t.EntryPriceA, &t.EntryPriceB, &t.EntryPrice, &t.ExitPrice,
			&t.Size, &t.OpenedAtMs, &t.ClosedAtMs, &t.PnL, &t.PnLPct, &t.ExitReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}
