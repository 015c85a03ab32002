package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk adds multiple ticks. Fails the entire batch on any duplicate
// (instrument_id, venue, timestamp_ms). MergeTree does not enforce
// uniqueness, so duplicates are checked explicitly before the insert.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		instrumentID string
		venue        domain.Venue
		timestampMs  int64
	}
	seen := make(map[key]struct{}, len(ticks))
	for _, t := range ticks {
		if t == nil || t.InstrumentID == "" || t.Venue == "" {
			return storage.ErrInvalidInput
		}
		k := key{t.InstrumentID, t.Venue, t.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, t := range ticks {
		exists, err := s.exists(ctx, t)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (instrument_id, venue, price, timestamp_ms)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(t.InstrumentID, string(t.Venue), t.Price, uint64(t.TimestampMs))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByInstrument retrieves all ticks for an instrument, ordered by
// timestamp ASC with venue as tie-break.
func (s *TickStore) GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.Tick, error) {
	query := `
		SELECT instrument_id, venue, price, timestamp_ms
		FROM ticks
		WHERE instrument_id = ?
		ORDER BY timestamp_ms ASC, venue ASC
	`

	rows, err := s.conn.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("query ticks by instrument: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for an instrument within [start, end]
// (inclusive), ordered by timestamp ASC with venue as tie-break.
func (s *TickStore) GetByTimeRange(ctx context.Context, instrumentID string, start, end int64) ([]*domain.Tick, error) {
	query := `
		SELECT instrument_id, venue, price, timestamp_ms
		FROM ticks
		WHERE instrument_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, venue ASC
	`

	rows, err := s.conn.Query(ctx, query, instrumentID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

func (s *TickStore) exists(ctx context.Context, t *domain.Tick) (bool, error) {
	query := `
		SELECT count() FROM ticks
		WHERE instrument_id = ? AND venue = ? AND timestamp_ms = ?
	`

	var count uint64
	row := s.conn.QueryRow(ctx, query, t.InstrumentID, string(t.Venue), uint64(t.TimestampMs))
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTicks(rows driver.Rows) ([]*domain.Tick, error) {
	var out []*domain.Tick
	for rows.Next() {
		var (
			t           domain.Tick
			venue       string
			timestampMs uint64
		)
		if err := rows.Scan(&t.InstrumentID, &venue, &t.Price, &timestampMs); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Venue = domain.Venue(venue)
		t.TimestampMs = int64(timestampMs)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return out, nil
}
