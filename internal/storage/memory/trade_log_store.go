package memory

import (
	"context"
	"sort"
	"sync"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}
	tradeCopy := *t
	s.data[t.TradeID] = &tradeCopy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.AgentID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		tradeCopy := *t
		s.data[t.TradeID] = &tradeCopy
	}
	return nil
}

// GetByAgentID retrieves all trades for an agent, ordered by closed_at ASC.
func (s *TradeLogStore) GetByAgentID(_ context.Context, agentID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Trade
	for _, t := range s.data {
		if t.AgentID == agentID {
			tradeCopy := *t
			out = append(out, &tradeCopy)
		}
	}
	sortTrades(out)
	return out, nil
}

// GetByTimeRange retrieves trades for an agent closed within [start, end] (inclusive).
func (s *TradeLogStore) GetByTimeRange(_ context.Context, agentID string, start, end int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Trade
	for _, t := range s.data {
		if t.AgentID == agentID && t.ClosedAtMs >= start && t.ClosedAtMs <= end {
			tradeCopy := *t
			out = append(out, &tradeCopy)
		}
	}
	sortTrades(out)
	return out, nil
}

func sortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ClosedAtMs != trades[j].ClosedAtMs {
			return trades[i].ClosedAtMs < trades[j].ClosedAtMs
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
