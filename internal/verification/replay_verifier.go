package verification

import (
	"context"
	"errors"
	"fmt"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/feed"
	"spread-strategy-lab/internal/lab"
	"spread-strategy-lab/internal/storage"
)

var (
	// ErrSnapshotNotFound is returned when the requested generation has no snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ReplayVerifier restores a persisted snapshot into a fresh lab, replays
// the archived ticks that followed it, and compares the regenerated trades
// against the stored trade log.
type ReplayVerifier struct {
	snapshotStore storage.SnapshotStore
	tradeStore    storage.TradeLogStore
	tickStore     storage.TickStore
	labOptions    lab.Options
	batchSize     int
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	SnapshotStore storage.SnapshotStore
	TradeStore    storage.TradeLogStore
	TickStore     storage.TickStore

	// LabOptions must match the configuration the verified run used.
	// A different signal or risk configuration diverges by construction.
	LabOptions lab.Options

	// BatchSize bounds replayed tick batches. Zero means one batch.
	BatchSize int
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		snapshotStore: opts.SnapshotStore,
		tradeStore:    opts.TradeStore,
		tickStore:     opts.TickStore,
		labOptions:    opts.LabOptions,
		batchSize:     opts.BatchSize,
	}
}

// VerifyGeneration replays the archived ticks of one instrument in
// (snapshot, end] on top of the snapshot for the given generation and
// compares every regenerated trade against the stored log.
//
// Restoring the snapshot reinstates the signal pipeline's warm state along
// with the portfolios, so the replay continues the captured session rather
// than opening a new one; trades closed at or before the snapshot are
// outside the verified window.
func (v *ReplayVerifier) VerifyGeneration(ctx context.Context, generation int, instrumentID string, end int64) (*Report, error) {
	snap, err := v.snapshotStore.GetByGeneration(ctx, generation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	l, err := lab.New(v.labOptions)
	if err != nil {
		return nil, fmt.Errorf("build lab: %w", err)
	}
	if err := l.Restore(snap); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	l.Resume()

	var replayed []*domain.Trade
	source := feed.NewReplaySource(v.tickStore, v.batchSize)
	err = source.Replay(ctx, instrumentID, snap.TakenAtMs+1, end, func(batch []*domain.Tick) error {
		res, err := l.Advance(ctx, batch)
		if err != nil {
			return err
		}
		replayed = append(replayed, res.ClosedTrades...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay ticks: %w", err)
	}

	return v.compare(ctx, snap, replayed, end)
}

// compare matches replayed trades against the stored log for the window.
func (v *ReplayVerifier) compare(ctx context.Context, snap *domain.LabSnapshot, replayed []*domain.Trade, end int64) (*Report, error) {
	report := &Report{Generation: snap.Generation}

	replayedByID := make(map[string]*domain.Trade, len(replayed))
	for _, t := range replayed {
		replayedByID[t.TradeID] = t
	}

	seen := make(map[string]struct{})
	for _, agentID := range agentIDs(snap) {
		stored, err := v.tradeStore.GetByTimeRange(ctx, agentID, snap.TakenAtMs+1, end)
		if err != nil {
			return nil, fmt.Errorf("load stored trades for %s: %w", agentID, err)
		}

		for _, st := range stored {
			report.TotalTrades++
			seen[st.TradeID] = struct{}{}

			re, ok := replayedByID[st.TradeID]
			if !ok {
				report.MissingTrades++
				report.Results = append(report.Results, TradeResult{
					TradeID: st.TradeID,
					AgentID: st.AgentID,
					Match:   false,
					Divergences: []FieldDivergence{
						{Field: "TradeID", Expected: st.TradeID, Actual: nil},
					},
				})
				continue
			}

			divergences := CompareTrades(st, re)
			result := TradeResult{
				TradeID:     st.TradeID,
				AgentID:     st.AgentID,
				Match:       len(divergences) == 0,
				Divergences: divergences,
			}
			if result.Match {
				report.MatchedTrades++
			} else {
				report.DivergentTrades++
			}
			report.Results = append(report.Results, result)
		}
	}

	for _, t := range replayed {
		if _, ok := seen[t.TradeID]; !ok {
			report.ExtraTrades++
			report.Results = append(report.Results, TradeResult{
				TradeID: t.TradeID,
				AgentID: t.AgentID,
				Match:   false,
				Divergences: []FieldDivergence{
					{Field: "TradeID", Expected: nil, Actual: t.TradeID},
				},
			})
		}
	}

	return report, nil
}

// agentIDs lists every agent the snapshot knows about, mirror included.
func agentIDs(snap *domain.LabSnapshot) []string {
	var ids []string
	for _, m := range snap.Population.Members {
		ids = append(ids, m.Genome.ID)
	}
	if snap.Mirror != nil {
		ids = append(ids, snap.Mirror.GenomeID)
	}
	return ids
}
