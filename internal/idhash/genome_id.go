// Package idhash computes deterministic identifiers for genomes and trades.
// IDs are derived from content so that identical inputs always produce the
// same ID across runs and after snapshot restore.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"spread-strategy-lab/internal/domain"
)

// GenomeIDLen is the length of the base58-encoded genome ID prefix.
const GenomeIDLen = 10

// ComputeGenomeID computes a deterministic genome ID.
// Formula: base58(SHA256(generation|parent_ids|param_vector))[:GenomeIDLen]
func ComputeGenomeID(generation int, parentIDs []string, p domain.GenomeParams) string {
	data := fmt.Sprintf("%d|%s|%.6f|%d|%.6f|%.6f|%.6f|%d|%s",
		generation,
		strings.Join(parentIDs, "+"),
		p.MinSpreadThreshold,
		p.StabilityTicks,
		p.PositionSizePct,
		p.TakeProfitPct,
		p.StopLossPct,
		p.MaxHoldSeconds,
		p.PreferredSession,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:GenomeIDLen]
}
