package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade ID.
// Formula: SHA256(agent_id|instrument_id|opened_at_ms|closed_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(agentID, instrumentID string, openedAtMs, closedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", agentID, instrumentID, openedAtMs, closedAtMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
