package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRecordID computes a deterministic post-trade record_id using SHA256.
// Formula: SHA256(instrument_id|timestamp_ms|predicted_bps|realized_bps|reversion_bps)
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(
	instrumentID string,
	timestampMs int64,
	predictedBps float64,
	realizedBps float64,
	reversionBps float64,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		instrumentID,
		timestampMs,
		formatFloat(predictedBps),
		formatFloat(realizedBps),
		formatFloat(reversionBps),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
