package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// SnapshotOutcome is the optional RFQ outcome carried by a snapshot.
// Nil fields are absent.
type SnapshotOutcome struct {
	TradeSize       *float64
	Side            string
	Trend           *float64
	RealizedCostBps *float64
	Filled          *bool
}

func (o SnapshotOutcome) empty() bool {
	return o.TradeSize == nil && o.Side == "" && o.Trend == nil && o.RealizedCostBps == nil && o.Filled == nil
}

// ComputeSnapshotID computes a deterministic snapshot_id using SHA256.
// Formula: SHA256(instrument_id|timestamp_ms|bid|ask|spread_bps|available_size)
// When any outcome field is present the hashed string is extended with
// |trade_size|side|trend|realized_cost_bps|filled, absent fields left empty.
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotID(
	instrumentID string,
	timestampMs int64,
	bid float64,
	ask float64,
	spreadBps float64,
	availableSize float64,
	outcome SnapshotOutcome,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%s",
		instrumentID,
		timestampMs,
		formatFloat(bid),
		formatFloat(ask),
		formatFloat(spreadBps),
		formatFloat(availableSize),
	)
	if !outcome.empty() {
		data += fmt.Sprintf("|%s|%s|%s|%s|%s",
			formatOptional(outcome.TradeSize),
			outcome.Side,
			formatOptional(outcome.Trend),
			formatOptional(outcome.RealizedCostBps),
			formatFilled(outcome.Filled),
		)
	}

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFilled(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "1"
	default:
		return "0"
	}
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
