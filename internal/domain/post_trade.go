package domain

// PostTradeRecord represents a realized trade compared to its pre-trade estimate.
// Corresponds to post_trade_records table in PostgreSQL.
type PostTradeRecord struct {
	RecordID         string  // deterministic hash
	InstrumentID     string  // ISIN / CUSIP (optional)
	TimestampMs      int64   // execution timestamp (ms)
	PredictedCostBps float64 // cost estimated before the trade
	RealizedCostBps  float64 // cost measured after the trade
	ReversionBps     float64 // post-trade move back toward the pre-trade level
}

// CostErrorBps returns realized minus predicted cost.
func (r *PostTradeRecord) CostErrorBps() float64 {
	return r.RealizedCostBps - r.PredictedCostBps
}

// Validate checks that all numeric fields are finite.
func (r *PostTradeRecord) Validate() error {
	if r == nil {
		return ErrInvalidInput
	}
	if !isFinite(r.PredictedCostBps) || !isFinite(r.RealizedCostBps) || !isFinite(r.ReversionBps) {
		return ErrNonFinite
	}
	return nil
}
