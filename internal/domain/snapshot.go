package domain

import "math"

// MarketSnapshot represents one quote/trade event for a bond.
// Corresponds to market_snapshots table in ClickHouse.
type MarketSnapshot struct {
	SnapshotID    string   // deterministic hash
	InstrumentID  string   // ISIN / CUSIP
	TimestampMs   int64    // Unix timestamp in milliseconds
	Bid           float64  // bid price (0 if unknown)
	Ask           float64  // ask price (0 if unknown)
	SpreadBps     float64  // quoted spread in bps (0 = derive from bid/ask)
	AvailableSize float64  // liquidity proxy, notional available at the quote
	VolatilityBps *float64 // dispersion proxy in bps (nullable)
	RiskTier      string   // optional categorical tier, e.g. "IG", "HY"

	// Historical outcome, present only when the row records an executed RFQ.
	TradeSize       *float64 // executed / requested notional
	TradeSide       *Side    // side of the historical trade
	Trend           *float64 // market trend observed at RFQ time
	RealizedCostBps *float64 // realized cost vs mid in bps
	Filled          *bool    // whether the RFQ traded
}

// Mid returns the mid price, or 0 when bid/ask are not both positive.
func (s *MarketSnapshot) Mid() float64 {
	if s.Bid <= 0 || s.Ask <= 0 {
		return 0
	}
	return (s.Bid + s.Ask) / 2
}

// QuotedSpreadBps returns SpreadBps when set, otherwise the bid/ask spread
// relative to mid. Returns 0 if neither is usable.
func (s *MarketSnapshot) QuotedSpreadBps() float64 {
	if s.SpreadBps > 0 && isFinite(s.SpreadBps) {
		return s.SpreadBps
	}
	mid := s.Mid()
	if mid <= 0 || s.Ask < s.Bid {
		return 0
	}
	return (s.Ask - s.Bid) / mid * 10_000
}

// HasCostOutcome reports whether the row carries a realized cost observation.
func (s *MarketSnapshot) HasCostOutcome() bool {
	return s.TradeSize != nil && *s.TradeSize > 0 && s.RealizedCostBps != nil && isFinite(*s.RealizedCostBps)
}

// HasFillOutcome reports whether the row carries a fill/no-fill observation.
func (s *MarketSnapshot) HasFillOutcome() bool {
	return s.TradeSize != nil && *s.TradeSize > 0 && s.Filled != nil
}

// Alignment returns TradeSide.Sign() * Trend clamped to [-1, 1], or 0 when
// either is missing.
func (s *MarketSnapshot) Alignment() float64 {
	if s.TradeSide == nil || s.Trend == nil || !isFinite(*s.Trend) {
		return 0
	}
	return TradeRequest{Side: *s.TradeSide, Trend: *s.Trend}.Alignment()
}

// Validate checks the fields every consumer of a snapshot relies on.
func (s *MarketSnapshot) Validate() error {
	if s == nil {
		return ErrInvalidInput
	}
	if !isFinite(s.Bid) || !isFinite(s.Ask) || !isFinite(s.SpreadBps) || !isFinite(s.AvailableSize) {
		return ErrNonFinite
	}
	if s.VolatilityBps != nil && !isFinite(*s.VolatilityBps) {
		return ErrNonFinite
	}
	if s.QuotedSpreadBps() <= 0 {
		return ErrMissingSpread
	}
	if s.AvailableSize <= 0 {
		return ErrMissingLiquidity
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
