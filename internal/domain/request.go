package domain

// TradeRequest is a proposed trade submitted for pre-trade evaluation.
type TradeRequest struct {
	Size     float64 // notional, must be positive
	Side     Side    // BUY | SELL
	Trend    float64 // signed momentum: > 0 prices rising, < 0 falling
	AlphaBps float64 // expected theoretical alpha in bps
}

// Alignment returns side.Sign() * trend clamped to [-1, 1].
// Positive values mean the trade runs with the trend (momentum), negative
// values mean it leans against it (contrarian).
func (r TradeRequest) Alignment() float64 {
	a := r.Side.Sign() * r.Trend
	if a > 1 {
		return 1
	}
	if a < -1 {
		return -1
	}
	return a
}

// Validate checks the request at the package boundary.
func (r TradeRequest) Validate() error {
	if !isFinite(r.Size) || !isFinite(r.Trend) || !isFinite(r.AlphaBps) {
		return ErrNonFinite
	}
	if r.Size <= 0 {
		return ErrNonPositiveSize
	}
	if !r.Side.IsValid() {
		return ErrInvalidSide
	}
	return nil
}
