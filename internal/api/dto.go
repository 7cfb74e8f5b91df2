package api

import (
	"fmt"

	"credit-tca/internal/calibration"
	"credit-tca/internal/domain"
	"credit-tca/internal/stress"
	"credit-tca/internal/tca"
)

// SnapshotDTO is the wire form of domain.MarketSnapshot.
type SnapshotDTO struct {
	SnapshotID      string   `json:"snapshot_id,omitempty"`
	InstrumentID    string   `json:"instrument_id,omitempty"`
	TimestampMs     int64    `json:"timestamp_ms,omitempty"`
	Bid             float64  `json:"bid,omitempty" validate:"gte=0"`
	Ask             float64  `json:"ask,omitempty" validate:"gte=0"`
	SpreadBps       float64  `json:"spread_bps,omitempty" validate:"gte=0"`
	AvailableSize   float64  `json:"available_size" validate:"gte=0"`
	VolatilityBps   *float64 `json:"volatility_bps,omitempty" validate:"omitempty,gte=0"`
	RiskTier        string   `json:"risk_tier,omitempty"`
	TradeSize       *float64 `json:"trade_size,omitempty" validate:"omitempty,gte=0"`
	TradeSide       *string  `json:"trade_side,omitempty"`
	Trend           *float64 `json:"trend,omitempty"`
	RealizedCostBps *float64 `json:"realized_cost_bps,omitempty"`
	Filled          *bool    `json:"filled,omitempty"`
}

func (d *SnapshotDTO) toDomain() (domain.MarketSnapshot, error) {
	s := domain.MarketSnapshot{
		SnapshotID:      d.SnapshotID,
		InstrumentID:    d.InstrumentID,
		TimestampMs:     d.TimestampMs,
		Bid:             d.Bid,
		Ask:             d.Ask,
		SpreadBps:       d.SpreadBps,
		AvailableSize:   d.AvailableSize,
		VolatilityBps:   d.VolatilityBps,
		RiskTier:        d.RiskTier,
		TradeSize:       d.TradeSize,
		Trend:           d.Trend,
		RealizedCostBps: d.RealizedCostBps,
		Filled:          d.Filled,
	}
	if d.TradeSide != nil {
		side, err := domain.ParseSide(*d.TradeSide)
		if err != nil {
			return s, fmt.Errorf("%w: trade_side: %w", tca.ErrValidation, err)
		}
		s.TradeSide = &side
	}
	return s, nil
}

func snapshotsToDomain(in []SnapshotDTO) ([]domain.MarketSnapshot, error) {
	out := make([]domain.MarketSnapshot, len(in))
	for i := range in {
		s, err := in[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// TradeDTO is a proposed trade.
type TradeDTO struct {
	Size     float64 `json:"size" validate:"gt=0"`
	Side     string  `json:"side" validate:"required"`
	Trend    float64 `json:"trend"`
	AlphaBps float64 `json:"alpha_bps"`
}

func (d *TradeDTO) toDomain() (domain.TradeRequest, error) {
	side, err := domain.ParseSide(d.Side)
	if err != nil {
		return domain.TradeRequest{}, fmt.Errorf("%w: side: %w", tca.ErrValidation, err)
	}
	return domain.TradeRequest{Size: d.Size, Side: side, Trend: d.Trend, AlphaBps: d.AlphaBps}, nil
}

// PostTradeDTO is the wire form of domain.PostTradeRecord.
type PostTradeDTO struct {
	RecordID         string  `json:"record_id,omitempty"`
	InstrumentID     string  `json:"instrument_id,omitempty"`
	TimestampMs      int64   `json:"timestamp_ms,omitempty"`
	PredictedCostBps float64 `json:"predicted_cost_bps"`
	RealizedCostBps  float64 `json:"realized_cost_bps"`
	ReversionBps     float64 `json:"reversion_bps"`
}

func (d *PostTradeDTO) toDomain() domain.PostTradeRecord {
	return domain.PostTradeRecord{
		RecordID:         d.RecordID,
		InstrumentID:     d.InstrumentID,
		TimestampMs:      d.TimestampMs,
		PredictedCostBps: d.PredictedCostBps,
		RealizedCostBps:  d.RealizedCostBps,
		ReversionBps:     d.ReversionBps,
	}
}

// ScenarioDTO is a custom stress scenario.
type ScenarioDTO struct {
	ScenarioID           string  `json:"scenario_id" validate:"required"`
	SpreadMultiplier     float64 `json:"spread_multiplier" validate:"gt=0"`
	LiquidityMultiplier  float64 `json:"liquidity_multiplier" validate:"gt=0"`
	VolatilityMultiplier float64 `json:"volatility_multiplier" validate:"gt=0"`
}

// TrainRequest trains from inline snapshots, or from the snapshot store over
// [from_ms, to_ms] when no snapshots are given.
type TrainRequest struct {
	Snapshots []SnapshotDTO `json:"snapshots" validate:"dive"`
	FromMs    *int64        `json:"from_ms,omitempty"`
	ToMs      *int64        `json:"to_ms,omitempty" validate:"required_with=FromMs"`
}

// EvaluateRequest evaluates one trade against one snapshot.
type EvaluateRequest struct {
	Snapshot *SnapshotDTO `json:"snapshot" validate:"required"`
	Trade    *TradeDTO    `json:"trade" validate:"required"`
}

// CalibrateRequest submits a post-trade batch.
type CalibrateRequest struct {
	Records []PostTradeDTO `json:"records" validate:"dive"`
}

// StressRequest re-evaluates a trade under stress scenarios.
// An empty scenario list runs the predefined set.
type StressRequest struct {
	Snapshots []SnapshotDTO `json:"snapshots" validate:"dive"`
	Trade     *TradeDTO     `json:"trade" validate:"required"`
	Scenarios []ScenarioDTO `json:"scenarios,omitempty" validate:"dive"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	EngineID string `json:"engine_id"`
	State    string `json:"state"`
}

// ModelResponse describes the current engine model.
type ModelResponse struct {
	State string     `json:"state"`
	Model *tca.Model `json:"model,omitempty"`
}

// CalibrateResponse wraps a calibration report.
type CalibrateResponse struct {
	Report         *calibration.Report `json:"report"`
	StoredRecords  int                 `json:"stored_records"`
	DuplicateCount int                 `json:"duplicate_records"`
}

// StressResponse wraps a stress report.
type StressResponse struct {
	Report *stress.Report `json:"report"`
}
