package marketdata

import "strings"

// Canonical column names.
const (
	colSnapshotID    = "snapshot_id"
	colInstrumentID  = "instrument_id"
	colTimestamp     = "timestamp"
	colBid           = "bid"
	colAsk           = "ask"
	colSpreadBps     = "spread_bps"
	colAvailableSize = "available_size"
	colVolatilityBps = "volatility_bps"
	colRiskTier      = "risk_tier"
	colTradeSize     = "trade_size"
	colSide          = "side"
	colTrend         = "trend"
	colRealizedCost  = "realized_cost_bps"
	colFilled        = "filled"

	colRecordID      = "record_id"
	colPredictedCost = "predicted_cost_bps"
	colReversion     = "reversion_bps"
)

// aliases maps normalized header names to canonical columns.
var aliases = map[string]string{
	"snapshot_id": colSnapshotID,
	"id":          colSnapshotID,

	"instrument_id": colInstrumentID,
	"instrument":    colInstrumentID,
	"isin":          colInstrumentID,
	"cusip":         colInstrumentID,
	"bond_id":       colInstrumentID,

	"timestamp":    colTimestamp,
	"timestamp_ms": colTimestamp,
	"ts":           colTimestamp,
	"time":         colTimestamp,
	"date":         colTimestamp,
	"trade_date":   colTimestamp,

	"bid":       colBid,
	"bid_price": colBid,
	"ask":       colAsk,
	"ask_price": colAsk,
	"offer":     colAsk,

	"spread_bps":        colSpreadBps,
	"spread":            colSpreadBps,
	"quoted_spread_bps": colSpreadBps,
	"bid_ask_spread":    colSpreadBps,

	"available_size":      colAvailableSize,
	"available_liquidity": colAvailableSize,
	"liquidity":           colAvailableSize,
	"depth":               colAvailableSize,
	"market_depth":        colAvailableSize,

	"volatility_bps": colVolatilityBps,
	"volatility":     colVolatilityBps,
	"vol":            colVolatilityBps,
	"vol_bps":        colVolatilityBps,

	"risk_tier":     colRiskTier,
	"tier":          colRiskTier,
	"rating_bucket": colRiskTier,

	"trade_size": colTradeSize,
	"size":       colTradeSize,
	"notional":   colTradeSize,
	"quantity":   colTradeSize,

	"side":       colSide,
	"trade_side": colSide,
	"direction":  colSide,

	"trend":        colTrend,
	"market_trend": colTrend,
	"momentum":     colTrend,

	"realized_cost_bps": colRealizedCost,
	"realized_cost":     colRealizedCost,
	"realized":          colRealizedCost,
	"cost_bps":          colRealizedCost,
	"slippage_bps":      colRealizedCost,

	"filled":    colFilled,
	"is_filled": colFilled,
	"fill":      colFilled,
	"traded":    colFilled,

	"record_id": colRecordID,

	"predicted_cost_bps": colPredictedCost,
	"predicted_cost":     colPredictedCost,
	"predicted":          colPredictedCost,
	"expected_cost_bps":  colPredictedCost,

	"reversion_bps": colReversion,
	"reversion":     colReversion,
}

// normalizeHeader lowercases h and folds spaces and dashes to underscores.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
}

// columnIndex resolves the header row to canonical column positions.
// The first occurrence of a canonical column wins.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		canonical, ok := aliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := idx[canonical]; !dup {
			idx[canonical] = i
		}
	}
	return idx
}
