package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"credit-tca/internal/domain"
	"credit-tca/internal/storage"
)

// ErrNoRecords is returned when no post-trade records fall in the requested range.
var ErrNoRecords = errors.New("no post-trade records available for aggregation")

// InstrumentCostError aggregates the cost error of one instrument.
type InstrumentCostError struct {
	InstrumentID     string  `json:"instrument_id"`
	Records          int     `json:"records"`
	CostError        Summary `json:"cost_error_bps"`
	MeanPredictedBps float64 `json:"mean_predicted_bps"`
	MeanRealizedBps  float64 `json:"mean_realized_bps"`
	MeanReversionBps float64 `json:"mean_reversion_bps"`
}

// CostErrorReport is the realized-minus-predicted cost distribution over a time range.
type CostErrorReport struct {
	FromMs      int64                 `json:"from_ms"`
	ToMs        int64                 `json:"to_ms"`
	Records     int                   `json:"records"`
	Overall     Summary               `json:"overall_cost_error_bps"`
	Instruments []InstrumentCostError `json:"instruments"`
}

// Aggregator computes cost-error reports from stored post-trade records.
type Aggregator struct {
	postTradeStore storage.PostTradeStore
}

// NewAggregator creates a new cost-error aggregator.
func NewAggregator(store storage.PostTradeStore) *Aggregator {
	return &Aggregator{postTradeStore: store}
}

// ComputeCostErrors loads records in [start, end] and summarizes their cost
// error overall and per instrument. Instruments are sorted by id; records
// without an instrument are grouped under the empty id.
// Returns ErrNoRecords if nothing matches.
func (a *Aggregator) ComputeCostErrors(ctx context.Context, start, end int64) (*CostErrorReport, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range [%d, %d]", start, end)
	}
	records, err := a.postTradeStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return computeFromRecords(records, start, end), nil
}

func computeFromRecords(records []*domain.PostTradeRecord, start, end int64) *CostErrorReport {
	type acc struct {
		errs, predicted, realized, reversion []float64
	}
	byInstrument := make(map[string]*acc)
	all := make([]float64, 0, len(records))

	for _, r := range records {
		a, ok := byInstrument[r.InstrumentID]
		if !ok {
			a = &acc{}
			byInstrument[r.InstrumentID] = a
		}
		e := r.CostErrorBps()
		all = append(all, e)
		a.errs = append(a.errs, e)
		a.predicted = append(a.predicted, r.PredictedCostBps)
		a.realized = append(a.realized, r.RealizedCostBps)
		a.reversion = append(a.reversion, r.ReversionBps)
	}

	ids := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &CostErrorReport{
		FromMs:      start,
		ToMs:        end,
		Records:     len(records),
		Overall:     Summarize(all),
		Instruments: make([]InstrumentCostError, 0, len(ids)),
	}
	for _, id := range ids {
		a := byInstrument[id]
		report.Instruments = append(report.Instruments, InstrumentCostError{
			InstrumentID:     id,
			Records:          len(a.errs),
			CostError:        Summarize(a.errs),
			MeanPredictedBps: Mean(a.predicted),
			MeanRealizedBps:  Mean(a.realized),
			MeanReversionBps: Mean(a.reversion),
		})
	}
	return report
}
