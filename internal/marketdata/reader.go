// Package marketdata reads market snapshots and post-trade records from CSV.
// Header names are mapped to typed fields once, at this boundary.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"credit-tca/internal/domain"
	"credit-tca/internal/idhash"
)

// Errors returned by the readers.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyInput    = errors.New("empty csv input")
)

// maxRowErrors bounds Stats.Errors.
const maxRowErrors = 20

// RowError describes a dropped row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Stats summarizes a read.
type Stats struct {
	Rows    int
	Kept    int
	Dropped int
	Errors  []RowError // first maxRowErrors dropped rows
}

func (s *Stats) drop(line int, err error) {
	s.Dropped++
	if len(s.Errors) < maxRowErrors {
		s.Errors = append(s.Errors, RowError{Line: line, Err: err})
	}
}

// Option configures a read.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger logs dropped rows at debug level and a summary at info level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ReadSnapshots parses market snapshots. Required columns: available size and
// either spread_bps or bid+ask. Rows that fail to parse or validate are
// dropped and counted in Stats; SnapshotID is computed when absent.
func ReadSnapshots(r io.Reader, opts ...Option) ([]domain.MarketSnapshot, Stats, error) {
	o := buildOptions(opts)
	cr, idx, err := open(r)
	if err != nil {
		return nil, Stats{}, err
	}
	_, hasSpread := idx[colSpreadBps]
	_, hasBid := idx[colBid]
	_, hasAsk := idx[colAsk]
	if !hasSpread && !(hasBid && hasAsk) {
		return nil, Stats{}, fmt.Errorf("%w: %s (or %s and %s)", ErrMissingColumn, colSpreadBps, colBid, colAsk)
	}
	if _, ok := idx[colAvailableSize]; !ok {
		return nil, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumn, colAvailableSize)
	}

	var (
		out   []domain.MarketSnapshot
		stats Stats
	)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.drop(line, err)
				continue
			}
			return nil, stats, fmt.Errorf("read csv: %w", err)
		}
		stats.Rows++

		snap, err := parseSnapshot(row{record: record, idx: idx})
		if err == nil {
			err = snap.Validate()
		}
		if err != nil {
			stats.drop(line, err)
			o.logger.Debug().Int("line", line).Err(err).Msg("dropping snapshot row")
			continue
		}
		if snap.SnapshotID == "" {
			snap.SnapshotID = snapshotID(&snap)
		}
		out = append(out, snap)
		stats.Kept++
	}

	o.logger.Info().Int("rows", stats.Rows).Int("kept", stats.Kept).Int("dropped", stats.Dropped).Msg("snapshots loaded")
	return out, stats, nil
}

// snapshotID hashes the quote and, when present, the RFQ outcome, so repeat
// RFQs against one quote get distinct ids.
func snapshotID(s *domain.MarketSnapshot) string {
	outcome := idhash.SnapshotOutcome{
		TradeSize:       s.TradeSize,
		Trend:           s.Trend,
		RealizedCostBps: s.RealizedCostBps,
		Filled:          s.Filled,
	}
	if s.TradeSide != nil {
		outcome.Side = string(*s.TradeSide)
	}
	return idhash.ComputeSnapshotID(s.InstrumentID, s.TimestampMs, s.Bid, s.Ask, s.SpreadBps, s.AvailableSize, outcome)
}

// ReadPostTrades parses post-trade records. Predicted cost, realized cost and
// reversion are required columns; rows with non-finite or unparseable values
// are dropped.
func ReadPostTrades(r io.Reader, opts ...Option) ([]domain.PostTradeRecord, Stats, error) {
	o := buildOptions(opts)
	cr, idx, err := open(r)
	if err != nil {
		return nil, Stats{}, err
	}
	for _, c := range []string{colPredictedCost, colRealizedCost, colReversion} {
		if _, ok := idx[c]; !ok {
			return nil, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var (
		out   []domain.PostTradeRecord
		stats Stats
	)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.drop(line, err)
				continue
			}
			return nil, stats, fmt.Errorf("read csv: %w", err)
		}
		stats.Rows++

		rec, err := parsePostTrade(row{record: record, idx: idx})
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			stats.drop(line, err)
			o.logger.Debug().Int("line", line).Err(err).Msg("dropping post-trade row")
			continue
		}
		if rec.RecordID == "" {
			rec.RecordID = idhash.ComputeRecordID(rec.InstrumentID, rec.TimestampMs, rec.PredictedCostBps, rec.RealizedCostBps, rec.ReversionBps)
		}
		out = append(out, rec)
		stats.Kept++
	}

	o.logger.Info().Int("rows", stats.Rows).Int("kept", stats.Kept).Int("dropped", stats.Dropped).Msg("post-trade records loaded")
	return out, stats, nil
}

func open(r io.Reader) (*csv.Reader, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	return cr, columnIndex(header), nil
}

type row struct {
	record []string
	idx    map[string]int
}

func (r row) str(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// float returns 0 for an empty cell.
func (r row) float(col string) (float64, error) {
	v, err := r.optFloat(col)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

// optFloat returns nil for an empty or NA cell.
func (r row) optFloat(col string) (*float64, error) {
	s := r.str(col)
	switch strings.ToLower(s) {
	case "", "na", "n/a", "null", "nan":
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, domain.ErrInvalidInput)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s: %w", col, domain.ErrNonFinite)
	}
	return &v, nil
}

func parseSnapshot(r row) (domain.MarketSnapshot, error) {
	s := domain.MarketSnapshot{
		SnapshotID:   r.str(colSnapshotID),
		InstrumentID: r.str(colInstrumentID),
		RiskTier:     strings.ToUpper(r.str(colRiskTier)),
	}
	var err error
	if s.TimestampMs, err = parseTimestamp(r.str(colTimestamp)); err != nil {
		return s, err
	}
	if s.Bid, err = r.float(colBid); err != nil {
		return s, err
	}
	if s.Ask, err = r.float(colAsk); err != nil {
		return s, err
	}
	if s.SpreadBps, err = r.float(colSpreadBps); err != nil {
		return s, err
	}
	if s.AvailableSize, err = r.float(colAvailableSize); err != nil {
		return s, err
	}
	if s.VolatilityBps, err = r.optFloat(colVolatilityBps); err != nil {
		return s, err
	}
	if s.Trend, err = r.optFloat(colTrend); err != nil {
		return s, err
	}
	if s.TradeSize, err = r.optFloat(colTradeSize); err != nil {
		return s, err
	}
	if s.RealizedCostBps, err = r.optFloat(colRealizedCost); err != nil {
		return s, err
	}
	if raw := r.str(colSide); raw != "" {
		side, err := domain.ParseSide(raw)
		if err != nil {
			return s, err
		}
		s.TradeSide = &side
	}
	if raw := r.str(colFilled); raw != "" {
		filled, err := parseBool(raw)
		if err != nil {
			return s, fmt.Errorf("%s: %w", colFilled, err)
		}
		s.Filled = &filled
	}
	return s, nil
}

func parsePostTrade(r row) (domain.PostTradeRecord, error) {
	rec := domain.PostTradeRecord{
		RecordID:     r.str(colRecordID),
		InstrumentID: r.str(colInstrumentID),
	}
	var err error
	if rec.TimestampMs, err = parseTimestamp(r.str(colTimestamp)); err != nil {
		return rec, err
	}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{colPredictedCost, &rec.PredictedCostBps},
		{colRealizedCost, &rec.RealizedCostBps},
		{colReversion, &rec.ReversionBps},
	} {
		v, err := r.optFloat(f.col)
		if err != nil {
			return rec, err
		}
		if v == nil {
			return rec, fmt.Errorf("%s: %w", f.col, domain.ErrInvalidInput)
		}
		*f.dst = *v
	}
	return rec, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseTimestamp accepts Unix milliseconds, Unix seconds (values below 1e11)
// or one of timeLayouts in UTC. Empty means 0.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 1e11 {
			return n * 1000, nil
		}
		return n, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("timestamp %q: %w", s, domain.ErrInvalidInput)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y", "filled":
		return true, nil
	case "0", "false", "f", "no", "n", "missed", "unfilled":
		return false, nil
	}
	return false, domain.ErrInvalidInput
}
