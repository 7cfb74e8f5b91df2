// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Training metrics
	TrainingRunsTotal   *prometheus.CounterVec
	TrainingDuration    prometheus.Histogram
	TrainingRowsUsed    prometheus.Gauge
	TrainingRowsSkip    prometheus.Gauge
	CostModelFitted     prometheus.Gauge
	FillModelFitted     prometheus.Gauge
	LastSuccessfulTrain prometheus.Gauge

	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationErrors   *prometheus.CounterVec
	EvaluationCostBps  prometheus.Histogram
	EvaluationProbFill prometheus.Histogram

	// Calibration metrics
	CalibrationRunsTotal  *prometheus.CounterVec
	CalibrationMeanError  prometheus.Gauge
	LiquidityMultiplier   prometheus.Gauge
	CalibrationGeneration prometheus.Gauge
	ModelDriftWarnings    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "credit_tca"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	bpsBuckets := []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250}

	return &Metrics{
		// Training metrics
		TrainingRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Total number of training runs by status",
		}, []string{"status"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "duration_seconds",
			Help:      "Training duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TrainingRowsUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "rows_used",
			Help:      "Number of snapshots used by the last training run",
		}),
		TrainingRowsSkip: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "rows_skipped",
			Help:      "Number of invalid snapshots skipped by the last training run",
		}),
		CostModelFitted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "cost_model_fitted",
			Help:      "1 if the cost model was fitted from outcomes, 0 if defaults were used",
		}),
		FillModelFitted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "fill_model_fitted",
			Help:      "1 if the fill model was fitted from outcomes, 0 if defaults were used",
		}),
		LastSuccessfulTrain: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_train_timestamp",
			Help:      "Unix timestamp of last successful training run",
		}),

		// Evaluation metrics
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "decisions_total",
			Help:      "Total number of evaluations by decision",
		}, []string{"decision"}),
		EvaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "errors_total",
			Help:      "Total number of rejected evaluations by reason",
		}, []string{"reason"}),
		EvaluationCostBps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "cost_bps",
			Help:      "Estimated execution cost in basis points",
			Buckets:   bpsBuckets,
		}),
		EvaluationProbFill: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "prob_fill",
			Help:      "Estimated fill probability",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		// Calibration metrics
		CalibrationRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "runs_total",
			Help:      "Total number of calibration batches by action",
		}, []string{"action"}),
		CalibrationMeanError: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "mean_cost_error_bps",
			Help:      "Mean realized minus predicted cost of the last batch",
		}),
		LiquidityMultiplier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "liquidity_multiplier",
			Help:      "Current liquidity impact multiplier",
		}),
		CalibrationGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "generation",
			Help:      "Current calibration generation",
		}),
		ModelDriftWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "model_drift_warnings_total",
			Help:      "Total number of model drift warnings raised",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// HandlerFor returns a /metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordTraining records a training run.
func (m *Metrics) RecordTraining(status string, duration time.Duration, used, skipped int, costFitted, fillFitted bool) {
	if m == nil {
		return
	}
	m.TrainingRunsTotal.WithLabelValues(status).Inc()
	m.TrainingDuration.Observe(duration.Seconds())
	if status != "success" {
		return
	}
	m.TrainingRowsUsed.Set(float64(used))
	m.TrainingRowsSkip.Set(float64(skipped))
	m.CostModelFitted.Set(boolGauge(costFitted))
	m.FillModelFitted.Set(boolGauge(fillFitted))
	m.LastSuccessfulTrain.SetToCurrentTime()
	m.LiquidityMultiplier.Set(1)
	m.CalibrationGeneration.Set(0)
}

// RecordEvaluation records one successful evaluation.
func (m *Metrics) RecordEvaluation(decision string, costBps, probFill float64) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(decision).Inc()
	m.EvaluationCostBps.Observe(costBps)
	m.EvaluationProbFill.Observe(probFill)
}

// RecordEvaluationError records a rejected evaluation.
func (m *Metrics) RecordEvaluationError(reason string) {
	if m == nil {
		return
	}
	m.EvaluationErrors.WithLabelValues(reason).Inc()
}

// RecordCalibration records one analyzed post-trade batch.
func (m *Metrics) RecordCalibration(action string, meanErrorBps float64, generation int, multiplier float64, driftWarnings int) {
	if m == nil {
		return
	}
	m.CalibrationRunsTotal.WithLabelValues(action).Inc()
	m.CalibrationMeanError.Set(meanErrorBps)
	m.CalibrationGeneration.Set(float64(generation))
	m.LiquidityMultiplier.Set(multiplier)
	m.ModelDriftWarnings.Add(float64(driftWarnings))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
