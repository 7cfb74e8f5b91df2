package domain

// CalibrationRun is the audit record of one analyzed post-trade batch.
// Corresponds to calibration_runs table in PostgreSQL.
type CalibrationRun struct {
	RunID                 string   // deterministic hash of engine, generation and records
	EngineID              string   // engine instance the batch was applied to
	CreatedAtMs           int64    // wall-clock time of the analysis (ms)
	RecordCount           int      // records in the batch
	MeanCostErrorBps      float64  // mean realized - predicted
	LiquidityImpactCount  int      // records attributed to temporary impact
	MisspecificationCount int      // records attributed to model error
	Action                string   // AUTO_CORRECTED | MANUAL_REVIEW | NO_ACTION
	MultiplierBefore      float64  // liquidity multiplier before the batch
	MultiplierAfter       float64  // liquidity multiplier after the batch
	GenerationBefore      int      // calibration generation before the batch
	GenerationAfter       int      // calibration generation after the batch
	Warnings              []string // warning kinds raised
}
