package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeCalibrationRunID computes a deterministic run_id for one calibration batch.
// Formula: SHA256(engine_id|generation|record_id_1,record_id_2,...)
// Record order matters: the same records in a different order form a different batch.
func ComputeCalibrationRunID(engineID string, generation int, recordIDs []string) string {
	data := fmt.Sprintf("%s|%d|%s", engineID, generation, strings.Join(recordIDs, ","))

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
