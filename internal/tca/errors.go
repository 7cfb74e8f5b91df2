package tca

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for out-of-domain inputs.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientData is returned when training input is empty or has no usable rows.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotTrained is returned when the engine is used before Train.
	ErrNotTrained = fmt.Errorf("%w: engine has not been trained", ErrValidation)

	// ErrStaleCalibration is returned when a bias correction targets an old generation.
	ErrStaleCalibration = errors.New("calibration generation changed")
)
