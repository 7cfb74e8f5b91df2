package domain

import (
	"errors"
	"fmt"
)

// Validation errors for domain records. All of them wrap ErrInvalidInput.
var (
	// ErrInvalidInput is the parent of every domain validation error.
	ErrInvalidInput = errors.New("invalid input")

	ErrMissingSpread    = fmt.Errorf("%w: snapshot has no usable spread", ErrInvalidInput)
	ErrMissingLiquidity = fmt.Errorf("%w: snapshot has no positive available size", ErrInvalidInput)
	ErrNonPositiveSize  = fmt.Errorf("%w: size must be positive", ErrInvalidInput)
	ErrInvalidSide      = fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidInput)
	ErrNonFinite        = fmt.Errorf("%w: value is NaN or infinite", ErrInvalidInput)
)
