package selection

import "errors"

var (
	// ErrInsufficientData is returned when a data-driven threshold is requested for an empty score set.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrShapeMismatch is returned when candidates and scores differ in length.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDimensionMismatch is returned when two vectors differ in dimensionality or are empty.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidThresholdSpec is returned for malformed or unknown threshold strategies.
	ErrInvalidThresholdSpec = errors.New("invalid threshold spec")
)
