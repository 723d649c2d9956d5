package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input boundary errors
	ErrInputMismatch = errors.New("input does not match the declared entry mode")

	// Model validation errors
	ErrInvalidParameter       = errors.New("standardized parameter magnitude >= 1")
	ErrUnsupportedModel       = errors.New("model has fewer than 2 latent factors")
	ErrIdentification         = errors.New("model has zero residual degrees of freedom")
	ErrInsufficientCandidates = errors.New("not enough free item/factor pairs for all misspecification levels")

	// Estimator gate errors
	ErrUnsupportedEstimator = errors.New("estimator not supported by this pipeline")

	// Simulation errors
	ErrNotPositiveDefinite   = errors.New("implied covariance is not positive definite")
	ErrSimulationReliability = errors.New("too many replications failed to converge")

	// Persistence errors
	ErrRunNotFound = errors.New("run not found")
)

// Error constructors with context
func NewInvalidParameterError(kind, name string, value float64) error {
	return fmt.Errorf("%w: %s %s = %.3f", ErrInvalidParameter, kind, name, value)
}

func NewInputMismatchError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInputMismatch, reason)
}

func NewEstimatorError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedEstimator, name)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrUnsupportedModel) ||
		errors.Is(err, ErrIdentification) ||
		errors.Is(err, ErrInsufficientCandidates)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInputMismatch) ||
		errors.Is(err, ErrUnsupportedEstimator) ||
		IsValidationError(err)
}
