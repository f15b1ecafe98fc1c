package vda

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a device descriptor with missing identity
// fields; the caller's input is at fault and nothing was resolved.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// SpecNotFoundError reports an unknown device type. Callers treat this as
// "unsupported device", not as a fatal condition.
type SpecNotFoundError struct {
	DeviceType string
}

func (e *SpecNotFoundError) Error() string {
	return fmt.Sprintf("no spec for device type %q", e.DeviceType)
}

// ErrNoStrategyMatched should be unreachable: the static fallback strategy
// matches everything. Seeing it means the chain was misassembled.
var ErrNoStrategyMatched = errors.New("no mapping strategy matched device")

// StrategyFailedError wraps a failure inside one strategy with the strategy
// name, so one device's failure is attributable without aborting a caller's
// batch.
type StrategyFailedError struct {
	Strategy string
	Err      error
}

func (e *StrategyFailedError) Error() string {
	return fmt.Sprintf("strategy %s failed: %v", e.Strategy, e.Err)
}

func (e *StrategyFailedError) Unwrap() error {
	return e.Err
}
