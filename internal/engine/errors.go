package engine

import "errors"

// Sentinel errors for the recoverable conditions of §7; callers can match
// them with errors.Is.
var (
	ErrQueueEmpty              = errors.New("engine: queue empty")
	ErrNotReady                = errors.New("engine: synchronized package not ready")
	ErrEmptyDeskewedCloud      = errors.New("engine: de-skewed cloud is empty")
	ErrMapNotBuilt             = errors.New("engine: map not built yet")
	ErrInsufficientIMUCoverage = errors.New("engine: insufficient imu coverage for scan")
)
