package kalman

import "errors"

// ErrNonPSDInnovation is returned when the innovation (or information)
// covariance fails the PSD check of 4.B/§7; the caller should skip this
// scan's update and keep the predicted state.
var ErrNonPSDInnovation = errors.New("kalman: non-PSD innovation covariance")

// ErrNoValidMeasurements is returned by a MeasurementModel when it has no
// residuals to contribute (e.g. map not built yet); the update is skipped.
var ErrNoValidMeasurements = errors.New("kalman: no valid measurements")
