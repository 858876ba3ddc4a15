// Package imu implements the IMU processor of 4.C: stationary-window
// gravity/bias initialization, forward propagation of the filter state
// over a scan, and backward de-skew of the raw point cloud onto a single
// reference time.
package imu

import (
	"errors"

	"gonum.org/v1/gonum/num/quat"
)

// ErrInsufficientCoverage is returned when ForwardPropagate is handed no IMU
// samples for the scan (4.C "Failure semantics"). A non-empty sample list
// that covers only part of the scan interval is not reported.
var ErrInsufficientCoverage = errors.New("imu: insufficient IMU coverage for scan interval")

// Sample is one inertial measurement (3.1 "IMU sample").
type Sample struct {
	TimeSec         float64
	AngularVelocity [3]float64
	LinearAccel     [3]float64
}

// PoseSample is one entry of the per-scan pose trajectory recorded during
// forward propagation and consumed by backward de-skew.
type PoseSample struct {
	TimeSec      float64
	Rot          quat.Number
	Pos          [3]float64
	Vel          [3]float64
	AccWorld     [3]float64
	GyroDebiased [3]float64
}
