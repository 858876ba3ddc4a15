// Package telemetry wraps the structured logger shared across components,
// grounded on the pack's domain-adjacent LiDAR-SLAM manifests
// (viam-modules-viam-cartographer, viamrobotics-rdk), both of which depend
// on go.uber.org/zap.
package telemetry

import "go.uber.org/zap"

// Logger is the structured logger every component accepts. A nil receiver
// is never passed around; New(nil) yields a no-op logger instead, so
// callers can always log unconditionally.
type Logger = zap.SugaredLogger

// New wraps base, or returns a no-op logger if base is nil.
func New(base *zap.Logger) *Logger {
	if base == nil {
		return zap.NewNop().Sugar()
	}
	return base.Sugar()
}

// NewProduction builds a production zap logger (JSON encoding, info level)
// and wraps it, falling back to a no-op logger if construction fails.
func NewProduction() *Logger {
	base, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return base.Sugar()
}
