package sync2

import (
	"testing"

	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/pointcloud"
)

func cloudWithLastOffsetMs(ms float32) pointcloud.Cloud {
	return pointcloud.Cloud{Points: []pointcloud.Point{
		{TimeMs: 0},
		{TimeMs: ms},
	}}
}

func TestNextNotReadyOnEmptyQueue(t *testing.T) {
	s := New(nil)
	if _, err := s.Next(); err != ErrNotReady {
		t.Errorf("expected ErrNotReady on empty synchronizer, got %v", err)
	}
}

func TestNextWaitsForImuCoverage(t *testing.T) {
	s := New(nil)
	s.PushLidar(cloudWithLastOffsetMs(100), 0.0)
	s.PushIMU(imu.Sample{TimeSec: 0.05})

	if _, err := s.Next(); err != ErrNotReady {
		t.Errorf("expected ErrNotReady before imu covers scan end, got %v", err)
	}

	s.PushIMU(imu.Sample{TimeSec: 0.2})
	pkg, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if pkg.ScanEnd != 0.1 {
		t.Errorf("expected scan end 0.1, got %v", pkg.ScanEnd)
	}
	if len(pkg.IMUSamples) != 1 {
		t.Errorf("expected only the covering imu sample drained, got %d", len(pkg.IMUSamples))
	}
}

func TestNextLeavesLaterImuSamplesQueued(t *testing.T) {
	s := New(nil)
	s.PushLidar(cloudWithLastOffsetMs(100), 0.0)
	s.PushIMU(imu.Sample{TimeSec: 0.05})
	s.PushIMU(imu.Sample{TimeSec: 0.15})
	s.PushIMU(imu.Sample{TimeSec: 0.5})

	pkg, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(pkg.IMUSamples) != 1 {
		t.Errorf("expected 1 imu sample within [0, 0.1], got %d", len(pkg.IMUSamples))
	}
	if len(s.imus) != 2 {
		t.Errorf("expected 2 imu samples to remain queued, got %d", len(s.imus))
	}
}

func TestPushLidarBackInTimeClearsQueue(t *testing.T) {
	s := New(nil)
	s.PushLidar(cloudWithLastOffsetMs(100), 1.0)
	s.PushLidar(cloudWithLastOffsetMs(100), 0.5)

	if len(s.scans) != 1 {
		t.Fatalf("expected queue cleared and only the back-in-time scan kept, got %d", len(s.scans))
	}
	if s.scans[0].t0 != 0.5 {
		t.Errorf("expected surviving scan t0=0.5, got %v", s.scans[0].t0)
	}
}

func TestPushIMUBackInTimeClearsQueue(t *testing.T) {
	s := New(nil)
	s.PushIMU(imu.Sample{TimeSec: 1.0})
	s.PushIMU(imu.Sample{TimeSec: 0.5})

	if len(s.imus) != 1 {
		t.Fatalf("expected imu queue cleared on back-in-time sample, got %d", len(s.imus))
	}
}
