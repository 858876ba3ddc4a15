package simulate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/pointcloud"
)

type recordingSink struct {
	mu      sync.Mutex
	imuN    int
	lidarN  int
	lastPts int
}

func (r *recordingSink) PushIMU(imu.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imuN++
}

func (r *recordingSink) PushLidar(cloud pointcloud.Cloud, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lidarN++
	r.lastPts = cloud.Len()
}

func TestGeneratorDrivesBothStreamsUntilCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IMURateHz = 500
	cfg.LidarRateHz = 50
	cfg.PointsPerScan = 8

	g := New(cfg)
	sink := &recordingSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	g.Run(ctx, sink, Stationary())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.imuN == 0 {
		t.Errorf("expected at least one IMU sample to be pushed")
	}
	if sink.lidarN == 0 {
		t.Errorf("expected at least one LiDAR scan to be pushed")
	}
	if sink.lastPts != cfg.PointsPerScan {
		t.Errorf("expected %d points per scan, got %d", cfg.PointsPerScan, sink.lastPts)
	}
}

func TestSyntheticScanAssignsMonotonicTimeOffsets(t *testing.T) {
	g := New(Config{PointsPerScan: 16, RoomHalfExtentM: 3, Seed: 7})
	scan := g.syntheticScan(100)
	if scan.Len() != 16 {
		t.Fatalf("expected 16 points, got %d", scan.Len())
	}
	for i := 1; i < len(scan.Points); i++ {
		if scan.Points[i].TimeMs < scan.Points[i-1].TimeMs {
			t.Errorf("expected non-decreasing TimeMs offsets, got %v before %v", scan.Points[i-1].TimeMs, scan.Points[i].TimeMs)
		}
	}
}
