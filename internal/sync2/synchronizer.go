// Package sync2 implements the synchronizer of 4.F (named to avoid
// colliding with the standard library's "sync"): it pairs one LiDAR scan
// with every IMU sample whose timestamp falls within the scan window,
// dropping out-of-order data.
//
// Grounded directly on the teacher's internal/synchronization.go
// (Synchronizer, mutex-guarded map, GetAlignedData's "drain complete, leave
// partial" loop shape), re-specified around two ordered queues plus an EWMA
// of scan duration per spec §4.F.
package sync2

import (
	"sync"

	"go.uber.org/zap"

	"github.com/lio-core/lio/internal/imu"
	"github.com/lio-core/lio/internal/pointcloud"
)

// ewmaAlpha weights the running mean scan duration.
const ewmaAlpha = 0.2

// MeasurePackage bundles one scan with the IMU samples covering it.
type MeasurePackage struct {
	Cloud      pointcloud.Cloud
	ScanBegin  float64
	ScanEnd    float64
	IMUSamples []imu.Sample
}

type scanEntry struct {
	cloud pointcloud.Cloud
	t0    float64
	ended bool
}

// Synchronizer holds the LiDAR and IMU input queues (each queued scan
// carrying its own start timestamp) and the timing state of 4.F.
type Synchronizer struct {
	mu sync.Mutex

	scans []scanEntry
	imus  []imu.Sample

	lastLidarTs float64
	lastImuTs   float64
	haveLidarTs bool
	haveImuTs   bool

	meanScanTime float64
	havePushed   bool

	log *zap.SugaredLogger
}

// New builds an empty synchronizer.
func New(log *zap.SugaredLogger) *Synchronizer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Synchronizer{log: log}
}

// PushLidar enqueues one scan (producer entry point, O(1) under the lock).
// Scans with a timestamp older than the last one clear the LiDAR queue and
// log a warning (4.F "back-in-time handling").
func (s *Synchronizer) PushLidar(cloud pointcloud.Cloud, t0 float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveLidarTs && t0 < s.lastLidarTs {
		s.log.Warnw("sync2: lidar timestamp went backward, clearing queue", "last", s.lastLidarTs, "got", t0)
		s.scans = nil
	}
	s.lastLidarTs = t0
	s.haveLidarTs = true
	s.scans = append(s.scans, scanEntry{cloud: cloud, t0: t0})
}

// PushIMU enqueues one IMU sample, applying the same back-in-time policy.
func (s *Synchronizer) PushIMU(sample imu.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveImuTs && sample.TimeSec < s.lastImuTs {
		s.log.Warnw("sync2: imu timestamp went backward, clearing queue", "last", s.lastImuTs, "got", sample.TimeSec)
		s.imus = nil
	}
	s.lastImuTs = sample.TimeSec
	s.haveImuTs = true
	s.imus = append(s.imus, sample)
}

// notReadyErr is the type of ErrNotReady, returned by Next when no complete
// package is available yet.
type notReadyErr struct{}

func (notReadyErr) Error() string { return "sync2: not ready" }

// ErrNotReady is the sentinel instance checked by callers.
var ErrNotReady error = notReadyErr{}

// Next attempts to produce one MeasurePackage per the 4.F rule: take the
// oldest unpushed scan's start time t0 and compute t_end from its last
// point's time offset, falling back to t0+meanScanTime when that offset is
// implausibly small; if last_imu_ts has not yet reached t_end, report
// ErrNotReady; otherwise drain the covering IMU samples and pop the scan.
func (s *Synchronizer) Next() (MeasurePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scans) == 0 {
		return MeasurePackage{}, ErrNotReady
	}
	scan := s.scans[0]

	tEnd := s.scanEndTime(scan)
	if !s.haveImuTs || s.lastImuTs < tEnd {
		return MeasurePackage{}, ErrNotReady
	}

	var covered []imu.Sample
	var remaining []imu.Sample
	for _, sample := range s.imus {
		if sample.TimeSec <= tEnd {
			covered = append(covered, sample)
		} else {
			remaining = append(remaining, sample)
		}
	}
	s.imus = remaining
	s.scans = s.scans[1:]

	s.updateMeanScanTime(tEnd - scan.t0)

	return MeasurePackage{
		Cloud:      scan.cloud,
		ScanBegin:  scan.t0,
		ScanEnd:    tEnd,
		IMUSamples: covered,
	}, nil
}

func (s *Synchronizer) scanEndTime(scan scanEntry) float64 {
	pts := scan.cloud.Points
	if len(pts) == 0 {
		return scan.t0 + s.fallbackScanTime()
	}
	lastOffset := float64(pts[len(pts)-1].TimeMs) / 1000.0
	mean := s.fallbackScanTime()
	if lastOffset < 0.5*mean {
		return scan.t0 + mean
	}
	return scan.t0 + lastOffset
}

func (s *Synchronizer) fallbackScanTime() float64 {
	if !s.havePushed {
		return 0.1 // a reasonable first-scan guess (10 Hz LiDAR) before the EWMA has any data
	}
	return s.meanScanTime
}

func (s *Synchronizer) updateMeanScanTime(duration float64) {
	if !s.havePushed {
		s.meanScanTime = duration
		s.havePushed = true
		return
	}
	s.meanScanTime = ewmaAlpha*duration + (1-ewmaAlpha)*s.meanScanTime
}
