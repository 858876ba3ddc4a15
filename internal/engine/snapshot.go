package engine

import "gonum.org/v1/gonum/mat"

// Snapshot returns the latest pose, covariance, de-skewed cloud, and
// bounded pose path under a read lock (§6 "Outputs", supplementary
// operation per SPEC_FULL's §4.G expansion).
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.scanCount == 0 {
		return Snapshot{Ready: false}
	}

	q := e.filter.X.Rot
	path := make([]PoseRecord, len(e.path))
	copy(path, e.path)

	return Snapshot{
		Ready:      true,
		TimeSec:    e.lastScanEnd,
		Pos:        e.filter.X.Pos,
		Rot:        [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		PoseCov6x6: poseCovBlock(e.filter.P),
		Cloud:      e.lastCloud,
		Path:       path,
	}
}

// poseCovBlock extracts the 6x6 pose covariance sub-block from the 23x23
// tangent covariance. §6 warns that the tangent layout and the emitted
// output layout can disagree on position-vs-orientation order; this
// module's tangent layout (internal/state: IdxPos=0, IdxRot=3) already
// matches the required output order (position-then-orientation), so the
// top-left 6x6 block is emitted as-is with no index swap.
func poseCovBlock(p *mat.Dense) [6][6]float64 {
	var out [6][6]float64
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			out[i][j] = p.At(i, j)
		}
	}
	return out
}
