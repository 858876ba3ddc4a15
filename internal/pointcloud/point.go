// Package pointcloud holds the 3-D point and point-cloud primitives shared
// by the IMU processor, measurement model, and map index.
package pointcloud

import "math"

// Point is a single LiDAR return. Time is stored as a millisecond offset
// from the owning scan's start, the way the reference drivers pack it into
// the PCL "curvature" field.
type Point struct {
	X, Y, Z   float32
	Intensity float32
	TimeMs    float32
}

// Dimensions reports the search dimensionality (always 3 for this engine).
func (p Point) Dimensions() int { return 3 }

// Dimension returns the i-th coordinate, used by the k-d tree splitter.
func (p Point) Dimension(i int) float64 {
	switch i {
	case 0:
		return float64(p.X)
	case 1:
		return float64(p.Y)
	default:
		return float64(p.Z)
	}
}

// Finite reports whether every coordinate is a finite float.
func (p Point) Finite() bool {
	return isFinite(float64(p.X)) && isFinite(float64(p.Y)) && isFinite(float64(p.Z))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SquaredDistance returns the squared Euclidean distance to q.
func (p Point) SquaredDistance(q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	dz := float64(p.Z - q.Z)
	return dx*dx + dy*dy + dz*dz
}

// Cloud is an ordered sequence of points belonging to one temporal window.
type Cloud struct {
	Points []Point
}

// ScanEndMs returns the time offset, in milliseconds, of the last point —
// this defines the scan's end relative to its start timestamp.
func (c Cloud) ScanEndMs() float32 {
	if len(c.Points) == 0 {
		return 0
	}
	return c.Points[len(c.Points)-1].TimeMs
}

// Len reports the number of points in the cloud.
func (c Cloud) Len() int { return len(c.Points) }
