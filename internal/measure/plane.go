// Package measure implements the point-to-plane measurement model of 4.D:
// for every surface point in the current scan, find its local plane in the
// map, evaluate the point-to-plane residual and its Jacobian against the
// current state estimate.
package measure

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Plane is a fitted local surface: points p on the plane satisfy
// Normal . p + D == 0.
type Plane struct {
	Normal [3]float64
	D      float64
	Valid  bool
}

const (
	neighborCount       = 5
	neighborMaxSqDist   = 25.0 // (5 m)^2 = 25 m^2, §4.D "within 5m"
	pointPlaneMaxDist   = 0.1
	planeQualityFactor  = 0.9
)

// fitPlane least-squares fits a plane through neighbors via SVD of the
// centered neighbor matrix, taking the singular vector of smallest singular
// value as the normal (grounded on the teacher's Procrustes SVD idiom).
// It reports Valid=false when fewer than neighborCount neighbors are given,
// any neighbor lies farther than pointPlaneMaxDist from the fitted plane, or
// the SVD degenerates.
func fitPlane(neighbors [][3]float64) Plane {
	if len(neighbors) < neighborCount {
		return Plane{}
	}
	var centroid [3]float64
	for _, p := range neighbors {
		centroid = add3(centroid, p)
	}
	centroid = scale3(centroid, 1/float64(len(neighbors)))

	a := mat.NewDense(len(neighbors), 3, nil)
	for i, p := range neighbors {
		c := sub3(p, centroid)
		a.Set(i, 0, c[0])
		a.Set(i, 1, c[1])
		a.Set(i, 2, c[2])
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return Plane{}
	}
	var v mat.Dense
	svd.VTo(&v)
	normal := [3]float64{v.At(0, 2), v.At(1, 2), v.At(2, 2)}
	n := norm3(normal)
	if n < 1e-9 {
		return Plane{}
	}
	normal = scale3(normal, 1/n)
	d := -dot3(normal, centroid)

	for _, p := range neighbors {
		if absf(dot3(normal, p)+d) > pointPlaneMaxDist {
			return Plane{}
		}
	}
	return Plane{Normal: normal, D: d, Valid: true}
}

// residualWeight implements the §4.D weighting rule s = 1 - 0.9*|r|/sqrt(|p|),
// accepted only when s > 0.9. |p| is the LiDAR-frame point norm (laserMapping.
// cpp's p_body.norm()), not the world-frame norm — the latter grows
// unboundedly as the sensor translates away from the origin and would let
// the gate degenerate to accept-all.
func residualWeight(r float64, pLidarNorm float64) (weight float64, accept bool) {
	if pLidarNorm < 1e-9 {
		return 0, false
	}
	s := 1 - planeQualityFactor*absf(r)/math.Sqrt(pLidarNorm)
	return s, s > 0.9
}

func add3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
func sub3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
func scale3(a [3]float64, f float64) [3]float64 {
	return [3]float64{a[0] * f, a[1] * f, a[2] * f}
}
func dot3(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func norm3(a [3]float64) float64   { return math.Sqrt(dot3(a, a)) }
func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
