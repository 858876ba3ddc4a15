package state

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// so3Eps bounds the small-angle branch of the exponential/logarithm maps.
const so3Eps = 1e-8

// ExpSO3 is the quaternion exponential map: it turns a rotation vector
// (axis * angle, in R^3) into the unit quaternion it generates.
func ExpSO3(phi [3]float64) quat.Number {
	theta := math.Sqrt(phi[0]*phi[0] + phi[1]*phi[1] + phi[2]*phi[2])
	if theta < so3Eps {
		// First-order Taylor expansion keeps the map well defined at phi=0.
		return normalizeQuat(quat.Number{Real: 1, Imag: phi[0] / 2, Jmag: phi[1] / 2, Kmag: phi[2] / 2})
	}
	half := theta / 2
	s := math.Sin(half) / theta
	return quat.Number{
		Real: math.Cos(half),
		Imag: phi[0] * s,
		Jmag: phi[1] * s,
		Kmag: phi[2] * s,
	}
}

// LogSO3 is the inverse of ExpSO3: it recovers the rotation vector of a unit
// quaternion, taking the shortest-angle representative.
func LogSO3(q quat.Number) [3]float64 {
	q = normalizeQuat(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	vNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if vNorm < so3Eps {
		return [3]float64{2 * q.Imag, 2 * q.Jmag, 2 * q.Kmag}
	}
	angle := 2 * math.Atan2(vNorm, q.Real)
	scale := angle / vNorm
	return [3]float64{q.Imag * scale, q.Jmag * scale, q.Kmag * scale}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < so3Eps {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// RotateVector applies unit quaternion q to vector v (q * v * conj(q)).
func RotateVector(q quat.Number, v [3]float64) [3]float64 {
	vq := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return [3]float64{r.Imag, r.Jmag, r.Kmag}
}

// QuatToRotationMatrix returns the 3x3 rotation matrix equivalent to a unit
// quaternion, used when assembling measurement Jacobians (4.D).
func QuatToRotationMatrix(q quat.Number) *mat.Dense {
	q = normalizeQuat(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// Skew returns the 3x3 skew-symmetric cross-product matrix of v, i.e. the
// matrix M such that M*w == v cross w, used in the 4.D Jacobian row.
func Skew(v [3]float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	})
}
