package state

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

func floatsClose(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestRetractLiftLaw(t *testing.T) {
	x0 := Identity()
	deltas := []float64{1e-4, 5e-4, 1e-3}
	for _, mag := range deltas {
		delta := mat.NewVecDense(TangentDim, nil)
		for i := 0; i < TangentDim; i++ {
			delta.SetVec(i, mag*float64(i%3-1))
		}
		moved := x0.BoxPlus(delta)
		back := moved.BoxMinus(x0)
		for i := 0; i < TangentDim; i++ {
			if !floatsClose(back.AtVec(i), delta.AtVec(i), 1e-6) {
				t.Errorf("mag=%v idx=%d: got %v want %v", mag, i, back.AtVec(i), delta.AtVec(i))
			}
		}
	}
}

func TestBoxPlusQuaternionStaysUnit(t *testing.T) {
	x := Identity()
	delta := mat.NewVecDense(TangentDim, nil)
	delta.SetVec(IdxRot, 0.2)
	delta.SetVec(IdxRot+1, -0.1)
	delta.SetVec(IdxRot+2, 0.05)
	for i := 0; i < 50; i++ {
		x = x.BoxPlus(delta)
	}
	n := quat.Abs(x.Rot)
	if n < 1-1e-6 || n > 1+1e-6 {
		t.Errorf("quaternion norm drifted to %v after repeated BoxPlus", n)
	}
}

func TestGravityMagnitudePreserved(t *testing.T) {
	x := Identity()
	delta := mat.NewVecDense(TangentDim, nil)
	delta.SetVec(IdxGrav, 0.01)
	delta.SetVec(IdxGrav+1, -0.02)
	for i := 0; i < 20; i++ {
		x = x.BoxPlus(delta)
	}
	mag := norm3(x.Grav)
	if mag < 9.80 || mag > 9.82 {
		t.Errorf("gravity magnitude drifted to %v", mag)
	}
}

func TestPointInWorldFrameIdentity(t *testing.T) {
	x := Identity()
	x.Pos = [3]float64{1, 2, 3}
	p := [3]float64{0.5, 0, 0}
	got := x.PointInWorldFrame(p)
	want := [3]float64{1.5, 2, 3}
	for i := range got {
		if !floatsClose(got[i], want[i], 1e-9) {
			t.Errorf("PointInWorldFrame()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpLogSO3RoundTrip(t *testing.T) {
	phi := [3]float64{0.3, -0.2, 0.1}
	q := ExpSO3(phi)
	back := LogSO3(q)
	for i := range phi {
		if !floatsClose(phi[i], back[i], 1e-9) {
			t.Errorf("LogSO3(ExpSO3(phi))[%d] = %v, want %v", i, back[i], phi[i])
		}
	}
}
