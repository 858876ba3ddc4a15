package imu

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
)

func approxEq(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v want %v (tol %v)", msg, got, want, tol)
	}
}

func TestInitSeedsGravityAndBiasFromStationaryWindow(t *testing.T) {
	p := NewProcessor(DefaultNoiseConfig())
	var seed state.State
	var ok bool
	for i := 0; i < InitWindow; i++ {
		seed, ok = p.Accumulate(Sample{
			TimeSec:         float64(i) * 0.01,
			AngularVelocity: [3]float64{0.001, -0.002, 0.0005},
			LinearAccel:     [3]float64{0, 0, 9.81},
		})
	}
	if !ok {
		t.Fatalf("expected initialization to complete after %d samples", InitWindow)
	}
	approxEq(t, norm3(seed.Grav), state.GravityNominal, 1e-9, "gravity magnitude")
	approxEq(t, seed.Bg[0], 0.001, 1e-9, "bg.x")
	approxEq(t, seed.Bg[1], -0.002, 1e-9, "bg.y")
	if norm3(seed.Vel) != 0 {
		t.Errorf("expected zero initial velocity, got %v", seed.Vel)
	}
}

func TestForwardPropagateRejectsEmptySamples(t *testing.T) {
	p := NewProcessor(DefaultNoiseConfig())
	f := kalman.New(state.Identity(), identityCov())
	_, err := p.ForwardPropagate(f, nil, 1.0)
	if err != ErrInsufficientCoverage {
		t.Errorf("expected ErrInsufficientCoverage, got %v", err)
	}
}

func TestForwardPropagateStationaryKeepsPositionNearZero(t *testing.T) {
	p := NewProcessor(DefaultNoiseConfig())
	x0 := state.Identity()
	f := kalman.New(x0, identityCov())

	var samples []Sample
	for i := 0; i <= 50; i++ {
		samples = append(samples, Sample{
			TimeSec:         float64(i) * 0.01,
			AngularVelocity: [3]float64{},
			LinearAccel:     [3]float64{0, 0, state.GravityNominal},
		})
	}
	traj, err := p.ForwardPropagate(f, samples, 0.5)
	if err != nil {
		t.Fatalf("ForwardPropagate: %v", err)
	}
	last := traj[len(traj)-1]
	approxEq(t, norm3(last.Pos), 0, 1e-6, "stationary position drift")
}

func TestDeskewIdentityWhenTrajectoryStationary(t *testing.T) {
	pose := PoseSample{TimeSec: 0, Rot: quat.Number{Real: 1}, Pos: [3]float64{1, 2, 3}}
	traj := []PoseSample{pose, {TimeSec: 0.1, Rot: quat.Number{Real: 1}, Pos: [3]float64{1, 2, 3}}}

	raw := pointcloud.Cloud{Points: []pointcloud.Point{
		{X: 5, Y: 0, Z: 0, TimeMs: 0},
		{X: 0, Y: 5, Z: 0, TimeMs: 50},
	}}

	out := Deskew(raw, traj, 0, [3]float64{}, quat.Number{Real: 1})
	for i, p := range out.Points {
		want := raw.Points[i]
		approxEq(t, float64(p.X), float64(want.X), 1e-4, "deskew x")
		approxEq(t, float64(p.Y), float64(want.Y), 1e-4, "deskew y")
		approxEq(t, float64(p.Z), float64(want.Z), 1e-4, "deskew z")
	}
}

// TestDeskewInterpolatesAgainstAbsoluteTrajectoryTime guards against
// comparing a scan-relative TimeMs offset directly against the trajectory's
// absolute IMU-clock timestamps: every scan with ScanBegin > 0 must still
// land inside the trajectory's time bracket instead of clamping to its
// first pose.
func TestDeskewInterpolatesAgainstAbsoluteTrajectoryTime(t *testing.T) {
	const scanBegin = 5.0
	traj := []PoseSample{
		{TimeSec: 5.0, Rot: quat.Number{Real: 1}, Pos: [3]float64{0, 0, 0}},
		{TimeSec: 5.1, Rot: quat.Number{Real: 1}, Pos: [3]float64{1, 0, 0}},
	}

	raw := pointcloud.Cloud{Points: []pointcloud.Point{
		{X: 0, Y: 0, Z: 0, TimeMs: 50},
	}}

	out := Deskew(raw, traj, scanBegin, [3]float64{}, quat.Number{Real: 1})
	approxEq(t, float64(out.Points[0].X), -0.5, 1e-4, "deskew x against absolute trajectory time")
}

func identityCov() *mat.Dense {
	n := state.TangentDim
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1e-2)
	}
	return out
}
