package measure

import (
	"gonum.org/v1/gonum/mat"

	"github.com/lio-core/lio/internal/ikdtree"
	"github.com/lio-core/lio/internal/kalman"
	"github.com/lio-core/lio/internal/pointcloud"
	"github.com/lio-core/lio/internal/state"
)

// LaserPointCov is the per-measurement observation noise variance of 4.D
// (LASER_POINT_COV in the reference tuning).
const LaserPointCov = 1e-3

// correspondence caches, per scan point, the fitted plane and whether the
// point should participate in the update. Re-searched on the first
// iteration and whenever the filter reports convergence; reused from cache
// on every other iterate (4.D step 4).
type correspondence struct {
	pointLidar [3]float64
	plane      Plane
	accepted   bool
}

// Model implements kalman.MeasurementModel over one scan's surface points
// against the incremental k-d tree map.
type Model struct {
	tree  *ikdtree.Tree
	scan  []pointcloud.Point
	cache []correspondence
	ready bool
}

// New builds a measurement model for one scan against tree. Scan points are
// expected already in the LiDAR frame.
func New(tree *ikdtree.Tree, scan []pointcloud.Point) *Model {
	return &Model{tree: tree, scan: scan}
}

var _ kalman.MeasurementModel = (*Model)(nil)

// Evaluate implements kalman.MeasurementModel (4.D steps 1-3).
func (m *Model) Evaluate(x state.State, converged bool) (*mat.VecDense, *mat.Dense, *mat.DiagDense, error) {
	if converged || !m.ready {
		m.rebuildCorrespondences(x)
	}

	var rows [][]float64
	var residuals []float64
	for _, c := range m.cache {
		if !c.accepted {
			continue
		}
		h := measurementRow(x, c)
		rows = append(rows, h)
		residuals = append(residuals, planeResidual(x, c))
	}
	if len(rows) == 0 {
		return nil, nil, nil, kalman.ErrNoValidMeasurements
	}

	mCount := len(rows)
	hVec := mat.NewVecDense(mCount, residuals)
	capH := mat.NewDense(mCount, state.TangentDim, nil)
	for i, row := range rows {
		for j, v := range row {
			capH.Set(i, j, v)
		}
	}
	rDiag := make([]float64, mCount)
	for i := range rDiag {
		rDiag[i] = LaserPointCov
	}
	r := mat.NewDiagDense(mCount, rDiag)
	return hVec, capH, r, nil
}

func (m *Model) rebuildCorrespondences(x state.State) {
	m.cache = make([]correspondence, len(m.scan))
	for i, p := range m.scan {
		pLidar := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
		pWorld := x.PointInWorldFrame(pLidar)

		query := pointcloud.Point{X: float32(pWorld[0]), Y: float32(pWorld[1]), Z: float32(pWorld[2])}
		neighborPoints, sqDists, plane := planeFromNeighbors(m.tree, query)
		_ = neighborPoints

		c := correspondence{pointLidar: pLidar}
		if plane.Valid && len(sqDists) > 0 && sqDists[len(sqDists)-1] <= neighborMaxSqDist {
			r := planeResidualWorld(plane, pWorld)
			_, accept := residualWeight(r, norm3(pLidar))
			c.plane = plane
			c.accepted = accept
		}
		m.cache[i] = c
	}
	m.ready = true
}

func planeFromNeighbors(tree *ikdtree.Tree, query pointcloud.Point) ([]pointcloud.Point, []float64, Plane) {
	neighbors, sqDists := tree.NearestSearch(query, neighborCount)
	if len(neighbors) < neighborCount {
		return neighbors, sqDists, Plane{}
	}
	pts := make([][3]float64, len(neighbors))
	for i, n := range neighbors {
		pts[i] = [3]float64{float64(n.X), float64(n.Y), float64(n.Z)}
	}
	return neighbors, sqDists, fitPlane(pts)
}

func planeResidualWorld(plane Plane, pWorld [3]float64) float64 {
	return dot3(plane.Normal, pWorld) + plane.D
}

func planeResidual(x state.State, c correspondence) float64 {
	pWorld := x.PointInWorldFrame(c.pointLidar)
	return planeResidualWorld(c.plane, pWorld)
}

// measurementRow builds the 4.D Jacobian row H = [n, -n.R.skew(p_I),
// -n.R.R_LI.skew(p_L), 0, 0, 0, 0, 0] against the tangent-space layout of
// internal/state.
func measurementRow(x state.State, c correspondence) []float64 {
	row := make([]float64, state.TangentDim)
	n := c.plane.Normal

	row[state.IdxPos+0] = n[0]
	row[state.IdxPos+1] = n[1]
	row[state.IdxPos+2] = n[2]

	rot := state.QuatToRotationMatrix(x.Rot)
	pImu := x.PointInIMUFrame(c.pointLidar)
	rotSkewPImu := matVecSkewRow(rot, pImu)
	for i := 0; i < 3; i++ {
		row[state.IdxRot+i] = -rowDot(n, rotSkewPImu, i)
	}

	offsetRot := state.QuatToRotationMatrix(x.OffsetR)
	rRLI := matMulDense(rot, offsetRot)
	rotSkewPLidar := matVecSkewRowDense(rRLI, c.pointLidar)
	for i := 0; i < 3; i++ {
		row[state.IdxOffsetR+i] = -rowDot(n, rotSkewPLidar, i)
	}
	// offset_T, vel, bg, ba, grav columns stay zero: the plane residual does
	// not depend on those state blocks to first order.
	return row
}

// matVecSkewRow returns, for each tangent column k, the 3-vector
// R*skew(p)[:,k] so the caller can dot it against the plane normal.
func matVecSkewRow(rot *mat.Dense, p [3]float64) [3][3]float64 {
	skew := state.Skew(p)
	var rSkew mat.Dense
	rSkew.Mul(rot, skew)
	var out [3][3]float64
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[col][row] = rSkew.At(row, col)
		}
	}
	return out
}

func matVecSkewRowDense(rRLI *mat.Dense, p [3]float64) [3][3]float64 {
	skew := state.Skew(p)
	var rSkew mat.Dense
	rSkew.Mul(rRLI, skew)
	var out [3][3]float64
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[col][row] = rSkew.At(row, col)
		}
	}
	return out
}

func matMulDense(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

func rowDot(n [3]float64, cols [3][3]float64, colIdx int) float64 {
	v := cols[colIdx]
	return n[0]*v[0] + n[1]*v[1] + n[2]*v[2]
}
