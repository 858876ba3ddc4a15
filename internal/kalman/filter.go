// Package kalman implements the on-manifold iterated error-state Kalman
// filter of 4.B: propagation driven by an IMU process model, and an
// iterated update driven by a user-supplied measurement model.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lio-core/lio/internal/state"
)

const n = state.TangentDim

// MeasurementModel computes the residual vector and its Jacobian at a
// candidate state, as required by 4.D. converged is true on the first
// iteration and whenever the previous step's correction fell below the
// convergence threshold — models may skip correspondence search otherwise.
//
// Evaluate returns ErrNoValidMeasurements when it has no valid residuals.
type MeasurementModel interface {
	Evaluate(x state.State, converged bool) (h *mat.VecDense, H *mat.Dense, r *mat.DiagDense, err error)
}

// Filter holds the current manifold state estimate and its tangent-space
// covariance.
type Filter struct {
	X state.State
	P *mat.Dense // n x n, symmetric

	MaxIterations int
	Epsilon       float64

	lastDiverged bool
}

// New builds a filter at the given initial state and covariance (n x n).
func New(x0 state.State, p0 *mat.Dense) *Filter {
	return &Filter{
		X:             x0,
		P:             p0,
		MaxIterations: 3,
		Epsilon:       1e-4,
	}
}

// Diverged reports whether the most recent Update hit the iteration cap
// without converging (4.B contract: non-fatal warning, last iterate kept).
func (f *Filter) Diverged() bool { return f.lastDiverged }

// Propagate advances the state by one IMU step of length dt, given the
// continuous dynamics evaluated at the current state: fVal = f(x,u) (an
// n-vector in tangent coordinates), A = df/dx (n x n), W = df/dw (n x q),
// and process-noise covariance Q (q x q).
func (f *Filter) Propagate(dt float64, fVal *mat.VecDense, a, w, q *mat.Dense) {
	scaledF := mat.NewVecDense(n, nil)
	scaledF.ScaleVec(dt, fVal)
	f.X = f.X.BoxPlus(scaledF)

	fx := mat.NewDense(n, n, nil)
	fx.Scale(dt, a)
	addIdentity(fx)

	var fxP, fxPFxT mat.Dense
	fxP.Mul(fx, f.P)
	fxPFxT.Mul(&fxP, fx.T())

	var wq, wqwT mat.Dense
	wq.Mul(w, q)
	wqwT.Mul(&wq, w.T())
	wqwT.Scale(dt*dt, &wqwT)

	var pNext mat.Dense
	pNext.Add(&fxPFxT, &wqwT)
	f.P = &pNext
}

func addIdentity(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
}

// Update runs the iterated measurement update of 4.B and writes the
// posterior state and covariance back into the filter. It returns
// ErrNoValidMeasurements when the model never produces a residual, and
// ErrNonPSDInnovation when the information matrix fails its PSD check
// (the prediction is left untouched in both cases).
func (f *Filter) Update(model MeasurementModel) error {
	xPred := f.X
	pPred := f.P
	xi := xPred

	var dxPrev *mat.VecDense
	f.lastDiverged = false

	maxIter := f.MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		converged := iter == 0 || (dxPrev != nil && mat.Norm(dxPrev, 2) < f.Epsilon)

		h, capH, r, err := model.Evaluate(xi, converged)
		if err != nil {
			if iter == 0 {
				return err
			}
			break
		}

		j := retractJacobian(xi, xPred)
		var jInv mat.Dense
		if err := jInv.Inverse(j); err != nil {
			return ErrNonPSDInnovation
		}

		var pPrime mat.Dense
		pPrime.Mul(&jInv, pPred)
		pPrime.Mul(&pPrime, jInv.T())

		k, err := woodburyGain(&pPrime, capH, r)
		if err != nil {
			return err
		}

		xMinusPred := xi.BoxMinus(xPred)

		var kH mat.Dense
		kH.Mul(k, capH)
		iMinusKH := identityMinus(&kH)

		var term1, term2, dx mat.VecDense
		term1.MulVec(k, h)
		term1.ScaleVec(-1, &term1)
		term2.MulVec(iMinusKH, xMinusPred)
		dx.SubVec(&term1, &term2)

		xi = xi.BoxPlus(&dx)
		dxPrev = &dx

		if iter == maxIter-1 {
			f.lastDiverged = true
			var iMinusKHP, left mat.Dense
			iMinusKHP.Mul(iMinusKH, &pPrime)
			left.Mul(&iMinusKHP, iMinusKH.T())

			var kRKT, kR mat.Dense
			kR.Mul(k, r)
			kRKT.Mul(&kR, k.T())

			var pPost mat.Dense
			pPost.Add(&left, &kRKT)
			f.P = symmetrizeDense(&pPost)
		}

		if mat.Norm(&dx, 2) < f.Epsilon {
			f.lastDiverged = false
			// Recompute the posterior covariance at the converged iterate.
			var iMinusKHP, left mat.Dense
			iMinusKHP.Mul(iMinusKH, &pPrime)
			left.Mul(&iMinusKHP, iMinusKH.T())

			var kRKT, kR mat.Dense
			kR.Mul(k, r)
			kRKT.Mul(&kR, k.T())

			var pPost mat.Dense
			pPost.Add(&left, &kRKT)
			f.P = symmetrizeDense(&pPost)
			break
		}
	}

	f.X = xi
	return nil
}

// identityMinus returns I - m for a square matrix m.
func identityMinus(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, r, nil)
	out.Scale(-1, m)
	addIdentity(out)
	return out
}

func symmetrizeDense(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return out
}

// retractJacobian numerically differentiates g(delta) = (xi boxplus delta)
// boxminus xPred around delta=0, giving J_i of 4.B step 2.
func retractJacobian(xi, xPred state.State) *mat.Dense {
	const hStep = 1e-6
	j := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		dPlus := mat.NewVecDense(n, nil)
		dPlus.SetVec(k, hStep)
		dMinus := mat.NewVecDense(n, nil)
		dMinus.SetVec(k, -hStep)

		gPlus := xi.BoxPlus(dPlus).BoxMinus(xPred)
		gMinus := xi.BoxPlus(dMinus).BoxMinus(xPred)

		for row := 0; row < n; row++ {
			j.Set(row, k, (gPlus.AtVec(row)-gMinus.AtVec(row))/(2*hStep))
		}
	}
	return j
}

// woodburyGain computes K = (P^-1 + H^T R^-1 H)^-1 H^T R^-1, inverting only
// in the n-dimensional state space rather than the (typically much larger)
// measurement space, per the Woodbury note in 4.B.
func woodburyGain(p *mat.Dense, h *mat.Dense, r *mat.DiagDense) (*mat.Dense, error) {
	m, _ := h.Dims()

	rInvDiag := make([]float64, m)
	for i := 0; i < m; i++ {
		v := r.At(i, i)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonPSDInnovation
		}
		rInvDiag[i] = 1 / v
	}
	rInvMat := mat.NewDiagDense(m, rInvDiag)

	var pInv mat.Dense
	if err := pInv.Inverse(p); err != nil {
		return nil, ErrNonPSDInnovation
	}

	var hTRInv, hTRInvH, info mat.Dense
	hTRInv.Mul(h.T(), rInvMat)
	hTRInvH.Mul(&hTRInv, h)
	info.Add(&pInv, &hTRInvH)

	symInfo := toSym(&info)
	var chol mat.Cholesky
	if ok := chol.Factorize(symInfo); !ok {
		return nil, ErrNonPSDInnovation
	}
	var infoInv mat.Dense
	infoInv.Inverse(&info)

	var k mat.Dense
	k.Mul(&infoInv, &hTRInv)
	return &k, nil
}

func toSym(a *mat.Dense) *mat.SymDense {
	r, _ := a.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return sym
}
