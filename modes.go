package dmd

import (
	"fmt"
	"math/cmplx"

	"github.com/romlab/go-dmd/cmat"
	"github.com/romlab/go-dmd/snapshot"
	"gonum.org/v1/gonum/mat"
)

// computeModes lifts the reduced eigenvectors to full-order spatial modes.
// Projected modes live in the SVD subspace (Phi = U W); exact modes are
// lifted through the output snapshots (Phi = X1 V diag(1/s) W).
func computeModes(snaps, u *mat.Dense, svals []float64, v *mat.Dense, r int, eigvecs *mat.CDense, exact bool) *mat.CDense {
	n, m := snaps.Dims()

	if !exact {
		ur := u.Slice(0, n, 0, r)
		return cmat.Mul(cmat.FromReal(ur), eigvecs)
	}

	x1 := snaps.Slice(0, n, 1, m)
	vr := v.Slice(0, m-1, 0, r)

	var lift mat.Dense
	lift.Mul(x1, vr)
	for j := 0; j < r; j++ {
		for i := 0; i < n; i++ {
			lift.Set(i, j, lift.At(i, j)/svals[j])
		}
	}
	return cmat.Mul(cmat.FromReal(&lift), eigvecs)
}

// computeAmplitudes determines the scalar weight of each mode at the time
// origin, either by a least-squares fit of the modes to the first snapshot
// or by the globally optimal fit across the whole snapshot sequence.
func computeAmplitudes(snaps *mat.Dense, modes *mat.CDense, eigvals []complex128, snapTime, dmdTime snapshot.TimeSpec, opt bool) ([]complex128, error) {
	if !opt {
		n, _ := snaps.Dims()
		x0 := cmat.FromReal(snaps.Slice(0, n, 0, 1))
		b, err := cmat.LstSq(modes, x0)
		if err != nil {
			return nil, fmt.Errorf("unable to fit amplitudes to the initial snapshot, %w", err)
		}
		return cmat.Col(b, 0), nil
	}

	_, m := snaps.Dims()
	vd := vandermonde(eigvals, snapTime, dmdTime, m)

	// P = (Phi^H Phi) o conj(Vd Vd^H), q = conj(diag(Vd X^H Phi))
	r := len(eigvals)
	gram := cmat.Mul(modes.H(), modes)
	vdvd := cmat.Mul(vd, vd.H())
	p := mat.NewCDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			p.Set(i, j, gram.At(i, j)*cmplx.Conj(vdvd.At(i, j)))
		}
	}

	xc := cmat.FromReal(snaps)
	diag := cmat.Mul(cmat.Mul(vd, xc.H()), modes)
	q := mat.NewCDense(r, 1, nil)
	for i := 0; i < r; i++ {
		q.Set(i, 0, cmplx.Conj(diag.At(i, i)))
	}

	b, err := cmat.Solve(p, q)
	if err != nil {
		return nil, fmt.Errorf("unable to fit optimal amplitudes, %w", err)
	}
	return cmat.Col(b, 0), nil
}

// vandermonde builds the r x m matrix Vd[i][j] = eigvals[i]^p_j with powers
// taken from the query grid, mapped onto the sampling grid as
// (t - t0)/dt. The optimal-amplitude Gram system is defined against the m
// training snapshots, so when the query grid has a different length the
// snapshot grid powers 0..m-1 are used instead.
func vandermonde(eigvals []complex128, snapTime, dmdTime snapshot.TimeSpec, m int) *mat.CDense {
	powers := make([]float64, m)
	if dmdTime.NSteps() == m {
		for j, t := range dmdTime.Steps() {
			powers[j] = (t - snapTime.T0) / snapTime.Dt
		}
	} else {
		for j := range powers {
			powers[j] = float64(j)
		}
	}

	vd := mat.NewCDense(len(eigvals), m, nil)
	for i, ev := range eigvals {
		for j, p := range powers {
			vd.Set(i, j, cmplx.Pow(ev, complex(p, 0)))
		}
	}
	return vd
}

// normalizeAmplitudeSigns fixes the sign ambiguity of the factorization by
// flipping any amplitude with a negative real part together with its mode
// column, leaving the product unchanged.
func normalizeAmplitudeSigns(amps []complex128, modes *mat.CDense) {
	n, _ := modes.Dims()
	for i, b := range amps {
		if real(b) < 0 {
			amps[i] = -b
			for row := 0; row < n; row++ {
				modes.Set(row, i, -modes.At(row, i))
			}
		}
	}
}
