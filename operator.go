package dmd

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/romlab/go-dmd/rank"
	"github.com/romlab/go-dmd/snapshot"
	"gonum.org/v1/gonum/mat"
)

// singular values at or below this fraction of the largest are treated as
// numerically zero when forming reciprocals
const singularValueTol = 1e-14

// fitResult carries all state derived downstream of the SVD. It is built as
// a unit so a failing stage never leaves a partially updated model.
type fitResult struct {
	rank    int
	atilde  *mat.Dense
	eigvals []complex128
	eigvecs *mat.CDense
	modes   *mat.CDense
	amps    []complex128
}

// runPipeline executes rank selection, operator construction,
// eigendecomposition, mode lifting, and amplitude fitting against the cached
// untruncated SVD of the input snapshots.
func runPipeline(opt *Options, snaps *mat.Dense, u *mat.Dense, svals []float64, v *mat.Dense, snapTime, dmdTime snapshot.TimeSpec) (*fitResult, error) {
	r, err := rank.Select(svals, opt.SVDRank, opt.OptimalRank)
	if err != nil {
		return nil, fmt.Errorf("unable to select truncation rank, %w", err)
	}

	atilde, err := computeOperator(snaps, u, svals, v, r)
	if err != nil {
		return nil, err
	}

	eigvals, eigvecs, err := decomposeOperator(atilde, opt.SortMethod)
	if err != nil {
		return nil, err
	}

	modes := computeModes(snaps, u, svals, v, r, eigvecs, opt.Exact)

	amps, err := computeAmplitudes(snaps, modes, eigvals, snapTime, dmdTime, opt.Opt)
	if err != nil {
		return nil, err
	}
	normalizeAmplitudeSigns(amps, modes)

	return &fitResult{
		rank:    r,
		atilde:  atilde,
		eigvals: eigvals,
		eigvecs: eigvecs,
		modes:   modes,
		amps:    amps,
	}, nil
}

// computeOperator projects the state-transition relationship onto the
// truncated SVD basis: Atilde = U^T X1 V diag(1/s).
func computeOperator(snaps, u *mat.Dense, svals []float64, v *mat.Dense, r int) (*mat.Dense, error) {
	n, m := snaps.Dims()
	for i := 0; i < r; i++ {
		if svals[i] <= svals[0]*singularValueTol {
			return nil, fmt.Errorf("singular value %d of %e at rank %d, %w", i, svals[i], r, ErrSingularOperator)
		}
	}

	x1 := snaps.Slice(0, n, 1, m)
	ur := u.Slice(0, n, 0, r)
	vr := v.Slice(0, m-1, 0, r)

	var proj, atilde mat.Dense
	proj.Mul(ur.T(), x1)
	atilde.Mul(&proj, vr)
	for j := 0; j < r; j++ {
		for i := 0; i < r; i++ {
			atilde.Set(i, j, atilde.At(i, j)/svals[j])
		}
	}
	return &atilde, nil
}

// decomposeOperator eigendecomposes the reduced operator and optionally
// applies a deterministic reordering. Sorting permutes eigenvalues and
// eigenvector columns jointly so downstream mode indexing stays consistent.
func decomposeOperator(atilde *mat.Dense, sortMethod string) ([]complex128, *mat.CDense, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(atilde, mat.EigenRight); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition of the reduced operator failed, %w", ErrSingularOperator)
	}
	eigvals := eig.Values(nil)
	r := len(eigvals)
	eigvecs := mat.NewCDense(r, r, nil)
	eig.VectorsTo(eigvecs)

	var less func(i, j int) bool
	switch sortMethod {
	case SortNone:
		return eigvals, eigvecs, nil
	case SortAbs:
		less = func(i, j int) bool {
			return cmplx.Abs(eigvals[i]) > cmplx.Abs(eigvals[j])
		}
	case SortReal:
		less = func(i, j int) bool {
			ri, rj := real(eigvals[i]), real(eigvals[j])
			if ri != rj {
				return ri > rj
			}
			return imag(eigvals[i]) > imag(eigvals[j])
		}
	default:
		return nil, nil, fmt.Errorf("sort method %q, %w", sortMethod, ErrUnsupportedSortMethod)
	}

	perm := make([]int, r)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return less(perm[i], perm[j]) })

	sortedVals := make([]complex128, r)
	sortedVecs := mat.NewCDense(r, r, nil)
	for dst, src := range perm {
		sortedVals[dst] = eigvals[src]
		for i := 0; i < r; i++ {
			sortedVecs.Set(i, dst, eigvecs.At(i, src))
		}
	}
	return sortedVals, sortedVecs, nil
}
