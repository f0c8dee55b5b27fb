// Package cmat provides the complex dense operations used by the DMD
// pipeline on top of gonum: products via the complex BLAS layer, and
// square/least-squares solves through the real embedding
// [[Re, -Im], [Im, Re]] so that gonum's QR, LU, and SVD routines drive the
// numerics.
package cmat

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

var ErrSingularSystem = errors.New("linear system is singular or ill-conditioned")

// rcond used to determine the effective rank in the minimum-norm
// least-squares fallback.
const solveRankTol = 1e-12

// FromReal widens a real matrix to complex storage.
func FromReal(a mat.Matrix) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(a.At(i, j), 0))
		}
	}
	return out
}

// Clone materializes any complex matrix, including transposed and conjugated
// views, into owned dense storage.
func Clone(a mat.CMatrix) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j))
		}
	}
	return out
}

// Mul returns the product a*b. Dimension mismatches panic with mat.ErrShape,
// matching gonum's dense operations.
func Mul(a, b mat.CMatrix) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}

	am := Clone(a)
	bm := Clone(b)
	out := mat.NewCDense(ar, bc, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, am.RawCMatrix(), bm.RawCMatrix(), 0, out.RawCMatrix())
	return out
}

// Norm returns the Frobenius norm.
func Norm(a mat.CMatrix) float64 {
	r, c := a.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := cmplx.Abs(a.At(i, j))
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// Col extracts column j.
func Col(a mat.CMatrix, j int) []complex128 {
	r, _ := a.Dims()
	col := make([]complex128, r)
	for i := 0; i < r; i++ {
		col[i] = a.At(i, j)
	}
	return col
}

// Solve solves the square system a*x = b.
func Solve(a, b *mat.CDense) (*mat.CDense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != ac || ar != br {
		panic(mat.ErrShape)
	}

	var x mat.Dense
	if err := x.Solve(realify(a), realifyRHS(b)); err != nil {
		return nil, fmt.Errorf("solving %dx%d complex system, %w", ar, ac, ErrSingularSystem)
	}
	return complexify(&x, ac, bc), nil
}

// LstSq computes the least-squares solution of a*x ~ b, falling back to the
// SVD minimum-norm solution when the system is rank deficient.
func LstSq(a, b *mat.CDense) (*mat.CDense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br {
		panic(mat.ErrShape)
	}

	ra := realify(a)
	rb := realifyRHS(b)

	var x mat.Dense
	if err := x.Solve(ra, rb); err == nil {
		return complexify(&x, ac, bc), nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(ra, mat.SVDThin); !ok {
		return nil, fmt.Errorf("factorizing %dx%d least-squares system, %w", ar, ac, ErrSingularSystem)
	}
	rk := svd.Rank(solveRankTol)
	if rk == 0 {
		return nil, fmt.Errorf("%dx%d least-squares system has rank zero, %w", ar, ac, ErrSingularSystem)
	}
	svd.SolveTo(&x, rb, rk)
	return complexify(&x, ac, bc), nil
}

// realify embeds an m x n complex matrix as the 2m x 2n real matrix
// [[Re, -Im], [Im, Re]].
func realify(a *mat.CDense) *mat.Dense {
	m, n := a.Dims()
	out := mat.NewDense(2*m, 2*n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			re, im := real(v), imag(v)
			out.Set(i, j, re)
			out.Set(i, j+n, -im)
			out.Set(i+m, j, im)
			out.Set(i+m, j+n, re)
		}
	}
	return out
}

// realifyRHS stacks the real parts of an m x k right-hand side over its
// imaginary parts.
func realifyRHS(b *mat.CDense) *mat.Dense {
	m, k := b.Dims()
	out := mat.NewDense(2*m, k, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			v := b.At(i, j)
			out.Set(i, j, real(v))
			out.Set(i+m, j, imag(v))
		}
	}
	return out
}

// complexify reassembles an n x k complex solution from the stacked real
// solution of the embedded system.
func complexify(x *mat.Dense, n, k int) *mat.CDense {
	out := mat.NewCDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			out.Set(i, j, complex(x.At(i, j), x.At(i+n, j)))
		}
	}
	return out
}
