package dmd

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/romlab/go-dmd/rank"
	"github.com/romlab/go-dmd/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearSystemSnapshots generates m snapshots of x[k+1] = A x[k] from x0.
func linearSystemSnapshots(a *mat.Dense, x0 []float64, m int) *mat.Dense {
	n := len(x0)
	snaps := mat.NewDense(n, m, nil)
	x := mat.NewVecDense(n, append([]float64(nil), x0...))
	for k := 0; k < m; k++ {
		snaps.SetCol(k, x.RawVector().Data)
		var next mat.VecDense
		next.MulVec(a, x)
		x = &next
	}
	return snaps
}

func TestFitDoublingSequenceFullRank(t *testing.T) {
	// columns [1,1], [2,1], [4,1]: exact eigenvalues are 2 and 1
	x := mat.NewDense(2, 3, []float64{
		1, 2, 4,
		1, 1, 1,
	})

	d, err := New(&Options{SVDRank: rank.NoTruncation, SortMethod: SortAbs})
	require.NoError(t, err)
	require.NoError(t, d.Fit(x))

	eigvals, err := d.Eigenvalues()
	require.NoError(t, err)
	require.Len(t, eigvals, 2)
	assert.InDelta(t, 2.0, real(eigvals[0]), 1e-6)
	assert.InDelta(t, 0.0, imag(eigvals[0]), 1e-6)
	assert.InDelta(t, 1.0, real(eigvals[1]), 1e-6)

	rec, err := d.ReconstructedData()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, real(rec.At(0, 2)), 1e-6)
	assert.InDelta(t, 1.0, real(rec.At(1, 2)), 1e-6)

	recErr, err := d.ReconstructionError()
	require.NoError(t, err)
	assert.Less(t, recErr, 1e-10)
}

func TestFitGeometricSequenceRankOne(t *testing.T) {
	// rank-one data: both rows double each step
	snaps, err := snapshot.FromSlices([][]float64{
		{1, 3},
		{2, 6},
		{4, 12},
	})
	require.NoError(t, err)

	d, err := New(&Options{SVDRank: 1})
	require.NoError(t, err)
	require.NoError(t, d.Fit(snaps))

	nModes, err := d.NModes()
	require.NoError(t, err)
	assert.Equal(t, 1, nModes)

	svals, err := d.SingularValues()
	require.NoError(t, err)
	require.Len(t, svals, 2)
	assert.Less(t, svals[1], 1e-12, "input data is rank one")

	eigvals, err := d.Eigenvalues()
	require.NoError(t, err)
	require.Len(t, eigvals, 1)
	assert.InDelta(t, 2.0, real(eigvals[0]), 1e-6)
	assert.InDelta(t, 0.0, imag(eigvals[0]), 1e-6)

	rec, err := d.ReconstructedData()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, real(rec.At(0, 2)), 1e-6)
	assert.InDelta(t, 12.0, real(rec.At(1, 2)), 1e-6)
}

func TestFitReconstructionIdentityAtFullRank(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{
		0.9, 0.2,
		0.0, 0.8,
	})
	snaps := linearSystemSnapshots(a, []float64{1, 1}, 8)

	testData := map[string]*Options{
		"projected initial condition": {SVDRank: rank.NoTruncation},
		"exact modes":                 {SVDRank: rank.NoTruncation, Exact: true},
		"optimal amplitudes":          {SVDRank: rank.NoTruncation, Opt: true},
		"exact and optimal":           {SVDRank: rank.NoTruncation, Exact: true, Opt: true},
	}

	for name, opt := range testData {
		t.Run(name, func(t *testing.T) {
			d, err := New(opt)
			require.NoError(t, err)
			require.NoError(t, d.Fit(snaps))

			recErr, err := d.ReconstructionError()
			require.NoError(t, err)
			assert.Less(t, recErr, 1e-10)

			eigvals, err := d.Eigenvalues()
			require.NoError(t, err)
			mags := []float64{cmplx.Abs(eigvals[0]), cmplx.Abs(eigvals[1])}
			assert.InDelta(t, 0.9*0.8, mags[0]*mags[1], 1e-9, "eigenvalues must match the true system spectrum")
		})
	}
}

func TestFitInvalidSnapshots(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	require.ErrorIs(t, d.Fit(nil), snapshot.ErrNoSnapshots)
	require.ErrorIs(t, d.Fit(mat.NewDense(3, 1, nil)), snapshot.ErrInsufficientSnapshots)
}

func TestFitSingularRetainedSpectrum(t *testing.T) {
	// rank-one data cannot support a second retained singular value
	degenerate := mat.NewDense(2, 3, []float64{
		1, 2, 4,
		2, 4, 8,
	})

	t.Run("unfitted instance stays unfitted", func(t *testing.T) {
		d, err := New(&Options{SVDRank: 2})
		require.NoError(t, err)
		require.ErrorIs(t, d.Fit(degenerate), ErrSingularOperator)

		_, err = d.Modes()
		require.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("prior fit survives", func(t *testing.T) {
		a := mat.NewDense(2, 2, []float64{
			0.9, 0.2,
			0.0, 0.8,
		})
		snaps := linearSystemSnapshots(a, []float64{1, 1}, 8)

		d, err := New(&Options{SVDRank: 2})
		require.NoError(t, err)
		require.NoError(t, d.Fit(snaps))
		eigsBefore, err := d.Eigenvalues()
		require.NoError(t, err)

		require.ErrorIs(t, d.Fit(degenerate), ErrSingularOperator)

		eigsAfter, err := d.Eigenvalues()
		require.NoError(t, err)
		assert.Equal(t, eigsBefore, eigsAfter)

		nSnaps, err := d.NSnapshots()
		require.NoError(t, err)
		assert.Equal(t, 8, nSnaps)
	})
}

func TestAmplitudeSignNormalization(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{
		0.5, -0.7,
		0.7, 0.5,
	})
	snaps := linearSystemSnapshots(a, []float64{-3, 2}, 10)

	for _, opt := range []bool{false, true} {
		d, err := New(&Options{SVDRank: rank.NoTruncation, Opt: opt})
		require.NoError(t, err)
		require.NoError(t, d.Fit(snaps))

		amps, err := d.Amplitudes()
		require.NoError(t, err)
		for i, b := range amps {
			assert.GreaterOrEqual(t, real(b), 0.0, "amplitude %d with opt=%t", i, opt)
		}

		// sign flips must not change the reconstruction
		recErr, err := d.ReconstructionError()
		require.NoError(t, err)
		assert.Less(t, recErr, 1e-9)
	}
}

func TestSortMethods(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		0.4, 0, 0,
		0, 0.95, 0,
		0, 0, 0.7,
	})
	snaps := linearSystemSnapshots(a, []float64{1, 2, 3}, 10)

	t.Run("abs descending", func(t *testing.T) {
		d, err := New(&Options{SVDRank: rank.NoTruncation, SortMethod: SortAbs})
		require.NoError(t, err)
		require.NoError(t, d.Fit(snaps))

		eigvals, err := d.Eigenvalues()
		require.NoError(t, err)
		for i := 1; i < len(eigvals); i++ {
			assert.GreaterOrEqual(t, cmplx.Abs(eigvals[i-1]), cmplx.Abs(eigvals[i]))
		}
	})

	t.Run("real descending", func(t *testing.T) {
		d, err := New(&Options{SVDRank: rank.NoTruncation, SortMethod: SortReal})
		require.NoError(t, err)
		require.NoError(t, d.Fit(snaps))

		eigvals, err := d.Eigenvalues()
		require.NoError(t, err)
		for i := 1; i < len(eigvals); i++ {
			prev, curr := eigvals[i-1], eigvals[i]
			if real(prev) == real(curr) {
				assert.GreaterOrEqual(t, imag(prev), imag(curr))
				continue
			}
			assert.Greater(t, real(prev), real(curr))
		}
	})

	t.Run("sorting permutes eigenpairs jointly", func(t *testing.T) {
		sorted, err := New(&Options{SVDRank: rank.NoTruncation, SortMethod: SortAbs})
		require.NoError(t, err)
		require.NoError(t, sorted.Fit(snaps))

		unsorted, err := New(&Options{SVDRank: rank.NoTruncation})
		require.NoError(t, err)
		require.NoError(t, unsorted.Fit(snaps))

		// a pure permutation cannot change the reconstruction
		sortedErr, err := sorted.ReconstructionError()
		require.NoError(t, err)
		unsortedErr, err := unsorted.ReconstructionError()
		require.NoError(t, err)
		assert.InDelta(t, unsortedErr, sortedErr, 1e-12)
	})

	t.Run("unsupported method", func(t *testing.T) {
		_, err := New(&Options{SortMethod: "magnitude"})
		require.ErrorIs(t, err, ErrUnsupportedSortMethod)
	})
}

func TestRefit(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		0.4, 0, 0,
		0, 0.95, 0,
		0, 0, 0.7,
	})
	snaps := linearSystemSnapshots(a, []float64{1, 2, 3}, 12)

	d, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, d.Fit(snaps))

	t.Run("before fit", func(t *testing.T) {
		fresh, err := New(nil)
		require.NoError(t, err)
		require.ErrorIs(t, fresh.Refit(1, false, false, SortNone), ErrNotFitted)
	})

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, d.Refit(2, true, false, SortAbs))
		modes1, err := d.Modes()
		require.NoError(t, err)
		amps1, err := d.Amplitudes()
		require.NoError(t, err)

		require.NoError(t, d.Refit(2, true, false, SortAbs))
		modes2, err := d.Modes()
		require.NoError(t, err)
		amps2, err := d.Amplitudes()
		require.NoError(t, err)

		require.Equal(t, len(amps1), len(amps2))
		for i := range amps1 {
			assert.InDelta(t, 0, cmplx.Abs(amps1[i]-amps2[i]), 1e-12)
		}
		rows, cols := modes1.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				assert.InDelta(t, 0, cmplx.Abs(modes1.At(i, j)-modes2.At(i, j)), 1e-12)
			}
		}
	})

	t.Run("error non-increasing in rank", func(t *testing.T) {
		prev := math.Inf(1)
		for r := 1; r <= 3; r++ {
			require.NoError(t, d.Refit(float64(r), false, false, SortNone))
			recErr, err := d.ReconstructionError()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, recErr, 0.0)
			assert.LessOrEqual(t, recErr, prev+1e-9, "rank %d", r)
			prev = recErr
		}
	})

	t.Run("invalid rank preserves state", func(t *testing.T) {
		require.NoError(t, d.Refit(2, false, false, SortNone))
		before, err := d.NModes()
		require.NoError(t, err)

		require.ErrorIs(t, d.Refit(-0.25, false, false, SortNone), rank.ErrInvalidRank)

		after, err := d.NModes()
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestAccessorsBeforeFit(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	_, err = d.Modes()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.Amplitudes()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.Eigenvalues()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.Operator()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.SingularValues()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.ReconstructedData()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.ReconstructionError()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.Dynamics()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = d.Omegas()
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestSetTimeSpec(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		err := d.SetTimeSpec(map[string]float64{"t0": 0, "dt": 1}, nil)
		require.ErrorIs(t, err, snapshot.ErrInvalidTimeKeys)
	})

	t.Run("query grid defaults to snapshot grid", func(t *testing.T) {
		require.NoError(t, d.SetTimeSpec(map[string]float64{"t0": 0, "tend": 3, "dt": 1}, nil))

		x := mat.NewDense(1, 4, []float64{1, 2, 4, 8})
		require.NoError(t, d.Fit(x))

		st, err := d.SnapshotTimesteps()
		require.NoError(t, err)
		dt, err := d.DMDTimesteps()
		require.NoError(t, err)
		assert.Equal(t, st, dt)
	})
}

func TestOptimizeHyperparameters(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{
		0.9, 0.2,
		0.0, 0.8,
	})
	snaps := linearSystemSnapshots(a, []float64{1, 1}, 8)

	d, err := New(&Options{SVDRank: 1})
	require.NoError(t, err)
	require.NoError(t, d.Fit(snaps))
	require.NoError(t, d.OptimizeHyperparameters(false))

	recErr, err := d.ReconstructionError()
	require.NoError(t, err)
	assert.Less(t, recErr, 1e-10, "full rank must be found by the search")

	nModes, err := d.NModes()
	require.NoError(t, err)
	assert.Equal(t, 2, nModes)
}

func TestOptimizeHyperparametersNoFiniteTrial(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{
		0.9, 0.2,
		0.0, 0.8,
	})
	snaps := linearSystemSnapshots(a, []float64{1, 1}, 8)

	d, err := New(&Options{SVDRank: 2, Exact: true, SortMethod: SortAbs})
	require.NoError(t, err)
	require.NoError(t, d.Fit(snaps))

	ampsBefore, err := d.Amplitudes()
	require.NoError(t, err)
	rankBefore, err := d.NModes()
	require.NoError(t, err)

	// zero out the cached spectrum so every search trial is rejected
	for i := range d.svdS {
		d.svdS[i] = 0
	}

	require.ErrorIs(t, d.OptimizeHyperparameters(false), ErrNoImprovingFit)

	// the entry configuration and fit must be back in place
	assert.Equal(t, 2.0, d.opt.SVDRank)
	assert.True(t, d.opt.Exact)
	assert.Equal(t, SortAbs, d.opt.SortMethod)

	rankAfter, err := d.NModes()
	require.NoError(t, err)
	assert.Equal(t, rankBefore, rankAfter)

	ampsAfter, err := d.Amplitudes()
	require.NoError(t, err)
	assert.Equal(t, ampsBefore, ampsAfter)
}

func TestOptimizeHyperparametersBeforeFit(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)
	require.ErrorIs(t, d.OptimizeHyperparameters(false), ErrNotFitted)
}
