// Package dmd builds reduced-order surrogate models of high-dimensional
// time-series data with the dynamic mode decomposition. A fit extracts a
// small set of spatial modes with complex growth/oscillation rates from a
// snapshot matrix and supports reconstructing or extrapolating the state at
// arbitrary query times.
package dmd

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/romlab/go-dmd/snapshot"
	"gonum.org/v1/gonum/mat"
)

// DMD holds the snapshots, the cached SVD, and all quantities derived by a
// fit. Derived state is replaced wholesale by Fit and Refit and is never
// mutated afterwards, so concurrent reads of a fitted instance are safe;
// concurrent Fit/Refit calls on the same instance are not.
type DMD struct {
	opt *Options

	snapshots    *mat.Dense // n_features x n_snapshots
	snapshotTime snapshot.TimeSpec
	dmdTime      snapshot.TimeSpec
	timeSet      bool

	// thin SVD of the input snapshots, cached untruncated across refits
	svdU *mat.Dense
	svdS []float64
	svdV *mat.Dense

	rank    int
	atilde  *mat.Dense
	eigvals []complex128
	eigvecs *mat.CDense
	modes   *mat.CDense
	amps    []complex128

	fitted bool
}

// New creates a DMD model with the given options. If none are provided, a
// default is used.
func New(opt *Options) (*DMD, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	return &DMD{opt: opt.copy()}, nil
}

// Fit ingests a snapshot matrix with one column per time instant, computes
// the truncated SVD, and runs the full decomposition pipeline. The input is
// copied and never mutated. On failure the previously fitted state, if any,
// is left untouched.
func (d *DMD) Fit(x mat.Matrix) error {
	if d == nil {
		return ErrUninitializedModel
	}

	snaps, err := snapshot.DenseCopy(x)
	if err != nil {
		return fmt.Errorf("unable to ingest snapshots, %w", err)
	}

	n, m := snaps.Dims()
	x0 := snaps.Slice(0, n, 0, m-1)

	var svd mat.SVD
	if ok := svd.Factorize(x0, mat.SVDThin); !ok {
		return fmt.Errorf("snapshot matrix SVD failed, %w", ErrSingularOperator)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	svals := svd.Values(nil)

	st := d.snapshotTime
	dt := d.dmdTime
	if !d.timeSet {
		st = snapshot.DefaultTimeSpec(m)
		dt = st
	}

	res, err := runPipeline(d.opt, snaps, &u, svals, &v, st, dt)
	if err != nil {
		return err
	}

	d.snapshots = snaps
	d.snapshotTime = st
	d.dmdTime = dt
	d.svdU = &u
	d.svdS = svals
	d.svdV = &v
	d.commit(d.opt, res)
	return nil
}

// Refit re-runs everything downstream of the SVD with new hyperparameters,
// reusing the SVD cached by Fit. A sortMethod of SortNone keeps the
// eigensolver's native order.
func (d *DMD) Refit(svdRank float64, exact, opt bool, sortMethod string) error {
	if d == nil {
		return ErrUninitializedModel
	}
	if !d.fitted {
		return ErrNotFitted
	}

	next := d.opt.copy()
	next.SVDRank = svdRank
	next.Exact = exact
	next.Opt = opt
	next.SortMethod = sortMethod
	if err := next.validate(); err != nil {
		return err
	}

	res, err := runPipeline(next, d.snapshots, d.svdU, d.svdS, d.svdV, d.snapshotTime, d.dmdTime)
	if err != nil {
		return err
	}
	d.commit(next, res)
	return nil
}

func (d *DMD) commit(opt *Options, res *fitResult) {
	d.opt = opt
	d.rank = res.rank
	d.atilde = res.atilde
	d.eigvals = res.eigvals
	d.eigvecs = res.eigvecs
	d.modes = res.modes
	d.amps = res.amps
	d.fitted = true
}

// SetTimeSpec sets the sampling grid of the training snapshots and the query
// grid for dynamics and reconstruction. Both maps must carry exactly the
// keys t0, tend, and dt; a nil query map reuses the snapshot grid. Calling
// this before Fit pins the grids so Fit will not derive defaults.
func (d *DMD) SetTimeSpec(snapshotTime, dmdTime map[string]float64) error {
	if d == nil {
		return ErrUninitializedModel
	}

	st, err := snapshot.SpecFromMap(snapshotTime)
	if err != nil {
		return fmt.Errorf("unable to parse snapshot time specification, %w", err)
	}
	dt := st
	if dmdTime != nil {
		if dt, err = snapshot.SpecFromMap(dmdTime); err != nil {
			return fmt.Errorf("unable to parse query time specification, %w", err)
		}
	}

	d.snapshotTime = st
	d.dmdTime = dt
	d.timeSet = true
	return nil
}

// OptimizeHyperparameters exhaustively searches rank x exact x opt for the
// combination with minimum reconstruction error and leaves the model refit
// to that optimum. The eigenvalue sort method is kept fixed. Trials whose
// error is not finite are skipped.
func (d *DMD) OptimizeHyperparameters(verbose bool) error {
	if d == nil {
		return ErrUninitializedModel
	}
	if !d.fitted {
		return ErrNotFitted
	}

	type trial struct {
		rank       int
		exact, opt bool
	}

	// trials refit in place, so keep the entry state to put back if the
	// search cannot improve on it
	entryOpt := d.opt
	entryRes := &fitResult{
		rank:    d.rank,
		atilde:  d.atilde,
		eigvals: d.eigvals,
		eigvecs: d.eigvecs,
		modes:   d.modes,
		amps:    d.amps,
	}

	_, m := d.snapshots.Dims()
	maxRank := len(d.svdS)
	if m-1 < maxRank {
		maxRank = m - 1
	}

	best := trial{}
	bestErr := math.Inf(1)
	for r := 1; r <= maxRank; r++ {
		for _, exact := range []bool{false, true} {
			for _, opt := range []bool{false, true} {
				if err := d.Refit(float64(r), exact, opt, entryOpt.SortMethod); err != nil {
					if verbose {
						slog.Warn("skipping hyperparameter trial", "rank", r, "exact", exact, "opt", opt, "error", err.Error())
					}
					continue
				}
				recErr, err := d.ReconstructionError()
				if err != nil {
					return err
				}
				if verbose {
					slog.Info("hyperparameter trial", "rank", r, "exact", exact, "opt", opt, "reconstruction_error", recErr)
				}
				if math.IsNaN(recErr) || math.IsInf(recErr, 0) {
					continue
				}
				if recErr < bestErr {
					bestErr = recErr
					best = trial{rank: r, exact: exact, opt: opt}
				}
			}
		}
	}

	if math.IsInf(bestErr, 1) {
		d.commit(entryOpt, entryRes)
		return ErrNoImprovingFit
	}
	if err := d.Refit(float64(best.rank), best.exact, best.opt, entryOpt.SortMethod); err != nil {
		d.commit(entryOpt, entryRes)
		return err
	}
	if verbose {
		slog.Info("hyperparameter optimization complete",
			"rank", best.rank, "exact", best.exact, "opt", best.opt, "reconstruction_error", bestErr)
	}
	return nil
}

// NFeatures returns the snapshot state dimension.
func (d *DMD) NFeatures() (int, error) {
	if err := d.checkFitted(); err != nil {
		return 0, err
	}
	n, _ := d.snapshots.Dims()
	return n, nil
}

// NSnapshots returns the number of training snapshots.
func (d *DMD) NSnapshots() (int, error) {
	if err := d.checkFitted(); err != nil {
		return 0, err
	}
	_, m := d.snapshots.Dims()
	return m, nil
}

// NModes returns the number of retained modes.
func (d *DMD) NModes() (int, error) {
	if err := d.checkFitted(); err != nil {
		return 0, err
	}
	return d.rank, nil
}

func (d *DMD) checkFitted() error {
	if d == nil {
		return ErrUninitializedModel
	}
	if !d.fitted {
		return ErrNotFitted
	}
	return nil
}
