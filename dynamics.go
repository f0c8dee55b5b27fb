package dmd

import (
	"math"
	"math/cmplx"

	"github.com/romlab/go-dmd/cmat"
	"gonum.org/v1/gonum/mat"
)

// tolerance for snapping a continuous eigenvalue whose imaginary part sits
// at a multiple of pi back onto the real axis
const omegaSnapTol = 1e-12

// Modes returns the full-order dynamic modes stored column-wise, one column
// per eigenvalue.
func (d *DMD) Modes() (*mat.CDense, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return cmat.Clone(d.modes), nil
}

// Amplitudes returns the scalar weight of each mode at the time origin.
func (d *DMD) Amplitudes() ([]complex128, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	amps := make([]complex128, len(d.amps))
	copy(amps, d.amps)
	return amps, nil
}

// Eigenvalues returns the discrete-time eigenvalues of the reduced operator.
func (d *DMD) Eigenvalues() ([]complex128, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	eigvals := make([]complex128, len(d.eigvals))
	copy(eigvals, d.eigvals)
	return eigvals, nil
}

// Eigenvectors returns the right eigenvectors of the reduced operator,
// column i paired with eigenvalue i.
func (d *DMD) Eigenvectors() (*mat.CDense, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return cmat.Clone(d.eigvecs), nil
}

// Operator returns the reduced evolution operator restricted to the
// truncated SVD subspace.
func (d *DMD) Operator() (*mat.Dense, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(d.atilde), nil
}

// SingularValues returns the full untruncated singular value spectrum of the
// input snapshot matrix for diagnostics.
func (d *DMD) SingularValues() ([]float64, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	svals := make([]float64, len(d.svdS))
	copy(svals, d.svdS)
	return svals, nil
}

// SnapshotTimesteps returns the sampling grid of the training snapshots.
func (d *DMD) SnapshotTimesteps() ([]float64, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return d.snapshotTime.Steps(), nil
}

// DMDTimesteps returns the query grid at which dynamics and reconstruction
// are evaluated.
func (d *DMD) DMDTimesteps() ([]float64, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return d.dmdTime.Steps(), nil
}

// Dynamics returns the time evolution of each mode over the query grid:
// row i holds b_i * lambda_i^((t - t0)/dt). Fractional powers use the
// principal branch, so query grids finer or coarser than the sampling grid
// are supported.
func (d *DMD) Dynamics() (*mat.CDense, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return d.dynamicsAt(d.dmdTime.Steps()), nil
}

// ReconstructedData returns Phi * dynamics over the query grid.
func (d *DMD) ReconstructedData() (*mat.CDense, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	return cmat.Mul(d.modes, d.dynamicsAt(d.dmdTime.Steps())), nil
}

// ReconstructionError returns the relative Frobenius-norm error of the
// surrogate evaluated on the snapshot sampling grid.
func (d *DMD) ReconstructionError() (float64, error) {
	if err := d.checkFitted(); err != nil {
		return 0, err
	}
	diff := d.reconstructionDiff()
	return cmat.Norm(diff) / mat.Norm(d.snapshots, 2), nil
}

// SnapshotErrors returns the relative reconstruction error of each snapshot
// column.
func (d *DMD) SnapshotErrors() ([]float64, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	n, m := d.snapshots.Dims()
	diff := d.reconstructionDiff()

	errs := make([]float64, m)
	for t := 0; t < m; t++ {
		var num, den float64
		for i := 0; i < n; i++ {
			dv := cmplx.Abs(diff.At(i, t))
			num += dv * dv
			xv := d.snapshots.At(i, t)
			den += xv * xv
		}
		errs[t] = math.Sqrt(num) / math.Sqrt(den)
	}
	return errs, nil
}

// Omegas returns the continuous-time eigenvalues ln(lambda)/dt. Eigenvalues
// whose imaginary part sits within tolerance of a multiple of pi are snapped
// to purely real to suppress spurious imaginary residue from the logarithm.
func (d *DMD) Omegas() ([]complex128, error) {
	if err := d.checkFitted(); err != nil {
		return nil, err
	}
	omegas := make([]complex128, len(d.eigvals))
	for i, ev := range d.eigvals {
		w := cmplx.Log(ev) / complex(d.snapshotTime.Dt, 0)
		m := math.Mod(imag(w), math.Pi)
		if m < 0 {
			m += math.Pi
		}
		if m < omegaSnapTol || math.Pi-m < omegaSnapTol {
			w = complex(real(w), 0)
		}
		omegas[i] = w
	}
	return omegas, nil
}

// Frequency returns the oscillation frequency of each mode, Im(omega)/2pi.
func (d *DMD) Frequency() ([]float64, error) {
	omegas, err := d.Omegas()
	if err != nil {
		return nil, err
	}
	freqs := make([]float64, len(omegas))
	for i, w := range omegas {
		freqs[i] = imag(w) / (2 * math.Pi)
	}
	return freqs, nil
}

// dynamicsAt evaluates the mode dynamics on an arbitrary time grid, with
// powers measured against the snapshot sampling grid.
func (d *DMD) dynamicsAt(steps []float64) *mat.CDense {
	r := len(d.eigvals)
	dyn := mat.NewCDense(r, len(steps), nil)
	for i, ev := range d.eigvals {
		for j, t := range steps {
			p := (t - d.snapshotTime.T0) / d.snapshotTime.Dt
			dyn.Set(i, j, d.amps[i]*cmplx.Pow(ev, complex(p, 0)))
		}
	}
	return dyn
}

// reconstructionDiff evaluates X - Phi*dynamics on the sampling grid. The
// grid is clamped to one step per snapshot column so a user-supplied
// specification with a different step count cannot misalign the error.
func (d *DMD) reconstructionDiff() *mat.CDense {
	n, m := d.snapshots.Dims()
	steps := d.snapshotTime.Steps()
	if len(steps) != m {
		steps = make([]float64, m)
		for i := range steps {
			steps[i] = d.snapshotTime.T0 + float64(i)*d.snapshotTime.Dt
		}
	}
	rec := cmat.Mul(d.modes, d.dynamicsAt(steps))
	diff := mat.NewCDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			diff.Set(i, j, complex(d.snapshots.At(i, j), 0)-rec.At(i, j))
		}
	}
	return diff
}
