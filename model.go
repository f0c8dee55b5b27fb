package dmd

import (
	"fmt"
	"io"

	"github.com/romlab/go-dmd/snapshot"
)

// Complex is a JSON-serializable complex scalar.
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

func toComplex(vals []complex128) []Complex {
	out := make([]Complex, len(vals))
	for i, v := range vals {
		out[i] = Complex{Re: real(v), Im: imag(v)}
	}
	return out
}

// Model is the serializable read-only summary of a fitted instance: the
// options, the selected rank, the spectral quantities, and the fit scores.
type Model struct {
	Options    *Options `json:"options"`
	Rank       int      `json:"rank"`
	NFeatures  int      `json:"n_features"`
	NSnapshots int      `json:"n_snapshots"`

	SnapshotTime snapshot.TimeSpec `json:"snapshot_time"`
	DMDTime      snapshot.TimeSpec `json:"dmd_time"`

	Eigenvalues []Complex `json:"eigenvalues"`
	Amplitudes  []Complex `json:"amplitudes"`
	Frequencies []float64 `json:"frequencies"`

	ReconstructionError float64 `json:"reconstruction_error"`
}

// Model returns the serializable representation of the fitted model.
func (d *DMD) Model() (Model, error) {
	if err := d.checkFitted(); err != nil {
		return Model{}, err
	}

	n, m := d.snapshots.Dims()
	recErr, err := d.ReconstructionError()
	if err != nil {
		return Model{}, err
	}
	freqs, err := d.Frequency()
	if err != nil {
		return Model{}, err
	}

	return Model{
		Options:             d.opt.copy(),
		Rank:                d.rank,
		NFeatures:           n,
		NSnapshots:          m,
		SnapshotTime:        d.snapshotTime,
		DMDTime:             d.dmdTime,
		Eigenvalues:         toComplex(d.eigvals),
		Amplitudes:          toComplex(d.amps),
		Frequencies:         freqs,
		ReconstructionError: recErr,
	}, nil
}

// Summary writes a human-readable report of the fitted model.
func (d *DMD) Summary(w io.Writer) error {
	if err := d.checkFitted(); err != nil {
		return err
	}

	m, err := d.Model()
	if err != nil {
		return err
	}
	snapErrs, err := d.SnapshotErrors()
	if err != nil {
		return err
	}
	var meanErr, maxErr float64
	for _, e := range snapErrs {
		meanErr += e
		if e > maxErr {
			maxErr = e
		}
	}
	meanErr /= float64(len(snapErrs))

	fmt.Fprintf(w, "DMD Summary\n")
	fmt.Fprintf(w, "%-22s: %d\n", "# of Modes", m.Rank)
	fmt.Fprintf(w, "%-22s: %d\n", "# of Snapshots", m.NSnapshots)
	fmt.Fprintf(w, "%-22s: %d\n", "# of Features", m.NFeatures)
	fmt.Fprintf(w, "%-22s: %t\n", "Exact Modes", m.Options.Exact)
	fmt.Fprintf(w, "%-22s: %t\n", "Optimal Amplitudes", m.Options.Opt)
	fmt.Fprintf(w, "%-22s: %.3g\n", "Reconstruction Error", m.ReconstructionError)
	fmt.Fprintf(w, "%-22s: %.3g\n", "Mean Snapshot Error", meanErr)
	fmt.Fprintf(w, "%-22s: %.3g\n", "Max Snapshot Error", maxErr)
	return nil
}
