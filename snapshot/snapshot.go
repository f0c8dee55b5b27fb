// Package snapshot handles ingestion and validation of snapshot matrices,
// the column-per-time-instant data layout consumed by the DMD fit, along
// with the time specifications describing the sampling and query grids.
package snapshot

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoSnapshots           = errors.New("no snapshot data")
	ErrRaggedSnapshots       = errors.New("snapshots have differing lengths")
	ErrInsufficientSnapshots = errors.New("at least two snapshots are required")
)

// FromSlices stacks a sequence of equal-length snapshots column-wise into an
// n_features by n_snapshots matrix. Snapshot i becomes column i.
func FromSlices(snaps [][]float64) (*mat.Dense, error) {
	if len(snaps) == 0 {
		return nil, ErrNoSnapshots
	}
	if len(snaps) < 2 {
		return nil, ErrInsufficientSnapshots
	}

	nFeatures := len(snaps[0])
	if nFeatures == 0 {
		return nil, ErrNoSnapshots
	}
	for i, s := range snaps {
		if len(s) != nFeatures {
			return nil, fmt.Errorf(
				"snapshot %d has length %d, but snapshot 0 has length %d, %w",
				i, len(s), nFeatures, ErrRaggedSnapshots,
			)
		}
	}

	x := mat.NewDense(nFeatures, len(snaps), nil)
	for j, s := range snaps {
		x.SetCol(j, s)
	}
	return x, nil
}

// DenseCopy validates a snapshot matrix and returns an owned copy. The input
// must have at least one feature row and two snapshot columns to form a
// snapshot pair.
func DenseCopy(x mat.Matrix) (*mat.Dense, error) {
	if x == nil {
		return nil, ErrNoSnapshots
	}
	n, m := x.Dims()
	if n == 0 || m == 0 {
		return nil, ErrNoSnapshots
	}
	if m < 2 {
		return nil, fmt.Errorf("got %d snapshot columns, %w", m, ErrInsufficientSnapshots)
	}
	return mat.DenseCopyOf(x), nil
}
