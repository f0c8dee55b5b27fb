// Package rank selects the truncation rank for the singular value
// decomposition of a snapshot matrix from a single scalar specification.
package rank

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoSingularValues = errors.New("no singular values to select a rank from")
	ErrInvalidRank      = errors.New("rank specification is out of the valid range")
)

// NoTruncation requests the full available rank.
const NoTruncation = -1

// OptimalPolicy picks a rank from the raw singular value spectrum when the
// specification is 0. It must return a value in [1, len(svals)].
type OptimalPolicy func(svals []float64) int

// FullRank is the default optimal policy and keeps every singular value.
func FullRank(svals []float64) int {
	return len(svals)
}

// Select derives the truncation rank from the descending singular value
// spectrum and the rank specification. The specification follows a scalar
// convention:
//
//   - 0 delegates to the optimal policy, defaulting to the full rank
//   - a float in (0, 0.5] keeps singular values whose value relative to the
//     largest exceeds the specification
//   - a float in (0.5, 1) keeps the smallest leading set whose cumulative
//     squared energy reaches the specification
//   - an integer >= 1 is used directly, capped at the available rank
//   - NoTruncation keeps the full available rank
func Select(svals []float64, spec float64, optimal OptimalPolicy) (int, error) {
	if len(svals) == 0 {
		return 0, ErrNoSingularValues
	}
	avail := len(svals)

	var r int
	switch {
	case spec == NoTruncation:
		r = avail
	case spec == 0:
		if optimal == nil {
			optimal = FullRank
		}
		r = optimal(svals)
	case spec > 0 && spec <= 0.5:
		for _, s := range svals {
			if s/svals[0] > spec {
				r++
			}
		}
	case spec > 0.5 && spec < 1:
		var total float64
		for _, s := range svals {
			total += s * s
		}
		var energy float64
		for _, s := range svals {
			energy += s * s
			r++
			if energy/total >= spec {
				break
			}
		}
	case spec >= 1 && spec == math.Trunc(spec):
		r = int(spec)
		if r > avail {
			r = avail
		}
	default:
		return 0, fmt.Errorf("rank specification of %f, %w", spec, ErrInvalidRank)
	}

	if r < 1 || r > avail {
		return 0, fmt.Errorf("selected rank %d with %d available singular values, %w", r, avail, ErrInvalidRank)
	}
	return r, nil
}
