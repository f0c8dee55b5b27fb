package dmd

import (
	"fmt"

	"github.com/romlab/go-dmd/rank"
)

// Eigenvalue sort methods. SortNone keeps the eigensolver's native order,
// which is stable for a fixed input matrix.
const (
	SortNone = ""
	SortAbs  = "abs"
	SortReal = "real"
)

// Options control the mode truncation and reconstruction policies of a fit.
type Options struct {
	// SVDRank is the truncation rank specification. 0 delegates to
	// OptimalRank, a float in (0, 0.5] is a relative singular value
	// threshold, a float in (0.5, 1) is a cumulative energy threshold, an
	// integer >= 1 is used directly, and rank.NoTruncation keeps every
	// singular value.
	SVDRank float64 `json:"svd_rank"`

	// Exact lifts modes through the output snapshots instead of projecting
	// them onto the SVD basis.
	Exact bool `json:"exact"`

	// Opt fits amplitudes against every snapshot instead of only the
	// initial condition.
	Opt bool `json:"opt"`

	// SortMethod reorders eigenvalues and everything indexed by them:
	// SortAbs descending by magnitude, SortReal descending by real then
	// imaginary part.
	SortMethod string `json:"sort_method,omitempty"`

	// OptimalRank resolves an SVDRank of 0. Defaults to keeping the full
	// available rank.
	OptimalRank rank.OptimalPolicy `json:"-"`
}

// NewDefaultOptions returns an untruncated, projected, initial-condition fit
// configuration.
func NewDefaultOptions() *Options {
	return &Options{
		SVDRank:    0,
		Exact:      false,
		Opt:        false,
		SortMethod: SortNone,
	}
}

func (o *Options) validate() error {
	switch o.SortMethod {
	case SortNone, SortAbs, SortReal:
		return nil
	default:
		return fmt.Errorf("sort method %q, %w", o.SortMethod, ErrUnsupportedSortMethod)
	}
}

func (o *Options) copy() *Options {
	cp := *o
	return &cp
}
