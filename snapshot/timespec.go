package snapshot

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidTimeKeys = errors.New("time specification must have exactly the keys t0, tend, and dt")
	ErrNonPositiveStep = errors.New("time step must be positive")
	ErrEndBeforeStart  = errors.New("end time is before start time")
)

// TimeSpec describes a uniformly sampled time grid from T0 to Tend inclusive
// with step Dt.
type TimeSpec struct {
	T0   float64 `json:"t0"`
	Tend float64 `json:"tend"`
	Dt   float64 `json:"dt"`
}

// DefaultTimeSpec returns the unit-step grid 0, 1, ..., nSnapshots-1 used
// when no time specification is supplied at fit time.
func DefaultTimeSpec(nSnapshots int) TimeSpec {
	return TimeSpec{T0: 0, Tend: float64(nSnapshots - 1), Dt: 1}
}

// SpecFromMap builds a TimeSpec from a map that must carry exactly the keys
// t0, tend, and dt.
func SpecFromMap(m map[string]float64) (TimeSpec, error) {
	if len(m) != 3 {
		return TimeSpec{}, fmt.Errorf("got %d keys, %w", len(m), ErrInvalidTimeKeys)
	}
	for _, k := range []string{"t0", "tend", "dt"} {
		if _, ok := m[k]; !ok {
			return TimeSpec{}, fmt.Errorf("missing key %q, %w", k, ErrInvalidTimeKeys)
		}
	}
	ts := TimeSpec{T0: m["t0"], Tend: m["tend"], Dt: m["dt"]}
	if err := ts.Validate(); err != nil {
		return TimeSpec{}, err
	}
	return ts, nil
}

func (ts TimeSpec) Validate() error {
	if ts.Dt <= 0 {
		return fmt.Errorf("dt of %f, %w", ts.Dt, ErrNonPositiveStep)
	}
	if ts.Tend < ts.T0 {
		return fmt.Errorf("tend %f before t0 %f, %w", ts.Tend, ts.T0, ErrEndBeforeStart)
	}
	return nil
}

// NSteps returns the number of grid points including both endpoints.
func (ts TimeSpec) NSteps() int {
	return int(math.Round((ts.Tend-ts.T0)/ts.Dt)) + 1
}

// Steps materializes the time grid t0, t0+dt, ..., tend.
func (ts TimeSpec) Steps() []float64 {
	n := ts.NSteps()
	steps := make([]float64, n)
	for i := 0; i < n; i++ {
		steps[i] = ts.T0 + float64(i)*ts.Dt
	}
	return steps
}
