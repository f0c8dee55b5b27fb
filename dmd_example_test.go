package dmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
)

func recoverExamplePanic() {
	if r := recover(); r != nil {
		fmt.Printf("panic: %v\n", r)
		debug.PrintStack()
	}
}

func Example_dampedOscillators() {
	defer recoverExamplePanic()

	snaps := setupOscillatorField()

	d, err := New(&Options{SVDRank: 10, SortMethod: SortAbs})
	if err != nil {
		panic(err)
	}
	if err := d.Fit(snaps); err != nil {
		panic(err)
	}

	if err := d.Summary(os.Stderr); err != nil {
		panic(err)
	}

	dir, err := os.MkdirTemp("", "dmd-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	if err := d.PlotFit(filepath.Join(dir, "oscillators.html"), 0); err != nil {
		panic(err)
	}

	nModes, err := d.NModes()
	if err != nil {
		panic(err)
	}
	recErr, err := d.ReconstructionError()
	if err != nil {
		panic(err)
	}
	fmt.Printf("modes: %d\n", nModes)
	fmt.Printf("reconstruction error below 1e-6: %t\n", recErr < 1e-6)
	// Output:
	// modes: 10
	// reconstruction error below 1e-6: true
}
