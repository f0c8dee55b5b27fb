package dmd

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// LineDynamics generates an echart line chart of the real part of each mode
// dynamic over the query grid.
func LineDynamics(timesteps []float64, dynamics [][]float64, omegas []complex128) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "DMD Dynamics",
			},
		),
	)

	line = line.SetXAxis(timesteps)
	for i, dyn := range dynamics {
		lineData := make([]opts.LineData, 0, len(dyn))
		for _, v := range dyn {
			lineData = append(lineData, opts.LineData{Value: v})
		}
		name := fmt.Sprintf("Mode %d, omega=%.3e%+.3ej", i, real(omegas[i]), imag(omegas[i]))
		line = line.AddSeries(name, lineData)
	}
	return line
}

// LineSingularValues generates an echart line chart of the singular value
// spectrum normalized to its total.
func LineSingularValues(svals []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "Singular Value Spectrum",
			},
		),
	)

	var total float64
	for _, s := range svals {
		total += s
	}
	idx := make([]int, len(svals))
	lineData := make([]opts.LineData, 0, len(svals))
	for i, s := range svals {
		idx[i] = i
		lineData = append(lineData, opts.LineData{Value: s / total})
	}
	return line.SetXAxis(idx).AddSeries("Relative Singular Value", lineData)
}

// LineReconstruction generates an echart line chart comparing one feature
// row of the training snapshots against its reconstruction.
func LineReconstruction(timesteps, actual, reconstructed []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "DMD Reconstruction",
			},
		),
	)

	lineDataActual := make([]opts.LineData, 0, len(actual))
	for _, v := range actual {
		lineDataActual = append(lineDataActual, opts.LineData{Value: v})
	}
	lineDataRec := make([]opts.LineData, 0, len(reconstructed))
	for _, v := range reconstructed {
		lineDataRec = append(lineDataRec, opts.LineData{Value: v})
	}

	return line.SetXAxis(timesteps).
		AddSeries("Actual", lineDataActual).
		AddSeries("Reconstructed", lineDataRec)
}

// PlotFit renders an html page with the reconstruction of the given feature
// row, the mode dynamics, and the singular value spectrum. It consumes only
// the read accessors of a fitted model.
func (d *DMD) PlotFit(path string, featureIdx int) error {
	if err := d.checkFitted(); err != nil {
		return err
	}
	n, _ := d.snapshots.Dims()
	if featureIdx < 0 || featureIdx >= n {
		return fmt.Errorf("feature index %d out of range [0, %d)", featureIdx, n)
	}

	steps, err := d.DMDTimesteps()
	if err != nil {
		return err
	}
	dyn, err := d.Dynamics()
	if err != nil {
		return err
	}
	omegas, err := d.Omegas()
	if err != nil {
		return err
	}
	svals, err := d.SingularValues()
	if err != nil {
		return err
	}
	rec, err := d.ReconstructedData()
	if err != nil {
		return err
	}

	r, _ := dyn.Dims()
	dynRows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, len(steps))
		for j := range steps {
			row[j] = real(dyn.At(i, j))
		}
		dynRows[i] = row
	}

	actual := make([]float64, 0, len(steps))
	reconstructed := make([]float64, 0, len(steps))
	_, m := d.snapshots.Dims()
	for j := 0; j < len(steps); j++ {
		if j < m {
			actual = append(actual, d.snapshots.At(featureIdx, j))
		}
		reconstructed = append(reconstructed, real(rec.At(featureIdx, j)))
	}

	page := components.NewPage()
	page.AddCharts(
		LineReconstruction(steps, actual, reconstructed),
		LineDynamics(steps, dynRows, omegas),
		LineSingularValues(svals),
	)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := page.Render(io.MultiWriter(file)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
