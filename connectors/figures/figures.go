// Package figures renders the EDA chart artifacts as PNG files.
package figures

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const bins = 30

// Histogram renders a 30-bin histogram of values.
func Histogram(values []float64, title, xLabel, path string) error {
	if len(values) == 0 {
		return fmt.Errorf("histogram %s: no values", filepath.Base(path))
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Incidencias"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	p.Add(h)
	return save(p, 9, 5, path)
}

// BoxPlots renders one box per named group along the X axis.
func BoxPlots(names []string, groups [][]float64, title, yLabel, path string) error {
	if len(names) == 0 || len(names) != len(groups) {
		return fmt.Errorf("boxplots %s: mismatched groups", filepath.Base(path))
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	for i, vals := range groups {
		b, err := plotter.NewBoxPlot(vg.Points(25), float64(i), plotter.Values(vals))
		if err != nil {
			return err
		}
		p.Add(b)
	}
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.5
	return save(p, 10, 6, path)
}

// HBars renders a horizontal bar chart, one bar per name, top to bottom in
// the order given.
func HBars(names []string, values []float64, title, xLabel, path string) error {
	if len(names) == 0 || len(names) != len(values) {
		return fmt.Errorf("hbars %s: mismatched values", filepath.Base(path))
	}
	// Reverse so the first name ends up at the top of the chart.
	rn := make([]string, len(names))
	rv := make([]float64, len(values))
	for i := range names {
		rn[len(names)-1-i] = names[i]
		rv[len(values)-1-i] = values[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel

	bars, err := plotter.NewBarChart(plotter.Values(rv), vg.Points(15))
	if err != nil {
		return err
	}
	bars.Horizontal = true
	p.Add(bars)
	p.NominalY(rn...)
	return save(p, 9, 6, path)
}

// Lines renders one line per named series over shared nominal X labels.
// Series must all have len(xLabels) points; NaN-free.
func Lines(xLabels []string, seriesNames []string, series [][]float64, title, yLabel, path string) error {
	if len(seriesNames) == 0 || len(seriesNames) != len(series) {
		return fmt.Errorf("lines %s: mismatched series", filepath.Base(path))
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	var args []interface{}
	for si, name := range seriesNames {
		if len(series[si]) != len(xLabels) {
			return fmt.Errorf("lines %s: series %s has %d points, want %d", filepath.Base(path), name, len(series[si]), len(xLabels))
		}
		pts := make(plotter.XYs, len(xLabels))
		for i, v := range series[si] {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		args = append(args, name, pts)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return err
	}
	p.NominalX(xLabels...)
	p.X.Tick.Label.Rotation = 0.8
	return save(p, 10, 5, path)
}

// corrGrid adapts a square correlation matrix to the heat-map plotter.
type corrGrid struct {
	names []string
	m     [][]float64
}

func (g corrGrid) Dims() (int, int)   { return len(g.names), len(g.names) }
func (g corrGrid) Z(c, r int) float64 { return g.m[r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// CorrHeatmap renders the correlation matrix on a blue-red diverging scale
// fixed to [-1, 1].
func CorrHeatmap(names []string, corr [][]float64, title, path string) error {
	if len(names) < 2 || len(names) != len(corr) {
		return fmt.Errorf("heatmap %s: need a square matrix of at least 2 variables", filepath.Base(path))
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	p := plot.New()
	p.Title.Text = title

	hm := plotter.NewHeatMap(corrGrid{names: names, m: corr}, cm.Palette(255))
	hm.Min = -1
	hm.Max = 1
	p.Add(hm)
	p.NominalX(names...)
	p.NominalY(names...)
	p.X.Tick.Label.Rotation = 0.8
	return save(p, 9, 7, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return p.Save(w*vg.Inch, h*vg.Inch, path)
}
