// Package diag renders debugging visualizations of frame index and
// frame data. None of it participates in decode correctness; it exists
// purely to let an operator eyeball frame boundaries and point clouds.
package diag

import (
	"fmt"
	"image/color"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/velocity.report/internal/hdl/frame"
	"github.com/banshee-data/velocity.report/internal/hdl/frameindex"
)

// ExportIndexTimeline renders an HTML line chart of frame-boundary skip
// values against frame ordinal, useful for spotting anomalous scans
// during index construction.
func ExportIndexTimeline(idx *frameindex.Index, path string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Frame index boundaries"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "firing skip"}),
	)

	xs := make([]string, len(idx.Entries))
	ys := make([]opts.LineData, len(idx.Entries))
	for i, e := range idx.Entries {
		xs[i] = fmt.Sprintf("%d", i)
		ys[i] = opts.LineData{Value: e.Skip}
	}
	line.SetXAxis(xs).AddSeries("skip", ys)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diag: create %s: %w", path, err)
	}
	defer f.Close()
	return line.Render(f)
}

// PlotFramePolar renders a PNG scatter plot of a frame's (x, y) points,
// all drawn in one color; dual-return flags are not shown.
func PlotFramePolar(f *frame.Frame, path string) error {
	p := plot.New()
	p.Title.Text = "frame points (x, y)"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pts := make(plotter.XYs, f.Len())
	for i := range pts {
		pts[i].X = float64(f.X[i])
		pts[i].Y = float64(f.Y[i])
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("diag: build scatter: %w", err)
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(1)
	p.Add(scatter)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("diag: save %s: %w", path, err)
	}
	return nil
}
