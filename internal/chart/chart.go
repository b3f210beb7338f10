// Package chart draws the convergence history of a run.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// DefaultDPI is the resolution used when none is given.
const DefaultDPI = 150

const (
	width  = 6.4 * vg.Inch
	height = 4.8 * vg.Inch
)

// Title returns the figure title for a result.
func Title(res *dot.Result) string {
	return fmt.Sprintf("nMinMax = %d , nMethod = %d", res.MinMax, res.Method)
}

// FileName returns the image name a result is saved under.
func FileName(res *dot.Result) string {
	return fmt.Sprintf("nMinMax_%d_nMethod_%d.png", res.MinMax, res.Method)
}

// Render writes a PNG with three panels: the objective and the maximum
// constraint side by side on top, and every design variable below. All are
// plotted against the evaluation number.
func Render(w io.Writer, title string, h *dot.History, dpi int) error {
	if h == nil || h.Count == 0 {
		return fmt.Errorf("chart: empty history")
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	objPlot := panel("OBJ", h.Count)
	if err := plotutil.AddLines(objPlot, series(h.Objective)); err != nil {
		return fmt.Errorf("chart: objective: %w", err)
	}

	gPlot := panel("Max G", h.Count)
	if h.Constrained() {
		if err := plotutil.AddLines(gPlot, series(h.MaxConstraint)); err != nil {
			return fmt.Errorf("chart: constraints: %w", err)
		}
	} else {
		gPlot.Title.Text = "Max G (unconstrained)"
	}

	xPlot := panel("X", h.Count)
	lines := make([]interface{}, 0, 2*len(h.X[0]))
	for i := range h.X[0] {
		lines = append(lines, fmt.Sprintf("X%d", i+1), series(h.Variable(i)))
	}
	if err := plotutil.AddLines(xPlot, lines...); err != nil {
		return fmt.Errorf("chart: design variables: %w", err)
	}
	xPlot.Legend.Top = true

	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	sty := objPlot.Title.TextStyle
	sty.Font.Size = vg.Points(12)
	sty.XAlign = draw.XCenter
	sty.YAlign = draw.YTop
	dc.FillText(sty, vg.Point{X: (dc.Min.X + dc.Max.X) / 2, Y: dc.Max.Y - vg.Millimeter}, title)

	rows := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    8 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
		PadY:      4 * vg.Millimeter,
	}
	cols := draw.Tiles{Rows: 1, Cols: 2, PadX: 4 * vg.Millimeter}

	top := rows.At(dc, 0, 0)
	objPlot.Draw(cols.At(top, 0, 0))
	gPlot.Draw(cols.At(top, 1, 0))
	xPlot.Draw(rows.At(dc, 0, 1))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("chart: encode png: %w", err)
	}
	return nil
}

// Save renders the history of res into dir under FileName and returns the
// path written.
func Save(dir string, res *dot.Result, dpi int) (string, error) {
	if res == nil {
		return "", fmt.Errorf("chart: no result")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("chart: create directory: %w", err)
	}

	path := filepath.Join(dir, FileName(res))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("chart: create file: %w", err)
	}
	if err := Render(f, Title(res), res.History, dpi); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("chart: close file: %w", err)
	}
	return path, nil
}

func panel(title string, count int) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Min = 1
	p.X.Max = float64(count)
	if count == 1 {
		p.X.Max = 2
	}
	return p
}

// series numbers values from 1 like the evaluation counter.
func series(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}
