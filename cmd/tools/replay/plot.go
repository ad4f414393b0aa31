package main

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/accmouse/internal/pipeline"
)

var (
	colorX      = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorY      = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorMoving = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
)

type series struct {
	label string
	pts   plotter.XYs
	color color.Color
}

// renderTraces writes a two-panel PNG: velocity on top, per-sample cursor
// delta below with the moving state overlaid.
func renderTraces(history []pipeline.VelocityPoint, outFile string) error {
	n := len(history)
	vx := make(plotter.XYs, 0, n)
	vy := make(plotter.XYs, 0, n)
	dx := make(plotter.XYs, 0, n)
	dy := make(plotter.XYs, 0, n)
	moving := make(plotter.XYs, 0, n)

	// Scale the state trace to the delta panel.
	peak := 1.0
	for _, p := range history {
		peak = max(peak, math.Abs(p.DX), math.Abs(p.DY))
	}

	for _, p := range history {
		vx = append(vx, plotter.XY{X: p.Time, Y: p.Velocity.X})
		vy = append(vy, plotter.XY{X: p.Time, Y: p.Velocity.Y})
		dx = append(dx, plotter.XY{X: p.Time, Y: p.DX})
		dy = append(dy, plotter.XY{X: p.Time, Y: p.DY})
		m := 0.0
		if !p.Stationary {
			m = peak
		}
		moving = append(moving, plotter.XY{X: p.Time, Y: m})
	}

	pVel, err := newTracePlot("Velocity", "v (g·s)",
		series{"vx", vx, colorX}, series{"vy", vy, colorY})
	if err != nil {
		return err
	}
	pDelta, err := newTracePlot("Cursor delta per sample", "px",
		series{"dx", dx, colorX}, series{"dy", dy, colorY}, series{"moving", moving, colorMoving})
	if err != nil {
		return err
	}

	const width, height = 14 * vg.Inch, 8 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align([][]*plot.Plot{{pVel}, {pDelta}}, tiles, dc)
	pVel.Draw(canvases[0][0])
	pDelta.Draw(canvases[1][0])

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", outFile, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

func newTracePlot(title, yLabel string, lines ...series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for _, s := range lines {
		if len(s.pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.label, err)
		}
		l.Color = s.color
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.label, l)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
