// Package report renders sampler output and likelihood sweeps as PNG plots,
// an interactive HTML page and CSV tables.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/occupancy/internal/sampler"
	"github.com/banshee-data/occupancy/internal/sweep"
)

// TracePlots writes one PNG per parameter with a line per chain and returns
// the written paths in parameter order.
func TracePlots(res *sampler.Result, dir string) ([]string, error) {
	if res == nil || len(res.Chains) == 0 {
		return nil, fmt.Errorf("trace plots: no chains")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	colors := generateColors(len(res.Chains))
	paths := make([]string, 0, len(res.Names))
	for j, name := range res.Names {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Trace - %s", name)
		p.X.Label.Text = "Draw"
		p.Y.Label.Text = name

		for i, c := range res.Chains {
			series := c.Series(j)
			if len(series) == 0 {
				continue
			}
			pts := make(plotter.XYs, len(series))
			for k, v := range series {
				pts[k] = plotter.XY{X: float64(k), Y: v}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, err
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("chain %d", c.ID), line)
		}
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		path, err := outputPath(dir, "trace", name, ".png")
		if err != nil {
			return nil, err
		}
		if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ProfilePlot writes the log-likelihood profile of parameter index to path.
// Impossible points are left out of the line.
func ProfilePlot(results []sweep.ComboResult, index int, name, path string) error {
	pts := make(plotter.XYs, 0, len(results))
	for _, r := range results {
		if index < 0 || index >= len(r.Params) {
			return fmt.Errorf("profile plot: parameter index %d out of range", index)
		}
		if math.IsInf(r.LogLikelihood, -1) {
			continue
		}
		pts = append(pts, plotter.XY{X: r.Params[index], Y: r.LogLikelihood})
	}
	if len(pts) == 0 {
		return fmt.Errorf("profile plot: no finite points")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Profile log-likelihood - %s", name)
	p.X.Label.Text = name
	p.Y.Label.Text = "log-likelihood"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)

	if best, ok := sweep.Best(results); ok {
		mark, err := plotter.NewScatter(plotter.XYs{{X: best.Params[index], Y: best.LogLikelihood}})
		if err != nil {
			return err
		}
		mark.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		p.Add(mark)
		p.Legend.Add(fmt.Sprintf("max at %.3f", best.Params[index]), mark)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
