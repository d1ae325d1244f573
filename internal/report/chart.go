package report

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ChartConfig controls how the delta chart is rendered.
type ChartConfig struct {
	// Basename is the output path without extension.
	Basename string

	// Title is drawn above the plot.
	Title string

	// Threshold draws a dashed horizontal detection-threshold line.
	// Zero disables the line; a threshold at exactly 0 cannot be drawn.
	Threshold float64

	// Palette maps dose (CFU) to a hex line color. Unknown doses fall back
	// to gray.
	Palette map[int]string

	// Formats lists output formats by extension ("png", "svg", "pdf").
	Formats []string
}

// Render draws one line per dose level over time, with a shaded ±1 standard
// deviation band around each, and saves the chart in every configured
// format. It returns the paths of the files written.
func Render(points []DosePoint, cfg ChartConfig) ([]string, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no aggregated points to chart")
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "Incubation time [hour]"
	p.Y.Label.Text = "Δ Intensity [a.u.]"
	p.X.Min, p.X.Max = -0.5, 12.5
	p.Y.Min, p.Y.Max = -5000, 30000
	p.Add(plotter.NewGrid())

	for _, dose := range Doses(points) {
		var xys plotter.XYs
		var band plotter.XYs
		var lower plotter.XYs
		for _, pt := range points {
			if pt.Dose != dose {
				continue
			}
			xys = append(xys, plotter.XY{X: pt.TimeHours, Y: pt.Mean})
			band = append(band, plotter.XY{X: pt.TimeHours, Y: pt.Mean + pt.Std})
			lower = append(lower, plotter.XY{X: pt.TimeHours, Y: pt.Mean - pt.Std})
		}
		// Close the band polygon: upper edge forward, lower edge backward.
		for i := len(lower) - 1; i >= 0; i-- {
			band = append(band, lower[i])
		}

		lineColor := doseColor(dose, cfg.Palette)

		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, fmt.Errorf("failed to build band for dose %d: %w", dose, err)
		}
		poly.Color = withAlpha(lineColor, 51)
		poly.LineStyle.Width = 0
		p.Add(poly)

		line, scatter, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to build line for dose %d: %w", dose, err)
		}
		line.Color = lineColor
		line.Width = vg.Points(2)
		scatter.GlyphStyle.Color = lineColor
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(line, scatter)
		p.Legend.Add(fmt.Sprintf("%d CFU", dose), line)
	}

	if cfg.Threshold != 0 {
		thr, err := plotter.NewLine(plotter.XYs{
			{X: p.X.Min, Y: cfg.Threshold},
			{X: p.X.Max, Y: cfg.Threshold},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build threshold line: %w", err)
		}
		thr.Color = color.Black
		thr.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(thr)
		p.Legend.Add("Threshold", thr)
	}

	p.Legend.Top = true

	var saved []string
	for _, format := range cfg.Formats {
		file := cfg.Basename + "." + format
		if err := p.Save(10*vg.Inch, 8*vg.Inch, file); err != nil {
			return saved, fmt.Errorf("failed to save chart as %s: %w", format, err)
		}
		saved = append(saved, file)
	}
	return saved, nil
}

// doseColor resolves the palette entry for a dose, falling back to gray for
// doses outside the palette.
func doseColor(dose int, palette map[int]string) color.Color {
	hex, ok := palette[dose]
	if !ok {
		return color.Gray{Y: 128}
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.Gray{Y: 128}
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// withAlpha reapplies a color at the given opacity for band fills.
func withAlpha(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
