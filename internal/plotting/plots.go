// Package plotting renders analysis results as PNG figures (gonum/plot) and
// interactive HTML charts (go-echarts).
package plotting

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/longitudinal"
)

// Figure sizes.
var (
	wideWidth    = 10 * vg.Inch
	wideHeight   = 6 * vg.Inch
	squareSide   = 8 * vg.Inch
	tripleWidth  = 15 * vg.Inch
	tripleHeight = 5 * vg.Inch
)

// ldfMinDensity is the lower edge of the LDF density axis, particles/m².
const ldfMinDensity = 1e-2

var (
	colorBlue  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorGreen = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorRed   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorBlack = color.RGBA{A: 255}
)

// Profile colours used by the profiles command.
var (
	ElectronColor = colorBlue
	PhotonColor   = colorRed
)

// primaryColor keeps each primary the same colour across figures.
func primaryColor(p analysis.Primary) color.Color {
	switch p {
	case analysis.Proton:
		return colorBlue
	case analysis.Carbon:
		return colorGreen
	case analysis.Iron:
		return colorRed
	}
	return colorBlack
}

// LDFSeries is one labelled curve of an LDF comparison.
type LDFSeries struct {
	Label   string
	Primary analysis.Primary
	LDF     analysis.LDF
}

// Plotter writes figures through a FileSystem.
type Plotter struct {
	fs fsutil.FileSystem
}

// NewPlotter returns a Plotter that writes through fs.
func NewPlotter(fs fsutil.FileSystem) *Plotter {
	return &Plotter{fs: fs}
}

// LDFComparison draws particle density against core distance for each
// series on a logarithmic density axis. Empty bins are left out.
func (pl *Plotter) LDFComparison(path string, series []LDFSeries, rMax float64) error {
	p := plot.New()
	p.Title.Text = "Lateral Distribution Function"
	p.X.Label.Text = "Core distance r (m)"
	p.Y.Label.Text = "Particle density (m⁻²)"
	p.X.Min, p.X.Max = 0, rMax
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	maxDensity := ldfMinDensity
	shapes := []draw.GlyphDrawer{draw.CircleGlyph{}, draw.SquareGlyph{}, draw.TriangleGlyph{}}
	for i, s := range series {
		pts := make(plotter.XYs, 0, len(s.LDF.Centres))
		for j, d := range s.LDF.Density {
			if d <= 0 {
				continue
			}
			pts = append(pts, plotter.XY{X: s.LDF.Centres[j], Y: d})
			maxDensity = math.Max(maxDensity, d)
		}
		if len(pts) == 0 {
			opsf("LDF %q has no populated bins", s.Label)
			continue
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("LDF %q: %w", s.Label, err)
		}
		c := primaryColor(s.Primary)
		line.Color = c
		line.Width = vg.Points(1)
		points.Color = c
		points.Shape = shapes[i%len(shapes)]
		p.Add(line, points)
		p.Legend.Add(s.Label, line, points)
	}
	p.Y.Min, p.Y.Max = ldfMinDensity, maxDensity*2
	p.Legend.Top = true

	return pl.save(p, wideWidth, wideHeight, path)
}

// LateralMap draws a 2D histogram of particle ground positions. Empty cells
// are left blank.
func (pl *Plotter) LateralMap(path string, grid *analysis.Grid) error {
	p := plot.New()
	p.Title.Text = "Lateral particle distribution"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	h := plotter.NewHeatMap(grid, palette.Heat(32, 1))
	h.Min, h.Max = 1, grid.Max
	if h.Max <= h.Min {
		h.Max = h.Min + 1
	}
	p.Add(h)

	return pl.save(p, squareSide, squareSide, path)
}

// ProfilePlot draws a mean longitudinal profile with a ±1σ band and marks
// its maximum.
func (pl *Plotter) ProfilePlot(path, title, yLabel string, prof analysis.Profile, c color.RGBA) error {
	if len(prof.Depth) == 0 {
		return fmt.Errorf("profile %q is empty", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Atmospheric depth (g/cm²)"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	mean := make(plotter.XYs, len(prof.Depth))
	band := make(plotter.XYs, 0, 2*len(prof.Depth))
	for i, d := range prof.Depth {
		mean[i] = plotter.XY{X: d, Y: prof.Mean[i]}
		band = append(band, plotter.XY{X: d, Y: prof.Mean[i] + prof.Std[i]})
	}
	for i := len(prof.Depth) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: prof.Depth[i], Y: prof.Mean[i] - prof.Std[i]})
	}

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return fmt.Errorf("profile band: %w", err)
	}
	fill := c
	fill.A = 50
	poly.Color = fill
	poly.LineStyle.Width = 0

	line, err := plotter.NewLine(mean)
	if err != nil {
		return fmt.Errorf("profile line: %w", err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)

	peak := plotter.XYs{{X: prof.PeakDepth, Y: prof.PeakValue}}
	marker, err := plotter.NewScatter(peak)
	if err != nil {
		return err
	}
	marker.Color = colorBlack
	marker.Shape = draw.CircleGlyph{}
	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    peak,
		Labels: []string{fmt.Sprintf("(%.1f, %.1e)", prof.PeakDepth, prof.PeakValue)},
	})
	if err != nil {
		return err
	}

	p.Add(poly, line, marker, labels)
	p.Legend.Add("Mean profile", line)
	p.Legend.Add("±1σ", poly)
	p.Legend.Top = true

	return pl.save(p, wideWidth, wideHeight, path)
}

// HillasHistograms draws histograms of N_max (in thousands), X_0 and X_max
// side by side, each with a dashed line at its modal bin.
func (pl *Plotter) HillasHistograms(path string, params []longitudinal.HillasParams, bins int) error {
	if len(params) == 0 {
		return fmt.Errorf("no Hillas parameters to plot")
	}
	nmax := make(plotter.Values, len(params))
	x0 := make(plotter.Values, len(params))
	xmax := make(plotter.Values, len(params))
	for i, h := range params {
		nmax[i] = h.Nmax / 1000
		x0[i] = h.X0
		xmax[i] = h.Xmax
	}

	panels := []struct {
		values plotter.Values
		c      color.Color
		xLabel string
		title  string
	}{
		{nmax, colorBlue, "N_max (×10³)", "Maximum particle number"},
		{x0, colorGreen, "X_0 (g/cm²)", "Effective first interaction depth"},
		{xmax, colorRed, "X_max (g/cm²)", "Depth of shower maximum"},
	}

	row := make([]*plot.Plot, len(panels))
	for i, panel := range panels {
		p, err := histogramPanel(panel.values, bins, panel.c, panel.xLabel, panel.title)
		if err != nil {
			return fmt.Errorf("%s: %w", panel.title, err)
		}
		row[i] = p
	}

	img := vgimg.New(tripleWidth, tripleHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: len(row), PadX: vg.Millimeter, PadY: vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}
	return pl.write(path, vgimg.PngCanvas{Canvas: img})
}

func histogramPanel(values plotter.Values, bins int, c color.Color, xLabel, title string) (*plot.Plot, error) {
	peak, err := analysis.PeakOfHistogram(values, bins)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = c
	p.Add(h)

	top := 0.0
	for _, n := range peak.Counts {
		top = math.Max(top, n)
	}
	marker, err := plotter.NewLine(plotter.XYs{{X: peak.Peak, Y: 0}, {X: peak.Peak, Y: top}})
	if err != nil {
		return nil, err
	}
	marker.Color = colorBlack
	marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	marker.Width = vg.Points(1.5)
	p.Add(marker)
	p.Legend.Add(fmt.Sprintf("Peak: %.2f", peak.Peak), marker)
	p.Legend.Top = true
	return p, nil
}

// xmaxErrors adapts X_max points to gonum's error bar interfaces.
type xmaxErrors []analysis.XmaxPoint

func (e xmaxErrors) Len() int                    { return len(e) }
func (e xmaxErrors) XY(i int) (float64, float64) { return e[i].LogEGeV, e[i].Mean }
func (e xmaxErrors) YError(i int) (float64, float64) {
	return e[i].StdErr, e[i].StdErr
}

// XmaxPlot draws mean X_max with standard-error bars against log10(E/GeV)
// for each primary, with its fitted line.
func (pl *Plotter) XmaxPlot(path string, series []analysis.XmaxSeries) error {
	p := plot.New()
	p.Title.Text = "Depth of shower maximum"
	p.X.Label.Text = "log10(E/GeV)"
	p.Y.Label.Text = "X_max (g/cm²)"
	p.Add(plotter.NewGrid())

	for _, s := range series {
		c := primaryColor(s.Primary)
		pts := xmaxErrors(s.Points)

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("%v: %w", s.Primary, err)
		}
		scatter.Color = c
		scatter.Shape = draw.CircleGlyph{}

		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("%v: %w", s.Primary, err)
		}
		bars.Color = c
		bars.CapWidth = vg.Points(5)

		slope, intercept := s.Slope, s.Intercept
		fit := plotter.NewFunction(func(x float64) float64 { return slope*x + intercept })
		fit.XMin = s.Points[0].LogEGeV
		fit.XMax = s.Points[len(s.Points)-1].LogEGeV
		fit.Samples = 100
		fit.Color = c
		fit.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

		p.Add(bars, scatter, fit)
		p.Legend.Add(fmt.Sprintf("%v: X_max = %.2f·log10(E) + %.2f, R² = %.4f", s.Primary, s.Slope, s.Intercept, s.R2), scatter, fit)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return pl.save(p, wideWidth, wideHeight, path)
}

func (pl *Plotter) save(p *plot.Plot, w, h vg.Length, path string) error {
	format := filepath.Ext(path)
	if len(format) > 1 {
		format = format[1:]
	}
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return pl.write(path, wt)
}

func (pl *Plotter) write(path string, wt io.WriterTo) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := pl.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := pl.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	diagf("wrote %s", path)
	return nil
}
