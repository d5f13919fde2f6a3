package plotting

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/longitudinal"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func requirePNG(t *testing.T, fsys fsutil.FileSystem, path string) {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func testLDF(t *testing.T) []LDFSeries {
	t.Helper()
	points := []analysis.Point{{X: 1, Y: 0}, {X: 10, Y: 5}, {X: -40, Y: 30}, {X: 100, Y: 0}}
	ldf, err := analysis.LateralDistribution(points, 20, 200)
	require.NoError(t, err)
	empty, err := analysis.LateralDistribution(nil, 20, 200)
	require.NoError(t, err)
	return []LDFSeries{
		{Label: "Proton", Primary: analysis.Proton, LDF: ldf},
		{Label: "Iron", Primary: analysis.Iron, LDF: empty},
	}
}

func TestLDFComparison(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	pl := NewPlotter(fsys)
	require.NoError(t, pl.LDFComparison("out/ldf.png", testLDF(t), 200))
	requirePNG(t, fsys, "out/ldf.png")
}

func TestLateralMap(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	grid, err := analysis.Histogram2D([]analysis.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 1}}, 10)
	require.NoError(t, err)
	require.NoError(t, NewPlotter(fsys).LateralMap("map.png", grid))
	requirePNG(t, fsys, "map.png")
}

func TestProfilePlot(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	pl := NewPlotter(fsys)
	prof := analysis.Profile{
		Depth:     []float64{5, 10, 15},
		Mean:      []float64{15, 40, 20},
		Std:       []float64{5, 10, 0},
		PeakIndex: 1,
		PeakDepth: 10,
		PeakValue: 40,
	}
	require.NoError(t, pl.ProfilePlot("electrons.png", "Electrons", "N", prof, colorBlue))
	requirePNG(t, fsys, "electrons.png")

	assert.Error(t, pl.ProfilePlot("empty.png", "Empty", "N", analysis.Profile{}, colorBlue))
	assert.False(t, fsys.Exists("empty.png"))
}

func TestHillasHistograms(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	pl := NewPlotter(fsys)
	params := []longitudinal.HillasParams{
		{Nmax: 1e5, X0: 10, Xmax: 600},
		{Nmax: 2e5, X0: 20, Xmax: 650},
		{Nmax: 2e5, X0: 15, Xmax: 640},
	}
	require.NoError(t, pl.HillasHistograms("figs/hillas.png", params, 30))
	requirePNG(t, fsys, "figs/hillas.png")

	assert.Error(t, pl.HillasHistograms("none.png", nil, 30))
}

func TestXmaxPlot(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	s, err := analysis.FitXmax(analysis.Proton, []analysis.XmaxPoint{
		{LogEGeV: 7, Mean: 720, StdErr: 5, N: 2},
		{LogEGeV: 6, Mean: 650, StdErr: 10, N: 2},
	})
	require.NoError(t, err)
	require.NoError(t, NewPlotter(fsys).XmaxPlot("xmax.png", []analysis.XmaxSeries{s}))
	requirePNG(t, fsys, "xmax.png")
}

func TestSave_UnknownFormat(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	err := NewPlotter(fsys).LDFComparison("ldf.bogus", testLDF(t), 200)
	assert.Error(t, err)
	assert.False(t, fsys.Exists("ldf.bogus"))
}

func TestReport(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	s, err := analysis.FitXmax(analysis.Iron, []analysis.XmaxPoint{
		{LogEGeV: 6, Mean: 500},
		{LogEGeV: 7, Mean: 560},
	})
	require.NoError(t, err)

	require.NoError(t, NewPlotter(fsys).Report("report.html", testLDF(t), 200, []analysis.XmaxSeries{s}))
	data, err := fsys.ReadFile("report.html")
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(html), "<!DOCTYPE html>") || strings.Contains(html, "<html"))
	assert.Contains(t, html, "Lateral Distribution Function")
	assert.Contains(t, html, "Proton")
	assert.Contains(t, html, "Depth of shower maximum")
	assert.Contains(t, html, hexColor(colorRed))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#1f77b4", hexColor(colorBlue))
	assert.Equal(t, "#000000", hexColor(colorBlack))
}
