package analysis

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/shower.report/internal/corsika/l3text"
)

// particleFields is the number of columns in a decoded particle row.
const particleFields = 7

// Columns of a decoded particle row holding the ground position, in cm.
const (
	colX = 4
	colY = 5
)

const cmPerMetre = 100.0

// ErrNoParticles is returned when an input holds no particle rows.
var ErrNoParticles = errors.New("no particles")

// Point is a particle's position at ground level, in metres.
type Point struct {
	X, Y float64
}

// R is the distance from the shower core.
func (p Point) R() float64 {
	return math.Hypot(p.X, p.Y)
}

// LoadParticles reads the ground positions of all particle rows in a decoded
// text file. Header rows and anything that is not a seven-column numeric row
// are skipped.
func LoadParticles(r io.Reader) ([]Point, error) {
	sc := l3text.NewScanner(r)
	var points []Point
	for sc.Scan() {
		e := sc.Entry()
		if e.Kind != l3text.EntryParticle || len(e.Values) != particleFields {
			continue
		}
		points = append(points, Point{X: e.Values[colX] / cmPerMetre, Y: e.Values[colY] / cmPerMetre})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	diagf("loaded %d particles", len(points))
	return points, nil
}

// LDF is a binned lateral distribution function.
type LDF struct {
	Edges   []float64 // bins+1 radii, metres
	Centres []float64
	Counts  []float64
	Density []float64 // particles per m²
}

// LateralDistribution bins particles by core distance over [0, rMax] and
// divides each count by its annulus area. A particle exactly at rMax falls in
// the last bin; particles beyond it are ignored.
func LateralDistribution(points []Point, bins int, rMax float64) (LDF, error) {
	if bins <= 0 || !(rMax > 0) {
		return LDF{}, fmt.Errorf("invalid binning: %d bins up to %g m", bins, rMax)
	}

	radii := make([]float64, 0, len(points))
	for _, p := range points {
		if r := p.R(); r <= rMax {
			radii = append(radii, r)
		}
	}
	sort.Float64s(radii)

	edges := floats.Span(make([]float64, bins+1), 0, rMax)
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(rMax, math.Inf(1))
	counts := stat.Histogram(nil, dividers, radii, nil)

	ldf := LDF{
		Edges:   edges,
		Centres: make([]float64, bins),
		Counts:  counts,
		Density: make([]float64, bins),
	}
	for i := 0; i < bins; i++ {
		ldf.Centres[i] = (edges[i] + edges[i+1]) / 2
		if area := math.Pi * (edges[i+1]*edges[i+1] - edges[i]*edges[i]); area != 0 {
			ldf.Density[i] = counts[i] / area
		}
	}
	return ldf, nil
}

// Grid is a 2D histogram of ground positions. Counts[i][j] covers
// [XEdges[i], XEdges[i+1]) × [YEdges[j], YEdges[j+1]); the last row and
// column are closed.
type Grid struct {
	XEdges []float64
	YEdges []float64
	Counts [][]float64
	Max    float64
}

// Dims, Z, X and Y let a Grid be drawn as a heat map.
func (g *Grid) Dims() (c, r int) { return len(g.XEdges) - 1, len(g.YEdges) - 1 }
func (g *Grid) Z(c, r int) float64 {
	// Empty cells are not drawn.
	if v := g.Counts[c][r]; v >= 1 {
		return v
	}
	return math.NaN()
}
func (g *Grid) X(c int) float64 { return (g.XEdges[c] + g.XEdges[c+1]) / 2 }
func (g *Grid) Y(r int) float64 { return (g.YEdges[r] + g.YEdges[r+1]) / 2 }

// Histogram2D bins points on a bins×bins grid spanning their extent.
func Histogram2D(points []Point, bins int) (*Grid, error) {
	if len(points) == 0 {
		return nil, ErrNoParticles
	}
	if bins <= 0 {
		return nil, fmt.Errorf("invalid bin count %d", bins)
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}

	g := &Grid{
		XEdges: edgesFor(xs, bins),
		YEdges: edgesFor(ys, bins),
		Counts: make([][]float64, bins),
	}
	for i := range g.Counts {
		g.Counts[i] = make([]float64, bins)
	}
	for i := range points {
		c, r := binIndex(g.XEdges, xs[i]), binIndex(g.YEdges, ys[i])
		g.Counts[c][r]++
		g.Max = math.Max(g.Max, g.Counts[c][r])
	}
	return g, nil
}

// edgesFor returns bins+1 equal-width edges over the range of v. A
// degenerate range is widened to ±0.5 around the single value.
func edgesFor(v []float64, bins int) []float64 {
	lo, hi := floats.Min(v), floats.Max(v)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	return floats.Span(make([]float64, bins+1), lo, hi)
}

// binIndex finds the bin of v in edges, with the last bin closed.
func binIndex(edges []float64, v float64) int {
	n := len(edges) - 1
	i := sort.SearchFloat64s(edges, v)
	// SearchFloat64s returns the first edge >= v.
	if i < len(edges) && edges[i] == v {
		i++
	}
	i--
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
