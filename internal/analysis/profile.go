package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/shower.report/internal/longitudinal"
)

// ErrNoShowers is returned when a profile is requested over zero showers.
var ErrNoShowers = errors.New("no showers")

// Profile is the mean longitudinal profile of one particle column across
// showers, with the population standard deviation at each depth.
type Profile struct {
	Depth []float64 // g/cm²
	Mean  []float64
	Std   []float64

	PeakIndex int
	PeakDepth float64
	PeakValue float64
}

// ProfileStats averages column col of the particle tables of showers depth
// by depth. Every shower must have the same number of levels.
func ProfileStats(showers []longitudinal.Shower, col int) (Profile, error) {
	if len(showers) == 0 {
		return Profile{}, ErrNoShowers
	}
	levels := len(showers[0].Particles)
	for _, s := range showers {
		if len(s.Particles) != levels {
			return Profile{}, fmt.Errorf("shower %d has %d levels, shower %d has %d",
				s.ID, len(s.Particles), showers[0].ID, levels)
		}
	}
	if levels == 0 {
		return Profile{}, fmt.Errorf("shower %d has an empty particle table", showers[0].ID)
	}

	p := Profile{
		Depth: make([]float64, levels),
		Mean:  make([]float64, levels),
		Std:   make([]float64, levels),
	}
	depths := make([]float64, len(showers))
	values := make([]float64, len(showers))
	for lvl := 0; lvl < levels; lvl++ {
		for i, s := range showers {
			row := s.Particles[lvl]
			if col >= len(row) || len(row) == 0 {
				return Profile{}, fmt.Errorf("shower %d level %d has no column %d", s.ID, lvl, col)
			}
			depths[i] = row[longitudinal.ColDepth]
			values[i] = row[col]
		}
		p.Depth[lvl] = stat.Mean(depths, nil)
		p.Mean[lvl], p.Std[lvl] = stat.PopMeanStdDev(values, nil)
	}
	p.PeakIndex = floats.MaxIdx(p.Mean)
	p.PeakDepth = p.Depth[p.PeakIndex]
	p.PeakValue = p.Mean[p.PeakIndex]
	return p, nil
}

// Histogram is an equal-width histogram with the modal bin marked.
type Histogram struct {
	Edges  []float64
	Counts []float64
	Peak   float64 // centre of the first bin with the highest count
}

// PeakOfHistogram bins values into bins equal-width bins over their range
// and returns the histogram with the centre of its modal bin. A degenerate
// range is widened to ±0.5 around the single value.
func PeakOfHistogram(values []float64, bins int) (Histogram, error) {
	if len(values) == 0 {
		return Histogram{}, errors.New("no values")
	}
	if bins <= 0 {
		return Histogram{}, fmt.Errorf("invalid bin count %d", bins)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for _, v := range sorted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Histogram{}, fmt.Errorf("non-finite value %v", v)
		}
	}

	edges := edgesFor(sorted, bins)
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(edges[bins], math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	i := floats.MaxIdx(counts)
	return Histogram{
		Edges:  edges,
		Counts: counts,
		Peak:   (edges[i] + edges[i+1]) / 2,
	}, nil
}
