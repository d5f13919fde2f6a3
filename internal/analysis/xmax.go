package analysis

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/longitudinal"
)

// Primary is the primary particle code used in run file names.
type Primary int

const (
	Proton Primary = 1
	Carbon Primary = 2
	Iron   Primary = 3
)

// Primaries lists the primaries in plotting order.
var Primaries = []Primary{Proton, Carbon, Iron}

func (p Primary) String() string {
	switch p {
	case Proton:
		return "Proton"
	case Carbon:
		return "Carbon"
	case Iron:
		return "Iron"
	default:
		return "Primary(" + strconv.Itoa(int(p)) + ")"
	}
}

// parFileName matches PAR40<primary><log10 E/eV>.txt.
var parFileName = regexp.MustCompile(`^PAR40([123])(1[456])\.txt$`)

// outputFileName matches decoded files named Output40<primary>....txt.
var outputFileName = regexp.MustCompile(`^Output40([123])\d*\.txt$`)

// primaryNames maps lower-case labels, English and Portuguese, to primaries.
var primaryNames = map[string]Primary{
	"proton": Proton, "próton": Proton, "p": Proton,
	"carbon": Carbon, "carbono": Carbon, "c": Carbon,
	"iron": Iron, "ferro": Iron, "fe": Iron,
}

// PrimaryFromName guesses the primary of a series from its label or, failing
// that, from an Output40<p>... file name.
func PrimaryFromName(label, path string) (Primary, bool) {
	if p, ok := primaryNames[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p, true
	}
	if m := outputFileName.FindStringSubmatch(filepath.Base(path)); m != nil {
		p, _ := strconv.Atoi(m[1])
		return Primary(p), true
	}
	return 0, false
}

// eVPerGeVExp converts log10(E/eV) to log10(E/GeV).
const eVPerGeVExp = 9

// XmaxPoint is the mean shower maximum of one run.
type XmaxPoint struct {
	File    string
	LogEGeV float64
	Mean    float64 // g/cm²
	StdErr  float64 // population standard deviation / sqrt(n)
	N       int
}

// XmaxSeries is the X_max elongation of one primary with its linear fit
// X_max = Slope·log10(E/GeV) + Intercept.
type XmaxSeries struct {
	Primary   Primary
	Points    []XmaxPoint // sorted by energy
	Slope     float64
	Intercept float64
	R2        float64
}

// ParseParFileName extracts the primary and log10(E/eV) from a PAR file name.
func ParseParFileName(name string) (Primary, int, bool) {
	m := parFileName.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	p, _ := strconv.Atoi(m[1])
	e, _ := strconv.Atoi(m[2])
	return Primary(p), e, true
}

// Excluded reports whether a run is left out of the X_max fit. Only the
// proton run at 10^14 eV is.
func Excluded(primary Primary, logEeV int) bool {
	return primary == Proton && logEeV == 14
}

// XmaxByPrimary scans dir for PAR files and fits X_max against energy for
// each primary. The 10^14 eV proton run is excluded. Files that cannot be
// read or are empty are logged and skipped, and a primary with fewer than
// two points is left out.
func XmaxByPrimary(fsys fsutil.FileSystem, dir string) ([]XmaxSeries, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	points := make(map[Primary][]XmaxPoint)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		primary, logEeV, ok := ParseParFileName(e.Name())
		if !ok {
			continue
		}
		if Excluded(primary, logEeV) {
			diagf("skipping %s: %v at 10^%d eV is excluded", e.Name(), primary, logEeV)
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := fsys.ReadFile(path)
		if err != nil {
			opsf("skipping %s: %v", path, err)
			continue
		}
		params, err := longitudinal.ReadHillas(bytes.NewReader(data))
		if err != nil {
			opsf("skipping %s: %v", path, err)
			continue
		}
		if len(params) == 0 {
			opsf("skipping %s: empty file", path)
			continue
		}

		xmax := make([]float64, len(params))
		for i, p := range params {
			xmax[i] = p.Xmax
		}
		points[primary] = append(points[primary], NewXmaxPoint(e.Name(), logEeV, xmax))
	}
	return FitAll(points)
}

// NewXmaxPoint summarises the X_max values of one run at log10(E/eV) = logEeV.
// xmax must not be empty.
func NewXmaxPoint(file string, logEeV int, xmax []float64) XmaxPoint {
	mean, std := stat.PopMeanStdDev(xmax, nil)
	return XmaxPoint{
		File:    file,
		LogEGeV: float64(logEeV - eVPerGeVExp),
		Mean:    mean,
		StdErr:  std / math.Sqrt(float64(len(xmax))),
		N:       len(xmax),
	}
}

// FitAll fits every primary with at least two points, in Primaries order.
func FitAll(points map[Primary][]XmaxPoint) ([]XmaxSeries, error) {
	var series []XmaxSeries
	for _, primary := range Primaries {
		pts := points[primary]
		if len(pts) < 2 {
			if len(pts) == 1 {
				diagf("%v: one point, no fit", primary)
			}
			continue
		}
		s, err := FitXmax(primary, pts)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, nil
}

// FitXmax sorts pts by energy and fits a straight line through the means.
func FitXmax(primary Primary, pts []XmaxPoint) (XmaxSeries, error) {
	if len(pts) < 2 {
		return XmaxSeries{}, fmt.Errorf("%v: need at least 2 points, got %d", primary, len(pts))
	}
	pts = append([]XmaxPoint(nil), pts...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].LogEGeV < pts[j].LogEGeV })

	x := make([]float64, len(pts))
	y := make([]float64, len(pts))
	for i, p := range pts {
		x[i], y[i] = p.LogEGeV, p.Mean
	}
	if x[0] == x[len(x)-1] {
		return XmaxSeries{}, fmt.Errorf("%v: all points at log10(E/GeV)=%g", primary, x[0])
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, intercept, slope)
	if math.IsNaN(r2) {
		// Constant means: the flat line is exact.
		r2 = 1
	}
	s := XmaxSeries{
		Primary:   primary,
		Points:    pts,
		Slope:     slope,
		Intercept: intercept,
		R2:        r2,
	}
	diagf("%v: X_max = %.2f·log10(E) + %.2f, R² = %.4f", primary, s.Slope, s.Intercept, s.R2)
	return s, nil
}
