package longitudinal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	showerStart = regexp.MustCompile(`^# SHOWER (\d+)`)
	hillasLine  = regexp.MustCompile(`^# Hillas parameters: (.+)`)
	chi2Line    = regexp.MustCompile(`^# chi2/dof= (\S+) avdev= (\S+)`)
)

// Particle table columns in an OUT file.
const (
	ColDepth     = 0
	ColGammas    = 1
	ColPositrons = 2
	ColElectrons = 3
	ColMuPlus    = 4
	ColMuMinus   = 5
	ColHadrons   = 6
	ColCharged   = 7
	ColNuclei    = 8
	ColCherenkov = 9
)

// Shower is one shower read back from an OUT file.
type Shower struct {
	ID        int
	Particles [][]float64
	Energy    [][]float64
	Hillas    []float64
	Chi2      *[2]float64 // chi2/dof and average deviation, when present
}

// ReadShowers parses OUT text. Table rows outside a shower are ignored; a
// table row that is not numeric is an error.
func ReadShowers(r io.Reader) ([]Shower, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1024*1024)

	var (
		showers []Shower
		cur     *Shower
		table   *[][]float64
		lineNo  int
	)
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())

		if m := showerStart.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			// cur is only written through until the next append.
			showers = append(showers, Shower{ID: id})
			cur = &showers[len(showers)-1]
			table = nil
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.Contains(line, "Longitudinal particle distribution"):
			table = &cur.Particles
			continue
		case strings.Contains(line, "Energy deposit distribution"):
			table = &cur.Energy
			continue
		case strings.Contains(line, "# End of shower"):
			table = nil
			continue
		}
		if m := hillasLine.FindStringSubmatch(line); m != nil {
			values, err := parseRow(m[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: hillas parameters: %w", lineNo, err)
			}
			cur.Hillas = values
			continue
		}
		if m := chi2Line.FindStringSubmatch(line); m != nil {
			chi2, err1 := strconv.ParseFloat(m[1], 64)
			avdev, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("line %d: malformed chi2 line %q", lineNo, line)
			}
			cur.Chi2 = &[2]float64{chi2, avdev}
			continue
		}

		if table == nil || line == "" {
			continue
		}
		values, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		*table = append(*table, values)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return showers, nil
}

// HillasParams are the six Gaisser-Hillas fit parameters of one shower. The
// fitted profile is
//
//	N(X) = Nmax * ((X-X0)/(Xmax-X0))^((Xmax-X0)/L(X)) * exp((Xmax-X)/L(X))
//
// with L(X) = A + B*X + C*X².
type HillasParams struct {
	Nmax float64
	X0   float64 // g/cm²
	Xmax float64 // g/cm²
	A    float64
	B    float64
	C    float64
}

// At evaluates the fitted profile at depth x. It is zero at or below X0.
func (h HillasParams) At(x float64) float64 {
	if x <= h.X0 {
		return 0
	}
	l := h.A + h.B*x + h.C*x*x
	if l <= 0 || h.Xmax <= h.X0 {
		return 0
	}
	return h.Nmax * math.Pow((x-h.X0)/(h.Xmax-h.X0), (h.Xmax-h.X0)/l) * math.Exp((h.Xmax-x)/l)
}

// ReadHillas parses PAR text, one shower per non-blank line. Lines must have
// at least six numeric fields.
func ReadHillas(r io.Reader) ([]HillasParams, error) {
	s := bufio.NewScanner(r)
	var (
		params []HillasParams
		lineNo int
	)
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(v) < hillasParams {
			return nil, fmt.Errorf("line %d: %d fields, want %d", lineNo, len(v), hillasParams)
		}
		params = append(params, HillasParams{Nmax: v[0], X0: v[1], Xmax: v[2], A: v[3], B: v[4], C: v[5]})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return params, nil
}

// Column extracts column i from every row that has it.
func Column(rows [][]float64, i int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

func parseRow(s string) ([]float64, error) {
	fields := strings.Fields(s)
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}
