// Package longitudinal converts CORSIKA longitudinal tables (DATnnnnnn.long)
// into the compact OUT and PAR text files, and reads those files back for
// analysis.
//
// An OUT file holds, per shower, the particle-count table, the energy
// deposit table and the full Gaisser-Hillas fit. A PAR file holds one line
// per shower with the first six fit parameters.
package longitudinal

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/shower.report/internal/fsutil"
)

// Section markers in a .long file.
const (
	particleSectionPrefix = "LONGITUDINAL DISTRIBUTION IN"
	energySectionPrefix   = "LONGITUDINAL ENERGY DEPOSIT IN"
	hillasSectionPrefix   = "FIT OF THE HILLAS CURVE"
	parametersMarker      = "PARAMETERS"

	// defaultLevels is used when a section header does not state its step count.
	defaultLevels = 205

	// hillasParams is the number of fit parameters a PAR line carries.
	hillasParams = 6
)

var (
	hillasNumber = regexp.MustCompile(`[-+]?\d*\.\d+E[+-]\d+`)
	stepsPattern = regexp.MustCompile(`\bIN\s+(\d+)\s+(?:VERTICAL|SLANT)`)
)

type section int

const (
	sectionNone section = iota
	sectionParticles
	sectionEnergy
	sectionHillas
)

// Result is the reformatted content of one .long file.
type Result struct {
	Out     string // OUT file text, lines joined by "\n" without a trailing newline
	Par     string // PAR file text, same convention
	Showers int    // showers seen
	Fits    int    // showers with a complete Hillas fit
}

// Reformat splits a .long file into OUT and PAR text.
func Reformat(r io.Reader) (*Result, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1024*1024)

	var (
		out     []string
		par     []string
		shower  []string
		current = 1
		sec     = sectionNone
		lineNo  int
	)
	closeShower := func() {
		if len(shower) == 0 {
			return
		}
		out = append(out, shower...)
		out = append(out, fmt.Sprintf("# End of shower %d.", current))
	}

	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())

		switch {
		case strings.HasPrefix(line, particleSectionPrefix):
			if len(shower) > 0 {
				closeShower()
				current++
			}
			shower = []string{
				fmt.Sprintf("# SHOWER %d", current),
				fmt.Sprintf("# Longitudinal particle distribution for %d levels:", levels(line)),
			}
			sec = sectionParticles
			continue
		case strings.HasPrefix(line, energySectionPrefix):
			shower = append(shower, fmt.Sprintf("# Energy deposit distribution for %d levels:", levels(line)))
			sec = sectionEnergy
			continue
		case strings.HasPrefix(line, hillasSectionPrefix):
			sec = sectionHillas
			continue
		}

		switch sec {
		case sectionParticles:
			if strings.HasPrefix(line, "DEPTH") && strings.Contains(line, "CHERENKOV") {
				continue
			}
			if line != "" {
				shower = append(shower, line)
			}
		case sectionEnergy:
			if strings.Contains(line, "DEPTH") && strings.Contains(line, "GAMMA") {
				continue
			}
			if line != "" {
				shower = append(shower, line)
			}
		case sectionHillas:
			if !strings.Contains(line, parametersMarker) {
				continue
			}
			params := hillasNumber.FindAllString(line, -1)
			if len(params) < hillasParams {
				tracef("line %d: PARAMETERS line has %d values, waiting for more", lineNo, len(params))
				continue
			}
			shower = append(shower, "# Hillas parameters: "+strings.Join(params, " "))
			par = append(par, strings.Join(params[:hillasParams], " "))
			sec = sectionNone
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read longitudinal file: %w", err)
	}
	closeShower()

	res := &Result{
		Out:  strings.Join(out, "\n"),
		Par:  strings.Join(par, "\n"),
		Fits: len(par),
	}
	if len(out) > 0 {
		res.Showers = current
	}
	if res.Fits < res.Showers {
		opsf("warning: %d of %d showers have no Hillas fit", res.Showers-res.Fits, res.Showers)
	}
	return res, nil
}

// levels reads the step count from a section header, e.g.
// "LONGITUDINAL DISTRIBUTION IN   205 VERTICAL STEPS OF ...".
func levels(header string) int {
	m := stepsPattern.FindStringSubmatch(header)
	if m == nil {
		return defaultLevels
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultLevels
	}
	return n
}

// FileStats reports what ReformatFile did.
type FileStats struct {
	Showers    int
	Fits       int
	WroteOut   bool
	WrotePar   bool
	SkippedOut bool
	SkippedPar bool
}

// ReformatFile reformats the .long file at in. Each of outPath and parPath is
// only written when it does not already exist; when both exist the input is
// not read at all.
func ReformatFile(fsys fsutil.FileSystem, in, outPath, parPath string) (FileStats, error) {
	var st FileStats
	st.SkippedOut = fsys.Exists(outPath)
	st.SkippedPar = fsys.Exists(parPath)
	if st.SkippedOut && st.SkippedPar {
		diagf("%s and %s exist, nothing to do", outPath, parPath)
		return st, nil
	}

	f, err := fsys.Open(in)
	if err != nil {
		return st, fmt.Errorf("open %s: %w", in, err)
	}
	defer f.Close()

	res, err := Reformat(f)
	if err != nil {
		return st, fmt.Errorf("%s: %w", in, err)
	}
	st.Showers, st.Fits = res.Showers, res.Fits

	if !st.SkippedOut {
		if err := fsys.WriteFile(outPath, []byte(res.Out), 0644); err != nil {
			return st, fmt.Errorf("write %s: %w", outPath, err)
		}
		st.WroteOut = true
		diagf("wrote %s (%d showers)", outPath, res.Showers)
	}
	if !st.SkippedPar {
		if err := fsys.WriteFile(parPath, []byte(res.Par), 0644); err != nil {
			return st, fmt.Errorf("write %s: %w", parPath, err)
		}
		st.WrotePar = true
		diagf("wrote %s (%d fits)", parPath, res.Fits)
	}
	return st, nil
}
