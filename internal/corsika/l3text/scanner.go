package l3text

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/banshee-data/shower.report/internal/corsika"
)

// EntryKind is the role of one line of the text format.
type EntryKind int

const (
	EntryOther        EntryKind = iota // blank or unparseable
	EntrySource                        // READ DATA FROM FILE = ...
	EntryHeader                        // RUNH, EVTH, EVTE, RUNE
	EntryHeaderValues                  // a value row belonging to the preceding header
	EntryParticle                      // a bare particle row
)

// headerRows is the number of value rows that follow each header token.
var headerRows = map[string]struct {
	kind corsika.Kind
	rows int
}{
	"RUNH": {corsika.KindRUNH, 2},
	"EVTH": {corsika.KindEVTH, 1},
	"EVTE": {corsika.KindEVTE, 1},
	"RUNE": {corsika.KindRUNE, 1},
}

// Entry is one scanned line.
type Entry struct {
	Line   int // 1-based line number
	Kind   EntryKind
	Block  corsika.Kind // enclosing header for EntryHeader and EntryHeaderValues
	Text   string       // raw line without the newline
	Values []float64    // parsed fields for value rows
}

// Scanner reads the text format line by line. Value rows directly after a
// header belong to it; any other value row is a particle.
type Scanner struct {
	s       *bufio.Scanner
	entry   Entry
	line    int
	block   corsika.Kind
	pending int // header value rows still expected
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1024*1024)
	return &Scanner{s: s}
}

// Scan advances to the next line. It returns false at the end of input or on
// a read error, which is then reported by Err.
func (sc *Scanner) Scan() bool {
	if !sc.s.Scan() {
		return false
	}
	sc.line++
	text := sc.s.Text()
	sc.entry = Entry{Line: sc.line, Text: text}

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "READ"):
		sc.entry.Kind = EntrySource
		sc.pending = 0
	case isAlpha(trimmed):
		sc.entry.Kind = EntryHeader
		if h, ok := headerRows[trimmed]; ok {
			sc.block, sc.pending = h.kind, h.rows
			sc.entry.Block = h.kind
		} else {
			sc.pending = 0
		}
	default:
		values, ok := parseFields(trimmed)
		if !ok {
			sc.entry.Kind = EntryOther
			return true
		}
		sc.entry.Values = values
		if sc.pending > 0 {
			sc.pending--
			sc.entry.Kind = EntryHeaderValues
			sc.entry.Block = sc.block
		} else {
			sc.entry.Kind = EntryParticle
		}
	}
	return true
}

// Entry returns the most recently scanned line.
func (sc *Scanner) Entry() Entry {
	return sc.entry
}

// Err returns the first read error, if any.
func (sc *Scanner) Err() error {
	return sc.s.Err()
}

// Source returns the source name from a READ line, or "" if e is not one.
func (e Entry) Source() string {
	if e.Kind != EntrySource {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(e.Text, strings.TrimSpace(SourcePrefix)))
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func parseFields(s string) ([]float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, false
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
