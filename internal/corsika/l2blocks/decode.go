package l2blocks

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/shower.report/internal/corsika"
)

// Layout is the fixed column format of a value row: every field is printed
// in signed scientific notation, right-aligned in Width columns with
// Precision mantissa digits, and fields are concatenated without separators.
type Layout struct {
	Width     int
	Precision int
}

var (
	// Wide is the 13.5 layout used by every row except the RUNH tail.
	Wide = Layout{Width: 13, Precision: 5}
	// Narrow is the 11.3 layout used by the second RUNH row.
	Narrow = Layout{Width: 11, Precision: 3}
)

// Field projections, as 0-based word indices into a sub-block.
var (
	runHeaderMain   = []int{1, 2, 3, 15, 16, 17}
	runHeaderLevels = []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	eventHeader     = []int{1, 2, 3, 6, 10, 11}
	eventEnd        = []int{1, 2, 3, 4, 5, 6}
	runEnd          = []int{1, 2}
)

// Line is one output line: either a bare header token or a row of values.
type Line struct {
	Header string
	Values []float32
	Layout Layout
}

// IsHeader reports whether the line is a block header token.
func (l Line) IsHeader() bool {
	return l.Header != ""
}

// AppendText appends the line text, without a newline, to dst.
func (l Line) AppendText(dst []byte) []byte {
	if l.IsHeader() {
		return append(dst, l.Header...)
	}
	for _, v := range l.Values {
		dst = appendField(dst, v, l.Layout)
	}
	return dst
}

func (l Line) String() string {
	return string(l.AppendText(nil))
}

// appendField renders v like a C/Python "% W.Pe" conversion. Non-finite
// values are spelled nan/inf so the text stays readable by float parsers
// that expect the lower-case forms.
func appendField(dst []byte, v float32, layout Layout) []byte {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return appendPadded(dst, " nan", layout.Width)
	case math.IsInf(f, 1):
		return appendPadded(dst, " inf", layout.Width)
	case math.IsInf(f, -1):
		return appendPadded(dst, "-inf", layout.Width)
	}
	return fmt.Appendf(dst, "% *.*e", layout.Width, layout.Precision, f)
}

func appendPadded(dst []byte, s string, width int) []byte {
	if pad := width - len(s); pad > 0 {
		dst = append(dst, strings.Repeat(" ", pad)...)
	}
	return append(dst, s...)
}

// Decode projects a classified sub-block onto its output lines. Header kinds
// yield the header token followed by their value rows; particle blocks yield
// one Wide row per non-padding particle and no header.
func Decode(format corsika.Format, b SubBlock) []Line {
	switch b.Kind {
	case corsika.KindRUNH:
		return []Line{
			{Header: b.Kind.String()},
			row(b.Words, runHeaderMain, Wide),
			row(b.Words, runHeaderLevels, Narrow),
		}
	case corsika.KindEVTH:
		return []Line{{Header: b.Kind.String()}, row(b.Words, eventHeader, Wide)}
	case corsika.KindEVTE:
		return []Line{{Header: b.Kind.String()}, row(b.Words, eventEnd, Wide)}
	case corsika.KindRUNE:
		return []Line{{Header: b.Kind.String()}, row(b.Words, runEnd, Wide)}
	case corsika.KindParticles:
		particles := Particles(format, b.Words)
		lines := make([]Line, len(particles))
		for i, p := range particles {
			lines[i] = Line{Values: p, Layout: Wide}
		}
		return lines
	default:
		panic(fmt.Sprintf("l2blocks: unhandled sub-block kind %v", b.Kind))
	}
}

func row(words []float32, indexes []int, layout Layout) Line {
	values := make([]float32, len(indexes))
	for i, idx := range indexes {
		values[i] = words[idx]
	}
	return Line{Values: values, Layout: layout}
}
