package l3text

import (
	"bufio"
	"io"

	"github.com/banshee-data/shower.report/internal/corsika/l2blocks"
)

// SourcePrefix starts the first line of every decoded file.
const SourcePrefix = "READ DATA FROM FILE = "

// Writer emits decoded lines in the intermediate text format. The source line
// is written by NewWriter, so even an input with no records produces a valid
// file. Writes are buffered; Flush must be called before the destination is
// closed. The first write error is sticky.
type Writer struct {
	w     *bufio.Writer
	buf   []byte
	lines int
	err   error
}

// NewWriter starts a text file for the named source.
func NewWriter(w io.Writer, source string) *Writer {
	tw := &Writer{
		w:   bufio.NewWriterSize(w, 64*1024),
		buf: make([]byte, 0, 256),
	}
	tw.writeRaw(append(append(tw.buf[:0], SourcePrefix...), source...))
	return tw
}

// WriteLine appends one decoded line.
func (tw *Writer) WriteLine(l l2blocks.Line) error {
	tw.buf = l.AppendText(tw.buf[:0])
	tw.writeRaw(tw.buf)
	if tw.err == nil {
		tw.lines++
	}
	return tw.err
}

// WriteLines appends decoded lines in order.
func (tw *Writer) WriteLines(lines []l2blocks.Line) error {
	for _, l := range lines {
		if err := tw.WriteLine(l); err != nil {
			return err
		}
	}
	return nil
}

func (tw *Writer) writeRaw(b []byte) {
	if tw.err != nil {
		return
	}
	if _, err := tw.w.Write(b); err != nil {
		tw.err = err
		return
	}
	tw.err = tw.w.WriteByte('\n')
}

// Lines is the number of decoded lines written, excluding the source line.
func (tw *Writer) Lines() int {
	return tw.lines
}

// Flush writes any buffered data to the underlying writer.
func (tw *Writer) Flush() error {
	if tw.err != nil {
		return tw.err
	}
	tw.err = tw.w.Flush()
	return tw.err
}
