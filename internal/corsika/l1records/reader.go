package l1records

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/banshee-data/shower.report/internal/corsika"
)

var (
	// ErrTruncatedStream is returned when the input ends inside a record:
	// after a partial length marker, before the full payload, or before the
	// trailing marker. It is never returned for a clean end of input.
	ErrTruncatedStream = errors.New("truncated record stream")

	// ErrTrailerMismatch is returned in strict mode when a record's trailing
	// marker differs from its leading marker.
	ErrTrailerMismatch = errors.New("trailing record marker does not match leading marker")
)

// FrameSizeMismatchError describes a record whose declared length is not the
// expected record size. The reader recovers from it by skipping the record
// and reports it through logging and Stats. A negative length cannot be
// skipped, so it is wrapped in the ErrTruncatedStream that ends the stream.
type FrameSizeMismatchError struct {
	Index    int
	Declared int32
	Expected int
}

func (e *FrameSizeMismatchError) Error() string {
	return fmt.Sprintf("record %d: declared length %d, expected %d", e.Index, e.Declared, e.Expected)
}

// Record is one well-formed record. Payload is owned by the Reader and is
// only valid until the next call to Next.
type Record struct {
	Index   int // 1-based position in the stream, counting skipped records
	Length  int32
	Payload []byte
}

// Stats counts what the reader has seen so far.
type Stats struct {
	Records           int   // records read, including skipped ones
	SkippedRecords    int   // records skipped because of a size mismatch
	TrailerMismatches int   // lenient-mode trailer mismatches
	Bytes             int64 // bytes consumed from the source
}

// Reader yields records from a raw particle file. It is not safe for
// concurrent use and cannot be rewound.
type Reader struct {
	r        *bufio.Reader
	format   corsika.Format
	expected int
	payload  []byte
	marker   [corsika.MarkerBytes]byte
	stats    Stats
	err      error // sticky terminal state (io.EOF or a fatal error)

	// OnSkip, if set, is called for every record skipped because of a size
	// mismatch, after it has been consumed.
	OnSkip func(*FrameSizeMismatchError)
}

// NewReader returns a Reader over src using the given layout.
func NewReader(src io.Reader, format corsika.Format) *Reader {
	expected := format.RecordBytes()
	return &Reader{
		r:        bufio.NewReaderSize(src, expected+2*corsika.MarkerBytes),
		format:   format,
		expected: expected,
		payload:  make([]byte, expected),
	}
}

// Stats returns a snapshot of the reader counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next well-formed record. It returns io.EOF once the input
// is exhausted at a record boundary. Records with an unexpected declared
// length are skipped transparently. Any other error is terminal and is
// returned again by every later call.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		if errors.Is(err, io.EOF) {
			diagf("end of stream after %d records (%d skipped, %d bytes)",
				r.stats.Records, r.stats.SkippedRecords, r.stats.Bytes)
		}
	}
	return rec, err
}

func (r *Reader) next() (Record, error) {
	for {
		n, err := io.ReadFull(r.r, r.marker[:])
		r.stats.Bytes += int64(n)
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, readError(err, "record %d: length marker has %d of %d bytes", r.stats.Records+1, n, corsika.MarkerBytes)
		}

		r.stats.Records++
		index := r.stats.Records
		length := int32(binary.LittleEndian.Uint32(r.marker[:]))

		if int(length) != r.expected {
			mismatch := &FrameSizeMismatchError{Index: index, Declared: length, Expected: r.expected}
			if length < 0 {
				// A negative length cannot be skipped; the stream position is lost.
				return Record{}, fmt.Errorf("%w: %w", ErrTruncatedStream, mismatch)
			}
			if err := r.skip(int64(length)+corsika.MarkerBytes, index); err != nil {
				return Record{}, err
			}
			r.stats.SkippedRecords++
			opsf("warning: %v; skipped", mismatch)
			if r.OnSkip != nil {
				r.OnSkip(mismatch)
			}
			continue
		}

		n, err = io.ReadFull(r.r, r.payload)
		r.stats.Bytes += int64(n)
		if err != nil {
			return Record{}, readError(err, "record %d: payload has %d of %d bytes", index, n, length)
		}

		n, err = io.ReadFull(r.r, r.marker[:])
		r.stats.Bytes += int64(n)
		if err != nil {
			return Record{}, readError(err, "record %d: trailing marker has %d of %d bytes", index, n, corsika.MarkerBytes)
		}
		if trailer := int32(binary.LittleEndian.Uint32(r.marker[:])); trailer != length {
			if r.format.StrictTrailer {
				return Record{}, fmt.Errorf("%w: record %d: leading %d, trailing %d",
					ErrTrailerMismatch, index, length, trailer)
			}
			r.stats.TrailerMismatches++
			opsf("warning: record %d: trailing marker %d does not match leading marker %d", index, trailer, length)
		}

		tracef("record %d: %d bytes", index, length)
		return Record{Index: index, Length: length, Payload: r.payload}, nil
	}
}

// skip discards n bytes of a record that is not going to be decoded.
func (r *Reader) skip(n int64, index int) error {
	d, err := r.r.Discard(int(n))
	r.stats.Bytes += int64(d)
	if err != nil {
		return readError(err, "record %d: skipped %d of %d bytes", index, d, n)
	}
	return nil
}

// readError reports a short read. Running out of input is ErrTruncatedStream;
// any other failure of the source, such as a corrupt compressed stream, is
// returned as itself so the message names the real cause.
func readError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncatedStream, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// All returns the remaining records as a sequence. The sequence stops after
// the first error, which is yielded with a zero Record; a clean end of input
// ends the sequence without an error.
func (r *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}
