package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/banshee-data/shower.report/internal/corsika"
	"github.com/banshee-data/shower.report/internal/corsika/l1records"
	"github.com/banshee-data/shower.report/internal/corsika/l2blocks"
	"github.com/banshee-data/shower.report/internal/corsika/l3text"
	"github.com/banshee-data/shower.report/internal/fsutil"
)

// ErrSourceNotFound is returned by DecodeFile when the input path does not
// exist. It wraps fs.ErrNotExist.
var ErrSourceNotFound = fmt.Errorf("source not found: %w", fs.ErrNotExist)

// Stats summarises one decode run.
type Stats struct {
	Source            string
	Compression       Codec
	Records           int // records read, including skipped ones
	SkippedRecords    int
	TrailerMismatches int
	SubBlocks         int
	ByKind            map[corsika.Kind]int
	Particles         int // particle rows written
	PaddingDropped    int // zero-id particle slots discarded
	Lines             int // decoded lines written, excluding the source line
	Bytes             int64
	Duration          time.Duration
	Skipped           bool // output already existed and SkipExisting was set
}

// Options controls DecodeFile.
type Options struct {
	// SkipExisting leaves an existing output file untouched and reports
	// Stats.Skipped instead of decoding again.
	SkipExisting bool
}

// DecodeFile decodes the particle file at in and writes the text format to
// out. The source line names in exactly as given.
func DecodeFile(ctx context.Context, fsys fsutil.FileSystem, format corsika.Format, in, out string, opts Options) (stats Stats, err error) {
	stats.Source = in
	if opts.SkipExisting && fsys.Exists(out) {
		diagf("%s exists, skipping decode of %s", out, in)
		stats.Skipped = true
		return stats, nil
	}
	if err := format.Validate(); err != nil {
		return stats, fmt.Errorf("invalid format: %w", err)
	}

	src, err := fsys.Open(in)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, fmt.Errorf("%w: %s", ErrSourceNotFound, in)
		}
		return stats, fmt.Errorf("open %s: %w", in, err)
	}
	defer src.Close()

	if dir := filepath.Dir(out); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return stats, fmt.Errorf("create output directory: %w", err)
		}
	}
	dst, err := fsys.Create(out)
	if err != nil {
		return stats, fmt.Errorf("create %s: %w", out, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", out, cerr)
		}
	}()

	return Decode(ctx, format, src, dst, in)
}

// Decode reads a particle file from r and writes its text rendering to w.
// Lines from records decoded before a fatal error are still flushed to w;
// a record is only decoded once it has been read completely.
func Decode(ctx context.Context, format corsika.Format, r io.Reader, w io.Writer, source string) (Stats, error) {
	start := time.Now()
	stats := Stats{Source: source, ByKind: make(map[corsika.Kind]int)}
	if err := format.Validate(); err != nil {
		return stats, fmt.Errorf("invalid format: %w", err)
	}

	in, codec, err := decompress(r, format.RecordBytes())
	if err != nil {
		return stats, err
	}
	defer in.Close()
	stats.Compression = codec
	if codec != CodecNone {
		diagf("%s: reading %s-compressed input", source, codec)
	}

	rr := l1records.NewReader(in, format)
	tw := l3text.NewWriter(w, source)
	perSubBlock := format.ParticlesPerSubBlock()

	finish := func(err error) (Stats, error) {
		rs := rr.Stats()
		stats.Records = rs.Records
		stats.SkippedRecords = rs.SkippedRecords
		stats.TrailerMismatches = rs.TrailerMismatches
		stats.Bytes = rs.Bytes
		stats.Lines = tw.Lines()
		stats.Duration = time.Since(start)
		if ferr := tw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("write output: %w", ferr)
		}
		if err != nil {
			opsf("%s: decode stopped after %d records: %v", source, stats.Records, err)
		} else {
			diagf("%s: %d records (%d skipped), %d sub-blocks, %d particles, %d lines in %v",
				source, stats.Records, stats.SkippedRecords, stats.SubBlocks, stats.Particles, stats.Lines, stats.Duration)
		}
		return stats, err
	}

	for rec, err := range rr.All() {
		if err != nil {
			return finish(err)
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		blocks, err := l2blocks.Split(format, rec.Payload)
		if err != nil {
			return finish(fmt.Errorf("record %d: %w", rec.Index, err))
		}
		for _, b := range blocks {
			stats.SubBlocks++
			stats.ByKind[b.Kind]++
			lines := l2blocks.Decode(format, b)
			if b.Kind == corsika.KindParticles {
				stats.Particles += len(lines)
				stats.PaddingDropped += perSubBlock - len(lines)
			}
			if err := tw.WriteLines(lines); err != nil {
				return finish(fmt.Errorf("write output: %w", err))
			}
		}
		tracef("record %d: %d sub-blocks decoded", rec.Index, len(blocks))
	}
	return finish(nil)
}
