package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shower.report/internal/corsika"
	"github.com/banshee-data/shower.report/internal/corsika/l1records"
	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/testutil"
)

func particles(format corsika.Format, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = testutil.Particle(format, float32(1001+i), float32(10*i), float32(-5*i))
	}
	return out
}

func TestDecode_Shower(t *testing.T) {
	format := corsika.DefaultFormat()
	input := testutil.Shower(format, particles(format, 3)...)

	var out bytes.Buffer
	stats, err := Decode(context.Background(), format, bytes.NewReader(input), &out, "DAT402141")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 1+3+2+3+2+2)
	assert.Equal(t, "READ DATA FROM FILE = DAT402141", lines[0])
	assert.Equal(t, "RUNH", lines[1])
	assert.Equal(t, "  1.00000e+00  2.51015e+05  7.70000e+00  0.00000e+00  0.00000e+00  0.00000e+00", lines[2])
	assert.Equal(t, strings.Repeat("  0.000e+00", 11), lines[3])
	assert.Equal(t, "EVTH", lines[4])
	assert.Equal(t, "  1.00100e+03  1.50000e+00 -2.50000e-01  1.00000e+01  0.00000e+00  0.00000e+00  4.20000e+01", lines[6])
	assert.Equal(t, "EVTE", lines[9])
	assert.Equal(t, "RUNE", lines[11])
	assert.Equal(t, "  1.00000e+00  1.00000e+00", lines[12])

	assert.Equal(t, CodecNone, stats.Compression)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 0, stats.SkippedRecords)
	assert.Equal(t, 2*format.SubBlocksPerRecord, stats.SubBlocks)
	assert.Equal(t, 3, stats.Particles)
	assert.Equal(t, 12, stats.Lines)
	assert.Equal(t, 1, stats.ByKind[corsika.KindRUNH])
	assert.Equal(t, 1, stats.ByKind[corsika.KindRUNE])
	assert.Equal(t, 2*format.SubBlocksPerRecord-4, stats.ByKind[corsika.KindParticles])
	assert.Equal(t, stats.ByKind[corsika.KindParticles]*format.ParticlesPerSubBlock()-3, stats.PaddingDropped)
	assert.Equal(t, int64(len(input)), stats.Bytes)
}

func TestDecode_EmptyInputWritesSourceLine(t *testing.T) {
	var out bytes.Buffer
	stats, err := Decode(context.Background(), corsika.DefaultFormat(), bytes.NewReader(nil), &out, "empty")
	require.NoError(t, err)
	assert.Equal(t, "READ DATA FROM FILE = empty\n", out.String())
	assert.Zero(t, stats.Records)
}

func TestDecode_ParticleCount(t *testing.T) {
	format := corsika.DefaultFormat()
	const n = 20
	payload := testutil.RecordPayload(format, testutil.ParticleBlock(format, particles(format, n)...))

	var out bytes.Buffer
	stats, err := Decode(context.Background(), format, bytes.NewReader(testutil.Frame(payload)), &out, "p")
	require.NoError(t, err)
	assert.Equal(t, n, stats.Particles)
	assert.Equal(t, n+1, strings.Count(out.String(), "\n"))
	assert.Equal(t, format.SubBlocksPerRecord*format.ParticlesPerSubBlock()-n, stats.PaddingDropped)
}

func TestDecode_MismatchedRecordIsSkipped(t *testing.T) {
	format := corsika.DefaultFormat()
	var ops bytes.Buffer
	l1records.SetLogWriters(&ops, nil, nil)
	t.Cleanup(func() { l1records.SetLogWriters(nil, nil, nil) })

	evte := testutil.RecordPayload(format, testutil.HeaderBlock(format, corsika.TagEVTE, map[int]float32{1: 7}))
	runEnd := testutil.RecordPayload(format, testutil.HeaderBlock(format, corsika.TagRUNE, map[int]float32{1: 7}))
	junk := bytes.Repeat([]byte{0xab}, 100)
	input := testutil.File(testutil.Frame(evte), testutil.Frame(junk), testutil.Frame(runEnd))

	var out bytes.Buffer
	stats, err := Decode(context.Background(), format, bytes.NewReader(input), &out, "mixed")
	require.NoError(t, err)

	want := "READ DATA FROM FILE = mixed\n" +
		"EVTE\n" +
		"  7.00000e+00  0.00000e+00  0.00000e+00  0.00000e+00  0.00000e+00  0.00000e+00\n" +
		"RUNE\n" +
		"  7.00000e+00  0.00000e+00\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.SkippedRecords)
	assert.Contains(t, ops.String(), "record 2: declared length 100, expected 22932")
}

func TestDecode_TruncatedStreamKeepsEarlierLines(t *testing.T) {
	format := corsika.DefaultFormat()
	full := testutil.Frame(testutil.RecordPayload(format,
		testutil.HeaderBlock(format, corsika.TagRUNE, map[int]float32{1: 2, 2: 3})))
	partial := testutil.Frame(testutil.RecordPayload(format,
		testutil.HeaderBlock(format, corsika.TagEVTH, map[int]float32{1: 9})))
	input := testutil.File(full, partial[:corsika.MarkerBytes+1000])

	var out bytes.Buffer
	stats, err := Decode(context.Background(), format, bytes.NewReader(input), &out, "cut")
	require.ErrorIs(t, err, l1records.ErrTruncatedStream)

	assert.Equal(t, "READ DATA FROM FILE = cut\nRUNE\n  2.00000e+00  3.00000e+00\n", out.String())
	assert.NotContains(t, out.String(), "EVTH")
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2, stats.Lines)
}

func TestDecode_StrictTrailer(t *testing.T) {
	format := corsika.DefaultFormat()
	payload := testutil.RecordPayload(format)
	input := testutil.FrameWithMarkers(payload, int32(len(payload)), 5)

	_, err := Decode(context.Background(), format, bytes.NewReader(input), &bytes.Buffer{}, "x")
	require.NoError(t, err)

	format.StrictTrailer = true
	_, err = Decode(context.Background(), format, bytes.NewReader(input), &bytes.Buffer{}, "x")
	assert.ErrorIs(t, err, l1records.ErrTrailerMismatch)
}

func TestDecode_CompressedInputs(t *testing.T) {
	format := corsika.DefaultFormat()
	raw := testutil.Shower(format, particles(format, 5)...)

	var want bytes.Buffer
	_, err := Decode(context.Background(), format, bytes.NewReader(raw), &want, "DAT")
	require.NoError(t, err)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err = gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name  string
		input []byte
		codec Codec
	}{
		{"gzip", gz.Bytes(), CodecGzip},
		{"zstd", zs.Bytes(), CodecZstd},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			stats, err := Decode(context.Background(), format, bytes.NewReader(tc.input), &out, "DAT")
			require.NoError(t, err)
			assert.Equal(t, tc.codec, stats.Compression)
			assert.Equal(t, want.String(), out.String())
			assert.Equal(t, 5, stats.Particles)
		})
	}
}

func TestDecode_ForeignFirstRecordLooksLikeGzip(t *testing.T) {
	format := corsika.DefaultFormat()
	// A length of 0x8b1f is written as 1f 8b 00 00, the gzip magic.
	foreign := testutil.Frame(make([]byte, 0x8b1f))
	require.Equal(t, []byte{0x1f, 0x8b, 0x00, 0x00}, foreign[:4])
	runEnd := testutil.Frame(testutil.RecordPayload(format,
		testutil.HeaderBlock(format, corsika.TagRUNE, map[int]float32{1: 4, 2: 1})))

	var out bytes.Buffer
	stats, err := Decode(context.Background(), format, bytes.NewReader(testutil.File(foreign, runEnd)), &out, "DAT")
	require.NoError(t, err)
	assert.Equal(t, CodecNone, stats.Compression)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.SkippedRecords)
	assert.Equal(t, "READ DATA FROM FILE = DAT\nRUNE\n  4.00000e+00  1.00000e+00\n", out.String())
}

func TestDecode_CorruptGzip(t *testing.T) {
	format := corsika.DefaultFormat()
	raw := testutil.Shower(format, particles(format, 2)...)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	corrupt := gz.Bytes()
	corrupt[len(corrupt)-8] ^= 0xff // CRC-32 in the trailer

	_, err = Decode(context.Background(), format, bytes.NewReader(corrupt), &bytes.Buffer{}, "DAT.gz")
	require.ErrorIs(t, err, gzip.ErrChecksum)
	assert.False(t, errors.Is(err, l1records.ErrTruncatedStream), "checksum failure reported as truncation: %v", err)
}

func TestDecode_Cancelled(t *testing.T) {
	format := corsika.DefaultFormat()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := Decode(ctx, format, bytes.NewReader(testutil.Shower(format)), &out, "c")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "READ DATA FROM FILE = c\n", out.String())
}

func TestDecode_InvalidFormat(t *testing.T) {
	format := corsika.DefaultFormat()
	format.WordsPerParticle = 0

	_, err := Decode(context.Background(), format, bytes.NewReader(nil), &bytes.Buffer{}, "x")
	assert.ErrorContains(t, err, "invalid format")
}

func TestDecodeFile(t *testing.T) {
	format := corsika.DefaultFormat()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("/runs/DAT402141", testutil.Shower(format, particles(format, 2)...), 0644))

	stats, err := DecodeFile(context.Background(), fsys, format, "/runs/DAT402141", "/out/Output.txt", Options{})
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 2, stats.Particles)

	data, err := fsys.ReadFile("/out/Output.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "READ DATA FROM FILE = /runs/DAT402141\nRUNH\n"))
	assert.Equal(t, 12, strings.Count(string(data), "\n"))
}

func TestDecodeFile_SkipExisting(t *testing.T) {
	format := corsika.DefaultFormat()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("DAT1", testutil.Shower(format), 0644))
	require.NoError(t, fsys.WriteFile("Output.txt", []byte("previous"), 0644))

	stats, err := DecodeFile(context.Background(), fsys, format, "DAT1", "Output.txt", Options{SkipExisting: true})
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	data, _ := fsys.ReadFile("Output.txt")
	assert.Equal(t, "previous", string(data))

	stats, err = DecodeFile(context.Background(), fsys, format, "DAT1", "Output.txt", Options{})
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	data, _ = fsys.ReadFile("Output.txt")
	assert.True(t, strings.HasPrefix(string(data), "READ DATA FROM FILE = DAT1\n"))
}

func TestDecodeFile_SourceNotFound(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	_, err := DecodeFile(context.Background(), fsys, corsika.DefaultFormat(), "missing", "Output.txt", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceNotFound))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, fsys.Exists("Output.txt"), "no output is created for a missing source")
}
