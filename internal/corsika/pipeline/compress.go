package pipeline

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/shower.report/internal/corsika"
)

// Codec names the compression detected on an input stream.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// probeSize bounds how much of the input is inspected before choosing a
// decoder. It covers a gzip header with a modest name and a zstd frame header.
const probeSize = 64 << 10

// sniff peeks at the head of br without consuming it. Input whose first
// length marker equals recordBytes is raw. Otherwise a gzip or zstd magic
// number selects that codec, but only if the header behind it parses: a
// foreign record whose length happens to spell a magic number stays raw.
func sniff(br *bufio.Reader, recordBytes int) Codec {
	head, _ := br.Peek(probeSize)
	if len(head) >= corsika.MarkerBytes &&
		int(int32(binary.LittleEndian.Uint32(head))) == recordBytes {
		return CodecNone
	}
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		var h zstd.Header
		if err := h.Decode(head); err != nil {
			diagf("zstd magic without a valid frame header (%v), reading as raw", err)
			return CodecNone
		}
		return CodecZstd
	case bytes.HasPrefix(head, gzipMagic):
		if _, err := gzip.NewReader(bytes.NewReader(head)); err != nil {
			diagf("gzip magic without a valid header (%v), reading as raw", err)
			return CodecNone
		}
		return CodecGzip
	default:
		return CodecNone
	}
}

// decompress wraps r in the decoder matching its leading bytes. The returned
// closer releases decoder resources only; it never closes r.
func decompress(r io.Reader, recordBytes int) (io.ReadCloser, Codec, error) {
	br := bufio.NewReaderSize(r, probeSize)
	codec := sniff(br, recordBytes)
	switch codec {
	case CodecGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, codec, fmt.Errorf("open gzip stream: %w", err)
		}
		return gz, codec, nil
	case CodecZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, codec, fmt.Errorf("open zstd stream: %w", err)
		}
		return zstdReadCloser{dec}, codec, nil
	default:
		return io.NopCloser(br), codec, nil
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
