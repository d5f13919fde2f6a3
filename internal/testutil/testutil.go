// Package testutil provides shared fixtures for building synthetic CORSIKA
// particle files in tests.
//
// Everything here writes the on-disk byte layout directly, so decoder tests
// do not depend on the decoder to produce their inputs.
package testutil

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/shower.report/internal/corsika"
)

// HeaderBlock returns a sub-block whose first word is tag and whose other
// words are zero except for the given index/value pairs.
func HeaderBlock(format corsika.Format, tag float32, fields map[int]float32) []float32 {
	words := make([]float32, format.WordsPerSubBlock)
	words[0] = tag
	for i, v := range fields {
		words[i] = v
	}
	return words
}

// ParticleBlock packs particles into consecutive chunks of a sub-block.
// Unused chunks stay zero, which is how CORSIKA pads a short block.
func ParticleBlock(format corsika.Format, particles ...[]float32) []float32 {
	words := make([]float32, format.WordsPerSubBlock)
	for i, p := range particles {
		copy(words[i*format.WordsPerParticle:], p[:format.WordsPerParticle])
	}
	return words
}

// Particle returns a chunk of format.WordsPerParticle words with a non-zero
// description word and X/Y at the positions the text tools read them from.
func Particle(format corsika.Format, id, x, y float32) []float32 {
	p := make([]float32, format.WordsPerParticle)
	p[0] = id
	p[1] = 1.5
	p[2] = -0.25
	p[3] = 10
	p[4] = x
	p[5] = y
	p[6] = 42
	return p
}

// RecordPayload serialises sub-blocks into one record payload. Missing
// sub-blocks are filled with zeros, which decode to nothing.
func RecordPayload(format corsika.Format, blocks ...[]float32) []byte {
	payload := make([]byte, format.RecordBytes())
	for i, block := range blocks {
		if i >= format.SubBlocksPerRecord {
			break
		}
		off := i * format.WordsPerSubBlock * corsika.BytesPerWord
		for j, w := range block {
			binary.LittleEndian.PutUint32(payload[off+j*corsika.BytesPerWord:], math.Float32bits(w))
		}
	}
	return payload
}

// Frame wraps payload in matching leading and trailing length markers.
func Frame(payload []byte) []byte {
	return FrameWithMarkers(payload, int32(len(payload)), int32(len(payload)))
}

// FrameWithMarkers wraps payload in arbitrary markers, for corrupt inputs.
func FrameWithMarkers(payload []byte, leading, trailing int32) []byte {
	out := make([]byte, 0, len(payload)+2*corsika.MarkerBytes)
	out = binary.LittleEndian.AppendUint32(out, uint32(leading))
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint32(out, uint32(trailing))
	return out
}

// File concatenates framed records into a particle file image.
func File(frames ...[]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// Shower builds a minimal, well-formed single-shower file: one record with
// RUNH, EVTH and a particle block, and a second with EVTE and RUNE.
func Shower(format corsika.Format, particles ...[]float32) []byte {
	first := RecordPayload(format,
		HeaderBlock(format, corsika.TagRUNH, map[int]float32{1: 1, 2: 251015, 3: 7.7}),
		HeaderBlock(format, corsika.TagEVTH, map[int]float32{1: 1, 2: 14, 3: 1e5}),
		ParticleBlock(format, particles...),
	)
	second := RecordPayload(format,
		HeaderBlock(format, corsika.TagEVTE, map[int]float32{1: 1, 2: 3}),
		HeaderBlock(format, corsika.TagRUNE, map[int]float32{1: 1, 2: 1}),
	)
	return File(Frame(first), Frame(second))
}
