// Package corsika holds the record layout shared by the CORSIKA particle-file
// decoding layers.
//
// The decoder is split the same way the data is nested on disk:
//
//	l1records  Fortran unformatted sequential records (length-framed payloads)
//	l2blocks   fixed-size sub-blocks inside a record, classified by sentinel
//	l3text     the intermediate text format consumed by the analysis tools
//
// Dependency rule: a layer only imports the layers below it and this package.
package corsika

import (
	"fmt"
	"math"
)

// BytesPerWord is the size of one CORSIKA word (IEEE-754 single precision).
const BytesPerWord = 4

// MarkerBytes is the size of the leading and trailing Fortran record markers.
const MarkerBytes = 4

// Standard (non-thinned) CORSIKA particle file layout.
const (
	StandardWordsPerSubBlock   = 273
	StandardSubBlocksPerRecord = 21
	StandardWordsPerParticle   = 7

	// Thinned runs carry an extra weight word per particle.
	ThinnedWordsPerSubBlock = 312
	ThinnedWordsPerParticle = 8
)

// minHeaderWords is the number of words a sub-block needs so that every
// header field the decoder projects (RUNH reaches word 17) is addressable.
const minHeaderWords = 18

// Kind is the classification of a sub-block. The zero value is KindParticles,
// which is also the fallback for any first word outside the sentinel windows.
type Kind int

const (
	KindParticles Kind = iota
	KindRUNH
	KindEVTH
	KindEVTE
	KindRUNE
)

// Kinds lists every Kind in classification priority order, particles last.
var Kinds = [...]Kind{KindRUNH, KindEVTH, KindEVTE, KindRUNE, KindParticles}

func (k Kind) String() string {
	switch k {
	case KindRUNH:
		return "RUNH"
	case KindEVTH:
		return "EVTH"
	case KindEVTE:
		return "EVTE"
	case KindRUNE:
		return "RUNE"
	case KindParticles:
		return "PARTICLES"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsHeader reports whether sub-blocks of this kind are emitted with a header line.
func (k Kind) IsHeader() bool {
	return k == KindRUNH || k == KindEVTH || k == KindEVTE || k == KindRUNE
}

// Window is an inclusive tolerance range around a sentinel block tag. The tags
// are integers stored as float32, so an exact comparison is not used.
type Window struct {
	Kind Kind
	Lo   float64
	Hi   float64
}

// Contains reports whether v lies in [Lo, Hi].
func (w Window) Contains(v float32) bool {
	f := float64(v)
	return f >= w.Lo && f <= w.Hi
}

// SentinelWindow returns the width-2 window centred on tag.
func SentinelWindow(kind Kind, tag float64) Window {
	return Window{Kind: kind, Lo: tag - 1, Hi: tag + 1}
}

// Block tag sentinels as written by CORSIKA.
const (
	TagRUNH = 211285.0
	TagEVTH = 217433.0
	TagEVTE = 3397.0
	TagRUNE = 3301.0
)

// Format describes the byte layout of a particle file. It is a plain value:
// copies are independent, and nothing in the decoder mutates one.
type Format struct {
	WordsPerSubBlock   int
	SubBlocksPerRecord int
	WordsPerParticle   int

	// Windows are checked in order; the first match wins.
	Windows [4]Window

	// StrictTrailer makes a trailing record marker that differs from the
	// leading marker a fatal error instead of a logged warning.
	StrictTrailer bool
}

// DefaultFormat returns the standard non-thinned layout.
func DefaultFormat() Format {
	return Format{
		WordsPerSubBlock:   StandardWordsPerSubBlock,
		SubBlocksPerRecord: StandardSubBlocksPerRecord,
		WordsPerParticle:   StandardWordsPerParticle,
		Windows: [4]Window{
			SentinelWindow(KindRUNH, TagRUNH),
			SentinelWindow(KindEVTH, TagEVTH),
			SentinelWindow(KindEVTE, TagEVTE),
			SentinelWindow(KindRUNE, TagRUNE),
		},
	}
}

// ThinnedFormat returns the layout written by runs with THIN enabled.
func ThinnedFormat() Format {
	f := DefaultFormat()
	f.WordsPerSubBlock = ThinnedWordsPerSubBlock
	f.WordsPerParticle = ThinnedWordsPerParticle
	return f
}

// WordsPerRecord is the number of words in one record payload.
func (f Format) WordsPerRecord() int {
	return f.WordsPerSubBlock * f.SubBlocksPerRecord
}

// RecordBytes is the payload length every well-formed record must declare.
func (f Format) RecordBytes() int {
	return f.WordsPerRecord() * BytesPerWord
}

// ParticlesPerSubBlock is the number of whole particle chunks in a sub-block.
func (f Format) ParticlesPerSubBlock() int {
	if f.WordsPerParticle <= 0 {
		return 0
	}
	return f.WordsPerSubBlock / f.WordsPerParticle
}

// Validate checks that the layout is usable and the windows are disjoint.
func (f Format) Validate() error {
	if f.WordsPerSubBlock < minHeaderWords {
		return fmt.Errorf("words_per_sub_block must be at least %d, got %d", minHeaderWords, f.WordsPerSubBlock)
	}
	if f.SubBlocksPerRecord <= 0 {
		return fmt.Errorf("sub_blocks_per_record must be positive, got %d", f.SubBlocksPerRecord)
	}
	if f.WordsPerParticle <= 0 || f.WordsPerParticle > f.WordsPerSubBlock {
		return fmt.Errorf("words_per_particle must be in [1, %d], got %d", f.WordsPerSubBlock, f.WordsPerParticle)
	}
	if int64(f.RecordBytes()) > math.MaxInt32 {
		return fmt.Errorf("record size %d does not fit a 32-bit record marker", f.RecordBytes())
	}

	seen := make(map[Kind]bool, len(f.Windows))
	for i, w := range f.Windows {
		if !w.Kind.IsHeader() {
			return fmt.Errorf("window %d: kind %v is not a header kind", i, w.Kind)
		}
		if seen[w.Kind] {
			return fmt.Errorf("window %d: duplicate kind %v", i, w.Kind)
		}
		seen[w.Kind] = true
		if math.IsNaN(w.Lo) || math.IsNaN(w.Hi) || w.Lo > w.Hi {
			return fmt.Errorf("window %v: invalid range [%g, %g]", w.Kind, w.Lo, w.Hi)
		}
		for _, o := range f.Windows[:i] {
			if w.Lo <= o.Hi && o.Lo <= w.Hi {
				return fmt.Errorf("windows %v and %v overlap", o.Kind, w.Kind)
			}
		}
	}
	return nil
}
