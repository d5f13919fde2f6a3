package l2blocks

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/shower.report/internal/corsika"
)

// SubBlock is one classified sub-block of a record.
type SubBlock struct {
	Index int // position within the record, 0-based
	Kind  corsika.Kind
	Words []float32
}

// Classify returns the kind of a sub-block whose first word is first.
// Windows are tried in the format's order; anything outside all of them is a
// particle block.
func Classify(format corsika.Format, first float32) corsika.Kind {
	for _, w := range format.Windows {
		if w.Contains(first) {
			return w.Kind
		}
	}
	return corsika.KindParticles
}

// Split decodes a record payload into exactly format.SubBlocksPerRecord
// classified sub-blocks of format.WordsPerSubBlock words each.
func Split(format corsika.Format, payload []byte) ([]SubBlock, error) {
	if len(payload) != format.RecordBytes() {
		return nil, fmt.Errorf("payload is %d bytes, expected %d", len(payload), format.RecordBytes())
	}

	words := make([]float32, format.WordsPerRecord())
	for i := range words {
		words[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*corsika.BytesPerWord:]))
	}

	blocks := make([]SubBlock, format.SubBlocksPerRecord)
	for i := range blocks {
		start := i * format.WordsPerSubBlock
		w := words[start : start+format.WordsPerSubBlock : start+format.WordsPerSubBlock]
		blocks[i] = SubBlock{
			Index: i,
			Kind:  Classify(format, w[0]),
			Words: w,
		}
	}
	return blocks, nil
}
