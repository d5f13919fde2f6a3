package l2blocks

import "github.com/banshee-data/shower.report/internal/corsika"

// Particles returns the non-overlapping particle chunks of a sub-block,
// dropping every chunk whose first word is exactly zero (padding). A trailing
// partial chunk, possible only with a non-standard layout, is ignored.
func Particles(format corsika.Format, words []float32) [][]float32 {
	n := format.WordsPerParticle
	out := make([][]float32, 0, len(words)/n)
	for start := 0; start+n <= len(words); start += n {
		chunk := words[start : start+n : start+n]
		if chunk[0] == 0 {
			continue
		}
		out = append(out, chunk)
	}
	return out
}
