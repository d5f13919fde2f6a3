package corsika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFormat(t *testing.T) {
	f := DefaultFormat()

	require.NoError(t, f.Validate())
	assert.Equal(t, 273*21, f.WordsPerRecord())
	assert.Equal(t, 22932, f.RecordBytes())
	assert.Equal(t, 39, f.ParticlesPerSubBlock())
	assert.False(t, f.StrictTrailer)
}

func TestThinnedFormat(t *testing.T) {
	f := ThinnedFormat()

	require.NoError(t, f.Validate())
	assert.Equal(t, 312*21*4, f.RecordBytes())
	assert.Equal(t, 39, f.ParticlesPerSubBlock())
}

func TestFormatIsAValue(t *testing.T) {
	a := DefaultFormat()
	b := a
	b.Windows[0].Lo = 0

	assert.Equal(t, TagRUNH-1, a.Windows[0].Lo, "copy must not alias the original windows")
}

func TestWindowContains(t *testing.T) {
	w := SentinelWindow(KindRUNH, TagRUNH)

	tests := []struct {
		name string
		v    float32
		want bool
	}{
		{"exact tag", 211285, true},
		{"lower edge", 211284, true},
		{"upper edge", 211286, true},
		{"below", 211283.9, false},
		{"above", 211286.1, false},
		{"zero", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.Contains(tc.v))
		})
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Format)
	}{
		{"sub-block too small", func(f *Format) { f.WordsPerSubBlock = 17 }},
		{"no sub-blocks", func(f *Format) { f.SubBlocksPerRecord = 0 }},
		{"zero particle words", func(f *Format) { f.WordsPerParticle = 0 }},
		{"particle wider than sub-block", func(f *Format) { f.WordsPerParticle = f.WordsPerSubBlock + 1 }},
		{"inverted window", func(f *Format) { f.Windows[2].Lo, f.Windows[2].Hi = 10, 5 }},
		{"overlapping windows", func(f *Format) { f.Windows[3] = SentinelWindow(KindRUNE, TagEVTE+1) }},
		{"duplicate kind", func(f *Format) { f.Windows[1].Kind = KindRUNH }},
		{"particle window", func(f *Format) { f.Windows[0].Kind = KindParticles }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := DefaultFormat()
			tc.mutate(&f)
			assert.Error(t, f.Validate())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "RUNH", KindRUNH.String())
	assert.Equal(t, "EVTH", KindEVTH.String())
	assert.Equal(t, "EVTE", KindEVTE.String())
	assert.Equal(t, "RUNE", KindRUNE.String())
	assert.Equal(t, "PARTICLES", KindParticles.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())

	assert.False(t, KindParticles.IsHeader())
	for _, k := range Kinds[:4] {
		assert.True(t, k.IsHeader(), k.String())
	}
}
