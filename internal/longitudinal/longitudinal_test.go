package longitudinal

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shower.report/internal/fsutil"
)

const longFile = ` LONGITUDINAL DISTRIBUTION IN   205 VERTICAL STEPS OF    5. G/CM**2 FOR SHOWER      1
 DEPTH     GAMMAS  POSITRONS  ELECTRONS       MU+           MU-     HADRONS     CHARGED     NUCLEI  CHERENKOV
   5.   0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 1.00000E+00 0.00000E+00 0.00000E+00
  10.   2.00000E+00 1.00000E+00 3.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 5.00000E+00 0.00000E+00 0.00000E+00

 LONGITUDINAL ENERGY DEPOSIT IN   205 VERTICAL STEPS OF    5. G/CM**2 FOR SHOWER      1
 DEPTH       GAMMA    EM IONIZ     EM CUT    MU IONIZ      MU CUT  HADR IONIZ    HADR CUT   NEUTRINO    SUM
   5.   0.00000E+00 1.00000E-01 0.00000E+00 0.00000E+00 0.00000E+00 2.00000E-01 0.00000E+00 0.00000E+00 3.00000E-01
  10.   1.00000E-01 2.00000E-01 0.00000E+00 0.00000E+00 0.00000E+00 2.00000E-01 0.00000E+00 0.00000E+00 5.00000E-01

 FIT OF THE HILLAS CURVE   N(T) = P1*((T-P2)/(P3-P2))**((P3-P2)/(P4+P5*T+P6*T**2)) * EXP((P3-T)/(P4+P5*T+P6*T**2))
 TO LONGITUDINAL DISTRIBUTION OF     ALL CHARGED  PARTICLES
 PARAMETERS         =   1.2345E+05  1.0000E+01  4.5000E+02  6.0000E+01 -1.0000E-02  2.0000E-05
 CHI**2/DOF         =   1.5000E+00
 AV. DEVIATION IN % =   2.0000E+00

 LONGITUDINAL DISTRIBUTION IN    10 VERTICAL STEPS OF  100. G/CM**2 FOR SHOWER      2
 DEPTH     GAMMAS  POSITRONS  ELECTRONS       MU+           MU-     HADRONS     CHARGED     NUCLEI  CHERENKOV
 100.   4.00000E+00 0.00000E+00 6.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 7.00000E+00 0.00000E+00 0.00000E+00
 LONGITUDINAL ENERGY DEPOSIT IN    10 VERTICAL STEPS OF  100. G/CM**2 FOR SHOWER      2
 DEPTH       GAMMA    EM IONIZ     EM CUT    MU IONIZ      MU CUT  HADR IONIZ    HADR CUT   NEUTRINO    SUM
 100.   1.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00
 FIT OF THE HILLAS CURVE   N(T) = ...
 PARAMETERS         =   2.0000E+05 -5.0000E+00  5.5000E+02  7.0000E+01  0.0000E+00  0.0000E+00  9.9000E+01
`

const wantOut = `# SHOWER 1
# Longitudinal particle distribution for 205 levels:
5.   0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 1.00000E+00 0.00000E+00 0.00000E+00
10.   2.00000E+00 1.00000E+00 3.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 5.00000E+00 0.00000E+00 0.00000E+00
# Energy deposit distribution for 205 levels:
5.   0.00000E+00 1.00000E-01 0.00000E+00 0.00000E+00 0.00000E+00 2.00000E-01 0.00000E+00 0.00000E+00 3.00000E-01
10.   1.00000E-01 2.00000E-01 0.00000E+00 0.00000E+00 0.00000E+00 2.00000E-01 0.00000E+00 0.00000E+00 5.00000E-01
# Hillas parameters: 1.2345E+05 1.0000E+01 4.5000E+02 6.0000E+01 -1.0000E-02 2.0000E-05
# End of shower 1.
# SHOWER 2
# Longitudinal particle distribution for 10 levels:
100.   4.00000E+00 0.00000E+00 6.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00 7.00000E+00 0.00000E+00 0.00000E+00
# Energy deposit distribution for 10 levels:
100.   1.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 0.00000E+00 1.00000E+00
# Hillas parameters: 2.0000E+05 -5.0000E+00 5.5000E+02 7.0000E+01 0.0000E+00 0.0000E+00 9.9000E+01
# End of shower 2.`

const wantPar = `1.2345E+05 1.0000E+01 4.5000E+02 6.0000E+01 -1.0000E-02 2.0000E-05
2.0000E+05 -5.0000E+00 5.5000E+02 7.0000E+01 0.0000E+00 0.0000E+00`

func TestReformat(t *testing.T) {
	res, err := Reformat(strings.NewReader(longFile))
	require.NoError(t, err)

	if diff := cmp.Diff(strings.Split(wantOut, "\n"), strings.Split(res.Out, "\n")); diff != "" {
		t.Errorf("OUT mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, wantPar, res.Par)
	assert.Equal(t, 2, res.Showers)
	assert.Equal(t, 2, res.Fits)
}

func TestReformat_Empty(t *testing.T) {
	res, err := Reformat(strings.NewReader("nothing to see\n"))
	require.NoError(t, err)
	assert.Equal(t, "", res.Out)
	assert.Equal(t, "", res.Par)
	assert.Zero(t, res.Showers)
}

func TestReformat_ShowerWithoutFit(t *testing.T) {
	input := " LONGITUDINAL DISTRIBUTION IN   205 VERTICAL STEPS OF    5. G/CM**2 FOR SHOWER      1\n" +
		"   5.   1.0 2.0\n" +
		" FIT OF THE HILLAS CURVE\n" +
		" PARAMETERS = 1.0E+00 2.0E+00\n"

	res, err := Reformat(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "# SHOWER 1\n# Longitudinal particle distribution for 205 levels:\n5.   1.0 2.0\n# End of shower 1.", res.Out)
	assert.Equal(t, "", res.Par)
	assert.Equal(t, 1, res.Showers)
	assert.Equal(t, 0, res.Fits)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, 205, levels("LONGITUDINAL DISTRIBUTION IN   205 VERTICAL STEPS OF    5. G/CM**2"))
	assert.Equal(t, 52, levels("LONGITUDINAL ENERGY DEPOSIT IN    52 SLANT  STEPS OF   20. G/CM**2"))
	assert.Equal(t, defaultLevels, levels("LONGITUDINAL DISTRIBUTION"))
}

func TestReformatFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("DAT402141.long", []byte(longFile), 0644))

	st, err := ReformatFile(fsys, "DAT402141.long", "OUT40214.txt", "PAR40214.txt")
	require.NoError(t, err)
	assert.True(t, st.WroteOut)
	assert.True(t, st.WrotePar)
	assert.Equal(t, 2, st.Showers)

	par, err := fsys.ReadFile("PAR40214.txt")
	require.NoError(t, err)
	assert.Equal(t, wantPar, string(par))
}

func TestReformatFile_SkipsExistingOutputs(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("in.long", []byte(longFile), 0644))
	require.NoError(t, fsys.WriteFile("OUT.txt", []byte("keep"), 0644))

	st, err := ReformatFile(fsys, "in.long", "OUT.txt", "PAR.txt")
	require.NoError(t, err)
	assert.True(t, st.SkippedOut)
	assert.False(t, st.WroteOut)
	assert.True(t, st.WrotePar)

	out, _ := fsys.ReadFile("OUT.txt")
	assert.Equal(t, "keep", string(out))

	// Both present: the input is not even opened.
	require.NoError(t, fsys.WriteFile("PAR.txt", []byte("keep"), 0644))
	st, err = ReformatFile(fsys, "missing.long", "OUT.txt", "PAR.txt")
	require.NoError(t, err)
	assert.True(t, st.SkippedOut && st.SkippedPar)
}

func TestReformatFile_MissingInput(t *testing.T) {
	_, err := ReformatFile(fsutil.NewMemoryFileSystem(), "missing.long", "OUT.txt", "PAR.txt")
	assert.Error(t, err)
}

func TestReadShowers(t *testing.T) {
	out := wantOut + "\n# SHOWER 3\n# chi2/dof= 1.25 avdev= 3.5\n# End of shower 3."
	showers, err := ReadShowers(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, showers, 3)

	first := showers[0]
	assert.Equal(t, 1, first.ID)
	require.Len(t, first.Particles, 2)
	require.Len(t, first.Energy, 2)
	assert.Equal(t, 10.0, first.Particles[1][ColDepth])
	assert.Equal(t, 3.0, first.Particles[1][ColElectrons])
	assert.Equal(t, 0.5, first.Energy[1][9])
	assert.Equal(t, []float64{1.2345e5, 10, 450, 60, -0.01, 2e-5}, first.Hillas)
	assert.Nil(t, first.Chi2)

	assert.Len(t, showers[1].Hillas, 7)
	assert.Equal(t, &[2]float64{1.25, 3.5}, showers[2].Chi2)
	assert.Empty(t, showers[2].Particles)
}

func TestReadShowers_BadRow(t *testing.T) {
	_, err := ReadShowers(strings.NewReader("# SHOWER 1\n# Longitudinal particle distribution for 2 levels:\n5. abc\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestReadHillas(t *testing.T) {
	params, err := ReadHillas(strings.NewReader(wantPar + "\n\n"))
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, HillasParams{Nmax: 1.2345e5, X0: 10, Xmax: 450, A: 60, B: -0.01, C: 2e-5}, params[0])
	assert.Equal(t, 550.0, params[1].Xmax)

	_, err = ReadHillas(strings.NewReader("1 2 3\n"))
	assert.ErrorContains(t, err, "3 fields")
}

func TestHillasParams_At(t *testing.T) {
	h := HillasParams{Nmax: 1e6, X0: 0, Xmax: 600, A: 70}

	assert.InDelta(t, 1e6, h.At(600), 1e-6)
	assert.Less(t, h.At(300), h.At(600))
	assert.Less(t, h.At(900), h.At(600))
	assert.Zero(t, h.At(-10))
	assert.False(t, math.IsNaN(h.At(1e4)))
}

func TestColumn(t *testing.T) {
	rows := [][]float64{{1, 2}, {3}, {5, 6}}
	assert.Equal(t, []float64{2, 6}, Column(rows, 1))
	assert.Empty(t, Column(rows, 4))
}
