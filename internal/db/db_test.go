package db

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/longitudinal"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)
	migFS, err := Migrations()
	require.NoError(t, err)

	version, dirty, err := db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Already current.
	require.NoError(t, db.MigrateUp(migFS))

	require.NoError(t, db.MigrateDown(migFS))
	version, _, err = db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='hillas_params'`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, db.MigrateUp(migFS))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='hillas_params'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordDecodeRun(context.Background(), &DecodeRun{Source: "DAT1", Output: "out.txt"}))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.DecodeRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, path, db.Path())
}

func TestDecodeRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &DecodeRun{
		Source:    "DAT000001",
		Output:    "Output.txt",
		Records:   3,
		SubBlocks: 63,
		Particles: 1200,
		Lines:     1210,
		Duration:  1500 * time.Millisecond,
		CreatedAt: time.Unix(1000, 0),
	}
	require.NoError(t, db.RecordDecodeRun(ctx, first))
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, "none", first.Compression)

	second := &DecodeRun{RunID: "fixed", Source: "DAT000002.gz", Output: "b.txt", Compression: "gzip", CreatedAt: time.Unix(2000, 0)}
	require.NoError(t, db.RecordDecodeRun(ctx, second))

	runs, err := db.DecodeRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "fixed", runs[0].RunID)
	assert.Equal(t, "gzip", runs[0].Compression)
	assert.Equal(t, *first, runs[1])

	limited, err := db.DecodeRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	// Duplicate ids are rejected.
	assert.Error(t, db.RecordDecodeRun(ctx, &DecodeRun{RunID: "fixed", Source: "x", Output: "y"}))
}

func hillas(xmax ...float64) []longitudinal.HillasParams {
	out := make([]longitudinal.HillasParams, len(xmax))
	for i, x := range xmax {
		out[i] = longitudinal.HillasParams{Nmax: 1e5, X0: 10, Xmax: x, A: 70}
	}
	return out
}

func TestRecordHillas(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch, err := db.RecordHillas(ctx, "dados/PAR40115.txt", analysis.Proton, 15, hillas(600, 700))
	require.NoError(t, err)
	assert.NotEmpty(t, batch)

	// Re-cataloguing a source replaces its rows.
	again, err := db.RecordHillas(ctx, "dados/PAR40115.txt", analysis.Proton, 15, hillas(610, 690))
	require.NoError(t, err)
	assert.NotEqual(t, batch, again)

	_, err = db.RecordHillas(ctx, "dados/PAR40116.txt", analysis.Proton, 16, hillas(720))
	require.NoError(t, err)
	_, err = db.RecordHillas(ctx, "dados/PAR40315.txt", analysis.Iron, 15, hillas(500))
	require.NoError(t, err)

	got, err := db.HillasXmax(ctx, analysis.Proton)
	require.NoError(t, err)
	assert.Equal(t, map[int][]float64{15: {610, 690}, 16: {720}}, got)

	none, err := db.HillasXmax(ctx, analysis.Carbon)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestXmaxSeries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, c := range []struct {
		source  string
		primary analysis.Primary
		logEeV  int
		xmax    []float64
	}{
		{"PAR40114.txt", analysis.Proton, 14, []float64{100}},
		{"PAR40115.txt", analysis.Proton, 15, []float64{600, 700}},
		{"PAR40116.txt", analysis.Proton, 16, []float64{720, 720}},
		{"PAR40315.txt", analysis.Iron, 15, []float64{500}},
	} {
		_, err := db.RecordHillas(ctx, c.source, c.primary, c.logEeV, hillas(c.xmax...))
		require.NoError(t, err)
	}

	series, err := db.XmaxSeries(ctx)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, analysis.Proton, series[0].Primary)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, "PAR40115.txt", series[0].Points[0].File)
	assert.InDelta(t, 70, series[0].Slope, 1e-9)
	assert.InDelta(t, 230, series[0].Intercept, 1e-9)
}

func TestRunsHandler(t *testing.T) {
	db := newTestDB(t)
	h := db.RunsHandler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `[]`, w.Body.String())

	require.NoError(t, db.RecordDecodeRun(context.Background(), &DecodeRun{RunID: "r1", Source: "DAT1", Output: "o"}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var runs []DecodeRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "DAT1", runs[0].Source)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/runs?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackupHandler(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordDecodeRun(context.Background(), &DecodeRun{Source: "DAT1", Output: "o"}))

	w := httptest.NewRecorder()
	db.BackupHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".db.gz")

	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/runs", "/debug/backup", "/debug/tailsql/"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		// Debug access may be refused for the test client address, but the
		// route must exist.
		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
	}
}
