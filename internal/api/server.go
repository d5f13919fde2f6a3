// Package api serves decoded showers and the catalog over HTTP.
package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/config"
	"github.com/banshee-data/shower.report/internal/db"
	"github.com/banshee-data/shower.report/internal/fsutil"
	"github.com/banshee-data/shower.report/internal/httputil"
	"github.com/banshee-data/shower.report/internal/plotting"
	"github.com/banshee-data/shower.report/internal/security"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const maxBins = 10000

type Server struct {
	db      *db.DB
	fsys    fsutil.FileSystem
	dataDir string
	cfg     *config.Config
}

// NewServer serves decoded files under dataDir. catalog may be nil, in which
// case the catalog endpoints answer 404.
func NewServer(catalog *db.DB, fsys fsutil.FileSystem, dataDir string, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Server{db: catalog, fsys: fsys, dataDir: dataDir, cfg: cfg}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/xmax", s.showXmax)
	mux.HandleFunc("/api/lateral", s.showLateral)
	mux.HandleFunc("/report", s.showReport)
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "no catalog configured")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 100, 1, 10000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	runs, err := s.db.DecodeRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.DecodeRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showXmax(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "no catalog configured")
		return
	}
	series, err := s.db.XmaxSeries(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to fit X_max: %v", err))
		return
	}
	if series == nil {
		series = []analysis.XmaxSeries{}
	}
	httputil.WriteJSONOK(w, series)
}

// lateralResponse is the JSON shape of /api/lateral.
type lateralResponse struct {
	File      string    `json:"file"`
	Particles int       `json:"particles"`
	RMax      float64   `json:"r_max_m"`
	Centres   []float64 `json:"centres_m"`
	Counts    []float64 `json:"counts"`
	Density   []float64 `json:"density_m2"`
}

func (s *Server) showLateral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Query().Get("file")
	ldf, n, status, err := s.lateral(r, name)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	httputil.WriteJSONOK(w, lateralResponse{
		File:      name,
		Particles: n,
		RMax:      ldf.Edges[len(ldf.Edges)-1],
		Centres:   ldf.Centres,
		Counts:    ldf.Counts,
		Density:   ldf.Density,
	})
}

// lateral loads one decoded file below dataDir and bins it with the bins
// query parameter or the configured default.
func (s *Server) lateral(r *http.Request, name string) (analysis.LDF, int, int, error) {
	if name == "" {
		return analysis.LDF{}, 0, http.StatusBadRequest, errors.New("missing file parameter")
	}
	bins, err := httputil.QueryInt(r, "bins", s.cfg.GetLateralBins(), 1, maxBins)
	if err != nil {
		return analysis.LDF{}, 0, http.StatusBadRequest, err
	}
	path, err := security.ResolveWithin(s.dataDir, name)
	if err != nil {
		return analysis.LDF{}, 0, http.StatusBadRequest, err
	}
	f, err := s.fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return analysis.LDF{}, 0, http.StatusNotFound, fmt.Errorf("%s not found", name)
	}
	if err != nil {
		return analysis.LDF{}, 0, http.StatusInternalServerError, err
	}
	defer f.Close()

	points, err := analysis.LoadParticles(f)
	if err != nil {
		return analysis.LDF{}, 0, http.StatusInternalServerError, fmt.Errorf("read %s: %w", name, err)
	}
	ldf, err := analysis.LateralDistribution(points, bins, s.cfg.GetLateralRMax())
	if err != nil {
		return analysis.LDF{}, 0, http.StatusInternalServerError, err
	}
	return ldf, len(points), http.StatusOK, nil
}

// showReport renders the LDFs of every file parameter and, with a catalog,
// the X_max fit as one HTML page.
func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	var series []plotting.LDFSeries
	for _, name := range r.URL.Query()["file"] {
		ldf, _, status, err := s.lateral(r, name)
		if err != nil {
			httputil.WriteJSONError(w, status, err.Error())
			return
		}
		series = append(series, plotting.LDFSeries{Label: filepath.Base(name), LDF: ldf})
	}

	var xmax []analysis.XmaxSeries
	if s.db != nil {
		var err error
		if xmax, err = s.db.XmaxSeries(r.Context()); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to fit X_max: %v", err))
			return
		}
	}
	httputil.WriteHTML(w, func(out io.Writer) error {
		return plotting.RenderReport(out, series, s.cfg.GetLateralRMax(), xmax)
	})
}
