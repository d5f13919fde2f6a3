package main

import (
	"fmt"
	"net/http"

	"github.com/banshee-data/shower.report/internal/api"
	"github.com/banshee-data/shower.report/internal/config"
	"github.com/banshee-data/shower.report/internal/db"
)

// newServeHandler mounts the API and, with a catalog, its debug pages.
func newServeHandler(catalog *db.DB, e *env, dataDir string, cfg *config.Config) (http.Handler, error) {
	if fi, err := e.fsys.Stat(dataDir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dataDir)
	}
	mux := api.NewServer(catalog, e.fsys, dataDir, cfg).ServeMux()
	if catalog != nil {
		if err := catalog.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return api.LoggingMiddleware(mux), nil
}
