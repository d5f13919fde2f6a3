package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/corsika/pipeline"
	"github.com/banshee-data/shower.report/internal/db"
	"github.com/banshee-data/shower.report/internal/longitudinal"
	"github.com/banshee-data/shower.report/internal/plotting"
	"github.com/banshee-data/shower.report/internal/security"
)

func cmdDecode(ctx context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "decode")
	in := fs.String("in", "", "Binary particle file (DAT...), optionally gzip or zstd compressed")
	out := fs.String("out", "Output.txt", "Text output path")
	skip := fs.Bool("skip-existing", false, "Do nothing if the output already exists")
	dbPath := fs.String("db", "", "Catalog database to record the run in (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" && fs.NArg() > 0 {
		*in = fs.Arg(0)
	}
	if *in == "" {
		return errors.New("-in is required")
	}
	cfg, err := common.setup(e)
	if err != nil {
		return err
	}

	stats, err := pipeline.DecodeFile(ctx, e.fsys, cfg.Format(), *in, *out, pipeline.Options{SkipExisting: *skip})
	if err != nil {
		return fmt.Errorf("decode %s: %w", *in, err)
	}
	if stats.Skipped {
		fmt.Fprintf(e.stdout, "%s exists, skipped %s\n", *out, *in)
		return nil
	}
	fmt.Fprintf(e.stdout, "decoded %s -> %s: %d records (%d skipped), %d particles, %d lines in %v\n",
		*in, *out, stats.Records, stats.SkippedRecords, stats.Particles, stats.Lines, stats.Duration.Round(time.Millisecond))

	if *dbPath == "" {
		return nil
	}
	catalog, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", *dbPath, err)
	}
	defer catalog.Close()
	run := &db.DecodeRun{
		Source:         *in,
		Output:         *out,
		Compression:    string(stats.Compression),
		Records:        int64(stats.Records),
		SkippedRecords: int64(stats.SkippedRecords),
		SubBlocks:      int64(stats.SubBlocks),
		Particles:      int64(stats.Particles),
		Lines:          int64(stats.Lines),
		Duration:       stats.Duration,
	}
	if err := catalog.RecordDecodeRun(ctx, run); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "recorded run %s in %s\n", run.RunID, *dbPath)
	return nil
}

func cmdLong(_ context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "long")
	in := fs.String("in", "", "Longitudinal .long file")
	out := fs.String("out", "OUT.txt", "Reformatted distribution tables")
	par := fs.String("par", "PAR.txt", "Hillas parameters, one shower per line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" && fs.NArg() > 0 {
		*in = fs.Arg(0)
	}
	if *in == "" {
		return errors.New("-in is required")
	}
	if _, err := common.setup(e); err != nil {
		return err
	}

	st, err := longitudinal.ReformatFile(e.fsys, *in, *out, *par)
	if err != nil {
		return fmt.Errorf("reformat %s: %w", *in, err)
	}
	if st.SkippedOut && st.SkippedPar {
		fmt.Fprintf(e.stdout, "%s and %s exist, nothing to do\n", *out, *par)
		return nil
	}
	fmt.Fprintf(e.stdout, "%s: %d showers, %d Hillas fits\n", *in, st.Showers, st.Fits)
	return nil
}

// ldfArg is one label=path argument of the ldf command.
type ldfArg struct {
	label, path string
}

func parseLDFArgs(args []string) ([]ldfArg, error) {
	if len(args) == 0 {
		return nil, errors.New("no inputs: pass label=path arguments")
	}
	out := make([]ldfArg, 0, len(args))
	for _, a := range args {
		label, path, ok := strings.Cut(a, "=")
		if !ok {
			label, path = strings.TrimSuffix(filepath.Base(a), filepath.Ext(a)), a
		}
		if path == "" {
			return nil, fmt.Errorf("empty path in %q", a)
		}
		out = append(out, ldfArg{label: label, path: path})
	}
	return out, nil
}

func loadPoints(e *env, path string) ([]analysis.Point, error) {
	data, err := e.fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	points, err := analysis.LoadParticles(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return points, nil
}

func cmdLDF(_ context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "ldf")
	out := fs.String("out", "ldf_comparison.png", "Output figure (.png, .svg, .pdf or .html)")
	bins := fs.Int("bins", 0, "Radial bins (default from config, 100)")
	rMax := fs.Float64("rmax", 0, "Maximum core distance in m (default from config, 2000)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs, err := parseLDFArgs(fs.Args())
	if err != nil {
		return err
	}
	cfg, err := common.setup(e)
	if err != nil {
		return err
	}
	if *bins == 0 {
		*bins = cfg.GetLateralBins()
	}
	if *rMax == 0 {
		*rMax = cfg.GetLateralRMax()
	}

	series := make([]plotting.LDFSeries, 0, len(inputs))
	for _, in := range inputs {
		points, err := loadPoints(e, in.path)
		if err != nil {
			return err
		}
		ldf, err := analysis.LateralDistribution(points, *bins, *rMax)
		if err != nil {
			return err
		}
		primary, _ := analysis.PrimaryFromName(in.label, in.path)
		series = append(series, plotting.LDFSeries{Label: in.label, Primary: primary, LDF: ldf})
		fmt.Fprintf(e.stdout, "%s: %d particles from %s\n", in.label, len(points), in.path)
	}

	pl := plotting.NewPlotter(e.fsys)
	if strings.EqualFold(filepath.Ext(*out), ".html") {
		err = pl.Report(*out, series, *rMax, nil)
	} else {
		err = pl.LDFComparison(*out, series, *rMax)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", *out)
	return nil
}

func cmdLateral(_ context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "lateral")
	in := fs.String("in", "Output.txt", "Decoded text file")
	out := fs.String("out", "lateral_distribution_2d.png", "Output figure")
	bins := fs.Int("bins", 200, "Bins per axis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := common.setup(e); err != nil {
		return err
	}

	points, err := loadPoints(e, *in)
	if err != nil {
		return err
	}
	grid, err := analysis.Histogram2D(points, *bins)
	if err != nil {
		return fmt.Errorf("%s: %w", *in, err)
	}
	if err := plotting.NewPlotter(e.fsys).LateralMap(*out, grid); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s (%d particles)\n", *out, len(points))
	return nil
}

func cmdProfiles(_ context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "profiles")
	in := fs.String("in", "OUT.txt", "Reformatted distribution tables")
	par := fs.String("par", "PAR.txt", "Hillas parameters")
	out := fs.String("out", ".", "Output directory")
	prefix := fs.String("prefix", "", "File name prefix for the figures")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.setup(e)
	if err != nil {
		return err
	}

	data, err := e.fsys.ReadFile(*in)
	if err != nil {
		return err
	}
	showers, err := longitudinal.ReadShowers(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	pl := plotting.NewPlotter(e.fsys)
	name := func(s string) string {
		if *prefix != "" {
			s = security.SanitizeFilename(*prefix) + "_" + s
		}
		return filepath.Join(*out, s)
	}

	profiles := []struct {
		col    int
		file   string
		title  string
		yLabel string
		color  color.RGBA
	}{
		{longitudinal.ColElectrons, "electron_profile.png", "Mean longitudinal profile: electrons", "Electrons", plotting.ElectronColor},
		{longitudinal.ColGammas, "photon_profile.png", "Mean longitudinal profile: photons", "Photons", plotting.PhotonColor},
	}
	for _, p := range profiles {
		prof, err := analysis.ProfileStats(showers, p.col)
		if err != nil {
			return fmt.Errorf("%s: %w", *in, err)
		}
		if err := pl.ProfilePlot(name(p.file), p.title, p.yLabel, prof, p.color); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s: peak %.4g at %.1f g/cm²\n", p.yLabel, prof.PeakValue, prof.PeakDepth)
	}

	parData, err := e.fsys.ReadFile(*par)
	if err != nil {
		return err
	}
	params, err := longitudinal.ReadHillas(bytes.NewReader(parData))
	if err != nil {
		return fmt.Errorf("read %s: %w", *par, err)
	}
	if err := pl.HillasHistograms(name("hillas_histograms.png"), params, cfg.GetHistogramBins()); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote figures for %d showers to %s\n", len(showers), *out)
	return nil
}

func cmdXmax(ctx context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "xmax")
	dir := fs.String("dir", "./dados", "Directory of PAR40<p><e>.txt files")
	dbPath := fs.String("db", "", "Fit from the catalog instead of -dir")
	out := fs.String("out", "xmax_vs_energy.png", "Output figure")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := common.setup(e); err != nil {
		return err
	}

	var (
		series []analysis.XmaxSeries
		err    error
	)
	if *dbPath != "" {
		catalog, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", *dbPath, err)
		}
		defer catalog.Close()
		series, err = catalog.XmaxSeries(ctx)
		if err != nil {
			return err
		}
	} else if series, err = analysis.XmaxByPrimary(e.fsys, *dir); err != nil {
		return err
	}
	if len(series) == 0 {
		return errors.New("no primary has two or more energies to fit")
	}

	for _, s := range series {
		fmt.Fprintf(e.stdout, "%-6v X_max = %.2f·log10(E/GeV) + %.2f  R² = %.4f  (%d energies)\n",
			s.Primary, s.Slope, s.Intercept, s.R2, len(s.Points))
	}
	if err := plotting.NewPlotter(e.fsys).XmaxPlot(*out, series); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", *out)
	return nil
}

func cmdCatalog(ctx context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "catalog")
	dbPath := fs.String("db", "shower.db", "Catalog database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no PAR files given")
	}
	if _, err := common.setup(e); err != nil {
		return err
	}

	catalog, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", *dbPath, err)
	}
	defer catalog.Close()

	for _, path := range fs.Args() {
		primary, logEeV, ok := analysis.ParseParFileName(filepath.Base(path))
		if !ok {
			return fmt.Errorf("%s: name is not PAR40<primary><log10 E>.txt", path)
		}
		data, err := e.fsys.ReadFile(path)
		if err != nil {
			return err
		}
		params, err := longitudinal.ReadHillas(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		batch, err := catalog.RecordHillas(ctx, path, primary, logEeV, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s: %d showers (%v, 10^%d eV) batch %s\n", path, len(params), primary, logEeV, batch)
	}
	return nil
}

func cmdMigrate(_ context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "migrate")
	dbPath := fs.String("db", "shower.db", "Catalog database")
	fs.Usage = func() {
		fmt.Fprintln(e.stderr, "Usage: shower migrate [options] up|down|version")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected one action: up, down or version")
	}
	action := fs.Arg(0)
	switch action {
	case "up", "down", "version":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	if _, err := common.setup(e); err != nil {
		return err
	}

	migrations, err := db.Migrations()
	if err != nil {
		return err
	}
	// OpenDB leaves the schema alone; the action decides what to apply.
	catalog, err := db.OpenDB(*dbPath)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", *dbPath, err)
	}
	defer catalog.Close()

	switch action {
	case "up":
		err = catalog.MigrateUp(migrations)
	case "down":
		err = catalog.MigrateDown(migrations)
	}
	if err != nil {
		return err
	}
	version, dirty, err := catalog.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: schema version %d (dirty: %v)\n", *dbPath, version, dirty)
	if dirty {
		return fmt.Errorf("%s: a migration failed part way; inspect the database before retrying", *dbPath)
	}
	return nil
}

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs, common := newFlagSet(e, "serve")
	dbPath := fs.String("db", "", "Catalog database (optional)")
	dataDir := fs.String("data", ".", "Directory of decoded files served by /api/lateral")
	listen := fs.String("listen", "localhost:8080", "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.setup(e)
	if err != nil {
		return err
	}

	var catalog *db.DB
	if *dbPath != "" {
		if catalog, err = db.NewDB(*dbPath); err != nil {
			return fmt.Errorf("catalog %s: %w", *dbPath, err)
		}
		defer catalog.Close()
	}
	handler, err := newServeHandler(catalog, e, *dataDir, cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	fmt.Fprintf(e.stdout, "serving on http://%s\n", ln.Addr())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
