package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/shower.report/internal/analysis"
	"github.com/banshee-data/shower.report/internal/longitudinal"
)

// RecordHillas replaces the catalogued fits of source with params, one row
// per shower numbered from 1, and returns the batch id of the insert.
func (db *DB) RecordHillas(ctx context.Context, source string, primary analysis.Primary, logEeV int, params []longitudinal.HillasParams) (string, error) {
	batch := uuid.NewString()
	now := time.Now().Unix()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hillas_params WHERE source = ?`, source); err != nil {
		return "", fmt.Errorf("clear %s: %w", source, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hillas_params (
			batch_id, source, primary_code, log_e_ev, shower,
			nmax, x0, xmax, p4, p5, p6, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, h := range params {
		if _, err := stmt.ExecContext(ctx,
			batch, source, int(primary), logEeV, i+1,
			h.Nmax, h.X0, h.Xmax, h.A, h.B, h.C, now,
		); err != nil {
			return "", fmt.Errorf("insert shower %d of %s: %w", i+1, source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	diagf("catalogued %d showers from %s as %s", len(params), source, batch)
	return batch, nil
}

// HillasXmax returns the catalogued X_max values of primary keyed by
// log10(E/eV), each in shower order.
func (db *DB) HillasXmax(ctx context.Context, primary analysis.Primary) (map[int][]float64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT log_e_ev, xmax FROM hillas_params
		WHERE primary_code = ?
		ORDER BY log_e_ev, source, shower`, int(primary))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int][]float64)
	for rows.Next() {
		var (
			logEeV int
			xmax   float64
		)
		if err := rows.Scan(&logEeV, &xmax); err != nil {
			return nil, err
		}
		out[logEeV] = append(out[logEeV], xmax)
	}
	return out, rows.Err()
}

// XmaxSeries fits X_max against energy from the catalog, applying the same
// exclusions as analysis.XmaxByPrimary.
func (db *DB) XmaxSeries(ctx context.Context) ([]analysis.XmaxSeries, error) {
	points := make(map[analysis.Primary][]analysis.XmaxPoint)
	for _, p := range analysis.Primaries {
		byEnergy, err := db.HillasXmax(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", p, err)
		}
		for logEeV, xmax := range byEnergy {
			if analysis.Excluded(p, logEeV) {
				continue
			}
			name := fmt.Sprintf("PAR40%d%d.txt", int(p), logEeV)
			points[p] = append(points[p], analysis.NewXmaxPoint(name, logEeV, xmax))
		}
	}
	return analysis.FitAll(points)
}
