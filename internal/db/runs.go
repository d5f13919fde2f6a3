package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DecodeRun is one catalogued decode of a particle file.
type DecodeRun struct {
	RunID          string        `json:"run_id"`
	Source         string        `json:"source"`
	Output         string        `json:"output"`
	Compression    string        `json:"compression"`
	Records        int64         `json:"records"`
	SkippedRecords int64         `json:"skipped_records"`
	SubBlocks      int64         `json:"sub_blocks"`
	Particles      int64         `json:"particles"`
	Lines          int64         `json:"lines"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RecordDecodeRun inserts run, assigning RunID and CreatedAt when unset.
func (db *DB) RecordDecodeRun(ctx context.Context, run *DecodeRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Compression == "" {
		run.Compression = "none"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO decode_runs (
			run_id, source, output, compression, records, skipped_records,
			sub_blocks, particles, lines, duration_ms, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Output, run.Compression, run.Records, run.SkippedRecords,
		run.SubBlocks, run.Particles, run.Lines, run.Duration.Milliseconds(), run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record decode run %s: %w", run.Source, err)
	}
	diagf("recorded decode run %s for %s", run.RunID, run.Source)
	return nil
}

// DecodeRuns returns up to limit runs, newest first. limit <= 0 means 100.
func (db *DB) DecodeRuns(ctx context.Context, limit int) ([]DecodeRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, source, output, compression, records, skipped_records,
			sub_blocks, particles, lines, duration_ms, created_unix
		FROM decode_runs
		ORDER BY created_unix DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []DecodeRun
	for rows.Next() {
		var (
			r          DecodeRun
			durationMs int64
			created    int64
		)
		if err := rows.Scan(
			&r.RunID, &r.Source, &r.Output, &r.Compression, &r.Records, &r.SkippedRecords,
			&r.SubBlocks, &r.Particles, &r.Lines, &durationMs, &created,
		); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.Unix(created, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
