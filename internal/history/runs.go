package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Band outcomes.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
	OutcomeNoImagery  = "no_imagery"
)

// ErrRunNotFound reports an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Counts are the end-of-run totals of an acquisition run.
type Counts struct {
	PlotsProcessed  int
	PlotsCompleted  int
	PlotsSkipped    int
	PlotsNoImagery  int
	PlotsFailed     int
	BandsDownloaded int
	BandsFailed     int
}

// Run is one ledger row.
type Run struct {
	ID         string
	Stage      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     Counts
	Error      string
}

// Duration returns the run's wall time, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BandOutcome records what happened to one band of one plot.
type BandOutcome struct {
	RunID      string
	Plot       string
	Band       string
	SceneID    string
	Outcome    string
	Bytes      int64
	Detail     string
	RecordedAt time.Time
}

// BeginRun inserts a running ledger row.
func (s *Store) BeginRun(ctx context.Context, id, stage string, startedAt time.Time) error {
	err := s.exec(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		id, stage, StatusRunning, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

// FinishRun stores the outcome of a run. A non-empty errMessage marks the run
// failed.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, counts Counts, errMessage string) error {
	status := StatusSucceeded
	if errMessage != "" {
		status = StatusFailed
	}
	err := s.exec(ctx,
		`UPDATE runs SET
            status = ?, finished_at = ?,
            plots_processed = ?, plots_completed = ?, plots_skipped = ?,
            plots_no_imagery = ?, plots_failed = ?,
            bands_downloaded = ?, bands_failed = ?, error_message = ?
        WHERE id = ?`,
		status, formatTime(finishedAt),
		counts.PlotsProcessed, counts.PlotsCompleted, counts.PlotsSkipped,
		counts.PlotsNoImagery, counts.PlotsFailed,
		counts.BandsDownloaded, counts.BandsFailed, nullableString(errMessage),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// RecordBand appends one band outcome.
func (s *Store) RecordBand(ctx context.Context, outcome BandOutcome) error {
	recorded := outcome.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO band_outcomes (run_id, plot, band, scene_id, outcome, bytes, detail, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.RunID, outcome.Plot, outcome.Band, nullableString(outcome.SceneID),
		outcome.Outcome, outcome.Bytes, nullableString(outcome.Detail), formatTime(recorded),
	)
	if err != nil {
		return fmt.Errorf("record band %s/%s: %w", outcome.Plot, outcome.Band, err)
	}
	return nil
}

const runColumns = `id, stage, status, started_at, finished_at,
    plots_processed, plots_completed, plots_skipped, plots_no_imagery, plots_failed,
    bands_downloaded, bands_failed, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		started  sql.NullString
		finished sql.NullString
		errMsg   sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.Stage, &run.Status, &started, &finished,
		&run.Counts.PlotsProcessed, &run.Counts.PlotsCompleted, &run.Counts.PlotsSkipped,
		&run.Counts.PlotsNoImagery, &run.Counts.PlotsFailed,
		&run.Counts.BandsDownloaded, &run.Counts.BandsFailed, &errMsg,
	)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Error = errMsg.String
	return run, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// BandOutcomes returns a run's band outcomes in recording order.
func (s *Store) BandOutcomes(ctx context.Context, runID string) ([]BandOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, plot, band, scene_id, outcome, bytes, detail, recorded_at
         FROM band_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list band outcomes: %w", err)
	}
	defer rows.Close()
	var outcomes []BandOutcome
	for rows.Next() {
		var (
			o        BandOutcome
			scene    sql.NullString
			detail   sql.NullString
			recorded sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Plot, &o.Band, &scene, &o.Outcome, &o.Bytes, &detail, &recorded); err != nil {
			return nil, fmt.Errorf("scan band outcome: %w", err)
		}
		o.SceneID = scene.String
		o.Detail = detail.String
		o.RecordedAt = parseTime(recorded)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// OutcomeCounts tallies a run's band outcomes by outcome.
func (s *Store) OutcomeCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(1) FROM band_outcomes WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("count band outcomes: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Prune deletes runs that started before cutoff, with their band outcomes.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}
