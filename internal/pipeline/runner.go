package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"agbprep/internal/acquisition"
	"agbprep/internal/config"
	"agbprep/internal/history"
	"agbprep/internal/logging"
	"agbprep/internal/metrics"
	"agbprep/internal/services"
)

// Stage names used in logs and the run ledger.
const (
	StagePrepare   = "prepare"
	StageAggregate = "aggregate"
	StageAOI       = "aoi"
	StageAcquire   = "acquire"
)

// RunLedger records acquisition runs.
type RunLedger interface {
	acquisition.Ledger
	BeginRun(ctx context.Context, id, stage string, startedAt time.Time) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, counts history.Counts, errMessage string) error
}

// Dependencies are optional collaborators. A nil Catalog means the configured
// HTTP client.
type Dependencies struct {
	Catalog  acquisition.Catalog
	Ledger   RunLedger
	Metrics  *metrics.AcquisitionCollector
	NewRunID func() string
	Now      func() time.Time
}

// Runner executes pipeline stages against one configuration.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// NewRunner constructs a runner.
func NewRunner(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Runner {
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		deps:   deps,
	}
}

// Report collects the results of RunAll.
type Report struct {
	RunID     string
	Prepare   PrepareReport
	Aggregate AggregateReport
	AOI       AOIReport
	Acquire   AcquireReport
}

// RunAll executes every stage in order, stopping at the first error.
func (r *Runner) RunAll(ctx context.Context) (Report, error) {
	ctx, runID := r.ensureRunID(ctx)
	report := Report{RunID: runID}
	var err error
	if report.Prepare, err = r.Prepare(ctx); err != nil {
		return report, err
	}
	if report.Aggregate, err = r.Aggregate(ctx); err != nil {
		return report, err
	}
	if report.AOI, err = r.BuildAOIs(ctx); err != nil {
		return report, err
	}
	report.Acquire, err = r.Acquire(ctx)
	return report, err
}

// ensureRunID stamps a fresh run id unless ctx already carries one.
func (r *Runner) ensureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := services.RunIDFromContext(ctx); ok {
		return ctx, id
	}
	id := r.deps.NewRunID()
	return services.WithRunID(ctx, id), id
}

func (r *Runner) stageLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, r.logger)
}

// readErr maps an input read failure to the fatal taxonomy: a missing file is
// a contract violation, anything else is a filesystem error.
func readErr(stage, operation, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrValidation, stage, operation, "required input missing: "+path, err)
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return services.Wrap(services.ErrFilesystem, stage, operation, path, err)
	}
	return services.Wrap(services.ErrValidation, stage, operation, path, err)
}
