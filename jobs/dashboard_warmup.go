package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dashboard-baker/baker/internal/dashboard"
	jobmetrics "github.com/dashboard-baker/baker/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ErrNothingWarmed is returned when every region of every requested board
// failed, so Asynq retries the run.
var ErrNothingWarmed = errors.New("dashboard warmup: every region failed")

// BoardSource is the part of *dashboard.Hub the warm-up job drives.
type BoardSource interface {
	Names() []string
	Board(name string) (*dashboard.Board, error)
}

// DashboardWarmupJob refreshes the shared boards. Refreshing goes through the
// Redis payload cache, so web processes find the panels already fetched.
type DashboardWarmupJob struct {
	Boards       BoardSource
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	BoardTimeout time.Duration
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(boards BoardSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Boards: boards, Logger: logger, Metrics: metrics, BoardTimeout: time.Minute}
}

// Handle processes TaskDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Boards == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	names := payload.Boards
	if len(names) == 0 {
		names = j.Boards.Names()
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	logger.Info("starting dashboard warmup", slog.Any("boards", names))

	ready, failed := 0, 0
	for _, name := range names {
		board, err := j.Boards.Board(name)
		if err != nil {
			logger.Warn("skip unknown board", slog.String("board", name))
			continue
		}
		report, err := j.warm(ctx, board)
		if err != nil {
			return err
		}
		counts := map[dashboard.Status]int{}
		for _, rr := range report.Regions {
			counts[rr.Status]++
		}
		for status, n := range counts {
			j.metrics().AddWarmed(name, string(status), n)
		}
		ready += counts[dashboard.StatusReady]
		failed += counts[dashboard.StatusFailed]
		if n := report.Failed(); n > 0 {
			logger.Warn("board warmed with failures", slog.String("board", name), slog.Int("failed", n))
		}
	}

	logger.Info("completed dashboard warmup",
		slog.Int("ready", ready), slog.Int("failed", failed), slog.Duration("duration", time.Since(start)))
	if ready == 0 && failed > 0 {
		return ErrNothingWarmed
	}
	return nil
}

func (j *DashboardWarmupJob) warm(ctx context.Context, board *dashboard.Board) (dashboard.Report, error) {
	timeout := j.BoardTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	boardCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return board.Refresh(boardCtx)
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
