package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"NotesTagger/internal/domain"
	"NotesTagger/internal/logging"
	"NotesTagger/internal/ports"
)

const (
	titlePrefixLength  = 30
	errorSummaryLength = 50
	defaultBatchSize   = 10
)

// ErrNothingToProcess is returned by BatchRunner.Run when it is handed no records.
var ErrNothingToProcess = errors.New("nothing to process")

// RunState is the lifecycle of a single batch run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateAborted   RunState = "aborted"
	StateCancelled RunState = "cancelled"
)

// RunnerDeps wires the collaborators a BatchRunner calls per record.
type RunnerDeps struct {
	Oracle ports.LabelOracle
	Store  ports.RecordStore
	Pacer  ports.Pacer
	Logger *slog.Logger
	Clock  func() time.Time
}

// RunResult is what a finished (or cancelled) run hands to the reporter.
type RunResult struct {
	State      RunState
	Metrics    domain.RunMetrics
	Outcomes   []domain.Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// BatchRunner labels records batch by batch, one record at a time.
// It is not safe for concurrent use.
type BatchRunner struct {
	oracle    ports.LabelOracle
	store     ports.RecordStore
	pacer     ports.Pacer
	logger    *slog.Logger
	now       func() time.Time
	batchSize int
	state     RunState
}

// NewBatchRunner constructs a runner; batchSize <= 0 falls back to 10.
func NewBatchRunner(deps RunnerDeps, batchSize int) *BatchRunner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &BatchRunner{
		oracle:    deps.Oracle,
		store:     deps.Store,
		pacer:     deps.Pacer,
		logger:    logger,
		now:       now,
		batchSize: batchSize,
		state:     StateIdle,
	}
}

// State reports where the last Run ended up.
func (r *BatchRunner) State() RunState {
	return r.state
}

// Run processes records in order. A failing record is recorded as a Failure
// outcome and never stops the run; only context cancellation does.
func (r *BatchRunner) Run(ctx context.Context, records []domain.Record) (RunResult, error) {
	if len(records) == 0 {
		r.state = StateIdle
		return RunResult{State: StateIdle}, ErrNothingToProcess
	}
	if r.oracle == nil || r.store == nil || r.pacer == nil {
		r.state = StateAborted
		return RunResult{State: StateAborted}, &domain.SetupError{Stage: "runner", Err: errors.New("oracle, store and pacer are required")}
	}

	r.state = StateRunning
	result := RunResult{
		StartedAt: r.now(),
		Outcomes:  make([]domain.Outcome, 0, len(records)),
	}
	result.Metrics.StartedAt = result.StartedAt

	batches := Partition(records, r.batchSize)
	for i, batch := range batches {
		r.logger.Debug("batch start", "batch", i+1, "batches", len(batches), "size", len(batch))

		for _, rec := range batch {
			outcome := r.process(ctx, rec)
			if outcome.Kind == domain.OutcomeFailure && ctx.Err() != nil {
				// Interrupted mid-call: the record is left out of the outcomes.
				r.logger.Info("record interrupted", "title", outcome.Title, "id", outcome.RecordID)
				return r.finish(result, StateCancelled), fmt.Errorf("run cancelled: %w", ctx.Err())
			}
			result.Outcomes = append(result.Outcomes, outcome)
			result.Metrics.Observe(outcome.Kind)
			result.Metrics.Elapsed = r.now().Sub(result.StartedAt)

			if err := r.pacer.WaitItem(ctx); err != nil {
				return r.finish(result, StateCancelled), fmt.Errorf("run cancelled: %w", err)
			}
		}

		r.logProgress(i+1, len(batches), len(records), result.Metrics)

		if i < len(batches)-1 {
			if err := r.pacer.WaitBatch(ctx); err != nil {
				return r.finish(result, StateCancelled), fmt.Errorf("run cancelled: %w", err)
			}
		}
	}

	return r.finish(result, StateCompleted), nil
}

func (r *BatchRunner) finish(result RunResult, state RunState) RunResult {
	r.state = state
	result.State = state
	result.FinishedAt = r.now()
	result.Metrics.Elapsed = result.FinishedAt.Sub(result.StartedAt)
	return result
}

func (r *BatchRunner) process(ctx context.Context, rec domain.Record) domain.Outcome {
	title := prefix(rec.DisplayTitle(), titlePrefixLength)
	outcome := domain.Outcome{RecordID: rec.ID, Title: title}

	suggested, err := r.oracle.SuggestLabels(ctx, rec)
	if err != nil {
		return r.fail(outcome, err)
	}
	if len(suggested) == 0 {
		r.logger.Info("no labels suggested", "title", title)
		outcome.Kind = domain.OutcomeNoNewLabels
		return outcome
	}

	working := rec
	working.Labels = slices.Clone(rec.Labels)
	var added []string
	for _, label := range suggested {
		if working.AddLabel(label) {
			added = append(added, label)
		}
	}

	if len(added) == 0 {
		r.logger.Info("no new labels", "title", title, "suggested", suggested)
		outcome.Kind = domain.OutcomeNoNewLabels
		return outcome
	}

	if err := r.store.Persist(ctx, working); err != nil {
		return r.fail(outcome, fmt.Errorf("persist record: %w", err))
	}

	r.logger.Info("labels added", "title", title, "labels", added)
	outcome.Kind = domain.OutcomeSuccess
	outcome.NewLabels = added
	return outcome
}

func (r *BatchRunner) fail(outcome domain.Outcome, err error) domain.Outcome {
	r.logger.Warn("record failed", "title", outcome.Title, "id", outcome.RecordID, "error", err)
	outcome.Kind = domain.OutcomeFailure
	outcome.Error = prefix(err.Error(), errorSummaryLength)
	return outcome
}

func (r *BatchRunner) logProgress(batch, batches, total int, m domain.RunMetrics) {
	r.logger.Info("progress",
		"batch", fmt.Sprintf("%d/%d", batch, batches),
		"processed", fmt.Sprintf("%d/%d", m.Processed, total),
		"percent", percent(m.Processed, total),
		"succeeded", m.Succeeded,
		"success_rate", percent(m.Succeeded, m.Processed),
		"failed", m.Failed,
		"elapsed", formatDuration(m.Elapsed),
	)
}

// prefix keeps the first n runes of s.
func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
