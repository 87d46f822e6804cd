package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NotesTagger/internal/domain"
	"NotesTagger/internal/logging"
	"NotesTagger/internal/ports"
)

// Scope is one record partition to query; optional scopes may be missing without a warning.
type Scope struct {
	Name     string
	Optional bool
}

// TaggerDeps wires all driven adapters into the tagging use case.
type TaggerDeps struct {
	Source    ports.RecordSource
	Store     ports.RecordStore
	Oracle    ports.LabelOracle
	Pacer     ports.Pacer
	Confirmer ports.Confirmer
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Clock     func() time.Time
}

// TaggerSettings is the per-run configuration.
type TaggerSettings struct {
	Scopes         []Scope
	LabelThreshold int
	MaxRecords     int
	BatchSize      int
	Model          string
	CostPerRecord  float64
	AuditLabels    []string
	AuditDisabled  bool
}

// TagStatus tells how a tagging run ended.
type TagStatus string

const (
	StatusNothingToDo TagStatus = "nothing_to_do"
	StatusDeclined    TagStatus = "declined"
	StatusCompleted   TagStatus = "completed"
	StatusCancelled   TagStatus = "cancelled"
)

// TagResult summarizes a Tagger.Run call.
type TagResult struct {
	Status        TagStatus
	Eligible      int
	Report        *RunReport
	AuditRecordID string
}

// Tagger implements the end-to-end labeling workflow.
type Tagger struct {
	source    ports.RecordSource
	store     ports.RecordStore
	confirmer ports.Confirmer
	notifier  ports.Notifier
	runner    *BatchRunner
	settings  TaggerSettings
	logger    *slog.Logger
}

// NewTagger constructs the orchestration component.
func NewTagger(deps TaggerDeps, settings TaggerSettings) *Tagger {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Tagger{
		source:    deps.Source,
		store:     deps.Store,
		confirmer: deps.Confirmer,
		notifier:  deps.Notifier,
		runner: NewBatchRunner(RunnerDeps{
			Oracle: deps.Oracle,
			Store:  deps.Store,
			Pacer:  deps.Pacer,
			Logger: logger,
			Clock:  deps.Clock,
		}, settings.BatchSize),
		settings: settings,
		logger:   logger,
	}
}

// Run gathers, filters, confirms, labels, reports and stores the audit log.
func (t *Tagger) Run(ctx context.Context) (TagResult, error) {
	records, err := t.gather(ctx)
	if err != nil {
		t.notify(ctx, "Failed to retrieve records. Check the record store and try again.\n\n"+err.Error())
		return TagResult{}, err
	}

	eligible := SelectEligible(records, t.settings.LabelThreshold, t.settings.MaxRecords)
	t.logger.Info("records selected", "retrieved", len(records), "eligible", len(eligible),
		"threshold", t.settings.LabelThreshold, "max", t.settings.MaxRecords)

	if len(eligible) == 0 {
		t.notify(ctx, "Nothing to process: every record already has enough labels.")
		return TagResult{Status: StatusNothingToDo}, nil
	}

	if t.confirmer != nil {
		estimate := BuildEstimate(len(eligible), t.runner.batchSize, t.settings.Model, t.settings.CostPerRecord)
		ok, err := t.confirmer.Confirm(ctx, estimate)
		if err != nil {
			return TagResult{Eligible: len(eligible)}, fmt.Errorf("confirm run: %w", err)
		}
		if !ok {
			t.notify(ctx, "Processing cancelled.")
			return TagResult{Status: StatusDeclined, Eligible: len(eligible)}, nil
		}
	}

	result, runErr := t.runner.Run(ctx, eligible)
	if result.State == StateAborted {
		return TagResult{Eligible: len(eligible)}, runErr
	}

	report := BuildReport(result, ReportOptions{
		Model:         t.settings.Model,
		BatchSize:     t.runner.batchSize,
		MaxRecords:    t.settings.MaxRecords,
		CostPerRecord: t.settings.CostPerRecord,
	})
	out := TagResult{Status: StatusCompleted, Eligible: len(eligible), Report: &report}
	if result.State == StateCancelled {
		out.Status = StatusCancelled
	}

	// The summary and audit log are still delivered for a cancelled run.
	finalCtx := context.WithoutCancel(ctx)
	t.notify(finalCtx, report.Summary())

	if !t.settings.AuditDisabled {
		rec, err := t.store.CreateRecord(finalCtx, report.AuditLog(), t.settings.AuditLabels)
		if err != nil {
			return out, errors.Join(runErr, fmt.Errorf("persist audit log: %w", err))
		}
		out.AuditRecordID = rec.ID
	}

	t.logger.Info("run finished", "state", result.State, "processed", report.Processed,
		"succeeded", report.Succeeded, "failed", report.Failed, "elapsed", formatDuration(report.Elapsed))
	return out, runErr
}

// gather queries every scope in order. A failing scope counts as empty; only
// when every scope fails is the run aborted.
func (t *Tagger) gather(ctx context.Context) ([]domain.Record, error) {
	if t.source == nil {
		return nil, &domain.SetupError{Stage: "query records", Err: errors.New("record source is not configured")}
	}
	if len(t.settings.Scopes) == 0 {
		return nil, &domain.SetupError{Stage: "query records", Err: errors.New("no scopes configured")}
	}

	var (
		all  []domain.Record
		errs []error
	)
	for _, scope := range t.settings.Scopes {
		records, err := t.source.QueryRecords(ctx, scope.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("scope %s: %w", scope.Name, err))
			level := slog.LevelWarn
			if scope.Optional {
				level = slog.LevelDebug
			}
			t.logger.Log(ctx, level, "scope unavailable", "scope", scope.Name, "error", err)
			continue
		}
		t.logger.Debug("scope queried", "scope", scope.Name, "count", len(records))
		all = append(all, records...)
	}

	if len(errs) == len(t.settings.Scopes) {
		return nil, &domain.SetupError{Stage: "query records", Err: errors.Join(errs...)}
	}
	return all, nil
}

func (t *Tagger) notify(ctx context.Context, message string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, message); err != nil {
		t.logger.Warn("notify failed", "error", err)
	}
}
