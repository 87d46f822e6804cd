package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"NotesTagger/internal/config"
	"NotesTagger/internal/domain"
	"NotesTagger/internal/infrastructure/console"
	"NotesTagger/internal/infrastructure/htmlexport"
	"NotesTagger/internal/infrastructure/llm"
	"NotesTagger/internal/infrastructure/ratelimit"
	"NotesTagger/internal/infrastructure/storage"
	"NotesTagger/internal/infrastructure/telegram"
	"NotesTagger/internal/logging"
	"NotesTagger/internal/ports"
	"NotesTagger/internal/usecase"
)

// Options carries the terminal side of the application.
type Options struct {
	In          io.Reader
	Out         io.Writer
	AutoApprove bool
	// HTTPClient overrides the oracle transport; nil uses a client with the configured timeout.
	HTTPClient ports.HTTPDoer
}

// Application wires configs to use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *storage.DB
	repo   *storage.RecordRepository
	opts   Options
}

// New opens the record store and prepares the adapters.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, &domain.SetupError{Stage: "open store", Err: err}
	}

	auditScope := ""
	if len(cfg.Sources.Scopes) > 0 {
		auditScope = cfg.Sources.Scopes[0].Name
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		db:     db,
		repo:   storage.NewRecordRepository(db, auditScope),
		opts:   opts,
	}, nil
}

// Tag runs one interactive labeling pass over the configured scopes.
func (a *Application) Tag(ctx context.Context) (usecase.TagResult, error) {
	notifier := fanout{console.NewNotifier(a.opts.Out)}
	if a.cfg.Notifications.Telegram.Enabled() {
		notifier = append(notifier, telegram.NewNotifier(a.cfg.Notifications.Telegram))
	}

	scopes := make([]usecase.Scope, 0, len(a.cfg.Sources.Scopes))
	for _, s := range a.cfg.Sources.Scopes {
		scopes = append(scopes, usecase.Scope{Name: s.Name, Optional: s.Optional})
	}

	p := a.cfg.Processing
	tagger := usecase.NewTagger(usecase.TaggerDeps{
		Source:    a.repo,
		Store:     a.repo,
		Oracle:    llm.NewAnthropicClient(a.cfg.Oracle, a.opts.HTTPClient),
		Pacer:     ratelimit.NewFixedDelay(p.ItemDelay, p.BatchDelay),
		Confirmer: console.NewConfirmer(a.opts.In, a.opts.Out, a.opts.AutoApprove),
		Notifier:  notifier,
		Logger:    a.logger.With("component", "tagger"),
		Clock:     time.Now,
	}, usecase.TaggerSettings{
		Scopes:         scopes,
		LabelThreshold: p.LabelThreshold,
		MaxRecords:     p.MaxRecords,
		BatchSize:      p.BatchSize,
		Model:          a.cfg.Oracle.Model,
		CostPerRecord:  p.CostPerRecord,
		AuditLabels:    a.cfg.Audit.Labels,
		AuditDisabled:  a.cfg.Audit.Disabled,
	})

	return tagger.Run(ctx)
}

// Import loads an HTML export directory (one sub-directory per scope) into the store.
func (a *Application) Import(ctx context.Context, dir string, scopes []string) (usecase.ImportStats, error) {
	if len(scopes) == 0 {
		scopes = a.cfg.ScopeNames()
	}
	source := htmlexport.NewSource(dir, a.logger.With("component", "htmlexport"))
	importer := usecase.NewImporter(source, a.repo, a.logger.With("component", "importer"))
	return importer.Import(ctx, scopes)
}

// Close releases the record store.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// fanout delivers a message to every notifier and joins their errors.
type fanout []ports.Notifier

func (f fanout) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
