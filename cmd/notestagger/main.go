package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NotesTagger/internal/app"
	"NotesTagger/internal/config"
	"NotesTagger/internal/logging"
	"NotesTagger/internal/usecase"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "notestagger",
		Short:         "Label under-tagged notes with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default $NOTES_TAGGER_CONFIG)")

	root.AddCommand(newRunCmd(&configPath), newImportCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		yes       bool
		maxCount  int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select eligible notes, ask for confirmation and label them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*configPath)
			if maxCount > 0 {
				cfg.Processing.MaxRecords = maxCount
			}
			if batchSize > 0 {
				cfg.Processing.BatchSize = batchSize
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

			if err := cfg.Validate(); err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logger, app.Options{
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
				AutoApprove: yes,
			})
			if err != nil {
				logger.Error("application setup failed", "error", err)
				return err
			}
			defer closeApp(application, logger)

			result, err := application.Tag(cmd.Context())
			if err != nil {
				logger.Error("run failed", "status", result.Status, "error", err)
				return err
			}
			logger.Info("run done", "status", result.Status, "eligible", result.Eligible, "audit_record", result.AuditRecordID)
			if result.Status == usecase.StatusCancelled {
				return fmt.Errorf("run cancelled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().IntVar(&maxCount, "max", 0, "maximum number of records to process")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per batch")
	return cmd
}

func newImportCmd(configPath *string) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import an HTML notes export (one sub-directory per scope)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(*configPath)
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

			application, err := app.New(cmd.Context(), cfg, logger, app.Options{Out: cmd.OutOrStdout()})
			if err != nil {
				logger.Error("application setup failed", "error", err)
				return err
			}
			defer closeApp(application, logger)

			stats, err := application.Import(cmd.Context(), args[0], scopes)
			if err != nil {
				logger.Error("import failed", "error", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records.\n", stats.Imported)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "scopes to import (default: configured scopes)")
	return cmd
}

func closeApp(application *app.Application, logger *slog.Logger) {
	if err := application.Close(); err != nil {
		logger.Warn("close store", "error", err)
	}
}
