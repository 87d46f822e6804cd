package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NotesTagger/internal/logging"
	"NotesTagger/internal/ports"
)

// ImportStats counts what an import wrote per scope.
type ImportStats struct {
	Scopes   map[string]int
	Imported int
}

// Importer copies records from an external source into the record store.
type Importer struct {
	source ports.RecordSource
	writer ports.RecordWriter
	logger *slog.Logger
}

// NewImporter wires a source (e.g. an HTML export) with the store.
func NewImporter(source ports.RecordSource, writer ports.RecordWriter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Importer{source: source, writer: writer, logger: logger}
}

// Import writes every record of each scope; records already stored keep their labels.
func (i *Importer) Import(ctx context.Context, scopes []string) (ImportStats, error) {
	if i.source == nil || i.writer == nil {
		return ImportStats{}, errors.New("importer is not configured")
	}

	stats := ImportStats{Scopes: make(map[string]int, len(scopes))}
	for _, scope := range scopes {
		records, err := i.source.QueryRecords(ctx, scope)
		if err != nil {
			return stats, fmt.Errorf("read scope %s: %w", scope, err)
		}
		for _, rec := range records {
			rec.Scope = scope
			if err := i.writer.Upsert(ctx, rec); err != nil {
				return stats, fmt.Errorf("import record %s: %w", rec.ID, err)
			}
			stats.Scopes[scope]++
			stats.Imported++
		}
		i.logger.Info("scope imported", "scope", scope, "count", len(records))
	}
	return stats, nil
}
