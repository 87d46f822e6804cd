package ports

import (
	"context"
	"net/http"

	"NotesTagger/internal/domain"
)

// RecordSource lists the records of a single scope (folder).
type RecordSource interface {
	QueryRecords(ctx context.Context, scope string) ([]domain.Record, error)
}

// RecordStore persists label changes and creates new records.
type RecordStore interface {
	// Persist commits the record's label set. Repeating it with the same labels must not create duplicates.
	Persist(ctx context.Context, record domain.Record) error
	CreateRecord(ctx context.Context, content string, labels []string) (domain.Record, error)
}

// LabelOracle proposes labels for a record's content.
type LabelOracle interface {
	SuggestLabels(ctx context.Context, record domain.Record) ([]string, error)
}

// Pacer spaces out remote calls.
type Pacer interface {
	WaitItem(ctx context.Context) error
	WaitBatch(ctx context.Context) error
}

// Estimate is what the user sees before agreeing to a run.
type Estimate struct {
	Records   int
	Batches   int
	BatchSize int
	Model     string
	CostUSD   float64
	Minutes   int
}

// Confirmer obtains a go/no-go decision before a run starts.
type Confirmer interface {
	Confirm(ctx context.Context, estimate Estimate) (bool, error)
}

// Notifier delivers user-visible messages (end-of-run summary, alerts).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// HTTPDoer is the oracle transport; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RecordWriter inserts or refreshes records, merging labels.
type RecordWriter interface {
	Upsert(ctx context.Context, record domain.Record) error
}
