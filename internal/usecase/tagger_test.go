package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"NotesTagger/internal/domain"
)

func defaultSettings() TaggerSettings {
	return TaggerSettings{
		Scopes:         []Scope{{Name: "inbox"}, {Name: "archive"}, {Name: "untagged", Optional: true}},
		LabelThreshold: 3,
		MaxRecords:     100,
		BatchSize:      10,
		Model:          "claude-3-haiku-20240307",
		CostPerRecord:  0.012,
		AuditLabels:    []string{"auto-tagging", "processing-log", "claude-api"},
	}
}

type taggerFixture struct {
	source    *fakeSource
	store     *fakeStore
	oracle    *fakeOracle
	pacer     *fakePacer
	confirmer *fakeConfirmer
	notifier  *fakeNotifier
}

func newFixture() *taggerFixture {
	return &taggerFixture{
		source:    &fakeSource{scopes: map[string][]domain.Record{}, fail: map[string]error{}},
		store:     newFakeStore(),
		oracle:    &fakeOracle{replies: map[string]oracleReply{}},
		pacer:     &fakePacer{},
		confirmer: &fakeConfirmer{answer: true},
		notifier:  &fakeNotifier{},
	}
}

func (f *taggerFixture) tagger(settings TaggerSettings) *Tagger {
	return NewTagger(TaggerDeps{
		Source:    f.source,
		Store:     f.store,
		Oracle:    f.oracle,
		Pacer:     f.pacer,
		Confirmer: f.confirmer,
		Notifier:  f.notifier,
		Clock:     stepClock(time.Date(2025, 9, 21, 10, 0, 0, 0, time.UTC), time.Second),
	}, settings)
}

func TestTaggerEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A", Title: "Recipe"}, {ID: "B", Title: "Trip", Labels: []string{"x"}}}
	f.source.scopes["archive"] = []domain.Record{{ID: "A", Title: "Recipe (archived copy)"}, {ID: "C", Labels: []string{"x", "y", "z"}}}
	f.source.fail["untagged"] = errors.New("folder not found")
	f.oracle.replies["A"] = oracleReply{labels: []string{"alpha", "beta", "gamma"}}
	f.oracle.replies["B"] = oracleReply{err: &domain.MalformedResponseError{Reason: "decode envelope"}}

	result, err := f.tagger(defaultSettings()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Status != StatusCompleted || result.Eligible != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if strings.Join(f.oracle.calls, ",") != "A,B" {
		t.Fatalf("unexpected oracle calls: %v", f.oracle.calls)
	}
	if f.confirmer.seen == nil || f.confirmer.seen.Records != 2 || f.confirmer.seen.Model != "claude-3-haiku-20240307" {
		t.Fatalf("unexpected estimate: %+v", f.confirmer.seen)
	}
	if result.Report.Succeeded != 1 || result.Report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", result.Report)
	}
	if result.AuditRecordID != "audit-1" || len(f.store.created) != 1 {
		t.Fatalf("audit log not persisted: %+v", result)
	}
	if !strings.Contains(f.store.created[0], "Total processed: 2") {
		t.Fatalf("unexpected audit content:\n%s", f.store.created[0])
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "Success: 1 (50%)") {
		t.Fatalf("unexpected notifications: %v", f.notifier.messages)
	}
}

func TestTaggerNothingToProcess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A", Labels: []string{"a", "b", "c"}}}

	result, err := f.tagger(defaultSettings()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Status != StatusNothingToDo {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if len(f.oracle.calls) != 0 || f.pacer.items != 0 || f.pacer.batches != 0 || f.confirmer.seen != nil {
		t.Fatalf("nothing should have been invoked")
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "Nothing to process") {
		t.Fatalf("unexpected notifications: %v", f.notifier.messages)
	}
	if len(f.store.created) != 0 {
		t.Fatalf("no audit log expected")
	}
}

func TestTaggerDeclined(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A"}}
	f.confirmer.answer = false

	result, err := f.tagger(defaultSettings()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Status != StatusDeclined || len(f.oracle.calls) != 0 {
		t.Fatalf("declined run should not call the oracle: %+v", result)
	}
	if f.notifier.messages[0] != "Processing cancelled." {
		t.Fatalf("unexpected notification %q", f.notifier.messages[0])
	}
}

func TestTaggerAllScopesFailingIsSetupError(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, s := range []string{"inbox", "archive", "untagged"} {
		f.source.fail[s] = errBoom
	}

	_, err := f.tagger(defaultSettings()).Run(context.Background())
	var setup *domain.SetupError
	if !errors.As(err, &setup) || !errors.Is(err, errBoom) {
		t.Fatalf("expected SetupError wrapping boom, got %v", err)
	}
	if len(f.oracle.calls) != 0 {
		t.Fatalf("oracle should not be called")
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "Failed to retrieve records") {
		t.Fatalf("expected immediate alert, got %v", f.notifier.messages)
	}
}

func TestTaggerRespectsMaxAndAuditToggle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	settings := defaultSettings()
	settings.MaxRecords = 2
	settings.AuditDisabled = true

	result, err := f.tagger(settings).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Eligible != 2 || result.Report.Processed != 2 {
		t.Fatalf("cap not applied: %+v", result)
	}
	if len(f.store.created) != 0 || result.AuditRecordID != "" {
		t.Fatalf("audit log should be disabled")
	}
}

func TestTaggerAuditFailureIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A"}}
	f.store.createErr = errBoom

	result, err := f.tagger(defaultSettings()).Run(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected audit error, got %v", err)
	}
	if result.Report == nil || result.Report.Processed != 1 {
		t.Fatalf("report should still be returned: %+v", result)
	}
}

func TestTaggerCancelledRunStillReports(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.source.scopes["inbox"] = []domain.Record{{ID: "A"}, {ID: "B"}}
	f.pacer.cancelAfterItems = 1

	result, err := f.tagger(defaultSettings()).Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if result.Status != StatusCancelled || result.Report.Processed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.store.created) != 1 || !strings.Contains(f.notifier.messages[0], "interrupted") {
		t.Fatalf("cancelled run should still be reported and logged")
	}
}
