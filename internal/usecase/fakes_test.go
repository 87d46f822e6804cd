package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"NotesTagger/internal/domain"
	"NotesTagger/internal/ports"
)

type oracleReply struct {
	labels []string
	err    error
}

type fakeOracle struct {
	replies map[string]oracleReply
	calls   []string
}

func (f *fakeOracle) SuggestLabels(_ context.Context, rec domain.Record) ([]string, error) {
	f.calls = append(f.calls, rec.ID)
	reply, ok := f.replies[rec.ID]
	if !ok {
		return nil, nil
	}
	return reply.labels, reply.err
}

type fakeStore struct {
	mu        sync.Mutex
	labels    map[string][]string
	persisted []string
	failOn    map[string]error
	created   []string
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{labels: map[string][]string{}, failOn: map[string]error{}}
}

func (s *fakeStore) Persist(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[rec.ID]; err != nil {
		return err
	}
	s.persisted = append(s.persisted, rec.ID)
	current := s.labels[rec.ID]
	for _, l := range rec.Labels {
		if !slices.Contains(current, l) {
			current = append(current, l)
		}
	}
	s.labels[rec.ID] = current
	return nil
}

func (s *fakeStore) CreateRecord(_ context.Context, content string, labels []string) (domain.Record, error) {
	if s.createErr != nil {
		return domain.Record{}, s.createErr
	}
	s.created = append(s.created, content)
	return domain.Record{ID: "audit-1", Body: content, Labels: labels}, nil
}

type fakePacer struct {
	items   int
	batches int
	// cancelAfterItems cancels via err once this many item waits happened (0 = never).
	cancelAfterItems int
}

func (p *fakePacer) WaitItem(ctx context.Context) error {
	p.items++
	if p.cancelAfterItems > 0 && p.items >= p.cancelAfterItems {
		return context.Canceled
	}
	return ctx.Err()
}

func (p *fakePacer) WaitBatch(ctx context.Context) error {
	p.batches++
	return ctx.Err()
}

type fakeSource struct {
	scopes map[string][]domain.Record
	fail   map[string]error
	calls  []string
}

func (s *fakeSource) QueryRecords(_ context.Context, scope string) ([]domain.Record, error) {
	s.calls = append(s.calls, scope)
	if err := s.fail[scope]; err != nil {
		return nil, err
	}
	return s.scopes[scope], nil
}

type fakeConfirmer struct {
	answer bool
	err    error
	seen   *ports.Estimate
}

func (c *fakeConfirmer) Confirm(_ context.Context, e ports.Estimate) (bool, error) {
	c.seen = &e
	return c.answer, c.err
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

// stepClock advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

var errBoom = errors.New("boom")
