package ratelimit

import (
	"context"
	"time"

	"NotesTagger/internal/ports"
)

const (
	DefaultItemDelay  = 150 * time.Millisecond
	DefaultBatchDelay = 800 * time.Millisecond
)

// FixedDelay waits a fixed duration between records and a longer one between batches.
// The wait is unconditional: time spent on the preceding call is not subtracted.
type FixedDelay struct {
	item  time.Duration
	batch time.Duration
}

var _ ports.Pacer = (*FixedDelay)(nil)

// NewFixedDelay builds a pacer; negative durations are treated as zero.
func NewFixedDelay(item, batch time.Duration) *FixedDelay {
	return &FixedDelay{item: max(item, 0), batch: max(batch, 0)}
}

// WaitItem blocks for the item delay.
func (f *FixedDelay) WaitItem(ctx context.Context) error {
	return sleep(ctx, f.item)
}

// WaitBatch blocks for the batch delay.
func (f *FixedDelay) WaitBatch(ctx context.Context) error {
	return sleep(ctx, f.batch)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
