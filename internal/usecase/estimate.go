package usecase

import (
	"math"

	"NotesTagger/internal/ports"
)

// minutesPerBatch is the rough wall time of one batch, pacing included.
const minutesPerBatch = 0.3

// BuildEstimate computes the cost and duration shown before a run.
func BuildEstimate(records, batchSize int, model string, costPerRecord float64) ports.Estimate {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batches := (records + batchSize - 1) / batchSize
	return ports.Estimate{
		Records:   records,
		Batches:   batches,
		BatchSize: batchSize,
		Model:     model,
		CostUSD:   roundCents(float64(records) * costPerRecord),
		Minutes:   int(math.Ceil(float64(records) / float64(batchSize) * minutesPerBatch)),
	}
}
