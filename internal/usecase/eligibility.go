package usecase

import "NotesTagger/internal/domain"

// SelectEligible dedups records by ID (first occurrence wins), keeps those with
// fewer than threshold labels and caps the result at maxCount. maxCount <= 0 means no cap.
func SelectEligible(records []domain.Record, threshold, maxCount int) []domain.Record {
	seen := make(map[string]struct{}, len(records))
	eligible := make([]domain.Record, 0, len(records))

	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}

		if len(rec.Labels) >= threshold {
			continue
		}
		eligible = append(eligible, rec)
		if maxCount > 0 && len(eligible) == maxCount {
			break
		}
	}

	return eligible
}

// Partition splits records into consecutive batches of size; the last one may be shorter.
func Partition(records []domain.Record, size int) [][]domain.Record {
	if size < 1 {
		size = 1
	}
	batches := make([][]domain.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end])
	}
	return batches
}
