package domain

import (
	"strings"
	"time"
)

// Record is a single note owned by the external store.
type Record struct {
	ID     string
	Scope  string
	Title  string
	Body   string
	Labels []string
}

// HasLabel reports whether the label is already attached (exact match).
func (r Record) HasLabel(label string) bool {
	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AddLabel attaches label unless it is already present. It reports whether the set changed.
func (r *Record) AddLabel(label string) bool {
	if r.HasLabel(label) {
		return false
	}
	r.Labels = append(r.Labels, label)
	return true
}

// DisplayTitle returns the title, or the first non-empty body line when the title is blank.
func (r Record) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	for _, line := range strings.Split(r.Body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// OutcomeKind classifies what happened to a record during a run.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeNoNewLabels OutcomeKind = "no_new_labels"
	OutcomeFailure     OutcomeKind = "failure"
)

// Outcome is the immutable result of processing one record.
type Outcome struct {
	RecordID  string
	Title     string
	Kind      OutcomeKind
	NewLabels []string
	Error     string
}

// RunMetrics holds the running counters of a batch run.
type RunMetrics struct {
	Processed   int
	Succeeded   int
	Failed      int
	NoNewLabels int
	StartedAt   time.Time
	Elapsed     time.Duration
}

// Observe counts one processed record. Processed always equals the sum of the other counters.
func (m *RunMetrics) Observe(kind OutcomeKind) {
	switch kind {
	case OutcomeSuccess:
		m.Succeeded++
	case OutcomeFailure:
		m.Failed++
	default:
		m.NoNewLabels++
	}
	m.Processed++
}
