package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"NotesTagger/internal/domain"
)

const (
	summarySuccessExamples = 10
	summaryFailureExamples = 5
	auditSuccessExamples   = 20
)

// Example is one line of a report: a title prefix with either labels or an error.
type Example struct {
	Title  string
	Labels []string
	Error  string
}

// ReportOptions carries run configuration echoed into the audit log.
type ReportOptions struct {
	Model         string
	BatchSize     int
	MaxRecords    int
	CostPerRecord float64
}

// RunReport is the read-only end-of-run summary.
type RunReport struct {
	State       RunState
	Processed   int
	Succeeded   int
	Failed      int
	NoNewLabels int
	SuccessRate int
	Elapsed     time.Duration
	Throughput  int
	CostUSD     float64
	StartedAt   time.Time
	FinishedAt  time.Time

	SuccessExamples []Example
	FailureExamples []Example

	auditSuccesses []Example
	auditFailures  []Example
	opts           ReportOptions
}

// BuildReport derives a RunReport from the final metrics and the ordered outcomes.
func BuildReport(result RunResult, opts ReportOptions) RunReport {
	m := result.Metrics
	elapsed := result.FinishedAt.Sub(result.StartedAt)
	if result.FinishedAt.IsZero() || elapsed < 0 {
		elapsed = m.Elapsed
	}

	report := RunReport{
		State:       result.State,
		Processed:   m.Processed,
		Succeeded:   m.Succeeded,
		Failed:      m.Failed,
		NoNewLabels: m.NoNewLabels,
		SuccessRate: percent(m.Succeeded, m.Processed),
		Elapsed:     elapsed,
		Throughput:  throughput(m.Processed, elapsed),
		CostUSD:     roundCents(float64(m.Processed) * opts.CostPerRecord),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		opts:        opts,
	}

	var successes, failures []Example
	for _, o := range result.Outcomes {
		switch o.Kind {
		case domain.OutcomeSuccess:
			successes = append(successes, Example{Title: o.Title, Labels: o.NewLabels})
		case domain.OutcomeFailure:
			failures = append(failures, Example{Title: o.Title, Error: o.Error})
		}
	}

	report.SuccessExamples = head(successes, summarySuccessExamples)
	report.FailureExamples = head(failures, summaryFailureExamples)
	report.auditSuccesses = head(successes, auditSuccessExamples)
	report.auditFailures = failures
	return report
}

// Summary renders the user-visible end-of-run message.
func (r RunReport) Summary() string {
	var b strings.Builder

	if r.State == StateCancelled {
		b.WriteString("Auto-tagging interrupted before all records were processed.\n\n")
	} else {
		b.WriteString("Auto-tagging completed.\n\n")
	}

	b.WriteString("Final results:\n")
	r.writeCounters(&b)
	fmt.Fprintf(&b, "\n%d records received new labels.\n", r.Succeeded)

	if len(r.SuccessExamples) > 0 {
		fmt.Fprintf(&b, "\nSample added labels (first %d):\n", summarySuccessExamples)
		writeSuccesses(&b, r.SuccessExamples)
	}
	if len(r.FailureExamples) > 0 {
		fmt.Fprintf(&b, "\nError details (first %d):\n", summaryFailureExamples)
		writeFailures(&b, r.FailureExamples)
	}

	return b.String()
}

// AuditLog renders the persisted run log.
func (r RunReport) AuditLog() string {
	var b strings.Builder

	b.WriteString("Auto-tagging processing log\n")
	fmt.Fprintf(&b, "Execution time: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Completion time: %s\n", r.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Processing time: %s\n", formatDuration(r.Elapsed))
	fmt.Fprintf(&b, "Model: %s\n", r.opts.Model)
	fmt.Fprintf(&b, "State: %s\n", r.State)

	b.WriteString("\n=== Processing results ===\n")
	r.writeCounters(&b)

	b.WriteString("\n=== Configuration ===\n")
	fmt.Fprintf(&b, "Batch size: %d\n", r.opts.BatchSize)
	fmt.Fprintf(&b, "Max records: %d\n", r.opts.MaxRecords)

	b.WriteString("\n=== Sample successful labels ===\n")
	writeSuccesses(&b, r.auditSuccesses)

	b.WriteString("\n=== Error details ===\n")
	writeFailures(&b, r.auditFailures)

	return b.String()
}

func (r RunReport) writeCounters(b *strings.Builder) {
	fmt.Fprintf(b, "Total processed: %d\n", r.Processed)
	fmt.Fprintf(b, "Success: %d (%d%%)\n", r.Succeeded, r.SuccessRate)
	fmt.Fprintf(b, "No new labels: %d\n", r.NoNewLabels)
	fmt.Fprintf(b, "Errors: %d\n", r.Failed)
	fmt.Fprintf(b, "Estimated cost: $%.2f\n", r.CostUSD)
	fmt.Fprintf(b, "Processing time: %s\n", formatDuration(r.Elapsed))
	fmt.Fprintf(b, "Processing speed: %d records/min\n", r.Throughput)
}

func writeSuccesses(b *strings.Builder, examples []Example) {
	for i, e := range examples {
		fmt.Fprintf(b, "%d. %q... -> %s\n", i+1, e.Title, strings.Join(e.Labels, ", "))
	}
}

func writeFailures(b *strings.Builder, examples []Example) {
	for i, e := range examples {
		fmt.Fprintf(b, "%d. %q...: %s\n", i+1, e.Title, e.Error)
	}
}

func head(examples []Example, n int) []Example {
	if len(examples) > n {
		return examples[:n]
	}
	return examples
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func throughput(processed int, elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(float64(processed) / elapsed.Minutes()))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}
