package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"NotesTagger/internal/ports"
)

// Confirmer asks the operator on a terminal before a run starts.
type Confirmer struct {
	in          *bufio.Reader
	out         io.Writer
	autoApprove bool
}

var _ ports.Confirmer = (*Confirmer)(nil)

// NewConfirmer reads answers from in and writes the prompt to out.
// With autoApprove the estimate is printed and the run proceeds without a prompt.
func NewConfirmer(in io.Reader, out io.Writer, autoApprove bool) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out, autoApprove: autoApprove}
}

// Confirm prints the estimate and returns true only for an explicit yes.
func (c *Confirmer) Confirm(ctx context.Context, estimate ports.Estimate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(c.out, "Ready to label %d records.\n", estimate.Records)
	fmt.Fprintf(c.out, "  batches:        %d x %d\n", estimate.Batches, estimate.BatchSize)
	fmt.Fprintf(c.out, "  model:          %s\n", estimate.Model)
	fmt.Fprintf(c.out, "  estimated cost: ~$%.2f\n", estimate.CostUSD)
	fmt.Fprintf(c.out, "  estimated time: ~%d min\n", estimate.Minutes)
	if c.autoApprove {
		fmt.Fprintln(c.out, "Proceeding (--yes).")
		return true, nil
	}

	fmt.Fprint(c.out, "Proceed? [y/N]: ")
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Notifier prints messages to a writer, one block per message.
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.out, "%s\n\n", strings.TrimRight(message, "\n")); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
