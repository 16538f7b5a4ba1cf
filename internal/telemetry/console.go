package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region console
// ConsoleReporter writes one formatted line per decision and never fails.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleReporter writes to w, or to stdout when w is nil.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleReporter{w: w}
}

// Name identifies the sink in diagnostics.
func (c *ConsoleReporter) Name() string { return "console" }

// Report prints e.g. "[TELEM] [WARN] MODIFIED | Action Clamped to Limits (0.02ms)".
// Write errors are dropped: a console line is best-effort.
func (c *ConsoleReporter) Report(_ context.Context, r supervisor.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "[TELEM] %s %s | %s (%.2fms)\n",
		tag(r.Outcome.Decision),
		strings.ToUpper(string(r.Outcome.Decision)),
		r.Outcome.Reason,
		r.Outcome.ProcessingTimeMS(),
	)
	return nil
}

func tag(d supervisor.Decision) string {
	switch d {
	case supervisor.Approved:
		return "[SAFE]"
	case supervisor.Modified:
		return "[WARN]"
	default:
		return "[CRIT]"
	}
}

// #endregion console
