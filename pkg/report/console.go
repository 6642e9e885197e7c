package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/catalogsync/pkg/types"
)

// Verbosity controls how much of the event stream the console prints.
type Verbosity int

const (
	// VerbosityQuiet prints failures and the final summary only.
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal adds batch lifecycle and one line per item.
	VerbosityNormal
	// VerbosityVerbose adds step progress and every log entry.
	VerbosityVerbose
)

// ParseVerbosity maps "quiet", "normal" and "verbose" to a Verbosity.
// Unknown values fall back to VerbosityNormal.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet":
		return VerbosityQuiet
	case "verbose", "debug":
		return VerbosityVerbose
	default:
		return VerbosityNormal
	}
}

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	coralPink   = lipgloss.Color("#FFCCCB")
	mintGreen   = lipgloss.Color("#A8E6CF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
)

type consoleStyles struct {
	header  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	text    lipgloss.Style
	box     lipgloss.Style
}

func newConsoleStyles(r *lipgloss.Renderer) consoleStyles {
	return consoleStyles{
		header:  r.NewStyle().Foreground(salmonPink).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
		success: r.NewStyle().Foreground(mintGreen),
		failure: r.NewStyle().Foreground(salmonPink).Bold(true),
		warning: r.NewStyle().Foreground(coralPink),
		text:    r.NewStyle().Foreground(brightWhite),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1),
	}
}

// Console prints the batch event stream for a terminal.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	level  Verbosity
	styles consoleStyles

	total int
	done  int
}

// NewConsole creates a console writing to w. Colors are enabled only when w
// is a terminal.
func NewConsole(w io.Writer, level Verbosity) *Console {
	return &Console{
		w:      w,
		level:  level,
		styles: newConsoleStyles(lipgloss.NewRenderer(w)),
	}
}

// Header prints a prominent title.
func (c *Console) Header(title string) {
	if c.level < VerbosityNormal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n\n", c.styles.header.Render(title))
}

// Run prints events until the batch ends, the channel closes or ctx is done.
// It returns the final stats when a batch_end event was seen.
func (c *Console) Run(ctx context.Context, events <-chan *types.Event) *types.BatchStats {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			c.Event(e)
			if e.IsTerminal() {
				return e.Stats
			}
		}
	}
}

// Event prints a single event according to the verbosity.
func (c *Console) Event(e *types.Event) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.styles
	switch e.Type {
	case types.EventTypeBatchStart:
		c.total, c.done = e.Stats.Total, 0
		c.printf(VerbosityNormal, "%s %s\n", s.header.Render("▶"),
			s.text.Render(fmt.Sprintf("Batch %s: %d items", e.RunID, e.Stats.Total)))

	case types.EventTypeProgress:
		p := e.Progress
		c.printf(VerbosityVerbose, "  %s\n", s.muted.Render(
			fmt.Sprintf("%s [%d/%d] %s", p.ItemID, p.StepIndex, p.TotalSteps, p.Description)))

	case types.EventTypeItemComplete:
		c.done++
		c.itemLine(e.Result)

	case types.EventTypeError:
		if e.Error.Trace != "" {
			c.printf(VerbosityVerbose, "%s\n", s.muted.Render(strings.TrimRight(e.Error.Trace, "\n")))
		}

	case types.EventTypeLog:
		c.logLine(e.Log)

	case types.EventTypeStateChange:
		c.printf(VerbosityNormal, "%s\n", s.warning.Render(
			fmt.Sprintf("  state %s → %s", e.State.From, e.State.To)))
	}
}

func (c *Console) itemLine(r *types.ItemResult) {
	s := c.styles
	counter := s.muted.Render(fmt.Sprintf("[%d/%d]", c.done, c.total))
	if r.Success {
		line := fmt.Sprintf("%s %s", r.ItemID, s.muted.Render(fmt.Sprintf("(%s)", r.Duration.Round(10*time.Millisecond))))
		if len(r.FieldErrors) > 0 {
			line += " " + s.warning.Render(fmt.Sprintf("%d field errors", len(r.FieldErrors)))
		}
		c.printf(VerbosityNormal, "%s %s %s\n", counter, s.success.Render("✓"), line)
		return
	}
	c.printf(VerbosityQuiet, "%s %s %s %s\n", counter, s.failure.Render("✗"), r.ItemID,
		s.failure.Render(fmt.Sprintf("%s: %s", r.FailedStep, r.Error)))
	if r.Screenshot != "" {
		c.printf(VerbosityVerbose, "    %s\n", s.muted.Render("screenshot: "+r.Screenshot))
	}
}

func (c *Console) logLine(l *types.LogEntry) {
	s := c.styles
	switch l.Level {
	case types.LogError:
		c.printf(VerbosityQuiet, "%s\n", s.failure.Render(l.Message))
	case types.LogWarning:
		c.printf(VerbosityNormal, "%s\n", s.warning.Render(l.Message))
	case types.LogDebug:
		c.printf(VerbosityVerbose, "%s\n", s.muted.Render(l.Message))
	default:
		c.printf(VerbosityVerbose, "%s\n", s.text.Render(l.Message))
	}
}

// Summary prints the final totals box. It is printed at every verbosity.
func (c *Console) Summary(summary *RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.styles
	st := summary.Stats
	status := s.success.Render(summary.Status)
	if summary.Status != StatusSuccess {
		status = s.failure.Render(summary.Status)
	}

	lines := []string{
		s.header.Render("Summary"),
		fmt.Sprintf("Run:      %s", st.RunID),
		fmt.Sprintf("Status:   %s", status),
		fmt.Sprintf("Updated:  %d/%d", st.Processed, st.Total),
		fmt.Sprintf("Failed:   %d", st.Failed),
	}
	if skipped := st.Total - st.Attempted(); skipped > 0 {
		lines = append(lines, fmt.Sprintf("Skipped:  %d", skipped))
	}
	lines = append(lines, fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Second)))
	if st.EventsDropped > 0 {
		lines = append(lines, s.warning.Render(fmt.Sprintf("%d events dropped", st.EventsDropped)))
	}
	fmt.Fprintf(c.w, "\n%s\n", s.box.Render(strings.Join(lines, "\n")))

	if len(st.Errors) > 0 && c.level >= VerbosityNormal {
		for _, e := range st.Errors {
			fmt.Fprintf(c.w, "  %s %s\n", s.failure.Render(e.ItemID), s.muted.Render(e.Error))
		}
	}
}

func (c *Console) printf(at Verbosity, format string, args ...interface{}) {
	if c.level < at {
		return
	}
	fmt.Fprintf(c.w, format, args...)
}
