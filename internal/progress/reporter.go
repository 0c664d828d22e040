// Package progress provides feedback for long-running work like embedding
// a schema catalog.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress for a counted operation. Start is called once
// with the expected total, Step once per completed item.
type Reporter interface {
	Start(label string, total int)
	Step(message string)
	Finish()
}

// NewReporter picks a reporter for the environment: plain log lines under
// CI, an interactive bar otherwise.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &logReporter{}
	}
	return &barReporter{}
}

// barReporter renders an interactive terminal bar.
type barReporter struct {
	bar *progressbar.ProgressBar
}

func (r *barReporter) Start(label string, total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *barReporter) Step(message string) {
	if r.bar == nil {
		return
	}
	if message != "" {
		r.bar.Describe(message)
	}
	_ = r.bar.Add(1)
}

func (r *barReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// logReporter prints one line per step, readable in CI logs.
type logReporter struct {
	label   string
	total   int
	current int
}

func (r *logReporter) Start(label string, total int) {
	r.label = label
	r.total = total
	fmt.Fprintf(os.Stderr, "%s: %d items\n", label, total)
}

func (r *logReporter) Step(message string) {
	r.current++
	if message == "" {
		message = r.label
	}
	fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", r.current, r.total, message)
}

func (r *logReporter) Finish() {
	fmt.Fprintf(os.Stderr, "%s: done\n", r.label)
}
