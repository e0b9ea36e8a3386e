// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package app

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pdiddy/p7m-converter/internal/convert"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

// Console is the terminal presentation layer. Apart from Operational, its
// methods must only be called from the polling goroutine.
type Console struct {
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
	tool   string

	operational   atomic.Bool
	status        string
	announceReady bool

	shownCompleted int
	shownFailures  int
}

// NewConsole writes status to out and per-file errors to errOut.
func NewConsole(out, errOut io.Writer, toolName string, logger *zap.Logger) *Console {
	c := &Console{
		out:    out,
		errOut: errOut,
		logger: logger,
		tool:   toolName,
	}
	c.status = "Waiting for " + toolName + "..."
	return c
}

// Operational reports whether the ready sentinel has been received.
func (c *Console) Operational() bool {
	return c.operational.Load()
}

// Status returns the current status line.
func (c *Console) Status() string {
	return c.status
}

// AnnounceReady controls whether the ready sentinel prints a banner. It is
// off when the tool was already installed at startup.
func (c *Console) AnnounceReady(on bool) {
	c.announceReady = on
}

// Dispatch handles one relayed message.
func (c *Console) Dispatch(msg types.StatusMessage) {
	if msg.Ready {
		if c.operational.Swap(true) {
			return
		}
		ready := c.tool + " ready. Select a folder to start converting files."
		if !c.announceReady {
			c.status = ready
			return
		}
		c.setStatus(ready)
		return
	}
	c.logger.Info(msg.Text)
	c.setStatus(msg.Text)
}

func (c *Console) setStatus(s string) {
	if s == c.status {
		return
	}
	c.status = s
	fmt.Fprintln(c.out, s)
}

// ShowFiles prints the files found in a folder.
func (c *Console) ShowFiles(files []string, suffix string) {
	if len(files) == 0 {
		c.setStatus(fmt.Sprintf("No %s files found in the selected folder.", suffix))
		return
	}
	c.setStatus(fmt.Sprintf("Found %d %s files in the selected folder.", len(files), suffix))
	for i, f := range files {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, filepath.Base(f))
	}
}

// BeginRun resets the per-run counters.
func (c *Console) BeginRun() {
	c.shownCompleted = 0
	c.shownFailures = 0
}

// Render prints whatever changed in s since the previous call: new per-file
// errors, newly completed outputs, and the status line.
func (c *Console) Render(s convert.ProgressSnapshot) {
	for _, f := range s.Failures[min(c.shownFailures, len(s.Failures)):] {
		fmt.Fprintf(c.errOut, "Error: %s\n", f.Message)
	}
	c.shownFailures = max(c.shownFailures, len(s.Failures))

	for i := c.shownCompleted; i < len(s.Completed); i++ {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, s.Completed[i])
	}
	c.shownCompleted = max(c.shownCompleted, len(s.Completed))

	if s.Status != "" {
		c.setStatus(s.Status)
	}
}

// Summary prints the batch totals.
func (c *Console) Summary(r convert.BatchResult) {
	fmt.Fprintf(c.out, "\nBatch summary: %d converted, %d failed, %d skipped (total: %d)\n",
		r.Converted, r.Failed, r.Skipped, r.Total())
}
