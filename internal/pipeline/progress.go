package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress of multi-item work such as batches
// and PDF pages. Calls are made from a single goroutine.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnComplete()
	OnError(index int, err error)
}

// NoOpProgressCallback ignores all events.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	interval time.Duration
	started  time.Time
	last     time.Time
}

// NewConsoleProgressCallback writes to w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{w: w, prefix: prefix, width: 30, interval: 100 * time.Millisecond}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = max(1, width)
	return c
}

// WithUpdateInterval limits redraws; the final update is always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(d time.Duration) *ConsoleProgressCallback {
	c.interval = d
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.last = time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	if total <= 0 {
		return
	}
	filled := c.width * done / total
	line := fmt.Sprintf("\r%s[%s%s] %d/%d (%.0f%%)", c.prefix,
		strings.Repeat("#", filled), strings.Repeat(".", c.width-filled),
		done, total, float64(done)/float64(total)*100)
	if elapsed := now.Sub(c.started); elapsed > 0 && done > 0 {
		line += fmt.Sprintf(" %.1f/s", float64(done)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.w, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sitem %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback reports progress through slog every interval items.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int
	lastLog  int
	started  time.Time
}

// NewLogProgressCallback logs at level; a nil logger means slog.Default.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how many items pass between log lines.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	l.interval = max(1, n)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.started = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Processing started", "total", total)
}

func (l *LogProgressCallback) OnProgress(done, total int) {
	if done-l.lastLog < l.interval && done != total {
		return
	}
	l.lastLog = done
	l.logger.Log(context.Background(), l.level, "Processing progress",
		"done", done, "total", total, "elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Processing completed",
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Processing failed", "index", index, "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(done, total int) {
	for _, cb := range m {
		cb.OnProgress(done, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(index int, err error) {
	for _, cb := range m {
		cb.OnError(index, err)
	}
}
