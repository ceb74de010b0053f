package pipeline

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	callback := NoOpProgressCallback{}
	callback.OnStart(10)
	callback.OnProgress(5, 10)
	callback.OnComplete()
	callback.OnError(3, assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Pages: ").WithWidth(10).WithUpdateInterval(0)

	callback.OnStart(4)
	assert.Contains(t, buf.String(), "Pages: 0/4")

	buf.Reset()
	callback.OnProgress(2, 4)
	assert.Contains(t, buf.String(), "[#####.....] 2/4 (50%)")

	buf.Reset()
	callback.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "item 3 failed")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Pages: done in")
}

func TestConsoleProgressCallbackThrottles(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "").WithUpdateInterval(time.Hour)
	callback.OnStart(10)

	buf.Reset()
	callback.OnProgress(1, 10)
	first := buf.Len()
	assert.Positive(t, first)

	callback.OnProgress(2, 10)
	assert.Equal(t, first, buf.Len(), "update within the interval is dropped")

	callback.OnProgress(10, 10)
	assert.Greater(t, buf.Len(), first, "final update is always drawn")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	callback := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)

	callback.OnStart(3)
	callback.OnProgress(1, 3)
	assert.NotContains(t, buf.String(), "done=1")
	callback.OnProgress(2, 3)
	callback.OnProgress(3, 3)
	callback.OnError(1, assert.AnError)
	callback.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "Processing started")
	assert.Contains(t, out, "done=2")
	assert.Contains(t, out, "done=3")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "Processing completed")
}

type tallyProgress struct {
	starts, progress, completes, errors int
}

func (c *tallyProgress) OnStart(int)         { c.starts++ }
func (c *tallyProgress) OnProgress(int, int) { c.progress++ }
func (c *tallyProgress) OnComplete()         { c.completes++ }
func (c *tallyProgress) OnError(int, error)  { c.errors++ }

func TestMultiProgressCallback(t *testing.T) {
	a, b := &tallyProgress{}, &tallyProgress{}
	m := MultiProgressCallback{a, b}
	m.OnStart(2)
	m.OnProgress(1, 2)
	m.OnError(0, assert.AnError)
	m.OnComplete()
	for _, c := range []*tallyProgress{a, b} {
		assert.Equal(t, tallyProgress{starts: 1, progress: 1, completes: 1, errors: 1}, *c)
	}
}
