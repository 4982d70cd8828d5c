// Package notify holds the event sinks that sit behind a scheduler's
// Notify hook: a timestamping line writer and an asynchronous, retrying
// adapter that keeps slow or failing sinks off the scheduler goroutine.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Sink receives one event line at a time. A returned error may be retried.
type Sink interface {
	Deliver(msg string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string) error

func (f SinkFunc) Deliver(msg string) error { return f(msg) }

// Func adapts a plain callback that cannot fail.
func Func(fn func(string)) Sink {
	return SinkFunc(func(msg string) error {
		fn(msg)
		return nil
	})
}

const DefaultTimeLayout = "15:04:05"

// Writer prefixes each line with the time it was delivered.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	layout string

	// Now is overridable for deterministic output.
	Now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, layout: DefaultTimeLayout, Now: time.Now}
}

// Deliver writes "[hh:mm:ss] msg\n".
func (w *Writer) Deliver(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.w, "[%s] %s\n", w.Now().Format(w.layout), msg)
	return err
}
