package taskpool_test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	tp "github.com/azargarov/taskpool"
)

const testProcessingTime = time.Second

// events records notifier lines.
type events struct {
	mu    sync.Mutex
	lines []string
}

func (e *events) Notify(msg string) {
	e.mu.Lock()
	e.lines = append(e.lines, msg)
	e.mu.Unlock()
}

func (e *events) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

func (e *events) Reset() {
	e.mu.Lock()
	e.lines = nil
	e.mu.Unlock()
}

func newTestClock() *tp.ManualClock {
	return tp.NewManualClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func newTestOptions(clock tp.Clock, ev *events) tp.Options {
	return tp.Options{
		Name:           "test",
		TaskIDStart:    1001,
		WorkerIDStart:  1,
		ProcessingTime: testProcessingTime,
		Clock:          clock,
		Notify:         ev.Notify,
	}
}

func newTestScheduler(t *testing.T) (*tp.Scheduler, *tp.ManualClock, *events) {
	t.Helper()

	clock := newTestClock()
	ev := &events{}
	return tp.NewScheduler(newTestOptions(clock, ev)), clock, ev
}

func taskIDs(tasks []tp.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}
