package taskpool

import (
	"fmt"
	"time"
)

// WorkerStatus is the state of a Worker.
type WorkerStatus uint8

const (
	WorkerIdle WorkerStatus = iota
	WorkerProcessing
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s WorkerStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// completion is the one-shot message a worker sends when its timer fires.
type completion struct {
	worker *Worker
	task   *Task
}

// completionSink receives completions. The worker knows nothing else
// about whoever owns it.
type completionSink interface {
	complete(c completion)
}

// completionTimer is the handle of an in-flight task. Once cancelled
// it can no longer deliver, even if the underlying Timer already fired
// and its callback is queued somewhere.
type completionTimer struct {
	timer     Timer
	cancelled bool
}

// Worker executes one task at a time.
//
//	Idle --assign--> Processing --timer fires--> Idle (task Complete)
//	                 Processing --forceStop--> Idle (task Pending)
//
// Processing holds exactly when task and timer are both set.
type Worker struct {
	id     int
	status WorkerStatus
	task   *Task
	timer  *completionTimer
}

func newWorker(id int) *Worker {
	return &Worker{id: id, status: WorkerIdle}
}

// ID returns the worker identifier.
func (w *Worker) ID() int { return w.id }

// Status returns the current state.
func (w *Worker) Status() WorkerStatus { return w.status }

// assign binds t and starts the completion timer; a negative d fires with
// no delay. Assigning to a busy worker is a scheduler bug and panics with
// ErrWorkerBusy.
func (w *Worker) assign(t *Task, clock Clock, d time.Duration, sink completionSink) {
	if w.status == WorkerProcessing {
		panic(fmt.Errorf("%w: worker %d holds task %d, refused task %d",
			ErrWorkerBusy, w.id, w.task.ID, t.ID))
	}
	if d < 0 {
		d = 0
	}
	h := &completionTimer{}
	w.status = WorkerProcessing
	w.task = t
	w.timer = h
	t.Status = TaskProcessing
	h.timer = clock.AfterFunc(d, func() { w.fire(h, sink) })
}

func (w *Worker) fire(h *completionTimer, sink completionSink) {
	if h.cancelled || w.timer != h {
		return
	}
	t := w.task
	w.timer = nil
	t.Status = TaskComplete
	w.task = nil
	w.status = WorkerIdle
	sink.complete(completion{worker: w, task: t})
}

// forceStop cancels the in-flight task and hands it back as Pending.
// On an idle worker it returns nil, false.
func (w *Worker) forceStop() (*Task, bool) {
	if w.status != WorkerProcessing {
		return nil, false
	}
	w.timer.cancelled = true
	w.timer.timer.Stop()
	t := w.task
	w.timer = nil
	t.Status = TaskPending
	w.task = nil
	w.status = WorkerIdle
	return t, true
}

// WorkerInfo is a detached snapshot of a Worker.
type WorkerInfo struct {
	ID     int          `json:"id"`
	Status WorkerStatus `json:"status"`
	Task   *Task        `json:"task,omitempty"`
}

func (w *Worker) info() WorkerInfo {
	wi := WorkerInfo{ID: w.id, Status: w.status}
	if w.task != nil {
		t := *w.task
		wi.Task = &t
	}
	return wi
}
