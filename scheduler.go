package taskpool

import (
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
)

// sequence hands out strictly increasing ids starting at start.
type sequence struct {
	next int
}

func newSequence(start int) *sequence { return &sequence{next: start} }

func (s *sequence) Next() int {
	id := s.next
	s.next++
	return id
}

// Scheduler owns the worker pool and the pending queue and binds tasks
// to idle workers.
//
// Every mutating call (CreateTask, AddWorker, RemoveWorker, a timer
// firing) ends with an assignment pass: idle workers, in the order they
// were added, each take the front task until the queue runs dry.
//
// A Scheduler is not safe for concurrent use. Drive it from a single
// goroutine with a ManualClock, or through a Loop.
type Scheduler struct {
	opts Options

	queue     *PriorityQueue
	workers   []*Worker
	completed []*Task

	taskIDs   *sequence
	workerIDs *sequence
}

// NewScheduler creates an empty scheduler: no workers, no tasks.
func NewScheduler(opts Options) *Scheduler {
	opts.FillDefaults()
	return &Scheduler{
		opts:      opts,
		queue:     NewPriorityQueue(),
		taskIDs:   newSequence(opts.TaskIDStart),
		workerIDs: newSequence(opts.WorkerIDStart),
	}
}

// Name returns the scheduler name used in logs.
func (s *Scheduler) Name() string { return s.opts.Name }

// CreateTask queues a new Pending task and runs an assignment pass.
// The returned copy reflects the task after that pass.
//
// p must be High or Normal; anything else panics with ErrInvalidPriority
// before any state changes. Loop.CreateTask returns the error instead.
func (s *Scheduler) CreateTask(p Priority) Task {
	if err := p.Validate(); err != nil {
		panic(err)
	}
	t := &Task{
		ID:        s.taskIDs.Next(),
		Priority:  p,
		Status:    TaskPending,
		CreatedAt: s.opts.Clock.Now(),
	}
	s.queue.Enqueue(t)
	s.opts.Metrics.IncCreated()
	s.notify(fmt.Sprintf("%s created", t))

	s.assignPending()
	return *t
}

// AddWorker appends an idle worker to the pool and runs an assignment pass.
func (s *Scheduler) AddWorker() WorkerInfo {
	w := newWorker(s.workerIDs.Next())
	s.workers = append(s.workers, w)
	lg.FromContext(s.opts.Ctx).Info("worker added",
		lg.String("scheduler", s.opts.Name),
		lg.Int("worker", w.id),
		lg.Int("workers", len(s.workers)),
	)
	s.notify(fmt.Sprintf("Worker %d created", w.id))

	s.assignPending()
	return w.info()
}

// RemoveWorker destroys the most recently added worker. A task it was
// processing goes back to Pending and re-enters the queue like a fresh
// submission of its class, behind tasks already queued there.
//
// It returns false when the pool is empty.
func (s *Scheduler) RemoveWorker() (WorkerInfo, bool) {
	w, _, ok := s.removeWorker()
	return w, ok
}

// removeWorker is RemoveWorker that also returns the preempted task, if any.
func (s *Scheduler) removeWorker() (WorkerInfo, *Task, bool) {
	n := len(s.workers)
	if n == 0 {
		return WorkerInfo{}, nil, false
	}
	w := s.workers[n-1]
	s.workers[n-1] = nil
	s.workers = s.workers[:n-1]

	logger := lg.FromContext(s.opts.Ctx).With(
		lg.String("scheduler", s.opts.Name),
		lg.Int("worker", w.id),
	)

	t, preempted := w.forceStop()
	if !preempted {
		logger.Info("worker removed", lg.Int("workers", len(s.workers)))
		s.notify(fmt.Sprintf("Worker %d destroyed", w.id))
		return w.info(), nil, true
	}

	s.queue.Enqueue(t)
	s.opts.Metrics.IncPreempted()
	logger.Info("worker removed, task preempted",
		lg.Int("task", t.ID),
		lg.Int("workers", len(s.workers)),
	)
	s.notify(fmt.Sprintf("Worker %d destroyed; %s returned to queue", w.id, t))

	s.assignPending()
	return w.info(), t, true
}

// assignPending is the assignment pass.
func (s *Scheduler) assignPending() {
	for _, w := range s.workers {
		if s.queue.IsEmpty() {
			return
		}
		if w.status != WorkerIdle {
			continue
		}
		t, _ := s.queue.Dequeue()
		w.assign(t, s.opts.Clock, s.opts.ProcessingTime, s)
		s.opts.Metrics.IncAssigned()
		s.notify(fmt.Sprintf("%s assigned to Worker %d", t, w.id))
	}
}

// complete handles a worker's timer firing.
func (s *Scheduler) complete(c completion) {
	s.completed = append(s.completed, c.task)
	s.opts.Metrics.IncCompleted()
	s.notify(fmt.Sprintf("%s completed by Worker %d", c.task, c.worker.id))

	s.assignPending()

	if c.worker.status == WorkerIdle && s.queue.IsEmpty() {
		s.notify(fmt.Sprintf("Worker %d is idle, no pending tasks", c.worker.id))
	}
}

// Status returns counts derived from the current queue, pool and
// completed list.
func (s *Scheduler) Status() Status {
	var st Status
	count := func(t *Task) {
		st.TotalTasks++
		if t.Priority == High {
			st.HighTasks++
		} else {
			st.NormalTasks++
		}
	}
	for _, t := range s.queue.Snapshot() {
		count(t)
		st.PendingTasks++
	}
	for _, w := range s.workers {
		st.Workers++
		if w.status == WorkerIdle {
			st.IdleWorkers++
			continue
		}
		st.ProcessingWorkers++
		st.ProcessingTasks++
		count(w.task)
	}
	for _, t := range s.completed {
		count(t)
		st.CompletedTasks++
	}
	return st
}

// PendingTasks returns the queued tasks in dispatch order.
func (s *Scheduler) PendingTasks() []Task {
	return copyTasks(s.queue.Snapshot())
}

// CompletedTasks returns completed tasks in completion order.
func (s *Scheduler) CompletedTasks() []Task {
	return copyTasks(s.completed)
}

// Workers returns the pool in the order workers were added.
func (s *Scheduler) Workers() []WorkerInfo {
	out := make([]WorkerInfo, len(s.workers))
	for i, w := range s.workers {
		out[i] = w.info()
	}
	return out
}
