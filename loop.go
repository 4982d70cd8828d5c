package taskpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"

	"github.com/azargarov/taskpool/tracing"
)

// ErrLoopClosed is returned by Loop calls made after Run has returned.
var ErrLoopClosed = errors.New("taskpool: loop closed")

// Loop runs a Scheduler on a single goroutine.
//
// Every call is turned into an operation executed by Run, and every
// completion timer posts its callback back onto the same goroutine, so
// scheduler state is only ever touched by one goroutine and each timer
// firing is atomic with respect to every other transition. Results are
// returned as value snapshots and are safe to keep.
type Loop struct {
	sched *Scheduler
	opts  Options

	ops      chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once

	// drained waiters; touched only by the loop goroutine
	waiters []chan struct{}
}

// loopClock re-routes timer callbacks through the loop.
type loopClock struct {
	base Clock
	post func(func())
}

func (c loopClock) Now() time.Time { return c.base.Now() }

func (c loopClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}

// NewLoop creates a Loop around a new Scheduler. Call Run to start it.
func NewLoop(opts Options) *Loop {
	opts.FillDefaults()
	l := &Loop{
		ops:    make(chan func()),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	l.opts = opts
	opts.Clock = loopClock{base: opts.Clock, post: l.post}
	l.sched = NewScheduler(opts)
	return l
}

// Name returns the underlying scheduler name.
func (l *Loop) Name() string { return l.sched.Name() }

// Run processes operations until ctx is cancelled or Stop is called.
// Only the first call runs the loop; later calls return ErrLoopClosed.
func (l *Loop) Run(ctx context.Context) error {
	err := ErrLoopClosed
	l.runOnce.Do(func() { err = l.run(ctx) })
	return err
}

func (l *Loop) run(ctx context.Context) error {
	defer close(l.doneCh)

	logger := lg.FromContext(ctx).With(lg.String("scheduler", l.sched.Name()))

	if l.opts.PinLoop {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := pinToCPU(l.opts.LoopCPU); err != nil {
			logger.Warn("loop not pinned", lg.Int("cpu", l.opts.LoopCPU), lg.Any("error", err))
		}
	}
	logger.Info("scheduler loop started")

	for {
		select {
		case op := <-l.ops:
			op()
			l.releaseWaiters()
		case <-l.stopCh:
			logger.Info("scheduler loop stopped")
			return nil
		case <-ctx.Done():
			logger.Info("scheduler loop canceled", lg.Any("reason", ctx.Err()))
			return ctx.Err()
		}
	}
}

// Stop makes Run return. Timers still pending are abandoned.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.doneCh }

func (l *Loop) post(f func()) {
	select {
	case l.ops <- f:
	case <-l.doneCh:
	}
}

// do runs fn on the loop goroutine and waits for it. Once fn has been
// handed over it always runs to completion, even if ctx expires.
func (l *Loop) do(ctx context.Context, fn func(s *Scheduler)) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn(l.sched)
	}
	select {
	case l.ops <- op:
	case <-l.doneCh:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

func (l *Loop) releaseWaiters() {
	if len(l.waiters) == 0 || l.sched.Status().Busy() {
		return
	}
	for _, ch := range l.waiters {
		close(ch)
	}
	l.waiters = nil
}

// CreateTask creates a task of priority p.
func (l *Loop) CreateTask(ctx context.Context, p Priority) (task Task, err error) {
	ctx, span := tracing.StartOperation(ctx, l.Name(), "CreateTask")
	defer func() { tracing.EndSpan(span, err) }()

	if err = p.Validate(); err != nil {
		return task, err
	}
	err = l.do(ctx, func(s *Scheduler) { task = s.CreateTask(p) })
	if err == nil {
		span.SetTask(task.ID, task.Priority.String(), task.Status.String())
	}
	return task, err
}

// AddWorker adds a worker to the pool.
func (l *Loop) AddWorker(ctx context.Context) (w WorkerInfo, err error) {
	ctx, span := tracing.StartOperation(ctx, l.Name(), "AddWorker")
	defer func() { tracing.EndSpan(span, err) }()

	err = l.do(ctx, func(s *Scheduler) { w = s.AddWorker() })
	if err == nil {
		span.SetWorker(w.ID)
	}
	return w, err
}

// RemoveWorker removes the most recently added worker. ok is false when
// the pool was empty.
func (l *Loop) RemoveWorker(ctx context.Context) (w WorkerInfo, ok bool, err error) {
	ctx, span := tracing.StartOperation(ctx, l.Name(), "RemoveWorker")
	defer func() { tracing.EndSpan(span, err) }()

	var (
		preempted   bool
		preemptedID int
	)
	err = l.do(ctx, func(s *Scheduler) {
		var t *Task
		w, t, ok = s.removeWorker()
		if t != nil {
			preempted, preemptedID = true, t.ID
		}
	})
	if err == nil && ok {
		span.SetWorker(w.ID)
		if preempted {
			span.Preempted(preemptedID)
		}
	}
	return w, ok, err
}

func (l *Loop) Status(ctx context.Context) (st Status, err error) {
	err = l.do(ctx, func(s *Scheduler) { st = s.Status() })
	return st, err
}

func (l *Loop) PendingTasks(ctx context.Context) (tasks []Task, err error) {
	err = l.do(ctx, func(s *Scheduler) { tasks = s.PendingTasks() })
	return tasks, err
}

func (l *Loop) CompletedTasks(ctx context.Context) (tasks []Task, err error) {
	err = l.do(ctx, func(s *Scheduler) { tasks = s.CompletedTasks() })
	return tasks, err
}

func (l *Loop) Workers(ctx context.Context) (workers []WorkerInfo, err error) {
	err = l.do(ctx, func(s *Scheduler) { workers = s.Workers() })
	return workers, err
}

// Drain blocks until no task is pending or processing. With pending
// tasks and no workers it waits until ctx expires.
func (l *Loop) Drain(ctx context.Context) error {
	ch := make(chan struct{})
	err := l.do(ctx, func(s *Scheduler) {
		if !s.Status().Busy() {
			close(ch)
			return
		}
		l.waiters = append(l.waiters, ch)
	})
	if err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.doneCh:
		return ErrLoopClosed
	}
}
