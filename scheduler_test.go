package taskpool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tp "github.com/azargarov/taskpool"
)

func TestSchedulerPendingOrder(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	s.CreateTask(tp.Normal)
	s.CreateTask(tp.High)
	s.CreateTask(tp.Normal)

	assert.Equal(t, []int{1002, 1001, 1003}, taskIDs(s.PendingTasks()))

	s2, _, _ := newTestScheduler(t)
	s2.CreateTask(tp.High)
	s2.CreateTask(tp.High)
	assert.Equal(t, []int{1001, 1002}, taskIDs(s2.PendingTasks()))
}

func TestSchedulerAssignsOnCreate(t *testing.T) {
	s, _, ev := newTestScheduler(t)

	w := s.AddWorker()
	assert.Equal(t, 1, w.ID)
	assert.Equal(t, tp.WorkerIdle, w.Status)

	task := s.CreateTask(tp.Normal)
	assert.Equal(t, 1001, task.ID)
	assert.Equal(t, tp.TaskProcessing, task.Status)

	st := s.Status()
	assert.Equal(t, 0, st.PendingTasks)
	assert.Equal(t, 1, st.ProcessingWorkers)
	assert.Equal(t, 0, st.IdleWorkers)

	workers := s.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, tp.WorkerProcessing, workers[0].Status)
	require.NotNil(t, workers[0].Task)
	assert.Equal(t, 1001, workers[0].Task.ID)

	assert.Equal(t, []string{
		"Worker 1 created",
		"Task 1001 (normal) created",
		"Task 1001 (normal) assigned to Worker 1",
	}, ev.Lines())
}

func TestSchedulerAssignsOnAddWorker(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	s.CreateTask(tp.Normal)
	s.CreateTask(tp.High)
	s.CreateTask(tp.Normal)
	assert.Equal(t, 3, s.Status().PendingTasks)

	s.AddWorker()
	s.AddWorker()

	workers := s.Workers()
	require.Len(t, workers, 2)
	assert.Equal(t, 1002, workers[0].Task.ID)
	assert.Equal(t, 1001, workers[1].Task.ID)
	assert.Equal(t, []int{1003}, taskIDs(s.PendingTasks()))
}

func TestSchedulerRemoveProcessingWorker(t *testing.T) {
	s, clock, ev := newTestScheduler(t)

	s.AddWorker()
	s.CreateTask(tp.Normal)
	before := s.Status()
	ev.Reset()

	removed, ok := s.RemoveWorker()
	require.True(t, ok)
	assert.Equal(t, 1, removed.ID)
	assert.Equal(t, tp.WorkerIdle, removed.Status)
	assert.Nil(t, removed.Task)

	after := s.Status()
	assert.Equal(t, before.Workers-1, after.Workers)
	assert.Equal(t, before.PendingTasks+1, after.PendingTasks)

	pending := s.PendingTasks()
	require.Len(t, pending, 1)
	assert.Equal(t, 1001, pending[0].ID)
	assert.Equal(t, tp.TaskPending, pending[0].Status)

	assert.Equal(t, []string{
		"Worker 1 destroyed; Task 1001 (normal) returned to queue",
	}, ev.Lines())

	// the cancelled timer never completes the task
	clock.Advance(10 * testProcessingTime)
	assert.Empty(t, s.CompletedTasks())
	assert.Equal(t, 1, s.Status().PendingTasks)
}

func TestSchedulerRemoveIsLIFO(t *testing.T) {
	s, _, ev := newTestScheduler(t)
	s.AddWorker()
	s.AddWorker()
	s.AddWorker()
	ev.Reset()

	w, ok := s.RemoveWorker()
	require.True(t, ok)
	assert.Equal(t, 3, w.ID)
	w, ok = s.RemoveWorker()
	require.True(t, ok)
	assert.Equal(t, 2, w.ID)

	workers := s.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, 1, workers[0].ID)
	assert.Equal(t, []string{"Worker 3 destroyed", "Worker 2 destroyed"}, ev.Lines())

	// ids are never reused
	assert.Equal(t, 4, s.AddWorker().ID)
}

func TestSchedulerRemoveEmptyPool(t *testing.T) {
	s, _, ev := newTestScheduler(t)

	w, ok := s.RemoveWorker()
	assert.False(t, ok)
	assert.Zero(t, w)
	assert.Empty(t, ev.Lines())
}

// A preempted task re-enters through the normal rule: behind High tasks
// that were queued after it started, not at its old position.
func TestSchedulerPreemptedTaskRequeuedByRule(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	s.AddWorker()
	s.AddWorker()
	s.CreateTask(tp.High) // 1001 -> worker 1
	s.CreateTask(tp.High) // 1002 -> worker 2
	s.CreateTask(tp.High) // 1003 pending
	s.CreateTask(tp.Normal)

	_, ok := s.RemoveWorker()
	require.True(t, ok)

	assert.Equal(t, []int{1003, 1002, 1004}, taskIDs(s.PendingTasks()))
}

func TestSchedulerPreemptedTaskPickedUpByIdleWorker(t *testing.T) {
	s, clock, ev := newTestScheduler(t)

	s.AddWorker()
	s.CreateTask(tp.Normal) // 1001 -> worker 1
	clock.Advance(testProcessingTime / 2)
	s.AddWorker()
	s.CreateTask(tp.Normal) // 1002 -> worker 2
	clock.Advance(testProcessingTime / 2)
	// worker 1 finished 1001 and is idle, worker 2 still holds 1002
	ev.Reset()

	w, ok := s.RemoveWorker()
	require.True(t, ok)
	assert.Equal(t, 2, w.ID)

	assert.Empty(t, s.PendingTasks())
	workers := s.Workers()
	require.Len(t, workers, 1)
	require.NotNil(t, workers[0].Task)
	assert.Equal(t, 1002, workers[0].Task.ID)
	assert.Equal(t, []string{
		"Worker 2 destroyed; Task 1002 (normal) returned to queue",
		"Task 1002 (normal) assigned to Worker 1",
	}, ev.Lines())
}

func TestSchedulerCompletionPicksNextTask(t *testing.T) {
	s, clock, ev := newTestScheduler(t)

	s.AddWorker()
	s.CreateTask(tp.Normal)
	s.CreateTask(tp.Normal)
	before := s.Status()
	require.Equal(t, 1, before.PendingTasks)
	ev.Reset()

	clock.Advance(testProcessingTime)

	after := s.Status()
	assert.Equal(t, before.CompletedTasks+1, after.CompletedTasks)
	assert.Equal(t, before.PendingTasks-1, after.PendingTasks)
	assert.Equal(t, 1, after.ProcessingWorkers)

	workers := s.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, 1002, workers[0].Task.ID)

	completed := s.CompletedTasks()
	require.Len(t, completed, 1)
	assert.Equal(t, 1001, completed[0].ID)
	assert.Equal(t, tp.TaskComplete, completed[0].Status)

	assert.Equal(t, []string{
		"Task 1001 (normal) completed by Worker 1",
		"Task 1002 (normal) assigned to Worker 1",
	}, ev.Lines())

	ev.Reset()
	clock.Advance(testProcessingTime)
	assert.Equal(t, []string{
		"Task 1002 (normal) completed by Worker 1",
		"Worker 1 is idle, no pending tasks",
	}, ev.Lines())
	assert.Equal(t, []int{1001, 1002}, taskIDs(s.CompletedTasks()))
}

func TestSchedulerIDMonotonicity(t *testing.T) {
	clock := newTestClock()
	opts := newTestOptions(clock, &events{})
	opts.TaskIDStart = 500
	opts.WorkerIDStart = 10
	s := tp.NewScheduler(opts)

	var taskIDsSeen, workerIDsSeen []int
	for i := 0; i < 20; i++ {
		switch i % 3 {
		case 0:
			workerIDsSeen = append(workerIDsSeen, s.AddWorker().ID)
		case 1:
			taskIDsSeen = append(taskIDsSeen, s.CreateTask(tp.High).ID)
		default:
			taskIDsSeen = append(taskIDsSeen, s.CreateTask(tp.Normal).ID)
			if _, ok := s.RemoveWorker(); ok {
				clock.Advance(testProcessingTime / 2)
			}
		}
	}

	for i, id := range taskIDsSeen {
		assert.Equal(t, 500+i, id)
	}
	for i, id := range workerIDsSeen {
		assert.Equal(t, 10+i, id)
	}
}

func TestSchedulerInstancesAreIndependent(t *testing.T) {
	a, _, _ := newTestScheduler(t)
	b, _, _ := newTestScheduler(t)

	assert.Equal(t, 1001, a.CreateTask(tp.Normal).ID)
	assert.Equal(t, 1002, a.CreateTask(tp.Normal).ID)
	assert.Equal(t, 1001, b.CreateTask(tp.Normal).ID)
	assert.Equal(t, 1, a.AddWorker().ID)
	assert.Equal(t, 1, b.AddWorker().ID)
}

func TestSchedulerAssignmentDeterminism(t *testing.T) {
	run := func() []tp.WorkerInfo {
		s, _, _ := newTestScheduler(t)
		for _, p := range []tp.Priority{tp.Normal, tp.High, tp.Normal, tp.High, tp.Normal} {
			s.CreateTask(p)
		}
		for i := 0; i < 3; i++ {
			s.AddWorker()
		}
		return s.Workers()
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
	assert.Equal(t, 1002, first[0].Task.ID)
	assert.Equal(t, 1004, first[1].Task.ID)
	assert.Equal(t, 1001, first[2].Task.ID)
}

func TestSchedulerStatusCounts(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	s.AddWorker()
	s.AddWorker()
	s.AddWorker()
	s.CreateTask(tp.High)
	s.CreateTask(tp.Normal)
	clock.Advance(testProcessingTime) // both complete
	s.CreateTask(tp.High)             // processing
	s.RemoveWorker()
	s.RemoveWorker() // workers 3 and 2 were idle; worker 1 holds 1003
	s.CreateTask(tp.Normal)
	s.CreateTask(tp.High)

	assert.Equal(t, tp.Status{
		TotalTasks:        5,
		HighTasks:         3,
		NormalTasks:       2,
		PendingTasks:      2,
		ProcessingTasks:   1,
		CompletedTasks:    2,
		Workers:           1,
		IdleWorkers:       0,
		ProcessingWorkers: 1,
	}, s.Status())
	assert.Equal(t, []int{1005, 1004}, taskIDs(s.PendingTasks()))
}

func TestSchedulerSnapshotsAreCopies(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.AddWorker()
	s.CreateTask(tp.Normal)
	s.CreateTask(tp.Normal)

	pending := s.PendingTasks()
	pending[0].Status = tp.TaskComplete
	pending[0].ID = 42

	workers := s.Workers()
	workers[0].Task.Status = tp.TaskPending
	workers[0].Status = tp.WorkerIdle

	assert.Equal(t, tp.TaskPending, s.PendingTasks()[0].Status)
	assert.Equal(t, 1002, s.PendingTasks()[0].ID)
	assert.Equal(t, tp.WorkerProcessing, s.Workers()[0].Status)
	assert.Equal(t, tp.TaskProcessing, s.Workers()[0].Task.Status)
}

func TestSchedulerNotifierPanicDoesNotAbort(t *testing.T) {
	var reported []error
	clock := newTestClock()
	s := tp.NewScheduler(tp.Options{
		ProcessingTime: time.Second,
		Clock:          clock,
		Notify:         func(string) { panic("sink down") },
		OnNotifyError:  func(err error) { reported = append(reported, err) },
	})

	s.AddWorker()
	task := s.CreateTask(tp.High)
	assert.Equal(t, tp.TaskProcessing, task.Status)
	clock.Advance(time.Second)
	assert.Len(t, s.CompletedTasks(), 1)

	// worker created, task created, assigned, completed, idle
	assert.Len(t, reported, 5)
	assert.ErrorContains(t, reported[0], "sink down")
}

func TestSchedulerMetrics(t *testing.T) {
	m := &tp.AtomicMetrics{}
	clock := newTestClock()
	s := tp.NewScheduler(tp.Options{ProcessingTime: time.Second, Clock: clock, Metrics: m})

	s.AddWorker()
	s.CreateTask(tp.Normal)
	s.CreateTask(tp.Normal)
	s.RemoveWorker()
	s.AddWorker()
	clock.Advance(2 * time.Second)

	assert.Equal(t, uint64(2), m.Created())
	assert.Equal(t, uint64(3), m.Assigned())
	assert.Equal(t, uint64(2), m.Completed())
	assert.Equal(t, uint64(1), m.Preempted())
}

func TestOptionsFillDefaults(t *testing.T) {
	var o tp.Options
	o.FillDefaults()

	assert.NotEmpty(t, o.Name)
	assert.Equal(t, tp.DefaultTaskIDStart, o.TaskIDStart)
	assert.Equal(t, tp.DefaultWorkerIDStart, o.WorkerIDStart)
	assert.Equal(t, tp.DefaultProcessingTime, o.ProcessingTime)
	assert.NotNil(t, o.Clock)
	assert.NotNil(t, o.Metrics)
	assert.NotNil(t, o.Ctx)

	o = tp.Options{TaskIDStart: 1, WorkerIDStart: 1, ProcessingTime: tp.Immediate}
	o.FillDefaults()
	assert.Equal(t, 1, o.TaskIDStart)
	assert.Equal(t, 1, o.WorkerIDStart)
	assert.Equal(t, tp.Immediate, o.ProcessingTime)

	// twice, as NewLoop and NewScheduler both do
	o.FillDefaults()
	assert.Equal(t, tp.Immediate, o.ProcessingTime)
}

func TestSchedulerIDStart(t *testing.T) {
	tests := []struct {
		name        string
		taskStart   int
		workerStart int
		wantTask    int
		wantWorker  int
	}{
		{name: "One", taskStart: 1, workerStart: 1, wantTask: 1, wantWorker: 1},
		{name: "Custom", taskStart: 500, workerStart: 20, wantTask: 500, wantWorker: 20},
		{name: "ZeroMeansDefault", taskStart: 0, workerStart: 0, wantTask: tp.DefaultTaskIDStart, wantWorker: tp.DefaultWorkerIDStart},
		{name: "NegativeMeansDefault", taskStart: -5, workerStart: -5, wantTask: tp.DefaultTaskIDStart, wantWorker: tp.DefaultWorkerIDStart},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := newTestOptions(newTestClock(), &events{})
			opts.TaskIDStart = tc.taskStart
			opts.WorkerIDStart = tc.workerStart
			s := tp.NewScheduler(opts)

			assert.Equal(t, tc.wantWorker, s.AddWorker().ID)
			assert.Equal(t, tc.wantTask, s.CreateTask(tp.Normal).ID)
			assert.Equal(t, tc.wantTask+1, s.CreateTask(tp.Normal).ID)
		})
	}
}

func TestSchedulerRejectsUnknownPriority(t *testing.T) {
	s, _, ev := newTestScheduler(t)
	s.AddWorker()
	ev.Reset()

	assert.PanicsWithError(t, "taskpool: invalid priority: 7", func() { s.CreateTask(tp.Priority(7)) })

	assert.Empty(t, ev.Lines())
	assert.Equal(t, tp.Status{Workers: 1, IdleWorkers: 1}, s.Status())

	// the id was not consumed
	assert.Equal(t, 1001, s.CreateTask(tp.High).ID)
}

func TestSchedulerImmediateProcessing(t *testing.T) {
	clock := newTestClock()
	ev := &events{}
	opts := newTestOptions(clock, ev)
	opts.ProcessingTime = tp.Immediate
	s := tp.NewScheduler(opts)

	s.AddWorker()
	s.CreateTask(tp.Normal)
	s.CreateTask(tp.High)
	assert.Equal(t, 1, clock.Pending())

	start := clock.Now()
	clock.Advance(0)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, []int{1001, 1002}, taskIDs(s.CompletedTasks()))
	assert.False(t, s.Status().Busy())
	assert.Equal(t, "Worker 1 is idle, no pending tasks", ev.Lines()[len(ev.Lines())-1])
}
