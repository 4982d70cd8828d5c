package taskpool

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTaskIDStart    = 1001
	DefaultWorkerIDStart  = 1
	DefaultProcessingTime = 5 * time.Second
)

// Immediate is a ProcessingTime whose completion timers fire with zero
// delay: on the next ManualClock.Advance, or as soon as the Loop gets to
// them with a RealClock.
const Immediate time.Duration = -1

// Options configure a Scheduler.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// Name identifies the scheduler in logs and spans.
	Name string

	// TaskIDStart is the id of the first created task. Ids start at 1;
	// values below 1 select DefaultTaskIDStart.
	TaskIDStart int

	// WorkerIDStart is the id of the first added worker. Values below 1
	// select DefaultWorkerIDStart.
	WorkerIDStart int

	// ProcessingTime is how long a worker holds a task before it completes.
	// Zero selects DefaultProcessingTime; any negative value, such as
	// Immediate, means no delay.
	ProcessingTime time.Duration

	// Clock creates completion timers. A Scheduler used without a Loop
	// needs a Clock whose callbacks run on the caller's goroutine, such
	// as ManualClock.
	Clock Clock

	// Notify receives one human-readable line per scheduler event.
	Notify func(string)

	// OnNotifyError is called when Notify panics.
	OnNotifyError func(error)

	// Metrics receives cumulative counters.
	Metrics MetricsPolicy

	// Ctx carries the logger used by the scheduler.
	Ctx context.Context

	// PinLoop locks the Loop goroutine to an OS thread bound to LoopCPU.
	// Linux only; elsewhere a warning is logged and the loop runs unpinned.
	PinLoop bool
	LoopCPU int
}

func (o *Options) FillDefaults() {
	if o.Name == "" {
		o.Name = "taskpool-" + uuid.NewString()[:8]
	}
	if o.TaskIDStart <= 0 {
		o.TaskIDStart = DefaultTaskIDStart
	}
	if o.WorkerIDStart <= 0 {
		o.WorkerIDStart = DefaultWorkerIDStart
	}
	if o.ProcessingTime == 0 {
		o.ProcessingTime = DefaultProcessingTime
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
}
