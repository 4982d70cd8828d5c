package taskpool

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPriority is returned when a priority name cannot be parsed
	// or a Priority value is neither High nor Normal.
	ErrInvalidPriority = errors.New("taskpool: invalid priority")

	// ErrWorkerBusy is the panic value raised when a task is assigned
	// to a worker that is already processing one.
	ErrWorkerBusy = errors.New("taskpool: worker is already processing a task")
)

// Priority is the class of a task. There are exactly two classes;
// every High task is dispatched before any Normal task.
type Priority uint8

const (
	Normal Priority = iota
	High
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	default:
		return "unknown"
	}
}

// ParsePriority maps "high" and "normal" (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High, nil
	case "normal", "":
		return Normal, nil
	}
	return Normal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Validate reports ErrInvalidPriority for anything but High and Normal.
func (p Priority) Validate() error {
	if p != High && p != Normal {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, uint8(p))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// TaskStatus tracks where a task currently lives:
// Pending in the queue, Processing on a worker, Complete in the completed list.
type TaskStatus uint8

const (
	TaskPending TaskStatus = iota
	TaskProcessing
	TaskComplete
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskProcessing:
		return "processing"
	case TaskComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Task is a single unit of work. ID, Priority and CreatedAt never change
// after creation; Status is mutated only by the scheduler and its workers.
type Task struct {
	ID        int        `json:"id"`
	Priority  Priority   `json:"priority"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (t *Task) String() string {
	return fmt.Sprintf("Task %d (%s)", t.ID, t.Priority)
}

// copyTasks returns value copies so callers can never reach scheduler state.
func copyTasks(in []*Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = *t
	}
	return out
}
