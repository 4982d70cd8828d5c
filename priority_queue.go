package taskpool

// PriorityQueue orders pending tasks: every High task precedes every Normal
// task, and tasks of the same class keep their insertion order.
//
// The two classes are kept in separate FIFO rings and concatenated on read,
// so there is no cached boundary index that mutators have to keep in sync.
// A PriorityQueue is not safe for concurrent use.
type PriorityQueue struct {
	high   *fifoQueue
	normal *fifoQueue
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		high:   newFifoQueue(initialFifoCapacity),
		normal: newFifoQueue(initialFifoCapacity),
	}
}

func (q *PriorityQueue) class(p Priority) *fifoQueue {
	if p == High {
		return q.high
	}
	return q.normal
}

// Enqueue places t behind the last queued task of its class. A High task
// therefore lands in front of every queued Normal task.
func (q *PriorityQueue) Enqueue(t *Task) {
	q.class(t.Priority).Push(t)
}

// Dequeue removes and returns the front task: the oldest High task, or the
// oldest Normal task when no High task is queued. It returns nil, false on
// an empty queue.
func (q *PriorityQueue) Dequeue() (*Task, bool) {
	if t, ok := q.high.Pop(); ok {
		return t, true
	}
	return q.normal.Pop()
}

// Len returns the number of queued tasks.
func (q *PriorityQueue) Len() int { return q.high.Len() + q.normal.Len() }

// IsEmpty reports whether no task is queued.
func (q *PriorityQueue) IsEmpty() bool { return q.Len() == 0 }

// Snapshot returns the queued tasks in dispatch order. The slice is freshly
// allocated; the task pointers are shared with the queue.
func (q *PriorityQueue) Snapshot() []*Task {
	out := make([]*Task, 0, q.Len())
	out = q.high.appendTo(out)
	return q.normal.appendTo(out)
}

// Clear drops every queued task.
func (q *PriorityQueue) Clear() {
	q.high.clear()
	q.normal.clear()
}
