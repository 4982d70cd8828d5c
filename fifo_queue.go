package taskpool

const (
	initialFifoCapacity = 16
)

// fifoQueue is a growable circular buffer of tasks.
//
// Tasks leave in exactly the order they entered. When the buffer is full
// Push doubles its capacity instead of dropping, so the queue never loses
// a task.
type fifoQueue struct {
	buf        []*Task // circular buffer
	head, tail int     // read/write indices
	size       int     // number of tasks currently buffered
}

func newFifoQueue(capacity int) *fifoQueue {
	if capacity <= 0 {
		capacity = initialFifoCapacity
	}
	return &fifoQueue{buf: make([]*Task, capacity)}
}

// Len returns the number of tasks currently waiting in the queue.
func (q *fifoQueue) Len() int { return q.size }

// Push inserts a task at the tail.
func (q *fifoQueue) Push(t *Task) {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[q.tail] = t
	q.tail++
	if q.tail == len(q.buf) {
		q.tail = 0
	}
	q.size++
}

// Pop removes and returns the oldest task.
//
// If the queue is empty, returns nil and false.
func (q *fifoQueue) Pop() (*Task, bool) {
	if q.size == 0 {
		return nil, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = nil
	q.head++
	if q.head == len(q.buf) {
		q.head = 0
	}
	q.size--
	return t, true
}

// appendTo appends the queued tasks, oldest first, to dst.
func (q *fifoQueue) appendTo(dst []*Task) []*Task {
	for i := 0; i < q.size; i++ {
		dst = append(dst, q.buf[(q.head+i)%len(q.buf)])
	}
	return dst
}

func (q *fifoQueue) clear() {
	clear(q.buf)
	q.head, q.tail, q.size = 0, 0, 0
}

func (q *fifoQueue) grow() {
	next := make([]*Task, 2*len(q.buf))
	n := copy(next, q.buf[q.head:])
	copy(next[n:], q.buf[:q.tail])
	q.buf = next
	q.head = 0
	q.tail = q.size
}
