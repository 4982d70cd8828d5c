package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

const (
	defaultBuffer   = 256
	defaultAttempts = 3
	defaultInitial  = 50 * time.Millisecond
	defaultMax      = 2 * time.Second
)

// Config tunes an Async notifier. Zero values fall back to defaults.
type Config struct {
	// Buffer is how many undelivered lines are kept before new ones are dropped.
	Buffer int

	// Attempts is the maximum number of delivery tries per line.
	Attempts int

	// Initial and Max bound the backoff between tries.
	Initial time.Duration
	Max     time.Duration
}

func (c *Config) fillDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.Initial <= 0 {
		c.Initial = defaultInitial
	}
	if c.Max <= 0 {
		c.Max = defaultMax
	}
}

// Async decouples a Sink from the caller. Notify never blocks: lines are
// buffered and delivered in order by a background goroutine, which
// retries failed deliveries with backoff and drops a line once its
// attempts are used up.
type Async struct {
	ctx  context.Context
	sink Sink
	cfg  Config

	mu     sync.RWMutex
	closed bool
	msgs   chan string

	abort     chan struct{}
	abortOnce sync.Once
	done      chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewAsync starts the delivery goroutine. ctx supplies the logger.
func NewAsync(ctx context.Context, sink Sink, cfg Config) *Async {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg.fillDefaults()
	a := &Async{
		ctx:   ctx,
		sink:  sink,
		cfg:   cfg,
		msgs:  make(chan string, cfg.Buffer),
		abort: make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify queues msg for delivery. It has the signature expected by
// taskpool.Options.Notify.
func (a *Async) Notify(msg string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.msgs <- msg:
	default:
		a.dropped.Add(1)
		lg.FromContext(a.ctx).Warn("notification dropped: buffer full", lg.Int("buffer", a.cfg.Buffer))
	}
}

// Close stops accepting lines and waits for the buffered ones to be
// delivered. If ctx expires first, pending retries are abandoned.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.msgs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		a.abortOnce.Do(func() { close(a.abort) })
		return ctx.Err()
	}
}

// Delivered returns the number of lines the sink accepted.
func (a *Async) Delivered() uint64 { return a.delivered.Load() }

// Dropped returns the number of lines that were never delivered.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

func (a *Async) run() {
	defer close(a.done)
	for msg := range a.msgs {
		select {
		case <-a.abort:
			a.dropped.Add(1)
			continue
		default:
		}
		a.deliver(msg)
	}
}

func (a *Async) deliver(msg string) {
	logger := lg.FromContext(a.ctx).With(lg.String("event", msg))
	bo := boff.New(a.cfg.Initial, a.cfg.Max, time.Now().UnixNano())

	for attempt := 1; ; attempt++ {
		err := a.try(msg)
		if err == nil {
			a.delivered.Add(1)
			return
		}
		if attempt >= a.cfg.Attempts {
			a.dropped.Add(1)
			logger.Error("notification dropped", lg.Int("attempt", attempt), lg.Any("error", err))
			return
		}
		delay := bo.Next()
		logger.Warn("notification failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-a.abort:
			timer.Stop()
			a.dropped.Add(1)
			return
		}
	}
}

func (a *Async) try(msg string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: sink panicked: %v", r)
		}
	}()
	return a.sink.Deliver(msg)
}
