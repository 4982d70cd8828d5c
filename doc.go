// Package taskpool implements a two-tier priority task scheduler that
// dispatches tasks to a dynamic pool of workers.
//
// Model
//
// A Task has a Priority (High or Normal) and moves through three states:
//
//	Pending --assigned--> Processing --timer fires--> Complete
//	                      Processing --worker removed--> Pending
//
// A Worker holds at most one task. When a task is assigned, the worker
// starts a completion timer of Options.ProcessingTime; when it fires the
// task is Complete and the worker is Idle again.
//
// Ordering
//
// The pending queue keeps two FIFO sequences, one per priority. Every
// High task is dispatched before any Normal task; within a class,
// tasks leave in the order they entered. A task handed back by a
// removed worker re-enters behind the tasks already waiting in its class.
//
// Assignment
//
// Every mutating event (a task created, a worker added or removed, a
// timer fired) ends with an assignment pass: idle workers, in the
// order they were added, each take the front task until the queue is
// empty or no idle worker is left. Workers are removed last-in,
// first-out.
//
// Concurrency
//
// A Scheduler is single-threaded. Drive it directly with a ManualClock
// for deterministic stepping, or wrap it in a Loop, which serializes
// API calls and timer callbacks onto one goroutine and returns value
// snapshots that are safe to share.
//
// Events
//
// Each state change is reported as one human-readable line through
// Options.Notify. A panicking notifier never breaks the scheduler; the
// failure goes to Options.OnNotifyError or the log. The notify package
// provides an asynchronous notifier with retries.
package taskpool
