package backfill

import "errors"

// ErrQueueFull is returned when a continuation cannot be scheduled. The
// caller must surface the task's cursor so an operator can resume the
// sweep manually.
var ErrQueueFull = errors.New("backfill queue full")

// Task is one continuation unit: resume the sweep after Cursor. Batch
// counts the pages processed so far in this sweep.
type Task struct {
	Cursor string
	Batch  int
}

// Queue is the work-queue abstraction continuations are handed to. The
// handoff is stateless: the task carries the full resumption state.
type Queue interface {
	Enqueue(task Task) error
}

// MemoryQueue is a bounded in-process queue drained by the Coordinator.
type MemoryQueue struct {
	ch chan Task
}

// NewMemoryQueue creates a queue holding at most size pending tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan Task, size)}
}

// Enqueue adds a task without blocking. Returns ErrQueueFull when the
// queue cannot accept it.
func (q *MemoryQueue) Enqueue(task Task) error {
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Tasks exposes the drain channel for the coordinator.
func (q *MemoryQueue) Tasks() <-chan Task {
	return q.ch
}
