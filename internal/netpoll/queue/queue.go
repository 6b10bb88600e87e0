package queue

import "sync"

// Task is a asynchronous function.
type Task func() error

// AsyncTaskQueue is a queue storing asynchronous tasks.
type AsyncTaskQueue interface {
	Enqueue(Task)
	Dequeue() Task
	Empty() bool
}

// taskQueue is a FIFO of tasks guarded by a mutex; producers are worker goroutines
// and the consumer is the polling goroutine.
type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

// NewTaskQueue instantiates an empty AsyncTaskQueue.
func NewTaskQueue() AsyncTaskQueue {
	return new(taskQueue)
}

func (q *taskQueue) Enqueue(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Dequeue returns nil when the queue is empty.
func (q *taskQueue) Dequeue() (task Task) {
	q.mu.Lock()
	if len(q.tasks) > 0 {
		task = q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
	}
	q.mu.Unlock()
	return
}

func (q *taskQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) == 0
}
