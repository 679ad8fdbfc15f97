package pool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"chadserv/logger"
)

// ErrPoolClosed is returned by Submit once shutdown has begun.
var ErrPoolClosed = errors.New("pool is shut down")

// Pool is a bounded worker pool draining a FIFO task queue. Tasks are
// dequeued in submission order, but completion order across workers is
// not guaranteed.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	workers int // workers currently alive
	target  int // desired worker count
	stopped bool

	wg     sync.WaitGroup
	queued atomic.Int64
	active atomic.Int64
}

// New creates a pool with n workers. A non-positive n substitutes the
// number of CPUs.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	p.spawnLocked(n)
	p.mu.Unlock()

	logger.Debugf("worker pool started with %d workers", n)
	return p
}

// spawnLocked starts workers until the live count reaches n and raises
// the target. Callers hold p.mu.
func (p *Pool) spawnLocked(n int) {
	p.target = n
	for p.workers < n {
		p.workers++
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped && p.workers <= p.target {
			p.cond.Wait()
		}

		// Retire only once the queue is drained: on shutdown, and on a
		// resize below the live count (lazy retirement).
		if len(p.queue) == 0 {
			p.workers--
			p.mu.Unlock()
			return
		}

		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.queued.Add(-1)
		p.active.Add(1)
		task()
		p.active.Add(-1)
	}
}

// enqueue adds a wrapped task to the queue. Returns ErrPoolClosed after
// Shutdown, so a refused submission is always visible to the caller.
func (p *Pool) enqueue(task func()) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.queued.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Resize changes the desired worker count. Growing spawns workers
// immediately; shrinking marks the excess for retirement, and each
// retiring worker exits after its current claim cycle once no tasks
// remain queued. Workers are never aborted mid-task.
func (p *Pool) Resize(target int) {
	if target <= 0 {
		target = runtime.NumCPU()
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	old := p.workers
	if target > p.workers {
		p.spawnLocked(target)
	} else {
		p.target = target
	}
	p.mu.Unlock()

	if target < old {
		p.cond.Broadcast()
	}
	logger.Debugf("worker pool resized: %d -> %d", old, target)
}

// QueueSize reports the number of tasks waiting for a worker.
func (p *Pool) QueueSize() int {
	return int(p.queued.Load())
}

// ActiveWorkers reports the number of workers currently executing a task.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

// WorkerCount reports the number of live workers.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Shutdown stops the pool and blocks until every queued task has run and
// every worker has exited. Tasks submitted before Shutdown are never
// discarded; submissions after it fail with ErrPoolClosed.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
	logger.Debug("worker pool shut down")
}

// Submit enqueues fn for execution and immediately returns the task
// handle observing its result. It never blocks the caller. A panic
// inside fn is recovered into the task's error and never takes down the
// worker.
func Submit[T any](p *Pool, fn func() (T, error)) (*Task[T], error) {
	t := &Task[T]{done: make(chan struct{})}

	err := p.enqueue(func() {
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
			close(t.done)
		}()
		t.value, t.err = fn()
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
