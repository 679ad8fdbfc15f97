package pool

// Task is the observation handle for one submitted callable. The result
// slot is assigned exactly once, by the worker that claims the task;
// any number of goroutines may observe it.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the task has run and returns its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}

// Done returns a channel closed when the result is available, for
// callers that want to select against a timeout or cancellation.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Ready reports without blocking whether the result is available.
func (t *Task[T]) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
