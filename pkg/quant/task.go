package quant

import "context"

// Task is a quantization running in its own goroutine. It completes exactly
// once; Cancel stops it at the next stage boundary.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	result *Result
	err    error
}

// Go starts Quantize in the background. Cancelling ctx has the same effect
// as calling Cancel.
func Go(ctx context.Context, r *Raster, p Params) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = Quantize(ctx, r, p)
	}()
	return t
}

// Wait blocks until the task has finished and returns its outcome.
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}

// Cancel asks the task to stop. It is safe to call more than once and after
// the task has finished.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
