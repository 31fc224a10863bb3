package notify

import (
	"runtime"
	"sync"
)

// Worker is a Dispatcher backed by one goroutine locked to its OS thread,
// for programs whose main thread is taken by something else, such as a GUI
// event loop.
type Worker struct {
	calls  chan func()
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// NewWorker starts the worker goroutine.
func NewWorker() *Worker {
	w := &Worker{
		calls:  make(chan func()),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.exited)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case fn := <-w.calls:
			fn()
		case <-w.done:
			return
		}
	}
}

// Call runs fn on the worker thread and waits for it. After Close, Call
// returns ErrClosed without running fn.
func (w *Worker) Call(fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case w.calls <- wrapped:
		<-finished
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Close stops the worker and waits for a call in progress to complete.
// It must not be called from inside a Call.
func (w *Worker) Close() {
	w.once.Do(func() { close(w.done) })
	<-w.exited
}
