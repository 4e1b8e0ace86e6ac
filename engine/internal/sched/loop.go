// Package sched provides the engine's single-threaded cooperative loop.
// All engine work — scans, batch slices, observer callbacks, sweep ticks,
// frame load retries — is posted here and interleaves on one goroutine,
// so component state needs no locking and batch slices run to completion
// once started.
package sched

import (
	"fmt"
	"sync"
	"time"
)

// Loop executes posted functions sequentially on a dedicated goroutine.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	// onPanic receives errors recovered from posted work. Work after a
	// recovered panic keeps running.
	onPanic func(error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithPanicHandler routes recovered panics from posted work. Default:
// panics are re-raised.
func WithPanicHandler(fn func(error)) Option {
	return func(l *Loop) { l.onPanic = fn }
}

// NewLoop starts the loop goroutine.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		tasks: make(chan func(), 1024),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if l.onPanic != nil {
				l.onPanic(fmt.Errorf("sched: recovered: %v", r))
				return
			}
			panic(r)
		}
	}()
	fn()
}

// Post queues fn for execution. Posting to a closed loop drops the work.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.quit:
	case l.tasks <- fn:
	}
}

// Do posts fn and waits for it to finish. Never call from inside the loop.
func (l *Loop) Do(fn func()) {
	ch := make(chan struct{})
	l.Post(func() {
		defer close(ch)
		fn()
	})
	select {
	case <-ch:
	case <-l.done:
	}
}

// After runs fn on the loop after d. The returned cancel stops the timer;
// cancelling after the callback was posted has no effect.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Every runs fn on the loop at interval d until cancelled. After cancel
// returns, fn does not run again: a tick already queued on the loop
// re-checks the stop channel at execution time.
func (l *Loop) Every(d time.Duration, fn func()) (cancel func()) {
	t := time.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once
	guarded := func() {
		select {
		case <-stop:
		default:
			fn()
		}
	}
	go func() {
		for {
			select {
			case <-t.C:
				l.Post(guarded)
			case <-stop:
				return
			case <-l.quit:
				return
			}
		}
	}()
	return func() {
		once.Do(func() {
			t.Stop()
			close(stop)
		})
	}
}

// Close stops the loop. Queued but unstarted work is dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}
