package stream

import (
	"context"
	"sync"
)

const defaultDispatchQueue = 256

// Dispatcher runs posted callbacks one at a time on a single goroutine, so
// subscribers never see two deliveries concurrently. One dispatcher is shared
// by every topic of an application.
type Dispatcher struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		queue: make(chan func(), defaultDispatchQueue),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.queue:
			fn()
		case <-d.done:
			for {
				select {
				case fn := <-d.queue:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn. It blocks while the queue is full and reports false once
// the dispatcher is closed or ctx ends.
func (d *Dispatcher) Post(ctx context.Context, fn func()) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// loop to exit.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}
