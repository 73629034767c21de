package location

import (
	"context"
	"sync"

	"backend-carbondrive/internal/movement"
)

const feedBuffer = 64

// Feed is a Source whose samples are pushed by the caller, e.g. an HTTP
// handler receiving fixes from a phone.
type Feed struct {
	in   chan movement.GeoSample
	out  chan movement.GeoSample
	done chan struct{}
	eof  chan struct{}

	mu      sync.Mutex
	first   *movement.GeoSample
	started bool
	once    sync.Once

	pushMu    sync.RWMutex
	drainOnce sync.Once
}

// NewFeed creates a feed. first, when non-nil, is reported by CurrentFix.
func NewFeed(first *movement.GeoSample) *Feed {
	f := &Feed{
		in:   make(chan movement.GeoSample, feedBuffer),
		out:  make(chan movement.GeoSample),
		done: make(chan struct{}),
		eof:  make(chan struct{}),
	}
	if first != nil {
		s := *first
		f.first = &s
	}
	return f
}

func (f *Feed) CurrentFix(_ context.Context) (movement.GeoSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.first == nil {
		return movement.GeoSample{}, ErrNoFix
	}
	return *f.first, nil
}

// Watch starts forwarding pushed samples. Watching twice returns the same
// subscription.
func (f *Feed) Watch(_ context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed() {
		return nil, ErrClosed
	}
	if !f.started {
		f.started = true
		go f.forward()
	}
	return f, nil
}

// Push queues s for delivery. It blocks while the buffer is full.
func (f *Feed) Push(ctx context.Context, s movement.GeoSample) error {
	f.pushMu.RLock()
	defer f.pushMu.RUnlock()

	select {
	case <-f.done:
		return ErrClosed
	case <-f.eof:
		return ErrClosed
	default:
	}

	select {
	case f.in <- s:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain ends input: further pushes fail with ErrClosed, samples already
// queued are still delivered, then Samples is closed.
func (f *Feed) Drain() {
	f.drainOnce.Do(func() {
		f.pushMu.Lock()
		close(f.eof)
		f.pushMu.Unlock()

		f.mu.Lock()
		started := f.started
		f.mu.Unlock()
		if !started {
			f.Cancel()
		}
	})
}

func (f *Feed) Samples() <-chan movement.GeoSample { return f.out }

// Pending is the number of pushed samples not yet handed to the watcher.
func (f *Feed) Pending() int { return len(f.in) }

// Cancel stops delivery. Safe to call any number of times.
func (f *Feed) Cancel() {
	f.once.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		close(f.done)
		// without a forwarder nobody else closes out
		if !f.started {
			f.started = true
			close(f.out)
		}
	})
}

// Closed reports whether Cancel was called.
func (f *Feed) Closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Feed) forward() {
	defer close(f.out)
	for {
		select {
		case <-f.done:
			return
		case s := <-f.in:
			if !f.send(s) {
				return
			}
		case <-f.eof:
			for {
				select {
				case s := <-f.in:
					if !f.send(s) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (f *Feed) send(s movement.GeoSample) bool {
	select {
	case f.out <- s:
		return true
	case <-f.done:
		return false
	}
}
