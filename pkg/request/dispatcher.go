package request

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Poster schedules fn on the owner's event loop. It reports false when the
// loop no longer accepts work.
type Poster func(fn func()) bool

// Handle is an outstanding request. Cancel is safe to call any number of
// times, before or after completion.
type Handle struct {
	ID   string
	Call string

	cancel    context.CancelFunc
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// Cancel abandons the request. Its completion callback will not run.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		h.cancel()
	})
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed once the request function has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Dispatcher runs requests off the event loop and posts their completions
// back onto it.
type Dispatcher struct {
	post   Poster
	logger *logrus.Entry

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose completions go through post.
func NewDispatcher(post Poster, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		post:    post,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Go runs fn on its own goroutine and posts complete with its result unless
// the handle was cancelled first. After CancelAll it returns a handle that is
// already cancelled and never runs fn.
func Go[T any](d *Dispatcher, call string, fn func(context.Context) (T, error), complete func(T, error)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{ID: uuid.NewString(), Call: call, cancel: cancel, done: make(chan struct{})}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		h.Cancel()
		close(h.done)
		return h
	}
	d.handles[h.ID] = h
	d.wg.Add(1)
	d.mu.Unlock()

	log := d.logger.WithFields(logrus.Fields{"call": call, "request": h.ID})
	log.Debug("Request issued")

	go func() {
		defer d.wg.Done()
		defer close(h.done)
		defer cancel()

		v, err := fn(ctx)

		if h.Cancelled() {
			d.release(h)
			log.Debug("Request completed after cancel; dropping result")
			return
		}
		// The handle stays registered until the completion reaches the loop
		// so that CancelAll still sees it while the post is in flight.
		posted := d.post(func() {
			if closed := d.release(h); closed || h.Cancelled() {
				return
			}
			if err != nil {
				log.WithError(err).Debug("Request failed")
			}
			complete(v, err)
		})
		if !posted {
			d.release(h)
			log.Debug("Event loop stopped; dropping result")
		}
	}()
	return h
}

// release unregisters h and reports whether the dispatcher has been closed.
func (d *Dispatcher) release(h *Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handles, h.ID)
	return d.closed
}

// Outstanding returns the number of requests whose completion has not been
// delivered or dropped yet.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// CancelAll cancels every outstanding request and refuses new ones. It is
// idempotent.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	d.closed = true
	handles := make([]*Handle, 0, len(d.handles))
	for _, h := range d.handles {
		handles = append(handles, h)
	}
	d.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	if len(handles) > 0 {
		d.logger.WithField("count", len(handles)).Debug("Cancelled outstanding requests")
	}
}

// Wait blocks until every request goroutine has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
