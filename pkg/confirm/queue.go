// Package confirm serializes yes/no decisions raised by session components.
package confirm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Confirmation is one queued decision. Only Headline is required.
type Confirmation struct {
	ID          string
	Headline    string
	Description string
	Content     string
	AcceptLabel string
	CancelLabel string
	OnAccept    func()
	OnCancel    func()
}

// Queue is a FIFO of confirmations; the front entry is the visible one. It
// is not safe for concurrent use.
type Queue struct {
	items    []*Confirmation
	onChange []func(visible bool)
	logger   *logrus.Entry
}

// NewQueue creates an empty queue.
func NewQueue(logger *logrus.Entry) *Queue {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Queue{logger: logger}
}

// OnChange registers a hook called whenever the visible entry changes.
func (q *Queue) OnChange(fn func(visible bool)) {
	q.onChange = append(q.onChange, fn)
}

// Push appends c and returns its id.
func (q *Queue) Push(c *Confirmation) string {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.AcceptLabel == "" {
		c.AcceptLabel = "Yes"
	}
	if c.CancelLabel == "" {
		c.CancelLabel = "No"
	}
	q.items = append(q.items, c)
	if len(q.items) == 1 {
		q.notify()
	}
	return c.ID
}

// PopFront removes and returns the front entry without running callbacks.
func (q *Queue) PopFront() (*Confirmation, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.notify()
	return c, true
}

// Current returns the visible entry.
func (q *Queue) Current() (*Confirmation, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Visible reports whether a confirmation is shown.
func (q *Queue) Visible() bool {
	return len(q.items) > 0
}

// Len returns the number of queued confirmations.
func (q *Queue) Len() int {
	return len(q.items)
}

// Accept runs the accept callback of the visible entry and advances.
func (q *Queue) Accept() error {
	return q.dismiss(true)
}

// Cancel runs the cancel callback of the visible entry and advances.
func (q *Queue) Cancel() error {
	return q.dismiss(false)
}

// dismiss runs the callback while its entry is still visible, then advances
// the queue, even if the callback panics. The recovered panic is returned as
// an error.
func (q *Queue) dismiss(accept bool) error {
	c, ok := q.Current()
	if !ok {
		return nil
	}
	defer q.remove(c)
	fn := c.OnCancel
	if accept {
		fn = c.OnAccept
	}
	if fn == nil {
		return nil
	}
	return q.invoke(c, fn)
}

// remove drops c wherever it sits; a callback may already have advanced past it.
func (q *Queue) remove(c *Confirmation) {
	for i, x := range q.items {
		if x != c {
			continue
		}
		if i == 0 {
			q.PopFront()
			return
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return
	}
}

func (q *Queue) invoke(c *Confirmation, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("confirmation %q callback panicked: %v", c.Headline, r)
			q.logger.WithField("id", c.ID).Error(err)
		}
	}()
	fn()
	return nil
}

func (q *Queue) notify() {
	visible := q.Visible()
	for _, fn := range q.onChange {
		fn(visible)
	}
}
