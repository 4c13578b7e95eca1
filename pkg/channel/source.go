package channel

import (
	"context"
	"time"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/sirupsen/logrus"
)

// Source is a push transport that feeds a Publisher until ctx is done.
type Source interface {
	Run(ctx context.Context, pub Publisher) error
}

// Envelope is the framing used when the transport does not name the topic
// itself.
type Envelope struct {
	Topic   models.Topic `json:"topic"`
	Payload any          `json:"payload"`
}

// Backoff bounds the delay between reconnect attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff is used by sources created without an explicit backoff.
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second}

// runWithRetry calls connect until ctx is done, sleeping between attempts.
// A connection that delivered at least one message resets the delay.
func runWithRetry(ctx context.Context, b Backoff, logger *logrus.Entry, endpoint string, connect func(context.Context) (int, error)) error {
	delay := b.Initial
	for {
		delivered, err := connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if delivered > 0 {
			delay = b.Initial
		}
		entry := logger.WithFields(logrus.Fields{"endpoint": endpoint, "retry_in": delay})
		if err != nil {
			entry.WithError(err).Warn("Channel connection failed")
		} else {
			entry.Info("Channel stream ended")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.Max {
			delay = b.Max
		}
	}
}
