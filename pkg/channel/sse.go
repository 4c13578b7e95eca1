package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/sirupsen/logrus"
)

// SSESource reads Server-Sent Events. A frame's "event:" field names the
// topic; frames without one must carry an Envelope in their data.
type SSESource struct {
	URL     string
	Client  *http.Client
	Backoff Backoff
	logger  *logrus.Entry
}

// NewSSESource creates a source for url. client may be nil, in which case a
// client without timeout is used since the stream is long-lived.
func NewSSESource(url string, client *http.Client, logger *logrus.Entry) *SSESource {
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SSESource{URL: url, Client: client, Backoff: DefaultBackoff, logger: logger}
}

// Run streams events into pub, reconnecting until ctx is done.
func (s *SSESource) Run(ctx context.Context, pub Publisher) error {
	return runWithRetry(ctx, s.Backoff, s.logger, s.URL, func(ctx context.Context) (int, error) {
		return s.stream(ctx, pub)
	})
}

func (s *SSESource) stream(ctx context.Context, pub Publisher) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 0, errors.TransportFailed(s.URL, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, errors.TransportFailed(s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.TransportFailed(s.URL, fmt.Errorf("stream returned status %d", resp.StatusCode))
	}
	s.logger.WithField("endpoint", s.URL).Debug("Channel stream connected")

	scanner := bufio.NewScanner(resp.Body)
	// Increase buffer size to handle large directory snapshots (default is 64KB)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	delivered := 0
	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if len(data) > 0 && s.dispatch(pub, event, strings.Join(data, "\n")) {
				delivered++
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return delivered, errors.TransportFailed(s.URL, err)
	}
	return delivered, nil
}

func (s *SSESource) dispatch(pub Publisher, event, data string) bool {
	if event != "" {
		var payload any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			s.logger.WithError(err).WithField("topic", event).Debug("Dropping malformed event")
			return false
		}
		pub.Publish(models.Topic(event), payload)
		return true
	}

	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil || env.Topic == "" {
		s.logger.WithField("data_len", len(data)).Debug("Dropping event without topic")
		return false
	}
	pub.Publish(env.Topic, env.Payload)
	return true
}
