package channel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/mirror/errors"
	"github.com/sirupsen/logrus"
)

// WebSocketSource reads Envelope frames from a WebSocket endpoint.
type WebSocketSource struct {
	URL          string
	Dialer       *websocket.Dialer
	Header       http.Header
	PingInterval time.Duration
	ReadTimeout  time.Duration
	Backoff      Backoff
	logger       *logrus.Entry
}

// NewWebSocketSource creates a source for url. If socketPath is set the
// connection is dialed over that unix socket instead of the URL host.
func NewWebSocketSource(url, socketPath string, logger *logrus.Entry) *WebSocketSource {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	if socketPath != "" {
		dialer.NetDialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WebSocketSource{
		URL:          url,
		Dialer:       &dialer,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		Backoff:      DefaultBackoff,
		logger:       logger,
	}
}

// Run reads frames into pub, reconnecting until ctx is done.
func (s *WebSocketSource) Run(ctx context.Context, pub Publisher) error {
	return runWithRetry(ctx, s.Backoff, s.logger, s.URL, func(ctx context.Context) (int, error) {
		return s.stream(ctx, pub)
	})
}

func (s *WebSocketSource) stream(ctx context.Context, pub Publisher) (int, error) {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return 0, errors.TransportFailed(s.URL, err)
	}
	s.logger.WithField("endpoint", s.URL).Debug("Channel websocket connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	})

	var writeMu sync.Mutex
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(conn, &writeMu, done)
	}()

	// Unblock ReadJSON when the owner goes away.
	stop := context.AfterFunc(ctx, func() {
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		_ = conn.Close()
	})

	defer func() {
		stop()
		close(done)
		wg.Wait()
		_ = conn.Close()
	}()

	delivered := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return delivered, nil
			}
			if isDecodeError(err) {
				s.logger.WithError(err).Debug("Dropping malformed frame")
				continue
			}
			return delivered, errors.TransportFailed(s.URL, err)
		}
		if env.Topic == "" {
			s.logger.Debug("Dropping frame without topic")
			continue
		}
		pub.Publish(env.Topic, env.Payload)
		delivered++
	}
}

func (s *WebSocketSource) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			writeMu.Unlock()
			if err != nil {
				s.logger.WithError(err).Debug("Ping failed")
				return
			}
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr)
}
