package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	topic   models.Topic
	payload any
}

type chanPublisher chan message

func (c chanPublisher) Publish(topic models.Topic, payload any) {
	c <- message{topic: topic, payload: payload}
}

func receive(t *testing.T, ch chanPublisher, n int) []message {
	t.Helper()
	var out []message
	for len(out) < n {
		select {
		case m := <-ch:
			out = append(out, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d messages", len(out), n)
		}
	}
	return out
}

func TestMemoryBusDeliversPerTopicInOrder(t *testing.T) {
	bus := NewMemoryBus(nil)
	var got []any
	sub := bus.Subscribe(models.TopicFile, func(p any) { got = append(got, p) })
	other := 0
	bus.Subscribe(models.TopicModels, func(any) { other++ })

	bus.Publish(models.TopicFile, 1)
	bus.Publish(models.TopicFile, 2)
	bus.Publish(models.TopicErrors, 3)

	assert.Equal(t, []any{1, 2}, got)
	assert.Equal(t, 0, other)
	assert.Equal(t, models.TopicFile, sub.Topic())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewMemoryBus(nil)
	calls := 0
	a := bus.Subscribe(models.TopicFile, func(any) { calls++ })
	b := bus.Subscribe(models.TopicFile, func(any) { calls += 10 })

	a.Unsubscribe()
	a.Unsubscribe()
	assert.Equal(t, 1, bus.Subscribers(models.TopicFile))

	bus.Publish(models.TopicFile, nil)
	assert.Equal(t, 10, calls)

	b.Unsubscribe()
	assert.Equal(t, 0, bus.Subscribers(models.TopicFile))
}

func TestDecode(t *testing.T) {
	payload := map[string]any{
		"done":    true,
		"status":  "success",
		"promote": "prod",
		"start":   float64(10),
	}
	u, err := Decode[models.TrackerUpdate](models.TopicPlanApply, payload)
	require.NoError(t, err)
	assert.True(t, u.Done)
	assert.Equal(t, models.TrackerSuccess, u.Status)
	assert.Equal(t, int64(10), u.Start)

	_, err = Decode[models.TrackerUpdate](models.TopicPlanApply, "not an object")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed))

	_, err = Decode[[]models.Model](models.TopicModels, nil)
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed))
}

func TestDecodeRejectsMistypedPayloads(t *testing.T) {
	_, err := Decode[[]models.Model](models.TopicModels, map[string]any{"oops": float64(1)})
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed), "object where a list is expected")

	_, err = Decode[models.TrackerUpdate](models.TopicPlanApply, map[string]any{"done": "true"})
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed), "string where a bool is expected")

	ev, err := DecodeFileEvent(map[string]any{
		"changes": map[string]any{"change": "Deleted", "path": "/a/b.sql"},
	})
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed), "object where the change list is expected")
	assert.Empty(t, ev.Changes)
}

func TestDecodeFileEvent(t *testing.T) {
	ev, err := DecodeFileEvent(map[string]any{
		"changes": []any{
			map[string]any{"change": "Deleted", "path": "/a/b.sql"},
			map[string]any{"change": "Modified", "path": "/a/c.sql", "file": map[string]any{"content": "select 1"}},
		},
		"directories": map[string]any{
			"/a": map[string]any{"name": "a", "path": "/a", "files": []any{map[string]any{"name": "d.sql", "path": "/a/d.sql"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, ev.Changes, 2)
	assert.Equal(t, models.ChangeDeleted, ev.Changes[0].Change)
	assert.Equal(t, models.ChangeModified, ev.Changes[1].Change)
	require.NotNil(t, ev.Changes[1].File)
	assert.Equal(t, "select 1", ev.Changes[1].File.Body())
	assert.Equal(t, "/a/d.sql", ev.Directories["/a"].Files[0].Path)

	_, err = DecodeFileEvent(map[string]any{
		"changes": []any{
			map[string]any{"change": "Added", "path": "/ok.sql"},
			map[string]any{"change": "Renamed", "path": "/x.sql"},
		},
	})
	assert.True(t, errors.Is(err, errors.ErrCodePayloadMalformed))

	_, err = DecodeFileEvent(map[string]any{
		"changes": []any{map[string]any{"change": "Added"}},
	})
	assert.Error(t, err)
}

func TestSSESource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: plan-apply\ndata: {\"done\": false}\n\n")
		fmt.Fprint(w, "event: file\ndata: not json\n\n")
		fmt.Fprint(w, "data: {\"topic\": \"models\", \"payload\": []}\n\n")
		fmt.Fprint(w, "event: errors\ndata: {\"key\": \"k\",\ndata: \"message\": \"m\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pub := make(chanPublisher, 10)
	src := NewSSESource(srv.URL, nil, nil)

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, pub) }()

	msgs := receive(t, pub, 3)
	assert.Equal(t, models.TopicPlanApply, msgs[0].topic)
	assert.Equal(t, map[string]any{"done": false}, msgs[0].payload)
	assert.Equal(t, models.TopicModels, msgs[1].topic)
	assert.Equal(t, []any{}, msgs[1].payload)
	assert.Equal(t, models.TopicErrors, msgs[2].topic)
	assert.Equal(t, map[string]any{"key": "k", "message": "m"}, msgs[2].payload)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop")
	}
}

func TestSSESourceRetriesAfterBadStatus(t *testing.T) {
	attempts := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts <- struct{}{}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := NewSSESource(srv.URL, nil, nil)
	src.Backoff = Backoff{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	go func() { _ = src.Run(ctx, make(chanPublisher, 1)) }()

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("expected reconnect attempt")
		}
	}
}

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"topic": "plan-cancel", "payload": map[string]any{"done": true}})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{broken"))
		_ = conn.WriteJSON(map[string]any{"payload": 1})
		_ = conn.WriteJSON(map[string]any{"topic": "file", "payload": map[string]any{"changes": []any{}}})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pub := make(chanPublisher, 10)
	src := NewWebSocketSource("ws"+strings.TrimPrefix(srv.URL, "http"), "", nil)

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, pub) }()

	msgs := receive(t, pub, 2)
	assert.Equal(t, models.TopicPlanCancel, msgs[0].topic)
	assert.Equal(t, map[string]any{"done": true}, msgs[0].payload)
	assert.Equal(t, models.TopicFile, msgs[1].topic)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop")
	}
}
