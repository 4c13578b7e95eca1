package telemetry

import (
	"sync"
	"testing"

	gosentry "github.com/getsentry/sentry-go"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	require.NoError(t, Init(Options{}))
	assert.False(t, IsEnabled())

	// safe no-ops
	CaptureReport("ws", models.ErrorReport{Key: "k", Message: "m"})
	Flush()
}

func TestCaptureReport(t *testing.T) {
	var mu sync.Mutex
	var events []*gosentry.Event
	require.NoError(t, Init(Options{
		DSN:     "https://public@example.com/1",
		Version: "test",
		BeforeSend: func(e *gosentry.Event, _ *gosentry.EventHint) *gosentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
			return nil
		},
	}))
	t.Cleanup(func() { enabled.Store(false) })
	assert.True(t, IsEnabled())

	CaptureReport("http://localhost:8000", models.ErrorReport{Key: "plan", Message: "plan failed", Traceback: "tb"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "plan failed", events[0].Message)
	assert.Equal(t, "plan", events[0].Tags["error_key"])
	assert.Equal(t, "mirror@test", events[0].Release)
}
