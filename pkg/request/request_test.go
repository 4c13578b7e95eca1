package request

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Model{{Name: "db.orders", Path: "models/orders.sql"}})
	})
	mux.HandleFunc("/api/files", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.DirectoryPayload{
			Name:  "project",
			Files: []models.FilePayload{{Name: "a.sql", Path: "a.sql"}},
		})
	})
	mux.HandleFunc("/api/environments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"environments": {"prod": {"name": "prod"}}, "default_target_environment": "dev", "pinned_environments": ["prod"]}`))
	})
	mux.HandleFunc("/api/plan", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"environment": "dev", "skip_tests": true, "include_unmodified": false}, body)
		_ = json.NewEncoder(w).Encode(models.PlanRunResponse{Environment: "dev", PlanID: "p1"})
	})
	mux.HandleFunc("/api/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPService(t *testing.T) {
	srv := newTestServer(t)
	svc := NewHTTPService(srv.URL+"/", "", 5*time.Second)
	ctx := context.Background()

	ms, err := svc.FetchModels(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "db.orders", ms[0].Name)

	root, err := svc.FetchFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.sql", root.Files[0].Path)

	envs, err := svc.FetchEnvironments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", envs.DefaultTargetEnvironment)
	assert.True(t, envs.IsPinned("prod"))

	resp, err := svc.RunPlan(ctx, models.PlanRunRequest{
		Environment: "dev",
		PlanOptions: models.PlanOptions{SkipTests: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.PlanID)
}

func TestHTTPServiceErrors(t *testing.T) {
	srv := newTestServer(t)
	svc := NewHTTPService(srv.URL, "", 5*time.Second)

	err := svc.do(context.Background(), "missing", http.MethodGet, "/api/nope", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRequestFailed))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = svc.do(ctx, "slow", http.MethodGet, "/api/slow", nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeRequestCancelled))
}

// loop is a minimal single-goroutine executor for posted completions.
type loop chan func()

func (l loop) post(fn func()) bool {
	l <- fn
	return true
}

func (l loop) runOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-l:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("no completion posted")
	}
}

func TestDispatcherPostsCompletion(t *testing.T) {
	l := make(loop, 4)
	d := NewDispatcher(l.post, nil)

	var got string
	h := Go(d, "echo", func(ctx context.Context) (string, error) { return "ok", nil }, func(v string, err error) {
		require.NoError(t, err)
		got = v
	})
	l.runOne(t)
	assert.Equal(t, "ok", got)

	<-h.Done()
	h.Cancel()
	h.Cancel()
	assert.Equal(t, 0, d.Outstanding())
}

func TestDispatcherCancelSuppressesCompletion(t *testing.T) {
	l := make(loop, 4)
	d := NewDispatcher(l.post, nil)

	release := make(chan struct{})
	called := false
	h := Go(d, "blocked", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	}, func(int, error) { called = true })

	h.Cancel()
	close(release)
	<-h.Done()

	select {
	case fn := <-l:
		fn()
	default:
	}
	assert.False(t, called)
	assert.True(t, h.Cancelled())
}

func TestDispatcherCancelAfterPostBeforeRun(t *testing.T) {
	l := make(loop, 4)
	d := NewDispatcher(l.post, nil)

	called := false
	h := Go(d, "fast", func(ctx context.Context) (int, error) { return 1, nil }, func(int, error) { called = true })
	<-h.Done()
	h.Cancel()
	l.runOne(t)
	assert.False(t, called)
}

func TestCancelAllCancelsContextsAndRefusesNew(t *testing.T) {
	l := make(loop, 4)
	d := NewDispatcher(l.post, nil)

	started := make(chan struct{})
	h := Go(d, "wait", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int, error) { t.Error("completion after CancelAll") })
	<-started

	d.CancelAll()
	d.CancelAll()
	d.Wait()
	assert.True(t, h.Cancelled())

	ran := false
	late := Go(d, "late", func(ctx context.Context) (int, error) {
		ran = true
		return 0, nil
	}, func(int, error) {})
	<-late.Done()
	assert.True(t, late.Cancelled())
	assert.False(t, ran)
	assert.Empty(t, l)
}

func TestCancelAllDropsCompletionAlreadyPosted(t *testing.T) {
	l := make(loop, 4)
	d := NewDispatcher(l.post, nil)

	called := false
	h := Go(d, "fast", func(ctx context.Context) (int, error) { return 1, nil }, func(int, error) { called = true })
	<-h.Done()
	require.Eventually(t, func() bool { return len(l) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, d.Outstanding(), "handle stays registered until the loop runs the completion")

	d.CancelAll()
	assert.True(t, h.Cancelled())

	l.runOne(t)
	assert.False(t, called)
	assert.Equal(t, 0, d.Outstanding())
}

func TestRefusedPostReleasesHandle(t *testing.T) {
	d := NewDispatcher(func(func()) bool { return false }, nil)

	h := Go(d, "orphan", func(ctx context.Context) (int, error) { return 1, nil }, func(int, error) {
		t.Error("completion ran without a loop")
	})
	<-h.Done()
	assert.Equal(t, 0, d.Outstanding())
}
