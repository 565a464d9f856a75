package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/faqchat/server/metrics"
	"github.com/teilomillet/faqchat/server/middleware"
)

// blockingHandler records the order requests start in and holds each one
// until it receives from release.
type blockingHandler struct {
	mu      sync.Mutex
	started []string
	release chan struct{}
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{release: make(chan struct{})}
}

func (b *blockingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.started = append(b.started, r.URL.Query().Get("id"))
	b.mu.Unlock()
	<-b.release
	w.WriteHeader(http.StatusOK)
}

func (b *blockingHandler) order() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.started...)
}

func serveAsync(ctx context.Context, h http.Handler, id string) <-chan *httptest.ResponseRecorder {
	out := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest("POST", "/chat?id="+id, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		out <- rec
	}()
	return out
}

func TestQueueMiddleware(t *testing.T) {
	m := metrics.NewMetrics()
	qm := middleware.NewQueueMiddleware(middleware.QueueConfig{
		MaxConcurrent: 1,
		MaxQueued:     2,
		Metrics:       m,
	})
	backend := newBlockingHandler()
	handler := qm.Handler(backend)
	ctx := context.Background()

	first := serveAsync(ctx, handler, "a")
	require.Eventually(t, func() bool { return qm.GetProcessing() == 1 }, time.Second, 5*time.Millisecond)

	second := serveAsync(ctx, handler, "b")
	require.Eventually(t, func() bool { return qm.GetQueueSize() == 1 }, time.Second, 5*time.Millisecond)
	third := serveAsync(ctx, handler, "c")
	require.Eventually(t, func() bool { return qm.GetQueueSize() == 2 }, time.Second, 5*time.Millisecond)

	// The waiting room is full.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/chat?id=d", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("queue_full")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveRequests.WithLabelValues("queued")))

	for _, done := range []<-chan *httptest.ResponseRecorder{first, second, third} {
		backend.release <- struct{}{}
		assert.Equal(t, http.StatusOK, (<-done).Code)
	}

	assert.Equal(t, []string{"a", "b", "c"}, backend.order())
	assert.Equal(t, 0, qm.GetProcessing())
	assert.Equal(t, 0, qm.GetQueueSize())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveRequests.WithLabelValues("processing")))
}

func TestQueueMiddlewareAbandonedWaiter(t *testing.T) {
	qm := middleware.NewQueueMiddleware(middleware.QueueConfig{MaxConcurrent: 1, MaxQueued: 2})
	backend := newBlockingHandler()
	handler := qm.Handler(backend)

	first := serveAsync(context.Background(), handler, "a")
	require.Eventually(t, func() bool { return qm.GetProcessing() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	gone := serveAsync(ctx, handler, "gone")
	require.Eventually(t, func() bool { return qm.GetQueueSize() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-gone
	assert.Equal(t, 0, qm.GetQueueSize())

	next := serveAsync(context.Background(), handler, "b")
	require.Eventually(t, func() bool { return qm.GetQueueSize() == 1 }, time.Second, 5*time.Millisecond)

	backend.release <- struct{}{}
	<-first
	backend.release <- struct{}{}
	<-next

	assert.Equal(t, []string{"a", "b"}, backend.order())
}

func TestQueueMiddlewareSetLimits(t *testing.T) {
	qm := middleware.NewQueueMiddleware(middleware.QueueConfig{MaxConcurrent: 1, MaxQueued: 1})
	backend := newBlockingHandler()
	handler := qm.Handler(backend)

	first := serveAsync(context.Background(), handler, "a")
	require.Eventually(t, func() bool { return qm.GetProcessing() == 1 }, time.Second, 5*time.Millisecond)
	second := serveAsync(context.Background(), handler, "b")
	require.Eventually(t, func() bool { return qm.GetQueueSize() == 1 }, time.Second, 5*time.Millisecond)

	qm.SetLimits(2, 1)
	require.Eventually(t, func() bool { return qm.GetProcessing() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, qm.GetQueueSize())

	backend.release <- struct{}{}
	backend.release <- struct{}{}
	<-first
	<-second
}

func TestQueueMiddlewareShutdown(t *testing.T) {
	qm := middleware.NewQueueMiddleware(middleware.QueueConfig{MaxConcurrent: 1})
	assert.NoError(t, qm.Shutdown(context.Background()))

	backend := newBlockingHandler()
	done := serveAsync(context.Background(), qm.Handler(backend), "a")
	require.Eventually(t, func() bool { return qm.GetProcessing() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, qm.Shutdown(ctx), context.DeadlineExceeded)

	shutdown := make(chan error, 1)
	go func() { shutdown <- qm.Shutdown(context.Background()) }()
	backend.release <- struct{}{}
	<-done
	assert.NoError(t, <-shutdown)
}
