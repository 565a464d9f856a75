package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/faqchat/errors"
	"github.com/teilomillet/faqchat/server/metrics"
)

// waiter is a queued request. ready is closed when it is handed a slot.
type waiter struct {
	ready     chan struct{}
	abandoned bool
}

// QueueMiddleware lets at most MaxConcurrent requests run at once. Further
// requests wait in arrival order, up to MaxQueued of them; beyond that
// they are rejected with 503. A waiting request whose client goes away
// leaves the queue without ever running.
type QueueMiddleware struct {
	mu            sync.Mutex
	waiting       *queue.Queue[*waiter]
	abandoned     int
	running       int
	maxConcurrent int
	maxQueued     int
	metrics       *metrics.Metrics
	idle          chan struct{}
}

// QueueConfig defines the capacity of a QueueMiddleware. Zero values
// select 1 running request and no waiting room.
type QueueConfig struct {
	MaxConcurrent int
	MaxQueued     int
	Metrics       *metrics.Metrics
}

// NewQueueMiddleware creates a queue.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxQueued < 0 {
		cfg.MaxQueued = 0
	}
	return &QueueMiddleware{
		waiting:       queue.New[*waiter](),
		maxConcurrent: cfg.MaxConcurrent,
		maxQueued:     cfg.MaxQueued,
		metrics:       cfg.Metrics,
	}
}

// SetLimits changes the capacity. Running requests are not interrupted;
// waiters are admitted if the new limit leaves room.
func (qm *QueueMiddleware) SetLimits(maxConcurrent, maxQueued int) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxQueued < 0 {
		maxQueued = 0
	}
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.maxConcurrent = maxConcurrent
	qm.maxQueued = maxQueued
	qm.admitLocked()
}

// GetQueueSize returns the number of requests waiting for a slot.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.waiting.Length() - qm.abandoned
}

// GetProcessing returns the number of requests currently running.
func (qm *QueueMiddleware) GetProcessing() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.running
}

// acquire takes a slot, waiting in line when none is free. It reports
// false when the queue is full or ctx ends first.
func (qm *QueueMiddleware) acquire(ctx context.Context) (bool, error) {
	qm.mu.Lock()
	if qm.running < qm.maxConcurrent && qm.waiting.Length()-qm.abandoned == 0 {
		qm.running++
		qm.mu.Unlock()
		return true, nil
	}
	if qm.waiting.Length()-qm.abandoned >= qm.maxQueued {
		qm.mu.Unlock()
		return false, nil
	}
	wt := &waiter{ready: make(chan struct{})}
	qm.waiting.Add(wt)
	qm.reportLocked()
	qm.mu.Unlock()

	select {
	case <-wt.ready:
		return true, nil
	case <-ctx.Done():
		qm.mu.Lock()
		defer qm.mu.Unlock()
		select {
		case <-wt.ready:
			// Handed a slot while leaving: give it to the next in line.
			qm.running--
			qm.admitLocked()
		default:
			wt.abandoned = true
			qm.abandoned++
		}
		qm.reportLocked()
		return false, ctx.Err()
	}
}

func (qm *QueueMiddleware) release() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.running--
	qm.admitLocked()
	if qm.running == 0 && qm.idle != nil {
		close(qm.idle)
		qm.idle = nil
	}
}

// admitLocked hands free slots to waiters in FIFO order, dropping the ones
// whose clients left.
func (qm *QueueMiddleware) admitLocked() {
	for qm.running < qm.maxConcurrent && qm.waiting.Length() > 0 {
		wt := qm.waiting.Remove()
		if wt.abandoned {
			qm.abandoned--
			continue
		}
		qm.running++
		close(wt.ready)
	}
	qm.reportLocked()
}

func (qm *QueueMiddleware) reportLocked() {
	if qm.metrics == nil {
		return
	}
	qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.waiting.Length() - qm.abandoned))
	qm.metrics.ActiveRequests.WithLabelValues("processing").Set(float64(qm.running))
}

// Shutdown waits until no request is running or ctx ends.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running == 0 {
		qm.mu.Unlock()
		return nil
	}
	if qm.idle == nil {
		qm.idle = make(chan struct{})
	}
	idle := qm.idle
	qm.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		if qm.metrics != nil {
			qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
		}
		return ctx.Err()
	}
}

// Handler admits requests through the queue.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ok, err := qm.acquire(r.Context())
		if !ok {
			if err != nil {
				// The client is gone; there is nobody to answer.
				return
			}
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			w.Header().Set("Retry-After", "1")
			errors.WriteError(w, errors.NewOverloadedError(GetRequestID(r.Context()), 1))
			return
		}
		defer qm.release()

		if qm.metrics != nil {
			qm.metrics.RequestDuration.WithLabelValues("queue_wait").Observe(time.Since(start).Seconds())
		}
		next.ServeHTTP(w, r)
	})
}
