package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/faqchat/errors"
	"github.com/teilomillet/faqchat/server/metrics"
	"github.com/teilomillet/faqchat/server/middleware"
)

func rateLimited(rl *middleware.RateLimiter) http.Handler {
	return middleware.RequestID(rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

func doFrom(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/chat", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	handler := rateLimited(middleware.NewRateLimiter(10, time.Minute, m))
	testIP := "127.0.0.1"

	// Make 11 requests (1 more than limit)
	for i := 0; i < 11; i++ {
		rec := doFrom(handler, testIP)
		if i < 10 {
			assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
			continue
		}

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "6", rec.Header().Get("Retry-After"))

		var resp errors.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, errors.RateLimitError, resp.Type)
		assert.NotEmpty(t, resp.RequestID)
		assert.EqualValues(t, 6, resp.Details["retry_after"])
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitHits.WithLabelValues(testIP)))
}

func TestRateLimitPerClient(t *testing.T) {
	handler := rateLimited(middleware.NewRateLimiter(1, time.Hour, nil))

	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.2").Code)
}

func TestRateLimitReset(t *testing.T) {
	rl := middleware.NewRateLimiter(1, time.Hour, nil)
	handler := rateLimited(rl)

	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "10.0.0.1").Code)

	rl.Reset()
	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.1").Code)
}

func TestRateLimitRejectedRequestsDoNotConsumeBudget(t *testing.T) {
	handler := rateLimited(middleware.NewRateLimiter(2, 200*time.Millisecond, nil))

	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.3").Code)
	assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.3").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "10.0.0.3").Code)
	}

	// One token comes back every 100ms.
	assert.Eventually(t, func() bool {
		return doFrom(handler, "10.0.0.3").Code == http.StatusOK
	}, time.Second, 20*time.Millisecond)
}
