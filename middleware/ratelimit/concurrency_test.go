package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyMiddleware_RejectsWhenSlotIsHeld(t *testing.T) {
	hold := make(chan struct{})
	entered := make(chan struct{}, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-hold
		w.WriteHeader(http.StatusOK)
	})
	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	first := make(chan int, 1)
	go func() {
		first <- serve(h, httptest.NewRequest(http.MethodGet, "http://example/slow", nil)).Code
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		close(hold)
		t.Fatal("first request never reached the handler")
	}

	w := serve(h, httptest.NewRequest(http.MethodGet, "http://example/fast", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Service Unavailable"}`, w.Body.String())

	close(hold)
	select {
	case code := <-first:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(time.Second):
		t.Fatal("first request did not finish")
	}

	// a vaga foi devolvida
	go func() { <-entered }()
	require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "http://example/again", nil)).Code)
}

func TestConcurrencyMiddleware_CustomRejectStatus(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	entered := make(chan struct{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-hold
	})
	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		RejectStatus:   http.StatusTooManyRequests,
		AcquireTimeout: 10 * time.Millisecond,
	})(next)

	go serve(h, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	<-entered

	w := serve(h, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, tooManyRequestsBody, w.Body.String())
}

func TestConcurrencyMiddleware_DisabledWhenMaxIsZero(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{})(next)
	assert.Equal(t, http.StatusTeapot, serve(h, httptest.NewRequest(http.MethodGet, "http://example/", nil)).Code)
}
