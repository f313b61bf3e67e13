package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// countingBackoff records Penalize/Reward calls without sleeping.
type countingBackoff struct {
	mu        sync.Mutex
	penalties int
	rewards   int
}

func (b *countingBackoff) Penalize() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.penalties++
	return 0
}

func (b *countingBackoff) Reward() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rewards++
	return 0
}

// countingLimiter records admissions without blocking.
type countingLimiter struct {
	mu    sync.Mutex
	waits int
}

func (l *countingLimiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits++
}

func newTestFetcher(retries int) (*Fetcher, *countingLimiter, *countingBackoff) {
	limiter := &countingLimiter{}
	backoff := &countingBackoff{}
	f := New(Config{Provider: "test", MaxRetries: retries}, limiter, backoff)
	return f, limiter, backoff
}

func TestGetJSON_Success(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"title":"A Work"}`))
	}))
	defer server.Close()

	f, limiter, backoff := newTestFetcher(3)

	var out struct {
		Title string `json:"title"`
	}
	if err := f.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}

	if out.Title != "A Work" {
		t.Errorf("Title = %q, want %q", out.Title, "A Work")
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
	if limiter.waits != 1 {
		t.Errorf("limiter admitted %d times, want 1", limiter.waits)
	}
	if backoff.rewards != 1 || backoff.penalties != 0 {
		t.Errorf("backoff rewards=%d penalties=%d, want 1/0", backoff.rewards, backoff.penalties)
	}
}

func TestGetJSON_NotFoundIsNotRetried(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, _, backoff := newTestFetcher(3)

	var out map[string]any
	err := f.GetJSON(context.Background(), server.URL, &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1 (404 must not be retried)", requests)
	}
	// A 404 is final but still a non-200: it escalates the shared delay
	// exactly once.
	if backoff.penalties != 1 || backoff.rewards != 0 {
		t.Errorf("backoff penalties=%d rewards=%d, want 1/0", backoff.penalties, backoff.rewards)
	}
}

func TestGetJSON_TransientRetriedUntilExhausted(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f, limiter, backoff := newTestFetcher(3)

	var out map[string]any
	err := f.GetJSON(context.Background(), server.URL, &out)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want 3", requests)
	}
	if limiter.waits != 3 {
		t.Errorf("limiter admitted %d times, want 3 (admission applies per attempt)", limiter.waits)
	}
	if backoff.penalties != 3 || backoff.rewards != 0 {
		t.Errorf("backoff penalties=%d rewards=%d, want 3/0", backoff.penalties, backoff.rewards)
	}
}

func TestGetJSON_RecoversMidRetry(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f, _, backoff := newTestFetcher(3)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := f.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.OK {
		t.Error("decoded body missing")
	}
	if backoff.penalties != 2 || backoff.rewards != 1 {
		t.Errorf("backoff penalties=%d rewards=%d, want 2/1", backoff.penalties, backoff.rewards)
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"title": [unclosed`))
	}))
	defer server.Close()

	f, _, _ := newTestFetcher(3)

	var out map[string]any
	err := f.GetJSON(context.Background(), server.URL, &out)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("error = %v, want ErrMalformed", err)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1 (malformed bodies are not retried)", requests)
	}
}

func TestGetJSON_NetworkErrorRetried(t *testing.T) {
	// Closed server: every attempt fails at the dial.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f, limiter, backoff := newTestFetcher(2)

	var out map[string]any
	err := f.GetJSON(context.Background(), url, &out)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if limiter.waits != 2 {
		t.Errorf("limiter admitted %d times, want 2", limiter.waits)
	}
	if backoff.penalties != 2 {
		t.Errorf("backoff penalties=%d, want 2", backoff.penalties)
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatal("expected a wrapped ProviderError")
	}
	if perr.Class != ClassTransient {
		t.Errorf("class = %q, want %q", perr.Class, ClassTransient)
	}
}

func TestGetJSON_UserAgentHeader(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	backoff := &countingBackoff{}
	f := New(Config{
		Provider:  "test",
		UserAgent: "citegraph/1.0 (mailto:dev@example.org)",
	}, limiter, backoff)

	var out map[string]any
	if err := f.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if gotUA != "citegraph/1.0 (mailto:dev@example.org)" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}
