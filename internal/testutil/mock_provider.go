// Package testutil provides mock bibliographic provider servers for testing.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockProvider is a configurable mock provider server. It serves scripted
// responses keyed by URL path and tracks received requests.
type MockProvider struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	RequestCount int
	LastQuery    url.Values
	LastHeader   http.Header
}

// NewMockProvider creates a mock provider server. Unscripted paths answer
// 404 with an empty JSON object, which both providers treat as not found.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.LastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
	m.LastHeader = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockProvider) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockProvider) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON serves a fixed JSON body with status 200 on the given path.
func (m *MockProvider) SetJSON(path string, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// SetStatus serves a fixed status code with an empty JSON body.
func (m *MockProvider) SetStatus(path string, status int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	})
}

// SetCrossrefWork scripts a registry work lookup. The message payload is
// wrapped in the registry's response envelope.
func (m *MockProvider) SetCrossrefWork(doi string, message string) {
	m.SetJSON("/works/"+doi, fmt.Sprintf(`{"status":"ok","message":%s}`, message))
}

// SetOpenAlexWork scripts a metadata work lookup for a bare DOI. The path
// mirrors the provider's DOI-as-URL addressing after percent decoding.
func (m *MockProvider) SetOpenAlexWork(doi string, body string) {
	m.SetJSON("/works/https://doi.org/"+doi, body)
}

// SetOpenAlexSource scripts a metadata source listing for an ISSN filter.
func (m *MockProvider) SetOpenAlexSource(body string) {
	m.SetJSON("/sources", body)
}

// CursorPage is one page of a scripted cursor traversal.
type CursorPage struct {
	Items      []string // raw JSON objects
	NextCursor string   // empty means last page
}

// SetCursorPages scripts a cursor-paginated listing on the given path.
// The first request must carry the root cursor "*"; each following request
// is answered by cursor value. The response shape matches the metadata
// provider's list envelope (results plus meta.next_cursor).
func (m *MockProvider) SetCursorPages(path string, pages []CursorPage) {
	byCursor := make(map[string]CursorPage, len(pages))
	cursor := "*"
	for i, p := range pages {
		byCursor[cursor] = p
		if p.NextCursor == "" && i < len(pages)-1 {
			p.NextCursor = fmt.Sprintf("page-%d", i+1)
			byCursor[cursor] = p
		}
		cursor = byCursor[cursor].NextCursor
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		c := r.URL.Query().Get("cursor")
		page, ok := byCursor[c]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unknown cursor"}`))
			return
		}

		items := "[]"
		if len(page.Items) > 0 {
			raw, _ := json.Marshal(toRawList(page.Items))
			items = string(raw)
		}
		next := "null"
		if page.NextCursor != "" {
			next = fmt.Sprintf("%q", page.NextCursor)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results":%s,"meta":{"count":%d,"next_cursor":%s}}`,
			items, len(page.Items), next)
	})
}

func toRawList(items []string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}
