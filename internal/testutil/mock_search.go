// Package testutil provides testing utilities for the search client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// SearchPath is the recent-search endpoint served by the mock.
const SearchPath = "/2/tweets/search/recent"

// MockResponse defines the behavior for a mock search endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTweet is one item in a mock search page.
type MockTweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

// MockSearchAPI is a configurable mock search server for testing.
type MockSearchAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Queries           []map[string]string
}

// NewMockSearchAPI creates a new mock search server.
func NewMockSearchAPI() *MockSearchAPI {
	mock := &MockSearchAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		for key := range r.URL.Query() {
			params[key] = r.URL.Query().Get(key)
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, params)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSearchAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSearchAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSearchAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSearchAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves resps in order on the search path, one per request.
// The last response repeats once the sequence is used up.
func (m *MockSearchAPI) SetSequence(resps ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(SearchPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[min(next, len(resps)-1)]
		next++
		mu.Unlock()

		resp.write(w, r)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSearchAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockSearchAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetQueries returns the query parameters of every request, in order.
func (m *MockSearchAPI) GetQueries() []map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]string, len(m.Queries))
	copy(out, m.Queries)
	return out
}

func (r MockResponse) write(w http.ResponseWriter, _ *http.Request) {
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}

	for key, value := range r.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(r.StatusCode)
	if r.Body != "" {
		w.Write([]byte(r.Body))
	}
}

// defaultHandler returns an empty search page.
func (m *MockSearchAPI) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"meta":{"result_count":0}}`))
}

// SearchBody renders a search response body in the provider's format.
func SearchBody(tweets []MockTweet, nextToken string) string {
	body := struct {
		Data []MockTweet `json:"data,omitempty"`
		Meta struct {
			ResultCount int    `json:"result_count"`
			NextToken   string `json:"next_token,omitempty"`
		} `json:"meta"`
	}{Data: tweets}
	body.Meta.ResultCount = len(tweets)
	body.Meta.NextToken = nextToken

	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// MakeTweets creates n tweets with IDs starting at offset.
func MakeTweets(offset, n int) []MockTweet {
	tweets := make([]MockTweet, n)
	for i := range tweets {
		id := strconv.Itoa(offset + i + 1)
		tweets[i] = MockTweet{ID: id, Text: "tweet number " + id, Lang: "en"}
	}
	return tweets
}

// NewHealthyResponse creates a standard 200 OK search page with quota headers.
func NewHealthyResponse(tweets []MockTweet, nextToken string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       SearchBody(tweets, nextToken),
		Headers: map[string]string{
			"x-rate-limit-limit":     "450",
			"x-rate-limit-remaining": "449",
			"x-rate-limit-reset":     strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10),
			"Content-Type":           "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"title":"Too Many Requests","detail":"Too Many Requests","type":"about:blank","status":429}`,
		Headers: map[string]string{
			"x-rate-limit-limit":     "450",
			"x-rate-limit-remaining": "0",
			"x-rate-limit-reset":     strconv.FormatInt(time.Now().Add(90*time.Second).Unix(), 10),
			"Content-Type":           "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"title":"Service Unavailable","status":503}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"title":"Unauthorized","status":401}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewPagedHandler serves pages in order, chaining them with tokens "t1", "t2", ...
// A request whose next_token does not match a page gets a 400.
func NewPagedHandler(pages ...[]MockTweet) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if tok := r.URL.Query().Get("next_token"); tok != "" {
			n, err := strconv.Atoi(tok[1:])
			if err != nil || tok[0] != 't' || n < 1 || n >= len(pages) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"title":"Invalid Request","status":400}`))
				return
			}
			idx = n
		}

		next := ""
		if idx+1 < len(pages) {
			next = "t" + strconv.Itoa(idx+1)
		}

		NewHealthyResponse(pages[idx], next).write(w, r)
	}
}
