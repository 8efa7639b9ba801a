package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/magpie/internal/serp"
)

type fakeSearcher struct {
	lastQuery    string
	lastMaxPages int
	result       *serp.QueryResult
	err          error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxPages, concurrency int) (*serp.QueryResult, error) {
	f.lastQuery = query
	f.lastMaxPages = maxPages
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postSearch(t *testing.T, searcher Searcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewServer(NewHandler(searcher))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostSearch_OK(t *testing.T) {
	searcher := &fakeSearcher{result: &serp.QueryResult{
		General: serp.General{Query: "golang"},
		Organic: []serp.OrganicResult{{Link: "https://go.dev", Rank: 1, Title: "Go"}},
	}}

	w := postSearch(t, searcher, `{"query":"golang","max_pages":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if searcher.lastQuery != "golang" || searcher.lastMaxPages != 5 {
		t.Errorf("searcher call: got %q, %d", searcher.lastQuery, searcher.lastMaxPages)
	}

	var back serp.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &back); err != nil {
		t.Fatalf("response is not a result document: %v", err)
	}
	if len(back.Organic) != 1 || back.Organic[0].Link != "https://go.dev" {
		t.Errorf("organic: got %+v", back.Organic)
	}
}

func TestPostSearch_MissingQuery(t *testing.T) {
	w := postSearch(t, &fakeSearcher{}, `{"max_pages":5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestPostSearch_BadJSON(t *testing.T) {
	w := postSearch(t, &fakeSearcher{}, `{"query":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestPostSearch_ParameterError(t *testing.T) {
	searcher := &fakeSearcher{err: &serp.ParameterError{Name: "max_pages", Reason: "must not be negative"}}
	w := postSearch(t, searcher, `{"query":"golang","max_pages":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestPostSearch_UpstreamFailure(t *testing.T) {
	searcher := &fakeSearcher{err: &serp.QueryError{
		Query: "golang",
		Err:   &serp.FetchError{Page: 1, Attempts: 3},
	}}
	w := postSearch(t, searcher, `{"query":"golang"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body: %v", err)
	}
	if resp.Error == "" {
		t.Error("error response carries no message")
	}
}

func TestHealthCheck(t *testing.T) {
	router := NewServer(NewHandler(&fakeSearcher{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"ok"`)) {
		t.Errorf("body: got %s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := NewServer(NewHandler(&fakeSearcher{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://example.com")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status: got %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin: got %q", got)
	}
}
