package serp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string, maxPolls int) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		APIKey:       "test-key",
		Zone:         "test_zone",
		BaseURL:      baseURL,
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     maxPolls,
	})
	if err != nil {
		t.Fatalf("unexpected error building client: %v", err)
	}
	return c
}

func TestClient_FetchRaw(t *testing.T) {
	var polls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth header, got %q", got)
		}

		switch r.URL.Path {
		case "/serp/req":
			var req submitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode submit body: %v", err)
			}
			if req.Zone != "test_zone" {
				t.Errorf("expected zone test_zone, got %q", req.Zone)
			}
			if !strings.Contains(req.URL, "start=10") {
				t.Errorf("expected page 2 offset in %q", req.URL)
			}
			if !strings.Contains(req.URL, "brd_json=1") {
				t.Errorf("expected structured-JSON flag in %q", req.URL)
			}
			_ = json.NewEncoder(w).Encode(submitResponse{ResponseID: "job-1"})

		case "/serp/get_result":
			if got := r.URL.Query().Get("response_id"); got != "job-1" {
				t.Errorf("expected response_id job-1, got %q", got)
			}
			if polls.Add(1) < 3 {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			_ = json.NewEncoder(w).Encode(rawSERP{
				URL: "https://www.google.com/search?q=go",
				Organic: []OrganicResult{
					{Link: "https://go.dev", Rank: 1, Title: "The Go Programming Language"},
				},
			})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 10)

	raw, err := client.FetchRaw(context.Background(), "go", 2, SearchParams{Country: "us", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(raw.Organic) != 1 || raw.Organic[0].Link != "https://go.dev" {
		t.Errorf("unexpected organic results: %+v", raw.Organic)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}
}

func TestClient_PollTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/serp/req" {
			_ = json.NewEncoder(w).Encode(submitResponse{ResponseID: "job-1"})
			return
		}
		// Job never finishes
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 3)

	_, err := client.FetchRaw(context.Background(), "go", 1, SearchParams{})
	var timeoutErr *PollTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected PollTimeoutError, got %v", err)
	}
	if timeoutErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", timeoutErr.Attempts)
	}
}

func TestClient_SubmitRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 3)

	_, err := client.Submit(context.Background(), "go", 1, SearchParams{})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", subErr.Status)
	}
}

func TestClient_SubmitMissingJobID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 3)

	_, err := client.Submit(context.Background(), "go", 1, SearchParams{})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestClient_PollUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/serp/req" {
			_ = json.NewEncoder(w).Encode(submitResponse{ResponseID: "job-1"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 3)

	_, err := client.FetchRaw(context.Background(), "go", 1, SearchParams{})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Op != "poll" || subErr.Status != http.StatusInternalServerError {
		t.Errorf("unexpected error details: %+v", subErr)
	}
}

func TestClient_CancelDuringPoll(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/serp/req" {
			_ = json.NewEncoder(w).Encode(submitResponse{ResponseID: "job-1"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchRaw(ctx, "go", 1, SearchParams{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	var paramErr *ParameterError

	_, err := NewClient(ClientConfig{Zone: "z"})
	if !errors.As(err, &paramErr) {
		t.Errorf("expected ParameterError for missing api key, got %v", err)
	}

	_, err = NewClient(ClientConfig{APIKey: "k"})
	if !errors.As(err, &paramErr) {
		t.Errorf("expected ParameterError for missing zone, got %v", err)
	}
}
