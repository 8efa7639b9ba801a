package serp

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeRawSource serves scripted responses per call.
type fakeRawSource struct {
	calls     int
	responses []func() (*rawSERP, error)
}

func (f *fakeRawSource) FetchRaw(ctx context.Context, query string, page int, params SearchParams) (*rawSERP, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i]()
}

func fullPage() (*rawSERP, error) {
	return &rawSERP{
		Organic: []OrganicResult{{Link: "https://example.com", Rank: 1, Title: "Example"}},
	}, nil
}

func TestFetcher_RetriesTransient(t *testing.T) {
	src := &fakeRawSource{responses: []func() (*rawSERP, error){
		func() (*rawSERP, error) { return nil, &SubmissionError{Op: "submit", Status: 503} },
		fullPage,
	}}

	f := newFetcher(src, FetcherConfig{Retries: 3, Backoff: time.Millisecond})

	rec, err := f.FetchPage(context.Background(), "q", 1, SearchParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", src.calls)
	}
	if rec.PageNumber != 1 || len(rec.Organic) != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestFetcher_EmptyPageNotRetried(t *testing.T) {
	src := &fakeRawSource{responses: []func() (*rawSERP, error){
		func() (*rawSERP, error) { return &rawSERP{}, nil },
	}}

	f := newFetcher(src, FetcherConfig{Retries: 3, Backoff: time.Millisecond})

	rec, err := f.FetchPage(context.Background(), "q", 4, SearchParams{})
	if !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("expected ErrEmptyPage, got %v", err)
	}
	if rec == nil || !rec.Empty() {
		t.Fatalf("expected a valid empty record alongside ErrEmptyPage, got %+v", rec)
	}
	if src.calls != 1 {
		t.Errorf("empty page must not be retried, got %d attempts", src.calls)
	}
}

func TestFetcher_ExhaustedRetries(t *testing.T) {
	src := &fakeRawSource{responses: []func() (*rawSERP, error){
		func() (*rawSERP, error) { return nil, &PollTimeoutError{JobID: "j", Attempts: 20} },
	}}

	f := newFetcher(src, FetcherConfig{Retries: 2, Backoff: time.Millisecond})

	_, err := f.FetchPage(context.Background(), "q", 7, SearchParams{})
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Page != 7 || fetchErr.Attempts != 2 {
		t.Errorf("unexpected error details: %+v", fetchErr)
	}
	var timeoutErr *PollTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Errorf("expected FetchError to wrap the poll timeout, got %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", src.calls)
	}
}

func TestFetcher_NonTransientNotRetried(t *testing.T) {
	src := &fakeRawSource{responses: []func() (*rawSERP, error){
		func() (*rawSERP, error) { return nil, context.Canceled },
	}}

	f := newFetcher(src, FetcherConfig{Retries: 3, Backoff: time.Millisecond})

	_, err := f.FetchPage(context.Background(), "q", 1, SearchParams{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled passed through, got %v", err)
	}
	if src.calls != 1 {
		t.Errorf("non-transient error must not be retried, got %d attempts", src.calls)
	}
}

func TestNormalizePage(t *testing.T) {
	raw := &rawSERP{
		Organic: []OrganicResult{
			{Link: "https://a.example", Rank: 1},
			{Link: "", Rank: 2}, // no dedup key, dropped
			{Link: "https://b.example", Rank: -5},
		},
		Pagination: []PaginationLink{
			{Link: "https://g/search?start=10", Page: "2"},
			{Link: "https://g/search?start=20"}, // bare string form
		},
	}

	rec := normalizePage(raw, "golang", 3)

	if rec.General.Query != "golang" {
		t.Errorf("expected backfilled query, got %q", rec.General.Query)
	}
	if len(rec.Organic) != 2 {
		t.Fatalf("expected 2 organic entries, got %d", len(rec.Organic))
	}
	if rec.Organic[1].Rank != 0 {
		t.Errorf("expected negative rank clamped to 0, got %d", rec.Organic[1].Rank)
	}
	if rec.Pagination[1].Page == "" {
		t.Errorf("expected ordinal label on bare pagination link, got %q", rec.Pagination[1].Page)
	}
}
