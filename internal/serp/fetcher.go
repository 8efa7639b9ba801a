package serp

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/FranksOps/magpie/internal/metrics"
)

const (
	defaultRetries = 3
	defaultBackoff = time.Second
)

// rawSource is the slice of Client the fetcher depends on; tests substitute
// an in-memory fake.
type rawSource interface {
	FetchRaw(ctx context.Context, query string, page int, params SearchParams) (*rawSERP, error)
}

// FetcherConfig configures retry behaviour for a single page fetch.
type FetcherConfig struct {
	// Retries is the total number of attempts per page.
	Retries int
	// Backoff is the wait before the second attempt; it doubles per attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

// Fetcher wraps one client call with retry policy and extracts a normalized
// PageRecord from the raw response. Only transient submission/poll failures
// are retried; a structurally valid empty page never is.
type Fetcher struct {
	src     rawSource
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewFetcher builds a Fetcher on top of a Client.
func NewFetcher(client *Client, cfg FetcherConfig) *Fetcher {
	return newFetcher(client, cfg)
}

func newFetcher(src rawSource, cfg FetcherConfig) *Fetcher {
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		src:     src,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		logger:  cfg.Logger,
	}
}

// FetchPage fetches one page of one query. On an empty page it returns the
// (valid) record together with ErrEmptyPage so callers can fold it into
// early-termination accounting. After the retry budget is exhausted it
// returns a FetchError wrapping the last transient failure.
func (f *Fetcher) FetchPage(ctx context.Context, query string, page int, params SearchParams) (*PageRecord, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			wait := f.backoff << (attempt - 1)
			f.logger.Debug("retrying page", "query", query, "page", page, "attempt", attempt+1, "wait", wait)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		raw, err := f.src.FetchRaw(ctx, query, page, params)
		if err != nil {
			if !Transient(err) {
				return nil, err
			}
			f.logger.Warn("page fetch attempt failed", "query", query, "page", page, "err", err)
			lastErr = err
			continue
		}

		rec := normalizePage(raw, query, page)
		if rec.Empty() {
			metrics.RecordPage(metrics.OutcomeEmpty, 0, time.Since(start))
			return rec, ErrEmptyPage
		}

		metrics.RecordPage(metrics.OutcomeOK, len(rec.Organic), time.Since(start))
		return rec, nil
	}

	metrics.RecordPage(metrics.OutcomeError, 0, time.Since(start))
	return nil, &FetchError{Page: page, Attempts: f.retries, Err: lastErr}
}

// normalizePage converts the raw remote schema into a PageRecord. Absent
// fields default to empty collections; malformed entries are clamped or
// dropped here so downstream stages never re-validate.
func normalizePage(raw *rawSERP, query string, page int) *PageRecord {
	rec := &PageRecord{
		PageNumber:    page,
		FetchedAt:     time.Now().UTC(),
		URL:           raw.URL,
		Keyword:       raw.Keyword,
		General:       raw.General,
		Related:       raw.Related,
		PeopleAlsoAsk: raw.PeopleAlsoAsk,
		Navigation:    raw.Navigation,
		Language:      raw.Language,
		Country:       raw.Country,
		AIOverview:    raw.AIOverview,
	}

	if rec.General.Query == "" {
		rec.General.Query = query
	}

	rec.Organic = make([]OrganicResult, 0, len(raw.Organic))
	for _, item := range raw.Organic {
		if item.Link == "" {
			continue
		}
		if item.Rank < 0 {
			item.Rank = 0
		}
		rec.Organic = append(rec.Organic, item)
	}

	// The remote sometimes emits pagination entries as bare link strings;
	// give those an ordinal page label so they sort deterministically.
	rec.Pagination = make([]PaginationLink, 0, len(raw.Pagination))
	for _, pl := range raw.Pagination {
		if pl.Link == "" && pl.Page == "" {
			continue
		}
		if pl.Page == "" {
			pl.Page = strconv.Itoa(len(rec.Pagination) + 1)
		}
		rec.Pagination = append(rec.Pagination, pl)
	}

	return rec
}
