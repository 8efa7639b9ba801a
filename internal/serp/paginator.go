package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxPages is the hard pagination cap per query.
	DefaultMaxPages = 25
	// DefaultConcurrency bounds in-flight page fetches per query. The
	// remote's throughput plateaus around this level; pushing the bound
	// much higher buys nothing and eventually produces timeouts.
	DefaultConcurrency = 50
	// emptyPageRun is how many consecutive empty pages end pagination
	// before MaxPages is reached.
	emptyPageRun = 3
)

// PageSource fetches a single page of a query. *Fetcher is the production
// implementation.
type PageSource interface {
	FetchPage(ctx context.Context, query string, page int, params SearchParams) (*PageRecord, error)
}

var _ PageSource = (*Fetcher)(nil)

// PaginatorConfig bounds one query's pagination.
type PaginatorConfig struct {
	MaxPages    int
	Concurrency int
	// Gate, when set, is an additional process-wide admission gate shared
	// across queries so aggregate in-flight fetches stay below the
	// remote's rate ceiling.
	Gate   *semaphore.Weighted
	Logger *slog.Logger
}

// Paginator drives the fetching of successive pages for one query under a
// concurrency bound and applies the early-termination rule.
type Paginator struct {
	src    PageSource
	cfg    PaginatorConfig
	logger *slog.Logger
}

// NewPaginator validates the bounds and builds a paginator.
func NewPaginator(src PageSource, cfg PaginatorConfig) (*Paginator, error) {
	if cfg.MaxPages < 0 {
		return nil, &ParameterError{Name: "max_pages", Reason: "must not be negative"}
	}
	if cfg.Concurrency < 0 {
		return nil, &ParameterError{Name: "concurrency", Reason: "must not be negative"}
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Paginator{src: src, cfg: cfg, logger: cfg.Logger}, nil
}

type pageOutcome struct {
	page int
	rec  *PageRecord
	err  error
}

// empty reports whether this page counts toward the consecutive-empty run.
// A page that failed after its retry budget is treated the same as a
// structurally empty one.
func (o pageOutcome) empty() bool {
	return o.rec == nil || o.rec.Empty()
}

// Paginate fetches pages 1..MaxPages of query with up to Concurrency fetches
// in flight. Fetches complete in arbitrary order; outcomes are buffered by
// page number and the consecutive-empty rule is evaluated strictly over the
// resolved prefix, so a late page can never falsely trigger termination.
// Once the rule fires, outstanding fetches are cancelled and any results for
// pages beyond the empty run are discarded.
//
// Individual page failures degrade gracefully; only a query in which every
// accepted page failed surfaces as a QueryError.
func (p *Paginator) Paginate(ctx context.Context, query string, params SearchParams) ([]*PageRecord, error) {
	if query == "" {
		return nil, &ParameterError{Name: "query", Reason: "must not be empty"}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))

	// Buffered to capacity so workers can always deliver their outcome,
	// even after the collector has stopped reading.
	outcomes := make(chan pageOutcome, p.cfg.MaxPages)

	for page := 1; page <= p.cfg.MaxPages; page++ {
		go func(page int) {
			// Per-query slot first: a worker must never sit on a shared
			// gate slot it cannot use yet.
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes <- pageOutcome{page: page, err: err}
				return
			}
			defer sem.Release(1)
			if p.cfg.Gate != nil {
				if err := p.cfg.Gate.Acquire(ctx, 1); err != nil {
					outcomes <- pageOutcome{page: page, err: err}
					return
				}
				defer p.cfg.Gate.Release(1)
			}

			rec, err := p.src.FetchPage(ctx, query, page, params)
			outcomes <- pageOutcome{page: page, rec: rec, err: err}
		}(page)
	}

	byPage := make(map[int]pageOutcome, p.cfg.MaxPages)
	highWater := 0 // pages 1..highWater have all resolved
	consecutive := 0
	cutoff := p.cfg.MaxPages
	terminated := false

	for received := 0; received < p.cfg.MaxPages && !terminated; received++ {
		o := <-outcomes
		byPage[o.page] = o

		if o.err != nil && !errors.Is(o.err, ErrEmptyPage) {
			p.logger.Warn("page failed", "query", query, "page", o.page, "err", o.err)
		} else {
			n := 0
			if o.rec != nil {
				n = len(o.rec.Organic)
			}
			p.logger.Debug("page resolved", "query", query, "page", o.page, "organic", n)
		}

		// Advance the high-water mark over the contiguous resolved prefix
		// and evaluate emptiness in page-number order.
		for {
			next, ok := byPage[highWater+1]
			if !ok {
				break
			}
			highWater++

			if next.empty() {
				consecutive++
			} else {
				consecutive = 0
			}

			if consecutive >= emptyPageRun {
				cutoff = highWater
				terminated = true
				p.logger.Debug("early termination", "query", query,
					"after_page", cutoff, "consecutive_empty", consecutive)
				cancel()
				break
			}
		}
	}

	records := make([]*PageRecord, 0, cutoff)
	failed := 0
	for page := 1; page <= cutoff; page++ {
		o, ok := byPage[page]
		if !ok {
			continue
		}
		if o.rec != nil {
			records = append(records, o.rec)
		} else {
			failed++
		}
	}

	if len(records) == 0 && failed > 0 {
		return nil, &QueryError{
			Query: query,
			Err:   fmt.Errorf("all %d fetched pages failed", failed),
		}
	}

	return records, nil
}
