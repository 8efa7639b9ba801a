// Package runner executes one or more queries end to end: pagination,
// deduplication, timing.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/FranksOps/magpie/internal/dedup"
	"github.com/FranksOps/magpie/internal/serp"
)

// Config bounds a run.
type Config struct {
	MaxPages    int
	Concurrency int
	// GlobalConcurrency caps in-flight page fetches across all queries of
	// the run, independent of the per-query bound. Zero disables the gate.
	GlobalConcurrency int
	Params            serp.SearchParams
	Logger            *slog.Logger
}

// Runner fans independent queries out in parallel. Each query's pagination
// is its own concurrent unit; a shared admission gate keeps the aggregate
// fetch rate under the remote's ceiling.
type Runner struct {
	src    serp.PageSource
	cfg    Config
	gate   *semaphore.Weighted
	logger *slog.Logger
}

// QueryOutcome is one query's slot in a run, in input order. Exactly one of
// Result and Err is set.
type QueryOutcome struct {
	Query   string
	Result  *serp.QueryResult
	Err     error
	Pages   int
	Elapsed time.Duration
}

func New(src serp.PageSource, cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var gate *semaphore.Weighted
	if cfg.GlobalConcurrency > 0 {
		gate = semaphore.NewWeighted(int64(cfg.GlobalConcurrency))
	}

	return &Runner{src: src, cfg: cfg, gate: gate, logger: cfg.Logger}
}

// Run processes all queries in parallel and returns one outcome per query,
// in input order. A single query's failure is contained in its outcome; Run
// itself errors only when no query is given or every query failed.
func (r *Runner) Run(ctx context.Context, queries []string) ([]QueryOutcome, error) {
	var cleaned []string
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, &serp.ParameterError{Name: "queries", Reason: "at least one query is required"}
	}

	runID := uuid.New().String()
	r.logger.Info("run started", "run", runID, "queries", len(cleaned),
		"max_pages", r.cfg.MaxPages, "concurrency", r.cfg.Concurrency)

	outcomes := make([]QueryOutcome, len(cleaned))
	var wg sync.WaitGroup

	for i, query := range cleaned {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			outcomes[i] = r.runQuery(ctx, query)
		}(i, query)
	}
	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			r.logger.Error("query failed", "run", runID, "query", o.Query, "err", o.Err)
		} else {
			r.logger.Info("query done", "run", runID, "query", o.Query,
				"pages", o.Pages, "organic", len(o.Result.Organic), "elapsed", o.Elapsed)
		}
	}

	if failed == len(outcomes) {
		return outcomes, fmt.Errorf("all %d queries failed: %w", failed, outcomes[0].Err)
	}
	return outcomes, nil
}

func (r *Runner) runQuery(ctx context.Context, query string) QueryOutcome {
	start := time.Now()
	out := QueryOutcome{Query: query}

	records, err := r.paginate(ctx, query, r.cfg.MaxPages, r.cfg.Concurrency)
	out.Elapsed = time.Since(start)
	if err != nil {
		out.Err = err
		return out
	}

	out.Pages = len(records)
	out.Result = dedup.Deduplicate(records)
	out.Elapsed = time.Since(start)
	return out
}

// Search fetches and deduplicates a single query, optionally overriding the
// run defaults. This is the entry point the HTTP API uses.
func (r *Runner) Search(ctx context.Context, query string, maxPages, concurrency int) (*serp.QueryResult, error) {
	if maxPages == 0 {
		maxPages = r.cfg.MaxPages
	}
	if concurrency == 0 {
		concurrency = r.cfg.Concurrency
	}

	records, err := r.paginate(ctx, query, maxPages, concurrency)
	if err != nil {
		return nil, err
	}
	return dedup.Deduplicate(records), nil
}

func (r *Runner) paginate(ctx context.Context, query string, maxPages, concurrency int) ([]*serp.PageRecord, error) {
	p, err := serp.NewPaginator(r.src, serp.PaginatorConfig{
		MaxPages:    maxPages,
		Concurrency: concurrency,
		Gate:        r.gate,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}
	return p.Paginate(ctx, query, r.cfg.Params)
}
