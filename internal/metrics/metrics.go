package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_submissions_total",
			Help: "Total page submissions sent to the SERP API",
		},
		[]string{"status"},
	)

	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_polls_total",
			Help: "Total poll round-trips against the SERP API",
		},
		[]string{"status"},
	)

	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_pages_total",
			Help: "Total page fetches by final outcome",
		},
		[]string{"outcome"}, // ok, empty, error
	)

	PageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "magpie_page_fetch_duration_seconds",
			Help:    "Submit-to-result duration of one page fetch",
			Buckets: []float64{1, 2, 4, 8, 15, 30, 60},
		},
	)

	OrganicResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magpie_organic_results_total",
			Help: "Total organic results received across all pages",
		},
	)
)

// Page outcome labels for PagesTotal.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// RecordPage updates the page-level metrics after one fetch settles.
func RecordPage(outcome string, organic int, elapsed time.Duration) {
	PagesTotal.WithLabelValues(outcome).Inc()
	PageFetchDuration.Observe(elapsed.Seconds())
	if organic > 0 {
		OrganicResultsTotal.Add(float64(organic))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
