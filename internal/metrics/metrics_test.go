package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPage(t *testing.T) {
	okBefore := testutil.ToFloat64(PagesTotal.WithLabelValues(OutcomeOK))
	emptyBefore := testutil.ToFloat64(PagesTotal.WithLabelValues(OutcomeEmpty))
	organicBefore := testutil.ToFloat64(OrganicResultsTotal)

	RecordPage(OutcomeOK, 10, 3*time.Second)
	RecordPage(OutcomeEmpty, 0, 2*time.Second)

	if got := testutil.ToFloat64(PagesTotal.WithLabelValues(OutcomeOK)) - okBefore; got != 1 {
		t.Errorf("ok pages: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(PagesTotal.WithLabelValues(OutcomeEmpty)) - emptyBefore; got != 1 {
		t.Errorf("empty pages: got %v, want 1", got)
	}
	// The empty page must not contribute organic results.
	if got := testutil.ToFloat64(OrganicResultsTotal) - organicBefore; got != 10 {
		t.Errorf("organic total: got %v, want 10", got)
	}
}

func TestServerStartStop(t *testing.T) {
	s := Start(0)
	// Give ListenAndServe a moment to fail or bind before shutting down.
	time.Sleep(10 * time.Millisecond)
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("stop: %v", err)
	}
}
