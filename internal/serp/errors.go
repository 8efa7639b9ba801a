package serp

import (
	"errors"
	"fmt"
)

// ErrEmptyPage marks a structurally valid page with zero organic results.
// It is not a fault: the paginator folds it into early-termination accounting
// and the fetcher never retries it.
var ErrEmptyPage = errors.New("page contains no organic results")

// ErrInvalidSortKey is returned for an unrecognized sort key.
var ErrInvalidSortKey = errors.New("invalid sort key")

// SubmissionError means the remote rejected a call or was unreachable.
// It is retryable.
type SubmissionError struct {
	Op     string // "submit" or "poll"
	Status int    // HTTP status if one was received, 0 otherwise
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollTimeoutError means a submitted job never completed within the poll
// attempt budget. Retryable once at the fetcher level, then fatal for that
// page only.
type PollTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s still pending after %d polls", e.JobID, e.Attempts)
}

// FetchError wraps a page's failure after its retry budget is exhausted.
// It is contained at the paginator and never aborts the whole query.
type FetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// QueryError is a query-level failure: every page of the query failed after
// retries, or the query could not be started at all.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ParameterError signals caller misuse. Fatal, surfaced immediately,
// never retried.
type ParameterError struct {
	Name   string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// Transient reports whether err is worth retrying at the fetcher level.
func Transient(err error) bool {
	var se *SubmissionError
	var pe *PollTimeoutError
	return errors.As(err, &se) || errors.As(err, &pe)
}
