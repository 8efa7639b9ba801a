package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/magpie/internal/metrics"
	"github.com/FranksOps/magpie/pkg/httpclient"
	"github.com/FranksOps/magpie/pkg/ratelimit"
)

// DefaultBaseURL is the production endpoint of the SERP proxy API.
const DefaultBaseURL = "https://api.brightdata.com"

// ResultsPerPage is the remote's fixed page size; page N starts at offset
// (N-1)*ResultsPerPage.
const ResultsPerPage = 10

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 20
)

// ClientConfig carries the credential and remote defaults. It is constructed
// explicitly and injected, never read from ambient globals, so tests can
// point the client at a fake server.
type ClientConfig struct {
	APIKey  string
	Zone    string
	BaseURL string
	// PollInterval is fixed, not exponential: remote jobs settle within a
	// handful of polls in practice, and each poll is billable.
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
	// Limiter, when set, paces submissions.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Client submits page fetches as asynchronous jobs against the remote API and
// polls them to completion.
type Client struct {
	cfg    ClientConfig
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &ParameterError{Name: "api_key", Reason: "must not be empty"}
	}
	if cfg.Zone == "" {
		return nil, &ParameterError{Name: "zone", Reason: "must not be empty"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		http: httpclient.New(httpclient.Config{
			Timeout:     cfg.Timeout,
			BearerToken: cfg.APIKey,
		}),
		logger: cfg.Logger,
	}, nil
}

// rawSERP mirrors the remote's structured payload. Absent fields stay at
// their zero values; nothing here is an error.
type rawSERP struct {
	URL           string            `json:"url"`
	Keyword       string            `json:"keyword"`
	General       General           `json:"general"`
	Related       []RelatedSearch   `json:"related"`
	Pagination    []PaginationLink  `json:"pagination"`
	Organic       []OrganicResult   `json:"organic"`
	PeopleAlsoAsk []json.RawMessage `json:"people_also_ask"`
	Navigation    []NavigationEntry `json:"navigation"`
	Language      string            `json:"language"`
	Country       string            `json:"country"`
	AIOverview    string            `json:"aio_text"`
}

type submitRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

type submitResponse struct {
	ResponseID string `json:"response_id"`
}

// searchURL builds the target search URL the proxy executes on our behalf.
func (c *Client) searchURL(query string, page int, params SearchParams) string {
	v := url.Values{}
	v.Set("q", query)
	if params.Country != "" {
		v.Set("gl", params.Country)
	}
	if params.Language != "" {
		v.Set("hl", params.Language)
	}
	v.Set("brd_json", "1")
	v.Set("start", strconv.Itoa((page-1)*ResultsPerPage))
	return "https://www.google.com/search?" + v.Encode()
}

// Submit enqueues one page fetch and returns the remote job id.
func (c *Client) Submit(ctx context.Context, query string, page int, params SearchParams) (string, error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := submitRequest{
		Zone:   c.cfg.Zone,
		URL:    c.searchURL(query, page, params),
		Format: "raw",
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/serp/req", body)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return "", &SubmissionError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	metrics.SubmissionsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &SubmissionError{Op: "submit", Status: resp.StatusCode}
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return "", &SubmissionError{Op: "submit", Err: fmt.Errorf("decode response: %w", err)}
	}
	if sub.ResponseID == "" {
		return "", &SubmissionError{Op: "submit", Err: fmt.Errorf("remote returned no response_id")}
	}

	return sub.ResponseID, nil
}

// Poll performs a single poll round-trip. done is false while the job is
// still processing (HTTP 102/202).
func (c *Client) Poll(ctx context.Context, jobID string) (raw *rawSERP, done bool, err error) {
	u := c.cfg.BaseURL + "/serp/get_result?" + url.Values{"response_id": {jobID}}.Encode()

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return nil, false, &SubmissionError{Op: "poll", Err: err}
	}
	defer resp.Body.Close()

	metrics.PollsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload rawSERP
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, false, &SubmissionError{Op: "poll", Err: fmt.Errorf("decode payload: %w", err)}
		}
		return &payload, true, nil
	case http.StatusProcessing, http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, &SubmissionError{Op: "poll", Status: resp.StatusCode}
	}
}

// FetchRaw runs the full submit-then-poll protocol for one page. Polling is a
// timer-based wait, never a spin loop, and stops as soon as the job settles:
// a finished job is never polled again.
func (c *Client) FetchRaw(ctx context.Context, query string, page int, params SearchParams) (*rawSERP, error) {
	jobID, err := c.Submit(ctx, query, page, params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("job submitted", "query", query, "page", page, "job", jobID)

	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		raw, done, err := c.Poll(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if done {
			return raw, nil
		}

		timer.Reset(c.cfg.PollInterval)
	}

	return nil, &PollTimeoutError{JobID: jobID, Attempts: c.cfg.MaxPolls}
}
