package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// Cfg is the resolved run configuration.
type Cfg struct {
	// Remote API
	APIKey  string
	Zone    string
	BaseURL string

	// Search parameters
	Country  string
	Language string

	// Pagination
	MaxPages          int
	Concurrency       int
	GlobalConcurrency int

	// Polling and retries
	PollIntervalSec int
	MaxPolls        int
	Retries         int

	// Submission pacing
	RequestsPerSecond float64
	Jitter            float64

	// Processing
	CrossQuery   bool
	SortBy       string
	Limit        int
	MinFrequency int

	// I/O
	QueriesFile string
	ProfilePath string
	Format      string
	Output      string

	// Serve mode
	Serve       bool
	Port        string
	MetricsPort int

	Debug   bool
	Version string

	Queries []string
}

type rawCfg struct {
	APIKey  string `long:"api-key" env:"BRIGHTDATA_API_KEY" description:"SERP API bearer credential (required)"`
	Zone    string `long:"zone" env:"BRIGHTDATA_ZONE" default:"serp_api1" description:"SERP API zone"`
	BaseURL string `long:"base-url" env:"BRIGHTDATA_BASE_URL" default:"https://api.brightdata.com" description:"SERP API base URL"`

	Country  string `long:"country" env:"SEARCH_COUNTRY" default:"us" description:"Country code (gl) for searches"`
	Language string `long:"language" env:"SEARCH_LANGUAGE" default:"en" description:"Language code (hl) for searches"`

	MaxPages          int `long:"max-pages" short:"p" env:"MAX_PAGES" default:"25" description:"Maximum pages per query"`
	Concurrency       int `long:"concurrency" short:"c" env:"CONCURRENCY" default:"50" description:"Max concurrent page fetches per query"`
	GlobalConcurrency int `long:"global-concurrency" env:"GLOBAL_CONCURRENCY" default:"50" description:"Max concurrent page fetches across all queries (0 = unbounded)"`

	PollIntervalSec int `long:"poll-interval" env:"POLL_INTERVAL" default:"2" description:"Seconds between result polls"`
	MaxPolls        int `long:"max-polls" env:"MAX_POLLS" default:"20" description:"Poll attempts before a job times out"`
	Retries         int `long:"retries" env:"RETRIES" default:"3" description:"Fetch attempts per page"`

	RequestsPerSecond float64 `long:"rps" env:"REQUESTS_PER_SECOND" description:"Submission rate limit (0 = unlimited)"`
	Jitter            float64 `long:"jitter" env:"RATE_JITTER" description:"Rate limiter jitter factor (0.0 to 1.0)"`

	CrossQuery   bool   `long:"cross-query" short:"x" description:"Merge all queries into a single result"`
	SortBy       string `long:"sort-by" short:"s" default:"best_position" choice:"best_position" choice:"frequency" choice:"avg_position" description:"Organic sort key"`
	Limit        int    `long:"limit" short:"l" description:"Keep only the top N organic results (0 = no limit)"`
	MinFrequency int    `long:"min-frequency" short:"m" description:"Drop organic results below this frequency (0 = no filter)"`

	QueriesFile string `long:"file" short:"f" description:"File containing queries, one per line"`
	ProfilePath string `long:"profile" description:"YAML run profile"`
	Format      string `long:"format" short:"o" default:"json" choice:"json" choice:"ndjson" choice:"csv" description:"Output format"`
	Output      string `long:"output" default:"-" description:"Output file (- = stdout)"`

	Serve       bool   `long:"serve" description:"Run the HTTP search API instead of a batch"`
	Port        string `long:"port" env:"PORT" default:"8000" description:"HTTP server port"`
	MetricsPort int    `long:"metrics-port" env:"METRICS_PORT" description:"Prometheus metrics port (0 = disabled)"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Queries []string `positional-arg-name:"QUERY"`
	} `positional-args:"yes"`
}

// Load parses command line flags and environment variables. A nil Cfg with a
// nil error means help was requested.
func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return &Cfg{
		APIKey:            raw.APIKey,
		Zone:              raw.Zone,
		BaseURL:           raw.BaseURL,
		Country:           raw.Country,
		Language:          raw.Language,
		MaxPages:          raw.MaxPages,
		Concurrency:       raw.Concurrency,
		GlobalConcurrency: raw.GlobalConcurrency,
		PollIntervalSec:   raw.PollIntervalSec,
		MaxPolls:          raw.MaxPolls,
		Retries:           raw.Retries,
		RequestsPerSecond: raw.RequestsPerSecond,
		Jitter:            raw.Jitter,
		CrossQuery:        raw.CrossQuery,
		SortBy:            raw.SortBy,
		Limit:             raw.Limit,
		MinFrequency:      raw.MinFrequency,
		QueriesFile:       raw.QueriesFile,
		ProfilePath:       raw.ProfilePath,
		Format:            raw.Format,
		Output:            raw.Output,
		Serve:             raw.Serve,
		Port:              raw.Port,
		MetricsPort:       raw.MetricsPort,
		Debug:             raw.Debug,
		Version:           GetVersion(),
		Queries:           raw.Args.Queries,
	}, nil
}
