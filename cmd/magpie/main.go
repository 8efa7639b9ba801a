package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FranksOps/magpie/internal/api"
	"github.com/FranksOps/magpie/internal/cfg"
	"github.com/FranksOps/magpie/internal/dedup"
	"github.com/FranksOps/magpie/internal/metrics"
	"github.com/FranksOps/magpie/internal/output"
	"github.com/FranksOps/magpie/internal/report"
	"github.com/FranksOps/magpie/internal/runner"
	"github.com/FranksOps/magpie/internal/serp"
	"github.com/FranksOps/magpie/pkg/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "magpie: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real env vars take precedence
	_ = godotenv.Load()

	conf, err := cfg.Load()
	if err != nil {
		return err
	}
	if conf == nil {
		return nil // help requested
	}

	if conf.ProfilePath != "" {
		profile, err := cfg.LoadProfile(conf.ProfilePath)
		if err != nil {
			return err
		}
		conf.ApplyProfile(profile)
	}

	level := slog.LevelInfo
	if conf.Debug {
		level = slog.LevelDebug
	}
	// Logs go to stderr: stdout stays a clean data pipeline
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if conf.APIKey == "" {
		return &serp.ParameterError{Name: "api_key", Reason: "set BRIGHTDATA_API_KEY or pass --api-key"}
	}

	var metricsSrv *metrics.Server
	if conf.MetricsPort > 0 {
		metricsSrv = metrics.Start(conf.MetricsPort)
		logger.Info("metrics server started", "port", conf.MetricsPort)
		defer func() {
			_ = metricsSrv.Stop(context.Background())
		}()
	}

	limiter := ratelimit.NewLimiter(conf.RequestsPerSecond, conf.Jitter)
	defer limiter.Stop()

	client, err := serp.NewClient(serp.ClientConfig{
		APIKey:       conf.APIKey,
		Zone:         conf.Zone,
		BaseURL:      conf.BaseURL,
		PollInterval: time.Duration(conf.PollIntervalSec) * time.Second,
		MaxPolls:     conf.MaxPolls,
		Limiter:      limiter,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	fetcher := serp.NewFetcher(client, serp.FetcherConfig{
		Retries: conf.Retries,
		Logger:  logger,
	})

	r := runner.New(fetcher, runner.Config{
		MaxPages:          conf.MaxPages,
		Concurrency:       conf.Concurrency,
		GlobalConcurrency: conf.GlobalConcurrency,
		Params: serp.SearchParams{
			Country:  conf.Country,
			Language: conf.Language,
		},
		Logger: logger,
	})

	if conf.Serve {
		return serve(conf, r, logger)
	}
	return batch(conf, r, logger)
}

func serve(conf *cfg.Cfg, r *runner.Runner, logger *slog.Logger) error {
	engine := api.NewServer(api.NewHandler(r))

	srv := &http.Server{
		Addr:    ":" + conf.Port,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("search API listening", "port", conf.Port, "version", conf.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func batch(conf *cfg.Cfg, r *runner.Runner, logger *slog.Logger) error {
	queries, err := collectQueries(conf, os.Stdin)
	if err != nil {
		return err
	}

	opts := dedup.MergeOptions{
		SortBy:       dedup.SortKey(conf.SortBy),
		Limit:        conf.Limit,
		MinFrequency: conf.MinFrequency,
	}
	if _, err := dedup.ParseSortKey(conf.SortBy); err != nil {
		return err
	}
	format, err := output.ParseFormat(conf.Format)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	outcomes, runErr := r.Run(ctx, queries)
	summary := report.Build(outcomes, start, time.Now())

	defer func() {
		if err := report.WriteText(os.Stderr, summary); err != nil {
			logger.Warn("failed to render summary", "err", err)
		}
	}()

	if runErr != nil {
		return runErr
	}

	out, closeOut, err := openOutput(conf.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	var results []*serp.QueryResult
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		results = append(results, o.Result)
	}

	if conf.CrossQuery {
		merged, err := dedup.Merge(results, opts)
		if err != nil {
			return err
		}
		return output.WriteMerged(out, format, merged)
	}

	for _, qr := range results {
		if err := dedup.ApplyToQuery(qr, opts); err != nil {
			return err
		}
	}
	return output.WriteQueryResults(out, format, results)
}

// collectQueries gathers queries from positional args, --file and the
// profile; when none were given it falls back to stdin, one per line.
func collectQueries(conf *cfg.Cfg, stdin io.Reader) ([]string, error) {
	queries := append([]string(nil), conf.Queries...)

	if conf.QueriesFile != "" {
		lines, err := readLines(conf.QueriesFile)
		if err != nil {
			return nil, err
		}
		queries = append(queries, lines...)
	}

	if len(queries) == 0 {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				queries = append(queries, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	if len(queries) == 0 {
		return nil, errors.New("no queries provided: pass them as arguments, via --file, a profile, or stdin")
	}

	return queries, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	return lines, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
