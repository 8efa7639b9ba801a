package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/magpie/internal/runner"
)

// QueryStat is one query's line in the run summary.
type QueryStat struct {
	Query   string
	Pages   int
	Organic int
	Elapsed time.Duration
	Error   string
}

// Summary aggregates timing and volume metrics for one run.
type Summary struct {
	Queries      int
	Failed       int
	TotalPages   int
	TotalOrganic int

	StartTime time.Time
	EndTime   time.Time
	WallTime  time.Duration

	MinQueryTime time.Duration
	MaxQueryTime time.Duration
	AvgQueryTime time.Duration
	// Speedup is the sum of per-query times over wall-clock time; values
	// above 1 mean the parallelism paid off.
	Speedup float64

	PerQuery []QueryStat
}

// Build derives a Summary from a run's outcomes.
func Build(outcomes []runner.QueryOutcome, start, end time.Time) Summary {
	s := Summary{
		Queries:   len(outcomes),
		StartTime: start,
		EndTime:   end,
		WallTime:  end.Sub(start),
	}

	var sum time.Duration
	for i, o := range outcomes {
		stat := QueryStat{
			Query:   o.Query,
			Pages:   o.Pages,
			Elapsed: o.Elapsed,
		}
		if o.Err != nil {
			s.Failed++
			stat.Error = o.Err.Error()
		} else {
			stat.Organic = len(o.Result.Organic)
		}

		s.TotalPages += stat.Pages
		s.TotalOrganic += stat.Organic
		sum += o.Elapsed

		if i == 0 || o.Elapsed < s.MinQueryTime {
			s.MinQueryTime = o.Elapsed
		}
		if o.Elapsed > s.MaxQueryTime {
			s.MaxQueryTime = o.Elapsed
		}

		s.PerQuery = append(s.PerQuery, stat)
	}

	if len(outcomes) > 0 {
		s.AvgQueryTime = sum / time.Duration(len(outcomes))
	}
	if s.WallTime > 0 {
		s.Speedup = float64(sum) / float64(s.WallTime)
	}

	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable run summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Magpie Run Summary
------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Wall time:     {{.WallTime}}
Queries:       {{.Queries}} ({{.Failed}} failed)
Pages fetched: {{.TotalPages}}
Organic:       {{.TotalOrganic}} unique results

Per query:
{{- range .PerQuery}}
  {{printf "%-40.40s" .Query}} {{if .Error}}FAILED: {{.Error}}{{else}}{{.Pages}} pages, {{.Organic}} organic, {{.Elapsed}}{{end}}
{{- else}}
  None
{{- end}}

Timing: min {{.MinQueryTime}}, max {{.MaxQueryTime}}, avg {{.AvgQueryTime}}, speedup {{printf "%.2f" .Speedup}}x
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}
