// Package output encodes query results for the external formatting
// collaborator: pretty JSON, NDJSON for pipelines, or flat CSV of the
// organic rows.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FranksOps/magpie/internal/serp"
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCSV    Format = "csv"
)

// ParseFormat validates a format selector; an empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatNDJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", &serp.ParameterError{Name: "format", Reason: fmt.Sprintf("unknown format %q", s)}
	}
}

// csvColumns defines the CSV column order, matching the remote schema names.
var csvColumns = []string{
	"link",
	"rank",
	"title",
	"description",
	"best_position",
	"avg_position",
	"frequency",
	"pages_seen",
	"queries",
	"query",
}

// WriteQueryResults emits one result per input query. JSON renders a single
// query as a bare object and several as an object keyed by query, keys in
// input order; NDJSON is
// one result per line; CSV flattens all organic rows with a query column.
func WriteQueryResults(w io.Writer, format Format, results []*serp.QueryResult) error {
	switch format {
	case FormatJSON:
		if len(results) == 1 {
			return encodeJSON(w, results[0])
		}
		return encodeJSON(w, keyedResults(results))

	case FormatNDJSON:
		enc := json.NewEncoder(w)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("output: %w", err)
			}
		}
		return nil

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvColumns); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		for _, r := range results {
			for _, item := range r.Organic {
				if err := cw.Write(organicRow(item, r.General.Query)); err != nil {
					return fmt.Errorf("output: %w", err)
				}
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		return nil

	default:
		return &serp.ParameterError{Name: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

// WriteMerged emits a cross-query merge result.
func WriteMerged(w io.Writer, format Format, m *serp.MergedResult) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, m)

	case FormatNDJSON:
		if err := json.NewEncoder(w).Encode(m); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		return nil

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvColumns); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		for _, item := range m.Organic {
			if err := cw.Write(organicRow(item, "")); err != nil {
				return fmt.Errorf("output: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		return nil

	default:
		return &serp.ParameterError{Name: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

// keyedResults marshals as a JSON object keyed by query in input order.
// A plain map would do, except encoding/json sorts map keys alphabetically
// and the record order must follow the query order the caller gave.
type keyedResults []*serp.QueryResult

func (rs keyedResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeMember(&buf, r.General.Query); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeMember(&buf, r); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeMember(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline; strip it inside the object.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func organicRow(item serp.OrganicResult, query string) []string {
	pages := make([]string, len(item.PagesSeen))
	for i, p := range item.PagesSeen {
		pages[i] = strconv.Itoa(p)
	}

	return []string{
		item.Link,
		strconv.Itoa(item.Rank),
		item.Title,
		item.Description,
		strconv.Itoa(item.BestPosition),
		strconv.FormatFloat(item.AvgPosition, 'f', -1, 64),
		strconv.Itoa(item.Frequency),
		strings.Join(pages, ", "),
		strings.Join(item.Queries, "; "),
		query,
	}
}
