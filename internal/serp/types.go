package serp

import (
	"encoding/json"
	"time"
)

// OrganicResult is a single non-paid search result. Rank, title and
// description come straight from the remote payload; the aggregate fields
// (BestPosition and friends) are filled in by the deduplicator and are zero
// on freshly fetched pages.
type OrganicResult struct {
	Link        string `json:"link"`
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DisplayURL  string `json:"url,omitempty"`

	BestPosition int     `json:"best_position,omitempty"`
	AvgPosition  float64 `json:"avg_position,omitempty"`
	Frequency    int     `json:"frequency,omitempty"`
	PagesSeen    []int   `json:"pages_seen,omitempty"`
	// Queries is only set by the cross-query merger, where PagesSeen is
	// replaced by the set of contributing queries.
	Queries []string `json:"queries,omitempty"`
}

// RelatedSearch is a "searches related to ..." entry.
type RelatedSearch struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
	Rank int    `json:"rank,omitempty"`

	// Cross-query aggregation only.
	Queries   []string `json:"queries,omitempty"`
	Frequency int      `json:"frequency,omitempty"`
}

// NavigationEntry is a SERP navigation tab (Images, News, ...).
type NavigationEntry struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// PaginationLink points at one page of the result set. The remote emits these
// either as objects or as bare link strings; UnmarshalJSON accepts both.
type PaginationLink struct {
	Link string `json:"link"`
	Page string `json:"page"`
}

func (p *PaginationLink) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Link = s
		p.Page = ""
		return nil
	}

	type plain PaginationLink
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PaginationLink(v)
	return nil
}

// General carries per-query metadata reported by the remote.
type General struct {
	Query        string `json:"query,omitempty"`
	Language     string `json:"language,omitempty"`
	Location     string `json:"location,omitempty"`
	Datetime     string `json:"datetime,omitempty"`
	SearchEngine string `json:"search_engine,omitempty"`
	SearchType   string `json:"search_type,omitempty"`
	ResultsCount int64  `json:"results_cnt,omitempty"`
}

// PageRecord is the normalized outcome of fetching one page of one query.
// It is produced by the Fetcher, consumed exactly once by the deduplicator
// and then discarded.
type PageRecord struct {
	PageNumber int
	FetchedAt  time.Time

	URL           string
	Keyword       string
	General       General
	Organic       []OrganicResult
	Related       []RelatedSearch
	PeopleAlsoAsk []json.RawMessage
	Navigation    []NavigationEntry
	Pagination    []PaginationLink
	Language      string
	Country       string
	AIOverview    string
}

// Empty reports whether the page carried zero organic results.
func (p *PageRecord) Empty() bool {
	return len(p.Organic) == 0
}

// QueryResult is one query's final deduplicated state. The JSON shape mirrors
// the remote schema so downstream consumers see a familiar document.
type QueryResult struct {
	URL           string            `json:"url,omitempty"`
	Keyword       string            `json:"keyword,omitempty"`
	General       General           `json:"general"`
	Related       []RelatedSearch   `json:"related"`
	Pagination    []PaginationLink  `json:"pagination"`
	Organic       []OrganicResult   `json:"organic"`
	PeopleAlsoAsk []json.RawMessage `json:"people_also_ask"`
	Navigation    []NavigationEntry `json:"navigation"`
	Language      string            `json:"language,omitempty"`
	Country       string            `json:"country,omitempty"`
	AIOverview    string            `json:"aio_text,omitempty"`
}

// MergedGeneral replaces General on a cross-query merge.
type MergedGeneral struct {
	Queries       []string      `json:"queries"`
	DatetimeRange DatetimeRange `json:"datetime_range"`
	Language      string        `json:"language,omitempty"`
	Location      string        `json:"location,omitempty"`
	SearchEngine  string        `json:"search_engine,omitempty"`
	SearchType    string        `json:"search_type,omitempty"`
}

type DatetimeRange struct {
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

// MergedResult is the cross-query aggregation of several QueryResults.
// Organic entries carry Queries instead of PagesSeen semantics: Frequency
// counts the number of distinct queries a link appeared under.
type MergedResult struct {
	URL           string            `json:"url,omitempty"`
	Keyword       string            `json:"keyword,omitempty"`
	General       MergedGeneral     `json:"general"`
	Related       []RelatedSearch   `json:"related"`
	Organic       []OrganicResult   `json:"organic"`
	PeopleAlsoAsk []json.RawMessage `json:"people_also_ask"`
	Navigation    []NavigationEntry `json:"navigation"`
	Language      string            `json:"language,omitempty"`
	Country       string            `json:"country,omitempty"`
	AIOverview    string            `json:"aio_text,omitempty"`
}

// SearchParams are the per-run knobs forwarded to the remote on every page
// submission.
type SearchParams struct {
	Country  string
	Language string
}
