package dedup

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/FranksOps/magpie/internal/serp"
)

// SortKey selects the ordering of an organic result list.
type SortKey string

const (
	SortBestPosition SortKey = "best_position"
	SortFrequency    SortKey = "frequency"
	SortAvgPosition  SortKey = "avg_position"
)

// ParseSortKey validates a sort key; an empty string means the default.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortBestPosition, nil
	case SortBestPosition, SortFrequency, SortAvgPosition:
		return SortKey(s), nil
	default:
		return "", fmt.Errorf("%w: %q", serp.ErrInvalidSortKey, s)
	}
}

// SortOrganic orders items by the given key: ascending for position metrics,
// descending for frequency. Ties settle on the other metrics and finally the
// link, so the order is fully deterministic.
func SortOrganic(items []serp.OrganicResult, key SortKey) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch key {
		case SortFrequency:
			if a.Frequency != b.Frequency {
				return a.Frequency > b.Frequency
			}
			if a.BestPosition != b.BestPosition {
				return a.BestPosition < b.BestPosition
			}
		case SortAvgPosition:
			if a.AvgPosition != b.AvgPosition {
				return a.AvgPosition < b.AvgPosition
			}
			if a.BestPosition != b.BestPosition {
				return a.BestPosition < b.BestPosition
			}
		default: // best position
			if a.BestPosition != b.BestPosition {
				return a.BestPosition < b.BestPosition
			}
			if a.Frequency != b.Frequency {
				return a.Frequency > b.Frequency
			}
		}
		return a.Link < b.Link
	})
}

// FilterOrganic drops items below minFrequency, then truncates to limit.
// Zero values disable either step.
func FilterOrganic(items []serp.OrganicResult, minFrequency, limit int) []serp.OrganicResult {
	out := items
	if minFrequency > 0 {
		out = out[:0:0]
		for _, item := range items {
			if item.Frequency >= minFrequency {
				out = append(out, item)
			}
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// MergeOptions controls ordering and filtering of a merge (and, via
// ApplyToQuery, of a single query's organic list).
type MergeOptions struct {
	SortBy       SortKey
	Limit        int
	MinFrequency int
}

// ApplyToQuery applies sort/filter options to one query's organic results
// in place.
func ApplyToQuery(qr *serp.QueryResult, opts MergeOptions) error {
	key, err := ParseSortKey(string(opts.SortBy))
	if err != nil {
		return err
	}
	SortOrganic(qr.Organic, key)
	qr.Organic = FilterOrganic(qr.Organic, opts.MinFrequency, opts.Limit)
	return nil
}

type mergedGroup struct {
	repr      serp.OrganicResult
	positions []int // per-query best positions, zeros excluded
	pages     []int
	queries   []string
	querySet  map[string]struct{}
}

// Merge combines the deduplicated results of independent queries into one
// ranked, filterable result set. The join key is the bare link: the same URL
// under two queries is one group. Frequency counts contributing queries and
// pages_seen is replaced by their names.
func Merge(results []*serp.QueryResult, opts MergeOptions) (*serp.MergedResult, error) {
	key, err := ParseSortKey(string(opts.SortBy))
	if err != nil {
		return nil, err
	}

	m := &serp.MergedResult{
		General: serp.MergedGeneral{
			Queries:      []string{},
			SearchEngine: "google",
			SearchType:   "text",
		},
		Related:       []serp.RelatedSearch{},
		Organic:       []serp.OrganicResult{},
		PeopleAlsoAsk: []json.RawMessage{},
		Navigation:    []serp.NavigationEntry{},
	}

	groups := make(map[string]*mergedGroup)
	order := []string{}

	relatedByKey := make(map[string]*serp.RelatedSearch)
	relatedOrder := []string{}
	paaSeen := make(map[string]struct{})
	navSeen := make(map[string]struct{})
	var datetimes []string

	for i, r := range results {
		query := r.General.Query
		if query == "" {
			query = "unknown"
		}
		m.General.Queries = append(m.General.Queries, query)

		if i == 0 {
			m.URL = r.URL
			m.Keyword = r.Keyword
			m.Language = r.Language
			m.Country = r.Country
			m.General.Language = r.General.Language
			m.General.Location = r.General.Location
			if r.General.SearchEngine != "" {
				m.General.SearchEngine = r.General.SearchEngine
			}
			if r.General.SearchType != "" {
				m.General.SearchType = r.General.SearchType
			}
		}

		if r.General.Datetime != "" {
			datetimes = append(datetimes, r.General.Datetime)
		}
		if m.AIOverview == "" && r.AIOverview != "" {
			m.AIOverview = r.AIOverview
		}

		for _, item := range r.Organic {
			if item.Link == "" {
				continue
			}
			ingestMerged(groups, &order, item, query)
		}

		for _, rel := range r.Related {
			k := relatedKey(rel)
			if k == "" {
				continue
			}
			entry, ok := relatedByKey[k]
			if !ok {
				cp := rel
				cp.Queries = []string{query}
				cp.Frequency = 1
				relatedByKey[k] = &cp
				relatedOrder = append(relatedOrder, k)
				continue
			}
			if !contains(entry.Queries, query) {
				entry.Queries = append(entry.Queries, query)
				entry.Frequency = len(entry.Queries)
			}
		}

		for _, paa := range r.PeopleAlsoAsk {
			k := string(paa)
			if _, ok := paaSeen[k]; ok {
				continue
			}
			paaSeen[k] = struct{}{}
			m.PeopleAlsoAsk = append(m.PeopleAlsoAsk, paa)
		}

		for _, nav := range r.Navigation {
			if nav.Href == "" {
				continue
			}
			if _, ok := navSeen[nav.Href]; ok {
				continue
			}
			navSeen[nav.Href] = struct{}{}
			m.Navigation = append(m.Navigation, nav)
		}
	}

	if len(datetimes) > 0 {
		earliest, latest := datetimes[0], datetimes[0]
		for _, dt := range datetimes[1:] {
			if dt < earliest {
				earliest = dt
			}
			if dt > latest {
				latest = dt
			}
		}
		m.General.DatetimeRange = serp.DatetimeRange{Earliest: earliest, Latest: latest}
	}

	for _, link := range order {
		m.Organic = append(m.Organic, groups[link].finish())
	}
	SortOrganic(m.Organic, key)
	m.Organic = FilterOrganic(m.Organic, opts.MinFrequency, opts.Limit)

	for _, k := range relatedOrder {
		m.Related = append(m.Related, *relatedByKey[k])
	}
	sort.SliceStable(m.Related, func(i, j int) bool {
		return m.Related[i].Frequency > m.Related[j].Frequency
	})

	return m, nil
}

func ingestMerged(groups map[string]*mergedGroup, order *[]string, item serp.OrganicResult, query string) {
	// A fresh single-page item has no aggregates yet; its rank is its
	// best position.
	best := item.BestPosition
	if best == 0 {
		best = item.Rank
	}

	g, ok := groups[item.Link]
	if !ok {
		g = &mergedGroup{
			repr:     item,
			querySet: make(map[string]struct{}),
		}
		groups[item.Link] = g
		*order = append(*order, item.Link)
	}

	if best > 0 {
		g.positions = append(g.positions, best)
	}
	g.pages = append(g.pages, item.PagesSeen...)
	if _, seen := g.querySet[query]; !seen {
		g.querySet[query] = struct{}{}
		g.queries = append(g.queries, query)
	}
}

func (g *mergedGroup) finish() serp.OrganicResult {
	item := g.repr

	item.BestPosition = 0
	item.AvgPosition = 0
	if len(g.positions) > 0 {
		best := g.positions[0]
		sum := 0
		for _, p := range g.positions {
			if p < best {
				best = p
			}
			sum += p
		}
		item.BestPosition = best
		item.AvgPosition = round1(float64(sum) / float64(len(g.positions)))
	}

	item.Frequency = len(g.queries)
	item.PagesSeen = sortedDistinct(g.pages)
	item.Queries = append([]string(nil), g.queries...)
	return item
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
