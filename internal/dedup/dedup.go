// Package dedup collapses multi-page SERP fetches into aggregated results
// and optionally merges the results of several queries.
package dedup

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/FranksOps/magpie/internal/serp"
)

// organicGroup accumulates all occurrences of one link across pages.
type organicGroup struct {
	repr     serp.OrganicResult // occurrence with the lowest rank (tie: lowest page)
	reprRank int
	reprPage int

	best    int
	sum     float64
	count   int
	pages   []int
	pageSet map[int]struct{}
}

// Deduplicate collapses the PageRecords of one query into a QueryResult.
// The outcome is independent of the order records are passed in.
//
// Ingestion honors aggregate fields already present on an item (frequency,
// pages_seen, avg), so feeding an already-deduplicated result back through
// as a single page reproduces it exactly.
func Deduplicate(records []*serp.PageRecord) *serp.QueryResult {
	ordered := make([]*serp.PageRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PageNumber < ordered[j].PageNumber
	})

	qr := &serp.QueryResult{
		Related:       []serp.RelatedSearch{},
		Pagination:    []serp.PaginationLink{},
		Organic:       []serp.OrganicResult{},
		PeopleAlsoAsk: []json.RawMessage{},
		Navigation:    []serp.NavigationEntry{},
	}

	groups := make(map[string]*organicGroup)
	order := []string{}

	relatedSeen := make(map[string]struct{})
	paaSeen := make(map[string]struct{})
	navSeen := make(map[string]struct{})
	pageLinkSeen := make(map[string]struct{})

	for i, rec := range ordered {
		if i == 0 {
			qr.URL = rec.URL
			qr.Keyword = rec.Keyword
			qr.General = rec.General
			qr.Language = rec.Language
			qr.Country = rec.Country
			qr.AIOverview = rec.AIOverview
		}

		for _, item := range rec.Organic {
			if item.Link == "" {
				continue
			}
			ingestOrganic(groups, &order, item, rec.PageNumber)
		}

		for _, rel := range rec.Related {
			key := relatedKey(rel)
			if key == "" {
				continue
			}
			if _, ok := relatedSeen[key]; ok {
				continue
			}
			relatedSeen[key] = struct{}{}
			qr.Related = append(qr.Related, rel)
		}

		for _, paa := range rec.PeopleAlsoAsk {
			key := string(paa)
			if _, ok := paaSeen[key]; ok {
				continue
			}
			paaSeen[key] = struct{}{}
			qr.PeopleAlsoAsk = append(qr.PeopleAlsoAsk, paa)
		}

		for _, nav := range rec.Navigation {
			if nav.Href == "" {
				continue
			}
			if _, ok := navSeen[nav.Href]; ok {
				continue
			}
			navSeen[nav.Href] = struct{}{}
			qr.Navigation = append(qr.Navigation, nav)
		}

		for _, pl := range rec.Pagination {
			key := pl.Page
			if key == "" {
				key = pl.Link
			}
			if key == "" {
				continue
			}
			if _, ok := pageLinkSeen[key]; ok {
				continue
			}
			pageLinkSeen[key] = struct{}{}
			qr.Pagination = append(qr.Pagination, pl)
		}
	}

	sort.SliceStable(qr.Pagination, func(i, j int) bool {
		return pageNumberOf(qr.Pagination[i]) < pageNumberOf(qr.Pagination[j])
	})

	for _, link := range order {
		qr.Organic = append(qr.Organic, groups[link].finish())
	}
	SortOrganic(qr.Organic, SortBestPosition)

	return qr
}

func ingestOrganic(groups map[string]*organicGroup, order *[]string, item serp.OrganicResult, page int) {
	rank := item.Rank
	if rank < 0 {
		rank = 0
	}

	g, ok := groups[item.Link]
	if !ok {
		g = &organicGroup{
			repr:     item,
			reprRank: rank,
			reprPage: page,
			pageSet:  make(map[int]struct{}),
		}

		if item.Frequency > 0 {
			// Already-aggregated item: seed the group from its stats so
			// re-deduplication is a no-op.
			g.best = item.BestPosition
			g.count = item.Frequency
			g.sum = item.AvgPosition * float64(item.Frequency)
			g.pages = append(g.pages, item.PagesSeen...)
			for _, p := range item.PagesSeen {
				g.pageSet[p] = struct{}{}
			}
		} else {
			g.best = rank
			g.count = 1
			g.sum = float64(rank)
			g.pages = []int{page}
			g.pageSet[page] = struct{}{}
		}

		groups[item.Link] = g
		*order = append(*order, item.Link)
		return
	}

	if _, seen := g.pageSet[page]; seen && item.Frequency == 0 {
		// A URL counts once per distinct page. The remote emits organic
		// entries in rank order, so the occurrence already recorded for
		// this page is the best one.
		return
	}

	g.count++
	g.sum += float64(rank)
	if rank < g.best {
		g.best = rank
	}
	g.pages = append(g.pages, page)
	g.pageSet[page] = struct{}{}

	if rank < g.reprRank || (rank == g.reprRank && page < g.reprPage) {
		g.repr = item
		g.reprRank = rank
		g.reprPage = page
	}
}

func (g *organicGroup) finish() serp.OrganicResult {
	item := g.repr
	item.BestPosition = g.best
	item.AvgPosition = round1(g.sum / float64(g.count))
	item.Frequency = g.count
	item.PagesSeen = sortedDistinct(g.pages)
	item.Queries = nil
	return item
}

// relatedKey is the dedup key for related searches: the link when present,
// otherwise the case-normalized text.
func relatedKey(rel serp.RelatedSearch) string {
	if rel.Link != "" {
		return rel.Link
	}
	return strings.ToLower(strings.TrimSpace(rel.Text))
}

func pageNumberOf(pl serp.PaginationLink) int {
	n, err := strconv.Atoi(pl.Page)
	if err != nil {
		return 0
	}
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortedDistinct(pages []int) []int {
	set := make(map[int]struct{}, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if _, ok := set[p]; ok {
			continue
		}
		set[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
