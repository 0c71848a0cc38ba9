package query

import (
	"sort"
	"strings"

	"evently/internal/model"
)

// SortKey names an ordering of the derived list.
type SortKey string

const (
	SortRecommended SortKey = "recommended"
	SortDate        SortKey = "date"
	SortPrice       SortKey = "price"
	SortPopularity  SortKey = "popularity"
)

// ParseSortKey is case-insensitive; unknown values mean SortRecommended.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortDate, SortPrice, SortPopularity:
		return k
	default:
		return SortRecommended
	}
}

// Derive returns the records of catalog that match f, ordered by key. The
// result is a fresh slice; catalog itself is neither mutated nor reordered.
func Derive(catalog []model.Event, f Filter, key SortKey) []model.Event {
	m := f.compile()
	out := make([]model.Event, 0, len(catalog))
	for _, e := range catalog {
		if m.match(e) {
			out = append(out, e)
		}
	}
	sortEvents(out, key)
	return out
}

// sortEvents orders events in place. All orderings are stable so ties keep
// catalog order.
func sortEvents(events []model.Event, key SortKey) {
	switch key {
	case SortDate:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.Before(events[j].Date)
		})
	case SortPrice:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Price < events[j].Price
		})
	case SortPopularity:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Popularity > events[j].Popularity
		})
	default:
		// recommended: keep catalog order.
	}
}
