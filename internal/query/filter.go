// Package query derives the visible event list from a catalog: filtering,
// sorting and pagination. Everything here is pure; the catalog slice passed
// in is never modified.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"evently/internal/model"
)

// PriceKind selects how PriceMode.Match interprets Min/Max.
type PriceKind int

const (
	PriceAny PriceKind = iota
	PriceFree
	PricePaid  // price > 0
	PriceUnder // price < Max
	PriceRange // Min <= price <= Max
	PriceOver  // price > Min
)

// PriceMode is one of the price buckets offered by the price dropdown.
type PriceMode struct {
	Kind PriceKind
	Min  float64
	Max  float64
}

// Default buckets used by the events page.
var (
	PriceModeAny     = PriceMode{Kind: PriceAny}
	PriceModeFree    = PriceMode{Kind: PriceFree}
	PriceModePaid    = PriceMode{Kind: PricePaid}
	PriceModeUnder50 = PriceMode{Kind: PriceUnder, Max: 50}
	PriceMode50To100 = PriceMode{Kind: PriceRange, Min: 50, Max: 100}
	PriceModeOver100 = PriceMode{Kind: PriceOver, Min: 100}
)

// Match reports whether price falls into the bucket. Boundaries:
// under-N and over-N are strict, ranges are inclusive on both ends.
func (m PriceMode) Match(price float64) bool {
	switch m.Kind {
	case PriceFree:
		return price == 0
	case PricePaid:
		return price > 0
	case PriceUnder:
		return price < m.Max
	case PriceRange:
		return price >= m.Min && price <= m.Max
	case PriceOver:
		return price > m.Min
	default:
		return true
	}
}

func (m PriceMode) String() string {
	switch m.Kind {
	case PriceFree:
		return "free"
	case PricePaid:
		return "paid"
	case PriceUnder:
		return "under-" + formatAmount(m.Max)
	case PriceRange:
		return formatAmount(m.Min) + "-" + formatAmount(m.Max)
	case PriceOver:
		return "over-" + formatAmount(m.Min)
	default:
		return "any"
	}
}

// ParsePriceMode accepts "any", "free", "paid", "under-N", "over-N" and "A-B".
// Anything it does not understand means "any price".
func ParsePriceMode(s string) PriceMode {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "$", "")
	switch {
	case s == "" || s == "any":
		return PriceModeAny
	case s == "free":
		return PriceModeFree
	case s == "paid":
		return PriceModePaid
	case strings.HasPrefix(s, "under-"):
		if n, ok := parseAmount(strings.TrimPrefix(s, "under-")); ok {
			return PriceMode{Kind: PriceUnder, Max: n}
		}
	case strings.HasPrefix(s, "over-"):
		if n, ok := parseAmount(strings.TrimPrefix(s, "over-")); ok {
			return PriceMode{Kind: PriceOver, Min: n}
		}
	default:
		lo, hi, found := strings.Cut(s, "-")
		if !found {
			break
		}
		a, okA := parseAmount(lo)
		b, okB := parseAmount(hi)
		if okA && okB {
			if a > b {
				a, b = b, a
			}
			return PriceMode{Kind: PriceRange, Min: a, Max: b}
		}
	}
	return PriceModeAny
}

func parseAmount(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func formatAmount(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseFormat maps "online" / "in-person" to a model.Format; anything else
// is the empty format, i.e. no constraint.
func ParseFormat(s string) model.Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "remote":
		return model.FormatOnline
	case "in-person", "inperson", "in person", "onsite":
		return model.FormatInPerson
	default:
		return ""
	}
}

// ParseCategories splits a comma separated list and drops unknown labels.
func ParseCategories(s string) []model.Category {
	var out []model.Category
	for _, part := range strings.Split(s, ",") {
		c := model.Category(strings.ToLower(strings.TrimSpace(part)))
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// Filter is the full set of constraints the user can apply. The zero value
// keeps every record.
type Filter struct {
	// Search is matched case-insensitively against title, description and
	// location.
	Search string
	Price  PriceMode
	// Categories is an OR set: a record matches if it has any of them.
	Categories []model.Category
	// From and To bound the event date (inclusive, by calendar day). Zero
	// values are open ends.
	From time.Time
	To   time.Time
	// Format is empty for "any format".
	Format model.Format
	// Location is a case-insensitive substring of the event location.
	Location string
	// MinPrice and MaxPrice are the inclusive bounds of the advanced price
	// inputs; nil means unset.
	MinPrice *float64
	MaxPrice *float64
}

func (f Filter) String() string {
	return fmt.Sprintf("search=%q price=%s categories=%v format=%q location=%q",
		f.Search, f.Price, f.Categories, f.Format, f.Location)
}

// matcher is a Filter with its case folding and category set prepared once
// per Derive call. The Caser is stateful, so a matcher must not be shared
// between goroutines.
type matcher struct {
	f          Filter
	fold       cases.Caser
	search     string
	location   string
	categories map[model.Category]struct{}
	from, to   int
}

// compile prepares f for matching. Only an empty search term is inactive; a
// term of spaces is searched for literally.
func (f Filter) compile() matcher {
	fold := cases.Fold()
	m := matcher{
		f:        f,
		fold:     fold,
		search:   fold.String(f.Search),
		location: fold.String(strings.TrimSpace(f.Location)),
	}
	if len(f.Categories) > 0 {
		m.categories = make(map[model.Category]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			m.categories[c] = struct{}{}
		}
	}
	if !f.From.IsZero() {
		m.from = dayKey(f.From)
	}
	if !f.To.IsZero() {
		m.to = dayKey(f.To)
	}
	return m
}

// Match reports whether e satisfies every active constraint of f.
func (f Filter) Match(e model.Event) bool {
	return f.compile().match(e)
}

func (m matcher) match(e model.Event) bool {
	if m.search != "" && !m.matchSearch(e) {
		return false
	}
	if !m.f.Price.Match(e.Price) {
		return false
	}
	if m.f.MinPrice != nil && e.Price < *m.f.MinPrice {
		return false
	}
	if m.f.MaxPrice != nil && e.Price > *m.f.MaxPrice {
		return false
	}
	if m.categories != nil {
		if _, ok := m.categories[e.Category]; !ok {
			return false
		}
	}
	if m.f.Format != "" && e.Format != m.f.Format {
		return false
	}
	if m.location != "" && !strings.Contains(m.fold.String(e.Location), m.location) {
		return false
	}
	if m.from != 0 || m.to != 0 {
		if e.Date.IsZero() {
			return false
		}
		d := dayKey(e.Date)
		if m.from != 0 && d < m.from {
			return false
		}
		if m.to != 0 && d > m.to {
			return false
		}
	}
	return true
}

func (m matcher) matchSearch(e model.Event) bool {
	for _, field := range []string{e.Title, e.Description, e.Location} {
		if strings.Contains(m.fold.String(field), m.search) {
			return true
		}
	}
	return false
}

// dayKey turns a timestamp into a sortable yyyymmdd integer in its own
// location so that date-range checks ignore the time of day.
func dayKey(t time.Time) int {
	y, mo, d := t.Date()
	return y*10000 + int(mo)*100 + d
}
