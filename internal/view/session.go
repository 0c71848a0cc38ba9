// Package view keeps the browse state of one user (search term, filters,
// sort order, page) and renders it against the current catalog.
package view

import (
	"sync"
	"time"

	"evently/internal/catalog"
	"evently/internal/delay"
	"evently/internal/model"
	"evently/internal/query"
)

// Mode is the card layout of the events page.
type Mode string

const (
	ModeGrid Mode = "grid"
	ModeList Mode = "list"
)

// ParseMode falls back to ModeGrid.
func ParseMode(s string) Mode {
	if Mode(s) == ModeList {
		return ModeList
	}
	return ModeGrid
}

// State is a snapshot of the browse controls.
type State struct {
	Search     string           `json:"search"`
	Price      string           `json:"price"`
	Categories []model.Category `json:"categories,omitempty"`
	Format     model.Format     `json:"format,omitempty"`
	Location   string           `json:"location,omitempty"`
	Sort       query.SortKey    `json:"sort"`
	Page       int              `json:"page"`
	Mode       Mode             `json:"mode"`
}

// Result is what a renderer needs for one screen of the events page.
type Result struct {
	State  State                   `json:"state"`
	Page   query.Page[model.Event] `json:"page"`
	Facets query.Facets            `json:"facets"`
	Source string                  `json:"source"`
}

// Session is safe for concurrent use. Any change to the filtered set (a
// filter, the sort order or a new catalog snapshot) sends the user back to
// page 1.
type Session struct {
	holder   *catalog.Holder
	pageSize int
	search   *delay.Latest

	mu     sync.Mutex
	filter query.Filter
	sort   query.SortKey
	page   int
	mode   Mode
	seen   *catalog.Catalog
}

// NewSession binds a session to a catalog holder. searchDelay debounces
// search input; zero applies it immediately.
func NewSession(holder *catalog.Holder, pageSize int, searchDelay time.Duration) *Session {
	if pageSize < 1 {
		pageSize = query.DefaultPageSize
	}
	return &Session{
		holder:   holder,
		pageSize: pageSize,
		search:   delay.New(searchDelay),
		sort:     query.SortRecommended,
		page:     1,
		mode:     ModeGrid,
	}
}

// SetSearch schedules a search term change. Typing quickly supersedes the
// earlier terms; only the last one is applied.
func (s *Session) SetSearch(term string) *delay.Op {
	return s.search.Schedule(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.filter.Search != term {
			s.filter.Search = term
			s.page = 1
		}
	})
}

// SetFilter replaces every constraint except the search term, which has its
// own debounced setter.
func (s *Session) SetFilter(f query.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.Search = s.filter.Search
	s.filter = f
	s.page = 1
}

func (s *Session) SetPrice(m query.PriceMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Price != m {
		s.filter.Price = m
		s.page = 1
	}
}

func (s *Session) SetSort(k query.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sort != k {
		s.sort = k
		s.page = 1
	}
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetPage requests a page; Render clamps it.
func (s *Session) SetPage(n int) {
	s.mu.Lock()
	s.page = n
	s.mu.Unlock()
}

// Next and Prev move one page, saturating at the ends.
func (s *Session) Next() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.renderLocked()
	s.page = r.Page.Next()
	return s.renderLocked()
}

func (s *Session) Prev() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.renderLocked()
	s.page = r.Page.Prev()
	return s.renderLocked()
}

// Reset clears every control and cancels a pending search.
func (s *Session) Reset() {
	s.search.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = query.Filter{}
	s.sort = query.SortRecommended
	s.page = 1
}

// Render derives the current page.
func (s *Session) Render() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

func (s *Session) renderLocked() Result {
	c := s.holder.Current()
	if s.seen != c {
		if s.seen != nil {
			s.page = 1
		}
		s.seen = c
	}

	events := c.Events()
	derived := query.Derive(events, s.filter, s.sort)
	page := query.Paginate(derived, s.pageSize, s.page)
	s.page = page.Index

	return Result{
		State: State{
			Search:     s.filter.Search,
			Price:      s.filter.Price.String(),
			Categories: s.filter.Categories,
			Format:     s.filter.Format,
			Location:   s.filter.Location,
			Sort:       s.sort,
			Page:       page.Index,
			Mode:       s.mode,
		},
		Page:   page,
		Facets: query.ComputeFacets(events),
		Source: c.Source(),
	}
}
