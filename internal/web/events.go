package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evently/internal/calendar"
	"evently/internal/catalog"
	appLog "evently/internal/log"
	"evently/internal/model"
	"evently/internal/query"
	"evently/internal/view"
)

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events    []model.Event `json:"events"`
	Page      int           `json:"page"`
	PageCount int           `json:"page_count"`
	Total     int           `json:"total"`
	PageSize  int           `json:"page_size"`
	Sort      query.SortKey `json:"sort"`
	Price     string        `json:"price"`
	Facets    query.Facets  `json:"facets"`
}

// filterFromQuery builds a Filter from URL parameters. Unknown or malformed
// values mean "no constraint".
func (s *Server) filterFromQuery(q url.Values) query.Filter {
	f := query.Filter{
		Search:   q.Get("q"),
		Price:    query.ParsePriceMode(q.Get("price")),
		Format:   query.ParseFormat(q.Get("format")),
		Location: q.Get("location"),
		MinPrice: parseFloatPtr(q.Get("min")),
		MaxPrice: parseFloatPtr(q.Get("max")),
	}
	for _, c := range q["category"] {
		f.Categories = append(f.Categories, query.ParseCategories(c)...)
	}

	year := s.cfg.Catalog.DefaultYear
	if year == 0 {
		year = s.now().Year()
	}
	if v := q.Get("from"); v != "" {
		if t, err := catalog.ParseDate(v, year, s.loc); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := catalog.ParseDate(v, year, s.loc); err == nil {
			f.To = t
		}
	}
	return f
}

func (s *Server) pageSizeFromQuery(q url.Values) int {
	size := parseIntDefault(q.Get("page_size"), s.cfg.PageSize)
	if size < 1 {
		return s.cfg.PageSize
	}
	return min(size, maxPageSize)
}

// handleEvents returns one page of the filtered and sorted catalog.
//
// GET /api/events?q=&price=&category=&format=&location=&from=&to=&min=&max=&sort=&page=&page_size=
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := s.catalog.Current()

	f := s.filterFromQuery(q)
	key := query.ParseSortKey(q.Get("sort"))
	derived := query.Derive(c.Events(), f, key)
	page := query.Paginate(derived, s.pageSizeFromQuery(q), parseIntDefault(q.Get("page"), 1))

	appLog.Debug("api events request", "filter", f.String(), "sort", key, "page", page.Index, "total", page.Total)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:    page.Items,
		Page:      page.Index,
		PageCount: page.PageCount,
		Total:     page.Total,
		PageSize:  page.Size,
		Sort:      key,
		Price:     f.Price.String(),
		Facets:    s.facets(c),
	})
}

type eventResponse struct {
	model.Event
	Registered bool `json:"registered"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ev, ok := s.catalog.Current().Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	resp := eventResponse{Event: ev}
	if s.auth != nil {
		resp.Registered = s.auth.IsRegistered(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

type calendarResponse struct {
	calendar.Cursor
	Title string               `json:"title"`
	Cells []calendar.DayCell   `json:"cells"`
	Weeks [][]calendar.DayCell `json:"weeks"`
	Prev  calendar.Cursor      `json:"prev"`
	Next  calendar.Cursor      `json:"next"`
	Today string               `json:"today"`
}

// cursorFromQuery reads year/month (month 0-11) and an optional step. A
// missing or out-of-range month falls back to the current month.
func (s *Server) cursorFromQuery(q url.Values) calendar.Cursor {
	cur := calendar.CursorFor(s.now())
	if y := parseIntDefault(q.Get("year"), 0); y > 0 {
		cur.Year = y
	}
	if m := parseIntDefault(q.Get("month"), -1); m >= 0 && m <= 11 {
		cur.Month = m
	}
	return cur.Step(parseIntDefault(q.Get("step"), 0))
}

// calendarEvents is the catalog, or the user's registrations with
// source=registrations.
func (s *Server) calendarEvents(q url.Values) []model.Event {
	if q.Get("source") == "registrations" && s.auth != nil {
		regs := s.auth.Registrations()
		out := make([]model.Event, 0, len(regs))
		for _, reg := range regs {
			out = append(out, reg.Event)
		}
		return out
	}
	return s.catalog.Current().Events()
}

func (s *Server) buildCalendar(q url.Values) (calendarResponse, map[int][]model.Event) {
	cur := s.cursorFromQuery(q)
	byDay := calendar.EventsByDay(s.localize(s.calendarEvents(q)), cur.Year, cur.Month)
	cells := calendar.BuildMonth(cur.Year, cur.Month, byDay, s.now())

	return calendarResponse{
		Cursor: cur,
		Title:  cur.Title(),
		Cells:  cells,
		Weeks:  calendar.Weeks(calendar.Pad(cells)),
		Prev:   cur.Prev(),
		Next:   cur.Next(),
		Today:  s.now().Format("2006-01-02"),
	}, byDay
}

// localize moves event dates into the display zone so day buckets match
// what the user sees.
func (s *Server) localize(events []model.Event) []model.Event {
	for i := range events {
		if !events[i].Date.IsZero() {
			events[i].Date = events[i].Date.In(s.loc)
		}
	}
	return events
}

// handleCalendar returns the month grid.
//
// GET /api/calendar?year=2024&month=8&step=1&source=catalog|registrations
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	resp, _ := s.buildCalendar(r.URL.Query())
	writeJSON(w, http.StatusOK, resp)
}

type dayResponse struct {
	Date    string        `json:"date"`
	Events  []model.Event `json:"events"`
	Message string        `json:"message"`
}

// handleCalendarDay lists the events of one day with the notice the
// calendar shows when a day is clicked.
//
// GET /api/calendar/day?year=2024&month=8&day=12
func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cur := s.cursorFromQuery(q)
	day := parseIntDefault(q.Get("day"), 0)
	if day < 1 || day > calendar.DaysIn(cur.Year, cur.Month) {
		writeError(w, http.StatusBadRequest, "day out of range")
		return
	}

	byDay := calendar.EventsByDay(s.localize(s.calendarEvents(q)), cur.Year, cur.Month)
	events := byDay[day]
	if events == nil {
		events = []model.Event{}
	}

	date := time.Date(cur.Year, time.Month(cur.Month+1), day, 0, 0, 0, 0, s.loc)
	label := date.Format("January 2, 2006")
	msg := "No events scheduled for " + label
	if len(events) > 0 {
		msg = fmt.Sprintf("%d event(s) on %s", len(events), label)
	}

	writeJSON(w, http.StatusOK, dayResponse{
		Date:    date.Format("2006-01-02"),
		Events:  events,
		Message: msg,
	})
}

func (s *Server) handleBrowse(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Render())
}

// browseUpdate changes the browse session. Only fields that are present are
// applied.
type browseUpdate struct {
	Search   *string  `json:"search,omitempty"`
	Price    *string  `json:"price,omitempty"`
	Category []string `json:"category,omitempty"`
	Format   *string  `json:"format,omitempty"`
	Location *string  `json:"location,omitempty"`
	Sort     *string  `json:"sort,omitempty"`
	Page     *int     `json:"page,omitempty"`
	Mode     *string  `json:"mode,omitempty"`
	// Action is "next", "prev" or "reset".
	Action string `json:"action,omitempty"`
}

type browseResponse struct {
	view.Result
	SearchOutcome string `json:"search_outcome,omitempty"`
}

// handleBrowseUpdate applies changes to the browse session. A search term
// is debounced; the request waits for it and reports whether it was
// applied or superseded by a newer one.
func (s *Server) handleBrowseUpdate(w http.ResponseWriter, r *http.Request) {
	var upd browseUpdate
	if err := readJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.EqualFold(upd.Action, "reset") {
		s.session.Reset()
	}

	if upd.Category != nil || upd.Format != nil || upd.Location != nil {
		cur := s.session.Render().State
		f := query.Filter{
			Price:      query.ParsePriceMode(cur.Price),
			Categories: cur.Categories,
			Format:     cur.Format,
			Location:   cur.Location,
		}
		if upd.Category != nil {
			f.Categories = nil
			for _, c := range upd.Category {
				f.Categories = append(f.Categories, query.ParseCategories(c)...)
			}
		}
		if upd.Format != nil {
			f.Format = query.ParseFormat(*upd.Format)
		}
		if upd.Location != nil {
			f.Location = *upd.Location
		}
		s.session.SetFilter(f)
	}
	if upd.Price != nil {
		s.session.SetPrice(query.ParsePriceMode(*upd.Price))
	}
	if upd.Sort != nil {
		s.session.SetSort(query.ParseSortKey(*upd.Sort))
	}
	if upd.Mode != nil {
		s.session.SetMode(view.ParseMode(*upd.Mode))
	}
	if upd.Page != nil {
		s.session.SetPage(*upd.Page)
	}

	resp := browseResponse{}
	if upd.Search != nil {
		op := s.session.SetSearch(*upd.Search)
		out, err := op.Wait(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "search was not applied")
			return
		}
		resp.SearchOutcome = out.String()
	}

	switch strings.ToLower(upd.Action) {
	case "next":
		resp.Result = s.session.Next()
	case "prev":
		resp.Result = s.session.Prev()
	default:
		resp.Result = s.session.Render()
	}
	writeJSON(w, http.StatusOK, resp)
}
