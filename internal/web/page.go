package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	appLog "evently/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type calendarPage struct {
	calendarResponse
	Weekdays []string
	Titles   map[int][]string
	Source   string
}

// handleCalendarPage renders the month grid as a standalone HTML page. The
// root element carries data-ready="true" so headless snapshots know when
// to shoot.
//
// GET /calendar?year=2024&month=8&source=registrations
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cal, byDay := s.buildCalendar(q)

	page := calendarPage{
		calendarResponse: cal,
		Weekdays:         weekdays,
		Titles:           make(map[int][]string, len(byDay)),
	}
	for day, evs := range byDay {
		for _, e := range evs {
			page.Titles[day] = append(page.Titles[day], e.Title)
		}
	}
	if q.Get("source") == "registrations" {
		page.Source = "registrations"
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "calendar.html", page); err != nil {
		appLog.Error("failed to render calendar page", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
