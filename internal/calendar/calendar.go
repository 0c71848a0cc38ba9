// Package calendar computes the month grid of the calendar widget: a
// Sunday-first list of day cells with "today" and "has events" markers.
package calendar

import (
	"time"

	"evently/internal/model"
)

// Clock supplies "now". Everything that highlights today takes one so that
// tests can pin the date.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Cursor is the month being displayed. Month is 0-based (0 = January) to
// match the month selector. Cursor is a value; navigation returns a new one.
type Cursor struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// CursorFor returns the cursor of the month containing t.
func CursorFor(t time.Time) Cursor {
	return Cursor{Year: t.Year(), Month: int(t.Month()) - 1}
}

// Step moves the cursor by n months, rolling over year boundaries in both
// directions.
func (c Cursor) Step(n int) Cursor {
	total := c.Year*12 + c.Month + n
	year := total / 12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	return Cursor{Year: year, Month: month}
}

func (c Cursor) Prev() Cursor { return c.Step(-1) }

func (c Cursor) Next() Cursor { return c.Step(1) }

// First returns midnight of the first day of the cursor month in loc.
func (c Cursor) First(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(c.Year, time.Month(c.Month+1), 1, 0, 0, 0, 0, loc)
}

// Title renders e.g. "September 2024".
func (c Cursor) Title() string {
	return c.First(time.UTC).Format("January 2006")
}

// DaysIn returns the number of days of a 0-based month: day 0 of the next
// month is the last day of this one.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayCell is one square of the grid. Day 0 marks a padding cell.
type DayCell struct {
	Day      int      `json:"day"`
	IsToday  bool     `json:"is_today"`
	HasEvent bool     `json:"has_event"`
	Events   []string `json:"events,omitempty"`
}

// Empty reports whether the cell is padding.
func (d DayCell) Empty() bool { return d.Day == 0 }

// BuildMonth lays out a 0-based month: one empty cell per weekday before the
// 1st (Sunday first), then one cell per day. There is no trailing padding;
// see Pad.
func BuildMonth(year, month int, eventsByDay map[int][]model.Event, now time.Time) []DayCell {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
	lead := int(first.Weekday())
	days := DaysIn(year, month)

	cells := make([]DayCell, lead, lead+days)
	ny, nm, nd := now.Date()
	thisMonth := ny == year && int(nm)-1 == month

	for d := 1; d <= days; d++ {
		cell := DayCell{Day: d, IsToday: thisMonth && nd == d}
		if evs := eventsByDay[d]; len(evs) > 0 {
			cell.HasEvent = true
			cell.Events = make([]string, len(evs))
			for i, e := range evs {
				cell.Events[i] = e.ID
			}
		}
		cells = append(cells, cell)
	}
	return cells
}

// Pad appends empty cells so the grid ends on a full week.
func Pad(cells []DayCell) []DayCell {
	out := append([]DayCell(nil), cells...)
	for len(out)%7 != 0 {
		out = append(out, DayCell{})
	}
	return out
}

// Weeks splits cells into rows of seven. The last row may be short unless
// the cells were padded.
func Weeks(cells []DayCell) [][]DayCell {
	var rows [][]DayCell
	for i := 0; i < len(cells); i += 7 {
		end := min(i+7, len(cells))
		rows = append(rows, cells[i:end])
	}
	return rows
}

// EventsByDay groups the events falling in a 0-based month by day of month,
// keeping input order within a day. Dates are read in their own location.
func EventsByDay(events []model.Event, year, month int) map[int][]model.Event {
	out := make(map[int][]model.Event)
	for _, e := range events {
		if e.Date.IsZero() {
			continue
		}
		y, m, d := e.Date.Date()
		if y == year && int(m)-1 == month {
			out[d] = append(out[d], e)
		}
	}
	return out
}
