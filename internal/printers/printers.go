package printers

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"evently/internal/calendar"
	"evently/internal/model"
	"evently/internal/query"
)

// width of one rendered week: "Su Mo Tu We Th Fr Sa".
const weekWidth = 20

// Pretty renders catalog data for the terminal.
type Pretty struct {
	Out io.Writer
	// Location is used for dates; nil means the event's own zone.
	Location *time.Location
}

func New(out io.Writer, loc *time.Location) *Pretty {
	return &Pretty{Out: out, Location: loc}
}

// FormatPrice renders 0 as "Free" and drops ".00" from whole amounts.
func FormatPrice(price float64) string {
	if price == 0 {
		return "Free"
	}
	if price == float64(int64(price)) {
		return "$" + strconv.FormatInt(int64(price), 10)
	}
	return "$" + strconv.FormatFloat(price, 'f', 2, 64)
}

func (pp *Pretty) date(t time.Time) string {
	if t.IsZero() {
		return "TBA"
	}
	if pp.Location != nil {
		t = t.In(pp.Location)
	}
	return t.Format("Mon Jan 2, 2006")
}

// TitleWithCount prints an underlined title followed by a faint count.
func (pp *Pretty) TitleWithCount(title string, count int, noun string) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.Out, title)
	if count != 1 {
		noun += "s"
	}
	_, _ = c.Fprintf(pp.Out, " - %d %s\n", count, noun)
}

// Events prints one page of events as a table.
func (pp *Pretty) Events(page query.Page[model.Event]) {
	pp.TitleWithCount("Events", page.Total, "event")
	if len(page.Items) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprint(pp.Out, " none\n")
		return
	}

	free := color.New(color.FgGreen)
	tbl := uitable.New()
	tbl.MaxColWidth = 40
	tbl.Separator = "  "
	tbl.AddRow("ID", "DATE", "TITLE", "CATEGORY", "FORMAT", "LOCATION", "PRICE", "BADGE")
	for _, e := range page.Items {
		price := FormatPrice(e.Price)
		if e.IsFree() {
			price = free.Sprint(price)
		}
		badge := ""
		if e.Badge != nil {
			badge = e.Badge.Text
		}
		tbl.AddRow(e.ID, pp.date(e.Date), e.Title, string(e.Category), string(e.Format), e.Location, price, badge)
	}
	_, _ = fmt.Fprintln(pp.Out, tbl)

	if page.PageCount > 1 {
		_, _ = color.New(color.Faint).Fprintf(pp.Out, "page %d of %d\n", page.Index, page.PageCount)
	}
}

// Event prints the detail view of one event.
func (pp *Pretty) Event(e model.Event, registered bool) {
	_, _ = color.New(color.Bold, color.Underline).Fprintln(pp.Out, e.Title)

	tbl := uitable.New()
	tbl.MaxColWidth = 60
	tbl.Wrap = true
	tbl.AddRow("When:", pp.date(e.Date))
	tbl.AddRow("Where:", e.Location)
	tbl.AddRow("Category:", string(e.Category))
	tbl.AddRow("Format:", string(e.Format))
	tbl.AddRow("Price:", FormatPrice(e.Price))
	tbl.AddRow("Attendees:", strconv.Itoa(e.Attendees))
	if registered {
		tbl.AddRow("Status:", color.New(color.FgGreen).Sprint("registered"))
	}
	tbl.AddRow("", e.Description)
	_, _ = fmt.Fprintln(pp.Out, tbl)
}

// Month prints a month grid. Days with events are bold; today is
// underlined.
func (pp *Pretty) Month(cur calendar.Cursor, cells []calendar.DayCell) {
	title := cur.Title()
	mid := max((weekWidth-len(title))/2, 0)
	_, _ = color.New(color.Bold).Fprintf(pp.Out, "%s%s\n", strings.Repeat(" ", mid), title)
	_, _ = color.New(color.Faint).Fprintln(pp.Out, "Su Mo Tu We Th Fr Sa")

	plain := color.New()
	event := color.New(color.Bold, color.FgHiCyan)
	today := color.New(color.Underline)
	todayEvent := color.New(color.Underline, color.Bold, color.FgHiCyan)

	for _, week := range calendar.Weeks(cells) {
		parts := make([]string, 0, 7)
		for _, c := range week {
			if c.Empty() {
				parts = append(parts, "  ")
				continue
			}
			p := plain
			switch {
			case c.IsToday && c.HasEvent:
				p = todayEvent
			case c.IsToday:
				p = today
			case c.HasEvent:
				p = event
			}
			parts = append(parts, p.Sprintf("%2d", c.Day))
		}
		_, _ = fmt.Fprintln(pp.Out, strings.TrimRight(strings.Join(parts, " "), " "))
	}
}

// Day prints the events of a single day under a heading.
func (pp *Pretty) Day(date time.Time, events []model.Event) {
	label := date.Format("January 2, 2006")
	if len(events) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprintf(pp.Out, "No events scheduled for %s\n", label)
		return
	}
	_, _ = color.New(color.Bold).Fprintf(pp.Out, "%d event(s) on %s\n", len(events), label)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, e := range events {
		tbl.AddRow(e.ID, e.Title, e.Location, FormatPrice(e.Price))
	}
	_, _ = fmt.Fprintln(pp.Out, tbl)
}
