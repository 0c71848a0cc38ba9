package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evently/internal/calendar"
	"evently/internal/model"
	"evently/internal/printers"
)

// timeNow is swapped in tests.
var timeNow = time.Now

func addCalendar(topLevel *cobra.Command, v *viper.Viper) {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print a month grid with event days highlighted",
		Example: `
eventsctl calendar
eventsctl calendar --year 2024 --month 9
eventsctl calendar --month 9 --day 12
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), v)
			if err != nil {
				return err
			}
			now := timeNow().In(s.loc)

			cur := calendar.CursorFor(now)
			if y := v.GetInt("year"); y > 0 {
				cur.Year = y
			}
			if m := v.GetInt("month"); m != 0 {
				if m < 1 || m > 12 {
					return fmt.Errorf("--month must be 1-12, got %d", m)
				}
				cur.Month = m - 1
			}

			byDay := calendar.EventsByDay(inZone(s), cur.Year, cur.Month)
			p := printers.New(cmd.OutOrStdout(), s.loc)

			if day := v.GetInt("day"); day != 0 {
				if day < 1 || day > calendar.DaysIn(cur.Year, cur.Month) {
					return fmt.Errorf("--day %d is not in %s", day, cur.Title())
				}
				p.Day(time.Date(cur.Year, time.Month(cur.Month+1), day, 0, 0, 0, 0, s.loc), byDay[day])
				return nil
			}
			p.Month(cur, calendar.BuildMonth(cur.Year, cur.Month, byDay, now))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.Int("year", 0, "Year (default current)")
	fs.Int("month", 0, "Month 1-12 (default current)")
	fs.Int("day", 0, "List the events of this day instead of the grid")
	bindFlags(v, fs)

	topLevel.AddCommand(cmd)
}

func inZone(s *session) []model.Event {
	events := s.catalog.Events()
	for i := range events {
		if !events[i].Date.IsZero() {
			events[i].Date = events[i].Date.In(s.loc)
		}
	}
	return events
}
