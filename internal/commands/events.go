package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evently/internal/catalog"
	"evently/internal/printers"
	"evently/internal/query"
)

func addEvents(topLevel *cobra.Command, v *viper.Viper) {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List catalog events",
		Example: `
eventsctl events
eventsctl events --price free --sort date
eventsctl events --category tech,music --search summit
eventsctl events --from 2024-09-15 --to "Sep 30" --page 2
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), v)
			if err != nil {
				return err
			}

			f, err := filterFromFlags(v, s)
			if err != nil {
				return err
			}
			size := v.GetInt("page-size")
			if size < 1 {
				size = s.cfg.PageSize
			}
			derived := query.Derive(s.catalog.Events(), f, query.ParseSortKey(v.GetString("sort")))
			page := query.Paginate(derived, size, v.GetInt("page"))

			printers.New(cmd.OutOrStdout(), s.loc).Events(page)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.String("search", "", "Case-insensitive text in title, description or location")
	fs.String("price", "", "free, paid, under-50, 50-100 or over-100")
	fs.StringSlice("category", nil, "Categories to include (comma separated)")
	fs.String("format", "", "online or in-person")
	fs.String("location", "", "Location substring")
	fs.String("from", "", "Earliest date, e.g. 2024-09-01 or \"Sep 1\"")
	fs.String("to", "", "Latest date")
	fs.String("sort", "", "recommended, date, price or popularity")
	fs.Int("page", 1, "Page number")
	fs.Int("page-size", 0, "Events per page (default from config)")
	bindFlags(v, fs)

	topLevel.AddCommand(cmd)
}

func filterFromFlags(v *viper.Viper, s *session) (query.Filter, error) {
	f := query.Filter{
		Search:   v.GetString("search"),
		Price:    query.ParsePriceMode(v.GetString("price")),
		Format:   query.ParseFormat(v.GetString("format")),
		Location: v.GetString("location"),
	}
	for _, c := range v.GetStringSlice("category") {
		f.Categories = append(f.Categories, query.ParseCategories(c)...)
	}

	year := s.cfg.Catalog.DefaultYear
	if year == 0 {
		year = timeNow().In(s.loc).Year()
	}
	if raw := v.GetString("from"); raw != "" {
		t, err := catalog.ParseDate(raw, year, s.loc)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.From = t
	}
	if raw := v.GetString("to"); raw != "" {
		t, err := catalog.ParseDate(raw, year, s.loc)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		f.To = t
	}
	return f, nil
}

func addEvent(topLevel *cobra.Command, v *viper.Viper) {
	cmd := &cobra.Command{
		Use:   "event <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), v)
			if err != nil {
				return err
			}
			e, ok := s.catalog.Lookup(args[0])
			if !ok {
				return fmt.Errorf("event %q not found", args[0])
			}
			printers.New(cmd.OutOrStdout(), s.loc).Event(e, false)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
