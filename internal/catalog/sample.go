package catalog

import (
	"time"

	"evently/internal/model"
)

// SourceBuiltin is the SourceID of the hard-coded sample events.
const SourceBuiltin = "builtin"

// Sample returns the six demo events shown on the events page, dated in the
// given year. Popularity is a declared score so that the popularity sort is
// reproducible.
func Sample(year int, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	day := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, loc)
	}

	return []model.Event{
		{
			ID:          "1",
			Title:       "AI Leaders Summit",
			Date:        day(time.September, 12),
			Location:    "San Francisco",
			Description: "Keynotes, panels, and networking with top AI practitioners.",
			Price:       150,
			Category:    model.CategoryTech,
			Badge:       &model.Badge{Text: "Early Bird", Kind: "early-bird"},
			Format:      model.FormatInPerson,
			Popularity:  82,
			Attendees:   320,
		},
		{
			ID:          "2",
			Title:       "Sunset Sounds Festival",
			Date:        day(time.October, 3),
			Location:    "Austin",
			Description: "Live performances across multiple stages with food and art.",
			Price:       75,
			Category:    model.CategoryMusic,
			Badge:       &model.Badge{Text: "Limited", Kind: "limited"},
			Format:      model.FormatInPerson,
			Popularity:  95,
			Attendees:   540,
		},
		{
			ID:          "3",
			Title:       "Founder Workshop: GTM",
			Date:        day(time.August, 28),
			Location:    "Remote",
			Description: "Practical playbooks to launch and scale your startup.",
			Price:       0,
			Category:    model.CategoryBusiness,
			Badge:       &model.Badge{Text: "Online", Kind: "online"},
			Format:      model.FormatOnline,
			Popularity:  61,
			Attendees:   120,
		},
		{
			ID:          "4",
			Title:       "Modern Art Expo",
			Date:        day(time.September, 20),
			Location:    "New York",
			Description: "Immersive installations and contemporary artwork from 50+ artists.",
			Price:       25,
			Category:    model.CategoryArt,
			Badge:       &model.Badge{Text: "Popular", Kind: "popular"},
			Format:      model.FormatInPerson,
			Popularity:  90,
			Attendees:   410,
		},
		{
			ID:          "5",
			Title:       "City Hackathon",
			Date:        day(time.September, 28),
			Location:    "Seattle",
			Description: "Build innovative solutions with fellow developers in 24 hours.",
			Price:       0,
			Category:    model.CategoryTech,
			Badge:       &model.Badge{Text: "Team", Kind: "team"},
			Format:      model.FormatInPerson,
			Popularity:  70,
			Attendees:   150,
		},
		{
			ID:          "6",
			Title:       "B2B Networking Night",
			Date:        day(time.October, 10),
			Location:    "Chicago",
			Description: "Connect with industry peers and explore new partnerships.",
			Price:       50,
			Category:    model.CategoryBusiness,
			Badge:       &model.Badge{Text: "Networking", Kind: "networking"},
			Format:      model.FormatInPerson,
			Popularity:  44,
			Attendees:   90,
		},
	}
}
