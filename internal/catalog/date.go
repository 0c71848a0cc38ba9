package catalog

import (
	"errors"
	"strings"
	"time"
)

// Layouts tried by ParseDate, most specific first. Short display forms such
// as "Sep 12" carry no year and are completed with the default year.
var (
	fullLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"Jan 2, 2006",
		"January 2, 2006",
	}
	shortLayouts = []string{
		"Jan 2",
		"Jan 02",
		"January 2",
	}
)

// ParseDate normalises a catalog date string into a time.Time in loc.
func ParseDate(s string, defaultYear int, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range fullLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range shortLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		return time.Date(defaultYear, t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, errors.New("unrecognised date: " + s)
}
