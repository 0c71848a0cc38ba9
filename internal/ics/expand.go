package ics

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evently/internal/log"
	"evently/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how feed events become catalog records.
type ExpandConfig struct {
	// DisplayLocation is the timezone every record date is converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences that are kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway RRULEs. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the catalog records plus the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into catalog records within the
// configured window:
//
//   - single events become one record with ID = UID
//   - RRULE events become one record per occurrence, ID = UID@YYYYMMDD
//   - EXDATEs remove occurrences, RECURRENCE-ID overrides replace them
//
// Output order follows input order of the base events and, within a
// recurring event, occurrence order. That keeps "recommended" ordering
// stable across reloads.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	var bases []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	for _, ev := range bases {
		ov := overridesByUID[ev.UID]
		var (
			recs   []model.Event
			hitCap bool
		)
		if ev.RawRRule == "" {
			recs = expandSingleEvent(ev, ov, cfg)
		} else {
			recs, hitCap = expandRecurringEvent(ev, ov, cfg)
		}
		result.Events = append(result.Events, recs...)

		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	return []model.Event{makeRecord(ev, ev.UID, ev.Start, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		base := ev
		start := occStart
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base = o
			start = o.Start
		}
		id := ev.UID + "@" + occStart.In(cfg.DisplayLocation).Format("20060102")
		out = append(out, makeRecord(base, id, start, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeRecord converts a parsed event plus a concrete start into a catalog
// record. All-day events keep their calendar date regardless of zone.
func makeRecord(ev ParsedEvent, id string, start time.Time, displayLoc *time.Location) model.Event {
	date := start.In(displayLoc)
	if ev.AllDay {
		date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
	}

	rec := model.Event{
		ID:          id,
		Title:       ev.Summary,
		Date:        date,
		Location:    ev.Location,
		Description: ev.Description,
		Price:       ev.Price,
		Badge:       ev.Badge,
		Format:      ev.Format,
		Popularity:  ev.Popularity,
		Attendees:   ev.Attendees,
		SourceID:    ev.Source.ID,
	}
	for _, c := range ev.Categories {
		if cat := model.Category(strings.ToLower(c)); cat.Valid() {
			rec.Category = cat
			break
		}
	}
	return rec
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
