package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"evently/internal/model"
)

// ProductID identifies calendars written by evently.
const ProductID = "-//Evently//Registrations//EN"

// ExportRegistrations renders the user's registrations as an iCalendar
// document so they can be subscribed to from a phone calendar. Every
// registration becomes an all-day VEVENT on the event date.
func ExportRegistrations(name string, regs []model.Registration, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, reg := range regs {
		ev := reg.Event
		vevent := cal.AddEvent(reg.EventID + "@evently")
		vevent.SetDtStampTime(now.UTC())
		vevent.SetCreatedTime(reg.RegisteredAt.UTC())
		if !ev.Date.IsZero() {
			day := time.Date(ev.Date.Year(), ev.Date.Month(), ev.Date.Day(), 0, 0, 0, 0, time.UTC)
			vevent.SetAllDayStartAt(day)
			vevent.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}
		vevent.SetSummary(ev.Title)
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Category != "" {
			vevent.AddProperty(ical.ComponentPropertyCategories, string(ev.Category))
		}
		vevent.SetStatus(ical.ObjectStatusConfirmed)
	}

	return cal.Serialize()
}
