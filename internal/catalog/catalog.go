// Package catalog owns the in-memory event catalog. A Catalog is an
// immutable snapshot; reloading builds a new one and swaps it into a Holder.
package catalog

import (
	"strings"
	"sync/atomic"
	"time"

	appLog "evently/internal/log"
	"evently/internal/model"
)

// Catalog is an ordered, read-only list of events.
type Catalog struct {
	events   []model.Event
	byID     map[string]int
	source   string
	loadedAt time.Time
}

// New builds a snapshot from events. The slice is copied, records without an
// ID are dropped and duplicate IDs keep their first occurrence. Records with
// no declared format get one derived from badge and location.
func New(source string, events []model.Event) *Catalog {
	c := &Catalog{
		events:   make([]model.Event, 0, len(events)),
		byID:     make(map[string]int, len(events)),
		source:   source,
		loadedAt: time.Now(),
	}
	for _, e := range events {
		if e.ID == "" {
			appLog.Warn("catalog: dropping event without id", "source", source, "title", e.Title)
			continue
		}
		if _, dup := c.byID[e.ID]; dup {
			appLog.Warn("catalog: duplicate event id", "source", source, "id", e.ID)
			continue
		}
		if e.Format == "" {
			e.Format = deriveFormat(e)
		}
		if e.Price < 0 {
			e.Price = 0
		}
		if e.SourceID == "" {
			e.SourceID = source
		}
		if e.Badge != nil {
			b := *e.Badge
			e.Badge = &b
		}
		c.byID[e.ID] = len(c.events)
		c.events = append(c.events, e)
	}
	return c
}

// deriveFormat mirrors how the events page guessed the format: an "online"
// badge or a "remote" location means online.
func deriveFormat(e model.Event) model.Format {
	if e.Badge != nil && strings.Contains(strings.ToLower(e.Badge.Text+" "+e.Badge.Kind), "online") {
		return model.FormatOnline
	}
	if strings.Contains(strings.ToLower(e.Location), "remote") {
		return model.FormatOnline
	}
	return model.FormatInPerson
}

// Events returns a copy of the records in catalog order.
func (c *Catalog) Events() []model.Event {
	if c == nil {
		return []model.Event{}
	}
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Lookup finds an event by ID.
func (c *Catalog) Lookup(id string) (model.Event, bool) {
	if c == nil {
		return model.Event{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return model.Event{}, false
	}
	return c.events[i], true
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}

func (c *Catalog) Source() string { return c.source }

func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Holder publishes the current catalog snapshot. Readers always see a
// complete catalog; Replace swaps it wholesale.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder returns a Holder seeded with c (which may be nil).
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c == nil {
		c = New("empty", nil)
	}
	h.current.Store(c)
	return h
}

func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

func (h *Holder) Replace(c *Catalog) {
	if c == nil {
		return
	}
	h.current.Store(c)
	appLog.Info("catalog replaced", "source", c.source, "event_count", c.Len())
}
