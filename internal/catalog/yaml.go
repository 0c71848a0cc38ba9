package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"evently/internal/model"
)

// fileEvent is the on-disk shape of a catalog record. Dates are written the
// way people type them ("2024-09-12" or "Sep 12"), so they are decoded as
// strings and normalised with ParseDate.
type fileEvent struct {
	model.Event `yaml:",inline"`
	Date        string `yaml:"date"`
}

type catalogFile struct {
	// Year completes short dates; it overrides the configured default year.
	Year   int         `yaml:"year"`
	Events []fileEvent `yaml:"events"`
}

// ParseYAML decodes a catalog document. Records with an unparsable date are
// rejected with an error naming the record, so a typo never silently drops
// an event.
func ParseYAML(data []byte, defaultYear int, loc *time.Location) ([]model.Event, error) {
	if len(data) == 0 {
		return nil, errors.New("empty catalog file")
	}

	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Year > 0 {
		defaultYear = doc.Year
	}

	events := make([]model.Event, 0, len(doc.Events))
	for i, fe := range doc.Events {
		e := fe.Event
		if fe.Date != "" {
			d, err := ParseDate(fe.Date, defaultYear, loc)
			if err != nil {
				return nil, fmt.Errorf("event %d (%q): %w", i, e.ID, err)
			}
			e.Date = d
		}
		if e.Category != "" && !e.Category.Valid() {
			return nil, fmt.Errorf("event %d (%q): unknown category %q", i, e.ID, e.Category)
		}
		events = append(events, e)
	}
	return events, nil
}

// LoadFile reads and parses a YAML catalog file into a snapshot.
func LoadFile(path string, defaultYear int, loc *time.Location) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	events, err := ParseYAML(data, defaultYear, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(path, events), nil
}
