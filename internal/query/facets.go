package query

import "evently/internal/model"

// Facets summarises a catalog for the filter sidebar.
type Facets struct {
	Categories map[model.Category]int `json:"categories"`
	Formats    map[model.Format]int   `json:"formats"`
	Free       int                    `json:"free"`
	MinPrice   float64                `json:"min_price"`
	MaxPrice   float64                `json:"max_price"`
}

// ComputeFacets counts categories and formats and finds the price range.
func ComputeFacets(events []model.Event) Facets {
	f := Facets{
		Categories: make(map[model.Category]int),
		Formats:    make(map[model.Format]int),
	}
	for i, e := range events {
		f.Categories[e.Category]++
		if e.Format != "" {
			f.Formats[e.Format]++
		}
		if e.IsFree() {
			f.Free++
		}
		if i == 0 || e.Price < f.MinPrice {
			f.MinPrice = e.Price
		}
		if i == 0 || e.Price > f.MaxPrice {
			f.MaxPrice = e.Price
		}
	}
	return f
}
