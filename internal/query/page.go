package query

// DefaultPageSize matches the six cards per page of the events grid.
const DefaultPageSize = 6

// Page is one slice of a paginated list plus the metadata a pager needs.
type Page[T any] struct {
	Items     []T `json:"items"`
	Index     int `json:"page"`
	PageCount int `json:"page_count"`
	Total     int `json:"total"`
	Size      int `json:"page_size"`
}

// Paginate cuts items into pages of pageSize and returns page pageIndex
// (1-based). pageSize below 1 is treated as 1. The index is clamped to
// [1, PageCount]; for an empty list PageCount is 0 and Index is 1.
func Paginate[T any](items []T, pageSize, pageIndex int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	p := Page[T]{
		Items: []T{},
		Index: 1,
		Total: len(items),
		Size:  pageSize,
	}
	if len(items) == 0 {
		return p
	}

	p.PageCount = (len(items) + pageSize - 1) / pageSize
	p.Index = clamp(pageIndex, 1, p.PageCount)

	start := (p.Index - 1) * pageSize
	end := min(start+pageSize, len(items))
	p.Items = append(make([]T, 0, end-start), items[start:end]...)
	return p
}

// Prev is the index the "previous" button leads to; on page 1 it stays.
func (p Page[T]) Prev() int {
	if p.Index > 1 {
		return p.Index - 1
	}
	return p.Index
}

// Next is the index the "next" button leads to; on the last page it stays.
func (p Page[T]) Next() int {
	if p.Index < p.PageCount {
		return p.Index + 1
	}
	return p.Index
}

func (p Page[T]) HasPrev() bool { return p.Index > 1 }

func (p Page[T]) HasNext() bool { return p.Index < p.PageCount }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
