package store

// ListOptions carries paging and search parameters for listing operations.
// The zero value means "first page, default size, no search filter".
type ListOptions struct {
	// Search filters results to names containing the value
	// (case-insensitive). Empty means no filter.
	Search string

	// Page is the 1-based page number. Values below 1 are treated as 1.
	Page int

	// PageSize is the number of items per page. Values below 1 fall back
	// to DefaultPageSize.
	PageSize int
}

// DefaultPageSize is used when ListOptions.PageSize is not set.
const DefaultPageSize = 20

// Page is one page of a listing, with enough totals for callers to render
// pagination.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPage slices items according to opts. Items must already be filtered
// and sorted by the caller.
func NewPage[T any](items []T, opts ListOptions) Page[T] {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	total := len(items)
	totalPages := (total + size - 1) / size

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page[T]{
		Items:      items[start:end],
		TotalCount: total,
		PageNumber: page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}
