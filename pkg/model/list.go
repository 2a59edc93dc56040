package model

const (
	// DefaultPageSize is the page size a list screen starts with.
	DefaultPageSize = 10
	// MaxPageSize caps the page size the server will honour.
	MaxPageSize = 100
)

// Query is the canonical list query: committed search text plus a 0-based
// page index and a page size. Any change to it triggers a re-fetch.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// DefaultQuery returns the query a freshly mounted list screen uses.
func DefaultQuery() Query {
	return Query{PageSize: DefaultPageSize}
}

// PageNumber returns the 1-based page number sent to the server.
func (q Query) PageNumber() int {
	return q.Page + 1
}

// ListOptions configures server-side list queries with pagination and search.
type ListOptions struct {
	PageNumber int // 1-based
	PageSize   int
	Search     string
}

// Clamp enforces limits (page >= 1, size in 1..MaxPageSize).
func (o *ListOptions) Clamp() {
	if o.PageNumber <= 0 {
		o.PageNumber = 1
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
}

// Offset returns the row offset for the requested page.
func (o ListOptions) Offset() int {
	return (o.PageNumber - 1) * o.PageSize
}

// TotalPages returns the number of pages needed for total records.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
