package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPageSize is the page size when none is configured.
	DefaultPageSize = 10
	// MaxPageSize caps how many rows a single page may return.
	MaxPageSize = 100
)

// Params is a 1-based page request.
type Params struct {
	Page     int
	PageSize int
}

func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

func (p Params) Limit() int {
	return p.Normalize().PageSize
}

// FromRequest reads the `page` query parameter; the page size is fixed by the server.
func FromRequest(r *http.Request, pageSize int) Params {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	return Params{Page: page, PageSize: pageSize}.Normalize()
}

// Page is the envelope returned by list endpoints.
type Page[T any] struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Results  []T   `json:"results"`
}

func NewPage[T any](items []T, total int64, p Params) Page[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Count: total, Page: n.Page, PageSize: n.PageSize, Results: items}
}
