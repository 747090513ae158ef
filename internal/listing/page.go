package listing

import (
	"math"
	"net/url"
	"strconv"

	"github.com/dashboard-baker/baker/internal/backend"
)

const (
	// DefaultPageSizeParam is the query parameter carrying the page size.
	DefaultPageSizeParam = "per_page"
	windowRadius         = 2
)

// PageRequest is the query sent for one page of a list.
type PageRequest struct {
	Page          int
	PageSize      int
	PageSizeParam string
	Filters       FilterState
}

// Values encodes the request: page, page size and every set filter.
func (r PageRequest) Values() url.Values {
	values := r.Filters.Values()
	page := r.Page
	if page < 1 {
		page = 1
	}
	values.Set("page", strconv.Itoa(page))
	param := r.PageSizeParam
	if param == "" {
		param = DefaultPageSizeParam
	}
	if r.PageSize > 0 {
		values.Set(param, strconv.Itoa(r.PageSize))
	}
	return values
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPagination computes pagination metadata from a page, size and total.
func NewPagination(page, pageSize, total int) Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// paginationFrom trusts the backend's block when present and otherwise treats
// the returned rows as the whole result.
func paginationFrom(info backend.PageInfo, req PageRequest, rows int) Pagination {
	if !info.Present {
		return NewPagination(1, max(req.PageSize, rows, 1), rows)
	}
	size := info.PerPage
	if size <= 0 {
		size = req.PageSize
	}
	return Pagination{
		Page:       info.Page,
		PageSize:   size,
		TotalItems: info.Total,
		TotalPages: info.Pages,
		HasNext:    info.HasNext,
		HasPrev:    info.HasPrev,
	}
}

// Visible reports whether pagination controls are shown at all.
func (p Pagination) Visible() bool {
	return p.TotalPages > 1
}

// Window returns the page numbers shown as buttons: up to five pages centred
// on the current one and clamped to [1, TotalPages].
func (p Pagination) Window() []int {
	if p.TotalPages <= 0 {
		return nil
	}
	start := max(1, p.Page-windowRadius)
	end := min(p.TotalPages, p.Page+windowRadius)
	if start > end {
		return nil
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Range returns the 1-based positions of the first and last rows on the page,
// or 0, 0 when the result is empty.
func (p Pagination) Range() (first, last int) {
	if p.TotalItems <= 0 || p.PageSize <= 0 {
		return 0, 0
	}
	first = (p.Page-1)*p.PageSize + 1
	last = min(p.Page*p.PageSize, p.TotalItems)
	if first > last {
		return 0, 0
	}
	return first, last
}

// PageResult is one fetched page.
type PageResult[R any] struct {
	Items      []R
	Pagination Pagination
}
