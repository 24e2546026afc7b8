// Package pagination extracts and validates page/limit/sort parameters from
// request query strings and derives the offsets the store's list queries
// expect. Defaults are configurable through functional options so each
// endpoint can choose its own page size without re-implementing the
// validation rules.
package pagination

import (
	"net/url"
	"strconv"
)

// Params holds validated pagination parameters for one request.
type Params struct {
	Page   int32  // current page number, 1-based
	Limit  int32  // items per page
	Offset int32  // derived offset for store queries
	Sort   string // "newest", "oldest", "asc" or "desc"
}

const (
	// MaxLimit caps the page size regardless of what the request asks for.
	MaxLimit int32 = 100
	// DefaultPage is used when the request carries no page parameter.
	DefaultPage int32 = 1
	// DefaultLimit is used when the request carries no limit parameter.
	DefaultLimit int32 = 20
	// DefaultSort is used when the request carries no sort parameter.
	DefaultSort = "newest"
)

func calculateOffset(page, limit int32) int32 {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

func isValidSort(sort string) bool {
	switch sort {
	case "newest", "oldest", "asc", "desc":
		return true
	default:
		return false
	}
}

// Option adjusts the defaults applied before request values are read.
type Option func(*Params)

// WithDefaultLimit overrides the default page size. Non-positive limits are
// ignored.
func WithDefaultLimit(limit int32) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

// WithDefaultSort overrides the default sort order; invalid sorts are
// ignored.
func WithDefaultSort(sort string) Option {
	if !isValidSort(sort) {
		return func(p *Params) {}
	}
	return func(p *Params) {
		p.Sort = sort
	}
}

// FromQuery reads pagination parameters from URL query values, applying the
// given options first and clamping the result to valid ranges.
func FromQuery(q url.Values, opts ...Option) *Params {
	params := &Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}

	for _, opt := range opts {
		opt(params)
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if val, err := strconv.ParseInt(pageStr, 10, 64); err == nil && val > 0 {
			params.Page = int32(val)
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if val, err := strconv.ParseInt(limitStr, 10, 64); err == nil && val > 0 {
			params.Limit = int32(val)
		}
	}

	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	params.Offset = calculateOffset(params.Page, params.Limit)

	if sortStr := q.Get("sort"); sortStr != "" && isValidSort(sortStr) {
		params.Sort = sortStr
	}

	return params
}

// HasNext reports whether more items exist past the current page.
func HasNext(offset, limit, count int32) bool {
	return (offset + limit) < count
}
