package pagination

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// New returns Params for the given page and page size, clamping both into
// their valid ranges.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromRequest extracts `page` and `per_page` from the query string.
// Unparseable values fall back to the defaults.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage)
}

// Sort is a validated sort column plus direction.
type Sort struct {
	Field      string
	Descending bool
}

// SortFromRequest reads `sort` and `order` from the query string. A field
// outside allowed yields defaultField; direction defaults to descending.
func SortFromRequest(r *http.Request, allowed []string, defaultField string) Sort {
	q := r.URL.Query()
	s := Sort{Field: defaultField, Descending: true}

	field := strings.ToLower(strings.TrimSpace(q.Get("sort")))
	for _, a := range allowed {
		if field == a {
			s.Field = a
			break
		}
	}

	if strings.EqualFold(q.Get("order"), "asc") {
		s.Descending = false
	}
	return s
}

// Result wraps a page of items with its totals.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult creates a paginated result. A nil data slice is rendered as [].
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := totalCount / params.PerPage
	if totalCount%params.PerPage > 0 {
		totalPages++
	}
	if data == nil {
		data = []T{}
	}

	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
