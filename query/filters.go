package query

import (
	"maps"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSortField = "createdAt"
	DefaultPageSize  = 12
)

// Upstream parameter names owned by the controller. Filter values never
// override them.
const (
	ParamPage          = "page"
	ParamPerPage       = "perPage"
	ParamSortBy        = "sortBy"
	ParamSortDirection = "sortDirection"
)

var reservedParams = map[string]bool{
	ParamPage:          true,
	ParamPerPage:       true,
	ParamSortBy:        true,
	ParamSortDirection: true,
}

// IsReserved reports whether key names a pagination or sort parameter.
func IsReserved(key string) bool {
	return reservedParams[key]
}

// Filters is the full query for the primary product list.
type Filters struct {
	SortField     string            `json:"sortField"`
	SortDirection string            `json:"sortDirection"`
	PageSize      int               `json:"pageSize"`
	Page          int               `json:"page"`
	Values        map[string]string `json:"values,omitempty"`
}

// DefaultFilters returns the filters a freshly opened page starts from.
func DefaultFilters(pageSize int) Filters {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Filters{
		SortField:     DefaultSortField,
		SortDirection: SortDesc,
		PageSize:      pageSize,
		Page:          1,
		Values:        map[string]string{},
	}
}

// Patch is a partial filter update. Nil fields are left alone; an empty
// value in Values removes that filter.
type Patch struct {
	SortField     *string           `json:"sortField,omitempty"`
	SortDirection *string           `json:"sortDirection,omitempty"`
	PageSize      *int              `json:"pageSize,omitempty"`
	Values        map[string]string `json:"values,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.SortField == nil && p.SortDirection == nil && p.PageSize == nil && len(p.Values) == 0
}

func (f Filters) clone() Filters {
	c := f
	c.Values = maps.Clone(f.Values)
	if c.Values == nil {
		c.Values = map[string]string{}
	}
	return c
}

func (f Filters) apply(p Patch) Filters {
	out := f.clone()
	if p.SortField != nil && strings.TrimSpace(*p.SortField) != "" {
		out.SortField = strings.TrimSpace(*p.SortField)
	}
	if p.SortDirection != nil {
		switch strings.ToLower(strings.TrimSpace(*p.SortDirection)) {
		case SortAsc:
			out.SortDirection = SortAsc
		case SortDesc:
			out.SortDirection = SortDesc
		}
	}
	if p.PageSize != nil && *p.PageSize > 0 {
		out.PageSize = *p.PageSize
	}
	for k, v := range p.Values {
		k = strings.TrimSpace(k)
		if k == "" || IsReserved(k) {
			continue
		}
		if v == "" {
			delete(out.Values, k)
			continue
		}
		out.Values[k] = v
	}
	return out
}

// Params renders the filters as upstream query parameters.
func (f Filters) Params() url.Values {
	q := url.Values{}
	q.Set(ParamPage, strconv.Itoa(f.Page))
	q.Set(ParamPerPage, strconv.Itoa(f.PageSize))
	if f.SortField != "" {
		q.Set(ParamSortBy, f.SortField)
		q.Set(ParamSortDirection, f.SortDirection)
	}
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		if !IsReserved(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, f.Values[k])
	}
	return q
}
