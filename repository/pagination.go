package repository

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Pagination struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
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

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// MapPage converts the items of a page, keeping its counters.
func MapPage[T any, R any](src *Page[T], fn func(*T) R) *Page[R] {
	out := &Page[R]{Items: make([]R, 0, len(src.Items)), Page: src.Page, PageSize: src.PageSize, Total: src.Total}
	for i := range src.Items {
		out.Items = append(out.Items, fn(&src.Items[i]))
	}
	return out
}
