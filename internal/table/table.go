// Package table holds the view model consumed by the generic table
// template: a row renderer, the rows, pagination parameters and opaque
// context handed to every row.
package table

// Params are the pagination and sorting parameters of a table.
type Params struct {
	TotalListItems int
	CurrentPage    int
	PageSize       int
	SortBy         string
}

// Column describes one table header.
type Column struct {
	Name   string
	Value  string
	Width  string
	NoSort bool
}

// Object pairs a row renderer with its rows. Component names the template
// that renders a single row; Context is passed to it unchanged.
type Object[T any] struct {
	Component string
	Rows      []T
	Params    Params
	Context   any
	Columns   []Column
}

// New builds a table object. It returns nil when there are no rows, which
// the template renders as an absent table.
func New[T any](component string, rows []T, params Params, context any, columns ...Column) *Object[T] {
	if len(rows) == 0 {
		return nil
	}
	return &Object[T]{
		Component: component,
		Rows:      rows,
		Params:    params,
		Context:   context,
		Columns:   columns,
	}
}

// PageCount returns the number of pages, at least 1.
func (p Params) PageCount() int {
	if p.PageSize <= 0 || p.TotalListItems <= 0 {
		return 1
	}
	return (p.TotalListItems + p.PageSize - 1) / p.PageSize
}

// Page returns the rows of the current page. Out of range pages are
// clamped.
func (o *Object[T]) Page() []T {
	if o == nil {
		return nil
	}
	size := o.Params.PageSize
	if size <= 0 {
		return o.Rows
	}
	page := min(max(o.Params.CurrentPage, 1), o.Params.PageCount())
	start := (page - 1) * size
	if start >= len(o.Rows) {
		return nil
	}
	end := min(start+size, len(o.Rows))
	return o.Rows[start:end]
}
