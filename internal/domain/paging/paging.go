// Package paging normalizes page/limit query parameters.
package paging

// Page selects a 1-based page of Size rows.
type Page struct {
	Number int
	Size   int
}

// New clamps number to at least 1 and size to (0, max], substituting def for
// non-positive sizes.
func New(number, size, def, max int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pages returns how many pages are needed to hold total rows.
func (p Page) Pages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
