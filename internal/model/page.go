package model

// Pagination defaults
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page is a 1-indexed offset page request.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes a page request: non-positive values fall back to the
// defaults and the size is capped at MaxPageSize.
func NewPage(number, size int) Page {
	if number <= 0 {
		number = DefaultPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Skip is the number of items before this page.
func (p Page) Skip() int {
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(total/size).
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
