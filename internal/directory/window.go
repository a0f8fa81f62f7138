package directory

import "strconv"

const windowWidth = 5

// Ellipsis markers in a page window. They are distinct so renderers can key them.
const (
	EllipsisLeading  = -1
	EllipsisTrailing = -2
)

// PageWindow returns the 1-based page numbers to show as navigation controls,
// with EllipsisLeading/EllipsisTrailing marking skipped ranges. current is the
// zero-based page index and is used as-is in the bounds below.
func PageWindow(current, totalPages int) []int {
	if totalPages <= 0 {
		return []int{}
	}
	if totalPages <= windowWidth {
		pages := make([]int, 0, totalPages)
		for i := 1; i <= totalPages; i++ {
			pages = append(pages, i)
		}
		return pages
	}

	pages := []int{1}
	start := max(2, current-1)
	end := min(totalPages-1, current+3)
	if current < 3 {
		end = min(windowWidth-1, totalPages-1)
	}
	if current > totalPages-3 {
		start = max(2, totalPages-(windowWidth-2))
	}
	if start > 2 {
		pages = append(pages, EllipsisLeading)
	}
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	if end < totalPages-1 {
		pages = append(pages, EllipsisTrailing)
	}
	return append(pages, totalPages)
}

// WindowItem is a renderable entry of a page window.
type WindowItem struct {
	Key      string `json:"key"`
	Page     int    `json:"page,omitempty"`
	Ellipsis bool   `json:"ellipsis,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

// WindowItems decorates PageWindow output with keys and the active marker.
func WindowItems(current, totalPages int) []WindowItem {
	pages := PageWindow(current, totalPages)
	items := make([]WindowItem, 0, len(pages))
	for _, p := range pages {
		switch p {
		case EllipsisLeading:
			items = append(items, WindowItem{Key: "ellipsis-leading", Ellipsis: true})
		case EllipsisTrailing:
			items = append(items, WindowItem{Key: "ellipsis-trailing", Ellipsis: true})
		default:
			items = append(items, WindowItem{Key: "page-" + strconv.Itoa(p), Page: p, Active: p == current+1})
		}
	}
	return items
}
