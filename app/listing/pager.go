package listing

import (
	"sort"

	"github.com/lxidea/whut-portal/app/portal"
)

const DefaultRadius = 2

// Marker is one slot of the pagination bar: a page number or an ellipsis.
type Marker struct {
	Page     int  `json:"page,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// Window lays out the pagination bar. The first and last page are always
// shown together with radius pages on each side of current. Every gap
// between shown pages collapses into one ellipsis.
func Window(current, totalPages, radius int) []Marker {
	if totalPages <= 0 {
		return nil
	}
	if radius < 0 {
		radius = 0
	}
	current = min(max(current, 1), totalPages)

	seen := map[int]bool{1: true, totalPages: true}
	for p := current - radius; p <= current+radius; p++ {
		if p >= 1 && p <= totalPages {
			seen[p] = true
		}
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	markers := make([]Marker, 0, len(pages)+2)
	prev := 0
	for _, p := range pages {
		if prev != 0 && p-prev > 1 {
			markers = append(markers, Marker{Ellipsis: true})
		}
		markers = append(markers, Marker{Page: p, Current: p == current})
		prev = p
	}
	return markers
}

type Pager struct {
	Current    int      `json:"current"`
	TotalPages int      `json:"total_pages"`
	Visible    bool     `json:"visible"`
	HasPrev    bool     `json:"has_prev"`
	HasNext    bool     `json:"has_next"`
	Markers    []Marker `json:"markers,omitempty"`
}

// NewPager builds the pagination bar for total items. It is hidden when
// everything fits on one page.
func NewPager(current, total, pageSize, radius int) Pager {
	pages := portal.TotalPages(total, pageSize)
	p := Pager{Current: current, TotalPages: pages}
	if pages <= 1 {
		return p
	}
	p.Visible = true
	p.HasPrev = current > 1
	p.HasNext = current < pages
	p.Markers = Window(current, pages, radius)
	return p
}
