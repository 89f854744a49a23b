// Package query orders and paginates item listings.
package query

import (
	"slices"
	"strings"

	"github.com/buonappetort/rex/internal/model"
)

// Order is the createdAt sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder maps "desc" (any case) to Desc and everything else to Asc.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// Params selects and shapes a listing.
type Params struct {
	OwnerID string
	Order   Order
	Page    int
	Limit   int
}

// Paginated reports whether both page and limit were given as positive
// numbers.
func (p Params) Paginated() bool {
	return p.Page > 0 && p.Limit > 0
}

// Page is one listing result. When Paginated is false, Items holds the whole
// ordered collection and the paging fields are zero.
type Page struct {
	Items     []model.Item `json:"items"`
	Page      int          `json:"page"`
	Limit     int          `json:"limit"`
	Total     int          `json:"total"`
	HasMore   bool         `json:"hasMore"`
	Paginated bool         `json:"-"`
}

// FilterOwner returns the items owned by ownerID, or all items when ownerID is
// empty.
func FilterOwner(items []model.Item, ownerID string) []model.Item {
	if ownerID == "" {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	return out
}

// Sort orders items by createdAt without modifying the input. Equal times
// keep their input order in both directions.
func Sort(items []model.Item, order Order) []model.Item {
	out := slices.Clone(items)
	if out == nil {
		out = []model.Item{}
	}
	slices.SortStableFunc(out, func(a, b model.Item) int {
		c := a.CreatedTime().Compare(b.CreatedTime())
		if order == Desc {
			return -c
		}
		return c
	})
	return out
}

// List filters, sorts and paginates items.
func List(items []model.Item, p Params) Page {
	sorted := Sort(FilterOwner(items, p.OwnerID), p.Order)
	if !p.Paginated() {
		return Page{Items: sorted, Total: len(sorted)}
	}

	total := len(sorted)
	page := Page{Page: p.Page, Limit: p.Limit, Total: total, Paginated: true}
	if p.Page-1 > total/p.Limit {
		page.Items = []model.Item{}
		return page
	}
	start := (p.Page - 1) * p.Limit
	if start >= total {
		page.Items = []model.Item{}
		return page
	}
	end := min(start+p.Limit, total)
	page.Items = sorted[start:end]
	page.HasMore = end < total
	return page
}
