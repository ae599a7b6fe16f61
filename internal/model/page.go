package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Paging defaults for comparison row listings.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 1000
)

// RowStatus filters stored rows by outcome.
type RowStatus string

const (
	RowsAll       RowStatus = "all"
	RowsMatched   RowStatus = "matched"
	RowsUnmatched RowStatus = "unmatched"
)

// ParseRowStatus accepts all, matched or unmatched (any case). Empty means all.
func ParseRowStatus(s string) (RowStatus, error) {
	switch RowStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", RowsAll:
		return RowsAll, nil
	case RowsMatched:
		return RowsMatched, nil
	case RowsUnmatched:
		return RowsUnmatched, nil
	}
	return "", eris.Errorf("model: unknown row filter %q", s)
}

// RowFilter selects a window of stored rows.
type RowFilter struct {
	Status RowStatus
	Limit  int // 0 means no limit
	Offset int
}

// Pagination describes one page of a row listing.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPagination clamps page and limit to their defaults and computes page
// counts for total items.
func NewPagination(page, limit, total int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	pages := (total + limit - 1) / limit
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalItems:  total,
		TotalPages:  pages,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

// Filter returns the row window for this page.
func (p Pagination) Filter(status RowStatus) RowFilter {
	return RowFilter{Status: status, Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}
