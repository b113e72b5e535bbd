package model

import "strings"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page describes the requested window and ordering of a list query.
type Page struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize clamps page/limit into range and defaults the ordering.
func (p Page) Normalize(defaultSort string, allowed ...string) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	ok := false
	for _, a := range allowed {
		if p.SortBy == a {
			ok = true
			break
		}
	}
	if !ok {
		p.SortBy = defaultSort
	}
	if strings.ToLower(p.SortOrder) == "asc" {
		p.SortOrder = "asc"
	} else {
		p.SortOrder = "desc"
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the envelope attached to every list response.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{
		Page:        p.Page,
		Limit:       p.Limit,
		Total:       total,
		TotalPages:  pages,
		HasNextPage: p.Page < pages,
		HasPrevPage: p.Page > 1,
	}
}
