// Package pagination carries the two list windows the API exposes: numbered
// pages for back-office style lists and opaque keyset cursors for feeds.
package pagination

import "gorm.io/gorm"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a 1-based page/limit window.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to >= 1 and the limit to [1, MaxLimit].
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Scope applies the window to a gorm query.
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	n := p.Normalize()
	return db.Offset(n.Offset()).Limit(n.Limit)
}

type PageMeta struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
}

func MetaFor(p Page, total int64) PageMeta {
	n := p.Normalize()
	return PageMeta{
		Page:    n.Page,
		Limit:   n.Limit,
		Total:   total,
		HasNext: int64(n.Page*n.Limit) < total,
	}
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
