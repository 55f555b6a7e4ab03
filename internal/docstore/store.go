package docstore

import (
	"context"
	"math"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	MaxLimit     = 200

	// MaxPage keeps (Page-1)*Limit within int.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Page carries the caller's page/limit query parameters. Values are passed
// through after Normalize clamps them.
type Page struct {
	Page  int
	Limit int
}

// Normalize applies defaults and caps the page and limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

// Offset returns the number of documents to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Result is one page of a listing.
type Result struct {
	Docs  []Document `json:"docs"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Pages int        `json:"pages"`
}

// NewResult fills the page bookkeeping for docs out of total matches.
func NewResult(docs []Document, total int, p Page) Result {
	p = p.Normalize()
	if docs == nil {
		docs = []Document{}
	}
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Result{Docs: docs, Total: total, Page: p.Page, Limit: p.Limit, Pages: pages}
}

// Store is the persistence collaborator consumed by the authorization core.
type Store interface {
	FindOne(ctx context.Context, collection string, f Filter) (Document, error)
	FindByID(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, collection string, f Filter, p Page) (Result, error)
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	FindByIDAndUpdate(ctx context.Context, collection, id string, patch Document) (Document, error)
	FindByIDAndRemove(ctx context.Context, collection, id string) (Document, error)
	Ping(ctx context.Context) error
}
