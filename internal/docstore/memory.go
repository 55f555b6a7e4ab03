package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"royaltyhub.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety. Used for
// development and tests; PostgreSQL backs production.
type InMemory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	now         func() time.Time
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		collections: make(map[string]map[string]Document),
		now:         time.Now,
	}
}

func (s *InMemory) Ping(context.Context) error { return nil }

func (s *InMemory) FindOne(ctx context.Context, collection string, f Filter) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.sorted(collection) {
		if f.Match(d) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) FindByID(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (s *InMemory) Find(ctx context.Context, collection string, f Filter, p Page) (Result, error) {
	p = p.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Document
	for _, d := range s.sorted(collection) {
		if f.Match(d) {
			matched = append(matched, d)
		}
	}
	total := len(matched)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	out := make([]Document, 0, end-start)
	for _, d := range matched[start:end] {
		out = append(out, d.Clone())
	}
	return NewResult(out, total, p), nil
}

func (s *InMemory) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	d := doc.Clone()
	if d.ID() == "" {
		d[FieldID] = ids.New()
	}
	Stamp(d, s.now(), true)

	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	if _, exists := coll[d.ID()]; exists {
		return nil, ErrConflict
	}
	coll[d.ID()] = d
	return d.Clone(), nil
}

func (s *InMemory) FindByIDAndUpdate(ctx context.Context, collection, id string, patch Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Merge(patch)
	next[FieldID] = id
	next[FieldCreatedAt] = cur[FieldCreatedAt]
	Stamp(next, s.now(), false)
	s.collections[collection][id] = next
	return next.Clone(), nil
}

func (s *InMemory) FindByIDAndRemove(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.collections[collection], id)
	return cur, nil
}

// sorted returns the collection ordered by id; ULIDs sort by creation time.
// Caller holds the lock.
func (s *InMemory) sorted(collection string) []Document {
	coll := s.collections[collection]
	out := make([]Document, 0, len(coll))
	for _, d := range coll {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
