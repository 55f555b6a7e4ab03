// Package catalog serves tenant resources through the scope rules.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/docstore"
	"royaltyhub.org/internal/scope"
)

var (
	ErrForbidden   = errors.New("catalog: forbidden")
	ErrNotFound    = errors.New("catalog: not found")
	ErrUnknownKind = errors.New("catalog: unknown kind")
)

// Service applies route policy, list filters and per-record checks around a
// document store.
type Service struct {
	docs  docstore.Store
	kinds map[string]Kind
}

// NewService registers kinds, or DefaultKinds when none are given.
func NewService(docs docstore.Store, kinds ...Kind) *Service {
	if len(kinds) == 0 {
		kinds = DefaultKinds()
	}
	s := &Service{docs: docs, kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		s.kinds[k.Name] = k
	}
	return s
}

// Kinds returns the registered kind names, sorted.
func (s *Service) Kinds() []string { return kindNames(s.kinds) }

func (s *Service) kind(name string) (Kind, error) {
	k, ok := s.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return k, nil
}

func (s *Service) List(ctx context.Context, id auth.Identity, kind string, p docstore.Page) (docstore.Result, error) {
	k, err := s.kind(kind)
	if err != nil {
		return docstore.Result{}, err
	}
	var filter docstore.Filter
	switch k.Policy {
	case PolicyTenant:
		if id.Role != auth.RoleClient && id.Role != auth.RolePayee {
			return docstore.Result{}, ErrForbidden
		}
		filter = scope.ListFilter(scope.Tenant, id)
	case PolicyStaff:
		filter = scope.ListFilter(scope.Staff, id)
	case PolicyDirectory:
		filter = directoryFilter(id)
	default:
		filter = docstore.None{}
	}
	return s.docs.Find(ctx, k.Name, filter, p)
}

func (s *Service) Get(ctx context.Context, id auth.Identity, kind, docID string) (docstore.Document, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.find(ctx, k, docID)
	if err != nil {
		return nil, err
	}
	if !readable(k, doc, id) {
		return nil, ErrForbidden
	}
	return doc, nil
}

func (s *Service) Create(ctx context.Context, id auth.Identity, kind string, doc docstore.Document) (docstore.Document, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	if !canMutate(k, id) {
		return nil, ErrForbidden
	}
	if k.Policy == PolicyDirectory {
		clean := scope.SanitizeUpdate(doc)
		if v := doc.ID(); v != "" {
			clean[docstore.FieldID] = v
		}
		doc = clean
	} else {
		doc = scope.AssignTenant(doc, id)
	}
	return s.docs.Create(ctx, k.Name, doc)
}

// Update merges patch into the record. clientId and id in patch are dropped.
func (s *Service) Update(ctx context.Context, id auth.Identity, kind, docID string, patch docstore.Document) (docstore.Document, error) {
	k, err := s.authorizeMutation(ctx, id, kind, docID)
	if err != nil {
		return nil, err
	}
	updated, err := s.docs.FindByIDAndUpdate(ctx, k.Name, docID, scope.SanitizeUpdate(patch))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return updated, err
}

func (s *Service) Delete(ctx context.Context, id auth.Identity, kind, docID string) (docstore.Document, error) {
	k, err := s.authorizeMutation(ctx, id, kind, docID)
	if err != nil {
		return nil, err
	}
	removed, err := s.docs.FindByIDAndRemove(ctx, k.Name, docID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return removed, err
}

// authorizeMutation refuses non-mutating roles before touching the store,
// then checks the stored record belongs to the caller.
func (s *Service) authorizeMutation(ctx context.Context, id auth.Identity, kind, docID string) (Kind, error) {
	k, err := s.kind(kind)
	if err != nil {
		return Kind{}, err
	}
	if !canMutate(k, id) {
		return Kind{}, ErrForbidden
	}
	doc, err := s.find(ctx, k, docID)
	if err != nil {
		return Kind{}, err
	}
	if k.Policy != PolicyDirectory && scope.Forbidden(doc, id) {
		return Kind{}, ErrForbidden
	}
	return k, nil
}

func (s *Service) find(ctx context.Context, k Kind, docID string) (docstore.Document, error) {
	doc, err := s.docs.FindByID(ctx, k.Name, docID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return doc, err
}

func readable(k Kind, doc docstore.Document, id auth.Identity) bool {
	if k.Policy == PolicyDirectory {
		return directoryFilter(id).Match(doc)
	}
	return scope.Readable(k.visibility(), doc, id)
}

func canMutate(k Kind, id auth.Identity) bool {
	if k.Policy == PolicyDirectory {
		return id.Role == auth.RoleInternal
	}
	return scope.CanMutate(id)
}

// directoryFilter scopes the clients kind, whose record id is the tenant id.
func directoryFilter(id auth.Identity) docstore.Filter {
	switch id.Role {
	case auth.RoleInternal:
		return docstore.All{}
	case auth.RoleParent:
		if id.ParentID == "" {
			return docstore.None{}
		}
		return docstore.Eq{Field: "parentId", Value: id.ParentID}
	case auth.RoleClient:
		if id.ClientID == "" {
			return docstore.None{}
		}
		return docstore.Eq{Field: docstore.FieldID, Value: id.ClientID}
	default:
		return docstore.None{}
	}
}
