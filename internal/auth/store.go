package auth

import (
	"context"
	"errors"
	"strings"

	"royaltyhub.org/internal/docstore"
)

const (
	UsersCollection     = "users"
	ContractsCollection = "contracts"
)

// UserStore persists user records.
type UserStore interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByResetToken(ctx context.Context, token string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id string, patch docstore.Document) (User, error)
	Delete(ctx context.Context, id string) error
}

// ContractStore resolves the contracts granted to a payee.
type ContractStore interface {
	ContractIDs(ctx context.Context, clientID, payeeID string) ([]string, error)
}

// DocStore adapts a docstore.Store to UserStore and ContractStore.
type DocStore struct {
	docs docstore.Store
}

var (
	_ UserStore     = (*DocStore)(nil)
	_ ContractStore = (*DocStore)(nil)
)

func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *DocStore) FindByID(ctx context.Context, id string) (User, error) {
	d, err := s.docs.FindByID(ctx, UsersCollection, id)
	return s.user(d, err)
}

func (s *DocStore) FindByEmail(ctx context.Context, email string) (User, error) {
	d, err := s.docs.FindOne(ctx, UsersCollection, docstore.Eq{Field: "email", Value: normalizeEmail(email)})
	return s.user(d, err)
}

func (s *DocStore) FindByResetToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	d, err := s.docs.FindOne(ctx, UsersCollection, docstore.Eq{Field: "forgotPasswordToken", Value: token})
	return s.user(d, err)
}

func (s *DocStore) Create(ctx context.Context, u User) (User, error) {
	u.Email = normalizeEmail(u.Email)
	d, err := u.document()
	if err != nil {
		return User{}, err
	}
	created, err := s.docs.Create(ctx, UsersCollection, d)
	if errors.Is(err, docstore.ErrConflict) {
		return User{}, ErrConflict
	}
	return s.user(created, err)
}

func (s *DocStore) Update(ctx context.Context, id string, patch docstore.Document) (User, error) {
	d, err := s.docs.FindByIDAndUpdate(ctx, UsersCollection, id, patch)
	return s.user(d, err)
}

func (s *DocStore) Delete(ctx context.Context, id string) error {
	_, err := s.docs.FindByIDAndRemove(ctx, UsersCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ContractIDs pages through every contract of payeeID, restricted to the
// tenant when clientID is set.
func (s *DocStore) ContractIDs(ctx context.Context, clientID, payeeID string) ([]string, error) {
	if payeeID == "" {
		return nil, nil
	}
	filter := docstore.And{docstore.Eq{Field: "payeeId", Value: payeeID}}
	if clientID != "" {
		filter = append(filter, docstore.Eq{Field: docstore.FieldClientID, Value: clientID})
	}
	var out []string
	page := docstore.Page{Page: 1, Limit: docstore.MaxLimit}
	for {
		res, err := s.docs.Find(ctx, ContractsCollection, filter, page)
		if err != nil {
			return nil, err
		}
		for _, d := range res.Docs {
			out = append(out, d.ID())
		}
		if page.Page >= res.Pages {
			return out, nil
		}
		page.Page++
	}
}

func (s *DocStore) user(d docstore.Document, err error) (User, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return userFromDocument(d)
}
