package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"royaltyhub.org/internal/docstore"
)

// sliceConverter lets []string arguments through to sqlmock, as pgx does.
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if ss, ok := v.([]string); ok {
		return ss, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := New(db)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

func TestFindByID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select data from documents where collection = $1 and id = $2`)).
		WithArgs("salesAccounts", "sa1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"sa1","clientId":"C"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(`select data from documents where collection = $1 and id = $2`)).
		WithArgs("salesAccounts", "missing").
		WillReturnError(sql.ErrNoRows)

	d, err := s.FindByID(context.Background(), "salesAccounts", "sa1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if d.ClientID() != "C" {
		t.Fatalf("clientId = %q", d.ClientID())
	}
	if _, err := s.FindByID(context.Background(), "salesAccounts", "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindPages(t *testing.T) {
	s, mock := newMockStore(t)
	f := docstore.Eq{Field: "clientId", Value: "C"}
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) from documents where collection = $1 and (data->>$2) = $3`)).
		WithArgs("salesAccounts", "clientId", "C").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`select data from documents where collection = $1 and (data->>$2) = $3 order by id limit $4 offset $5`)).
		WithArgs("salesAccounts", "clientId", "C", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"sa3","clientId":"C"}`)))

	res, err := s.Find(context.Background(), "salesAccounts", f, docstore.Page{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if res.Total != 3 || res.Pages != 2 || res.Page != 2 || len(res.Docs) != 1 || res.Docs[0].ID() != "sa3" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`insert into documents(collection, id, data, created_at, updated_at)`)).
		WithArgs("users", "u1", sqlmock.AnyArg(), s.now()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into documents(collection, id, data, created_at, updated_at)`)).
		WithArgs("users", "u1", sqlmock.AnyArg(), s.now()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	d, err := s.Create(context.Background(), "users", docstore.Document{"id": "u1", "email": "a@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d[docstore.FieldCreatedAt] != "2024-01-02T03:04:05Z" {
		t.Fatalf("createdAt = %v", d[docstore.FieldCreatedAt])
	}
	if _, err := s.Create(context.Background(), "users", docstore.Document{"id": "u1"}); !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.Create(context.Background(), "users", nil); !errors.Is(err, docstore.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByIDAndUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`select data from documents where collection = $1 and id = $2 for update`)).
		WithArgs("salesAccounts", "sa1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"sa1","clientId":"C","name":"old","createdAt":"2023-01-01T00:00:00Z"}`)))
	mock.ExpectExec(regexp.QuoteMeta(`update documents set data = $3, updated_at = $4 where collection = $1 and id = $2`)).
		WithArgs("salesAccounts", "sa1", sqlmock.AnyArg(), s.now()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := s.FindByIDAndUpdate(context.Background(), "salesAccounts", "sa1", docstore.Document{"name": "new", "id": "other"})
	if err != nil {
		t.Fatalf("FindByIDAndUpdate: %v", err)
	}
	if d.ID() != "sa1" || d["name"] != "new" || d.ClientID() != "C" || d[docstore.FieldCreatedAt] != "2023-01-01T00:00:00Z" {
		t.Fatalf("unexpected document: %v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByIDAndUpdateMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`for update`)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := s.FindByIDAndUpdate(context.Background(), "salesAccounts", "nope", docstore.Document{}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByIDAndRemove(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`delete from documents where collection = $1 and id = $2 returning data`)).
		WithArgs("users", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"u1"}`)))

	d, err := s.FindByIDAndRemove(context.Background(), "users", "u1")
	if err != nil || d.ID() != "u1" {
		t.Fatalf("FindByIDAndRemove = %v, %v", d, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindOneUsesCompiledFilter(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select data from documents where collection = $1 and (data->>$2) = $3 order by id limit 1`)).
		WithArgs("users", "email", "a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := s.FindOne(context.Background(), "users", docstore.Eq{Field: "email", Value: "a@example.com"})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
