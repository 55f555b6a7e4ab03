package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"royaltyhub.org/internal/docstore"
	"royaltyhub.org/internal/ids"
)

const pgErrUniqueViolation = "23505"

// Store keeps every collection in the documents table as jsonb.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) FindOne(ctx context.Context, collection string, f docstore.Filter) (docstore.Document, error) {
	where, args, err := Compile(f, collection)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`select data from documents where collection = $1 and `+where+` order by id limit 1`, args...)
	return scanDocument(row)
}

func (s *Store) FindByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`select data from documents where collection = $1 and id = $2`, collection, id)
	return scanDocument(row)
}

func (s *Store) Find(ctx context.Context, collection string, f docstore.Filter, p docstore.Page) (docstore.Result, error) {
	p = p.Normalize()
	where, args, err := Compile(f, collection)
	if err != nil {
		return docstore.Result{}, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from documents where collection = $1 and `+where, args...).Scan(&total); err != nil {
		return docstore.Result{}, err
	}

	n := len(args)
	args = append(args, p.Limit, p.Offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select data from documents where collection = $1 and %s order by id limit $%d offset $%d`,
		where, n+1, n+2), args...)
	if err != nil {
		return docstore.Result{}, err
	}
	defer rows.Close()

	docs := make([]docstore.Document, 0, p.Limit)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return docstore.Result{}, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return docstore.Result{}, err
	}
	return docstore.NewResult(docs, total, p), nil
}

func (s *Store) Create(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	if doc == nil {
		return nil, docstore.ErrInvalidDocument
	}
	d := doc.Clone()
	if d.ID() == "" {
		d[docstore.FieldID] = ids.New()
	}
	now := s.now().UTC()
	docstore.Stamp(d, now, true)
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidDocument, err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into documents(collection, id, data, created_at, updated_at)
		values ($1, $2, $3, $4, $4)
	`, collection, d.ID(), raw, now)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return nil, docstore.ErrConflict
		}
		return nil, err
	}
	return d, nil
}

// FindByIDAndUpdate merges patch under a row lock so concurrent patches to
// the same document serialize.
func (s *Store) FindByIDAndUpdate(ctx context.Context, collection, id string, patch docstore.Document) (docstore.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanDocument(tx.QueryRowContext(ctx,
		`select data from documents where collection = $1 and id = $2 for update`, collection, id))
	if err != nil {
		return nil, err
	}
	next := cur.Merge(patch)
	next[docstore.FieldID] = id
	next[docstore.FieldCreatedAt] = cur[docstore.FieldCreatedAt]
	now := s.now().UTC()
	docstore.Stamp(next, now, false)
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidDocument, err)
	}
	if _, err := tx.ExecContext(ctx,
		`update documents set data = $3, updated_at = $4 where collection = $1 and id = $2`,
		collection, id, raw, now); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return nil, docstore.ErrConflict
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) FindByIDAndRemove(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`delete from documents where collection = $1 and id = $2 returning data`, collection, id)
	return scanDocument(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (docstore.Document, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	var d docstore.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
