// Package migrate applies the document store schema. Migrations and seeds
// ship embedded in the binary; directories on disk may replace them.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"royaltyhub.org/internal/obs"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"

	// lockKey is the pg_advisory_xact_lock key shared by every migrator.
	lockKey int64 = 0x726f79616c7479
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

//go:embed seeds/*.sql
var embeddedSeeds embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() fs.FS { return embeddedMigrations }

// Seeds returns the development seed files shipped with the binary.
func Seeds() fs.FS { return embeddedSeeds }

// Record is one applied migration or seed.
type Record struct {
	Name      string
	AppliedAt time.Time
}

func (r Record) String() string {
	return r.Name + "\t" + r.AppliedAt.UTC().Format(time.RFC3339)
}

// Manager runs migration and seed files. Each file is applied and recorded
// in a single transaction.
type Manager struct {
	db              *sql.DB
	migrations      fs.FS
	seeds           fs.FS
	migrationsTable string
	seedsTable      string
	now             func() time.Time
}

type Option func(*Manager)

func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

// NewManager constructs a Manager. Either file system may be nil.
func NewManager(db *sql.DB, migrations, seeds fs.FS, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		migrations:      migrations,
		seeds:           seeds,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies pending migrations in name order and returns how many ran.
func (m *Manager) Up(ctx context.Context) (int, error) {
	return m.applyAll(ctx, m.migrations, ".up.sql", m.migrationsTable)
}

// Seed applies seed files that have not run yet.
func (m *Manager) Seed(ctx context.Context) (int, error) {
	return m.applyAll(ctx, m.seeds, ".sql", m.seedsTable)
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return "", err
	}
	applied, err := m.history(ctx, m.migrationsTable)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", errors.New("no migrations applied")
	}
	last := applied[len(applied)-1].Name
	downs, err := collectSQL(m.migrations, ".down.sql")
	if err != nil {
		return "", err
	}
	want := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	idx := sort.Search(len(downs), func(i int) bool { return downs[i].Base >= want })
	if idx == len(downs) || downs[idx].Base != want {
		return "", fmt.Errorf("missing down migration for %s", last)
	}

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if err := execFile(ctx, tx, m.migrations, downs[idx].Path); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, m.migrationsTable), last)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rollback migration %s: %w", last, err)
	}
	obs.Logger().Info().Str("migration", last).Msg("migration rolled back")
	return last, nil
}

// Status lists applied migrations, oldest first.
func (m *Manager) Status(ctx context.Context) ([]Record, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	return m.history(ctx, m.migrationsTable)
}

func (m *Manager) applyAll(ctx context.Context, fsys fs.FS, suffix, table string) (int, error) {
	if err := m.ensureTables(ctx); err != nil {
		return 0, err
	}
	files, err := collectSQL(fsys, suffix)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, f := range files {
		ran := false
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			var done bool
			q := fmt.Sprintf(`select exists(select 1 from %s where name = $1)`, table)
			if err := tx.QueryRowContext(ctx, q, f.Base).Scan(&done); err != nil {
				return err
			}
			if done {
				return nil
			}
			if err := execFile(ctx, tx, fsys, f.Path); err != nil {
				return err
			}
			ran = true
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, table),
				f.Base, m.now().UTC())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", f.Base, err)
		}
		if ran {
			applied++
			obs.Logger().Info().Str("file", f.Base).Str("table", table).Msg("sql file applied")
		}
	}
	return applied, nil
}

// inTx serialises concurrent migrators with a transaction-scoped advisory lock.
func (m *Manager) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) ensureTables(ctx context.Context) error {
	for _, table := range []string{m.migrationsTable, m.seedsTable} {
		ddl := fmt.Sprintf(`create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}

func (m *Manager) history(ctx context.Context, table string) ([]Record, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name, applied_at from %s order by applied_at asc, name asc`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func execFile(ctx context.Context, tx *sql.Tx, fsys fs.FS, name string) error {
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type sqlFile struct {
	Base string
	Path string
}

// collectSQL returns files ending in suffix, sorted by base name.
func collectSQL(fsys fs.FS, suffix string) ([]sqlFile, error) {
	if fsys == nil {
		return nil, nil
	}
	var files []sqlFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{Base: path.Base(p), Path: p})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Base < files[j].Base })
	return files, nil
}

// splitStatements splits on semicolons outside quoted strings, line comments
// and dollar-quoted bodies. Comment-only fragments are dropped.
func splitStatements(src string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quoted  bool
		comment bool
		dollar  bool
	)
	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" && !onlyComments(s) {
			stmts = append(stmts, s)
		}
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case comment:
			if c == '\n' {
				comment = false
			}
		case dollar:
			if strings.HasPrefix(src[i:], "$$") {
				dollar = false
				cur.WriteByte(c)
				i++
				c = src[i]
			}
		case quoted:
			if c == '\'' {
				quoted = false
			}
		case c == '\'':
			quoted = true
		case c == '-' && strings.HasPrefix(src[i:], "--"):
			comment = true
		case strings.HasPrefix(src[i:], "$$"):
			dollar = true
			cur.WriteByte(c)
			i++
			c = src[i]
		case c == ';':
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return stmts
}

func onlyComments(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
