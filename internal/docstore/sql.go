package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"alkalytics/pkg/contracts/domain"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name        string
	driver      string
	schema      []string
	placeholder func(n int) string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			UNIQUE (collection, doc_id)
		)`,
	},
	placeholder: func(int) string { return "?" },
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			payload BYTEA NOT NULL,
			UNIQUE (collection, doc_id)
		)`,
	},
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// SQLDatabase stores every collection in one documents table. Filtering,
// sorting and projection run in Go over decoded payloads; only _id lookups
// are pushed down to SQL.
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens (and creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLDatabase, error) {
	if path == "" {
		path = "alkalytics.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	return newSQLDatabase(ctx, db, sqliteDialect)
}

// OpenPostgres connects to Postgres using a pgx DSN.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*SQLDatabase, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLDatabase(ctx, db, postgresDialect)
}

func newSQLDatabase(ctx context.Context, db *sql.DB, d dialect) (*SQLDatabase, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s schema: %w", d.name, err)
		}
	}
	return &SQLDatabase{db: db, dialect: d}, nil
}

// Collection implements Database
func (s *SQLDatabase) Collection(name string) Collection {
	return &sqlCollection{db: s, name: name}
}

// Ping implements Database
func (s *SQLDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Database
func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for the dialect.
func (s *SQLDatabase) rebind(query string) string {
	if s.dialect.name == sqliteDialect.name {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation recognizes duplicate key errors from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type sqlCollection struct {
	db   *SQLDatabase
	name string
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storedDoc struct {
	id  string
	doc *domain.Record
}

// load returns the collection documents matching filter in insertion order.
func (c *sqlCollection) load(ctx context.Context, q queryer, filter Filter) ([]storedDoc, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT doc_id, payload FROM documents WHERE collection = ?`
	args := []any{c.name}
	if id, ok := filter.equalityID(); ok {
		query += ` AND doc_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, c.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []storedDoc
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc := &domain.Record{}
		if err := json.Unmarshal(payload, doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
		}
		if filter.Matches(doc) {
			out = append(out, storedDoc{id: id, doc: doc})
		}
	}
	return out, rows.Err()
}

func (c *sqlCollection) FindOne(ctx context.Context, filter Filter, opts ...FindOption) (*domain.Record, error) {
	docs, err := c.Find(ctx, filter, append(opts, WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *sqlCollection) Find(ctx context.Context, filter Filter, opts ...FindOption) ([]*domain.Record, error) {
	stored, err := c.load(ctx, c.db.db, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]*domain.Record, len(stored))
	for i, s := range stored {
		docs[i] = s.doc
	}
	return finish(docs, collectOptions(opts)), nil
}

func (c *sqlCollection) InsertOne(ctx context.Context, doc *domain.Record) (string, error) {
	ids, err := c.InsertMany(ctx, []*domain.Record{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (c *sqlCollection) InsertMany(ctx context.Context, docs []*domain.Record) (ids []string, retErr error) {
	if len(docs) == 0 {
		return nil, nil
	}

	tx, err := c.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt := c.db.rebind(`INSERT INTO documents (collection, doc_id, payload) VALUES (?, ?, ?)`)
	ids = make([]string, 0, len(docs))
	for _, d := range docs {
		prepared, id := prepareInsert(d)
		if err := c.insert(ctx, tx, stmt, id, prepared); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (c *sqlCollection) insert(ctx context.Context, tx *sql.Tx, stmt, id string, doc *domain.Record) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	if _, err := tx.ExecContext(ctx, stmt, c.name, id, payload); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, id)
		}
		return fmt.Errorf("insert %s/%s: %w", c.name, id, err)
	}
	return nil
}

func (c *sqlCollection) UpdateOne(ctx context.Context, filter Filter, update Update, opts ...UpdateOption) (UpdateResult, error) {
	return c.update(ctx, filter, update, false, collectUpdateOptions(opts).upsert)
}

func (c *sqlCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, true, false)
}

func (c *sqlCollection) update(ctx context.Context, filter Filter, update Update, many, upsert bool) (res UpdateResult, retErr error) {
	tx, err := c.db.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stored, err := c.load(ctx, tx, filter)
	if err != nil {
		return res, err
	}
	if !many && len(stored) > 1 {
		stored = stored[:1]
	}

	stmt := c.db.rebind(`UPDATE documents SET payload = ? WHERE collection = ? AND doc_id = ?`)
	for _, s := range stored {
		res.Matched++
		if !applyUpdate(s.doc, update) {
			continue
		}
		payload, err := json.Marshal(s.doc)
		if err != nil {
			return res, fmt.Errorf("encode %s/%s: %w", c.name, s.id, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, payload, c.name, s.id); err != nil {
			return res, fmt.Errorf("update %s/%s: %w", c.name, s.id, err)
		}
		res.Modified++
	}

	if res.Matched == 0 && upsert {
		doc, id := upsertDocument(filter, update)
		insert := c.db.rebind(`INSERT INTO documents (collection, doc_id, payload) VALUES (?, ?, ?)`)
		if err := c.insert(ctx, tx, insert, id, doc); err != nil {
			return res, err
		}
		res.UpsertedID = id
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (c *sqlCollection) DeleteOne(ctx context.Context, filter Filter) (int, error) {
	return c.delete(ctx, filter, false)
}

func (c *sqlCollection) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	return c.delete(ctx, filter, true)
}

func (c *sqlCollection) delete(ctx context.Context, filter Filter, many bool) (removed int, retErr error) {
	tx, err := c.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stored, err := c.load(ctx, tx, filter)
	if err != nil {
		return 0, err
	}
	if !many && len(stored) > 1 {
		stored = stored[:1]
	}

	stmt := c.db.rebind(`DELETE FROM documents WHERE collection = ? AND doc_id = ?`)
	for _, s := range stored {
		if _, err := tx.ExecContext(ctx, stmt, c.name, s.id); err != nil {
			return 0, fmt.Errorf("delete %s/%s: %w", c.name, s.id, err)
		}
		removed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

func (c *sqlCollection) Distinct(ctx context.Context, field string, filter Filter) ([]domain.Value, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return distinctValues(docs, field), nil
}

func (c *sqlCollection) Count(ctx context.Context, filter Filter) (int, error) {
	stored, err := c.load(ctx, c.db.db, filter)
	if err != nil {
		return 0, err
	}
	return len(stored), nil
}
