// Package docstore is a small document store contract with Mongo-like
// semantics: named collections of flat records, equality and range filters,
// projection, sort, limit and $set/$unset updates with upsert.
//
// Three drivers are provided: an in-memory store for tests and development,
// and SQL backed stores on SQLite (modernc.org/sqlite) and Postgres
// (jackc/pgx) that keep each document as a JSON payload.
package docstore

import (
	"context"
	"errors"

	"alkalytics/pkg/contracts/domain"
)

var (
	// ErrNotFound is returned by FindOne when nothing matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned when an insert reuses an existing _id.
	ErrDuplicateKey = errors.New("duplicate document id")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("document store closed")
)

// Database hands out collections
type Database interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Collection is a named set of documents keyed by _id.
type Collection interface {
	FindOne(ctx context.Context, filter Filter, opts ...FindOption) (*domain.Record, error)
	Find(ctx context.Context, filter Filter, opts ...FindOption) ([]*domain.Record, error)
	InsertOne(ctx context.Context, doc *domain.Record) (string, error)
	// InsertMany inserts all documents or none.
	InsertMany(ctx context.Context, docs []*domain.Record) ([]string, error)
	UpdateOne(ctx context.Context, filter Filter, update Update, opts ...UpdateOption) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (int, error)
	DeleteMany(ctx context.Context, filter Filter) (int, error)
	Distinct(ctx context.Context, field string, filter Filter) ([]domain.Value, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// Update describes a $set/$unset modification.
type Update struct {
	Set   *domain.Record
	Unset []string
}

// UpdateResult reports the effect of an update
type UpdateResult struct {
	Matched    int
	Modified   int
	UpsertedID string
}

// SortField orders results by one field
type SortField struct {
	Field string
	Desc  bool
}

type findOptions struct {
	projection []string
	sort       []SortField
	limit      int
}

// FindOption configures Find and FindOne
type FindOption func(*findOptions)

// WithProjection keeps only the named fields. _id is not added implicitly.
func WithProjection(fields ...string) FindOption {
	return func(o *findOptions) { o.projection = fields }
}

// WithSort orders results. Later fields break ties of earlier ones.
func WithSort(fields ...SortField) FindOption {
	return func(o *findOptions) { o.sort = fields }
}

// WithLimit caps the number of results. Zero means unlimited.
func WithLimit(n int) FindOption {
	return func(o *findOptions) { o.limit = n }
}

// Asc and Desc build sort fields
func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

type updateOptions struct {
	upsert bool
}

// UpdateOption configures UpdateOne
type UpdateOption func(*updateOptions)

// WithUpsert inserts a document built from the filter's equality fields and
// the $set fields when nothing matches.
func WithUpsert() UpdateOption {
	return func(o *updateOptions) { o.upsert = true }
}
