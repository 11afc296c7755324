package docstore

import (
	"context"
	"fmt"
	"sync"

	"alkalytics/pkg/contracts/domain"
)

// MemoryDatabase keeps collections in process memory. Documents are returned
// as copies so callers can never mutate stored state.
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	closed      bool
}

// NewMemory creates an empty in-memory database
func NewMemory() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string]*memoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (db *MemoryDatabase) Collection(name string) Collection {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.collections[name]
	if !ok {
		c = &memoryCollection{db: db, index: make(map[string]int)}
		db.collections[name] = c
	}
	return c
}

// Ping implements Database
func (db *MemoryDatabase) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if db.isClosed() {
		return ErrClosed
	}
	return nil
}

// Close implements Database
func (db *MemoryDatabase) Close() error {
	db.mu.Lock()
	db.closed = true
	db.mu.Unlock()
	return nil
}

func (db *MemoryDatabase) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

type memoryCollection struct {
	db    *MemoryDatabase
	mu    sync.RWMutex
	docs  []*domain.Record
	index map[string]int
}

func (c *memoryCollection) check(ctx context.Context, filter Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.db.isClosed() {
		return ErrClosed
	}
	return filter.Validate()
}

func (c *memoryCollection) FindOne(ctx context.Context, filter Filter, opts ...FindOption) (*domain.Record, error) {
	docs, err := c.Find(ctx, filter, append(opts, WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter, opts ...FindOption) ([]*domain.Record, error) {
	if err := c.check(ctx, filter); err != nil {
		return nil, err
	}
	o := collectOptions(opts)

	c.mu.RLock()
	var out []*domain.Record
	for _, d := range c.docs {
		if filter.Matches(d) {
			out = append(out, d.Clone())
		}
	}
	c.mu.RUnlock()

	return finish(out, o), nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc *domain.Record) (string, error) {
	ids, err := c.InsertMany(ctx, []*domain.Record{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (c *memoryCollection) InsertMany(ctx context.Context, docs []*domain.Record) ([]string, error) {
	if err := c.check(ctx, nil); err != nil {
		return nil, err
	}

	prepared := make([]*domain.Record, len(docs))
	ids := make([]string, len(docs))
	batch := make(map[string]bool, len(docs))
	for i, d := range docs {
		prepared[i], ids[i] = prepareInsert(d)
		if batch[ids[i]] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, ids[i])
		}
		batch[ids[i]] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, exists := c.index[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, id)
		}
	}
	for i, d := range prepared {
		c.index[ids[i]] = len(c.docs)
		c.docs = append(c.docs, d)
	}
	return ids, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter Filter, update Update, opts ...UpdateOption) (UpdateResult, error) {
	return c.update(ctx, filter, update, false, collectUpdateOptions(opts).upsert)
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, true, false)
}

func (c *memoryCollection) update(ctx context.Context, filter Filter, update Update, many, upsert bool) (UpdateResult, error) {
	var res UpdateResult
	if err := c.check(ctx, filter); err != nil {
		return res, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.docs {
		if !filter.Matches(d) {
			continue
		}
		res.Matched++
		if applyUpdate(d, update) {
			res.Modified++
		}
		if !many {
			break
		}
	}

	if res.Matched == 0 && upsert {
		doc, id := upsertDocument(filter, update)
		if _, exists := c.index[id]; exists {
			return res, fmt.Errorf("%w: %s", ErrDuplicateKey, id)
		}
		c.index[id] = len(c.docs)
		c.docs = append(c.docs, doc)
		res.UpsertedID = id
	}
	return res, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter Filter) (int, error) {
	return c.delete(ctx, filter, false)
}

func (c *memoryCollection) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	return c.delete(ctx, filter, true)
}

func (c *memoryCollection) delete(ctx context.Context, filter Filter, many bool) (int, error) {
	if err := c.check(ctx, filter); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.docs[:0]
	removed := 0
	for _, d := range c.docs {
		if (many || removed == 0) && filter.Matches(d) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept

	c.index = make(map[string]int, len(c.docs))
	for i, d := range c.docs {
		c.index[d.Text(domain.FieldDocID)] = i
	}
	return removed, nil
}

func (c *memoryCollection) Distinct(ctx context.Context, field string, filter Filter) ([]domain.Value, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return distinctValues(docs, field), nil
}

func (c *memoryCollection) Count(ctx context.Context, filter Filter) (int, error) {
	if err := c.check(ctx, filter); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, d := range c.docs {
		if filter.Matches(d) {
			n++
		}
	}
	return n, nil
}
