package docstore

import (
	"sort"

	"github.com/google/uuid"

	"alkalytics/pkg/contracts/domain"
)

// prepareInsert copies doc so that _id is the first field, assigning a
// random id when none is set.
func prepareInsert(doc *domain.Record) (*domain.Record, string) {
	id := doc.Text(domain.FieldDocID)
	if id == "" {
		id = uuid.New().String()
	}
	out := domain.NewRecord(domain.FieldDocID, id)
	doc.Range(func(name string, v domain.Value) bool {
		if name != domain.FieldDocID {
			out.Set(name, v)
		}
		return true
	})
	return out, id
}

// applyUpdate modifies doc in place and reports whether anything changed.
func applyUpdate(doc *domain.Record, u Update) bool {
	changed := false
	u.Set.Range(func(name string, v domain.Value) bool {
		if name == domain.FieldDocID {
			return true
		}
		if old, ok := doc.Get(name); !ok || !old.Equal(v) {
			doc.Set(name, v)
			changed = true
		}
		return true
	})
	for _, name := range u.Unset {
		if name == domain.FieldDocID || !doc.Has(name) {
			continue
		}
		doc.Delete(name)
		changed = true
	}
	return changed
}

// upsertDocument builds the document inserted by an upsert: the filter's
// equality fields followed by the $set fields.
func upsertDocument(filter Filter, u Update) (*domain.Record, string) {
	seed := &domain.Record{}
	for _, p := range filter {
		if p.Op == OpEq {
			seed.Set(p.Field, p.Value)
		}
	}
	applyUpdate(seed, u)
	return prepareInsert(seed)
}

// finish applies sort, limit and projection to a matched result set.
func finish(docs []*domain.Record, o findOptions) []*domain.Record {
	if len(o.sort) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, s := range o.sort {
				c := docs[i].Value(s.Field).Compare(docs[j].Value(s.Field))
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if o.limit > 0 && len(docs) > o.limit {
		docs = docs[:o.limit]
	}
	if len(o.projection) > 0 {
		for i, d := range docs {
			docs[i] = d.Project(o.projection)
		}
	}
	return docs
}

func collectOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func collectUpdateOptions(opts []UpdateOption) updateOptions {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// distinctValues returns the unique non-null values of field in document order.
func distinctValues(docs []*domain.Record, field string) []domain.Value {
	var out []domain.Value
	for _, d := range docs {
		v, ok := d.Get(field)
		if !ok || v.IsNull() {
			continue
		}
		seen := false
		for _, o := range out {
			if o.Equal(v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}
