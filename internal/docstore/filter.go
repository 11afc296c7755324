package docstore

import (
	"fmt"

	"alkalytics/pkg/contracts/domain"
)

// Op is a comparison operator
type Op string

const (
	OpEq     Op = "$eq"
	OpNe     Op = "$ne"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpExists Op = "$exists"
)

// Predicate tests one field. For OpExists, Value is ignored and Want decides
// whether the field must be present or absent.
type Predicate struct {
	Field string
	Op    Op
	Value domain.Value
	Want  bool
}

// Filter is a conjunction of predicates. An empty filter matches everything.
type Filter []Predicate

// Where starts a filter
func Where(preds ...Predicate) Filter { return Filter(preds) }

// Eq matches documents whose field equals v. A null v also matches
// documents missing the field.
func Eq(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: domain.ValueOf(v)}
}

// Ne is the negation of Eq
func Ne(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpNe, Value: domain.ValueOf(v)}
}

func Gt(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpGt, Value: domain.ValueOf(v)}
}

func Gte(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: domain.ValueOf(v)}
}

func Lt(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpLt, Value: domain.ValueOf(v)}
}

func Lte(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: domain.ValueOf(v)}
}

// Exists matches on field presence
func Exists(field string, want bool) Predicate {
	return Predicate{Field: field, Op: OpExists, Want: want}
}

// Matches reports whether doc satisfies every predicate.
func (f Filter) Matches(doc *domain.Record) bool {
	for _, p := range f {
		if !p.matches(doc) {
			return false
		}
	}
	return true
}

// Validate rejects unknown operators
func (f Filter) Validate() error {
	for _, p := range f {
		switch p.Op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpExists:
		default:
			return fmt.Errorf("unsupported operator %q on field %q", p.Op, p.Field)
		}
	}
	return nil
}

func (p Predicate) matches(doc *domain.Record) bool {
	v, present := doc.Get(p.Field)

	switch p.Op {
	case OpExists:
		return present == p.Want
	case OpEq:
		return equalMatch(v, present, p.Value)
	case OpNe:
		return !equalMatch(v, present, p.Value)
	}

	// Range operators only compare values of the same kind.
	if !present || !v.Comparable(p.Value) {
		return false
	}
	c := v.Compare(p.Value)
	switch p.Op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func equalMatch(v domain.Value, present bool, want domain.Value) bool {
	if !present {
		return want.IsNull()
	}
	return v.Equal(want)
}

// equalityID returns the _id pinned by an $eq predicate, if any.
func (f Filter) equalityID() (string, bool) {
	for _, p := range f {
		if p.Field == domain.FieldDocID && p.Op == OpEq && !p.Value.IsNull() {
			return p.Value.String(), true
		}
	}
	return "", false
}
