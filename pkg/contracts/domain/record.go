package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is an ordered mapping from field name to Value. Field order is the
// order of first insertion and survives JSON round trips. The zero Record is
// empty and ready to use.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord builds a record from alternating field names and values.
func NewRecord(kv ...any) *Record {
	r := &Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain.NewRecord: field name at %d is %T", i, kv[i]))
		}
		r.Set(name, ValueOf(kv[i+1]))
	}
	return r
}

// Set stores v under name, keeping the original position for existing fields.
func (r *Record) Set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

// Get returns the value stored under name
func (r *Record) Get(name string) (Value, bool) {
	if r == nil {
		return Null(), false
	}
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value stored under name, or null when absent.
func (r *Record) Value(name string) Value {
	v, _ := r.Get(name)
	return v
}

// Has reports whether the field is present, even if null.
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Delete removes a field
func (r *Record) Delete(name string) {
	if _, ok := r.values[name]; !ok {
		return
	}
	delete(r.values, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in order
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(name string, v Value) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy
func (r *Record) Clone() *Record {
	out := &Record{}
	r.Range(func(name string, v Value) bool {
		out.Set(name, v)
		return true
	})
	return out
}

// Project returns a copy holding only the named fields, in record order.
func (r *Record) Project(fields []string) *Record {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	out := &Record{}
	r.Range(func(name string, v Value) bool {
		if want[name] {
			out.Set(name, v)
		}
		return true
	})
	return out
}

// Text returns the field rendered as a string, "" for null or absent fields.
func (r *Record) Text(name string) string {
	return r.Value(name).String()
}

// MarshalJSON writes fields in order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
