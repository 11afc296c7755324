package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindTime
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// TimeLayout is the canonical text form of a time value.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the canonical text form of a calendar date.
const DateLayout = "2006-01-02"

// Value is a scalar cell value: a number, text, a point in time or null.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	text string
	at   time.Time
}

// Null returns the null value
func Null() Value { return Value{} }

// Number returns a numeric value. NaN and infinities become null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Time returns a time value normalized to UTC
func Time(t time.Time) Value { return Value{kind: KindTime, at: t.UTC()} }

// Kind returns the type tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Str returns the text payload
func (v Value) Str() (string, bool) {
	return v.text, v.kind == KindText
}

// TimeValue returns the time payload
func (v Value) TimeValue() (time.Time, bool) {
	return v.at, v.kind == KindTime
}

// String renders the value for identities and logs. Null renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindTime:
		return v.at.Format(TimeLayout)
	default:
		return ""
	}
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindTime:
		return v.at.Equal(o.at)
	default:
		return true
	}
}

// Comparable reports whether ordered comparison between v and o is defined.
func (v Value) Comparable(o Value) bool {
	return v.kind == o.kind && v.kind != KindNull
}

// Compare orders values. Different kinds order as null < number < text < time.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.num < o.num:
			return -1
		case v.num > o.num:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(v.text, o.text)
	case KindTime:
		return v.at.Compare(o.at)
	default:
		return 0
	}
}

type dateJSON struct {
	Date string `json:"$date"`
}

// MarshalJSON encodes numbers and text natively, null as null and times
// as {"$date": RFC 3339}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindTime:
		return json.Marshal(dateJSON{Date: v.at.Format(time.RFC3339Nano)})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case '{':
		var d dateJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		if d.Date == "" {
			return fmt.Errorf("unsupported object value %s", data)
		}
		t, err := time.Parse(time.RFC3339Nano, d.Date)
		if err != nil {
			return fmt.Errorf("invalid $date: %w", err)
		}
		*v = Time(t)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Text(strconv.FormatBool(b))
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
		return nil
	}
}

// ValueOf converts a Go value into a Value. Unsupported types render as text.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return Text(t)
	case time.Time:
		return Time(t)
	case *float64:
		if t == nil {
			return Null()
		}
		return Number(*t)
	default:
		return Text(fmt.Sprint(t))
	}
}
