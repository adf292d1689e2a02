package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// WidgetKind tags the variant held by a WidgetValue.
type WidgetKind int

const (
	KindNull WidgetKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	// KindRaw preserves values this engine does not model (arrays, objects)
	// so they survive a load/save round trip untouched.
	KindRaw
)

func (k WidgetKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindBool:
		return "BOOLEAN"
	case KindRaw:
		return "RAW"
	}
	return "UNKNOWN"
}

// WidgetValue is a tagged variant over the scalar types a widget can hold.
type WidgetValue struct {
	kind WidgetKind
	i    int64
	f    float64
	s    string
	b    bool
	raw  json.RawMessage
}

func NullValue() WidgetValue             { return WidgetValue{kind: KindNull} }
func IntValue(v int64) WidgetValue       { return WidgetValue{kind: KindInt, i: v} }
func FloatValue(v float64) WidgetValue   { return WidgetValue{kind: KindFloat, f: v} }
func StringValue(v string) WidgetValue   { return WidgetValue{kind: KindString, s: v} }
func BoolValue(v bool) WidgetValue       { return WidgetValue{kind: KindBool, b: v} }
func RawValue(v json.RawMessage) WidgetValue {
	return WidgetValue{kind: KindRaw, raw: append(json.RawMessage(nil), v...)}
}

// ValueOf converts an arbitrary Go value into a WidgetValue.
func ValueOf(v interface{}) WidgetValue {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case WidgetValue:
		return t
	case int:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return NullValue()
	}
	return RawValue(raw)
}

func (v WidgetValue) Kind() WidgetKind { return v.kind }
func (v WidgetValue) IsNull() bool     { return v.kind == KindNull }

func (v WidgetValue) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

func (v WidgetValue) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v WidgetValue) Str() (string, bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}

func (v WidgetValue) Bool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// Interface returns the native Go value.
func (v WidgetValue) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindRaw:
		var out interface{}
		if err := json.Unmarshal(v.raw, &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

func (v WidgetValue) Equal(o WidgetValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindRaw:
		return bytes.Equal(v.raw, o.raw)
	}
	return true
}

func (v WidgetValue) String() string {
	return fmt.Sprintf("%v", v.Interface())
}

func (v WidgetValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindRaw:
		return v.raw, nil
	}
	return json.Marshal(v.Interface())
}

func (v *WidgetValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tmp interface{}
	if err := dec.Decode(&tmp); err != nil {
		return err
	}
	switch t := tmp.(type) {
	case nil:
		*v = NullValue()
	case bool:
		*v = BoolValue(t)
	case string:
		*v = StringValue(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = IntValue(i)
		} else {
			f, err := t.Float64()
			if err != nil {
				return err
			}
			*v = FloatValue(f)
		}
	default:
		*v = RawValue(b)
	}
	return nil
}

// WidgetEntry is a single named (or positional, when Name is empty) widget
// value.
type WidgetEntry struct {
	Name  string
	Value WidgetValue
}

// WidgetValues holds a node's widget values. The canonical representation is
// name-keyed; documents written by older frontends store a positional array
// instead, which is accepted on load and kept positional until names can be
// bound from the node's parameter schema. Once every entry is named the
// object form is written.
type WidgetValues struct {
	entries []WidgetEntry
}

// NewWidgetValues builds a name-keyed value set preserving the given order.
func NewWidgetValues(pairs ...WidgetEntry) *WidgetValues {
	return &WidgetValues{entries: pairs}
}

// Entry constructs a named widget entry for NewWidgetValues.
func Entry(name string, v WidgetValue) WidgetEntry {
	return WidgetEntry{Name: name, Value: v}
}

func (w *WidgetValues) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

// Named reports whether every entry carries a name (the canonical form).
func (w *WidgetValues) Named() bool {
	if w == nil {
		return false
	}
	for i := range w.entries {
		if w.entries[i].Name == "" {
			return false
		}
	}
	return len(w.entries) > 0
}

// Get returns the value stored under name.
func (w *WidgetValues) Get(name string) (WidgetValue, bool) {
	if w == nil {
		return WidgetValue{}, false
	}
	for i := range w.entries {
		if w.entries[i].Name == name {
			return w.entries[i].Value, true
		}
	}
	return WidgetValue{}, false
}

// At returns the value at positional index i.
func (w *WidgetValues) At(i int) (WidgetValue, bool) {
	if w == nil || i < 0 || i >= len(w.entries) {
		return WidgetValue{}, false
	}
	return w.entries[i].Value, true
}

// Set stores a value under name, appending a new entry if the name is not
// present yet.
func (w *WidgetValues) Set(name string, v WidgetValue) {
	for i := range w.entries {
		if w.entries[i].Name == name {
			w.entries[i].Value = v
			return
		}
	}
	w.entries = append(w.entries, WidgetEntry{Name: name, Value: v})
}

// SetAt overwrites the value at positional index i.
func (w *WidgetValues) SetAt(i int, v WidgetValue) error {
	if w == nil || i < 0 || i >= len(w.entries) {
		return ErrSlotOutOfRange
	}
	w.entries[i].Value = v
	return nil
}

// Names returns the entry names in order; unnamed entries yield "".
func (w *WidgetValues) Names() []string {
	if w == nil {
		return nil
	}
	names := make([]string, len(w.entries))
	for i := range w.entries {
		names[i] = w.entries[i].Name
	}
	return names
}

// BindNames assigns names to positional entries in order. It is the
// normalization step run once the node's parameter schema is known. Entries
// that already have a name keep it.
func (w *WidgetValues) BindNames(order []string) {
	if w == nil {
		return
	}
	for i := range w.entries {
		if w.entries[i].Name == "" && i < len(order) {
			w.entries[i].Name = order[i]
		}
	}
}

// Clone returns an independent copy.
func (w *WidgetValues) Clone() *WidgetValues {
	if w == nil {
		return nil
	}
	cp := make([]WidgetEntry, len(w.entries))
	copy(cp, w.entries)
	return &WidgetValues{entries: cp}
}

func (w *WidgetValues) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		w.entries = nil
		return nil
	}

	if trimmed[0] == '[' {
		var vals []WidgetValue
		if err := json.Unmarshal(trimmed, &vals); err != nil {
			return err
		}
		w.entries = make([]WidgetEntry, len(vals))
		for i, v := range vals {
			w.entries[i] = WidgetEntry{Value: v}
		}
		return nil
	}

	if trimmed[0] != '{' {
		return errors.New("widgets_values must be an array or an object")
	}

	// decode the object token-by-token so entry order is preserved
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return err
	}
	w.entries = w.entries[:0]
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		key := t.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var val WidgetValue
		if err := val.UnmarshalJSON(raw); err != nil {
			return err
		}
		w.entries = append(w.entries, WidgetEntry{Name: key, Value: val})
	}
	return nil
}

func (w *WidgetValues) MarshalJSON() ([]byte, error) {
	if w.Named() {
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i := range w.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(w.entries[i].Name)
			if err != nil {
				return nil, err
			}
			val, err := w.entries[i].Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}

	vals := make([]WidgetValue, len(w.entries))
	for i := range w.entries {
		vals[i] = w.entries[i].Value
	}
	return json.Marshal(vals)
}
