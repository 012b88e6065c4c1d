package service

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is a single named value of a Response payload.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Response captures the outcome of a single service invocation.
// It has no mutators: the outcome and payload are fixed by the constructor.
type Response struct {
	success bool
	payload *orderedmap.OrderedMap[string, any]
}

// NewResponse builds a Response. The payload keeps the order of fields;
// a repeated key keeps its first position and its last value.
func NewResponse(success bool, fields ...Field) *Response {
	payload := orderedmap.New[string, any]()
	for _, f := range fields {
		payload.Set(f.Key, f.Value)
	}
	return &Response{success: success, payload: payload}
}

// Success builds a successful Response.
func Success(fields ...Field) *Response {
	return NewResponse(true, fields...)
}

// Failure builds a failed Response.
func Failure(fields ...Field) *Response {
	return NewResponse(false, fields...)
}

// Succeeded reports whether the invocation succeeded.
func (r *Response) Succeeded() bool {
	return r.success
}

// Failed reports whether the invocation failed. It is always the negation
// of Succeeded.
func (r *Response) Failed() bool {
	return !r.success
}

// Len returns the number of payload values.
func (r *Response) Len() int {
	return r.payload.Len()
}

// Get returns the payload value stored under key.
func (r *Response) Get(key string) (any, bool) {
	return r.payload.Get(key)
}

// Value returns the payload value stored under key, or nil.
func (r *Response) Value(key string) any {
	v, _ := r.payload.Get(key)
	return v
}

// Keys returns the payload keys in construction order.
func (r *Response) Keys() []string {
	keys := make([]string, 0, r.payload.Len())
	for pair := r.payload.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Values returns the payload values in the order of Keys.
func (r *Response) Values() []any {
	values := make([]any, 0, r.payload.Len())
	for pair := r.payload.Oldest(); pair != nil; pair = pair.Next() {
		values = append(values, pair.Value)
	}
	return values
}

// Fields returns the payload as Fields in construction order. It is the
// ordered counterpart of Attributes.
func (r *Response) Fields() []Field {
	fields := make([]Field, 0, r.payload.Len())
	for pair := r.payload.Oldest(); pair != nil; pair = pair.Next() {
		fields = append(fields, Field{Key: pair.Key, Value: pair.Value})
	}
	return fields
}

// Attributes returns a copy of the payload as a map. Go maps are unordered;
// Fields returns the same mapping in construction order, as do Keys and
// Values taken together.
func (r *Response) Attributes() map[string]any {
	attrs := make(map[string]any, r.payload.Len())
	for pair := r.payload.Oldest(); pair != nil; pair = pair.Next() {
		attrs[pair.Key] = pair.Value
	}
	return attrs
}

// MarshalJSON encodes the Response as {"success":...,"attributes":{...}},
// keeping the payload order.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success    bool                                `json:"success"`
		Attributes *orderedmap.OrderedMap[string, any] `json:"attributes"`
	}{
		Success:    r.success,
		Attributes: r.payload,
	})
}

// Lookup returns the payload value stored under key as a V.
// ok is false if the key is absent or holds a value of another type.
func Lookup[V any](r *Response, key string) (V, bool) {
	var zero V
	raw, ok := r.payload.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}
