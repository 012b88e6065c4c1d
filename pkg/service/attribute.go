package service

import (
	"fmt"
	"reflect"
	"strings"
)

// tagKey is the struct tag that declares an attribute on a service type.
const tagKey = "service"

// Attribute declares a single named input slot of a service type.
type Attribute struct {
	// Name is the key accepted in the construction map.
	Name string

	// Type constrains the accepted values. A nil Type accepts any value.
	Type reflect.Type

	// Required marks the attribute as mandatory at construction.
	Required bool

	// index locates the backing struct field; nil for attributes built
	// with Att.
	index []int
}

// AttrOption is a functional option for configuring an Attribute.
type AttrOption func(*Attribute)

// OfType constrains an attribute to values assignable to T.
func OfType[T any]() AttrOption {
	return WithType(reflect.TypeOf((*T)(nil)).Elem())
}

// WithType constrains an attribute to values assignable to t.
// A nil t or an empty interface type leaves the attribute unconstrained.
func WithType(t reflect.Type) AttrOption {
	return func(a *Attribute) {
		a.Type = constraintFor(t)
	}
}

// Required marks an attribute as mandatory.
func Required() AttrOption {
	return func(a *Attribute) {
		a.Required = true
	}
}

// Att builds an attribute declaration.
func Att(name string, opts ...AttrOption) Attribute {
	a := Attribute{Name: name}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Check validates value against the type constraint.
// Returns an *IllegalTypeError on mismatch. nil never satisfies a constraint.
func (a Attribute) Check(value any) error {
	if a.Type == nil {
		return nil
	}
	got := reflect.TypeOf(value)
	if got == nil || !got.AssignableTo(a.Type) {
		return &IllegalTypeError{
			Attribute: a.Name,
			Expected:  a.Type,
			Got:       got,
		}
	}
	return nil
}

// String renders the declaration the way it is written in a struct tag,
// followed by its type.
func (a Attribute) String() string {
	typ := "any"
	if a.Type != nil {
		typ = a.Type.String()
	}
	if a.Required {
		return fmt.Sprintf("%s %s (required)", a.Name, typ)
	}
	return fmt.Sprintf("%s %s", a.Name, typ)
}

// constraintFor maps a field type to a type constraint. Empty interfaces
// accept anything.
func constraintFor(t reflect.Type) reflect.Type {
	if t == nil || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		return nil
	}
	return t
}

// parseTag splits a service struct tag into the attribute name and the
// required flag. skip is true for "-".
func parseTag(field reflect.StructField) (name string, required bool, skip bool, err error) {
	tag, ok := field.Tag.Lookup(tagKey)
	if !ok || tag == "-" {
		return "", false, true, nil
	}

	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "required":
			required = true
		case "":
		default:
			return "", false, false, fmt.Errorf("field %s: unknown tag option %q", field.Name, opt)
		}
	}
	return name, required, false, nil
}
