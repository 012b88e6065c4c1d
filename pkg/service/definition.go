package service

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
)

// Definition holds the declared attributes of a service type T.
// It is built once by Define and is immutable afterwards, so it is safe
// for concurrent use.
type Definition[T any] struct {
	name     string
	attrs    []Attribute
	byName   map[string]int
	required []string
}

// Define builds the Definition for service type T.
//
// T must be a struct whose pointer implements Service. Attributes are read
// from `service:"name[,required]"` field tags, including those of embedded
// structs; an outer declaration overrides an embedded one of the same name.
// Returns an *IllegalMethodDefinedError if *T exports any method other than
// Call, ignoring methods promoted from embedded fields.
func Define[T any, PT interface {
	*T
	Service
}](name string) (*Definition[T], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidDefinition)
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s: %s is not a struct", ErrInvalidDefinition, name, t)
	}

	if illegal := illegalMethods(t); len(illegal) > 0 {
		return nil, &IllegalMethodDefinedError{Service: name, Methods: illegal}
	}

	d := &Definition[T]{
		name:   name,
		byName: make(map[string]int),
	}
	if err := d.collect(t, nil); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, name, err)
	}

	for _, a := range d.attrs {
		if a.Required {
			d.required = append(d.required, a.Name)
		}
	}

	return d, nil
}

// MustDefine is like Define but panics on error. It is intended for
// package-level variables.
func MustDefine[T any, PT interface {
	*T
	Service
}](name string) *Definition[T] {
	d, err := Define[T, PT](name)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the service name.
func (d *Definition[T]) Name() string {
	return d.name
}

// Attributes returns the declared attributes in declaration order.
func (d *Definition[T]) Attributes() []Attribute {
	return slices.Clone(d.attrs)
}

// Attribute returns the declaration for name.
func (d *Definition[T]) Attribute(name string) (Attribute, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return d.attrs[i], true
}

// Required returns the names of the required attributes.
func (d *Definition[T]) Required() []string {
	return slices.Clone(d.required)
}

// New builds an instance of T from attrs.
//
// Keys are applied in sorted order. Returns an *UnknownAttributeError for
// an undeclared key, an *IllegalTypeError for a value of the wrong type, and,
// once every value is assigned, a *RequiredArgumentNotFoundError listing the
// required attributes absent from attrs.
func (d *Definition[T]) New(attrs map[string]any) (*T, error) {
	inst := new(T)
	v := reflect.ValueOf(inst).Elem()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		i, ok := d.byName[key]
		if !ok {
			return nil, &UnknownAttributeError{Service: d.name, Attribute: key}
		}
		a := d.attrs[i]

		value := attrs[key]
		if err := a.Check(value); err != nil {
			if te, ok := err.(*IllegalTypeError); ok {
				te.Service = d.name
			}
			return nil, err
		}
		if value == nil {
			continue
		}
		v.FieldByIndex(a.index).Set(reflect.ValueOf(value))
	}

	var missing []string
	for _, name := range d.required {
		if _, ok := attrs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &RequiredArgumentNotFoundError{Service: d.name, Missing: missing}
	}

	return inst, nil
}

// Execute runs an instance built by New. yield runs at most once.
// Returns ErrNoResponse if the business logic returns a nil Response.
func (d *Definition[T]) Execute(ctx context.Context, inst *T, yield Continuation) (*Response, error) {
	resp := any(inst).(Service).Call(ctx, yield.once())
	if resp == nil {
		return nil, fmt.Errorf("%s: %w", d.name, ErrNoResponse)
	}
	return resp, nil
}

// Call builds an instance from attrs and executes it.
func (d *Definition[T]) Call(ctx context.Context, attrs map[string]any, yield Continuation) (*Response, error) {
	inst, err := d.New(attrs)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, inst, yield)
}

// collect walks the fields of t, embedded structs first, and records every
// tagged field as an attribute.
func (d *Definition[T]) collect(t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if _, tagged := f.Tag.Lookup(tagKey); tagged {
			continue
		}
		if f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct && declaresAttributes(f.Type.Elem()) {
			return fmt.Errorf("field %s: attributes cannot be inherited through an embedded pointer", f.Name)
		}
		if f.Type.Kind() != reflect.Struct {
			continue
		}
		if err := d.collect(f.Type, appendIndex(prefix, i)); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if _, tagged := f.Tag.Lookup(tagKey); f.Anonymous && !tagged {
			continue
		}

		name, required, skip, err := parseTag(f)
		if err != nil {
			return err
		}
		if skip {
			continue
		}
		if !f.IsExported() {
			return fmt.Errorf("field %s: attribute %q is not exported", f.Name, name)
		}
		if seen[name] {
			return fmt.Errorf("attribute %q declared twice in %s", name, t)
		}
		seen[name] = true

		d.declare(Attribute{
			Name:     name,
			Type:     constraintFor(f.Type),
			Required: required,
			index:    appendIndex(prefix, i),
		})
	}
	return nil
}

// declaresAttributes reports whether t, or a struct it embeds by value,
// has a service-tagged field.
func declaresAttributes(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if _, tagged := f.Tag.Lookup(tagKey); tagged {
			return true
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && declaresAttributes(f.Type) {
			return true
		}
	}
	return false
}

// declare adds a, or overrides the earlier declaration of the same name
// keeping its position. The required flag accumulates.
func (d *Definition[T]) declare(a Attribute) {
	if i, ok := d.byName[a.Name]; ok {
		a.Required = a.Required || d.attrs[i].Required
		d.attrs[i] = a
		return
	}
	d.byName[a.Name] = len(d.attrs)
	d.attrs = append(d.attrs, a)
}

// illegalMethods returns the exported methods of *t other than Call,
// excluding those promoted from embedded fields.
func illegalMethods(t reflect.Type) []string {
	promoted := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		for _, et := range []reflect.Type{f.Type, reflect.PointerTo(f.Type)} {
			for j := 0; j < et.NumMethod(); j++ {
				promoted[et.Method(j).Name] = true
			}
		}
	}

	var illegal []string
	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		name := pt.Method(i).Name
		if name == "Call" {
			continue
		}
		if promoted[name] && !declaredOn(t, name) {
			continue
		}
		illegal = append(illegal, name)
	}
	slices.Sort(illegal)
	return illegal
}

// declaredOn reports whether t or *t declares name itself rather than
// inheriting it from an embedded field. Promoted methods are reached
// through compiler-generated wrappers, as is the *T wrapper of a T method,
// so a method counts as declared when either receiver resolves to real code.
func declaredOn(t reflect.Type, name string) bool {
	for _, rt := range []reflect.Type{t, reflect.PointerTo(t)} {
		m, ok := rt.MethodByName(name)
		if ok && !generated(m) {
			return true
		}
	}
	return false
}

func generated(m reflect.Method) bool {
	pc := m.Func.Pointer()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return true
	}
	file, _ := fn.FileLine(pc)
	return file == "<autogenerated>"
}

func appendIndex(prefix []int, i int) []int {
	return append(slices.Clone(prefix), i)
}
