package sluice

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// CustomValidator is a named, reusable validation step referenced from a
// chain via Custom.
type CustomValidator struct {
	Name string
	Help string
	Fn   StepFunc
}

// Registry holds object definitions and custom validators. It is populated
// at startup and read-only thereafter; the compiler, builder and codec all
// receive it explicitly.
type Registry struct {
	defs    map[string]*ObjectDefinition
	order   []string
	customs map[string]CustomValidator

	// descriptor cache for struct field access in the builder
	descs sync.Map // reflect.Type -> map[string][]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    map[string]*ObjectDefinition{},
		customs: map[string]CustomValidator{},
	}
}

// Register adds object definitions. Duplicate names, or a field declaring
// only one of singular/plural, are configuration errors and panic.
func (r *Registry) Register(defs ...*ObjectDefinition) {
	for _, d := range defs {
		if d.Name == "" {
			panic("sluice: object definition without a name")
		}
		if _, ok := r.defs[d.Name]; ok {
			panic(fmt.Sprintf("sluice: duplicate object definition %q", d.Name))
		}
		if d.Singular == "" {
			d.Singular = d.Name
		}
		for i := range d.Fields {
			f := &d.Fields[i]
			if (f.Singular == "") != (f.Plural == "") {
				panic(fmt.Sprintf("sluice: field %s.%s must declare both singular and plural", d.Name, f.Name))
			}
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
}

// RegisterCustom adds a named validator. A nil step function or duplicate
// name is a configuration error and panics.
func (r *Registry) RegisterCustom(cv CustomValidator) {
	if cv.Name == "" || cv.Fn == nil {
		panic("sluice: custom validator requires a name and a function")
	}
	if _, ok := r.customs[cv.Name]; ok {
		panic(fmt.Sprintf("sluice: duplicate custom validator %q", cv.Name))
	}
	r.customs[cv.Name] = cv
}

// Chain returns an empty chain bound to this registry, enabling Custom.
func (r *Registry) Chain() *Chain { return &Chain{reg: r} }

// Definition looks up an object definition by type name.
func (r *Registry) Definition(name string) (*ObjectDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// DefinitionBySingular finds the definition whose singular tag is tag.
func (r *Registry) DefinitionBySingular(tag string) (*ObjectDefinition, bool) {
	for _, name := range r.order {
		if r.defs[name].Singular == tag {
			return r.defs[name], true
		}
	}
	return nil, false
}

// DefinitionByPlural finds the definition whose plural tag is tag.
func (r *Registry) DefinitionByPlural(tag string) (*ObjectDefinition, bool) {
	for _, name := range r.order {
		if d := r.defs[name]; d.Plural != "" && d.Plural == tag {
			return d, true
		}
	}
	return nil, false
}

// Names returns the registered definition names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// fieldValue resolves a source attribute name on a domain object. Struct
// access goes through a per-type descriptor resolved once and cached.
func (r *Registry) fieldValue(obj any, name string) (any, bool) {
	if g, ok := obj.(FieldGetter); ok {
		return g.Field(name)
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		desc := r.descriptor(rv.Type())
		idx, ok := desc[name]
		if !ok {
			return nil, false
		}
		return rv.FieldByIndex(idx).Interface(), true
	}
	return nil, false
}

// descriptor maps source attribute names to struct field indices. A field's
// source name is its `sluice` tag when present, otherwise the snake_case
// form of its Go name.
func (r *Registry) descriptor(t reflect.Type) map[string][]int {
	if d, ok := r.descs.Load(t); ok {
		return d.(map[string][]int)
	}
	desc := map[string][]int{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("sluice")
		if name == "-" {
			continue
		}
		if name == "" {
			name = snakeCase(f.Name)
		}
		desc[name] = f.Index
	}
	r.descs.Store(t, desc)
	return desc
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, ch := range s {
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch - 'A' + 'a')
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
