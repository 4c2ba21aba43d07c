package sluice

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// Deferred is a field whose value is produced on demand. The builder
// resolves it before descending. The synchronous variant never invokes it;
// such fields are simply omitted from the result (a documented capability
// gap, not an error).
type Deferred func(ctx context.Context) (any, error)

// Tagged names the object definition describing a domain object.
type Tagged interface {
	SerializerType() string
}

// FieldGetter lets a domain object resolve source attribute names itself
// instead of going through the struct descriptor.
type FieldGetter interface {
	Field(name string) (any, bool)
}

// BuildOptions tunes a single build call.
type BuildOptions struct {
	// Audience omits every field whose FilterFrom set names it.
	Audience string
}

// BuildStructure recursively resolves a domain object into a plain
// serializable structure following the registered object definitions.
// Deferred fields are resolved with ctx; cancellation aborts the walk. A
// tagged object with no registered definition is an error.
func BuildStructure(ctx context.Context, reg *Registry, obj any, opts ...BuildOptions) (any, error) {
	opt := BuildOptions{}
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	v, _, err := build(ctx, reg, obj, opt, false)
	return v, err
}

// BuildStructureSync is BuildStructure without deferred-field resolution:
// structurally identical output, but any Deferred field is omitted.
func BuildStructureSync(reg *Registry, obj any, opts ...BuildOptions) (any, error) {
	opt := BuildOptions{}
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	v, _, err := build(context.Background(), reg, obj, opt, true)
	return v, err
}

// build dispatches once per node over the shapes the builder understands:
// deferred value, sequence, tagged object, plain map, scalar. The second
// return value reports "omit this field" (deferred in sync mode).
func build(ctx context.Context, reg *Registry, v any, opt BuildOptions, sync bool) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}

	if d, ok := asDeferred(v); ok {
		if sync {
			return nil, true, nil
		}
		rv, err := d(ctx)
		if err != nil {
			return nil, false, err
		}
		return build(ctx, reg, rv, opt, sync)
	}

	if t, ok := v.(Tagged); ok {
		return buildTagged(ctx, reg, t, opt, sync)
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		items, _ := asSlice(v)
		out := make([]any, 0, len(items))
		for _, it := range items {
			bv, skip, err := build(ctx, reg, it, opt, sync)
			if err != nil {
				return nil, false, err
			}
			if skip {
				continue
			}
			out = append(out, bv)
		}
		return out, false, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, false, nil
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			bv, skip, err := build(ctx, reg, rv.MapIndex(reflect.ValueOf(k)).Interface(), opt, sync)
			if err != nil {
				return nil, false, err
			}
			if skip {
				continue
			}
			out[k] = bv
		}
		return out, false, nil
	}

	// scalars (and untagged structs) terminate recursion unchanged
	return v, false, nil
}

func buildTagged(ctx context.Context, reg *Registry, obj Tagged, opt BuildOptions, sync bool) (any, bool, error) {
	tag := obj.SerializerType()
	def, ok := reg.Definition(tag)
	if !ok {
		return nil, false, fmt.Errorf("no definition for type %q", tag)
	}
	out := NewStruct(tag)
	for i := range def.Fields {
		f := &def.Fields[i]
		if opt.Audience != "" && contains(f.FilterFrom, opt.Audience) {
			continue
		}
		src := f.Src
		if src == "" {
			src = f.Name
		}
		raw, ok := reg.fieldValue(obj, src)
		if !ok {
			continue
		}
		bv, skip, err := build(ctx, reg, raw, opt, sync)
		if err != nil {
			return nil, false, err
		}
		if skip {
			continue
		}
		if f.Enumerated != nil {
			bv = enumKey(f.Enumerated, bv)
		}
		out.Set(f.Name, bv)
	}
	return out, false, nil
}

// enumKey renders a stored enum integer back to its wire key. Values that
// are already valid keys, or that match no mapping, pass through unchanged.
func enumKey(m map[string]int, v any) any {
	if s, ok := v.(string); ok {
		if _, hit := m[s]; hit {
			return s
		}
	}
	i, ok := asInt64(v)
	if !ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if int64(m[k]) == i {
			return k
		}
	}
	return v
}

func asDeferred(v any) (Deferred, bool) {
	switch d := v.(type) {
	case Deferred:
		return d, true
	case func(ctx context.Context) (any, error):
		return d, true
	}
	return nil, false
}

func contains(set []string, s string) bool {
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}
