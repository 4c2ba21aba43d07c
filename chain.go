package sluice

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// StepFunc is a single validation/transformation step. It receives the value
// produced by the previous step and the caller-supplied baton, and returns
// the (possibly converted) value, or an error that aborts the chain.
type StepFunc func(ctx context.Context, v any, baton any) (any, error)

type step struct {
	name string
	help string
	fn   StepFunc
}

// Chain is an ordered, reusable sequence of validation/transformation steps
// for one value. Append methods return the chain itself for fluent
// composition; every append pushes a step at the end except Optional,
// Immutable and UpdateRequired, which set a chain-level flag and insert a
// no-op marker step at position 0 so positional introspection sees it first.
//
// A chain is owned by exactly one schema field and must not be mutated once
// the schema serves requests.
type Chain struct {
	steps          []step
	optional       bool
	immutable      bool
	updateRequired bool
	renameTo       string
	hasNumItems    bool
	minItems       int
	maxItems       int // -1 means unbounded
	reg            *Registry
}

// NewChain returns an empty pass-through chain. Custom requires a chain
// created through Registry.Chain so named validators can be resolved.
func NewChain() *Chain { return &Chain{} }

func (c *Chain) append(name, help string, fn StepFunc) *Chain {
	c.steps = append(c.steps, step{name: name, help: help, fn: fn})
	return c
}

func (c *Chain) prependMarker(name, help string) {
	c.steps = append([]step{{name: name, help: help, fn: func(ctx context.Context, v, baton any) (any, error) {
		return v, nil
	}}}, c.steps...)
}

// Optional tolerates a missing key, and passes an explicit null through
// unchanged.
func (c *Chain) Optional() *Chain {
	c.optional = true
	c.prependMarker("optional", "Optional value.")
	return c
}

// Immutable forbids changing the value across a partial update.
func (c *Chain) Immutable() *Chain {
	c.immutable = true
	c.prependMarker("immutable", "Immutable value.")
	return c
}

// UpdateRequired requires the value to be present even in partial checks.
func (c *Chain) UpdateRequired() *Chain {
	c.updateRequired = true
	c.prependMarker("updateRequired", "Required on update.")
	return c
}

// Rename maps the validated value onto target instead of the schema field
// name in the cleaned output.
func (c *Chain) Rename(target string) *Chain {
	c.renameTo = target
	return c
}

// NumItems bounds the size of a collection validated by IsArray or IsHash.
// With max omitted the bound is "at least min". Setting it twice is a
// configuration error and panics.
func (c *Chain) NumItems(min int, max ...int) *Chain {
	if c.hasNumItems {
		panic("sluice: NumItems may only be set once per chain")
	}
	c.hasNumItems = true
	c.minItems = min
	c.maxItems = -1
	if len(max) > 0 {
		c.maxItems = max[0]
	}
	return c
}

// Custom appends a validator registered on the chain's registry under name.
// Unknown names are a configuration error and panic.
func (c *Chain) Custom(name string) *Chain {
	if c.reg == nil {
		panic("sluice: Custom requires a chain created via Registry.Chain")
	}
	cv, ok := c.reg.customs[name]
	if !ok {
		panic(fmt.Sprintf("sluice: unknown custom validator %q", name))
	}
	return c.append(name, cv.Help, cv.Fn)
}

// HelpText overrides the help string of the most recently appended step.
func (c *Chain) HelpText(s string) *Chain {
	if n := len(c.steps); n > 0 {
		c.steps[n-1].help = s
	}
	return c
}

// HasValidator reports whether a step with the given name is present.
func (c *Chain) HasValidator(name string) bool { return c.ValidatorPos(name) >= 0 }

// ValidatorPos returns the position of the named step, or -1.
func (c *Chain) ValidatorPos(name string) int {
	for i, st := range c.steps {
		if st.name == name {
			return i
		}
	}
	return -1
}

// Help returns the human-readable help text of every step, in order.
func (c *Chain) Help() []string {
	out := make([]string, len(c.steps))
	for i, st := range c.steps {
		out[i] = st.help
	}
	return out
}

// Run executes the steps left to right, threading each step's output into
// the next. The first failing step aborts the chain. The baton is handed to
// every step unchanged. Context cancellation is checked between steps.
func (c *Chain) Run(ctx context.Context, v any, baton any) (any, error) {
	for _, st := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nv, err := st.fn(ctx, v, baton)
		if err != nil {
			return nil, err
		}
		v = nv
	}
	return v, nil
}

func (c *Chain) checkNumItems(n int) error {
	if !c.hasNumItems {
		return nil
	}
	if c.maxItems < 0 {
		if n < c.minItems {
			return fmt.Errorf("Number of items out of range (min %d)", c.minItems)
		}
		return nil
	}
	if n < c.minItems || n > c.maxItems {
		return fmt.Errorf("Number of items out of range (%d..%d)", c.minItems, c.maxItems)
	}
	return nil
}

// target returns the output key for a field validated by this chain.
func (c *Chain) target(field string) string {
	if c.renameTo != "" {
		return c.renameTo
	}
	return field
}

// IsArray applies inner to every element, preserving order in the result.
// The chain's NumItems bound (if set) is enforced on the container before
// descending. The first failing element aborts with its index in the message.
func (c *Chain) IsArray(inner *Chain) *Chain {
	return c.append("isArray", "Array of values.", func(ctx context.Context, v, baton any) (any, error) {
		items, ok := asSlice(v)
		if !ok {
			return nil, errors.New("Not an array")
		}
		if err := c.checkNumItems(len(items)); err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, it := range items {
			nv, err := inner.Run(ctx, it, baton)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out[i] = nv
		}
		return out, nil
	})
}

// IsHash applies keyChain to every key and valueChain to every value. Keys
// are visited in sorted order so the surfaced error is deterministic. The
// chain's NumItems bound (if set) is enforced on the map before descending.
func (c *Chain) IsHash(keyChain, valueChain *Chain) *Chain {
	return c.append("isHash", "Hash of key/value pairs.", func(ctx context.Context, v, baton any) (any, error) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errors.New(MsgNotObject)
		}
		if err := c.checkNumItems(len(m)); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(m))
		for _, k := range keys {
			nk, err := keyChain.Run(ctx, k, baton)
			if err != nil {
				return nil, fmt.Errorf("key '%s': %v", k, err)
			}
			nv, err := valueChain.Run(ctx, m[k], baton)
			if err != nil {
				return nil, fmt.Errorf("key '%s': %v", k, err)
			}
			out[fmt.Sprint(nk)] = nv
		}
		return out, nil
	})
}

// asSlice converts any slice or array value into []any.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
