package sluice

import (
	"context"
	"reflect"
)

// node is either a *Chain or a nested *Schema.
type node interface{ schemaNode() }

func (*Chain) schemaNode()  {}
func (*Schema) schemaNode() {}

// FinalValidator runs over the whole cleaned object after every field check
// succeeded; its failure overrides success. It may replace the cleaned
// object by returning a non-nil map.
type FinalValidator func(ctx context.Context, cleaned map[string]any, baton any) (map[string]any, error)

// Schema maps field names to chains or nested sub-schemas, preserving
// insertion order. Build one at startup (by hand or via CompileSchemas) and
// treat it as read-only while serving requests.
type Schema struct {
	keys  []string
	nodes map[string]node
	final FinalValidator
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{nodes: map[string]node{}}
}

// AddChain declares a field validated by c. Re-declaring a field is a
// configuration error and panics.
func (s *Schema) AddChain(name string, c *Chain) *Schema {
	s.add(name, c)
	return s
}

// AddSchema declares a field holding a nested object validated by sub.
func (s *Schema) AddSchema(name string, sub *Schema) *Schema {
	s.add(name, sub)
	return s
}

func (s *Schema) add(name string, n node) {
	if _, ok := s.nodes[name]; ok {
		panic("sluice: duplicate schema field " + name)
	}
	s.keys = append(s.keys, name)
	s.nodes[name] = n
}

// Final registers the whole-object validator.
func (s *Schema) Final(fn FinalValidator) *Schema {
	s.final = fn
	return s
}

// Chain returns the chain declared for a field, if any.
func (s *Schema) Chain(name string) (*Chain, bool) {
	c, ok := s.nodes[name].(*Chain)
	return c, ok
}

// Keys returns the declared field names in declaration order.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// CheckOptions tunes a single check call.
type CheckOptions struct {
	// Strict rejects input keys not declared in the schema before any
	// per-field check runs.
	Strict bool
	// Baton is threaded unchanged through every chain step.
	Baton any
}

// Check validates obj against the schema and returns the cleaned object.
// Fields are checked sequentially in declaration order and the first failure
// aborts the whole check; on error no cleaned object is returned. Validation
// failures are *ValidationError values; only context cancellation surfaces
// as a different error type.
func (s *Schema) Check(ctx context.Context, obj map[string]any, opts ...CheckOptions) (map[string]any, error) {
	return s.check(ctx, obj, pickOpt(opts), nil, false, true)
}

// CheckPartial is Check for PATCH-style input: missing fields are tolerated
// unless their chain is marked UpdateRequired.
func (s *Schema) CheckPartial(ctx context.Context, obj map[string]any, opts ...CheckOptions) (map[string]any, error) {
	return s.check(ctx, obj, pickOpt(opts), nil, true, true)
}

// CheckUpdate validates a partial update against an existing object. Fields
// present in the partial input whose chain is marked Immutable must carry a
// value equal (shallow, primitive-only) to the existing one, compared under
// the chain's rename target. On success the result is the existing object
// overlaid with the cleaned partial values; existing is never mutated. The
// final validator, if any, runs over the merged result.
func (s *Schema) CheckUpdate(ctx context.Context, existing, partial map[string]any, opts ...CheckOptions) (map[string]any, error) {
	opt := pickOpt(opts)
	cleaned, err := s.check(ctx, partial, opt, nil, true, false)
	if err != nil {
		return nil, err
	}
	for _, name := range s.keys {
		c, ok := s.nodes[name].(*Chain)
		if !ok || !c.immutable {
			continue
		}
		target := c.target(name)
		nv, present := cleaned[target]
		if !present {
			continue
		}
		if !shallowEqual(existing[target], nv) {
			return nil, &ValidationError{Key: name, Message: MsgImmutableField}
		}
	}
	merged := make(map[string]any, len(existing)+len(cleaned))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range cleaned {
		merged[k] = v
	}
	if s.final != nil {
		out, err := s.final(ctx, merged, opt.Baton)
		if err != nil {
			return nil, asRecord(err)
		}
		if out != nil {
			merged = out
		}
	}
	return merged, nil
}

func pickOpt(opts []CheckOptions) CheckOptions {
	if len(opts) > 0 {
		return opts[len(opts)-1]
	}
	return CheckOptions{}
}

func (s *Schema) check(ctx context.Context, obj map[string]any, opt CheckOptions, parents []string, partial, runFinal bool) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opt.Strict {
		extra := ""
		for k := range obj {
			if _, ok := s.nodes[k]; !ok && (extra == "" || k < extra) {
				extra = k
			}
		}
		if extra != "" {
			return nil, &ValidationError{Key: extra, ParentKeys: parents, Message: MsgKeyNotAllowed}
		}
	}
	cleaned := make(map[string]any, len(s.keys))
	for _, name := range s.keys {
		switch n := s.nodes[name].(type) {
		case *Chain:
			v, present := obj[name]
			switch {
			case present && v == nil && n.optional:
				cleaned[n.target(name)] = nil
			case present:
				out, err := n.Run(ctx, v, opt.Baton)
				if err != nil {
					if ctx.Err() != nil {
						return nil, err
					}
					return nil, &ValidationError{Key: name, ParentKeys: parents, Message: err.Error()}
				}
				cleaned[n.target(name)] = out
			case partial && !n.updateRequired, n.optional:
				// absent and tolerated: no key in the cleaned output
			default:
				return nil, &ValidationError{Key: name, ParentKeys: parents, Message: MsgMissingKey}
			}
		case *Schema:
			v, present := obj[name]
			if !present {
				if partial {
					continue
				}
				return nil, &ValidationError{Key: name, ParentKeys: parents, Message: MsgMissingKey}
			}
			sub, ok := v.(map[string]any)
			if !ok {
				return nil, &ValidationError{Key: name, ParentKeys: parents, Message: MsgNotObject}
			}
			out, err := n.check(ctx, sub, opt, append(parents, name), partial, runFinal)
			if err != nil {
				return nil, err
			}
			cleaned[name] = out
		}
	}
	if runFinal && s.final != nil {
		out, err := s.final(ctx, cleaned, opt.Baton)
		if err != nil {
			return nil, asRecord(err)
		}
		if out != nil {
			cleaned = out
		}
	}
	return cleaned, nil
}

// asRecord keeps structured records intact and wraps anything else a final
// validator returned.
func asRecord(err error) error {
	if _, ok := AsValidationError(err); ok {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return &ValidationError{Message: err.Error()}
}

// shallowEqual compares primitive values; uncomparable kinds (maps, slices)
// never count as equal, matching the documented primitive-only contract.
func shallowEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if !ta.Comparable() || !tb.Comparable() {
		return false
	}
	if a == b {
		return true
	}
	// tolerate numeric type drift between stored and validated values
	ia, aok := asInt64(a)
	ib, bok := asInt64(b)
	if aok && bok {
		return ia == ib
	}
	return false
}
