package sluice

// CoerceTo selects how raw text decoded from the wire is converted when the
// schema cannot infer a type from the value shape (XML element text).
type CoerceTo int

const (
	CoerceNone    CoerceTo = iota
	CoerceArray            // wrap a lone scalar in a single-element sequence
	CoerceBoolean          // apply the ToBoolean coercion rules
)

// FieldDefinition declares one field of a named type, used for both
// validation and serialization.
type FieldDefinition struct {
	Name string
	// Src is the source attribute name on the domain object when it differs
	// from Name (the builder reads Src, the validator writes back to Src).
	Src  string
	Desc string
	// Attribute places the field as an XML attribute instead of a child
	// element.
	Attribute bool
	// Singular/Plural name the per-item and wrapper tags of a repeated
	// field; both must be set together.
	Singular string
	Plural   string
	// FilterFrom lists audiences the field is hidden from during building.
	FilterFrom []string
	// Enumerated maps wire keys to stored integers; validation translates
	// key to integer, serialization translates back.
	Enumerated map[string]int
	CoerceTo   CoerceTo
	Validator  *Chain
	// Hidden removes the field from the public validation surface entirely.
	Hidden bool
}

// ObjectDefinition declares a named serializer type: its fields in order and
// its XML tag pair.
type ObjectDefinition struct {
	Name     string
	Singular string
	Plural   string
	Fields   []FieldDefinition
}

func (d *ObjectDefinition) field(name string) *FieldDefinition {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

func (d *ObjectDefinition) fieldByPlural(tag string) *FieldDefinition {
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Plural != "" && f.Plural == tag && f.Plural != f.Singular {
			return f
		}
	}
	return nil
}

// CompileSchemas translates every registered object definition into a
// validation schema, keyed by type name. Pure data transformation: it never
// fails on well-formed definitions.
func CompileSchemas(reg *Registry) map[string]*Schema {
	out := make(map[string]*Schema, len(reg.order))
	for _, name := range reg.order {
		out[name] = CompileDefinition(reg, reg.defs[name])
	}
	return out
}

// CompileDefinition builds the schema for a single definition. Fields with
// no explicit chain get a pass-through chain; an enumerated field without an
// enum step gets one appended; Src becomes the chain's rename target; hidden
// fields are skipped.
func CompileDefinition(reg *Registry, def *ObjectDefinition) *Schema {
	s := NewSchema()
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Hidden {
			continue
		}
		c := f.Validator
		if c == nil {
			c = reg.Chain()
		}
		if f.Enumerated != nil && !c.HasValidator("enumerated") {
			c.Enumerated(f.Enumerated)
		}
		if f.Src != "" && c.renameTo == "" {
			c.Rename(f.Src)
		}
		s.AddChain(f.Name, c)
	}
	return s
}
