package sluice

// DescribeSchema returns the help text of every step of every chain in the
// schema, keyed by field name. Nested schema fields use dotted keys
// ("parent.child").
func DescribeSchema(s *Schema) map[string][]string {
	out := map[string][]string{}
	describeInto(out, s, "")
	return out
}

func describeInto(out map[string][]string, s *Schema, prefix string) {
	for _, name := range s.keys {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		switch n := s.nodes[name].(type) {
		case *Chain:
			out[key] = n.Help()
		case *Schema:
			describeInto(out, n, key)
		}
	}
}
