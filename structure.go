package sluice

// Struct is the intermediate plain-data form produced by the object graph
// builder: an ordered string-keyed map annotated out of band with the
// originating serializer type tag. The tag is not an enumerable key; the
// codec uses it to find the matching object definition during rendering.
type Struct struct {
	tag  string
	keys []string
	m    map[string]any
}

// NewStruct returns an empty structure carrying the given type tag. An empty
// tag is allowed for generic containers (pagination wrappers).
func NewStruct(tag string) *Struct {
	return &Struct{tag: tag, m: map[string]any{}}
}

// Tag returns the serializer type tag.
func (s *Struct) Tag() string { return s.tag }

// Set stores a value, appending the key on first use.
func (s *Struct) Set(key string, v any) {
	if _, ok := s.m[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.m[key] = v
}

// Get returns the value stored under key.
func (s *Struct) Get(key string) (any, bool) {
	v, ok := s.m[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *Struct) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s *Struct) Len() int { return len(s.keys) }
