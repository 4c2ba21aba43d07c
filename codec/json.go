package codec

import (
	"bytes"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"

	sluice "github.com/okonak/sluice"
)

// TypeTagKey is the JSON key carrying the serializer type tag when tag
// stripping is disabled. FromJSON lifts it back out of band.
const TypeTagKey = "_type"

// ToJSON renders a built structure as JSON text.
func (c *Codec) ToJSON(v any, opts ...Options) (string, error) {
	opt := pickOpt(opts)
	out, err := json.Marshal(plainify(v, opt))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FromJSON parses JSON text into a structure. Parse errors are returned,
// never panicked; no partial structure is produced. Objects carrying the
// type-tag key are lifted into tagged structures.
func (c *Codec) FromJSON(text []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return liftTags(v), nil
}

// plainify converts structures into plain maps for encoding, applying the
// null and type-tag options.
func plainify(v any, opt Options) any {
	switch t := v.(type) {
	case *sluice.Struct:
		m := make(map[string]any, t.Len()+1)
		if !opt.StripTypeTag && t.Tag() != "" {
			m[TypeTagKey] = t.Tag()
		}
		for _, k := range t.Keys() {
			fv, _ := t.Get(k)
			pv := plainify(fv, opt)
			if pv == nil && opt.StripNulls {
				continue
			}
			m[k] = pv
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, fv := range t {
			pv := plainify(fv, opt)
			if pv == nil && opt.StripNulls {
				continue
			}
			m[k] = pv
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainify(e, opt)
		}
		return out
	default:
		return v
	}
}

// liftTags rebuilds the out-of-band tag annotation from decoded JSON.
func liftTags(v any) any {
	switch t := v.(type) {
	case map[string]any:
		tag, _ := t[TypeTagKey].(string)
		if tag == "" {
			m := make(map[string]any, len(t))
			for k, fv := range t {
				m[k] = liftTags(fv)
			}
			return m
		}
		s := sluice.NewStruct(tag)
		keys := make([]string, 0, len(t))
		for k := range t {
			if k != TypeTagKey {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.Set(k, liftTags(t[k]))
		}
		return s
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = liftTags(e)
		}
		return out
	default:
		return v
	}
}
