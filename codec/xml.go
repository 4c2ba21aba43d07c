package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	sluice "github.com/okonak/sluice"
)

// Wrapper tags for payloads that have no single object definition.
const (
	groupTag     = "group"     // top-level arrays of mixed or untagged items
	containerTag = "container" // top-level plain maps and pagination wrappers
	valueTag     = "value"     // bare scalar items
)

// ToXML renders a built structure as XML text. A tagged structure renders as
// an element named by its definition's singular tag, attribute-flagged
// fields as attributes, repeated fields as <plural><singular>...</singular>
// </plural>, and enumerated fields as their string key. Null fields render
// as empty elements unless Options.StripNulls is set.
func (c *Codec) ToXML(v any, opts ...Options) (string, error) {
	opt := pickOpt(opts)
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := c.encodeTop(enc, v, opt); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Codec) encodeTop(enc *xml.Encoder, v any, opt Options) error {
	switch t := v.(type) {
	case *sluice.Struct:
		if t.Tag() == "" {
			return c.encodeGenericMap(enc, containerTag, structAsMap(t), t.Keys(), opt)
		}
		return c.encodeStruct(enc, t, opt)
	case []any:
		return c.encodeList(enc, c.topListTag(t), t, "", opt)
	case map[string]any:
		return c.encodeGenericMap(enc, containerTag, t, sortedKeys(t), opt)
	default:
		return c.encodeScalarElement(enc, valueTag, v)
	}
}

// topListTag picks the shared type's plural tag when every item carries the
// same definition, otherwise the generic wrapper tag.
func (c *Codec) topListTag(items []any) string {
	tag := ""
	for _, it := range items {
		s, ok := it.(*sluice.Struct)
		if !ok {
			return groupTag
		}
		if tag == "" {
			tag = s.Tag()
		} else if tag != s.Tag() {
			return groupTag
		}
	}
	if tag == "" {
		return groupTag
	}
	if def, ok := c.reg.Definition(tag); ok && def.Plural != "" {
		return def.Plural
	}
	return groupTag
}

func (c *Codec) encodeStruct(enc *xml.Encoder, s *sluice.Struct, opt Options) error {
	def, ok := c.reg.Definition(s.Tag())
	if !ok {
		return fmt.Errorf("no definition for type %q", s.Tag())
	}
	start := xml.StartElement{Name: xml.Name{Local: def.Singular}}
	for _, k := range s.Keys() {
		f := defField(def, k)
		if f == nil || !f.Attribute {
			continue
		}
		v, _ := s.Get(k)
		if v == nil {
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: f.Name},
			Value: scalarText(fieldEnumKey(f, v)),
		})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, k := range s.Keys() {
		f := defField(def, k)
		if f != nil && f.Attribute {
			continue
		}
		v, _ := s.Get(k)
		if f != nil {
			v = fieldEnumKey(f, v)
		}
		if err := c.encodeField(enc, def, f, k, v, opt); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func (c *Codec) encodeField(enc *xml.Encoder, def *sluice.ObjectDefinition, f *sluice.FieldDefinition, name string, v any, opt Options) error {
	switch t := v.(type) {
	case nil:
		if opt.StripNulls {
			return nil
		}
		return emptyElement(enc, name)
	case []any:
		if f == nil || f.Plural == "" {
			return fmt.Errorf("field %s.%s is repeated but declares no singular/plural tags", def.Name, name)
		}
		return c.encodeList(enc, f.Plural, t, f.Singular, opt)
	case *sluice.Struct:
		start := xml.StartElement{Name: xml.Name{Local: name}}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := c.encodeStruct(enc, t, opt); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	case map[string]any:
		return c.encodeGenericMap(enc, name, t, sortedKeys(t), opt)
	default:
		return c.encodeScalarElement(enc, name, v)
	}
}

func (c *Codec) encodeList(enc *xml.Encoder, wrapTag string, items []any, itemTag string, opt Options) error {
	start := xml.StartElement{Name: xml.Name{Local: wrapTag}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, it := range items {
		switch t := it.(type) {
		case *sluice.Struct:
			if err := c.encodeStruct(enc, t, opt); err != nil {
				return err
			}
		default:
			tag := itemTag
			if tag == "" {
				tag = valueTag
			}
			if err := c.encodeScalarElement(enc, tag, it); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}

func (c *Codec) encodeGenericMap(enc *xml.Encoder, tag string, m map[string]any, keys []string, opt Options) error {
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, k := range keys {
		v := m[k]
		switch t := v.(type) {
		case nil:
			if opt.StripNulls {
				continue
			}
			if err := emptyElement(enc, k); err != nil {
				return err
			}
		case *sluice.Struct:
			sub := xml.StartElement{Name: xml.Name{Local: k}}
			if err := enc.EncodeToken(sub); err != nil {
				return err
			}
			if err := c.encodeStruct(enc, t, opt); err != nil {
				return err
			}
			if err := enc.EncodeToken(sub.End()); err != nil {
				return err
			}
		case []any:
			if err := c.encodeList(enc, k, t, "", opt); err != nil {
				return err
			}
		case map[string]any:
			if err := c.encodeGenericMap(enc, k, t, sortedKeys(t), opt); err != nil {
				return err
			}
		default:
			if err := c.encodeScalarElement(enc, k, v); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}

func (c *Codec) encodeScalarElement(enc *xml.Encoder, tag string, v any) error {
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(scalarText(v))); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func emptyElement(enc *xml.Encoder, tag string) error {
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// fieldEnumKey renders a stored enum integer back to its wire key.
func fieldEnumKey(f *sluice.FieldDefinition, v any) any {
	if f.Enumerated == nil || v == nil {
		return v
	}
	if s, ok := v.(string); ok {
		if _, hit := f.Enumerated[s]; hit {
			return v
		}
	}
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int64:
		n = t
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return v
		}
		n = i
	default:
		return v
	}
	keys := make([]string, 0, len(f.Enumerated))
	for k := range f.Enumerated {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if int64(f.Enumerated[k]) == n {
			return k
		}
	}
	return v
}

func defField(def *sluice.ObjectDefinition, name string) *sluice.FieldDefinition {
	for i := range def.Fields {
		if def.Fields[i].Name == name {
			return &def.Fields[i]
		}
	}
	return nil
}

func defFieldByPlural(def *sluice.ObjectDefinition, tag string) *sluice.FieldDefinition {
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Plural != "" && f.Plural == tag && f.Plural != f.Singular {
			return f
		}
	}
	return nil
}

func structAsMap(s *sluice.Struct) map[string]any {
	m := make(map[string]any, s.Len())
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		m[k] = v
	}
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---- parsing ----

// FromXML parses XML text back into a structure: attributes become fields,
// child elements are interpreted against the object definitions (scalar,
// nested tagged sub-object, list, or generic nested map), whitespace-only
// text is treated as absent, and an element with no text and no children
// decodes to null unless the field declares a coercion. Unknown tags with no
// matching field definition are fatal.
func (c *Codec) FromXML(text []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(text))
	root, err := nextStart(dec)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errors.New("malformed XML: no root element")
	}
	return c.parseTop(dec, *root)
}

func (c *Codec) parseTop(dec *xml.Decoder, el xml.StartElement) (any, error) {
	tag := el.Name.Local
	if def, ok := c.reg.DefinitionBySingular(tag); ok {
		return c.parseStruct(dec, el, def)
	}
	if _, ok := c.reg.DefinitionByPlural(tag); ok {
		return c.parseItems(dec, el)
	}
	switch tag {
	case groupTag:
		return c.parseItems(dec, el)
	case containerTag:
		return c.parseGenericMap(dec, el)
	case valueTag:
		text, children, err := c.parseContents(dec, el)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			return nil, fmt.Errorf("unexpected children in %q", tag)
		}
		if text == "" {
			return nil, nil
		}
		return text, nil
	}
	return nil, fmt.Errorf("unknown element tag %q", tag)
}

func (c *Codec) parseStruct(dec *xml.Decoder, start xml.StartElement, def *sluice.ObjectDefinition) (*sluice.Struct, error) {
	s := sluice.NewStruct(def.Name)
	for _, attr := range start.Attr {
		f := defField(def, attr.Name.Local)
		if f == nil || !f.Attribute {
			return nil, fmt.Errorf("unknown attribute %q on %q", attr.Name.Local, start.Name.Local)
		}
		s.Set(f.Name, coerceScalar(f, attr.Value))
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErr(err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return s, nil
		case xml.CharData:
			// whitespace-only text between child elements is absent
			if strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("unexpected text in %q", start.Name.Local)
			}
		case xml.StartElement:
			tag := t.Name.Local
			if f := defFieldByPlural(def, tag); f != nil {
				items, err := c.parseItems(dec, t)
				if err != nil {
					return nil, err
				}
				s.Set(f.Name, items)
				continue
			}
			f := defField(def, tag)
			if f == nil {
				return nil, fmt.Errorf("unknown tag %q in %q", tag, start.Name.Local)
			}
			v, err := c.parseField(dec, t, f)
			if err != nil {
				return nil, err
			}
			s.Set(f.Name, v)
		}
	}
}

// parseField decodes the contents of one field element.
func (c *Codec) parseField(dec *xml.Decoder, start xml.StartElement, f *sluice.FieldDefinition) (any, error) {
	text, children, err := c.parseContents(dec, start)
	if err != nil {
		return nil, err
	}
	switch {
	case len(children) == 1 && children[0].st != nil:
		// nested tagged sub-object
		return children[0].st, nil
	case len(children) > 0:
		m := make(map[string]any, len(children))
		for _, ch := range children {
			if ch.st != nil {
				m[ch.tag] = ch.st
			} else {
				m[ch.tag] = ch.val
			}
		}
		return m, nil
	case text != "":
		v := coerceScalar(f, text)
		return v, nil
	default:
		switch f.CoerceTo {
		case sluice.CoerceArray:
			return []any{}, nil
		case sluice.CoerceBoolean:
			return false, nil
		}
		return nil, nil
	}
}

type childValue struct {
	tag string
	st  *sluice.Struct
	val any
}

// parseContents collects the text and parsed children of an element.
func (c *Codec) parseContents(dec *xml.Decoder, start xml.StartElement) (string, []childValue, error) {
	var text strings.Builder
	var children []childValue
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, parseErr(err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return strings.TrimSpace(text.String()), children, nil
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			if def, ok := c.reg.DefinitionBySingular(t.Name.Local); ok {
				st, err := c.parseStruct(dec, t, def)
				if err != nil {
					return "", nil, err
				}
				children = append(children, childValue{tag: t.Name.Local, st: st})
				continue
			}
			v, err := c.parseGeneric(dec, t)
			if err != nil {
				return "", nil, err
			}
			children = append(children, childValue{tag: t.Name.Local, val: v})
		}
	}
}

// parseItems decodes a list wrapper: each grandchild is either a tagged
// struct or a scalar item.
func (c *Codec) parseItems(dec *xml.Decoder, start xml.StartElement) ([]any, error) {
	items := []any{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErr(err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return items, nil
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("unexpected text in %q", start.Name.Local)
			}
		case xml.StartElement:
			if def, ok := c.reg.DefinitionBySingular(t.Name.Local); ok {
				st, err := c.parseStruct(dec, t, def)
				if err != nil {
					return nil, err
				}
				items = append(items, st)
				continue
			}
			v, err := c.parseGeneric(dec, t)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	}
}

// parseGenericMap decodes a container element into a plain map.
func (c *Codec) parseGenericMap(dec *xml.Decoder, start xml.StartElement) (map[string]any, error) {
	out := map[string]any{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErr(err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return out, nil
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("unexpected text in %q", start.Name.Local)
			}
		case xml.StartElement:
			// the pagination wrapper's values child is always a sequence,
			// even with a single item
			if t.Name.Local == "values" {
				items, err := c.parseItems(dec, t)
				if err != nil {
					return nil, err
				}
				out[t.Name.Local] = items
				continue
			}
			v, err := c.parseGeneric(dec, t)
			if err != nil {
				return nil, err
			}
			out[t.Name.Local] = v
		}
	}
}

// parseGeneric decodes an element with no field definition context: a known
// type tag becomes a struct, children become a map, text a string, an empty
// element null.
func (c *Codec) parseGeneric(dec *xml.Decoder, el xml.StartElement) (any, error) {
	if def, ok := c.reg.DefinitionBySingular(el.Name.Local); ok {
		return c.parseStruct(dec, el, def)
	}
	text, children, err := c.parseContents(dec, el)
	if err != nil {
		return nil, err
	}
	switch {
	case len(children) == 1 && children[0].st != nil:
		return children[0].st, nil
	case len(children) > 1 && sameTag(children):
		// repeated tags form a sequence, not a map
		items := make([]any, len(children))
		for i, ch := range children {
			if ch.st != nil {
				items[i] = ch.st
			} else {
				items[i] = ch.val
			}
		}
		return items, nil
	case len(children) > 0:
		m := make(map[string]any, len(children))
		for _, ch := range children {
			if ch.st != nil {
				m[ch.tag] = ch.st
			} else {
				m[ch.tag] = ch.val
			}
		}
		return m, nil
	case text != "":
		return text, nil
	default:
		return nil, nil
	}
}

func sameTag(children []childValue) bool {
	for _, ch := range children[1:] {
		if ch.tag != children[0].tag {
			return false
		}
	}
	return true
}

func coerceScalar(f *sluice.FieldDefinition, text string) any {
	switch f.CoerceTo {
	case sluice.CoerceArray:
		return []any{text}
	case sluice.CoerceBoolean:
		return sluice.CoerceBool(text)
	}
	return text
}

func nextStart(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, parseErr(err)
		}
		if st, ok := tok.(xml.StartElement); ok {
			return &st, nil
		}
	}
}

func parseErr(err error) error {
	if err == io.EOF {
		return errors.New("malformed XML: unexpected end of input")
	}
	return fmt.Errorf("malformed XML: %w", err)
}
