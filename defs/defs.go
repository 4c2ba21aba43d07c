// Package defs loads declarative object definitions from YAML, JSON or
// JSONC documents and registers them on a sluice registry. Only the
// string-expressible subset of chain validators can appear in files;
// anything richer (custom step functions, container validators with nested
// chains) is declared in code.
package defs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	sluice "github.com/okonak/sluice"
)

// File is the root of a definition document.
type File struct {
	Objects []Object `yaml:"objects" json:"objects"`
}

// Object mirrors sluice.ObjectDefinition.
type Object struct {
	Name     string  `yaml:"name" json:"name"`
	Singular string  `yaml:"singular" json:"singular"`
	Plural   string  `yaml:"plural" json:"plural"`
	Fields   []Field `yaml:"fields" json:"fields"`
}

// Field mirrors sluice.FieldDefinition plus a declarative validator chain.
type Field struct {
	Name       string         `yaml:"name" json:"name"`
	Src        string         `yaml:"src" json:"src"`
	Desc       string         `yaml:"desc" json:"desc"`
	Attribute  bool           `yaml:"attribute" json:"attribute"`
	Singular   string         `yaml:"singular" json:"singular"`
	Plural     string         `yaml:"plural" json:"plural"`
	FilterFrom []string       `yaml:"filterFrom" json:"filterFrom"`
	Enumerated map[string]int `yaml:"enumerated" json:"enumerated"`
	CoerceTo   string         `yaml:"coerceTo" json:"coerceTo"`
	Hidden     bool           `yaml:"hidden" json:"hidden"`
	Checks     []Check        `yaml:"checks" json:"checks"`
}

// Check is one declarative chain step.
type Check struct {
	Name    string         `yaml:"name" json:"name"`
	Min     *int           `yaml:"min" json:"min"`
	Max     *int           `yaml:"max" json:"max"`
	Pattern string         `yaml:"pattern" json:"pattern"`
	Flags   string         `yaml:"flags" json:"flags"`
	Values  map[string]int `yaml:"values" json:"values"`
	Denied  []string       `yaml:"denied" json:"denied"`
	Custom  string         `yaml:"custom" json:"custom"`
	Target  string         `yaml:"target" json:"target"`
}

// LoadYAML parses a YAML definition document.
func LoadYAML(reg *sluice.Registry, data []byte) ([]*sluice.ObjectDefinition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("defs: %w", err)
	}
	return convert(reg, &f)
}

// LoadJSON parses a JSON or JSONC definition document; comments and
// trailing commas are tolerated.
func LoadJSON(reg *sluice.Registry, data []byte) ([]*sluice.ObjectDefinition, error) {
	var f File
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("defs: %w", err)
	}
	return convert(reg, &f)
}

// LoadFile reads a definition document, picking the format by extension
// (.yaml/.yml vs .json/.jsonc).
func LoadFile(reg *sluice.Registry, path string) ([]*sluice.ObjectDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(reg, data)
	case ".json", ".jsonc":
		return LoadJSON(reg, data)
	}
	return nil, fmt.Errorf("defs: unsupported definition file %q", path)
}

// Register loads a definition file and registers everything it declares.
func Register(reg *sluice.Registry, path string) error {
	objs, err := LoadFile(reg, path)
	if err != nil {
		return err
	}
	reg.Register(objs...)
	return nil
}

func convert(reg *sluice.Registry, f *File) ([]*sluice.ObjectDefinition, error) {
	out := make([]*sluice.ObjectDefinition, 0, len(f.Objects))
	for _, o := range f.Objects {
		if o.Name == "" {
			return nil, fmt.Errorf("defs: object without a name")
		}
		def := &sluice.ObjectDefinition{
			Name:     o.Name,
			Singular: o.Singular,
			Plural:   o.Plural,
		}
		for _, fd := range o.Fields {
			cf, err := convertField(reg, o.Name, fd)
			if err != nil {
				return nil, err
			}
			def.Fields = append(def.Fields, cf)
		}
		out = append(out, def)
	}
	return out, nil
}

func convertField(reg *sluice.Registry, objName string, fd Field) (sluice.FieldDefinition, error) {
	out := sluice.FieldDefinition{
		Name:       fd.Name,
		Src:        fd.Src,
		Desc:       fd.Desc,
		Attribute:  fd.Attribute,
		Singular:   fd.Singular,
		Plural:     fd.Plural,
		FilterFrom: fd.FilterFrom,
		Enumerated: fd.Enumerated,
		Hidden:     fd.Hidden,
	}
	if out.Name == "" {
		return out, fmt.Errorf("defs: field without a name in object %q", objName)
	}
	switch fd.CoerceTo {
	case "":
		out.CoerceTo = sluice.CoerceNone
	case "array":
		out.CoerceTo = sluice.CoerceArray
	case "boolean":
		out.CoerceTo = sluice.CoerceBoolean
	default:
		return out, fmt.Errorf("defs: unknown coerceTo %q on %s.%s", fd.CoerceTo, objName, fd.Name)
	}
	if len(fd.Checks) > 0 {
		c, err := buildChain(reg, objName, fd.Name, fd.Checks)
		if err != nil {
			return out, err
		}
		out.Validator = c
	}
	return out, nil
}

func buildChain(reg *sluice.Registry, objName, fieldName string, checks []Check) (*sluice.Chain, error) {
	c := reg.Chain()
	for _, ck := range checks {
		switch ck.Name {
		case "optional":
			c.Optional()
		case "immutable":
			c.Immutable()
		case "updateRequired":
			c.UpdateRequired()
		case "rename":
			c.Rename(ck.Target)
		case "isString":
			c.IsString()
		case "isInt":
			c.IsInt()
		case "isNumeric":
			c.IsNumeric()
		case "isDecimal":
			c.IsDecimal()
		case "isFloat":
			c.IsFloat()
		case "toInt":
			c.ToInt()
		case "isBoolean":
			c.IsBoolean()
		case "toBoolean":
			c.ToBoolean()
		case "toBooleanStrict":
			c.ToBooleanStrict()
		case "notEmpty":
			c.NotEmpty()
		case "isPort":
			c.IsPort()
		case "isEmail":
			c.IsEmail()
		case "isUUID":
			c.IsUUID()
		case "isIP":
			c.IsIP()
		case "isCIDR":
			c.IsCIDR()
		case "notIPBlacklisted":
			c.NotIPBlacklisted()
		case "isHostname":
			c.IsHostname()
		case "isHostnameOrIp":
			c.IsHostnameOrIP()
		case "isAllowedFQDNOrIP":
			c.IsAllowedFQDNOrIP(ck.Denied...)
		case "isAddressPair":
			c.IsAddressPair()
		case "range":
			if ck.Min == nil || ck.Max == nil {
				return nil, fmt.Errorf("defs: range on %s.%s requires min and max", objName, fieldName)
			}
			c.Range(int64(*ck.Min), int64(*ck.Max))
		case "len":
			if ck.Min == nil {
				return nil, fmt.Errorf("defs: len on %s.%s requires min", objName, fieldName)
			}
			if ck.Max != nil {
				c.Len(*ck.Min, *ck.Max)
			} else {
				c.Len(*ck.Min)
			}
		case "numItems":
			if ck.Min == nil {
				return nil, fmt.Errorf("defs: numItems on %s.%s requires min", objName, fieldName)
			}
			if ck.Max != nil {
				c.NumItems(*ck.Min, *ck.Max)
			} else {
				c.NumItems(*ck.Min)
			}
		case "regex":
			if ck.Pattern == "" {
				return nil, fmt.Errorf("defs: regex on %s.%s requires a pattern", objName, fieldName)
			}
			// a malformed pattern in a loaded file is a load error, not a panic
			pattern := ck.Pattern
			if ck.Flags != "" {
				pattern = "(?" + ck.Flags + ")" + pattern
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, fmt.Errorf("defs: bad regex on %s.%s: %v", objName, fieldName, err)
			}
			c.RegexWithFlags(ck.Pattern, ck.Flags)
		case "enumerated":
			if len(ck.Values) == 0 {
				return nil, fmt.Errorf("defs: enumerated on %s.%s requires values", objName, fieldName)
			}
			c.Enumerated(ck.Values)
		case "custom":
			if ck.Custom == "" {
				return nil, fmt.Errorf("defs: custom on %s.%s requires a validator name", objName, fieldName)
			}
			c.Custom(ck.Custom)
		default:
			return nil, fmt.Errorf("defs: unknown check %q on %s.%s", ck.Name, objName, fieldName)
		}
	}
	return c, nil
}
