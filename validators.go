package sluice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Validator step messages. These are fixed strings matched by callers.
const (
	MsgInvalidInteger = "Invalid integer"
	MsgInvalidNumber  = "Invalid number"
	MsgInvalidDecimal = "Invalid decimal"
	MsgInvalidBoolean = "Invalid boolean"
	MsgNotString      = "Not a string"
	MsgEmptyString    = "String is empty"
	MsgInvalidChars   = "Invalid characters"
	MsgInvalidPort    = "Invalid port"
	MsgInvalidEmail   = "Invalid email"
	MsgInvalidUUID    = "Invalid UUID"
)

// asInt64 accepts integer kinds, whole floats and numeric-looking strings.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return asInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		i, ok := asInt64(v)
		if !ok {
			return 0, false
		}
		return float64(i), true
	}
}

// IsString requires a string value.
func (c *Chain) IsString() *Chain {
	return c.append("isString", "String.", func(ctx context.Context, v, baton any) (any, error) {
		if _, ok := v.(string); !ok {
			return nil, errors.New(MsgNotString)
		}
		return v, nil
	})
}

// IsInt accepts integers, whole floats and numeric strings, converting the
// value to int64.
func (c *Chain) IsInt() *Chain {
	return c.append("isInt", "Integer.", func(ctx context.Context, v, baton any) (any, error) {
		i, ok := asInt64(v)
		if !ok {
			return nil, errors.New(MsgInvalidInteger)
		}
		return i, nil
	})
}

// IsNumeric accepts whole numbers and digit strings; fractional values are
// rejected.
func (c *Chain) IsNumeric() *Chain {
	return c.append("isNumeric", "Whole number.", func(ctx context.Context, v, baton any) (any, error) {
		i, ok := asInt64(v)
		if !ok {
			return nil, errors.New(MsgInvalidNumber)
		}
		return i, nil
	})
}

// IsDecimal accepts numbers and numeric strings, converting to float64.
func (c *Chain) IsDecimal() *Chain {
	return c.append("isDecimal", "Decimal number.", func(ctx context.Context, v, baton any) (any, error) {
		f, ok := asFloat64(v)
		if !ok {
			return nil, errors.New(MsgInvalidDecimal)
		}
		return f, nil
	})
}

// IsFloat is IsDecimal under its historical name.
func (c *Chain) IsFloat() *Chain {
	return c.append("isFloat", "Decimal number.", func(ctx context.Context, v, baton any) (any, error) {
		f, ok := asFloat64(v)
		if !ok {
			return nil, errors.New(MsgInvalidDecimal)
		}
		return f, nil
	})
}

// ToInt converts the value to int64, truncating fractional input.
func (c *Chain) ToInt() *Chain {
	return c.append("toInt", "Converted to integer.", func(ctx context.Context, v, baton any) (any, error) {
		if f, ok := asFloat64(v); ok {
			return int64(f), nil
		}
		return nil, errors.New(MsgInvalidInteger)
	})
}

// Range requires min <= value <= max on a numeric value.
func (c *Chain) Range(min, max int64) *Chain {
	help := fmt.Sprintf("Value in range %d..%d.", min, max)
	return c.append("range", help, func(ctx context.Context, v, baton any) (any, error) {
		// integral values compare exactly; float64 would lose precision on
		// bounds beyond 2^53
		if i, ok := asInt64(v); ok {
			if i < min || i > max {
				return nil, fmt.Errorf("Value out of range (%d..%d)", min, max)
			}
			return v, nil
		}
		f, ok := asFloat64(v)
		if !ok {
			return nil, errors.New(MsgInvalidNumber)
		}
		if f < float64(min) || f > float64(max) {
			return nil, fmt.Errorf("Value out of range (%d..%d)", min, max)
		}
		return v, nil
	})
}

// Len bounds the length of a string, array or hash value. With max omitted
// the bound is "at least min".
func (c *Chain) Len(min int, max ...int) *Chain {
	upper := -1
	if len(max) > 0 {
		upper = max[0]
	}
	help := fmt.Sprintf("Length of at least %d.", min)
	if upper >= 0 {
		help = fmt.Sprintf("Length in range %d..%d.", min, upper)
	}
	return c.append("len", help, func(ctx context.Context, v, baton any) (any, error) {
		var n int
		switch t := v.(type) {
		case string:
			n = len(t)
		case []any:
			n = len(t)
		case map[string]any:
			n = len(t)
		default:
			return nil, errors.New(MsgNotString)
		}
		if n < min || (upper >= 0 && n > upper) {
			if upper >= 0 {
				return nil, fmt.Errorf("Length out of range (%d..%d)", min, upper)
			}
			return nil, fmt.Errorf("Length out of range (min %d)", min)
		}
		return v, nil
	})
}

// Regex requires the string value to match pattern. A malformed pattern is a
// configuration error and panics at append time.
func (c *Chain) Regex(pattern string) *Chain {
	return c.RegexWithFlags(pattern, "")
}

// RegexWithFlags is Regex with inline flags such as "i" (case-insensitive)
// or "m" (multi-line).
func (c *Chain) RegexWithFlags(pattern, flags string) *Chain {
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re := regexp.MustCompile(pattern)
	return c.append("regex", "Matches "+pattern+".", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if !re.MatchString(s) {
			return nil, errors.New(MsgInvalidChars)
		}
		return s, nil
	})
}

// NotEmpty rejects empty or whitespace-only strings.
func (c *Chain) NotEmpty() *Chain {
	return c.append("notEmpty", "Non-empty string.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if strings.TrimSpace(s) == "" {
			return nil, errors.New(MsgEmptyString)
		}
		return s, nil
	})
}

var (
	reFalse = regexp.MustCompile(`(?i)^0$|^false$`)
	reTrue  = regexp.MustCompile(`(?i)^1$|^true$`)
)

// IsBoolean accepts only explicit boolean representations (true/false, 1/0
// and their string forms), converting to bool without general coercion.
func (c *Chain) IsBoolean() *Chain {
	return c.append("isBoolean", "Boolean.", func(ctx context.Context, v, baton any) (any, error) {
		s := fmt.Sprint(v)
		switch {
		case reTrue.MatchString(s):
			return true, nil
		case reFalse.MatchString(s):
			return false, nil
		}
		return nil, errors.New(MsgInvalidBoolean)
	})
}

// ToBoolean coerces any value: 0, "0", false, "false", null and "" are
// false, everything else is true.
func (c *Chain) ToBoolean() *Chain {
	return c.append("toBoolean", "Coerced to boolean.", func(ctx context.Context, v, baton any) (any, error) {
		return CoerceBool(v), nil
	})
}

// ToBooleanStrict accepts 1, true and "true" as true and the explicit falsy
// forms (0, "0", false, "false", null, "") as false; anything else fails.
func (c *Chain) ToBooleanStrict() *Chain {
	return c.append("toBooleanStrict", "Strict boolean.", func(ctx context.Context, v, baton any) (any, error) {
		if isFalsy(v) {
			return false, nil
		}
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			if strings.EqualFold(t, "true") {
				return true, nil
			}
		default:
			if i, ok := asInt64(v); ok && i == 1 {
				return true, nil
			}
		}
		return nil, errors.New(MsgInvalidBoolean)
	})
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || t == "0" || strings.EqualFold(t, "false")
	default:
		if i, ok := asInt64(v); ok {
			return i == 0
		}
	}
	return false
}

// CoerceBool applies the ToBoolean coercion rules outside a chain; the XML
// codec shares it for coerceTo boolean fields.
func CoerceBool(v any) bool { return !isFalsy(v) }

// Enumerated requires the value to equal one of the map's keys
// (string-compared) and replaces it with the mapped integer.
func (c *Chain) Enumerated(m map[string]int) *Chain {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	valid := strings.Join(keys, ", ")
	return c.append("enumerated", "One of: "+valid+".", func(ctx context.Context, v, baton any) (any, error) {
		s := fmt.Sprint(v)
		if n, ok := m[s]; ok {
			return n, nil
		}
		return nil, fmt.Errorf("Invalid value '%s' (must be one of: %s)", s, valid)
	})
}

// IsPort requires an integer in 1..65535.
func (c *Chain) IsPort() *Chain {
	return c.append("isPort", "TCP/UDP port.", func(ctx context.Context, v, baton any) (any, error) {
		i, ok := asInt64(v)
		if !ok || i < 1 || i > 65535 {
			return nil, errors.New(MsgInvalidPort)
		}
		return i, nil
	})
}

var reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsEmail applies a deliberately loose local@domain.tld grammar.
func (c *Chain) IsEmail() *Chain {
	return c.append("isEmail", "Email address.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		if !reEmail.MatchString(s) {
			return nil, errors.New(MsgInvalidEmail)
		}
		return s, nil
	})
}

// IsUUID requires an RFC 4122 UUID, normalizing to canonical lowercase form.
func (c *Chain) IsUUID() *Chain {
	return c.append("isUUID", "UUID.", func(ctx context.Context, v, baton any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(MsgNotString)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, errors.New(MsgInvalidUUID)
		}
		return u.String(), nil
	})
}
