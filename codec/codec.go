// Package codec renders built structures to JSON or XML text and parses
// text of either form back into structures, driven by the object
// definitions on a shared registry.
package codec

import (
	sluice "github.com/okonak/sluice"
)

// Options are orthogonal post-processing switches applied while rendering.
type Options struct {
	// StripNulls omits null-valued keys (JSON) or null elements (XML).
	StripNulls bool
	// StripTypeTag omits the internal type-tag key from JSON output.
	StripTypeTag bool
}

// Codec serializes and deserializes against the definitions registered on
// reg. The registry must be fully populated before the codec serves calls.
type Codec struct {
	reg *sluice.Registry
}

// New returns a codec bound to reg.
func New(reg *sluice.Registry) *Codec { return &Codec{reg: reg} }

// WrapPagination combines a page of items with response metadata into the
// fixed two-child container shape used by paginated endpoints, regardless
// of serialization mode: "values" holds each item, "metadata" each metadata
// key.
func WrapPagination(items []any, meta map[string]any) *sluice.Struct {
	s := sluice.NewStruct("")
	s.Set("values", items)
	s.Set("metadata", meta)
	return s
}

func pickOpt(opts []Options) Options {
	if len(opts) > 0 {
		return opts[len(opts)-1]
	}
	return Options{}
}
