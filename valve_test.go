package sluice_test

import (
	"context"
	"errors"
	"testing"

	sluice "github.com/okonak/sluice"
)

func nodeSchema() *sluice.Schema {
	return sluice.NewSchema().
		AddChain("id", sluice.NewChain().IsInt().Rename("hash_id")).
		AddChain("name", sluice.NewChain().IsString().Len(1, 32)).
		AddChain("port", sluice.NewChain().Optional().IsInt().Range(1, 65535))
}

func TestCheck_CleansAndRenames(t *testing.T) {
	s := nodeSchema()
	cleaned, err := s.Check(context.Background(), map[string]any{
		"id": "12", "name": "edge-1", "port": 443,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cleaned["hash_id"].(int64) != 12 {
		t.Fatalf("rename target not applied: %v", cleaned)
	}
	if _, ok := cleaned["id"]; ok {
		t.Fatalf("renamed field should not keep its schema key: %v", cleaned)
	}
	if cleaned["name"] != "edge-1" || cleaned["port"].(int64) != 443 {
		t.Fatalf("cleaned: %v", cleaned)
	}
}

func TestCheck_MissingRequiredKey(t *testing.T) {
	s := nodeSchema()
	_, err := s.Check(context.Background(), map[string]any{"id": 1})
	ve, ok := sluice.AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Key != "name" || ve.Message != sluice.MsgMissingKey {
		t.Fatalf("record: %+v", ve)
	}
}

func TestCheck_OptionalNullVersusAbsent(t *testing.T) {
	s := nodeSchema()
	// explicit null passes through unchanged
	cleaned, err := s.Check(context.Background(), map[string]any{
		"id": 1, "name": "n", "port": nil,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	v, present := cleaned["port"]
	if !present || v != nil {
		t.Fatalf("explicit null should stay: %v", cleaned)
	}
	// absent optional key yields no key at all
	cleaned, err = s.Check(context.Background(), map[string]any{"id": 1, "name": "n"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if _, present := cleaned["port"]; present {
		t.Fatalf("absent optional key should not appear: %v", cleaned)
	}
}

func TestCheck_StrictMode(t *testing.T) {
	s := sluice.NewSchema().AddChain("a", sluice.NewChain().IsInt())
	in := map[string]any{"a": 5, "b": 5}

	_, err := s.Check(context.Background(), in, sluice.CheckOptions{Strict: true})
	ve, ok := sluice.AsValidationError(err)
	if !ok || ve.Key != "b" || ve.Message != sluice.MsgKeyNotAllowed {
		t.Fatalf("strict: %v", err)
	}

	cleaned, err := s.Check(context.Background(), in)
	if err != nil {
		t.Fatalf("non-strict: %v", err)
	}
	if _, ok := cleaned["b"]; ok {
		t.Fatalf("undeclared key should be dropped: %v", cleaned)
	}
}

func TestCheck_FirstErrorUsesDeclarationOrder(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("first", sluice.NewChain().IsInt()).
		AddChain("second", sluice.NewChain().IsInt())
	_, err := s.Check(context.Background(), map[string]any{"first": "x", "second": "y"})
	ve, _ := sluice.AsValidationError(err)
	if ve == nil || ve.Key != "first" {
		t.Fatalf("expected the lowest declaration index to surface, got %v", err)
	}
}

func TestCheck_NestedSchemaPath(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("name", sluice.NewChain().IsString()).
		AddSchema("endpoint", sluice.NewSchema().
			AddChain("ip", sluice.NewChain().IsIP()).
			AddChain("port", sluice.NewChain().IsInt()))
	_, err := s.Check(context.Background(), map[string]any{
		"name":     "n",
		"endpoint": map[string]any{"ip": "bogus", "port": 1},
	})
	ve, ok := sluice.AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Key != "ip" || len(ve.ParentKeys) != 1 || ve.ParentKeys[0] != "endpoint" {
		t.Fatalf("record: %+v", ve)
	}
	if ve.Pointer() != "/endpoint/ip" {
		t.Fatalf("pointer: %s", ve.Pointer())
	}
	_, err = s.Check(context.Background(), map[string]any{"name": "n", "endpoint": "nope"})
	ve, _ = sluice.AsValidationError(err)
	if ve == nil || ve.Message != sluice.MsgNotObject {
		t.Fatalf("non-object nested value: %v", err)
	}
}

func TestCheckPartial(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("name", sluice.NewChain().IsString()).
		AddChain("state", sluice.NewChain().UpdateRequired().IsString())
	// missing non-required fields are fine, updateRequired ones are not
	_, err := s.CheckPartial(context.Background(), map[string]any{"name": "x"})
	ve, _ := sluice.AsValidationError(err)
	if ve == nil || ve.Key != "state" {
		t.Fatalf("updateRequired should be enforced in partial checks: %v", err)
	}
	cleaned, err := s.CheckPartial(context.Background(), map[string]any{"state": "ok"})
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if _, ok := cleaned["name"]; ok {
		t.Fatalf("absent field should stay absent: %v", cleaned)
	}
}

func TestCheckUpdate_Immutability(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("a", sluice.NewChain().IsString()).
		AddChain("b", sluice.NewChain().Immutable().IsInt())
	existing := map[string]any{"a": "foo", "b": 1233}

	_, err := s.CheckUpdate(context.Background(), existing, map[string]any{"a": "bar", "b": 1234})
	ve, ok := sluice.AsValidationError(err)
	if !ok || ve.Key != "b" || ve.Message != sluice.MsgImmutableField {
		t.Fatalf("immutable: %v", err)
	}
	if existing["a"] != "foo" || existing["b"] != 1233 {
		t.Fatalf("existing mutated: %v", existing)
	}

	merged, err := s.CheckUpdate(context.Background(), existing, map[string]any{"a": "bar", "b": 1233})
	if err != nil {
		t.Fatalf("update with unchanged immutable value: %v", err)
	}
	if merged["a"] != "bar" {
		t.Fatalf("partial value should win in merge: %v", merged)
	}
	if existing["a"] != "foo" {
		t.Fatalf("existing mutated by merge: %v", existing)
	}
}

func TestCheck_FinalValidator(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("min", sluice.NewChain().IsInt()).
		AddChain("max", sluice.NewChain().IsInt()).
		Final(func(ctx context.Context, cleaned map[string]any, baton any) (map[string]any, error) {
			if cleaned["min"].(int64) > cleaned["max"].(int64) {
				return nil, errors.New("min exceeds max")
			}
			return cleaned, nil
		})
	if _, err := s.Check(context.Background(), map[string]any{"min": 1, "max": 2}); err != nil {
		t.Fatalf("final ok: %v", err)
	}
	_, err := s.Check(context.Background(), map[string]any{"min": 3, "max": 2})
	ve, _ := sluice.AsValidationError(err)
	if ve == nil || ve.Message != "min exceeds max" {
		t.Fatalf("final validator failure should override success: %v", err)
	}
}

func TestCheck_ContextCancellation(t *testing.T) {
	s := nodeSchema()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Check(ctx, map[string]any{"id": 1, "name": "n"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompileSchemas(t *testing.T) {
	reg := sluice.NewRegistry()
	reg.Register(&sluice.ObjectDefinition{
		Name: "node",
		Fields: []sluice.FieldDefinition{
			{Name: "id", Src: "hash_id", Validator: sluice.NewChain().IsInt()},
			{Name: "state", Enumerated: map[string]int{"down": 0, "up": 1}},
			{Name: "secret", Hidden: true},
			{Name: "note"},
		},
	})
	schemas := sluice.CompileSchemas(reg)
	s := schemas["node"]
	if s == nil {
		t.Fatalf("schema missing")
	}
	if _, ok := s.Chain("secret"); ok {
		t.Fatalf("hidden field should be skipped")
	}
	cleaned, err := s.Check(context.Background(), map[string]any{
		"id": "9", "state": "up", "note": "anything",
	})
	if err != nil {
		t.Fatalf("compiled check: %v", err)
	}
	if cleaned["hash_id"].(int64) != 9 {
		t.Fatalf("src should become the rename target: %v", cleaned)
	}
	if cleaned["state"].(int) != 1 {
		t.Fatalf("enumerated step should be synthesized: %v", cleaned)
	}
	if cleaned["note"] != "anything" {
		t.Fatalf("fields without chains pass through: %v", cleaned)
	}
}

func TestDescribeSchema(t *testing.T) {
	s := sluice.NewSchema().
		AddChain("name", sluice.NewChain().IsString().HelpText("Display name.")).
		AddSchema("endpoint", sluice.NewSchema().
			AddChain("ip", sluice.NewChain().IsIP()))
	help := sluice.DescribeSchema(s)
	if len(help["name"]) != 1 || help["name"][0] != "Display name." {
		t.Fatalf("help: %v", help)
	}
	if len(help["endpoint.ip"]) != 1 {
		t.Fatalf("nested help: %v", help)
	}
}
