package defs_test

import (
	"context"
	"strings"
	"testing"

	sluice "github.com/okonak/sluice"
	"github.com/okonak/sluice/defs"
)

const nodeYAML = `
objects:
  - name: node
    singular: node
    plural: nodes
    fields:
      - name: id
        src: hash_id
        attribute: true
        checks:
          - name: isInt
      - name: state
        enumerated: {down: 0, up: 1}
      - name: port
        checks:
          - name: optional
          - name: isInt
          - name: range
            min: 1
            max: 65535
      - name: enabled
        coerceTo: boolean
        checks:
          - name: toBoolean
      - name: secret
        hidden: true
`

func TestLoadYAML(t *testing.T) {
	reg := sluice.NewRegistry()
	objs, err := defs.LoadYAML(reg, []byte(nodeYAML))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(objs) != 1 || objs[0].Name != "node" {
		t.Fatalf("objects: %+v", objs)
	}
	reg.Register(objs...)

	schemas := sluice.CompileSchemas(reg)
	s := schemas["node"]
	cleaned, err := s.Check(context.Background(), map[string]any{
		"id": "7", "state": "up", "enabled": "0",
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cleaned["hash_id"].(int64) != 7 {
		t.Fatalf("src rename from file: %v", cleaned)
	}
	if cleaned["state"].(int) != 1 {
		t.Fatalf("enumerated from file: %v", cleaned)
	}
	if cleaned["enabled"].(bool) != false {
		t.Fatalf("toBoolean from file: %v", cleaned)
	}
	if _, ok := s.Chain("secret"); ok {
		t.Fatalf("hidden field leaked into the schema")
	}

	_, err = s.Check(context.Background(), map[string]any{
		"id": "7", "state": "up", "enabled": true, "port": 70000,
	})
	ve, ok := sluice.AsValidationError(err)
	if !ok || ve.Key != "port" || ve.Message != "Value out of range (1..65535)" {
		t.Fatalf("range from file: %v", err)
	}
}

func TestLoadJSONC(t *testing.T) {
	reg := sluice.NewRegistry()
	doc := `{
  // definition with comments and a trailing comma
  "objects": [
    {
      "name": "tag",
      "fields": [
        {"name": "label", "checks": [{"name": "notEmpty"}]},
      ],
    },
  ],
}`
	objs, err := defs.LoadJSON(reg, []byte(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(objs) != 1 || objs[0].Fields[0].Name != "label" {
		t.Fatalf("objects: %+v", objs)
	}
}

func TestLoad_Errors(t *testing.T) {
	reg := sluice.NewRegistry()
	if _, err := defs.LoadYAML(reg, []byte("objects:\n  - fields: []\n")); err == nil {
		t.Fatalf("object without a name should fail")
	}
	bad := `
objects:
  - name: x
    fields:
      - name: f
        checks:
          - name: frobnicate
`
	if _, err := defs.LoadYAML(reg, []byte(bad)); err == nil {
		t.Fatalf("unknown check should fail")
	}
	badCoerce := `
objects:
  - name: x
    fields:
      - name: f
        coerceTo: blob
`
	if _, err := defs.LoadYAML(reg, []byte(badCoerce)); err == nil {
		t.Fatalf("unknown coerceTo should fail")
	}
	badRegex := `
objects:
  - name: x
    fields:
      - name: f
        checks:
          - name: regex
            pattern: "["
`
	_, err := defs.LoadYAML(reg, []byte(badRegex))
	if err == nil || !strings.Contains(err.Error(), "bad regex on x.f") {
		t.Fatalf("malformed pattern should return a load error, got %v", err)
	}
}
