package schema_test

import (
	"reflect"
	"testing"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
	"github.com/reoring/goper/schema"
)

const treeNodeJSON = `{
  "TreeNode": {
    "type": "sequence",
    "fields": [
      {"name": "value", "schema": {"type": "integer", "min": 0, "max": 255}},
      {"name": "children", "schema": {
        "type": "sequenceof",
        "items": {"$ref": "TreeNode"}
      }, "optional": true}
    ]
  }
}`

func TestBuildAll_RecursiveSchemaRoundTrips(t *testing.T) {
	reg, err := schema.RegistryFromJSON([]byte(treeNodeJSON))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	codecs, err := schema.BuildAll(reg)
	if err != nil {
		t.Fatalf("build all: %v", err)
	}
	c := codecs["TreeNode"]

	leaf := func(v int64) map[string]any { return map[string]any{"value": v} }
	tree := map[string]any{
		"value": int64(1),
		"children": []any{
			map[string]any{
				"value":    int64(2),
				"children": []any{leaf(4), leaf(5)},
			},
			leaf(3),
		},
	}

	buf := bitio.New()
	if err := c.Encode(buf, tree); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := c.Decode(bitio.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(dec, tree) {
		t.Fatalf("round trip:\n got %#v\nwant %#v", dec, tree)
	}
}

func TestBuild_RefWithoutRegistryFails(t *testing.T) {
	_, err := schema.Build(&schema.Node{Ref: "Missing"})
	if !goper.IsCode(err, goper.CodeSchemaError) {
		t.Fatalf("expected schema_error, got %v", err)
	}
}

func TestBuildAll_UnknownRefFails(t *testing.T) {
	reg := map[string]*schema.Node{
		"A": {Type: schema.TypeSequenceOf, Items: &schema.Node{Ref: "Nope"}},
	}
	_, err := schema.BuildAll(reg)
	if !goper.IsCode(err, goper.CodeSchemaError) {
		t.Fatalf("expected schema_error, got %v", err)
	}
}

func TestBuild_UnknownNodeTypeFails(t *testing.T) {
	_, err := schema.Build(&schema.Node{Type: "real"})
	if !goper.IsCode(err, goper.CodeSchemaError) {
		t.Fatalf("expected schema_error, got %v", err)
	}
}

func TestBuild_InvalidConstraintsFail(t *testing.T) {
	lo, hi := int64(9), int64(3)
	cases := []*schema.Node{
		{Type: schema.TypeInteger, Min: &lo, Max: &hi},
		{Type: schema.TypeEnumerated},
		{Type: schema.TypeSequenceOf},
		{Type: schema.TypeChoice},
	}
	for i, n := range cases {
		if _, err := schema.Build(n); !goper.IsCode(err, goper.CodeSchemaError) {
			t.Fatalf("case %d: expected schema_error, got %v", i, err)
		}
	}
}

func TestNode_JSONRoundTrip(t *testing.T) {
	reg, err := schema.RegistryFromJSON([]byte(treeNodeJSON))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	out, err := reg["TreeNode"].ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := schema.FromJSON(out)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if !reflect.DeepEqual(back, reg["TreeNode"]) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", back, reg["TreeNode"])
	}
}

func TestRegistryFromYAML_BuildsAndRoundTrips(t *testing.T) {
	const y = `
Pdu:
  type: sequence
  fields:
    - name: version
      schema: {type: integer, min: 0, max: 7}
    - name: payload
      schema: {type: octetstring, minSize: 0, maxSize: 16}
      optional: true
`
	reg, err := schema.RegistryFromYAML([]byte(y))
	if err != nil {
		t.Fatalf("yaml registry: %v", err)
	}
	codecs, err := schema.BuildAll(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	doc := map[string]any{"version": int64(3), "payload": []byte{0xAA, 0xBB}}
	buf := bitio.New()
	if err := codecs["Pdu"].Encode(buf, doc); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := codecs["Pdu"].Decode(bitio.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(dec, doc) {
		t.Fatalf("round trip: got %#v", dec)
	}
}

func TestBuildAll_MutualRecursion(t *testing.T) {
	reg := map[string]*schema.Node{
		"Expr": {Type: schema.TypeChoice, Alternatives: []schema.FieldNode{
			{Name: "lit", Schema: &schema.Node{Type: schema.TypeInteger, Min: i64(0), Max: i64(255)}},
			{Name: "pair", Schema: &schema.Node{Ref: "Pair"}},
		}},
		"Pair": {Type: schema.TypeSequence, Fields: []schema.FieldNode{
			{Name: "left", Schema: &schema.Node{Ref: "Expr"}},
			{Name: "right", Schema: &schema.Node{Ref: "Expr"}},
		}},
	}
	codecs, err := schema.BuildAll(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	v := goper.Chosen{Key: "pair", Value: map[string]any{
		"left":  goper.Chosen{Key: "lit", Value: int64(1)},
		"right": goper.Chosen{Key: "lit", Value: int64(2)},
	}}
	buf := bitio.New()
	if err := codecs["Expr"].Encode(buf, v); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := codecs["Expr"].Decode(bitio.FromBytes(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(dec, v) {
		t.Fatalf("round trip: got %#v want %#v", dec, v)
	}
}

func i64(v int64) *int64 { return &v }
