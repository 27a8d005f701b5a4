package asn1_test

import (
	"testing"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/asn1"
	"github.com/reoring/goper/schema"
)

func mustConvert(t *testing.T, src string, opts asn1.ConvertOptions) map[string]*schema.Node {
	t.Helper()
	m, err := asn1.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg, err := asn1.Convert(m, opts)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	return reg
}

func TestConvert_InlinesAcyclicReferences(t *testing.T) {
	reg := mustConvert(t, `
M DEFINITIONS ::= BEGIN
Label ::= IA5String (SIZE(0..8))
Doc ::= SEQUENCE { name Label }
END`, asn1.ConvertOptions{})

	doc := reg["Doc"]
	name := doc.Fields[0].Schema
	if name.Ref != "" || name.Type != schema.TypeIA5String {
		t.Fatalf("acyclic reference must inline: %+v", name)
	}
	if name.MinSize == nil || *name.MaxSize != 8 {
		t.Fatalf("inlined constraints lost: %+v", name)
	}
}

func TestConvert_EmitsRefForCycles(t *testing.T) {
	reg := mustConvert(t, `
M DEFINITIONS ::= BEGIN
TreeNode ::= SEQUENCE {
    value    INTEGER (0..255),
    children SEQUENCE OF TreeNode OPTIONAL
}
END`, asn1.ConvertOptions{})

	node := reg["TreeNode"]
	children := node.Fields[1].Schema
	if children.Type != schema.TypeSequenceOf {
		t.Fatalf("children: %+v", children)
	}
	if children.Items.Ref != "TreeNode" {
		t.Fatalf("cycle must become $ref: %+v", children.Items)
	}
}

func TestConvert_MutualRecursion(t *testing.T) {
	reg := mustConvert(t, `
M DEFINITIONS ::= BEGIN
A ::= SEQUENCE { b B OPTIONAL }
B ::= SEQUENCE { a A OPTIONAL }
END`, asn1.ConvertOptions{})

	// Compiling the registry proves the $ref placement is buildable.
	if _, err := schema.BuildAll(reg); err != nil {
		t.Fatalf("build all: %v", err)
	}
}

func TestConvert_UnresolvedReference(t *testing.T) {
	m, err := asn1.Parse(`M DEFINITIONS ::= BEGIN A ::= SEQUENCE { x Missing } END`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = asn1.Convert(m, asn1.ConvertOptions{})
	if !goper.IsCode(err, goper.CodeUnresolvedReference) {
		t.Fatalf("expected unresolved_reference, got %v", err)
	}
}

func TestConvert_OIDModes(t *testing.T) {
	src := `
M DEFINITIONS ::= BEGIN
AlgorithmId ::= OBJECT IDENTIFIER
Doc ::= SEQUENCE { alg OBJECT IDENTIFIER, n INTEGER (0..7) }
END`
	keep := mustConvert(t, src, asn1.ConvertOptions{OID: asn1.OIDKeep})
	if keep["AlgorithmId"] == nil || keep["AlgorithmId"].Type != schema.TypeOID {
		t.Fatalf("keep: %+v", keep["AlgorithmId"])
	}
	omit := mustConvert(t, src, asn1.ConvertOptions{OID: asn1.OIDOmit})
	if _, ok := omit["AlgorithmId"]; ok {
		t.Fatalf("omit must drop the top-level OID assignment")
	}
	// Field-level OIDs always survive.
	if omit["Doc"].Fields[0].Schema.Type != schema.TypeOID {
		t.Fatalf("field-level oid dropped: %+v", omit["Doc"].Fields[0])
	}
}

func TestConvert_EnumeratedAndDefaults(t *testing.T) {
	reg := mustConvert(t, `
M DEFINITIONS ::= BEGIN
Mode ::= ENUMERATED { off(0), on(1), ..., eco }
Cfg ::= SEQUENCE {
    mode    Mode DEFAULT off,
    retries INTEGER (0..7) DEFAULT 3
}
END`, asn1.ConvertOptions{})

	mode := reg["Mode"]
	if mode.Type != schema.TypeEnumerated || !mode.Extensible {
		t.Fatalf("Mode: %+v", mode)
	}
	if len(mode.Values) != 2 || len(mode.ExtensionValues) != 1 {
		t.Fatalf("Mode values: %+v", mode)
	}
	cfg := reg["Cfg"]
	if cfg.Fields[0].Default != "off" {
		t.Fatalf("mode default: %#v", cfg.Fields[0].Default)
	}
	if cfg.Fields[1].Default != int64(3) {
		t.Fatalf("retries default: %#v", cfg.Fields[1].Default)
	}
}
