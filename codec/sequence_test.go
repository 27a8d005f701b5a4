package codec_test

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"testing"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
	"github.com/reoring/goper/codec"
)

// The two-field document with defaults from the wire-format scenarios:
// SEQUENCE { id INTEGER (0..255) DEFAULT 5, name IA5String (SIZE(0..64))
// DEFAULT "hello" }.
func defaultedSequence() codec.Codec {
	return codec.Sequence([]codec.Field{
		{Name: "id", Codec: codec.Integer(codec.IntRange(0, 255)), Default: int64(5)},
		{Name: "name", Codec: codec.String(codec.IA5String, codec.SizeRange(0, 64)), Default: "hello"},
	}, nil, false)
}

func TestSequence_DefaultsElided(t *testing.T) {
	c := defaultedSequence()
	got := encodeHex(t, c, map[string]any{"id": 5, "name": "hello"})
	if !bytes.Equal(got, []byte{0x00}) {
		t.Fatalf("all-default document: got %x want 00", got)
	}
	dec := decodeValue(t, c, got).(map[string]any)
	want := map[string]any{"id": int64(5), "name": "hello"}
	if !reflect.DeepEqual(dec, want) {
		t.Fatalf("decode: got %#v want %#v", dec, want)
	}
}

func TestSequence_ExplicitValues(t *testing.T) {
	c := defaultedSequence()
	got := encodeHex(t, c, map[string]any{"id": 42, "name": "world"})
	want, _ := hex.DecodeString("ca82f7dfcb6640")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
	dec := decodeValue(t, c, want).(map[string]any)
	if dec["id"] != int64(42) || dec["name"] != "world" {
		t.Fatalf("decode: got %#v", dec)
	}
}

func TestSequence_MissingMandatoryField(t *testing.T) {
	c := codec.Sequence([]codec.Field{
		{Name: "flag", Codec: codec.Boolean()},
	}, nil, false)
	buf := bitio.New()
	err := c.Encode(buf, map[string]any{})
	if !goper.IsCode(err, goper.CodeConstraintViolation) {
		t.Fatalf("expected constraint_violation, got %v", err)
	}
}

func TestSequence_UnknownKeyRejected(t *testing.T) {
	c := defaultedSequence()
	buf := bitio.New()
	err := c.Encode(buf, map[string]any{"id": 1, "bogus": 2})
	if !goper.IsCode(err, goper.CodeConstraintViolation) {
		t.Fatalf("expected constraint_violation, got %v", err)
	}
}

func TestSequence_OptionalAbsent(t *testing.T) {
	c := codec.Sequence([]codec.Field{
		{Name: "a", Codec: codec.Integer(codec.IntRange(0, 15))},
		{Name: "b", Codec: codec.Integer(codec.IntRange(0, 15)), Optional: true},
	}, nil, false)
	got := encodeHex(t, c, map[string]any{"a": 9})
	dec := decodeValue(t, c, got).(map[string]any)
	if _, ok := dec["b"]; ok {
		t.Fatalf("absent optional must stay absent, got %#v", dec)
	}
	if dec["a"] != int64(9) {
		t.Fatalf("decode: got %#v", dec)
	}
}

func TestSequence_ExtensionFieldRoundTrip(t *testing.T) {
	base := []codec.Field{{Name: "head", Codec: codec.Integer(codec.IntRange(0, 255))}}
	ext := []codec.Field{{Name: "tail", Codec: codec.Integer(codec.IntRange(0, 255)), Optional: true}}
	c := codec.Sequence(base, ext, true)

	// Without the extension the bit is zero.
	plain := encodeHex(t, c, map[string]any{"head": 1})
	dec := decodeValue(t, c, plain).(map[string]any)
	if !reflect.DeepEqual(dec, map[string]any{"head": int64(1)}) {
		t.Fatalf("plain decode: got %#v", dec)
	}

	// With the extension present, an unaware decoder must still read the
	// base fields and skip the addition.
	extended := encodeHex(t, c, map[string]any{"head": 1, "tail": 7})
	dec = decodeValue(t, c, extended).(map[string]any)
	if dec["head"] != int64(1) || dec["tail"] != int64(7) {
		t.Fatalf("extended decode: got %#v", dec)
	}

	unaware := codec.Sequence(base, nil, true)
	dec = decodeValue(t, unaware, extended).(map[string]any)
	if !reflect.DeepEqual(dec, map[string]any{"head": int64(1)}) {
		t.Fatalf("unaware decode must skip unknown additions: got %#v", dec)
	}
}

func TestSequence_MetadataFlagsAndSpans(t *testing.T) {
	c := defaultedSequence()
	wire := encodeHex(t, c, map[string]any{"id": 42, "name": "world"})
	buf := bitio.FromBytes(wire)
	node, err := c.DecodeWithMeta(buf)
	if err != nil {
		t.Fatalf("decode with meta: %v", err)
	}
	if node.Meta.Kind != goper.KindSequence {
		t.Fatalf("kind: got %v", node.Meta.Kind)
	}
	if node.Meta.BitLength != buf.Pos() {
		t.Fatalf("root span %d != consumed %d", node.Meta.BitLength, buf.Pos())
	}
	children := node.Value.(map[string]*goper.Decoded)

	// Span coverage: preamble bits plus child spans equal the root span.
	var childBits uint64
	for _, ch := range children {
		childBits += ch.Meta.BitLength
	}
	const preambleBits = 2
	if preambleBits+childBits != node.Meta.BitLength {
		t.Fatalf("span coverage: %d + %d != %d", preambleBits, childBits, node.Meta.BitLength)
	}

	id := children["id"]
	if !id.IsPresent() || id.IsDefault() || id.Value != int64(42) {
		t.Fatalf("id node: %+v", id)
	}
	if id.Meta.BitOffset != 2 || id.Meta.BitLength != 8 {
		t.Fatalf("id span: %+v", id.Meta)
	}
}

func TestSequence_MetadataDefaultApplied(t *testing.T) {
	c := defaultedSequence()
	node, err := c.DecodeWithMeta(bitio.FromBytes([]byte{0x00}))
	if err != nil {
		t.Fatalf("decode with meta: %v", err)
	}
	children := node.Value.(map[string]*goper.Decoded)
	id := children["id"]
	if id.IsPresent() || !id.IsDefault() {
		t.Fatalf("default id must be absent+default: %+v", id)
	}
	if id.Value != int64(5) || id.Meta.BitLength != 0 {
		t.Fatalf("default id node: %+v", id)
	}
}

func TestSequence_StripEquivalence(t *testing.T) {
	c := defaultedSequence()
	for _, doc := range []map[string]any{
		{"id": 5, "name": "hello"},
		{"id": 42, "name": "world"},
		{"id": 7, "name": "hello"},
	} {
		wire := encodeHex(t, c, doc)
		plain, err := c.Decode(bitio.FromBytes(wire))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		node, err := c.DecodeWithMeta(bitio.FromBytes(wire))
		if err != nil {
			t.Fatalf("decode with meta: %v", err)
		}
		if !reflect.DeepEqual(goper.StripMetadata(node), plain) {
			t.Fatalf("strip mismatch for %v", doc)
		}
	}
}

func TestSequence_RawBytesFidelity(t *testing.T) {
	c := defaultedSequence()
	wire := encodeHex(t, c, map[string]any{"id": 42, "name": "world"})
	node, err := c.DecodeWithMeta(bitio.FromBytes(wire))
	if err != nil {
		t.Fatalf("decode with meta: %v", err)
	}
	// The root node covers the whole message, so its raw bytes reproduce
	// the wire (modulo trailing padding, which encode also zeroes).
	if !bytes.Equal(node.Meta.Raw, wire) {
		t.Fatalf("raw: got %x want %x", node.Meta.Raw, wire)
	}
	// A child's raw bytes re-decode to the child's value.
	id := node.Value.(map[string]*goper.Decoded)["id"]
	sub := bitio.FromBits(id.Meta.Raw, id.Meta.BitLength)
	v, err := codec.Integer(codec.IntRange(0, 255)).Decode(sub)
	if err != nil || v != int64(42) {
		t.Fatalf("re-decode from raw: got %v err=%v", v, err)
	}
}
