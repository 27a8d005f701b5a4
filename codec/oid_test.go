package codec_test

import (
	"bytes"
	"reflect"
	"testing"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
	"github.com/reoring/goper/codec"
)

func TestObjectIdentifier_CanonicalEncoding(t *testing.T) {
	c := codec.ObjectIdentifier()
	// 1.2.840.113549: 2a 86 48 86 f7 0d
	got := encodeHex(t, c, goper.OID{1, 2, 840, 113549})
	want := []byte{0x06, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
	dec := decodeValue(t, c, got)
	if !reflect.DeepEqual(dec, goper.OID{1, 2, 840, 113549}) {
		t.Fatalf("decode: got %v", dec)
	}
}

func TestObjectIdentifier_JointArcAbove39(t *testing.T) {
	c := codec.ObjectIdentifier()
	// 2.999.3: first subidentifier 40*2+999 = 1079, two octets in base-128.
	in := goper.OID{2, 999, 3}
	dec := decodeValue(t, c, encodeHex(t, c, in))
	if !reflect.DeepEqual(dec, in) {
		t.Fatalf("round trip: got %v", dec)
	}
}

func TestObjectIdentifier_FirstArcRules(t *testing.T) {
	c := codec.ObjectIdentifier()
	cases := []goper.OID{
		{3, 1},  // first arc > 2
		{0, 40}, // second arc > 39 under first arc 0
		{1},     // single arc
	}
	for _, in := range cases {
		buf := bitio.New()
		if err := c.Encode(buf, in); !goper.IsCode(err, goper.CodeConstraintViolation) {
			t.Fatalf("oid %v: expected constraint_violation, got %v", in, err)
		}
	}
}

func TestObjectIdentifier_WireErrors(t *testing.T) {
	c := codec.ObjectIdentifier()
	cases := map[string][]byte{
		"empty":           {0x00},
		"truncated arc":   {0x01, 0x86},
		"non-minimal pad": {0x02, 0x80, 0x01},
		"overflowing arc": {0x0B, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F},
	}
	for name, wire := range cases {
		_, err := c.Decode(bitio.FromBytes(wire))
		if !goper.IsCode(err, goper.CodeWireError) {
			t.Fatalf("%s: expected wire_error, got %v", name, err)
		}
	}
}
