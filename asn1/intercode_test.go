package asn1_test

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"testing"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/asn1"
	"github.com/reoring/goper/bitio"
	"github.com/reoring/goper/codec"
	"github.com/reoring/goper/schema"
)

// The Intercode reference module: four types whose encodings are pinned to
// the vectors published in the Intercode specification.
const intercodeModule = `
Intercode DEFINITIONS AUTOMATIC TAGS ::= BEGIN

IntercodeIssuingData ::= SEQUENCE {
    intercodeVersion        INTEGER (0..7),
    intercodeInstanciation  INTEGER (0..7),
    networkId               OCTET STRING (SIZE(3)),
    productRetailer         IntercodeProductRetailer OPTIONAL,
    ...
}

IntercodeProductRetailer ::= SEQUENCE {
    retailServerId          INTEGER (0..255) OPTIONAL,
    retailChannel           RetailChannel OPTIONAL,
    retailGeneratorId       INTEGER (0..63) OPTIONAL,
    retailerId              INTEGER (0..2047) OPTIONAL,
    retailPointId           INTEGER (0..MAX) OPTIONAL,
    retailComment           IA5String (SIZE(0..64)) OPTIONAL,
    ...
}

RetailChannel ::= ENUMERATED {
    unspecified(0), mobileApplication(1), internet(2), pointOfSale(3),
    ticketMachine(4), onBoard(5), callCenter(6), agency(7),
    partnerNetwork(8), postOffice(9), bank(10), reseller(11),
    vendingMachine(12), inspectionDevice(13), subscriptionCenter(14),
    socialServices(15), other(16), ...
}

IntercodeDynamicData ::= SEQUENCE {
    dynamicContentDay       INTEGER (0..511) DEFAULT 0,
    dynamicContentTime      INTEGER (0..86399) OPTIONAL,
    dynamicContentUTCOffset INTEGER (-60..60) OPTIONAL,
    dynamicContentDuration  INTEGER (0..86399) OPTIONAL,
    ...
}

END
`

func buildIntercode(t *testing.T) map[string]codec.Codec {
	t.Helper()
	m, err := asn1.Parse(intercodeModule)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Types) != 4 {
		t.Fatalf("type count: got %d want 4", len(m.Types))
	}
	reg, err := asn1.Convert(m, asn1.ConvertOptions{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	codecs, err := schema.BuildAll(reg)
	if err != nil {
		t.Fatalf("build all: %v", err)
	}
	return codecs
}

func issuingDataValue() map[string]any {
	return map[string]any{
		"intercodeVersion":       int64(1),
		"intercodeInstanciation": int64(1),
		"networkId":              []byte{0x25, 0x09, 0x15},
		"productRetailer": map[string]any{
			"retailChannel":     "mobileApplication",
			"retailGeneratorId": int64(0),
			"retailServerId":    int64(32),
			"retailerId":        int64(1037),
			"retailPointId":     int64(6),
		},
	}
}

func TestIntercodeIssuingData_ReferenceVector(t *testing.T) {
	codecs := buildIntercode(t)
	c := codecs["IntercodeIssuingData"]

	buf := bitio.New()
	if err := c.Encode(buf, issuingDataValue()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want, _ := hex.DecodeString("492509157c400810340418")
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("wire:\n got %x\nwant %x", got, want)
	}

	dec, err := c.Decode(bitio.FromBytes(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(dec, issuingDataValue()) {
		t.Fatalf("decode:\n got %#v\nwant %#v", dec, issuingDataValue())
	}
}

func TestIntercodeDynamicData_ReferenceVector(t *testing.T) {
	codecs := buildIntercode(t)
	c := codecs["IntercodeDynamicData"]

	value := map[string]any{
		"dynamicContentDay":       int64(0),
		"dynamicContentTime":      int64(59710),
		"dynamicContentUTCOffset": int64(-8),
		"dynamicContentDuration":  int64(600),
	}
	buf := bitio.New()
	if err := c.Encode(buf, value); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want, _ := hex.DecodeString("3ba4f9a00960")
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("wire:\n got %x\nwant %x", got, want)
	}

	// dynamicContentDay rides as DEFAULT 0: absent on the wire, reinstated
	// on decode.
	node, err := c.DecodeWithMeta(bitio.FromBytes(want))
	if err != nil {
		t.Fatalf("decode with meta: %v", err)
	}
	day := node.Value.(map[string]*goper.Decoded)["dynamicContentDay"]
	if day.IsPresent() || !day.IsDefault() || day.Value != int64(0) {
		t.Fatalf("day node: %+v", day)
	}
	dec := goper.StripMetadata(node)
	if !reflect.DeepEqual(dec, value) {
		t.Fatalf("decode:\n got %#v\nwant %#v", dec, value)
	}
}

func TestIntercode_RecursiveBuildFromText(t *testing.T) {
	// S4 through the text front end: a recursive type parsed, converted and
	// compiled via BuildAll round-trips a three-level tree.
	m, err := asn1.Parse(`
T DEFINITIONS ::= BEGIN
TreeNode ::= SEQUENCE {
    value    INTEGER (0..255),
    children SEQUENCE OF TreeNode OPTIONAL
}
END`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg, err := asn1.Convert(m, asn1.ConvertOptions{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	codecs, err := schema.BuildAll(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	c := codecs["TreeNode"]
	tree := map[string]any{
		"value": int64(1),
		"children": []any{
			map[string]any{"value": int64(2), "children": []any{
				map[string]any{"value": int64(3)},
			}},
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
		t.Fatalf("round trip: got %#v", dec)
	}
}
