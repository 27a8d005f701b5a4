// Package codec implements the PER-unaligned (ITU-T X.691) type codecs:
// boolean, integer, enumerated, bit string, octet string, character string,
// object identifier, null, sequence, sequence-of and choice.
//
// A Codec is immutable after construction and may be shared freely; encode
// and decode operate on an explicit bitio.Buffer and hold no hidden state.
// All failures surface synchronously as goper.Issues.
package codec

import (
	"math"
	"reflect"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// Codec encodes and decodes one ASN.1 type under PER-unaligned rules.
type Codec interface {
	// Kind returns the tag identifying this codec's type family.
	Kind() goper.Kind
	// Encode validates v against the codec's constraints and appends its
	// encoding to buf. Primitive codecs validate before writing a single
	// bit; composite codecs may leave a partial prefix behind on error.
	Encode(buf *bitio.Buffer, v any) error
	// Decode consumes bits from buf and yields the semantic value.
	Decode(buf *bitio.Buffer) (any, error)
	// DecodeWithMeta is Decode plus bit-range metadata: the returned node
	// records the codec kind, the consumed bit span and an independent byte
	// copy of the source region.
	DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error)
}

func constraintViolation(msg string, params map[string]any) goper.Issues {
	return goper.Issues{{Code: goper.CodeConstraintViolation, Message: msg, Params: params}}
}

func wireError(msg string, params map[string]any) goper.Issues {
	return goper.Issues{{Code: goper.CodeWireError, Message: msg, Params: params}}
}

// bracket wraps a decode body with metadata collection: it records the read
// cursor before and after, then copies the covered source region.
func bracket(buf *bitio.Buffer, kind goper.Kind, dec func() (any, error)) (*goper.Decoded, error) {
	start := buf.Pos()
	v, err := dec()
	if err != nil {
		return nil, err
	}
	end := buf.Pos()
	raw, err := buf.Extract(start, end-start)
	if err != nil {
		return nil, err
	}
	return &goper.Decoded{
		Value:    v,
		Presence: goper.PresenceSeen,
		Meta:     goper.Meta{Kind: kind, BitOffset: start, BitLength: end - start, Raw: raw},
	}, nil
}

// shiftMeta rebases a node tree's bit offsets by delta. Open-type payloads
// decode through a sub-buffer whose positions start at zero; the caller
// rebases them onto the outer stream.
func shiftMeta(d *goper.Decoded, delta uint64) {
	if d == nil {
		return
	}
	d.Meta.BitOffset += delta
	switch children := d.Value.(type) {
	case map[string]*goper.Decoded:
		for _, c := range children {
			shiftMeta(c, delta)
		}
	case []*goper.Decoded:
		for _, c := range children {
			shiftMeta(c, delta)
		}
	case goper.Chosen:
		if node, ok := children.Value.(*goper.Decoded); ok {
			shiftMeta(node, delta)
		}
	}
}

// toInt64 coerces the integer shapes accepted on encode: Go integer kinds
// plus integral float64 (the shape JSON defaults arrive in).
func toInt64(v any) (int64, bool) {
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
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
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
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// valueEqual compares a supplied value against a DEFAULT, coercing integer
// shapes so that map values produced by JSON match int64 defaults.
func valueEqual(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	case goper.BitString:
		bv, ok := b.(goper.BitString)
		return ok && av.BitLength == bv.BitLength && bitStringEqual(av, bv)
	case goper.OID:
		bv, ok := b.(goper.OID)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func bitStringEqual(a, b goper.BitString) bool {
	for i := 0; i < a.BitLength; i++ {
		if bitAt(a.Bytes, i) != bitAt(b.Bytes, i) {
			return false
		}
	}
	return true
}

func bitAt(p []byte, i int) uint8 {
	return (p[i/8] >> (7 - i%8)) & 1
}
