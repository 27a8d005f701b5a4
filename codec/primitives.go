package codec

import (
	"fmt"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// ---- BOOLEAN ----

type booleanCodec struct{}

// Boolean returns the BOOLEAN codec: a single bit, 0 false, 1 true.
func Boolean() Codec { return booleanCodec{} }

func (booleanCodec) Kind() goper.Kind { return goper.KindBoolean }

func (booleanCodec) Encode(buf *bitio.Buffer, v any) error {
	b, ok := v.(bool)
	if !ok {
		return constraintViolation(fmt.Sprintf("expected bool, got %T", v), nil)
	}
	if b {
		buf.WriteBit(1)
	} else {
		buf.WriteBit(0)
	}
	return nil
}

func (booleanCodec) Decode(buf *bitio.Buffer) (any, error) {
	bit, err := buf.ReadBit()
	if err != nil {
		return nil, err
	}
	return bit == 1, nil
}

func (c booleanCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, c.Kind(), func() (any, error) { return c.Decode(buf) })
}

// ---- NULL ----

type nullCodec struct{}

// Null returns the NULL codec: zero bits, unit value.
func Null() Codec { return nullCodec{} }

func (nullCodec) Kind() goper.Kind { return goper.KindNull }

func (nullCodec) Encode(buf *bitio.Buffer, v any) error {
	if v != nil {
		return constraintViolation(fmt.Sprintf("expected nil, got %T", v), nil)
	}
	return nil
}

func (nullCodec) Decode(buf *bitio.Buffer) (any, error) { return nil, nil }

func (c nullCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, c.Kind(), func() (any, error) { return c.Decode(buf) })
}

// ---- INTEGER ----

// IntConstraint selects one of the four integer shapes: constrained (both
// bounds), semi-constrained (Min only), unconstrained (neither), each
// optionally Extensible. Values are int64 end to end.
type IntConstraint struct {
	Min        *int64
	Max        *int64
	Extensible bool
}

// IntRange returns a (lo..hi) constraint.
func IntRange(lo, hi int64) IntConstraint { return IntConstraint{Min: &lo, Max: &hi} }

// IntMin returns a semi-constrained (lo..MAX) constraint.
func IntMin(lo int64) IntConstraint { return IntConstraint{Min: &lo} }

type integerCodec struct {
	c IntConstraint
}

// Integer returns an INTEGER codec for the given constraint. Min must not
// exceed Max when both are present.
func Integer(c IntConstraint) Codec {
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		panic(fmt.Sprintf("codec: integer constraint min %d > max %d", *c.Min, *c.Max))
	}
	return integerCodec{c: c}
}

func (integerCodec) Kind() goper.Kind { return goper.KindInteger }

func (ic integerCodec) inRoot(v int64) bool {
	switch {
	case ic.c.Min != nil && ic.c.Max != nil:
		return v >= *ic.c.Min && v <= *ic.c.Max
	case ic.c.Min != nil:
		return v >= *ic.c.Min
	default:
		return true
	}
}

func (ic integerCodec) Encode(buf *bitio.Buffer, v any) error {
	n, ok := toInt64(v)
	if !ok {
		return constraintViolation(fmt.Sprintf("expected integer, got %T", v), nil)
	}
	if ic.c.Extensible {
		if ic.inRoot(n) {
			buf.WriteBit(0)
		} else {
			buf.WriteBit(1)
			return encodeUnconstrainedWhole(buf, n)
		}
	}
	switch {
	case ic.c.Min != nil && ic.c.Max != nil:
		return encodeConstrainedWhole(buf, n, *ic.c.Min, *ic.c.Max)
	case ic.c.Min != nil:
		return encodeSemiConstrainedWhole(buf, n, *ic.c.Min)
	default:
		return encodeUnconstrainedWhole(buf, n)
	}
}

func (ic integerCodec) Decode(buf *bitio.Buffer) (any, error) {
	if ic.c.Extensible {
		ext, err := buf.ReadBit()
		if err != nil {
			return nil, err
		}
		if ext == 1 {
			return decodeUnconstrainedWhole(buf)
		}
	}
	switch {
	case ic.c.Min != nil && ic.c.Max != nil:
		return decodeConstrainedWhole(buf, *ic.c.Min, *ic.c.Max)
	case ic.c.Min != nil:
		return decodeSemiConstrainedWhole(buf, *ic.c.Min)
	default:
		return decodeUnconstrainedWhole(buf)
	}
}

func (ic integerCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, ic.Kind(), func() (any, error) { return ic.Decode(buf) })
}

// ---- ENUMERATED ----

type enumeratedCodec struct {
	root       []string
	ext        []string
	extensible bool
	rootIndex  map[string]int
	extIndex   map[string]int
}

// Enumerated returns an ENUMERATED codec. Root values are numbered
// 0..len(root)-1 in declaration order; ext names decode from the extension
// set. root must be non-empty.
func Enumerated(root, ext []string, extensible bool) Codec {
	if len(root) == 0 {
		panic("codec: enumerated requires at least one root value")
	}
	ec := enumeratedCodec{
		root:       root,
		ext:        ext,
		extensible: extensible || len(ext) > 0,
		rootIndex:  make(map[string]int, len(root)),
		extIndex:   make(map[string]int, len(ext)),
	}
	for i, name := range root {
		ec.rootIndex[name] = i
	}
	for i, name := range ext {
		ec.extIndex[name] = i
	}
	return ec
}

func (enumeratedCodec) Kind() goper.Kind { return goper.KindEnumerated }

func (ec enumeratedCodec) Encode(buf *bitio.Buffer, v any) error {
	name, ok := v.(string)
	if !ok {
		return constraintViolation(fmt.Sprintf("expected enumerated identifier, got %T", v), nil)
	}
	if idx, ok := ec.rootIndex[name]; ok {
		if ec.extensible {
			buf.WriteBit(0)
		}
		return encodeConstrainedWhole(buf, int64(idx), 0, int64(len(ec.root)-1))
	}
	if idx, ok := ec.extIndex[name]; ok {
		buf.WriteBit(1)
		return encodeNormallySmallNonNegative(buf, uint64(idx))
	}
	return constraintViolation("unknown enumerated identifier", map[string]any{"got": name})
}

func (ec enumeratedCodec) Decode(buf *bitio.Buffer) (any, error) {
	if ec.extensible {
		ext, err := buf.ReadBit()
		if err != nil {
			return nil, err
		}
		if ext == 1 {
			idx, err := decodeNormallySmallNonNegative(buf)
			if err != nil {
				return nil, err
			}
			if idx >= uint64(len(ec.ext)) {
				return nil, constraintViolation("unknown enumerated extension index", map[string]any{"index": idx})
			}
			return ec.ext[idx], nil
		}
	}
	idx, err := decodeConstrainedWhole(buf, 0, int64(len(ec.root)-1))
	if err != nil {
		return nil, err
	}
	return ec.root[idx], nil
}

func (ec enumeratedCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, ec.Kind(), func() (any, error) { return ec.Decode(buf) })
}
