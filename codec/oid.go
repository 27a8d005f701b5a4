package codec

import (
	"fmt"
	"math"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

type oidCodec struct{}

// ObjectIdentifier returns the OBJECT IDENTIFIER codec: the canonical BER
// arc encoding carried as an unconstrained octet string. The first arc must
// be 0, 1 or 2 and, when the first arc is 0 or 1, the second must be in
// [0,39].
func ObjectIdentifier() Codec { return oidCodec{} }

func (oidCodec) Kind() goper.Kind { return goper.KindObjectIdentifier }

func (oc oidCodec) Encode(buf *bitio.Buffer, v any) error {
	var oid goper.OID
	switch t := v.(type) {
	case goper.OID:
		oid = t
	case []uint64:
		oid = t
	default:
		return constraintViolation(fmt.Sprintf("expected object identifier, got %T", v), nil)
	}
	if len(oid) < 2 {
		return constraintViolation("object identifier requires at least two arcs", map[string]any{"arcs": len(oid)})
	}
	if oid[0] > 2 {
		return constraintViolation("first arc must be 0, 1 or 2", map[string]any{"got": oid[0]})
	}
	if oid[0] < 2 && oid[1] > 39 {
		return constraintViolation("second arc must be in [0,39] under first arc 0 or 1", map[string]any{"got": oid[1]})
	}
	if oid[0] == 2 && oid[1] > math.MaxUint64-80 {
		return constraintViolation("second arc overflows", map[string]any{"got": oid[1]})
	}
	content := appendBase128(nil, 40*oid[0]+oid[1])
	for _, arc := range oid[2:] {
		content = appendBase128(content, arc)
	}
	return encodeSized(buf, Unbounded, uint64(len(content)), func(from, to uint64) error {
		buf.WriteOctets(content[from:to])
		return nil
	})
}

func appendBase128(dst []byte, v uint64) []byte {
	n := 1
	for t := v; t >= 0x80; t >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(uint(i)*7)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

func (oc oidCodec) Decode(buf *bitio.Buffer) (any, error) {
	content := []byte{}
	_, err := decodeSized(buf, Unbounded, func(count uint64) error {
		chunk, err := buf.ReadOctets(int(count))
		if err != nil {
			return err
		}
		content = append(content, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, wireError("empty object identifier", nil)
	}
	var oid goper.OID
	var acc uint64
	var inArc bool
	for i, b := range content {
		if !inArc && b == 0x80 {
			return nil, wireError("non-minimal base-128 arc", map[string]any{"offset": i})
		}
		if acc>>(64-7) != 0 {
			return nil, wireError("object identifier arc overflows", map[string]any{"offset": i})
		}
		acc = acc<<7 | uint64(b&0x7F)
		inArc = b&0x80 != 0
		if !inArc {
			if len(oid) == 0 {
				switch {
				case acc < 40:
					oid = append(oid, 0, acc)
				case acc < 80:
					oid = append(oid, 1, acc-40)
				default:
					oid = append(oid, 2, acc-80)
				}
			} else {
				oid = append(oid, acc)
			}
			acc = 0
		}
	}
	if inArc {
		return nil, wireError("truncated base-128 arc", nil)
	}
	return oid, nil
}

func (oc oidCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, oc.Kind(), func() (any, error) { return oc.Decode(buf) })
}
