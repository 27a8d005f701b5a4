package codec

import (
	"fmt"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// Field describes one SEQUENCE member. Default non-nil implies the field
// may be elided: it is marked absent on encode whenever the supplied value
// equals the default, and the default is reinstated on decode.
type Field struct {
	Name     string
	Codec    Codec
	Optional bool
	Default  any
}

func (f Field) omittable() bool { return f.Optional || f.Default != nil }

type sequenceCodec struct {
	fields     []Field
	extFields  []Field
	extensible bool
	index      map[string]int // name -> position across root then extensions
}

// Sequence returns a SEQUENCE codec over map[string]any values. extFields
// are the extension additions; a non-empty list implies extensible.
func Sequence(fields, extFields []Field, extensible bool) Codec {
	sc := sequenceCodec{
		fields:     fields,
		extFields:  extFields,
		extensible: extensible || len(extFields) > 0,
		index:      make(map[string]int, len(fields)+len(extFields)),
	}
	for i, f := range fields {
		sc.index[f.Name] = i
	}
	for i, f := range extFields {
		sc.index[f.Name] = len(fields) + i
	}
	return sc
}

func (sequenceCodec) Kind() goper.Kind { return goper.KindSequence }

func (sc sequenceCodec) Encode(buf *bitio.Buffer, v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return constraintViolation(fmt.Sprintf("expected map for sequence, got %T", v), nil)
	}
	for name := range m {
		if _, ok := sc.index[name]; !ok {
			return constraintViolation("unknown sequence field", map[string]any{"got": name})
		}
	}

	// Which extension fields are carried?
	extPresent := false
	for _, f := range sc.extFields {
		if _, ok := m[f.Name]; ok {
			extPresent = true
			break
		}
	}
	if sc.extensible {
		if extPresent {
			buf.WriteBit(1)
		} else {
			buf.WriteBit(0)
		}
	} else if extPresent {
		return constraintViolation("extension field on a non-extensible sequence", nil)
	}

	// Root preamble: one bit per OPTIONAL/DEFAULT field. A DEFAULT field
	// whose supplied value equals the default is elided.
	encodeField := make([]bool, len(sc.fields))
	for i, f := range sc.fields {
		val, ok := m[f.Name]
		switch {
		case f.Default != nil:
			encodeField[i] = ok && !valueEqual(val, f.Default)
		case f.Optional:
			encodeField[i] = ok
		default:
			if !ok {
				return constraintViolation("missing mandatory field", map[string]any{"field": f.Name})
			}
			encodeField[i] = true
		}
		if f.omittable() {
			if encodeField[i] {
				buf.WriteBit(1)
			} else {
				buf.WriteBit(0)
			}
		}
	}

	for i, f := range sc.fields {
		if !encodeField[i] {
			continue
		}
		if err := f.Codec.Encode(buf, m[f.Name]); err != nil {
			return goper.PrefixPath(err, "/"+f.Name)
		}
	}

	if !extPresent {
		return nil
	}
	// Normally-small slot count, presence bitmap, then each present
	// extension wrapped as an open type.
	k := uint64(len(sc.extFields))
	if err := encodeNormallySmallLength(buf, k); err != nil {
		return err
	}
	present := make([]bool, len(sc.extFields))
	for i, f := range sc.extFields {
		_, present[i] = m[f.Name]
		if present[i] {
			buf.WriteBit(1)
		} else {
			buf.WriteBit(0)
		}
	}
	for i, f := range sc.extFields {
		if !present[i] {
			continue
		}
		if err := encodeOpen(buf, f.Codec, m[f.Name]); err != nil {
			return goper.PrefixPath(err, "/"+f.Name)
		}
	}
	return nil
}

func (sc sequenceCodec) Decode(buf *bitio.Buffer) (any, error) {
	node, err := sc.DecodeWithMeta(buf)
	if err != nil {
		return nil, err
	}
	return goper.StripMetadata(node), nil
}

func (sc sequenceCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	start := buf.Pos()
	extPresent := false
	if sc.extensible {
		bit, err := buf.ReadBit()
		if err != nil {
			return nil, err
		}
		extPresent = bit == 1
	}

	preamble := make([]bool, len(sc.fields))
	for i, f := range sc.fields {
		if !f.omittable() {
			preamble[i] = true
			continue
		}
		bit, err := buf.ReadBit()
		if err != nil {
			return nil, err
		}
		preamble[i] = bit == 1
	}

	children := make(map[string]*goper.Decoded, len(sc.fields)+len(sc.extFields))
	for i, f := range sc.fields {
		if preamble[i] {
			child, err := f.Codec.DecodeWithMeta(buf)
			if err != nil {
				return nil, goper.PrefixPath(err, "/"+f.Name)
			}
			children[f.Name] = child
			continue
		}
		children[f.Name] = sc.absentNode(f, buf.Pos())
	}

	if extPresent {
		k, err := decodeNormallySmallLength(buf)
		if err != nil {
			return nil, err
		}
		bitmap := make([]bool, k)
		for i := range bitmap {
			bit, err := buf.ReadBit()
			if err != nil {
				return nil, err
			}
			bitmap[i] = bit == 1
		}
		for i := uint64(0); i < k; i++ {
			if i < uint64(len(sc.extFields)) {
				f := sc.extFields[i]
				if bitmap[i] {
					child, err := decodeOpenWithMeta(buf, f.Codec)
					if err != nil {
						return nil, goper.PrefixPath(err, "/"+f.Name)
					}
					children[f.Name] = child
				} else {
					children[f.Name] = sc.absentNode(f, buf.Pos())
				}
				continue
			}
			// Unknown addition: skip its open-type frame.
			if bitmap[i] {
				if _, err := decodeOpenBytes(buf); err != nil {
					return nil, err
				}
			}
		}
		for i := k; i < uint64(len(sc.extFields)); i++ {
			f := sc.extFields[i]
			children[f.Name] = sc.absentNode(f, buf.Pos())
		}
	} else {
		for _, f := range sc.extFields {
			children[f.Name] = sc.absentNode(f, buf.Pos())
		}
	}

	end := buf.Pos()
	raw, err := buf.Extract(start, end-start)
	if err != nil {
		return nil, err
	}
	return &goper.Decoded{
		Value:    children,
		Presence: goper.PresenceSeen,
		Meta:     goper.Meta{Kind: goper.KindSequence, BitOffset: start, BitLength: end - start, Raw: raw},
	}, nil
}

// absentNode records a declared field that did not appear on the wire:
// zero span, and the default value (flagged) when one exists.
func (sc sequenceCodec) absentNode(f Field, pos uint64) *goper.Decoded {
	node := &goper.Decoded{
		Meta: goper.Meta{Kind: f.Codec.Kind(), BitOffset: pos, BitLength: 0, Raw: []byte{}},
	}
	if f.Default != nil {
		node.Value = f.Default
		node.Presence = goper.PresenceDefaultApplied
	}
	return node
}
