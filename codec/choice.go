package codec

import (
	"fmt"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// Alternative describes one CHOICE branch.
type Alternative struct {
	Name  string
	Codec Codec
}

type choiceCodec struct {
	alts       []Alternative
	extAlts    []Alternative
	extensible bool
	rootIndex  map[string]int
	extIndex   map[string]int
}

// Choice returns a CHOICE codec over goper.Chosen values. extAlts are the
// extension alternatives; a non-empty list implies extensible. Unknown
// extension alternatives decode to Chosen{Key: goper.UnknownAlternative,
// Value: []byte} carrying the raw open-type payload; they cannot be
// re-encoded.
func Choice(alts, extAlts []Alternative, extensible bool) Codec {
	if len(alts) == 0 {
		panic("codec: choice requires at least one root alternative")
	}
	cc := choiceCodec{
		alts:       alts,
		extAlts:    extAlts,
		extensible: extensible || len(extAlts) > 0,
		rootIndex:  make(map[string]int, len(alts)),
		extIndex:   make(map[string]int, len(extAlts)),
	}
	for i, a := range alts {
		cc.rootIndex[a.Name] = i
	}
	for i, a := range extAlts {
		cc.extIndex[a.Name] = i
	}
	return cc
}

func (choiceCodec) Kind() goper.Kind { return goper.KindChoice }

func (cc choiceCodec) Encode(buf *bitio.Buffer, v any) error {
	ch, ok := v.(goper.Chosen)
	if !ok {
		if p, isPtr := v.(*goper.Chosen); isPtr {
			ch = *p
		} else {
			return constraintViolation(fmt.Sprintf("expected chosen alternative, got %T", v), nil)
		}
	}
	if idx, ok := cc.rootIndex[ch.Key]; ok {
		if cc.extensible {
			buf.WriteBit(0)
		}
		if err := encodeConstrainedWhole(buf, int64(idx), 0, int64(len(cc.alts)-1)); err != nil {
			return err
		}
		if err := cc.alts[idx].Codec.Encode(buf, ch.Value); err != nil {
			return goper.PrefixPath(err, "/"+ch.Key)
		}
		return nil
	}
	if idx, ok := cc.extIndex[ch.Key]; ok {
		buf.WriteBit(1)
		if err := encodeNormallySmallNonNegative(buf, uint64(idx)); err != nil {
			return err
		}
		if err := encodeOpen(buf, cc.extAlts[idx].Codec, ch.Value); err != nil {
			return goper.PrefixPath(err, "/"+ch.Key)
		}
		return nil
	}
	return constraintViolation("unknown choice alternative", map[string]any{"got": ch.Key})
}

func (cc choiceCodec) Decode(buf *bitio.Buffer) (any, error) {
	node, err := cc.DecodeWithMeta(buf)
	if err != nil {
		return nil, err
	}
	return goper.StripMetadata(node), nil
}

func (cc choiceCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	start := buf.Pos()
	inExt := false
	if cc.extensible {
		bit, err := buf.ReadBit()
		if err != nil {
			return nil, err
		}
		inExt = bit == 1
	}

	var value goper.Chosen
	if !inExt {
		idx, err := decodeConstrainedWhole(buf, 0, int64(len(cc.alts)-1))
		if err != nil {
			return nil, err
		}
		alt := cc.alts[idx]
		child, err := alt.Codec.DecodeWithMeta(buf)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+alt.Name)
		}
		value = goper.Chosen{Key: alt.Name, Value: child}
	} else {
		idx, err := decodeNormallySmallNonNegative(buf)
		if err != nil {
			return nil, err
		}
		if idx < uint64(len(cc.extAlts)) {
			alt := cc.extAlts[idx]
			child, err := decodeOpenWithMeta(buf, alt.Codec)
			if err != nil {
				return nil, goper.PrefixPath(err, "/"+alt.Name)
			}
			value = goper.Chosen{Key: alt.Name, Value: child}
		} else {
			raw, err := decodeOpenBytes(buf)
			if err != nil {
				return nil, err
			}
			value = goper.Chosen{Key: goper.UnknownAlternative, Value: raw}
		}
	}

	end := buf.Pos()
	raw, err := buf.Extract(start, end-start)
	if err != nil {
		return nil, err
	}
	return &goper.Decoded{
		Value:    value,
		Presence: goper.PresenceSeen,
		Meta:     goper.Meta{Kind: goper.KindChoice, BitOffset: start, BitLength: end - start, Raw: raw},
	}, nil
}
