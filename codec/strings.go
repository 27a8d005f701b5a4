package codec

import (
	"fmt"
	"math/bits"
	"unicode/utf8"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// ---- BIT STRING ----

type bitStringCodec struct {
	sc SizeConstraint
}

// BitString returns a BIT STRING codec; the size constraint counts bits.
func BitString(sc SizeConstraint) Codec { return bitStringCodec{sc: sc} }

func (bitStringCodec) Kind() goper.Kind { return goper.KindBitString }

func (bc bitStringCodec) Encode(buf *bitio.Buffer, v any) error {
	var bs goper.BitString
	switch t := v.(type) {
	case goper.BitString:
		bs = t
	case *goper.BitString:
		bs = *t
	default:
		return constraintViolation(fmt.Sprintf("expected bit string, got %T", v), nil)
	}
	if bs.BitLength < 0 || len(bs.Bytes)*8 < bs.BitLength {
		return constraintViolation("bit length exceeds buffer", map[string]any{"bitLength": bs.BitLength, "bytes": len(bs.Bytes)})
	}
	return encodeSized(buf, bc.sc, uint64(bs.BitLength), func(from, to uint64) error {
		for i := from; i < to; i++ {
			buf.WriteBit(bitAt(bs.Bytes, int(i)))
		}
		return nil
	})
}

func (bc bitStringCodec) Decode(buf *bitio.Buffer) (any, error) {
	var out []byte
	var n int
	_, err := decodeSized(buf, bc.sc, func(count uint64) error {
		for i := uint64(0); i < count; i++ {
			bit, err := buf.ReadBit()
			if err != nil {
				return err
			}
			if n%8 == 0 {
				out = append(out, 0)
			}
			if bit != 0 {
				out[n/8] |= 0x80 >> (n % 8)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goper.BitString{Bytes: out, BitLength: n}, nil
}

func (bc bitStringCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, bc.Kind(), func() (any, error) { return bc.Decode(buf) })
}

// ---- OCTET STRING ----

type octetStringCodec struct {
	sc SizeConstraint
}

// OctetString returns an OCTET STRING codec; the size constraint counts
// bytes. Because this is unaligned PER no padding is inserted.
func OctetString(sc SizeConstraint) Codec { return octetStringCodec{sc: sc} }

func (octetStringCodec) Kind() goper.Kind { return goper.KindOctetString }

func (oc octetStringCodec) Encode(buf *bitio.Buffer, v any) error {
	var b []byte
	switch t := v.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return constraintViolation(fmt.Sprintf("expected octet string, got %T", v), nil)
	}
	return encodeSized(buf, oc.sc, uint64(len(b)), func(from, to uint64) error {
		buf.WriteOctets(b[from:to])
		return nil
	})
}

func (oc octetStringCodec) Decode(buf *bitio.Buffer) (any, error) {
	out := []byte{}
	_, err := decodeSized(buf, oc.sc, func(count uint64) error {
		chunk, err := buf.ReadOctets(int(count))
		if err != nil {
			return err
		}
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (oc octetStringCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, oc.Kind(), func() (any, error) { return oc.Decode(buf) })
}

// ---- Character strings ----

// StringType selects the character subset and per-character width of a
// restricted character string codec.
type StringType int

const (
	// IA5String carries 7-bit code points 0..127.
	IA5String StringType = iota
	// VisibleString carries the printable subset 0x20..0x7E in 7 bits.
	VisibleString
	// UTF8String is byte-length-framed UTF-8 with no per-character
	// compaction; the size constraint counts bytes.
	UTF8String
)

func (st StringType) String() string {
	switch st {
	case IA5String:
		return "IA5String"
	case VisibleString:
		return "VisibleString"
	case UTF8String:
		return "UTF8String"
	}
	return fmt.Sprintf("StringType(%d)", int(st))
}

type charStringCodec struct {
	st StringType
	sc SizeConstraint
	// alphabet tables, derived once at construction: code maps a rune to
	// its index, runes maps an index back. Nil for the built-in subsets.
	code  map[rune]uint64
	runes []rune
	width uint8
}

// String returns a character-string codec for one of the built-in subsets.
func String(st StringType, sc SizeConstraint) Codec {
	return charStringCodec{st: st, sc: sc, width: 7}
}

// StringAlphabet returns a codec for a string restricted to the given
// permitted alphabet; each character encodes as its index into alphabet in
// ceil(log2(len)) bits. alphabet must be non-empty.
func StringAlphabet(alphabet string, sc SizeConstraint) Codec {
	runes := []rune(alphabet)
	if len(runes) == 0 {
		panic("codec: empty permitted alphabet")
	}
	code := make(map[rune]uint64, len(runes))
	for i, r := range runes {
		if _, dup := code[r]; !dup {
			code[r] = uint64(i)
		}
	}
	var width uint8
	if len(runes) > 1 {
		width = uint8(bits.Len64(uint64(len(runes) - 1)))
	}
	return charStringCodec{st: IA5String, sc: sc, code: code, runes: runes, width: width}
}

func (charStringCodec) Kind() goper.Kind { return goper.KindString }

func (cc charStringCodec) Encode(buf *bitio.Buffer, v any) error {
	s, ok := v.(string)
	if !ok {
		return constraintViolation(fmt.Sprintf("expected string, got %T", v), nil)
	}
	if cc.st == UTF8String && cc.code == nil {
		b := []byte(s)
		return encodeSized(buf, cc.sc, uint64(len(b)), func(from, to uint64) error {
			buf.WriteOctets(b[from:to])
			return nil
		})
	}
	chars := []rune(s)
	codes := make([]uint64, len(chars))
	for i, r := range chars {
		c, err := cc.codeOf(r)
		if err != nil {
			return err
		}
		codes[i] = c
	}
	return encodeSized(buf, cc.sc, uint64(len(codes)), func(from, to uint64) error {
		for i := from; i < to; i++ {
			buf.WriteBits(codes[i], cc.width)
		}
		return nil
	})
}

func (cc charStringCodec) codeOf(r rune) (uint64, error) {
	if cc.code != nil {
		c, ok := cc.code[r]
		if !ok {
			return 0, constraintViolation("character outside permitted alphabet", map[string]any{"char": string(r)})
		}
		return c, nil
	}
	switch cc.st {
	case VisibleString:
		if r < 0x20 || r > 0x7E {
			return 0, constraintViolation("character outside VisibleString range", map[string]any{"char": string(r)})
		}
	default: // IA5String
		if r > 0x7F {
			return 0, constraintViolation("character outside IA5String range", map[string]any{"char": string(r)})
		}
	}
	return uint64(r), nil
}

func (cc charStringCodec) runeOf(c uint64) (rune, error) {
	if cc.runes != nil {
		if c >= uint64(len(cc.runes)) {
			return 0, constraintViolation("character index outside permitted alphabet", map[string]any{"index": c})
		}
		return cc.runes[c], nil
	}
	r := rune(c)
	if cc.st == VisibleString && (r < 0x20 || r > 0x7E) {
		return 0, constraintViolation("character outside VisibleString range", map[string]any{"code": c})
	}
	return r, nil
}

func (cc charStringCodec) Decode(buf *bitio.Buffer) (any, error) {
	if cc.st == UTF8String && cc.code == nil {
		raw := []byte{}
		_, err := decodeSized(buf, cc.sc, func(count uint64) error {
			chunk, err := buf.ReadOctets(int(count))
			if err != nil {
				return err
			}
			raw = append(raw, chunk...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, wireError("invalid UTF-8 payload", nil)
		}
		return string(raw), nil
	}
	var out []rune
	_, err := decodeSized(buf, cc.sc, func(count uint64) error {
		for i := uint64(0); i < count; i++ {
			c, err := buf.ReadBits(cc.width)
			if err != nil {
				return err
			}
			r, err := cc.runeOf(c)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func (cc charStringCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	return bracket(buf, cc.Kind(), func() (any, error) { return cc.Decode(buf) })
}
