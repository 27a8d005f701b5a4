package codec

import (
	"math"
	"math/bits"

	"github.com/reoring/goper/bitio"
)

// PER-unaligned length determinants (X.691 clause 11.9): a short form for
// 0..127, a long form for 128..16383, and a fragmented form that carries
// 16K/32K/48K/64K items per fragment for anything larger. Fragment chunks
// count items: bits for bit strings, bytes for octet strings and open
// types, characters for character strings, elements for sequence-of.

const (
	lenSmallMax    = 127
	lenLongMax     = 16383
	fragmentUnit   = 16384
	fragmentGroups = 4
)

// writeLengthChunk writes one non-fragment length determinant for n, which
// must be at most 16383.
func writeLengthChunk(buf *bitio.Buffer, n uint64) {
	if n <= lenSmallMax {
		buf.WriteBits(n, 8)
		return
	}
	buf.WriteBits(0x8000|n, 16)
}

// encodeLength writes the length determinant for total items, invoking emit
// for each covered span as soon as its count is framed. emit(from, to)
// appends items [from, to) to the stream.
func encodeLength(buf *bitio.Buffer, total uint64, emit func(from, to uint64) error) error {
	var done uint64
	remaining := total
	for remaining >= fragmentUnit {
		m := remaining / fragmentUnit
		if m > fragmentGroups {
			m = fragmentGroups
		}
		buf.WriteBits(0xC0|m, 8)
		n := m * fragmentUnit
		if err := emit(done, done+n); err != nil {
			return err
		}
		done += n
		remaining -= n
	}
	writeLengthChunk(buf, remaining)
	return emit(done, done+remaining)
}

// decodeLength reads a length determinant, invoking consume for each
// framed count as soon as it is known, and returns the total item count.
func decodeLength(buf *bitio.Buffer, consume func(n uint64) error) (uint64, error) {
	var total uint64
	for {
		b, err := buf.ReadBits(8)
		if err != nil {
			return 0, err
		}
		switch {
		case b&0x80 == 0: // 0vvvvvvv
			total += b
			return total, consume(b)
		case b&0x40 == 0: // 10vvvvvv vvvvvvvv
			lo, err := buf.ReadBits(8)
			if err != nil {
				return 0, err
			}
			n := (b&0x3F)<<8 | lo
			total += n
			return total, consume(n)
		default: // 11000mmm fragment
			m := b & 0x3F
			if m < 1 || m > fragmentGroups {
				return 0, wireError("reserved length determinant fragment", map[string]any{"byte": b})
			}
			n := m * fragmentUnit
			total += n
			if err := consume(n); err != nil {
				return 0, err
			}
		}
	}
}

// encodeNormallySmallNonNegative writes a normally-small non-negative whole
// number (X.691 clause 11.6): favored encoding for extension indexes.
func encodeNormallySmallNonNegative(buf *bitio.Buffer, n uint64) error {
	if n <= 63 {
		buf.WriteBit(0)
		buf.WriteBits(n, 6)
		return nil
	}
	buf.WriteBit(1)
	octets := minOctetsUnsigned(n)
	return encodeLength(buf, uint64(octets), func(from, to uint64) error {
		writeUnsignedOctets(buf, n, octets)
		return nil
	})
}

func decodeNormallySmallNonNegative(buf *bitio.Buffer) (uint64, error) {
	flag, err := buf.ReadBit()
	if err != nil {
		return 0, err
	}
	if flag == 0 {
		return buf.ReadBits(6)
	}
	var out uint64
	var read uint64
	_, err = decodeLength(buf, func(n uint64) error {
		if read+n > 8 {
			return wireError("integer exceeds supported width", map[string]any{"octets": read + n})
		}
		for i := uint64(0); i < n; i++ {
			b, err := buf.ReadBits(8)
			if err != nil {
				return err
			}
			out = out<<8 | b
		}
		read += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// encodeNormallySmallLength writes the extension-addition count of a
// sequence (X.691 clause 11.9.3.4): n-1 in six bits when n is at most 64,
// otherwise a flag bit and a full length determinant.
func encodeNormallySmallLength(buf *bitio.Buffer, n uint64) error {
	if n == 0 {
		return constraintViolation("normally-small length requires n >= 1", nil)
	}
	if n <= 64 {
		buf.WriteBit(0)
		buf.WriteBits(n-1, 6)
		return nil
	}
	buf.WriteBit(1)
	return encodeLength(buf, n, func(from, to uint64) error { return nil })
}

func decodeNormallySmallLength(buf *bitio.Buffer) (uint64, error) {
	flag, err := buf.ReadBit()
	if err != nil {
		return 0, err
	}
	if flag == 0 {
		v, err := buf.ReadBits(6)
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	}
	return decodeLength(buf, func(n uint64) error { return nil })
}

// widthOf returns the number of bits needed for offsets 0..rangeMinus1.
func widthOf(rangeMinus1 uint64) uint8 {
	if rangeMinus1 == 0 {
		return 0
	}
	return uint8(bits.Len64(rangeMinus1))
}

// minOctetsUnsigned returns the minimum octet count for a non-negative
// binary integer encoding (at least 1).
func minOctetsUnsigned(u uint64) int {
	if u == 0 {
		return 1
	}
	return (bits.Len64(u) + 7) / 8
}

// minOctetsSigned returns the minimum octet count for a two's-complement
// binary integer encoding (at least 1).
func minOctetsSigned(v int64) int {
	n := 1
	if v > 0 {
		n = bits.Len64(uint64(v)) + 1
	} else if v < 0 {
		n = bits.Len64(uint64(^v)) + 1
	}
	return (n + 7) / 8
}

func writeUnsignedOctets(buf *bitio.Buffer, u uint64, octets int) {
	buf.WriteBits(u, uint8(octets)*8)
}

// readUnsignedOctets reads an n-octet non-negative binary integer; n must
// be at most 8.
func readUnsignedOctets(buf *bitio.Buffer, n uint64) (uint64, error) {
	if n == 0 || n > 8 {
		return 0, wireError("integer exceeds supported width", map[string]any{"octets": n})
	}
	return buf.ReadBits(uint8(n) * 8)
}

// readSignedOctets reads an n-octet two's-complement binary integer; n must
// be at most 8.
func readSignedOctets(buf *bitio.Buffer, n uint64) (int64, error) {
	u, err := readUnsignedOctets(buf, n)
	if err != nil {
		return 0, err
	}
	width := n * 8
	if width < 64 && u>>(width-1)&1 == 1 {
		u |= ^uint64(0) << width
	}
	return int64(u), nil
}

// addUnsigned returns lb+u as int64, rejecting results outside the int64
// window.
func addUnsigned(lb int64, u uint64) (int64, error) {
	var limit uint64
	if lb >= 0 {
		limit = uint64(math.MaxInt64) - uint64(lb)
	} else {
		limit = uint64(math.MaxInt64) + (uint64(-(lb + 1)) + 1)
	}
	if u > limit {
		return 0, wireError("integer exceeds supported width", map[string]any{"offset": u})
	}
	return int64(uint64(lb) + u), nil
}

// encodeConstrainedWhole writes v - lb in the minimum bit width for the
// range [lb, ub]; a range of one writes nothing.
func encodeConstrainedWhole(buf *bitio.Buffer, v, lb, ub int64) error {
	if v < lb || v > ub {
		return constraintViolation("integer out of range", map[string]any{"min": lb, "max": ub, "got": v})
	}
	r1 := uint64(ub) - uint64(lb)
	if r1 == 0 {
		return nil
	}
	buf.WriteBits(uint64(v)-uint64(lb), widthOf(r1))
	return nil
}

func decodeConstrainedWhole(buf *bitio.Buffer, lb, ub int64) (int64, error) {
	r1 := uint64(ub) - uint64(lb)
	if r1 == 0 {
		return lb, nil
	}
	off, err := buf.ReadBits(widthOf(r1))
	if err != nil {
		return 0, err
	}
	if off > r1 {
		return 0, wireError("constrained integer offset exceeds range", map[string]any{"offset": off})
	}
	return int64(uint64(lb) + off), nil
}

// encodeSemiConstrainedWhole writes v - lb as a length determinant plus a
// minimal non-negative binary integer.
func encodeSemiConstrainedWhole(buf *bitio.Buffer, v, lb int64) error {
	if v < lb {
		return constraintViolation("integer below lower bound", map[string]any{"min": lb, "got": v})
	}
	u := uint64(v) - uint64(lb)
	octets := minOctetsUnsigned(u)
	return encodeLength(buf, uint64(octets), func(from, to uint64) error {
		writeUnsignedOctets(buf, u, octets)
		return nil
	})
}

func decodeSemiConstrainedWhole(buf *bitio.Buffer, lb int64) (int64, error) {
	var u uint64
	var read uint64
	_, err := decodeLength(buf, func(n uint64) error {
		if n == 0 {
			return wireError("zero-length integer", nil)
		}
		if read+n > 8 {
			return wireError("integer exceeds supported width", map[string]any{"octets": read + n})
		}
		v, err := readUnsignedOctets(buf, n)
		if err != nil {
			return err
		}
		u = u<<(n*8) | v
		read += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, wireError("zero-length integer", nil)
	}
	return addUnsigned(lb, u)
}

// encodeUnconstrainedWhole writes a length determinant plus a minimal
// two's-complement binary integer.
func encodeUnconstrainedWhole(buf *bitio.Buffer, v int64) error {
	octets := minOctetsSigned(v)
	return encodeLength(buf, uint64(octets), func(from, to uint64) error {
		buf.WriteBits(uint64(v), uint8(octets)*8)
		return nil
	})
}

func decodeUnconstrainedWhole(buf *bitio.Buffer) (int64, error) {
	var out int64
	var read uint64
	_, err := decodeLength(buf, func(n uint64) error {
		if n == 0 {
			return wireError("zero-length integer", nil)
		}
		if read != 0 || n > 8 {
			return wireError("integer exceeds supported width", map[string]any{"octets": read + n})
		}
		v, err := readSignedOctets(buf, n)
		if err != nil {
			return err
		}
		out = v
		read = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, wireError("zero-length integer", nil)
	}
	return out, nil
}
