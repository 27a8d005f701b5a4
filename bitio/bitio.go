// Package bitio implements the bit-addressed buffer underlying the
// PER-unaligned codecs: sub-byte appends and reads with MSB-first ordering
// (bit 7 of byte 0 is the first bit of the stream) and overrun detection.
//
// A Buffer carries two interleaved positions: the logical bit length (total
// bits written, used on encode) and a read cursor (bits consumed, used on
// decode). The read cursor never exceeds the bit length; reads past the end
// fail with a buffer_underrun issue. Unused trailing bits of the final byte
// are kept zero so Bytes is deterministic.
//
// Buffers are ephemeral per operation and not safe for concurrent use.
package bitio

import (
	"fmt"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/i18n"
)

// Buffer is a growable bit stream.
type Buffer struct {
	data []byte
	// lenBits is the logical bit length: total bits written so far.
	lenBits uint64
	// pos is the read cursor in bits.
	pos uint64
}

// New returns an empty Buffer for writing.
func New() *Buffer {
	return &Buffer{data: make([]byte, 0, 64)}
}

// FromBytes returns a Buffer over a copy of b with bit length 8*len(b),
// positioned at bit 0 for reading.
func FromBytes(b []byte) *Buffer {
	d := make([]byte, len(b))
	copy(d, b)
	return &Buffer{data: d, lenBits: uint64(len(b)) * 8}
}

// FromBits is FromBytes with an explicit bit length; nbits must not exceed
// 8*len(b). Bits beyond nbits in the final byte are ignored.
func FromBits(b []byte, nbits uint64) *Buffer {
	if nbits > uint64(len(b))*8 {
		nbits = uint64(len(b)) * 8
	}
	d := make([]byte, len(b))
	copy(d, b)
	return &Buffer{data: d, lenBits: nbits}
}

// Len returns the number of bits written.
func (b *Buffer) Len() uint64 { return b.lenBits }

// Pos returns the number of bits consumed by reads.
func (b *Buffer) Pos() uint64 { return b.pos }

// Remaining returns the number of bits available to read.
func (b *Buffer) Remaining() uint64 { return b.lenBits - b.pos }

// SeekBit moves the read cursor to an absolute bit position. Callers use it
// to roll back after a failed partial decode.
func (b *Buffer) SeekBit(pos uint64) error {
	if pos > b.lenBits {
		return goper.Issues{{
			Code:    goper.CodeBufferUnderrun,
			Message: i18n.T(goper.CodeBufferUnderrun, nil),
			Params:  map[string]any{"pos": pos, "len": b.lenBits},
		}}
	}
	b.pos = pos
	return nil
}

func underrun(want, have uint64) error {
	return goper.Issues{{
		Code:    goper.CodeBufferUnderrun,
		Message: i18n.T(goper.CodeBufferUnderrun, nil),
		Params:  map[string]any{"want": want, "have": have},
	}}
}

// grow ensures capacity for one more bit and zero-fills new storage.
func (b *Buffer) grow() {
	if int(b.lenBits/8) >= len(b.data) {
		b.data = append(b.data, 0)
	}
}

// WriteBit appends a single bit; any nonzero bit counts as 1.
func (b *Buffer) WriteBit(bit uint8) {
	b.grow()
	if bit != 0 {
		b.data[b.lenBits/8] |= 0x80 >> (b.lenBits % 8)
	}
	b.lenBits++
}

// WriteBits appends the low n bits of v, most-significant-first. n must be
// at most 64; n == 0 writes nothing.
func (b *Buffer) WriteBits(v uint64, n uint8) {
	if n == 0 {
		return
	}
	if n > 64 {
		panic(fmt.Sprintf("bitio: bit count %d out of range", n))
	}
	for i := int(n) - 1; i >= 0; i-- {
		b.WriteBit(uint8((v >> uint(i)) & 1))
	}
}

// WriteOctets appends whole bytes continuing from the current bit position.
// When the position is byte-aligned the bytes are appended directly;
// otherwise they are packed bit-by-bit so no alignment is imposed.
func (b *Buffer) WriteOctets(p []byte) {
	if b.lenBits%8 == 0 {
		b.data = append(b.data[:b.lenBits/8], p...)
		b.lenBits += uint64(len(p)) * 8
		return
	}
	for _, v := range p {
		b.WriteBits(uint64(v), 8)
	}
}

// ReadBit consumes and returns one bit.
func (b *Buffer) ReadBit() (uint8, error) {
	if b.pos >= b.lenBits {
		return 0, underrun(1, 0)
	}
	bit := (b.data[b.pos/8] >> (7 - b.pos%8)) & 1
	b.pos++
	return bit, nil
}

// ReadBits consumes n bits and returns them as an unsigned integer,
// most-significant-first. n must be at most 64; n == 0 returns 0.
func (b *Buffer) ReadBits(n uint8) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 64 {
		return 0, goper.Issues{{
			Code:    goper.CodeWireError,
			Message: fmt.Sprintf("bit count %d out of range", n),
		}}
	}
	if b.Remaining() < uint64(n) {
		return 0, underrun(uint64(n), b.Remaining())
	}
	var v uint64
	for i := uint8(0); i < n; i++ {
		bit := (b.data[b.pos/8] >> (7 - b.pos%8)) & 1
		v = v<<1 | uint64(bit)
		b.pos++
	}
	return v, nil
}

// ReadOctets consumes n whole bytes continuing from the current bit
// position.
func (b *Buffer) ReadOctets(n int) ([]byte, error) {
	if n < 0 {
		return nil, goper.Issues{{
			Code:    goper.CodeWireError,
			Message: fmt.Sprintf("negative octet count %d", n),
		}}
	}
	if b.Remaining() < uint64(n)*8 {
		return nil, underrun(uint64(n)*8, b.Remaining())
	}
	if b.pos%8 == 0 {
		start := b.pos / 8
		out := make([]byte, n)
		copy(out, b.data[start:start+uint64(n)])
		b.pos += uint64(n) * 8
		return out, nil
	}
	out := make([]byte, n)
	for i := range out {
		v, err := b.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Bytes materializes the encoded region: ceil(Len/8) bytes with unused low
// bits of the final byte zero.
func (b *Buffer) Bytes() []byte {
	n := (b.lenBits + 7) / 8
	out := make([]byte, n)
	copy(out, b.data[:n])
	if rem := b.lenBits % 8; rem != 0 && n > 0 {
		out[n-1] &= 0xFF << (8 - rem)
	}
	return out
}

// Extract copies the bytes covering bits [off, off+nbits): exactly
// ceil(nbits/8) bytes whose first bit is bit off of the stream, with
// trailing bits beyond nbits zero. The copy is independent of the buffer.
func (b *Buffer) Extract(off, nbits uint64) ([]byte, error) {
	if off+nbits > b.lenBits {
		return nil, underrun(nbits, b.lenBits-min(off, b.lenBits))
	}
	out := make([]byte, (nbits+7)/8)
	for i := uint64(0); i < nbits; i++ {
		p := off + i
		bit := (b.data[p/8] >> (7 - p%8)) & 1
		if bit != 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out, nil
}

// String implements fmt.Stringer for debugging.
func (b *Buffer) String() string {
	return fmt.Sprintf("bitio.Buffer{len=%d pos=%d}", b.lenBits, b.pos)
}
