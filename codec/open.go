package codec

import (
	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

// Open types carry extension fields and alternatives as a length-prefixed
// payload so that decoders unaware of an addition can skip it. The payload
// is PER-unaligned bits padded to whole bytes; an empty encoding (e.g.
// NULL) still produces a single zero octet. The padding is stripped again
// on decode.

func encodeOpen(buf *bitio.Buffer, c Codec, v any) error {
	tmp := bitio.New()
	if err := c.Encode(tmp, v); err != nil {
		return err
	}
	payload := tmp.Bytes()
	if len(payload) == 0 {
		payload = []byte{0}
	}
	return encodeLength(buf, uint64(len(payload)), func(from, to uint64) error {
		buf.WriteOctets(payload[from:to])
		return nil
	})
}

// decodeOpenBytes reads an open-type frame and returns the raw payload.
func decodeOpenBytes(buf *bitio.Buffer) ([]byte, error) {
	payload := []byte{}
	_, err := decodeLength(buf, func(n uint64) error {
		if n*8 > buf.Remaining() {
			return wireError("open-type length exceeds remaining bits", map[string]any{"octets": n, "remaining": buf.Remaining()})
		}
		chunk, err := buf.ReadOctets(int(n))
		if err != nil {
			return err
		}
		payload = append(payload, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// decodeOpenWithMeta decodes an open-type frame through c, rebasing the
// child metadata onto the outer stream (the payload starts at the outer
// read position after the length determinant).
func decodeOpenWithMeta(buf *bitio.Buffer, c Codec) (*goper.Decoded, error) {
	payload, err := decodeOpenBytes(buf)
	if err != nil {
		return nil, err
	}
	// Rebase child offsets onto the payload's first bit in the outer
	// stream. Fragmented payloads interleave length octets, so offsets are
	// exact only for unfragmented frames (payloads under 16K).
	payloadBits := uint64(len(payload)) * 8
	delta := buf.Pos() - payloadBits
	sub := bitio.FromBytes(payload)
	node, err := c.DecodeWithMeta(sub)
	if err != nil {
		return nil, err
	}
	shiftMeta(node, delta)
	return node, nil
}
