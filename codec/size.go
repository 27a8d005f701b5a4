package codec

import (
	"github.com/reoring/goper/bitio"
)

// SizeConstraint frames the item counts of BIT STRING, OCTET STRING,
// character strings and SEQUENCE OF. The determinant takes one of three
// shapes: Fixed, a [Min, Max] range, or unconstrained. A lone Min or Max
// frames as unconstrained (a plain length) but still bounds the count.
// Extensible adds the leading extensibility bit to the determinant.
type SizeConstraint struct {
	Fixed      *int64
	Min        *int64
	Max        *int64
	Extensible bool
}

// SizeFixed returns a SIZE(n) constraint.
func SizeFixed(n int64) SizeConstraint { return SizeConstraint{Fixed: &n} }

// SizeRange returns a SIZE(lo..hi) constraint.
func SizeRange(lo, hi int64) SizeConstraint { return SizeConstraint{Min: &lo, Max: &hi} }

// Unbounded is the unconstrained size.
var Unbounded = SizeConstraint{}

func (sc SizeConstraint) bounds() (lo, hi int64, constrained bool) {
	if sc.Fixed != nil {
		return *sc.Fixed, *sc.Fixed, true
	}
	if sc.Min != nil && sc.Max != nil {
		return *sc.Min, *sc.Max, true
	}
	return 0, 0, false
}

func (sc SizeConstraint) inRoot(count uint64) bool {
	if lo, hi, ok := sc.bounds(); ok {
		return count >= uint64(lo) && count <= uint64(hi)
	}
	// Half-open constraints still bound the count even though the
	// determinant stays a plain length.
	if sc.Min != nil && count < uint64(*sc.Min) {
		return false
	}
	if sc.Max != nil && count > uint64(*sc.Max) {
		return false
	}
	return true
}

// smallRange reports whether the root range is narrow enough for a
// constrained count (upper bound present and range below 64K).
func (sc SizeConstraint) smallRange() bool {
	lo, hi, ok := sc.bounds()
	return ok && uint64(hi)-uint64(lo) < 65536
}

// encodeSized writes the size determinant for count items and emits the
// item content chunk by chunk. emit(from, to) appends items [from, to).
func encodeSized(buf *bitio.Buffer, sc SizeConstraint, count uint64, emit func(from, to uint64) error) error {
	lo, hi, constrained := sc.bounds()
	if sc.Extensible {
		if sc.inRoot(count) {
			buf.WriteBit(0)
		} else {
			buf.WriteBit(1)
			return encodeLength(buf, count, emit)
		}
	} else if !sc.inRoot(count) {
		return constraintViolation("size out of range", map[string]any{"min": lo, "max": hi, "got": count})
	}
	if !constrained {
		return encodeLength(buf, count, emit)
	}
	if !sc.smallRange() {
		return encodeLength(buf, count, emit)
	}
	if sc.Fixed != nil {
		return emit(0, count)
	}
	if err := encodeConstrainedWhole(buf, int64(count), lo, hi); err != nil {
		return err
	}
	return emit(0, count)
}

// decodeSized reads the size determinant and consumes the item content
// chunk by chunk, returning the total count.
func decodeSized(buf *bitio.Buffer, sc SizeConstraint, consume func(n uint64) error) (uint64, error) {
	lo, hi, constrained := sc.bounds()
	if sc.Extensible {
		ext, err := buf.ReadBit()
		if err != nil {
			return 0, err
		}
		if ext == 1 {
			return decodeLength(buf, consume)
		}
	}
	if !constrained || !sc.smallRange() {
		n, err := decodeLength(buf, consume)
		if err != nil {
			return 0, err
		}
		if !sc.inRoot(n) {
			return 0, wireError("size out of range", map[string]any{"min": lo, "max": hi, "got": n})
		}
		return n, nil
	}
	if sc.Fixed != nil {
		n := uint64(*sc.Fixed)
		return n, consume(n)
	}
	v, err := decodeConstrainedWhole(buf, lo, hi)
	if err != nil {
		return 0, err
	}
	n := uint64(v)
	return n, consume(n)
}
