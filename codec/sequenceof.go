package codec

import (
	"fmt"
	"reflect"
	"strconv"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
)

type sequenceOfCodec struct {
	item Codec
	sc   SizeConstraint
}

// SequenceOf returns a SEQUENCE OF codec; the size constraint counts
// elements. Values are []any (other slice kinds are accepted on encode via
// reflection).
func SequenceOf(item Codec, sc SizeConstraint) Codec {
	return sequenceOfCodec{item: item, sc: sc}
}

func (sequenceOfCodec) Kind() goper.Kind { return goper.KindSequenceOf }

func (so sequenceOfCodec) Encode(buf *bitio.Buffer, v any) error {
	items, ok := v.([]any)
	if !ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return constraintViolation(fmt.Sprintf("expected slice for sequence-of, got %T", v), nil)
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	return encodeSized(buf, so.sc, uint64(len(items)), func(from, to uint64) error {
		for i := from; i < to; i++ {
			if err := so.item.Encode(buf, items[i]); err != nil {
				return goper.PrefixPath(err, "/"+strconv.FormatUint(i, 10))
			}
		}
		return nil
	})
}

func (so sequenceOfCodec) Decode(buf *bitio.Buffer) (any, error) {
	node, err := so.DecodeWithMeta(buf)
	if err != nil {
		return nil, err
	}
	return goper.StripMetadata(node), nil
}

func (so sequenceOfCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	start := buf.Pos()
	children := []*goper.Decoded{}
	_, err := decodeSized(buf, so.sc, func(count uint64) error {
		for i := uint64(0); i < count; i++ {
			child, err := so.item.DecodeWithMeta(buf)
			if err != nil {
				return goper.PrefixPath(err, "/"+strconv.Itoa(len(children)))
			}
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	end := buf.Pos()
	raw, err := buf.Extract(start, end-start)
	if err != nil {
		return nil, err
	}
	return &goper.Decoded{
		Value:    children,
		Presence: goper.PresenceSeen,
		Meta:     goper.Meta{Kind: goper.KindSequenceOf, BitOffset: start, BitLength: end - start, Raw: raw},
	}, nil
}
