package goper

// Presence is the bit flag attached to decoded nodes.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Field was present on the wire.
	PresenceDefaultApplied                      // Default value was applied.
)

// Meta carries the bit-range provenance of a decoded node: the tag of the
// codec that produced it, the read-cursor span it covered, and an
// independent byte copy of that source region.
type Meta struct {
	Kind      Kind
	BitOffset uint64
	BitLength uint64
	// Raw is a copy of the source bytes covering bits
	// [BitOffset, BitOffset+BitLength): exactly ceil(BitLength/8) bytes,
	// trailing bits beyond BitLength zero. The source buffer may be dropped
	// after decoding.
	Raw []byte
}

// Decoded carries a decoded value along with presence and bit-range
// metadata. Composite nodes hold child nodes rather than plain values:
//
//	SEQUENCE     map[string]*Decoded (one entry per declared field)
//	SEQUENCE OF  []*Decoded
//	CHOICE       Chosen{Key, Value: *Decoded}
//
// Fields that were syntactically absent have BitLength 0 and no
// PresenceSeen; DEFAULT fields that used their default additionally carry
// PresenceDefaultApplied.
type Decoded struct {
	Value    any
	Presence Presence
	Meta     Meta
}

// IsPresent reports whether the node was present on the wire.
func (d *Decoded) IsPresent() bool { return d.Presence&PresenceSeen != 0 }

// IsDefault reports whether the node's value came from a DEFAULT.
func (d *Decoded) IsDefault() bool { return d.Presence&PresenceDefaultApplied != 0 }

// StripMetadata walks a decoded-node tree and yields the plain value
// identical to what Decode would have returned: sequences omit keys whose
// child is absent and not a default, sequence-ofs map their children, and
// choices recurse into the chosen value. Dispatch is on the Kind tag
// carried in Meta.
func StripMetadata(d *Decoded) any {
	if d == nil {
		return nil
	}
	switch d.Meta.Kind {
	case KindSequence:
		children, ok := d.Value.(map[string]*Decoded)
		if !ok {
			return d.Value
		}
		out := make(map[string]any, len(children))
		for name, child := range children {
			if child == nil || child.Presence == 0 {
				continue
			}
			out[name] = StripMetadata(child)
		}
		return out
	case KindSequenceOf:
		children, ok := d.Value.([]*Decoded)
		if !ok {
			return d.Value
		}
		out := make([]any, len(children))
		for i, child := range children {
			out[i] = StripMetadata(child)
		}
		return out
	case KindChoice:
		ch, ok := d.Value.(Chosen)
		if !ok {
			return d.Value
		}
		if node, ok := ch.Value.(*Decoded); ok {
			return Chosen{Key: ch.Key, Value: StripMetadata(node)}
		}
		return ch
	default:
		return d.Value
	}
}
