package goper

// Kind identifies the codec that produced a value or decoded node. Metadata
// carries the tag rather than a codec pointer so that consumers (and
// StripMetadata) can dispatch without importing codec internals.
type Kind int

const (
	KindInvalid Kind = iota
	KindBoolean
	KindInteger
	KindEnumerated
	KindBitString
	KindOctetString
	KindString
	KindObjectIdentifier
	KindNull
	KindSequence
	KindSequenceOf
	KindChoice
)

var kindNames = map[Kind]string{
	KindInvalid:          "invalid",
	KindBoolean:          "boolean",
	KindInteger:          "integer",
	KindEnumerated:       "enumerated",
	KindBitString:        "bitstring",
	KindOctetString:      "octetstring",
	KindString:           "string",
	KindObjectIdentifier: "oid",
	KindNull:             "null",
	KindSequence:         "sequence",
	KindSequenceOf:       "sequenceof",
	KindChoice:           "choice",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// BitString is the semantic value of an ASN.1 BIT STRING: a byte buffer plus
// a significant bit length. Bits are big-endian: bit 7 of Bytes[0] is the
// first bit. Bits beyond BitLength in the final byte are ignored on encode
// and produced as zero on decode.
type BitString struct {
	Bytes     []byte
	BitLength int
}

// OID is a non-empty object identifier arc sequence. The first arc is 0, 1
// or 2; when the first arc is 0 or 1 the second must be in [0,39].
type OID []uint64

// Chosen is the semantic value of a CHOICE: the selected alternative name
// plus its value. Decoders surface unknown extension alternatives as
// Chosen{Key: UnknownAlternative, Value: []byte} carrying the raw open-type
// payload.
type Chosen struct {
	Key   string
	Value any
}

// UnknownAlternative is the Chosen.Key used for CHOICE extension
// alternatives the schema does not declare.
const UnknownAlternative = "<unknown>"
