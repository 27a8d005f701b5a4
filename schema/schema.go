// Package schema defines the declarative, JSON-serializable description of
// a PER type and compiles it into a codec. The node tree is the stable
// interchange format for consumers who ship pre-generated schemas; the
// asn1 package produces the same trees from textual ASN.1 modules.
package schema

import (
	"github.com/goccy/go-json"

	goper "github.com/reoring/goper"
)

// Type tags carried in Node.Type.
const (
	TypeBoolean       = "boolean"
	TypeInteger       = "integer"
	TypeEnumerated    = "enumerated"
	TypeBitString     = "bitstring"
	TypeOctetString   = "octetstring"
	TypeIA5String     = "ia5string"
	TypeVisibleString = "visiblestring"
	TypeUTF8String    = "utf8string"
	TypeOID           = "oid"
	TypeNull          = "null"
	TypeSequence      = "sequence"
	TypeSequenceOf    = "sequenceof"
	TypeChoice        = "choice"
	TypeRef           = "$ref"
)

// Node is one type description. Exactly one interpretation applies: a $ref
// (Ref non-empty) or a concrete type selected by Type, with the constraint
// attributes relevant to it.
type Node struct {
	Type string `json:"type,omitempty"`
	// Ref names another registry entry; resolved by BuildAll.
	Ref string `json:"$ref,omitempty"`

	// Integer bounds; Extensible also covers extension markers on
	// enumerations, sizes, sequences and choices.
	Min        *int64 `json:"min,omitempty"`
	Max        *int64 `json:"max,omitempty"`
	Extensible bool   `json:"extensible,omitempty"`

	// Size constraints for strings and sequence-of.
	FixedSize *int64 `json:"fixedSize,omitempty"`
	MinSize   *int64 `json:"minSize,omitempty"`
	MaxSize   *int64 `json:"maxSize,omitempty"`

	// Alphabet restricts a character string to a permitted alphabet.
	Alphabet string `json:"alphabet,omitempty"`

	// Enumerated root and extension identifiers.
	Values          []string `json:"values,omitempty"`
	ExtensionValues []string `json:"extensionValues,omitempty"`

	// Sequence fields and choice alternatives.
	Fields                []FieldNode `json:"fields,omitempty"`
	ExtensionFields       []FieldNode `json:"extensionFields,omitempty"`
	Alternatives          []FieldNode `json:"alternatives,omitempty"`
	ExtensionAlternatives []FieldNode `json:"extensionAlternatives,omitempty"`

	// Items is the element type of a sequence-of.
	Items *Node `json:"items,omitempty"`
}

// FieldNode is a sequence field or choice alternative.
type FieldNode struct {
	Name     string `json:"name"`
	Schema   *Node  `json:"schema"`
	Optional bool   `json:"optional,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// FromJSON parses a single node.
func FromJSON(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: err.Error(), Cause: err}}
	}
	return &n, nil
}

// ToJSON serializes the node.
func (n *Node) ToJSON() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: err.Error(), Cause: err}}
	}
	return data, nil
}

// RegistryFromJSON parses a mapping of type names to nodes.
func RegistryFromJSON(data []byte) (map[string]*Node, error) {
	var reg map[string]*Node
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: err.Error(), Cause: err}}
	}
	return reg, nil
}
