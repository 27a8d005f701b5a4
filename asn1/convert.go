package asn1

import (
	goper "github.com/reoring/goper"
	"github.com/reoring/goper/schema"
)

// OIDMode selects how Convert treats top-level OBJECT IDENTIFIER
// assignments.
type OIDMode string

const (
	// OIDKeep keeps OBJECT IDENTIFIER assignments as registry entries.
	OIDKeep OIDMode = "keep"
	// OIDOmit drops top-level OBJECT IDENTIFIER assignments from the
	// registry; field-level OIDs are always kept, since dropping a field
	// would change the wire image.
	OIDOmit OIDMode = "omit"
)

// ConvertOptions tunes the conversion.
type ConvertOptions struct {
	OID OIDMode
}

// Convert transforms a parsed module into a schema-node registry.
// Referenced types are inlined when acyclic; when a type references itself
// transitively a $ref node is emitted instead, to be resolved by
// schema.BuildAll. A name that is neither defined in the module nor a
// primitive fails with unresolved_reference.
func Convert(m *Module, opts ConvertOptions) (map[string]*schema.Node, error) {
	c := &converter{
		table:    make(map[string]*Type, len(m.Types)),
		visiting: map[string]bool{},
	}
	for _, ta := range m.Types {
		c.table[ta.Name] = ta.Type
	}
	reg := make(map[string]*schema.Node, len(m.Types))
	for _, ta := range m.Types {
		if opts.OID == OIDOmit && ta.Type.Kind == KindObjectIdentifier {
			continue
		}
		c.visiting = map[string]bool{ta.Name: true}
		node, err := c.convert(ta.Type)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+ta.Name)
		}
		reg[ta.Name] = node
	}
	return reg, nil
}

// converter walks the abstract syntax depth-first; visiting is the DFS
// cycle-detection set keyed by type name.
type converter struct {
	table    map[string]*Type
	visiting map[string]bool
}

func unresolved(name string) goper.Issues {
	return goper.Issues{{
		Code:    goper.CodeUnresolvedReference,
		Message: "unresolved type reference",
		Params:  map[string]any{"ref": name},
	}}
}

func (c *converter) convert(t *Type) (*schema.Node, error) {
	switch t.Kind {
	case KindBoolean:
		return &schema.Node{Type: schema.TypeBoolean}, nil
	case KindNull:
		return &schema.Node{Type: schema.TypeNull}, nil
	case KindObjectIdentifier:
		return &schema.Node{Type: schema.TypeOID}, nil
	case KindInteger:
		n := &schema.Node{Type: schema.TypeInteger}
		if t.Constraint != nil {
			n.Min, n.Max = t.Constraint.Lo, t.Constraint.Hi
			n.Extensible = t.Constraint.Extensible
		}
		return n, nil
	case KindEnumerated:
		n := &schema.Node{Type: schema.TypeEnumerated, Extensible: t.Extensible}
		for _, v := range t.NamedValues {
			n.Values = append(n.Values, v.Name)
		}
		for _, v := range t.ExtValues {
			n.ExtensionValues = append(n.ExtensionValues, v.Name)
		}
		return n, nil
	case KindBitString:
		n := &schema.Node{Type: schema.TypeBitString}
		c.applySize(n, t.Size)
		return n, nil
	case KindOctetString:
		n := &schema.Node{Type: schema.TypeOctetString}
		c.applySize(n, t.Size)
		return n, nil
	case KindIA5String, KindVisibleString, KindUTF8String:
		n := &schema.Node{Alphabet: t.Alphabet}
		switch t.Kind {
		case KindVisibleString:
			n.Type = schema.TypeVisibleString
		case KindUTF8String:
			n.Type = schema.TypeUTF8String
		default:
			n.Type = schema.TypeIA5String
		}
		c.applySize(n, t.Size)
		return n, nil
	case KindSequence:
		n := &schema.Node{Type: schema.TypeSequence, Extensible: t.Extensible}
		var err error
		if n.Fields, err = c.convertMembers(t.Fields); err != nil {
			return nil, err
		}
		if n.ExtensionFields, err = c.convertMembers(t.ExtFields); err != nil {
			return nil, err
		}
		return n, nil
	case KindSequenceOf:
		item, err := c.convert(t.Item)
		if err != nil {
			return nil, err
		}
		n := &schema.Node{Type: schema.TypeSequenceOf, Items: item}
		c.applySize(n, t.Size)
		return n, nil
	case KindChoice:
		n := &schema.Node{Type: schema.TypeChoice, Extensible: t.Extensible}
		var err error
		if n.Alternatives, err = c.convertMembers(t.Alternatives); err != nil {
			return nil, err
		}
		if n.ExtensionAlternatives, err = c.convertMembers(t.ExtAlternatives); err != nil {
			return nil, err
		}
		return n, nil
	case KindReference:
		name := t.Reference
		target, ok := c.table[name]
		if !ok {
			return nil, unresolved(name)
		}
		if c.visiting[name] {
			return &schema.Node{Ref: name}, nil
		}
		c.visiting[name] = true
		node, err := c.convert(target)
		delete(c.visiting, name)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+name)
		}
		return node, nil
	}
	return nil, goper.Issues{{Code: goper.CodeSchemaError, Message: "unknown abstract syntax kind"}}
}

func (c *converter) convertMembers(ms []Member) ([]schema.FieldNode, error) {
	out := make([]schema.FieldNode, 0, len(ms))
	for _, m := range ms {
		node, err := c.convert(m.Type)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+m.Name)
		}
		fn := schema.FieldNode{Name: m.Name, Schema: node, Optional: m.Optional}
		if m.HasDefault {
			fn.Default = m.Default
		}
		out = append(out, fn)
	}
	return out, nil
}

func (c *converter) applySize(n *schema.Node, s *Constraint) {
	if s == nil {
		return
	}
	n.Extensible = n.Extensible || s.Extensible
	if s.Single && s.Lo != nil {
		n.FixedSize = s.Lo
		return
	}
	n.MinSize, n.MaxSize = s.Lo, s.Hi
}
