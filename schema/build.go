package schema

import (
	"sort"

	goper "github.com/reoring/goper"
	"github.com/reoring/goper/bitio"
	"github.com/reoring/goper/codec"
)

func schemaError(msg string, params map[string]any) goper.Issues {
	return goper.Issues{{Code: goper.CodeSchemaError, Message: msg, Params: params}}
}

// lazyCodec is the mutable cell that breaks reference cycles: BuildAll
// allocates one per name before compiling anything, so $ref children can
// bind to it; the cell is populated before any encode or decode crosses the
// reference and is effectively immutable afterwards.
type lazyCodec struct {
	name   string
	target codec.Codec
}

func (l *lazyCodec) resolve() (codec.Codec, error) {
	if l.target == nil {
		return nil, schemaError("unresolved reference", map[string]any{"ref": l.name})
	}
	return l.target, nil
}

func (l *lazyCodec) Kind() goper.Kind {
	if l.target == nil {
		return goper.KindInvalid
	}
	return l.target.Kind()
}

func (l *lazyCodec) Encode(buf *bitio.Buffer, v any) error {
	c, err := l.resolve()
	if err != nil {
		return err
	}
	return c.Encode(buf, v)
}

func (l *lazyCodec) Decode(buf *bitio.Buffer) (any, error) {
	c, err := l.resolve()
	if err != nil {
		return nil, err
	}
	return c.Decode(buf)
}

func (l *lazyCodec) DecodeWithMeta(buf *bitio.Buffer) (*goper.Decoded, error) {
	c, err := l.resolve()
	if err != nil {
		return nil, err
	}
	return c.DecodeWithMeta(buf)
}

// Build compiles a single node into a codec. $ref nodes cannot be resolved
// in isolation and fail with a schema error; use BuildAll for registries.
func Build(n *Node) (codec.Codec, error) {
	b := builder{}
	return b.build(n)
}

// BuildAll compiles every named schema in the registry. Compilation is
// two-phase: a lazy proxy per name is inserted up front, then each real
// codec is compiled with $ref children bound to the proxies, so recursive
// and mutually recursive schemas build without special ordering.
func BuildAll(reg map[string]*Node) (map[string]codec.Codec, error) {
	proxies := make(map[string]*lazyCodec, len(reg))
	names := make([]string, 0, len(reg))
	for name := range reg {
		proxies[name] = &lazyCodec{name: name}
		names = append(names, name)
	}
	sort.Strings(names)

	b := builder{registry: proxies}
	out := make(map[string]codec.Codec, len(reg))
	for _, name := range names {
		c, err := b.build(reg[name])
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+name)
		}
		proxies[name].target = c
		out[name] = c
	}
	return out, nil
}

type builder struct {
	registry map[string]*lazyCodec
}

func (b builder) build(n *Node) (codec.Codec, error) {
	if n == nil {
		return nil, schemaError("nil schema node", nil)
	}
	if n.Ref != "" || n.Type == TypeRef {
		if n.Ref == "" {
			return nil, schemaError("$ref node without target name", nil)
		}
		if b.registry == nil {
			return nil, schemaError("cannot resolve reference without registry", map[string]any{"ref": n.Ref})
		}
		proxy, ok := b.registry[n.Ref]
		if !ok {
			return nil, schemaError("reference to unknown type", map[string]any{"ref": n.Ref})
		}
		return proxy, nil
	}

	switch n.Type {
	case TypeBoolean:
		return codec.Boolean(), nil
	case TypeNull:
		return codec.Null(), nil
	case TypeOID:
		return codec.ObjectIdentifier(), nil
	case TypeInteger:
		if n.Min != nil && n.Max != nil && *n.Min > *n.Max {
			return nil, schemaError("integer min exceeds max", map[string]any{"min": *n.Min, "max": *n.Max})
		}
		return codec.Integer(codec.IntConstraint{Min: n.Min, Max: n.Max, Extensible: n.Extensible}), nil
	case TypeEnumerated:
		if len(n.Values) == 0 {
			return nil, schemaError("enumerated requires root values", nil)
		}
		return codec.Enumerated(n.Values, n.ExtensionValues, n.Extensible), nil
	case TypeBitString:
		sc, err := n.sizeConstraint()
		if err != nil {
			return nil, err
		}
		return codec.BitString(sc), nil
	case TypeOctetString:
		sc, err := n.sizeConstraint()
		if err != nil {
			return nil, err
		}
		return codec.OctetString(sc), nil
	case TypeIA5String, TypeVisibleString, TypeUTF8String:
		sc, err := n.sizeConstraint()
		if err != nil {
			return nil, err
		}
		if n.Alphabet != "" {
			return codec.StringAlphabet(n.Alphabet, sc), nil
		}
		switch n.Type {
		case TypeVisibleString:
			return codec.String(codec.VisibleString, sc), nil
		case TypeUTF8String:
			return codec.String(codec.UTF8String, sc), nil
		default:
			return codec.String(codec.IA5String, sc), nil
		}
	case TypeSequence:
		fields, err := b.buildFields(n.Fields)
		if err != nil {
			return nil, err
		}
		extFields, err := b.buildFields(n.ExtensionFields)
		if err != nil {
			return nil, err
		}
		return codec.Sequence(fields, extFields, n.Extensible), nil
	case TypeSequenceOf:
		if n.Items == nil {
			return nil, schemaError("sequence-of requires items", nil)
		}
		item, err := b.build(n.Items)
		if err != nil {
			return nil, goper.PrefixPath(err, "/items")
		}
		sc, err := n.sizeConstraint()
		if err != nil {
			return nil, err
		}
		return codec.SequenceOf(item, sc), nil
	case TypeChoice:
		alts, err := b.buildAlternatives(n.Alternatives)
		if err != nil {
			return nil, err
		}
		extAlts, err := b.buildAlternatives(n.ExtensionAlternatives)
		if err != nil {
			return nil, err
		}
		if len(alts) == 0 {
			return nil, schemaError("choice requires root alternatives", nil)
		}
		return codec.Choice(alts, extAlts, n.Extensible), nil
	}
	return nil, schemaError("unknown node type", map[string]any{"type": n.Type})
}

func (n *Node) sizeConstraint() (codec.SizeConstraint, error) {
	if n.MinSize != nil && n.MaxSize != nil && *n.MinSize > *n.MaxSize {
		return codec.SizeConstraint{}, schemaError("minSize exceeds maxSize", map[string]any{"minSize": *n.MinSize, "maxSize": *n.MaxSize})
	}
	return codec.SizeConstraint{
		Fixed:      n.FixedSize,
		Min:        n.MinSize,
		Max:        n.MaxSize,
		Extensible: n.Extensible,
	}, nil
}

func (b builder) buildFields(fns []FieldNode) ([]codec.Field, error) {
	fields := make([]codec.Field, 0, len(fns))
	for _, fn := range fns {
		c, err := b.build(fn.Schema)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+fn.Name)
		}
		fields = append(fields, codec.Field{
			Name:     fn.Name,
			Codec:    c,
			Optional: fn.Optional,
			Default:  normalizeDefault(fn.Schema, fn.Default),
		})
	}
	return fields, nil
}

func (b builder) buildAlternatives(fns []FieldNode) ([]codec.Alternative, error) {
	alts := make([]codec.Alternative, 0, len(fns))
	for _, fn := range fns {
		c, err := b.build(fn.Schema)
		if err != nil {
			return nil, goper.PrefixPath(err, "/"+fn.Name)
		}
		alts = append(alts, codec.Alternative{Name: fn.Name, Codec: c})
	}
	return alts, nil
}

// normalizeDefault coerces JSON-shaped defaults to the semantic value shape
// of the field's type, so that decode reinstates the same value encode
// compares against.
func normalizeDefault(n *Node, v any) any {
	if v == nil || n == nil {
		return v
	}
	switch n.Type {
	case TypeInteger:
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int:
			return int64(t)
		case int64:
			return t
		}
	case TypeOctetString:
		if s, ok := v.(string); ok {
			return []byte(s)
		}
	}
	return v
}
