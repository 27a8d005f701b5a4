package asn1

import (
	"fmt"
	"unicode"

	goper "github.com/reoring/goper"
)

// Parse reads an ASN.1 module: a single `Name DEFINITIONS [tags] ::= BEGIN
// ... END` header followed by named type assignments. Malformed input fails
// with a parse_error carrying the byte offset and line/column.
func Parse(src string) (*Module, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseModule()
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, format string, args ...any) error {
	return goper.Issues{{
		Code:    goper.CodeParseError,
		Message: fmt.Sprintf(format, args...),
		Offset:  t.offset,
		Params:  map[string]any{"line": t.line, "col": t.col},
	}}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorAt(t, "expected %s, got %s", what, t.describe())
	}
	return t, nil
}

func (p *parser) expectWord(word string) error {
	t := p.next()
	if t.kind != tWord || t.text != word {
		return p.errorAt(t, "expected %q, got %s", word, t.describe())
	}
	return nil
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.peek().kind == kind {
		return p.next(), true
	}
	return token{}, false
}

func (p *parser) acceptWord(word string) bool {
	if t := p.peek(); t.kind == tWord && t.text == word {
		p.next()
		return true
	}
	return false
}

func isTypeRefName(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsUpper([]rune(s)[0])
}

func (p *parser) parseModule() (*Module, error) {
	name, err := p.expect(tWord, "module name")
	if err != nil {
		return nil, err
	}
	if !isTypeRefName(name.text) {
		return nil, p.errorAt(name, "module name must start with an uppercase letter")
	}
	if err := p.expectWord("DEFINITIONS"); err != nil {
		return nil, err
	}
	// Tag environment words (e.g. AUTOMATIC TAGS) are accepted and ignored;
	// PER does not use tags.
	for p.peek().kind == tWord {
		p.next()
	}
	if _, err := p.expect(tAssign, "::="); err != nil {
		return nil, err
	}
	if err := p.expectWord("BEGIN"); err != nil {
		return nil, err
	}

	m := &Module{Name: name.text}
	for {
		t := p.peek()
		if t.kind == tWord && t.text == "END" {
			p.next()
			break
		}
		if t.kind == tEOF {
			return nil, p.errorAt(t, "missing END")
		}
		assignName, err := p.expect(tWord, "type name")
		if err != nil {
			return nil, err
		}
		if !isTypeRefName(assignName.text) {
			return nil, p.errorAt(assignName, "type name must start with an uppercase letter")
		}
		if _, err := p.expect(tAssign, "::="); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		m.Types = append(m.Types, TypeAssignment{Name: assignName.text, Type: typ})
	}
	return m, nil
}

func (p *parser) parseType() (*Type, error) {
	t := p.next()
	if t.kind != tWord {
		return nil, p.errorAt(t, "expected a type, got %s", t.describe())
	}
	switch t.text {
	case "BOOLEAN":
		return &Type{Kind: KindBoolean}, nil
	case "NULL":
		return &Type{Kind: KindNull}, nil
	case "INTEGER":
		return p.parseInteger()
	case "ENUMERATED":
		return p.parseEnumerated()
	case "BIT":
		if err := p.expectWord("STRING"); err != nil {
			return nil, err
		}
		return p.parseSizedString(KindBitString)
	case "OCTET":
		if err := p.expectWord("STRING"); err != nil {
			return nil, err
		}
		return p.parseSizedString(KindOctetString)
	case "IA5String":
		return p.parseCharString(KindIA5String)
	case "VisibleString":
		return p.parseCharString(KindVisibleString)
	case "UTF8String":
		return p.parseCharString(KindUTF8String)
	case "OBJECT":
		if err := p.expectWord("IDENTIFIER"); err != nil {
			return nil, err
		}
		return &Type{Kind: KindObjectIdentifier}, nil
	case "SEQUENCE":
		return p.parseSequence()
	case "CHOICE":
		return p.parseChoice()
	}
	if isTypeRefName(t.text) {
		return &Type{Kind: KindReference, Reference: t.text}, nil
	}
	return nil, p.errorAt(t, "unknown type %q", t.text)
}

func (p *parser) parseInteger() (*Type, error) {
	typ := &Type{Kind: KindInteger}
	if _, ok := p.accept(tLBrace); ok {
		values, _, err := p.parseNamedValues(true)
		if err != nil {
			return nil, err
		}
		typ.NamedValues = values
	}
	if _, ok := p.accept(tLParen); ok {
		c, err := p.parseConstraintBody()
		if err != nil {
			return nil, err
		}
		typ.Constraint = c
	}
	return typ, nil
}

func (p *parser) parseEnumerated() (*Type, error) {
	if _, err := p.expect(tLBrace, "'{'"); err != nil {
		return nil, err
	}
	typ := &Type{Kind: KindEnumerated}
	values, ext, err := p.parseNamedValues(false)
	if err != nil {
		return nil, err
	}
	typ.NamedValues = values
	if ext != nil {
		typ.Extensible = true
		typ.ExtValues = ext
	}
	return typ, nil
}

// parseNamedValues reads `name[(number)]` entries up to the closing brace.
// requireValue demands the parenthesized number (INTEGER named values).
// The second result is non-nil when an extension marker was seen; entries
// after the marker land there (it may be empty).
func (p *parser) parseNamedValues(requireValue bool) ([]NamedValue, []NamedValue, error) {
	var root, ext []NamedValue
	target := &root
	for {
		if _, ok := p.accept(tRBrace); ok {
			break
		}
		if _, ok := p.accept(tEllipsis); ok {
			if ext != nil {
				return nil, nil, p.errorAt(p.peek(), "duplicate extension marker")
			}
			ext = []NamedValue{}
			target = &ext
		} else {
			name, err := p.expect(tWord, "identifier")
			if err != nil {
				return nil, nil, err
			}
			nv := NamedValue{Name: name.text}
			if _, ok := p.accept(tLParen); ok {
				num, err := p.expect(tNumber, "number")
				if err != nil {
					return nil, nil, err
				}
				if _, err := p.expect(tRParen, "')'"); err != nil {
					return nil, nil, err
				}
				nv.Value = num.number
				nv.HasValue = true
			} else if requireValue {
				return nil, nil, p.errorAt(p.peek(), "named value requires a number")
			}
			*target = append(*target, nv)
		}
		if _, ok := p.accept(tComma); ok {
			continue
		}
		if _, err := p.expect(tRBrace, "'}' or ','"); err != nil {
			return nil, nil, err
		}
		break
	}
	if ext != nil {
		return root, ext, nil
	}
	return root, nil, nil
}

// parseConstraintBody reads the inside of a value constraint after the
// opening parenthesis: a single value or `lo..hi`, with MIN/MAX bounds and
// an optional `, ...` extension marker.
func (p *parser) parseConstraintBody() (*Constraint, error) {
	c := &Constraint{}
	readBound := func(what string) (*int64, error) {
		t := p.next()
		switch {
		case t.kind == tNumber:
			v := t.number
			return &v, nil
		case t.kind == tWord && (t.text == "MIN" || t.text == "MAX"):
			return nil, nil
		}
		return nil, p.errorAt(t, "expected %s, got %s", what, t.describe())
	}
	lo, err := readBound("a number or MIN")
	if err != nil {
		return nil, err
	}
	c.Lo = lo
	if _, ok := p.accept(tRange); ok {
		hi, err := readBound("a number or MAX")
		if err != nil {
			return nil, err
		}
		c.Hi = hi
	} else {
		c.Hi = lo
		c.Single = true
	}
	if _, ok := p.accept(tComma); ok {
		if _, err := p.expect(tEllipsis, "'...'"); err != nil {
			return nil, err
		}
		c.Extensible = true
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	return c, nil
}

// parseSizeParen reads the parenthesized body after the SIZE keyword. The
// caller still owns the closing parenthesis of the surrounding constraint
// group.
func (p *parser) parseSizeParen() (*Constraint, error) {
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	return p.parseConstraintBody()
}

func (p *parser) parseSizedString(kind TypeKind) (*Type, error) {
	typ := &Type{Kind: kind}
	if _, ok := p.accept(tLParen); ok {
		if err := p.expectWord("SIZE"); err != nil {
			return nil, err
		}
		c, err := p.parseSizeParen()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		typ.Size = c
	}
	return typ, nil
}

// parseCharString reads optional `(SIZE(...))` and `(FROM("..."))`
// constraint groups in either order.
func (p *parser) parseCharString(kind TypeKind) (*Type, error) {
	typ := &Type{Kind: kind}
	for {
		if _, ok := p.accept(tLParen); !ok {
			return typ, nil
		}
		switch {
		case p.acceptWord("SIZE"):
			c, err := p.parseSizeParen()
			if err != nil {
				return nil, err
			}
			typ.Size = c
		case p.acceptWord("FROM"):
			if _, err := p.expect(tLParen, "'('"); err != nil {
				return nil, err
			}
			s, err := p.expect(tString, "a quoted alphabet")
			if err != nil {
				return nil, err
			}
			typ.Alphabet = s.text
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			continue
		default:
			return nil, p.errorAt(p.peek(), "expected SIZE or FROM constraint")
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseSequence() (*Type, error) {
	// SEQUENCE { ... }, SEQUENCE OF T, or SEQUENCE (SIZE(...)) OF T.
	if _, ok := p.accept(tLParen); ok {
		if err := p.expectWord("SIZE"); err != nil {
			return nil, err
		}
		c, err := p.parseSizeParen()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		if err := p.expectWord("OF"); err != nil {
			return nil, err
		}
		item, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindSequenceOf, Size: c, Item: item}, nil
	}
	if p.acceptWord("OF") {
		item, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindSequenceOf, Item: item}, nil
	}
	if _, err := p.expect(tLBrace, "'{', '(' or OF"); err != nil {
		return nil, err
	}
	typ := &Type{Kind: KindSequence}
	fields, extFields, extensible, err := p.parseMembers(true)
	if err != nil {
		return nil, err
	}
	typ.Fields, typ.ExtFields, typ.Extensible = fields, extFields, extensible
	return typ, nil
}

func (p *parser) parseChoice() (*Type, error) {
	if _, err := p.expect(tLBrace, "'{'"); err != nil {
		return nil, err
	}
	typ := &Type{Kind: KindChoice}
	alts, extAlts, extensible, err := p.parseMembers(false)
	if err != nil {
		return nil, err
	}
	typ.Alternatives, typ.ExtAlternatives, typ.Extensible = alts, extAlts, extensible
	return typ, nil
}

// parseMembers reads `name Type [OPTIONAL|DEFAULT value]` entries up to the
// closing brace, splitting at the extension marker. allowMarks permits
// OPTIONAL/DEFAULT (sequence fields; choice alternatives carry neither).
func (p *parser) parseMembers(allowMarks bool) (root, ext []Member, extensible bool, err error) {
	target := &root
	for {
		if _, ok := p.accept(tRBrace); ok {
			return root, ext, extensible, nil
		}
		if _, ok := p.accept(tEllipsis); ok {
			if extensible {
				return nil, nil, false, p.errorAt(p.peek(), "duplicate extension marker")
			}
			extensible = true
			target = &ext
		} else {
			name, err := p.expect(tWord, "member name")
			if err != nil {
				return nil, nil, false, err
			}
			if isTypeRefName(name.text) {
				return nil, nil, false, p.errorAt(name, "member name must start with a lowercase letter")
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, nil, false, err
			}
			m := Member{Name: name.text, Type: typ}
			if allowMarks {
				if p.acceptWord("OPTIONAL") {
					m.Optional = true
				} else if p.acceptWord("DEFAULT") {
					def, err := p.parseDefaultValue()
					if err != nil {
						return nil, nil, false, err
					}
					m.Default = def
					m.HasDefault = true
				}
			}
			*target = append(*target, m)
		}
		if _, ok := p.accept(tComma); ok {
			continue
		}
		if _, err := p.expect(tRBrace, "'}' or ','"); err != nil {
			return nil, nil, false, err
		}
		return root, ext, extensible, nil
	}
}

// parseDefaultValue reads the literal after DEFAULT: a number, TRUE/FALSE,
// a quoted string, or an identifier (enumeration value).
func (p *parser) parseDefaultValue() (any, error) {
	t := p.next()
	switch t.kind {
	case tNumber:
		return t.number, nil
	case tString:
		return t.text, nil
	case tWord:
		switch t.text {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		if !isTypeRefName(t.text) {
			return t.text, nil
		}
	}
	return nil, p.errorAt(t, "unsupported DEFAULT value %s", t.describe())
}
