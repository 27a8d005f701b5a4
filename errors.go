package goper

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention).
// Each code is a distinct, catchable failure kind; nothing is retried.
const (
	// CodeBufferUnderrun reports a decode attempted past the available bits.
	CodeBufferUnderrun = "buffer_underrun"
	// CodeConstraintViolation reports a value outside its declared bounds:
	// integer out of range, size out of range, unknown enumerated name,
	// unknown choice alternative, character outside the permitted alphabet.
	CodeConstraintViolation = "constraint_violation"
	// CodeWireError reports decoded bits that make no sense under the
	// grammar: reserved length-determinant bits, an open-type length that
	// exceeds the remaining bits, inconsistent OID leading arcs.
	CodeWireError = "wire_error"
	// CodeSchemaError reports an unresolved $ref, an unknown node type, or
	// building a $ref without a registry.
	CodeSchemaError = "schema_error"
	// CodeParseError reports a syntactic ASN.1 failure with source position.
	CodeParseError = "parse_error"
	// CodeUnresolvedReference reports a type name that is neither defined in
	// the module nor a primitive.
	CodeUnresolvedReference = "unresolved_reference"
)

// Issue represents a single failure entry.
type Issue struct {
	Path    string // Pointer-style location (for example: /fields/2/price).
	Code    string // One of the codes listed above.
	Message string
	Cause   error // Optional: underlying error.
	// Offset is the byte offset in the ASN.1 source for parse errors
	// (-1 or 0 when not applicable).
	Offset int
	// Params carries structured parameters (e.g., {"min":1, "max":10, "got":42})
	// for i18n and observability.
	Params map[string]any
}

// Issues is a collection of failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		if it.Path == "" {
			fmt.Fprintf(b, "%s: %s", it.Code, it.Message)
		} else {
			fmt.Fprintf(b, "%s at %s: %s", it.Code, it.Path, it.Message)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// IsCode reports whether err carries at least one Issue with the given code.
func IsCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// PrefixPath returns err with every Issue path prefixed by the given segment.
// Composite codecs use it to surface child failures with field names, array
// indexes and alternative names attached. Non-Issues errors are wrapped into
// a single Issue at the prefix.
func PrefixPath(err error, segment string) error {
	if err == nil {
		return nil
	}
	iss, ok := AsIssues(err)
	if !ok {
		return Issues{{Path: segment, Code: CodeWireError, Message: err.Error(), Cause: err}}
	}
	out := make(Issues, len(iss))
	for i, it := range iss {
		if it.Path == "" || it.Path == "/" {
			it.Path = segment
		} else if strings.HasPrefix(it.Path, "/") {
			it.Path = segment + it.Path
		} else {
			it.Path = segment + "/" + it.Path
		}
		out[i] = it
	}
	return out
}
