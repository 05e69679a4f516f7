package boundary

import (
	"fmt"
	"strings"
)

// Kind is the type of a value crossing the boundary
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a single argument or return value
type Value struct {
	kind Kind
	b    bool
	s    string
	raw  []byte
}

func Void() Value {
	return Value{kind: KindVoid}
}

func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: b}
}

// Kind returns the value's type
func (v Value) Kind() Kind {
	return v.kind
}

// AsBool returns the boolean payload
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: want bool, got %s", ErrWrongValueType, v.kind)
	}
	return v.b, nil
}

// AsString returns the string payload
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("%w: want string, got %s", ErrWrongValueType, v.kind)
	}
	return v.s, nil
}

// AsBytes returns the byte payload. The slice is shared, not copied.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("%w: want bytes, got %s", ErrWrongValueType, v.kind)
	}
	return v.raw, nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindString:
		return fmt.Sprintf("string(len=%d)", len(v.s))
	case KindBytes:
		return fmt.Sprintf("bytes(len=%d)", len(v.raw))
	default:
		return v.kind.String()
	}
}

// Shape is a set of kinds accepted in one position of a signature
type Shape uint8

// ShapeOf builds a shape accepting any of kinds
func ShapeOf(kinds ...Kind) Shape {
	var s Shape
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

var (
	ShapeVoid    = ShapeOf(KindVoid)
	ShapeBool    = ShapeOf(KindBool)
	ShapeString  = ShapeOf(KindString)
	ShapeBytes   = ShapeOf(KindBytes)
	ShapePayload = ShapeOf(KindBytes, KindString)
)

// Accepts reports whether k is a member of s
func (s Shape) Accepts(k Kind) bool {
	return s&(1<<k) != 0
}

func (s Shape) String() string {
	var names []string
	for k := KindVoid; k <= KindBytes; k++ {
		if s.Accepts(k) {
			names = append(names, k.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
