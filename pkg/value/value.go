// Package value defines the runtime value representation shared by the
// compiler (constant pool entries) and the VM (stack slots, globals,
// fields).
//
// lox.Value is a tagged union over {nil, bool, float64, heap object
// reference}, matching the "tagged-union form" the design allows as an
// alternative to NaN-boxing. See DESIGN.md for why this repo implements
// only the tagged-union encoding: Go's interface-free struct keeps the
// object reference a plain `any` (really, an Obj interface value), so
// there's no pointer to hide bits in without fighting the garbage
// collector's own pointer scanning — the NaN-boxing trick is a C-specific
// answer to a C-specific problem (a tagged union there costs 16 bytes;
// here it costs the same `any`-sized word either way).
package value

import "math"

// Kind discriminates the tag of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Obj is implemented by every heap object variant (pkg/object). It is
// kept minimal and defined here, rather than imported from pkg/object,
// so that pkg/value has no dependency on pkg/object — pkg/object depends
// on pkg/value instead, not the other way around.
type Obj interface {
	// ObjType names the concrete heap object variant, for disassembly
	// and runtime type errors.
	ObjType() string
}

// Value is the tagged union every stack slot, global, constant, and
// field holds.
type Value struct {
	kind Kind
	num  float64
	obj  Obj
	b    bool
}

// Nil is the singular nil value.
var Nil = Value{kind: KindNil}

// True and False are the two boolean values.
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

// Number wraps a float64 as a Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromObj wraps a heap object reference as a Value.
func FromObj(o Obj) Value { return Value{kind: KindObj, obj: o} }

// IsNil, IsBool, IsNumber, IsObj report the Value's tag.
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool    { return v.kind == KindObj }

// AsBool, AsNumber, AsObj unwrap a Value of the matching kind. Calling
// the wrong accessor is a compiler/VM bug, not a user-facing error — both
// callers are expected to have already checked the tag with Is*.
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj        { return v.obj }

// IsFalsey implements lox truthiness: only nil and false are falsey,
// everything else — including 0 and the empty string — is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements value equality. nil==nil; booleans compare
// structurally; numbers compare by IEEE-754 equality (so NaN != NaN,
// +0.0 == -0.0); heap objects compare by identity, which is sound because
// strings are interned — two strings with equal contents are the same
// object.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// IsNaN reports whether v is a number holding NaN — useful to callers
// that need to special-case it (e.g. hash table probing never keys on
// numbers, so this matters only to language-level equality).
func (v Value) IsNaN() bool {
	return v.IsNumber() && math.IsNaN(v.num)
}

// TypeName returns a short, user-facing name for v's kind, used in
// runtime type-error messages.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		return v.obj.ObjType()
	default:
		return "unknown"
	}
}
