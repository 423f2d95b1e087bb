// Package object defines the heap object model: the polymorphic set of
// reference types a lox program can allocate — strings, functions,
// closures, upvalues, classes, instances, bound methods, and natives.
//
// Every variant embeds Header, which carries the mark bit and the `next`
// pointer the VM threads every live allocation onto (see pkg/vm's
// allocation list and sweep). Objects are never copied or moved; the GC
// in pkg/vm walks this intrusive list directly.
package object

import (
	"fmt"
	"strings"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

func hashStringObj(s *String) uint32 { return s.Hash }

// Header is embedded by every heap object variant. isMarked and next are
// owned by the VM's collector (pkg/vm), not by object construction code;
// they start zero-valued and are wired up by the allocator.
type Header struct {
	isMarked bool
	next     value.Obj
}

// Marked reports whether the collector has already visited this object
// in the current cycle.
func (h *Header) Marked() bool { return h.isMarked }

// SetMarked sets or clears the mark bit.
func (h *Header) SetMarked(m bool) { h.isMarked = m }

// Next returns the next object in the VM's allocation list.
func (h *Header) Next() value.Obj { return h.next }

// SetNext links this object to the next one in the allocation list.
func (h *Header) SetNext(n value.Obj) { h.next = n }

// Tracked is the superset of value.Obj the collector needs: every
// concrete heap type satisfies it automatically by embedding Header,
// so pkg/vm's mark-sweep can walk the allocation list and flip mark
// bits without a type switch over every variant.
type Tracked interface {
	value.Obj
	Marked() bool
	SetMarked(bool)
	Next() value.Obj
	SetNext(value.Obj)
}

// String is an interned, immutable byte sequence. Two live Strings with
// equal contents are always the same object — interning is enforced by
// the VM's string table, not by this type.
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (*String) ObjType() string { return "string" }
func (s *String) String() string { return s.Chars }

// HashFNV1a computes the 32-bit FNV-1a hash used to key interned strings.
func HashFNV1a(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Function is a compiled lox function: its arity, how many upvalues its
// closures need, the bytecode that implements it, and an optional name
// (nil for the implicit top-level script function).
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         *String
}

func (*Function) ObjType() string { return "function" }

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// Native is a host function exposed to lox code: clock, print, println.
// Natives are synchronous and run to completion on the VM's goroutine —
// they must never recurse back into the interpreter.
type NativeFn func(args []value.Value) (value.Value, error)

type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func (*Native) ObjType() string { return "native function" }
func (n *Native) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// Upvalue is a captured-variable cell. While Open, Location points at a
// live stack slot and Closed is unused. Closing an upvalue copies the
// slot's current value into Closed and redirects Location to point at
// it, after which the upvalue is detached from the VM's open list.
type Upvalue struct {
	Header
	Location *value.Value // while open: address of a VM stack slot
	Closed   value.Value  // while closed: the owned copy
	NextOpen *Upvalue     // unused: pkg/vm keeps open upvalues in a map keyed by stack index
}

func (*Upvalue) ObjType() string { return "upvalue" }
func (*Upvalue) String() string  { return "upvalue" }

// IsOpen reports whether this upvalue still aliases a stack slot.
func (u *Upvalue) IsOpen() bool { return u.Location != &u.Closed }

// Get returns the upvalue's current value, open or closed.
func (u *Upvalue) Get() value.Value { return *u.Location }

// Set stores through the upvalue, open or closed.
func (u *Upvalue) Set(v value.Value) { *u.Location = v }

// Close copies the aliased slot's value into the owned Closed field and
// redirects Location at it. Safe to call at most once per upvalue.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// Closure pairs a Function with the upvalue references its body
// captured. Calling a closure calls its Function's bytecode with this
// specific set of captured variables.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func (*Closure) ObjType() string { return "closure" }

func (c *Closure) String() string { return c.Function.String() }

// Class is a named bag of methods. Inheritance copies the superclass's
// method table into the subclass at class-declaration time — a snapshot,
// not a live link (see Class.Inherit).
type Class struct {
	Header
	Name    *String
	Methods *table.Table[*String]
}

func (*Class) ObjType() string  { return "class" }
func (c *Class) String() string { return c.Name.Chars }

// NewClass allocates a Class with an empty method table.
func NewClass(name *String) *Class {
	return &Class{Name: name, Methods: table.New[*String](hashStringObj)}
}

// Inherit copies every method from super into c's own table — a
// snapshot, not a live link: methods added to super afterward do not
// retroactively appear in c.
func (c *Class) Inherit(super *Class) {
	c.Methods.AddAllFrom(super.Methods)
}

// Instance is a live object of some Class, holding its own field table.
type Instance struct {
	Header
	Class  *Class
	Fields *table.Table[*String]
}

func (*Instance) ObjType() string { return "instance" }

func (i *Instance) String() string {
	return fmt.Sprintf("%s instance", i.Class.Name.Chars)
}

// NewInstance allocates an Instance of class with an empty field table.
func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New[*String](hashStringObj)}
}

// BoundMethod pairs a receiver with the method closure looked up on it.
// Calling a bound method calls Method with Receiver preloaded into
// slot 0.
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   *Closure
}

func (*BoundMethod) ObjType() string { return "bound method" }

func (b *BoundMethod) String() string { return b.Method.String() }

// Stringify renders a Value for `print`/`println` and for error
// messages, matching lox's minimal, separator-free output contract.
func Stringify(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObj():
		switch o := v.AsObj().(type) {
		case *String:
			return o.Chars
		case fmt.Stringer:
			return o.String()
		default:
			return v.TypeName()
		}
	default:
		return "nil"
	}
}

func formatNumber(n float64) string {
	s := fmt.Sprintf("%g", n)
	// Go's %g drops the fractional part for integral floats the same way
	// clox's printf("%g", ...) does. The exponent marker is lowercased;
	// its sign and %g's two-digit minimum exponent are kept (1e+06).
	if strings.ContainsAny(s, "eE") {
		s = strings.ToLower(s)
	}
	return s
}
