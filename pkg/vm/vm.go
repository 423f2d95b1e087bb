// Package vm implements lox's bytecode virtual machine: a stack-based
// interpreter that executes the chunks pkg/compiler produces, manages
// the object heap and its precise mark-sweep collector, and exposes
// the Interner the compiler needs to intern identifiers and string
// literals through the same table the VM reads at runtime.
//
// The VM is a flat value stack shared by every call frame, dispatching
// on a fixed opcode switch: one Run-shaped entry point that accumulates
// a formatted stack trace as it unwinds on error.
package vm

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/compiler"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
)

// Logger receives optional tracing output. internal/diag implements
// this with a zap logger; tests and simple embedders can pass nil,
// which the VM treats as silent.
type Logger interface {
	Trace(format string, args ...interface{})
	TraceGC(format string, args ...interface{})
}

const initialNextGC = 1024 * 1024

// VM executes compiled lox programs. Create one with New and reuse it
// across multiple Interpret calls — globals, interned strings, and the
// heap's allocation list all persist across runs, matching the REPL's
// expectations.
type VM struct {
	stack      [stackMax]value.Value
	stackTop   int
	frames     [framesMax]callFrame
	frameCount int

	globals *table.Table[*object.String]
	strings *table.Table[string]

	openUpvalues map[int]*object.Upvalue

	initString *object.String

	objects        object.Tracked
	bytesAllocated int
	nextGC         int
	grayStack      []object.Tracked

	out io.Writer
	log Logger
}

// New returns a fresh VM. out receives `print`/`println` output; if
// nil, os.Stdout is assumed by the caller wiring it up (cmd/lox always
// supplies one). log may be nil.
func New(out io.Writer, log Logger) *VM {
	vm := &VM{
		globals:      table.New[*object.String](stringObjHash),
		strings:      table.New[string](object.HashFNV1a),
		openUpvalues: make(map[int]*object.Upvalue),
		out:          out,
		log:          log,
		nextGC:       initialNextGC,
	}
	vm.initString = vm.InternString("init")
	vm.defineNatives()
	return vm
}

func stringObjHash(s *object.String) uint32 { return s.Hash }

// Interpret compiles and runs source in one shot, the entry point used
// by both the REPL (one line at a time) and script execution (one
// file).
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		return err
	}
	closure := &object.Closure{Function: fn}
	vm.registerObject(closure)
	vm.push(value.FromObj(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// ---- Interner ----

// InternString returns the canonical *object.String for s, allocating
// and registering one on first sight. Every subsequent call with the
// same content returns the identical pointer, which is what lets the
// VM compare identifiers, method names, and field names by pointer
// identity instead of by string content at runtime.
func (vm *VM) InternString(s string) *object.String {
	if v, ok := vm.strings.Get(s); ok {
		return v.AsObj().(*object.String)
	}
	str := &object.String{Chars: s, Hash: object.HashFNV1a(s)}
	vm.PinTemp(value.FromObj(str))
	vm.registerObject(str)
	vm.strings.Set(s, value.FromObj(str))
	vm.UnpinTemp()
	return str
}

// PinTemp and UnpinTemp bracket a compile-time allocation against
// collection by parking it on the VM's own value stack — the same
// stack the collector already treats as a root, so no separate
// compiler-root bookkeeping is needed.
func (vm *VM) PinTemp(v value.Value) { vm.push(v) }
func (vm *VM) UnpinTemp()            { vm.pop() }

// Track links a heap object allocated outside the VM (pkg/compiler's
// Function values) onto the allocation list, the same list every
// Closure, String, Class, Instance, BoundMethod, Upvalue, and Native
// joins via registerObject at the point it is created.
func (vm *VM) Track(o object.Tracked) { vm.registerObject(o) }

// ---- stack primitives ----

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = make(map[int]*object.Upvalue)
}

// ---- allocation & GC bookkeeping ----

func (vm *VM) registerObject(o object.Tracked) {
	o.SetNext(vm.objects)
	vm.objects = o
	vm.bytesAllocated += objectSize(o)
	if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

// objectSize is a rough, constant-per-kind accounting used only to
// drive the heap-growth heuristic; it is not a real measurement of Go
// allocator bytes.
func objectSize(o object.Tracked) int {
	switch o.(type) {
	case *object.String:
		return 32
	case *object.Upvalue:
		return 24
	case *object.Closure:
		return 40
	case *object.BoundMethod:
		return 32
	case *object.Instance:
		return 48
	case *object.Class:
		return 48
	case *object.Function:
		return 64
	default:
		return 16
	}
}

// ---- runtime errors ----

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	var b strings.Builder
	b.WriteString(message)
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := fn.Chunk.LineAt(frame.ip - 1)
		b.WriteString(fmt.Sprintf("\n[line %d] in ", line))
		if fn.Name == nil {
			b.WriteString("script")
		} else {
			b.WriteString(fn.Name.Chars + "()")
		}
	}
	vm.resetStack()
	return &RuntimeError{Message: b.String()}
}

// RuntimeError is returned by Interpret/run for any failure detected
// while executing bytecode, carrying a pre-formatted stack trace with
// the innermost frame first.
type RuntimeError struct{ Message string }

func (e *RuntimeError) Error() string { return e.Message }

// ---- the interpreter loop ----

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *object.String {
		return readConstant().AsObj().(*object.String)
	}

	for {
		if vm.log != nil {
			vm.log.Trace("%s", vm.disassembleInstruction(frame.closure.Function.Chunk, frame.ip))
		}

		op := chunk.Op(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.True)
		case chunk.OpFalse:
			vm.push(value.False)
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.slots+slot])
		case chunk.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.slots+slot] = vm.peek(0)

		case chunk.OpGetUpvalue:
			slot := int(readByte())
			vm.push(frame.closure.Upvalues[slot].Get())
		case chunk.OpSetUpvalue:
			slot := int(readByte())
			frame.closure.Upvalues[slot].Set(vm.peek(0))

		case chunk.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case chunk.OpSetGlobal:
			name := readString()
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.globals.Set(name, vm.peek(0))

		case chunk.OpGetProperty:
			if !isInstance(vm.peek(0)) {
				return vm.runtimeError("Only instances have properties.")
			}
			inst := vm.peek(0).AsObj().(*object.Instance)
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}
		case chunk.OpSetProperty:
			if !isInstance(vm.peek(1)) {
				return vm.runtimeError("Only instances have fields.")
			}
			inst := vm.peek(1).AsObj().(*object.Instance)
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case chunk.OpGetSuper:
			name := readString()
			superclass := vm.pop().AsObj().(*object.Class)
			if !vm.bindMethod(superclass, name) {
				return vm.runtimeError("Undefined property '%s'.", name.Chars)
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.binaryCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.binaryCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.binaryNumber(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpJump:
			offset := readShort()
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case chunk.OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpInvoke:
			name := readString()
			argCount := int(readByte())
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpInvokeSuper:
			name := readString()
			argCount := int(readByte())
			superclass := vm.pop().AsObj().(*object.Class)
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := readConstant().AsObj().(*object.Function)
			closure := &object.Closure{Function: fn, Upvalues: make([]*object.Upvalue, fn.UpvalueCount)}
			vm.registerObject(closure)
			vm.push(value.FromObj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClass:
			vm.push(value.FromObj(newClass(vm, readString())))

		case chunk.OpInherit:
			superVal := vm.peek(1)
			if !isClass(superVal) {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).AsObj().(*object.Class)
			subclass.Inherit(superVal.AsObj().(*object.Class))
			vm.pop()

		case chunk.OpMethod:
			name := readString()
			method := vm.peek(0)
			class := vm.peek(1).AsObj().(*object.Class)
			class.Methods.Set(name, method)
			vm.pop()

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func isInstance(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*object.Instance)
	return ok
}

func isClass(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*object.Class)
	return ok
}

func newClass(vm *VM, name *object.String) *object.Class {
	c := object.NewClass(name)
	vm.registerObject(c)
	return c
}

// ---- arithmetic ----

func (vm *VM) binaryNumber(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Number(op(a, b)))
	return nil
}

func (vm *VM) binaryCompare(op func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Bool(op(a, b)))
	return nil
}

func (vm *VM) add() error {
	a, b := vm.peek(1), vm.peek(0)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
		return nil
	case isString(a) && isString(b):
		vm.pop()
		vm.pop()
		concatenated := a.AsObj().(*object.String).Chars + b.AsObj().(*object.String).Chars
		vm.push(value.FromObj(vm.InternString(concatenated)))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func isString(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*object.String)
	return ok
}

// ---- calls ----

func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch o := callee.AsObj().(type) {
	case *object.BoundMethod:
		vm.stack[vm.stackTop-argCount-1] = o.Receiver
		return vm.call(o.Method, argCount)
	case *object.Class:
		inst := object.NewInstance(o)
		vm.registerObject(inst)
		vm.stack[vm.stackTop-argCount-1] = value.FromObj(inst)
		if initializer, ok := o.Methods.Get(vm.initString); ok {
			return vm.call(initializer.AsObj().(*object.Closure), argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case *object.Closure:
		return vm.call(o, argCount)
	case *object.Native:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := o.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return nil
}

func (vm *VM) invoke(name *object.String, argCount int) error {
	receiver := vm.peek(argCount)
	if !isInstance(receiver) {
		return vm.runtimeError("Only instances have methods.")
	}
	inst := receiver.AsObj().(*object.Instance)
	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsObj().(*object.Closure), argCount)
}

func (vm *VM) bindMethod(class *object.Class, name *object.String) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return false
	}
	bound := &object.BoundMethod{Receiver: vm.peek(0), Method: method.AsObj().(*object.Closure)}
	vm.registerObject(bound)
	vm.pop()
	vm.push(value.FromObj(bound))
	return true
}

// ---- upvalues ----

// captureUpvalue returns the open upvalue for the given absolute stack
// index, reusing one already open over that slot. Unlike clox's
// sorted intrusive linked list (ordered by raw stack pointer), lox
// keys open upvalues by stack index in a map — Go gives up pointer
// arithmetic over the stack array, and the index is already at hand
// everywhere an upvalue is captured or closed.
func (vm *VM) captureUpvalue(index int) *object.Upvalue {
	if existing, ok := vm.openUpvalues[index]; ok {
		return existing
	}
	up := &object.Upvalue{Location: &vm.stack[index]}
	vm.registerObject(up)
	vm.openUpvalues[index] = up
	return up
}

// closeUpvalues closes every open upvalue at or above the given
// absolute stack index, called when a scope exits or a function
// returns.
func (vm *VM) closeUpvalues(fromIndex int) {
	for idx, up := range vm.openUpvalues {
		if idx >= fromIndex {
			up.Close()
			delete(vm.openUpvalues, idx)
		}
	}
}

// ---- natives ----

func (vm *VM) defineNatives() {
	vm.defineNative("clock", func(args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})
	vm.defineNative("print", func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(vm.out, object.Stringify(a))
		}
		return value.Nil, nil
	})
	vm.defineNative("println", func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(vm.out, object.Stringify(a))
		}
		fmt.Fprintln(vm.out)
		return value.Nil, nil
	})
}

func (vm *VM) defineNative(name string, fn object.NativeFn) {
	native := &object.Native{Name: name, Fn: fn}
	vm.registerObject(native)
	vm.globals.Set(vm.InternString(name), value.FromObj(native))
}
