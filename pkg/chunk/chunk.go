// Package chunk implements the append-only bytecode buffer the compiler
// writes into and the VM executes: a byte stream of opcodes and
// operands, a parallel line-number table (one entry per byte, for error
// reporting), and a constant pool.
//
// Operand widths are fixed and load-bearing: 1-byte constant/local/slot
// indices and 2-byte jump offsets. The compiler reasons explicitly about
// whether a jump fits in 16 bits, and the constant pool is capped at 256
// entries by the 1-byte operand that addresses it.
package chunk

import "github.com/kristofer/lox/pkg/value"

// Op is a single-byte instruction opcode.
type Op byte

const (
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpGetProperty
	OpSetProperty
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpClosure
	OpCloseUpvalue
	OpReturn
	OpClass
	OpInherit
	OpMethod
	OpGetSuper
	OpInvokeSuper
)

var opNames = map[Op]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
	OpInherit:      "OP_INHERIT",
	OpMethod:       "OP_METHOD",
	OpGetSuper:     "OP_GET_SUPER",
	OpInvokeSuper:  "OP_INVOKE_SUPER",
}

// String renders an Op's mnemonic, or "OP_UNKNOWN" for a byte that is
// not a defined opcode. opNames has an entry for every opcode above.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}

const maxConstants = 256

// Chunk is one compiled function's worth of bytecode: instructions, a
// parallel per-byte line table, and a constant pool.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty Chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends one raw byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Op, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends val to the constant pool and returns its index.
// Callers are responsible for pinning val against collection first when
// it is a freshly allocated heap object, since appending can itself
// trigger a GC-driven allocation elsewhere before the constant is ever
// reachable from a chunk. Returns an error if the pool is already at
// its 256-entry, single-byte-operand capacity.
func (c *Chunk) AddConstant(val value.Value) (int, error) {
	if len(c.Constants) >= maxConstants {
		return 0, errTooManyConstants
	}
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1, nil
}

var errTooManyConstants = chunkError("too many constants in one chunk")

type chunkError string

func (e chunkError) Error() string { return string(e) }

// LineAt returns the source line recorded for the instruction byte at
// offset, used to build runtime stack traces.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}
