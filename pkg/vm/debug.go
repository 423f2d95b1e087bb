package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/object"
)

// Disassemble renders every instruction in a chunk, one per line,
// prefixed with name as a header. It lives here rather than in
// pkg/chunk because rendering OP_CONSTANT operands that hold function
// objects needs object.Stringify, and pkg/object already imports
// pkg/chunk for Function.Chunk — putting the disassembler in pkg/chunk
// would close that import loop.
func Disassemble(c *chunk.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		line, next := disassembleInstruction(c, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

func (vm *VM) disassembleInstruction(c *chunk.Chunk, offset int) string {
	line, _ := disassembleInstruction(c, offset)
	return line
}

func disassembleInstruction(c *chunk.Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.LineAt(offset) == c.LineAt(offset-1) {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.LineAt(offset))
	}

	op := chunk.Op(c.Code[offset])
	switch op {
	case chunk.OpConstant:
		return constantInstruction(b.String(), c, offset)
	case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpCall:
		return byteInstruction(b.String(), op, c, offset)
	case chunk.OpDefineGlobal, chunk.OpGetGlobal, chunk.OpSetGlobal,
		chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpClass, chunk.OpMethod, chunk.OpGetSuper:
		return constantInstruction(b.String(), c, offset)
	case chunk.OpJump, chunk.OpJumpIfFalse:
		return jumpInstruction(b.String(), op, 1, c, offset)
	case chunk.OpLoop:
		return jumpInstruction(b.String(), op, -1, c, offset)
	case chunk.OpInvoke, chunk.OpInvokeSuper:
		return invokeInstruction(b.String(), c, offset)
	case chunk.OpClosure:
		return closureInstruction(b.String(), c, offset)
	default:
		b.WriteString(op.String())
		return b.String(), offset + 1
	}
}

func constantInstruction(prefix string, c *chunk.Chunk, offset int) (string, int) {
	op := chunk.Op(c.Code[offset])
	constant := c.Code[offset+1]
	return fmt.Sprintf("%s%-16s %4d '%s'", prefix, op.String(), constant, object.Stringify(c.Constants[constant])), offset + 2
}

func byteInstruction(prefix string, op chunk.Op, c *chunk.Chunk, offset int) (string, int) {
	slot := c.Code[offset+1]
	return fmt.Sprintf("%s%-16s %4d", prefix, op.String(), slot), offset + 2
}

func jumpInstruction(prefix string, op chunk.Op, sign int, c *chunk.Chunk, offset int) (string, int) {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	return fmt.Sprintf("%s%-16s %4d -> %d", prefix, op.String(), offset, target), offset + 3
}

func invokeInstruction(prefix string, c *chunk.Chunk, offset int) (string, int) {
	constant := c.Code[offset+1]
	argCount := c.Code[offset+2]
	op := chunk.Op(c.Code[offset])
	return fmt.Sprintf("%s%-16s (%d args) %4d '%s'", prefix, op.String(), argCount, constant, object.Stringify(c.Constants[constant])), offset + 3
}

func closureInstruction(prefix string, c *chunk.Chunk, offset int) (string, int) {
	offset++
	constant := c.Code[offset]
	offset++
	var b strings.Builder
	fn := c.Constants[constant].AsObj().(*object.Function)
	fmt.Fprintf(&b, "%s%-16s %4d '%s'", prefix, "OP_CLOSURE", constant, object.Stringify(c.Constants[constant]))
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := c.Code[offset]
		offset++
		index := c.Code[offset]
		offset++
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(&b, "\n%04d      |                     %s %d", offset-2, kind, index)
	}
	return b.String(), offset
}
