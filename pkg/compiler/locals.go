package compiler

import (
	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/lexer"
	"github.com/kristofer/lox/pkg/value"
)

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

// endScope pops every local declared in the scope being closed. A
// captured local is closed over (OP_CLOSE_UPVALUE migrates it off the
// stack into its own storage) rather than merely popped, so a closure
// that escaped the scope keeps a live reference to it.
func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	for c.fn.localCount > 0 && c.fn.locals[c.fn.localCount-1].depth > c.fn.scopeDepth {
		if c.fn.locals[c.fn.localCount-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fn.localCount--
	}
}

// declareVariable registers the identifier in c.previous as a new local
// of the current scope (a no-op at global scope, where names resolve
// dynamically by constant index instead). Declaring a duplicate name at
// the same scope depth is a compile error.
func (c *Compiler) declareVariable() {
	if c.fn.scopeDepth == 0 {
		return
	}
	name := c.previous
	for i := c.fn.localCount - 1; i >= 0; i-- {
		l := c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if l.name.Literal == name.Literal {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name lexer.Token) {
	if c.fn.localCount >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fn.locals[c.fn.localCount] = local{name: name, depth: -1}
	c.fn.localCount++
}

func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[c.fn.localCount-1].depth = c.fn.scopeDepth
}

// parseVariable consumes an identifier, declares it if we're in a local
// scope, and returns the constant-pool index to use with
// OP_DEFINE_GLOBAL if it turns out to be global (the index is otherwise
// unused).
func (c *Compiler) parseVariable(errMsg string) byte {
	c.consume(lexer.TokenIdentifier, errMsg)
	c.declareVariable()
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) identifierConstant(tok lexer.Token) byte {
	s := c.interner.InternString(tok.Literal)
	return c.makeConstant(value.FromObj(s))
}

func (c *Compiler) defineVariable(global byte) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

// resolveLocal searches f's locals innermost-first and returns the slot
// index, or -1 if not found. A local found but still uninitialized
// (depth -1), i.e. `var a = a;`, is reported as a compile error (not a
// Go panic) and its slot is still returned.
func (c *Compiler) resolveLocal(f *funcScope, name lexer.Token) int {
	for i := f.localCount - 1; i >= 0; i-- {
		if f.locals[i].name.Literal == name.Literal {
			if f.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue walks outward from f looking for name among enclosing
// functions' locals or their own upvalues, chaining capture entries
// through every intermediate function so a deeply nested closure can
// still reach a variable several functions further out.
func (c *Compiler) resolveUpvalue(f *funcScope, name lexer.Token) int {
	if f.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(f.enclosing, name); local != -1 {
		f.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(f, byte(local), true)
	}
	if up := c.resolveUpvalue(f.enclosing, name); up != -1 {
		return c.addUpvalue(f, byte(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(f *funcScope, index byte, isLocal bool) int {
	for i := 0; i < f.upvalueCount; i++ {
		if f.upvalues[i].index == index && f.upvalues[i].isLocal == isLocal {
			return i
		}
	}
	if f.upvalueCount >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	f.upvalues[f.upvalueCount] = upvalueRef{index: index, isLocal: isLocal}
	f.upvalueCount++
	return f.upvalueCount - 1
}

// namedVariable resolves an identifier in local, then upvalue, then
// global order, and emits the matching get or set opcode. When
// canAssign and an `=` follows, it compiles an assignment instead of
// a read.
func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp chunk.Op
	var arg int

	if local := c.resolveLocal(c.fn, name); local != -1 {
		arg = local
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else if up := c.resolveUpvalue(c.fn, name); up != -1 {
		arg = up
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}
