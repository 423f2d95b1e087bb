// Package compiler implements lox's single-pass Pratt compiler: it
// consumes a token stream and emits bytecode directly, with no
// intermediate AST. Variable references — local, upvalue, or global —
// are resolved the instant an identifier is encountered, against a
// stack of per-function compiler contexts that mirrors the lexical
// nesting of the source.
//
// Parsing and code generation happen in the same pass: there is no
// tree built and walked afterward. The compiler tracks two tokens of
// lookahead (current/previous) and accumulates every error it finds
// during a pass rather than aborting on the first one, recovering at
// the next statement boundary.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/lexer"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

// Interner lets the compiler create interned string constants (for
// identifiers, string literals, and class/method names) through the same
// string table the VM uses at runtime, so identity-based comparisons
// hold once the program executes. Implemented by *vm.VM.
type Interner interface {
	InternString(s string) *object.String
	// PinTemp and UnpinTemp bracket an allocation that must survive any
	// GC the allocation itself might trigger, implemented here via the
	// VM's value stack since compiler and VM share one VM instance per
	// Compile call.
	PinTemp(v value.Value)
	UnpinTemp()
	// Track links a freshly allocated heap object onto the VM's
	// allocation list, the same list every Closure, String, and Class
	// joins at creation. Functions are allocated here in pkg/compiler
	// rather than by the VM itself, so without this call they would
	// never be swept or have their mark bit reset between collections.
	Track(o object.Tracked)
}

// FunctionType distinguishes the four kinds of compiled function body,
// each with slightly different rules for slot 0 and implicit returns.
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeScript
	TypeMethod
	TypeInitializer
)

const maxLocals = 256
const maxUpvalues = 255
const maxJump = 1 << 16

// local records one declared local variable: its name, its scope depth
// (-1 until initialized, to reject `var a = a;`), and whether any nested
// function captures it as an upvalue.
type local struct {
	name       lexer.Token
	depth      int
	isCaptured bool
}

// upvalueRef is one entry of a function's upvalue array: either a direct
// capture of the immediately enclosing function's local (isLocal=true,
// index = local slot) or a pass-through of the enclosing function's own
// upvalue (isLocal=false, index = upvalue slot).
type upvalueRef struct {
	index   byte
	isLocal bool
}

// loopState tracks one enclosing loop's break-patch sites and the scope
// depth it started at, so `break` knows how many scopes to unwind before
// jumping.
type loopState struct {
	enclosing  *loopState
	loopStart  int
	scopeDepth int
	breakJumps []int
}

// funcScope is one function's compilation context: a node in a
// singly-linked stack of enclosing functions, head = innermost.
type funcScope struct {
	enclosing  *funcScope
	function   *object.Function
	fnType     FunctionType
	locals     [maxLocals]local
	localCount int
	upvalues     [maxUpvalues]upvalueRef
	upvalueCount int
	scopeDepth   int
	loop         *loopState
}

// classScope is one class declaration's compilation context, tracking
// only whether the class currently being compiled has a superclass (so
// `super` can be validated and the synthetic `super` local resolved).
type classScope struct {
	enclosing     *classScope
	hasSuperclass bool
}

// Compiler holds all state for compiling one top-level program. Create a
// fresh Compiler per Compile call; it is not reusable.
type Compiler struct {
	lex     *lexer.Lexer
	interner Interner

	previous lexer.Token
	current  lexer.Token

	hadError  bool
	panicMode bool
	errs      []string

	fn    *funcScope
	class *classScope
}

// Compile compiles source into a top-level Function (the "script"
// function, arity 0, called once by the VM). On any compile error it
// returns a nil function and a non-nil error summarizing every error
// message accumulated during the panic-mode-suppressed pass.
func Compile(source string, interner Interner) (*object.Function, error) {
	c := &Compiler{lex: lexer.New(source), interner: interner}
	c.fn = &funcScope{fnType: TypeScript, function: &object.Function{Chunk: chunk.New()}}
	interner.Track(c.fn.function)
	// Slot 0 is reserved; for a plain function it holds the function
	// value itself and is never named.
	c.fn.locals[0] = local{depth: 0}
	c.fn.localCount = 1

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}

	fn := c.endFunction()
	if c.hadError {
		return nil, &CompileError{Messages: c.errs}
	}
	return fn, nil
}

// CompileError aggregates every message reported during a compile pass.
type CompileError struct{ Messages []string }

func (e *CompileError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	s := ""
	for i, m := range e.Messages {
		if i > 0 {
			s += "\n"
		}
		s += m
	}
	return s
}

// ---- token plumbing ----

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != lexer.TokenIllegal {
			break
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(tt lexer.TokenType) bool { return c.current.Type == tt }

func (c *Compiler) match(tt lexer.TokenType) bool {
	if !c.check(tt) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(tt lexer.TokenType, msg string) {
	if c.current.Type == tt {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// ---- error reporting & panic-mode synchronisation ----

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok lexer.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenIllegal:
		// lexer errors carry their own message already.
	default:
		where = fmt.Sprintf(" at '%s'", tok.Literal)
	}
	c.errs = append(c.errs, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, msg))
	c.hadError = true
}

// synchronize discards tokens until a statement boundary, clearing panic
// mode so later errors are reported again. Recovery is purely
// statement-level; it does not attempt to resume mid-expression.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn, lexer.TokenBreak:
			return
		}
		c.advance()
	}
}

// ---- emission helpers ----

func (c *Compiler) emitByte(b byte) { c.fn.function.Chunk.Write(b, c.previous.Line) }
func (c *Compiler) emitOp(op chunk.Op) { c.fn.function.Chunk.WriteOp(op, c.previous.Line) }

func (c *Compiler) emitOpByte(op chunk.Op, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.makeConstant(v)
	c.emitOpByte(chunk.OpConstant, idx)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	if v.IsObj() {
		c.interner.PinTemp(v)
		defer c.interner.UnpinTemp()
	}
	idx, err := c.fn.function.Chunk.AddConstant(v)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return byte(idx)
}

// emitJump writes a jump opcode with a two-byte placeholder operand and
// returns the offset of the first placeholder byte, to be patched once
// the jump target is known.
func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.fn.function.Chunk.Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.fn.function.Chunk.Code) - offset - 2
	if jump > maxJump-1 {
		c.error("Too much code to jump over.")
		return
	}
	c.fn.function.Chunk.Code[offset] = byte((jump >> 8) & 0xff)
	c.fn.function.Chunk.Code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := len(c.fn.function.Chunk.Code) - loopStart + 2
	if offset > maxJump-1 {
		c.error("Loop body too large.")
	}
	c.emitByte(byte((offset >> 8) & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) emitReturn() {
	if c.fn.fnType == TypeInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// endFunction emits the implicit return and finalizes the current
// function scope's Function object, then pops back to the enclosing
// scope (nil at the top level).
func (c *Compiler) endFunction() *object.Function {
	c.emitReturn()
	fn := c.fn.function
	fn.UpvalueCount = c.fn.upvalueCount
	c.fn = c.fn.enclosing
	return fn
}

func identifierToken(t lexer.Token) string { return t.Literal }

func strconvParseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
