package compiler

import (
	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/lexer"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenFun):
		c.funDeclaration()
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenBreak):
		c.breakStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(lexer.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loop := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	loop.loopStart = len(c.fn.function.Chunk.Code)
	c.fn.loop = loop

	c.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loop.loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
	c.patchBreaks(loop)
	c.fn.loop = loop.enclosing
}

// forStatement implements the usual C-style desugaring: the increment
// clause is compiled once, after the body, by jumping over it on the
// way in and looping back into it on every iteration after.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.TokenSemicolon):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loop := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	loop.loopStart = len(c.fn.function.Chunk.Code)
	c.fn.loop = loop

	exitJump := -1
	if !c.match(lexer.TokenSemicolon) {
		c.expression()
		c.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(lexer.TokenRightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.fn.function.Chunk.Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loop.loopStart)
		loop.loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loop.loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}

	c.patchBreaks(loop)
	c.fn.loop = loop.enclosing
	c.endScope()
}

func (c *Compiler) patchBreaks(loop *loopState) {
	for _, jump := range loop.breakJumps {
		c.patchJump(jump)
	}
}

// breakStatement unwinds any locals opened since the loop started and
// patches a list of forward jumps at the enclosing loop's exit.
func (c *Compiler) breakStatement() {
	if c.fn.loop == nil {
		c.error("Can't use 'break' outside of a loop.")
		c.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
		return
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
	c.emitLoopPops(c.fn.loop.scopeDepth)
	jump := c.emitJump(chunk.OpJump)
	c.fn.loop.breakJumps = append(c.fn.loop.breakJumps, jump)
}

func (c *Compiler) emitLoopPops(targetDepth int) {
	for i := c.fn.localCount - 1; i >= 0 && c.fn.locals[i].depth > targetDepth; i-- {
		if c.fn.locals[i].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
	}
}

func (c *Compiler) returnStatement() {
	if c.fn.fnType == TypeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.fn.fnType == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

// funDeclaration compiles `fun name(params) { body }` as sugar for
// declaring a variable and immediately assigning it a closure.
func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

// beginFunction pushes a fresh funcScope as the new current function.
// Slot 0 is reserved: for methods and initializers it is implicitly
// named "this" (bound by the VM's call convention before the body
// runs); for plain functions it is anonymous and never resolved by
// name.
func (c *Compiler) beginFunction(fnType FunctionType, name *object.String) {
	fn := &funcScope{
		enclosing: c.fn,
		fnType:    fnType,
		function:  &object.Function{Name: name, Chunk: chunk.New()},
	}
	c.fn = fn
	c.interner.Track(fn.function)
	c.fn.locals[0] = local{depth: 0}
	if fnType != TypeFunction && fnType != TypeScript {
		c.fn.locals[0].name = lexer.Token{Type: lexer.TokenThis, Literal: "this"}
	}
	c.fn.localCount = 1
}

// function compiles one function body in its own funcScope, then emits
// OP_CLOSURE in the enclosing scope referencing the finished Function
// constant, followed by one (isLocal, index) byte pair per upvalue the
// body captured from its surroundings.
func (c *Compiler) function(fnType FunctionType) {
	name := c.interner.InternString(c.previous.Literal)
	c.beginFunction(fnType, name)
	c.beginScope()

	c.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !c.check(lexer.TokenRightParen) {
		for {
			c.fn.function.Arity++
			if c.fn.function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.")
			c.defineVariable(constant)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	c.block()

	upvalues := c.fn.upvalues
	upvalueCount := c.fn.upvalueCount
	fn := c.endFunction()

	idx := c.makeConstant(value.FromObj(fn))
	c.emitOpByte(chunk.OpClosure, idx)
	for i := 0; i < upvalueCount; i++ {
		c.emitByte(boolByte(upvalues[i].isLocal))
		c.emitByte(upvalues[i].index)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// classDeclaration compiles `class Name { ... }` and its optional
// `< Superclass` clause. A superclass's methods are snapshotted onto
// the new class via OP_INHERIT (pkg/object's Class.Inherit performs
// the actual copy at runtime), and while compiling the body a
// synthetic lexically-scoped `super` local is bound to the superclass
// value so `super.method()` expressions can resolve it like any other
// variable.
func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "Expect class name.")
	nameTok := c.previous
	nameConstant := c.identifierConstant(nameTok)
	c.declareVariable()

	c.emitOpByte(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	enclosingClass := c.class
	c.class = &classScope{enclosing: enclosingClass}

	if c.match(lexer.TokenLess) {
		c.consume(lexer.TokenIdentifier, "Expect superclass name.")
		if c.previous.Literal == nameTok.Literal {
			c.error("A class can't inherit from itself.")
		}
		c.variable(false)

		c.beginScope()
		c.addLocal(lexer.Token{Type: lexer.TokenIdentifier, Literal: "super"})
		c.defineVariable(0)

		c.namedVariable(nameTok, false)
		c.emitOp(chunk.OpInherit)
		c.class.hasSuperclass = true
	}

	c.namedVariable(nameTok, false)
	c.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if c.class.hasSuperclass {
		c.endScope()
	}
	c.class = enclosingClass
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "Expect method name.")
	nameTok := c.previous
	nameConstant := c.identifierConstant(nameTok)

	fnType := TypeMethod
	if nameTok.Literal == "init" {
		fnType = TypeInitializer
	}
	c.function(fnType)
	c.emitOpByte(chunk.OpMethod, nameConstant)
}
