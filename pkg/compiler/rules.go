package compiler

import "github.com/kristofer/lox/pkg/lexer"

// Precedence orders binary operators low-to-high. parsePrecedence(p)
// parses everything of precedence >= p.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the per-token-type Pratt dispatch table: (prefix rule, infix
// rule, precedence), keyed by token tag. Plain function pointers are
// enough in Go; no interface dispatch needed beyond the parseFn type
// itself.
var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {(*Compiler).grouping, (*Compiler).call, PrecCall},
		lexer.TokenDot:          {nil, (*Compiler).dot, PrecCall},
		lexer.TokenMinus:        {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		lexer.TokenPlus:         {nil, (*Compiler).binary, PrecTerm},
		lexer.TokenSlash:        {nil, (*Compiler).binary, PrecFactor},
		lexer.TokenStar:         {nil, (*Compiler).binary, PrecFactor},
		lexer.TokenBang:         {(*Compiler).unary, nil, PrecNone},
		lexer.TokenBangEqual:    {nil, (*Compiler).binary, PrecEquality},
		lexer.TokenEqualEqual:   {nil, (*Compiler).binary, PrecEquality},
		lexer.TokenGreater:      {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenGreaterEqual: {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenLess:         {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenLessEqual:    {nil, (*Compiler).binary, PrecComparison},
		lexer.TokenIdentifier:   {(*Compiler).variable, nil, PrecNone},
		lexer.TokenString:       {(*Compiler).stringLiteral, nil, PrecNone},
		lexer.TokenNumber:       {(*Compiler).number, nil, PrecNone},
		lexer.TokenAnd:          {nil, (*Compiler).and, PrecAnd},
		lexer.TokenOr:           {nil, (*Compiler).or, PrecOr},
		lexer.TokenFalse:        {(*Compiler).literal, nil, PrecNone},
		lexer.TokenTrue:         {(*Compiler).literal, nil, PrecNone},
		lexer.TokenNil:          {(*Compiler).literal, nil, PrecNone},
		lexer.TokenThis:         {(*Compiler).this, nil, PrecNone},
		lexer.TokenSuper:        {(*Compiler).super, nil, PrecNone},
	}
}

func getRule(tt lexer.TokenType) parseRule {
	if r, ok := rules[tt]; ok {
		return r
	}
	return parseRule{}
}
