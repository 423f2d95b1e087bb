package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextToken_BasicTokens(t *testing.T) {
	input := `(){},.-+;/* ! != = == < <= > >=`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLeftParen, "("},
		{TokenRightParen, ")"},
		{TokenLeftBrace, "{"},
		{TokenRightBrace, "}"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenMinus, "-"},
		{TokenPlus, "+"},
		{TokenSemicolon, ";"},
		{TokenSlash, "/"},
		{TokenStar, "*"},
		{TokenBang, "!"},
		{TokenBangEqual, "!="},
		{TokenEqual, "="},
		{TokenEqualEqual, "=="},
		{TokenLess, "<"},
		{TokenLessEqual, "<="},
		{TokenGreater, ">"},
		{TokenGreaterEqual, ">="},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equalf(t, tt.expectedType, tok.Type, "tests[%d] type", i)
		require.Equalf(t, tt.expectedLiteral, tok.Literal, "tests[%d] literal", i)
	}
}

func TestNextToken_KeywordsAndIdentifiers(t *testing.T) {
	input := `var x = 5; fun add(a, b) { return a + b; } class Foo { } this super and or nil true false if else while for break`

	l := New(input)
	var got []TokenType
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		got = append(got, tok.Type)
	}

	require.Contains(t, got, TokenVar)
	require.Contains(t, got, TokenFun)
	require.Contains(t, got, TokenClass)
	require.Contains(t, got, TokenThis)
	require.Contains(t, got, TokenSuper)
	require.Contains(t, got, TokenBreak)
	require.Contains(t, got, TokenIdentifier)
}

func TestNextToken_Numbers(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"123.456", "123.456"},
		{"1_000_000", "1000000"},
		{"1e10", "1e10"},
		{"1.5e-3", "1.5e-3"},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		require.Equal(t, TokenNumber, tok.Type)
		require.Equal(t, tt.expected, tok.Literal)
	}
}

func TestNextToken_Strings(t *testing.T) {
	l := New(`"hello world"`)
	tok := l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, "hello world", tok.Literal)
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := New(`"hello`)
	tok := l.NextToken()
	require.Equal(t, TokenIllegal, tok.Type)
}

func TestNextToken_CommentsSkipped(t *testing.T) {
	l := New("// a comment\nvar x = 1;")
	tok := l.NextToken()
	require.Equal(t, TokenVar, tok.Type)
}

func TestNextToken_LineTracking(t *testing.T) {
	l := New("var\nx\n=\n1;")
	var lines []int
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	require.Equal(t, []int{1, 2, 3, 4, 4}, lines)
}

func TestNextToken_NegativeNumberIsTwoTokens(t *testing.T) {
	// lox treats unary minus as an operator, not part of the literal.
	l := New("-5")
	tok := l.NextToken()
	require.Equal(t, TokenMinus, tok.Type)
	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "5", tok.Literal)
}

func TestTokenize(t *testing.T) {
	toks := New("1 + 2;").Tokenize()
	require.Equal(t, TokenEOF, toks[len(toks)-1].Type)
}
