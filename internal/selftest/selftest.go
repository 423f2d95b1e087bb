// Package selftest is lox's built-in smoke-test battery, run via
// `lox --test` instead of a separate test binary so a freshly built
// release can sanity-check itself without a Go toolchain on hand.
//
// Each subsystem gets its own named suite accumulating a pass/fail
// count, rendered as a table of cases rather than a long list of
// individual assertions. Alongside suites for the lexer and the hash
// table sits a suite of whole-program cases — closures, classes,
// inheritance, arithmetic, string concatenation, runtime-error stack
// traces — that exercises the compiler and VM end to end.
package selftest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/kristofer/lox/pkg/lexer"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/table"
	"github.com/kristofer/lox/pkg/value"
	"github.com/kristofer/lox/pkg/vm"
)

// suite accumulates pass/fail results for one subsystem.
type suite struct {
	name     string
	pass     int
	fail     int
	failures []string
}

func (s *suite) check(desc string, cond bool) {
	if cond {
		s.pass++
		return
	}
	s.fail++
	s.failures = append(s.failures, desc)
}

// Report is the outcome of a full Run: every suite plus the totals.
type Report struct {
	Suites []suite
	Pass   int
	Fail   int
}

// Failed reports whether any suite had a failing case.
func (r Report) Failed() bool {
	return r.Fail > 0
}

// String renders the report's final tally: a breakdown of every
// failing case grouped by suite, if any, followed by the pass/fail
// counts.
func (r Report) String() string {
	var b strings.Builder
	for _, s := range r.Suites {
		if s.fail == 0 {
			continue
		}
		fmt.Fprintf(&b, "Suite %q failed:\n", s.name)
		for _, f := range s.failures {
			fmt.Fprintf(&b, "    %s\n", f)
		}
	}
	fmt.Fprintf(&b, "%d test(s) passed.\n", r.Pass)
	if r.Fail > 0 {
		fmt.Fprintf(&b, "%d test(s) failed.\n", r.Fail)
	}
	return b.String()
}

// Run executes every suite and returns the aggregate report.
func Run() Report {
	var report Report
	for _, s := range []suite{
		runLexerSuite(),
		runTableSuite(),
		runProgramSuite(),
	} {
		report.Suites = append(report.Suites, s)
		report.Pass += s.pass
		report.Fail += s.fail
	}
	return report
}

// runLexerSuite feeds a source string in and asserts the resulting
// token-type stream. Integer and floating literals both collapse to
// one TokenNumber, so the expected streams never distinguish them.
func runLexerSuite() suite {
	s := suite{name: "lexer"}

	cases := []struct {
		name   string
		source string
		want   []lexer.TokenType
	}{
		{
			name:   "call with number and string arguments",
			source: `print(1 + a, "Hello");`,
			want: []lexer.TokenType{
				lexer.TokenIdentifier, lexer.TokenLeftParen, lexer.TokenNumber, lexer.TokenPlus,
				lexer.TokenIdentifier, lexer.TokenComma, lexer.TokenString, lexer.TokenRightParen,
				lexer.TokenSemicolon, lexer.TokenEOF,
			},
		},
		{
			name:   "punctuation",
			source: `(){}+-*/.`,
			want: []lexer.TokenType{
				lexer.TokenLeftParen, lexer.TokenRightParen, lexer.TokenLeftBrace, lexer.TokenRightBrace,
				lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar, lexer.TokenSlash, lexer.TokenDot,
				lexer.TokenEOF,
			},
		},
		{
			name: "line comment is skipped",
			source: "if (true) {\n" +
				"    // this doesn't do anything interesting\n" +
				"    return false;\n" +
				"}",
			want: []lexer.TokenType{
				lexer.TokenIf, lexer.TokenLeftParen, lexer.TokenTrue, lexer.TokenRightParen,
				lexer.TokenLeftBrace, lexer.TokenReturn, lexer.TokenFalse, lexer.TokenSemicolon,
				lexer.TokenRightBrace, lexer.TokenEOF,
			},
		},
		{
			name:   "bigraphs, break, and the or keyword",
			source: `while (x <= 2000) { if (y >= 4 or x == 3) { break; } }`,
			want: []lexer.TokenType{
				lexer.TokenWhile, lexer.TokenLeftParen, lexer.TokenIdentifier, lexer.TokenLessEqual,
				lexer.TokenNumber, lexer.TokenRightParen, lexer.TokenLeftBrace, lexer.TokenIf,
				lexer.TokenLeftParen, lexer.TokenIdentifier, lexer.TokenGreaterEqual, lexer.TokenNumber,
				lexer.TokenOr, lexer.TokenIdentifier, lexer.TokenEqualEqual, lexer.TokenNumber,
				lexer.TokenRightParen, lexer.TokenLeftBrace, lexer.TokenBreak, lexer.TokenSemicolon,
				lexer.TokenRightBrace, lexer.TokenRightBrace, lexer.TokenEOF,
			},
		},
		{
			name:   "class, super, nil, bang-equal",
			source: `class fun !super, nil != 2.0`,
			want: []lexer.TokenType{
				lexer.TokenClass, lexer.TokenFun, lexer.TokenBang, lexer.TokenSuper, lexer.TokenComma,
				lexer.TokenNil, lexer.TokenBangEqual, lexer.TokenNumber, lexer.TokenEOF,
			},
		},
		{
			name:   "numbers with underscores and exponents",
			source: `1e-2 1e+2 3.14159_265 1. 2.2`,
			want: []lexer.TokenType{
				lexer.TokenNumber, lexer.TokenNumber, lexer.TokenNumber, lexer.TokenNumber,
				lexer.TokenDot, lexer.TokenNumber, lexer.TokenEOF,
			},
		},
		{
			name:   "unterminated string is an illegal token",
			source: `"never closed`,
			want:   []lexer.TokenType{lexer.TokenIllegal, lexer.TokenEOF},
		},
	}

	for _, c := range cases {
		got := lexer.New(c.source).Tokenize()
		ok := len(got) == len(c.want)
		if ok {
			for i, tt := range c.want {
				if got[i].Type != tt {
					ok = false
					break
				}
			}
		}
		desc := fmt.Sprintf("%s: token stream matches for %q", c.name, c.source)
		if !ok {
			desc = fmt.Sprintf("%s (got %v, want %v)", desc, tokenTypes(got), c.want)
		}
		s.check(desc, ok)
	}

	return s
}

func tokenTypes(toks []lexer.Token) []lexer.TokenType {
	out := make([]lexer.TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

// runTableSuite exercises pkg/table's API directly: lookup, entry
// counts, deletion, tombstone reuse, AddAllFrom, and Keys on a
// string-keyed table.
func runTableSuite() suite {
	s := suite{name: "table"}

	t := table.New[string](object.HashFNV1a)
	_, found := t.Get("key")
	s.check("empty table misses", !found)

	t.Set("key", value.Number(2))
	v, found := t.Get("key")
	s.check("set then get finds the value", found && v.AsNumber() == 2)
	s.check("count is 1 after one insert", t.Count() == 1)

	dest := table.New[string](object.HashFNV1a)
	t.AddAllFrom(dest)
	dest.AddAllFrom(t)
	v, found = dest.Get("key")
	s.check("AddAllFrom copies entries", found && v.AsNumber() == 2)

	t.Set("key_2", value.Number(3.14))
	v, found = t.Get("key_2")
	s.check("second key is retrievable", found && v.AsNumber() == 3.14)
	s.check("count is 2 after two inserts", t.Count() == 2)

	s.check("delete reports presence", t.Delete("key"))
	_, found = t.Get("key")
	s.check("deleted key no longer found", !found)

	t.Set("key", value.Number(9))
	v, found = t.Get("key")
	s.check("re-insert after delete overwrites tombstone and is found", found && v.AsNumber() == 9)

	keys := t.Keys()
	s.check("Keys reports every live key", len(keys) == 2)

	return s
}

// runProgramSuite drives the compiler and VM end to end, compiling and
// running a whole program per case rather than exercising one data
// structure in isolation.
func runProgramSuite() suite {
	s := suite{name: "programs"}

	cases := []struct {
		name       string
		source     string
		wantOutput string
		wantErr    string
	}{
		{
			name:       "arithmetic precedence",
			source:     `print(1 + 2 * 3);`,
			wantOutput: "7",
		},
		{
			name:       "string concatenation",
			source:     `print("foo" + "bar");`,
			wantOutput: "foobar",
		},
		{
			name: "closures capture by reference",
			source: `
				fun makeCounter() {
					var count = 0;
					fun increment() {
						count = count + 1;
						return count;
					}
					return increment;
				}
				var counter = makeCounter();
				println(counter());
				println(counter());
			`,
			wantOutput: "1\n2\n",
		},
		{
			name: "classes and single inheritance with super calls",
			source: `
				class Animal {
					init(name) {
						this.name = name;
					}
					speak() {
						return this.name + " makes a sound";
					}
				}
				class Dog < Animal {
					speak() {
						return super.speak() + ", specifically a bark";
					}
				}
				var d = Dog("Rex");
				print(d.speak());
			`,
			wantOutput: "Rex makes a sound, specifically a bark",
		},
		{
			name: "break unwinds out of a nested loop block",
			source: `
				var total = 0;
				for (var i = 0; i < 10; i = i + 1) {
					if (i == 3) {
						break;
					}
					total = total + i;
				}
				print(total);
			`,
			wantOutput: "3",
		},
		{
			name:    "undefined global reports a runtime error with a stack trace",
			source:  `fun outer() { return missing; } outer();`,
			wantErr: "Undefined variable 'missing'",
		},
	}

	for _, c := range cases {
		var out bytes.Buffer
		machine := vm.New(&out, nil)
		err := machine.Interpret(c.source)

		if c.wantErr != "" {
			ok := err != nil && strings.Contains(err.Error(), c.wantErr)
			desc := fmt.Sprintf("%s: error contains %q", c.name, c.wantErr)
			if !ok {
				desc = fmt.Sprintf("%s (got err=%v)", desc, err)
			}
			s.check(desc, ok)
			continue
		}

		ok := err == nil && out.String() == c.wantOutput
		desc := fmt.Sprintf("%s: output matches", c.name)
		if !ok {
			desc = fmt.Sprintf("%s (got output=%q err=%v, want %q)", desc, out.String(), err, c.wantOutput)
		}
		s.check(desc, ok)
	}

	return s
}

// Write renders a Report to w as plain text. cmd/lox writes it to
// stdout uncolored.
func Write(w io.Writer, r Report) {
	fmt.Fprint(w, r.String())
}
