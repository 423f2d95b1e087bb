package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

// fakeInterner is a minimal Interner for compiler tests that don't need
// a real VM: it interns by content into a plain map, with no GC to pin
// against.
type fakeInterner struct {
	strings map[string]*object.String
}

func newFakeInterner() *fakeInterner {
	return &fakeInterner{strings: make(map[string]*object.String)}
}

func (f *fakeInterner) InternString(s string) *object.String {
	if str, ok := f.strings[s]; ok {
		return str
	}
	str := &object.String{Chars: s, Hash: object.HashFNV1a(s)}
	f.strings[s] = str
	return str
}

func (f *fakeInterner) PinTemp(value.Value)  {}
func (f *fakeInterner) UnpinTemp()           {}
func (f *fakeInterner) Track(object.Tracked) {}

func compileOK(t *testing.T, source string) *object.Function {
	t.Helper()
	fn, err := Compile(source, newFakeInterner())
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func compileErr(t *testing.T, source string) error {
	t.Helper()
	fn, err := Compile(source, newFakeInterner())
	require.Error(t, err)
	require.Nil(t, fn)
	return err
}

func TestCompileSimpleExpression(t *testing.T) {
	fn := compileOK(t, `print(1 + 2);`)
	require.Equal(t, 0, fn.Arity)
	require.NotEmpty(t, fn.Chunk.Code)
}

func TestCompileReportsSyntaxErrorWithLine(t *testing.T) {
	err := compileErr(t, "var;")
	require.Contains(t, err.Error(), "[line 1]")
}

func TestCompilePanicModeSuppressesCascadingErrors(t *testing.T) {
	// Three consecutive malformed statements should not produce three
	// independent error cascades once panic mode kicks in and
	// synchronizes at the next statement boundary.
	err := compileErr(t, "var; var; var;")
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	require.Len(t, ce.Messages, 3)
}

func TestTopLevelReturnWithValueIsAnError(t *testing.T) {
	err := compileErr(t, `return 1;`)
	require.Contains(t, err.Error(), "Can't return from top-level code.")
}

func TestReturningValueFromInitializerIsAnError(t *testing.T) {
	err := compileErr(t, `
		class Foo {
			init() {
				return 1;
			}
		}
	`)
	require.Contains(t, err.Error(), "Can't return a value from an initializer.")
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	err := compileErr(t, `break;`)
	require.Contains(t, err.Error(), "Can't use 'break' outside of a loop.")
}

func TestBreakInsideLoopCompiles(t *testing.T) {
	compileOK(t, `
		while (true) {
			break;
		}
	`)
}

func TestClassCannotInheritFromItself(t *testing.T) {
	err := compileErr(t, `class Oops < Oops {}`)
	require.Contains(t, err.Error(), "A class can't inherit from itself.")
}

func TestClassWithSuperclassCompiles(t *testing.T) {
	compileOK(t, `
		class Animal {
			speak() { return "..."; }
		}
		class Dog < Animal {
			speak() { return super.speak(); }
		}
	`)
}

func TestFunctionArityOverLimitIsAnError(t *testing.T) {
	var params string
	for i := 0; i < 256; i++ {
		if i > 0 {
			params += ", "
		}
		params += fmt.Sprintf("p%d", i)
	}
	err := compileErr(t, "fun tooMany("+params+") {}")
	require.Contains(t, err.Error(), "Can't have more than 255 parameters.")
}

func TestClosureCapturesEnclosingLocal(t *testing.T) {
	fn := compileOK(t, `
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`)
	require.NotEmpty(t, fn.Chunk.Code)
}
