package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/value"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := New(&out, nil)
	err := machine.Interpret(source)
	return out.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `print(1 + 2 * 3);`)
	require.NoError(t, err)
	require.Equal(t, "7", out)
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print("foo" + "bar");`)
	require.NoError(t, err)
	require.Equal(t, "foobar", out)
}

func TestAddRejectsMixedOperands(t *testing.T) {
	_, err := run(t, `print(1 + "x");`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Operands must be two numbers or two strings.")
}

func TestClosuresCaptureByReference(t *testing.T) {
	out, err := run(t, `
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
		println(counter());
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassesInstancesAndFields(t *testing.T) {
	out, err := run(t, `
		class Point {
			init(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() {
				return this.x + this.y;
			}
		}
		var p = Point(3, 4);
		print(p.sum());
	`)
	require.NoError(t, err)
	require.Equal(t, "7", out)
}

func TestSingleInheritanceAndSuperCalls(t *testing.T) {
	out, err := run(t, `
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
		print(Dog("Rex").speak());
	`)
	require.NoError(t, err)
	require.Equal(t, "Rex makes a sound, specifically a bark", out)
}

func TestInheritingFromNonClassIsARuntimeError(t *testing.T) {
	_, err := run(t, `
		var NotAClass = 3;
		class Dog < NotAClass {}
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Superclass must be a class.")
}

func TestBreakUnwindsNestedBlockInLoop(t *testing.T) {
	out, err := run(t, `
		var total = 0;
		for (var i = 0; i < 10; i = i + 1) {
			if (i == 3) {
				break;
			}
			total = total + i;
		}
		print(total);
	`)
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

func TestUndefinedGlobalProducesStackTrace(t *testing.T) {
	_, err := run(t, `
		fun outer() {
			return missing;
		}
		outer();
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined variable 'missing'.")
	require.Contains(t, err.Error(), "in outer()")
	require.Contains(t, err.Error(), "in script")
}

func TestSettingUndefinedGlobalIsARuntimeError(t *testing.T) {
	_, err := run(t, `x = 1;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined variable 'x'.")
}

func TestArityMismatchIsARuntimeError(t *testing.T) {
	_, err := run(t, `
		fun add(a, b) { return a + b; }
		add(1);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected 2 arguments but got 1.")
}

func TestStackOverflowOnUnboundedRecursion(t *testing.T) {
	_, err := run(t, `
		fun recurse() { return recurse(); }
		recurse();
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Stack overflow.")
}

func TestGlobalsAndHeapPersistAcrossInterpretCalls(t *testing.T) {
	var out bytes.Buffer
	machine := New(&out, nil)

	require.NoError(t, machine.Interpret(`var x = 1;`))
	require.NoError(t, machine.Interpret(`x = x + 1;`))
	require.NoError(t, machine.Interpret(`print(x);`))
	require.Equal(t, "2", out.String())
}

func TestClockNativeReturnsANumber(t *testing.T) {
	out, err := run(t, `print(clock() >= 0);`)
	require.NoError(t, err)
	require.Equal(t, "true", out)
}

func TestCompileErrorReportsLineAndLocation(t *testing.T) {
	_, err := run(t, "var;")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "[line 1]"))
	require.True(t, strings.Contains(err.Error(), "at ';'"))
}

func TestGCSweepsUnreferencedObjects(t *testing.T) {
	var out bytes.Buffer
	machine := New(&out, nil)
	require.NoError(t, machine.Interpret(`
		class Box {}
		for (var i = 0; i < 30000; i = i + 1) {
			var s = "garbage" + "string";
			var b = Box();
		}
		print("done");
	`))
	require.Equal(t, "done", out.String())
	// 30000 instances exceed the first collection threshold; only a
	// sweep of the dead ones keeps the accounted heap below it.
	require.Less(t, machine.bytesAllocated, initialNextGC)
}

func TestDisassembleRendersConstantInstructions(t *testing.T) {
	c := chunk.New()
	idx, err := c.AddConstant(value.Number(42))
	require.NoError(t, err)
	c.Write(byte(chunk.OpConstant), 1)
	c.Write(byte(idx), 1)
	c.WriteOp(chunk.OpReturn, 1)

	out := Disassemble(c, "test chunk")
	require.Contains(t, out, "== test chunk ==")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "42")
	require.Contains(t, out, "OP_RETURN")
}
