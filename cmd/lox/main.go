// Command lox is the interpreter's entry point: a cobra root command
// that runs a script file, drops into the REPL when given none, and
// exposes --test/--trace/--trace-gc as the interpreter's entire
// configuration surface (there is no config file — flags only).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/lox/internal/diag"
	"github.com/kristofer/lox/internal/repl"
	"github.com/kristofer/lox/internal/selftest"
	"github.com/kristofer/lox/pkg/compiler"
	"github.com/kristofer/lox/pkg/vm"
)

// Exit codes, per the interpreter's documented CLI contract.
const (
	exitSuccess    = 0
	exitUsage      = 2
	exitCompileErr = 65
	exitRuntimeErr = 70
	exitIOErr      = 74
)

var (
	runSelfTest bool
	traceExec   bool
	traceGC     bool
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		// cobra's own error printing is silenced, so report it here.
		fmt.Fprintf(os.Stderr, "lox: %v\n", err)
		os.Exit(exitUsage)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lox [script]",
		Short: "lox runs and explores a small class-based scripting language",
		Long: "lox is a single-pass, bytecode-compiled interpreter for a small\n" +
			"dynamically-typed, class-based scripting language. With no\n" +
			"arguments it starts an interactive REPL; given a path it compiles\n" +
			"and runs that file.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
	cmd.Flags().BoolVarP(&runSelfTest, "test", "t", false, "run the built-in self-test suite before starting")
	cmd.Flags().BoolVar(&traceExec, "trace", false, "trace every executed instruction to stderr")
	cmd.Flags().BoolVar(&traceGC, "trace-gc", false, "trace garbage-collection cycles to stderr")
	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	if runSelfTest {
		runTests()
	}

	tracer := diag.NewTracer(traceExec, traceGC)
	machine := vm.New(os.Stdout, tracer)

	if len(args) == 0 {
		if err := repl.Run(os.Stdout, machine); err != nil {
			diag.Fatalf("%v", err)
		}
		return nil
	}

	return runFile(machine, args[0])
}

func runTests() {
	report := selftest.Run()
	selftest.Write(os.Stdout, report)
}

// runFile reads, compiles, and executes a single script, translating
// the failure into the exit code the CLI contract promises: 74 if the
// file itself couldn't be read, 65 for a compile error, 70 for a
// runtime error.
func runFile(machine *vm.VM, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lox: %v\n", err)
		os.Exit(exitIOErr)
	}

	err = machine.Interpret(string(source))
	if err == nil {
		return nil
	}

	diag.PrintError(err)
	switch err.(type) {
	case *compiler.CompileError:
		os.Exit(exitCompileErr)
	case *vm.RuntimeError:
		os.Exit(exitRuntimeErr)
	default:
		os.Exit(exitRuntimeErr)
	}
	return nil
}
