// Package repl implements lox's interactive shell: one statement
// compiled and run per line, against a VM instance that persists
// globals and the heap across lines, with readline-backed history
// and line editing courtesy of chzyer/readline.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"github.com/kristofer/lox/internal/diag"
	"github.com/kristofer/lox/pkg/vm"
)

// HistoryFile is where REPL line history is persisted between runs.
const HistoryFile = "build/history.txt"

// Run drives the interactive loop until EOF (Ctrl-D) or an
// interrupted readline session (Ctrl-C on an empty line).
func Run(out io.Writer, machine *vm.VM) error {
	if err := os.MkdirAll(filepath.Dir(HistoryFile), 0o755); err != nil {
		return fmt.Errorf("repl: preparing history directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          diag.Prompt(),
		HistoryFile:     HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("repl: starting readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("repl: reading line: %w", err)
		}
		if line == "" {
			continue
		}

		if err := machine.Interpret(line); err != nil {
			diag.PrintError(err)
		}
	}
	fmt.Fprintln(out)
	return nil
}
