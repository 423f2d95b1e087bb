// Package diag provides lox's diagnostics surface: a structured
// execution/GC tracer built on zap, and terminal-aware colored output
// for compile and runtime errors, built on fatih/color. Both are
// silent/plain by default — tracing only turns on behind --trace or
// --trace-gc, and color only appears on an actual terminal.
package diag

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Tracer adapts a zap.Logger to the small interface pkg/vm expects,
// keeping the VM free of a direct zap dependency.
type Tracer struct {
	log       *zap.SugaredLogger
	traceGC   bool
	traceExec bool
}

// NewTracer builds a Tracer. When neither trace flag is set, the
// underlying zap core is a no-op so logging calls cost next to
// nothing on the interpreter's hot path.
func NewTracer(traceExec, traceGC bool) *Tracer {
	if !traceExec && !traceGC {
		return &Tracer{log: zap.NewNop().Sugar()}
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), zapcore.DebugLevel)
	logger := zap.New(core)
	return &Tracer{log: logger.Sugar(), traceGC: traceGC, traceExec: traceExec}
}

// Trace logs one disassembled instruction. A no-op unless --trace was
// requested.
func (t *Tracer) Trace(format string, args ...interface{}) {
	if !t.traceExec {
		return
	}
	t.log.Debugf(format, args...)
}

// TraceGC logs a garbage-collection cycle boundary. A no-op unless
// --trace-gc was requested.
func (t *Tracer) TraceGC(format string, args ...interface{}) {
	if !t.traceGC {
		return
	}
	t.log.Debugf("gc: "+format, args...)
}

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	promptColor = color.New(color.FgCyan)
	resultColor = color.New(color.FgGreen)
)

// PrintError writes a compile or runtime error to stderr in red when
// stdout is a terminal, plainly otherwise (fatih/color detects this on
// its own via isatty and degrades automatically on pipes).
func PrintError(err error) {
	errorColor.Fprintln(os.Stderr, err.Error())
}

// Prompt returns the REPL's colorized prompt string.
func Prompt() string {
	return promptColor.Sprint("lox> ")
}

// FormatResult colorizes a REPL result echo.
func FormatResult(s string) string {
	return resultColor.Sprint(s)
}

// Fatalf prints a fatal, non-recoverable error (e.g. the REPL failing
// to start or to read input) and is the only place in lox that calls os.Exit outside
// cmd/lox's main.
func Fatalf(format string, args ...interface{}) {
	errorColor.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}
