package internal

import (
	"errors"
	"fmt"
	"io"
)

// Position is a source location. A zero Line means the position is unknown,
// which is the case for predefined symbols and compiler generated temporaries.
type Position struct {
	Line   int
	Column int
}

func (pos Position) known() bool {
	return pos.Line > 0
}

// Diagnostics collects the recoverable errors of one compilation. Every report
// is written to out (when set) and counted, the count decides whether code is
// generated at all.
type Diagnostics struct {
	out        io.Writer
	ErrorCount int
	Messages   []string
}

func NewDiagnostics(out io.Writer) *Diagnostics {
	return &Diagnostics{out: out}
}

// Error reports a generic error.
func (diag *Diagnostics) Error(pos Position, format string, args ...interface{}) {
	diag.report("Error", pos, fmt.Sprintf(format, args...))
}

// TypeError reports a type conflict.
func (diag *Diagnostics) TypeError(pos Position, format string, args ...interface{}) {
	diag.report("Type conflict", pos, fmt.Sprintf(format, args...))
}

func (diag *Diagnostics) report(category string, pos Position, msg string) {
	var line string
	switch {
	case !pos.known() && category == "Error":
		line = fmt.Sprintf("Error: %s", msg)
	case !pos.known():
		line = fmt.Sprintf("%s: %s", category, msg)
	case category == "Error":
		line = fmt.Sprintf("Error line %d, col %d: %s", pos.Line, pos.Column, msg)
	default:
		line = fmt.Sprintf("%s, line %d, col %d: %s", category, pos.Line, pos.Column, msg)
	}
	diag.ErrorCount++
	diag.Messages = append(diag.Messages, line)
	if diag.out != nil {
		fmt.Fprintln(diag.out, line)
	}
}

// HasErrors tells whether any error was reported so far.
func (diag *Diagnostics) HasErrors() bool {
	return diag.ErrorCount > 0
}

// InternalError is raised by fatal when the compiler finds its own state
// inconsistent. It is never caused by the program being compiled.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "Internal error: " + e.Msg
}

// fatal aborts the compilation. Compile recovers the panic and hands the
// InternalError back to its caller.
func fatal(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// recoverInternalError turns a fatal panic into an error stored at *err. Any
// other panic is re-raised.
func recoverInternalError(err *error) {
	r := recover()
	if r == nil {
		return
	}
	internalErr, ok := r.(*InternalError)
	if !ok {
		panic(r)
	}
	*err = internalErr
}

// ErrCompilation is returned when the program had recoverable errors.
var ErrCompilation = errors.New("compilation failed")

func makeCompilationError(diag *Diagnostics) error {
	return fmt.Errorf("%w: %d error(s) reported", ErrCompilation, diag.ErrorCount)
}
