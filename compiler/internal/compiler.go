package internal

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Options controls one compilation.
type Options struct {
	Trace        bool // interleave prologue, quad and epilogue comments with the code
	SkipOptimize bool
	Verbose      bool      // print the phases as they start
	Diagnostics  io.Writer // error messages and progress, os.Stderr when nil
}

// Result describes a finished compilation.
type Result struct {
	Blocks   int
	Errors   int
	Messages []string
}

func (opts Options) diagnostics() io.Writer {
	if opts.Diagnostics == nil {
		return os.Stderr
	}
	return opts.Diagnostics
}

func (opts Options) progress(format string, args ...interface{}) {
	if opts.Verbose {
		fmt.Fprintf(opts.diagnostics(), "compiler: "+format+"\n", args...)
	}
}

// Compile compiles the diesel program at path into the assembler file out.
// Nothing is written when the program has errors.
func Compile(path string, out string, opts Options) error {
	opts.progress("start reading source at path: %s", path)
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	var code bytes.Buffer
	_, err = CompileSource(file, &code, opts)
	if err != nil {
		return err
	}
	opts.progress("start writing assembler to: %s", out)
	return os.WriteFile(out, code.Bytes(), 0644)
}

// CompileSource compiles the program read from r and writes the assembler
// code to out. Blocks are type checked as the parser finishes them; code is
// generated only while no error was reported, so a failed compilation leaves
// out with partial output at most.
func CompileSource(r io.Reader, out io.Writer, opts Options) (result *Result, err error) {
	diag := NewDiagnostics(opts.diagnostics())
	result = &Result{}
	defer func() {
		result.Errors, result.Messages = diag.ErrorCount, diag.Messages
	}()
	defer recoverInternalError(&err)

	opts.progress("start tokenizer")
	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(r)
	if err != nil {
		diag.Error(Position{}, "%s", err.Error())
		return result, err
	}

	labels := NewLabelAllocator()
	table := NewSymbolTable(labels, diag)
	checker := NewTypeChecker(table, diag)
	optimizer := NewOptimizer(table)
	quadGenerator := NewQuadGenerator(table, labels)
	codeGenerator := NewCodeGenerator(out, table, labels, opts.Trace)

	onBlock := func(block *BlockAst) error {
		result.Blocks++
		name := table.Name(block.Env)
		opts.progress("start type checker for %s", name)
		checker.CheckBlock(block)
		if diag.HasErrors() {
			return nil
		}
		if !opts.SkipOptimize {
			opts.progress("start optimizer for %s", name)
			optimizer.OptimizeBlock(block)
		}
		opts.progress("start generate quads for %s", name)
		quads := quadGenerator.GenerateBlock(block)
		opts.progress("start generate codes for %s", name)
		codeGenerator.GenerateAssembler(quads, block.Env)
		return nil
	}

	opts.progress("start parser")
	parser := NewParser(table, diag, onBlock)
	err = parser.Parse(tokens)
	if err != nil {
		diag.Error(Position{}, "%s", err.Error())
		return result, err
	}
	if diag.HasErrors() {
		return result, makeCompilationError(diag)
	}
	return result, codeGenerator.Flush()
}
