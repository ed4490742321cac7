package internal

import (
	"bufio"
	"fmt"
	"io"

	"github.com/xiaobogaga/diesel/util"
)

const (
	DisplayRegOffset = 64 // where a frame saves the display register it replaces
	FirstArgOffset   = 68 // first outgoing argument, relative to %sp
	MinFrameSize     = 92 // register window save area, display slot and six arguments
	frameAlignment   = 8
	inlineArgSlots   = (MinFrameSize - FirstArgOffset) / 4
	maxImmediate     = 4095 // largest simm13 operand
)

type register int

const (
	o0 register = iota
	o1
	o2
	o3
	o4
	o5
	i0
	f0
	f1
	f2
)

var registerNames = [...]string{"%o0", "%o1", "%o2", "%o3", "%o4", "%o5", "%i0", "%f0", "%f1", "%f2"}

func (reg register) String() string {
	return registerNames[reg]
}

// Arithmetic quads that map to one instruction.
var arithmeticTemplates = map[QuadOp]struct {
	mnemonic string
	real     bool
}{
	QIPlus:   {mnemonic: "add"},
	QIMinus:  {mnemonic: "sub"},
	QRPlus:   {mnemonic: "fadds", real: true},
	QRMinus:  {mnemonic: "fsubs", real: true},
	QRMult:   {mnemonic: "fmuls", real: true},
	QRDivide: {mnemonic: "fdivs", real: true},
}

// Integer quads done by a routine of the runtime glue, operands in %o0, %o1.
var runtimeRoutines = map[QuadOp]string{
	QIMult:   "Mul",
	QIDivide: "Div",
	QIMod:    "Rem",
}

// Relations compare, then branch over the "true" move when the relation
// does not hold. The annulled delay slot sets the result to 0 on that path.
var relationTemplates = map[QuadOp]struct {
	compare string
	branch  string
	real    bool
}{
	QIEq: {compare: "cmp", branch: "bne,a"},
	QINe: {compare: "cmp", branch: "be,a"},
	QILt: {compare: "cmp", branch: "bge,a"},
	QIGt: {compare: "cmp", branch: "ble,a"},
	QREq: {compare: "fcmps", branch: "fbne,a", real: true},
	QRNe: {compare: "fcmps", branch: "fbe,a", real: true},
	QRLt: {compare: "fcmpes", branch: "fbuge,a", real: true},
	QRGt: {compare: "fcmpes", branch: "fbule,a", real: true},
}

// CodeGenerator expands quads into SPARC assembly. The frame of the block at
// level n is reached through display register %gn.
type CodeGenerator struct {
	out    *bufio.Writer
	table  *SymbolTable
	labels *LabelAllocator
	trace  bool

	argNr int
}

func NewCodeGenerator(w io.Writer, table *SymbolTable, labels *LabelAllocator, trace bool) *CodeGenerator {
	generator := &CodeGenerator{out: bufio.NewWriter(w), table: table, labels: labels, trace: trace}
	generator.writeOutput(`#include "diesel_glue.s"`)
	return generator
}

// GenerateAssembler writes the code of one block.
func (generator *CodeGenerator) GenerateAssembler(quads *QuadList, env SymIndex) {
	generator.prologue(env, quads)
	generator.expand(quads)
	generator.epilogue(env)
}

// Flush writes out buffered code and reports the first write error.
func (generator *CodeGenerator) Flush() error {
	return generator.out.Flush()
}

func (generator *CodeGenerator) writeOutput(output string) {
	// Write errors stick in the buffered writer and come back from Flush.
	generator.out.WriteString(output)
	generator.out.WriteByte('\n')
}

func (generator *CodeGenerator) instruction(mnemonic string, format string, args ...interface{}) {
	if format == "" {
		generator.writeOutput("\t\t" + mnemonic)
		return
	}
	generator.writeOutput("\t\t" + mnemonic + "\t" + fmt.Sprintf(format, args...))
}

func (generator *CodeGenerator) label(label int) {
	generator.writeOutput(fmt.Sprintf("L%d:", label))
}

func (generator *CodeGenerator) comment(format string, args ...interface{}) {
	generator.writeOutput("\t! " + fmt.Sprintf(format, args...))
}

// frameSize is the activation record plus the fixed overhead, with room for
// arguments beyond the six the overhead holds.
func (generator *CodeGenerator) frameSize(sub *Subprogram, quads *QuadList) int {
	extraArgs := 0
	for _, quad := range quads.Quads {
		if quad.Op == QCall && quad.Int2-inlineArgSlots > extraArgs {
			extraArgs = quad.Int2 - inlineArgSlots
		}
	}
	return util.Align(sub.ARSize+MinFrameSize+4*extraArgs, frameAlignment)
}

func (generator *CodeGenerator) prologue(env SymIndex, quads *QuadList) {
	sub := subprogramOf(generator.table.Get(env))
	if sub == nil {
		fatal("prologue for %s, which is not a procedure or function", generator.table.Name(env))
	}
	level := generator.table.Get(env).Header().Level + 1
	generator.writeOutput(fmt.Sprintf("L%d:\t\t\t! %s", sub.LabelNr, generator.table.Name(env)))
	if generator.trace {
		generator.comment("PROLOGUE (%s)", generator.table.Name(env))
	}
	frame := generator.frameSize(sub, quads)
	if frame <= maxImmediate {
		generator.instruction("save", "%%sp,-%d,%%sp", frame)
	} else {
		// The display registers are all taken, %o5 is free before the save.
		generator.instruction("set", "-%d,%%o5", frame)
		generator.instruction("save", "%%sp,%%o5,%%sp")
	}
	generator.instruction("st", "%%g%d,[%%fp+%d]", level, DisplayRegOffset)
	generator.instruction("mov", "%%fp,%%g%d", level)
}

func (generator *CodeGenerator) epilogue(env SymIndex) {
	level := generator.table.Get(env).Header().Level + 1
	if generator.trace {
		generator.comment("EPILOGUE (%s)", generator.table.Name(env))
	}
	generator.instruction("ld", "[%%fp+%d],%%g%d", DisplayRegOffset, level)
	generator.instruction("ret", "")
	generator.instruction("restore", "")
}

// find returns the display level and frame offset of a variable or
// parameter. Locals sit below the frame pointer, parameters in the caller's
// argument area above it.
func (generator *CodeGenerator) find(sym SymIndex) (level int, offset int) {
	switch s := generator.table.Get(sym).(type) {
	case *VariableSymbol:
		return s.Level, -(s.Offset + generator.table.GetSize(s.Type))
	case *ArraySymbol:
		return s.Level, -(s.Offset + s.Cardinality*generator.table.GetSize(s.Type))
	case *ParameterSymbol:
		return s.Level, FirstArgOffset + s.Offset
	default:
		fatal("find called for %s, which has no storage", generator.table.Name(sym))
		return 0, 0
	}
}

// location returns the address operand of sym, loading a large offset into
// %o5 first.
func (generator *CodeGenerator) location(sym SymIndex) string {
	level, offset := generator.find(sym)
	if offset >= -maxImmediate-1 && offset <= maxImmediate {
		return fmt.Sprintf("[%%g%d%+d]", level, offset)
	}
	generator.instruction("set", "%d,%%o5", offset)
	return fmt.Sprintf("[%%g%d+%%o5]", level)
}

func (generator *CodeGenerator) fetch(sym SymIndex, dest register) {
	generator.instruction("ld", "%s,%s", generator.location(sym), dest)
}

func (generator *CodeGenerator) store(src register, sym SymIndex) {
	generator.instruction("st", "%s,%s", src, generator.location(sym))
}

func (generator *CodeGenerator) arrayAddress(sym SymIndex, dest register) {
	level, offset := generator.find(sym)
	if offset >= -maxImmediate-1 && offset <= maxImmediate {
		generator.instruction("add", "%%g%d,%d,%s", level, offset, dest)
		return
	}
	generator.instruction("set", "%d,%%o5", offset)
	generator.instruction("add", "%%g%d,%%o5,%s", level, dest)
}

func (generator *CodeGenerator) expand(quads *QuadList) {
	for quadNr, quad := range quads.Quads {
		// Labels go before the trace line so that a branch doesn't skip it.
		if quad.Op == QLabl {
			generator.label(quad.Int1)
		}
		if generator.trace {
			generator.comment("QUAD %d: %s", quadNr+1, quad.Format(generator.table))
		}
		generator.expandQuad(quad)
	}
}

func (generator *CodeGenerator) expandQuad(quad *Quadruple) {
	if template, ok := arithmeticTemplates[quad.Op]; ok {
		left, right, result := o0, o1, o0
		if template.real {
			left, right, result = f0, f1, f2
		}
		generator.fetch(quad.Sym1, left)
		generator.fetch(quad.Sym2, right)
		generator.instruction(template.mnemonic, "%s,%s,%s", left, right, result)
		generator.store(result, quad.Sym3)
		return
	}
	if routine, ok := runtimeRoutines[quad.Op]; ok {
		generator.fetch(quad.Sym1, o0)
		generator.fetch(quad.Sym2, o1)
		generator.instruction("call", "%s", routine)
		generator.instruction("nop", "")
		generator.store(o0, quad.Sym3)
		return
	}
	if template, ok := relationTemplates[quad.Op]; ok {
		generator.expandRelation(quad, template.compare, template.branch, template.real)
		return
	}
	switch quad.Op {
	case QILoad, QRLoad:
		generator.instruction("set", "%d,%%o0", quad.Int1)
		generator.store(o0, quad.Sym3)
	case QINot:
		label := generator.labels.Next()
		generator.fetch(quad.Sym1, o0)
		generator.instruction("tst", "%%o0")
		generator.instruction("be,a", "L%d", label)
		generator.instruction("mov", "1,%%o0")
		generator.instruction("mov", "0,%%o0")
		generator.label(label)
		generator.store(o0, quad.Sym3)
	case QIUMinus:
		generator.fetch(quad.Sym1, o0)
		generator.instruction("neg", "%%o0")
		generator.store(o0, quad.Sym3)
	case QRUMinus:
		generator.fetch(quad.Sym1, f0)
		generator.instruction("fnegs", "%%f0,%%f1")
		generator.store(f1, quad.Sym3)
	case QIAnd:
		generator.expandLogical(quad, "be,a", 0)
	case QIOr:
		generator.expandLogical(quad, "bne,a", 1)
	case QIStore, QRStore:
		generator.fetch(quad.Sym1, o0)
		generator.fetch(quad.Sym3, o1)
		generator.instruction("st", "%%o0,[%%o1]")
	case QIAssign, QRAssign:
		generator.fetch(quad.Sym1, o0)
		generator.store(o0, quad.Sym3)
	case QParam:
		generator.fetch(quad.Sym1, o0)
		generator.instruction("st", "%%o0,[%%sp+%d]", FirstArgOffset+4*generator.argNr)
		generator.argNr++
	case QCall:
		generator.expandCall(quad)
	case QIReturn, QRReturn:
		generator.fetch(quad.Sym2, i0)
		generator.instruction("ba", "L%d", quad.Int1)
		generator.instruction("nop", "")
	case QLIndex:
		generator.fetch(quad.Sym2, o1)
		generator.arrayAddress(quad.Sym1, o0)
		generator.instruction("sll", "%%o1,2,%%o1")
		generator.instruction("add", "%%o0,%%o1,%%o0")
		generator.store(o0, quad.Sym3)
	case QIRIndex, QRRIndex:
		generator.fetch(quad.Sym2, o1)
		generator.arrayAddress(quad.Sym1, o0)
		generator.instruction("sll", "%%o1,2,%%o1")
		generator.instruction("ld", "[%%o0+%%o1],%%o0")
		generator.store(o0, quad.Sym3)
	case QIToR:
		generator.fetch(quad.Sym1, f0)
		generator.instruction("fitos", "%%f0,%%f1")
		generator.store(f1, quad.Sym3)
	case QJmp:
		generator.instruction("ba", "L%d", quad.Int1)
		generator.instruction("nop", "")
	case QJmpF:
		generator.fetch(quad.Sym2, o0)
		generator.instruction("tst", "%%o0")
		generator.instruction("be", "L%d", quad.Int1)
		generator.instruction("nop", "")
	case QLabl:
	case QNop:
		fatal("q_nop quadruple reached code generation")
	default:
		fatal("no code template for %s", quad.Op)
	}
}

func (generator *CodeGenerator) expandRelation(quad *Quadruple, compare string, branch string, isReal bool) {
	label := generator.labels.Next()
	left, right := o0, o1
	if isReal {
		left, right = f0, f1
	}
	generator.fetch(quad.Sym1, left)
	generator.fetch(quad.Sym2, right)
	generator.instruction(compare, "%s,%s", left, right)
	if isReal {
		// A float compare may not be followed directly by a float branch.
		generator.instruction("nop", "")
	}
	generator.instruction(branch, "L%d", label)
	generator.instruction("mov", "0,%%o0")
	generator.instruction("mov", "1,%%o0")
	generator.label(label)
	generator.store(o0, quad.Sym3)
}

// expandLogical evaluates AND and OR without short cut: both operands are
// fetched and tested, and an operand equal to the deciding value jumps to the
// end with that value.
func (generator *CodeGenerator) expandLogical(quad *Quadruple, branch string, decided int) {
	label := generator.labels.Next()
	for _, operand := range []SymIndex{quad.Sym1, quad.Sym2} {
		generator.fetch(operand, o0)
		generator.instruction("tst", "%%o0")
		generator.instruction(branch, "L%d", label)
		generator.instruction("mov", "%d,%%o0", decided)
	}
	generator.instruction("mov", "%d,%%o0", 1-decided)
	generator.label(label)
	generator.store(o0, quad.Sym3)
}

func (generator *CodeGenerator) expandCall(quad *Quadruple) {
	sub := subprogramOf(generator.table.Get(quad.Sym1))
	if sub == nil {
		fatal("call of %s, which is not a procedure or function", generator.table.Name(quad.Sym1))
	}
	if generator.argNr != quad.Int2 {
		fatal("call of %s with %d arguments passed, expected %d", generator.table.Name(quad.Sym1), generator.argNr, quad.Int2)
	}
	generator.instruction("call", "L%d", sub.LabelNr)
	generator.instruction("nop", "")
	if quad.Sym3 != NullSym {
		generator.store(o0, quad.Sym3)
	}
	generator.argNr = 0
}
