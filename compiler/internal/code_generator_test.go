package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestAssembler compiles source block by block the way Compile does
// and returns the assembler text.
func generateTestAssembler(t *testing.T, source string, trace bool) string {
	var checker *TypeChecker
	var quadGenerator *QuadGenerator
	var codeGenerator *CodeGenerator
	out := &bytes.Buffer{}
	c, err := parseTestProgram(t, source, func(c *testCompilation, block *BlockAst) {
		if checker == nil {
			checker = NewTypeChecker(c.table, c.diag)
			quadGenerator = NewQuadGenerator(c.table, c.labels)
			codeGenerator = NewCodeGenerator(out, c.table, c.labels, trace)
		}
		checker.CheckBlock(block)
		codeGenerator.GenerateAssembler(quadGenerator.GenerateBlock(block), block.Env)
	})
	require.Nil(t, err)
	require.Equal(t, 0, c.diag.ErrorCount, c.diag.Messages)
	require.Nil(t, codeGenerator.Flush())
	return out.String()
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestCodeGenerator_EmptyProgram(t *testing.T) {
	code := generateTestAssembler(t, "program p; begin end.", false)
	assert.Equal(t, lines(
		`#include "diesel_glue.s"`,
		"L3:\t\t\t! P",
		"\t\tsave\t%sp,-96,%sp",
		"\t\tst\t%g1,[%fp+64]",
		"\t\tmov\t%fp,%g1",
		"L4:",
		"\t\tld\t[%fp+64],%g1",
		"\t\tret",
		"\t\trestore",
	), code)
}

func TestCodeGenerator_Trace(t *testing.T) {
	code := generateTestAssembler(t, "program p; var a : integer; begin a := 1 end.", true)
	assert.Equal(t, lines(
		`#include "diesel_glue.s"`,
		"L3:\t\t\t! P",
		"\t! PROLOGUE (P)",
		"\t\tsave\t%sp,-104,%sp",
		"\t\tst\t%g1,[%fp+64]",
		"\t\tmov\t%fp,%g1",
		"\t! QUAD 1: q_iload    1 - $1",
		"\t\tset\t1,%o0",
		"\t\tst\t%o0,[%g1-8]",
		"\t! QUAD 2: q_iassign  $1 - A",
		"\t\tld\t[%g1-8],%o0",
		"\t\tst\t%o0,[%g1-4]",
		"L4:",
		"\t! QUAD 3: q_labl     4 - -",
		"\t! EPILOGUE (P)",
		"\t\tld\t[%fp+64],%g1",
		"\t\tret",
		"\t\trestore",
	), code)
}

func TestCodeGenerator_ProcedureCall(t *testing.T) {
	source := `program p;
procedure q(n : integer);
begin
  write(n)
end;
begin
  q(7)
end.`
	code := generateTestAssembler(t, source, false)
	assert.Equal(t, lines(
		`#include "diesel_glue.s"`,
		"L4:\t\t\t! Q",
		"\t\tsave\t%sp,-96,%sp",
		"\t\tst\t%g2,[%fp+64]",
		"\t\tmov\t%fp,%g2",
		"\t\tld\t[%g2+68],%o0",
		"\t\tst\t%o0,[%sp+68]",
		"\t\tcall\tL1",
		"\t\tnop",
		"L5:",
		"\t\tld\t[%fp+64],%g2",
		"\t\tret",
		"\t\trestore",
		"L3:\t\t\t! P",
		"\t\tsave\t%sp,-96,%sp",
		"\t\tst\t%g1,[%fp+64]",
		"\t\tmov\t%fp,%g1",
		"\t\tset\t7,%o0",
		"\t\tst\t%o0,[%g1-4]",
		"\t\tld\t[%g1-4],%o0",
		"\t\tst\t%o0,[%sp+68]",
		"\t\tcall\tL4",
		"\t\tnop",
		"L6:",
		"\t\tld\t[%fp+64],%g1",
		"\t\tret",
		"\t\trestore",
	), code)
}

func TestCodeGenerator_FunctionReturn(t *testing.T) {
	source := `program p;
var a : integer;
function f(x : integer; y : integer) : integer;
begin
  return y
end;
begin
  a := f(1, a)
end.`
	code := generateTestAssembler(t, source, false)
	assert.Contains(t, code, lines(
		"\t\tld\t[%g2+72],%i0",
		"\t\tba\tL5",
		"\t\tnop",
		"L5:",
	))
	assert.Contains(t, code, lines(
		"\t\tld\t[%g1-12],%o0",
		"\t\tst\t%o0,[%sp+68]",
		"\t\tld\t[%g1-4],%o0",
		"\t\tst\t%o0,[%sp+72]",
		"\t\tcall\tL4",
		"\t\tnop",
		"\t\tst\t%o0,[%g1-8]",
	))
}

func TestCodeGenerator_Templates(t *testing.T) {
	testData := []struct {
		content  string
		expected []string
	}{
		{
			content: "a := b + c",
			expected: []string{
				"\t\tld\t[%g1-8],%o0", "\t\tld\t[%g1-12],%o1", "\t\tadd\t%o0,%o1,%o0", "\t\tst\t%o0,[%g1-56]",
			},
		},
		{
			content:  "a := b - c",
			expected: []string{"\t\tsub\t%o0,%o1,%o0"},
		},
		{
			content:  "a := b * c",
			expected: []string{"\t\tcall\tMul", "\t\tnop", "\t\tst\t%o0,[%g1-56]"},
		},
		{
			content:  "a := b div c",
			expected: []string{"\t\tcall\tDiv"},
		},
		{
			content:  "a := b mod c",
			expected: []string{"\t\tcall\tRem"},
		},
		{
			content:  "a := -b",
			expected: []string{"\t\tld\t[%g1-8],%o0", "\t\tneg\t%o0", "\t\tst\t%o0,[%g1-56]"},
		},
		{
			content: "x := x + y",
			expected: []string{
				"\t\tld\t[%g1-16],%f0", "\t\tld\t[%g1-20],%f1", "\t\tfadds\t%f0,%f1,%f2", "\t\tst\t%f2,[%g1-56]",
			},
		},
		{
			content:  "x := x * y",
			expected: []string{"\t\tfmuls\t%f0,%f1,%f2"},
		},
		{
			content:  "x := x / y",
			expected: []string{"\t\tfdivs\t%f0,%f1,%f2"},
		},
		{
			content:  "x := -y",
			expected: []string{"\t\tld\t[%g1-20],%f0", "\t\tfnegs\t%f0,%f1", "\t\tst\t%f1,[%g1-56]"},
		},
		{
			content:  "x := b",
			expected: []string{"\t\tld\t[%g1-8],%f0", "\t\tfitos\t%f0,%f1", "\t\tst\t%f1,[%g1-56]"},
		},
		{
			content:  "x := 1.5",
			expected: []string{"\t\tset\t1069547520,%o0", "\t\tst\t%o0,[%g1-56]"},
		},
		{
			content: "a := b < c",
			expected: []string{
				"\t\tcmp\t%o0,%o1", "\t\tbge,a\tL5", "\t\tmov\t0,%o0", "\t\tmov\t1,%o0", "L5:", "\t\tst\t%o0,[%g1-56]",
			},
		},
		{
			content:  "a := b = c",
			expected: []string{"\t\tcmp\t%o0,%o1", "\t\tbne,a\tL5"},
		},
		{
			content:  "a := b <> c",
			expected: []string{"\t\tbe,a\tL5"},
		},
		{
			content:  "a := b > c",
			expected: []string{"\t\tble,a\tL5"},
		},
		{
			content:  "a := x < y",
			expected: []string{"\t\tfcmpes\t%f0,%f1", "\t\tnop", "\t\tfbuge,a\tL5", "\t\tmov\t0,%o0", "\t\tmov\t1,%o0", "L5:"},
		},
		{
			content:  "a := x = y",
			expected: []string{"\t\tfcmps\t%f0,%f1", "\t\tnop", "\t\tfbne,a\tL5"},
		},
		{
			content:  "a := x > y",
			expected: []string{"\t\tfbule,a\tL5"},
		},
		{
			content:  "a := x <> y",
			expected: []string{"\t\tfbe,a\tL5"},
		},
		{
			content: "a := not b",
			expected: []string{
				"\t\ttst\t%o0", "\t\tbe,a\tL5", "\t\tmov\t1,%o0", "\t\tmov\t0,%o0", "L5:", "\t\tst\t%o0,[%g1-56]",
			},
		},
		{
			content: "a := b and c",
			expected: []string{
				"\t\tld\t[%g1-8],%o0", "\t\ttst\t%o0", "\t\tbe,a\tL5", "\t\tmov\t0,%o0",
				"\t\tld\t[%g1-12],%o0", "\t\ttst\t%o0", "\t\tbe,a\tL5", "\t\tmov\t0,%o0",
				"\t\tmov\t1,%o0", "L5:", "\t\tst\t%o0,[%g1-56]",
			},
		},
		{
			content: "a := b or c",
			expected: []string{
				"\t\tld\t[%g1-8],%o0", "\t\ttst\t%o0", "\t\tbne,a\tL5", "\t\tmov\t1,%o0",
				"\t\tld\t[%g1-12],%o0", "\t\ttst\t%o0", "\t\tbne,a\tL5", "\t\tmov\t1,%o0",
				"\t\tmov\t0,%o0", "L5:",
			},
		},
		{
			content: "arr[b] := c",
			expected: []string{
				"\t\tld\t[%g1-8],%o1", "\t\tadd\t%g1,-52,%o0", "\t\tsll\t%o1,2,%o1", "\t\tadd\t%o0,%o1,%o0",
				"\t\tst\t%o0,[%g1-56]", "\t\tld\t[%g1-12],%o0", "\t\tld\t[%g1-56],%o1", "\t\tst\t%o0,[%o1]",
			},
		},
		{
			content: "a := arr[b]",
			expected: []string{
				"\t\tld\t[%g1-8],%o1", "\t\tadd\t%g1,-52,%o0", "\t\tsll\t%o1,2,%o1", "\t\tld\t[%o0+%o1],%o0",
				"\t\tst\t%o0,[%g1-56]",
			},
		},
		{
			content:  "while b do b := 0 end",
			expected: []string{"L5:", "\t\tld\t[%g1-8],%o0", "\t\ttst\t%o0", "\t\tbe\tL6", "\t\tnop"},
		},
		{
			content:  "while b do b := 0 end",
			expected: []string{"\t\tba\tL5", "\t\tnop", "L6:"},
		},
	}
	for _, data := range testData {
		source := `program p;
var a : integer; b : integer; c : integer; x : real; y : real; arr : array[8] of integer;
begin
  ` + data.content + `
end.`
		code := generateTestAssembler(t, source, false)
		assert.Contains(t, code, lines(data.expected...), data.content)
	}
}

func TestCodeGenerator_LargeFrame(t *testing.T) {
	source := `program p;
var a : integer; big : array[2000] of integer;
begin
  big[a] := a
end.`
	code := generateTestAssembler(t, source, false)
	assert.Contains(t, code, lines("\t\tset\t-8104,%o5", "\t\tsave\t%sp,%o5,%sp", "\t\tst\t%g1,[%fp+64]"))
	assert.Contains(t, code, lines("\t\tld\t[%g1-4],%o1", "\t\tset\t-8004,%o5", "\t\tadd\t%g1,%o5,%o0"))
	assert.Contains(t, code, lines("\t\tset\t-8008,%o5", "\t\tst\t%o0,[%g1+%o5]"))
}

func TestCodeGenerator_ManyArguments(t *testing.T) {
	source := `program p;
procedure q(a : integer; b : integer; c : integer; d : integer; e : integer; f : integer; g : integer);
begin
  write(g)
end;
begin
  q(1, 2, 3, 4, 5, 6, 7)
end.`
	code := generateTestAssembler(t, source, false)
	assert.Contains(t, code, lines("\t\tld\t[%g2+92],%o0", "\t\tst\t%o0,[%sp+68]"))
	assert.Contains(t, code, lines("L3:\t\t\t! P", "\t\tsave\t%sp,-128,%sp"))
	assert.Contains(t, code, lines("\t\tst\t%o0,[%sp+92]", "\t\tcall\tL4"))
}

func TestCodeGenerator_Nop(t *testing.T) {
	labels := NewLabelAllocator()
	table := NewSymbolTable(labels, NewDiagnostics(nil))
	generator := NewCodeGenerator(&bytes.Buffer{}, table, labels, false)
	assert.PanicsWithError(t, "Internal error: q_nop quadruple reached code generation", func() {
		generator.expandQuad(&Quadruple{Op: QNop, Sym1: NullSym, Sym2: NullSym, Sym3: NullSym})
	})
}
