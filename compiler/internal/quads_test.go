package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// generateTestQuads runs the front end and the quad generator over every
// block and returns the quads by block name.
func generateTestQuads(t *testing.T, source string, optimize bool) (*testCompilation, map[string]*QuadList) {
	var checker *TypeChecker
	var optimizer *Optimizer
	var generator *QuadGenerator
	quads := map[string]*QuadList{}
	c, err := parseTestProgram(t, source, func(c *testCompilation, block *BlockAst) {
		if checker == nil {
			checker, optimizer = NewTypeChecker(c.table, c.diag), NewOptimizer(c.table)
			generator = NewQuadGenerator(c.table, c.labels)
		}
		checker.CheckBlock(block)
		if optimize {
			optimizer.OptimizeBlock(block)
		}
		quads[c.table.Name(block.Env)] = generator.GenerateBlock(block)
	})
	assert.Nil(t, err)
	assert.Equal(t, 0, c.diag.ErrorCount, c.diag.Messages)
	return c, quads
}

// formatQuads renders quads with single spaces between fields.
func formatQuads(table *SymbolTable, list *QuadList) []string {
	var lines []string
	for _, quad := range list.Quads {
		lines = append(lines, strings.Join(strings.Fields(quad.Format(table)), " "))
	}
	return lines
}

func TestQuadGenerator_While(t *testing.T) {
	source := `program p;
var a : integer;
begin
  while a < 10 do a := a + 1 end
end.`
	c, quads := generateTestQuads(t, source, true)
	assert.Equal(t, []string{
		"q_labl 5 - -",
		"q_iload 10 - $1",
		"q_ilt A $1 $2",
		"q_jmpf 6 $2 -",
		"q_iload 1 - $3",
		"q_iplus A $3 $4",
		"q_iassign $4 - A",
		"q_jmp 5 - -",
		"q_labl 6 - -",
		"q_labl 4 - -",
	}, formatQuads(c.table, quads["P"]))
	assert.Equal(t, 4, quads["P"].LastLabel)
}

func TestQuadGenerator_If(t *testing.T) {
	source := `program p;
var a : integer;
begin
  if a = 1 then a := 2 elsif a = 3 then a := 4 else a := 5 end
end.`
	c, quads := generateTestQuads(t, source, true)
	assert.Equal(t, []string{
		"q_iload 1 - $1",
		"q_ieq A $1 $2",
		"q_jmpf 6 $2 -",
		"q_iload 2 - $3",
		"q_iassign $3 - A",
		"q_jmp 5 - -",
		"q_labl 6 - -",
		"q_iload 3 - $4",
		"q_ieq A $4 $5",
		"q_jmpf 7 $5 -",
		"q_iload 4 - $6",
		"q_iassign $6 - A",
		"q_jmp 5 - -",
		"q_labl 7 - -",
		"q_iload 5 - $7",
		"q_iassign $7 - A",
		"q_labl 5 - -",
		"q_labl 4 - -",
	}, formatQuads(c.table, quads["P"]))
}

func TestQuadGenerator_Arrays(t *testing.T) {
	source := `program p;
var a : integer; x : real; arr : array[4] of real;
begin
  x := arr[a] + a;
  arr[a] := x
end.`
	c, quads := generateTestQuads(t, source, true)
	assert.Equal(t, []string{
		"q_rrindex ARR A $1",
		"q_itor A - $2",
		"q_rplus $1 $2 $3",
		"q_rassign $3 - X",
		"q_lindex ARR A $4",
		"q_rstore X - $4",
		"q_labl 4 - -",
	}, formatQuads(c.table, quads["P"]))
}

func TestQuadGenerator_Calls(t *testing.T) {
	source := `program p;
var a : integer;
function f(x : integer; y : integer) : integer;
begin
  return x + y
end;
begin
  a := f(a, 2) + read;
  write(a)
end.`
	c, quads := generateTestQuads(t, source, true)
	assert.Equal(t, []string{
		"q_iplus X Y $1",
		"q_ireturn 5 $1 -",
		"q_labl 5 - -",
	}, formatQuads(c.table, quads["F"]))
	assert.Equal(t, []string{
		"q_iload 2 - $3",
		"q_param A - -",
		"q_param $3 - -",
		"q_call F 2 $2",
		"q_call READ 0 $4",
		"q_iplus $2 $4 $5",
		"q_iassign $5 - A",
		"q_param A - -",
		"q_call WRITE 1 -",
		"q_labl 6 - -",
	}, formatQuads(c.table, quads["P"]))
}

func TestQuadGenerator_Constants(t *testing.T) {
	source := `program p;
const n = 5; r = 2.5;
var a : integer; x : real;
begin
  a := n;
  x := r;
  x := -x;
  a := not a;
  return
end.`
	c, quads := generateTestQuads(t, source, false)
	assert.Equal(t, []string{
		"q_iload 5 - $1",
		"q_iassign $1 - A",
		"q_rload 2.5 - $2",
		"q_rassign $2 - X",
		"q_ruminus X - $3",
		"q_rassign $3 - X",
		"q_inot A - $4",
		"q_iassign $4 - A",
		"q_jmp 4 - -",
		"q_labl 4 - -",
	}, formatQuads(c.table, quads["P"]))
}

func TestQuadGenerator_Operations(t *testing.T) {
	testData := []struct {
		content  string
		expected string
	}{
		{content: "a := a - a", expected: "q_iminus A A $1"},
		{content: "a := a * a", expected: "q_imult A A $1"},
		{content: "a := a div a", expected: "q_idivide A A $1"},
		{content: "a := a mod a", expected: "q_imod A A $1"},
		{content: "a := a and a", expected: "q_iand A A $1"},
		{content: "a := a or a", expected: "q_ior A A $1"},
		{content: "a := -a", expected: "q_iuminus A - $1"},
		{content: "a := a <> a", expected: "q_ine A A $1"},
		{content: "a := a > a", expected: "q_igt A A $1"},
		{content: "x := x - x", expected: "q_rminus X X $1"},
		{content: "x := x * x", expected: "q_rmult X X $1"},
		{content: "x := x / x", expected: "q_rdivide X X $1"},
		{content: "a := x = x", expected: "q_req X X $1"},
		{content: "a := x <> x", expected: "q_rne X X $1"},
		{content: "a := x < x", expected: "q_rlt X X $1"},
		{content: "a := x > x", expected: "q_rgt X X $1"},
	}
	for _, data := range testData {
		source := "program p; var a : integer; x : real; begin " + data.content + " end."
		c, quads := generateTestQuads(t, source, false)
		lines := formatQuads(c.table, quads["P"])
		assert.Equal(t, data.expected, lines[0], data.content)
	}
}

// Every jump lands on a label of its own block.
func TestQuadGenerator_JumpTargets(t *testing.T) {
	source := `program p;
var a : integer;
procedure q(n : integer);
begin
  while n > 0 do
    if n mod 2 = 0 then write(n) elsif n = 7 then return end;
    n := n - 1
  end
end;
begin
  a := 10;
  while a > 0 do
    q(a);
    if a > 5 then a := a - 2 else a := a - 1 end
  end
end.`
	_, quads := generateTestQuads(t, source, true)
	assert.Len(t, quads, 2)
	for name, list := range quads {
		labels := map[int]int{}
		for _, quad := range list.Quads {
			if quad.Op == QLabl {
				labels[quad.Int1]++
			}
		}
		for label, count := range labels {
			assert.Equal(t, 1, count, "%s label %d", name, label)
		}
		for _, quad := range list.Quads {
			switch quad.Op {
			case QJmp, QJmpF, QIReturn, QRReturn:
				assert.Contains(t, labels, quad.Int1, "%s %s", name, quad.Op)
			}
		}
		last := list.Quads[len(list.Quads)-1]
		assert.Equal(t, QLabl, last.Op)
		assert.Equal(t, list.LastLabel, last.Int1)
	}
}
