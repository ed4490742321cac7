package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSymbolTable() (*SymbolTable, *Diagnostics, *LabelAllocator) {
	labels := NewLabelAllocator()
	diag := NewDiagnostics(nil)
	return NewSymbolTable(labels, diag), diag, labels
}

// openTestProcedure enters a procedure at the current level and opens its scope.
func openTestProcedure(table *SymbolTable, name string) SymIndex {
	sym := table.EnterProcedure(Position{}, table.PoolInstall(name))
	table.OpenScope()
	return sym
}

func TestSymbolTable_Predefined(t *testing.T) {
	table, diag, labels := newTestSymbolTable()
	testData := []struct {
		name        string
		expectedTag SymbolTag
		typ         SymIndex
		label       int
	}{
		{name: "GLOBAL.", expectedTag: ProcedureTag, typ: VoidType, label: -1},
		{name: "READ", expectedTag: FunctionTag, typ: IntegerType, label: 0},
		{name: "WRITE", expectedTag: ProcedureTag, typ: VoidType, label: 1},
		{name: "TRUNC", expectedTag: FunctionTag, typ: IntegerType, label: 2},
	}
	for _, data := range testData {
		sym := table.Lookup(table.PoolInstall(data.name))
		assert.NotEqual(t, NullSym, sym, data.name)
		assert.Equal(t, data.expectedTag, table.Tag(sym), data.name)
		assert.Equal(t, data.typ, table.TypeOf(sym), data.name)
		assert.Equal(t, data.label, subprogramOf(table.Get(sym)).LabelNr, data.name)
	}
	for _, typ := range []SymIndex{VoidType, IntegerType, RealType} {
		assert.Equal(t, NameTypeTag, table.Tag(typ))
	}
	assert.Equal(t, "INTEGER", table.Name(IntegerType))

	write := table.Parameters(table.Lookup(table.PoolInstall("WRITE")))
	assert.Len(t, write, 1)
	assert.Equal(t, IntegerType, table.TypeOf(write[0]))
	trunc := table.Parameters(table.Lookup(table.PoolInstall("TRUNC")))
	assert.Len(t, trunc, 1)
	assert.Equal(t, RealType, table.TypeOf(trunc[0]))
	assert.Empty(t, table.Parameters(table.Lookup(table.PoolInstall("READ"))))

	assert.Equal(t, 3, labels.Next())
	assert.Equal(t, 0, diag.ErrorCount)
	assert.Equal(t, 0, table.CurrentLevel())
}

func TestSymbolTable_PoolInstall(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	first := table.PoolInstall("FOO")
	assert.Equal(t, first, table.PoolInstall("FOO"))
	assert.NotEqual(t, first, table.PoolInstall("BAR"))
	assert.Equal(t, "FOO", table.PoolLookup(first))
	assert.True(t, table.Hash(first) >= 0 && table.Hash(first) < MaxHash)
}

func TestSymbolTable_Variables(t *testing.T) {
	table, diag, _ := newTestSymbolTable()
	program := openTestProcedure(table, "P")
	a := table.EnterVariable(Position{}, table.PoolInstall("A"), IntegerType)
	arr := table.EnterArray(Position{}, table.PoolInstall("ARR"), RealType, 5)
	bad := table.EnterArray(Position{}, table.PoolInstall("BAD"), IntegerType, IllegalArrayCard)
	r := table.EnterVariable(Position{}, table.PoolInstall("R"), RealType)

	assert.Equal(t, 0, table.Get(a).Header().Offset)
	assert.Equal(t, 4, table.Get(arr).Header().Offset)
	assert.Equal(t, 24, table.Get(r).Header().Offset)
	assert.Equal(t, 0, table.Get(bad).Header().Offset)
	assert.Equal(t, 28, subprogramOf(table.Get(program)).ARSize)
	assert.Equal(t, 1, table.Get(a).Header().Level)
	assert.Equal(t, 0, diag.ErrorCount)
}

func TestSymbolTable_Parameters(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	openTestProcedure(table, "P")
	f := table.EnterFunction(Position{}, table.PoolInstall("F"))
	table.OpenScope()
	x := table.EnterParameter(Position{}, table.PoolInstall("X"), IntegerType)
	y := table.EnterParameter(Position{}, table.PoolInstall("Y"), RealType)
	z := table.EnterParameter(Position{}, table.PoolInstall("Z"), IntegerType)
	local := table.EnterVariable(Position{}, table.PoolInstall("L"), IntegerType)

	assert.Equal(t, []SymIndex{x, y, z}, table.Parameters(f))
	assert.Equal(t, 0, table.Get(x).Header().Offset)
	assert.Equal(t, 4, table.Get(y).Header().Offset)
	assert.Equal(t, 8, table.Get(z).Header().Offset)
	assert.Equal(t, 0, table.Get(local).Header().Offset)
	assert.Equal(t, 4, subprogramOf(table.Get(f)).ARSize)
	assert.Equal(t, 2, table.Get(x).Header().Level)
	assert.Equal(t, f, table.CurrentEnvironment())
}

func TestSymbolTable_Redeclaration(t *testing.T) {
	table, diag, _ := newTestSymbolTable()
	program := openTestProcedure(table, "P")
	pool := table.PoolInstall("A")
	first := table.EnterVariable(Position{Line: 2, Column: 5}, pool, IntegerType)
	second := table.EnterVariable(Position{Line: 3, Column: 5}, pool, RealType)
	assert.Equal(t, first, second)
	assert.Equal(t, IntegerType, table.TypeOf(first))
	assert.Equal(t, 4, subprogramOf(table.Get(program)).ARSize)
	assert.Equal(t, []string{"Type conflict, line 3, col 5: Redeclaration: A"}, diag.Messages)

	// The same name in an inner scope shadows instead.
	openTestProcedure(table, "Q")
	inner := table.EnterVariable(Position{}, pool, RealType)
	assert.NotEqual(t, first, inner)
	assert.Equal(t, 1, diag.ErrorCount)
}

func TestSymbolTable_Scopes(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	program := openTestProcedure(table, "P")
	pool := table.PoolInstall("A")
	outer := table.EnterVariable(Position{}, pool, IntegerType)
	other := table.EnterVariable(Position{}, table.PoolInstall("B"), IntegerType)

	q := openTestProcedure(table, "Q")
	assert.Equal(t, 2, table.CurrentLevel())
	assert.Equal(t, outer, table.Lookup(pool))
	inner := table.EnterVariable(Position{}, pool, RealType)
	assert.Equal(t, inner, table.Lookup(pool))
	assert.Equal(t, other, table.Lookup(table.PoolInstall("B")))
	assert.Equal(t, q, table.CurrentEnvironment())

	assert.Equal(t, program, table.CloseScope())
	assert.Equal(t, 1, table.CurrentLevel())
	assert.Equal(t, outer, table.Lookup(pool))
	assert.Equal(t, q, table.Lookup(table.PoolInstall("Q")))

	table.CloseScope()
	assert.Equal(t, NullSym, table.Lookup(pool))
	assert.Equal(t, program, table.Lookup(table.PoolInstall("P")))
	assert.Equal(t, RealType, table.TypeOf(inner))
}

func TestSymbolTable_ScopeLimits(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	assert.PanicsWithError(t, "Internal error: close of the global scope", func() {
		table.CloseScope()
	})
	for i := 1; i < MaxBlock; i++ {
		openTestProcedure(table, "P")
	}
	assert.Panics(t, func() {
		openTestProcedure(table, "P")
	})
}

func TestSymbolTable_GenTempVar(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	program := openTestProcedure(table, "P")
	first := table.GenTempVar(IntegerType)
	second := table.GenTempVar(RealType)
	assert.Equal(t, "$1", table.Name(first))
	assert.Equal(t, "$2", table.Name(second))
	assert.Equal(t, VariableTag, table.Tag(second))
	assert.Equal(t, RealType, table.TypeOf(second))
	assert.Equal(t, 8, subprogramOf(table.Get(program)).ARSize)
	assert.Panics(t, func() {
		table.GenTempVar(VoidType)
	})
}

func TestSymbolTable_GetSize(t *testing.T) {
	table, _, _ := newTestSymbolTable()
	assert.Equal(t, 4, table.GetSize(IntegerType))
	assert.Equal(t, 4, table.GetSize(RealType))
	assert.Panics(t, func() {
		table.GetSize(VoidType)
	})
}

func TestIEEE(t *testing.T) {
	testData := []struct {
		value    float32
		expected int
	}{
		{value: 0, expected: 0},
		{value: 1, expected: 0x3f800000},
		{value: 2.5, expected: 0x40200000},
		{value: -1, expected: -0x40800000},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, IEEE(data.value), data.value)
	}
}
