package internal

import (
	"fmt"
	"math"
)

const (
	MaxBlock         = 8    // max nesting levels
	MaxHash          = 512  // hash table size
	MaxSym           = 1024 // symbol table size
	IllegalArrayCard = -1   // cardinality of an array declared with a bad size
)

// The nametypes are installed right after the global procedure, so their
// indices never change.
const (
	VoidType    SymIndex = 1
	IntegerType SymIndex = 2
	RealType    SymIndex = 3
)

// LabelAllocator hands out assembler label numbers. It starts at -1, which is
// the label of the global level, so READ, WRITE and TRUNC get 0, 1 and 2.
type LabelAllocator struct {
	next int
}

func NewLabelAllocator() *LabelAllocator {
	return &LabelAllocator{next: -1}
}

func (labels *LabelAllocator) Next() int {
	label := labels.next
	labels.next++
	return label
}

// SymbolTable owns every name of a compilation. Symbols are never removed:
// closing a scope only unhooks them from the hash chains.
type SymbolTable struct {
	pool      []string
	poolIndex map[string]PoolIndex

	hashTable    [MaxHash]SymIndex
	blockTable   [MaxBlock]SymIndex
	currentLevel int

	symbols []Symbol
	tempNr  int

	labels *LabelAllocator
	diag   *Diagnostics
}

func NewSymbolTable(labels *LabelAllocator, diag *Diagnostics) *SymbolTable {
	table := &SymbolTable{
		poolIndex: map[string]PoolIndex{},
		labels:    labels,
		diag:      diag,
	}
	for i := range table.hashTable {
		table.hashTable[i] = NullSym
	}
	table.installPredefined()
	return table
}

func (table *SymbolTable) installPredefined() {
	var noPos Position
	global := table.EnterProcedure(noPos, table.PoolInstall("GLOBAL."))
	voidType := table.EnterNameType(noPos, table.PoolInstall("VOID"))
	integerType := table.EnterNameType(noPos, table.PoolInstall("INTEGER"))
	realType := table.EnterNameType(noPos, table.PoolInstall("REAL"))
	if global != 0 || voidType != VoidType || integerType != IntegerType || realType != RealType {
		fatal("predefined symbols installed at unexpected indices")
	}

	read := table.EnterFunction(noPos, table.PoolInstall("READ"))
	table.SetType(read, IntegerType)

	write := table.EnterProcedure(noPos, table.PoolInstall("WRITE"))
	table.installPredefinedParameter(write, "INT-ARG", IntegerType)

	trunc := table.EnterFunction(noPos, table.PoolInstall("TRUNC"))
	table.SetType(trunc, IntegerType)
	table.installPredefinedParameter(trunc, "REAL-ARG", RealType)
}

// installPredefinedParameter gives a predefined subprogram its single
// parameter. The global level is not the scope of these parameters, so the
// link is set by hand instead of through EnterParameter.
func (table *SymbolTable) installPredefinedParameter(owner SymIndex, name string, typ SymIndex) {
	index, _ := table.install(table.PoolInstall(name), ParameterTag)
	param := table.symbols[index].(*ParameterSymbol)
	param.Type = typ
	param.Size = table.GetSize(typ)
	param.Offset = 0
	subprogramOf(table.symbols[owner]).LastParameter = index
}

/*** String pool ***/

// PoolInstall stores s once and returns its index; installing the same
// string again returns the first index.
func (table *SymbolTable) PoolInstall(s string) PoolIndex {
	if index, ok := table.poolIndex[s]; ok {
		return index
	}
	index := PoolIndex(len(table.pool))
	table.pool = append(table.pool, s)
	table.poolIndex[s] = index
	return index
}

func (table *SymbolTable) PoolLookup(index PoolIndex) string {
	if index < 0 || int(index) >= len(table.pool) {
		fatal("pool index %d out of range", index)
	}
	return table.pool[index]
}

// Hash is the x33 string hash folded into the hash table size.
func (table *SymbolTable) Hash(pool PoolIndex) int {
	var h uint32
	for _, c := range []byte(table.PoolLookup(pool)) {
		h = (h << 5) + h + uint32(c)
	}
	return int(h % MaxHash)
}

/*** Display ***/

func (table *SymbolTable) CurrentLevel() int {
	return table.currentLevel
}

// CurrentEnvironment returns the procedure or function whose block is open.
func (table *SymbolTable) CurrentEnvironment() SymIndex {
	return table.blockTable[table.currentLevel]
}

// OpenScope makes the most recently installed symbol the new environment.
func (table *SymbolTable) OpenScope() {
	if table.currentLevel+1 >= MaxBlock {
		fatal("too many nested scopes, the limit is %d", MaxBlock)
	}
	table.currentLevel++
	table.blockTable[table.currentLevel] = SymIndex(len(table.symbols) - 1)
}

// CloseScope unhooks the symbols of the current block and returns the
// environment that is visible again.
func (table *SymbolTable) CloseScope() SymIndex {
	if table.currentLevel == 0 {
		fatal("close of the global scope")
	}
	start := table.blockTable[table.currentLevel]
	for i := SymIndex(len(table.symbols) - 1); i > start; i-- {
		if table.symbols[i].Header().Level == table.currentLevel {
			table.unhook(i)
		}
	}
	table.currentLevel--
	return table.CurrentEnvironment()
}

func (table *SymbolTable) unhook(index SymIndex) {
	header := table.symbols[index].Header()
	if header.BackLink == NullSym {
		table.hashTable[table.Hash(header.ID)] = header.HashLink
	} else {
		table.symbols[header.BackLink].Header().HashLink = header.HashLink
	}
	if header.HashLink != NullSym {
		table.symbols[header.HashLink].Header().BackLink = header.BackLink
	}
	header.HashLink, header.BackLink = NullSym, NullSym
}

/*** Lookup and install ***/

// Lookup returns the innermost visible symbol named pool, or NullSym.
func (table *SymbolTable) Lookup(pool PoolIndex) SymIndex {
	for index := table.hashTable[table.Hash(pool)]; index != NullSym; {
		header := table.symbols[index].Header()
		if header.ID == pool && header.Level <= table.currentLevel {
			return index
		}
		index = header.HashLink
	}
	return NullSym
}

// install creates a symbol with the given tag at the head of its hash chain.
// A name already bound at the current level is not installed again; the
// existing index is returned with fresh set to false.
func (table *SymbolTable) install(pool PoolIndex, tag SymbolTag) (index SymIndex, fresh bool) {
	existing := table.Lookup(pool)
	if existing != NullSym && table.symbols[existing].Header().Level == table.currentLevel {
		return existing, false
	}
	if len(table.symbols) >= MaxSym {
		fatal("symbol table overflow, the limit is %d symbols", MaxSym)
	}
	sym := newSymbol(pool, tag)
	index = SymIndex(len(table.symbols))
	h := table.Hash(pool)
	header := sym.Header()
	header.Level = table.currentLevel
	header.HashLink = table.hashTable[h]
	if header.HashLink != NullSym {
		table.symbols[header.HashLink].Header().BackLink = index
	}
	table.hashTable[h] = index
	table.symbols = append(table.symbols, sym)
	return index, true
}

func (table *SymbolTable) redeclaration(pos Position, index SymIndex) SymIndex {
	table.diag.TypeError(pos, "Redeclaration: %s", table.Name(index))
	return index
}

/*** Symbol access ***/

func (table *SymbolTable) Get(index SymIndex) Symbol {
	if index == NullSym {
		return nil
	}
	if index < 0 || int(index) >= len(table.symbols) {
		fatal("symbol index %d out of range", index)
	}
	return table.symbols[index]
}

func (table *SymbolTable) Len() int {
	return len(table.symbols)
}

func (table *SymbolTable) Name(index SymIndex) string {
	if index == NullSym {
		return "NULL_SYM"
	}
	return table.PoolLookup(table.Get(index).Header().ID)
}

func (table *SymbolTable) Tag(index SymIndex) SymbolTag {
	if index == NullSym {
		return UndefTag
	}
	return table.Get(index).Header().Tag
}

func (table *SymbolTable) TypeOf(index SymIndex) SymIndex {
	if index == NullSym {
		return VoidType
	}
	return table.Get(index).Header().Type
}

func (table *SymbolTable) SetType(index SymIndex, typ SymIndex) {
	if index == NullSym {
		return
	}
	table.Get(index).Header().Type = typ
}

// GetSize returns the byte size of a value of the nametype typ.
func (table *SymbolTable) GetSize(typ SymIndex) int {
	switch typ {
	case IntegerType, RealType:
		return 4
	default:
		fatal("size asked for type %s", table.Name(typ))
		return 0
	}
}

// Parameters returns the formal parameters of a procedure or function in
// declaration order.
func (table *SymbolTable) Parameters(index SymIndex) []SymIndex {
	sub := subprogramOf(table.Get(index))
	if sub == nil {
		fatal("%s has no parameters, it is not a procedure or function", table.Name(index))
	}
	var params []SymIndex
	for p := sub.LastParameter; p != NullSym; p = table.Get(p).(*ParameterSymbol).Preceding {
		params = append(params, p)
	}
	for i, j := 0, len(params)-1; i < j; i, j = i+1, j-1 {
		params[i], params[j] = params[j], params[i]
	}
	return params
}

func (table *SymbolTable) currentSubprogram() *Subprogram {
	sub := subprogramOf(table.symbols[table.CurrentEnvironment()])
	if sub == nil {
		fatal("compiler confused about scope, environment %s is not a procedure or function",
			table.Name(table.CurrentEnvironment()))
	}
	return sub
}

/*** Declarations ***/

func (table *SymbolTable) EnterIntConstant(pos Position, pool PoolIndex, value int) SymIndex {
	index, fresh := table.install(pool, ConstantTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	con := table.symbols[index].(*ConstantSymbol)
	con.Type = IntegerType
	con.IntValue = value
	return index
}

func (table *SymbolTable) EnterRealConstant(pos Position, pool PoolIndex, value float32) SymIndex {
	index, fresh := table.install(pool, ConstantTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	con := table.symbols[index].(*ConstantSymbol)
	con.Type = RealType
	con.RealValue = value
	return index
}

// EnterVariable allocates the variable at the end of the current activation
// record.
func (table *SymbolTable) EnterVariable(pos Position, pool PoolIndex, typ SymIndex) SymIndex {
	index, fresh := table.install(pool, VariableTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	variable := table.symbols[index].(*VariableSymbol)
	variable.Type = typ
	sub := table.currentSubprogram()
	variable.Offset = sub.ARSize
	sub.ARSize += table.GetSize(typ)
	return index
}

// EnterArray allocates cardinality elements of typ. An array with an illegal
// cardinality is installed but takes no space.
func (table *SymbolTable) EnterArray(pos Position, pool PoolIndex, typ SymIndex, cardinality int) SymIndex {
	index, fresh := table.install(pool, ArrayTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	arr := table.symbols[index].(*ArraySymbol)
	arr.Type = typ
	arr.IndexType = IntegerType
	arr.Cardinality = cardinality
	if cardinality != IllegalArrayCard {
		sub := table.currentSubprogram()
		arr.Offset = sub.ARSize
		sub.ARSize += cardinality * table.GetSize(typ)
	}
	return index
}

// EnterParameter appends a parameter to the current environment, which must
// already be the procedure or function the parameter belongs to.
func (table *SymbolTable) EnterParameter(pos Position, pool PoolIndex, typ SymIndex) SymIndex {
	index, fresh := table.install(pool, ParameterTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	param := table.symbols[index].(*ParameterSymbol)
	sub := table.currentSubprogram()
	param.Preceding = sub.LastParameter
	sub.LastParameter = index
	offset := 0
	for p := param.Preceding; p != NullSym; p = table.symbols[p].(*ParameterSymbol).Preceding {
		offset += table.symbols[p].(*ParameterSymbol).Size
	}
	param.Offset = offset
	param.Type = typ
	param.Size = table.GetSize(typ)
	return index
}

func (table *SymbolTable) EnterProcedure(pos Position, pool PoolIndex) SymIndex {
	index, fresh := table.install(pool, ProcedureTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	table.symbols[index].(*ProcedureSymbol).LabelNr = table.labels.Next()
	return index
}

// EnterFunction installs a function returning void; the parser sets the
// return type once it has read it.
func (table *SymbolTable) EnterFunction(pos Position, pool PoolIndex) SymIndex {
	index, fresh := table.install(pool, FunctionTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	table.symbols[index].(*FunctionSymbol).LabelNr = table.labels.Next()
	return index
}

func (table *SymbolTable) EnterNameType(pos Position, pool PoolIndex) SymIndex {
	index, fresh := table.install(pool, NameTypeTag)
	if !fresh {
		return table.redeclaration(pos, index)
	}
	table.symbols[index].Header().Type = VoidType
	return index
}

// GenTempVar installs a fresh temporary $1, $2, ... in the current block.
func (table *SymbolTable) GenTempVar(typ SymIndex) SymIndex {
	if typ != IntegerType && typ != RealType {
		fatal("temporary of type %s", table.Name(typ))
	}
	table.tempNr++
	pool := table.PoolInstall(fmt.Sprintf("$%d", table.tempNr))
	return table.EnterVariable(Position{}, pool, typ)
}

// IEEE returns the bit pattern of a single precision real, the form real
// immediates take in quads and assembly.
func IEEE(f float32) int {
	return int(int32(math.Float32bits(f)))
}
