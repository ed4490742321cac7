package internal

import "fmt"

// SymIndex is the index of a symbol in the symbol table.
type SymIndex int

// PoolIndex is the index of a string in the string pool.
type PoolIndex int

const NullSym SymIndex = -1

type SymbolTag int

const (
	UndefTag SymbolTag = iota
	ArrayTag
	FunctionTag
	ProcedureTag
	VariableTag
	ParameterTag
	ConstantTag
	NameTypeTag
)

var symbolTagNames = map[SymbolTag]string{
	UndefTag:     "SYM_UNDEF",
	ArrayTag:     "SYM_ARRAY",
	FunctionTag:  "SYM_FUNC",
	ProcedureTag: "SYM_PROC",
	VariableTag:  "SYM_VAR",
	ParameterTag: "SYM_PARAM",
	ConstantTag:  "SYM_CONST",
	NameTypeTag:  "SYM_NAMETYPE",
}

func (tag SymbolTag) String() string {
	name, ok := symbolTagNames[tag]
	if !ok {
		return fmt.Sprintf("SymbolTag(%d)", int(tag))
	}
	return name
}

// Symbol is one of the *Symbol variants below.
type Symbol interface {
	Header() *SymbolHeader
	isSymbol()
}

// SymbolHeader holds the fields every symbol has.
type SymbolHeader struct {
	ID       PoolIndex
	Tag      SymbolTag
	Type     SymIndex
	HashLink SymIndex
	BackLink SymIndex
	Level    int
	Offset   int
}

func (header *SymbolHeader) Header() *SymbolHeader {
	return header
}

func (header *SymbolHeader) isSymbol() {}

// ConstantSymbol holds an integer value when its Type is IntegerType and a
// real value otherwise.
type ConstantSymbol struct {
	SymbolHeader
	IntValue  int
	RealValue float32
}

type VariableSymbol struct {
	SymbolHeader
}

// ArraySymbol Type is the element type.
type ArraySymbol struct {
	SymbolHeader
	IndexType   SymIndex
	Cardinality int
}

// ParameterSymbol links to the parameter declared before it, so the formal
// list of a subprogram is walked from its last parameter backwards.
type ParameterSymbol struct {
	SymbolHeader
	Size      int
	Preceding SymIndex
}

// Subprogram is the part procedures and functions share.
type Subprogram struct {
	ARSize        int
	LabelNr       int
	LastParameter SymIndex
}

type ProcedureSymbol struct {
	SymbolHeader
	Subprogram
}

// FunctionSymbol Type is the return type.
type FunctionSymbol struct {
	SymbolHeader
	Subprogram
}

type NameTypeSymbol struct {
	SymbolHeader
}

// subprogramOf returns the shared procedure/function part of sym, or nil.
func subprogramOf(sym Symbol) *Subprogram {
	switch s := sym.(type) {
	case *ProcedureSymbol:
		return &s.Subprogram
	case *FunctionSymbol:
		return &s.Subprogram
	default:
		return nil
	}
}

func newSymbol(pool PoolIndex, tag SymbolTag) Symbol {
	header := SymbolHeader{
		ID:       pool,
		Tag:      tag,
		Type:     VoidType,
		HashLink: NullSym,
		BackLink: NullSym,
	}
	switch tag {
	case ConstantTag:
		return &ConstantSymbol{SymbolHeader: header}
	case VariableTag:
		return &VariableSymbol{SymbolHeader: header}
	case ArrayTag:
		return &ArraySymbol{SymbolHeader: header, IndexType: IntegerType}
	case ParameterTag:
		return &ParameterSymbol{SymbolHeader: header, Preceding: NullSym}
	case ProcedureTag:
		return &ProcedureSymbol{SymbolHeader: header, Subprogram: Subprogram{LastParameter: NullSym}}
	case FunctionTag:
		return &FunctionSymbol{SymbolHeader: header, Subprogram: Subprogram{LastParameter: NullSym}}
	case NameTypeTag:
		return &NameTypeSymbol{SymbolHeader: header}
	default:
		fatal("cannot create a symbol with tag %s", tag)
		return nil
	}
}
