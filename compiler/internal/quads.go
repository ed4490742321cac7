package internal

import (
	"fmt"
	"math"
	"strings"
)

type QuadOp int

const (
	QRLoad QuadOp = iota
	QILoad
	QINot
	QRUMinus
	QIUMinus
	QRPlus
	QIPlus
	QRMinus
	QIMinus
	QIOr
	QIAnd
	QRMult
	QIMult
	QRDivide
	QIDivide
	QIMod
	QREq
	QIEq
	QRNe
	QINe
	QRLt
	QILt
	QRGt
	QIGt
	QRStore
	QIStore
	QRAssign
	QIAssign
	QCall
	QRReturn
	QIReturn
	QLIndex
	QRRIndex
	QIRIndex
	QIToR
	QJmp
	QJmpF
	QParam
	QLabl
	QNop
)

var quadOpNames = [...]string{
	"q_rload", "q_iload", "q_inot", "q_ruminus", "q_iuminus", "q_rplus", "q_iplus", "q_rminus", "q_iminus",
	"q_ior", "q_iand", "q_rmult", "q_imult", "q_rdivide", "q_idivide", "q_imod", "q_req", "q_ieq", "q_rne",
	"q_ine", "q_rlt", "q_ilt", "q_rgt", "q_igt", "q_rstore", "q_istore", "q_rassign", "q_iassign", "q_call",
	"q_rreturn", "q_ireturn", "q_lindex", "q_rrindex", "q_irindex", "q_itor", "q_jmp", "q_jmpf", "q_param",
	"q_labl", "q_nop",
}

func (op QuadOp) String() string {
	if op < 0 || int(op) >= len(quadOpNames) {
		return fmt.Sprintf("QuadOp(%d)", int(op))
	}
	return quadOpNames[op]
}

// Quadruple operands by opcode:
//
//	q_iload, q_rload        Int1 value (real as IEEE bits), Sym3 destination
//	unary ops, q_itor       Sym1 operand, Sym3 result
//	binary ops, relations   Sym1, Sym2 operands, Sym3 result
//	q_iassign, q_rassign    Sym1 value, Sym3 destination
//	q_istore, q_rstore      Sym1 value, Sym3 temporary holding the address
//	q_lindex                Sym1 array, Sym2 index, Sym3 address result
//	q_irindex, q_rrindex    Sym1 array, Sym2 index, Sym3 element result
//	q_param                 Sym1 argument
//	q_call                  Sym1 callee, Int2 argument count, Sym3 result or NullSym
//	q_ireturn, q_rreturn    Int1 exit label, Sym2 value
//	q_jmp, q_labl           Int1 label
//	q_jmpf                  Int1 label, Sym2 condition
type Quadruple struct {
	Op   QuadOp
	Sym1 SymIndex
	Sym2 SymIndex
	Sym3 SymIndex
	Int1 int
	Int2 int
}

func newQuad(op QuadOp, sym1 SymIndex, sym2 SymIndex, sym3 SymIndex) *Quadruple {
	return &Quadruple{Op: op, Sym1: sym1, Sym2: sym2, Sym3: sym3}
}

func newLabelQuad(op QuadOp, label int, sym SymIndex) *Quadruple {
	return &Quadruple{Op: op, Sym1: NullSym, Sym2: sym, Sym3: NullSym, Int1: label}
}

// Format renders the quad for trace output, with symbol names from table.
func (quad *Quadruple) Format(table *SymbolTable) string {
	name := func(sym SymIndex) string {
		if sym == NullSym {
			return "-"
		}
		return table.Name(sym)
	}
	var operands []string
	switch quad.Op {
	case QILoad:
		operands = []string{fmt.Sprint(quad.Int1), "-", name(quad.Sym3)}
	case QRLoad:
		value := math.Float32frombits(uint32(int32(quad.Int1)))
		operands = []string{fmt.Sprint(value), "-", name(quad.Sym3)}
	case QCall:
		operands = []string{name(quad.Sym1), fmt.Sprint(quad.Int2), name(quad.Sym3)}
	case QIReturn, QRReturn, QJmpF:
		operands = []string{fmt.Sprint(quad.Int1), name(quad.Sym2), "-"}
	case QJmp, QLabl:
		operands = []string{fmt.Sprint(quad.Int1), "-", "-"}
	default:
		operands = []string{name(quad.Sym1), name(quad.Sym2), name(quad.Sym3)}
	}
	return fmt.Sprintf("%-10s %s", quad.Op, strings.Join(operands, " "))
}

// QuadList is the body of one block, ending with the label of LastLabel.
type QuadList struct {
	Quads     []*Quadruple
	LastLabel int
}

func (list *QuadList) Append(quad *Quadruple) {
	list.Quads = append(list.Quads, quad)
}

// QuadGenerator lowers a type checked block to quads. Every expression is
// computed into a symbol, most often a fresh temporary of the current block.
type QuadGenerator struct {
	table  *SymbolTable
	labels *LabelAllocator
	list   *QuadList
}

func NewQuadGenerator(table *SymbolTable, labels *LabelAllocator) *QuadGenerator {
	return &QuadGenerator{table: table, labels: labels}
}

func (generator *QuadGenerator) GenerateBlock(block *BlockAst) *QuadList {
	generator.list = &QuadList{LastLabel: generator.labels.Next()}
	generator.generateStatements(block.Body)
	generator.emit(newLabelQuad(QLabl, generator.list.LastLabel, NullSym))
	return generator.list
}

func (generator *QuadGenerator) emit(quad *Quadruple) {
	generator.list.Append(quad)
}

func (generator *QuadGenerator) generateStatements(list *StmtListAst) {
	if list == nil {
		return
	}
	for _, stm := range list.Statements {
		generator.generateStatement(stm)
	}
}

func (generator *QuadGenerator) generateStatement(stm Statement) {
	switch s := stm.(type) {
	case *AssignAst:
		generator.generateAssign(s)
	case *ProcedureCallAst:
		generator.generateCall(s.ID, s.Args, NullSym)
	case *WhileAst:
		generator.generateWhile(s)
	case *IfAst:
		generator.generateIf(s)
	case *ReturnAst:
		generator.generateReturn(s)
	default:
		fatal("trying to generate quads for statement %T", stm)
	}
}

func (generator *QuadGenerator) generateAssign(stm *AssignAst) {
	rhs := generator.generateExpression(stm.Rhs)
	switch lhs := stm.Lhs.(type) {
	case *IdentifierAst:
		generator.emit(newQuad(pickOp(lhs.TypeOf(), QIAssign, QRAssign), rhs, NullSym, lhs.Sym))
	case *IndexedAst:
		index := generator.generateExpression(lhs.Index)
		address := generator.table.GenTempVar(IntegerType)
		generator.emit(newQuad(QLIndex, lhs.ID.Sym, index, address))
		generator.emit(newQuad(pickOp(lhs.TypeOf(), QIStore, QRStore), rhs, NullSym, address))
	default:
		fatal("illegal assignment target %T", stm.Lhs)
	}
}

// top: condition, jump if false to bottom, body, jump to top, bottom:
func (generator *QuadGenerator) generateWhile(stm *WhileAst) {
	top := generator.labels.Next()
	bottom := generator.labels.Next()
	generator.emit(newLabelQuad(QLabl, top, NullSym))
	condition := generator.generateExpression(stm.Condition)
	generator.emit(newLabelQuad(QJmpF, bottom, condition))
	generator.generateStatements(stm.Body)
	generator.emit(newLabelQuad(QJmp, top, NullSym))
	generator.emit(newLabelQuad(QLabl, bottom, NullSym))
}

// Every branch with a condition jumps to its own next label when false and
// ends with a jump to the shared end label.
func (generator *QuadGenerator) generateIf(stm *IfAst) {
	end := generator.labels.Next()
	generator.generateBranchAndJump(stm.Condition, stm.Body, end)
	for _, elsif := range stm.Elsifs {
		generator.generateBranchAndJump(elsif.Condition, elsif.Body, end)
	}
	generator.generateStatements(stm.ElseBody)
	generator.emit(newLabelQuad(QLabl, end, NullSym))
}

func (generator *QuadGenerator) generateBranchAndJump(condition Expression, body *StmtListAst, end int) {
	next := generator.labels.Next()
	pos := generator.generateExpression(condition)
	generator.emit(newLabelQuad(QJmpF, next, pos))
	generator.generateStatements(body)
	generator.emit(newLabelQuad(QJmp, end, NullSym))
	generator.emit(newLabelQuad(QLabl, next, NullSym))
}

func (generator *QuadGenerator) generateReturn(stm *ReturnAst) {
	if stm.Value == nil {
		generator.emit(newLabelQuad(QJmp, generator.list.LastLabel, NullSym))
		return
	}
	value := generator.generateExpression(stm.Value)
	generator.emit(newLabelQuad(pickOp(stm.Value.TypeOf(), QIReturn, QRReturn), generator.list.LastLabel, value))
}

// generateCall evaluates every argument, then passes them in declared order.
func (generator *QuadGenerator) generateCall(id *IdentifierAst, args []Expression, result SymIndex) {
	values := make([]SymIndex, 0, len(args))
	for _, arg := range args {
		values = append(values, generator.generateExpression(arg))
	}
	for _, value := range values {
		generator.emit(newQuad(QParam, value, NullSym, NullSym))
	}
	generator.emit(&Quadruple{Op: QCall, Sym1: id.Sym, Sym2: NullSym, Sym3: result, Int2: len(values)})
}

// generateExpression returns the symbol holding the value of expr.
func (generator *QuadGenerator) generateExpression(expr Expression) SymIndex {
	switch e := expr.(type) {
	case *IdentifierAst:
		return generator.generateIdentifier(e)
	case *IntegerAst:
		return generator.loadInteger(e.Value)
	case *RealAst:
		return generator.loadReal(e.Value)
	case *IndexedAst:
		index := generator.generateExpression(e.Index)
		result := generator.table.GenTempVar(e.TypeOf())
		generator.emit(newQuad(pickOp(e.TypeOf(), QIRIndex, QRRIndex), e.ID.Sym, index, result))
		return result
	case *FunctionCallAst:
		result := generator.table.GenTempVar(e.TypeOf())
		generator.generateCall(e.ID, e.Args, result)
		return result
	case *BinaryOperationAst:
		return generator.generateBinaryOperation(e)
	case *BinaryRelationAst:
		return generator.generateBinaryRelation(e)
	case *UnaryMinusAst:
		operand := generator.generateExpression(e.Expr)
		result := generator.table.GenTempVar(e.TypeOf())
		generator.emit(newQuad(pickOp(e.TypeOf(), QIUMinus, QRUMinus), operand, NullSym, result))
		return result
	case *NotAst:
		operand := generator.generateExpression(e.Expr)
		result := generator.table.GenTempVar(IntegerType)
		generator.emit(newQuad(QINot, operand, NullSym, result))
		return result
	case *CastAst:
		operand := generator.generateExpression(e.Expr)
		result := generator.table.GenTempVar(RealType)
		generator.emit(newQuad(QIToR, operand, NullSym, result))
		return result
	default:
		fatal("trying to generate quads for expression %T", expr)
		return NullSym
	}
}

// Variables and parameters are used where they are; a constant is loaded
// into a temporary.
func (generator *QuadGenerator) generateIdentifier(id *IdentifierAst) SymIndex {
	switch sym := generator.table.Get(id.Sym).(type) {
	case *VariableSymbol, *ParameterSymbol:
		return id.Sym
	case *ConstantSymbol:
		if sym.Type == IntegerType {
			return generator.loadInteger(sym.IntValue)
		}
		return generator.loadReal(sym.RealValue)
	default:
		fatal("%s cannot be used as a value", generator.table.Name(id.Sym))
		return NullSym
	}
}

func (generator *QuadGenerator) loadInteger(value int) SymIndex {
	result := generator.table.GenTempVar(IntegerType)
	generator.emit(&Quadruple{Op: QILoad, Sym1: NullSym, Sym2: NullSym, Sym3: result, Int1: value})
	return result
}

func (generator *QuadGenerator) loadReal(value float32) SymIndex {
	result := generator.table.GenTempVar(RealType)
	generator.emit(&Quadruple{Op: QRLoad, Sym1: NullSym, Sym2: NullSym, Sym3: result, Int1: IEEE(value)})
	return result
}

var binaryQuadOps = map[BinaryOp][2]QuadOp{
	AddOp:    {QIPlus, QRPlus},
	SubOp:    {QIMinus, QRMinus},
	MulOp:    {QIMult, QRMult},
	DivideOp: {QNop, QRDivide},
	IDivOp:   {QIDivide, QNop},
	ModOp:    {QIMod, QNop},
	AndOp:    {QIAnd, QNop},
	OrOp:     {QIOr, QNop},
}

var relationQuadOps = map[RelationOp][2]QuadOp{
	EqualOp:    {QIEq, QREq},
	NotEqualOp: {QINe, QRNe},
	LessOp:     {QILt, QRLt},
	GreaterOp:  {QIGt, QRGt},
}

func (generator *QuadGenerator) generateBinaryOperation(node *BinaryOperationAst) SymIndex {
	left := generator.generateExpression(node.Left)
	right := generator.generateExpression(node.Right)
	ops := binaryQuadOps[node.Op]
	op := pickOp(node.TypeOf(), ops[0], ops[1])
	if op == QNop {
		fatal("operation %s has no %s form", node.Op, generator.table.Name(node.TypeOf()))
	}
	result := generator.table.GenTempVar(node.TypeOf())
	generator.emit(newQuad(op, left, right, result))
	return result
}

// A relation is one quad; the code generator turns it into a 0 or 1.
func (generator *QuadGenerator) generateBinaryRelation(node *BinaryRelationAst) SymIndex {
	left := generator.generateExpression(node.Left)
	right := generator.generateExpression(node.Right)
	ops := relationQuadOps[node.Op]
	op := pickOp(node.Left.TypeOf(), ops[0], ops[1])
	result := generator.table.GenTempVar(IntegerType)
	generator.emit(newQuad(op, left, right, result))
	return result
}

// pickOp selects the integer or real form of an opcode.
func pickOp(typ SymIndex, integerOp QuadOp, realOp QuadOp) QuadOp {
	switch typ {
	case IntegerType:
		return integerOp
	case RealType:
		return realOp
	default:
		fatal("no quad for values of type %d", typ)
		return QNop
	}
}
