package internal

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is any tree node. Expression and Statement narrow it down.
type Node interface {
	Pos() Position
}

// Expression nodes carry the type the type checker synthesized for them,
// VoidType until it ran.
type Expression interface {
	Node
	TypeOf() SymIndex
	SetType(typ SymIndex)
	isExpression()
}

type Statement interface {
	Node
	isStatement()
}

// LValue is an expression that can be assigned to.
type LValue interface {
	Expression
	isLValue()
}

type exprBase struct {
	Position Position
	Type     SymIndex
}

func (expr *exprBase) Pos() Position        { return expr.Position }
func (expr *exprBase) TypeOf() SymIndex     { return expr.Type }
func (expr *exprBase) SetType(typ SymIndex) { expr.Type = typ }
func (expr *exprBase) isExpression()        {}

func newExprBase(pos Position) exprBase {
	return exprBase{Position: pos, Type: VoidType}
}

type stmtBase struct {
	Position Position
}

func (stmt *stmtBase) Pos() Position { return stmt.Position }
func (stmt *stmtBase) isStatement()  {}

type BinaryOp int

const (
	AddOp BinaryOp = iota
	SubOp
	OrOp
	AndOp
	MulOp
	DivideOp
	IDivOp
	ModOp
)

var binaryOpNames = [...]string{"+", "-", "OR", "AND", "*", "/", "DIV", "MOD"}

func (op BinaryOp) String() string {
	return binaryOpNames[op]
}

type RelationOp int

const (
	EqualOp RelationOp = iota
	NotEqualOp
	LessOp
	GreaterOp
)

var relationOpNames = [...]string{"=", "<>", "<", ">"}

func (op RelationOp) String() string {
	return relationOpNames[op]
}

/*** Expressions ***/

type IdentifierAst struct {
	exprBase
	Sym SymIndex
}

func (*IdentifierAst) isLValue() {}

type IndexedAst struct {
	exprBase
	ID    *IdentifierAst
	Index Expression
}

func (*IndexedAst) isLValue() {}

type BinaryOperationAst struct {
	exprBase
	Op    BinaryOp
	Left  Expression
	Right Expression
}

type BinaryRelationAst struct {
	exprBase
	Op    RelationOp
	Left  Expression
	Right Expression
}

// FunctionCallAst Args are in source order.
type FunctionCallAst struct {
	exprBase
	ID   *IdentifierAst
	Args []Expression
}

type UnaryMinusAst struct {
	exprBase
	Expr Expression
}

type NotAst struct {
	exprBase
	Expr Expression
}

type IntegerAst struct {
	exprBase
	Value int
}

type RealAst struct {
	exprBase
	Value float32
}

// CastAst converts an integer expression to real. Only the type checker
// creates it.
type CastAst struct {
	exprBase
	Expr Expression
}

func NewIdentifier(pos Position, sym SymIndex) *IdentifierAst {
	return &IdentifierAst{exprBase: newExprBase(pos), Sym: sym}
}

func NewIntegerAst(pos Position, value int) *IntegerAst {
	return &IntegerAst{exprBase: exprBase{Position: pos, Type: IntegerType}, Value: value}
}

func NewRealAst(pos Position, value float32) *RealAst {
	return &RealAst{exprBase: exprBase{Position: pos, Type: RealType}, Value: value}
}

func NewCastAst(expr Expression) *CastAst {
	return &CastAst{exprBase: exprBase{Position: expr.Pos(), Type: RealType}, Expr: expr}
}

/*** Statements ***/

type StmtListAst struct {
	Position   Position
	Statements []Statement
}

func (list *StmtListAst) Pos() Position { return list.Position }

type ProcedureCallAst struct {
	stmtBase
	ID   *IdentifierAst
	Args []Expression
}

type AssignAst struct {
	stmtBase
	Lhs LValue
	Rhs Expression
}

type WhileAst struct {
	stmtBase
	Condition Expression
	Body      *StmtListAst
}

type ElsifAst struct {
	Position  Position
	Condition Expression
	Body      *StmtListAst
}

// IfAst ElseBody is nil when there is no else part.
type IfAst struct {
	stmtBase
	Condition Expression
	Body      *StmtListAst
	Elsifs    []*ElsifAst
	ElseBody  *StmtListAst
}

// ReturnAst Value is nil for a plain return.
type ReturnAst struct {
	stmtBase
	Value Expression
}

// BlockAst is the body of a procedure, a function or the main program
// together with the symbol of its environment.
type BlockAst struct {
	Position Position
	Env      SymIndex
	Body     *StmtListAst
}

// formatExpression prints an expression fully parenthesized, with casts shown
// as real(...). Names come from table.
func formatExpression(table *SymbolTable, expr Expression) string {
	switch e := expr.(type) {
	case *IdentifierAst:
		return table.Name(e.Sym)
	case *IndexedAst:
		return fmt.Sprintf("%s[%s]", table.Name(e.ID.Sym), formatExpression(table, e.Index))
	case *BinaryOperationAst:
		return fmt.Sprintf("(%s %s %s)", formatExpression(table, e.Left), e.Op, formatExpression(table, e.Right))
	case *BinaryRelationAst:
		return fmt.Sprintf("(%s %s %s)", formatExpression(table, e.Left), e.Op, formatExpression(table, e.Right))
	case *FunctionCallAst:
		args := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			args = append(args, formatExpression(table, arg))
		}
		return fmt.Sprintf("%s(%s)", table.Name(e.ID.Sym), strings.Join(args, ", "))
	case *UnaryMinusAst:
		return "-" + formatExpression(table, e.Expr)
	case *NotAst:
		return "NOT " + formatExpression(table, e.Expr)
	case *IntegerAst:
		return strconv.Itoa(e.Value)
	case *RealAst:
		return strconv.FormatFloat(float64(e.Value), 'g', -1, 32)
	case *CastAst:
		return "real(" + formatExpression(table, e.Expr) + ")"
	default:
		fatal("cannot format expression %T", expr)
		return ""
	}
}
