package internal

// TypeChecker annotates every expression of a block with its type and
// inserts casts where an integer is used as a real. One block is checked at a
// time; the environment and the return flag are reset for every block.
type TypeChecker struct {
	table *SymbolTable
	diag  *Diagnostics

	env       SymIndex
	hasReturn bool
}

func NewTypeChecker(table *SymbolTable, diag *Diagnostics) *TypeChecker {
	return &TypeChecker{table: table, diag: diag, env: NullSym}
}

// CheckBlock checks the body of a procedure, function or program.
func (checker *TypeChecker) CheckBlock(block *BlockAst) {
	checker.env = block.Env
	checker.hasReturn = false
	checker.checkStatements(block.Body)
	if checker.table.Tag(block.Env) == FunctionTag && !checker.hasReturn {
		pos := block.Position
		if block.Body != nil {
			pos = block.Body.Position
		}
		checker.diag.TypeError(pos, "A function must return a value.")
	}
}

func (checker *TypeChecker) checkStatements(list *StmtListAst) {
	if list == nil {
		return
	}
	for _, stm := range list.Statements {
		checker.checkStatement(stm)
	}
}

func (checker *TypeChecker) checkStatement(stm Statement) {
	switch s := stm.(type) {
	case *AssignAst:
		checker.checkAssign(s)
	case *ProcedureCallAst:
		checker.checkParameters(s.ID, s.Args)
	case *WhileAst:
		checker.checkPredicate("while", s.Condition)
		checker.checkStatements(s.Body)
	case *IfAst:
		checker.checkPredicate("if", s.Condition)
		checker.checkStatements(s.Body)
		for _, elsif := range s.Elsifs {
			checker.checkPredicate("elsif", elsif.Condition)
			checker.checkStatements(elsif.Body)
		}
		checker.checkStatements(s.ElseBody)
	case *ReturnAst:
		checker.checkReturn(s)
	default:
		fatal("trying to type check statement %T", stm)
	}
}

func (checker *TypeChecker) checkPredicate(kind string, condition Expression) {
	if checker.checkExpression(condition) != IntegerType {
		checker.diag.TypeError(condition.Pos(), "%s predicate must be of integer type.", kind)
	}
}

// checkAssign allows an integer to be assigned to a real and casts it.
func (checker *TypeChecker) checkAssign(stm *AssignAst) {
	lhsType := checker.checkExpression(stm.Lhs)
	rhsType := checker.checkExpression(stm.Rhs)
	if lhsType == rhsType {
		return
	}
	if lhsType == RealType && rhsType == IntegerType {
		stm.Rhs = NewCastAst(stm.Rhs)
		return
	}
	checker.diag.TypeError(stm.Pos(), "Error when assigning value of type %s to variable of type %s",
		checker.table.Name(rhsType), checker.table.Name(lhsType))
}

func (checker *TypeChecker) checkReturn(stm *ReturnAst) {
	checker.hasReturn = true
	envTag := checker.table.Tag(checker.env)
	if stm.Value == nil {
		if envTag != ProcedureTag {
			checker.diag.TypeError(stm.Pos(), "Must return a value from a function.")
		}
		return
	}
	valueType := checker.checkExpression(stm.Value)
	if envTag != FunctionTag {
		checker.diag.TypeError(stm.Pos(), "Procedures may not return a value.")
		return
	}
	if checker.table.TypeOf(checker.env) != valueType {
		checker.diag.TypeError(stm.Value.Pos(), "Bad return type from function.")
	}
}

// checkParameters matches actuals against formals from the last one
// backwards. A type mismatch is reported and checking goes on; running out
// of formals or actuals is reported once and ends the matching.
func (checker *TypeChecker) checkParameters(callID *IdentifierAst, actuals []Expression) {
	tag := checker.table.Tag(callID.Sym)
	if tag != FunctionTag && tag != ProcedureTag {
		checker.diag.TypeError(callID.Pos(), "%s is neither a function or a procedure", checker.table.Name(callID.Sym))
		for _, actual := range actuals {
			checker.checkExpression(actual)
		}
		return
	}
	formals := checker.table.Parameters(callID.Sym)
	i, j := len(formals)-1, len(actuals)-1
	for ; i >= 0 && j >= 0; i, j = i-1, j-1 {
		formalType := checker.table.TypeOf(formals[i])
		actualType := checker.checkExpression(actuals[j])
		if formalType == actualType {
			continue
		}
		if formalType == RealType && actualType == IntegerType {
			actuals[j] = NewCastAst(actuals[j])
			continue
		}
		checker.diag.TypeError(actuals[j].Pos(), "Received %s but %s was expected at function/procedure call",
			checker.table.Name(actualType), checker.table.Name(formalType))
	}
	switch {
	case j >= 0:
		checker.diag.TypeError(callID.Pos(), "Too many parameters to function/procedure call")
		for ; j >= 0; j-- {
			checker.checkExpression(actuals[j])
		}
	case i >= 0:
		checker.diag.TypeError(callID.Pos(), "Not enough parameters to function/procedure call")
	}
}

// checkExpression returns the type of expr after storing it in the node.
func (checker *TypeChecker) checkExpression(expr Expression) SymIndex {
	var typ SymIndex
	switch e := expr.(type) {
	case *IdentifierAst:
		typ = checker.checkIdentifier(e)
	case *IndexedAst:
		typ = checker.checkIdentifier(e.ID)
		if checker.checkExpression(e.Index) != IntegerType {
			checker.diag.TypeError(e.Index.Pos(), "Array index has to be an integer.")
		}
	case *FunctionCallAst:
		typ = checker.checkIdentifier(e.ID)
		checker.checkParameters(e.ID, e.Args)
	case *BinaryOperationAst:
		typ = checker.checkBinaryOperation(e)
	case *BinaryRelationAst:
		typ = checker.checkBinaryRelation(e)
	case *UnaryMinusAst:
		typ = checker.checkExpression(e.Expr)
		if !isNumeric(typ) {
			checker.diag.TypeError(e.Pos(), "Applying unary minus on invalid type")
		}
	case *NotAst:
		if checker.checkExpression(e.Expr) != IntegerType {
			checker.diag.TypeError(e.Pos(), "Applying unary not on non-integer type")
		}
		typ = IntegerType
	case *IntegerAst:
		typ = IntegerType
	case *RealAst:
		typ = RealType
	case *CastAst:
		checker.checkExpression(e.Expr)
		typ = RealType
	default:
		fatal("trying to type check expression %T", expr)
	}
	expr.SetType(typ)
	return typ
}

// A name denoting a type stands for the type itself.
func (checker *TypeChecker) checkIdentifier(id *IdentifierAst) SymIndex {
	typ := checker.table.TypeOf(id.Sym)
	if checker.table.Tag(id.Sym) == NameTypeTag {
		typ = id.Sym
	}
	id.SetType(typ)
	return typ
}

func isNumeric(typ SymIndex) bool {
	return typ == IntegerType || typ == RealType
}

func (checker *TypeChecker) checkBinaryOperation(node *BinaryOperationAst) SymIndex {
	switch node.Op {
	case AddOp, SubOp, MulOp:
		return checker.checkNumericOperands(node, "Operand has to be of type integer or real")
	case DivideOp:
		checker.checkNumericOperands(node, "Operand has to be of type integer or real")
		if node.Left.TypeOf() == IntegerType {
			node.Left = NewCastAst(node.Left)
		}
		if node.Right.TypeOf() == IntegerType {
			node.Right = NewCastAst(node.Right)
		}
		return RealType
	case AndOp, OrOp, IDivOp, ModOp:
		if checker.checkExpression(node.Left) != IntegerType {
			checker.diag.TypeError(node.Left.Pos(), "Operand of %s operation has to be an integer", node.Op)
		}
		if checker.checkExpression(node.Right) != IntegerType {
			checker.diag.TypeError(node.Right.Pos(), "Operand of %s operation has to be an integer", node.Op)
		}
		return IntegerType
	default:
		fatal("unknown binary operation %d", node.Op)
		return VoidType
	}
}

func (checker *TypeChecker) checkBinaryRelation(node *BinaryRelationAst) SymIndex {
	left, right := checker.promoteOperands(node.Left, node.Right,
		"Binary relation can only be performed with integers or reals")
	node.Left, node.Right = left, right
	return IntegerType
}

// checkNumericOperands types an arithmetic operation whose result follows its
// operands: integer when both are integers, real otherwise.
func (checker *TypeChecker) checkNumericOperands(node *BinaryOperationAst, msg string) SymIndex {
	left, right := checker.promoteOperands(node.Left, node.Right, msg)
	node.Left, node.Right = left, right
	if left.TypeOf() == RealType || right.TypeOf() == RealType {
		return RealType
	}
	return IntegerType
}

// promoteOperands checks both operands are numeric and casts the integer one
// when the other is real. A bad operand is reported and left alone.
func (checker *TypeChecker) promoteOperands(left Expression, right Expression, msg string) (Expression, Expression) {
	leftType := checker.checkExpression(left)
	if !isNumeric(leftType) {
		checker.diag.TypeError(left.Pos(), "%s", msg)
	}
	rightType := checker.checkExpression(right)
	if !isNumeric(rightType) {
		checker.diag.TypeError(right.Pos(), "%s", msg)
	}
	switch {
	case leftType == IntegerType && rightType == RealType:
		left = NewCastAst(left)
	case leftType == RealType && rightType == IntegerType:
		right = NewCastAst(right)
	}
	return left, right
}
