package internal

// Optimizer folds constant binary operations and relations of a type checked
// block. Nodes are replaced in place.
type Optimizer struct {
	table *SymbolTable
}

func NewOptimizer(table *SymbolTable) *Optimizer {
	return &Optimizer{table: table}
}

func (optimizer *Optimizer) OptimizeBlock(block *BlockAst) {
	optimizer.optimizeStatements(block.Body)
}

func (optimizer *Optimizer) optimizeStatements(list *StmtListAst) {
	if list == nil {
		return
	}
	for _, stm := range list.Statements {
		optimizer.optimizeStatement(stm)
	}
}

func (optimizer *Optimizer) optimizeStatement(stm Statement) {
	switch s := stm.(type) {
	case *AssignAst:
		if indexed, ok := s.Lhs.(*IndexedAst); ok {
			indexed.Index = optimizer.fold(indexed.Index)
		}
		s.Rhs = optimizer.fold(s.Rhs)
	case *ProcedureCallAst:
		optimizer.foldAll(s.Args)
	case *WhileAst:
		s.Condition = optimizer.fold(s.Condition)
		optimizer.optimizeStatements(s.Body)
	case *IfAst:
		s.Condition = optimizer.fold(s.Condition)
		optimizer.optimizeStatements(s.Body)
		for _, elsif := range s.Elsifs {
			elsif.Condition = optimizer.fold(elsif.Condition)
			optimizer.optimizeStatements(elsif.Body)
		}
		optimizer.optimizeStatements(s.ElseBody)
	case *ReturnAst:
		if s.Value != nil {
			s.Value = optimizer.fold(s.Value)
		}
	default:
		fatal("trying to optimize statement %T", stm)
	}
}

func (optimizer *Optimizer) foldAll(exprs []Expression) {
	for i, expr := range exprs {
		exprs[i] = optimizer.fold(expr)
	}
}

// fold returns the folded form of expr, which the caller stores in place of
// the old node.
func (optimizer *Optimizer) fold(expr Expression) Expression {
	switch e := expr.(type) {
	case *IdentifierAst, *IntegerAst, *RealAst:
		return expr
	case *IndexedAst:
		e.Index = optimizer.fold(e.Index)
		return e
	case *FunctionCallAst:
		optimizer.foldAll(e.Args)
		return e
	case *UnaryMinusAst:
		e.Expr = optimizer.fold(e.Expr)
		return e
	case *NotAst:
		e.Expr = optimizer.fold(e.Expr)
		return e
	case *CastAst:
		e.Expr = optimizer.constantOperand(optimizer.fold(e.Expr))
		if literal, ok := e.Expr.(*IntegerAst); ok {
			return NewRealAst(e.Pos(), float32(literal.Value))
		}
		return e
	case *BinaryOperationAst:
		e.Left = optimizer.constantOperand(optimizer.fold(e.Left))
		e.Right = optimizer.constantOperand(optimizer.fold(e.Right))
		if folded := foldBinaryOperation(e); folded != nil {
			return folded
		}
		return e
	case *BinaryRelationAst:
		e.Left = optimizer.constantOperand(optimizer.fold(e.Left))
		e.Right = optimizer.constantOperand(optimizer.fold(e.Right))
		if folded := foldBinaryRelation(e); folded != nil {
			return folded
		}
		return e
	default:
		fatal("trying to optimize expression %T", expr)
		return nil
	}
}

// constantOperand replaces a reference to a declared constant by its value.
func (optimizer *Optimizer) constantOperand(expr Expression) Expression {
	id, ok := expr.(*IdentifierAst)
	if !ok {
		return expr
	}
	con, ok := optimizer.table.Get(id.Sym).(*ConstantSymbol)
	if !ok {
		return expr
	}
	if con.Type == IntegerType {
		return NewIntegerAst(id.Pos(), con.IntValue)
	}
	return NewRealAst(id.Pos(), con.RealValue)
}

// foldBinaryOperation evaluates node when both operands are literals of the
// same kind, or returns nil. Integer results wrap at 32 bits like on the
// target. Division by a zero literal is left for run time.
func foldBinaryOperation(node *BinaryOperationAst) Expression {
	pos := node.Pos()
	if left, right, ok := integerOperands(node.Left, node.Right); ok {
		var value int
		switch node.Op {
		case AddOp:
			value = left + right
		case SubOp:
			value = left - right
		case MulOp:
			value = left * right
		case IDivOp:
			if right == 0 {
				return nil
			}
			value = left / right
		case ModOp:
			if right == 0 {
				return nil
			}
			value = left % right
		case AndOp:
			value = boolToInt(left != 0 && right != 0)
		case OrOp:
			value = boolToInt(left != 0 || right != 0)
		default:
			return nil
		}
		return NewIntegerAst(pos, int(int32(value)))
	}
	if left, right, ok := realOperands(node.Left, node.Right); ok {
		var value float32
		switch node.Op {
		case AddOp:
			value = left + right
		case SubOp:
			value = left - right
		case MulOp:
			value = left * right
		case DivideOp:
			if right == 0 {
				return nil
			}
			value = left / right
		default:
			return nil
		}
		return NewRealAst(pos, value)
	}
	return nil
}

func foldBinaryRelation(node *BinaryRelationAst) Expression {
	var less, equal bool
	if left, right, ok := integerOperands(node.Left, node.Right); ok {
		less, equal = left < right, left == right
	} else if left, right, ok := realOperands(node.Left, node.Right); ok {
		less, equal = left < right, left == right
	} else {
		return nil
	}
	var value bool
	switch node.Op {
	case EqualOp:
		value = equal
	case NotEqualOp:
		value = !equal
	case LessOp:
		value = less
	case GreaterOp:
		value = !less && !equal
	}
	return NewIntegerAst(node.Pos(), boolToInt(value))
}

func integerOperands(left Expression, right Expression) (int, int, bool) {
	l, ok := left.(*IntegerAst)
	if !ok {
		return 0, 0, false
	}
	r, ok := right.(*IntegerAst)
	if !ok {
		return 0, 0, false
	}
	return l.Value, r.Value, true
}

func realOperands(left Expression, right Expression) (float32, float32, bool) {
	l, ok := left.(*RealAst)
	if !ok {
		return 0, 0, false
	}
	r, ok := right.(*RealAst)
	if !ok {
		return 0, 0, false
	}
	return l.Value, r.Value, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
