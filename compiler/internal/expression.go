package internal

import (
	"math"
	"strconv"
)

// OpAst is an infix operator met while reading an expression, before the tree
// is built.
type OpAst struct {
	Name     string
	priority int
	relation bool
	binary   BinaryOp
	rel      RelationOp
	pos      Position
}

var opAstsByToken = map[TokenType]OpAst{
	EqualTP:    {Name: "=", priority: 1, relation: true, rel: EqualOp},
	NotEqualTP: {Name: "<>", priority: 1, relation: true, rel: NotEqualOp},
	LessTP:     {Name: "<", priority: 1, relation: true, rel: LessOp},
	GreaterTP:  {Name: ">", priority: 1, relation: true, rel: GreaterOp},
	AddTP:      {Name: "+", priority: 2, binary: AddOp},
	MinusTP:    {Name: "-", priority: 2, binary: SubOp},
	OrTP:       {Name: "OR", priority: 2, binary: OrOp},
	MultiplyTP: {Name: "*", priority: 3, binary: MulOp},
	DivideTP:   {Name: "/", priority: 3, binary: DivideOp},
	IDivTP:     {Name: "DIV", priority: 3, binary: IDivOp},
	ModTP:      {Name: "MOD", priority: 3, binary: ModOp},
	AndTP:      {Name: "AND", priority: 3, binary: AndOp},
}

func buildExpressionsTree(ops []*OpAst, exprTerms []Expression) Expression {
	if len(ops) == 0 {
		return exprTerms[0]
	}
	ret, _ := buildExpressionsTree0(ops, exprTerms, 0, 0)
	return ret
}

// buildExpressionsTree0 is precedence climbing over the flat term/operator
// lists: operators of equal priority group to the left.
func buildExpressionsTree0(ops []*OpAst, exprTerms []Expression, loc int, minPriority int) (Expression, int) {
	lhs := exprTerms[loc]
	i := loc
	for i < len(ops) && ops[i].priority >= minPriority {
		op := ops[i]
		rhs := exprTerms[i+1]
		j := i + 1
		for j < len(ops) && ops[j].priority > op.priority {
			rhs, j = buildExpressionsTree0(ops, exprTerms, j, ops[j].priority)
		}
		lhs = makeNewExpression(lhs, rhs, op)
		exprTerms[j] = lhs
		i = j
	}
	return lhs, i
}

func makeNewExpression(leftExpr Expression, rightExpr Expression, op *OpAst) Expression {
	if op.relation {
		return &BinaryRelationAst{exprBase: newExprBase(op.pos), Op: op.rel, Left: leftExpr, Right: rightExpr}
	}
	return &BinaryOperationAst{exprBase: newExprBase(op.pos), Op: op.binary, Left: leftExpr, Right: rightExpr}
}

// parseExpressions reads a comma separated, possibly empty, argument list up
// to the closing parenthesis, which it leaves in place.
func (parser *Parser) parseExpressions() (exprs []Expression, err error) {
	if _, match := parser.expectToken(RightParentThesesTP, false); match {
		return nil, nil
	}
	for parser.hasRemainTokens() {
		expression, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expression)
		_, match := parser.expectToken(CommaTP, false)
		if !match {
			break
		}
		parser.stepForward()
	}
	return
}

func (parser *Parser) parseExpression() (Expression, error) {
	leftExprTerm, err := parser.parseExpressionTerm()
	if err != nil {
		return nil, err
	}
	var ops []*OpAst
	exprTerms := []Expression{leftExprTerm}
	for parser.matchOp() {
		op, err := parser.parseOpAst()
		if err != nil {
			return nil, err
		}
		exprTerm, err := parser.parseExpressionTerm()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		exprTerms = append(exprTerms, exprTerm)
	}
	return buildExpressionsTree(ops, exprTerms), nil
}

func (parser *Parser) parseExpressionTerm() (expr Expression, err error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IntegerTP, RealTP:
		expr, err = parser.parseConstantExpressionTerm()
	case IdentifierTP:
		expr, err = parser.parseIdentifierExpressionTerm()
	case LeftParentThesesTP:
		expr, err = parser.parseSubExpressionTerm()
	case MinusTP, AddTP, NotTP:
		expr, err = parser.parseUnaryExpressionTerm()
	default:
		err = parser.makeError(true)
	}
	return
}

func (parser *Parser) parseConstantExpressionTerm() (Expression, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	parser.stepForward()
	switch token.tp {
	case IntegerTP:
		return NewIntegerAst(token.Pos(), parser.integerValue(token)), nil
	case RealTP:
		return NewRealAst(token.Pos(), parser.realValue(token)), nil
	default:
		return nil, parser.makeError(false)
	}
}

func (parser *Parser) integerValue(token *Token) int {
	value, err := strconv.ParseInt(token.content, 10, 32)
	if err != nil {
		parser.diag.Error(token.Pos(), "Integer constant %s out of range", token.content)
		return 0
	}
	return int(value)
}

func (parser *Parser) realValue(token *Token) float32 {
	value, err := strconv.ParseFloat(token.content, 32)
	if err != nil || math.IsInf(value, 0) {
		parser.diag.Error(token.Pos(), "Real constant %s out of range", token.content)
		return 0
	}
	return float32(value)
}

// parseIdentifierExpressionTerm reads name, name[expression] or
// name(expressions). A function named without arguments is a call.
func (parser *Parser) parseIdentifierExpressionTerm() (Expression, error) {
	token, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	sym := parser.lookupIdentifier(token)
	next, _ := parser.peekToken()
	switch {
	case next != nil && next.tp == LeftSquareBracketTP:
		index, err := parser.parseArrayIndexExpression()
		if err != nil {
			return nil, err
		}
		if sym == NullSym {
			return NewIntegerAst(token.Pos(), 0), nil
		}
		if parser.table.Tag(sym) != ArrayTag {
			parser.diag.Error(token.Pos(), "%s is not an array", parser.table.Name(sym))
			return NewIntegerAst(token.Pos(), 0), nil
		}
		return &IndexedAst{exprBase: newExprBase(token.Pos()), ID: NewIdentifier(token.Pos(), sym), Index: index}, nil
	case next != nil && next.tp == LeftParentThesesTP:
		args, err := parser.parseCallArguments()
		if err != nil {
			return nil, err
		}
		if sym == NullSym {
			return NewIntegerAst(token.Pos(), 0), nil
		}
		return &FunctionCallAst{exprBase: newExprBase(token.Pos()), ID: NewIdentifier(token.Pos(), sym), Args: args}, nil
	}
	if sym == NullSym {
		return NewIntegerAst(token.Pos(), 0), nil
	}
	switch parser.table.Tag(sym) {
	case FunctionTag:
		return &FunctionCallAst{exprBase: newExprBase(token.Pos()), ID: NewIdentifier(token.Pos(), sym)}, nil
	case ProcedureTag, NameTypeTag:
		parser.diag.Error(token.Pos(), "%s cannot be used in an expression", parser.table.Name(sym))
		return NewIntegerAst(token.Pos(), 0), nil
	case ArrayTag:
		parser.diag.Error(token.Pos(), "Array %s used without an index", parser.table.Name(sym))
		return NewIntegerAst(token.Pos(), 0), nil
	}
	return NewIdentifier(token.Pos(), sym), nil
}

// [expression]
func (parser *Parser) parseArrayIndexExpression() (Expression, error) {
	_, match := parser.expectToken(LeftSquareBracketTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	index, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightSquareBracketTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	return index, nil
}

// (expressions)
func (parser *Parser) parseCallArguments() ([]Expression, error) {
	_, match := parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	args, err := parser.parseExpressions()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	return args, nil
}

func (parser *Parser) parseSubExpressionTerm() (Expression, error) {
	_, match := parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.makeError(false)
	}
	return expr, nil
}

// A unary operator binds to the term right after it, so -a * b reads as
// (-a) * b. A unary plus is dropped.
func (parser *Parser) parseUnaryExpressionTerm() (Expression, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	parser.stepForward()
	exprTerm, err := parser.parseExpressionTerm()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case MinusTP:
		return &UnaryMinusAst{exprBase: newExprBase(token.Pos()), Expr: exprTerm}, nil
	case NotTP:
		return &NotAst{exprBase: newExprBase(token.Pos()), Expr: exprTerm}, nil
	case AddTP:
		return exprTerm, nil
	default:
		return nil, parser.makeError(false)
	}
}

func (parser *Parser) parseOpAst() (*OpAst, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	op, ok := opAstsByToken[token.tp]
	if !ok {
		return nil, parser.makeError(true)
	}
	op.pos = token.Pos()
	parser.stepForward()
	return &op, nil
}

func (parser *Parser) matchOp() bool {
	if !parser.hasRemainTokens() {
		return false
	}
	token, _ := parser.getCurrentToken()
	_, ok := opAstsByToken[token.tp]
	return ok
}
