package internal

import (
	"errors"
	"fmt"

	"github.com/xiaobogaga/diesel/util"
)

// BlockHandler is called for every finished block, innermost first, while the
// scope of the block is still open.
type BlockHandler func(block *BlockAst) error

// Parser reads a diesel program. Declarations go straight into the symbol
// table; every procedure, function and the main program body is handed to
// the BlockHandler as soon as it is read.
type Parser struct {
	currentTokenPos int
	currentTokens   []*Token

	table   *SymbolTable
	diag    *Diagnostics
	onBlock BlockHandler
}

func NewParser(table *SymbolTable, diag *Diagnostics, onBlock BlockHandler) *Parser {
	return &Parser{table: table, diag: diag, onBlock: onBlock}
}

func (parser *Parser) reset() {
	parser.currentTokenPos, parser.currentTokens = 0, nil
}

// Parse reads a whole program.
//
// program name ;
//   constPart varPart subprogramPart
// begin statements end .
func (parser *Parser) Parse(tokens []*Token) error {
	parser.reset()
	parser.currentTokens = tokens
	_, match := parser.expectToken(ProgramTP, true)
	if !match {
		return parser.makeError(true)
	}
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return parser.makeError(true)
	}
	if !parser.expectTokens(SemiColonTP) {
		return parser.makeError(false)
	}
	program := parser.enterSubprogram(nameToken, ProcedureTP)
	parser.table.OpenScope()
	err := parser.parseBlock(nameToken.Pos(), program)
	if err != nil {
		return err
	}
	parser.table.CloseScope()
	if !parser.expectTokens(DotTP) {
		return parser.makeError(false)
	}
	if parser.hasRemainTokens() {
		return parser.makeError(true)
	}
	return nil
}

// parseBlock reads the declarations and the body of env, whose scope must be
// open, then hands the body over.
func (parser *Parser) parseBlock(pos Position, env SymIndex) error {
	err := parser.parseConstPart()
	if err != nil {
		return err
	}
	err = parser.parseVarPart()
	if err != nil {
		return err
	}
	err = parser.parseSubprogramPart()
	if err != nil {
		return err
	}
	body, err := parser.parseCompoundStatement()
	if err != nil {
		return err
	}
	if parser.onBlock == nil {
		return nil
	}
	return parser.onBlock(&BlockAst{Position: pos, Env: env, Body: body})
}

// const name = value ; ...
func (parser *Parser) parseConstPart() error {
	if _, match := parser.expectToken(ConstTP, true); !match {
		return nil
	}
	for {
		nameToken, match := parser.expectToken(IdentifierTP, true)
		if !match {
			break
		}
		if !parser.expectTokens(EqualTP) {
			return parser.makeError(false)
		}
		err := parser.parseConstValue(nameToken)
		if err != nil {
			return err
		}
		if !parser.expectTokens(SemiColonTP) {
			return parser.makeError(false)
		}
	}
	return nil
}

// A constant value is a signed integer or real literal, or the name of
// another constant.
func (parser *Parser) parseConstValue(nameToken *Token) error {
	pool := parser.poolInstall(nameToken)
	negative := false
	token, err := parser.getCurrentToken()
	if err != nil {
		return err
	}
	if token.tp == MinusTP || token.tp == AddTP {
		negative = token.tp == MinusTP
		parser.stepForward()
		if token, err = parser.getCurrentToken(); err != nil {
			return err
		}
	}
	parser.stepForward()
	switch token.tp {
	case IntegerTP:
		value := parser.integerValue(token)
		if negative {
			value = -value
		}
		parser.table.EnterIntConstant(nameToken.Pos(), pool, value)
	case RealTP:
		value := parser.realValue(token)
		if negative {
			value = -value
		}
		parser.table.EnterRealConstant(nameToken.Pos(), pool, value)
	case IdentifierTP:
		sym := parser.lookupIdentifier(token)
		if sym == NullSym {
			return nil
		}
		con, ok := parser.table.Get(sym).(*ConstantSymbol)
		if !ok {
			parser.diag.Error(token.Pos(), "%s is not a constant", parser.table.Name(sym))
			return nil
		}
		if con.Type == IntegerType {
			value := con.IntValue
			if negative {
				value = -value
			}
			parser.table.EnterIntConstant(nameToken.Pos(), pool, value)
		} else {
			value := con.RealValue
			if negative {
				value = -value
			}
			parser.table.EnterRealConstant(nameToken.Pos(), pool, value)
		}
	case StringTP:
		parser.diag.Error(token.Pos(), "String constants are not supported")
	default:
		return parser.makeError(false)
	}
	return nil
}

// var name : type ; name : array [ size ] of type ; ...
func (parser *Parser) parseVarPart() error {
	if _, match := parser.expectToken(VarTP, true); !match {
		return nil
	}
	for {
		nameToken, match := parser.expectToken(IdentifierTP, true)
		if !match {
			break
		}
		if !parser.expectTokens(ColonTP) {
			return parser.makeError(false)
		}
		pool := parser.poolInstall(nameToken)
		if _, isArray := parser.expectToken(ArrayTP, true); isArray {
			cardinality, err := parser.parseArraySize()
			if err != nil {
				return err
			}
			if !parser.expectTokens(OfTP) {
				return parser.makeError(false)
			}
			typ, err := parser.parseTypeID()
			if err != nil {
				return err
			}
			parser.table.EnterArray(nameToken.Pos(), pool, typ, cardinality)
		} else {
			typ, err := parser.parseTypeID()
			if err != nil {
				return err
			}
			parser.table.EnterVariable(nameToken.Pos(), pool, typ)
		}
		if !parser.expectTokens(SemiColonTP) {
			return parser.makeError(false)
		}
	}
	return nil
}

// [ size ] where size is a positive integer literal or integer constant.
func (parser *Parser) parseArraySize() (int, error) {
	if !parser.expectTokens(LeftSquareBracketTP) {
		return 0, parser.makeError(false)
	}
	token, err := parser.getCurrentToken()
	if err != nil {
		return 0, err
	}
	parser.stepForward()
	cardinality := IllegalArrayCard
	switch token.tp {
	case IntegerTP:
		cardinality = parser.integerValue(token)
	case IdentifierTP:
		sym := parser.lookupIdentifier(token)
		if con, ok := parser.table.Get(sym).(*ConstantSymbol); ok && con.Type == IntegerType {
			cardinality = con.IntValue
		} else if sym != NullSym {
			parser.diag.Error(token.Pos(), "Array size must be an integer constant")
		}
	case RealTP:
		parser.diag.Error(token.Pos(), "Array size must be an integer constant")
	default:
		return 0, parser.makeError(false)
	}
	if cardinality != IllegalArrayCard && cardinality < 1 {
		parser.diag.Error(token.Pos(), "Illegal array size %d", cardinality)
		cardinality = IllegalArrayCard
	}
	if !parser.expectTokens(RightSquareBracketTP) {
		return 0, parser.makeError(false)
	}
	return cardinality, nil
}

// parseTypeID reads the name of a type. A name that is not a type is
// reported and read as integer.
func (parser *Parser) parseTypeID() (SymIndex, error) {
	token, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return NullSym, parser.makeError(true)
	}
	sym := parser.lookupIdentifier(token)
	if sym == NullSym {
		return IntegerType, nil
	}
	if sym == VoidType || parser.table.Tag(sym) != NameTypeTag {
		parser.diag.Error(token.Pos(), "%s is not a type", parser.table.Name(sym))
		return IntegerType, nil
	}
	return sym, nil
}

func (parser *Parser) parseSubprogramPart() error {
	for parser.hasRemainTokens() {
		token, _ := parser.getCurrentToken()
		if token.tp != ProcedureTP && token.tp != FunctionTP {
			return nil
		}
		err := parser.parseSubprogramDeclaration()
		if err != nil {
			return err
		}
	}
	return nil
}

// procedure name [( params )] ; block ;
// function name [( params )] : type ; block ;
func (parser *Parser) parseSubprogramDeclaration() error {
	kindToken, _ := parser.getCurrentToken()
	parser.stepForward()
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return parser.makeError(true)
	}
	sym := parser.enterSubprogram(nameToken, kindToken.tp)
	parser.table.OpenScope()
	err := parser.parseParameterList()
	if err != nil {
		return err
	}
	if kindToken.tp == FunctionTP {
		if !parser.expectTokens(ColonTP) {
			return parser.makeError(false)
		}
		returnType, err := parser.parseTypeID()
		if err != nil {
			return err
		}
		parser.table.SetType(sym, returnType)
	}
	if !parser.expectTokens(SemiColonTP) {
		return parser.makeError(false)
	}
	err = parser.parseBlock(nameToken.Pos(), sym)
	if err != nil {
		return err
	}
	parser.table.CloseScope()
	if !parser.expectTokens(SemiColonTP) {
		return parser.makeError(false)
	}
	return nil
}

// enterSubprogram installs a procedure or function. When the name is already
// taken the redeclaration is reported and the block is compiled under a name
// nobody can refer to, so its locals still get an environment of their own.
func (parser *Parser) enterSubprogram(nameToken *Token, kind TokenType) SymIndex {
	enter := parser.table.EnterProcedure
	if kind == FunctionTP {
		enter = parser.table.EnterFunction
	}
	before := parser.table.Len()
	sym := enter(nameToken.Pos(), parser.poolInstall(nameToken))
	if parser.table.Len() == before {
		hidden := fmt.Sprintf("%s'%d", util.Capitalize(nameToken.content), before)
		sym = enter(nameToken.Pos(), parser.table.PoolInstall(hidden))
	}
	parser.table.SetType(sym, VoidType)
	return sym
}

// ( name : type ; name : type ... )
func (parser *Parser) parseParameterList() error {
	if _, match := parser.expectToken(LeftParentThesesTP, true); !match {
		return nil
	}
	for {
		nameToken, match := parser.expectToken(IdentifierTP, true)
		if !match {
			return parser.makeError(true)
		}
		if !parser.expectTokens(ColonTP) {
			return parser.makeError(false)
		}
		typ, err := parser.parseTypeID()
		if err != nil {
			return err
		}
		parser.table.EnterParameter(nameToken.Pos(), parser.poolInstall(nameToken), typ)
		if _, match := parser.expectToken(SemiColonTP, true); !match {
			break
		}
	}
	if !parser.expectTokens(RightParentThesesTP) {
		return parser.makeError(false)
	}
	return nil
}

// begin statements end
func (parser *Parser) parseCompoundStatement() (*StmtListAst, error) {
	beginToken, match := parser.expectToken(BeginTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	list, err := parser.parseStatements(beginToken.Pos())
	if err != nil {
		return nil, err
	}
	if !parser.expectTokens(EndTP) {
		return nil, parser.makeError(true)
	}
	return list, nil
}

// parseStatements reads statements separated by ';'. Empty statements are
// allowed and dropped.
func (parser *Parser) parseStatements(pos Position) (*StmtListAst, error) {
	list := &StmtListAst{Position: pos}
	for {
		stm, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		if stm != nil {
			list.Statements = append(list.Statements, stm)
		}
		if _, match := parser.expectToken(SemiColonTP, true); !match {
			return list, nil
		}
	}
}

func (parser *Parser) parseStatement() (Statement, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IdentifierTP:
		return parser.parseAssignOrCallStatement()
	case IfTP:
		return parser.parseIfStatement()
	case WhileTP:
		return parser.parseWhileStatement()
	case ReturnTP:
		return parser.parseReturnStatement()
	case SemiColonTP, EndTP, ElsifTP, ElseTP:
		return nil, nil
	default:
		return nil, parser.makeError(true)
	}
}

// name := expression | name[expression] := expression | name [( expressions )]
//
// A statement naming something undeclared, or assigning to something that
// is not a variable, is reported and dropped.
func (parser *Parser) parseAssignOrCallStatement() (Statement, error) {
	nameToken, _ := parser.expectToken(IdentifierTP, true)
	sym := parser.lookupIdentifier(nameToken)
	next, _ := parser.peekToken()
	if next == nil || (next.tp != AssignTP && next.tp != LeftSquareBracketTP) {
		var args []Expression
		var err error
		if next != nil && next.tp == LeftParentThesesTP {
			args, err = parser.parseCallArguments()
			if err != nil {
				return nil, err
			}
		}
		if sym == NullSym {
			return nil, nil
		}
		return &ProcedureCallAst{stmtBase: stmtBase{nameToken.Pos()}, ID: NewIdentifier(nameToken.Pos(), sym), Args: args}, nil
	}
	var lhs LValue
	var index Expression
	var err error
	if next.tp == LeftSquareBracketTP {
		index, err = parser.parseArrayIndexExpression()
		if err != nil {
			return nil, err
		}
	}
	assignToken, match := parser.expectToken(AssignTP, true)
	if !match {
		return nil, parser.makeError(true)
	}
	rhs, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	if sym == NullSym {
		return nil, nil
	}
	tag := parser.table.Tag(sym)
	switch {
	case index != nil && tag == ArrayTag:
		lhs = &IndexedAst{exprBase: newExprBase(nameToken.Pos()), ID: NewIdentifier(nameToken.Pos(), sym), Index: index}
	case index == nil && (tag == VariableTag || tag == ParameterTag):
		lhs = NewIdentifier(nameToken.Pos(), sym)
	case index != nil:
		parser.diag.Error(nameToken.Pos(), "%s is not an array", parser.table.Name(sym))
		return nil, nil
	default:
		parser.diag.Error(nameToken.Pos(), "Left side of assignment must be a variable")
		return nil, nil
	}
	return &AssignAst{stmtBase: stmtBase{assignToken.Pos()}, Lhs: lhs, Rhs: rhs}, nil
}

// if expression then statements {elsif expression then statements} [else statements] end
func (parser *Parser) parseIfStatement() (Statement, error) {
	ifToken, _ := parser.expectToken(IfTP, true)
	condition, body, err := parser.parseConditionalBranch(ThenTP)
	if err != nil {
		return nil, err
	}
	stm := &IfAst{stmtBase: stmtBase{ifToken.Pos()}, Condition: condition, Body: body}
	for {
		elsifToken, match := parser.expectToken(ElsifTP, true)
		if !match {
			break
		}
		condition, body, err := parser.parseConditionalBranch(ThenTP)
		if err != nil {
			return nil, err
		}
		stm.Elsifs = append(stm.Elsifs, &ElsifAst{Position: elsifToken.Pos(), Condition: condition, Body: body})
	}
	if elseToken, match := parser.expectToken(ElseTP, true); match {
		stm.ElseBody, err = parser.parseStatements(elseToken.Pos())
		if err != nil {
			return nil, err
		}
	}
	if !parser.expectTokens(EndTP) {
		return nil, parser.makeError(true)
	}
	return stm, nil
}

// parseConditionalBranch reads "expression keyword statements".
func (parser *Parser) parseConditionalBranch(keyword TokenType) (Expression, *StmtListAst, error) {
	condition, err := parser.parseExpression()
	if err != nil {
		return nil, nil, err
	}
	keywordToken, match := parser.expectToken(keyword, true)
	if !match {
		return nil, nil, parser.makeError(true)
	}
	body, err := parser.parseStatements(keywordToken.Pos())
	if err != nil {
		return nil, nil, err
	}
	return condition, body, nil
}

// while expression do statements end
func (parser *Parser) parseWhileStatement() (Statement, error) {
	whileToken, _ := parser.expectToken(WhileTP, true)
	condition, body, err := parser.parseConditionalBranch(DoTP)
	if err != nil {
		return nil, err
	}
	if !parser.expectTokens(EndTP) {
		return nil, parser.makeError(true)
	}
	return &WhileAst{stmtBase: stmtBase{whileToken.Pos()}, Condition: condition, Body: body}, nil
}

// return [expression]
func (parser *Parser) parseReturnStatement() (Statement, error) {
	returnToken, _ := parser.expectToken(ReturnTP, true)
	stm := &ReturnAst{stmtBase: stmtBase{returnToken.Pos()}}
	next, _ := parser.peekToken()
	if next == nil || next.tp == SemiColonTP || next.tp == EndTP || next.tp == ElsifTP || next.tp == ElseTP {
		return stm, nil
	}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	stm.Value = value
	return stm, nil
}

func (parser *Parser) poolInstall(token *Token) PoolIndex {
	return parser.table.PoolInstall(util.Capitalize(token.content))
}

// lookupIdentifier resolves a name, reporting it when undeclared.
func (parser *Parser) lookupIdentifier(token *Token) SymIndex {
	sym := parser.table.Lookup(parser.poolInstall(token))
	if sym == NullSym {
		parser.diag.Error(token.Pos(), "Undeclared identifier: %s", util.Capitalize(token.content))
	}
	return sym
}

func (parser *Parser) getCurrentToken() (*Token, error) {
	if !parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return parser.currentTokens[parser.currentTokenPos], nil
}

// peekToken returns the current token without an error when there is none.
func (parser *Parser) peekToken() (*Token, bool) {
	if !parser.hasRemainTokens() {
		return nil, false
	}
	return parser.currentTokens[parser.currentTokenPos], true
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

func (parser *Parser) expectTokens(expectedTokenTPs ...TokenType) bool {
	for _, tokenType := range expectedTokenTPs {
		_, ok := parser.expectToken(tokenType, true)
		if !ok {
			return false
		}
	}
	return true
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	if parser.currentTokenPos >= len(parser.currentTokens) || parser.currentTokens[parser.currentTokenPos].tp !=
		expectedTokenTp {
		return nil, false
	}
	token := parser.currentTokens[parser.currentTokenPos]
	if walk {
		parser.currentTokenPos++
	}
	return token, true
}

func (parser *Parser) makeError(useCurrentPos bool) error {
	currentPos := parser.currentTokenPos
	if !useCurrentPos {
		currentPos--
	}
	if currentPos < 0 || currentPos >= len(parser.currentTokens) {
		return errors.New("unexpected token ends")
	}
	currentToken := parser.currentTokens[currentPos]
	return errors.New(fmt.Sprintf("syntax error near %s at line %d", currentToken.content,
		currentToken.line))
}
