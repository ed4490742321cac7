package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xiaobogaga/diesel/util"
)

// A Tokenizer for diesel.
//
// Diesel has those elements:
// * KeyWord: program, const, var, array, of, procedure, function, begin, end, if, then, elsif,
//            else, while, do, return, and, or, not, div, mod. Keywords are case insensitive.
// * Symbol: . ; = : [ ] ( ) , < > + - * / := <>
// * Constant: integer (666), real (3.14159, 1.5E3), string ('diesel').
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: { ... }, may span lines.

type TokenType int

const (
	ProgramTP            TokenType = iota // program
	ConstTP                               // const
	VarTP                                 // var
	ArrayTP                               // array
	OfTP                                  // of
	ProcedureTP                           // procedure
	FunctionTP                            // function
	BeginTP                               // begin
	EndTP                                 // end
	IfTP                                  // if
	ThenTP                                // then
	ElsifTP                               // elsif
	ElseTP                                // else
	WhileTP                               // while
	DoTP                                  // do
	ReturnTP                              // return
	AndTP                                 // and
	OrTP                                  // or
	NotTP                                 // not
	IDivTP                                // div
	ModTP                                 // mod
	DotTP                                 // .
	SemiColonTP                           // ;
	EqualTP                               // =
	ColonTP                               // :
	LeftSquareBracketTP                   // [
	RightSquareBracketTP                  // ]
	LeftParentThesesTP                    // (
	RightParentThesesTP                   // )
	CommaTP                               // ,
	LessTP                                // <
	GreaterTP                             // >
	AddTP                                 // +
	MinusTP                               // -
	MultiplyTP                            // *
	DivideTP                              // /
	AssignTP                              // :=
	NotEqualTP                            // <>
	IntegerTP                             // 666
	RealTP                                // 3.14159
	StringTP                              // 'diesel'
	IdentifierTP                          // foo
)

// keyWordTokenTPMap is the mapping from lower case identifier to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"program":   ProgramTP,
	"const":     ConstTP,
	"var":       VarTP,
	"array":     ArrayTP,
	"of":        OfTP,
	"procedure": ProcedureTP,
	"function":  FunctionTP,
	"begin":     BeginTP,
	"end":       EndTP,
	"if":        IfTP,
	"then":      ThenTP,
	"elsif":     ElsifTP,
	"else":      ElseTP,
	"while":     WhileTP,
	"do":        DoTP,
	"return":    ReturnTP,
	"and":       AndTP,
	"or":        OrTP,
	"not":       NotTP,
	"div":       IDivTP,
	"mod":       ModTP,
}

// simpleSymbolTokenTPMap is the mapping from single character symbols to the corresponding TokenTP.
// ':' and '<' may start a two character symbol and are handled apart.
var simpleSymbolTokenTPMap = map[string]TokenType{
	".": DotTP,
	";": SemiColonTP,
	"=": EqualTP,
	"[": LeftSquareBracketTP,
	"]": RightSquareBracketTP,
	"(": LeftParentThesesTP,
	")": RightParentThesesTP,
	",": CommaTP,
	">": GreaterTP,
	"+": AddTP,
	"-": MinusTP,
	"*": MultiplyTP,
	"/": DivideTP,
}

type Token struct {
	content  string
	line     int
	startPos int
	endPos   int
	tp       TokenType
}

// Pos returns the token position with a 1-based column.
func (t *Token) Pos() Position {
	return Position{Line: t.line, Column: t.startPos + 1}
}

type Tokenizer struct {
	currentPos  int
	currentLine int
	tokens      []*Token
}

// getNextToken returns the next token from line, or nil when the line has no more tokens.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	tokenizer.trimSpace(line)
	if !tokenizer.hasRemainCharacters(line) {
		return nil, nil
	}
	switch c := line[tokenizer.currentPos]; {
	case c == ':' || c == '<':
		return tokenizer.tokenTwoCharacterSymbol(line)
	case c == '\'':
		return tokenizer.tokenString(line)
	case util.IsNumber(c):
		return tokenizer.tokenNumber(line)
	case util.IsLetterOrUnderscore(c):
		return tokenizer.toKeywordOrIdentifier(line)
	default:
		if _, ok := simpleSymbolTokenTPMap[string(c)]; ok {
			return tokenizer.tokenSimpleSymbol(line)
		}
		return nil, tokenizer.makeError(string(c), tokenizer.currentLine, "illegal character")
	}
}

// trimSpace steps forward through line and skips all continuous space.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) && unicode.IsSpace(rune(line[tokenizer.currentPos])) {
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) makeToken(content string, tp TokenType, startPos int) *Token {
	return &Token{
		content:  content,
		line:     tokenizer.currentLine,
		tp:       tp,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) (*Token, error) {
	symbol := string(line[tokenizer.currentPos])
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	return tokenizer.makeToken(symbol, simpleSymbolTokenTPMap[symbol], startPos), nil
}

// tokenTwoCharacterSymbol handles ':', ':=', '<' and '<>'.
func (tokenizer *Tokenizer) tokenTwoCharacterSymbol(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	first := line[startPos]
	var second byte
	if startPos+1 < len(line) {
		second = line[startPos+1]
	}
	switch {
	case first == ':' && second == '=':
		tokenizer.currentPos += 2
		return tokenizer.makeToken(":=", AssignTP, startPos), nil
	case first == '<' && second == '>':
		tokenizer.currentPos += 2
		return tokenizer.makeToken("<>", NotEqualTP, startPos), nil
	case first == ':':
		tokenizer.currentPos++
		return tokenizer.makeToken(":", ColonTP, startPos), nil
	default:
		tokenizer.currentPos++
		return tokenizer.makeToken("<", LessTP, startPos), nil
	}
}

func (tokenizer *Tokenizer) tokenString(line []byte) (*Token, error) {
	// Looking forward through line to find a closing quote.
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	for tokenizer.currentPos < len(line) {
		if line[tokenizer.currentPos] == '\'' {
			tokenizer.currentPos++
			token := tokenizer.makeToken(string(line[startPos+1:tokenizer.currentPos-1]), StringTP, startPos)
			return token, nil
		}
		if line[tokenizer.currentPos] == '\n' {
			break
		}
		tokenizer.currentPos++
	}
	return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "incorrect string format")
}

// tokenNumber reads an integer, or a real when the digits are followed by a
// fraction. A dot not followed by a digit ends the number.
func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.skipDigits(line)
	tp := IntegerTP
	if tokenizer.currentPos+1 < len(line) && line[tokenizer.currentPos] == '.' && util.IsNumber(line[tokenizer.currentPos+1]) {
		tp = RealTP
		tokenizer.currentPos++
		tokenizer.skipDigits(line)
		if tokenizer.currentPos < len(line) && (line[tokenizer.currentPos] == 'e' || line[tokenizer.currentPos] == 'E') {
			exponentPos := tokenizer.currentPos + 1
			if exponentPos < len(line) && (line[exponentPos] == '+' || line[exponentPos] == '-') {
				exponentPos++
			}
			if exponentPos >= len(line) || !util.IsNumber(line[exponentPos]) {
				return nil, tokenizer.makeError(string(line[startPos:exponentPos]), tokenizer.currentLine, "incorrect real format")
			}
			tokenizer.currentPos = exponentPos
			tokenizer.skipDigits(line)
		}
	}
	if tokenizer.currentPos < len(line) && util.IsLetterOrUnderscore(line[tokenizer.currentPos]) {
		return nil, tokenizer.makeError(string(line[startPos:tokenizer.currentPos+1]), tokenizer.currentLine, "incorrect identifier format")
	}
	return tokenizer.makeToken(string(line[startPos:tokenizer.currentPos]), tp, startPos), nil
}

func (tokenizer *Tokenizer) skipDigits(line []byte) {
	for tokenizer.currentPos < len(line) && util.IsNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier(line []byte) (*Token, error) {
	// Look forward to find a continuous characters.
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	content := string(line[startPos:tokenizer.currentPos])
	keyWordTP, isKeyWord := keyWordTokenTPMap[strings.ToLower(content)]
	if isKeyWord {
		return tokenizer.makeToken(content, keyWordTP, startPos), nil
	}
	return tokenizer.makeToken(content, IdentifierTP, startPos), nil
}

func (tokenizer *Tokenizer) makeError(near string, line int, msg string) error {
	return errors.New(fmt.Sprintf("Tokenizer: tokenizer error near %s at line %d, msg: %s", near, line, msg))
}

// Tokenize accepts a source `rd` and tokenizes its content according to diesel rules.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 0
	for {
		tokenizer.currentLine++
		tokenizer.currentPos = 0
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		eof := err == io.EOF
		for tokenizer.currentPos < len(line) {
			closed, err := tokenizer.parseLine(line)
			if err != nil {
				return nil, err
			}
			if closed {
				continue
			}
			line, eof, err = tokenizer.lookForwardForClosingComment(bfReader)
			if err != nil {
				return nil, err
			}
		}
		if eof {
			return tokenizer.tokens, nil
		}
	}
}

// parseLine tokenizes the rest of line. It returns false when the line ends
// inside a comment.
func (tokenizer *Tokenizer) parseLine(line []byte) (bool, error) {
	for {
		tokenizer.trimSpace(line)
		if tokenizer.hasRemainCharacters(line) && line[tokenizer.currentPos] == '{' {
			if !tokenizer.skipCommentAtCurrentLine(line) {
				return false, nil
			}
			continue
		}
		token, err := tokenizer.getNextToken(line)
		if err != nil {
			return true, err
		}
		if token == nil {
			return true, nil
		}
		tokenizer.tokens = append(tokenizer.tokens, token)
	}
}

// lookForwardForClosingComment reads lines until the open comment is closed
// and returns the line the comment ends on, positioned after the '}'.
func (tokenizer *Tokenizer) lookForwardForClosingComment(bfReader *bufio.Reader) (line []byte, eof bool, err error) {
	startLine := tokenizer.currentLine
	for {
		line, err = bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, false, err
		}
		eof = err == io.EOF
		if eof && len(line) == 0 {
			return nil, eof, tokenizer.makeError("{", startLine, "unterminated comment")
		}
		tokenizer.currentLine++
		tokenizer.currentPos = 0
		if tokenizer.lookForwardForMatchingCommentAtCurrentLine(line) {
			return line, eof, nil
		}
		if eof {
			return nil, eof, tokenizer.makeError("{", startLine, "unterminated comment")
		}
	}
}

// skipCommentAtCurrentLine skips a comment starting at the current position.
func (tokenizer *Tokenizer) skipCommentAtCurrentLine(line []byte) bool {
	tokenizer.currentPos++
	return tokenizer.lookForwardForMatchingCommentAtCurrentLine(line)
}

func (tokenizer *Tokenizer) lookForwardForMatchingCommentAtCurrentLine(line []byte) bool {
	for tokenizer.currentPos < len(line) {
		if line[tokenizer.currentPos] == '}' {
			tokenizer.currentPos++
			return true
		}
		tokenizer.currentPos++
	}
	return false
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.currentPos, tokenizer.currentLine = 0, 0
	tokenizer.tokens = nil
}
