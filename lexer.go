package formula

import "strings"

// TokenType identifies the lexical class of a Token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenSemicolon
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenIdentifier
	TokenError
)

// BinaryOp is an infix operator in the expression tree.
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp is a prefix sign or the postfix percent.
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// Token is one lexeme. Pos counts runes, not bytes.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// lexState is what the previous token leaves the lexer expecting.
type lexState int

const (
	expectFormula  lexState = iota // nothing read yet
	expectOperand                  // after '=' or an operator
	expectGroup                    // after '(' or '{'
	expectArgument                 // after ',' or ';'
	expectOperator                 // after a complete operand
	expectName                     // after a name that may open a call
)

func startsOperand(t TokenType) bool {
	switch t {
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange,
		TokenFunction, TokenIdentifier, TokenLeftParen, TokenLeftBrace, TokenUnaryPrefixOp:
		return true
	}
	return false
}

// followsOperand lists what may come after a value. Two values in a row
// are always an error.
func followsOperand(t TokenType) bool {
	switch t {
	case TokenBinaryOp, TokenUnaryPostfixOp, TokenRightParen, TokenRightBrace,
		TokenComma, TokenSemicolon, TokenEOF:
		return true
	}
	return false
}

func (s lexState) accepts(t TokenType) bool {
	switch s {
	case expectFormula:
		return t == TokenEquals || startsOperand(t)
	case expectOperand:
		return startsOperand(t)
	case expectGroup:
		// PI()
		return t == TokenRightParen || startsOperand(t)
	case expectArgument:
		// omitted arguments: IF(A1,,0)
		return t == TokenComma || t == TokenRightParen || startsOperand(t)
	case expectName:
		return t == TokenLeftParen || followsOperand(t)
	}
	return followsOperand(t)
}

func (s lexState) after(t TokenType) lexState {
	switch t {
	case TokenEquals, TokenUnaryPrefixOp, TokenBinaryOp:
		return expectOperand
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange,
		TokenRightParen, TokenRightBrace:
		return expectOperator
	case TokenLeftParen, TokenLeftBrace:
		return expectGroup
	case TokenComma, TokenSemicolon:
		return expectArgument
	case TokenIdentifier, TokenFunction:
		return expectName
	}
	// postfix %
	return s
}

// signIsUnary reports whether a + or - read now is a prefix sign.
func (s lexState) signIsUnary() bool {
	return s != expectOperator && s != expectName
}

var punctuation = map[rune]TokenType{
	'(': TokenLeftParen,
	')': TokenRightParen,
	'{': TokenLeftBrace,
	'}': TokenRightBrace,
	',': TokenComma,
	';': TokenSemicolon,
	':': TokenColon,
	'%': TokenUnaryPostfixOp,
}

// operators is ordered so two-character operators match first.
var operators = []string{"<=", ">=", "<>", "+", "-", "*", "/", "^", "&", "<", ">", "="}

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	input  string
	src    []rune
	pos    int
	state  lexState
	parens int
	braces int
	tokens []Token
}

// NewLexer creates a new lexer for the given formula input. A leading '='
// is optional.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, src: []rune(input)}
}

// Tokenize tokenizes the entire input. The returned slice always ends
// with a TokenEOF on success.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.next()
		if tok.Type == TokenError {
			return nil, l.fail(tok.Pos, tok.Value)
		}
		if tok.Type == TokenEOF {
			break
		}
		if !l.state.accepts(tok.Type) {
			return nil, l.fail(tok.Pos, "unexpected token: "+tok.Value)
		}
		l.tokens = append(l.tokens, tok)
		l.state = l.state.after(tok.Type)
	}

	switch {
	case l.parens > 0:
		return nil, l.fail(l.pos, "unbalanced parentheses: missing closing parenthesis")
	case l.braces > 0:
		return nil, l.fail(l.pos, "unbalanced braces: missing closing brace")
	case !l.state.accepts(TokenEOF):
		return nil, l.fail(l.pos, "unexpected end of formula")
	}
	return append(l.tokens, Token{Type: TokenEOF, Pos: l.pos}), nil
}

func (l *Lexer) fail(pos int, message string) error {
	return &ParseError{Formula: l.input, Pos: pos, Message: message}
}

func (l *Lexer) next() Token {
	l.skip(isSpace)
	if l.pos >= len(l.src) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	from := l.pos
	ch := l.src[l.pos]
	switch {
	case ch == '"':
		return l.scanString()
	case ch == '\'':
		return l.scanQuotedSheet()
	case isDigit(ch) || ch == '.' && isDigit(l.at(1)):
		return l.scanNumber()
	case ch == '#':
		return l.scanErrorLiteral()
	case isLetter(ch) || ch == '_' || ch == '$':
		return l.scanName()
	case strings.ContainsRune("+-*/^&<>=", ch):
		return l.scanOperator()
	}

	l.pos++
	if t, ok := punctuation[ch]; ok {
		return l.scanPunctuation(t, from)
	}
	return l.reject(from, "unexpected character: "+string(ch))
}

func (l *Lexer) at(offset int) rune {
	i := l.pos + offset
	if i < 0 || i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func (l *Lexer) skip(match func(rune) bool) {
	for l.pos < len(l.src) && match(l.src[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) text(from int) string {
	return string(l.src[from:l.pos])
}

func (l *Lexer) emit(t TokenType, from int) Token {
	return Token{Type: t, Value: l.text(from), Pos: from}
}

func (l *Lexer) reject(from int, message string) Token {
	return Token{Type: TokenError, Value: message, Pos: from}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isLetter(ch rune) bool { return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' }

func isSpace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }

// isRefChar covers A1 and $A$1 forms.
func isRefChar(ch rune) bool { return isLetter(ch) || isDigit(ch) || ch == '$' }

// isNameChar also admits dotted function names such as WORKDAY.INTL.
func isNameChar(ch rune) bool { return isRefChar(ch) || ch == '_' || ch == '.' }

func isCellText(s string) bool {
	_, _, ok := parseCellToken(s)
	return ok
}

// scanPunctuation tracks nesting for a single-character token that has
// already been consumed.
func (l *Lexer) scanPunctuation(t TokenType, from int) Token {
	switch t {
	case TokenLeftParen:
		l.parens++
	case TokenRightParen:
		if l.parens--; l.parens < 0 {
			return l.reject(from, "unbalanced parentheses: too many closing parentheses")
		}
	case TokenLeftBrace:
		if l.braces > 0 {
			return l.reject(from, "nested array constants are not supported")
		}
		l.braces++
	case TokenRightBrace:
		if l.braces--; l.braces < 0 {
			return l.reject(from, "unexpected closing brace")
		}
	case TokenSemicolon:
		if l.braces == 0 {
			return l.reject(from, "unexpected ';' outside array constant")
		}
	}
	return l.emit(t, from)
}

func (l *Lexer) scanOperator() Token {
	from := l.pos
	op := ""
	for _, candidate := range operators {
		if l.lookingAt(candidate) {
			op = candidate
			break
		}
	}
	l.pos += len(op)

	switch {
	case op == "=" && l.state == expectFormula:
		return l.emit(TokenEquals, from)
	case (op == "+" || op == "-") && l.state.signIsUnary():
		return l.emit(TokenUnaryPrefixOp, from)
	}
	return l.emit(TokenBinaryOp, from)
}

// lookingAt reports whether the ASCII text s starts at the current position.
func (l *Lexer) lookingAt(s string) bool {
	for i := 0; i < len(s); i++ {
		if l.at(i) != rune(s[i]) {
			return false
		}
	}
	return true
}

// scanNumber reads digits, an optional fraction and an optional exponent.
// A dangling "e" is left for the next token.
func (l *Lexer) scanNumber() Token {
	from := l.pos
	l.skip(isDigit)
	if l.at(0) == '.' && isDigit(l.at(1)) {
		l.pos++
		l.skip(isDigit)
	}
	if e := l.at(0); e == 'e' || e == 'E' {
		mark := l.pos
		l.pos++
		if sign := l.at(0); sign == '+' || sign == '-' {
			l.pos++
		}
		if isDigit(l.at(0)) {
			l.skip(isDigit)
		} else {
			l.pos = mark
		}
	}
	return l.emit(TokenNumber, from)
}

// scanString reads a double-quoted literal where "" is an embedded quote.
func (l *Lexer) scanString() Token {
	from := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		l.pos++
		if ch != '"' {
			b.WriteRune(ch)
			continue
		}
		if l.at(0) != '"' {
			return Token{Type: TokenString, Value: b.String(), Pos: from}
		}
		b.WriteRune('"')
		l.pos++
	}
	return l.reject(from, "unclosed string literal")
}

// scanErrorLiteral takes the longest known literal such as #N/A or #DIV/0!.
func (l *Lexer) scanErrorLiteral() Token {
	from := l.pos
	rest := strings.ToUpper(string(l.src[l.pos:]))
	match := ""
	for literal := range errorCodeByLiteral {
		if len(literal) > len(match) && strings.HasPrefix(rest, literal) {
			match = literal
		}
	}
	if match == "" {
		l.pos++
		return l.reject(from, "unknown error literal")
	}
	l.pos += len(match)
	return Token{Type: TokenErrorLiteral, Value: match, Pos: from}
}

// scanName reads a word and decides what it is from the word itself and
// the character after it.
func (l *Lexer) scanName() Token {
	from := l.pos
	l.skip(isNameChar)
	word := l.text(from)
	upper := strings.ToUpper(word)

	switch {
	case l.at(0) == '!':
		return l.scanSheetRef(from)
	case l.at(0) == '(':
		// LOG10( is a call even though LOG10 looks like a cell
		if strings.ContainsRune(word, '$') {
			return l.reject(from, "invalid function name: "+word)
		}
		return Token{Type: TokenFunction, Value: upper, Pos: from}
	case upper == "TRUE" || upper == "FALSE":
		return Token{Type: TokenBoolean, Value: upper, Pos: from}
	case isCellText(word):
		return l.scanRangeTail(from)
	case strings.ContainsRune(word, '$'):
		return l.reject(from, "invalid cell reference: "+word)
	}
	return l.emit(TokenIdentifier, from)
}

// scanRangeTail extends a cell token that began at from with ":B2" when
// one follows. Anything else after the colon is left unread.
func (l *Lexer) scanRangeTail(from int) Token {
	if l.at(0) == ':' {
		mark := l.pos
		l.pos++
		start := l.pos
		l.skip(isRefChar)
		if isCellText(l.text(start)) {
			return l.emit(TokenRange, from)
		}
		l.pos = mark
	}
	return l.emit(TokenCell, from)
}

// scanSheetRef reads "!A1" or "!A1:B2" after a sheet name.
func (l *Lexer) scanSheetRef(from int) Token {
	l.pos++
	start := l.pos
	l.skip(isRefChar)
	if !isCellText(l.text(start)) {
		return l.reject(from, "invalid cell reference after worksheet")
	}
	return l.scanRangeTail(from)
}

// scanQuotedSheet reads 'My Sheet'!A1. A doubled '' is an escaped quote.
func (l *Lexer) scanQuotedSheet() Token {
	from := l.pos
	l.pos++
	for {
		if l.pos >= len(l.src) {
			return l.reject(from, "unclosed worksheet name")
		}
		ch := l.src[l.pos]
		l.pos++
		if ch != '\'' {
			continue
		}
		if l.at(0) != '\'' {
			break
		}
		l.pos++
	}
	if l.at(0) != '!' {
		return l.reject(from, "expected ! after quoted worksheet name")
	}
	return l.scanSheetRef(from)
}
