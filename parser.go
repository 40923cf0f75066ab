package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ParseError is returned for malformed formula text. It is distinct from
// any run-time error value; hosts must refuse to store such formulas.
type ParseError struct {
	Formula string
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Message)
}

// Expr is an immutable formula expression tree. The set of
// implementations is closed: LiteralExpr, CellRefExpr, RangeRefExpr,
// NameExpr, ArrayExpr, FunctionCallExpr, UnaryOpExpr and BinaryOpExpr.
type Expr interface {
	GetPosition() NodePosition
	ToString() string
	exprNode()
}

// LiteralExpr is a constant: number, string, boolean, error or an
// omitted argument (Empty).
type LiteralExpr struct {
	Value    CellValue
	Position NodePosition
}

func (n *LiteralExpr) exprNode() {}

func (n *LiteralExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *LiteralExpr) ToString() string {
	return literalString(n.Value)
}

func literalString(v CellValue) string {
	switch v.Kind {
	case KindString:
		return "\"" + strings.ReplaceAll(v.Str, "\"", "\"\"") + "\""
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat, KindDateTime:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Err.Code()
	}
	return ""
}

// CellRefExpr references a single cell
type CellRefExpr struct {
	Ref      CellRef
	Position NodePosition
}

func (n *CellRefExpr) exprNode() {}

func (n *CellRefExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefExpr) ToString() string {
	return n.Ref.String()
}

// RangeRefExpr references a rectangular range
type RangeRefExpr struct {
	Ref      RangeRef
	Position NodePosition
}

func (n *RangeRefExpr) exprNode() {}

func (n *RangeRefExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeRefExpr) ToString() string {
	return n.Ref.String()
}

// NameExpr is a bare identifier, resolved by the host as a named range.
type NameExpr struct {
	Name     string
	Position NodePosition
}

func (n *NameExpr) exprNode() {}

func (n *NameExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *NameExpr) ToString() string {
	return n.Name
}

// ArrayExpr is an in-place array constant such as {1,2;3,4}
type ArrayExpr struct {
	Rows     int
	Cols     int
	Values   []CellValue // row-major
	Position NodePosition
}

func (n *ArrayExpr) exprNode() {}

func (n *ArrayExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *ArrayExpr) ToString() string {
	var b strings.Builder
	b.WriteByte('{')
	for r := 0; r < n.Rows; r++ {
		if r > 0 {
			b.WriteByte(';')
		}
		for c := 0; c < n.Cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			v := n.Values[r*n.Cols+c]
			if (v.Kind == KindInt && v.Int < 0) || (v.Kind == KindFloat && v.Num < 0) {
				b.WriteByte('-')
				if v.Kind == KindInt {
					v.Int = -v.Int
				} else {
					v.Num = -v.Num
				}
			}
			b.WriteString(literalString(v))
		}
	}
	b.WriteByte('}')
	return b.String()
}

// FunctionCallExpr represents a function call
type FunctionCallExpr struct {
	Name     string // upper case
	Args     []Expr
	Position NodePosition
}

func (n *FunctionCallExpr) exprNode() {}

func (n *FunctionCallExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallExpr) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// UnaryOpExpr represents a unary operation
type UnaryOpExpr struct {
	Op       UnaryOp
	Operand  Expr
	Position NodePosition
}

func (n *UnaryOpExpr) exprNode() {}

func (n *UnaryOpExpr) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpExpr) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return n.Operand.ToString() + "%"
	}
	return "+" + n.Operand.ToString()
}

// BinaryOpExpr represents a binary operation
type BinaryOpExpr struct {
	Op       BinaryOp
	Left     Expr
	Right    Expr
	Position NodePosition
}

func (n *BinaryOpExpr) exprNode() {}

func (n *BinaryOpExpr) GetPosition() NodePosition {
	return n.Position
}

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (n *BinaryOpExpr) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), binaryOpText[n.Op], n.Right.ToString())
}

// Parser parses tokens into an Expr tree
type Parser struct {
	formula      string
	tokens       []Token
	pos          int
	currentSheet string
}

// Parse tokenizes and parses formula text. References without a sheet
// prefix are bound to currentSheet. The error, when non-nil, is always a
// *ParseError.
func Parse(currentSheet, formula string) (Expr, error) {
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, err
	}
	p := NewParser(formula, tokens, currentSheet)
	return p.Parse()
}

// MustParse is Parse for formulas known to be valid, such as in tests.
func MustParse(currentSheet, formula string) Expr {
	expr, err := Parse(currentSheet, formula)
	if err != nil {
		panic(err)
	}
	return expr
}

func NewParser(formula string, tokens []Token, currentSheet string) *Parser {
	return &Parser{
		formula:      formula,
		tokens:       tokens,
		pos:          0,
		currentSheet: currentSheet,
	}
}

func (p *Parser) errorAt(pos int, format string, args ...any) *ParseError {
	return &ParseError{Formula: p.formula, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// Parse parses the tokens into an Expr
func (p *Parser) Parse() (Expr, error) {
	if len(p.tokens) == 0 {
		return nil, p.errorAt(0, "no tokens to parse")
	}

	// skip the optional equals prefix
	if p.peek().Type == TokenEquals {
		p.pos++
	}

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorAt(tok.Pos, "unexpected token after expression: %s", tok.Value)
	}
	return node, nil
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}

	return left, nil
}

func newBinary(op BinaryOp, left, right Expr) *BinaryOpExpr {
	return &BinaryOpExpr{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (Expr, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenBinaryOp && p.peek().Value == "&" {
		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = newBinary(BinOpConcat, left, right)
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Expr, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenBinaryOp {
		var op BinaryOp
		switch p.peek().Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenBinaryOp {
		var op BinaryOp
		switch p.peek().Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = newBinary(op, left, right)
	}

	return left, nil
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if tok := p.peek(); tok.Type == TokenBinaryOp && tok.Value == "^" {
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return newBinary(BinOpPower, left, right), nil
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()

	if tok.Type == TokenUnaryPrefixOp {
		op := UnaryOpPlus
		if tok.Value == "-" {
			op = UnaryOpMinus
		}

		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}

		return &UnaryOpExpr{
			Op:       op,
			Operand:  operand,
			Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
		}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (Expr, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenUnaryPostfixOp {
		endPos := p.peek().Pos + 1
		p.pos++
		node = &UnaryOpExpr{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: endPos},
		}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	span := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		v, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return nil, p.errorAt(tok.Pos, "invalid number: %s", tok.Value)
		}
		return &LiteralExpr{Value: v, Position: span}, nil

	case TokenString:
		p.pos++
		span.End += 2 // quotes
		return &LiteralExpr{Value: StringValue(tok.Value), Position: span}, nil

	case TokenBoolean:
		p.pos++
		return &LiteralExpr{Value: BoolValue(tok.Value == "TRUE"), Position: span}, nil

	case TokenErrorLiteral:
		p.pos++
		return &LiteralExpr{Value: ErrorValue(errorCodeByLiteral[tok.Value], ""), Position: span}, nil

	case TokenCell:
		p.pos++
		ref, ok := ResolveCell(p.currentSheet, tok.Value)
		if !ok {
			return nil, p.errorAt(tok.Pos, "invalid cell reference: %s", tok.Value)
		}
		return &CellRefExpr{Ref: ref, Position: span}, nil

	case TokenRange:
		p.pos++
		ref, ok := ResolveRange(p.currentSheet, tok.Value)
		if !ok {
			return nil, p.errorAt(tok.Pos, "invalid range reference: %s", tok.Value)
		}
		return &RangeRefExpr{Ref: ref, Position: span}, nil

	case TokenIdentifier:
		p.pos++
		return &NameExpr{Name: tok.Value, Position: span}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftBrace:
		return p.parseArray()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, p.errorAt(p.peek().Pos, "expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, p.errorAt(tok.Pos, "unexpected end of expression")
	}

	return nil, p.errorAt(tok.Pos, "unexpected token: %s", tok.Value)
}

// parseNumberLiteral keeps integral literals as Int
func parseNumberLiteral(text string) (CellValue, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return IntValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return CellValue{}, fmt.Errorf("invalid number %q", text)
	}
	return FloatValue(f), nil
}

// parseFunctionCall parses a function call. Omitted arguments, as in
// IF(A1,,0), become Empty literals.
func (p *Parser) parseFunctionCall() (Expr, error) {
	funcTok := p.peek()
	p.pos++

	if p.peek().Type != TokenLeftParen {
		return nil, p.errorAt(funcTok.Pos, "expected '(' after function name")
	}
	p.pos++

	args := []Expr{}

	// check for empty argument list
	if p.peek().Type == TokenRightParen {
		end := p.peek().Pos + 1
		p.pos++
		return &FunctionCallExpr{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: end},
		}, nil
	}

	for {
		tok := p.peek()
		if tok.Type == TokenComma || tok.Type == TokenRightParen {
			args = append(args, &LiteralExpr{Position: NodePosition{Start: tok.Pos, End: tok.Pos}})
		} else {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}

		tok = p.peek()
		if tok.Type == TokenRightParen {
			p.pos++
			return &FunctionCallExpr{
				Name:     funcTok.Value,
				Args:     args,
				Position: NodePosition{Start: funcTok.Pos, End: tok.Pos + 1},
			}, nil
		}
		if tok.Type != TokenComma {
			return nil, p.errorAt(tok.Pos, "expected ',' or ')' in arguments of %s", funcTok.Value)
		}
		p.pos++
	}
}

// parseArray parses {a,b;c,d}. Elements must be constants.
func (p *Parser) parseArray() (Expr, error) {
	start := p.peek().Pos
	p.pos++ // consume {

	var rows [][]CellValue
	row := []CellValue{}
	for {
		v, err := p.parseArrayElement()
		if err != nil {
			return nil, err
		}
		row = append(row, v)

		tok := p.peek()
		p.pos++
		switch tok.Type {
		case TokenComma:
			continue
		case TokenSemicolon:
			rows = append(rows, row)
			row = []CellValue{}
			continue
		case TokenRightBrace:
			rows = append(rows, row)
			cols := len(rows[0])
			values := make([]CellValue, 0, len(rows)*cols)
			for _, r := range rows {
				if len(r) != cols {
					return nil, p.errorAt(start, "array constant rows must have the same length")
				}
				values = append(values, r...)
			}
			return &ArrayExpr{
				Rows:     len(rows),
				Cols:     cols,
				Values:   values,
				Position: NodePosition{Start: start, End: tok.Pos + 1},
			}, nil
		}
		return nil, p.errorAt(tok.Pos, "unexpected token in array constant: %s", tok.Value)
	}
}

func (p *Parser) parseArrayElement() (CellValue, error) {
	tok := p.peek()
	negative := false
	if tok.Type == TokenUnaryPrefixOp {
		negative = tok.Value == "-"
		p.pos++
		tok = p.peek()
		if tok.Type != TokenNumber {
			return CellValue{}, p.errorAt(tok.Pos, "expected number after sign in array constant")
		}
	}
	p.pos++

	switch tok.Type {
	case TokenNumber:
		v, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return CellValue{}, p.errorAt(tok.Pos, "invalid number: %s", tok.Value)
		}
		if negative {
			v.Int, v.Num = -v.Int, -v.Num
		}
		return v, nil
	case TokenString:
		return StringValue(tok.Value), nil
	case TokenBoolean:
		return BoolValue(tok.Value == "TRUE"), nil
	case TokenErrorLiteral:
		return ErrorValue(errorCodeByLiteral[tok.Value], ""), nil
	}
	return CellValue{}, p.errorAt(tok.Pos, "array constants may only contain constants")
}

// References returns every cell, range and name node in the tree, in
// source order. Hosts use it to build dependency graphs.
func References(expr Expr) []Expr {
	var refs []Expr
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *CellRefExpr, *RangeRefExpr, *NameExpr:
			refs = append(refs, n)
		case *FunctionCallExpr:
			for _, arg := range n.Args {
				walk(arg)
			}
		case *UnaryOpExpr:
			walk(n.Operand)
		case *BinaryOpExpr:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(expr)
	return refs
}

// FunctionNames returns the upper-cased names of every function called
// in the tree.
func FunctionNames(expr Expr) []string {
	var names []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *FunctionCallExpr:
			names = append(names, n.Name)
			for _, arg := range n.Args {
				walk(arg)
			}
		case *UnaryOpExpr:
			walk(n.Operand)
		case *BinaryOpExpr:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(expr)
	return names
}
