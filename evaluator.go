package formula

import (
	"context"
	"fmt"
	"math"
)

// Logger is the logging surface the evaluator writes to. The zero
// Evaluator logs nothing.
type Logger interface {
	Debugf(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(context.Context, string, ...any) {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}

const (
	DefaultMaxURLLength     = 2048
	DefaultMaxResponseBytes = 1 << 20
)

// Evaluator reduces expression trees to values. It holds configuration
// only; every Evaluate call is independent.
type Evaluator struct {
	fns    *BuiltInFunctions
	logger Logger
}

type Option func(*Evaluator)

func WithClock(clock Clock) Option {
	return func(e *Evaluator) { e.fns.clock = clock }
}

func WithRandom(rng RandomGenerator) Option {
	return func(e *Evaluator) { e.fns.rng = rng }
}

// WithWebFunctions enables ENCODEURL, WEBSERVICE and FILTERXML.
func WithWebFunctions(enabled bool) Option {
	return func(e *Evaluator) { e.fns.webFunctions = enabled }
}

func WithMaxURLLength(n int) Option {
	return func(e *Evaluator) { e.fns.maxURLLength = n }
}

func WithMaxResponseBytes(n int) Option {
	return func(e *Evaluator) { e.fns.maxResponseBytes = n }
}

func WithLogger(logger Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		fns:    NewDefaultBuiltInFunctions(),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate reduces expr to a value. Run-time failures come back as error
// values; the Go error is reserved for host failures reported by ec.
func (e *Evaluator) Evaluate(ctx context.Context, ec EvalContext, currentSheet string, expr Expr) (CellValue, error) {
	ev := &evaluation{Evaluator: e, ctx: ctx, ec: ec, sheet: currentSheet}
	v, err := ev.eval(expr)
	if err != nil {
		return CellValue{}, err
	}
	return v.resolve(), nil
}

// EvaluateFormula parses then evaluates formula text. Bad syntax is
// reported as a *ParseError.
func (e *Evaluator) EvaluateFormula(ctx context.Context, ec EvalContext, currentSheet, formula string) (CellValue, error) {
	expr, err := Parse(currentSheet, formula)
	if err != nil {
		return CellValue{}, err
	}
	return e.Evaluate(ctx, ec, currentSheet, expr)
}

// evaluation carries the per-call state down the recursion.
type evaluation struct {
	*Evaluator
	ctx   context.Context
	ec    EvalContext
	sheet string
}

func (ev *evaluation) eval(expr Expr) (CellValue, error) {
	if err := ev.ctx.Err(); err != nil {
		return CellValue{}, err
	}

	switch n := expr.(type) {
	case *LiteralExpr:
		return n.Value, nil

	case *CellRefExpr:
		v, err := ev.ec.GetCell(ev.ctx, n.Ref.Sheet, n.Ref.Row, n.Ref.Col)
		if err != nil {
			return CellValue{}, fmt.Errorf("get cell %s: %w", n.Ref, err)
		}
		return v.resolve(), nil

	case *RangeRefExpr:
		return ErrorValue(ErrorCodeValue, "Range cannot be used as a scalar expression"), nil

	case *NameExpr:
		target, ok := ev.resolveName(n.Name)
		if !ok {
			return ErrorValue(ErrorCodeName, "Unknown name: "+n.Name), nil
		}
		if _, isRange := target.(*RangeRefExpr); isRange {
			return ErrorValue(ErrorCodeValue, fmt.Sprintf("Named range '%s' cannot be used as a scalar expression", n.Name)), nil
		}
		return ev.eval(target)

	case *ArrayExpr:
		if len(n.Values) == 0 {
			return EmptyValue(), nil
		}
		return n.Values[0], nil

	case *UnaryOpExpr:
		operand, err := ev.eval(n.Operand)
		if err != nil {
			return CellValue{}, err
		}
		return evalUnary(n.Op, operand), nil

	case *BinaryOpExpr:
		left, err := ev.eval(n.Left)
		if err != nil {
			return CellValue{}, err
		}
		if left.Kind == KindError {
			return left, nil
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return CellValue{}, err
		}
		return evalBinary(n.Op, left, right), nil

	case *FunctionCallExpr:
		return ev.callFunction(n)
	}

	return ErrorValue(ErrorCodeValue, fmt.Sprintf("unsupported expression %T", expr)), nil
}

func (ev *evaluation) resolveName(name string) (Expr, bool) {
	resolver, ok := ev.ec.(NameResolver)
	if !ok {
		return nil, false
	}
	return resolver.ResolveName(ev.sheet, name)
}

// Arg is one evaluated function argument. Range is set when the
// argument was a range reference, a named range or an array constant.
type Arg struct {
	Value CellValue
	Range *RangeValue
	Expr  Expr
}

// IsRange reports whether the argument came from a range or array.
func (a Arg) IsRange() bool {
	return a.Range != nil
}

// Values flattens the argument: range elements, or the scalar itself.
func (a Arg) Values() []CellValue {
	if a.Range != nil {
		return a.Range.Values
	}
	return []CellValue{a.Value}
}

// AsRange returns the argument as a range; a scalar is a 1x1 range.
func (a Arg) AsRange() RangeValue {
	if a.Range != nil {
		return *a.Range
	}
	return scalarRange(a.Value)
}

// evalArg evaluates an argument, flattening range-valued expressions
// through the context.
func (ev *evaluation) evalArg(expr Expr) (Arg, error) {
	switch n := expr.(type) {
	case *RangeRefExpr:
		rv, err := ev.getRange(n.Ref)
		if err != nil {
			return Arg{}, err
		}
		return rangeArg(rv, expr), nil
	case *ArrayExpr:
		rv := RangeValue{Values: n.Values, Rows: n.Rows, Cols: n.Cols}
		return rangeArg(rv, expr), nil
	case *FunctionCallExpr:
		if err := ev.ctx.Err(); err != nil {
			return Arg{}, err
		}
		return ev.invoke(n)
	case *NameExpr:
		if target, ok := ev.resolveName(n.Name); ok {
			if r, isRange := target.(*RangeRefExpr); isRange {
				rv, err := ev.getRange(r.Ref)
				if err != nil {
					return Arg{}, err
				}
				return rangeArg(rv, target), nil
			}
		}
	}
	v, err := ev.eval(expr)
	if err != nil {
		return Arg{}, err
	}
	return Arg{Value: v, Expr: expr}, nil
}

func rangeArg(rv RangeValue, expr Expr) Arg {
	for i, v := range rv.Values {
		if v.Kind == KindFormula {
			rv.Values[i] = v.resolve()
		}
	}
	arg := Arg{Range: &rv, Expr: expr}
	if len(rv.Values) > 0 {
		arg.Value = rv.Values[0]
	}
	return arg
}

func (ev *evaluation) getRange(r RangeRef) (RangeValue, error) {
	rv, err := ev.ec.GetRange(ev.ctx, r)
	if err != nil {
		return RangeValue{}, fmt.Errorf("get range %s: %w", r, err)
	}
	return rv, nil
}

// evalRange flattens an expression for functions that always want a
// table (lookups, criteria ranges).
func (ev *evaluation) evalRange(expr Expr) (RangeValue, error) {
	arg, err := ev.evalArg(expr)
	if err != nil {
		return RangeValue{}, err
	}
	return arg.AsRange(), nil
}

func evalUnary(op UnaryOp, operand CellValue) CellValue {
	operand = operand.resolve()
	if operand.Kind == KindError {
		return operand
	}
	switch op {
	case UnaryOpPlus:
		return operand
	case UnaryOpMinus:
		if operand.Kind == KindInt && operand.Int != math.MinInt64 {
			return IntValue(-operand.Int)
		}
		n, ok := ToNumberLenient(operand)
		if !ok {
			return ErrorValue(ErrorCodeValue, "Unary minus on non-numeric value")
		}
		return FloatValue(-n)
	case UnaryOpPercent:
		n, ok := ToNumberLenient(operand)
		if !ok {
			return ErrorValue(ErrorCodeValue, "Percent on non-numeric value")
		}
		return FloatValue(n / 100)
	}
	return ErrorValue(ErrorCodeValue, "Unknown operator")
}

var arithmeticNames = map[BinaryOp]string{
	BinOpAdd:      "Addition",
	BinOpSubtract: "Subtraction",
	BinOpMultiply: "Multiplication",
	BinOpDivide:   "Division",
	BinOpPower:    "Power",
}

func evalBinary(op BinaryOp, left, right CellValue) CellValue {
	left, right = left.resolve(), right.resolve()

	// propagate errors
	if left.Kind == KindError {
		return left
	}
	if right.Kind == KindError {
		return right
	}

	switch op {
	case BinOpConcat:
		return StringValue(ToText(left) + ToText(right))
	case BinOpEqual:
		return BoolValue(CompareValues(left, right) == 0)
	case BinOpNotEqual:
		return BoolValue(CompareValues(left, right) != 0)
	case BinOpLess:
		return BoolValue(CompareValues(left, right) < 0)
	case BinOpLessEqual:
		return BoolValue(CompareValues(left, right) <= 0)
	case BinOpGreater:
		return BoolValue(CompareValues(left, right) > 0)
	case BinOpGreaterEqual:
		return BoolValue(CompareValues(left, right) >= 0)
	}

	l, lok := ToNumberLenient(left)
	r, rok := ToNumberLenient(right)
	if !lok || !rok {
		return ErrorValue(ErrorCodeValue, arithmeticNames[op]+" requires numeric values")
	}
	bothInt := left.Kind == KindInt && right.Kind == KindInt
	if bothInt {
		if v, ok := intArithmetic(op, left.Int, right.Int); ok {
			return IntValue(v)
		}
	}

	var result float64
	switch op {
	case BinOpAdd:
		result = l + r
	case BinOpSubtract:
		result = l - r
	case BinOpMultiply:
		result = l * r
	case BinOpDivide:
		if r == 0 {
			return ErrorValue(ErrorCodeDiv0, "Division by zero")
		}
		return checkedFloat(l / r)
	case BinOpPower:
		if l == 0 && r == 0 {
			return ErrorValue(ErrorCodeNum, "0^0 is undefined")
		}
		if l == 0 && r < 0 {
			return ErrorValue(ErrorCodeDiv0, "Division by zero")
		}
		result = math.Pow(l, r)
		bothInt = bothInt && r >= 0
	default:
		return ErrorValue(ErrorCodeValue, "Unknown operator")
	}

	if bothInt {
		if v := numberValue(result); v.Kind == KindInt {
			return v
		}
	}
	return checkedFloat(result)
}

// intArithmetic computes + - * exactly in int64. It reports false on
// overflow and for other operators.
func intArithmetic(op BinaryOp, a, b int64) (int64, bool) {
	switch op {
	case BinOpAdd:
		sum := a + b
		if (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0) {
			return 0, false
		}
		return sum, true
	case BinOpSubtract:
		diff := a - b
		if (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0) {
			return 0, false
		}
		return diff, true
	case BinOpMultiply:
		if a == 0 || b == 0 {
			return 0, true
		}
		product := a * b
		if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return product, true
	}
	return 0, false
}

// checkedFloat maps NaN and infinities to #NUM!
func checkedFloat(f float64) CellValue {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrorValue(ErrorCodeNum, "Numeric result out of range")
	}
	return FloatValue(f)
}
