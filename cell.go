package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - value not available
	ErrorCodeOther ErrorCode = 8 // #ERROR! - all other errors
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeOther: "#ERROR!",
}

// errorCodeByLiteral is the reverse of ErrorMapper, used by the lexer
// for error literals typed into formulas.
var errorCodeByLiteral = func() map[string]ErrorCode {
	m := make(map[string]ErrorCode, len(ErrorMapper))
	for code, text := range ErrorMapper {
		m[text] = code
	}
	return m
}()

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Code returns the display form of the error code, e.g. "#VALUE!".
func (e *SpreadsheetError) Code() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// ValueKind tags the variant held by a CellValue
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDateTime
	KindError
	KindFormula
)

func (k ValueKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	case KindError:
		return "error"
	case KindFormula:
		return "formula"
	}
	return "unknown"
}

// CellValue is the tagged union flowing through the evaluator. Only the
// field matching Kind is meaningful.
//   - KindString: Str
//   - KindInt: Int
//   - KindFloat, KindDateTime: Num (DateTime is a serial day number)
//   - KindBool: Bool
//   - KindError: Err
//   - KindFormula: Formula
type CellValue struct {
	Kind    ValueKind
	Str     string
	Int     int64
	Num     float64
	Bool    bool
	Err     *SpreadsheetError
	Formula *FormulaCell
}

// FormulaCell is a stored formula plus its last computed result. The
// cached result belongs to the host cell store.
type FormulaCell struct {
	Text   string
	Expr   Expr
	Cached *CellValue
}

func EmptyValue() CellValue { return CellValue{} }

func StringValue(s string) CellValue { return CellValue{Kind: KindString, Str: s} }

func IntValue(i int64) CellValue { return CellValue{Kind: KindInt, Int: i} }

func FloatValue(f float64) CellValue { return CellValue{Kind: KindFloat, Num: f} }

func BoolValue(b bool) CellValue { return CellValue{Kind: KindBool, Bool: b} }

func DateTimeValue(serial float64) CellValue { return CellValue{Kind: KindDateTime, Num: serial} }

// ErrorValue builds an error value. An empty message falls back to the
// code's display form.
func ErrorValue(code ErrorCode, message string) CellValue {
	return CellValue{Kind: KindError, Err: NewSpreadsheetError(code, message)}
}

func errorf(code ErrorCode, format string, args ...any) CellValue {
	return ErrorValue(code, fmt.Sprintf(format, args...))
}

// FormulaValue wraps a parsed formula, optionally with a cached result.
func FormulaValue(expr Expr, text string, cached *CellValue) CellValue {
	return CellValue{Kind: KindFormula, Formula: &FormulaCell{Text: text, Expr: expr, Cached: cached}}
}

// numberValue returns Int when f is integral and fits, Float otherwise.
func numberValue(f float64) CellValue {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}

func (v CellValue) IsError() bool {
	return v.resolve().Kind == KindError
}

// IsNumber reports whether the value is Int, Float or DateTime.
func (v CellValue) IsNumber() bool {
	switch v.resolve().Kind {
	case KindInt, KindFloat, KindDateTime:
		return true
	}
	return false
}

// resolve follows a formula to its cached result. An unevaluated formula
// resolves to Empty.
func (v CellValue) resolve() CellValue {
	for v.Kind == KindFormula {
		if v.Formula == nil || v.Formula.Cached == nil {
			return CellValue{}
		}
		v = *v.Formula.Cached
	}
	return v
}

// Resolved returns the value a formula currently stands for.
func (v CellValue) Resolved() CellValue {
	return v.resolve()
}

// String renders the value the way a cell would show it.
func (v CellValue) String() string {
	switch v.Kind {
	case KindFormula:
		if v.Formula != nil && v.Formula.Cached != nil {
			return v.Formula.Cached.String()
		}
		if v.Formula != nil {
			return "=" + v.Formula.Text
		}
		return ""
	case KindError:
		return v.Err.Code()
	default:
		return ToText(v)
	}
}

// Equal reports deep equality of two values, used by tests and caches.
func (v CellValue) Equal(o CellValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindEmpty:
		return true
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat, KindDateTime:
		return v.Num == o.Num || (math.IsNaN(v.Num) && math.IsNaN(o.Num))
	case KindBool:
		return v.Bool == o.Bool
	case KindError:
		return v.Err.ErrorCode == o.Err.ErrorCode && v.Err.Message == o.Err.Message
	case KindFormula:
		return v.Formula.Text == o.Formula.Text
	}
	return false
}

// ParseInput converts raw text typed into a cell into a value: numbers,
// booleans and error literals are recognized, anything else is text.
// Formula input (leading '=') is handled by the caller.
func ParseInput(input string) CellValue {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return EmptyValue()
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return BoolValue(true)
	case "FALSE":
		return BoolValue(false)
	}
	if code, ok := errorCodeByLiteral[strings.ToUpper(trimmed)]; ok {
		return ErrorValue(code, "")
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) {
		return FloatValue(f)
	}
	return StringValue(input)
}
