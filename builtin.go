package formula

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (f *FixedClock) Now() time.Time {
	return f.T
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// BuiltInFunctions holds what the built-in functions need from outside
// their arguments: time, randomness and the web capability.
type BuiltInFunctions struct {
	clock            Clock
	rng              RandomGenerator
	webFunctions     bool
	maxURLLength     int
	maxResponseBytes int
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{
		clock:            &WallClock{},
		rng:              &DefaultRandomGenerator{},
		maxURLLength:     DefaultMaxURLLength,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
}

// evaluatedFunc receives arguments that were already evaluated, ranges
// flattened.
type evaluatedFunc func(bf *BuiltInFunctions, c *call, args []Arg) CellValue

// rawFunc receives unevaluated argument expressions so it can skip the
// branches it does not take.
type rawFunc func(bf *BuiltInFunctions, c *call, args []Expr) (CellValue, error)

// tableFunc produces a rectangle. A caller that wants a scalar sees the
// top-left element; a non-empty error value replaces the whole result.
type tableFunc func(bf *BuiltInFunctions, c *call, args []Arg) (RangeValue, CellValue)

type builtin struct {
	minArgs  int
	maxArgs  int // -1 for no limit
	fn       evaluatedFunc
	raw      rawFunc
	table    tableFunc
	web      bool
	volatile bool
}

func fixed(n int, fn evaluatedFunc) builtin {
	return builtin{minArgs: n, maxArgs: n, fn: fn}
}

func between(min, max int, fn evaluatedFunc) builtin {
	return builtin{minArgs: min, maxArgs: max, fn: fn}
}

func variadic(min int, fn evaluatedFunc) builtin {
	return builtin{minArgs: min, maxArgs: -1, fn: fn}
}

func tabular(min, max int, fn tableFunc) builtin {
	return builtin{minArgs: min, maxArgs: max, table: fn}
}

func lazy(min, max int, fn rawFunc) builtin {
	return builtin{minArgs: min, maxArgs: max, raw: fn}
}

func volatile(b builtin) builtin {
	b.volatile = true
	return b
}

func web(b builtin) builtin {
	b.web = true
	return b
}

// builtins is the dispatch table. It is filled in init because the
// function bodies recurse back into the evaluator.
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		// aggregate
		"SUM":        variadic(1, (*BuiltInFunctions).SUM),
		"PRODUCT":    variadic(1, (*BuiltInFunctions).PRODUCT),
		"MIN":        variadic(1, (*BuiltInFunctions).MIN),
		"MAX":        variadic(1, (*BuiltInFunctions).MAX),
		"AVERAGE":    variadic(1, (*BuiltInFunctions).AVERAGE),
		"COUNT":      variadic(1, (*BuiltInFunctions).COUNT),
		"COUNTA":     variadic(1, (*BuiltInFunctions).COUNTA),
		"COUNTBLANK": fixed(1, (*BuiltInFunctions).COUNTBLANK),
		"AVERAGEA":   variadic(1, (*BuiltInFunctions).AVERAGEA),
		"AVEDEV":     variadic(1, (*BuiltInFunctions).AVEDEV),
		"MINA":       variadic(1, (*BuiltInFunctions).MINA),
		"MAXA":       variadic(1, (*BuiltInFunctions).MAXA),
		"SUMSQ":      variadic(1, (*BuiltInFunctions).SUMSQ),
		"SUMPRODUCT": variadic(1, (*BuiltInFunctions).SUMPRODUCT),
		"SUMIF":      between(2, 3, (*BuiltInFunctions).SUMIF),
		"SUMIFS":     variadic(3, (*BuiltInFunctions).SUMIFS),
		"COUNTIF":    fixed(2, (*BuiltInFunctions).COUNTIF),
		"COUNTIFS":   variadic(2, (*BuiltInFunctions).COUNTIFS),
		"AVERAGEIF":  between(2, 3, (*BuiltInFunctions).AVERAGEIF),
		"AVERAGEIFS": variadic(3, (*BuiltInFunctions).AVERAGEIFS),

		// logical
		"IF":      lazy(2, 3, (*BuiltInFunctions).IF),
		"IFS":     lazy(2, -1, (*BuiltInFunctions).IFS),
		"AND":     lazy(1, -1, (*BuiltInFunctions).AND),
		"OR":      lazy(1, -1, (*BuiltInFunctions).OR),
		"SWITCH":  lazy(3, -1, (*BuiltInFunctions).SWITCH),
		"IFERROR": lazy(2, 2, (*BuiltInFunctions).IFERROR),
		"IFNA":    lazy(2, 2, (*BuiltInFunctions).IFNA),
		"XOR":     variadic(1, (*BuiltInFunctions).XOR),
		"NOT":     fixed(1, (*BuiltInFunctions).NOT),
		"TRUE":    fixed(0, (*BuiltInFunctions).TRUE),
		"FALSE":   fixed(0, (*BuiltInFunctions).FALSE),

		// lookup
		"VLOOKUP": between(3, 4, (*BuiltInFunctions).VLOOKUP),
		"HLOOKUP": between(3, 4, (*BuiltInFunctions).HLOOKUP),
		"MATCH":   between(2, 3, (*BuiltInFunctions).MATCH),
		"XMATCH":  between(2, 4, (*BuiltInFunctions).XMATCH),
		"XLOOKUP": between(3, 6, (*BuiltInFunctions).XLOOKUP),
		"INDEX":   between(2, 3, (*BuiltInFunctions).INDEX),
		"ROW":     lazy(0, 1, (*BuiltInFunctions).ROW),
		"COLUMN":  lazy(0, 1, (*BuiltInFunctions).COLUMN),
		"ROWS":    fixed(1, (*BuiltInFunctions).ROWS),
		"COLUMNS": fixed(1, (*BuiltInFunctions).COLUMNS),

		// information
		"ISBLANK":    fixed(1, (*BuiltInFunctions).ISBLANK),
		"ISNUMBER":   fixed(1, (*BuiltInFunctions).ISNUMBER),
		"ISTEXT":     fixed(1, (*BuiltInFunctions).ISTEXT),
		"ISLOGICAL":  fixed(1, (*BuiltInFunctions).ISLOGICAL),
		"ISERROR":    fixed(1, (*BuiltInFunctions).ISERROR),
		"ISNA":       fixed(1, (*BuiltInFunctions).ISNA),
		"ISEVEN":     fixed(1, (*BuiltInFunctions).ISEVEN),
		"ISODD":      fixed(1, (*BuiltInFunctions).ISODD),
		"NA":         fixed(0, (*BuiltInFunctions).NA),
		"ISERR":      fixed(1, (*BuiltInFunctions).ISERR),
		"ISNONTEXT":  fixed(1, (*BuiltInFunctions).ISNONTEXT),
		"N":          fixed(1, (*BuiltInFunctions).N),
		"TYPE":       fixed(1, (*BuiltInFunctions).TYPE),
		"ERROR.TYPE": fixed(1, (*BuiltInFunctions).ERRORTYPE),

		// date and time
		"DATE":             fixed(3, (*BuiltInFunctions).DATE),
		"TIME":             fixed(3, (*BuiltInFunctions).TIME),
		"YEAR":             fixed(1, (*BuiltInFunctions).YEAR),
		"MONTH":            fixed(1, (*BuiltInFunctions).MONTH),
		"DAY":              fixed(1, (*BuiltInFunctions).DAY),
		"HOUR":             fixed(1, (*BuiltInFunctions).HOUR),
		"MINUTE":           fixed(1, (*BuiltInFunctions).MINUTE),
		"SECOND":           fixed(1, (*BuiltInFunctions).SECOND),
		"EDATE":            fixed(2, (*BuiltInFunctions).EDATE),
		"EOMONTH":          fixed(2, (*BuiltInFunctions).EOMONTH),
		"WEEKDAY":          between(1, 2, (*BuiltInFunctions).WEEKDAY),
		"WEEKNUM":          between(1, 2, (*BuiltInFunctions).WEEKNUM),
		"ISOWEEKNUM":       fixed(1, (*BuiltInFunctions).ISOWEEKNUM),
		"WORKDAY":          between(2, 3, (*BuiltInFunctions).WORKDAY),
		"WORKDAY.INTL":     between(2, 4, (*BuiltInFunctions).WORKDAYINTL),
		"NETWORKDAYS":      between(2, 3, (*BuiltInFunctions).NETWORKDAYS),
		"NETWORKDAYS.INTL": between(2, 4, (*BuiltInFunctions).NETWORKDAYSINTL),
		"TODAY":            volatile(fixed(0, (*BuiltInFunctions).TODAY)),
		"NOW":              volatile(fixed(0, (*BuiltInFunctions).NOW)),
		"DATEVALUE":        fixed(1, (*BuiltInFunctions).DATEVALUE),
		"TIMEVALUE":        fixed(1, (*BuiltInFunctions).TIMEVALUE),
		"DAYS":             fixed(2, (*BuiltInFunctions).DAYS),
		"DATEDIF":          fixed(3, (*BuiltInFunctions).DATEDIF),
		"DAYS360":          between(2, 3, (*BuiltInFunctions).DAYS360),
		"YEARFRAC":         between(2, 3, (*BuiltInFunctions).YEARFRAC),

		// financial
		"PV":         between(3, 5, (*BuiltInFunctions).PV),
		"FV":         between(3, 5, (*BuiltInFunctions).FV),
		"PMT":        between(3, 5, (*BuiltInFunctions).PMT),
		"NPER":       between(3, 5, (*BuiltInFunctions).NPER),
		"RATE":       between(3, 6, (*BuiltInFunctions).RATE),
		"NPV":        variadic(2, (*BuiltInFunctions).NPV),
		"XNPV":       fixed(3, (*BuiltInFunctions).XNPV),
		"IRR":        between(1, 2, (*BuiltInFunctions).IRR),
		"XIRR":       between(2, 3, (*BuiltInFunctions).XIRR),
		"IPMT":       between(4, 6, (*BuiltInFunctions).IPMT),
		"PPMT":       between(4, 6, (*BuiltInFunctions).PPMT),
		"ISPMT":      fixed(4, (*BuiltInFunctions).ISPMT),
		"SLN":        fixed(3, (*BuiltInFunctions).SLN),
		"SYD":        fixed(4, (*BuiltInFunctions).SYD),
		"DB":         between(4, 5, (*BuiltInFunctions).DB),
		"DDB":        between(4, 5, (*BuiltInFunctions).DDB),
		"MIRR":       fixed(3, (*BuiltInFunctions).MIRR),
		"EFFECT":     fixed(2, (*BuiltInFunctions).EFFECT),
		"NOMINAL":    fixed(2, (*BuiltInFunctions).NOMINAL),
		"RRI":        fixed(3, (*BuiltInFunctions).RRI),
		"PDURATION":  fixed(3, (*BuiltInFunctions).PDURATION),
		"FVSCHEDULE": fixed(2, (*BuiltInFunctions).FVSCHEDULE),

		// math
		"INT":         fixed(1, (*BuiltInFunctions).INT),
		"ABS":         fixed(1, (*BuiltInFunctions).ABS),
		"POWER":       fixed(2, (*BuiltInFunctions).POWER),
		"LN":          fixed(1, (*BuiltInFunctions).LN),
		"LOG":         between(1, 2, (*BuiltInFunctions).LOG),
		"LOG10":       fixed(1, (*BuiltInFunctions).LOG10),
		"EXP":         fixed(1, (*BuiltInFunctions).EXP),
		"SQRT":        fixed(1, (*BuiltInFunctions).SQRT),
		"SQRTPI":      fixed(1, (*BuiltInFunctions).SQRTPI),
		"DELTA":       between(1, 2, (*BuiltInFunctions).DELTA),
		"GESTEP":      between(1, 2, (*BuiltInFunctions).GESTEP),
		"BITAND":      fixed(2, (*BuiltInFunctions).BITAND),
		"BITOR":       fixed(2, (*BuiltInFunctions).BITOR),
		"BITXOR":      fixed(2, (*BuiltInFunctions).BITXOR),
		"BITLSHIFT":   fixed(2, (*BuiltInFunctions).BITLSHIFT),
		"BITRSHIFT":   fixed(2, (*BuiltInFunctions).BITRSHIFT),
		"MOD":         fixed(2, (*BuiltInFunctions).MOD),
		"SIGN":        fixed(1, (*BuiltInFunctions).SIGN),
		"PI":          fixed(0, (*BuiltInFunctions).PI),
		"RAND":        volatile(fixed(0, (*BuiltInFunctions).RAND)),
		"RANDBETWEEN": volatile(fixed(2, (*BuiltInFunctions).RANDBETWEEN)),
		"ROUND":       between(1, 2, (*BuiltInFunctions).ROUND),
		"ROUNDUP":     between(1, 2, (*BuiltInFunctions).ROUNDUP),
		"ROUNDDOWN":   between(1, 2, (*BuiltInFunctions).ROUNDDOWN),
		"TRUNC":       between(1, 2, (*BuiltInFunctions).TRUNC),
		"FLOOR":       between(1, 2, (*BuiltInFunctions).FLOOR),
		"CEILING":     between(1, 2, (*BuiltInFunctions).CEILING),
		"EVEN":        fixed(1, (*BuiltInFunctions).EVEN),
		"ODD":         fixed(1, (*BuiltInFunctions).ODD),
		"FACT":        fixed(1, (*BuiltInFunctions).FACT),
		"COMBIN":      fixed(2, (*BuiltInFunctions).COMBIN),
		"GCD":         variadic(1, (*BuiltInFunctions).GCD),
		"LCM":         variadic(1, (*BuiltInFunctions).LCM),
		"SIN":         fixed(1, (*BuiltInFunctions).SIN),
		"COS":         fixed(1, (*BuiltInFunctions).COS),
		"TAN":         fixed(1, (*BuiltInFunctions).TAN),
		"ASIN":        fixed(1, (*BuiltInFunctions).ASIN),
		"ACOS":        fixed(1, (*BuiltInFunctions).ACOS),
		"ATAN":        fixed(1, (*BuiltInFunctions).ATAN),
		"ATAN2":       fixed(2, (*BuiltInFunctions).ATAN2),
		"DEGREES":     fixed(1, (*BuiltInFunctions).DEGREES),
		"RADIANS":     fixed(1, (*BuiltInFunctions).RADIANS),

		// statistical
		"MEDIAN":       variadic(1, (*BuiltInFunctions).MEDIAN),
		"MODE":         variadic(1, (*BuiltInFunctions).MODE),
		"STDEV":        variadic(1, (*BuiltInFunctions).STDEVS),
		"STDEV.S":      variadic(1, (*BuiltInFunctions).STDEVS),
		"STDEV.P":      variadic(1, (*BuiltInFunctions).STDEVP),
		"VAR":          variadic(1, (*BuiltInFunctions).VARS),
		"VAR.S":        variadic(1, (*BuiltInFunctions).VARS),
		"VAR.P":        variadic(1, (*BuiltInFunctions).VARP),
		"GEOMEAN":      variadic(1, (*BuiltInFunctions).GEOMEAN),
		"HARMEAN":      variadic(1, (*BuiltInFunctions).HARMEAN),
		"CORREL":       fixed(2, (*BuiltInFunctions).CORREL),
		"COVARIANCE.S": fixed(2, (*BuiltInFunctions).COVARIANCES),
		"COVARIANCE.P": fixed(2, (*BuiltInFunctions).COVARIANCEP),
		"LARGE":        fixed(2, (*BuiltInFunctions).LARGE),
		"SMALL":        fixed(2, (*BuiltInFunctions).SMALL),
		"NORM.DIST":    fixed(4, (*BuiltInFunctions).NORMDIST),
		"NORM.S.DIST":  fixed(2, (*BuiltInFunctions).NORMSDIST),
		"NORM.INV":     fixed(3, (*BuiltInFunctions).NORMINV),
		"NORM.S.INV":   fixed(1, (*BuiltInFunctions).NORMSINV),
		"EXPON.DIST":   fixed(3, (*BuiltInFunctions).EXPONDIST),
		"SLOPE":        fixed(2, (*BuiltInFunctions).SLOPE),
		"INTERCEPT":    fixed(2, (*BuiltInFunctions).INTERCEPT),
		"RSQ":          fixed(2, (*BuiltInFunctions).RSQ),
		"PEARSON":      fixed(2, (*BuiltInFunctions).PEARSON),
		"STEYX":        fixed(2, (*BuiltInFunctions).STEYX),
		"SKEW":         variadic(1, (*BuiltInFunctions).SKEW),
		"SKEW.P":       variadic(1, (*BuiltInFunctions).SKEWP),
		"KURT":         variadic(1, (*BuiltInFunctions).KURT),
		"STANDARDIZE":  fixed(3, (*BuiltInFunctions).STANDARDIZE),
		"FISHER":       fixed(1, (*BuiltInFunctions).FISHER),
		"FISHERINV":    fixed(1, (*BuiltInFunctions).FISHERINV),

		// ranking
		"RANK":            between(2, 3, (*BuiltInFunctions).RANK),
		"RANK.EQ":         between(2, 3, (*BuiltInFunctions).RANK),
		"RANK.AVG":        between(2, 3, (*BuiltInFunctions).RANKAVG),
		"PERCENTILE":      fixed(2, (*BuiltInFunctions).PERCENTILE),
		"PERCENTILE.INC":  fixed(2, (*BuiltInFunctions).PERCENTILE),
		"PERCENTILE.EXC":  fixed(2, (*BuiltInFunctions).PERCENTILEEXC),
		"QUARTILE":        fixed(2, (*BuiltInFunctions).QUARTILE),
		"QUARTILE.INC":    fixed(2, (*BuiltInFunctions).QUARTILE),
		"QUARTILE.EXC":    fixed(2, (*BuiltInFunctions).QUARTILEEXC),
		"PERCENTRANK":     between(2, 3, (*BuiltInFunctions).PERCENTRANK),
		"PERCENTRANK.INC": between(2, 3, (*BuiltInFunctions).PERCENTRANK),
		"PERCENTRANK.EXC": between(2, 3, (*BuiltInFunctions).PERCENTRANKEXC),
		"TRIMMEAN":        fixed(2, (*BuiltInFunctions).TRIMMEAN),

		// database
		"DSUM":     fixed(3, (*BuiltInFunctions).DSUM),
		"DAVERAGE": fixed(3, (*BuiltInFunctions).DAVERAGE),
		"DCOUNT":   fixed(3, (*BuiltInFunctions).DCOUNT),
		"DCOUNTA":  fixed(3, (*BuiltInFunctions).DCOUNTA),
		"DMAX":     fixed(3, (*BuiltInFunctions).DMAX),
		"DMIN":     fixed(3, (*BuiltInFunctions).DMIN),
		"DGET":     fixed(3, (*BuiltInFunctions).DGET),
		"DPRODUCT": fixed(3, (*BuiltInFunctions).DPRODUCT),
		"DSTDEV":   fixed(3, (*BuiltInFunctions).DSTDEV),
		"DSTDEVP":  fixed(3, (*BuiltInFunctions).DSTDEVP),
		"DVAR":     fixed(3, (*BuiltInFunctions).DVAR),
		"DVARP":    fixed(3, (*BuiltInFunctions).DVARP),

		// engineering
		"CONVERT": fixed(3, (*BuiltInFunctions).CONVERT),
		"ERF":     between(1, 2, (*BuiltInFunctions).ERF),
		"ERFC":    fixed(1, (*BuiltInFunctions).ERFC),
		"DEC2BIN": between(1, 2, (*BuiltInFunctions).DEC2BIN),
		"DEC2OCT": between(1, 2, (*BuiltInFunctions).DEC2OCT),
		"DEC2HEX": between(1, 2, (*BuiltInFunctions).DEC2HEX),
		"BIN2DEC": fixed(1, (*BuiltInFunctions).BIN2DEC),
		"OCT2DEC": fixed(1, (*BuiltInFunctions).OCT2DEC),
		"HEX2DEC": fixed(1, (*BuiltInFunctions).HEX2DEC),

		// text
		"LEN":         fixed(1, (*BuiltInFunctions).LEN),
		"LEFT":        between(1, 2, (*BuiltInFunctions).LEFT),
		"RIGHT":       between(1, 2, (*BuiltInFunctions).RIGHT),
		"MID":         fixed(3, (*BuiltInFunctions).MID),
		"UPPER":       fixed(1, (*BuiltInFunctions).UPPER),
		"LOWER":       fixed(1, (*BuiltInFunctions).LOWER),
		"PROPER":      fixed(1, (*BuiltInFunctions).PROPER),
		"TRIM":        fixed(1, (*BuiltInFunctions).TRIM),
		"CLEAN":       fixed(1, (*BuiltInFunctions).CLEAN),
		"CONCATENATE": variadic(1, (*BuiltInFunctions).CONCATENATE),
		"CONCAT":      variadic(1, (*BuiltInFunctions).CONCAT),
		"TEXTJOIN":    variadic(3, (*BuiltInFunctions).TEXTJOIN),
		"SUBSTITUTE":  between(3, 4, (*BuiltInFunctions).SUBSTITUTE),
		"REPLACE":     fixed(4, (*BuiltInFunctions).REPLACE),
		"REPT":        fixed(2, (*BuiltInFunctions).REPT),
		"FIND":        between(2, 3, (*BuiltInFunctions).FIND),
		"SEARCH":      between(2, 3, (*BuiltInFunctions).SEARCH),
		"EXACT":       fixed(2, (*BuiltInFunctions).EXACT),
		"VALUE":       fixed(1, (*BuiltInFunctions).VALUE),
		"CHAR":        fixed(1, (*BuiltInFunctions).CHAR),
		"CODE":        fixed(1, (*BuiltInFunctions).CODE),
		"T":           fixed(1, (*BuiltInFunctions).T),
		"ASC":         fixed(1, (*BuiltInFunctions).ASC),
		"DBCS":        fixed(1, (*BuiltInFunctions).DBCS),
		"TEXT":        fixed(2, (*BuiltInFunctions).TEXT),
		"FIXED":       between(1, 3, (*BuiltInFunctions).FIXED),
		"DOLLAR":      between(1, 2, (*BuiltInFunctions).DOLLAR),
		"TEXTBEFORE":  between(2, 6, (*BuiltInFunctions).TEXTBEFORE),
		"TEXTAFTER":   between(2, 6, (*BuiltInFunctions).TEXTAFTER),
		"TEXTSPLIT":   tabular(2, 6, (*BuiltInFunctions).TEXTSPLIT),

		// web
		"ENCODEURL":  web(fixed(1, (*BuiltInFunctions).ENCODEURL)),
		"WEBSERVICE": web(fixed(1, (*BuiltInFunctions).WEBSERVICE)),
		"FILTERXML":  web(fixed(2, (*BuiltInFunctions).FILTERXML)),
	}
}

// SupportedFunctions lists every built-in function name, sorted.
func SupportedFunctions() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isVolatileFunction returns true if the function should trigger recalculation
// on every Calculate() call
func isVolatileFunction(name string) bool {
	b, ok := builtins[strings.ToUpper(name)]
	return ok && b.volatile
}

// call is one function invocation: the evaluation it belongs to plus the
// function name, used in error messages.
type call struct {
	*evaluation
	name string
}

func (ev *evaluation) callFunction(n *FunctionCallExpr) (CellValue, error) {
	arg, err := ev.invoke(n)
	if err != nil {
		return CellValue{}, err
	}
	return arg.Value, nil
}

// invoke runs a function call. Table-producing functions come back as a
// range argument, everything else as a scalar one.
func (ev *evaluation) invoke(n *FunctionCallExpr) (Arg, error) {
	scalar := func(v CellValue) Arg { return Arg{Value: v, Expr: n} }
	name := strings.ToUpper(n.Name)
	b, ok := builtins[name]
	if !ok {
		return scalar(ErrorValue(ErrorCodeName, "Unknown function: "+n.Name)), nil
	}
	if b.web && !ev.fns.webFunctions {
		return scalar(ErrorValue(ErrorCodeName, name+" is not available")), nil
	}
	if msg, ok := checkArity(name, b, len(n.Args)); !ok {
		return scalar(ErrorValue(ErrorCodeValue, msg)), nil
	}

	c := &call{evaluation: ev, name: name}
	if b.raw != nil {
		v, err := b.raw(ev.fns, c, n.Args)
		return scalar(v), err
	}

	args := make([]Arg, len(n.Args))
	for i, expr := range n.Args {
		arg, err := ev.evalArg(expr)
		if err != nil {
			return Arg{}, err
		}
		args[i] = arg
	}
	if b.table != nil {
		rv, errv := b.table(ev.fns, c, args)
		if errv.Kind == KindError {
			ev.logFailure(name, errv)
			return scalar(errv), nil
		}
		return rangeArg(rv, n), nil
	}
	result := b.fn(ev.fns, c, args)
	if result.Kind == KindError {
		ev.logFailure(name, result)
	}
	return scalar(result), nil
}

func (ev *evaluation) logFailure(name string, v CellValue) {
	ev.logger.Debugf(ev.ctx, "%s returned %s: %s", name, v.Err.Code(), v.Err.Message)
}

func checkArity(name string, b builtin, n int) (string, bool) {
	if n >= b.minArgs && (b.maxArgs < 0 || n <= b.maxArgs) {
		return "", true
	}
	switch {
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("%s expects %d %s", name, b.minArgs, plural(b.minArgs, "argument")), false
	case b.maxArgs < 0:
		return fmt.Sprintf("%s expects at least %d %s", name, b.minArgs, plural(b.minArgs, "argument")), false
	}
	return fmt.Sprintf("%s expects %d to %d arguments", name, b.minArgs, b.maxArgs), false
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// isOmitted reports an argument left empty, as in IF(A1,,2).
func isOmitted(expr Expr) bool {
	lit, ok := expr.(*LiteralExpr)
	return ok && lit.Value.Kind == KindEmpty
}

// argReader converts positional arguments, remembering the first
// failure so a function can read everything and check once.
type argReader struct {
	name   string
	args   []Arg
	err    CellValue
	failed bool
}

func (c *call) read(args []Arg) *argReader {
	return &argReader{name: c.name, args: args}
}

func (r *argReader) fail(v CellValue) {
	if !r.failed {
		r.err = v
		r.failed = true
	}
}

// present is false for missing and omitted arguments.
func (r *argReader) present(i int) bool {
	return i < len(r.args) && !isOmitted(r.args[i].Expr)
}

// scalar returns argument i as a single value. Error values and
// multi-cell ranges fail the reader.
func (r *argReader) scalar(i int) CellValue {
	if r.failed || i >= len(r.args) {
		return CellValue{}
	}
	arg := r.args[i]
	v := arg.Value
	if arg.Range != nil {
		if len(arg.Range.Values) != 1 {
			r.fail(errorf(ErrorCodeValue, "%s: argument %d must be a single value, not a range", r.name, i+1))
			return CellValue{}
		}
		v = arg.Range.Values[0]
	}
	v = v.resolve()
	if v.Kind == KindError {
		r.fail(v)
		return CellValue{}
	}
	return v
}

func (r *argReader) number(i int) float64 {
	v := r.scalar(i)
	if r.failed {
		return 0
	}
	n, ok := ToNumberLenient(v)
	if !ok || math.IsNaN(n) {
		r.fail(errorf(ErrorCodeValue, "%s: argument %d is not numeric", r.name, i+1))
		return 0
	}
	return n
}

func (r *argReader) numberOr(i int, def float64) float64 {
	if !r.present(i) {
		return def
	}
	return r.number(i)
}

// integer truncates toward zero.
func (r *argReader) integer(i int) int64 {
	n := r.number(i)
	if r.failed {
		return 0
	}
	if math.Abs(n) >= 1<<62 {
		r.fail(errorf(ErrorCodeNum, "%s: argument %d is out of range", r.name, i+1))
		return 0
	}
	return int64(math.Trunc(n))
}

func (r *argReader) integerOr(i int, def int64) int64 {
	if !r.present(i) {
		return def
	}
	return r.integer(i)
}

func (r *argReader) text(i int) string {
	v := r.scalar(i)
	if r.failed {
		return ""
	}
	return ToText(v)
}

func (r *argReader) textOr(i int, def string) string {
	if !r.present(i) {
		return def
	}
	return r.text(i)
}

func (r *argReader) boolean(i int) bool {
	v := r.scalar(i)
	if r.failed {
		return false
	}
	b, ok := logicalValue(v)
	if !ok {
		r.fail(errorf(ErrorCodeValue, "%s: argument %d is not a logical value", r.name, i+1))
	}
	return b
}

func (r *argReader) booleanOr(i int, def bool) bool {
	if !r.present(i) {
		return def
	}
	return r.boolean(i)
}

// table returns argument i as a rectangle; a scalar is 1x1. An error
// scalar fails the reader, error elements inside ranges do not.
func (r *argReader) table(i int) RangeValue {
	if r.failed || i >= len(r.args) {
		return RangeValue{}
	}
	arg := r.args[i]
	if arg.Range == nil {
		if v := arg.Value.resolve(); v.Kind == KindError {
			r.fail(v)
			return RangeValue{}
		}
	}
	return arg.AsRange()
}

// logicalValue is the strict boolean reading used by logical functions:
// booleans, numbers and the text TRUE/FALSE.
func logicalValue(v CellValue) (bool, bool) {
	v = v.resolve()
	switch v.Kind {
	case KindBool:
		return v.Bool, true
	case KindInt, KindFloat, KindDateTime, KindEmpty:
		return ToBool(v), true
	case KindString:
		switch strings.ToUpper(strings.TrimSpace(v.Str)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}

// collectNumbers gathers the numbers an aggregate folds over. Range
// elements count only when they hold a number; scalar arguments are
// coerced leniently and fail when they cannot be. The first error value
// found anywhere wins.
func collectNumbers(name string, args []Arg) ([]float64, CellValue, bool) {
	var nums []float64
	for i, arg := range args {
		if arg.Range != nil {
			for _, v := range arg.Range.Values {
				v = v.resolve()
				switch v.Kind {
				case KindError:
					return nil, v, false
				case KindInt, KindFloat, KindDateTime:
					n, _ := ToNumber(v)
					nums = append(nums, n)
				}
			}
			continue
		}
		if isOmitted(arg.Expr) {
			continue
		}
		v := arg.Value.resolve()
		if v.Kind == KindError {
			return nil, v, false
		}
		n, ok := ToNumberLenient(v)
		if !ok {
			return nil, errorf(ErrorCodeValue, "%s: argument %d is not numeric", name, i+1), false
		}
		nums = append(nums, n)
	}
	return nums, CellValue{}, true
}

// flatValues is every value across all arguments, ranges flattened.
func flatValues(args []Arg) []CellValue {
	var out []CellValue
	for _, arg := range args {
		for _, v := range arg.Values() {
			out = append(out, v.resolve())
		}
	}
	return out
}
