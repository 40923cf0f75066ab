package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapContext is an EvalContext over a fixed set of cells.
type mapContext struct {
	cells map[CellRef]CellValue
	names map[string]Expr
	pos   *CellRef
	fetch func(url string) (string, error)
	fail  map[CellRef]error
}

func newMapContext(t *testing.T, cells map[string]any) *mapContext {
	t.Helper()
	mc := &mapContext{cells: map[CellRef]CellValue{}, names: map[string]Expr{}, fail: map[CellRef]error{}}
	for address, raw := range cells {
		ref, ok := ResolveCell("Sheet1", address)
		require.True(t, ok, "bad address %s", address)
		var v CellValue
		switch x := raw.(type) {
		case CellValue:
			v = x
		case int:
			v = IntValue(int64(x))
		case float64:
			v = FloatValue(x)
		case string:
			v = StringValue(x)
		case bool:
			v = BoolValue(x)
		default:
			t.Fatalf("unsupported cell %s: %T", address, raw)
		}
		mc.cells[ref] = v
	}
	return mc
}

func (m *mapContext) GetCell(_ context.Context, sheet string, row, col uint32) (CellValue, error) {
	ref := CellRef{Sheet: sheet, Row: row, Col: col}
	if err, ok := m.fail[ref]; ok {
		return CellValue{}, err
	}
	return m.cells[ref], nil
}

func (m *mapContext) GetRange(ctx context.Context, r RangeRef) (RangeValue, error) {
	return GetRangeByCells(ctx, m, r)
}

func (m *mapContext) CurrentPosition() (CellRef, bool) {
	if m.pos == nil {
		return CellRef{}, false
	}
	return *m.pos, true
}

func (m *mapContext) HTTPFetch(_ context.Context, url string) (string, error) {
	if m.fetch == nil {
		return "", errors.New("offline")
	}
	return m.fetch(url)
}

func (m *mapContext) ResolveName(currentSheet, name string) (Expr, bool) {
	e, ok := m.names[strings.ToUpper(name)]
	return e, ok
}

func (m *mapContext) define(t *testing.T, name, target string) {
	t.Helper()
	r, ok := ResolveRange("Sheet1", target)
	require.True(t, ok)
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		m.names[strings.ToUpper(name)] = &CellRefExpr{Ref: CellRef{Sheet: r.Sheet, Row: r.StartRow, Col: r.StartCol}}
		return
	}
	m.names[strings.ToUpper(name)] = &RangeRefExpr{Ref: r}
}

var testClock = &FixedClock{T: time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)}

type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func evalIn(t *testing.T, ec EvalContext, formula string, opts ...Option) CellValue {
	t.Helper()
	opts = append([]Option{WithClock(testClock), WithRandom(fixedRandom(0.25))}, opts...)
	v, err := NewEvaluator(opts...).EvaluateFormula(context.Background(), ec, "Sheet1", formula)
	require.NoError(t, err, formula)
	return v
}

// expectValue checks v against want: float64 compares numerically, string
// as text, bool as a boolean and ErrorCode as an error of that code.
func expectValue(t *testing.T, formula string, want any, v CellValue) {
	t.Helper()
	switch w := want.(type) {
	case float64:
		n, ok := ToNumber(v)
		if assert.True(t, ok, "%s: want %v, got %v (%s)", formula, w, v, v.Kind) {
			assert.InDelta(t, w, n, 1e-6, formula)
		}
	case int:
		expectValue(t, formula, float64(w), v)
	case string:
		if assert.Equal(t, KindString, v.Kind, "%s: got %v", formula, v) {
			assert.Equal(t, w, v.Str, formula)
		}
	case bool:
		if assert.Equal(t, KindBool, v.Kind, "%s: got %v", formula, v) {
			assert.Equal(t, w, v.Bool, formula)
		}
	case ErrorCode:
		if assert.Equal(t, KindError, v.Kind, "%s: got %v", formula, v) {
			assert.Equal(t, w, v.Err.ErrorCode, "%s: %s", formula, v.Err.Message)
		}
	case nil:
		assert.Equal(t, KindEmpty, v.Kind, "%s: got %v", formula, v)
	default:
		t.Fatalf("unsupported expectation %T", want)
	}
}

type formulaCase struct {
	formula string
	want    any
}

func runFormulaCases(t *testing.T, ec EvalContext, cases []formulaCase, opts ...Option) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			expectValue(t, tc.formula, tc.want, evalIn(t, ec, tc.formula, opts...))
		})
	}
}

func TestEvaluatorOperators(t *testing.T) {
	ec := newMapContext(t, map[string]any{
		"A1": 10, "A2": 2.5, "A3": "abc", "A4": true, "A5": "12",
		"B1": ErrorValue(ErrorCodeNA, ""),
	})
	runFormulaCases(t, ec, []formulaCase{
		{"=1+2*3", 7},
		{"=(1+2)*3", 9},
		{"=2^3^2", 512},
		{"=-A1", -10},
		{"=A1%", 0.1},
		{"=50%", 0.5},
		{"=A1/4", 2.5},
		{"=A1-A2", 7.5},
		{"=A5*2", 24},
		{"=A4+1", 2},
		{"=C9+1", 1},
		{`=A3&"-"&A1`, "abc-10"},
		{`=A1&A4`, "10TRUE"},
		{"=A1>A2", true},
		{`="abc"="ABC"`, true},
		{`=A3<>"abd"`, true},
		{`=1<"a"`, true},
		{`="z"<TRUE`, true},
		{"=C9=0", true},
		{`=C9=""`, true},
		{"=1/0", ErrorCodeDiv0},
		{"=0^0", ErrorCodeNum},
		{"=A3+1", ErrorCodeValue},
		{"=-A3", ErrorCodeValue},
		{"=B1+1", ErrorCodeNA},
		{"=1+B1", ErrorCodeNA},
		{"=#DIV/0!", ErrorCodeDiv0},
		{"=A1:A3", ErrorCodeValue},
		{"={7,8;9,10}", 7},
	})
}

func TestEvaluatorIntegerArithmetic(t *testing.T) {
	ec := newMapContext(t, map[string]any{"A1": CellValue{Kind: KindInt, Int: 3000000000000000001}})

	cases := map[string]int64{
		"=9007199254740993+0":     9007199254740993,
		"=9007199254740993-2":     9007199254740991,
		"=A1*3":                   9000000000000000003,
		"=A1-A1":                  0,
		"=7-10":                   -3,
		"=-4611686018427387904*2": -9223372036854775808,
	}
	for formula, want := range cases {
		v := evalIn(t, ec, formula)
		if assert.Equal(t, KindInt, v.Kind, "%s: got %v", formula, v) {
			assert.Equal(t, want, v.Int, formula)
		}
	}

	// overflow falls back to float
	v := evalIn(t, ec, "=9223372036854775807+1")
	assert.Equal(t, KindFloat, v.Kind)
	assert.InDelta(t, 9.223372036854776e18, v.Num, 1e4)

	v = evalIn(t, ec, "=A1*A1")
	assert.Equal(t, KindFloat, v.Kind)
}

func TestGetRangeByCellsLastRow(t *testing.T) {
	ec := newMapContext(t, nil)
	last := uint32(math.MaxUint32)
	ec.cells[CellRef{Sheet: "Sheet1", Row: last, Col: last}] = IntValue(5)

	rv, err := GetRangeByCells(context.Background(), ec, RangeRef{
		Sheet: "Sheet1", StartRow: last, StartCol: last - 1, EndRow: last, EndCol: last,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rv.Rows)
	assert.Equal(t, 2, rv.Cols)
	assert.Equal(t, IntValue(5), rv.At(0, 1))
}

func TestEvaluatorFunctionDispatch(t *testing.T) {
	ec := newMapContext(t, nil)
	runFormulaCases(t, ec, []formulaCase{
		{"=NOSUCH(1)", ErrorCodeName},
		{"=SUM()", ErrorCodeValue},
		{"=ABS(1,2)", ErrorCodeValue},
		{"=IF(TRUE)", ErrorCodeValue},
		{`=ENCODEURL("a b")`, ErrorCodeName},
		{"=sum(1,2)", 3},
	})
}

func TestEvaluatorNames(t *testing.T) {
	ec := newMapContext(t, map[string]any{"A1": 4, "A2": 6})
	ec.define(t, "Rate", "A1")
	ec.define(t, "Values", "A1:A2")

	runFormulaCases(t, ec, []formulaCase{
		{"=Rate*2", 8},
		{"=SUM(Values)", 10},
		{"=ROWS(Values)", 2},
		{"=ROW(Rate)", 1},
		{"=ROW(Values)", ErrorCodeValue},
		{"=Values", ErrorCodeValue},
		{"=Missing", ErrorCodeName},
		{"=ROW(Missing)", ErrorCodeName},
	})
}

func TestEvaluatorCurrentPosition(t *testing.T) {
	ec := newMapContext(t, nil)
	expectValue(t, "=ROW()", ErrorCodeValue, evalIn(t, ec, "=ROW()"))

	ec.pos = &CellRef{Sheet: "Sheet1", Row: 7, Col: 3}
	runFormulaCases(t, ec, []formulaCase{
		{"=ROW()", 7},
		{"=COLUMN()", 3},
		{"=ROW(B2:D9)", ErrorCodeValue},
		{"=COLUMN(A1:B1)", ErrorCodeValue},
		{"=ROW(B2:B2)", 2},
		{"=COLUMN(D1)", 4},
		{"=ROW(1)", ErrorCodeValue},
	})
}

func TestEvaluatorHostErrors(t *testing.T) {
	ec := newMapContext(t, nil)
	boom := errors.New("storage offline")
	ec.fail[CellRef{Sheet: "Sheet1", Row: 1, Col: 1}] = boom

	_, err := NewEvaluator().EvaluateFormula(context.Background(), ec, "Sheet1", "=SUM(A1:A3)+1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// IF never evaluates the branch it does not take
	v, err := NewEvaluator().EvaluateFormula(context.Background(), ec, "Sheet1", "=IF(FALSE, A1, 5)")
	require.NoError(t, err)
	expectValue(t, "IF", 5, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEvaluator().EvaluateFormula(ctx, ec, "Sheet1", "=1+1")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewEvaluator().EvaluateFormula(context.Background(), ec, "Sheet1", "=1+")
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestEvaluatorClockAndRandom(t *testing.T) {
	ec := newMapContext(t, nil)
	runFormulaCases(t, ec, []formulaCase{
		{"=TODAY()", 45366},
		{"=NOW()", 45366 + 18.5/24},
		{"=YEAR(TODAY())", 2024},
		{"=HOUR(NOW())", 18},
		{"=RAND()", 0.25},
		{"=RANDBETWEEN(1, 8)", 3},
	})
}

func TestEvaluatorWebFunctions(t *testing.T) {
	ec := newMapContext(t, map[string]any{"A1": "https://example.com/rates.xml"})
	var fetched []string
	ec.fetch = func(url string) (string, error) {
		fetched = append(fetched, url)
		if strings.Contains(url, "fail") {
			return "", fmt.Errorf("GET %s: status 500", url)
		}
		return `<rates base="EUR"><rate ccy="USD">1.08</rate><rate ccy="GBP">0.85</rate></rates>`, nil
	}
	web := []Option{WithWebFunctions(true), WithMaxURLLength(64), WithMaxResponseBytes(200)}

	runFormulaCases(t, ec, []formulaCase{
		{`=ENCODEURL("a b&c=d")`, "a%20b%26c%3Dd"},
		{"=WEBSERVICE(A1)", `<rates base="EUR"><rate ccy="USD">1.08</rate><rate ccy="GBP">0.85</rate></rates>`},
		{`=FILTERXML(WEBSERVICE(A1), "//rate")`, 1.08},
		{`=FILTERXML(WEBSERVICE(A1), "/rates/@base")`, "EUR"},
		{`=FILTERXML(WEBSERVICE(A1), "/rates/rate/@ccy")`, "USD"},
		{`=FILTERXML("<a><b>x</b></a>", "/a/b/text()")`, "x"},
		{`=FILTERXML("<a><b>x</b></a>", "//c")`, ErrorCodeValue},
		{`=FILTERXML("<a><b>x</a>", "//b")`, ErrorCodeValue},
		{`=FILTERXML("<a/>", "a[1]")`, ErrorCodeValue},
		{`=WEBSERVICE("")`, ErrorCodeValue},
		{`=WEBSERVICE("ftp://example.com/x")`, ErrorCodeValue},
		{`=WEBSERVICE("https://example.com/fail")`, ErrorCodeValue},
		{`=WEBSERVICE("https://example.com/` + strings.Repeat("x", 64) + `")`, ErrorCodeValue},
	}, web...)

	for _, url := range fetched {
		assert.NotContains(t, url, "ftp://")
	}
}
