package formula

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	err      error
}

func NewWorkbookTestCase(t *testing.T, name string, opts ...WorkbookOption) *WorkbookTestCase {
	t.Helper()
	tc := &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: NewWorkbook(opts...),
	}
	return tc.AddSheet("Sheet1")
}

func (tc *WorkbookTestCase) Set(address, input string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	tc.err = tc.workbook.Set(address, input)
	assert.NoError(tc.t, tc.err, "%s: Set(%s)", tc.name, address)
	return tc
}

// SetInvalid expects input to be rejected with a parse error.
func (tc *WorkbookTestCase) SetInvalid(address, input string) *WorkbookTestCase {
	tc.t.Helper()
	err := tc.workbook.Set(address, input)
	var parseErr *ParseError
	assert.True(tc.t, errors.As(err, &parseErr), "%s: Set(%s, %q) = %v, want parse error", tc.name, address, input, err)
	return tc
}

func (tc *WorkbookTestCase) Remove(address string) *WorkbookTestCase {
	tc.t.Helper()
	if tc.err == nil {
		tc.err = tc.workbook.Remove(address)
	}
	return tc
}

func (tc *WorkbookTestCase) AddSheet(name string) *WorkbookTestCase {
	if tc.err == nil {
		tc.err = tc.workbook.AddSheet(name)
	}
	return tc
}

func (tc *WorkbookTestCase) RemoveSheet(name string) *WorkbookTestCase {
	if tc.err == nil {
		tc.err = tc.workbook.RemoveSheet(name)
	}
	return tc
}

func (tc *WorkbookTestCase) RenameSheet(oldName, newName string) *WorkbookTestCase {
	if tc.err == nil {
		tc.err = tc.workbook.RenameSheet(oldName, newName)
	}
	return tc
}

func (tc *WorkbookTestCase) DefineName(name, target string) *WorkbookTestCase {
	if tc.err == nil {
		tc.err = tc.workbook.DefineName(name, target)
	}
	return tc
}

func (tc *WorkbookTestCase) RemoveName(name string) *WorkbookTestCase {
	if tc.err == nil {
		tc.err = tc.workbook.RemoveName(name)
	}
	return tc
}

func (tc *WorkbookTestCase) Run() *WorkbookTestCase {
	tc.t.Helper()
	if tc.err != nil {
		return tc
	}
	tc.err = tc.workbook.Calculate(context.Background())
	assert.NoError(tc.t, tc.err, "%s: Calculate()", tc.name)
	return tc
}

func (tc *WorkbookTestCase) get(address string) (CellValue, bool) {
	tc.t.Helper()
	if tc.err != nil {
		tc.t.Errorf("%s: pending error %v", tc.name, tc.err)
		return CellValue{}, false
	}
	v, err := tc.workbook.Get(address)
	if !assert.NoError(tc.t, err, "%s: Get(%s)", tc.name, address) {
		return CellValue{}, false
	}
	return v, true
}

func (tc *WorkbookTestCase) AssertNumber(address string, want float64) *WorkbookTestCase {
	tc.t.Helper()
	v, ok := tc.get(address)
	if !ok {
		return tc
	}
	if !assert.True(tc.t, v.IsNumber(), "%s: cell %s = %v (%s), want number", tc.name, address, v, v.Kind) {
		return tc
	}
	got, _ := ToNumber(v)
	assert.InDelta(tc.t, want, got, 1e-9, "%s: cell %s", tc.name, address)
	return tc
}

func (tc *WorkbookTestCase) AssertText(address, want string) *WorkbookTestCase {
	tc.t.Helper()
	if v, ok := tc.get(address); ok {
		assert.Equal(tc.t, KindString, v.Kind, "%s: cell %s kind", tc.name, address)
		assert.Equal(tc.t, want, v.Str, "%s: cell %s", tc.name, address)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertBool(address string, want bool) *WorkbookTestCase {
	tc.t.Helper()
	if v, ok := tc.get(address); ok {
		assert.Equal(tc.t, BoolValue(want), v, "%s: cell %s", tc.name, address)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertEmpty(address string) *WorkbookTestCase {
	tc.t.Helper()
	if v, ok := tc.get(address); ok {
		assert.Equal(tc.t, KindEmpty, v.Kind, "%s: cell %s = %v", tc.name, address, v)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertErr(address string, code ErrorCode) *WorkbookTestCase {
	tc.t.Helper()
	v, ok := tc.get(address)
	if !ok {
		return tc
	}
	if assert.Equal(tc.t, KindError, v.Kind, "%s: cell %s = %v, want error", tc.name, address, v) {
		assert.Equal(tc.t, code, v.Err.ErrorCode, "%s: cell %s error", tc.name, address)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertFn(address string, fn func(t *testing.T, v CellValue)) *WorkbookTestCase {
	tc.t.Helper()
	if v, ok := tc.get(address); ok {
		fn(tc.t, v)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertSheets(want ...string) *WorkbookTestCase {
	tc.t.Helper()
	assert.Equal(tc.t, want, tc.workbook.Sheets(), tc.name)
	return tc
}

// ExpectAppError consumes the pending error, which must carry code.
func (tc *WorkbookTestCase) ExpectAppError(code AppErrorCode) *WorkbookTestCase {
	tc.t.Helper()
	var appErr *AppError
	if assert.True(tc.t, errors.As(tc.err, &appErr), "%s: got %v, want AppError %s", tc.name, tc.err, code) {
		assert.Equal(tc.t, code, appErr.Code, tc.name)
	}
	tc.err = nil
	return tc
}

func (tc *WorkbookTestCase) End() {}

type sequenceRandom struct {
	next float64
}

func (s *sequenceRandom) Float64() float64 {
	v := s.next
	s.next += 0.125
	if s.next >= 1 {
		s.next = 0
	}
	return v
}

func TestWorkbookParsing(t *testing.T) {
	t.Run("ValidFormulas", func(t *testing.T) {
		NewWorkbookTestCase(t, "arithmetic").
			Set("A1", "=1+2").
			Run().
			AssertNumber("A1", 3).
			End()

		NewWorkbookTestCase(t, "string literal").
			Set("A1", `="hello"`).
			Run().
			AssertText("A1", "hello").
			End()

		NewWorkbookTestCase(t, "boolean literal").
			Set("A1", "=TRUE").
			Set("A2", "=FALSE").
			Run().
			AssertBool("A1", true).
			AssertBool("A2", false).
			End()

		NewWorkbookTestCase(t, "chained unary plus").
			Set("A1", "=1++2").
			Set("A2", "=++++1++++++4").
			Run().
			AssertNumber("A1", 3).
			AssertNumber("A2", 5).
			End()
	})

	t.Run("InvalidFormulasAreNotStored", func(t *testing.T) {
		for _, input := range []string{"=", "=SUM(", "=A1:", `="hello`} {
			NewWorkbookTestCase(t, input).
				SetInvalid("A1", input).
				Run().
				AssertEmpty("A1").
				End()
		}
	})

	t.Run("Literals", func(t *testing.T) {
		NewWorkbookTestCase(t, "typed input").
			Set("A1", "42").
			Set("A2", "3.5").
			Set("A3", "true").
			Set("A4", "#N/A").
			Set("A5", "hello").
			Run().
			AssertNumber("A1", 42).
			AssertNumber("A2", 3.5).
			AssertBool("A3", true).
			AssertErr("A4", ErrorCodeNA).
			AssertText("A5", "hello").
			End()
	})
}

func TestWorkbookReferences(t *testing.T) {
	t.Run("Chain", func(t *testing.T) {
		NewWorkbookTestCase(t, "chain").
			Set("A1", "10").
			Set("B1", "=A1*2").
			Set("C1", "=B1*2").
			Run().
			AssertNumber("C1", 40).
			End()
	})

	t.Run("ReverseOrder", func(t *testing.T) {
		// A1 is computed before its precedent in address order
		NewWorkbookTestCase(t, "reverse").
			Set("A1", "=B5+1").
			Set("B5", "=C9*3").
			Set("C9", "2").
			Run().
			AssertNumber("A1", 7).
			End()
	})

	t.Run("Ranges", func(t *testing.T) {
		NewWorkbookTestCase(t, "rectangle").
			Set("A1", "1").
			Set("A2", "2").
			Set("B1", "3").
			Set("B2", "4").
			Set("C1", "=SUM(A1:B2)").
			Set("C2", "=SUM(B2:A1)").
			Run().
			AssertNumber("C1", 10).
			AssertNumber("C2", 10).
			End()
	})

	t.Run("EmptyCell", func(t *testing.T) {
		NewWorkbookTestCase(t, "empty").
			Set("A1", "=B1+1").
			Run().
			AssertNumber("A1", 1).
			End()
	})

	t.Run("UnknownSheet", func(t *testing.T) {
		NewWorkbookTestCase(t, "unknown sheet").
			Set("A1", "=NoSheet!A1").
			Set("A2", "=SUM(NoSheet!A1:B2)").
			Run().
			AssertErr("A1", ErrorCodeRef).
			AssertErr("A2", ErrorCodeRef).
			End()
	})

	t.Run("CurrentPosition", func(t *testing.T) {
		NewWorkbookTestCase(t, "row and column").
			Set("C7", "=ROW()*100+COLUMN()").
			Run().
			AssertNumber("C7", 703).
			End()
	})
}

func TestWorkbookCircularReferences(t *testing.T) {
	NewWorkbookTestCase(t, "self").
		Set("A1", "=A1").
		Run().
		AssertErr("A1", ErrorCodeRef).
		End()

	NewWorkbookTestCase(t, "indirect").
		Set("A1", "=B1").
		Set("B1", "=C1").
		Set("C1", "=A1").
		Set("D1", "=A1+1").
		Run().
		AssertErr("A1", ErrorCodeRef).
		AssertErr("B1", ErrorCodeRef).
		AssertErr("C1", ErrorCodeRef).
		AssertErr("D1", ErrorCodeRef).
		End()

	NewWorkbookTestCase(t, "range holding the cell").
		Set("A1", "1").
		Set("A3", "=SUM(A1:A5)").
		Run().
		AssertErr("A3", ErrorCodeRef).
		End()

	NewWorkbookTestCase(t, "cycle broken").
		Set("A1", "=B1").
		Set("B1", "=A1").
		Run().
		AssertErr("A1", ErrorCodeRef).
		Set("B1", "5").
		Run().
		AssertNumber("A1", 5).
		End()
}

func TestWorkbookRecalculation(t *testing.T) {
	t.Run("Update", func(t *testing.T) {
		NewWorkbookTestCase(t, "update").
			Set("A1", "1").
			Set("A2", "=A1*10").
			Set("A3", "=SUM(A1:A2)").
			Run().
			AssertNumber("A3", 11).
			Set("A1", "2").
			Run().
			AssertNumber("A2", 20).
			AssertNumber("A3", 22).
			End()
	})

	t.Run("Remove", func(t *testing.T) {
		NewWorkbookTestCase(t, "remove").
			Set("A1", "5").
			Set("B1", "=A1").
			Run().
			Remove("A1").
			Run().
			AssertEmpty("A1").
			AssertEmpty("B1").
			End()
	})

	t.Run("FormulaReplacedByLiteral", func(t *testing.T) {
		tc := NewWorkbookTestCase(t, "replace").
			Set("A1", "1").
			Set("B1", "=A1+1").
			Set("C1", "=B1+1").
			Run().
			Set("B1", "10").
			Run().
			AssertNumber("C1", 11)

		addr := CellAddress{SheetID: 1, Row: 1, Column: 2}
		assert.Empty(t, tc.workbook.storage.graph.GetDirectPrecedents(addr))
		assert.Equal(t, 1, tc.workbook.storage.formulas.Count())
	})

	t.Run("ValueBeforeCalculate", func(t *testing.T) {
		tc := NewWorkbookTestCase(t, "uncomputed").
			Set("A1", "=1+1").
			AssertEmpty("A1")

		cell, err := tc.workbook.Cell("A1")
		require.NoError(t, err)
		require.Equal(t, KindFormula, cell.Kind)
		assert.Equal(t, "1+1", cell.Formula.Text)
		assert.Nil(t, cell.Formula.Cached)
	})

	t.Run("OnlyDirtyCellsRecompute", func(t *testing.T) {
		rng := &sequenceRandom{}
		tc := NewWorkbookTestCase(t, "dirty", WithEvaluatorOptions(WithRandom(rng))).
			Set("A1", "1").
			Set("B1", "=A1+1").
			Run()
		require.Empty(t, tc.workbook.storage.graph.DirtyCells())
		tc.Set("A1", "5")
		assert.Equal(t, []CellAddress{{SheetID: 1, Row: 1, Column: 2}}, tc.workbook.storage.graph.DirtyCells())
		tc.Run().AssertNumber("B1", 6).End()
	})
}

func TestWorkbookVolatileFunctions(t *testing.T) {
	rng := &sequenceRandom{next: 0.25}
	tc := NewWorkbookTestCase(t, "rand", WithEvaluatorOptions(WithRandom(rng))).
		Set("A1", "=RAND()").
		Set("B1", "=A1*8").
		Run().
		AssertNumber("A1", 0.25).
		AssertNumber("B1", 2)

	// nothing changed, but volatile cells and their dependents still recompute
	tc.Run().
		AssertNumber("A1", 0.375).
		AssertNumber("B1", 3).
		End()

	clock := &FixedClock{T: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	NewWorkbookTestCase(t, "now", WithEvaluatorOptions(WithClock(clock))).
		Set("A1", "=TODAY()").
		Set("A2", "=YEAR(A1)").
		Run().
		AssertNumber("A2", 2024).
		AssertFn("A1", func(t *testing.T, v CellValue) {
			assert.True(t, v.IsNumber())
		}).
		End()
}

func TestWorkbookSheets(t *testing.T) {
	t.Run("AddAndRemove", func(t *testing.T) {
		NewWorkbookTestCase(t, "add").
			AddSheet("Data").
			AssertSheets("Sheet1", "Data").
			AddSheet("data").
			ExpectAppError(AlreadyExists).
			AddSheet("Bad/Name").
			ExpectAppError(InvalidArgument).
			RemoveSheet("NoSheet").
			ExpectAppError(NotFound).
			RemoveSheet("DATA").
			AssertSheets("Sheet1").
			End()
	})

	t.Run("CrossSheet", func(t *testing.T) {
		NewWorkbookTestCase(t, "cross sheet").
			AddSheet("Data").
			Set("Data!A1", "10").
			Set("Data!A2", "20").
			Set("Data!A3", "30").
			Set("A1", "=SUM(Data!A1:A3)").
			Set("A2", "=data!A1").
			Run().
			AssertNumber("A1", 60).
			AssertNumber("A2", 10).
			End()
	})

	t.Run("QuotedName", func(t *testing.T) {
		NewWorkbookTestCase(t, "quoted").
			AddSheet("My Data").
			Set("'My Data'!B2", "7").
			Set("A1", "='My Data'!B2*2").
			Run().
			AssertNumber("A1", 14).
			End()
	})

	t.Run("SheetAddedLater", func(t *testing.T) {
		NewWorkbookTestCase(t, "late sheet").
			Set("A1", "=Later!A1+1").
			Run().
			AssertErr("A1", ErrorCodeRef).
			AddSheet("Later").
			Set("Later!A1", "41").
			Run().
			AssertNumber("A1", 42).
			End()
	})

	t.Run("RemoveAndReadd", func(t *testing.T) {
		NewWorkbookTestCase(t, "remove sheet").
			AddSheet("Data").
			Set("Data!A1", "3").
			Set("A1", "=Data!A1").
			Run().
			AssertNumber("A1", 3).
			RemoveSheet("Data").
			Run().
			AssertErr("A1", ErrorCodeRef).
			AddSheet("Data").
			Run().
			AssertEmpty("A1").
			Set("Data!A1", "9").
			Run().
			AssertNumber("A1", 9).
			End()
	})

	t.Run("Rename", func(t *testing.T) {
		tc := NewWorkbookTestCase(t, "rename").
			AddSheet("Data").
			Set("Data!A1", "4").
			Set("A1", "=Data!A1*2").
			Set("A2", "=1+1").
			DefineName("Input", "Data!A1").
			Set("A3", "=Input").
			Run().
			RenameSheet("Data", "Inputs").
			AssertSheets("Sheet1", "Inputs").
			Set("Inputs!A1", "5").
			Run().
			AssertNumber("A1", 10).
			AssertNumber("A3", 5)

		cell, err := tc.workbook.Cell("A1")
		require.NoError(t, err)
		assert.Equal(t, "(Inputs!A1*2)", cell.Formula.Text)
		cell, err = tc.workbook.Cell("A2")
		require.NoError(t, err)
		assert.Equal(t, "1+1", cell.Formula.Text)

		tc.RenameSheet("Inputs", "Sheet1").
			ExpectAppError(AlreadyExists).
			RenameSheet("Inputs", "INPUTS").
			AssertSheets("Sheet1", "INPUTS").
			End()
	})
}

func TestWorkbookNames(t *testing.T) {
	t.Run("RangeAndCell", func(t *testing.T) {
		NewWorkbookTestCase(t, "names").
			Set("A1", "1").
			Set("A2", "2").
			Set("A3", "3").
			Set("B1", "0.5").
			DefineName("Values", "A1:A3").
			DefineName("rate", "Sheet1!B1").
			Set("C1", "=SUM(Values)*Rate").
			Set("C2", "=Values").
			Run().
			AssertNumber("C1", 3).
			AssertErr("C2", ErrorCodeValue).
			End()
	})

	t.Run("DefinedLater", func(t *testing.T) {
		NewWorkbookTestCase(t, "late name").
			Set("A1", "5").
			Set("B1", "=Total*2").
			Run().
			AssertErr("B1", ErrorCodeName).
			DefineName("Total", "A1").
			Run().
			AssertNumber("B1", 10).
			Set("A1", "6").
			Run().
			AssertNumber("B1", 12).
			RemoveName("Total").
			Run().
			AssertErr("B1", ErrorCodeName).
			End()
	})

	t.Run("Redefined", func(t *testing.T) {
		NewWorkbookTestCase(t, "redefine").
			Set("A1", "1").
			Set("A2", "100").
			DefineName("x", "A1").
			Set("B1", "=x").
			Run().
			AssertNumber("B1", 1).
			DefineName("X", "A2").
			Run().
			AssertNumber("B1", 100).
			End()
	})

	t.Run("Invalid", func(t *testing.T) {
		NewWorkbookTestCase(t, "invalid names").
			DefineName("A1", "B1").
			ExpectAppError(InvalidArgument).
			DefineName("TRUE", "B1").
			ExpectAppError(InvalidArgument).
			DefineName("1abc", "B1").
			ExpectAppError(InvalidArgument).
			DefineName("ok", "Nowhere!B1").
			ExpectAppError(NotFound).
			DefineName("ok", "B1:").
			ExpectAppError(InvalidArgument).
			RemoveName("missing").
			ExpectAppError(NotFound).
			End()
	})
}

func TestWorkbookAddresses(t *testing.T) {
	wb := NewWorkbook()
	err := wb.Set("A1", "1")
	assert.Equal(t, NotFound, ErrorCodeOf(err), "no sheets yet")

	require.NoError(t, wb.AddSheet("Sheet1"))
	assert.Equal(t, InvalidArgument, ErrorCodeOf(wb.Set("not an address", "1")))
	assert.Equal(t, InvalidArgument, ErrorCodeOf(wb.Set("A0", "1")))
	assert.Equal(t, OutOfRange, ErrorCodeOf(wb.SetValue("Sheet1", 0, 1, IntValue(1))))
	assert.Equal(t, OK, ErrorCodeOf(nil))
	assert.Equal(t, Unknown, ErrorCodeOf(fmt.Errorf("plain")))
}

func TestWorkbookSetValue(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddSheet("Sheet1"))
	require.NoError(t, wb.SetValue("", 1, 1, FloatValue(2.5)))
	require.NoError(t, wb.SetValue("Sheet1", 1, 2, FormulaValue(nil, "A1*4", nil)))
	require.NoError(t, wb.SetValue("sheet1", 1, 3, FormulaValue(MustParse("Sheet1", "B1+1"), "B1+1", nil)))
	require.NoError(t, wb.Calculate(context.Background()))

	v, err := wb.Get("C1")
	require.NoError(t, err)
	assert.True(t, v.Equal(IntValue(11)) || v.Equal(FloatValue(11)), "got %v", v)
	assert.Equal(t, []CellRef{
		{Sheet: "Sheet1", Row: 1, Col: 2},
		{Sheet: "Sheet1", Row: 1, Col: 3},
	}, wb.FormulaCells())
}

func TestWorkbookEvaluateFormula(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddSheet("Sheet1"))
	require.NoError(t, wb.Set("A1", "2"))
	require.NoError(t, wb.Set("A2", "=A1*3"))

	// dirty precedents are computed on demand
	v, err := wb.EvaluateFormula(context.Background(), "", "=A2+1")
	require.NoError(t, err)
	got, _ := ToNumber(v)
	assert.Equal(t, 7.0, got)

	_, err = wb.EvaluateFormula(context.Background(), "", "=SUM(")
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, err = wb.EvaluateFormula(context.Background(), "Missing", "=1")
	assert.Equal(t, NotFound, ErrorCodeOf(err))
}

type fakeFetcher struct {
	body string
	err  error
	urls []string
}

func (f *fakeFetcher) HTTPFetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

func TestWorkbookWebService(t *testing.T) {
	fetcher := &fakeFetcher{body: "42"}
	NewWorkbookTestCase(t, "webservice",
		WithHTTPFetcher(fetcher),
		WithEvaluatorOptions(WithWebFunctions(true))).
		Set("A1", `=WEBSERVICE("https://example.com/answer")`).
		Run().
		AssertText("A1", "42").
		End()
	assert.Equal(t, []string{"https://example.com/answer"}, fetcher.urls)

	wb := NewWorkbook()
	_, err := wb.HTTPFetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, errWebDisabled)
}

func TestWorkbookCalculateCancelled(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.AddSheet("Sheet1"))
	require.NoError(t, wb.Set("A1", "=1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wb.Calculate(ctx), context.Canceled)
}

func TestRunnableWorkbook(t *testing.T) {
	var lines []string
	printLn := func(s string) { lines = append(lines, s) }

	wb, err := NewRunnableWorkbook(printLn).
		AddSheet("Sheet1").
		SetBatch(map[string]string{"A1": "10", "A2": "=A1*2"}).
		Calculate().
		Log("A2").
		Log("B9").
		Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"A2: 20", "B9: <empty>"}, lines)

	v, err := wb.Get("A2")
	require.NoError(t, err)
	assert.True(t, v.IsNumber())

	r := NewRunnableWorkbook(printLn).
		WithSheet("Sheet1").
		WithSheet("sheet1").
		RemoveSheet("Nope").
		Set("A1", "1")
	assert.Equal(t, NotFound, ErrorCodeOf(r.Error()))
	assert.Nil(t, r.Values("A1"))

	r.Reset().
		ForEach(1, 2, 1, 2, func(address string, r *RunnableWorkbook) {
			r.Set(address, "1")
		}).
		Set("C1", "=SUM(A1:B2)").
		Calculate()
	require.NoError(t, r.Error())
	_, values := r.GetBatch("C1", "A2")
	n, _ := ToNumber(values["C1"])
	assert.Equal(t, 4.0, n)

	recovered := NewRunnableWorkbook(printLn).
		Set("A1", "1").
		OnError(func(err error) error {
			if ErrorCodeOf(err) == NotFound {
				return nil
			}
			return err
		})
	assert.NoError(t, recovered.Error())
	assert.Panics(t, func() { NewRunnableWorkbook(printLn).RemoveSheet("x").Must() })
}
