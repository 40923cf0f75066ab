package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorksheet(t *testing.T) (*Worksheet, *storage) {
	t.Helper()
	st := newStorage()
	ws := newWorksheet(st)
	st.sheets.Define("Sheet1", ws)
	return ws, st
}

func TestWorksheetValues(t *testing.T) {
	ws, st := newTestWorksheet(t)

	values := []CellValue{
		IntValue(7),
		FloatValue(2.5),
		BoolValue(true),
		StringValue("hello"),
		DateTimeValue(45000.5),
		ErrorValue(ErrorCodeDiv0, "Division by zero"),
	}
	for i, v := range values {
		ws.SetValue(uint32(i+1), 1, v)
	}
	for i, want := range values {
		got, ok := ws.Get(uint32(i+1), 1)
		require.True(t, ok)
		assert.True(t, want.Equal(got), "row %d: got %v want %v", i+1, got, want)
	}

	assert.Equal(t, len(values), ws.CellCount())
	assert.Equal(t, uint32(1), ws.CountByKind(KindString))
	assert.Equal(t, 2, st.strings.Count(), "string text and error message")

	ws.SetValue(4, 1, IntValue(1))
	assert.Equal(t, uint32(0), ws.CountByKind(KindString))
	assert.Equal(t, uint32(2), ws.CountByKind(KindInt))
	assert.Equal(t, 1, st.strings.Count())

	_, ok := ws.Get(99, 99)
	assert.False(t, ok)
}

func TestWorksheetRemoveFreesChunk(t *testing.T) {
	ws, _ := newTestWorksheet(t)
	ws.SetValue(300, 300, IntValue(1))
	require.Len(t, ws.chunks, 1)

	ws.SetValue(300, 300, EmptyValue())
	assert.Empty(t, ws.chunks)
	assert.Equal(t, 0, ws.CellCount())
	ws.Remove(300, 300)
	assert.Equal(t, 0, ws.CellCount())
}

func TestWorksheetFormulaResults(t *testing.T) {
	ws, st := newTestWorksheet(t)
	addr := CellAddress{SheetID: ws.ID(), Row: 2, Column: 3}
	expr := MustParse("Sheet1", "=A1*2")
	id, created := st.formulas.Intern(expr, "A1*2", addr)
	require.True(t, created)

	ws.SetValue(2, 3, StringValue("old"))
	ws.SetFormula(2, 3, id)
	assert.Equal(t, id, ws.FormulaID(2, 3))
	assert.Equal(t, uint32(1), ws.CountByKind(KindFormula))
	assert.Equal(t, uint32(0), ws.CountByKind(KindString))

	v, ok := ws.Get(2, 3)
	require.True(t, ok)
	require.Equal(t, KindFormula, v.Kind)
	assert.Nil(t, v.Formula.Cached)
	assert.Equal(t, "A1*2", v.Formula.Text)

	ws.SetResult(2, 3, StringValue("computed"))
	v, _ = ws.Get(2, 3)
	require.NotNil(t, v.Formula.Cached)
	assert.Equal(t, StringValue("computed"), *v.Formula.Cached)
	result, ok := ws.Result(2, 3)
	assert.True(t, ok)
	assert.Equal(t, "computed", result.Str)

	// literals clear the formula and its result
	ws.SetValue(2, 3, IntValue(5))
	assert.Equal(t, uint32(0), ws.FormulaID(2, 3))
	_, ok = ws.Result(2, 3)
	assert.False(t, ok)
	assert.Equal(t, 0, st.strings.Count())

	// results are ignored on literal cells
	ws.SetResult(2, 3, IntValue(9))
	v, _ = ws.Get(2, 3)
	assert.Equal(t, IntValue(5), v)
}

func TestWorksheetPositions(t *testing.T) {
	ws, _ := newTestWorksheet(t)
	ws.SetValue(3, 1, IntValue(1))
	ws.SetValue(1, 2, IntValue(1))
	ws.SetValue(1, 1, IntValue(1))
	ws.SetValue(700, 2, IntValue(1))

	assert.Equal(t, []Position{{1, 1}, {1, 2}, {3, 1}, {700, 2}}, ws.Positions())
}

func TestWorksheetTable(t *testing.T) {
	wt := NewWorksheetTable()

	// referenced before it exists
	ref := wt.Intern("data")
	assert.False(t, wt.IsDefined("Data"))
	assert.Equal(t, []string{"data"}, wt.Undefined())

	ws := &Worksheet{}
	id := wt.Define("Data", ws)
	assert.Equal(t, ref, id, "placeholder ID is kept")
	assert.Equal(t, id, ws.ID())
	name, _ := wt.Name(id)
	assert.Equal(t, "Data", name)

	wt.Define("Other", &Worksheet{})
	assert.Equal(t, []string{"Data", "Other"}, wt.Names())

	wt.Rename(id, "Inputs")
	_, ok := wt.ByName("data")
	assert.False(t, ok)
	got, ok := wt.ByName("INPUTS")
	assert.True(t, ok)
	assert.Same(t, ws, got)

	// still referenced, so the ID outlives the sheet
	wt.Undefine(id)
	assert.False(t, wt.IsDefined("Inputs"))
	_, ok = wt.ID("Inputs")
	assert.True(t, ok)
	assert.Equal(t, 1, wt.ReferenceCount(id))

	wt.Release(id)
	_, ok = wt.ID("Inputs")
	assert.False(t, ok)
	assert.Equal(t, []string{"Other"}, wt.Names())
}

func TestStringTable(t *testing.T) {
	st := NewStringTable()
	a := st.Intern("a")
	assert.Equal(t, a, st.Intern("a"))
	b := st.Intern("b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 3, st.References())

	st.Release(a)
	s, ok := st.Get(a)
	assert.True(t, ok)
	assert.Equal(t, "a", s)

	st.Release(a)
	_, ok = st.Get(a)
	assert.False(t, ok)
	assert.Equal(t, 1, st.Count())
	st.Release(a)
	assert.Equal(t, 1, st.References())
}

func TestFormulaTable(t *testing.T) {
	ft := NewFormulaTable()
	a1 := CellAddress{SheetID: 1, Row: 1, Column: 1}
	a2 := CellAddress{SheetID: 1, Row: 2, Column: 1}

	id1, created := ft.Intern(MustParse("Sheet1", "=SUM(Totals)+RAND()"), "SUM(Totals)+RAND()", a1)
	require.True(t, created)
	id2, created := ft.Intern(MustParse("Sheet1", "=sum(Totals) + rand()"), "sum(Totals) + rand()", a2)
	assert.False(t, created)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 2, ft.ReferenceCount(id1))

	entry, _ := ft.Get(id1)
	assert.True(t, entry.Volatile)
	assert.Equal(t, []string{"TOTALS"}, entry.Names)
	assert.Equal(t, "SUM(Totals)+RAND()", entry.Text)
	assert.Equal(t, []CellAddress{a1, a2}, ft.CellsUsingName("totals"))

	// reinterning a cell releases what it held
	_, created = ft.Intern(MustParse("Sheet1", "=1"), "1", a1)
	assert.True(t, created)
	assert.Equal(t, []CellAddress{a2}, ft.CellsUsingName("Totals"))
	assert.Equal(t, 2, ft.Count())

	removed := ft.Release(a2)
	require.NotNil(t, removed)
	assert.Equal(t, []string{"TOTALS"}, removed.Names)
	assert.Empty(t, ft.CellsUsingName("Totals"))
	assert.Nil(t, ft.Release(a2))

	_, _, ok := ft.At(a1)
	assert.True(t, ok)
	assert.Equal(t, []CellAddress{a1}, ft.Cells())
}

func TestNamedRangeTable(t *testing.T) {
	nt := NewNamedRangeTable()
	nt.Intern("Sales")
	assert.Equal(t, []string{"Sales"}, nt.Undefined())

	nt.Define("SALES", RangeRef{Sheet: "Data", StartRow: 9, StartCol: 2, EndRow: 1, EndCol: 1})
	r, ok := nt.Lookup("sales")
	require.True(t, ok)
	assert.Equal(t, RangeRef{Sheet: "Data", StartRow: 1, StartCol: 1, EndRow: 9, EndCol: 2}, r)
	assert.Equal(t, []string{"SALES"}, nt.Defined())
	assert.Empty(t, nt.Undefined())

	nt.renameSheet("data", "Inputs")
	r, _ = nt.Lookup("Sales")
	assert.Equal(t, "Inputs", r.Sheet)

	assert.True(t, nt.Undefine("Sales"))
	assert.False(t, nt.Undefine("Sales"))
	assert.Equal(t, 1, nt.ReferenceCount("sales"))
	assert.Equal(t, []string{"SALES"}, nt.Undefined())

	nt.Release("Sales")
	assert.Empty(t, nt.Undefined())
	assert.False(t, nt.IsDefined("Sales"))
}

func TestCellRangeAddresses(t *testing.T) {
	cr := CellRange{SheetID: 2, Ref: RangeRef{StartRow: 2, StartCol: 2, EndRow: 1, EndCol: 1}}
	var got []CellAddress
	for addr := range cr.Addresses() {
		got = append(got, addr)
	}
	assert.Equal(t, []CellAddress{
		{SheetID: 2, Row: 1, Column: 1},
		{SheetID: 2, Row: 1, Column: 2},
		{SheetID: 2, Row: 2, Column: 1},
		{SheetID: 2, Row: 2, Column: 2},
	}, got)
}
