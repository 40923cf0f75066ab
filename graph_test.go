package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(row, col uint32) CellAddress {
	return CellAddress{SheetID: 1, Row: row, Column: col}
}

func TestDependencyGraphEdges(t *testing.T) {
	dg := NewDependencyGraph()
	a1, b1, c1 := cell(1, 1), cell(1, 2), cell(1, 3)

	dg.SetFormula(b1, true)
	dg.AddCellDependency(b1, a1)
	dg.SetFormula(c1, true)
	dg.AddCellDependency(c1, b1)

	assert.Equal(t, []CellAddress{b1}, dg.GetDirectDependents(a1))
	assert.Equal(t, []CellAddress{a1}, dg.GetDirectPrecedents(b1))
	assert.Equal(t, []CellAddress{b1, c1}, dg.GetAffectedCells(a1))
	assert.False(t, dg.HasCycle())

	dg.ClearDependencies(b1)
	assert.Empty(t, dg.GetDirectDependents(a1))
	_, ok := dg.Node(a1)
	assert.False(t, ok, "precedent without edges is dropped")
	_, ok = dg.Node(b1)
	assert.True(t, ok, "formula node stays")
}

func TestDependencyGraphRanges(t *testing.T) {
	dg := NewDependencyGraph()
	sum := cell(10, 1)
	r := RangeAddress{SheetID: 1, StartRow: 1, StartColumn: 1, EndRow: 5, EndColumn: 2}

	dg.SetFormula(sum, true)
	dg.AddRangeDependency(sum, r)
	dg.SetFormula(cell(11, 1), true)
	dg.AddCellDependency(cell(11, 1), sum)

	assert.Equal(t, []CellAddress{sum, cell(11, 1)}, dg.GetAffectedCells(cell(3, 2)))
	assert.Empty(t, dg.GetAffectedCells(cell(6, 1)))
	assert.Equal(t, 1, dg.RangeObserverCount())

	dg.ClearDependencies(sum)
	assert.Equal(t, 0, dg.RangeObserverCount())
}

func TestDependencyGraphDirty(t *testing.T) {
	dg := NewDependencyGraph()
	a1, b1, c1 := cell(1, 1), cell(1, 2), cell(1, 3)
	dg.SetFormula(b1, true)
	dg.AddCellDependency(b1, a1)
	dg.SetFormula(c1, true)
	dg.AddCellDependency(c1, b1)

	dg.MarkAffectedDirty(a1)
	assert.Equal(t, []CellAddress{b1, c1}, dg.DirtyCells())
	node, _ := dg.Node(b1)
	assert.True(t, node.IsDirty)

	dg.ClearDirty(b1)
	assert.False(t, dg.IsDirty(b1))
	assert.True(t, dg.IsDirty(c1))

	dg.ClearAllDirty()
	assert.Empty(t, dg.DirtyCells())
	node, _ = dg.Node(c1)
	assert.False(t, node.IsDirty)
}

func TestDependencyGraphVolatile(t *testing.T) {
	dg := NewDependencyGraph()
	rnd, user := cell(1, 1), cell(2, 1)
	dg.SetFormula(rnd, true)
	dg.MarkVolatile(rnd)
	dg.SetFormula(user, true)
	dg.AddCellDependency(user, rnd)

	dg.MarkAllVolatileDirty()
	assert.Equal(t, []CellAddress{rnd, user}, dg.DirtyCells())

	dg.ClearDependencies(rnd)
	assert.False(t, dg.IsVolatile(rnd))
}

func TestDependencyGraphSheetDirty(t *testing.T) {
	dg := NewDependencyGraph()
	reader := cell(1, 1)
	other := CellAddress{SheetID: 2, Row: 4, Column: 4}
	sumOther := cell(2, 1)

	dg.SetFormula(reader, true)
	dg.AddCellDependency(reader, other)
	dg.SetFormula(sumOther, true)
	dg.AddRangeDependency(sumOther, RangeAddress{SheetID: 2, StartRow: 1, StartColumn: 1, EndRow: 2, EndColumn: 2})

	dg.MarkSheetDirty(2)
	assert.Equal(t, []CellAddress{reader, sumOther}, dg.DirtyCells())
}

func TestDependencyGraphCycle(t *testing.T) {
	dg := NewDependencyGraph()
	a1, b1 := cell(1, 1), cell(1, 2)
	dg.AddCellDependency(a1, b1)
	dg.AddCellDependency(b1, a1)
	assert.True(t, dg.HasCycle())

	// affected cells never include the start even around a cycle
	assert.Equal(t, []CellAddress{b1}, dg.GetAffectedCells(a1))

	dg.RemoveNode(b1)
	require.False(t, dg.HasCycle())
	assert.Empty(t, dg.GetDirectPrecedents(a1))
}

func TestRangeAddressContains(t *testing.T) {
	r := CellRange{SheetID: 3, Ref: RangeRef{StartRow: 4, StartCol: 3, EndRow: 2, EndCol: 1}}.Bounds()
	assert.Equal(t, RangeAddress{SheetID: 3, StartRow: 2, StartColumn: 1, EndRow: 4, EndColumn: 3}, r)
	assert.True(t, r.Contains(CellAddress{SheetID: 3, Row: 3, Column: 2}))
	assert.False(t, r.Contains(CellAddress{SheetID: 1, Row: 3, Column: 2}))
	assert.False(t, r.Contains(CellAddress{SheetID: 3, Row: 5, Column: 2}))
}
