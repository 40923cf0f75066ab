package formula

import (
	"cmp"
	"slices"
)

// CellAddress identifies a cell of the workbook by sheet ID (1-based row
// and column). Sheet IDs survive renames, so the graph never rekeys.
type CellAddress struct {
	SheetID uint32
	Row     uint32
	Column  uint32
}

// RangeAddress is a normalized rectangle on one sheet.
type RangeAddress struct {
	SheetID     uint32
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// Contains reports whether the cell lies inside the range.
func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.SheetID == r.SheetID &&
		addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

func compareAddresses(a, b CellAddress) int {
	if c := cmp.Compare(a.SheetID, b.SheetID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Column, b.Column)
}

// DependencyNode is a cell that either holds a formula or is referenced
// by one.
type DependencyNode struct {
	Address CellAddress

	CellPrecedents  map[CellAddress]*DependencyNode // cells this cell reads
	CellDependents  map[CellAddress]*DependencyNode // cells that read this cell
	RangePrecedents map[RangeAddress]struct{}       // ranges this cell reads

	HasFormula bool
	IsDirty    bool
}

// DependencyGraph tracks which formula cells read which cells and ranges,
// plus the cells that need recalculation.
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> formula cells reading it
	dirtySet       map[CellAddress]struct{}
	volatileCells  map[CellAddress]struct{} // cells calling RAND, NOW, TODAY or RANDBETWEEN
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
		dirtySet:       make(map[CellAddress]struct{}),
		volatileCells:  make(map[CellAddress]struct{}),
	}
}

func (dg *DependencyGraph) getOrCreateNode(addr CellAddress) *DependencyNode {
	if node, ok := dg.nodes[addr]; ok {
		return node
	}
	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]*DependencyNode),
		CellDependents:  make(map[CellAddress]*DependencyNode),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

func (dg *DependencyGraph) Node(addr CellAddress) (*DependencyNode, bool) {
	node, ok := dg.nodes[addr]
	return node, ok
}

// SetFormula records whether addr holds a formula. A cell that loses its
// formula keeps its node only while other formulas still read it.
func (dg *DependencyGraph) SetFormula(addr CellAddress, hasFormula bool) {
	if hasFormula {
		dg.getOrCreateNode(addr).HasFormula = true
		return
	}
	if node, ok := dg.nodes[addr]; ok {
		node.HasFormula = false
		dg.cleanupNodeIfEmpty(addr)
	}
}

// RemoveNode drops a cell and every edge touching it.
func (dg *DependencyGraph) RemoveNode(addr CellAddress) {
	node, ok := dg.nodes[addr]
	if !ok {
		return
	}
	for precedent, pn := range node.CellPrecedents {
		delete(pn.CellDependents, addr)
		dg.cleanupNodeIfEmpty(precedent)
	}
	for _, dn := range node.CellDependents {
		delete(dn.CellPrecedents, addr)
	}
	for r := range node.RangePrecedents {
		dg.removeObserver(r, addr)
	}
	delete(dg.dirtySet, addr)
	delete(dg.volatileCells, addr)
	delete(dg.nodes, addr)
}

func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, ok := dg.nodes[addr]
	if !ok {
		return
	}
	if node.HasFormula ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, addr)
	delete(dg.dirtySet, addr)
}

// AddCellDependency records that from reads to.
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.getOrCreateNode(from)
	toNode := dg.getOrCreateNode(to)
	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// AddRangeDependency records that from reads every cell of r.
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, r RangeAddress) {
	node := dg.getOrCreateNode(from)
	node.RangePrecedents[r] = struct{}{}
	if dg.rangeObservers[r] == nil {
		dg.rangeObservers[r] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[r][from] = struct{}{}
}

func (dg *DependencyGraph) removeObserver(r RangeAddress, addr CellAddress) {
	observers, ok := dg.rangeObservers[r]
	if !ok {
		return
	}
	delete(observers, addr)
	if len(observers) == 0 {
		delete(dg.rangeObservers, r)
	}
}

// ClearDependencies removes every outgoing edge of addr along with its
// volatile mark. Incoming edges stay.
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, ok := dg.nodes[addr]
	if !ok {
		return
	}
	for precedent, pn := range node.CellPrecedents {
		delete(pn.CellDependents, addr)
		delete(node.CellPrecedents, precedent)
		dg.cleanupNodeIfEmpty(precedent)
	}
	for r := range node.RangePrecedents {
		delete(node.RangePrecedents, r)
		dg.removeObserver(r, addr)
	}
	delete(dg.volatileCells, addr)
	dg.cleanupNodeIfEmpty(addr)
}

func (dg *DependencyGraph) MarkDirty(addr CellAddress) {
	dg.dirtySet[addr] = struct{}{}
	if node, ok := dg.nodes[addr]; ok {
		node.IsDirty = true
	}
}

func (dg *DependencyGraph) ClearDirty(addr CellAddress) {
	delete(dg.dirtySet, addr)
	if node, ok := dg.nodes[addr]; ok {
		node.IsDirty = false
	}
}

func (dg *DependencyGraph) IsDirty(addr CellAddress) bool {
	_, ok := dg.dirtySet[addr]
	return ok
}

// DirtyCells returns the dirty set ordered by sheet, row, then column.
func (dg *DependencyGraph) DirtyCells() []CellAddress {
	cells := make([]CellAddress, 0, len(dg.dirtySet))
	for addr := range dg.dirtySet {
		cells = append(cells, addr)
	}
	slices.SortFunc(cells, compareAddresses)
	return cells
}

func (dg *DependencyGraph) ClearAllDirty() {
	for addr := range dg.dirtySet {
		if node, ok := dg.nodes[addr]; ok {
			node.IsDirty = false
		}
	}
	dg.dirtySet = make(map[CellAddress]struct{})
}

// MarkAffectedDirty marks every formula that reads addr, directly, through
// a range, or transitively through other formulas.
func (dg *DependencyGraph) MarkAffectedDirty(addr CellAddress) {
	for _, affected := range dg.GetAffectedCells(addr) {
		dg.MarkDirty(affected)
	}
}

// MarkSheetDirty marks every formula reading any cell of the sheet, used
// when a sheet appears or disappears.
func (dg *DependencyGraph) MarkSheetDirty(sheetID uint32) {
	var touched []CellAddress
	for addr, node := range dg.nodes {
		if addr.SheetID == sheetID && len(node.CellDependents) > 0 {
			touched = append(touched, addr)
		}
	}
	for r, observers := range dg.rangeObservers {
		if r.SheetID != sheetID {
			continue
		}
		for observer := range observers {
			dg.MarkDirty(observer)
			touched = append(touched, observer)
		}
	}
	for _, addr := range touched {
		dg.MarkAffectedDirty(addr)
	}
}

func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	node, ok := dg.nodes[addr]
	if !ok {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellDependents))
	for dependent := range node.CellDependents {
		result = append(result, dependent)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

func (dg *DependencyGraph) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, ok := dg.nodes[addr]
	if !ok {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellPrecedents))
	for precedent := range node.CellPrecedents {
		result = append(result, precedent)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

func (dg *DependencyGraph) GetRangePrecedents(addr CellAddress) []RangeAddress {
	node, ok := dg.nodes[addr]
	if !ok {
		return nil
	}
	result := make([]RangeAddress, 0, len(node.RangePrecedents))
	for r := range node.RangePrecedents {
		result = append(result, r)
	}
	return result
}

// GetAffectedCells returns every cell whose value may change when addr
// changes: cell dependents, observers of ranges holding addr, and their
// own dependents, transitively.
func (dg *DependencyGraph) GetAffectedCells(addr CellAddress) []CellAddress {
	visited := map[CellAddress]struct{}{addr: {}}
	queue := []CellAddress{addr}
	var result []CellAddress
	visit := func(next CellAddress) {
		if _, seen := visited[next]; seen {
			return
		}
		visited[next] = struct{}{}
		result = append(result, next)
		queue = append(queue, next)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if node, ok := dg.nodes[current]; ok {
			for dependent := range node.CellDependents {
				visit(dependent)
			}
		}
		for r, observers := range dg.rangeObservers {
			if !r.Contains(current) {
				continue
			}
			for observer := range observers {
				visit(observer)
			}
		}
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// HasCycle reports whether the cell edges contain a cycle. Range edges
// are not followed.
func (dg *DependencyGraph) HasCycle() bool {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[CellAddress]int)
	var visit func(addr CellAddress) bool
	visit = func(addr CellAddress) bool {
		switch state[addr] {
		case visiting:
			return true
		case done:
			return false
		}
		state[addr] = visiting
		if node, ok := dg.nodes[addr]; ok {
			for precedent := range node.CellPrecedents {
				if visit(precedent) {
					return true
				}
			}
		}
		state[addr] = done
		return false
	}
	for addr := range dg.nodes {
		if visit(addr) {
			return true
		}
	}
	return false
}

func (dg *DependencyGraph) MarkVolatile(addr CellAddress) {
	dg.volatileCells[addr] = struct{}{}
}

func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, ok := dg.volatileCells[addr]
	return ok
}

// MarkAllVolatileDirty schedules every volatile cell, and everything that
// reads one, for recalculation.
func (dg *DependencyGraph) MarkAllVolatileDirty() {
	for addr := range dg.volatileCells {
		dg.MarkDirty(addr)
		dg.MarkAffectedDirty(addr)
	}
}

func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}
