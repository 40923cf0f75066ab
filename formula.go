package formula

import (
	"slices"
	"strings"
)

// FormulaKey is the canonical rendering of a parsed formula. References
// render with their sheet, so equal keys mean equal behavior wherever the
// formula lives.
type FormulaKey string

// FormulaEntry is one interned formula shared by every cell holding it.
type FormulaEntry struct {
	Expr     Expr
	Text     string   // text of the first cell that interned it
	Volatile bool     // calls RAND, NOW, TODAY or RANDBETWEEN
	Names    []string // upper-cased names it references
}

// FormulaTable interns parsed formulas so identical formulas share one
// Expr, and indexes which cells hold which formula.
type FormulaTable struct {
	index   map[FormulaKey]uint32
	entries map[uint32]*FormulaEntry
	refs    map[uint32]int

	cellsUsingFormula map[uint32]map[CellAddress]struct{}
	formulaAtCell     map[CellAddress]uint32

	formulasUsingName map[string]map[uint32]struct{} // upper-cased name -> formula IDs

	nextID uint32
}

func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		index:             make(map[FormulaKey]uint32),
		entries:           make(map[uint32]*FormulaEntry),
		refs:              make(map[uint32]int),
		cellsUsingFormula: make(map[uint32]map[CellAddress]struct{}),
		formulaAtCell:     make(map[CellAddress]uint32),
		formulasUsingName: make(map[string]map[uint32]struct{}),
		nextID:            1, // 0 means no formula
	}
}

func keyOf(expr Expr) FormulaKey {
	return FormulaKey(expr.ToString())
}

// Intern stores expr for cell, replacing whatever formula the cell held.
// created reports whether the entry is new, so callers can take the
// references its names need exactly once.
func (ft *FormulaTable) Intern(expr Expr, text string, cell CellAddress) (id uint32, created bool) {
	ft.Release(cell)

	key := keyOf(expr)
	id, ok := ft.index[key]
	if !ok {
		id = ft.nextID
		ft.nextID++
		ft.index[key] = id
		ft.entries[id] = newFormulaEntry(expr, text)
		for _, name := range ft.entries[id].Names {
			if ft.formulasUsingName[name] == nil {
				ft.formulasUsingName[name] = make(map[uint32]struct{})
			}
			ft.formulasUsingName[name][id] = struct{}{}
		}
		created = true
	}
	ft.refs[id]++
	if ft.cellsUsingFormula[id] == nil {
		ft.cellsUsingFormula[id] = make(map[CellAddress]struct{})
	}
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id
	return id, created
}

func newFormulaEntry(expr Expr, text string) *FormulaEntry {
	entry := &FormulaEntry{Expr: expr, Text: text}
	for _, name := range FunctionNames(expr) {
		if isVolatileFunction(name) {
			entry.Volatile = true
			break
		}
	}
	for _, ref := range References(expr) {
		if n, ok := ref.(*NameExpr); ok {
			folded := strings.ToUpper(n.Name)
			if !slices.Contains(entry.Names, folded) {
				entry.Names = append(entry.Names, folded)
			}
		}
	}
	return entry
}

// Release drops the formula held by cell, if any. The returned entry is
// non-nil only when that was the last reference and the formula is gone.
func (ft *FormulaTable) Release(cell CellAddress) *FormulaEntry {
	id, ok := ft.formulaAtCell[cell]
	if !ok {
		return nil
	}
	delete(ft.formulaAtCell, cell)
	if cells, ok := ft.cellsUsingFormula[id]; ok {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(ft.cellsUsingFormula, id)
		}
	}
	ft.refs[id]--
	if ft.refs[id] > 0 {
		return nil
	}
	return ft.removeFormula(id)
}

func (ft *FormulaTable) removeFormula(id uint32) *FormulaEntry {
	entry := ft.entries[id]
	delete(ft.index, keyOf(entry.Expr))
	delete(ft.entries, id)
	delete(ft.refs, id)
	delete(ft.cellsUsingFormula, id)
	for _, name := range entry.Names {
		if formulas, ok := ft.formulasUsingName[name]; ok {
			delete(formulas, id)
			if len(formulas) == 0 {
				delete(ft.formulasUsingName, name)
			}
		}
	}
	return entry
}

func (ft *FormulaTable) Get(id uint32) (*FormulaEntry, bool) {
	entry, ok := ft.entries[id]
	return entry, ok
}

// At returns the formula held by cell.
func (ft *FormulaTable) At(cell CellAddress) (uint32, *FormulaEntry, bool) {
	id, ok := ft.formulaAtCell[cell]
	if !ok {
		return 0, nil, false
	}
	return id, ft.entries[id], true
}

// CellsUsingName returns, in address order, every cell whose formula
// references name.
func (ft *FormulaTable) CellsUsingName(name string) []CellAddress {
	var cells []CellAddress
	for id := range ft.formulasUsingName[strings.ToUpper(name)] {
		for cell := range ft.cellsUsingFormula[id] {
			cells = append(cells, cell)
		}
	}
	slices.SortFunc(cells, compareAddresses)
	return cells
}

// Cells returns every formula cell in address order.
func (ft *FormulaTable) Cells() []CellAddress {
	cells := make([]CellAddress, 0, len(ft.formulaAtCell))
	for cell := range ft.formulaAtCell {
		cells = append(cells, cell)
	}
	slices.SortFunc(cells, compareAddresses)
	return cells
}

func (ft *FormulaTable) ReferenceCount(id uint32) int {
	return ft.refs[id]
}

// Count is the number of distinct formulas.
func (ft *FormulaTable) Count() int {
	return len(ft.entries)
}
