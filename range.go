package formula

import (
	"iter"
	"slices"
	"strings"
)

// NamedRangeTable maps workbook names to ranges. Formulas may reference a
// name before it is defined; such names are tracked as undefined until a
// definition arrives or the last reference goes away.
type NamedRangeTable struct {
	display map[string]string   // folded name -> name as first written
	defined map[string]RangeRef // folded name -> target
	refs    map[string]int      // folded name -> formulas referencing it
}

func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		display: make(map[string]string),
		defined: make(map[string]RangeRef),
		refs:    make(map[string]int),
	}
}

func foldName(name string) string {
	return strings.ToUpper(name)
}

// Intern adds a reference to name, defined or not.
func (nt *NamedRangeTable) Intern(name string) {
	key := foldName(name)
	if _, ok := nt.display[key]; !ok {
		nt.display[key] = name
	}
	nt.refs[key]++
}

// Release drops a reference. An undefined name with no references left
// is forgotten.
func (nt *NamedRangeTable) Release(name string) {
	key := foldName(name)
	if _, ok := nt.display[key]; !ok {
		return
	}
	nt.refs[key]--
	if nt.refs[key] > 0 {
		return
	}
	delete(nt.refs, key)
	if _, ok := nt.defined[key]; !ok {
		delete(nt.display, key)
	}
}

// Define binds name to target, replacing any earlier definition.
func (nt *NamedRangeTable) Define(name string, target RangeRef) {
	key := foldName(name)
	nt.display[key] = name
	nt.defined[key] = target.Normalized()
}

// Undefine removes the definition. The name stays known while formulas
// still reference it. It reports whether a definition existed.
func (nt *NamedRangeTable) Undefine(name string) bool {
	key := foldName(name)
	if _, ok := nt.defined[key]; !ok {
		return false
	}
	delete(nt.defined, key)
	if nt.refs[key] <= 0 {
		delete(nt.display, key)
		delete(nt.refs, key)
	}
	return true
}

func (nt *NamedRangeTable) Lookup(name string) (RangeRef, bool) {
	r, ok := nt.defined[foldName(name)]
	return r, ok
}

func (nt *NamedRangeTable) IsDefined(name string) bool {
	_, ok := nt.defined[foldName(name)]
	return ok
}

func (nt *NamedRangeTable) ReferenceCount(name string) int {
	return nt.refs[foldName(name)]
}

// Defined returns the defined names, sorted.
func (nt *NamedRangeTable) Defined() []string {
	names := make([]string, 0, len(nt.defined))
	for key := range nt.defined {
		names = append(names, nt.display[key])
	}
	slices.Sort(names)
	return names
}

// Undefined returns names that formulas reference but nobody defined.
func (nt *NamedRangeTable) Undefined() []string {
	var names []string
	for key, name := range nt.display {
		if _, ok := nt.defined[key]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// renameSheet retargets every definition on sheet from to sheet to.
func (nt *NamedRangeTable) renameSheet(from, to string) {
	for key, r := range nt.defined {
		if strings.EqualFold(r.Sheet, from) {
			r.Sheet = to
			nt.defined[key] = r
		}
	}
}

// CellRange walks a normalized range of one sheet in row-major order.
type CellRange struct {
	SheetID uint32
	Ref     RangeRef
}

func (r CellRange) Bounds() RangeAddress {
	n := r.Ref.Normalized()
	return RangeAddress{
		SheetID:     r.SheetID,
		StartRow:    n.StartRow,
		StartColumn: n.StartCol,
		EndRow:      n.EndRow,
		EndColumn:   n.EndCol,
	}
}

// Addresses yields every cell of the range, empty ones included.
func (r CellRange) Addresses() iter.Seq[CellAddress] {
	b := r.Bounds()
	return func(yield func(CellAddress) bool) {
		for row := b.StartRow; row <= b.EndRow; row++ {
			for col := b.StartColumn; col <= b.EndColumn; col++ {
				if !yield(CellAddress{SheetID: b.SheetID, Row: row, Column: col}) {
					return
				}
			}
		}
	}
}
