package formula

import (
	"cmp"
	"slices"
	"strings"
)

// WorksheetTable maps sheet names to stable IDs. A formula may reference
// a sheet before it exists: the name is interned as undefined and keeps
// its ID when the sheet is later added. Names compare case-insensitively.
type WorksheetTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> name as written

	defined map[uint32]*Worksheet
	order   []uint32 // defined sheets in insertion order

	refCounts map[uint32]int // formula references per ID
	nextID    uint32
}

func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		nameToID:  make(map[string]uint32),
		idToName:  make(map[uint32]string),
		defined:   make(map[uint32]*Worksheet),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means no sheet
	}
}

func (wt *WorksheetTable) idFor(name string) uint32 {
	key := strings.ToUpper(name)
	if id, ok := wt.nameToID[key]; ok {
		return id
	}
	id := wt.nextID
	wt.nextID++
	wt.nameToID[key] = id
	wt.idToName[id] = name
	return id
}

// Intern adds a reference to name, defined or not, and returns its ID.
func (wt *WorksheetTable) Intern(name string) uint32 {
	id := wt.idFor(name)
	wt.refCounts[id]++
	return id
}

// Release drops a reference. An undefined sheet nobody references is
// forgotten.
func (wt *WorksheetTable) Release(id uint32) {
	if _, ok := wt.idToName[id]; !ok {
		return
	}
	wt.refCounts[id]--
	if wt.refCounts[id] <= 0 {
		delete(wt.refCounts, id)
		if _, ok := wt.defined[id]; !ok {
			wt.forget(id)
		}
	}
}

func (wt *WorksheetTable) forget(id uint32) {
	delete(wt.nameToID, strings.ToUpper(wt.idToName[id]))
	delete(wt.idToName, id)
	delete(wt.refCounts, id)
}

// Define registers ws under name and returns the sheet's ID.
func (wt *WorksheetTable) Define(name string, ws *Worksheet) uint32 {
	id := wt.idFor(name)
	wt.idToName[id] = name
	wt.defined[id] = ws
	wt.order = append(wt.order, id)
	ws.id = id
	return id
}

// Undefine removes the sheet. Its ID survives while formulas still
// reference the name.
func (wt *WorksheetTable) Undefine(id uint32) {
	delete(wt.defined, id)
	wt.order = slices.DeleteFunc(wt.order, func(o uint32) bool { return o == id })
	if wt.refCounts[id] <= 0 {
		wt.forget(id)
	}
}

// Rename gives the sheet with ID id a new name. If the new name was only
// referenced, not defined, that placeholder is dropped; callers rebind
// the formulas that used it.
func (wt *WorksheetTable) Rename(id uint32, name string) {
	key := strings.ToUpper(name)
	if other, ok := wt.nameToID[key]; ok && other != id {
		delete(wt.idToName, other)
		delete(wt.refCounts, other)
	}
	delete(wt.nameToID, strings.ToUpper(wt.idToName[id]))
	wt.nameToID[key] = id
	wt.idToName[id] = name
}

func (wt *WorksheetTable) Get(id uint32) (*Worksheet, bool) {
	ws, ok := wt.defined[id]
	return ws, ok
}

func (wt *WorksheetTable) ByName(name string) (*Worksheet, bool) {
	id, ok := wt.nameToID[strings.ToUpper(name)]
	if !ok {
		return nil, false
	}
	return wt.Get(id)
}

// ID returns the ID known for name, defined or not.
func (wt *WorksheetTable) ID(name string) (uint32, bool) {
	id, ok := wt.nameToID[strings.ToUpper(name)]
	return id, ok
}

func (wt *WorksheetTable) Name(id uint32) (string, bool) {
	name, ok := wt.idToName[id]
	return name, ok
}

func (wt *WorksheetTable) IsDefined(name string) bool {
	_, ok := wt.ByName(name)
	return ok
}

func (wt *WorksheetTable) ReferenceCount(id uint32) int {
	return wt.refCounts[id]
}

// Names returns the defined sheets in the order they were added.
func (wt *WorksheetTable) Names() []string {
	names := make([]string, len(wt.order))
	for i, id := range wt.order {
		names[i] = wt.idToName[id]
	}
	return names
}

// Undefined returns referenced sheet names that do not exist.
func (wt *WorksheetTable) Undefined() []string {
	var names []string
	for id, name := range wt.idToName {
		if _, ok := wt.defined[id]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// ChunkKey indexes the chunks of a Worksheet.
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

const (
	ChunkRows uint32 = 256
	ChunkCols uint32 = 256
	ChunkSize        = ChunkRows * ChunkCols
)

// slots is a structure-of-arrays encoding of CellValues. Only Kinds is
// allocated up front; the payload arrays appear with the first value
// that needs them.
type slots struct {
	Kinds     []uint8
	Numbers   []float64 // Float, DateTime and Bool (0/1)
	Ints      []int64   // Int, and the code of Error values
	StringIDs []uint32  // String text and Error messages
}

func (s *slots) store(idx uint32, v CellValue, strs *StringTable) {
	s.clear(idx, strs)
	if s.Kinds == nil {
		s.Kinds = make([]uint8, ChunkSize)
	}
	s.Kinds[idx] = uint8(v.Kind)
	switch v.Kind {
	case KindFloat, KindDateTime, KindBool:
		if s.Numbers == nil {
			s.Numbers = make([]float64, ChunkSize)
		}
		s.Numbers[idx] = v.Num
		if v.Kind == KindBool {
			s.Numbers[idx] = 0
			if v.Bool {
				s.Numbers[idx] = 1
			}
		}
	case KindInt:
		if s.Ints == nil {
			s.Ints = make([]int64, ChunkSize)
		}
		s.Ints[idx] = v.Int
	case KindString:
		if s.StringIDs == nil {
			s.StringIDs = make([]uint32, ChunkSize)
		}
		s.StringIDs[idx] = strs.Intern(v.Str)
	case KindError:
		if s.Ints == nil {
			s.Ints = make([]int64, ChunkSize)
		}
		if s.StringIDs == nil {
			s.StringIDs = make([]uint32, ChunkSize)
		}
		s.Ints[idx] = int64(v.Err.ErrorCode)
		s.StringIDs[idx] = strs.Intern(v.Err.Message)
	}
}

func (s *slots) load(idx uint32, strs *StringTable) CellValue {
	if s.Kinds == nil {
		return CellValue{}
	}
	switch kind := ValueKind(s.Kinds[idx]); kind {
	case KindFloat:
		return FloatValue(s.Numbers[idx])
	case KindDateTime:
		return DateTimeValue(s.Numbers[idx])
	case KindBool:
		return BoolValue(s.Numbers[idx] != 0)
	case KindInt:
		return IntValue(s.Ints[idx])
	case KindString:
		text, _ := strs.Get(s.StringIDs[idx])
		return StringValue(text)
	case KindError:
		message, _ := strs.Get(s.StringIDs[idx])
		return CellValue{Kind: KindError, Err: &SpreadsheetError{ErrorCode: ErrorCode(s.Ints[idx]), Message: message}}
	}
	return CellValue{}
}

// clear releases the interned text of the slot and empties it.
func (s *slots) clear(idx uint32, strs *StringTable) {
	if s.Kinds == nil {
		return
	}
	switch ValueKind(s.Kinds[idx]) {
	case KindString, KindError:
		strs.Release(s.StringIDs[idx])
		s.StringIDs[idx] = 0
	}
	s.Kinds[idx] = uint8(KindEmpty)
}

// Chunk is a 256x256 block of cells. Literal values and formula results
// are kept in separate slot sets so a result never overwrites input.
type Chunk struct {
	NonEmptyCount  int
	OccupiedBitmap []uint64
	Values         slots
	FormulaIDs     []uint32 // lazy
	Results        slots    // lazy, formula cells only
	Computed       []uint64 // bit set once a formula has a result
}

func setBit(bits []uint64, idx uint32, on bool) {
	if on {
		bits[idx/64] |= 1 << (idx % 64)
	} else {
		bits[idx/64] &^= 1 << (idx % 64)
	}
}

func hasBit(bits []uint64, idx uint32) bool {
	return bits != nil && bits[idx/64]&(1<<(idx%64)) != 0
}

// Worksheet is sparse chunked cell storage. Rows and columns are 1-based.
type Worksheet struct {
	chunks      map[ChunkKey]*Chunk
	totalCells  int
	cellsByKind [8]uint32
	storage     *storage
	id          uint32
}

func newWorksheet(st *storage) *Worksheet {
	return &Worksheet{
		chunks:  make(map[ChunkKey]*Chunk),
		storage: st,
	}
}

// ID is the sheet's stable identifier.
func (w *Worksheet) ID() uint32 {
	return w.id
}

// locate maps a 1-based position to its chunk key and column-major index
// inside the chunk.
func locate(row, col uint32) (ChunkKey, uint32) {
	r, c := row-1, col-1
	key := ChunkKey{ChunkRow: r / ChunkRows, ChunkCol: c / ChunkCols}
	return key, (c%ChunkCols)*ChunkRows + r%ChunkRows
}

func (w *Worksheet) chunkFor(row, col uint32, create bool) (*Chunk, uint32) {
	key, idx := locate(row, col)
	chunk, ok := w.chunks[key]
	if !ok && create {
		chunk = &Chunk{OccupiedBitmap: make([]uint64, (ChunkSize+63)/64)}
		w.chunks[key] = chunk
	}
	return chunk, idx
}

func (w *Worksheet) occupied(chunk *Chunk, idx uint32) bool {
	return chunk != nil && hasBit(chunk.OccupiedBitmap, idx)
}

func (w *Worksheet) kindAt(chunk *Chunk, idx uint32) ValueKind {
	if chunk.FormulaIDs != nil && chunk.FormulaIDs[idx] != 0 {
		return KindFormula
	}
	if chunk.Values.Kinds == nil {
		return KindEmpty
	}
	return ValueKind(chunk.Values.Kinds[idx])
}

// Get returns the stored cell. Formula cells come back as KindFormula
// carrying their last result, if any.
func (w *Worksheet) Get(row, col uint32) (CellValue, bool) {
	chunk, idx := w.chunkFor(row, col, false)
	if !w.occupied(chunk, idx) {
		return CellValue{}, false
	}
	if chunk.FormulaIDs != nil && chunk.FormulaIDs[idx] != 0 {
		entry, ok := w.storage.formulas.Get(chunk.FormulaIDs[idx])
		if !ok {
			return CellValue{}, false
		}
		var cached *CellValue
		if hasBit(chunk.Computed, idx) {
			result := chunk.Results.load(idx, w.storage.strings)
			cached = &result
		}
		return FormulaValue(entry.Expr, entry.Text, cached), true
	}
	return chunk.Values.load(idx, w.storage.strings), true
}

// SetValue stores a literal. Setting Empty removes the cell. Any formula
// the cell held is dropped from the chunk; releasing it from the formula
// table is the caller's job.
func (w *Worksheet) SetValue(row, col uint32, v CellValue) {
	if v.Kind == KindEmpty || v.Kind == KindFormula {
		w.Remove(row, col)
		return
	}
	chunk, idx := w.chunkFor(row, col, true)
	w.track(chunk, idx, v.Kind)
	w.clearFormula(chunk, idx)
	chunk.Values.store(idx, v, w.storage.strings)
}

// SetFormula marks the cell as holding an interned formula with no
// result yet.
func (w *Worksheet) SetFormula(row, col uint32, formulaID uint32) {
	chunk, idx := w.chunkFor(row, col, true)
	w.track(chunk, idx, KindFormula)
	chunk.Values.clear(idx, w.storage.strings)
	w.clearFormula(chunk, idx)
	if chunk.FormulaIDs == nil {
		chunk.FormulaIDs = make([]uint32, ChunkSize)
	}
	chunk.FormulaIDs[idx] = formulaID
}

// FormulaID returns the formula table ID at the cell, or 0.
func (w *Worksheet) FormulaID(row, col uint32) uint32 {
	chunk, idx := w.chunkFor(row, col, false)
	if chunk == nil || chunk.FormulaIDs == nil {
		return 0
	}
	return chunk.FormulaIDs[idx]
}

// SetResult stores the computed value of a formula cell.
func (w *Worksheet) SetResult(row, col uint32, v CellValue) {
	chunk, idx := w.chunkFor(row, col, false)
	if chunk == nil || chunk.FormulaIDs == nil || chunk.FormulaIDs[idx] == 0 {
		return
	}
	if chunk.Computed == nil {
		chunk.Computed = make([]uint64, (ChunkSize+63)/64)
	}
	chunk.Results.store(idx, v.resolve(), w.storage.strings)
	setBit(chunk.Computed, idx, true)
}

// Result returns the last computed value of a formula cell.
func (w *Worksheet) Result(row, col uint32) (CellValue, bool) {
	chunk, idx := w.chunkFor(row, col, false)
	if chunk == nil || !hasBit(chunk.Computed, idx) {
		return CellValue{}, false
	}
	return chunk.Results.load(idx, w.storage.strings), true
}

func (w *Worksheet) clearFormula(chunk *Chunk, idx uint32) {
	if chunk.FormulaIDs != nil {
		chunk.FormulaIDs[idx] = 0
	}
	if hasBit(chunk.Computed, idx) {
		chunk.Results.clear(idx, w.storage.strings)
		setBit(chunk.Computed, idx, false)
	}
}

// track updates the occupancy bookkeeping for a cell about to hold kind.
func (w *Worksheet) track(chunk *Chunk, idx uint32, kind ValueKind) {
	if w.occupied(chunk, idx) {
		w.cellsByKind[w.kindAt(chunk, idx)]--
	} else {
		chunk.NonEmptyCount++
		w.totalCells++
		setBit(chunk.OccupiedBitmap, idx, true)
	}
	w.cellsByKind[kind]++
}

// Remove empties the cell and frees the chunk when it was the last one.
func (w *Worksheet) Remove(row, col uint32) {
	key, _ := locate(row, col)
	chunk, idx := w.chunkFor(row, col, false)
	if !w.occupied(chunk, idx) {
		return
	}
	w.cellsByKind[w.kindAt(chunk, idx)]--
	chunk.Values.clear(idx, w.storage.strings)
	w.clearFormula(chunk, idx)
	setBit(chunk.OccupiedBitmap, idx, false)
	chunk.NonEmptyCount--
	w.totalCells--
	if chunk.NonEmptyCount == 0 {
		delete(w.chunks, key)
	}
}

// Position is a 1-based row and column.
type Position struct {
	Row uint32
	Col uint32
}

// Positions returns every occupied cell in row-major order.
func (w *Worksheet) Positions() []Position {
	positions := make([]Position, 0, w.totalCells)
	for key, chunk := range w.chunks {
		for word, bits := range chunk.OccupiedBitmap {
			for bit := uint32(0); bit < 64; bit++ {
				if bits&(1<<bit) == 0 {
					continue
				}
				idx := uint32(word)*64 + bit
				positions = append(positions, Position{
					Row: key.ChunkRow*ChunkRows + idx%ChunkRows + 1,
					Col: key.ChunkCol*ChunkCols + idx/ChunkRows + 1,
				})
			}
		}
	}
	slices.SortFunc(positions, func(a, b Position) int {
		if c := cmp.Compare(a.Row, b.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.Col, b.Col)
	})
	return positions
}

// CellCount is the number of non-empty cells.
func (w *Worksheet) CellCount() int {
	return w.totalCells
}

// CountByKind returns how many cells hold the given kind.
func (w *Worksheet) CountByKind(kind ValueKind) uint32 {
	if int(kind) < len(w.cellsByKind) {
		return w.cellsByKind[kind]
	}
	return 0
}
