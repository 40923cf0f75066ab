package formula

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for workbook API misuse.
// Codes that make no sense for an in-memory workbook, like
// unauthenticated or permission denied, are skipped.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller passed a malformed address,
	// sheet name or range.
	InvalidArgument AppErrorCode = 3

	// NotFound means a sheet or named range does not exist.
	NotFound AppErrorCode = 5

	// AlreadyExists means a sheet or name is already taken.
	AlreadyExists AppErrorCode = 6

	// ResourceExhausted indicates some resource has been exhausted.
	ResourceExhausted AppErrorCode = 8

	// FailedPrecondition indicates the workbook is not in a state required
	// for the operation.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an address lies outside the grid.
	OutOfRange AppErrorCode = 11

	// Unimplemented indicates the operation is not supported.
	Unimplemented AppErrorCode = 12

	// Internal means an invariant of the workbook has been broken.
	Internal AppErrorCode = 13
)

var appErrorCodeNames = map[AppErrorCode]string{
	OK:                 "OK",
	Unknown:            "UNKNOWN",
	InvalidArgument:    "INVALID_ARGUMENT",
	NotFound:           "NOT_FOUND",
	AlreadyExists:      "ALREADY_EXISTS",
	ResourceExhausted:  "RESOURCE_EXHAUSTED",
	FailedPrecondition: "FAILED_PRECONDITION",
	OutOfRange:         "OUT_OF_RANGE",
	Unimplemented:      "UNIMPLEMENTED",
	Internal:           "INTERNAL",
}

func (c AppErrorCode) String() string {
	if name, ok := appErrorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// AppError represents errors at the application level, as opposed to
// spreadsheet error values, which are data.
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// ErrorCodeOf returns the code of an *AppError anywhere in err's chain,
// or Unknown.
func ErrorCodeOf(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// HTTPFetcher performs the network access behind WEBSERVICE.
type HTTPFetcher interface {
	HTTPFetch(ctx context.Context, url string) (string, error)
}

var errWebDisabled = errors.New("web access is not configured")

type workbookConfig struct {
	evalOpts []Option
	fetcher  HTTPFetcher
	logger   Logger
}

type WorkbookOption func(*workbookConfig)

// WithEvaluatorOptions configures the evaluator the workbook builds.
func WithEvaluatorOptions(opts ...Option) WorkbookOption {
	return func(c *workbookConfig) { c.evalOpts = append(c.evalOpts, opts...) }
}

func WithHTTPFetcher(f HTTPFetcher) WorkbookOption {
	return func(c *workbookConfig) { c.fetcher = f }
}

// WithWorkbookLogger logs calculation passes and hands the logger to
// the evaluator as well.
func WithWorkbookLogger(logger Logger) WorkbookOption {
	return func(c *workbookConfig) { c.logger = logger }
}

// Workbook is an in-memory grid of sheets that stores formulas, tracks
// their dependencies and recalculates them. It is the reference host of
// the evaluator and implements EvalContext and NameResolver. A Workbook
// is not safe for concurrent use.
type Workbook struct {
	storage   *storage
	stack     *CalculationStack
	evaluator *Evaluator
	fetcher   HTTPFetcher
	logger    Logger

	sheetRefs map[CellAddress][]uint32 // sheet IDs interned for each formula cell
}

var (
	_ EvalContext  = (*Workbook)(nil)
	_ NameResolver = (*Workbook)(nil)
)

func NewWorkbook(opts ...WorkbookOption) *Workbook {
	cfg := &workbookConfig{logger: nopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}
	evalOpts := append([]Option{WithLogger(cfg.logger)}, cfg.evalOpts...)
	return &Workbook{
		storage:   newStorage(),
		stack:     NewCalculationStack(),
		evaluator: NewEvaluator(evalOpts...),
		fetcher:   cfg.fetcher,
		logger:    cfg.logger,
		sheetRefs: make(map[CellAddress][]uint32),
	}
}

// defaultSheet is the sheet unqualified addresses refer to: the first
// one added.
func (w *Workbook) defaultSheet() string {
	names := w.storage.sheets.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// sheet looks up a defined sheet by name, "" meaning the default sheet.
func (w *Workbook) sheet(name string) (*Worksheet, string, error) {
	if name == "" {
		name = w.defaultSheet()
	}
	ws, ok := w.storage.sheets.ByName(name)
	if !ok {
		return nil, "", NewApplicationError(NotFound, fmt.Sprintf("Worksheet not found: %s", name))
	}
	canonical, _ := w.storage.sheets.Name(ws.id)
	return ws, canonical, nil
}

// resolveAddress parses an address such as "B7" or "'My Sheet'!B7".
func (w *Workbook) resolveAddress(address string) (*Worksheet, CellRef, error) {
	ref, ok := ResolveCell(w.defaultSheet(), strings.TrimSpace(address))
	if !ok {
		return nil, CellRef{}, NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid address: %s", address))
	}
	ws, name, err := w.sheet(ref.Sheet)
	if err != nil {
		return nil, CellRef{}, err
	}
	ref.Sheet = name
	return ws, ref, nil
}

func validSheetName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, "[]*?/\\:")
}

// AddSheet adds an empty sheet. Formulas that already referenced the
// name are scheduled for recalculation.
func (w *Workbook) AddSheet(name string) error {
	if !validSheetName(name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid worksheet name: %q", name))
	}
	if w.storage.sheets.IsDefined(name) {
		return NewApplicationError(AlreadyExists, "Worksheet already exists")
	}
	id := w.storage.sheets.Define(name, newWorksheet(w.storage))
	w.storage.graph.MarkSheetDirty(id)
	return nil
}

// RemoveSheet deletes a sheet and its cells. Formulas elsewhere that read
// it evaluate to #REF! on the next calculation.
func (w *Workbook) RemoveSheet(name string) error {
	ws, ok := w.storage.sheets.ByName(name)
	if !ok {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	graph := w.storage.graph
	graph.MarkSheetDirty(ws.id)
	for _, pos := range ws.Positions() {
		addr := CellAddress{SheetID: ws.id, Row: pos.Row, Column: pos.Col}
		w.releaseFormula(addr)
		graph.SetFormula(addr, false)
		graph.ClearDirty(addr)
		ws.Remove(pos.Row, pos.Col)
	}
	w.storage.sheets.Undefine(ws.id)
	return nil
}

// RenameSheet renames a sheet and rewrites every reference to it, in
// formulas and in named ranges.
func (w *Workbook) RenameSheet(oldName, newName string) error {
	ws, ok := w.storage.sheets.ByName(oldName)
	if !ok {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	if !validSheetName(newName) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid worksheet name: %q", newName))
	}
	if other, exists := w.storage.sheets.ByName(newName); exists && other != ws {
		return NewApplicationError(AlreadyExists, "Worksheet name already exists")
	}
	current, _ := w.storage.sheets.Name(ws.id)

	type installed struct {
		addr  CellAddress
		entry *FormulaEntry
	}
	var formulas []installed
	for _, addr := range w.storage.formulas.Cells() {
		_, entry, _ := w.storage.formulas.At(addr)
		formulas = append(formulas, installed{addr: addr, entry: entry})
	}
	for _, f := range formulas {
		w.releaseFormula(f.addr)
	}

	w.storage.sheets.Rename(ws.id, newName)
	w.storage.names.renameSheet(current, newName)

	for _, f := range formulas {
		expr, text := f.entry.Expr, f.entry.Text
		if renamed, changed := renameSheetRefs(expr, current, newName); changed {
			expr, text = renamed, renamed.ToString()
		}
		w.installFormula(f.addr, expr, text)
	}
	return nil
}

// renameSheetRefs returns a copy of expr with references to sheet from
// pointing at sheet to. Unchanged subtrees are shared.
func renameSheetRefs(expr Expr, from, to string) (Expr, bool) {
	switch n := expr.(type) {
	case *CellRefExpr:
		if strings.EqualFold(n.Ref.Sheet, from) {
			c := *n
			c.Ref.Sheet = to
			return &c, true
		}
	case *RangeRefExpr:
		if strings.EqualFold(n.Ref.Sheet, from) {
			c := *n
			c.Ref.Sheet = to
			return &c, true
		}
	case *UnaryOpExpr:
		if operand, changed := renameSheetRefs(n.Operand, from, to); changed {
			c := *n
			c.Operand = operand
			return &c, true
		}
	case *BinaryOpExpr:
		left, lc := renameSheetRefs(n.Left, from, to)
		right, rc := renameSheetRefs(n.Right, from, to)
		if lc || rc {
			c := *n
			c.Left, c.Right = left, right
			return &c, true
		}
	case *FunctionCallExpr:
		args := make([]Expr, len(n.Args))
		changed := false
		for i, arg := range n.Args {
			var c bool
			args[i], c = renameSheetRefs(arg, from, to)
			changed = changed || c
		}
		if changed {
			c := *n
			c.Args = args
			return &c, true
		}
	}
	return expr, false
}

// Sheets returns the sheet names in the order they were added.
func (w *Workbook) Sheets() []string {
	return w.storage.sheets.Names()
}

// Set writes user input to a cell. Input starting with '=' is a formula;
// bad syntax is returned as a *ParseError and nothing is stored. Other
// input goes through ParseInput.
func (w *Workbook) Set(address, input string) error {
	ws, ref, err := w.resolveAddress(address)
	if err != nil {
		return err
	}
	addr := CellAddress{SheetID: ws.id, Row: ref.Row, Column: ref.Col}
	if strings.HasPrefix(input, "=") {
		expr, err := Parse(ref.Sheet, input)
		if err != nil {
			return err
		}
		w.setFormula(addr, expr, strings.TrimPrefix(input, "="))
		return nil
	}
	w.setLiteral(ws, addr, ParseInput(input))
	return nil
}

// SetValue writes a value to a cell by coordinates. A KindFormula value
// installs its expression, parsing Text when Expr is nil.
func (w *Workbook) SetValue(sheet string, row, col uint32, v CellValue) error {
	if row == 0 || col == 0 {
		return NewApplicationError(OutOfRange, fmt.Sprintf("Invalid cell position: row %d, column %d", row, col))
	}
	ws, name, err := w.sheet(sheet)
	if err != nil {
		return err
	}
	addr := CellAddress{SheetID: ws.id, Row: row, Column: col}
	if v.Kind != KindFormula {
		w.setLiteral(ws, addr, v)
		return nil
	}
	if v.Formula == nil {
		return NewApplicationError(InvalidArgument, "Formula value has no formula")
	}
	expr := v.Formula.Expr
	if expr == nil {
		expr, err = Parse(name, v.Formula.Text)
		if err != nil {
			return err
		}
	}
	w.setFormula(addr, expr, strings.TrimPrefix(v.Formula.Text, "="))
	return nil
}

func (w *Workbook) setLiteral(ws *Worksheet, addr CellAddress, v CellValue) {
	w.releaseFormula(addr)
	w.storage.graph.SetFormula(addr, false)
	w.storage.graph.ClearDirty(addr)
	ws.SetValue(addr.Row, addr.Column, v)
	w.storage.graph.MarkAffectedDirty(addr)
}

func (w *Workbook) setFormula(addr CellAddress, expr Expr, text string) {
	w.releaseFormula(addr)
	w.installFormula(addr, expr, text)
}

// installFormula stores an already released cell's formula, wires its
// dependencies and schedules it and its dependents.
func (w *Workbook) installFormula(addr CellAddress, expr Expr, text string) {
	ws, ok := w.storage.sheets.Get(addr.SheetID)
	if !ok {
		return
	}
	id, created := w.storage.formulas.Intern(expr, text, addr)
	entry, _ := w.storage.formulas.Get(id)
	if created {
		for _, name := range entry.Names {
			w.storage.names.Intern(name)
		}
	}
	ws.SetFormula(addr.Row, addr.Column, id)

	graph := w.storage.graph
	graph.SetFormula(addr, true)
	w.extractDependencies(addr, entry)
	graph.MarkDirty(addr)
	graph.MarkAffectedDirty(addr)
}

// releaseFormula undoes installFormula: the formula table reference, the
// names and sheets it held and its outgoing graph edges.
func (w *Workbook) releaseFormula(addr CellAddress) {
	if entry := w.storage.formulas.Release(addr); entry != nil {
		for _, name := range entry.Names {
			w.storage.names.Release(name)
		}
	}
	w.clearDependencies(addr)
}

func (w *Workbook) clearDependencies(addr CellAddress) {
	for _, id := range w.sheetRefs[addr] {
		w.storage.sheets.Release(id)
	}
	delete(w.sheetRefs, addr)
	w.storage.graph.ClearDependencies(addr)
}

// extractDependencies adds an edge for every cell, range and defined
// name the formula references.
func (w *Workbook) extractDependencies(addr CellAddress, entry *FormulaEntry) {
	graph := w.storage.graph
	sheetID := func(name string) uint32 {
		id := w.storage.sheets.Intern(name)
		w.sheetRefs[addr] = append(w.sheetRefs[addr], id)
		return id
	}
	addRange := func(r RangeRef) {
		graph.AddRangeDependency(addr, CellRange{SheetID: sheetID(r.Sheet), Ref: r}.Bounds())
	}
	for _, ref := range References(entry.Expr) {
		switch n := ref.(type) {
		case *CellRefExpr:
			graph.AddCellDependency(addr, CellAddress{SheetID: sheetID(n.Ref.Sheet), Row: n.Ref.Row, Column: n.Ref.Col})
		case *RangeRefExpr:
			addRange(n.Ref)
		case *NameExpr:
			if r, ok := w.storage.names.Lookup(n.Name); ok {
				addRange(r)
			}
		}
	}
	if entry.Volatile {
		graph.MarkVolatile(addr)
	}
}

// Get returns the value of a cell. Formula cells yield their last
// computed result, Empty before the first Calculate.
func (w *Workbook) Get(address string) (CellValue, error) {
	v, err := w.Cell(address)
	if err != nil {
		return CellValue{}, err
	}
	return v.resolve(), nil
}

// Cell returns the stored cell, a KindFormula value for formula cells.
func (w *Workbook) Cell(address string) (CellValue, error) {
	ws, ref, err := w.resolveAddress(address)
	if err != nil {
		return CellValue{}, err
	}
	v, _ := ws.Get(ref.Row, ref.Col)
	return v, nil
}

// Remove empties a cell.
func (w *Workbook) Remove(address string) error {
	ws, ref, err := w.resolveAddress(address)
	if err != nil {
		return err
	}
	w.setLiteral(ws, CellAddress{SheetID: ws.id, Row: ref.Row, Column: ref.Col}, CellValue{})
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	first := name[0]
	if !isASCIILetter(first) && first != '_' {
		return false
	}
	for i := 1; i < len(name); i++ {
		ch := name[i]
		if !isASCIILetter(ch) && !(ch >= '0' && ch <= '9') && ch != '_' && ch != '.' {
			return false
		}
	}
	switch strings.ToUpper(name) {
	case "TRUE", "FALSE":
		return false
	}
	_, _, looksLikeCell := parseCellToken(name)
	return !looksLikeCell
}

// DefineName binds a workbook-level name to a cell or range, such as
// "Sheet1!A1:A10". Formulas using the name are rebound.
func (w *Workbook) DefineName(name, target string) error {
	if !validName(name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid name: %q", name))
	}
	r, ok := ResolveRange(w.defaultSheet(), strings.TrimPrefix(strings.TrimSpace(target), "="))
	if !ok {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid range: %s", target))
	}
	_, sheetName, err := w.sheet(r.Sheet)
	if err != nil {
		return err
	}
	r.Sheet = sheetName
	w.storage.names.Define(name, r)
	w.rebindName(name)
	return nil
}

func (w *Workbook) RemoveName(name string) error {
	if !w.storage.names.Undefine(name) {
		return NewApplicationError(NotFound, "Named range not found")
	}
	w.rebindName(name)
	return nil
}

// Names returns the defined names, sorted.
func (w *Workbook) Names() []string {
	return w.storage.names.Defined()
}

func (w *Workbook) rebindName(name string) {
	graph := w.storage.graph
	for _, addr := range w.storage.formulas.CellsUsingName(name) {
		_, entry, ok := w.storage.formulas.At(addr)
		if !ok {
			continue
		}
		w.clearDependencies(addr)
		w.extractDependencies(addr, entry)
		graph.MarkDirty(addr)
		graph.MarkAffectedDirty(addr)
	}
}

// ResolveName implements NameResolver.
func (w *Workbook) ResolveName(currentSheet, name string) (Expr, bool) {
	r, ok := w.storage.names.Lookup(name)
	if !ok {
		return nil, false
	}
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		return &CellRefExpr{Ref: CellRef{Sheet: r.Sheet, Row: r.StartRow, Col: r.StartCol}}, true
	}
	return &RangeRefExpr{Ref: r}, true
}

// FormulaCells returns every formula cell, ordered by sheet then row
// then column.
func (w *Workbook) FormulaCells() []CellRef {
	cells := w.storage.formulas.Cells()
	refs := make([]CellRef, 0, len(cells))
	for _, addr := range cells {
		name, _ := w.storage.sheets.Name(addr.SheetID)
		refs = append(refs, CellRef{Sheet: name, Row: addr.Row, Col: addr.Column})
	}
	return refs
}

// Calculate recomputes every dirty formula cell, plus every cell that
// calls a volatile function. Cells are visited in sheet, row, column
// order; a formula reading another dirty formula computes it first. A
// cell reached again while it is being computed is a cycle and yields
// #REF!. The error is non-nil only for host failures such as a
// cancelled context.
func (w *Workbook) Calculate(ctx context.Context) error {
	graph := w.storage.graph
	graph.MarkAllVolatileDirty()
	w.stack.reset()
	defer w.stack.reset()

	calculated := 0
	for len(graph.dirtySet) > 0 {
		for _, addr := range graph.DirtyCells() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !graph.IsDirty(addr) {
				continue
			}
			if w.stack.isCompleted(addr) {
				graph.ClearDirty(addr)
				continue
			}
			if _, err := w.calculateCell(ctx, addr); err != nil {
				return fmt.Errorf("calculate %s: %w", w.describe(addr), err)
			}
			calculated++
		}
	}
	graph.ClearAllDirty()
	w.logger.Debugf(ctx, "calculated %d cells", calculated)
	return nil
}

func (w *Workbook) describe(addr CellAddress) string {
	name, _ := w.storage.sheets.Name(addr.SheetID)
	return CellRef{Sheet: name, Row: addr.Row, Col: addr.Column}.String()
}

var errCircular = ErrorValue(ErrorCodeRef, "Circular reference detected")

// calculateCell computes one formula cell and stores its result.
func (w *Workbook) calculateCell(ctx context.Context, addr CellAddress) (CellValue, error) {
	graph := w.storage.graph
	if w.stack.isProcessing(addr) {
		return errCircular, nil
	}
	ws, ok := w.storage.sheets.Get(addr.SheetID)
	if !ok {
		graph.ClearDirty(addr)
		return ErrorValue(ErrorCodeRef, "Unknown sheet"), nil
	}
	id := ws.FormulaID(addr.Row, addr.Column)
	entry, ok := w.storage.formulas.Get(id)
	if id == 0 || !ok {
		graph.ClearDirty(addr)
		v, _ := ws.Get(addr.Row, addr.Column)
		return v.resolve(), nil
	}

	w.stack.push(addr)
	defer func() {
		w.stack.pop()
		w.stack.markCompleted(addr)
	}()

	// a formula cannot read a range that holds itself
	for _, r := range graph.GetRangePrecedents(addr) {
		if r.Contains(addr) {
			ws.SetResult(addr.Row, addr.Column, errCircular)
			graph.ClearDirty(addr)
			return errCircular, nil
		}
	}

	name, _ := w.storage.sheets.Name(addr.SheetID)
	scope := &cellScope{Workbook: w, pos: CellRef{Sheet: name, Row: addr.Row, Col: addr.Column}}
	result, err := w.evaluator.Evaluate(ctx, scope, name, entry.Expr)
	if err != nil {
		return CellValue{}, err
	}
	ws.SetResult(addr.Row, addr.Column, result)
	graph.ClearDirty(addr)
	return result, nil
}

// cellValue returns the current value of a cell, computing a formula on
// demand when it is dirty or has never been computed.
func (w *Workbook) cellValue(ctx context.Context, ws *Worksheet, addr CellAddress) (CellValue, error) {
	v, ok := ws.Get(addr.Row, addr.Column)
	if !ok {
		return CellValue{}, nil
	}
	if v.Kind != KindFormula {
		return v, nil
	}
	if w.storage.graph.IsDirty(addr) || v.Formula.Cached == nil {
		return w.calculateCell(ctx, addr)
	}
	return *v.Formula.Cached, nil
}

// GetCell implements EvalContext. An unknown sheet is a #REF! value.
func (w *Workbook) GetCell(ctx context.Context, sheet string, row, col uint32) (CellValue, error) {
	ws, ok := w.storage.sheets.ByName(sheet)
	if !ok {
		return ErrorValue(ErrorCodeRef, "Unknown sheet: "+sheet), nil
	}
	return w.cellValue(ctx, ws, CellAddress{SheetID: ws.id, Row: row, Column: col})
}

// GetRange implements EvalContext.
func (w *Workbook) GetRange(ctx context.Context, r RangeRef) (RangeValue, error) {
	n := r.Normalized()
	rows, cols := n.Rows(), n.Cols()
	values := make([]CellValue, 0, rows*cols)
	ws, ok := w.storage.sheets.ByName(n.Sheet)
	if !ok {
		unknown := ErrorValue(ErrorCodeRef, "Unknown sheet: "+n.Sheet)
		for range rows * cols {
			values = append(values, unknown)
		}
		return RangeValue{Values: values, Rows: rows, Cols: cols}, nil
	}
	for addr := range (CellRange{SheetID: ws.id, Ref: n}).Addresses() {
		if err := ctx.Err(); err != nil {
			return RangeValue{}, err
		}
		v, err := w.cellValue(ctx, ws, addr)
		if err != nil {
			return RangeValue{}, err
		}
		values = append(values, v)
	}
	return RangeValue{Values: values, Rows: rows, Cols: cols}, nil
}

// CurrentPosition implements EvalContext. Outside a cell calculation
// there is no position.
func (w *Workbook) CurrentPosition() (CellRef, bool) {
	return CellRef{}, false
}

// HTTPFetch implements EvalContext through the configured HTTPFetcher.
func (w *Workbook) HTTPFetch(ctx context.Context, url string) (string, error) {
	if w.fetcher == nil {
		return "", errWebDisabled
	}
	return w.fetcher.HTTPFetch(ctx, url)
}

// EvaluateFormula evaluates formula text against the workbook without
// storing it. sheet "" means the first sheet. Dirty cells it reads are
// computed on the way.
func (w *Workbook) EvaluateFormula(ctx context.Context, sheet, formula string) (CellValue, error) {
	_, name, err := w.sheet(sheet)
	if err != nil {
		return CellValue{}, err
	}
	return w.evaluator.EvaluateFormula(ctx, w, name, formula)
}

// cellScope is the EvalContext of one cell's calculation.
type cellScope struct {
	*Workbook
	pos CellRef
}

func (s *cellScope) CurrentPosition() (CellRef, bool) {
	return s.pos, true
}

// CalculationStack tracks the cells being computed, for cycle detection,
// and the cells finished during one Calculate.
type CalculationStack struct {
	items      []CellAddress
	processing map[CellAddress]struct{}
	completed  map[CellAddress]struct{}
}

func NewCalculationStack() *CalculationStack {
	return &CalculationStack{
		processing: make(map[CellAddress]struct{}),
		completed:  make(map[CellAddress]struct{}),
	}
}

func (cs *CalculationStack) push(addr CellAddress) {
	cs.items = append(cs.items, addr)
	cs.processing[addr] = struct{}{}
}

func (cs *CalculationStack) pop() (CellAddress, bool) {
	if len(cs.items) == 0 {
		return CellAddress{}, false
	}
	addr := cs.items[len(cs.items)-1]
	cs.items = cs.items[:len(cs.items)-1]
	delete(cs.processing, addr)
	return addr, true
}

func (cs *CalculationStack) isProcessing(addr CellAddress) bool {
	_, ok := cs.processing[addr]
	return ok
}

func (cs *CalculationStack) markCompleted(addr CellAddress) {
	cs.completed[addr] = struct{}{}
}

func (cs *CalculationStack) isCompleted(addr CellAddress) bool {
	_, ok := cs.completed[addr]
	return ok
}

func (cs *CalculationStack) reset() {
	cs.items = cs.items[:0]
	cs.processing = make(map[CellAddress]struct{})
	cs.completed = make(map[CellAddress]struct{})
}
