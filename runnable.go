package formula

import (
	"context"
	"fmt"
	"slices"
)

// RunnableWorkbook wraps a Workbook in a chainable API that remembers the
// first error. Once an error is recorded every further step is a no-op
// until Reset.
//
//	v := NewRunnableWorkbook(log.Println).AddSheet("Sheet1").
//		Set("A1", "10").Set("A2", "=A1*2").Calculate().Value("A2")
type RunnableWorkbook struct {
	workbook *Workbook
	ctx      context.Context
	err      error
	printLn  func(string)
}

// NewRunnableWorkbook creates an empty RunnableWorkbook. printLn is
// required and receives the output of Log and CheckError.
func NewRunnableWorkbook(printLn func(string), opts ...WorkbookOption) *RunnableWorkbook {
	return &RunnableWorkbook{
		workbook: NewWorkbook(opts...),
		ctx:      context.Background(),
		printLn:  printLn,
	}
}

// Context sets the context used by Calculate and Run.
func (r *RunnableWorkbook) Context(ctx context.Context) *RunnableWorkbook {
	r.ctx = ctx
	return r
}

func (r *RunnableWorkbook) do(fn func() error) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = fn()
	return r
}

func (r *RunnableWorkbook) Set(address, input string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.Set(address, input) })
}

func (r *RunnableWorkbook) Get(address string) (*RunnableWorkbook, CellValue) {
	return r, r.Value(address)
}

func (r *RunnableWorkbook) Remove(address string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.Remove(address) })
}

func (r *RunnableWorkbook) AddSheet(name string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.AddSheet(name) })
}

func (r *RunnableWorkbook) RemoveSheet(name string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.RemoveSheet(name) })
}

func (r *RunnableWorkbook) RenameSheet(oldName, newName string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.RenameSheet(oldName, newName) })
}

func (r *RunnableWorkbook) DefineName(name, target string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.DefineName(name, target) })
}

func (r *RunnableWorkbook) RemoveName(name string) *RunnableWorkbook {
	return r.do(func() error { return r.workbook.RemoveName(name) })
}

func (r *RunnableWorkbook) Calculate() *RunnableWorkbook {
	return r.do(func() error { return r.workbook.Calculate(r.ctx) })
}

// Run calculates once more and returns the workbook. Typically the last
// call of a chain.
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.Calculate(); r.err != nil {
		return nil, r.err
	}
	return r.workbook, nil
}

// RunOrPanic is Run for examples and tests that want to fail fast.
func (r *RunnableWorkbook) RunOrPanic() *Workbook {
	wb, err := r.Run()
	if err != nil {
		panic(err)
	}
	return wb
}

func (r *RunnableWorkbook) Error() error {
	return r.err
}

// CheckError prints the current error state.
func (r *RunnableWorkbook) CheckError() *RunnableWorkbook {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Workbook returns the underlying workbook, bypassing error tracking.
func (r *RunnableWorkbook) Workbook() *Workbook {
	return r.workbook
}

func (r *RunnableWorkbook) Reset() *RunnableWorkbook {
	r.err = nil
	return r
}

// Then runs fn unless an error is recorded.
func (r *RunnableWorkbook) Then(fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError replaces a recorded error with fn's result; returning nil
// recovers the chain.
func (r *RunnableWorkbook) OnError(fn func(error) error) *RunnableWorkbook {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

func (r *RunnableWorkbook) Must() *RunnableWorkbook {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// SetBatch sets cells in address order, stopping at the first error.
func (r *RunnableWorkbook) SetBatch(cells map[string]string) *RunnableWorkbook {
	addresses := make([]string, 0, len(cells))
	for address := range cells {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	for _, address := range addresses {
		if r.Set(address, cells[address]); r.err != nil {
			break
		}
	}
	return r
}

func (r *RunnableWorkbook) GetBatch(addresses ...string) (*RunnableWorkbook, map[string]CellValue) {
	values := r.Values(addresses...)
	if values == nil {
		return r, nil
	}
	results := make(map[string]CellValue, len(addresses))
	for i, address := range addresses {
		results[address] = values[i]
	}
	return r, results
}

// WithSheet adds the sheet unless it already exists.
func (r *RunnableWorkbook) WithSheet(name string) *RunnableWorkbook {
	return r.do(func() error {
		if slices.ContainsFunc(r.workbook.Sheets(), func(s string) bool { return foldName(s) == foldName(name) }) {
			return nil
		}
		return r.workbook.AddSheet(name)
	})
}

func (r *RunnableWorkbook) If(condition bool, fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil || !condition {
		return r
	}
	return fn(r)
}

// ForEach calls fn for every cell of the block, row by row, and stops at
// the first recorded error.
func (r *RunnableWorkbook) ForEach(startRow, endRow, startCol, endCol uint32, fn func(address string, r *RunnableWorkbook)) *RunnableWorkbook {
	for row := startRow; row <= endRow && r.err == nil; row++ {
		for col := startCol; col <= endCol && r.err == nil; col++ {
			fn(CellRef{Row: row, Col: col}.String(), r)
		}
	}
	return r
}

// Value returns the resolved value of a cell, Empty once an error is
// recorded.
func (r *RunnableWorkbook) Value(address string) CellValue {
	if r.err != nil {
		return CellValue{}
	}
	v, err := r.workbook.Get(address)
	if err != nil {
		r.err = err
		return CellValue{}
	}
	return v
}

func (r *RunnableWorkbook) Values(addresses ...string) []CellValue {
	if r.err != nil {
		return nil
	}
	values := make([]CellValue, len(addresses))
	for i, address := range addresses {
		if values[i] = r.Value(address); r.err != nil {
			return nil
		}
	}
	return values
}

// Log prints "address: value".
func (r *RunnableWorkbook) Log(address string) *RunnableWorkbook {
	v := r.Value(address)
	if r.err != nil {
		return r
	}
	if v.Kind == KindEmpty {
		r.printLn(fmt.Sprintf("%s: <empty>", address))
	} else {
		r.printLn(fmt.Sprintf("%s: %s", address, v.String()))
	}
	return r
}
