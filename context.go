package formula

import "context"

// RangeValue is a flattened rectangle of values in row-major order.
type RangeValue struct {
	Values []CellValue
	Rows   int
	Cols   int
}

// At returns the value at the 0-based row and column.
func (r RangeValue) At(row, col int) CellValue {
	return r.Values[row*r.Cols+col]
}

// Is1D reports whether the range is a single row or column.
func (r RangeValue) Is1D() bool {
	return r.Rows == 1 || r.Cols == 1
}

func scalarRange(v CellValue) RangeValue {
	return RangeValue{Values: []CellValue{v}, Rows: 1, Cols: 1}
}

// EvalContext is the capability set an evaluation consumes from its
// host. Implementations may block (lazy decoding, network); a returned
// Go error aborts the evaluation and is never turned into a cell value.
type EvalContext interface {
	// GetCell returns the value of one cell; formulas should be returned
	// already computed or with their cached result.
	GetCell(ctx context.Context, sheet string, row, col uint32) (CellValue, error)

	// GetRange flattens a rectangle into a row-major RangeValue. The
	// range may not be normalized.
	GetRange(ctx context.Context, r RangeRef) (RangeValue, error)

	// CurrentPosition is the cell being evaluated, if any. Used by
	// zero-argument ROW() and COLUMN().
	CurrentPosition() (CellRef, bool)

	// HTTPFetch retrieves a URL body as text. Only WEBSERVICE calls it.
	HTTPFetch(ctx context.Context, url string) (string, error)
}

// NameResolver is optionally implemented by an EvalContext that knows
// named ranges. The returned Expr is a CellRefExpr or RangeRefExpr.
type NameResolver interface {
	ResolveName(currentSheet, name string) (Expr, bool)
}

// GetRangeByCells is a helper for EvalContext implementations that only
// know single cells: it normalizes the range and calls GetCell for each
// position in row-major order.
func GetRangeByCells(ctx context.Context, ec EvalContext, r RangeRef) (RangeValue, error) {
	n := r.Normalized()
	rows, cols := n.Rows(), n.Cols()
	values := make([]CellValue, 0, rows*cols)
	// 64-bit counters so a range ending at the last uint32 row terminates
	for row := uint64(n.StartRow); row <= uint64(n.EndRow); row++ {
		for col := uint64(n.StartCol); col <= uint64(n.EndCol); col++ {
			if err := ctx.Err(); err != nil {
				return RangeValue{}, err
			}
			v, err := ec.GetCell(ctx, n.Sheet, uint32(row), uint32(col))
			if err != nil {
				return RangeValue{}, err
			}
			values = append(values, v)
		}
	}
	return RangeValue{Values: values, Rows: rows, Cols: cols}, nil
}
