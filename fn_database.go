package formula

import (
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// A database is a range whose first row names the fields and whose other
// rows are records. Criteria use the same layout: the conditions of one
// row must all hold, and a record passes when any row holds.

type dbCondition struct {
	col  int
	crit Criteria
}

// fieldIndex finds a column by header text, ignoring case, or by its
// 1-based position.
func fieldIndex(db RangeValue, field CellValue) (int, bool) {
	if n, ok := ToNumber(field); ok {
		i := int(n) - 1
		return i, n >= 1 && i < db.Cols
	}
	name := ToText(field)
	for j := 0; j < db.Cols; j++ {
		if strings.EqualFold(strings.TrimSpace(ToText(db.At(0, j))), strings.TrimSpace(name)) {
			return j, true
		}
	}
	return 0, false
}

func parseDBCriteria(db, criteria RangeValue) ([][]dbCondition, bool) {
	cols := make([]int, criteria.Cols)
	for j := range cols {
		header := criteria.At(0, j)
		if IsBlank(header) {
			cols[j] = -1
			continue
		}
		col, ok := fieldIndex(db, StringValue(ToText(header)))
		if !ok {
			return nil, false
		}
		cols[j] = col
	}
	var rows [][]dbCondition
	for i := 1; i < criteria.Rows; i++ {
		var row []dbCondition
		for j, col := range cols {
			v := criteria.At(i, j)
			if col < 0 || IsBlank(v) {
				continue
			}
			row = append(row, dbCondition{col: col, crit: ParseCriteria(v)})
		}
		rows = append(rows, row)
	}
	return rows, true
}

func queryMatches(db RangeValue, rows [][]dbCondition, record int) bool {
	if len(rows) == 0 {
		return true
	}
	for _, row := range rows {
		all := true
		for _, cond := range row {
			if !cond.crit.Matches(db.At(record, cond.col)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// query returns the field values of the matching records. With the field
// omitted every match contributes a 1.
func (c *call) query(args []Arg) ([]CellValue, CellValue, bool) {
	r := c.read(args)
	db := r.table(0)
	criteria := r.table(2)
	var field CellValue
	hasField := r.present(1)
	if hasField {
		field = r.scalar(1)
	}
	if r.failed {
		return nil, r.err, false
	}
	if db.Rows < 1 || criteria.Rows < 1 {
		return nil, errorf(ErrorCodeValue, "%s needs a header row in the database and the criteria", c.name), false
	}
	col := -1
	if hasField {
		var ok bool
		if col, ok = fieldIndex(db, field); !ok {
			return nil, errorf(ErrorCodeValue, "%s field %q is not in the database", c.name, ToText(field)), false
		}
	}
	rows, ok := parseDBCriteria(db, criteria)
	if !ok {
		return nil, errorf(ErrorCodeValue, "%s criteria names a field that is not in the database", c.name), false
	}
	var out []CellValue
	for i := 1; i < db.Rows; i++ {
		if !queryMatches(db, rows, i) {
			continue
		}
		if col < 0 {
			out = append(out, IntValue(1))
		} else {
			out = append(out, db.At(i, col).resolve())
		}
	}
	return out, CellValue{}, true
}

// queryNumbers keeps the numeric field values of the matches. The first
// error among them wins.
func (c *call) queryNumbers(args []Arg) ([]float64, CellValue, bool) {
	values, errv, ok := c.query(args)
	if !ok {
		return nil, errv, false
	}
	var nums []float64
	for _, v := range values {
		if v.Kind == KindError {
			return nil, v, false
		}
		if n, ok := ToNumber(v); ok {
			nums = append(nums, n)
		}
	}
	return nums, CellValue{}, true
}

func (c *call) dbReduce(args []Arg, least int, f func([]float64) float64) CellValue {
	nums, errv, ok := c.queryNumbers(args)
	if !ok {
		return errv
	}
	if len(nums) < least {
		return errorf(ErrorCodeDiv0, "%s needs at least %d matching numbers", c.name, least)
	}
	if len(nums) == 0 {
		return IntValue(0)
	}
	return checkedFloat(f(nums))
}

func (bf *BuiltInFunctions) DSUM(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 0, floats.Sum)
}

func (bf *BuiltInFunctions) DAVERAGE(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 1, meanOf)
}

func (bf *BuiltInFunctions) DMAX(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 0, floats.Max)
}

func (bf *BuiltInFunctions) DMIN(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 0, floats.Min)
}

func (bf *BuiltInFunctions) DPRODUCT(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 0, floats.Prod)
}

func (bf *BuiltInFunctions) DSTDEV(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 2, func(x []float64) float64 { return stat.StdDev(x, nil) })
}

func (bf *BuiltInFunctions) DSTDEVP(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 1, func(x []float64) float64 { return stat.PopStdDev(x, nil) })
}

func (bf *BuiltInFunctions) DVAR(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 2, func(x []float64) float64 { return stat.Variance(x, nil) })
}

func (bf *BuiltInFunctions) DVARP(c *call, args []Arg) CellValue {
	return c.dbReduce(args, 1, func(x []float64) float64 { return stat.PopVariance(x, nil) })
}

// DCOUNT counts numeric field values, or matching records when the field
// is omitted.
func (bf *BuiltInFunctions) DCOUNT(c *call, args []Arg) CellValue {
	values, errv, ok := c.query(args)
	if !ok {
		return errv
	}
	n := 0
	for _, v := range values {
		if v.IsNumber() {
			n++
		}
	}
	return IntValue(int64(n))
}

func (bf *BuiltInFunctions) DCOUNTA(c *call, args []Arg) CellValue {
	values, errv, ok := c.query(args)
	if !ok {
		return errv
	}
	n := 0
	for _, v := range values {
		if !IsBlank(v) {
			n++
		}
	}
	return IntValue(int64(n))
}

// DGET returns the field of the single matching record.
func (bf *BuiltInFunctions) DGET(c *call, args []Arg) CellValue {
	values, errv, ok := c.query(args)
	if !ok {
		return errv
	}
	switch len(values) {
	case 0:
		return ErrorValue(ErrorCodeValue, "DGET found no matching record")
	case 1:
		return values[0]
	}
	return ErrorValue(ErrorCodeNum, "DGET found more than one matching record")
}
