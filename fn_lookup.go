package formula

// exactMatchIndex returns the position of the first value equal to
// needle, or -1.
func exactMatchIndex(needle CellValue, values []CellValue) int {
	for i, v := range values {
		if ValuesEqual(needle, v) {
			return i
		}
	}
	return -1
}

// exactOnly reads the optional range_lookup flag; absent means exact.
func exactOnly(r *argReader, i int) bool {
	return !r.booleanOr(i, false)
}

func (bf *BuiltInFunctions) VLOOKUP(c *call, args []Arg) CellValue {
	r := c.read(args)
	needle := r.scalar(0)
	table := r.table(1)
	col := r.number(2)
	exact := exactOnly(r, 3)
	if r.failed {
		return r.err
	}
	if col < 1 {
		return ErrorValue(ErrorCodeValue, "VLOOKUP col_index_num must be a positive number")
	}
	if !exact {
		return ErrorValue(ErrorCodeNA, "VLOOKUP currently only supports exact match (range_lookup = FALSE)")
	}
	if col > float64(table.Cols) {
		return ErrorValue(ErrorCodeRef, "VLOOKUP col_index_num out of bounds for table_array")
	}
	idx := int(col)
	for row := 0; row < table.Rows; row++ {
		if ValuesEqual(needle, table.At(row, 0)) {
			return table.At(row, idx-1)
		}
	}
	return ErrorValue(ErrorCodeNA, "VLOOKUP: value not found")
}

func (bf *BuiltInFunctions) HLOOKUP(c *call, args []Arg) CellValue {
	r := c.read(args)
	needle := r.scalar(0)
	table := r.table(1)
	row := r.number(2)
	exact := exactOnly(r, 3)
	if r.failed {
		return r.err
	}
	if row < 1 {
		return ErrorValue(ErrorCodeValue, "HLOOKUP row_index_num must be a positive number")
	}
	if !exact {
		return ErrorValue(ErrorCodeNA, "HLOOKUP currently only supports exact match (range_lookup = FALSE)")
	}
	if row > float64(table.Rows) {
		return ErrorValue(ErrorCodeRef, "HLOOKUP row_index_num out of bounds for table_array")
	}
	idx := int(row)
	for col := 0; col < table.Cols; col++ {
		if ValuesEqual(needle, table.At(0, col)) {
			return table.At(idx-1, col)
		}
	}
	return ErrorValue(ErrorCodeNA, "HLOOKUP: value not found")
}

func (bf *BuiltInFunctions) MATCH(c *call, args []Arg) CellValue {
	r := c.read(args)
	needle := r.scalar(0)
	haystack := r.table(1)
	matchType := r.numberOr(2, 0)
	if r.failed {
		return r.err
	}
	if !haystack.Is1D() {
		return ErrorValue(ErrorCodeNA, "MATCH lookup_array must be a one-dimensional range")
	}
	if matchType != 0 {
		return ErrorValue(ErrorCodeNA, "MATCH currently only supports match_type = 0 (exact match)")
	}
	if idx := exactMatchIndex(needle, haystack.Values); idx >= 0 {
		return IntValue(int64(idx + 1))
	}
	return ErrorValue(ErrorCodeNA, "MATCH: value not found")
}

func (bf *BuiltInFunctions) XMATCH(c *call, args []Arg) CellValue {
	r := c.read(args)
	needle := r.scalar(0)
	haystack := r.table(1)
	mode := r.numberOr(2, 0)
	if r.failed {
		return r.err
	}
	if !haystack.Is1D() {
		return ErrorValue(ErrorCodeNA, "XMATCH lookup_array must be a one-dimensional range")
	}
	if mode != 0 {
		return ErrorValue(ErrorCodeNA, "XMATCH currently only supports match_mode = 0 (exact match)")
	}
	if r.present(3) {
		return ErrorValue(ErrorCodeValue, "XMATCH search_mode is not supported")
	}
	if idx := exactMatchIndex(needle, haystack.Values); idx >= 0 {
		return IntValue(int64(idx + 1))
	}
	return ErrorValue(ErrorCodeNA, "XMATCH: value not found")
}

// XLOOKUP(lookup_value, lookup_array, return_array, [if_not_found],
// [match_mode], [search_mode])
func (bf *BuiltInFunctions) XLOOKUP(c *call, args []Arg) CellValue {
	r := c.read(args)
	needle := r.scalar(0)
	keys := r.table(1)
	results := r.table(2)
	mode := r.numberOr(4, 0)
	if r.failed {
		return r.err
	}
	if !keys.Is1D() || !results.Is1D() {
		return ErrorValue(ErrorCodeValue, "XLOOKUP lookup_array and return_array must be one-dimensional ranges")
	}
	if len(keys.Values) != len(results.Values) {
		return ErrorValue(ErrorCodeValue, "XLOOKUP lookup_array and return_array must have the same length")
	}
	if mode != 0 {
		return ErrorValue(ErrorCodeNA, "XLOOKUP currently only supports match_mode = 0 (exact match)")
	}
	if r.present(5) {
		return ErrorValue(ErrorCodeValue, "XLOOKUP search_mode is not supported")
	}
	if idx := exactMatchIndex(needle, keys.Values); idx >= 0 {
		return results.Values[idx]
	}
	if r.present(3) {
		return args[3].Value.resolve()
	}
	return ErrorValue(ErrorCodeNA, "XLOOKUP: value not found")
}

// INDEX(array, row_num, [column_num]); a one-row array accepts the
// column as its second argument.
func (bf *BuiltInFunctions) INDEX(c *call, args []Arg) CellValue {
	r := c.read(args)
	table := r.table(0)
	row := r.integer(1)
	col := r.integerOr(2, 1)
	if r.failed {
		return r.err
	}
	if row < 1 {
		return ErrorValue(ErrorCodeValue, "INDEX row_num must be a positive number")
	}
	if col < 1 {
		return ErrorValue(ErrorCodeValue, "INDEX column_num must be a positive number")
	}
	if table.Rows == 1 && !r.present(2) {
		row, col = 1, row
	}
	if row > int64(table.Rows) || col > int64(table.Cols) {
		return ErrorValue(ErrorCodeRef, "INDEX row_num/column_num out of bounds for array")
	}
	return table.At(int(row-1), int(col-1))
}

// positionOf resolves the reference argument of ROW and COLUMN, or the
// current cell when there is none.
func (c *call) positionOf(args []Expr) (row, col uint32, errv CellValue) {
	if len(args) == 0 || isOmitted(args[0]) {
		pos, ok := c.ec.CurrentPosition()
		if !ok {
			return 0, 0, errorf(ErrorCodeValue, "%s without arguments needs a current cell", c.name)
		}
		return pos.Row, pos.Col, CellValue{}
	}

	expr := args[0]
	if n, ok := expr.(*NameExpr); ok {
		target, found := c.resolveName(n.Name)
		if !found {
			return 0, 0, ErrorValue(ErrorCodeName, "Unknown name: "+n.Name)
		}
		expr = target
	}
	switch ref := expr.(type) {
	case *CellRefExpr:
		return ref.Ref.Row, ref.Ref.Col, CellValue{}
	case *RangeRefExpr:
		n := ref.Ref.Normalized()
		if n.StartRow != n.EndRow || n.StartCol != n.EndCol {
			return 0, 0, errorf(ErrorCodeValue, "%s expects a single-cell reference, got %s", c.name, ref.Ref.String())
		}
		return n.StartRow, n.StartCol, CellValue{}
	}
	return 0, 0, errorf(ErrorCodeValue, "%s expects a cell or range reference", c.name)
}

func (bf *BuiltInFunctions) ROW(c *call, args []Expr) (CellValue, error) {
	row, _, errv := c.positionOf(args)
	if errv.Kind == KindError {
		return errv, nil
	}
	return IntValue(int64(row)), nil
}

func (bf *BuiltInFunctions) COLUMN(c *call, args []Expr) (CellValue, error) {
	_, col, errv := c.positionOf(args)
	if errv.Kind == KindError {
		return errv, nil
	}
	return IntValue(int64(col)), nil
}

func (bf *BuiltInFunctions) ROWS(c *call, args []Arg) CellValue {
	r := c.read(args)
	t := r.table(0)
	if r.failed {
		return r.err
	}
	return IntValue(int64(t.Rows))
}

func (bf *BuiltInFunctions) COLUMNS(c *call, args []Arg) CellValue {
	r := c.read(args)
	t := r.table(0)
	if r.failed {
		return r.err
	}
	return IntValue(int64(t.Cols))
}
