package formula

import "math"

// infoValue is the value an IS* function inspects. It never fails:
// errors are data here.
func infoValue(args []Arg) CellValue {
	return args[0].Value.resolve()
}

func (bf *BuiltInFunctions) ISBLANK(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).Kind == KindEmpty)
}

func (bf *BuiltInFunctions) ISNUMBER(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).IsNumber())
}

func (bf *BuiltInFunctions) ISTEXT(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).Kind == KindString)
}

func (bf *BuiltInFunctions) ISLOGICAL(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).Kind == KindBool)
}

func (bf *BuiltInFunctions) ISERROR(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).Kind == KindError)
}

func (bf *BuiltInFunctions) ISNA(c *call, args []Arg) CellValue {
	v := infoValue(args)
	return BoolValue(v.Kind == KindError && v.Err.ErrorCode == ErrorCodeNA)
}

func (bf *BuiltInFunctions) ISEVEN(c *call, args []Arg) CellValue {
	return parity(c, args, 0)
}

func (bf *BuiltInFunctions) ISODD(c *call, args []Arg) CellValue {
	return parity(c, args, 1)
}

// parity truncates toward zero before testing, so ISEVEN(2.9) is TRUE.
func parity(c *call, args []Arg, want int64) CellValue {
	r := c.read(args)
	n := r.number(0)
	if r.failed {
		return r.err
	}
	rem := int64(math.Abs(math.Trunc(n))) % 2
	return BoolValue(rem == want)
}

func (bf *BuiltInFunctions) NA(c *call, args []Arg) CellValue {
	return ErrorValue(ErrorCodeNA, "")
}

// ISERR is ISERROR without #N/A.
func (bf *BuiltInFunctions) ISERR(c *call, args []Arg) CellValue {
	v := infoValue(args)
	return BoolValue(v.Kind == KindError && v.Err.ErrorCode != ErrorCodeNA)
}

func (bf *BuiltInFunctions) ISNONTEXT(c *call, args []Arg) CellValue {
	return BoolValue(infoValue(args).Kind != KindString)
}

// N converts to a number: booleans to 1 and 0, text and blanks to 0.
func (bf *BuiltInFunctions) N(c *call, args []Arg) CellValue {
	v := infoValue(args)
	switch v.Kind {
	case KindError:
		return v
	case KindInt:
		return v
	case KindFloat, KindDateTime:
		return numberValue(v.Num)
	case KindBool:
		if v.Bool {
			return IntValue(1)
		}
	}
	return IntValue(0)
}

// TYPE returns 1 for numbers, 2 for text, 4 for logicals, 16 for errors
// and 64 for arrays.
func (bf *BuiltInFunctions) TYPE(c *call, args []Arg) CellValue {
	if args[0].Range != nil && len(args[0].Range.Values) > 1 {
		return IntValue(64)
	}
	switch infoValue(args).Kind {
	case KindString:
		return IntValue(2)
	case KindBool:
		return IntValue(4)
	case KindError:
		return IntValue(16)
	}
	return IntValue(1)
}

// ERROR.TYPE numbers the error codes from #NULL! = 1 to #N/A = 7.
func (bf *BuiltInFunctions) ERRORTYPE(c *call, args []Arg) CellValue {
	v := infoValue(args)
	if v.Kind != KindError {
		return ErrorValue(ErrorCodeNA, "ERROR.TYPE argument is not an error")
	}
	return IntValue(int64(v.Err.ErrorCode))
}
