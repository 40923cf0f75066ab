package formula

// IF evaluates the condition, then only the branch it selects.
func (bf *BuiltInFunctions) IF(c *call, args []Expr) (CellValue, error) {
	cond, err := c.eval(args[0])
	if err != nil {
		return CellValue{}, err
	}
	if cond.Kind == KindError {
		return cond, nil
	}
	truthy, ok := logicalValue(cond)
	if !ok {
		return ErrorValue(ErrorCodeValue, "IF condition is not a logical value"), nil
	}

	switch {
	case truthy:
		return c.branch(args[1])
	case len(args) == 3:
		return c.branch(args[2])
	}
	return BoolValue(false), nil
}

// branch evaluates a selected result; an omitted branch is 0.
func (c *call) branch(expr Expr) (CellValue, error) {
	if isOmitted(expr) {
		return IntValue(0), nil
	}
	return c.eval(expr)
}

func (bf *BuiltInFunctions) IFS(c *call, args []Expr) (CellValue, error) {
	if len(args)%2 != 0 {
		return ErrorValue(ErrorCodeValue, "IFS expects condition/value pairs"), nil
	}
	for i := 0; i < len(args); i += 2 {
		cond, err := c.eval(args[i])
		if err != nil {
			return CellValue{}, err
		}
		if cond.Kind == KindError {
			return cond, nil
		}
		truthy, ok := logicalValue(cond)
		if !ok {
			return errorf(ErrorCodeValue, "IFS condition %d is not a logical value", i/2+1), nil
		}
		if truthy {
			return c.branch(args[i+1])
		}
	}
	return ErrorValue(ErrorCodeNA, "IFS: no condition was met"), nil
}

// logicalArgs yields the logical values of one argument: a scalar must
// be logical, range elements that are not are skipped.
func (c *call) logicalArgs(expr Expr, yield func(bool) bool) (CellValue, error) {
	arg, err := c.evalArg(expr)
	if err != nil {
		return CellValue{}, err
	}
	if arg.Range == nil {
		v := arg.Value.resolve()
		if v.Kind == KindError {
			return v, nil
		}
		b, ok := logicalValue(v)
		if !ok {
			return errorf(ErrorCodeValue, "%s expects logical values", c.name), nil
		}
		yield(b)
		return CellValue{}, nil
	}
	for _, v := range arg.Range.Values {
		switch v.Kind {
		case KindError:
			return v, nil
		case KindBool, KindInt, KindFloat, KindDateTime:
			if !yield(ToBool(v)) {
				return CellValue{}, nil
			}
		}
	}
	return CellValue{}, nil
}

// shortCircuit drives AND and OR: stop is the value that decides the
// result on its own.
func (c *call) shortCircuit(args []Expr, stop bool) (CellValue, error) {
	seen := false
	decided := false
	for _, expr := range args {
		errv, err := c.logicalArgs(expr, func(b bool) bool {
			seen = true
			if b == stop {
				decided = true
				return false
			}
			return true
		})
		if err != nil {
			return CellValue{}, err
		}
		if errv.Kind == KindError {
			return errv, nil
		}
		if decided {
			return BoolValue(stop), nil
		}
	}
	if !seen {
		return errorf(ErrorCodeValue, "%s has no logical values", c.name), nil
	}
	return BoolValue(!stop), nil
}

func (bf *BuiltInFunctions) AND(c *call, args []Expr) (CellValue, error) {
	return c.shortCircuit(args, false)
}

func (bf *BuiltInFunctions) OR(c *call, args []Expr) (CellValue, error) {
	return c.shortCircuit(args, true)
}

// XOR is true when an odd number of values are true.
func (bf *BuiltInFunctions) XOR(c *call, args []Arg) CellValue {
	count, seen := 0, false
	for _, arg := range args {
		if arg.Range == nil {
			v := arg.Value.resolve()
			if v.Kind == KindError {
				return v
			}
			b, ok := logicalValue(v)
			if !ok {
				return ErrorValue(ErrorCodeValue, "XOR expects logical values")
			}
			seen = true
			if b {
				count++
			}
			continue
		}
		for _, v := range arg.Range.Values {
			switch v.Kind {
			case KindError:
				return v
			case KindBool, KindInt, KindFloat, KindDateTime:
				seen = true
				if ToBool(v) {
					count++
				}
			}
		}
	}
	if !seen {
		return ErrorValue(ErrorCodeValue, "XOR has no logical values")
	}
	return BoolValue(count%2 == 1)
}

func (bf *BuiltInFunctions) NOT(c *call, args []Arg) CellValue {
	r := c.read(args)
	b := r.boolean(0)
	if r.failed {
		return r.err
	}
	return BoolValue(!b)
}

func (bf *BuiltInFunctions) TRUE(c *call, args []Arg) CellValue {
	return BoolValue(true)
}

func (bf *BuiltInFunctions) FALSE(c *call, args []Arg) CellValue {
	return BoolValue(false)
}

// SWITCH(expr, value1, result1, ..., [default])
func (bf *BuiltInFunctions) SWITCH(c *call, args []Expr) (CellValue, error) {
	subject, err := c.eval(args[0])
	if err != nil {
		return CellValue{}, err
	}
	if subject.Kind == KindError {
		return subject, nil
	}

	rest := args[1:]
	hasDefault := len(rest)%2 == 1
	pairs := len(rest) / 2
	for i := 0; i < pairs; i++ {
		candidate, err := c.eval(rest[2*i])
		if err != nil {
			return CellValue{}, err
		}
		if candidate.Kind == KindError {
			return candidate, nil
		}
		if ValuesEqual(subject, candidate) {
			return c.branch(rest[2*i+1])
		}
	}
	if hasDefault {
		return c.branch(rest[len(rest)-1])
	}
	return ErrorValue(ErrorCodeNA, "SWITCH: no match found"), nil
}

func (bf *BuiltInFunctions) IFERROR(c *call, args []Expr) (CellValue, error) {
	v, err := c.eval(args[0])
	if err != nil {
		return CellValue{}, err
	}
	if v.Kind == KindError {
		return c.branch(args[1])
	}
	return v, nil
}

func (bf *BuiltInFunctions) IFNA(c *call, args []Expr) (CellValue, error) {
	v, err := c.eval(args[0])
	if err != nil {
		return CellValue{}, err
	}
	if v.Kind == KindError && v.Err.ErrorCode == ErrorCodeNA {
		return c.branch(args[1])
	}
	return v, nil
}
