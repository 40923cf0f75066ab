package formula

import "math"

const (
	maxBitwiseValue = 1<<48 - 1
	maxBitShift     = 53
)

// unaryMath applies f to a single numeric argument. NaN and infinite
// results become #NUM!.
func unaryMath(c *call, args []Arg, f func(float64) float64) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	return checkedFloat(f(x))
}

func (bf *BuiltInFunctions) INT(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	return numberValue(math.Floor(x))
}

// ABS keeps an integer argument integral.
func (bf *BuiltInFunctions) ABS(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	if v.Kind == KindInt && v.Int != math.MinInt64 {
		if v.Int < 0 {
			return IntValue(-v.Int)
		}
		return v
	}
	return FloatValue(math.Abs(x))
}

func (bf *BuiltInFunctions) POWER(c *call, args []Arg) CellValue {
	r := c.read(args)
	base := r.number(0)
	exp := r.number(1)
	if r.failed {
		return r.err
	}
	if base == 0 && exp == 0 {
		return ErrorValue(ErrorCodeNum, "POWER of 0^0 is undefined")
	}
	if base == 0 && exp < 0 {
		return ErrorValue(ErrorCodeDiv0, "Division by zero")
	}
	return checkedFloat(math.Pow(base, exp))
}

func (bf *BuiltInFunctions) LN(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Log)
}

func (bf *BuiltInFunctions) LOG10(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Log10)
}

// LOG(number, [base]) with base 10 by default.
func (bf *BuiltInFunctions) LOG(c *call, args []Arg) CellValue {
	r := c.read(args)
	n := r.number(0)
	base := r.numberOr(1, 10)
	if r.failed {
		return r.err
	}
	if n <= 0 {
		return ErrorValue(ErrorCodeNum, "LOG number must be positive")
	}
	if base <= 0 || base == 1 {
		return ErrorValue(ErrorCodeNum, "LOG base must be positive and not equal to 1")
	}
	return checkedFloat(math.Log(n) / math.Log(base))
}

func (bf *BuiltInFunctions) EXP(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Exp)
}

func (bf *BuiltInFunctions) SQRT(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Sqrt)
}

func (bf *BuiltInFunctions) SQRTPI(c *call, args []Arg) CellValue {
	return unaryMath(c, args, func(x float64) float64 { return math.Sqrt(x * math.Pi) })
}

// DELTA is 1 when both numbers are equal.
func (bf *BuiltInFunctions) DELTA(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	y := r.numberOr(1, 0)
	if r.failed {
		return r.err
	}
	if x == y {
		return IntValue(1)
	}
	return IntValue(0)
}

// GESTEP is 1 when number >= step.
func (bf *BuiltInFunctions) GESTEP(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	step := r.numberOr(1, 0)
	if r.failed {
		return r.err
	}
	if x >= step {
		return IntValue(1)
	}
	return IntValue(0)
}

// bitOperand reads a whole number in 0..2^48-1.
func bitOperand(r *argReader, i int) uint64 {
	x := r.number(i)
	if r.failed {
		return 0
	}
	if x < 0 || x > maxBitwiseValue || x != math.Trunc(x) {
		r.fail(errorf(ErrorCodeNum, "%s arguments must be integers between 0 and 2^48-1", r.name))
		return 0
	}
	return uint64(x)
}

func bitShift(r *argReader, i int) uint {
	x := r.number(i)
	if r.failed {
		return 0
	}
	if x < 0 || x > maxBitShift || x != math.Trunc(x) {
		r.fail(errorf(ErrorCodeNum, "%s shift must be between 0 and %d", r.name, maxBitShift))
		return 0
	}
	return uint(x)
}

func bitwise(c *call, args []Arg, op func(a, b uint64) uint64) CellValue {
	r := c.read(args)
	a := bitOperand(r, 0)
	b := bitOperand(r, 1)
	if r.failed {
		return r.err
	}
	return IntValue(int64(op(a, b)))
}

func (bf *BuiltInFunctions) BITAND(c *call, args []Arg) CellValue {
	return bitwise(c, args, func(a, b uint64) uint64 { return a & b })
}

func (bf *BuiltInFunctions) BITOR(c *call, args []Arg) CellValue {
	return bitwise(c, args, func(a, b uint64) uint64 { return a | b })
}

func (bf *BuiltInFunctions) BITXOR(c *call, args []Arg) CellValue {
	return bitwise(c, args, func(a, b uint64) uint64 { return a ^ b })
}

func (bf *BuiltInFunctions) BITLSHIFT(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := bitOperand(r, 0)
	n := bitShift(r, 1)
	if r.failed {
		return r.err
	}
	if n > 0 && v > maxBitwiseValue>>n {
		return ErrorValue(ErrorCodeNum, "BITLSHIFT result exceeds 2^48-1")
	}
	return IntValue(int64(v << n))
}

func (bf *BuiltInFunctions) BITRSHIFT(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := bitOperand(r, 0)
	n := bitShift(r, 1)
	if r.failed {
		return r.err
	}
	return IntValue(int64(v >> n))
}

// MOD takes the sign of the divisor.
func (bf *BuiltInFunctions) MOD(c *call, args []Arg) CellValue {
	r := c.read(args)
	n := r.number(0)
	d := r.number(1)
	if r.failed {
		return r.err
	}
	if d == 0 {
		return ErrorValue(ErrorCodeDiv0, "MOD divisor cannot be zero")
	}
	return numberValue(n - d*math.Floor(n/d))
}

func (bf *BuiltInFunctions) SIGN(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	switch {
	case x > 0:
		return IntValue(1)
	case x < 0:
		return IntValue(-1)
	}
	return IntValue(0)
}

func (bf *BuiltInFunctions) PI(c *call, args []Arg) CellValue {
	return FloatValue(math.Pi)
}

func (bf *BuiltInFunctions) RAND(c *call, args []Arg) CellValue {
	return FloatValue(bf.rng.Float64())
}

// RANDBETWEEN(bottom, top) returns an integer in [ceil(bottom), floor(top)].
func (bf *BuiltInFunctions) RANDBETWEEN(c *call, args []Arg) CellValue {
	r := c.read(args)
	lo := math.Ceil(r.number(0))
	hi := math.Floor(r.number(1))
	if r.failed {
		return r.err
	}
	if lo > hi {
		return ErrorValue(ErrorCodeNum, "RANDBETWEEN bottom must not exceed top")
	}
	n := lo + math.Floor(bf.rng.Float64()*(hi-lo+1))
	return numberValue(math.Min(n, hi))
}

// roundTo scales x by 10^digits, applies f and scales back.
func roundTo(x float64, digits int64, f func(float64) float64) float64 {
	if digits > 15 {
		digits = 15
	}
	if digits < -15 {
		digits = -15
	}
	factor := math.Pow(10, math.Abs(float64(digits)))
	if digits >= 0 {
		return f(x*factor) / factor
	}
	return f(x/factor) * factor
}

func rounding(c *call, args []Arg, f func(float64) float64) CellValue {
	r := c.read(args)
	x := r.number(0)
	digits := r.integerOr(1, 0)
	if r.failed {
		return r.err
	}
	return checkedNumber(roundTo(x, digits, f))
}

// checkedNumber is numberValue with NaN and infinities mapped to #NUM!.
func checkedNumber(f float64) CellValue {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return checkedFloat(f)
	}
	return numberValue(f)
}

// awayFromZero rounds to the next whole number away from zero.
func awayFromZero(x float64) float64 {
	if x >= 0 {
		return math.Ceil(x)
	}
	return math.Floor(x)
}

func (bf *BuiltInFunctions) ROUND(c *call, args []Arg) CellValue {
	return rounding(c, args, math.Round)
}

func (bf *BuiltInFunctions) ROUNDUP(c *call, args []Arg) CellValue {
	return rounding(c, args, awayFromZero)
}

func (bf *BuiltInFunctions) ROUNDDOWN(c *call, args []Arg) CellValue {
	return rounding(c, args, math.Trunc)
}

func (bf *BuiltInFunctions) TRUNC(c *call, args []Arg) CellValue {
	return rounding(c, args, math.Trunc)
}

func significance(c *call, args []Arg, f func(float64) float64) CellValue {
	r := c.read(args)
	x := r.number(0)
	sig := r.numberOr(1, 1)
	if r.failed {
		return r.err
	}
	if sig == 0 {
		return errorf(ErrorCodeDiv0, "%s significance must be non-zero", c.name)
	}
	if x > 0 && sig < 0 {
		return errorf(ErrorCodeNum, "%s significance must have the sign of the number", c.name)
	}
	return checkedNumber(f(x/sig) * sig)
}

func (bf *BuiltInFunctions) FLOOR(c *call, args []Arg) CellValue {
	return significance(c, args, math.Floor)
}

func (bf *BuiltInFunctions) CEILING(c *call, args []Arg) CellValue {
	return significance(c, args, math.Ceil)
}

// EVEN rounds away from zero to the nearest even integer.
func (bf *BuiltInFunctions) EVEN(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	n := awayFromZero(x)
	if math.Mod(n, 2) != 0 {
		n += math.Copysign(1, n)
	}
	return checkedNumber(n)
}

// ODD rounds away from zero to the nearest odd integer; ODD(0) is 1.
func (bf *BuiltInFunctions) ODD(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	if x == 0 {
		return IntValue(1)
	}
	n := awayFromZero(x)
	if math.Mod(n, 2) == 0 {
		n += math.Copysign(1, n)
	}
	return checkedNumber(n)
}

func (bf *BuiltInFunctions) FACT(c *call, args []Arg) CellValue {
	r := c.read(args)
	n := r.integer(0)
	if r.failed {
		return r.err
	}
	if n < 0 || n > 170 {
		return ErrorValue(ErrorCodeNum, "FACT argument must be between 0 and 170")
	}
	f := 1.0
	for i := int64(2); i <= n; i++ {
		f *= float64(i)
	}
	return numberValue(f)
}

// COMBIN(n, k) is the number of k-subsets of n items.
func (bf *BuiltInFunctions) COMBIN(c *call, args []Arg) CellValue {
	r := c.read(args)
	n := r.integer(0)
	k := r.integer(1)
	if r.failed {
		return r.err
	}
	if n < 0 || k < 0 || k > n {
		return ErrorValue(ErrorCodeNum, "COMBIN requires 0 <= k <= n")
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := int64(1); i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return checkedNumber(math.Round(result))
}

// wholeNumbers collects the arguments as non-negative integers.
func wholeNumbers(name string, args []Arg) ([]uint64, CellValue, bool) {
	nums, errv, ok := collectNumbers(name, args)
	if !ok {
		return nil, errv, false
	}
	out := make([]uint64, len(nums))
	for i, n := range nums {
		n = math.Trunc(n)
		if n < 0 || n >= 1<<53 {
			return nil, errorf(ErrorCodeNum, "%s arguments must be non-negative integers", name), false
		}
		out[i] = uint64(n)
	}
	return out, CellValue{}, true
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (bf *BuiltInFunctions) GCD(c *call, args []Arg) CellValue {
	nums, errv, ok := wholeNumbers(c.name, args)
	if !ok {
		return errv
	}
	var g uint64
	for _, n := range nums {
		g = gcd(g, n)
	}
	return IntValue(int64(g))
}

func (bf *BuiltInFunctions) LCM(c *call, args []Arg) CellValue {
	nums, errv, ok := wholeNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return IntValue(0)
	}
	l := 1.0
	for _, n := range nums {
		if n == 0 {
			return IntValue(0)
		}
		g := gcd(uint64(l), n)
		l = l / float64(g) * float64(n)
		if l >= 1<<53 {
			return ErrorValue(ErrorCodeNum, "LCM result is too large")
		}
	}
	return numberValue(l)
}

func (bf *BuiltInFunctions) SIN(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Sin)
}

func (bf *BuiltInFunctions) COS(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Cos)
}

func (bf *BuiltInFunctions) TAN(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Tan)
}

func (bf *BuiltInFunctions) ASIN(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Asin)
}

func (bf *BuiltInFunctions) ACOS(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Acos)
}

func (bf *BuiltInFunctions) ATAN(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Atan)
}

// ATAN2(y, x) is the angle of the point (x, y).
func (bf *BuiltInFunctions) ATAN2(c *call, args []Arg) CellValue {
	r := c.read(args)
	y := r.number(0)
	x := r.number(1)
	if r.failed {
		return r.err
	}
	if x == 0 && y == 0 {
		return ErrorValue(ErrorCodeDiv0, "ATAN2 of the origin is undefined")
	}
	return checkedFloat(math.Atan2(y, x))
}

func (bf *BuiltInFunctions) DEGREES(c *call, args []Arg) CellValue {
	return unaryMath(c, args, func(x float64) float64 { return x * 180 / math.Pi })
}

func (bf *BuiltInFunctions) RADIANS(c *call, args []Arg) CellValue {
	return unaryMath(c, args, func(x float64) float64 { return x * math.Pi / 180 })
}
