package formula

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

func (bf *BuiltInFunctions) SUM(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return FloatValue(roundSum(sum))
}

// roundSum trims binary noise such as 0.1+0.2 = 0.30000000000000004.
func roundSum(sum float64) float64 {
	if math.IsInf(sum, 0) || math.IsNaN(sum) {
		return sum
	}
	rounded, err := strconv.ParseFloat(fmt.Sprintf("%.15g", sum), 64)
	if err != nil {
		return sum
	}
	return rounded
}

func (bf *BuiltInFunctions) PRODUCT(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return FloatValue(0)
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return checkedFloat(product)
}

func (bf *BuiltInFunctions) SUMSQ(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	sum := 0.0
	for _, n := range nums {
		sum += n * n
	}
	return checkedFloat(sum)
}

func (bf *BuiltInFunctions) MIN(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return FloatValue(0)
	}
	min := math.Inf(1)
	for _, n := range nums {
		if n < min {
			min = n
		}
	}
	return FloatValue(min)
}

func (bf *BuiltInFunctions) MAX(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return FloatValue(0)
	}
	max := math.Inf(-1)
	for _, n := range nums {
		if n > max {
			max = n
		}
	}
	return FloatValue(max)
}

func (bf *BuiltInFunctions) AVERAGE(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return ErrorValue(ErrorCodeDiv0, "AVERAGE of an empty set")
	}
	return FloatValue(stat.Mean(nums, nil))
}

func (bf *BuiltInFunctions) AVEDEV(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return ErrorValue(ErrorCodeNum, "AVEDEV of an empty set")
	}
	mean := stat.Mean(nums, nil)
	dev := 0.0
	for _, n := range nums {
		dev += math.Abs(n - mean)
	}
	return FloatValue(dev / float64(len(nums)))
}

// COUNT never looks at error values: they are simply not numbers.
func (bf *BuiltInFunctions) COUNT(c *call, args []Arg) CellValue {
	var count int64
	for _, arg := range args {
		if arg.Range != nil {
			for _, v := range arg.Range.Values {
				if v.IsNumber() {
					count++
				}
			}
			continue
		}
		v := arg.Value.resolve()
		if isOmitted(arg.Expr) || v.Kind == KindError || v.Kind == KindEmpty {
			continue
		}
		if _, ok := ToNumberLenient(v); ok {
			count++
		}
	}
	return IntValue(count)
}

func (bf *BuiltInFunctions) COUNTA(c *call, args []Arg) CellValue {
	var count int64
	for _, arg := range args {
		if arg.Range == nil && isOmitted(arg.Expr) {
			continue
		}
		for _, v := range arg.Values() {
			if v.resolve().Kind != KindEmpty {
				count++
			}
		}
	}
	return IntValue(count)
}

func (bf *BuiltInFunctions) COUNTBLANK(c *call, args []Arg) CellValue {
	var count int64
	for _, v := range args[0].Values() {
		if IsBlank(v) {
			count++
		}
	}
	return IntValue(count)
}

// aValue is the reading used by AVERAGEA, MINA and MAXA: booleans are
// 1/0, text is 0, blanks are skipped.
func aValue(v CellValue) (n float64, counted bool) {
	switch v.Kind {
	case KindInt, KindFloat, KindDateTime:
		n, _ = ToNumber(v)
		return n, true
	case KindBool:
		return float64(boolInt(v.Bool)), true
	case KindString:
		return 0, true
	}
	return 0, false
}

// collectA walks every element with aValue semantics. The first error
// ends the scan and becomes the result.
func collectA(args []Arg) ([]float64, CellValue, bool) {
	var nums []float64
	for _, arg := range args {
		if arg.Range == nil && isOmitted(arg.Expr) {
			continue
		}
		for _, v := range arg.Values() {
			v = v.resolve()
			if v.Kind == KindError {
				return nil, v, false
			}
			if n, counted := aValue(v); counted {
				nums = append(nums, n)
			}
		}
	}
	return nums, CellValue{}, true
}

func (bf *BuiltInFunctions) AVERAGEA(c *call, args []Arg) CellValue {
	nums, errv, ok := collectA(args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return ErrorValue(ErrorCodeDiv0, "AVERAGEA of an empty set")
	}
	return FloatValue(stat.Mean(nums, nil))
}

func (bf *BuiltInFunctions) MINA(c *call, args []Arg) CellValue {
	nums, errv, ok := collectA(args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return FloatValue(0)
	}
	min := nums[0]
	for _, n := range nums[1:] {
		min = math.Min(min, n)
	}
	return FloatValue(min)
}

func (bf *BuiltInFunctions) MAXA(c *call, args []Arg) CellValue {
	nums, errv, ok := collectA(args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return FloatValue(0)
	}
	max := nums[0]
	for _, n := range nums[1:] {
		max = math.Max(max, n)
	}
	return FloatValue(max)
}

// SUMPRODUCT multiplies same-shaped arrays element-wise; non-numeric
// elements count as zero.
func (bf *BuiltInFunctions) SUMPRODUCT(c *call, args []Arg) CellValue {
	r := c.read(args)
	tables := make([]RangeValue, len(args))
	for i := range args {
		tables[i] = r.table(i)
	}
	if r.failed {
		return r.err
	}
	first := tables[0]
	for _, t := range tables[1:] {
		if t.Rows != first.Rows || t.Cols != first.Cols {
			return ErrorValue(ErrorCodeValue, "SUMPRODUCT arrays must have the same dimensions")
		}
	}

	total := 0.0
	for i := range first.Values {
		product := 1.0
		for _, t := range tables {
			v := t.Values[i].resolve()
			if v.Kind == KindError {
				return v
			}
			n, ok := ToNumber(v)
			if !ok {
				n = 0
			}
			product *= n
		}
		total += product
	}
	return FloatValue(roundSum(total))
}

// criteriaPair is one (range, criteria) condition of the *IFS family.
type criteriaPair struct {
	values   []CellValue
	criteria Criteria
}

// criteriaPairs reads alternating range/criteria arguments starting at
// start, requiring every range to have the given shape.
func (c *call) criteriaPairs(args []Arg, start int, rows, cols int) ([]criteriaPair, CellValue, bool) {
	if (len(args)-start)%2 != 0 {
		return nil, errorf(ErrorCodeValue, "%s expects range/criteria pairs", c.name), false
	}
	r := c.read(args)
	var pairs []criteriaPair
	for i := start; i+1 < len(args); i += 2 {
		t := r.table(i)
		crit := r.scalar(i + 1)
		if r.failed {
			return nil, r.err, false
		}
		if t.Rows != rows || t.Cols != cols {
			return nil, errorf(ErrorCodeValue, "%s criteria ranges must have the same size", c.name), false
		}
		pairs = append(pairs, criteriaPair{values: t.Values, criteria: ParseCriteria(crit)})
	}
	return pairs, CellValue{}, true
}

func matchesAll(pairs []criteriaPair, idx int) bool {
	for _, p := range pairs {
		if !p.criteria.Matches(p.values[idx]) {
			return false
		}
	}
	return true
}

// conditionalTarget reads the optional third argument of SUMIF and
// AVERAGEIF, defaulting to the criteria range itself.
func (c *call) conditionalTarget(args []Arg, rng RangeValue) (RangeValue, CellValue, bool) {
	if len(args) < 3 || isOmitted(args[2].Expr) {
		return rng, CellValue{}, true
	}
	r := c.read(args)
	target := r.table(2)
	if r.failed {
		return RangeValue{}, r.err, false
	}
	if target.Rows != rng.Rows || target.Cols != rng.Cols {
		return RangeValue{}, errorf(ErrorCodeValue, "%s range and target range must have the same size", c.name), false
	}
	return target, CellValue{}, true
}

func (bf *BuiltInFunctions) SUMIF(c *call, args []Arg) CellValue {
	r := c.read(args)
	rng := r.table(0)
	crit := r.scalar(1)
	if r.failed {
		return r.err
	}
	target, errv, ok := c.conditionalTarget(args, rng)
	if !ok {
		return errv
	}
	criteria := ParseCriteria(crit)
	total := 0.0
	for i, v := range rng.Values {
		if criteria.Matches(v) {
			if t := target.Values[i].resolve(); t.Kind == KindError {
				return t
			} else if n, ok := ToNumber(t); ok {
				total += n
			}
		}
	}
	return FloatValue(roundSum(total))
}

func (bf *BuiltInFunctions) COUNTIF(c *call, args []Arg) CellValue {
	r := c.read(args)
	rng := r.table(0)
	crit := r.scalar(1)
	if r.failed {
		return r.err
	}
	criteria := ParseCriteria(crit)
	var count int64
	for _, v := range rng.Values {
		if criteria.Matches(v) {
			count++
		}
	}
	return IntValue(count)
}

func (bf *BuiltInFunctions) AVERAGEIF(c *call, args []Arg) CellValue {
	r := c.read(args)
	rng := r.table(0)
	crit := r.scalar(1)
	if r.failed {
		return r.err
	}
	target, errv, ok := c.conditionalTarget(args, rng)
	if !ok {
		return errv
	}
	criteria := ParseCriteria(crit)
	var matched []float64
	for i, v := range rng.Values {
		if criteria.Matches(v) {
			if t := target.Values[i].resolve(); t.Kind == KindError {
				return t
			} else if n, ok := ToNumber(t); ok {
				matched = append(matched, n)
			}
		}
	}
	if len(matched) == 0 {
		return ErrorValue(ErrorCodeDiv0, "AVERAGEIF has no matching numeric values")
	}
	return FloatValue(stat.Mean(matched, nil))
}

func (bf *BuiltInFunctions) SUMIFS(c *call, args []Arg) CellValue {
	r := c.read(args)
	target := r.table(0)
	if r.failed {
		return r.err
	}
	pairs, errv, ok := c.criteriaPairs(args, 1, target.Rows, target.Cols)
	if !ok {
		return errv
	}
	total := 0.0
	for i, v := range target.Values {
		if matchesAll(pairs, i) {
			if e := v.resolve(); e.Kind == KindError {
				return e
			}
			if n, ok := ToNumber(v); ok {
				total += n
			}
		}
	}
	return FloatValue(roundSum(total))
}

func (bf *BuiltInFunctions) COUNTIFS(c *call, args []Arg) CellValue {
	r := c.read(args)
	first := r.table(0)
	if r.failed {
		return r.err
	}
	pairs, errv, ok := c.criteriaPairs(args, 0, first.Rows, first.Cols)
	if !ok {
		return errv
	}
	var count int64
	for i := range first.Values {
		if matchesAll(pairs, i) {
			count++
		}
	}
	return IntValue(count)
}

func (bf *BuiltInFunctions) AVERAGEIFS(c *call, args []Arg) CellValue {
	r := c.read(args)
	target := r.table(0)
	if r.failed {
		return r.err
	}
	pairs, errv, ok := c.criteriaPairs(args, 1, target.Rows, target.Cols)
	if !ok {
		return errv
	}
	var matched []float64
	for i, v := range target.Values {
		if matchesAll(pairs, i) {
			if e := v.resolve(); e.Kind == KindError {
				return e
			}
			if n, ok := ToNumber(v); ok {
				matched = append(matched, n)
			}
		}
	}
	if len(matched) == 0 {
		return ErrorValue(ErrorCodeDiv0, "AVERAGEIFS has no matching numeric values")
	}
	return FloatValue(stat.Mean(matched, nil))
}
