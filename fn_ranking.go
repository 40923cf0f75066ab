package formula

import (
	"math"
	"slices"
	"sort"
)

const maxSignificance = 15

// sortedSample is the numeric content of args, ascending.
func sortedSample(c *call, args []Arg) ([]float64, CellValue, bool) {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return nil, errv, false
	}
	slices.Sort(nums)
	return nums, CellValue{}, true
}

// rankPositions returns the 1-based first and last position of x in the
// reference, ordered descending unless order is non-zero.
func rankPositions(c *call, args []Arg) (int, int, CellValue, bool) {
	r := c.read(args)
	x := r.number(0)
	ascending := r.numberOr(2, 0) != 0
	if r.failed {
		return 0, 0, r.err, false
	}
	nums, errv, ok := sortedSample(c, args[1:2])
	if !ok {
		return 0, 0, errv, false
	}
	lo := sort.SearchFloat64s(nums, x)
	hi := sort.Search(len(nums), func(i int) bool { return nums[i] > x })
	if lo == hi {
		return 0, 0, errorf(ErrorCodeNA, "%s: number is not in the reference", c.name), false
	}
	if ascending {
		return lo + 1, hi, CellValue{}, true
	}
	n := len(nums)
	return n - hi + 1, n - lo, CellValue{}, true
}

// RANK(number, ref, [order]) and RANK.EQ give ties the best position.
func (bf *BuiltInFunctions) RANK(c *call, args []Arg) CellValue {
	first, _, errv, ok := rankPositions(c, args)
	if !ok {
		return errv
	}
	return IntValue(int64(first))
}

// RANK.AVG gives ties the mean of the positions they span.
func (bf *BuiltInFunctions) RANKAVG(c *call, args []Arg) CellValue {
	first, last, errv, ok := rankPositions(c, args)
	if !ok {
		return errv
	}
	return numberValue(float64(first+last) / 2)
}

// interpolate reads a sorted sample at a fractional 0-based position.
func interpolate(nums []float64, pos float64) float64 {
	lower := math.Floor(pos)
	i := int(lower)
	if i >= len(nums)-1 {
		return nums[len(nums)-1]
	}
	return nums[i] + (pos-lower)*(nums[i+1]-nums[i])
}

// percentileOf places k on positions 0..n-1 (inclusive) or 1..n of n+1
// slots (exclusive).
func percentileOf(name string, nums []float64, k float64, exclusive bool) CellValue {
	n := float64(len(nums))
	if !exclusive {
		if k < 0 || k > 1 {
			return errorf(ErrorCodeNum, "%s k must be between 0 and 1", name)
		}
		return numberValue(interpolate(nums, k*(n-1)))
	}
	pos := k * (n + 1)
	if k <= 0 || k >= 1 || pos < 1 || pos > n {
		return errorf(ErrorCodeNum, "%s k must be between 1/(n+1) and n/(n+1)", name)
	}
	return numberValue(interpolate(nums, pos-1))
}

func percentile(c *call, args []Arg, exclusive bool) CellValue {
	r := c.read(args)
	k := r.number(1)
	if r.failed {
		return r.err
	}
	nums, errv, ok := sortedSample(c, args[:1])
	if !ok {
		return errv
	}
	return percentileOf(c.name, nums, k, exclusive)
}

// PERCENTILE(array, k) and PERCENTILE.INC
func (bf *BuiltInFunctions) PERCENTILE(c *call, args []Arg) CellValue {
	return percentile(c, args, false)
}

func (bf *BuiltInFunctions) PERCENTILEEXC(c *call, args []Arg) CellValue {
	return percentile(c, args, true)
}

func quartile(c *call, args []Arg, exclusive bool) CellValue {
	r := c.read(args)
	q := r.integer(1)
	if r.failed {
		return r.err
	}
	lo, hi := int64(0), int64(4)
	if exclusive {
		lo, hi = 1, 3
	}
	if q < lo || q > hi {
		return errorf(ErrorCodeNum, "%s quart must be between %d and %d", c.name, lo, hi)
	}
	nums, errv, ok := sortedSample(c, args[:1])
	if !ok {
		return errv
	}
	return percentileOf(c.name, nums, float64(q)/4, exclusive)
}

// QUARTILE(array, quart) and QUARTILE.INC
func (bf *BuiltInFunctions) QUARTILE(c *call, args []Arg) CellValue {
	return quartile(c, args, false)
}

func (bf *BuiltInFunctions) QUARTILEEXC(c *call, args []Arg) CellValue {
	return quartile(c, args, true)
}

// position is where x falls in the sorted sample, counting from 0 and
// interpolating between neighbours. ok is false outside [min, max].
func position(nums []float64, x float64) (float64, bool) {
	if x < nums[0] || x > nums[len(nums)-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(nums, x)
	if nums[i] == x {
		return float64(i), true
	}
	lower, upper := nums[i-1], nums[i]
	return float64(i-1) + (x-lower)/(upper-lower), true
}

func percentRank(c *call, args []Arg, exclusive bool) CellValue {
	r := c.read(args)
	x := r.number(1)
	digits := r.integerOr(2, 3)
	if r.failed {
		return r.err
	}
	if digits < 1 || digits > maxSignificance {
		return errorf(ErrorCodeNum, "%s significance must be between 1 and %d", c.name, maxSignificance)
	}
	nums, errv, ok := sortedSample(c, args[:1])
	if !ok {
		return errv
	}
	pos, ok := position(nums, x)
	if !ok {
		return errorf(ErrorCodeNA, "%s x is outside the data", c.name)
	}
	var rank float64
	switch {
	case exclusive:
		rank = (pos + 1) / float64(len(nums)+1)
	case len(nums) == 1:
		rank = 1
	default:
		rank = pos / float64(len(nums)-1)
	}
	scale := math.Pow(10, float64(digits))
	return numberValue(math.Round(rank*scale) / scale)
}

// PERCENTRANK(array, x, [significance]) and PERCENTRANK.INC
func (bf *BuiltInFunctions) PERCENTRANK(c *call, args []Arg) CellValue {
	return percentRank(c, args, false)
}

func (bf *BuiltInFunctions) PERCENTRANKEXC(c *call, args []Arg) CellValue {
	return percentRank(c, args, true)
}

// TRIMMEAN(array, percent) drops floor(n*percent/2) values from each end.
func (bf *BuiltInFunctions) TRIMMEAN(c *call, args []Arg) CellValue {
	r := c.read(args)
	percent := r.number(1)
	if r.failed {
		return r.err
	}
	if percent < 0 || percent >= 1 {
		return ErrorValue(ErrorCodeNum, "TRIMMEAN percent must be in [0, 1)")
	}
	nums, errv, ok := sortedSample(c, args[:1])
	if !ok {
		return errv
	}
	trim := int(math.Floor(float64(len(nums))*percent)) / 2
	return checkedFloat(meanOf(nums[trim : len(nums)-trim]))
}
