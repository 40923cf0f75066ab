package formula

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sample collects the numeric values of a statistical function. None at
// all is #NUM!, fewer than least is #DIV/0!.
func sample(c *call, args []Arg, least int) ([]float64, CellValue, bool) {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return nil, errv, false
	}
	if len(nums) == 0 {
		return nil, errorf(ErrorCodeNum, "%s has no numeric values", c.name), false
	}
	if len(nums) < least {
		return nil, errorf(ErrorCodeDiv0, "%s needs at least %d numeric values", c.name, least), false
	}
	return nums, CellValue{}, true
}

func (bf *BuiltInFunctions) MEDIAN(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return errv
	}
	median, err := stats.Median(nums)
	if err != nil {
		return errorf(ErrorCodeNum, "MEDIAN: %v", err)
	}
	return numberValue(median)
}

// MODE returns the smallest of the most frequent values, and #N/A when
// no value repeats.
func (bf *BuiltInFunctions) MODE(c *call, args []Arg) CellValue {
	nums, errv, ok := collectNumbers(c.name, args)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return ErrorValue(ErrorCodeNA, "MODE has no numeric values")
	}
	modes, err := stats.Mode(nums)
	if err != nil || len(modes) == 0 {
		return ErrorValue(ErrorCodeNA, "MODE: no value repeats")
	}
	mode := slices.Min(modes)
	count := 0
	for _, n := range nums {
		if n == mode {
			count++
		}
	}
	if count < 2 {
		return ErrorValue(ErrorCodeNA, "MODE: no value repeats")
	}
	return numberValue(mode)
}

func (bf *BuiltInFunctions) STDEVS(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 2)
	if !ok {
		return errv
	}
	return checkedFloat(stat.StdDev(nums, nil))
}

func (bf *BuiltInFunctions) STDEVP(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return errv
	}
	return checkedFloat(stat.PopStdDev(nums, nil))
}

func (bf *BuiltInFunctions) VARS(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 2)
	if !ok {
		return errv
	}
	return checkedFloat(stat.Variance(nums, nil))
}

func (bf *BuiltInFunctions) VARP(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return errv
	}
	return checkedFloat(stat.PopVariance(nums, nil))
}

func (bf *BuiltInFunctions) GEOMEAN(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return errv
	}
	for _, n := range nums {
		if n <= 0 {
			return ErrorValue(ErrorCodeNum, "GEOMEAN requires positive values")
		}
	}
	mean, err := stats.GeometricMean(nums)
	if err != nil {
		return errorf(ErrorCodeNum, "GEOMEAN: %v", err)
	}
	return checkedFloat(mean)
}

func (bf *BuiltInFunctions) HARMEAN(c *call, args []Arg) CellValue {
	nums, errv, ok := sample(c, args, 1)
	if !ok {
		return errv
	}
	for _, n := range nums {
		if n <= 0 {
			return ErrorValue(ErrorCodeNum, "HARMEAN requires positive values")
		}
	}
	mean, err := stats.HarmonicMean(nums)
	if err != nil {
		return errorf(ErrorCodeNum, "HARMEAN: %v", err)
	}
	return checkedFloat(mean)
}

// pairedSample aligns two ranges of equal size and keeps the positions
// where both hold numbers.
func pairedSample(c *call, args []Arg) ([]float64, []float64, CellValue, bool) {
	r := c.read(args)
	left := r.table(0)
	right := r.table(1)
	if r.failed {
		return nil, nil, r.err, false
	}
	if len(left.Values) != len(right.Values) {
		return nil, nil, errorf(ErrorCodeNA, "%s requires ranges of the same size", c.name), false
	}
	var xs, ys []float64
	for i := range left.Values {
		x, y := left.Values[i].resolve(), right.Values[i].resolve()
		if errv, ok := firstError(x, y); ok {
			return nil, nil, errv, false
		}
		if !x.IsNumber() || !y.IsNumber() {
			continue
		}
		xn, _ := ToNumber(x)
		yn, _ := ToNumber(y)
		xs = append(xs, xn)
		ys = append(ys, yn)
	}
	if len(xs) == 0 {
		return nil, nil, errorf(ErrorCodeDiv0, "%s has no numeric pairs", c.name), false
	}
	return xs, ys, CellValue{}, true
}

func (bf *BuiltInFunctions) CORREL(c *call, args []Arg) CellValue {
	xs, ys, errv, ok := pairedSample(c, args)
	if !ok {
		return errv
	}
	if stat.PopVariance(xs, nil) == 0 || stat.PopVariance(ys, nil) == 0 {
		return ErrorValue(ErrorCodeDiv0, "CORREL: a range has zero variance")
	}
	return checkedFloat(stat.Correlation(xs, ys, nil))
}

func (bf *BuiltInFunctions) COVARIANCES(c *call, args []Arg) CellValue {
	xs, ys, errv, ok := pairedSample(c, args)
	if !ok {
		return errv
	}
	if len(xs) < 2 {
		return ErrorValue(ErrorCodeDiv0, "COVARIANCE.S needs at least 2 numeric pairs")
	}
	return checkedFloat(stat.Covariance(xs, ys, nil))
}

func (bf *BuiltInFunctions) COVARIANCEP(c *call, args []Arg) CellValue {
	xs, ys, errv, ok := pairedSample(c, args)
	if !ok {
		return errv
	}
	n := float64(len(xs))
	if n == 1 {
		return FloatValue(0)
	}
	return checkedFloat(stat.Covariance(xs, ys, nil) * (n - 1) / n)
}

// kth reads the array and k of LARGE and SMALL, returning the values
// sorted ascending.
func kth(c *call, args []Arg) ([]float64, int, CellValue, bool) {
	r := c.read(args)
	k := r.integer(1)
	if r.failed {
		return nil, 0, r.err, false
	}
	nums, errv, ok := sample(c, args[:1], 1)
	if !ok {
		return nil, 0, errv, false
	}
	if k < 1 || k > int64(len(nums)) {
		return nil, 0, errorf(ErrorCodeNum, "%s k must be between 1 and %d", c.name, len(nums)), false
	}
	slices.Sort(nums)
	return nums, int(k), CellValue{}, true
}

func (bf *BuiltInFunctions) LARGE(c *call, args []Arg) CellValue {
	nums, k, errv, ok := kth(c, args)
	if !ok {
		return errv
	}
	return numberValue(nums[len(nums)-k])
}

func (bf *BuiltInFunctions) SMALL(c *call, args []Arg) CellValue {
	nums, k, errv, ok := kth(c, args)
	if !ok {
		return errv
	}
	return numberValue(nums[k-1])
}

// NORM.DIST(x, mean, standard_dev, cumulative)
func (bf *BuiltInFunctions) NORMDIST(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	mu := r.number(1)
	sigma := r.number(2)
	cumulative := r.boolean(3)
	if r.failed {
		return r.err
	}
	if sigma <= 0 {
		return ErrorValue(ErrorCodeNum, "NORM.DIST standard_dev must be positive")
	}
	dist := distuv.Normal{Mu: mu, Sigma: sigma}
	if cumulative {
		return checkedFloat(dist.CDF(x))
	}
	return checkedFloat(dist.Prob(x))
}

// NORM.S.DIST(z, cumulative)
func (bf *BuiltInFunctions) NORMSDIST(c *call, args []Arg) CellValue {
	r := c.read(args)
	z := r.number(0)
	cumulative := r.boolean(1)
	if r.failed {
		return r.err
	}
	if cumulative {
		return checkedFloat(distuv.UnitNormal.CDF(z))
	}
	return checkedFloat(distuv.UnitNormal.Prob(z))
}

func probability(name string, p float64) (CellValue, bool) {
	if p <= 0 || p >= 1 {
		return errorf(ErrorCodeNum, "%s probability must be between 0 and 1", name), false
	}
	return CellValue{}, true
}

// NORM.INV(probability, mean, standard_dev)
func (bf *BuiltInFunctions) NORMINV(c *call, args []Arg) CellValue {
	r := c.read(args)
	p := r.number(0)
	mu := r.number(1)
	sigma := r.number(2)
	if r.failed {
		return r.err
	}
	if errv, ok := probability(c.name, p); !ok {
		return errv
	}
	if sigma <= 0 {
		return ErrorValue(ErrorCodeNum, "NORM.INV standard_dev must be positive")
	}
	return checkedFloat(distuv.Normal{Mu: mu, Sigma: sigma}.Quantile(p))
}

// NORM.S.INV(probability)
func (bf *BuiltInFunctions) NORMSINV(c *call, args []Arg) CellValue {
	r := c.read(args)
	p := r.number(0)
	if r.failed {
		return r.err
	}
	if errv, ok := probability(c.name, p); !ok {
		return errv
	}
	return checkedFloat(distuv.UnitNormal.Quantile(p))
}

// EXPON.DIST(x, lambda, cumulative)
func (bf *BuiltInFunctions) EXPONDIST(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	lambda := r.number(1)
	cumulative := r.boolean(2)
	if r.failed {
		return r.err
	}
	if x < 0 || lambda <= 0 {
		return ErrorValue(ErrorCodeNum, "EXPON.DIST requires x >= 0 and lambda > 0")
	}
	dist := distuv.Exponential{Rate: lambda}
	if cumulative {
		return checkedFloat(dist.CDF(x))
	}
	return checkedFloat(dist.Prob(x))
}

// meanOf is NaN for an empty slice.
func meanOf(nums []float64) float64 {
	mean, err := stats.Mean(nums)
	if err != nil {
		return math.NaN()
	}
	return mean
}

// regressionSample reads known_ys then known_xs and rejects an x range
// without spread.
func regressionSample(c *call, args []Arg, least int) ([]float64, []float64, CellValue, bool) {
	ys, xs, errv, ok := pairedSample(c, args)
	if !ok {
		return nil, nil, errv, false
	}
	if len(xs) < least {
		return nil, nil, errorf(ErrorCodeDiv0, "%s needs at least %d numeric pairs", c.name, least), false
	}
	if stat.PopVariance(xs, nil) == 0 {
		return nil, nil, errorf(ErrorCodeDiv0, "%s: known_xs has zero variance", c.name), false
	}
	return ys, xs, CellValue{}, true
}

// SLOPE(known_ys, known_xs)
func (bf *BuiltInFunctions) SLOPE(c *call, args []Arg) CellValue {
	ys, xs, errv, ok := regressionSample(c, args, 1)
	if !ok {
		return errv
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return checkedFloat(beta)
}

// INTERCEPT(known_ys, known_xs)
func (bf *BuiltInFunctions) INTERCEPT(c *call, args []Arg) CellValue {
	ys, xs, errv, ok := regressionSample(c, args, 1)
	if !ok {
		return errv
	}
	alpha, _ := stat.LinearRegression(xs, ys, nil, false)
	return checkedFloat(alpha)
}

// RSQ(known_ys, known_xs)
func (bf *BuiltInFunctions) RSQ(c *call, args []Arg) CellValue {
	ys, xs, errv, ok := regressionSample(c, args, 2)
	if !ok {
		return errv
	}
	if stat.PopVariance(ys, nil) == 0 {
		return ErrorValue(ErrorCodeDiv0, "RSQ: known_ys has zero variance")
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return checkedFloat(stat.RSquared(xs, ys, nil, alpha, beta))
}

// STEYX(known_ys, known_xs) is the standard error of the predicted y.
func (bf *BuiltInFunctions) STEYX(c *call, args []Arg) CellValue {
	ys, xs, errv, ok := regressionSample(c, args, 3)
	if !ok {
		return errv
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	var sse float64
	for i := range xs {
		d := ys[i] - (alpha + beta*xs[i])
		sse += d * d
	}
	return checkedFloat(math.Sqrt(sse / float64(len(xs)-2)))
}

func (bf *BuiltInFunctions) PEARSON(c *call, args []Arg) CellValue {
	xs, ys, errv, ok := pairedSample(c, args)
	if !ok {
		return errv
	}
	if stat.PopVariance(xs, nil) == 0 || stat.PopVariance(ys, nil) == 0 {
		return ErrorValue(ErrorCodeDiv0, "PEARSON: a range has zero variance")
	}
	r, err := stats.Pearson(xs, ys)
	if err != nil {
		return errorf(ErrorCodeDiv0, "PEARSON: %v", err)
	}
	return checkedFloat(r)
}

// spread returns the sample and fails when it is constant.
func spread(c *call, args []Arg, least int) ([]float64, CellValue, bool) {
	nums, errv, ok := sample(c, args, least)
	if !ok {
		return nil, errv, false
	}
	if stat.PopVariance(nums, nil) == 0 {
		return nil, errorf(ErrorCodeDiv0, "%s: values have zero variance", c.name), false
	}
	return nums, CellValue{}, true
}

func (bf *BuiltInFunctions) SKEW(c *call, args []Arg) CellValue {
	nums, errv, ok := spread(c, args, 3)
	if !ok {
		return errv
	}
	return checkedFloat(stat.Skew(nums, nil))
}

// SKEW.P is the population skewness.
func (bf *BuiltInFunctions) SKEWP(c *call, args []Arg) CellValue {
	nums, errv, ok := spread(c, args, 1)
	if !ok {
		return errv
	}
	mean, std := stat.PopMeanStdDev(nums, nil)
	var sum float64
	for _, n := range nums {
		z := (n - mean) / std
		sum += z * z * z
	}
	return checkedFloat(sum / float64(len(nums)))
}

// KURT is the sample excess kurtosis.
func (bf *BuiltInFunctions) KURT(c *call, args []Arg) CellValue {
	nums, errv, ok := spread(c, args, 4)
	if !ok {
		return errv
	}
	return checkedFloat(stat.ExKurtosis(nums, nil))
}

// STANDARDIZE(x, mean, standard_dev)
func (bf *BuiltInFunctions) STANDARDIZE(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	mean := r.number(1)
	sd := r.number(2)
	if r.failed {
		return r.err
	}
	if sd <= 0 {
		return ErrorValue(ErrorCodeNum, "STANDARDIZE standard_dev must be positive")
	}
	return checkedFloat((x - mean) / sd)
}

func (bf *BuiltInFunctions) FISHER(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	if r.failed {
		return r.err
	}
	if x <= -1 || x >= 1 {
		return ErrorValue(ErrorCodeNum, "FISHER x must be between -1 and 1")
	}
	return checkedFloat(math.Atanh(x))
}

func (bf *BuiltInFunctions) FISHERINV(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Tanh)
}
