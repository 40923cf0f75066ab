package formula

import "math"

const (
	solverIterations = 100
	solverTolerance  = 1e-10
	zeroRate         = 1e-10
)

// annuity holds the common arguments of the time-value functions. typ
// is 0 for payments at period end and 1 for period start.
type annuity struct {
	rate, nper, pmt, pv, fv, typ float64
}

// balance is pv + pmt*(1+rate*typ)*(1-(1+rate)^-nper)/rate + fv*(1+rate)^-nper.
// It is zero for a consistent set of arguments.
func (a annuity) balance() float64 {
	if math.Abs(a.rate) < zeroRate {
		return a.pv + a.pmt*a.nper + a.fv
	}
	factor := math.Pow(1+a.rate, -a.nper)
	return a.pv + a.pmt*(1+a.rate*a.typ)*(1-factor)/a.rate + a.fv*factor
}

func (a annuity) presentValue() float64 {
	if math.Abs(a.rate) < zeroRate {
		return -(a.pmt*a.nper + a.fv)
	}
	factor := math.Pow(1+a.rate, -a.nper)
	return -(a.pmt*(1+a.rate*a.typ)*(1-factor)/a.rate + a.fv*factor)
}

func (a annuity) futureValue() float64 {
	if math.Abs(a.rate) < zeroRate {
		return -(a.pv + a.pmt*a.nper)
	}
	factor := math.Pow(1+a.rate, a.nper)
	return -(a.pv*factor + a.pmt*(1+a.rate*a.typ)*(factor-1)/a.rate)
}

func (a annuity) payment() float64 {
	if math.Abs(a.rate) < zeroRate {
		return -(a.pv + a.fv) / a.nper
	}
	factor := math.Pow(1+a.rate, a.nper)
	return -(a.pv*factor + a.fv) * a.rate / ((1 + a.rate*a.typ) * (factor - 1))
}

func (a annuity) periods() float64 {
	if math.Abs(a.rate) < zeroRate {
		return -(a.pv + a.fv) / a.pmt
	}
	adj := a.pmt * (1 + a.rate*a.typ) / a.rate
	return math.Log((adj-a.fv)/(adj+a.pv)) / math.Log(1+a.rate)
}

// derivative is the central difference of f at x.
func derivative(f func(float64) float64, x float64) float64 {
	const h = 1e-5
	return (f(x+h) - f(x-h)) / (2 * h)
}

// newton finds a root of f starting from guess. It gives up when the
// slope flattens, an iterate stops being finite, or the iterations run
// out.
func newton(f func(float64) float64, guess float64) (float64, bool) {
	x := guess
	for i := 0; i < solverIterations; i++ {
		y := f(x)
		if math.Abs(y) < solverTolerance {
			return x, true
		}
		d := derivative(f, x)
		if math.Abs(d) < 1e-12 {
			break
		}
		next := x - y/d
		if math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		x = next
	}
	return 0, false
}

// presentValueOf is the discounted sum of flows at t = 0, 1, 2, ...
func presentValueOf(rate float64, flows []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, float64(i))
	}
	return total
}

// datedPresentValue discounts each flow by the years since the first
// date, on a 365-day year.
func datedPresentValue(rate float64, flows, dates []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		t := (dates[i] - dates[0]) / 365
		total += cf / math.Pow(1+rate, t)
	}
	return total
}

func hasMixedSigns(flows []float64) bool {
	pos, neg := false, false
	for _, cf := range flows {
		pos = pos || cf > 0
		neg = neg || cf < 0
	}
	return pos && neg
}

// readAnnuity reads rate, nper or pmt (the solved one is skipped), and
// the optional trailing arguments common to PV/FV/PMT/NPER.
func readAnnuity(r *argReader, solveFor string) annuity {
	var a annuity
	a.rate = r.number(0)
	switch solveFor {
	case "pv":
		a.nper = r.number(1)
		a.pmt = r.number(2)
		a.fv = r.numberOr(3, 0)
	case "fv":
		a.nper = r.number(1)
		a.pmt = r.number(2)
		a.pv = r.numberOr(3, 0)
	case "pmt":
		a.nper = r.number(1)
		a.pv = r.number(2)
		a.fv = r.numberOr(3, 0)
	case "nper":
		a.pmt = r.number(1)
		a.pv = r.number(2)
		a.fv = r.numberOr(3, 0)
	}
	a.typ = r.numberOr(4, 0)
	if !r.failed && a.typ != 0 {
		a.typ = 1
	}
	return a
}

// PV(rate, nper, pmt, [fv], [type])
func (bf *BuiltInFunctions) PV(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := readAnnuity(r, "pv")
	if r.failed {
		return r.err
	}
	return checkedFloat(a.presentValue())
}

// FV(rate, nper, pmt, [pv], [type])
func (bf *BuiltInFunctions) FV(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := readAnnuity(r, "fv")
	if r.failed {
		return r.err
	}
	return checkedFloat(a.futureValue())
}

// PMT(rate, nper, pv, [fv], [type])
func (bf *BuiltInFunctions) PMT(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := readAnnuity(r, "pmt")
	if r.failed {
		return r.err
	}
	if a.nper == 0 {
		return ErrorValue(ErrorCodeNum, "PMT nper must not be zero")
	}
	return checkedFloat(a.payment())
}

// NPER(rate, pmt, pv, [fv], [type])
func (bf *BuiltInFunctions) NPER(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := readAnnuity(r, "nper")
	if r.failed {
		return r.err
	}
	if math.Abs(a.rate) < zeroRate && a.pmt == 0 {
		return ErrorValue(ErrorCodeNum, "NPER pmt must not be zero when rate is zero")
	}
	return checkedFloat(a.periods())
}

// RATE(nper, pmt, pv, [fv], [type], [guess])
func (bf *BuiltInFunctions) RATE(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := annuity{
		nper: r.number(0),
		pmt:  r.number(1),
		pv:   r.number(2),
		fv:   r.numberOr(3, 0),
		typ:  r.numberOr(4, 0),
	}
	guess := r.numberOr(5, 0.1)
	if r.failed {
		return r.err
	}
	if a.typ != 0 {
		a.typ = 1
	}
	rate, ok := newton(func(x float64) float64 {
		a.rate = x
		return a.balance()
	}, guess)
	if !ok {
		return ErrorValue(ErrorCodeNum, "RATE failed to converge")
	}
	return FloatValue(rate)
}

// NPV(rate, value1, ...) discounts the first value by one full period.
func (bf *BuiltInFunctions) NPV(c *call, args []Arg) CellValue {
	r := c.read(args)
	rate := r.number(0)
	if r.failed {
		return r.err
	}
	flows, errv, ok := collectNumbers(c.name, args[1:])
	if !ok {
		return errv
	}
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, float64(i+1))
	}
	return checkedFloat(total)
}

// datedFlows reads a values range and a dates range of equal, non-zero
// length. Non-numeric values count as 0; every date must be numeric.
func datedFlows(name string, values, dates RangeValue) ([]float64, []float64, CellValue, bool) {
	if len(values.Values) != len(dates.Values) || len(values.Values) == 0 {
		return nil, nil, errorf(ErrorCodeNum, "%s requires values and dates ranges of the same non-zero length", name), false
	}
	flows := make([]float64, len(values.Values))
	when := make([]float64, len(dates.Values))
	for i, v := range values.Values {
		v = v.resolve()
		if v.Kind == KindError {
			return nil, nil, v, false
		}
		if n, ok := ToNumber(v); ok {
			flows[i] = n
		}
	}
	for i, v := range dates.Values {
		n, ok := ToNumber(v.resolve())
		if !ok {
			return nil, nil, errorf(ErrorCodeValue, "%s dates must be numeric serials", name), false
		}
		when[i] = n
	}
	return flows, when, CellValue{}, true
}

// XNPV(rate, values, dates)
func (bf *BuiltInFunctions) XNPV(c *call, args []Arg) CellValue {
	r := c.read(args)
	rate := r.number(0)
	values := r.table(1)
	dates := r.table(2)
	if r.failed {
		return r.err
	}
	flows, when, errv, ok := datedFlows(c.name, values, dates)
	if !ok {
		return errv
	}
	return checkedFloat(datedPresentValue(rate, flows, when))
}

// IRR(values, [guess])
func (bf *BuiltInFunctions) IRR(c *call, args []Arg) CellValue {
	r := c.read(args)
	guess := r.numberOr(1, 0.1)
	if r.failed {
		return r.err
	}
	flows, errv, ok := collectNumbers(c.name, args[:1])
	if !ok {
		return errv
	}
	if len(flows) == 0 {
		return ErrorValue(ErrorCodeNum, "IRR requires at least one cash flow")
	}
	if !hasMixedSigns(flows) {
		return ErrorValue(ErrorCodeNum, "IRR requires at least one positive and one negative cash flow")
	}
	rate, ok := newton(func(x float64) float64 { return presentValueOf(x, flows) }, guess)
	if !ok {
		return ErrorValue(ErrorCodeNum, "IRR failed to converge")
	}
	return FloatValue(rate)
}

// XIRR(values, dates, [guess])
func (bf *BuiltInFunctions) XIRR(c *call, args []Arg) CellValue {
	r := c.read(args)
	values := r.table(0)
	dates := r.table(1)
	guess := r.numberOr(2, 0.1)
	if r.failed {
		return r.err
	}
	flows, when, errv, ok := datedFlows(c.name, values, dates)
	if !ok {
		return errv
	}
	if !hasMixedSigns(flows) {
		return ErrorValue(ErrorCodeNum, "XIRR requires at least one positive and one negative cash flow")
	}
	rate, ok := newton(func(x float64) float64 { return datedPresentValue(x, flows, when) }, guess)
	if !ok {
		return ErrorValue(ErrorCodeNum, "XIRR failed to converge")
	}
	return FloatValue(rate)
}

// interestPart is the interest portion of payment per (1-based) for the
// annuity a with its payment already solved.
func (a annuity) interestPart(per float64) float64 {
	if per == 1 && a.typ == 1 {
		return 0
	}
	prior := a
	prior.nper = per - 1
	interest := prior.futureValue() * a.rate
	if a.typ == 1 {
		interest /= 1 + a.rate
	}
	return interest
}

// readPeriodic reads (rate, per, nper, pv, [fv], [type]) and solves the
// payment.
func readPeriodic(c *call, args []Arg) (annuity, float64, CellValue, bool) {
	r := c.read(args)
	a := annuity{
		rate: r.number(0),
		nper: r.number(2),
		pv:   r.number(3),
		fv:   r.numberOr(4, 0),
		typ:  r.numberOr(5, 0),
	}
	per := r.number(1)
	if r.failed {
		return a, 0, r.err, false
	}
	if a.typ != 0 {
		a.typ = 1
	}
	if per < 1 || per > a.nper {
		return a, 0, errorf(ErrorCodeNum, "%s per must be between 1 and nper", c.name), false
	}
	a.pmt = a.payment()
	return a, per, CellValue{}, true
}

// IPMT(rate, per, nper, pv, [fv], [type])
func (bf *BuiltInFunctions) IPMT(c *call, args []Arg) CellValue {
	a, per, errv, ok := readPeriodic(c, args)
	if !ok {
		return errv
	}
	return checkedFloat(a.interestPart(per))
}

// PPMT(rate, per, nper, pv, [fv], [type])
func (bf *BuiltInFunctions) PPMT(c *call, args []Arg) CellValue {
	a, per, errv, ok := readPeriodic(c, args)
	if !ok {
		return errv
	}
	return checkedFloat(a.pmt - a.interestPart(per))
}

// ISPMT(rate, per, nper, pv) assumes even principal repayments and a
// 0-based per.
func (bf *BuiltInFunctions) ISPMT(c *call, args []Arg) CellValue {
	r := c.read(args)
	rate := r.number(0)
	per := r.number(1)
	nper := r.number(2)
	pv := r.number(3)
	if r.failed {
		return r.err
	}
	if nper == 0 {
		return ErrorValue(ErrorCodeDiv0, "ISPMT nper must not be zero")
	}
	return checkedFloat(-pv * rate * (1 - per/nper))
}

// SLN(cost, salvage, life)
func (bf *BuiltInFunctions) SLN(c *call, args []Arg) CellValue {
	r := c.read(args)
	cost := r.number(0)
	salvage := r.number(1)
	life := r.number(2)
	if r.failed {
		return r.err
	}
	if life == 0 {
		return ErrorValue(ErrorCodeDiv0, "SLN life must not be zero")
	}
	return checkedFloat((cost - salvage) / life)
}

// SYD(cost, salvage, life, per)
func (bf *BuiltInFunctions) SYD(c *call, args []Arg) CellValue {
	r := c.read(args)
	cost := r.number(0)
	salvage := r.number(1)
	life := r.number(2)
	per := r.number(3)
	if r.failed {
		return r.err
	}
	if life <= 0 || per <= 0 || per > life {
		return ErrorValue(ErrorCodeNum, "SYD requires life > 0 and 0 < per <= life")
	}
	return checkedFloat((cost - salvage) * (life - per + 1) * 2 / (life * (life + 1)))
}

// DB(cost, salvage, life, period, [month]) uses a fixed rate rounded to
// three decimals. With month < 12 the first and the extra last period
// are partial years.
func (bf *BuiltInFunctions) DB(c *call, args []Arg) CellValue {
	r := c.read(args)
	cost := r.number(0)
	salvage := r.number(1)
	life := r.number(2)
	period := r.integer(3)
	month := r.numberOr(4, 12)
	if r.failed {
		return r.err
	}
	last := int64(math.Trunc(life))
	if month < 12 {
		last++
	}
	switch {
	case cost < 0 || salvage < 0 || life <= 0:
		return ErrorValue(ErrorCodeNum, "DB requires cost, salvage >= 0 and life > 0")
	case month < 1 || month > 12:
		return ErrorValue(ErrorCodeNum, "DB month must be between 1 and 12")
	case period < 1 || period > last:
		return ErrorValue(ErrorCodeNum, "DB period is out of range")
	case cost == 0:
		return FloatValue(0)
	}
	rate := math.Round((1-math.Pow(salvage/cost, 1/life))*1000) / 1000
	total := cost * rate * month / 12
	dep := total
	for p := int64(2); p <= period; p++ {
		if p == last && month < 12 {
			dep = (cost - total) * rate * (12 - month) / 12
		} else {
			dep = (cost - total) * rate
		}
		total += dep
	}
	return checkedFloat(dep)
}

// DDB(cost, salvage, life, period, [factor]) never depreciates below
// salvage.
func (bf *BuiltInFunctions) DDB(c *call, args []Arg) CellValue {
	r := c.read(args)
	cost := r.number(0)
	salvage := r.number(1)
	life := r.number(2)
	period := r.number(3)
	factor := r.numberOr(4, 2)
	if r.failed {
		return r.err
	}
	if cost < 0 || salvage < 0 || life <= 0 || factor <= 0 || period < 1 || period > life {
		return ErrorValue(ErrorCodeNum, "DDB arguments are out of range")
	}
	book, dep := cost, 0.0
	for p := 1.0; p <= period; p++ {
		dep = math.Max(0, math.Min(book*factor/life, book-salvage))
		book -= dep
	}
	return checkedFloat(dep)
}

// MIRR(values, finance_rate, reinvest_rate)
func (bf *BuiltInFunctions) MIRR(c *call, args []Arg) CellValue {
	r := c.read(args)
	financeRate := r.number(1)
	reinvestRate := r.number(2)
	if r.failed {
		return r.err
	}
	flows, errv, ok := collectNumbers(c.name, args[:1])
	if !ok {
		return errv
	}
	if len(flows) < 2 || !hasMixedSigns(flows) {
		return ErrorValue(ErrorCodeDiv0, "MIRR requires at least one positive and one negative cash flow")
	}
	var positive, negative float64
	for i, cf := range flows {
		if cf > 0 {
			positive += cf / math.Pow(1+reinvestRate, float64(i))
		} else {
			negative += cf / math.Pow(1+financeRate, float64(i))
		}
	}
	n := float64(len(flows))
	ratio := -positive * math.Pow(1+reinvestRate, n-1) / (negative * (1 + financeRate))
	return checkedFloat(math.Pow(ratio, 1/(n-1)) - 1)
}

// compounding reads a rate and the number of periods per year.
func compounding(c *call, args []Arg) (float64, float64, CellValue, bool) {
	r := c.read(args)
	rate := r.number(0)
	npery := r.integer(1)
	if r.failed {
		return 0, 0, r.err, false
	}
	if rate <= 0 || npery < 1 {
		return 0, 0, errorf(ErrorCodeNum, "%s requires rate > 0 and npery >= 1", c.name), false
	}
	return rate, float64(npery), CellValue{}, true
}

// EFFECT(nominal_rate, npery)
func (bf *BuiltInFunctions) EFFECT(c *call, args []Arg) CellValue {
	rate, n, errv, ok := compounding(c, args)
	if !ok {
		return errv
	}
	return checkedFloat(math.Pow(1+rate/n, n) - 1)
}

// NOMINAL(effect_rate, npery)
func (bf *BuiltInFunctions) NOMINAL(c *call, args []Arg) CellValue {
	rate, n, errv, ok := compounding(c, args)
	if !ok {
		return errv
	}
	return checkedFloat(n * (math.Pow(1+rate, 1/n) - 1))
}

// RRI(nper, pv, fv) is the equivalent growth rate per period.
func (bf *BuiltInFunctions) RRI(c *call, args []Arg) CellValue {
	r := c.read(args)
	nper := r.number(0)
	pv := r.number(1)
	fv := r.number(2)
	if r.failed {
		return r.err
	}
	if nper <= 0 || pv == 0 {
		return ErrorValue(ErrorCodeNum, "RRI requires nper > 0 and a non-zero pv")
	}
	return checkedFloat(math.Pow(fv/pv, 1/nper) - 1)
}

// PDURATION(rate, pv, fv) is the periods needed for pv to grow to fv.
func (bf *BuiltInFunctions) PDURATION(c *call, args []Arg) CellValue {
	r := c.read(args)
	rate := r.number(0)
	pv := r.number(1)
	fv := r.number(2)
	if r.failed {
		return r.err
	}
	if rate <= 0 || pv <= 0 || fv <= 0 {
		return ErrorValue(ErrorCodeNum, "PDURATION requires positive arguments")
	}
	return checkedFloat((math.Log(fv) - math.Log(pv)) / math.Log1p(rate))
}

// FVSCHEDULE(principal, schedule)
func (bf *BuiltInFunctions) FVSCHEDULE(c *call, args []Arg) CellValue {
	r := c.read(args)
	principal := r.number(0)
	if r.failed {
		return r.err
	}
	rates, errv, ok := collectNumbers(c.name, args[1:])
	if !ok {
		return errv
	}
	for _, rate := range rates {
		principal *= 1 + rate
	}
	return checkedFloat(principal)
}
