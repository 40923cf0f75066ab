package formula

import (
	"math"
	"strings"
)

// serialArg reads a date argument: a serial number or date text.
func serialArg(r *argReader, i int) float64 {
	n := r.number(i)
	if r.failed {
		return 0
	}
	if n < 0 || n > maxSerial+1 {
		r.fail(errorf(ErrorCodeNum, "%s: argument %d is not a valid date", r.name, i+1))
		return 0
	}
	return n
}

func civilArg(r *argReader, i int) civilDate {
	serial := serialArg(r, i)
	if r.failed {
		return civilDate{}
	}
	d, ok := civilFromSerial(serial)
	if !ok {
		r.fail(errorf(ErrorCodeNum, "%s: argument %d is not a valid date", r.name, i+1))
	}
	return d
}

func dateResult(name string, serial float64, ok bool) CellValue {
	if !ok {
		return errorf(ErrorCodeNum, "%s result is out of range", name)
	}
	return DateTimeValue(serial)
}

func (bf *BuiltInFunctions) TODAY(c *call, args []Arg) CellValue {
	serial, ok := serialFromTime(bf.clock.Now())
	return dateResult(c.name, serial, ok)
}

func (bf *BuiltInFunctions) NOW(c *call, args []Arg) CellValue {
	serial, ok := serialFromDateTime(bf.clock.Now())
	return dateResult(c.name, serial, ok)
}

// DATE(year, month, day). Years below 1900 are offsets from 1900, months
// and days outside their range roll over.
func (bf *BuiltInFunctions) DATE(c *call, args []Arg) CellValue {
	r := c.read(args)
	y := r.integer(0)
	m := r.integer(1)
	d := r.integer(2)
	if r.failed {
		return r.err
	}
	if y >= 0 && y < 1900 {
		y += 1900
	}
	if math.Abs(float64(m)) > 120000 || math.Abs(float64(d)) > 3660000 {
		return ErrorValue(ErrorCodeNum, "DATE arguments out of range")
	}
	serial, ok := serialFromCivil(int(y), int(m), int(d))
	if !ok {
		return ErrorValue(ErrorCodeNum, "DATE arguments out of range")
	}
	return DateTimeValue(serial)
}

func (bf *BuiltInFunctions) TIME(c *call, args []Arg) CellValue {
	r := c.read(args)
	h := r.integer(0)
	m := r.integer(1)
	s := r.integer(2)
	if r.failed {
		return r.err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return ErrorValue(ErrorCodeNum, "TIME arguments out of range")
	}
	return DateTimeValue(float64(h*3600+m*60+s) / secondsPerDay)
}

func (bf *BuiltInFunctions) YEAR(c *call, args []Arg) CellValue {
	r := c.read(args)
	d := civilArg(r, 0)
	if r.failed {
		return r.err
	}
	return IntValue(int64(d.Year))
}

func (bf *BuiltInFunctions) MONTH(c *call, args []Arg) CellValue {
	r := c.read(args)
	d := civilArg(r, 0)
	if r.failed {
		return r.err
	}
	return IntValue(int64(d.Month))
}

func (bf *BuiltInFunctions) DAY(c *call, args []Arg) CellValue {
	r := c.read(args)
	d := civilArg(r, 0)
	if r.failed {
		return r.err
	}
	return IntValue(int64(d.Day))
}

func (bf *BuiltInFunctions) HOUR(c *call, args []Arg) CellValue {
	r := c.read(args)
	serial := serialArg(r, 0)
	if r.failed {
		return r.err
	}
	h, _, _ := timeOfDay(serial)
	return IntValue(int64(h))
}

func (bf *BuiltInFunctions) MINUTE(c *call, args []Arg) CellValue {
	r := c.read(args)
	serial := serialArg(r, 0)
	if r.failed {
		return r.err
	}
	_, m, _ := timeOfDay(serial)
	return IntValue(int64(m))
}

func (bf *BuiltInFunctions) SECOND(c *call, args []Arg) CellValue {
	r := c.read(args)
	serial := serialArg(r, 0)
	if r.failed {
		return r.err
	}
	_, _, s := timeOfDay(serial)
	return IntValue(int64(s))
}

func (bf *BuiltInFunctions) EDATE(c *call, args []Arg) CellValue {
	r := c.read(args)
	start := civilArg(r, 0)
	months := r.integer(1)
	if r.failed {
		return r.err
	}
	if math.Abs(float64(months)) > 120000 {
		return ErrorValue(ErrorCodeNum, "EDATE result is out of range")
	}
	d := addMonths(start, int(months))
	serial, ok := serialFromCivil(d.Year, d.Month, d.Day)
	return dateResult(c.name, serial, ok)
}

func (bf *BuiltInFunctions) EOMONTH(c *call, args []Arg) CellValue {
	r := c.read(args)
	start := civilArg(r, 0)
	months := r.integer(1)
	if r.failed {
		return r.err
	}
	if math.Abs(float64(months)) > 120000 {
		return ErrorValue(ErrorCodeNum, "EOMONTH result is out of range")
	}
	d := addMonths(civilDate{Year: start.Year, Month: start.Month, Day: 1}, int(months))
	serial, ok := serialFromCivil(d.Year, d.Month, daysIn(d.Year, d.Month))
	if ok && d.Year == 1900 && d.Month == 2 {
		serial = phantomLeapDay
	}
	return dateResult(c.name, serial, ok)
}

// startDayFor maps the 11-17 numbering convention to 0=Sunday weekdays:
// 11 is Monday, 17 is Sunday.
func startDayFor(kind int64) int {
	return int(kind-10) % 7
}

// WEEKDAY(serial, [return_type]): 1 counts Sunday=1, 2 counts Monday=1,
// 3 counts Monday=0, 11-17 start the week on Monday through Sunday.
func (bf *BuiltInFunctions) WEEKDAY(c *call, args []Arg) CellValue {
	r := c.read(args)
	serial := serialArg(r, 0)
	kind := r.integerOr(1, 1)
	if r.failed {
		return r.err
	}
	wd := weekdayOfSerial(int64(math.Floor(serial)))
	switch {
	case kind == 1:
		return IntValue(int64(wd + 1))
	case kind == 2:
		return IntValue(int64((wd+6)%7 + 1))
	case kind == 3:
		return IntValue(int64((wd + 6) % 7))
	case kind >= 11 && kind <= 17:
		return IntValue(int64((wd-startDayFor(kind)+7)%7 + 1))
	}
	return ErrorValue(ErrorCodeNum, "WEEKDAY return_type must be 1, 2, 3 or 11 through 17")
}

// WEEKNUM(serial, [return_type]): week 1 contains January 1st and weeks
// begin on the configured day. Type 21 is the ISO week.
func (bf *BuiltInFunctions) WEEKNUM(c *call, args []Arg) CellValue {
	r := c.read(args)
	d := civilArg(r, 0)
	serial := math.Floor(serialArg(r, 0))
	kind := r.integerOr(1, 1)
	if r.failed {
		return r.err
	}

	var start int
	switch {
	case kind == 1:
		start = 0
	case kind == 2:
		start = 1
	case kind >= 11 && kind <= 17:
		start = startDayFor(kind)
	case kind == 21:
		_, week := d.time().ISOWeek()
		return IntValue(int64(week))
	default:
		return ErrorValue(ErrorCodeNum, "WEEKNUM return_type must be 1, 2, 11 through 17 or 21")
	}

	jan1, ok := serialFromCivil(d.Year, 1, 1)
	if !ok {
		return ErrorValue(ErrorCodeNum, "WEEKNUM date is out of range")
	}
	offset := (weekdayOfSerial(int64(jan1)) - start + 7) % 7
	weekStart := jan1 - float64(offset)
	return IntValue(int64(serial-weekStart)/7 + 1)
}

func (bf *BuiltInFunctions) ISOWEEKNUM(c *call, args []Arg) CellValue {
	r := c.read(args)
	d := civilArg(r, 0)
	if r.failed {
		return r.err
	}
	_, week := d.time().ISOWeek()
	return IntValue(int64(week))
}

// weekendMask marks weekend days, indexed 0=Sunday.
type weekendMask [7]bool

var defaultWeekend = weekendMask{true, false, false, false, false, false, true}

// weekendFromCode decodes the numeric weekend argument. Unknown codes
// fall back to Saturday and Sunday.
func weekendFromCode(code int64) weekendMask {
	var m weekendMask
	switch {
	case code >= 1 && code <= 7:
		// 1 = Sat/Sun, 2 = Sun/Mon, ..., 7 = Fri/Sat
		first := int((code + 5) % 7)
		m[first] = true
		m[(first+1)%7] = true
	case code >= 11 && code <= 17:
		// 11 = Sunday only, ..., 17 = Saturday only
		m[code-11] = true
	default:
		return defaultWeekend
	}
	return m
}

// weekendFromPattern decodes a seven character Monday-first pattern such
// as "0000011"; any other length falls back to Saturday and Sunday.
func weekendFromPattern(p string) weekendMask {
	if len(p) != 7 {
		return defaultWeekend
	}
	var m weekendMask
	for i := 0; i < 7; i++ {
		m[(i+1)%7] = p[i] == '1'
	}
	return m
}

func (m weekendMask) all() bool {
	for _, w := range m {
		if !w {
			return false
		}
	}
	return true
}

// weekendArg reads an optional weekend argument: text is a pattern, a
// number is a code.
func weekendArg(r *argReader, i int) weekendMask {
	if !r.present(i) {
		return defaultWeekend
	}
	v := r.scalar(i)
	if r.failed {
		return weekendMask{}
	}
	if v.Kind == KindString {
		return weekendFromPattern(strings.TrimSpace(v.Str))
	}
	n, ok := ToNumber(v)
	if !ok {
		r.fail(errorf(ErrorCodeValue, "%s weekend must be a code or a pattern", r.name))
		return weekendMask{}
	}
	return weekendFromCode(int64(n))
}

// holidaysArg collects the numeric values of a holiday range as whole
// serials. Non-numeric entries are ignored.
func holidaysArg(r *argReader, i int) map[int64]bool {
	if !r.present(i) {
		return nil
	}
	t := r.table(i)
	if r.failed {
		return nil
	}
	out := make(map[int64]bool, len(t.Values))
	for _, v := range t.Values {
		if n, ok := ToNumber(v); ok {
			out[int64(math.Floor(n))] = true
		}
	}
	return out
}

type businessCalendar struct {
	weekend  weekendMask
	holidays map[int64]bool
}

func (b businessCalendar) isBusinessDay(serial int64) bool {
	return !b.weekend[weekdayOfSerial(serial)] && !b.holidays[serial]
}

// workday steps one day at a time from start, counting only business
// days, until days of them have passed.
func (b businessCalendar) workday(start, days int64) (int64, bool) {
	if days == 0 {
		return start, true
	}
	step := int64(1)
	if days < 0 {
		step = -1
	}
	remaining := days * step
	d := start
	for remaining > 0 {
		d += step
		if d < 0 || d > maxSerial {
			return 0, false
		}
		if b.isBusinessDay(d) {
			remaining--
		}
	}
	return d, true
}

// networkdays counts business days in the inclusive interval, negated
// when start is after end.
func (b businessCalendar) networkdays(start, end int64) int64 {
	sign := int64(1)
	if start > end {
		start, end, sign = end, start, -1
	}
	var count int64
	for d := start; d <= end; d++ {
		if b.isBusinessDay(d) {
			count++
		}
	}
	return count * sign
}

func (c *call) workdayCommon(r *argReader, weekend weekendMask, holidays map[int64]bool) CellValue {
	start := serialArg(r, 0)
	days := r.number(1)
	if r.failed {
		return r.err
	}
	if weekend.all() {
		return errorf(ErrorCodeValue, "%s weekend leaves no working days", c.name)
	}
	if math.Abs(days) > maxSerial {
		return errorf(ErrorCodeNum, "%s result is out of range", c.name)
	}
	cal := businessCalendar{weekend: weekend, holidays: holidays}
	d, ok := cal.workday(int64(math.Floor(start)), int64(math.Trunc(days)))
	return dateResult(c.name, float64(d), ok)
}

func (bf *BuiltInFunctions) WORKDAY(c *call, args []Arg) CellValue {
	r := c.read(args)
	holidays := holidaysArg(r, 2)
	return c.workdayCommon(r, defaultWeekend, holidays)
}

func (bf *BuiltInFunctions) WORKDAYINTL(c *call, args []Arg) CellValue {
	r := c.read(args)
	weekend := weekendArg(r, 2)
	holidays := holidaysArg(r, 3)
	return c.workdayCommon(r, weekend, holidays)
}

func (c *call) networkdaysCommon(r *argReader, weekend weekendMask, holidays map[int64]bool) CellValue {
	start := serialArg(r, 0)
	end := serialArg(r, 1)
	if r.failed {
		return r.err
	}
	cal := businessCalendar{weekend: weekend, holidays: holidays}
	return IntValue(cal.networkdays(int64(math.Floor(start)), int64(math.Floor(end))))
}

func (bf *BuiltInFunctions) NETWORKDAYS(c *call, args []Arg) CellValue {
	r := c.read(args)
	holidays := holidaysArg(r, 2)
	return c.networkdaysCommon(r, defaultWeekend, holidays)
}

func (bf *BuiltInFunctions) NETWORKDAYSINTL(c *call, args []Arg) CellValue {
	r := c.read(args)
	weekend := weekendArg(r, 2)
	holidays := holidaysArg(r, 3)
	return c.networkdaysCommon(r, weekend, holidays)
}

func (bf *BuiltInFunctions) DATEVALUE(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	if r.failed {
		return r.err
	}
	if n, ok := ToNumber(v); ok {
		return DateTimeValue(math.Floor(n))
	}
	if v.Kind != KindString {
		return ErrorValue(ErrorCodeValue, "DATEVALUE expects a date text or serial number")
	}
	serial, ok := parseDateText(v.Str)
	if !ok {
		return ErrorValue(ErrorCodeValue, "DATEVALUE: unsupported date format")
	}
	return DateTimeValue(serial)
}

func (bf *BuiltInFunctions) TIMEVALUE(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	if r.failed {
		return r.err
	}
	if n, ok := ToNumber(v); ok {
		frac := n - math.Trunc(n)
		if frac < 0 {
			frac = 0
		}
		return DateTimeValue(frac)
	}
	if v.Kind != KindString {
		return ErrorValue(ErrorCodeValue, "TIMEVALUE expects a time text or serial number")
	}
	frac, ok := parseTimeText(v.Str)
	if !ok {
		return ErrorValue(ErrorCodeValue, "TIMEVALUE: unsupported time format")
	}
	return DateTimeValue(frac)
}

// DAYS(end_date, start_date)
func (bf *BuiltInFunctions) DAYS(c *call, args []Arg) CellValue {
	r := c.read(args)
	end := serialArg(r, 0)
	start := serialArg(r, 1)
	if r.failed {
		return r.err
	}
	return IntValue(int64(math.Floor(end) - math.Floor(start)))
}

// DATEDIF(start, end, unit) with unit one of Y, M, D, MD, YM, YD. The
// dates are swapped when given in reverse order.
func (bf *BuiltInFunctions) DATEDIF(c *call, args []Arg) CellValue {
	r := c.read(args)
	startSerial := math.Floor(serialArg(r, 0))
	endSerial := math.Floor(serialArg(r, 1))
	unit := strings.ToUpper(strings.TrimSpace(r.text(2)))
	if r.failed {
		return r.err
	}
	if endSerial < startSerial {
		startSerial, endSerial = endSerial, startSerial
	}
	start, ok1 := civilFromSerial(startSerial)
	end, ok2 := civilFromSerial(endSerial)
	if !ok1 || !ok2 {
		return ErrorValue(ErrorCodeNum, "DATEDIF dates are out of range")
	}

	months := (end.Year-start.Year)*12 + end.Month - start.Month
	if end.Day < start.Day {
		months--
	}

	switch unit {
	case "D":
		return IntValue(int64(endSerial - startSerial))
	case "M":
		return IntValue(int64(months))
	case "Y":
		return IntValue(int64(months / 12))
	case "YM":
		return IntValue(int64(months % 12))
	case "MD":
		if end.Day >= start.Day {
			return IntValue(int64(end.Day - start.Day))
		}
		prev := addMonths(civilDate{Year: end.Year, Month: end.Month, Day: 1}, -1)
		return IntValue(int64(daysIn(prev.Year, prev.Month) - start.Day + end.Day))
	case "YD":
		anniversary := civilDate{Year: end.Year, Month: start.Month, Day: start.Day}
		if anniversary.time().After(end.time()) {
			anniversary.Year--
		}
		days := end.time().Sub(anniversary.time()).Hours() / 24
		return IntValue(int64(math.Round(days)))
	case "":
		return ErrorValue(ErrorCodeValue, "DATEDIF unit must be a non-empty text value")
	}
	return ErrorValue(ErrorCodeNum, `DATEDIF unit must be one of "Y","M","D","MD","YM","YD"`)
}

// days360 counts days on a calendar of twelve 30-day months. The US
// method moves a month-end start to the 30th and a 31st end to the 1st
// of the next month unless the start is already the 30th; the European
// method moves every 31st to the 30th.
func days360(start, end civilDate, european bool) int {
	sd, ed, em, ey := start.Day, end.Day, end.Month, end.Year
	if european {
		sd, ed = min(sd, 30), min(ed, 30)
	} else {
		lastOfFeb := func(d civilDate) bool { return d.Month == 2 && d.Day >= daysIn(d.Year, 2) }
		if lastOfFeb(start) && lastOfFeb(end) {
			ed = 30
		}
		if sd >= daysIn(start.Year, start.Month) {
			sd = 30
		}
		if ed == 31 {
			if sd < 30 {
				ed = 1
				em++
				if em > 12 {
					em, ey = 1, ey+1
				}
			} else {
				ed = 30
			}
		}
	}
	return (ey-start.Year)*360 + (em-start.Month)*30 + ed - sd
}

// DAYS360(start_date, end_date, [method])
func (bf *BuiltInFunctions) DAYS360(c *call, args []Arg) CellValue {
	r := c.read(args)
	start := civilArg(r, 0)
	end := civilArg(r, 1)
	european := r.booleanOr(2, false)
	if r.failed {
		return r.err
	}
	return IntValue(int64(days360(start, end, european)))
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func daysInYear(y int) float64 {
	if isLeapYear(y) {
		return 366
	}
	return 365
}

// actualYearLength is the actual/actual denominator: 366 when a span of
// at most a year touches a 29 February, else the mean length of the
// years the span covers.
func actualYearLength(start, end civilDate) float64 {
	anniversary := civilDate{Year: start.Year + 1, Month: start.Month, Day: start.Day}
	if !end.time().After(anniversary.time()) {
		switch {
		case start.Year == end.Year && isLeapYear(start.Year):
			return 366
		case start.Year != end.Year && isLeapYear(start.Year) && start.Month <= 2:
			return 366
		case start.Year != end.Year && isLeapYear(end.Year) && (end.Month > 2 || end.Month == 2 && end.Day == 29):
			return 366
		}
		return 365
	}
	total := 0.0
	for y := start.Year; y <= end.Year; y++ {
		total += daysInYear(y)
	}
	return total / float64(end.Year-start.Year+1)
}

// YEARFRAC(start_date, end_date, [basis])
func (bf *BuiltInFunctions) YEARFRAC(c *call, args []Arg) CellValue {
	r := c.read(args)
	startSerial := math.Floor(serialArg(r, 0))
	endSerial := math.Floor(serialArg(r, 1))
	basis := r.integerOr(2, 0)
	if r.failed {
		return r.err
	}
	if basis < 0 || basis > 4 {
		return ErrorValue(ErrorCodeNum, "YEARFRAC basis must be between 0 and 4")
	}
	if endSerial < startSerial {
		startSerial, endSerial = endSerial, startSerial
	}
	start, ok1 := civilFromSerial(startSerial)
	end, ok2 := civilFromSerial(endSerial)
	if !ok1 || !ok2 {
		return ErrorValue(ErrorCodeNum, "YEARFRAC dates are out of range")
	}
	days := endSerial - startSerial
	switch basis {
	case 0:
		return numberValue(float64(days360(start, end, false)) / 360)
	case 1:
		return numberValue(days / actualYearLength(start, end))
	case 2:
		return numberValue(days / 360)
	case 3:
		return numberValue(days / 365)
	}
	return numberValue(float64(days360(start, end, true)) / 360)
}
