package formula

import (
	"math"
	"strings"
	"time"
)

const (
	secondsPerDay = 86400

	// serial of 1900-02-29, a day that never existed but which the
	// 1900 date system counts anyway
	phantomLeapDay = 60

	// 9999-12-31
	maxSerial = 2958465
)

var serialEpoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)

// civilDate is a calendar date that can also hold 1900-02-29 and the
// 1900-01-00 of serial zero, neither of which time.Time can represent.
type civilDate struct {
	Year  int
	Month int
	Day   int
}

func (d civilDate) time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// serialFromCivil builds a serial from possibly out-of-range components:
// months outside 1..12 roll the year, the day is an offset from the 1st
// of the month.
func serialFromCivil(year, month, day int) (float64, bool) {
	m0 := month - 1
	year += floorDiv(m0, 12)
	month = m0 - floorDiv(m0, 12)*12 + 1

	if year < 0 || year > 9999 {
		return 0, false
	}
	// Day overflow is counted in serials, so it crosses 29 Feb 1900 too.
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	n := (first.Unix() - serialEpoch.Unix()) / secondsPerDay
	if n >= phantomLeapDay {
		n++
	}
	n += int64(day) - 1
	if n < 0 || n > maxSerial {
		return 0, false
	}
	return float64(n), true
}

// serialFromTime converts the date part of t to a serial.
func serialFromTime(t time.Time) (float64, bool) {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	n := (t.Unix() - serialEpoch.Unix()) / secondsPerDay
	if n >= phantomLeapDay {
		n++
	}
	if n < 0 || n > maxSerial {
		return 0, false
	}
	return float64(n), true
}

// serialFromDateTime keeps the time of day as the fraction.
func serialFromDateTime(t time.Time) (float64, bool) {
	day, ok := serialFromTime(t)
	if !ok {
		return 0, false
	}
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return day + float64(secs)/secondsPerDay, true
}

// civilFromSerial decomposes the integer part of a serial.
func civilFromSerial(serial float64) (civilDate, bool) {
	if math.IsNaN(serial) || serial < 0 || serial >= maxSerial+1 {
		return civilDate{}, false
	}
	n := int(math.Floor(serial))
	switch {
	case n == 0:
		return civilDate{Year: 1900, Month: 1, Day: 0}, true
	case n == phantomLeapDay:
		return civilDate{Year: 1900, Month: 2, Day: 29}, true
	case n > phantomLeapDay:
		n--
	}
	t := serialEpoch.AddDate(0, 0, n)
	return civilDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
}

// weekdayOfSerial returns 0 for Sunday through 6 for Saturday. Serial 1
// is a Sunday in the 1900 system, which keeps every later serial aligned
// with the real calendar from March 1900 on.
func weekdayOfSerial(serial int64) int {
	return int(((serial+6)%7 + 7) % 7)
}

// timeOfDay splits the fractional part of a serial into clock parts,
// rounded to the nearest second.
func timeOfDay(serial float64) (hour, minute, second int) {
	frac := serial - math.Floor(serial)
	secs := int(math.Round(frac * secondsPerDay))
	if secs >= secondsPerDay {
		secs = 0
	}
	return secs / 3600, secs % 3600 / 60, secs % 60
}

// addMonths shifts a date by whole months, clamping the day to the end
// of the target month.
func addMonths(d civilDate, months int) civilDate {
	m0 := d.Month - 1 + months
	year := d.Year + floorDiv(m0, 12)
	month := m0 - floorDiv(m0, 12)*12 + 1
	day := d.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return civilDate{Year: year, Month: month, Day: day}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var (
	dateLayouts = []string{
		"2006-01-02",
		"1/2/2006",
	}
	dateTimeLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
	timeLayouts = []string{
		"15:04:05",
		"15:04",
	}
)

func parseWith(layouts []string, s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateText accepts YYYY-MM-DD and M/D/YYYY, optionally followed by
// a time, and returns the date part.
func parseDateText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if t, ok := parseWith(dateTimeLayouts, s); ok {
		return serialFromTime(t)
	}
	if t, ok := parseWith(dateLayouts, s); ok {
		return serialFromTime(t)
	}
	return 0, false
}

// parseTimeText returns the time-of-day fraction of HH:MM[:SS] text, or
// of the time part of a date-time.
func parseTimeText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if t, ok := parseWith(dateTimeLayouts, s); ok {
		return fractionOf(t), true
	}
	if t, ok := parseWith(timeLayouts, s); ok {
		return fractionOf(t), true
	}
	return 0, false
}

func fractionOf(t time.Time) float64 {
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) / secondsPerDay
}

// parseDateTimeText is used by lenient numeric coercion: full serial
// including any time of day.
func parseDateTimeText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if t, ok := parseWith(dateTimeLayouts, s); ok {
		return serialFromDateTime(t)
	}
	if t, ok := parseWith(dateLayouts, s); ok {
		return serialFromTime(t)
	}
	if t, ok := parseWith(timeLayouts, s); ok {
		return fractionOf(t), true
	}
	return 0, false
}
