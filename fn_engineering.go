package formula

import (
	"math"
	"strconv"
	"strings"
)

type unit struct {
	category string
	factor   float64
}

// units maps each CONVERT unit to its category and its size in the
// category's base unit. Temperature is affine and handled separately.
var units = map[string]unit{
	"g":   {"weight", 1},
	"kg":  {"weight", 1000},
	"mg":  {"weight", 0.001},
	"lbm": {"weight", 453.59237},
	"ozm": {"weight", 28.349523125},

	"m":  {"distance", 1},
	"km": {"distance", 1000},
	"cm": {"distance", 0.01},
	"mm": {"distance", 0.001},
	"in": {"distance", 0.0254},
	"ft": {"distance", 0.3048},
	"yd": {"distance", 0.9144},
	"mi": {"distance", 1609.344},

	"yr":  {"time", 31536000},
	"day": {"time", 86400},
	"hr":  {"time", 3600},
	"mn":  {"time", 60},
	"sec": {"time", 1},

	"Pa":   {"pressure", 1},
	"atm":  {"pressure", 101325},
	"mmHg": {"pressure", 133.322368},

	"N":   {"force", 1},
	"dyn": {"force", 1e-5},
	"lbf": {"force", 4.4482216152605},

	"J":   {"energy", 1},
	"e":   {"energy", 1e-7},
	"cal": {"energy", 4.1868},
	"BTU": {"energy", 1055.05585},

	"W":  {"power", 1},
	"HP": {"power", 745.69987158227},

	"T":  {"magnetism", 1},
	"ga": {"magnetism", 1e-4},

	"l":   {"volume", 0.001},
	"L":   {"volume", 0.001},
	"gal": {"volume", 0.003785411784},
	"qt":  {"volume", 0.000946352946},
	"pt":  {"volume", 0.000473176473},

	"C": {"temperature", 0},
	"F": {"temperature", 0},
	"K": {"temperature", 0},
}

func toKelvin(v float64, from string) float64 {
	switch from {
	case "C":
		return v + 273.15
	case "F":
		return (v + 459.67) * 5 / 9
	}
	return v
}

func fromKelvin(k float64, to string) float64 {
	switch to {
	case "C":
		return k - 273.15
	case "F":
		return k*9/5 - 459.67
	}
	return k
}

// CONVERT(number, from_unit, to_unit). Unit names are case-sensitive;
// unknown units and units of different categories are #N/A.
func (bf *BuiltInFunctions) CONVERT(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.number(0)
	from := r.text(1)
	to := r.text(2)
	if r.failed {
		return r.err
	}
	fu, ok := units[from]
	if !ok {
		return ErrorValue(ErrorCodeNA, "CONVERT: unknown unit "+from)
	}
	tu, ok := units[to]
	if !ok {
		return ErrorValue(ErrorCodeNA, "CONVERT: unknown unit "+to)
	}
	if fu.category != tu.category {
		return ErrorValue(ErrorCodeNA, "CONVERT: units "+from+" and "+to+" are not compatible")
	}
	if fu.category == "temperature" {
		return checkedFloat(fromKelvin(toKelvin(v, from), to))
	}
	return checkedFloat(v * fu.factor / tu.factor)
}

// ERF(lower, [upper]) integrates from lower to upper, or from 0 to
// lower when there is no upper bound.
func (bf *BuiltInFunctions) ERF(c *call, args []Arg) CellValue {
	r := c.read(args)
	lower := r.number(0)
	if r.present(1) {
		upper := r.number(1)
		if r.failed {
			return r.err
		}
		return checkedFloat(math.Erf(upper) - math.Erf(lower))
	}
	if r.failed {
		return r.err
	}
	return checkedFloat(math.Erf(lower))
}

func (bf *BuiltInFunctions) ERFC(c *call, args []Arg) CellValue {
	return unaryMath(c, args, math.Erfc)
}

// radix describes one of the positional notations of the base
// conversion functions. Negative numbers are ten-digit two's complement.
type radix struct {
	base int
	bits uint // width of the ten-digit two's complement form
	min  int64
	max  int64
}

var (
	binary      = radix{base: 2, bits: 10, min: -512, max: 511}
	octal       = radix{base: 8, bits: 30, min: -536870912, max: 536870911}
	hexadecimal = radix{base: 16, bits: 40, min: -549755813888, max: 549755813887}
)

func (rx radix) format(n int64) string {
	if n < 0 {
		n += 1 << rx.bits
	}
	return strings.ToUpper(strconv.FormatInt(n, rx.base))
}

func (rx radix) parse(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 10 {
		return 0, false
	}
	u, err := strconv.ParseUint(s, rx.base, 64)
	if err != nil || u >= 1<<rx.bits {
		return 0, false
	}
	n := int64(u)
	if n > rx.max {
		n -= 1 << rx.bits
	}
	return n, true
}

// fromDecimal drives DEC2BIN, DEC2OCT and DEC2HEX. places pads positive
// results with leading zeros and is ignored for negative ones.
func fromDecimal(c *call, args []Arg, rx radix) CellValue {
	r := c.read(args)
	x := r.number(0)
	places := r.integerOr(1, 0)
	if r.failed {
		return r.err
	}
	x = math.Trunc(x)
	if x < float64(rx.min) || x > float64(rx.max) {
		return errorf(ErrorCodeNum, "%s number must be between %d and %d", c.name, rx.min, rx.max)
	}
	n := int64(x)
	out := rx.format(n)
	if r.present(1) && n >= 0 {
		if places < 1 || places > 10 {
			return errorf(ErrorCodeNum, "%s places must be between 1 and 10", c.name)
		}
		if int64(len(out)) > places {
			return errorf(ErrorCodeNum, "%s places is too small to display the result", c.name)
		}
		out = strings.Repeat("0", int(places)-len(out)) + out
	}
	return StringValue(out)
}

func toDecimal(c *call, args []Arg, rx radix) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	if r.failed {
		return r.err
	}
	text := ToText(v)
	if v.Kind == KindFloat || v.Kind == KindInt {
		if n, ok := ToNumber(v); !ok || n < 0 || n != math.Trunc(n) {
			return errorf(ErrorCodeNum, "%s expects a valid base-%d number", c.name, rx.base)
		}
	}
	n, ok := rx.parse(text)
	if !ok {
		return errorf(ErrorCodeNum, "%s expects a valid base-%d number of up to 10 digits", c.name, rx.base)
	}
	return IntValue(n)
}

func (bf *BuiltInFunctions) DEC2BIN(c *call, args []Arg) CellValue {
	return fromDecimal(c, args, binary)
}

func (bf *BuiltInFunctions) DEC2OCT(c *call, args []Arg) CellValue {
	return fromDecimal(c, args, octal)
}

func (bf *BuiltInFunctions) DEC2HEX(c *call, args []Arg) CellValue {
	return fromDecimal(c, args, hexadecimal)
}

func (bf *BuiltInFunctions) BIN2DEC(c *call, args []Arg) CellValue {
	return toDecimal(c, args, binary)
}

func (bf *BuiltInFunctions) OCT2DEC(c *call, args []Arg) CellValue {
	return toDecimal(c, args, octal)
}

func (bf *BuiltInFunctions) HEX2DEC(c *call, args []Arg) CellValue {
	return toDecimal(c, args, hexadecimal)
}
