package formula

import (
	"math"
	"strconv"
	"strings"
)

// ToNumber coerces Int, Float and DateTime to float64. Every other kind
// (including text that looks numeric) is reported as non-numeric.
func ToNumber(v CellValue) (float64, bool) {
	v = v.resolve()
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat, KindDateTime:
		return v.Num, true
	}
	return 0, false
}

// ToNumberLenient is the coercion used by arithmetic operators and
// scalar numeric arguments: booleans become 1/0, blanks become 0 and
// numeric text is parsed.
func ToNumberLenient(v CellValue) (float64, bool) {
	v = v.resolve()
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat, KindDateTime:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindEmpty:
		return 0, true
	case KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		if strings.HasSuffix(s, "%") {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64); err == nil {
				return f / 100, true
			}
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		if serial, ok := parseDateTimeText(s); ok {
			return serial, true
		}
	}
	return 0, false
}

// ToText renders a value as the text a text function operates on.
func ToText(v CellValue) string {
	v = v.resolve()
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat, KindDateTime:
		return formatNumber(v.Num)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Err.Code()
	}
	return ""
}

// ToBool coerces to a boolean. Text "TRUE"/"FALSE" is recognized, other
// non-empty text is true. Errors are false; callers must check for
// errors before coercing.
func ToBool(v CellValue) bool {
	v = v.resolve()
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat, KindDateTime:
		return v.Num != 0
	case KindString:
		switch strings.ToUpper(strings.TrimSpace(v.Str)) {
		case "TRUE":
			return true
		case "FALSE", "":
			return false
		}
		return true
	}
	return false
}

// IsBlank is true for Empty and the empty string.
func IsBlank(v CellValue) bool {
	v = v.resolve()
	switch v.Kind {
	case KindEmpty:
		return true
	case KindString:
		return v.Str == ""
	}
	return false
}

// firstError returns the first error in values, if any.
func firstError(values ...CellValue) (CellValue, bool) {
	for _, v := range values {
		if r := v.resolve(); r.Kind == KindError {
			return r, true
		}
	}
	return CellValue{}, false
}

// ValuesEqual is the equality used by lookups and SWITCH: numeric when
// both sides are numbers, case-insensitive text otherwise.
func ValuesEqual(a, b CellValue) bool {
	a, b = a.resolve(), b.resolve()
	an, aNum := ToNumber(a)
	bn, bNum := ToNumber(b)
	if aNum && bNum {
		return an == bn
	}
	if aNum != bNum && a.Kind != KindEmpty && b.Kind != KindEmpty {
		return false
	}
	if a.Kind == KindBool || b.Kind == KindBool {
		return a.Kind == b.Kind && a.Bool == b.Bool
	}
	return strings.EqualFold(ToText(a), ToText(b))
}

// typeRank orders kinds for cross-type comparison: numbers < text < booleans.
func typeRank(v CellValue) int {
	switch v.Kind {
	case KindInt, KindFloat, KindDateTime:
		return 0
	case KindString:
		return 1
	case KindBool:
		return 2
	}
	return -1
}

// CompareValues returns -1, 0 or 1. Blanks compare as the zero value of
// the other side's type.
func CompareValues(left, right CellValue) int {
	left, right = left.resolve(), right.resolve()

	if left.Kind == KindEmpty && right.Kind == KindEmpty {
		return 0
	}
	if left.Kind == KindEmpty {
		left = zeroLike(right)
	}
	if right.Kind == KindEmpty {
		right = zeroLike(left)
	}

	lr, rr := typeRank(left), typeRank(right)
	if lr != rr {
		return cmpInt(lr, rr)
	}

	switch lr {
	case 0:
		ln, _ := ToNumber(left)
		rn, _ := ToNumber(right)
		return cmpFloat(ln, rn)
	case 2:
		return cmpInt(boolInt(left.Bool), boolInt(right.Bool))
	}
	return strings.Compare(strings.ToLower(ToText(left)), strings.ToLower(ToText(right)))
}

func zeroLike(v CellValue) CellValue {
	switch v.Kind {
	case KindString:
		return StringValue("")
	case KindBool:
		return BoolValue(false)
	}
	return IntValue(0)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatNumber renders a float with at most 15 significant digits.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', 15, 64), 64)
	if err != nil {
		rounded = f
	}
	abs := math.Abs(rounded)
	if abs >= 1e-9 && abs < 1e21 {
		return strconv.FormatFloat(rounded, 'f', -1, 64)
	}
	return strconv.FormatFloat(rounded, 'E', -1, 64)
}
