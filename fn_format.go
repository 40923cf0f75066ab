package formula

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const maxFixedDecimals = 127

// grouped renders x with exactly decimals fraction digits, comma
// grouped unless plain is set. decimals below zero round left of the
// point and print no fraction.
func grouped(x float64, decimals int64, plain bool) string {
	x = roundTo(x, decimals, math.Round)
	if x == 0 {
		x = 0 // drop the sign of -0
	}
	digits := int(max(decimals, 0))
	opts := []number.Option{number.MinFractionDigits(digits), number.MaxFractionDigits(digits)}
	if plain {
		opts = append(opts, number.NoSeparator())
	}
	return message.NewPrinter(language.English).Sprint(number.Decimal(x, opts...))
}

// FIXED(number, [decimals], [no_commas])
func (bf *BuiltInFunctions) FIXED(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	decimals := r.integerOr(1, 2)
	plain := r.booleanOr(2, false)
	if r.failed {
		return r.err
	}
	if decimals > maxFixedDecimals {
		return ErrorValue(ErrorCodeValue, "FIXED decimals must be at most 127")
	}
	return StringValue(grouped(x, decimals, plain))
}

// DOLLAR(number, [decimals]) writes negatives as -$1,234.57.
func (bf *BuiltInFunctions) DOLLAR(c *call, args []Arg) CellValue {
	r := c.read(args)
	x := r.number(0)
	decimals := r.integerOr(1, 2)
	if r.failed {
		return r.err
	}
	if decimals > maxFixedDecimals {
		return ErrorValue(ErrorCodeValue, "DOLLAR decimals must be at most 127")
	}
	s := grouped(math.Abs(x), decimals, false)
	if x < 0 && strings.Trim(s, "0.,") != "" {
		return StringValue("-$" + s)
	}
	return StringValue("$" + s)
}

// TEXT(value, format_text)
func (bf *BuiltInFunctions) TEXT(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	format := r.text(1)
	if r.failed {
		return r.err
	}
	out, ok := formatValue(v, format)
	if !ok {
		return ErrorValue(ErrorCodeValue, "TEXT cannot apply the format to the value")
	}
	if len([]rune(out)) > maxTextLength {
		return ErrorValue(ErrorCodeValue, "Text result exceeds maximum length of 32767 characters")
	}
	return StringValue(out)
}

// formatToken is one piece of a number format section: either literal
// text or a format code.
type formatToken struct {
	lit  string
	code string
}

// splitSections cuts a format at the semicolons that separate the
// positive, negative, zero and text sections.
func splitSections(format string) []string {
	var sections []string
	var b strings.Builder
	quoted := false
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			quoted = !quoted
		case ch == '\\' && !quoted && i+1 < len(runes):
			b.WriteRune(ch)
			i++
			ch = runes[i]
		case ch == ';' && !quoted:
			sections = append(sections, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(ch)
	}
	return append(sections, b.String())
}

func isDateCode(ch rune) bool {
	switch unicode.ToLower(ch) {
	case 'y', 'm', 'd', 'h', 's':
		return true
	}
	return false
}

func tokenizeFormat(section string) []formatToken {
	var tokens []formatToken
	runes := []rune(section)
	literal := func(s string) {
		if n := len(tokens); n > 0 && tokens[n-1].code == "" {
			tokens[n-1].lit += s
			return
		}
		tokens = append(tokens, formatToken{lit: s})
	}
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		rest := string(runes[i:])
		switch {
		case ch == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			literal(string(runes[i+1 : min(j, len(runes))]))
			i = j
		case ch == '\\' && i+1 < len(runes):
			literal(string(runes[i+1]))
			i++
		case ch == '_' && i+1 < len(runes):
			literal(" ")
			i++
		case ch == '*' && i+1 < len(runes):
			i++
		case ch == '[':
			for i < len(runes) && runes[i] != ']' {
				i++
			}
		case strings.HasPrefix(strings.ToUpper(rest), "AM/PM"):
			tokens = append(tokens, formatToken{code: "AM/PM"})
			i += 4
		case strings.HasPrefix(strings.ToUpper(rest), "A/P"):
			tokens = append(tokens, formatToken{code: "A/P"})
			i += 2
		case strings.HasPrefix(strings.ToUpper(rest), "GENERAL"):
			tokens = append(tokens, formatToken{code: "General"})
			i += 6
		case (ch == 'E' || ch == 'e') && i+1 < len(runes) && (runes[i+1] == '+' || runes[i+1] == '-'):
			tokens = append(tokens, formatToken{code: "E" + string(runes[i+1])})
			i++
		case isDateCode(ch):
			j := i
			for j < len(runes) && unicode.ToLower(runes[j]) == unicode.ToLower(ch) {
				j++
			}
			tokens = append(tokens, formatToken{code: strings.ToLower(string(runes[i:j]))})
			i = j - 1
		case strings.ContainsRune("0#?.,%@", ch):
			tokens = append(tokens, formatToken{code: string(ch)})
		default:
			literal(string(ch))
		}
	}
	return tokens
}

// formatValue applies an Excel number format to a value. Text passes
// through unless the format has a fourth section with @ in it.
func formatValue(v CellValue, format string) (string, bool) {
	sections := splitSections(format)
	n, isNumber := ToNumber(v)
	switch v.Kind {
	case KindEmpty:
		isNumber = true
	case KindString:
		n, isNumber = ToNumberLenient(v)
	}
	if !isNumber {
		text := ToText(v)
		if len(sections) < 4 {
			if len(sections) == 1 && strings.ContainsRune(sections[0], '@') {
				return applyText(tokenizeFormat(sections[0]), text), true
			}
			return text, true
		}
		return applyText(tokenizeFormat(sections[3]), text), true
	}

	section, signed := sections[0], true
	switch {
	case n < 0 && len(sections) >= 2:
		section, signed = sections[1], false
		n = -n
	case n == 0 && len(sections) >= 3:
		section = sections[2]
	}
	tokens := tokenizeFormat(section)
	for _, t := range tokens {
		if t.code == "General" {
			return applyText(tokens, ToText(numberValue(n))), true
		}
	}
	if isDateFormat(tokens) {
		if n < 0 {
			return "", false
		}
		return formatDate(tokens, n)
	}
	return formatNumberPattern(tokens, n, signed), true
}

func applyText(tokens []formatToken, text string) string {
	var b strings.Builder
	for _, t := range tokens {
		switch t.code {
		case "":
			b.WriteString(t.lit)
		case "@", "General":
			b.WriteString(text)
		}
	}
	return b.String()
}

func isDateFormat(tokens []formatToken) bool {
	for _, t := range tokens {
		if t.code == "AM/PM" || t.code == "A/P" || (t.code != "" && isDateCode([]rune(t.code)[0])) {
			return true
		}
	}
	return false
}

// formatDate renders date and time codes. An m run means minutes when it
// follows an hour or precedes a seconds code.
func formatDate(tokens []formatToken, serial float64) (string, bool) {
	d, ok := civilFromSerial(serial)
	if !ok {
		return "", false
	}
	hour, minute, second := timeOfDay(serial)
	twelve := false
	for _, t := range tokens {
		if t.code == "AM/PM" || t.code == "A/P" {
			twelve = true
		}
	}
	clockHour := hour
	if twelve {
		clockHour = hour % 12
		if clockHour == 0 {
			clockHour = 12
		}
	}
	minutesAt := make(map[int]bool)
	last := ""
	for i, t := range tokens {
		if t.code == "" {
			continue
		}
		kind := t.code[:1]
		if kind == "m" && len(t.code) <= 2 {
			if last == "h" {
				minutesAt[i] = true
			}
			for _, next := range tokens[i+1:] {
				if next.code == "" {
					continue
				}
				if next.code[:1] == "s" {
					minutesAt[i] = true
				}
				break
			}
		}
		last = kind
	}

	pad := func(n, width int) string {
		s := strconv.Itoa(n)
		for len(s) < width {
			s = "0" + s
		}
		return s
	}
	var b strings.Builder
	for i, t := range tokens {
		code := t.code
		switch {
		case code == "":
			b.WriteString(t.lit)
		case code == "AM/PM":
			if hour < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case code == "A/P":
			if hour < 12 {
				b.WriteString("A")
			} else {
				b.WriteString("P")
			}
		case code[0] == 'y':
			if len(code) <= 2 {
				b.WriteString(pad(d.Year%100, 2))
			} else {
				b.WriteString(pad(d.Year, 4))
			}
		case code[0] == 'm' && minutesAt[i]:
			b.WriteString(pad(minute, len(code)))
		case code[0] == 'm':
			month := time.Month(d.Month).String()
			switch len(code) {
			case 1, 2:
				b.WriteString(pad(d.Month, len(code)))
			case 3:
				b.WriteString(month[:3])
			case 5:
				b.WriteString(month[:1])
			default:
				b.WriteString(month)
			}
		case code[0] == 'd':
			day := time.Weekday(weekdayOfSerial(int64(serial))).String()
			switch len(code) {
			case 1, 2:
				b.WriteString(pad(d.Day, len(code)))
			case 3:
				b.WriteString(day[:3])
			default:
				b.WriteString(day)
			}
		case code[0] == 'h':
			b.WriteString(pad(clockHour, min(len(code), 2)))
		case code[0] == 's':
			b.WriteString(pad(second, min(len(code), 2)))
		default:
			b.WriteString(code)
		}
	}
	return b.String(), true
}

// formatNumberPattern fills the digit placeholders 0, # and ? of a
// section. A comma between placeholders groups thousands, a trailing one
// divides by 1000, and each % multiplies by 100.
func formatNumberPattern(tokens []formatToken, x float64, signed bool) string {
	point, exponent := -1, -1
	first, lastPlaceholder := -1, -1
	for i, t := range tokens {
		switch t.code {
		case "0", "#", "?":
			if first < 0 {
				first = i
			}
			if exponent < 0 {
				lastPlaceholder = i
			}
		case ".":
			if point < 0 && exponent < 0 {
				point = i
			}
		case "%":
			x *= 100
		case "E+", "E-":
			if exponent < 0 {
				exponent = i
			}
		}
	}
	negative := x < 0
	x = math.Abs(x)
	if first < 0 {
		// no placeholders: the section is all literal
		var b strings.Builder
		if negative && signed {
			b.WriteString("-")
		}
		for _, t := range tokens {
			b.WriteString(t.lit)
			if t.code == "%" {
				b.WriteString("%")
			}
		}
		return b.String()
	}

	intEnd := len(tokens)
	switch {
	case point >= 0:
		intEnd = point
	case exponent >= 0:
		intEnd = exponent
	}
	lastInt := -1
	for i, t := range tokens[:intEnd] {
		if t.code == "0" || t.code == "#" || t.code == "?" {
			lastInt = i
		}
	}
	grouping := false
	for i := first; i < lastInt; i++ {
		if tokens[i].code == "," {
			grouping = true
		}
	}
	// commas that close the integer part scale the value
	for i := lastInt + 1; lastInt >= 0 && i < intEnd && tokens[i].code == ","; i++ {
		x /= 1000
	}

	var fracSlots []string
	if point >= 0 {
		for _, t := range tokens[point+1:] {
			if t.code == "E+" || t.code == "E-" {
				break
			}
			if t.code == "0" || t.code == "#" || t.code == "?" {
				fracSlots = append(fracSlots, t.code)
			}
		}
	}

	exp := 0
	if exponent >= 0 && x != 0 {
		intSlots := 0
		for _, t := range tokens[:intEnd] {
			if t.code == "0" || t.code == "#" || t.code == "?" {
				intSlots++
			}
		}
		exp = int(math.Floor(math.Log10(x))) - max(intSlots, 1) + 1
		x /= math.Pow(10, float64(exp))
	}
	x = roundTo(x, int64(len(fracSlots)), math.Round)
	whole, frac, _ := strings.Cut(strconv.FormatFloat(x, 'f', len(fracSlots), 64), ".")
	if whole == "0" {
		whole = ""
	}
	if exponent >= 0 && len(whole) > 1 && strings.Trim(whole, "0") == "1" && x >= 10 {
		// rounding carried into a new digit
		whole = whole[:len(whole)-1]
		exp++
	}

	intPart := fillInteger(tokens[:intEnd], whole, grouping)
	fracPart := fillFraction(fracSlots, frac)

	var b strings.Builder
	if negative && signed {
		b.WriteString("-")
	}
	b.WriteString(intPart)
	if point >= 0 {
		b.WriteString(".")
		b.WriteString(fracPart)
	}
	for i := intEnd; i < len(tokens); i++ {
		t := tokens[i]
		switch t.code {
		case "":
			if i > lastPlaceholder || exponent >= 0 {
				b.WriteString(t.lit)
			}
		case "%":
			b.WriteString("%")
		case "E+", "E-":
			b.WriteString("E")
			if exp < 0 {
				b.WriteString("-")
			} else if t.code == "E+" {
				b.WriteString("+")
			}
			width := 0
			for _, e := range tokens[i+1:] {
				if e.code == "0" || e.code == "#" || e.code == "?" {
					width++
				}
			}
			s := strconv.Itoa(absInt(exp))
			for len(s) < width {
				s = "0" + s
			}
			b.WriteString(s)
			return b.String()
		}
	}
	return b.String()
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// fillInteger places digits right to left into the integer placeholders.
// Surplus digits go in front of the first placeholder.
func fillInteger(tokens []formatToken, digits string, grouping bool) string {
	var out []string
	d := len(digits)
	firstSlot := -1
	for i, t := range tokens {
		if t.code == "0" || t.code == "#" || t.code == "?" {
			firstSlot = i
			break
		}
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		t := tokens[i]
		switch t.code {
		case "":
			out = append(out, t.lit)
		case "0", "#", "?":
			switch {
			case d > 0 && i == firstSlot:
				out = append(out, digits[:d])
				d = 0
			case d > 0:
				d--
				out = append(out, digits[d:d+1])
			case t.code == "0":
				out = append(out, "0")
			case t.code == "?":
				out = append(out, " ")
			}
		}
	}
	var b strings.Builder
	for i := len(out) - 1; i >= 0; i-- {
		b.WriteString(out[i])
	}
	s := b.String()
	if grouping {
		s = groupThousands(s)
	}
	return s
}

// groupThousands inserts commas into the leading run of digits.
func groupThousands(s string) string {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return s
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	run := s[start:end]
	var b strings.Builder
	for i, ch := range run {
		if i > 0 && (len(run)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	return s[:start] + b.String() + s[end:]
}

// fillFraction drops trailing zeros that only # placeholders would show.
func fillFraction(slots []string, digits string) string {
	out := []byte(digits)
	for i := len(slots) - 1; i >= 0 && out[i] == '0'; i-- {
		switch slots[i] {
		case "#":
			out = out[:i]
			continue
		case "?":
			out[i] = ' '
			continue
		}
		break
	}
	return string(out)
}
