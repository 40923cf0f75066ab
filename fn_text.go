package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

const maxTextLength = 32767

// Casers carry state, so each call builds its own.
func upper(s string) string { return cases.Upper(language.Und).String(s) }
func lower(s string) string { return cases.Lower(language.Und).String(s) }
func title(s string) string { return cases.Title(language.Und).String(s) }

// textOf reads a single text argument.
func textOf(c *call, args []Arg, f func(string) CellValue) CellValue {
	r := c.read(args)
	s := r.text(0)
	if r.failed {
		return r.err
	}
	return f(s)
}

func (bf *BuiltInFunctions) LEN(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue {
		return IntValue(int64(utf8.RuneCountInString(s)))
	})
}

// count reads an optional character count, 1 by default.
func count(r *argReader, i int) int {
	n := r.integerOr(i, 1)
	if r.failed {
		return 0
	}
	if n < 0 {
		r.fail(errorf(ErrorCodeValue, "%s num_chars must be a non-negative integer", r.name))
		return 0
	}
	if n > maxTextLength {
		n = maxTextLength
	}
	return int(n)
}

func (bf *BuiltInFunctions) LEFT(c *call, args []Arg) CellValue {
	r := c.read(args)
	runes := []rune(r.text(0))
	n := count(r, 1)
	if r.failed {
		return r.err
	}
	return StringValue(string(runes[:min(n, len(runes))]))
}

func (bf *BuiltInFunctions) RIGHT(c *call, args []Arg) CellValue {
	r := c.read(args)
	runes := []rune(r.text(0))
	n := count(r, 1)
	if r.failed {
		return r.err
	}
	return StringValue(string(runes[len(runes)-min(n, len(runes)):]))
}

// startPosition reads a 1-based character position.
func startPosition(r *argReader, i int) int {
	n := r.integer(i)
	if r.failed {
		return 0
	}
	if n < 1 {
		r.fail(errorf(ErrorCodeValue, "%s start_num must be a positive integer", r.name))
		return 0
	}
	if n > maxTextLength+1 {
		n = maxTextLength + 1
	}
	return int(n)
}

// MID(text, start_num, num_chars)
func (bf *BuiltInFunctions) MID(c *call, args []Arg) CellValue {
	r := c.read(args)
	runes := []rune(r.text(0))
	start := startPosition(r, 1)
	n := r.integer(2)
	if r.failed {
		return r.err
	}
	if n < 0 {
		return ErrorValue(ErrorCodeValue, "MID num_chars must be a non-negative integer")
	}
	if start > len(runes) {
		return StringValue("")
	}
	end := min(start-1+int(min(n, maxTextLength)), len(runes))
	return StringValue(string(runes[start-1 : end]))
}

func (bf *BuiltInFunctions) UPPER(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue { return StringValue(upper(s)) })
}

func (bf *BuiltInFunctions) LOWER(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue { return StringValue(lower(s)) })
}

// PROPER capitalizes the first letter of every run of letters and
// lowercases the rest; anything that is not a letter starts a new word.
func (bf *BuiltInFunctions) PROPER(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue {
		var b strings.Builder
		word := []rune{}
		flush := func() {
			if len(word) > 0 {
				b.WriteString(title(string(word)))
				word = word[:0]
			}
		}
		for _, ch := range s {
			if unicode.IsLetter(ch) {
				word = append(word, ch)
				continue
			}
			flush()
			b.WriteRune(ch)
		}
		flush()
		return StringValue(b.String())
	})
}

func (bf *BuiltInFunctions) TRIM(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue { return StringValue(strings.TrimSpace(s)) })
}

// CLEAN removes the non-printable control characters 0-31.
func (bf *BuiltInFunctions) CLEAN(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue {
		return StringValue(strings.Map(func(r rune) rune {
			if r < 32 {
				return -1
			}
			return r
		}, s))
	})
}

// joinText concatenates every value, ranges flattened. The first error
// value wins.
func joinText(args []Arg, sep string, skipEmpty bool) CellValue {
	var parts []string
	for _, v := range flatValues(args) {
		if v.Kind == KindError {
			return v
		}
		if skipEmpty && IsBlank(v) {
			continue
		}
		parts = append(parts, ToText(v))
	}
	out := strings.Join(parts, sep)
	if utf8.RuneCountInString(out) > maxTextLength {
		return ErrorValue(ErrorCodeValue, "Text result exceeds maximum length of 32767 characters")
	}
	return StringValue(out)
}

func (bf *BuiltInFunctions) CONCATENATE(c *call, args []Arg) CellValue {
	return joinText(args, "", false)
}

func (bf *BuiltInFunctions) CONCAT(c *call, args []Arg) CellValue {
	return joinText(args, "", false)
}

// TEXTJOIN(delimiter, ignore_empty, text1, ...)
func (bf *BuiltInFunctions) TEXTJOIN(c *call, args []Arg) CellValue {
	r := c.read(args)
	sep := r.text(0)
	ignoreEmpty := r.boolean(1)
	if r.failed {
		return r.err
	}
	return joinText(args[2:], sep, ignoreEmpty)
}

// SUBSTITUTE(text, old_text, new_text, [instance_num])
func (bf *BuiltInFunctions) SUBSTITUTE(c *call, args []Arg) CellValue {
	r := c.read(args)
	text := r.text(0)
	old := r.text(1)
	repl := r.text(2)
	instance := r.integerOr(3, 0)
	if r.failed {
		return r.err
	}
	if old == "" {
		return ErrorValue(ErrorCodeValue, "SUBSTITUTE old_text must not be empty")
	}
	if !r.present(3) {
		return StringValue(strings.ReplaceAll(text, old, repl))
	}
	if instance < 1 {
		return ErrorValue(ErrorCodeValue, "SUBSTITUTE instance_num must be a positive integer")
	}
	offset := 0
	for seen := int64(1); ; seen++ {
		i := strings.Index(text[offset:], old)
		if i < 0 {
			return StringValue(text)
		}
		at := offset + i
		if seen == instance {
			return StringValue(text[:at] + repl + text[at+len(old):])
		}
		offset = at + len(old)
	}
}

// REPLACE(old_text, start_num, num_chars, new_text)
func (bf *BuiltInFunctions) REPLACE(c *call, args []Arg) CellValue {
	r := c.read(args)
	runes := []rune(r.text(0))
	start := startPosition(r, 1)
	n := r.integer(2)
	repl := r.text(3)
	if r.failed {
		return r.err
	}
	if n < 0 {
		return ErrorValue(ErrorCodeValue, "REPLACE num_chars must be a non-negative integer")
	}
	if start > len(runes) {
		return StringValue(string(runes) + repl)
	}
	end := min(start-1+int(min(n, maxTextLength)), len(runes))
	return StringValue(string(runes[:start-1]) + repl + string(runes[end:]))
}

func (bf *BuiltInFunctions) REPT(c *call, args []Arg) CellValue {
	r := c.read(args)
	s := r.text(0)
	times := r.integer(1)
	if r.failed {
		return r.err
	}
	if times < 0 {
		return ErrorValue(ErrorCodeValue, "REPT number_times must be a non-negative integer")
	}
	if s == "" || times == 0 {
		return StringValue("")
	}
	if times > maxTextLength || int64(utf8.RuneCountInString(s))*times > maxTextLength {
		return ErrorValue(ErrorCodeValue, "REPT result exceeds maximum length of 32767 characters")
	}
	return StringValue(strings.Repeat(s, int(times)))
}

// find drives FIND and SEARCH; positions are 1-based characters.
func find(c *call, args []Arg, fold bool) CellValue {
	r := c.read(args)
	needle := []rune(r.text(0))
	hay := []rune(r.text(1))
	start := r.integerOr(2, 1)
	if r.failed {
		return r.err
	}
	if start < 1 || start > int64(len(hay))+1 {
		return errorf(ErrorCodeValue, "%s start_num is out of range", c.name)
	}
	if len(needle) == 0 {
		return IntValue(start)
	}
	if fold {
		needle = []rune(lower(string(needle)))
		hay = []rune(lower(string(hay)))
	}
	for i := int(start - 1); i+len(needle) <= len(hay); i++ {
		if string(hay[i:i+len(needle)]) == string(needle) {
			return IntValue(int64(i + 1))
		}
	}
	return errorf(ErrorCodeValue, "%s could not find the text", c.name)
}

func (bf *BuiltInFunctions) FIND(c *call, args []Arg) CellValue {
	return find(c, args, false)
}

// SEARCH is FIND without case sensitivity.
func (bf *BuiltInFunctions) SEARCH(c *call, args []Arg) CellValue {
	return find(c, args, true)
}

func (bf *BuiltInFunctions) EXACT(c *call, args []Arg) CellValue {
	r := c.read(args)
	a := r.text(0)
	b := r.text(1)
	if r.failed {
		return r.err
	}
	return BoolValue(a == b)
}

// VALUE converts number, date or time text to a number.
func (bf *BuiltInFunctions) VALUE(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	if r.failed {
		return r.err
	}
	if v.Kind == KindString {
		if n, ok := parseDateTimeText(v.Str); ok {
			return numberValue(n)
		}
	}
	n, ok := ToNumberLenient(v)
	if !ok {
		return ErrorValue(ErrorCodeValue, "VALUE: text is not a number")
	}
	return numberValue(n)
}

// CHAR maps 1-255 to the Latin-1 character of that code.
func (bf *BuiltInFunctions) CHAR(c *call, args []Arg) CellValue {
	r := c.read(args)
	n := r.integer(0)
	if r.failed {
		return r.err
	}
	if n < 1 || n > 255 {
		return ErrorValue(ErrorCodeValue, "CHAR code must be an integer between 1 and 255")
	}
	return StringValue(string(rune(n)))
}

func (bf *BuiltInFunctions) CODE(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue {
		ch, size := utf8.DecodeRuneInString(s)
		if size == 0 {
			return ErrorValue(ErrorCodeValue, "CODE text must not be empty")
		}
		return IntValue(int64(ch))
	})
}

// T returns text unchanged and an empty string for anything else.
func (bf *BuiltInFunctions) T(c *call, args []Arg) CellValue {
	r := c.read(args)
	v := r.scalar(0)
	if r.failed {
		return r.err
	}
	if v.Kind == KindString {
		return v
	}
	return StringValue("")
}

// ASC converts full-width characters to their half-width forms.
func (bf *BuiltInFunctions) ASC(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue { return StringValue(width.Narrow.String(s)) })
}

// DBCS converts half-width characters to their full-width forms.
func (bf *BuiltInFunctions) DBCS(c *call, args []Arg) CellValue {
	return textOf(c, args, func(s string) CellValue { return StringValue(width.Widen.String(s)) })
}
