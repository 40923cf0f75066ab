package formula

import (
	"unicode"
)

// delimiters reads one delimiter or an array of them. Empty delimiters
// are dropped.
func delimiters(r *argReader, i int) [][]rune {
	if r.failed || i >= len(r.args) {
		return nil
	}
	var out [][]rune
	for _, v := range r.args[i].Values() {
		v = v.resolve()
		if v.Kind == KindError {
			r.fail(v)
			return nil
		}
		if s := ToText(v); s != "" {
			out = append(out, []rune(s))
		}
	}
	return out
}

// span is a matched delimiter, in rune offsets.
type span struct{ start, end int }

func runesEqual(a, b []rune, fold bool) bool {
	for i := range a {
		if a[i] != b[i] && (!fold || unicode.ToLower(a[i]) != unicode.ToLower(b[i])) {
			return false
		}
	}
	return true
}

// splitPoints scans text left to right and returns every non-overlapping
// delimiter match. At one position the longest delimiter wins.
func splitPoints(text []rune, delims [][]rune, fold bool) []span {
	var out []span
	for i := 0; i < len(text); {
		best := 0
		for _, d := range delims {
			if len(d) > best && i+len(d) <= len(text) && runesEqual(d, text[i:i+len(d)], fold) {
				best = len(d)
			}
		}
		if best == 0 {
			i++
			continue
		}
		out = append(out, span{i, i + best})
		i += best
	}
	return out
}

func matchModeArg(r *argReader, i int) bool {
	mode := r.integerOr(i, 0)
	if !r.failed && mode != 0 && mode != 1 {
		r.fail(errorf(ErrorCodeValue, "%s match_mode must be 0 or 1", r.name))
	}
	return mode == 1
}

// delimited drives TEXTBEFORE and TEXTAFTER: (text, delimiter,
// [instance_num], [match_mode], [match_end], [if_not_found]).
func delimited(c *call, args []Arg, after bool) CellValue {
	r := c.read(args)
	text := []rune(r.text(0))
	delims := delimiters(r, 1)
	instance := r.integerOr(2, 1)
	fold := matchModeArg(r, 3)
	matchEnd := r.booleanOr(4, false)
	if r.failed {
		return r.err
	}
	if len(delims) == 0 {
		return errorf(ErrorCodeValue, "%s delimiter must not be empty", c.name)
	}
	if instance == 0 || (len(text) > 0 && max(instance, -instance) > int64(len(text))) {
		return errorf(ErrorCodeValue, "%s instance_num is out of range", c.name)
	}

	points := splitPoints(text, delims, fold)
	if matchEnd {
		if instance > 0 {
			points = append(points, span{len(text), len(text)})
		} else {
			points = append([]span{{0, 0}}, points...)
		}
	}
	var at span
	switch {
	case instance > 0 && int(instance) <= len(points):
		at = points[instance-1]
	case instance < 0 && int(-instance) <= len(points):
		at = points[len(points)+int(instance)]
	default:
		if r.present(5) {
			return args[5].Value.resolve()
		}
		return errorf(ErrorCodeNA, "%s could not find the delimiter", c.name)
	}
	if after {
		return StringValue(string(text[at.end:]))
	}
	return StringValue(string(text[:at.start]))
}

func (bf *BuiltInFunctions) TEXTBEFORE(c *call, args []Arg) CellValue {
	return delimited(c, args, false)
}

func (bf *BuiltInFunctions) TEXTAFTER(c *call, args []Arg) CellValue {
	return delimited(c, args, true)
}

// cut splits text at every match.
func cut(text []rune, points []span) []string {
	parts := make([]string, 0, len(points)+1)
	prev := 0
	for _, p := range points {
		parts = append(parts, string(text[prev:p.start]))
		prev = p.end
	}
	return append(parts, string(text[prev:]))
}

func dropEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TEXTSPLIT(text, col_delimiter, [row_delimiter], [ignore_empty],
// [match_mode], [pad_with]) spills a table. Short rows are padded with
// pad_with, #N/A by default.
func (bf *BuiltInFunctions) TEXTSPLIT(c *call, args []Arg) (RangeValue, CellValue) {
	r := c.read(args)
	text := []rune(r.text(0))
	var colDelims, rowDelims [][]rune
	if r.present(1) {
		colDelims = delimiters(r, 1)
	}
	if r.present(2) {
		rowDelims = delimiters(r, 2)
	}
	ignoreEmpty := r.booleanOr(3, false)
	fold := matchModeArg(r, 4)
	if r.failed {
		return RangeValue{}, r.err
	}
	if len(colDelims) == 0 && len(rowDelims) == 0 {
		return RangeValue{}, ErrorValue(ErrorCodeValue, "TEXTSPLIT needs a column or row delimiter")
	}
	pad := ErrorValue(ErrorCodeNA, "")
	if r.present(5) {
		pad = args[5].Value.resolve()
	}

	rows := []string{string(text)}
	if len(rowDelims) > 0 {
		rows = cut(text, splitPoints(text, rowDelims, fold))
	}
	if ignoreEmpty {
		rows = dropEmpty(rows)
	}
	var table [][]string
	width := 0
	for _, row := range rows {
		line := []rune(row)
		cells := []string{row}
		if len(colDelims) > 0 {
			cells = cut(line, splitPoints(line, colDelims, fold))
		}
		if ignoreEmpty {
			cells = dropEmpty(cells)
		}
		if len(cells) == 0 {
			continue
		}
		table = append(table, cells)
		width = max(width, len(cells))
	}
	if len(table) == 0 {
		return RangeValue{}, ErrorValue(ErrorCodeValue, "TEXTSPLIT produced no values")
	}

	out := RangeValue{Rows: len(table), Cols: width, Values: make([]CellValue, 0, len(table)*width)}
	for _, cells := range table {
		for j := 0; j < width; j++ {
			if j < len(cells) {
				out.Values = append(out.Values, StringValue(cells[j]))
			} else {
				out.Values = append(out.Values, pad)
			}
		}
	}
	return out, CellValue{}
}
