package formula

import (
	"math"
	"strconv"
	"strings"
)

// CellRef is a sheet-qualified single cell coordinate (1-based).
type CellRef struct {
	Sheet string
	Row   uint32
	Col   uint32
}

func (r CellRef) String() string {
	return formatSheetPrefix(r.Sheet) + ColumnLetters(r.Col) + strconv.FormatUint(uint64(r.Row), 10)
}

// RangeRef is a sheet-qualified rectangle. Start is not required to be
// above/left of End; use Normalized before iterating.
type RangeRef struct {
	Sheet    string
	StartRow uint32
	StartCol uint32
	EndRow   uint32
	EndCol   uint32
}

// Normalized returns the range with start <= end on both axes.
func (r RangeRef) Normalized() RangeRef {
	if r.StartRow > r.EndRow {
		r.StartRow, r.EndRow = r.EndRow, r.StartRow
	}
	if r.StartCol > r.EndCol {
		r.StartCol, r.EndCol = r.EndCol, r.StartCol
	}
	return r
}

func (r RangeRef) Rows() int {
	n := r.Normalized()
	return int(n.EndRow-n.StartRow) + 1
}

func (r RangeRef) Cols() int {
	n := r.Normalized()
	return int(n.EndCol-n.StartCol) + 1
}

// Contains reports whether the cell lies inside the range.
func (r RangeRef) Contains(sheet string, row, col uint32) bool {
	n := r.Normalized()
	return n.Sheet == sheet &&
		row >= n.StartRow && row <= n.EndRow &&
		col >= n.StartCol && col <= n.EndCol
}

func (r RangeRef) String() string {
	start := ColumnLetters(r.StartCol) + strconv.FormatUint(uint64(r.StartRow), 10)
	end := ColumnLetters(r.EndCol) + strconv.FormatUint(uint64(r.EndRow), 10)
	return formatSheetPrefix(r.Sheet) + start + ":" + end
}

// ResolveCell parses an A1-style token such as "B7", "$B$7", "Data!B7"
// or "'My ''Q1'' Sheet'!B7". The sheet defaults to currentSheet.
func ResolveCell(currentSheet, text string) (CellRef, bool) {
	sheet, rest, ok := splitSheet(currentSheet, text)
	if !ok {
		return CellRef{}, false
	}
	row, col, ok := parseCellToken(rest)
	if !ok {
		return CellRef{}, false
	}
	return CellRef{Sheet: sheet, Row: row, Col: col}, true
}

// ResolveRange parses "A1:B2" with an optional sheet prefix. A single
// cell token resolves to a 1x1 range.
func ResolveRange(currentSheet, text string) (RangeRef, bool) {
	sheet, rest, ok := splitSheet(currentSheet, text)
	if !ok {
		return RangeRef{}, false
	}
	startTok, endTok, found := strings.Cut(rest, ":")
	if !found {
		endTok = startTok
	}
	startRow, startCol, ok := parseCellToken(startTok)
	if !ok {
		return RangeRef{}, false
	}
	endRow, endCol, ok := parseCellToken(endTok)
	if !ok {
		return RangeRef{}, false
	}
	return RangeRef{
		Sheet:    sheet,
		StartRow: startRow,
		StartCol: startCol,
		EndRow:   endRow,
		EndCol:   endCol,
	}, true
}

// splitSheet separates an optional sheet prefix (text before the last
// '!') from the cell part.
func splitSheet(currentSheet, text string) (string, string, bool) {
	idx := strings.LastIndexByte(text, '!')
	if idx < 0 {
		return currentSheet, text, true
	}
	name := text[:idx]
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	if name == "" {
		return "", "", false
	}
	return name, text[idx+1:], true
}

// parseCellToken parses "$?LETTERS$?DIGITS" into a 1-based row/col.
func parseCellToken(tok string) (uint32, uint32, bool) {
	i := 0
	if i < len(tok) && tok[i] == '$' {
		i++
	}
	letterStart := i
	for i < len(tok) && isASCIILetter(tok[i]) {
		i++
	}
	if i == letterStart {
		return 0, 0, false
	}
	letters := tok[letterStart:i]
	if i < len(tok) && tok[i] == '$' {
		i++
	}
	digitStart := i
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i == digitStart || i != len(tok) {
		return 0, 0, false
	}
	col, ok := ColumnNumber(letters)
	if !ok {
		return 0, 0, false
	}
	row, err := strconv.ParseUint(tok[digitStart:], 10, 32)
	if err != nil || row == 0 {
		return 0, 0, false
	}
	return uint32(row), col, true
}

// ColumnNumber converts column letters to a 1-based index (A=1, AA=27).
// Overflow is rejected rather than wrapped.
func ColumnNumber(letters string) (uint32, bool) {
	if letters == "" {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		n = n*26 + uint64(ch-'A'+1)
		if n > math.MaxUint32 {
			return 0, false
		}
	}
	return uint32(n), true
}

// ColumnLetters is the inverse of ColumnNumber.
func ColumnLetters(col uint32) string {
	if col == 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	n := uint64(col)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// formatSheetPrefix renders "Sheet!" or "'My Sheet'!", or "" for no sheet.
func formatSheetPrefix(sheet string) string {
	if sheet == "" {
		return ""
	}
	if needsQuoting(sheet) {
		return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!"
	}
	return sheet + "!"
}

func needsQuoting(sheet string) bool {
	if sheet[0] >= '0' && sheet[0] <= '9' {
		return true
	}
	for i := 0; i < len(sheet); i++ {
		ch := sheet[i]
		if !isASCIILetter(ch) && !(ch >= '0' && ch <= '9') && ch != '_' && ch != '.' {
			return true
		}
	}
	// names that look like a cell token must be quoted
	_, _, looksLikeCell := parseCellToken(sheet)
	return looksLikeCell
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
