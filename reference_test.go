package formula

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCell(t *testing.T) {
	tests := []struct {
		text string
		want CellRef
		ok   bool
	}{
		{"A1", CellRef{Sheet: "Sheet1", Row: 1, Col: 1}, true},
		{"AA10", CellRef{Sheet: "Sheet1", Row: 10, Col: 27}, true},
		{"b7", CellRef{Sheet: "Sheet1", Row: 7, Col: 2}, true},
		{"$B$7", CellRef{Sheet: "Sheet1", Row: 7, Col: 2}, true},
		{"$B7", CellRef{Sheet: "Sheet1", Row: 7, Col: 2}, true},
		{"Data!C3", CellRef{Sheet: "Data", Row: 3, Col: 3}, true},
		{"'It''s'!A1", CellRef{Sheet: "It's", Row: 1, Col: 1}, true},
		{"'My Sheet'!$D$4", CellRef{Sheet: "My Sheet", Row: 4, Col: 4}, true},
		{"A4294967295", CellRef{Sheet: "Sheet1", Row: 4294967295, Col: 1}, true},
		{"''!A1", CellRef{}, false},
		{"!A1", CellRef{}, false},
		{"A0", CellRef{}, false},
		{"A1x", CellRef{}, false},
		{"A", CellRef{}, false},
		{"12", CellRef{}, false},
		{"$$A1", CellRef{}, false},
		{"A4294967296", CellRef{}, false},
		{"ZZZZZZZZ1", CellRef{}, false},
	}
	for _, tt := range tests {
		got, ok := ResolveCell("Sheet1", tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestResolveRange(t *testing.T) {
	got, ok := ResolveRange("Sheet1", "'Q1 Data'!$B$2:D9")
	assert.True(t, ok)
	assert.Equal(t, RangeRef{Sheet: "Q1 Data", StartRow: 2, StartCol: 2, EndRow: 9, EndCol: 4}, got)
	assert.Equal(t, 8, got.Rows())
	assert.Equal(t, 3, got.Cols())

	got, ok = ResolveRange("Sheet1", "C3")
	assert.True(t, ok)
	assert.Equal(t, RangeRef{Sheet: "Sheet1", StartRow: 3, StartCol: 3, EndRow: 3, EndCol: 3}, got)

	got, ok = ResolveRange("Sheet1", "D9:B2")
	assert.True(t, ok)
	assert.Equal(t, RangeRef{Sheet: "Sheet1", StartRow: 2, StartCol: 2, EndRow: 9, EndCol: 4}, got.Normalized())

	for _, text := range []string{"A1:", "A1:B0", "A1:B2x", "''!A1:B2"} {
		_, ok := ResolveRange("Sheet1", text)
		assert.False(t, ok, text)
	}
}

func TestColumnNumber(t *testing.T) {
	tests := []struct {
		letters string
		want    uint32
		ok      bool
	}{
		{"A", 1, true},
		{"z", 26, true},
		{"AA", 27, true},
		{"AZ", 52, true},
		{"XFD", 16384, true},
		{"MWLQKWU", 4294967295, true},
		{"MWLQKWV", 0, false},
		{"ZZZZZZZZ", 0, false},
		{"", 0, false},
		{"A1", 0, false},
	}
	for _, tt := range tests {
		got, ok := ColumnNumber(tt.letters)
		assert.Equal(t, tt.ok, ok, tt.letters)
		assert.Equal(t, tt.want, got, tt.letters)
		if tt.ok {
			assert.Equal(t, strings.ToUpper(tt.letters), ColumnLetters(got))
		}
	}
}

func TestRefString(t *testing.T) {
	assert.Equal(t, "B7", CellRef{Row: 7, Col: 2}.String())
	assert.Equal(t, "'It''s'!A1", CellRef{Sheet: "It's", Row: 1, Col: 1}.String())
	assert.Equal(t, "'A1'!B2", CellRef{Sheet: "A1", Row: 2, Col: 2}.String())
	assert.Equal(t, "Data!A1:C3", RangeRef{Sheet: "Data", StartRow: 1, StartCol: 1, EndRow: 3, EndCol: 3}.String())
}

