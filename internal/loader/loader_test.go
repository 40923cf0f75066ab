package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

func assertNumber(t *testing.T, wb *formula.Workbook, address string, want float64) {
	t.Helper()
	v, err := wb.Get(address)
	require.NoError(t, err)
	n, ok := formula.ToNumber(v)
	require.True(t, ok, "%s: got %v", address, v)
	assert.InDelta(t, want, n, 1e-9, address)
}

func fixtureXLSX(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet("Data")
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 2.5))
	require.NoError(t, f.SetCellFormula("Sheet1", "B1", "A1+A2"))
	require.NoError(t, f.SetCellValue("Sheet1", "C1", "label"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", true))
	require.NoError(t, f.SetCellFormula("Data", "A1", "SUM(Inputs)*2"))
	require.NoError(t, f.SetCellValue("Data", "B1", 10))
	require.NoError(t, f.SetDefinedName(&excelize.DefinedName{
		Name:     "Inputs",
		RefersTo: "Sheet1!$A$1:$A$2",
	}))
	return f
}

func TestLoadXLSX(t *testing.T) {
	f := fixtureXLSX(t)
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, wb.Sheets())
	assert.Equal(t, []string{"Inputs"}, wb.Names())

	raw, err := wb.Cell("Sheet1!B1")
	require.NoError(t, err)
	require.Equal(t, formula.KindFormula, raw.Kind)
	assert.Equal(t, "A1+A2", raw.Formula.Text)

	require.NoError(t, wb.Calculate(context.Background()))
	assertNumber(t, wb, "Sheet1!B1", 3.5)
	assertNumber(t, wb, "Data!A1", 7)
	assertNumber(t, wb, "Data!B1", 10)

	label, err := wb.Get("Sheet1!C1")
	require.NoError(t, err)
	assert.Equal(t, formula.StringValue("label"), label)
	flag, err := wb.Get("Sheet1!A3")
	require.NoError(t, err)
	assert.Equal(t, formula.BoolValue(true), flag)
}

func TestReadXLSXFromBuffer(t *testing.T) {
	f := fixtureXLSX(t)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := ReadXLSX(buf)
	require.NoError(t, err)
	require.NoError(t, wb.Set("Sheet1!A1", "4"))
	require.NoError(t, wb.Calculate(context.Background()))
	assertNumber(t, wb, "Data!A1", 13)
}

func TestParseJSON(t *testing.T) {
	wb, err := ParseJSON([]byte(`{
		"sheets": {
			"Inputs": {"A1": 2, "A2": 3.5, "A3": "007", "A4": true, "A5": null},
			"Report": {"A1": "=SUM(Values)", "B1": "=Inputs!A1*10", "C1": "=LEN(Inputs!A3)"}
		},
		"names": {"Values": "Inputs!A1:A2"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Inputs", "Report"}, wb.Sheets())

	require.NoError(t, wb.Calculate(context.Background()))
	assertNumber(t, wb, "Report!A1", 5.5)
	assertNumber(t, wb, "Report!B1", 20)
	assertNumber(t, wb, "Report!C1", 3)

	text, err := wb.Get("Inputs!A3")
	require.NoError(t, err)
	assert.Equal(t, formula.StringValue("007"), text, "JSON strings stay text")

	empty, err := wb.Get("Inputs!A5")
	require.NoError(t, err)
	assert.Equal(t, formula.KindEmpty, empty.Kind)
}

func TestParseJSONErrors(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"sheets":`,
		"no sheets":      `{"names": {}}`,
		"bad address":    `{"sheets": {"S": {"1A": 1}}}`,
		"nested value":   `{"sheets": {"S": {"A1": [1, 2]}}}`,
		"bad sheet name": `{"sheets": {"a/b": {}}}`,
		"bad name":       `{"sheets": {"S": {}}, "names": {"A1": "S!A1"}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(data))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))
		})
	}

	_, err := ParseJSON([]byte(`{"sheets": {"S": {"A1": "=SUM("}}}`))
	require.Error(t, err)
	assert.Equal(t, errors.CodeParse, errors.Code(err))
}

func TestLoadRejectsUnknownFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, errors.CodeNotFound, errors.Code(err))

	path := filepath.Join(t.TempDir(), "book.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b"), 0o644))
	_, err = Load(path)
	assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))

	path = filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sheets":{"Main":{"A1":"=1+1"}}}`), 0o644))
	wb, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, wb.Calculate(context.Background()))
	assertNumber(t, wb, "Main!A1", 2)
}
