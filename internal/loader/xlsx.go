package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

// LoadXLSX reads an Excel workbook. Cached formula results in the file are
// ignored; each formula is parsed and computed again by Calculate.
func LoadXLSX(path string, opts ...formula.WorkbookOption) (*formula.Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return readXLSX(f, opts...)
}

// ReadXLSX is LoadXLSX for an in-memory file.
func ReadXLSX(r io.Reader, opts ...formula.WorkbookOption) (*formula.Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return readXLSX(f, opts...)
}

func readXLSX(f *excelize.File, opts ...formula.WorkbookOption) (*formula.Workbook, error) {
	wb := formula.NewWorkbook(opts...)
	sheets := f.GetSheetList()
	for _, name := range sheets {
		if err := wb.AddSheet(name); err != nil {
			return nil, errors.Wrap(err, "add sheet")
		}
	}

	for _, name := range sheets {
		if err := readSheet(f, wb, name); err != nil {
			return nil, err
		}
	}

	for _, dn := range f.GetDefinedName() {
		// sheet-scoped names have no workbook equivalent
		if dn.Scope != "" && dn.Scope != "Workbook" {
			continue
		}
		if err := wb.DefineName(dn.Name, dn.RefersTo); err != nil {
			return nil, errors.Wrapf(err, "define name %s", dn.Name)
		}
	}
	return wb, nil
}

func readSheet(f *excelize.File, wb *formula.Workbook, sheet string) error {
	maxRow, maxCol, err := sheetExtent(f, sheet)
	if err != nil {
		return err
	}
	for row := 1; row <= maxRow; row++ {
		for col := 1; col <= maxCol; col++ {
			axis, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return err
			}
			v, err := readCell(f, sheet, axis)
			if err != nil {
				return fmt.Errorf("read %s!%s: %w", sheet, axis, err)
			}
			if v.Kind == formula.KindEmpty {
				continue
			}
			if err := wb.SetValue(sheet, uint32(row), uint32(col), v); err != nil {
				return errors.Wrapf(err, "set %s!%s", sheet, axis)
			}
		}
	}
	return nil
}

// sheetExtent covers both the populated rows and the declared dimension,
// since formula cells without a cached value read back as blank.
func sheetExtent(f *excelize.File, sheet string) (int, int, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	maxRow, maxCol := len(rows), 0
	for _, row := range rows {
		maxCol = max(maxCol, len(row))
	}

	dim, err := f.GetSheetDimension(sheet)
	if err == nil && dim != "" {
		_, last, _ := strings.Cut(dim, ":")
		if last == "" {
			last = dim
		}
		if col, row, err := excelize.CellNameToCoordinates(last); err == nil {
			maxRow, maxCol = max(maxRow, row), max(maxCol, col)
		}
	}
	return maxRow, maxCol, nil
}

func readCell(f *excelize.File, sheet, axis string) (formula.CellValue, error) {
	text, err := f.GetCellFormula(sheet, axis)
	if err != nil {
		return formula.CellValue{}, err
	}
	if text != "" {
		return formulaCell(text), nil
	}

	raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return formula.EmptyValue(), err
	}
	kind, err := f.GetCellType(sheet, axis)
	if err != nil {
		return formula.CellValue{}, err
	}
	switch kind {
	case excelize.CellTypeBool:
		return formula.BoolValue(raw == "1" || strings.EqualFold(raw, "TRUE")), nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return formula.StringValue(raw), nil
	case excelize.CellTypeDate:
		if v := formula.ParseInput(raw); v.IsNumber() {
			n, _ := formula.ToNumber(v)
			return formula.DateTimeValue(n), nil
		}
		return formula.StringValue(raw), nil
	default:
		// numbers, errors and untyped cells
		return formula.ParseInput(raw), nil
	}
}
