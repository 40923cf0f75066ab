// Package loader builds formula workbooks from .xlsx and .json files.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

// Load opens path and picks a reader by extension.
func Load(path string, opts ...formula.WorkbookOption) (*formula.Workbook, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound("workbook file " + path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opts...)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		return ParseJSON(data, opts...)
	default:
		return nil, errors.InvalidInput("unsupported workbook type %q", ext)
	}
}

func cellPosition(address string) (uint32, uint32, bool) {
	ref, ok := formula.ResolveCell("", strings.TrimSpace(address))
	if !ok {
		return 0, 0, false
	}
	return ref.Row, ref.Col, true
}

func formulaCell(text string) formula.CellValue {
	return formula.FormulaValue(nil, text, nil)
}
