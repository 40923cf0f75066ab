package loader

import (
	"github.com/tidwall/gjson"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

// ParseJSON reads a workbook of the form
//
//	{"sheets": {"Sheet1": {"A1": 1, "B1": "=A1*2"}}, "names": {"Rate": "Sheet1!A1"}}
//
// Sheets are added in document order. Strings starting with "=" are
// formulas; other strings are kept as text.
func ParseJSON(data []byte, opts ...formula.WorkbookOption) (*formula.Workbook, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidInput("workbook is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	sheets := doc.Get("sheets")
	if !sheets.IsObject() {
		return nil, errors.InvalidInput(`workbook needs a "sheets" object`)
	}

	wb := formula.NewWorkbook(opts...)
	var err error
	sheets.ForEach(func(name, _ gjson.Result) bool {
		err = wb.AddSheet(name.String())
		return err == nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add sheet")
	}

	sheets.ForEach(func(name, cells gjson.Result) bool {
		if !cells.IsObject() {
			err = errors.InvalidInput("sheet %q must be an object of cells", name.String())
			return false
		}
		cells.ForEach(func(address, value gjson.Result) bool {
			err = setJSONCell(wb, name.String(), address.String(), value)
			return err == nil
		})
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	doc.Get("names").ForEach(func(name, target gjson.Result) bool {
		if err = wb.DefineName(name.String(), target.String()); err != nil {
			err = errors.Wrapf(err, "define name %s", name.String())
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return wb, nil
}

func setJSONCell(wb *formula.Workbook, sheet, address string, value gjson.Result) error {
	row, col, ok := cellPosition(address)
	if !ok {
		return errors.InvalidInput("invalid cell address %q on sheet %s", address, sheet)
	}

	var v formula.CellValue
	switch value.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		v = formula.BoolValue(true)
	case gjson.False:
		v = formula.BoolValue(false)
	case gjson.Number:
		v = formula.ParseInput(value.Raw)
	case gjson.String:
		s := value.String()
		if len(s) > 1 && s[0] == '=' {
			v = formulaCell(s)
		} else {
			v = formula.StringValue(s)
		}
	default:
		return errors.InvalidInput("cell %s!%s has unsupported value %s", sheet, address, value.Raw)
	}

	if err := wb.SetValue(sheet, row, col, v); err != nil {
		return errors.Wrapf(err, "set %s!%s", sheet, address)
	}
	return nil
}
