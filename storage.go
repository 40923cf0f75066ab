package formula

// storage holds the tables shared by every sheet of a workbook.
type storage struct {
	sheets   *WorksheetTable
	names    *NamedRangeTable
	strings  *StringTable
	formulas *FormulaTable
	graph    *DependencyGraph
}

func newStorage() *storage {
	return &storage{
		sheets:   NewWorksheetTable(),
		names:    NewNamedRangeTable(),
		strings:  NewStringTable(),
		formulas: NewFormulaTable(),
		graph:    NewDependencyGraph(),
	}
}
