package formula

import (
	"context"
	"fmt"
	"strconv"
	"testing"
)

func newBenchWorkbook(b *testing.B, sheets ...string) *Workbook {
	b.Helper()
	wb := NewWorkbook()
	for _, name := range append([]string{"Sheet1"}, sheets...) {
		if err := wb.AddSheet(name); err != nil {
			b.Fatal(err)
		}
	}
	return wb
}

func benchSet(b *testing.B, wb *Workbook, address, input string) {
	b.Helper()
	if err := wb.Set(address, input); err != nil {
		b.Fatalf("Set(%s, %q): %v", address, input, err)
	}
}

func benchCalculate(b *testing.B, wb *Workbook) {
	b.Helper()
	if err := wb.Calculate(context.Background()); err != nil {
		b.Fatal(err)
	}
}

func benchAddr(row, col uint32) string {
	return CellRef{Row: row, Col: col}.String()
}

func BenchmarkLargeCellPopulation(b *testing.B) {
	for b.Loop() {
		wb := newBenchWorkbook(b)
		for row := uint32(1); row <= 100; row++ {
			for col := uint32(1); col <= 26; col++ {
				benchSet(b, wb, benchAddr(row, col), strconv.Itoa(int(row*col)))
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	wb := newBenchWorkbook(b)
	benchSet(b, wb, "A1", "1")
	for i := 2; i <= 100; i++ {
		benchSet(b, wb, fmt.Sprintf("A%d", i), fmt.Sprintf("=A%d+1", i-1))
	}

	for b.Loop() {
		benchSet(b, wb, "A1", "1")
		benchCalculate(b, wb)
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	wb := newBenchWorkbook(b)
	benchSet(b, wb, "A1", "100")
	for i := 2; i <= 500; i++ {
		benchSet(b, wb, fmt.Sprintf("B%d", i), "=A1*2")
	}

	i := 0
	for b.Loop() {
		benchSet(b, wb, "A1", strconv.Itoa(i))
		benchCalculate(b, wb)
		i++
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	wb := newBenchWorkbook(b)
	for i := 1; i <= 1000; i++ {
		benchSet(b, wb, fmt.Sprintf("A%d", i), strconv.Itoa(i))
	}
	benchSet(b, wb, "B1", "=SUM(A1:A1000)")

	for b.Loop() {
		benchSet(b, wb, "A1", "1")
		benchCalculate(b, wb)
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	wb := newBenchWorkbook(b)
	for i := 1; i <= 50; i++ {
		benchSet(b, wb, fmt.Sprintf("A%d", i), "=RAND()")
		benchSet(b, wb, fmt.Sprintf("B%d", i), fmt.Sprintf("=A%d*100", i))
	}

	for b.Loop() {
		benchCalculate(b, wb)
	}
}

func BenchmarkMultiSheetReferences(b *testing.B) {
	wb := newBenchWorkbook(b, "Data", "Summary")
	for i := 1; i <= 100; i++ {
		benchSet(b, wb, fmt.Sprintf("Data!A%d", i), strconv.Itoa(i))
	}
	benchSet(b, wb, "Summary!A1", "=SUM(Data!A1:A100)")
	benchSet(b, wb, "Summary!B1", "=AVERAGE(Data!A1:A100)")
	benchSet(b, wb, "Summary!C1", "=MAX(Data!A1:A100)")
	benchSet(b, wb, "Summary!D1", "=MIN(Data!A1:A100)")

	for b.Loop() {
		benchSet(b, wb, "Data!A1", "1")
		benchCalculate(b, wb)
	}
}

func BenchmarkSparseMatrix(b *testing.B) {
	wb := newBenchWorkbook(b)
	for row := uint32(1); row <= 1000; row += 10 {
		for col := uint32(1); col <= 1000; col += 10 {
			benchSet(b, wb, benchAddr(row, col), strconv.Itoa(int(row+col)))
		}
	}
	benchSet(b, wb, "AMA1", "=SUM(A1:ALL1000)")

	for b.Loop() {
		benchSet(b, wb, "A1", "2")
		benchCalculate(b, wb)
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	for b.Loop() {
		wb := newBenchWorkbook(b)
		benchSet(b, wb, "A1", "=B1+C1")
		benchSet(b, wb, "B1", "=C1+D1")
		benchSet(b, wb, "C1", "=D1+E1")
		benchSet(b, wb, "D1", "=E1+F1")
		benchSet(b, wb, "E1", "=F1+G1")
		benchSet(b, wb, "F1", "=G1+H1")
		benchSet(b, wb, "G1", "=H1+A1")
		benchSet(b, wb, "H1", "=A1")
		benchCalculate(b, wb)
	}
}

func BenchmarkDirtyPropagation(b *testing.B) {
	wb := newBenchWorkbook(b)
	const grid = 20
	for row := uint32(1); row <= grid; row++ {
		for col := uint32(1); col <= grid; col++ {
			switch {
			case row == 1 && col == 1:
				benchSet(b, wb, benchAddr(row, col), "1")
			case row == 1:
				benchSet(b, wb, benchAddr(row, col), "="+benchAddr(row, col-1)+"+1")
			case col == 1:
				benchSet(b, wb, benchAddr(row, col), "="+benchAddr(row-1, col)+"+1")
			default:
				benchSet(b, wb, benchAddr(row, col), "="+benchAddr(row, col-1)+"+"+benchAddr(row-1, col))
			}
		}
	}
	benchCalculate(b, wb)

	i := 0
	for b.Loop() {
		benchSet(b, wb, "A1", strconv.Itoa(i%100))
		benchCalculate(b, wb)
		i++
	}
}

func BenchmarkParse(b *testing.B) {
	const text = `=IF(AVERAGE(A1:A20)>10, SUM(B1:B20)*VLOOKUP("x", Data!A1:C9, 3, FALSE), ROUND(SQRT(C1)*PI(), 2))`
	for b.Loop() {
		if _, err := Parse("Sheet1", text); err != nil {
			b.Fatal(err)
		}
	}
}
