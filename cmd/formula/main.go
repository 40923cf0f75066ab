// formula evaluates spreadsheet formulas from the command line.
package main

import (
	"os"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
