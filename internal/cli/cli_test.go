package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("FORMULA_CONFIG", "")
	var out, logs bytes.Buffer
	root := NewRootCommand(&logs)
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

const bookJSON = `{
	"sheets": {
		"Prices": {"A1": 10, "A2": 20, "B1": "=A1*2", "B2": "=SUM(A1:A2)"},
		"Summary": {"A1": "=AVERAGE(Prices!A1:A2)"}
	}
}`

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "formula version dev"), out)
}

func TestEval(t *testing.T) {
	out, err := run(t, "eval", "=1+2")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = run(t, "eval", "--cell", "B3", "=ROW()*COLUMN()")
	require.NoError(t, err)
	assert.Equal(t, "6\n", out)

	out, err = run(t, "eval", `=PROPER("hello world")`)
	require.NoError(t, err)
	assert.Equal(t, "Hello World\n", out)
}

func TestEvalAgainstWorkbook(t *testing.T) {
	path := writeFile(t, "book.json", bookJSON)

	out, err := run(t, "eval", "--workbook", path, "=B2+B1")
	require.NoError(t, err)
	assert.Equal(t, "50\n", out, "first sheet is the default")

	out, err = run(t, "eval", "--workbook", path, "--sheet", "Summary", "=A1")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)
}

func TestEvalErrors(t *testing.T) {
	_, err := run(t, "eval", "=SUM(")
	require.Error(t, err)
	assert.Equal(t, errors.CodeParse, errors.Code(err))

	_, err = run(t, "eval", "--cell", "9Z", "=1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))

	_, err = run(t, "eval", "--workbook", filepath.Join(t.TempDir(), "nope.json"), "=1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.Code(err))

	out, err := run(t, "eval", "=1/0")
	require.NoError(t, err, "error values are results, not failures")
	assert.Equal(t, "#DIV/0!\n", out)
}

func TestRecalc(t *testing.T) {
	path := writeFile(t, "book.json", bookJSON)

	out, err := run(t, "recalc", path)
	require.NoError(t, err)
	assert.Equal(t, "Prices!B1 = 20\nPrices!B2 = 30\nSummary!A1 = 15\n", out)
}

func TestConfigErrors(t *testing.T) {
	path := writeFile(t, "formula.toml", "[web]\nmax_concurrent = 0\n")
	_, err := run(t, "--config", path, "eval", "=1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.Code(err))
}
