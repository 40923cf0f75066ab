package formula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=$A$1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"='My Sheet'!A1",
		"=SUM(B2:A1)",
		"=SUM(A1:Z1000)",
		"={1,2;3,4}",
		"=IF(A1,,0)",
		"=50%",
		"=#N/A",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		"1+2",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := Parse("Sheet1", formula)
			assert.NoError(t, err)
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=(1+2",
		"=1 2",
		"={1,2;3}",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := Parse("Sheet1", formula)
			require.Error(t, err)
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "want *ParseError, got %T", err)
		})
	}
}

func TestParserTrees(t *testing.T) {
	t.Run("CellReference", func(t *testing.T) {
		expr := MustParse("Sheet1", "=$B$7")
		ref, ok := expr.(*CellRefExpr)
		require.True(t, ok, "got %T", expr)
		assert.Equal(t, CellRef{Sheet: "Sheet1", Row: 7, Col: 2}, ref.Ref)
	})

	t.Run("QualifiedRange", func(t *testing.T) {
		expr := MustParse("Sheet1", "='Q1 Data'!C3:A1")
		ref, ok := expr.(*RangeRefExpr)
		require.True(t, ok, "got %T", expr)
		assert.Equal(t, "Q1 Data", ref.Ref.Sheet)
		assert.Equal(t, RangeRef{Sheet: "Q1 Data", StartRow: 1, StartCol: 1, EndRow: 3, EndCol: 3}, ref.Ref.Normalized())
	})

	t.Run("Name", func(t *testing.T) {
		expr := MustParse("Sheet1", "=TaxRate")
		name, ok := expr.(*NameExpr)
		require.True(t, ok, "got %T", expr)
		assert.Equal(t, "TaxRate", name.Name)
	})

	t.Run("FunctionNameUpperCased", func(t *testing.T) {
		expr := MustParse("Sheet1", "=sum(1, 2)")
		call, ok := expr.(*FunctionCallExpr)
		require.True(t, ok, "got %T", expr)
		assert.Equal(t, "SUM", call.Name)
		assert.Len(t, call.Args, 2)
	})

	t.Run("OmittedArgument", func(t *testing.T) {
		call := MustParse("Sheet1", "=IF(A1,,0)").(*FunctionCallExpr)
		require.Len(t, call.Args, 3)
		lit, ok := call.Args[1].(*LiteralExpr)
		require.True(t, ok)
		assert.Equal(t, KindEmpty, lit.Value.Kind)
	})

	t.Run("Array", func(t *testing.T) {
		arr, ok := MustParse("Sheet1", "={1,2;3,-4}").(*ArrayExpr)
		require.True(t, ok)
		assert.Equal(t, 2, arr.Rows)
		assert.Equal(t, 2, arr.Cols)
		assert.Equal(t, IntValue(-4), arr.Values[3])
	})

	t.Run("StringEscapes", func(t *testing.T) {
		lit := MustParse("Sheet1", `="say ""hi"""`).(*LiteralExpr)
		assert.Equal(t, StringValue(`say "hi"`), lit.Value)
	})

	t.Run("NumberLiterals", func(t *testing.T) {
		assert.Equal(t, IntValue(42), MustParse("", "=42").(*LiteralExpr).Value)
		assert.Equal(t, FloatValue(123000), MustParse("", "=1.23E5").(*LiteralExpr).Value)
	})
}

func TestParserPrecedence(t *testing.T) {
	cases := map[string]string{
		"=1+2*3":      "(1+(2*3))",
		"=(1+2)*3":    "((1+2)*3)",
		"=2^3^2":      "(2^(3^2))",
		"=-2^2":       "(-2^2)",
		`=1+2&"x"`:    `((1+2)&"x")`,
		"=1+2>2":      "((1+2)>2)",
		"=A1*10%":     "(Sheet1!A1*10%)",
		"=SUM(A1:B2)": "SUM(Sheet1!A1:B2)",
	}
	for formula, want := range cases {
		t.Run(formula, func(t *testing.T) {
			assert.Equal(t, want, MustParse("Sheet1", formula).ToString())
		})
	}
}

func TestReferencesAndFunctionNames(t *testing.T) {
	expr := MustParse("Sheet1", "=IF(Rate>0, SUM(A1:A3)+Data!B2, NOW())")

	var kinds []string
	for _, ref := range References(expr) {
		kinds = append(kinds, ref.ToString())
	}
	assert.Equal(t, []string{"Rate", "Sheet1!A1:A3", "Data!B2"}, kinds)
	assert.ElementsMatch(t, []string{"IF", "SUM", "NOW"}, FunctionNames(expr))
	assert.True(t, isVolatileFunction("NOW"))
	assert.False(t, isVolatileFunction("SUM"))
}

func TestLexerTokens(t *testing.T) {
	tokens, err := NewLexer(`=SUM(A1:B2, "x")`).Tokenize()
	require.NoError(t, err)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenEquals, TokenFunction, TokenLeftParen, TokenRange, TokenComma,
		TokenString, TokenRightParen, TokenEOF,
	}, types)
}
