package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func TestWrapKeepsCode(t *testing.T) {
	base := ConfigInvalid("bad %s", "timeout")
	err := Wrapf(base, "load %s", "config.toml")

	assert.Equal(t, CodeConfigInvalid, Code(err))
	assert.Equal(t, "load config.toml: bad timeout", err.Error())
	assert.True(t, stderrors.Is(err, base))
	assert.Nil(t, Wrap(nil, "x"))
}

func TestCodeMapsFormulaErrors(t *testing.T) {
	_, parseErr := formula.Parse("Sheet1", "=SUM(")
	assert.Equal(t, CodeParse, Code(fmt.Errorf("eval: %w", parseErr)))

	notFound := formula.NewApplicationError(formula.NotFound, "Worksheet not found")
	assert.True(t, Is(Wrap(notFound, "set A1"), CodeNotFound))
	assert.Equal(t, CodeInvalidInput, Code(formula.NewApplicationError(formula.InvalidArgument, "bad")))
	assert.Equal(t, CodeAlreadyExists, Code(formula.NewApplicationError(formula.AlreadyExists, "dup")))

	assert.Equal(t, CodeInternal, Code(stderrors.New("plain")))
	assert.Equal(t, "", Code(nil))
	assert.False(t, Is(nil, CodeInternal))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeExternalService, stderrors.New("timeout"))
	assert.Equal(t, CodeExternalService, Code(err))
	assert.Equal(t, "timeout", err.Error()[:7])
}
