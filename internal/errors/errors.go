package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// AppError is an error with a stable code, used by the CLI and server to
// pick exit statuses and HTTP responses.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeParse           = "PARSE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnknown         = "UNKNOWN"
)

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap adds context to err, keeping the code of err when it has one.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: Code(err), Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode wraps err under an explicit code.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// Code finds the most specific code in err's chain. Errors from the
// formula package are mapped too; anything else is INTERNAL_ERROR.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	var parseErr *formula.ParseError
	if stderrors.As(err, &parseErr) {
		return CodeParse
	}
	var wbErr *formula.AppError
	if stderrors.As(err, &wbErr) {
		switch wbErr.Code {
		case formula.InvalidArgument, formula.OutOfRange:
			return CodeInvalidInput
		case formula.NotFound:
			return CodeNotFound
		case formula.AlreadyExists:
			return CodeAlreadyExists
		default:
			return CodeInternal
		}
	}
	return CodeInternal
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

func ConfigInvalid(format string, args ...any) *AppError {
	return Newf(CodeConfigInvalid, format, args...)
}

func InvalidInput(format string, args ...any) *AppError {
	return Newf(CodeInvalidInput, format, args...)
}

func NotFound(resource string) *AppError {
	return Newf(CodeNotFound, "%s not found", resource)
}

func ExternalService(service string, cause error) *AppError {
	return &AppError{Code: CodeExternalService, Message: service + " service error", Cause: cause}
}
