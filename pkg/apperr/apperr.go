// Package apperr carries typed error codes from the store and services up to
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error condition; it is rendered verbatim in API responses.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeConflict      Code = "CONFLICT"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeDatabase      Code = "DATABASE_ERROR"
	CodeStorage       Code = "STORAGE_ERROR"
	CodeExternal      Code = "EXTERNAL_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is an error with a code and a user-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func NotFound(what string) *Error { return Newf(CodeNotFound, "%s não encontrado(a)", what) }
func Invalid(msg string) *Error { return New(CodeInvalidInput, msg) }
func Invalidf(format string, args ...interface{}) *Error {
	return Newf(CodeInvalidInput, format, args...)
}
func Forbidden() *Error { return New(CodeForbidden, "acesso negado") }
func Conflict(msg string) *Error { return New(CodeConflict, msg) }
func Unauthorized() *Error { return New(CodeUnauthorized, "não autenticado") }
func Database(err error) *Error { return Wrap(CodeDatabase, "erro no banco de dados", err) }
func Storage(err error) *Error { return Wrap(CodeStorage, "erro no armazenamento de arquivos", err) }
func AlreadyExists(msg string) *Error { return New(CodeAlreadyExists, msg) }

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to show to API clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "erro interno"
}
