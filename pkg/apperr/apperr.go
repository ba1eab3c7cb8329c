// Package apperr holds the flat error taxonomy shared by every handler.
// Each Kind maps to exactly one HTTP status and a default message code that
// the templates turn into user-visible text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindServerError Kind = iota
	KindNotAuthorized
	KindNotFound
	KindBadParams
	KindBotDetection
)

// Message codes carried in ?message= redirects and JSON {"error": ...} bodies.
const (
	CodeServerError   = "server_error"
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "404"
	CodeBadRequest    = "bad_request"
	CodeBotDetected   = "bot_detected"
	CodeCommentExists = "comment_exists"
	CodeTooManyPhotos = "too_many_photos"
	CodeNotImage      = "not_image"
	CodeImageTooLarge = "image_too_large"
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthorized:
		return "not_authorized"
	case KindNotFound:
		return "not_found"
	case KindBadParams:
		return "bad_params"
	case KindBotDetection:
		return "bot_detection"
	default:
		return "server_error"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotAuthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindBadParams:
		return http.StatusBadRequest
	case KindBotDetection:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) defaultCode() string {
	switch k {
	case KindNotAuthorized:
		return CodeUnauthorized
	case KindNotFound:
		return CodeNotFound
	case KindBadParams:
		return CodeBadRequest
	case KindBotDetection:
		return CodeBotDetected
	default:
		return CodeServerError
	}
}

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.MessageCode(), e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.MessageCode())
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int { return e.Kind.Status() }

// MessageCode returns the explicit code or the kind's default.
func (e *Error) MessageCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.defaultCode()
}

func NotAuthorized() *Error { return &Error{Kind: KindNotAuthorized} }

func NotFound() *Error { return &Error{Kind: KindNotFound} }

func BadParams(code string) *Error { return &Error{Kind: KindBadParams, Code: code} }

func BotDetection() *Error { return &Error{Kind: KindBotDetection} }

func Server(err error) *Error { return &Error{Kind: KindServerError, Err: err} }

// Wrap attaches a cause to a classified error without changing its kind or code.
func Wrap(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// From classifies err. Anything that is not an *Error is a ServerError.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Server(err)
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return From(err).Kind == kind
}
