package kanban

import (
	"database/sql"
	"errors"
	"fmt"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

// Kind classifies failures so callers can map them to transport codes.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindLLMUnavailable  Kind = "llm_unavailable"
	KindParse           Kind = "parse"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	// Timeout marks an LLMUnavailable error caused by a deadline.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Unauthenticatedf(format string, args ...any) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Parsef(format string, args ...any) *Error {
	return newError(KindParse, format, args...)
}

// LLMUnavailable wraps a transport failure talking to the model.
func LLMUnavailable(err error, timeout bool) *Error {
	message := "language model unavailable"
	if timeout {
		message = "language model timed out"
	}
	return &Error{Kind: KindLLMUnavailable, Message: message, Timeout: timeout, Err: err}
}

// KindOf returns the kind of err, translating store and rbac sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return KindNotFound
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrScopeGone):
		return KindConflict
	case errors.Is(err, rbac.ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}

// classify converts store and rbac sentinels into *Error, leaving other
// errors untouched. what names the entity for not-found messages.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return err
	}
	switch KindOf(err) {
	case KindNotFound:
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	case KindConflict:
		if errors.Is(err, store.ErrScopeGone) {
			return &Error{Kind: KindConflict, Message: "target location no longer exists", Err: err}
		}
		if errors.Is(err, store.ErrDuplicate) {
			return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
		}
		return &Error{Kind: KindConflict, Message: "concurrent update, please retry", Err: err}
	case KindForbidden:
		return &Error{Kind: KindForbidden, Message: err.Error(), Err: err}
	default:
		return err
	}
}
