// Package apperr classifies failures into the stable kinds reported to callers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/estately/pkg/db"
	"gorm.io/gorm"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindConnection Kind = "connection"
	KindInternal   Kind = "internal"
)

// Error carries a kind plus the entity and field it concerns.
type Error struct {
	Kind    Kind
	Entity  string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entity == "" || t.Entity == e.Entity)
}

func newError(kind Kind, entity, field string, cause error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Entity: entity, Field: field, Message: msg, Err: cause}
}

func Validation(entity, field string, cause error) *Error {
	return newError(KindValidation, entity, field, cause, "")
}

func Validationf(entity, field, format string, args ...any) *Error {
	return newError(KindValidation, entity, field, nil, format, args...)
}

func NotFound(entity string) *Error {
	return newError(KindNotFound, entity, "", nil, "%s not found", entity)
}

func Forbidden(entity string, cause error) *Error {
	return newError(KindForbidden, entity, "", cause, "")
}

func Conflict(entity, field string, cause error) *Error {
	return newError(KindConflict, entity, field, cause, "")
}

func Connection(cause error) *Error {
	return newError(KindConnection, "", "", cause, "store unavailable")
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify maps a raw store error into the taxonomy. Errors that already carry
// a kind pass through unchanged.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Entity: entity, Message: entity + " not found", Err: err}
	case db.IsDuplicateKeyErr(err):
		return &Error{Kind: KindConflict, Entity: entity, Message: "already exists", Err: err}
	case db.IsForeignKeyErr(err):
		return &Error{Kind: KindValidation, Entity: entity, Message: "references a missing row", Err: err}
	case db.IsConnectionErr(err):
		return Connection(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Entity: entity, Message: "request aborted", Err: err}
	default:
		return &Error{Kind: KindInternal, Entity: entity, Err: err}
	}
}
