// Package tool exposes the listing services as named, schema-typed calls.
package tool

import (
	"errors"

	"github.com/smallbiznis/estately/internal/apperr"
)

var (
	ErrAuthRequired = errors.New("authentication_required")
	ErrUserRequired = errors.New("user_required")
)

// ErrorBody is the failure half of a Result.
type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Entity  string      `json:"entity,omitempty"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// Result is what every tool call returns. Exactly one of Data and Error is set.
type Result struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Descriptor describes a registered tool. Public tools accept anonymous callers.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

func success(data any) Result {
	return Result{Success: true, Data: data}
}

// failure converts err into an error body. Internal errors never expose
// their cause.
func failure(err error) Result {
	body := &ErrorBody{Kind: apperr.KindInternal, Message: "internal error"}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Kind = appErr.Kind
		body.Entity = appErr.Entity
		body.Field = appErr.Field
		if appErr.Kind != apperr.KindInternal {
			body.Message = appErr.Message
		}
		if body.Message == "" {
			body.Message = string(appErr.Kind)
		}
	}
	return Result{Error: body}
}
