// Package apperr classifies domain failures so transports can map them without
// string matching.
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindTransition
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransition:
		return "transition"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindTransition:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Fields attributes messages to request fields;
// Detail carries a message that belongs to no field. State is the current
// appointment state for transition errors.
type Error struct {
	Kind   Kind
	Fields map[string]string
	Detail string
	State  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Kind.String() + ": " + e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Kind.String() + ": " + strings.Join(parts, "; ")
}

// Field returns the message attributed to name, if any.
func (e *Error) Field(name string) string {
	return e.Fields[name]
}

// Body is the JSON error payload.
func (e *Error) Body() map[string]any {
	body := map[string]any{}
	for k, v := range e.Fields {
		body[k] = v
	}
	if e.Detail != "" {
		body["detail"] = e.Detail
	}
	if e.State != "" {
		body["estado"] = e.State
	}
	return body
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Fields: map[string]string{field: msg}}
}

func Invalid(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

// Conflict reports a double booking on field.
func Conflict(field, msg string) *Error {
	return &Error{Kind: KindConflict, Fields: map[string]string{field: msg}}
}

func Transition(state, detail string) *Error {
	return &Error{Kind: KindTransition, Detail: detail, State: state}
}

func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Merge combines the field messages of several validation errors into one.
func Merge(errs ...*Error) *Error {
	var out *Error
	for _, e := range errs {
		if e == nil {
			continue
		}
		if out == nil {
			out = &Error{Kind: e.Kind, Fields: map[string]string{}}
		}
		for k, v := range e.Fields {
			if _, exists := out.Fields[k]; !exists {
				out.Fields[k] = v
			}
		}
		if out.Detail == "" {
			out.Detail = e.Detail
		}
	}
	return out
}
