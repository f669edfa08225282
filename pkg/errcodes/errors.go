package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		http.StatusForbidden,
		action + " is not allowed.",
		"forbidden",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

// Conflict returns a 409 error, used for unique-constraint violations and
// optimistic-concurrency (version mismatch) failures.
func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		"conflict",
	}
}

// FailedUpdate returns the 409 raised when an optimistic-concurrency update
// affects zero rows.
func FailedUpdate() error {
	return &Error{
		http.StatusConflict,
		"The record was modified by someone else. Reload and try again.",
		"failed_update",
	}
}

// Unauthorized returns a 401 error for missing or invalid credentials/tokens.
func Unauthorized(msg string) error {
	return &Error{
		http.StatusUnauthorized,
		msg,
		"unauthorized",
	}
}

// UpstreamUnavailable returns a 500 error for failures in an external
// collaborator (subprocess, OIDC discovery, ...). Callers that know the
// failure is actually the caller's fault should prefer a more specific 4xx.
func UpstreamUnavailable(msg string) error {
	return &Error{
		http.StatusInternalServerError,
		msg,
		"upstream_unavailable",
	}
}

// DatabaseError returns a generic 500 for DB I/O failures. The message is
// always the fixed string below; internal detail is logged, never returned.
func DatabaseError() error {
	return &Error{
		http.StatusInternalServerError,
		"Database error",
		"database_error",
	}
}

// ApplicationError returns a generic 500 for all other internal failures.
func ApplicationError() error {
	return &Error{
		http.StatusInternalServerError,
		"Application error",
		"application_error",
	}
}

// InvalidOrderByField returns a 422 naming the offending order-by field.
func InvalidOrderByField(field string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("%q is not a sortable field.", field),
		"invalid_order_by_field",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}
