package api

import "errors"

var ErrInvalidRequest = errors.New("invalid_request")

// invalidRequestError is a client error in a submitted case. Field names the
// offending request field when there is one.
type invalidRequestError struct {
	Field string
	Msg   string
}

func (e *invalidRequestError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(field, msg string) error {
	return &invalidRequestError{Field: field, Msg: msg}
}
