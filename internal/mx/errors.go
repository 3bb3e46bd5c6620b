package mx

import (
	"errors"
	"fmt"
)

var (
	ErrShape    = errors.New("shape mismatch")
	ErrEncoding = errors.New("unsupported encoding")
)

// ShapeError reports a dimension that violates a packing, grouping or
// blocking constraint. It unwraps to ErrShape.
type ShapeError struct {
	Tensor string
	Msg    string
}

func (e *ShapeError) Error() string {
	if e.Tensor == "" {
		return "shape: " + e.Msg
	}
	return "shape: " + e.Tensor + ": " + e.Msg
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

// NewShapeError builds a ShapeError for the named tensor.
func NewShapeError(tensor, format string, args ...any) error {
	return &ShapeError{Tensor: tensor, Msg: fmt.Sprintf(format, args...)}
}
