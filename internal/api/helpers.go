package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/mxcheck/internal/mx"
)

func writeBadRequest(c *echo.Context, msg, param string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, param)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{
			Message: msg,
			Type:    errType,
			Param:   param,
		},
	})
}

// writeCaseError maps case validation failures to 400 and anything else to
// 500.
func writeCaseError(c *echo.Context, err error) error {
	var (
		se *mx.ShapeError
		ie *invalidRequestError
	)
	switch {
	case errors.As(err, &se):
		return writeBadRequest(c, err.Error(), se.Tensor)
	case errors.As(err, &ie):
		return writeBadRequest(c, err.Error(), ie.Field)
	case errors.Is(err, mx.ErrShape), errors.Is(err, mx.ErrEncoding):
		return writeBadRequest(c, err.Error(), "")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
}
