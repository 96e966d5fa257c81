package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the wire shape for every failed auth operation. Clients
// key off the HTTP status; the message is for display.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

// HTTPStatus maps an error to the status code it should travel with.
// Foreign errors collapse to 500.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return errors.CodeInternal
}

// WriteError renders err as a JSON error response on ctx, preserving the
// rich error's status code and public message. Internal errors are not
// echoed to the client verbatim.
func WriteError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "Server Error").
			WithCode(errors.CodeInternal)
	}

	msg := richErr.Message
	if richErr.Category == errors.CategoryInternal {
		msg = "Server Error"
	}

	return ctx.JSON(HTTPStatus(richErr), ErrorResponse{Msg: msg})
}
