package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

// writeCopyError reports a rejected plan or copy. The param names the
// request field at fault when known.
func writeCopyError(c *echo.Context, err error, param string) error {
	status := http.StatusBadRequest
	typ := errorType(err)
	if typ == "invalid_request_error" && !isInvalidRequest(err) {
		status = http.StatusInternalServerError
		typ = "server_error"
	}
	return writeError(c, status, typ, err.Error(), param, "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode request: %w", err)
	}
	return out, nil
}

func newRequestID() string {
	return "req_" + uuid.NewString()
}

func newCopyID() string {
	return "copy_" + uuid.NewString()
}
