package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// writeError maps domain sentinels to status codes; anything else is a 500.
func writeError(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	default:
		log.Errorf("%s %s failed: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
