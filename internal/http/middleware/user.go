package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	HeaderUserID = "X-User-ID"
	ctxUserID    = "user_id"
)

// UserIDFromCtx extracts the caller id set by UserIDMiddleware.
func UserIDFromCtx(c echo.Context) (string, bool) {
	id, ok := c.Get(ctxUserID).(string)
	return id, ok && id != ""
}

// UserIDMiddleware trusts the X-User-ID header set by the upstream gateway
// and rejects ids that do not belong to a registered user.
func UserIDMiddleware(users repository.UsersRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if id == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing user id"})
			}
			if _, err := users.GetByID(c.Request().Context(), nil, id); err != nil {
				if errors.Is(err, model.ErrNotFound) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unknown user"})
				}
				log.Errorf("user lookup failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			c.Set(ctxUserID, id)
			return next(c)
		}
	}
}
