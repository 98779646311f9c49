package http

import (
	"net/http"
	"strconv"

	"github.com/jmehdipour/reminder/internal/http/middleware"
	"github.com/jmehdipour/reminder/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// listDeliveriesHandler pages the caller's delivery log, newest first.
func listDeliveriesHandler(deliveries repository.DeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if deliveries == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "delivery log disabled"})
		}

		userID, ok := middleware.UserIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		rows, err := deliveries.ListByRecipient(c.Request().Context(), userID, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
