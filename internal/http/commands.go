package http

import (
	"net/http"
	"time"

	"github.com/jmehdipour/reminder/internal/http/middleware"
	"github.com/jmehdipour/reminder/internal/service/command"
	"github.com/labstack/echo/v4"
)

type registerReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type friendshipReq struct {
	AddresseeID string `json:"addressee_id"`
}

type eventReq struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"` // RFC 3339
}

type inviteReq struct {
	UserID string `json:"user_id"`
}

type rescheduleReq struct {
	StartsAt time.Time `json:"starts_at"`
}

// handlers binds the command service to routes. Every route but register
// runs behind UserIDMiddleware.
type handlers struct {
	svc *command.Service
}

func caller(c echo.Context) string {
	id, _ := middleware.UserIDFromCtx(c)
	return id
}

func (h handlers) registerUser(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	u, err := h.svc.RegisterUser(c.Request().Context(), req.Name, req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h handlers) requestFriendship(c echo.Context) error {
	var req friendshipReq
	if err := c.Bind(&req); err != nil || req.AddresseeID == "" {
		return badRequest(c, "addressee_id is required")
	}
	f, err := h.svc.RequestFriendship(c.Request().Context(), caller(c), req.AddresseeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h handlers) acceptFriendship(c echo.Context) error {
	if err := h.svc.AcceptFriendship(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) createGroupEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	ev, err := h.svc.CreateGroupEvent(c.Request().Context(), caller(c), req.Title, req.StartsAt)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h handlers) invite(c echo.Context) error {
	var req inviteReq
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return badRequest(c, "user_id is required")
	}
	inv, err := h.svc.Invite(c.Request().Context(), caller(c), c.Param("id"), req.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h handlers) acceptInvitation(c echo.Context) error {
	if err := h.svc.AcceptInvitation(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) cancelGroupEvent(c echo.Context) error {
	if err := h.svc.CancelGroupEvent(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) rescheduleGroupEvent(c echo.Context) error {
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	if err := h.svc.RescheduleGroupEvent(c.Request().Context(), caller(c), c.Param("id"), req.StartsAt); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) createPersonalEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	ev, err := h.svc.CreatePersonalEvent(c.Request().Context(), caller(c), req.Title, req.StartsAt)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h handlers) cancelPersonalEvent(c echo.Context) error {
	if err := h.svc.CancelPersonalEvent(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
