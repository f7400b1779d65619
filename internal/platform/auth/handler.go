package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

// RegisterRoutes mounts the session endpoints under api. The login route
// takes extra middleware (the login rate limit).
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	api.POST("/admin/session", h.CreateSession, loginMW...)
	api.GET("/admin/session", h.GetSession, h.gate.RequireAdmin())
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	}

	session, err := h.gate.Login(req.Password)
	switch {
	case errors.Is(err, ErrGateDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrInvalidPassword):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, session)
}

// GetSession lets the admin panel check a stored token is still good.
func (h *Handler) GetSession(c echo.Context) error {
	claims := SessionFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin":      true,
		"expires_at": exp,
	})
}
