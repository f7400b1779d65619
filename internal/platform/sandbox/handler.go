package sandbox

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	seeder *Seeder
	now    func() time.Time
}

func NewHandler(seeder *Seeder) *Handler {
	return &Handler{seeder: seeder, now: time.Now}
}

// RegisterRoutes mounts the seeding endpoints on an admin-gated group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/seed", h.handleSeed)
	admin.POST("/demo", h.handleDemo)
}

// handleSeed applies a seed file posted as YAML or JSON.
func (h *Handler) handleSeed(c echo.Context) error {
	f, err := Parse(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.seeder.Apply(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) handleDemo(c echo.Context) error {
	var cfg DemoConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.seeder.Demo(c.Request().Context(), cfg, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
