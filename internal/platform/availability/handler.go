package availability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// ErrMissingDentistID is returned when a per-dentist query has no dentist.
var ErrMissingDentistID = errors.New("dentist_id is required")

// Source supplies the data a search runs over.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// Dentists returns the active dentists among ids, in roster order. An
	// empty ids slice means every active dentist.
	Dentists(ctx context.Context, ids []string) ([]DentistRef, error)
}

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
	source Source
}

func NewHandler(engine *Engine, source Source) *Handler {
	return &Handler{engine: engine, source: source}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/availability/next-free", h.NextFree)
	g.GET("/availability/earliest", h.Earliest)
	g.GET("/availability/day", h.Day)
}

type nextFreeResponse struct {
	Found bool      `json:"found"`
	Slot  *FreeSlot `json:"slot,omitempty"`
}

// NextFree handles GET /availability/next-free?dentist_id=.
func (h *Handler) NextFree(c echo.Context) error {
	dentistID := c.QueryParam("dentist_id")
	if dentistID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrMissingDentistID.Error())
	}
	snap, err := h.source.Snapshot(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	slot := h.engine.FindNextFree(dentistID, snap)
	return c.JSON(http.StatusOK, nextFreeResponse{Found: slot != nil, Slot: slot})
}

// Earliest handles GET /availability/earliest?dentist_id=a&dentist_id=b.
func (h *Handler) Earliest(c echo.Context) error {
	ctx := c.Request().Context()
	dentists, err := h.source.Dentists(ctx, c.QueryParams()["dentist_id"])
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	slot := h.engine.EarliestFree(dentists, snap)
	return c.JSON(http.StatusOK, nextFreeResponse{Found: slot != nil, Slot: slot})
}

// Day handles GET /availability/day?dentist_id=&date=.
func (h *Handler) Day(c echo.Context) error {
	dentistID := c.QueryParam("dentist_id")
	if dentistID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrMissingDentistID.Error())
	}
	date := c.QueryParam("date")
	if date == "" {
		date = slotgrid.DateKey(h.engine.now())
	}
	if _, err := time.Parse(slotgrid.DateLayout, date); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
	}
	snap, err := h.source.Snapshot(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"dentist_id":  dentistID,
		"date":        date,
		"on_vacation": IsOnVacation(dentistID, date, snap.Absences),
		"slots":       h.engine.DayOccupancy(dentistID, date, snap),
	})
}
