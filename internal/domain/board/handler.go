package board

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	builder  *Builder
	gestures *Gestures
}

// NewHandler serves the board layout. gestures may be nil when the drag
// channel is not mounted.
func NewHandler(builder *Builder, gestures *Gestures) *Handler {
	return &Handler{builder: builder, gestures: gestures}
}

// RegisterRoutes mounts GET /board on api and, when gestures are set,
// GET /ws/board on root.
func (h *Handler) RegisterRoutes(api *echo.Group, root *echo.Group) {
	api.GET("/board", h.GetBoard)
	if h.gestures != nil && root != nil {
		root.GET("/ws/board", h.gestures.HandleConnect)
	}
}

// GetBoard handles GET /board?date=&dentist_id=&q=.
func (h *Handler) GetBoard(c echo.Context) error {
	view, err := h.builder.Build(c.Request().Context(), Query{
		Date:       c.QueryParam("date"),
		DentistIDs: c.QueryParams()["dentist_id"],
		Search:     c.QueryParam("q"),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
