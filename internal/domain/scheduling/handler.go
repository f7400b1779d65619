package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	reg *Registry
	// patients looks up the patient for the chronology route. Nil disables it.
	patients PatientResolver
}

func NewHandler(reg *Registry, patients PatientResolver) *Handler {
	return &Handler{reg: reg, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
	api.POST("/appointments/:id/move", h.MoveAppointment)
	api.GET("/patients/:id/appointments", h.PatientChronology)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotConfirmed):
		return http.StatusPreconditionRequired
	case errors.Is(err, ErrAttendanceBeforeEnd):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func httpError(err error) error {
	return echo.NewHTTPError(errorStatus(err), err.Error())
}

// ListAppointments handles GET /appointments?date=&dentist_id=&q=.
func (h *Handler) ListAppointments(c echo.Context) error {
	f := Filter{
		Date:       c.QueryParam("date"),
		DentistIDs: c.QueryParams()["dentist_id"],
		Query:      c.QueryParam("q"),
	}
	items := h.reg.List(f)
	resp := map[string]interface{}{
		"items": items,
		"total": len(items),
	}
	if err := h.reg.LoadErr(); err != nil {
		resp["load_error"] = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.reg.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.reg.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.reg.Update(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type moveRequest struct {
	DentistID string `json:"dentist_id"`
	Start     string `json:"start"`
}

func (h *Handler) MoveAppointment(c echo.Context) error {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := c.Param("id")
	if err := h.reg.Move(c.Request().Context(), id, req.DentistID, req.Start); err != nil {
		return httpError(err)
	}
	a, err := h.reg.Get(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// DeleteAppointment handles DELETE /appointments/:id?confirm=true.
func (h *Handler) DeleteAppointment(c echo.Context) error {
	confirm, _ := strconv.ParseBool(c.QueryParam("confirm"))
	if err := h.reg.Remove(c.Request().Context(), c.Param("id"), Confirmation(confirm)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PatientChronology handles GET /patients/:id/appointments, newest first.
func (h *Handler) PatientChronology(c echo.Context) error {
	if h.patients == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	p, ok := h.patients.ResolveByKey(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	items := h.reg.ForPatient(p)
	if items == nil {
		items = []Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}
