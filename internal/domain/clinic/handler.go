package clinic

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

type Handler struct {
	svc      *Service
	appts    AppointmentCounter
	patients PatientCounter
	now      func() time.Time
}

func NewHandler(svc *Service, appts AppointmentCounter, patients PatientCounter) *Handler {
	return &Handler{svc: svc, appts: appts, patients: patients, now: time.Now}
}

// RegisterRoutes mounts reads and day-to-day edits on api and roster,
// settings and catalog changes on admin.
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.GET("/dentists", h.ListDentists)
	api.PATCH("/dentists/:id", h.UpdateDentist)
	api.GET("/vacations", h.ListVacations)
	api.POST("/vacations", h.AddVacation)
	api.DELETE("/vacations/:id", h.DeleteVacation)
	api.GET("/settings/working-hours", h.GetWorkingHours)
	api.GET("/catalogs/:catalog", h.GetCatalog)

	admin.POST("/dentists", h.AddDentist)
	admin.DELETE("/dentists/:id", h.RemoveDentist)
	admin.PUT("/settings/working-hours", h.SaveWorkingHours)
	admin.POST("/catalogs/:catalog", h.AddCatalogEntry)
	admin.DELETE("/catalogs/:catalog/:id", h.DeleteCatalogEntry)
	admin.GET("/stats", h.GetStats)
}

func httpError(err error) error {
	switch {
	case IsNotFound(err), errors.Is(err, ErrUnknownCatalog):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotConfirmed):
		return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidHours), errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrInvalidDate), errors.Is(err, ErrKeyRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func confirmed(c echo.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return ok
}

// catalogParam maps the URL form (appointment-types) to the catalog name.
func catalogParam(c echo.Context) Catalog {
	switch c.Param("catalog") {
	case "specialties":
		return CatalogSpecialties
	case "appointment-types", "appointment_types":
		return CatalogAppointmentTypes
	}
	return Catalog(c.Param("catalog"))
}

// ListDentists handles GET /dentists?include_inactive=true.
func (h *Handler) ListDentists(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("include_inactive"))
	items, err := h.svc.Dentists(c.Request().Context(), all)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Dentist{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddDentist(c echo.Context) error {
	var d Dentist
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddDentist(c.Request().Context(), d)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateDentist(c echo.Context) error {
	var p DentistPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDentist(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RemoveDentist(c echo.Context) error {
	if err := h.svc.RemoveDentist(c.Request().Context(), c.Param("id"), confirmed(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListVacations(c echo.Context) error {
	items, err := h.svc.Vacations(c.Request().Context(), c.QueryParam("dentist_id"))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Vacation{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddVacation(c echo.Context) error {
	var v Vacation
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddVacation(c.Request().Context(), v)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) DeleteVacation(c echo.Context) error {
	if err := h.svc.DeleteVacation(c.Request().Context(), c.Param("id"), confirmed(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetWorkingHours(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.WorkingHours(c.Request().Context()))
}

func (h *Handler) SaveWorkingHours(c echo.Context) error {
	var wh slotgrid.WorkingHours
	if err := c.Bind(&wh); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SaveWorkingHours(c.Request().Context(), wh); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wh)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	entries, err := h.svc.Catalog(c.Request().Context(), catalogParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) AddCatalogEntry(c echo.Context) error {
	var e CatalogEntry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddCatalogEntry(c.Request().Context(), catalogParam(c), e.Key, e.Label)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) DeleteCatalogEntry(c echo.Context) error {
	if err := h.svc.DeleteCatalogEntry(c.Request().Context(), catalogParam(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetStats handles GET /admin/stats?date=; date defaults to today.
func (h *Handler) GetStats(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = slotgrid.DateKey(h.now())
	} else if !validDateKey(date) {
		return httpError(ErrInvalidDate)
	}
	st, err := h.svc.Stats(c.Request().Context(), date, h.appts, h.patients)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}
