package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/blobstore"
	"github.com/dentboard/dentboard/pkg/pagination"
)

type Handler struct {
	dir   *Directory
	files *FileService
}

func NewHandler(dir *Directory, files *FileService) *Handler {
	return &Handler{dir: dir, files: files}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PATCH("/patients/:id", h.UpdatePatient)
	if h.files != nil {
		api.GET("/patients/:id/files", h.ListFiles)
		api.POST("/patients/:id/files", h.UploadFile)
		api.DELETE("/patients/:id/files/:file_id", h.DeleteFile)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrFileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, blobstore.ErrEmptyFileName), errors.Is(err, blobstore.ErrInvalidPath):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotConfirmed):
		return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// ListPatients handles GET /patients?q=&limit=&offset=. Without q the
// roster is paged in name order.
func (h *Handler) ListPatients(c echo.Context) error {
	var items []Patient
	if q := c.QueryParam("q"); q != "" {
		items = h.dir.Search(q)
	} else {
		items = h.dir.List()
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = ""
	created, err := h.dir.Add(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.dir.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var patch PatientPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.dir.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListFiles(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.dir.Get(id); err != nil {
		return httpError(err)
	}
	files, err := h.files.List(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if files == nil {
		files = []*File{}
	}
	return c.JSON(http.StatusOK, files)
}

// UploadFile handles multipart POST /patients/:id/files with a "file" part.
func (h *Handler) UploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > blobstore.MaxFileSize {
		return httpError(blobstore.ErrFileTooLarge)
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	f, err := h.files.Upload(c.Request().Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

// DeleteFile handles DELETE /patients/:id/files/:file_id?confirm=true.
func (h *Handler) DeleteFile(c echo.Context) error {
	confirm, _ := strconv.ParseBool(c.QueryParam("confirm"))
	err := h.files.Delete(c.Request().Context(), c.Param("id"), c.Param("file_id"), scheduling.Confirmation(confirm))
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
