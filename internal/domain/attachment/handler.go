package attachment

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cardioedad/cardioedad/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleClinician))
	g.POST("/patients/:id/attachments", h.Upload)
	g.GET("/patients/:id/attachments", h.List)
	g.DELETE("/patients/:id/attachments/:attachment_id", h.Delete)
	g.GET("/attachments/:id/content", h.Content)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrBlobNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Upload(c echo.Context) error {
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	a, err := h.svc.Upload(c.Request().Context(), patientID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) Content(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, rc, err := h.svc.Open(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": a.Name}))
	hdr.Set(echo.HeaderContentLength, strconv.FormatInt(a.Size, 10))
	hdr.Set("ETag", `"`+a.Hash+`"`)
	return c.Stream(http.StatusOK, a.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	id, err := parseID(c, "attachment_id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), patientID, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
