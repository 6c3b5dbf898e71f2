package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
	"github.com/cardioedad/cardioedad/internal/domain/labs"
	"github.com/cardioedad/cardioedad/internal/domain/prescription"
	"github.com/cardioedad/cardioedad/internal/platform/auth"
	"github.com/cardioedad/cardioedad/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleClinician))
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id", h.GetPatient)
	g.GET("/patients/:id/labs", h.GetLabMatrix)
	g.GET("/patients/:id/fluid-balance", h.GetFluidSummary)
	g.GET("/patients/:id/temperatures", h.GetTemperatureFlags)
	g.GET("/patients/:id/devices", h.ListDevices)
	g.POST("/patients/:id/dose", h.CalculateDose)
	g.GET("/census", h.GetCensus)

	g.POST("/patients", h.CreatePatient)
	g.PATCH("/patients/:id", h.UpdatePatient)
	g.DELETE("/patients/:id", h.DeletePatient)
	g.POST("/patients/:id/discharge", h.DischargePatient)
	g.POST("/patients/:id/transfer", h.TransferPatient)
	g.POST("/patients/:id/devices", h.AddDevice)
	g.DELETE("/patients/:id/devices/:device_id", h.RemoveDevice)
	g.POST("/patients/:id/prescription/toggle", h.TogglePrescriptionLine)

	g.PUT("/patients/:id/logs", h.SaveLog)
	g.PUT("/patients/:id/logs/:log_id", h.UpdateLog)
	g.DELETE("/patients/:id/logs/:log_id", h.DeleteLog)
	g.PUT("/patients/:id/logs/:log_id/labs", h.SetLabValue)
	g.POST("/patients/:id/logs/:log_id/conducts/:index/toggle", h.ToggleConduct)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id/purge", h.PurgePatient)
}

// httpError maps service errors onto status codes. Anything unrecognized
// gets fallback.
func httpError(err error, fallback int) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, labs.ErrLogNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidUnit), errors.Is(err, prescription.ErrLineOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

// ListPatients serves ?tab=UTI|Enfermaria|Arquivo Morto|Finalizados.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("tab"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, &u)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PurgePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.PurgePatient(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DischargePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.DischargePatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) TransferPatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Unit string `json:"unit"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.TransferPatient(c.Request().Context(), id, body.Unit)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Devices --

func (h *Handler) ListDevices(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	devices, err := h.svc.ListDevices(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, devices)
}

func (h *Handler) AddDevice(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var d chart.Device
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	added, err := h.svc.AddDevice(c.Request().Context(), id, d)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, added)
}

func (h *Handler) RemoveDevice(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	deviceID, err := parseID(c, "device_id")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveDevice(c.Request().Context(), id, deviceID); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) TogglePrescriptionLine(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Index int `json:"index"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.TogglePrescriptionLine(c.Request().Context(), id, body.Index)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Daily logs --

func (h *Handler) SaveLog(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var l chart.DailyLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = uuid.Nil
	if err := h.svc.SaveLog(c.Request().Context(), id, &l); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) UpdateLog(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	logID, err := parseID(c, "log_id")
	if err != nil {
		return err
	}
	var l chart.DailyLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = logID
	if err := h.svc.UpdateLog(c.Request().Context(), id, &l); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteLog(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	logID, err := parseID(c, "log_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLog(c.Request().Context(), id, logID); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

type labCellRequest struct {
	TestName string `json:"testName"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
}

func (h *Handler) SetLabValue(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	logID, err := parseID(c, "log_id")
	if err != nil {
		return err
	}
	var req labCellRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := h.svc.SetLabValue(c.Request().Context(), id, logID, req.TestName, req.Value, req.Unit)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ToggleConduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	logID, err := parseID(c, "log_id")
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	l, err := h.svc.ToggleConduct(c.Request().Context(), id, logID, index)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, l)
}

// -- Read models --

func (h *Handler) GetLabMatrix(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.LabMatrix(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) GetFluidSummary(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	sum, err := h.svc.FluidSummary(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetTemperatureFlags(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	flags, err := h.svc.TemperatureFlags(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, flags)
}

type doseResponse struct {
	icu.Dose
	Display string `json:"display"`
}

func (h *Handler) CalculateDose(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req DoseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CalculateDose(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, doseResponse{Dose: d, Display: d.String()})
}

func (h *Handler) GetCensus(c echo.Context) error {
	unit := c.QueryParam("unit")
	if unit == "" {
		unit = chart.UnitICU
	}
	entries, err := h.svc.Census(c.Request().Context(), unit)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, entries)
}
