package assistant

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cardioedad/cardioedad/internal/domain/patient"
	"github.com/cardioedad/cardioedad/internal/platform/auth"
)

// unavailableMessage is shown to clinicians whenever the model fails.
const unavailableMessage = "Não foi possível gerar a resposta da IA no momento. Verifique a conexão."

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients/:id/assistant", auth.RequireRole(auth.RoleClinician))
	g.GET("/summary", h.Summary)
	g.POST("/hypotheses", h.SuggestHypotheses)
}

// failure keeps model errors away from the client. Only a missing patient
// is reported as such.
func (h *Handler) failure(c echo.Context, err error) error {
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	rid, _ := c.Get("request_id").(string)
	h.svc.logger.Error().Err(err).
		Str("request_id", rid).
		Str("patient_id", c.Param("id")).
		Msg("assistant request failed")
	return echo.NewHTTPError(http.StatusServiceUnavailable, unavailableMessage)
}

func (h *Handler) Summary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.Summarize(c.Request().Context(), id)
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

type hypothesesRequest struct {
	Symptoms string `json:"symptoms"`
}

func (h *Handler) SuggestHypotheses(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req hypothesesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "symptoms are required")
	}
	list, err := h.svc.SuggestHypotheses(c.Request().Context(), id, req.Symptoms)
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"hypotheses": list})
}
