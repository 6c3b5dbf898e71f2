package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cardioedad/cardioedad/internal/platform/middleware"
)

// LoginRateLimit throttles passphrase guesses per client IP.
var LoginRateLimit = middleware.RateLimitConfig{
	RequestsPerSecond: 1,
	BurstSize:         5,
	IdleTTL:           15 * time.Minute,
}

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/login", h.Login, middleware.RateLimit(LoginRateLimit))
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tok, err := h.gate.Login(req.Passphrase)
	if err != nil {
		if errors.Is(err, ErrInvalidPassphrase) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tok)
}
