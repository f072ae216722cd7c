package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lars/lars/internal/platform/auth"
	"github.com/lars/lars/internal/platform/middleware"
	"github.com/lars/lars/pkg/pagination"
)

// HeaderCode is the header the audit log reads the patient code from.
const HeaderCode = middleware.PatientCodeHeader

// CodeFromRequest reads and normalizes the X-Patient-Code header, returning
// a ready-to-send 400 when it is missing or malformed.
func CodeFromRequest(c echo.Context) (string, error) {
	code, err := NormalizeCode(c.Request().Header.Get(HeaderCode))
	if err != nil {
		return "", CodeError(err)
	}
	return code, nil
}

// CodeError maps code validation errors to their HTTP form.
func CodeError(err error) error {
	switch {
	case errors.Is(err, ErrMissingCode):
		return echo.NewHTTPError(http.StatusBadRequest, "Missing X-Patient-Code header")
	case errors.Is(err, ErrInvalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid patient code format")
	}
	return err
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleAdmin))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:code", h.GetPatient)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("code"))
	switch {
	case errors.Is(err, ErrMissingCode), errors.Is(err, ErrInvalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient code")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
