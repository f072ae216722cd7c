package entry

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/domain/schedule"
	"github.com/lars/lars/internal/platform/auth"
	"github.com/lars/lars/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient submission routes on root and the staff
// entry listing on api.
func (h *Handler) RegisterRoutes(root *echo.Group, api *echo.Group) {
	root.POST("/sendWeekly", h.SendWeekly)
	root.POST("/sendDaily", h.SendDaily)
	root.POST("/sendMonthly", h.SendMonthly)
	root.POST("/sendEQ5D5L", h.SendEQ5D5L)

	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleAdmin))
	read.GET("/patients/:code/entries/:type", h.ListEntries)
}

func (h *Handler) SendWeekly(c echo.Context) error {
	code, err := patient.CodeFromRequest(c)
	if err != nil {
		return err
	}
	var p WeeklyPayload
	if err := c.Bind(&p); err != nil {
		return bindError(err)
	}
	resp, err := h.svc.SubmitWeekly(c.Request().Context(), code, &p)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendDaily(c echo.Context) error {
	code, err := patient.CodeFromRequest(c)
	if err != nil {
		return err
	}
	var p DailyPayload
	if err := c.Bind(&p); err != nil {
		return bindError(err)
	}
	resp, err := h.svc.SubmitDaily(c.Request().Context(), code, &p)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendMonthly(c echo.Context) error {
	code, err := patient.CodeFromRequest(c)
	if err != nil {
		return err
	}
	var p MonthlyPayload
	if err := c.Bind(&p); err != nil {
		return bindError(err)
	}
	resp, err := h.svc.SubmitMonthly(c.Request().Context(), code, &p)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendEQ5D5L(c echo.Context) error {
	code, err := patient.CodeFromRequest(c)
	if err != nil {
		return err
	}
	var p EQ5D5LPayload
	if err := c.Bind(&p); err != nil {
		return bindError(err)
	}
	resp, err := h.svc.SubmitEQ5D5L(c.Request().Context(), code, &p)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// bindError keeps a body-limit 413 raised while reading the body and reports
// anything else as a malformed request.
func bindError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if he, ok := e.(*echo.HTTPError); ok && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
}

func submitError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message": "validation failed",
			"fields":  verr.Fields,
		})
	case errors.Is(err, patient.ErrMissingCode), errors.Is(err, patient.ErrInvalidCode):
		return patient.CodeError(err)
	}
	return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
}

func (h *Handler) ListEntries(c echo.Context) error {
	t, err := schedule.ParseType(c.Param("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown questionnaire type, expected one of: "+schedule.TypeNames())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEntries(c.Request().Context(), c.Param("code"), t, pg.Limit, pg.Offset)
	switch {
	case errors.Is(err, patient.ErrMissingCode), errors.Is(err, patient.ErrInvalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient code")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
