package schedule

import (
	"net/http"

	"github.com/golang-sql/civil"
	"github.com/labstack/echo/v4"

	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/platform/auth"
)

type Handler struct {
	scheduler *Scheduler
}

func NewHandler(s *Scheduler) *Handler {
	return &Handler{scheduler: s}
}

// RegisterRoutes mounts the patient-facing route on root and the staff
// preview on api.
func (h *Handler) RegisterRoutes(root *echo.Group, api *echo.Group) {
	root.GET("/nextQuestionnaire", h.NextQuestionnaire)

	read := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleAdmin))
	read.GET("/patients/:code/next-questionnaire", h.PreviewNextQuestionnaire)
}

func (h *Handler) NextQuestionnaire(c echo.Context) error {
	code, err := patient.CodeFromRequest(c)
	if err != nil {
		return err
	}
	d, err := h.scheduler.Decide(c.Request().Context(), code)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "decision unavailable")
	}
	return c.JSON(http.StatusOK, d)
}

// PreviewNextQuestionnaire returns the decision for a patient as of today,
// or as of ?date=YYYY-MM-DD.
func (h *Handler) PreviewNextQuestionnaire(c echo.Context) error {
	code, err := patient.NormalizeCode(c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient code")
	}
	today := h.scheduler.Today()
	if raw := c.QueryParam("date"); raw != "" {
		today, err = civil.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
	}
	d, err := h.scheduler.DecideOn(c.Request().Context(), code, today)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "decision unavailable")
	}
	return c.JSON(http.StatusOK, d)
}
