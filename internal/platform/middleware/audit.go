package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lars/lars/internal/platform/auth"
)

// PatientCodeHeader carries the patient identity on patient-facing routes.
const PatientCodeHeader = "X-Patient-Code"

// Audit emits one structured "patient_data_access" log line for every
// request that reads or writes a patient's questionnaire data: patient routes
// identified by the X-Patient-Code header and staff routes under
// /api/v1/patients/:code. Probe endpoints are never audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			patient := auditedPatient(req)
			if patient == "" && !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			rid, _ := c.Get("request_id").(string)
			ctx := req.Context()

			logger.Info().
				Str("type", "audit").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Str("patient_code", patient).
				Str("action", httpMethodToAction(req.Method)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Int("status", status).
				Msg("patient_data_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// auditedPatient returns the patient code a request concerns, upper-cased,
// or "" when the request is not patient-scoped.
func auditedPatient(req *http.Request) string {
	if code := strings.TrimSpace(req.Header.Get(PatientCodeHeader)); code != "" {
		return strings.ToUpper(code)
	}
	const prefix = "/api/v1/patients/"
	if strings.HasPrefix(req.URL.Path, prefix) {
		code, _, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, prefix), "/")
		return strings.ToUpper(code)
	}
	return ""
}
