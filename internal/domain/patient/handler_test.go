package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lars/lars/internal/platform/middleware"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	repo := newMockRepo()
	return NewHandler(NewService(repo)), repo, echo.New()
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return httpErr.Code
}

func TestCodeFromRequest(t *testing.T) {
	e := echo.New()
	tests := []struct {
		header   string
		wantCode string
		wantHTTP int
		wantMsg  string
	}{
		{" ab12cd ", "AB12CD", 0, ""},
		{"", "", http.StatusBadRequest, "Missing X-Patient-Code header"},
		{"a-b", "", http.StatusBadRequest, "Invalid patient code format"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/nextQuestionnaire", nil)
		if tt.header != "" {
			req.Header.Set(HeaderCode, tt.header)
		}
		c := e.NewContext(req, httptest.NewRecorder())
		code, err := CodeFromRequest(c)
		if tt.wantHTTP == 0 {
			if err != nil || code != tt.wantCode {
				t.Errorf("header %q: got (%q, %v), want %q", tt.header, code, err, tt.wantCode)
			}
			continue
		}
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("header %q: expected echo.HTTPError, got %T", tt.header, err)
		}
		if httpErr.Code != tt.wantHTTP || httpErr.Message != tt.wantMsg {
			t.Errorf("header %q: got %d %v, want %d %s", tt.header, httpErr.Code, httpErr.Message, tt.wantHTTP, tt.wantMsg)
		}
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.Upsert(context.Background(), "PT0001", day(2024, time.March, 1))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/pt0001", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("pt0001")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["patient_code"] != "PT0001" {
		t.Errorf("expected PT0001, got %v", body["patient_code"])
	}
	if body["enrollment_date"] != "2024-03-01" {
		t.Errorf("expected enrollment_date 2024-03-01, got %v", body["enrollment_date"])
	}
}

func TestHandler_GetPatient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		repoErr error
		want    int
	}{
		{"invalid code", "x", nil, http.StatusBadRequest},
		{"not found", "NOBODY", nil, http.StatusNotFound},
		{"store down", "PT0001", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, repo, e := newTestHandler()
			repo.err = tt.repoErr
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			c.SetParamNames("code")
			c.SetParamValues(tt.param)
			if got := httpCode(t, h.GetPatient(c)); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.Upsert(context.Background(), "PT0001", day(2024, time.March, 1))
	repo.Upsert(context.Background(), "PT0002", day(2024, time.March, 2))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data    []Patient `json:"data"`
		Total   int       `json:"total"`
		HasMore bool      `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Data) != 1 || !body.HasMore {
		t.Errorf("unexpected page: %+v", body)
	}
}

func TestHandler_ListPatients_Empty(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data, ok := body["data"].([]interface{}); !ok || len(data) != 0 {
		t.Errorf("expected empty data array, got %v", body["data"])
	}
}

func TestCodeFromRequest_MatchesAuditLog(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sendDaily", nil)
	req.Header.Set(HeaderCode, "pt0042")
	c := e.NewContext(req, httptest.NewRecorder())

	var code string
	handler := func(c echo.Context) error {
		var err error
		code, err = CodeFromRequest(c)
		if err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	}
	if err := middleware.Audit(zerolog.New(&buf))(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if code != "PT0042" || line["patient_code"] != code {
		t.Errorf("handler saw %q, audit logged %v", code, line["patient_code"])
	}
}
