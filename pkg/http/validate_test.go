package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageRequest struct {
	Day   string `query:"day" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" default:"30" validate:"gte=1,lte=100"`
}

func bindQuery(t *testing.T, target string, req interface{}) interface{} {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	var req pageRequest
	require.Nil(t, bindQuery(t, "/?day=2024-03-01", &req))
	assert.Equal(t, 30, req.Limit)
	assert.Equal(t, "2024-03-01", req.Day)
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	var req pageRequest
	res := bindQuery(t, "/?day=03/01/2024&limit=500", &req)
	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_DATETIME", errs[0].Code)
	assert.Equal(t, "2006-01-02", errs[0].Params["layout"])
	assert.Equal(t, "ERR_LTE", errs[1].Code)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, NotFoundError("no analysis yet")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", body.Data[0].Code)
}

func TestAppErrorResponsePlainErrorIsInternal(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, errors.New("connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternal)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestReadAndValidateRequestBindsQueryOnPost(t *testing.T) {
	var req struct {
		Sync bool `query:"sync"`
	}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/?sync=true", nil), httptest.NewRecorder())
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.True(t, req.Sync)

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/?sync=maybe", nil), httptest.NewRecorder())
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, CodeBadRequest, errs[0].Code)
}

func TestErrorMapResolve(t *testing.T) {
	errGone := errors.New("gone")
	m := ErrorMap{
		Rules:    []ErrorRule{{Target: errGone, Build: func(error) *AppError { return NotFoundError("nothing here") }}},
		Fallback: "boom",
	}

	got := m.Resolve(fmt.Errorf("lookup: %w", errGone))
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.ErrorIs(t, got, errGone)

	direct := BadRequestError("bad day")
	assert.Same(t, direct, m.Resolve(fmt.Errorf("wrapped: %w", direct)))

	other := m.Resolve(errors.New("disk full"))
	assert.Equal(t, CodeInternal, other.Code)
	assert.Equal(t, "boom", other.Message)
}
