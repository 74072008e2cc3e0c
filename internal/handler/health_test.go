package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/api"
	"github.com/pkordes/missionmap/internal/handler"
)

// TestGetHealth verifies that GET /healthz returns 200 with {"status":"ok"}.
func TestGetHealth(t *testing.T) {
	h := newHTTPHandler(handler.Deps{})

	rec := do(t, h, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetOpenAPI(t *testing.T) {
	h := newHTTPHandler(handler.Deps{})

	rec := do(t, h, http.MethodGet, "/openapi.yaml", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, api.OpenAPI, rec.Body.Bytes())
}

func TestUnknownRoute(t *testing.T) {
	h := newHTTPHandler(handler.Deps{})

	rec := do(t, h, http.MethodGet, "/trips", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
